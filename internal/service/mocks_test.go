package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"userhub/internal/cache"
	apperrors "userhub/internal/errors"
	"userhub/internal/model"
)

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

// Create returns the passed user when the expectation returns no record,
// so .Run can assign the ID the store would.
func (m *MockUserRepository) Create(ctx context.Context, user *model.User) (*model.User, error) {
	args := m.Called(ctx, user)
	if created, ok := args.Get(0).(*model.User); ok {
		return created, args.Error(1)
	}
	if err := args.Error(1); err != nil {
		return nil, err
	}
	return user, nil
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, id string, patch model.UserPatch) (*model.User, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

type memoryEntry struct {
	data []byte
	ttl  time.Duration
}

// memoryCache is an in-memory cache.Repository that records every write
// and deletion. Setting err makes every call fail with a CacheError.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	sets    []string
	deletes []string
	err     error
}

var _ cache.Repository = (*memoryCache)(nil)

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]memoryEntry)}
}

func (c *memoryCache) Get(_ context.Context, key string) (cache.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, &apperrors.CacheError{Op: "get", Key: key, Err: c.err}
	}
	e, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	return cache.Value(e.data), nil
}

func (c *memoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return &apperrors.CacheError{Op: "set", Key: key, Err: c.err}
	}
	if ttl <= 0 {
		return &apperrors.CacheError{Op: "set", Key: key, Err: cache.ErrTTLRequired}
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = memoryEntry{data: data, ttl: ttl}
	c.sets = append(c.sets, key)
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return &apperrors.CacheError{Op: "delete", Key: key, Err: c.err}
	}
	delete(c.entries, key)
	c.deletes = append(c.deletes, key)
	return nil
}

// put stores raw bytes, bypassing JSON encoding and the write log.
func (c *memoryCache) put(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{data: data, ttl: cache.UserTTL}
}

func (c *memoryCache) entry(key string) (memoryEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *memoryCache) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}
