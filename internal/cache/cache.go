package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "userhub/internal/errors"
)

// ErrTTLRequired is returned by Set when no positive TTL is given.
var ErrTTLRequired = errors.New("ttl is required")

// Repository is a key/value store with expiry. It is never authoritative.
type Repository interface {
	// Get returns the stored value, or nil if the key is absent.
	Get(ctx context.Context, key string) (Value, error)
	// Set JSON-encodes value and stores it under key for ttl.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Value holds the raw bytes of a cache entry exactly as stored.
type Value []byte

// Decode deserializes v into dst.
func (v Value) Decode(dst any) error {
	return json.Unmarshal(v, dst)
}

// RedisRepository is the Redis-backed Repository.
type RedisRepository struct {
	client *redis.Client
}

var _ Repository = (*RedisRepository)(nil)

// New creates a new Redis client.
func New(addr, password string, db int) *RedisRepository {
	opts := &redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}
	return NewFromClient(redis.NewClient(opts))
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

// Ping checks connectivity.
func (c *RedisRepository) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return &apperrors.CacheError{Op: "ping", Err: err}
	}
	return nil
}

// Close releases the underlying connections.
func (c *RedisRepository) Close() error {
	return c.client.Close()
}

func (c *RedisRepository) Get(ctx context.Context, key string) (Value, error) {
	res, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, &apperrors.CacheError{Op: "get", Key: key, Err: err}
	}
	return Value(res), nil
}

func (c *RedisRepository) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		return &apperrors.CacheError{Op: "set", Key: key, Err: ErrTTLRequired}
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return &apperrors.CacheError{Op: "set", Key: key, Err: err}
	}
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return &apperrors.CacheError{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (c *RedisRepository) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return &apperrors.CacheError{Op: "delete", Key: key, Err: err}
	}
	return nil
}
