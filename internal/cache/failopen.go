package cache

import (
	"context"
	"time"

	"userhub/internal/logging"
)

type failOpen struct {
	next Repository
	log  logging.Logger
}

// FailOpen wraps next so that store failures are logged and treated as a
// miss (Get) or a no-op (Set, Delete). Callers then fall through to the
// durable store instead of aborting.
func FailOpen(next Repository, log logging.Logger) Repository {
	return &failOpen{next: next, log: log}
}

func (f *failOpen) Get(ctx context.Context, key string) (Value, error) {
	v, err := f.next.Get(ctx, key)
	if err != nil {
		f.log.Warn(ctx, "cache get failed, treating as miss", "key", key, "error", err)
		return nil, nil
	}
	return v, nil
}

func (f *failOpen) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := f.next.Set(ctx, key, value, ttl); err != nil {
		f.log.Warn(ctx, "cache set failed", "key", key, "error", err)
	}
	return nil
}

func (f *failOpen) Delete(ctx context.Context, key string) error {
	if err := f.next.Delete(ctx, key); err != nil {
		f.log.Warn(ctx, "cache delete failed", "key", key, "error", err)
	}
	return nil
}
