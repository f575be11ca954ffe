package querycache

import (
	"context"

	"github.com/fanyicharllson/whichemail/cache"
)

// GetQueryData returns the value cached under key, stale or not.
func GetQueryData[T any](ctx context.Context, c *Client, key string) (T, bool) {
	return cache.Get[T](ctx, c.cache, key)
}

// SetQueryData writes value under key and tracks it with tags. A refetch that
// was in flight for key will not overwrite it.
func SetQueryData[T any](ctx context.Context, c *Client, key string, value T, tags ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.trackKey(key, tags...)
	c.cancelRefetchLocked(key)
	return c.cache.Set(ctx, key, value)
}

// UpdateQueryData replaces the value under key with update(current). Keys
// with no cached value are left alone; the result reports whether update ran.
// update must return a new value rather than modify current in place.
func UpdateQueryData[T any](ctx context.Context, c *Client, key string, update func(current T) T) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := cache.Get[T](ctx, c.cache, key)
	if !ok {
		return false, nil
	}
	c.cancelRefetchLocked(key)
	return true, c.cache.Set(ctx, key, update(current))
}

// UpsertQueryData stores update(current, exists) under key, tracking it with
// tags.
func UpsertQueryData[T any](ctx context.Context, c *Client, key string, update func(current T, exists bool) T, tags ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := cache.Get[T](ctx, c.cache, key)
	c.trackKey(key, tags...)
	c.cancelRefetchLocked(key)
	return c.cache.Set(ctx, key, update(current, ok))
}
