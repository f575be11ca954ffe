package querycache

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fanyicharllson/whichemail/cache"
	"github.com/goliatone/go-errors"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"
)

// Client binds cached reads to keys and tracks which keys are live so they can
// be marked stale, patched or dropped.
type Client struct {
	cache  cache.CacheService
	logger *slog.Logger

	// registry maps every key read or written through the client to its tags.
	registry *xsync.MapOf[string, []string]
	// stale holds the invalidation generation of keys awaiting a refetch.
	stale      *xsync.MapOf[string, uint64]
	generation atomic.Uint64
	refetches  singleflight.Group
	// patches counts the optimistic patches open per key.
	patches *xsync.MapOf[string, int]

	// mu serializes direct writes so a snapshot and its patch are atomic.
	mu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for invalidation diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Client on top of the given cache service.
func New(cacheService cache.CacheService, opts ...Option) *Client {
	c := &Client{
		cache:    cacheService,
		logger:   slog.Default(),
		registry: xsync.NewMapOf[string, []string](),
		stale:    xsync.NewMapOf[string, uint64](),
		patches:  xsync.NewMapOf[string, int](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Spec describes one cache-bound read.
type Spec[T any] struct {
	// Key identifies the cached value.
	Key string
	// Enabled gates the read. A disabled read returns the zero value and
	// never calls Fetch.
	Enabled bool
	// Tags group keys for RemoveTag.
	Tags []string
	// Fetch loads the value from the source. Returning cache.ErrNotFound
	// caches the absence and yields the zero value.
	Fetch cache.FetchFn[T]
}

// Query reads spec.Key through the cache. Concurrent reads of the same key
// share one fetch. A key marked stale by Invalidate is refetched before it is
// served again.
func Query[T any](ctx context.Context, c *Client, spec Spec[T]) (T, error) {
	var zero T
	if !spec.Enabled {
		return zero, nil
	}
	if spec.Key == "" {
		return zero, errors.New("query key is required", errors.CategoryBadInput).
			WithTextCode("QUERY_KEY_REQUIRED")
	}
	if spec.Fetch == nil {
		return zero, errors.New("query fetch function is required", errors.CategoryBadInput).
			WithTextCode("QUERY_FETCH_REQUIRED")
	}

	tags := append(append([]string(nil), spec.Tags...), tagsFromContext(ctx)...)
	c.trackKey(spec.Key, tags...)

	if gen, ok := c.stale.Load(spec.Key); ok {
		return refetch(ctx, c, spec, gen)
	}

	value, err := cache.GetOrFetch(ctx, c.cache, spec.Key, guardPatched(c, spec.Key, spec.Fetch))
	if errors.Is(err, cache.ErrNotFound) {
		return zero, nil
	}
	return value, err
}

// refetch runs a forced fetch for a stale key. The result replaces the cached
// value only if no newer invalidation or direct write happened meanwhile.
func refetch[T any](ctx context.Context, c *Client, spec Spec[T], gen uint64) (T, error) {
	var zero T

	result, err, _ := c.refetches.Do(spec.Key, func() (any, error) {
		value, err := guardPatched(c, spec.Key, spec.Fetch)(ctx)
		missing := errors.Is(err, cache.ErrNotFound)
		if err != nil && !missing {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()

		if current, ok := c.stale.Load(spec.Key); !ok || current != gen {
			c.logger.Debug("discarding superseded refetch", "key", spec.Key)
			if missing {
				return nil, nil
			}
			return value, nil
		}

		if missing {
			_ = c.cache.Delete(ctx, spec.Key)
		} else if err := c.cache.Set(ctx, spec.Key, value); err != nil {
			return nil, err
		}
		c.stale.Compute(spec.Key, func(current uint64, loaded bool) (uint64, bool) {
			return current, !loaded || current == gen
		})
		if missing {
			return nil, nil
		}
		return value, nil
	})
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, cache.ErrInvalidResultType
	}
	return typed, nil
}

// Invalidate marks key stale. Its data stays readable through GetQueryData
// until the next Query replaces it.
func (c *Client) Invalidate(ctx context.Context, key string) {
	gen := c.generation.Add(1)
	c.stale.Store(key, gen)
	c.logger.Debug("query invalidated", "key", key, "generation", gen)
}

// InvalidatePrefix marks every tracked key starting with prefix stale.
func (c *Client) InvalidatePrefix(ctx context.Context, prefix string) {
	for _, key := range c.keysWhere(func(key string, _ []string) bool {
		return strings.HasPrefix(key, prefix)
	}) {
		c.Invalidate(ctx, key)
	}
}

// IsStale reports whether key is waiting for a refetch.
func (c *Client) IsStale(key string) bool {
	_, ok := c.stale.Load(key)
	return ok
}

// Remove drops key from the cache and forgets it.
func (c *Client) Remove(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeLocked(ctx, key)
}

// RemoveTag drops every tracked key registered with tag.
func (c *Client) RemoveTag(ctx context.Context, tag string) error {
	keys := c.keysWhere(func(_ string, tags []string) bool {
		for _, t := range tags {
			if t == tag {
				return true
			}
		}
		return false
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, key := range keys {
		if err := c.removeLocked(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	if len(keys) > 0 {
		c.logger.Debug("query tag removed", "tag", tag, "keys", len(keys))
	}
	return errors.Join(errs...)
}

// Keys returns the tracked keys. Order is unspecified.
func (c *Client) Keys() []string {
	return c.keysWhere(func(string, []string) bool { return true })
}

func (c *Client) removeLocked(ctx context.Context, key string) error {
	c.registry.Delete(key)
	c.stale.Delete(key)
	return c.cache.Delete(ctx, key)
}

// trackKey registers key and merges tags into its tag set.
func (c *Client) trackKey(key string, tags ...string) {
	c.registry.Compute(key, func(existing []string, loaded bool) ([]string, bool) {
		if len(tags) == 0 {
			if loaded {
				return existing, false
			}
			return []string{}, false
		}
		return dedupeStrings(append(append([]string(nil), existing...), tags...)), false
	})
}

func (c *Client) keysWhere(match func(key string, tags []string) bool) []string {
	var keys []string
	c.registry.Range(func(key string, tags []string) bool {
		if match(key, tags) {
			keys = append(keys, key)
		}
		return true
	})
	return keys
}

// guardPatched wraps fetch so that, while an optimistic patch of key is open,
// its result is the patched value instead of what the source returned. This
// covers cache-driven background refreshes, which bypass Query.
func guardPatched[T any](c *Client, key string, fetch cache.FetchFn[T]) cache.FetchFn[T] {
	return func(ctx context.Context) (T, error) {
		value, err := fetch(ctx)
		if err != nil && !errors.Is(err, cache.ErrNotFound) {
			return value, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if n, _ := c.patches.Load(key); n > 0 {
			if current, ok := cache.Get[T](ctx, c.cache, key); ok {
				c.logger.Debug("fetch overlapped an open patch, keeping patched value", "key", key)
				return current, nil
			}
		}
		return value, err
	}
}

// openPatchLocked and closePatchLocked track patches in progress. Caller
// holds c.mu.
func (c *Client) openPatchLocked(key string) {
	c.patches.Compute(key, func(n int, _ bool) (int, bool) {
		return n + 1, false
	})
}

func (c *Client) closePatchLocked(key string) {
	c.patches.Compute(key, func(n int, _ bool) (int, bool) {
		return n - 1, n <= 1
	})
}

// cancelRefetchLocked re-stamps a stale key so an in-flight refetch started
// before a direct write cannot overwrite it. Caller holds c.mu.
func (c *Client) cancelRefetchLocked(key string) {
	c.stale.Compute(key, func(current uint64, loaded bool) (uint64, bool) {
		if !loaded {
			return 0, true
		}
		return c.generation.Add(1), false
	})
}
