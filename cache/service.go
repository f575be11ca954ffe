package cache

import (
	"context"
	"errors"

	"github.com/fanyicharllson/whichemail/internal/cacheinfra"
)

// ErrNotFound marks a fetch that found nothing at the source. Fetch functions
// return it so the miss can be remembered; GetOrFetch returns it to callers.
var ErrNotFound = cacheinfra.ErrNotFound

// ErrInvalidResultType is returned when a cached value does not have the type
// the caller asked for. It usually means two readers share a key by mistake.
var ErrInvalidResultType = errors.New("cache: cached value has unexpected type")

// FetchFn is the function signature CacheService expects when fetching from the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// CacheService is the key-value store behind every cached read.
type CacheService interface {
	GetOrFetch(ctx context.Context, key string, fetchFn func(context.Context) (any, error)) (any, error)
	Get(ctx context.Context, key string) (any, bool)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// GetOrFetch is a type-safe wrapper around CacheService.GetOrFetch.
// A nil cached value yields the zero value of T.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, fetchFn FetchFn[T]) (T, error) {
	var zero T
	result, err := service.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetchFn(ctx)
	})
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, ErrInvalidResultType
	}
	return typed, nil
}

// Get returns the cached value for key when it exists and has type T.
func Get[T any](ctx context.Context, service CacheService, key string) (T, bool) {
	var zero T
	result, ok := service.Get(ctx, key)
	if !ok || result == nil {
		return zero, false
	}
	typed, ok := result.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
