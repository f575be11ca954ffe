package cacheinfra

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/viccon/sturdyc"
)

// ErrNotFound is returned by a fetch function to signal that the source has no
// record for the key. When MissingRecordStorage is enabled the miss is cached
// and later reads for the same key return ErrNotFound without fetching.
var ErrNotFound = errors.New("cache: record not found")

// Config holds the configuration for the sturdyc cache adapter.
type Config struct {
	// Capacity defines the maximum number of entries that the cache can store.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	NumShards int

	// TTL is the default time-to-live for cached entries.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EarlyRefresh serves cached entries while refreshing them in the
	// background once they are older than MinAsyncRefreshTime.
	// If nil, early refresh is disabled.
	EarlyRefresh *EarlyRefreshConfig

	// MissingRecordStorage remembers keys whose fetch returned ErrNotFound.
	MissingRecordStorage bool

	// EvictionInterval sets how often the cache checks for expired entries.
	// Zero value uses the default interval.
	EvictionInterval time.Duration
}

// EarlyRefreshConfig configures early refresh behavior.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration
	MaxAsyncRefreshTime time.Duration
	SyncRefreshTime     time.Duration
	RetryBaseDelay      time.Duration
}

// DefaultConfig returns a Config with the defaults used for service reads.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
		EarlyRefresh: &EarlyRefreshConfig{
			MinAsyncRefreshTime: 10 * time.Second,
			MaxAsyncRefreshTime: 20 * time.Second,
			SyncRefreshTime:     30 * time.Second,
			RetryBaseDelay:      100 * time.Millisecond,
		},
		MissingRecordStorage: true,
	}
}

// ToSturdycOptions converts the optional parts of Config to sturdyc options.
// Capacity, NumShards, TTL and EvictionPercentage go to sturdyc.New directly.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// Validate checks if the configuration values are valid. The first failing
// field is reported as a *ConfigError.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required.Error("must be greater than 0"), validation.Min(1).Error("must be greater than 0")),
		validation.Field(&c.NumShards, validation.Required.Error("must be greater than 0"), validation.Min(1).Error("must be greater than 0")),
		validation.Field(&c.TTL, validation.Required.Error("must be greater than 0"), validation.Min(time.Nanosecond).Error("must be greater than 0")),
		validation.Field(&c.EvictionPercentage,
			validation.Required.Error("must be between 1 and 100"),
			validation.Min(1).Error("must be between 1 and 100"),
			validation.Max(100).Error("must be between 1 and 100"),
		),
		validation.Field(&c.EarlyRefresh),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0)).Error("must be non-negative")),
	)
	if err == nil {
		return nil
	}
	return toConfigError(err)
}

// Validate implements validation.Validatable for the nested early refresh block.
func (e EarlyRefreshConfig) Validate() error {
	nonNegative := validation.Min(time.Duration(0)).Error("must be non-negative")
	return validation.ValidateStruct(&e,
		validation.Field(&e.MinAsyncRefreshTime, nonNegative),
		validation.Field(&e.MaxAsyncRefreshTime, nonNegative),
		validation.Field(&e.SyncRefreshTime, nonNegative),
		validation.Field(&e.RetryBaseDelay, nonNegative),
	)
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// toConfigError flattens ozzo validation errors into the first ConfigError,
// ordered by field path so the result is deterministic.
func toConfigError(err error) error {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return &ConfigError{Field: "config", Message: err.Error()}
	}

	flat := map[string]string{}
	flattenValidation("", verrs, flat)

	fields := make([]string, 0, len(flat))
	for f := range flat {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	return &ConfigError{Field: fields[0], Message: flat[fields[0]]}
}

func flattenValidation(prefix string, verrs validation.Errors, out map[string]string) {
	for field, err := range verrs {
		path := field
		if prefix != "" {
			path = prefix + "." + field
		}
		var nested validation.Errors
		if errors.As(err, &nested) {
			flattenValidation(path, nested, out)
			continue
		}
		out[path] = err.Error()
	}
}

// entry is what the sturdyc client stores. Boxing keeps every fetch result a
// concrete type, so a nil value or a failed fetch never reaches sturdyc's
// type assertion as a bare nil interface.
type entry struct {
	value   any
	missing bool
}

// errSettled tells sturdyc that the adapter already stored the fetch outcome.
// sturdyc neither caches nor reports it; GetOrFetch answers from the cache.
var errSettled = errors.New("cache: fetch result already settled")

// SturdycService wraps a sturdyc client providing caching behaviour.
//
// Every write bumps a per-key version. A fetch stores its result only if the
// version it started from is still current, so a slow fetch or a background
// refresh can never overwrite a value written after it began.
type SturdycService struct {
	client       *sturdyc.Client[entry]
	storeMissing bool

	// mu orders writes against the version checks of settling fetches.
	mu       sync.Mutex
	versions *xsync.MapOf[string, uint64]
}

// NewSturdycService validates cfg and builds a sturdyc backed service.
//
// Version compatibility note: this implementation assumes the sturdyc v1.x API.
func NewSturdycService(cfg Config) (*SturdycService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[entry](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &SturdycService{
		client:       client,
		storeMissing: cfg.MissingRecordStorage,
		versions:     xsync.NewMapOf[string, uint64](),
	}, nil
}

// GetOrFetch returns the cached value for key, calling fetchFn on a miss.
// Concurrent calls for the same key share a single in-flight fetch. A fetch
// returning ErrNotFound is remembered as missing when MissingRecordStorage is
// set. Fetch errors are returned as is and never cached.
func (s *SturdycService) GetOrFetch(ctx context.Context, key string, fetchFn func(context.Context) (any, error)) (any, error) {
	if fetchFn == nil {
		return nil, &ConfigError{Field: "fetchFn", Message: "cannot be nil"}
	}

	res, err := s.client.GetOrFetch(ctx, key, s.settle(key, fetchFn))
	switch {
	case errors.Is(err, errSettled):
		if cached, ok := s.client.Get(key); ok {
			res = cached
		}
	case errors.Is(err, sturdyc.ErrOnlyCachedRecords):
		// A synchronous refresh failed; the entry still holds the last value.
	case err != nil:
		return nil, err
	}
	if res.missing {
		return nil, ErrNotFound
	}
	return res.value, nil
}

// settle wraps fetchFn so its outcome is written by the adapter, under the
// version check, instead of by sturdyc.
func (s *SturdycService) settle(key string, fetchFn func(context.Context) (any, error)) sturdyc.FetchFn[entry] {
	return func(ctx context.Context) (entry, error) {
		start, _ := s.versions.LoadOrStore(key, 0)

		v, err := fetchFn(ctx)
		missing := errors.Is(err, ErrNotFound)
		if err != nil && !missing {
			return entry{}, err
		}
		e := entry{value: v, missing: missing}

		s.mu.Lock()
		defer s.mu.Unlock()
		if current, _ := s.versions.Load(key); current != start {
			return e, errSettled
		}
		switch {
		case !missing:
			s.client.Set(key, e)
		case s.storeMissing:
			s.client.Set(key, e)
		default:
			s.client.Delete(key)
		}
		s.bumpLocked(key)
		return e, errSettled
	}
}

// bumpLocked advances the version of key. Caller holds s.mu.
func (s *SturdycService) bumpLocked(key string) {
	s.versions.Compute(key, func(v uint64, _ bool) (uint64, bool) {
		return v + 1, false
	})
}

// Get returns the cached value for key without fetching. Remembered misses
// report false.
func (s *SturdycService) Get(ctx context.Context, key string) (any, bool) {
	e, ok := s.client.Get(key)
	if !ok || e.missing {
		return nil, false
	}
	return e.value, true
}

// Set writes value under key, replacing any cached value or missing record.
func (s *SturdycService) Set(ctx context.Context, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client.Set(key, entry{value: value})
	s.bumpLocked(key)
	return nil
}

// Delete removes a single entry from the cache.
func (s *SturdycService) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client.Delete(key)
	s.bumpLocked(key)
	return nil
}

// DeleteByPrefix removes all entries whose key starts with prefix. Fetches in
// flight for matching keys will not store their results.
func (s *SturdycService) DeleteByPrefix(ctx context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			s.client.Delete(key)
		}
	}
	// Every key ever written or fetched has a version, cached or not.
	var matched []string
	s.versions.Range(func(key string, _ uint64) bool {
		if strings.HasPrefix(key, prefix) {
			matched = append(matched, key)
		}
		return true
	})
	for _, key := range matched {
		s.bumpLocked(key)
	}
	return nil
}

// InvalidateKeys removes multiple entries in one call.
func (s *SturdycService) InvalidateKeys(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		s.client.Delete(key)
		s.bumpLocked(key)
	}
	return nil
}

// Size reports the number of entries currently held.
func (s *SturdycService) Size() int {
	return s.client.Size()
}
