package cache

import (
	"time"

	"github.com/fanyicharllson/whichemail/internal/cacheinfra"
)

// DefaultSessionTTL is how long a resolved current user stays cached.
const DefaultSessionTTL = 5 * time.Minute

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	Capacity             int
	NumShards            int
	TTL                  time.Duration
	EvictionPercentage   int
	EarlyRefresh         *EarlyRefreshConfig
	MissingRecordStorage bool
	EvictionInterval     time.Duration
}

// EarlyRefreshConfig mirrors the underlying sturdyc early refresh options.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration
	MaxAsyncRefreshTime time.Duration
	SyncRefreshTime     time.Duration
	RetryBaseDelay      time.Duration
}

// DefaultConfig returns the configuration used for service reads.
func DefaultConfig() Config {
	return fromInternal(cacheinfra.DefaultConfig())
}

// SessionConfig returns a small cache for the current-user lookup: a handful
// of entries, plain expiry after ttl, no background refresh.
func SessionConfig(ttl time.Duration) Config {
	return Config{
		Capacity:           16,
		NumShards:          1,
		TTL:                ttl,
		EvictionPercentage: 50,
	}
}

// WithTTL returns a copy of c using ttl. Early refresh windows are scaled so
// they stay inside the new lifetime.
func (c Config) WithTTL(ttl time.Duration) Config {
	c.TTL = ttl
	if c.EarlyRefresh != nil {
		er := *c.EarlyRefresh
		if er.SyncRefreshTime > ttl {
			er.MinAsyncRefreshTime = ttl / 3
			er.MaxAsyncRefreshTime = ttl / 2
			er.SyncRefreshTime = ttl
		}
		c.EarlyRefresh = &er
	}
	return c
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

// NewCacheService constructs the sturdyc backed cache service.
func NewCacheService(cfg Config) (CacheService, error) {
	return cacheinfra.NewSturdycService(cfg.toInternal())
}

func (c Config) toInternal() cacheinfra.Config {
	out := cacheinfra.Config{
		Capacity:             c.Capacity,
		NumShards:            c.NumShards,
		TTL:                  c.TTL,
		EvictionPercentage:   c.EvictionPercentage,
		MissingRecordStorage: c.MissingRecordStorage,
		EvictionInterval:     c.EvictionInterval,
	}
	if c.EarlyRefresh != nil {
		out.EarlyRefresh = &cacheinfra.EarlyRefreshConfig{
			MinAsyncRefreshTime: c.EarlyRefresh.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: c.EarlyRefresh.MaxAsyncRefreshTime,
			SyncRefreshTime:     c.EarlyRefresh.SyncRefreshTime,
			RetryBaseDelay:      c.EarlyRefresh.RetryBaseDelay,
		}
	}
	return out
}

func fromInternal(cfg cacheinfra.Config) Config {
	out := Config{
		Capacity:             cfg.Capacity,
		NumShards:            cfg.NumShards,
		TTL:                  cfg.TTL,
		EvictionPercentage:   cfg.EvictionPercentage,
		MissingRecordStorage: cfg.MissingRecordStorage,
		EvictionInterval:     cfg.EvictionInterval,
	}
	if cfg.EarlyRefresh != nil {
		out.EarlyRefresh = &EarlyRefreshConfig{
			MinAsyncRefreshTime: cfg.EarlyRefresh.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: cfg.EarlyRefresh.MaxAsyncRefreshTime,
			SyncRefreshTime:     cfg.EarlyRefresh.SyncRefreshTime,
			RetryBaseDelay:      cfg.EarlyRefresh.RetryBaseDelay,
		}
	}
	return out
}
