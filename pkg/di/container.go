package di

import (
	"context"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/fanyicharllson/whichemail/cache"
	"github.com/fanyicharllson/whichemail/internal/config"
	"github.com/fanyicharllson/whichemail/internal/database"
	"github.com/fanyicharllson/whichemail/notify"
	"github.com/fanyicharllson/whichemail/querycache"
	"github.com/fanyicharllson/whichemail/rowstore/bunstore"
	"github.com/fanyicharllson/whichemail/services"
	"github.com/fanyicharllson/whichemail/session"
	"github.com/fanyicharllson/whichemail/vault"
)

// Container wires the data layer: the cache services, the bun backed row
// store and vault, the session and the services client.
type Container struct {
	config        config.Config
	cacheConfig   cache.Config
	cacheService  cache.CacheService
	sessionCache  cache.CacheService
	keySerializer cache.KeySerializer
	queryCache    *querycache.Client
	session       *session.Session
	db            *bun.DB
	ownsDB        bool
	store         *bunstore.Store
	vault         *vault.Vault
	services      *services.Client
	logger        *slog.Logger
}

// Option customizes a Container.
type Option func(*options)

type options struct {
	logger       *slog.Logger
	notifier     notify.Notifier
	resolver     session.Resolver
	db           *bun.DB
	cacheConfig  *cache.Config
	vaultOptions []vault.Option
	serviceOpts  []services.Option
}

// WithLogger sets the logger passed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithNotifier replaces the default logging notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithResolver replaces the resolver built from the configured user.
func WithResolver(r session.Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithDB uses an already open database instead of opening one from the
// configuration. The container does not close it.
func WithDB(db *bun.DB) Option {
	return func(o *options) { o.db = db }
}

// WithCacheConfig overrides the service cache configuration. The configured
// cache TTL is still applied.
func WithCacheConfig(cfg cache.Config) Option {
	return func(o *options) { o.cacheConfig = &cfg }
}

// WithVaultOptions passes options to vault.Open.
func WithVaultOptions(opts ...vault.Option) Option {
	return func(o *options) { o.vaultOptions = append(o.vaultOptions, opts...) }
}

// WithServiceOptions passes options to services.NewClient.
func WithServiceOptions(opts ...services.Option) Option {
	return func(o *options) { o.serviceOpts = append(o.serviceOpts, opts...) }
}

// NewContainer builds every component from cfg. The vault is opened only
// when cfg carries a passphrase.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (*Container, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cacheCfg := cache.DefaultConfig()
	if o.cacheConfig != nil {
		cacheCfg = *o.cacheConfig
	}
	cacheCfg = cacheCfg.WithTTL(cfg.CacheTTL)

	cacheService, err := cache.NewCacheService(cacheCfg)
	if err != nil {
		return nil, err
	}
	sessionCache, err := cache.NewCacheService(cache.SessionConfig(cache.DefaultSessionTTL))
	if err != nil {
		return nil, err
	}

	c := &Container{
		config:        cfg,
		cacheConfig:   cacheCfg,
		cacheService:  cacheService,
		sessionCache:  sessionCache,
		keySerializer: cache.NewDefaultKeySerializer(),
		logger:        o.logger,
		db:            o.db,
	}

	if c.db == nil {
		db, err := database.Open(ctx, cfg.DBDriver, cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		c.db = db
		c.ownsDB = true
	}

	c.store = bunstore.New(c.db,
		bunstore.WithValidator(services.ServicesTable, services.ValidateRow),
		bunstore.WithLogger(o.logger),
	)
	if err := c.store.CreateSchema(ctx); err != nil {
		c.Close()
		return nil, err
	}

	if cfg.VaultPassphrase != "" {
		vopts := append([]vault.Option{vault.WithLogger(o.logger)}, o.vaultOptions...)
		v, err := vault.Open(ctx, c.db, cfg.VaultPassphrase, vopts...)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.vault = v
	}

	resolver := o.resolver
	if resolver == nil {
		resolver = StaticUser(cfg.UserID, cfg.UserEmail)
	}
	c.session = session.New(resolver, sessionCache, session.WithLogger(o.logger))
	c.queryCache = querycache.New(cacheService, querycache.WithLogger(o.logger))

	notifier := o.notifier
	if notifier == nil {
		notifier = notify.NewLogger(o.logger)
	}
	sopts := append([]services.Option{services.WithLogger(o.logger)}, o.serviceOpts...)
	c.services = services.NewClient(c.store, c.session, c.queryCache, notifier, sopts...).
		WithKeys(services.NewKeys(c.keySerializer))
	if c.vault != nil {
		c.services.WithCredentials(c.vault)
	}
	c.session.OnSwitch(c.services.HandleOwnerSwitch)

	return c, nil
}

// StaticUser resolves to a fixed user, or to signed out when id is empty.
func StaticUser(id, email string) session.Resolver {
	return session.ResolverFunc(func(context.Context) (*session.User, error) {
		if id == "" {
			return nil, nil
		}
		return &session.User{ID: id, Email: email}, nil
	})
}

// Config returns the application configuration.
func (c *Container) Config() config.Config {
	return c.config
}

// CacheConfig returns the effective service cache configuration.
func (c *Container) CacheConfig() cache.Config {
	return c.cacheConfig
}

// CacheService returns the cache behind the query cache.
func (c *Container) CacheService() cache.CacheService {
	return c.cacheService
}

// KeySerializer returns the serializer used for service cache keys.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

func (c *Container) QueryCache() *querycache.Client { return c.queryCache }

func (c *Container) Session() *session.Session { return c.session }

func (c *Container) DB() *bun.DB { return c.db }

func (c *Container) Store() *bunstore.Store { return c.store }

// Vault returns the password vault, or nil when no passphrase was set.
func (c *Container) Vault() *vault.Vault { return c.vault }

func (c *Container) Services() *services.Client { return c.services }

// Close releases the database when the container opened it.
func (c *Container) Close() error {
	if c.db == nil || !c.ownsDB {
		return nil
	}
	return c.db.Close()
}
