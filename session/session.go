package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fanyicharllson/whichemail/cache"
	"github.com/goliatone/go-errors"
)

// FreshFor is how long a resolved user is reused before resolving again.
const FreshFor = cache.DefaultSessionTTL

const currentUserKey = "session::current_user"

// User is the signed in account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Resolver looks up the signed in user. It returns nil, nil when signed out.
type Resolver interface {
	CurrentUser(ctx context.Context) (*User, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context) (*User, error)

// CurrentUser calls f.
func (f ResolverFunc) CurrentUser(ctx context.Context) (*User, error) { return f(ctx) }

// SwitchFunc is called when the owning user changes. previous or current
// may be empty for sign in and sign out.
type SwitchFunc func(ctx context.Context, previous, current string)

// Session caches the current user and reports owner switches.
type Session struct {
	resolver Resolver
	cache    cache.CacheService
	logger   *slog.Logger

	mu        sync.Mutex
	lastOwner string
	listeners []SwitchFunc
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger for resolver failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds a Session. cacheService should hold entries for FreshFor.
func New(resolver Resolver, cacheService cache.CacheService, opts ...Option) *Session {
	s := &Session{
		resolver: resolver,
		cache:    cacheService,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentUser returns the signed in user, or nil. Resolver errors are logged
// and treated as signed out.
func (s *Session) CurrentUser(ctx context.Context) *User {
	user, err := cache.GetOrFetch(ctx, s.cache, currentUserKey, func(ctx context.Context) (*User, error) {
		u, err := s.resolver.CurrentUser(ctx)
		if err != nil {
			return nil, err
		}
		if u == nil || u.ID == "" {
			return nil, cache.ErrNotFound
		}
		return u, nil
	})
	if err != nil && !errors.Is(err, cache.ErrNotFound) {
		s.logger.Warn("resolve current user failed", "error", err)
	}
	if err != nil {
		user = nil
	}

	s.observe(ctx, ownerOf(user))
	return user
}

// OwnerID returns the id of the signed in user, or "".
func (s *Session) OwnerID(ctx context.Context) string {
	return ownerOf(s.CurrentUser(ctx))
}

// Invalidate forgets the cached user, e.g. after sign in or sign out. The
// next lookup resolves again and reports a switch if the owner changed.
func (s *Session) Invalidate(ctx context.Context) error {
	return s.cache.Delete(ctx, currentUserKey)
}

// OnSwitch registers fn to run whenever the owner changes.
func (s *Session) OnSwitch(fn SwitchFunc) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// observe records owner and notifies listeners when it differs from the
// previous one.
func (s *Session) observe(ctx context.Context, owner string) {
	s.mu.Lock()
	previous := s.lastOwner
	if previous == owner {
		s.mu.Unlock()
		return
	}
	s.lastOwner = owner
	listeners := append([]SwitchFunc(nil), s.listeners...)
	s.mu.Unlock()

	s.logger.Debug("owner switched", "previous_owner_id", previous, "owner_id", owner)
	for _, fn := range listeners {
		fn(ctx, previous, owner)
	}
}

func ownerOf(u *User) string {
	if u == nil {
		return ""
	}
	return u.ID
}
