package services

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/fanyicharllson/whichemail/cache"
	"github.com/fanyicharllson/whichemail/model"
	"github.com/fanyicharllson/whichemail/notify"
	"github.com/fanyicharllson/whichemail/querycache"
	"github.com/fanyicharllson/whichemail/rowstore"
	"github.com/puzpuzpuz/xsync/v3"
)

// OwnerSource resolves the id of the signed in user, or "".
type OwnerSource interface {
	OwnerID(ctx context.Context) string
}

// CredentialStore keeps service passwords out of the row store.
type CredentialStore interface {
	Set(ctx context.Context, serviceID, secret string) error
	Delete(ctx context.Context, serviceID string) error
	DeleteMany(ctx context.Context, serviceIDs []string) (int, error)
}

// Client is the cache-bound access layer for services: reads go through the
// query cache, writes update the backend and then the cache.
type Client struct {
	store       rowstore.Store
	queries     *Queries
	owners      OwnerSource
	qc          *querycache.Client
	notifier    notify.Notifier
	credentials CredentialStore
	keys        Keys
	opts        options

	// favoriteSeq holds the stamp of the latest toggle per service id.
	favoriteSeq *xsync.MapOf[string, uint64]
	seq         atomic.Uint64
}

// NewClient wires a Client. notifier may be nil to drop notifications.
func NewClient(store rowstore.Store, owners OwnerSource, qc *querycache.Client, notifier notify.Notifier, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Client{
		store:       store,
		queries:     &Queries{store: store, notifier: notifier, opts: o},
		owners:      owners,
		qc:          qc,
		notifier:    notifier,
		keys:        NewKeys(nil),
		opts:        o,
		favoriteSeq: xsync.NewMapOf[string, uint64](),
	}
}

// WithCredentials attaches the password store used by the password
// operations and returns c.
func (c *Client) WithCredentials(store CredentialStore) *Client {
	c.credentials = store
	return c
}

// WithKeys replaces the key builder and returns c.
func (c *Client) WithKeys(keys Keys) *Client {
	c.keys = keys
	return c
}

// Keys returns the key builder in use.
func (c *Client) Keys() Keys {
	return c.keys
}

// Queries returns the uncached queries.
func (c *Client) Queries() *Queries {
	return c.queries
}

// HandleOwnerSwitch drops every key cached for the previous owner. Register
// it with the session so data never leaks across accounts.
func (c *Client) HandleOwnerSwitch(ctx context.Context, previous, current string) {
	if previous == "" {
		return
	}
	if err := c.qc.RemoveTag(ctx, c.keys.OwnerTag(previous)); err != nil {
		c.opts.logger.Error("drop cached services of previous owner failed",
			"owner_id", previous, "error", err)
	}
}

// owner resolves the current owner and returns a context acting as them.
func (c *Client) owner(ctx context.Context) (context.Context, string) {
	owner := c.owners.OwnerID(ctx)
	if owner != "" {
		ctx = rowstore.WithActor(ctx, owner)
	}
	return ctx, owner
}

// Services returns the signed in user's services, newest first. Signed out
// users get an empty result without a backend call.
func (c *Client) Services(ctx context.Context) ([]model.Service, error) {
	ctx, owner := c.owner(ctx)
	return querycache.Query(ctx, c.qc, querycache.Spec[[]model.Service]{
		Key:     c.keys.List(owner),
		Enabled: owner != "",
		Tags:    []string{c.keys.OwnerTag(owner)},
		Fetch: func(ctx context.Context) ([]model.Service, error) {
			return c.queries.FetchList(ctx, owner)
		},
	})
}

// Service returns one service, or nil when id is empty or nothing exists.
func (c *Client) Service(ctx context.Context, id string) (*model.Service, error) {
	ctx, owner := c.owner(ctx)
	return querycache.Query(ctx, c.qc, querycache.Spec[*model.Service]{
		Key:     c.keys.Item(id),
		Enabled: id != "",
		Tags:    []string{c.keys.OwnerTag(owner)},
		Fetch: func(ctx context.Context) (*model.Service, error) {
			svc := c.queries.FetchByID(ctx, id)
			if svc == nil {
				return nil, cache.ErrNotFound
			}
			return svc, nil
		},
	})
}

// Search returns the user's services whose name or email contains text.
func (c *Client) Search(ctx context.Context, text string) ([]model.Service, error) {
	ctx, owner := c.owner(ctx)
	text = strings.TrimSpace(text)
	return querycache.Query(ctx, c.qc, querycache.Spec[[]model.Service]{
		Key:     c.keys.Search(text, owner),
		Enabled: owner != "" && text != "",
		Tags:    []string{c.keys.OwnerTag(owner)},
		Fetch: func(ctx context.Context) ([]model.Service, error) {
			return c.queries.Search(ctx, text, owner)
		},
	})
}

// Favorites returns the user's favorite services, served from the list read.
func (c *Client) Favorites(ctx context.Context) ([]model.Service, error) {
	list, err := c.Services(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Service, 0, len(list))
	for _, s := range list {
		if s.IsFavorite {
			out = append(out, s)
		}
	}
	return out, nil
}

// Refresh marks every read of the current owner stale.
func (c *Client) Refresh(ctx context.Context) {
	_, owner := c.owner(ctx)
	if owner == "" {
		return
	}
	c.qc.Invalidate(ctx, c.keys.List(owner))
	c.qc.InvalidatePrefix(ctx, c.keys.SearchPrefix())
}
