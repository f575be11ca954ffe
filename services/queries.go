package services

import (
	"context"
	"strings"

	"github.com/fanyicharllson/whichemail/model"
	"github.com/fanyicharllson/whichemail/notify"
	"github.com/fanyicharllson/whichemail/rowstore"
	"github.com/goliatone/go-errors"
)

// Queries are the uncached reads against the backend row store.
type Queries struct {
	store    rowstore.Store
	notifier notify.Notifier
	opts     options
}

// NewQueries builds Queries over store. Read failures are reported to notifier.
func NewQueries(store rowstore.Store, notifier notify.Notifier, opts ...Option) *Queries {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Queries{store: store, notifier: notifier, opts: o}
}

// listQuery selects every service of ownerID, newest first.
func listQuery(ownerID string, extra ...rowstore.Filter) rowstore.Query {
	filters := append([]rowstore.Filter{rowstore.Equal("ownerId", ownerID)}, extra...)
	return rowstore.NewQuery(filters...).OrderDesc(rowstore.FieldCreatedAt)
}

// FetchList returns the services of ownerID, newest first. An empty owner
// yields an empty list without a backend call. Failures are notified and
// returned.
func (q *Queries) FetchList(ctx context.Context, ownerID string) ([]model.Service, error) {
	if ownerID == "" {
		return []model.Service{}, nil
	}
	if rowstore.ActorFrom(ctx) == "" {
		ctx = rowstore.WithActor(ctx, ownerID)
	}

	rows, err := q.store.ListRows(ctx, q.opts.table, listQuery(ownerID))
	if err != nil {
		q.opts.logger.Error("fetch services failed", "owner_id", ownerID, "error", err)
		notify.Error(ctx, q.notifier, "Failed to load services", readMessage(err))
		return nil, err
	}
	return MapRows(rows), nil
}

// FetchByID returns the service with id, or nil when it does not exist or
// cannot be loaded. Every failure, a missing row included, is notified and
// never returned.
func (q *Queries) FetchByID(ctx context.Context, id string) *model.Service {
	if id == "" {
		return nil
	}

	row, err := q.store.GetRow(ctx, q.opts.table, id)
	if err != nil {
		if errors.IsNotFound(err) {
			q.opts.logger.Debug("service not found", "service_id", id)
		} else {
			q.opts.logger.Error("fetch service failed", "service_id", id, "error", err)
		}
		notify.Error(ctx, q.notifier, "Failed to load service", readMessage(err))
		return nil
	}

	svc := MapRow(row)
	return &svc
}

// Search returns the services of ownerID whose name or email contains text,
// ignoring case. When the backend search fails it falls back to filtering the
// full list locally; both paths return the same set.
func (q *Queries) Search(ctx context.Context, text, ownerID string) ([]model.Service, error) {
	text = strings.TrimSpace(text)
	if text == "" || ownerID == "" {
		return []model.Service{}, nil
	}
	if rowstore.ActorFrom(ctx) == "" {
		ctx = rowstore.WithActor(ctx, ownerID)
	}

	query := listQuery(ownerID, rowstore.Or(
		rowstore.Search("serviceName", text),
		rowstore.Search("email", text),
	))
	rows, err := q.store.ListRows(ctx, q.opts.table, query)
	if err == nil {
		return MapRows(rows), nil
	}

	q.opts.logger.Warn("backend search failed, filtering locally",
		"owner_id", ownerID, "query", text, "error", err)

	all, err := q.FetchList(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return FilterServices(all, text), nil
}

// FilterServices keeps the services whose name or email contains text,
// ignoring case, in their original order.
func FilterServices(list []model.Service, text string) []model.Service {
	needle := strings.ToLower(strings.TrimSpace(text))
	out := make([]model.Service, 0, len(list))
	for _, s := range list {
		if strings.Contains(strings.ToLower(s.ServiceName), needle) ||
			strings.Contains(strings.ToLower(s.Email), needle) {
			out = append(out, s)
		}
	}
	return out
}
