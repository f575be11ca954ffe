package services

import (
	"context"

	"github.com/fanyicharllson/whichemail/model"
	"github.com/fanyicharllson/whichemail/notify"
	"github.com/fanyicharllson/whichemail/querycache"
	"github.com/fanyicharllson/whichemail/rowstore"
	"github.com/goliatone/go-errors"
)

// Create stores a new service for the signed in user. On success the
// service is prepended to the cached list and cached under its own key.
// Failures leave the cache untouched.
func (c *Client) Create(ctx context.Context, in model.ServiceInput) (model.Service, error) {
	const failTitle = "Failed to add service"

	ctx, owner := c.owner(ctx)
	if owner == "" {
		return model.Service{}, c.mutationFailed(ctx, failTitle, ErrNotAuthenticated)
	}

	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return model.Service{}, c.mutationFailed(ctx, failTitle, errors.FromOzzoValidation(err, err.Error()))
	}

	now := FormatTimestamp(c.opts.now())
	data := in.Data()
	data["ownerId"] = owner
	data["createdAt"] = now
	data["updatedAt"] = now

	row, err := c.store.CreateRow(ctx, c.opts.table, c.opts.newID(), data, rowstore.OwnerPermissions(owner))
	if err != nil {
		return model.Service{}, c.mutationFailed(ctx, failTitle, err)
	}
	svc := MapRow(row)

	listKey := c.keys.List(owner)
	tag := c.keys.OwnerTag(owner)
	if err := querycache.UpsertQueryData(ctx, c.qc, listKey, func(cur []model.Service, exists bool) []model.Service {
		if !exists {
			return []model.Service{svc}
		}
		return prepend(cur, svc)
	}, tag); err != nil {
		c.opts.logger.Error("cache new service failed", "key", listKey, "error", err)
	}
	c.cacheItem(ctx, svc, tag)
	c.settle(ctx, owner)

	c.opts.logger.Info("service created", "service_id", svc.ID, "owner_id", owner)
	notify.Success(ctx, c.notifier, "Service Added", "Your service has been saved")
	return svc, nil
}

// Update applies patch to the service with id. On success the cached list
// entry and item are replaced with the server's copy.
func (c *Client) Update(ctx context.Context, id string, patch model.ServicePatch) (model.Service, error) {
	const failTitle = "Update Failed"

	svc, err := c.update(ctx, id, patch)
	if err != nil {
		return model.Service{}, c.mutationFailed(ctx, failTitle, err)
	}

	notify.Success(ctx, c.notifier, "Service Updated", "Your service details have been saved")
	return svc, nil
}

// update writes patch and reconciles the cache without notifying.
func (c *Client) update(ctx context.Context, id string, patch model.ServicePatch) (model.Service, error) {
	ctx, owner := c.owner(ctx)
	if owner == "" {
		return model.Service{}, ErrNotAuthenticated
	}
	if id == "" {
		return model.Service{}, errors.New("service id is required", errors.CategoryBadInput).
			WithTextCode("SERVICE_ID_REQUIRED")
	}
	if err := patch.Validate(); err != nil {
		return model.Service{}, errors.FromOzzoValidation(err, err.Error())
	}

	data := patch.Data()
	data["updatedAt"] = FormatTimestamp(c.opts.now())

	row, err := c.store.UpdateRow(ctx, c.opts.table, id, data)
	if err != nil {
		return model.Service{}, err
	}
	svc := MapRow(row)

	listKey := c.keys.List(owner)
	if _, err := querycache.UpdateQueryData(ctx, c.qc, listKey, func(cur []model.Service) []model.Service {
		return replace(cur, svc)
	}); err != nil {
		c.opts.logger.Error("cache updated service failed", "key", listKey, "error", err)
	}
	c.cacheItem(ctx, svc, c.keys.OwnerTag(owner))
	c.settle(ctx, owner)

	c.opts.logger.Info("service updated", "service_id", svc.ID, "owner_id", owner)
	return svc, nil
}

// Delete removes the service with id. On success it is filtered out of the
// cached list and its item key is dropped.
func (c *Client) Delete(ctx context.Context, id string) error {
	const failTitle = "Failed to delete service"

	ctx, owner := c.owner(ctx)
	if owner == "" {
		return c.mutationFailed(ctx, failTitle, ErrNotAuthenticated)
	}

	if err := c.store.DeleteRow(ctx, c.opts.table, id); err != nil {
		return c.mutationFailed(ctx, failTitle, err)
	}

	listKey := c.keys.List(owner)
	if _, err := querycache.UpdateQueryData(ctx, c.qc, listKey, func(cur []model.Service) []model.Service {
		return without(cur, id)
	}); err != nil {
		c.opts.logger.Error("cache deleted service failed", "key", listKey, "error", err)
	}
	if err := c.qc.Remove(ctx, c.keys.Item(id)); err != nil {
		c.opts.logger.Error("drop deleted service failed", "service_id", id, "error", err)
	}
	c.settle(ctx, owner)

	c.opts.logger.Info("service deleted", "service_id", id, "owner_id", owner)
	notify.Success(ctx, c.notifier, "Service Deleted", "")
	return nil
}

// mutationFailed logs and notifies a failed write and returns err.
func (c *Client) mutationFailed(ctx context.Context, title string, err error) error {
	kind := Classify(err)
	c.opts.logger.Error("service mutation failed", "title", title, "kind", kind.String(), "error", err)
	notify.Error(ctx, c.notifier, title, UserMessage(err))
	return err
}

func (c *Client) cacheItem(ctx context.Context, svc model.Service, tag string) {
	item := svc
	if err := querycache.SetQueryData(ctx, c.qc, c.keys.Item(svc.ID), &item, tag); err != nil {
		c.opts.logger.Error("cache service failed", "service_id", svc.ID, "error", err)
	}
}

// settle marks the owner's list and every search result stale so the next
// read confirms the patched values with the backend.
func (c *Client) settle(ctx context.Context, owner string) {
	c.qc.Invalidate(ctx, c.keys.List(owner))
	c.qc.InvalidatePrefix(ctx, c.keys.SearchPrefix())
}

// The list helpers below always build a new slice; cached slices are shared
// with readers and snapshots.

func prepend(list []model.Service, svc model.Service) []model.Service {
	out := make([]model.Service, 0, len(list)+1)
	out = append(out, svc)
	return append(out, list...)
}

func replace(list []model.Service, svc model.Service) []model.Service {
	out := make([]model.Service, len(list))
	for i, s := range list {
		if s.ID == svc.ID {
			s = svc
		}
		out[i] = s
	}
	return out
}

func without(list []model.Service, id string) []model.Service {
	out := make([]model.Service, 0, len(list))
	for _, s := range list {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out
}

func withFavorite(list []model.Service, id string, favorite bool) []model.Service {
	out := make([]model.Service, len(list))
	for i, s := range list {
		if s.ID == id {
			s.IsFavorite = favorite
		}
		out[i] = s
	}
	return out
}
