package services

import (
	"context"

	"github.com/fanyicharllson/whichemail/model"
	"github.com/fanyicharllson/whichemail/notify"
	"github.com/fanyicharllson/whichemail/querycache"
)

// ToggleFavorite sets the favorite flag of service id to desired.
//
// The cached list shows desired immediately. When the backend confirms, the
// entry is replaced with the server's copy and the notification is worded
// from the confirmed value. When it fails, the list is restored to the
// snapshot taken before the edit. Either way the list is marked stale once
// the write settles.
//
// Toggles of the same service may overlap. Only the latest one reconciles or
// restores the cache; an earlier response that arrives late changes nothing
// in the cache. A late failure is still reported.
func (c *Client) ToggleFavorite(ctx context.Context, id string, desired bool) (model.Service, error) {
	const failTitle = "Update Failed"

	ctx, owner := c.owner(ctx)
	if owner == "" {
		return model.Service{}, c.mutationFailed(ctx, failTitle, ErrNotAuthenticated)
	}

	listKey := c.keys.List(owner)
	stamp := c.seq.Add(1)
	c.favoriteSeq.Store(id, stamp)

	patch, err := querycache.BeginPatch(ctx, c.qc, listKey, func(cur []model.Service) []model.Service {
		return withFavorite(cur, id, desired)
	})
	if err != nil {
		c.opts.logger.Error("optimistic favorite patch failed", "key", listKey, "error", err)
	}

	svc, writeErr := c.writeFavorite(ctx, id, desired)

	latest := c.isLatestToggle(id, stamp)

	switch {
	case writeErr == nil && latest:
		if patch != nil {
			if err := patch.Commit(ctx, func(cur []model.Service) []model.Service {
				return replace(cur, svc)
			}); err != nil {
				c.opts.logger.Error("reconcile favorite failed", "key", listKey, "error", err)
			}
		}
		c.cacheItem(ctx, svc, c.keys.OwnerTag(owner))
		if svc.IsFavorite {
			notify.Success(ctx, c.notifier, "Added to Favorites", "Quick access from home")
		} else {
			notify.Success(ctx, c.notifier, "Removed from Favorites", "")
		}

	case writeErr == nil:
		c.opts.logger.Debug("superseded favorite toggle ignored", "service_id", id)
		discard(patch)

	case latest:
		if patch != nil {
			snapshot, _ := patch.Snapshot()
			before, found := find(snapshot, id)
			// Edits made to other entries since the snapshot are kept; only this
			// entry is put back.
			if err := patch.RestoreOr(ctx, func(cur []model.Service) []model.Service {
				if !found {
					return cur
				}
				return replace(cur, before)
			}); err != nil {
				c.opts.logger.Error("restore favorite snapshot failed", "key", listKey, "error", err)
			}
		}
		_ = c.mutationFailed(ctx, failTitle, writeErr)

	default:
		discard(patch)
		_ = c.mutationFailed(ctx, failTitle, writeErr)
	}

	c.qc.Invalidate(ctx, listKey)

	if writeErr != nil {
		return model.Service{}, writeErr
	}
	return svc, nil
}

func (c *Client) writeFavorite(ctx context.Context, id string, desired bool) (model.Service, error) {
	data := model.ServicePatch{IsFavorite: model.Bool(desired)}.Data()
	data["updatedAt"] = FormatTimestamp(c.opts.now())

	row, err := c.store.UpdateRow(ctx, c.opts.table, id, data)
	if err != nil {
		return model.Service{}, err
	}
	return MapRow(row), nil
}

func (c *Client) isLatestToggle(id string, stamp uint64) bool {
	current, ok := c.favoriteSeq.Load(id)
	if !ok || current != stamp {
		return false
	}
	// Forget the stamp once its toggle settles unless a newer one replaced it.
	c.favoriteSeq.Compute(id, func(v uint64, loaded bool) (uint64, bool) {
		return v, !loaded || v == stamp
	})
	return true
}

func discard(p *querycache.Patch[[]model.Service]) {
	if p != nil {
		p.Discard()
	}
}

func find(list []model.Service, id string) (model.Service, bool) {
	for _, s := range list {
		if s.ID == id {
			return s, true
		}
	}
	return model.Service{}, false
}
