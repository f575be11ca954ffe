package querycache

import (
	"context"
	"reflect"
	"sync"

	"github.com/fanyicharllson/whichemail/cache"
)

// Patch is an optimistic edit of one cached value. BeginPatch snapshots the
// value and applies the edit; the owner then calls exactly one of Commit or
// Restore once the write it anticipates has settled.
type Patch[T any] struct {
	client   *Client
	key      string
	snapshot T
	applied  T
	existed  bool

	once sync.Once
}

// BeginPatch cancels any refetch in flight for key, snapshots its value and
// stores apply(snapshot). With nothing cached, no edit is made and Restore
// will leave the key empty. Until the patch ends, fetches of key, background
// refreshes included, yield the cached value rather than the source's.
func BeginPatch[T any](ctx context.Context, c *Client, key string, apply func(current T) T) (*Patch[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := &Patch[T]{client: c, key: key}
	c.cancelRefetchLocked(key)
	c.openPatchLocked(key)

	current, ok := cache.Get[T](ctx, c.cache, key)
	if !ok {
		return p, nil
	}
	p.snapshot = current
	p.applied = apply(current)
	p.existed = true
	c.trackKey(key)
	return p, c.cache.Set(ctx, key, p.applied)
}

// Snapshot returns the value captured before the edit.
func (p *Patch[T]) Snapshot() (T, bool) {
	return p.snapshot, p.existed
}

// Key returns the patched key.
func (p *Patch[T]) Key() string {
	return p.key
}

// Commit reconciles the patched value with the confirmed result. reconcile
// receives the value currently cached, which may include later edits.
func (p *Patch[T]) Commit(ctx context.Context, reconcile func(current T) T) error {
	var err error
	p.once.Do(func() {
		c := p.client
		c.mu.Lock()
		defer c.mu.Unlock()
		c.closePatchLocked(p.key)

		current, ok := cache.Get[T](ctx, c.cache, p.key)
		if !ok {
			return
		}
		c.cancelRefetchLocked(p.key)
		err = c.cache.Set(ctx, p.key, reconcile(current))
	})
	return err
}

// Restore puts the snapshot back verbatim.
func (p *Patch[T]) Restore(ctx context.Context) error {
	var err error
	p.once.Do(func() {
		c := p.client
		c.mu.Lock()
		defer c.mu.Unlock()
		c.closePatchLocked(p.key)

		c.cancelRefetchLocked(p.key)
		if !p.existed {
			err = c.cache.Delete(ctx, p.key)
			return
		}
		err = c.cache.Set(ctx, p.key, p.snapshot)
	})
	return err
}

// RestoreOr puts the snapshot back when the cached value is still the one
// the patch stored. If something else changed it since, fallback(current) is
// stored instead so those changes survive.
func (p *Patch[T]) RestoreOr(ctx context.Context, fallback func(current T) T) error {
	var err error
	p.once.Do(func() {
		c := p.client
		c.mu.Lock()
		defer c.mu.Unlock()
		c.closePatchLocked(p.key)

		c.cancelRefetchLocked(p.key)
		current, ok := cache.Get[T](ctx, c.cache, p.key)
		switch {
		case !p.existed && !ok:
		case !p.existed:
			err = c.cache.Set(ctx, p.key, fallback(current))
		case ok && reflect.DeepEqual(current, p.applied):
			err = c.cache.Set(ctx, p.key, p.snapshot)
		case ok:
			err = c.cache.Set(ctx, p.key, fallback(current))
		default:
			err = c.cache.Set(ctx, p.key, p.snapshot)
		}
	})
	return err
}

// Discard ends the patch without touching the cache.
func (p *Patch[T]) Discard() {
	p.once.Do(func() {
		c := p.client
		c.mu.Lock()
		defer c.mu.Unlock()
		c.closePatchLocked(p.key)
	})
}

// Patching reports whether an optimistic patch of key is in progress.
func (c *Client) Patching(key string) bool {
	n, _ := c.patches.Load(key)
	return n > 0
}
