package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fanyicharllson/whichemail/cache"
	"github.com/fanyicharllson/whichemail/model"
	"github.com/fanyicharllson/whichemail/notify"
	"github.com/fanyicharllson/whichemail/pkg/testsupport"
	"github.com/fanyicharllson/whichemail/querycache"
	"github.com/fanyicharllson/whichemail/rowstore"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	store    *testsupport.MemoryRowStore
	owner    *testsupport.Owner
	qc       *querycache.Client
	recorder *notify.Recorder
	client   *Client
}

func newHarness(t *testing.T, ownerID string) *harness {
	t.Helper()
	return newHarnessWithStore(t, ownerID, testsupport.NewMemoryRowStore(), nil)
}

func newHarnessWithStore(t *testing.T, ownerID string, mem *testsupport.MemoryRowStore, store rowstore.Store) *harness {
	t.Helper()
	return newHarnessWithConfig(t, ownerID, cache.DefaultConfig(), mem, store)
}

// newRefreshingHarness refreshes cached reads in the background one
// millisecond after they are written.
func newRefreshingHarness(t *testing.T, ownerID string) *harness {
	t.Helper()
	cfg := cache.DefaultConfig()
	cfg.EarlyRefresh = &cache.EarlyRefreshConfig{
		MinAsyncRefreshTime: time.Millisecond,
		MaxAsyncRefreshTime: time.Millisecond,
		SyncRefreshTime:     time.Hour,
		RetryBaseDelay:      time.Millisecond,
	}
	return newHarnessWithConfig(t, ownerID, cfg, testsupport.NewMemoryRowStore(), nil)
}

func newHarnessWithConfig(t *testing.T, ownerID string, cfg cache.Config, mem *testsupport.MemoryRowStore, store rowstore.Store) *harness {
	t.Helper()

	svc, err := cache.NewCacheService(cfg)
	if err != nil {
		t.Fatalf("failed to create cache service: %v", err)
	}
	if store == nil {
		store = mem
	}

	var seq atomic.Int64
	h := &harness{
		store:    mem,
		owner:    testsupport.NewOwner(ownerID),
		qc:       querycache.New(svc),
		recorder: &notify.Recorder{},
	}
	h.client = NewClient(store, h.owner, h.qc, h.recorder,
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string { return fmt.Sprintf("new-%d", seq.Add(1)) }),
	)
	return h
}

// seed stores a service row owned by owner. Rows seeded later are newer.
func (h *harness) seed(owner, id, name, email string, extra map[string]any) {
	data := map[string]any{
		"serviceName": name,
		"email":       email,
		"ownerId":     owner,
		"categoryId":  "general",
		"hasPassword": false,
		"isFavorite":  false,
	}
	for k, v := range extra {
		data[k] = v
	}
	h.store.Seed(ServicesTable, rowstore.Row{ID: id, Data: data}, rowstore.OwnerPermissions(owner))
}

func (h *harness) cachedList(t *testing.T, owner string) []model.Service {
	t.Helper()
	list, ok := querycache.GetQueryData[[]model.Service](context.Background(), h.qc, h.client.Keys().List(owner))
	if !ok {
		t.Fatalf("list of %q is not cached", owner)
	}
	return list
}

func (h *harness) notifications() []notify.Notification {
	return h.recorder.All()
}

func ids(list []model.Service) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.ID
	}
	return out
}

func byID(list []model.Service, id string) (model.Service, bool) {
	for _, s := range list {
		if s.ID == id {
			return s, true
		}
	}
	return model.Service{}, false
}
