package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fanyicharllson/whichemail/cache"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	return newTestClientWithConfig(t, cache.DefaultConfig())
}

// newRefreshingClient refreshes cached values in the background one
// millisecond after they are written.
func newRefreshingClient(t *testing.T) *Client {
	t.Helper()
	cfg := cache.DefaultConfig()
	cfg.EarlyRefresh = &cache.EarlyRefreshConfig{
		MinAsyncRefreshTime: time.Millisecond,
		MaxAsyncRefreshTime: time.Millisecond,
		SyncRefreshTime:     time.Hour,
		RetryBaseDelay:      time.Millisecond,
	}
	return newTestClientWithConfig(t, cfg)
}

func newTestClientWithConfig(t *testing.T, cfg cache.Config) *Client {
	t.Helper()
	svc, err := cache.NewCacheService(cfg)
	if err != nil {
		t.Fatalf("failed to create cache service: %v", err)
	}
	return New(svc)
}

type countingFetch struct {
	calls int32
	value []string
	err   error
}

func (f *countingFetch) fetch(ctx context.Context) ([]string, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.value, f.err
}

func (f *countingFetch) count() int {
	return int(atomic.LoadInt32(&f.calls))
}

func TestQuery_DisabledNeverFetches(t *testing.T) {
	c := newTestClient(t)
	f := &countingFetch{value: []string{"a"}}

	got, err := Query(context.Background(), c, Spec[[]string]{Key: "services::", Enabled: false, Fetch: f.fetch})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected zero value, got %v", got)
	}
	if f.count() != 0 {
		t.Errorf("expected no fetch, got %d", f.count())
	}
	if len(c.Keys()) != 0 {
		t.Errorf("expected no tracked keys, got %v", c.Keys())
	}
}

func TestQuery_RequiresKeyAndFetch(t *testing.T) {
	c := newTestClient(t)

	if _, err := Query(context.Background(), c, Spec[int]{Enabled: true, Fetch: func(context.Context) (int, error) { return 1, nil }}); err == nil {
		t.Error("expected error for empty key")
	}
	if _, err := Query(context.Background(), c, Spec[int]{Key: "k", Enabled: true}); err == nil {
		t.Error("expected error for nil fetch")
	}
}

func TestQuery_CachesResult(t *testing.T) {
	c := newTestClient(t)
	f := &countingFetch{value: []string{"GitHub"}}
	spec := Spec[[]string]{Key: "services::u1", Enabled: true, Fetch: f.fetch}

	for i := 0; i < 3; i++ {
		got, err := Query(context.Background(), c, spec)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("unexpected value %v", got)
		}
	}
	if f.count() != 1 {
		t.Errorf("expected 1 fetch, got %d", f.count())
	}
}

func TestQuery_NotFoundYieldsZero(t *testing.T) {
	c := newTestClient(t)
	calls := 0
	spec := Spec[*string]{
		Key:     "service::missing",
		Enabled: true,
		Fetch: func(ctx context.Context) (*string, error) {
			calls++
			return nil, cache.ErrNotFound
		},
	}

	for i := 0; i < 2; i++ {
		got, err := Query(context.Background(), c, spec)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	}
	if calls != 1 {
		t.Errorf("expected absence to be cached, got %d fetches", calls)
	}
}

func TestQuery_FetchErrorPropagates(t *testing.T) {
	c := newTestClient(t)
	boom := errors.New("offline")
	f := &countingFetch{err: boom}

	_, err := Query(context.Background(), c, Spec[[]string]{Key: "services::u1", Enabled: true, Fetch: f.fetch})
	if !errors.Is(err, boom) {
		t.Errorf("expected offline error, got %v", err)
	}
}

func TestInvalidate_RefetchesAndKeepsDataMeanwhile(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	f := &countingFetch{value: []string{"v1"}}
	spec := Spec[[]string]{Key: "services::u1", Enabled: true, Fetch: f.fetch}

	if _, err := Query(ctx, c, spec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.Invalidate(ctx, "services::u1")
	if !c.IsStale("services::u1") {
		t.Fatal("expected key to be stale")
	}
	data, ok := GetQueryData[[]string](ctx, c, "services::u1")
	if !ok || data[0] != "v1" {
		t.Errorf("expected stale data to stay readable, got %v", data)
	}

	f.value = []string{"v2"}
	got, err := Query(ctx, c, spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0] != "v2" {
		t.Errorf("expected refetched value v2, got %v", got)
	}
	if c.IsStale("services::u1") {
		t.Error("expected stale mark to be cleared")
	}
	if f.count() != 2 {
		t.Errorf("expected 2 fetches, got %d", f.count())
	}

	got, _ = Query(ctx, c, spec)
	if got[0] != "v2" || f.count() != 2 {
		t.Errorf("expected cached v2 without fetching, got %v after %d fetches", got, f.count())
	}
}

func TestInvalidate_DuringRefetchDiscardsResult(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	key := "services::u1"

	if err := SetQueryData(ctx, c, key, []string{"v1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Invalidate(ctx, key)

	started := make(chan struct{})
	release := make(chan struct{})
	spec := Spec[[]string]{
		Key:     key,
		Enabled: true,
		Fetch: func(ctx context.Context) ([]string, error) {
			close(started)
			<-release
			return []string{"v2"}, nil
		},
	}

	done := make(chan []string)
	go func() {
		got, _ := Query(ctx, c, spec)
		done <- got
	}()

	<-started
	c.Invalidate(ctx, key)
	close(release)

	got := <-done
	if got[0] != "v2" {
		t.Errorf("expected caller to receive v2, got %v", got)
	}
	data, _ := GetQueryData[[]string](ctx, c, key)
	if data[0] != "v1" {
		t.Errorf("expected superseded refetch not to be stored, got %v", data)
	}
	if !c.IsStale(key) {
		t.Error("expected key to remain stale")
	}
}

func TestSetQueryData_CancelsInFlightRefetch(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	key := "services::u1"

	_ = SetQueryData(ctx, c, key, []string{"v1"})
	c.Invalidate(ctx, key)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = Query(ctx, c, Spec[[]string]{
			Key:     key,
			Enabled: true,
			Fetch: func(ctx context.Context) ([]string, error) {
				close(started)
				<-release
				return []string{"server-old"}, nil
			},
		})
	}()

	<-started
	if err := SetQueryData(ctx, c, key, []string{"optimistic"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	close(release)
	<-done

	data, _ := GetQueryData[[]string](ctx, c, key)
	if data[0] != "optimistic" {
		t.Errorf("expected optimistic value to survive, got %v", data)
	}
	if !c.IsStale(key) {
		t.Error("expected key to stay stale after the cancelled refetch")
	}
}

func TestConcurrentQueries_ShareOneFetch(t *testing.T) {
	c := newTestClient(t)
	var calls int32
	release := make(chan struct{})
	spec := Spec[int]{
		Key:     "services::u1",
		Enabled: true,
		Fetch: func(ctx context.Context) (int, error) {
			atomic.AddInt32(&calls, 1)
			<-release
			return 7, nil
		},
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := Query(context.Background(), c, spec); err != nil || v != 7 {
				t.Errorf("unexpected result %v, %v", v, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 fetch, got %d", got)
	}
}

func TestRemoveTag_DropsOnlyTaggedKeys(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_ = SetQueryData(ctx, c, "services::u1", []string{"a"}, "owner::u1")
	_ = SetQueryData(ctx, c, "service::s1", "a", "owner::u1")
	_ = SetQueryData(ctx, c, "services::u2", []string{"b"}, "owner::u2")

	if err := c.RemoveTag(ctx, "owner::u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := GetQueryData[[]string](ctx, c, "services::u1"); ok {
		t.Error("expected services::u1 to be dropped")
	}
	if _, ok := GetQueryData[string](ctx, c, "service::s1"); ok {
		t.Error("expected service::s1 to be dropped")
	}
	if _, ok := GetQueryData[[]string](ctx, c, "services::u2"); !ok {
		t.Error("expected services::u2 to survive")
	}
	if len(c.Keys()) != 1 {
		t.Errorf("expected 1 tracked key, got %v", c.Keys())
	}
}

func TestWithTags_RegistersContextTags(t *testing.T) {
	c := newTestClient(t)
	ctx := WithTags(context.Background(), "owner::u1", "owner::u1", "")

	_, err := Query(ctx, c, Spec[int]{
		Key:     "stats::u1",
		Enabled: true,
		Fetch:   func(context.Context) (int, error) { return 3, nil },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tags := tagsFromContext(ctx); len(tags) != 1 {
		t.Errorf("expected deduplicated tags, got %v", tags)
	}

	_ = c.RemoveTag(context.Background(), "owner::u1")
	if _, ok := GetQueryData[int](context.Background(), c, "stats::u1"); ok {
		t.Error("expected context-tagged key to be dropped")
	}
}

func TestInvalidatePrefix(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_ = SetQueryData(ctx, c, "services::u1", 1)
	_ = SetQueryData(ctx, c, "services::search::git::u1", 2)
	_ = SetQueryData(ctx, c, "service::s1", 3)

	c.InvalidatePrefix(ctx, "services::")

	if !c.IsStale("services::u1") || !c.IsStale("services::search::git::u1") {
		t.Error("expected services keys to be stale")
	}
	if c.IsStale("service::s1") {
		t.Error("expected service::s1 to stay fresh")
	}
}

func TestUpdateQueryData(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	applied, err := UpdateQueryData(ctx, c, "services::u1", func(cur []string) []string {
		return append([]string{"x"}, cur...)
	})
	if err != nil || applied {
		t.Fatalf("expected no update for absent key, got %v, %v", applied, err)
	}

	_ = SetQueryData(ctx, c, "services::u1", []string{"a"})
	applied, err = UpdateQueryData(ctx, c, "services::u1", func(cur []string) []string {
		return append([]string{"x"}, cur...)
	})
	if err != nil || !applied {
		t.Fatalf("expected update, got %v, %v", applied, err)
	}
	data, _ := GetQueryData[[]string](ctx, c, "services::u1")
	if len(data) != 2 || data[0] != "x" {
		t.Errorf("unexpected data %v", data)
	}
}
