package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

// mockCacheService returns canned values and records the last key it saw.
type mockCacheService struct {
	result  any
	err     error
	lastKey string
	store   map[string]any
}

func (m *mockCacheService) GetOrFetch(ctx context.Context, key string, fetchFn func(context.Context) (any, error)) (any, error) {
	m.lastKey = key
	return m.result, m.err
}

func (m *mockCacheService) Get(ctx context.Context, key string) (any, bool) {
	v, ok := m.store[key]
	return v, ok
}

func (m *mockCacheService) Set(ctx context.Context, key string, value any) error {
	if m.store == nil {
		m.store = map[string]any{}
	}
	m.store[key] = value
	return nil
}

func (m *mockCacheService) Delete(ctx context.Context, key string) error {
	delete(m.store, key)
	return nil
}

func (m *mockCacheService) DeleteByPrefix(ctx context.Context, prefix string) error {
	return nil
}

func TestGetOrFetch_NilResultReturnsZeroValue(t *testing.T) {
	mock := &mockCacheService{result: nil}

	type Lister interface{ List() []string }

	result, err := GetOrFetch[Lister](context.Background(), mock, "services::u1", func(ctx context.Context) (Lister, error) {
		return nil, nil
	})
	if err != nil {
		t.Errorf("expected no error but got: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result but got: %v", result)
	}
}

func TestGetOrFetch_TypedNilPointer(t *testing.T) {
	mock := &mockCacheService{result: (*string)(nil)}

	result, err := GetOrFetch[*string](context.Background(), mock, "service::s1", func(ctx context.Context) (*string, error) {
		return nil, nil
	})
	if err != nil {
		t.Errorf("expected no error but got: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result but got: %v", result)
	}
}

func TestGetOrFetch_TypeAssertionFailure(t *testing.T) {
	mock := &mockCacheService{result: "wrong-type"}

	result, err := GetOrFetch[int](context.Background(), mock, "k", func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if !errors.Is(err, ErrInvalidResultType) {
		t.Errorf("expected ErrInvalidResultType but got: %v", err)
	}
	if result != 0 {
		t.Errorf("expected zero value but got: %v", result)
	}
}

func TestGetOrFetch_PropagatesError(t *testing.T) {
	mock := &mockCacheService{err: ErrNotFound}

	_, err := GetOrFetch[string](context.Background(), mock, "service::missing", func(ctx context.Context) (string, error) {
		return "", ErrNotFound
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound but got: %v", err)
	}
	if mock.lastKey != "service::missing" {
		t.Errorf("expected key service::missing, got %q", mock.lastKey)
	}
}

func TestGet_Typed(t *testing.T) {
	mock := &mockCacheService{}
	ctx := context.Background()
	_ = mock.Set(ctx, "names", []string{"a", "b"})

	names, ok := Get[[]string](ctx, mock, "names")
	if !ok {
		t.Fatal("expected cached value")
	}
	if len(names) != 2 {
		t.Errorf("expected 2 names, got %d", len(names))
	}

	if _, ok := Get[int](ctx, mock, "names"); ok {
		t.Error("expected type mismatch to report a miss")
	}
	if _, ok := Get[[]string](ctx, mock, "absent"); ok {
		t.Error("expected absent key to report a miss")
	}
}

func TestSturdycService_RoundTrip(t *testing.T) {
	svc, err := NewCacheService(DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	calls := 0
	fetch := func(ctx context.Context) ([]string, error) {
		calls++
		return []string{"GitHub"}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := GetOrFetch(ctx, svc, "services::u1", fetch)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0] != "GitHub" {
			t.Errorf("unexpected value %v", got)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 fetch, got %d", calls)
	}

	if err := svc.Set(ctx, "services::u1", []string{"Netflix"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := Get[[]string](ctx, svc, "services::u1")
	if !ok || got[0] != "Netflix" {
		t.Errorf("expected Set to replace value, got %v", got)
	}

	if err := svc.DeleteByPrefix(ctx, "services::"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := svc.Get(ctx, "services::u1"); ok {
		t.Error("expected key to be removed by prefix")
	}
}

func TestSturdycService_MissingRecord(t *testing.T) {
	svc, err := NewCacheService(DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	calls := 0
	fetch := func(ctx context.Context) (string, error) {
		calls++
		return "", ErrNotFound
	}

	for i := 0; i < 2; i++ {
		if _, err := GetOrFetch(ctx, svc, "service::gone", fetch); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("expected the miss to be remembered, got %d fetches", calls)
	}
}

func TestConfig_WithTTL(t *testing.T) {
	cfg := DefaultConfig().WithTTL(15 * time.Second)

	if cfg.TTL != 15*time.Second {
		t.Errorf("expected TTL 15s, got %v", cfg.TTL)
	}
	if cfg.EarlyRefresh.SyncRefreshTime > cfg.TTL {
		t.Errorf("expected sync refresh inside TTL, got %v", cfg.EarlyRefresh.SyncRefreshTime)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}

	if DefaultConfig().EarlyRefresh.SyncRefreshTime != 30*time.Second {
		t.Error("WithTTL must not modify the receiver's early refresh block")
	}
}

func TestSessionConfig_Valid(t *testing.T) {
	cfg := SessionConfig(5 * time.Minute)
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
	if cfg.EarlyRefresh != nil {
		t.Error("expected no early refresh for session cache")
	}
}
