package services

import (
	"context"
	"reflect"
	"testing"

	"github.com/fanyicharllson/whichemail/notify"
	"github.com/fanyicharllson/whichemail/pkg/testsupport"
	"github.com/fanyicharllson/whichemail/rowstore"
)

func TestFetchList_NewestFirstForOwner(t *testing.T) {
	h := newHarness(t, "u1")
	h.seed("u1", "s1", "Netflix", "a@x.com", nil)
	h.seed("u2", "x1", "Other", "o@x.com", nil)
	h.seed("u1", "s2", "GitHub", "b@x.com", nil)
	h.seed("u1", "s3", "Spotify", "c@x.com", nil)

	list, err := h.client.Queries().FetchList(context.Background(), "u1")
	if err != nil {
		t.Fatalf("FetchList: %v", err)
	}
	if got := ids(list); !reflect.DeepEqual(got, []string{"s3", "s2", "s1"}) {
		t.Errorf("ids = %v, want newest first", got)
	}
}

func TestFetchList_NoOwnerSkipsBackend(t *testing.T) {
	h := newHarness(t, "")

	list, err := h.client.Queries().FetchList(context.Background(), "")
	if err != nil {
		t.Fatalf("FetchList: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", list)
	}
	if n := h.store.Calls(testsupport.OpList); n != 0 {
		t.Errorf("backend called %d times", n)
	}
}

func TestFetchList_FailureNotifiesAndReturnsError(t *testing.T) {
	h := newHarness(t, "u1")
	h.store.FailNext(testsupport.OpList, testsupport.ErrTransport)

	_, err := h.client.Queries().FetchList(context.Background(), "u1")
	if err == nil {
		t.Fatal("expected error")
	}

	got := h.notifications()
	want := []notify.Notification{{Level: notify.LevelError, Title: "Failed to load services", Message: "network request failed"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("notifications = %+v, want %+v", got, want)
	}
}

func TestFetchByID(t *testing.T) {
	h := newHarness(t, "u1")
	h.seed("u1", "s1", "Netflix", "a@x.com", nil)
	ctx := rowstore.WithActor(context.Background(), "u1")

	svc := h.client.Queries().FetchByID(ctx, "s1")
	if svc == nil || svc.ServiceName != "Netflix" {
		t.Fatalf("FetchByID = %+v", svc)
	}

	if svc := h.client.Queries().FetchByID(ctx, ""); svc != nil {
		t.Errorf("expected nil for empty id, got %+v", svc)
	}
	if len(h.notifications()) != 0 {
		t.Errorf("unexpected notifications: %+v", h.notifications())
	}
}

func TestFetchByID_MissingOrForeignRowNotifies(t *testing.T) {
	h := newHarness(t, "u1")
	h.seed("u2", "s9", "Other", "o@x.com", nil)
	ctx := rowstore.WithActor(context.Background(), "u1")

	for _, id := range []string{"missing", "s9"} {
		if svc := h.client.Queries().FetchByID(ctx, id); svc != nil {
			t.Errorf("FetchByID(%q) = %+v, want nil", id, svc)
		}
	}

	want := notify.Notification{
		Level:   notify.LevelError,
		Title:   "Failed to load service",
		Message: "Document with the requested ID could not be found.",
	}
	got := h.notifications()
	if len(got) != 2 || got[0] != want || got[1] != want {
		t.Errorf("notifications = %+v", got)
	}
}

func TestFetchByID_FailureDegradesToNil(t *testing.T) {
	h := newHarness(t, "u1")
	h.seed("u1", "s1", "Netflix", "a@x.com", nil)
	h.store.FailNext(testsupport.OpGet, testsupport.ErrTransport)

	svc := h.client.Queries().FetchByID(rowstore.WithActor(context.Background(), "u1"), "s1")
	if svc != nil {
		t.Errorf("expected nil, got %+v", svc)
	}
	got := h.notifications()
	if len(got) != 1 || got[0].Title != "Failed to load service" {
		t.Errorf("notifications = %+v", got)
	}
}

func seedSearchData(h *harness) {
	h.seed("u1", "s1", "Netflix", "movies@x.com", nil)
	h.seed("u1", "s2", "Bank", "NETmail@x.com", nil)
	h.seed("u1", "s3", "Shop", "shop@x.com", nil)
	h.seed("u2", "x1", "Netlify", "dev@x.com", nil)
}

func TestSearch_BackendAndFallbackAgree(t *testing.T) {
	ctx := context.Background()

	backend := newHarness(t, "u1")
	seedSearchData(backend)
	viaBackend, err := backend.client.Queries().Search(ctx, "  net ", "u1")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	fallback := newHarness(t, "u1")
	seedSearchData(fallback)
	fallback.store.FailListWhen(func(q rowstore.Query) error {
		for _, f := range q.Filters {
			if f.Op == rowstore.OpOr {
				return testsupport.ErrTransport
			}
		}
		return nil
	})
	viaFallback, err := fallback.client.Queries().Search(ctx, "net", "u1")
	if err != nil {
		t.Fatalf("Search with fallback: %v", err)
	}

	if got := ids(viaBackend); !reflect.DeepEqual(got, []string{"s2", "s1"}) {
		t.Errorf("backend ids = %v", got)
	}
	if !reflect.DeepEqual(viaBackend, viaFallback) {
		t.Errorf("fallback differs:\nbackend  %+v\nfallback %+v", viaBackend, viaFallback)
	}
	if fallback.store.Calls(testsupport.OpList) != 2 {
		t.Errorf("expected a failed search and one list call, got %d", fallback.store.Calls(testsupport.OpList))
	}
}

func TestSearch_EmptyInputs(t *testing.T) {
	h := newHarness(t, "u1")

	for _, tc := range []struct{ text, owner string }{{"", "u1"}, {"   ", "u1"}, {"net", ""}} {
		list, err := h.client.Queries().Search(context.Background(), tc.text, tc.owner)
		if err != nil || len(list) != 0 {
			t.Errorf("Search(%q, %q) = %v, %v", tc.text, tc.owner, list, err)
		}
	}
	if h.store.Calls(testsupport.OpList) != 0 {
		t.Errorf("backend should not be called")
	}
}

func TestFilterServices(t *testing.T) {
	h := newHarness(t, "u1")
	seedSearchData(h)
	all, _ := h.client.Queries().FetchList(context.Background(), "u1")

	got := FilterServices(all, "SHOP")
	if len(got) != 1 || got[0].ID != "s3" {
		t.Errorf("FilterServices = %+v", got)
	}
}
