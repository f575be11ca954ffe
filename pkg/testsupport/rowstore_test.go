package testsupport

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/fanyicharllson/whichemail/rowstore"
	"github.com/goliatone/go-errors"
)

func TestMemoryRowStore_CRUD(t *testing.T) {
	m := NewMemoryRowStore()
	ctx := rowstore.WithActor(context.Background(), "u1")

	created, err := m.CreateRow(ctx, "services", "s1", map[string]any{"serviceName": "A"}, nil)
	if err != nil {
		t.Fatalf("CreateRow: %v", err)
	}
	if created.CreatedAt.IsZero() || created.ID != "s1" {
		t.Fatalf("unexpected row: %+v", created)
	}

	updated, err := m.UpdateRow(ctx, "services", "s1", map[string]any{"isFavorite": true})
	if err != nil {
		t.Fatalf("UpdateRow: %v", err)
	}
	if updated.Data["serviceName"] != "A" || updated.Data["isFavorite"] != true {
		t.Errorf("update did not merge: %+v", updated.Data)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Errorf("UpdatedAt did not advance")
	}

	if err := m.DeleteRow(ctx, "services", "s1"); err != nil {
		t.Fatalf("DeleteRow: %v", err)
	}
	if _, err := m.GetRow(ctx, "services", "s1"); !errors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestMemoryRowStore_ReturnsCopies(t *testing.T) {
	m := NewMemoryRowStore()
	ctx := rowstore.WithActor(context.Background(), "u1")
	m.Seed("services", rowstore.Row{ID: "s1", Data: map[string]any{"serviceName": "A"}}, rowstore.OwnerPermissions("u1"))

	row, _ := m.GetRow(ctx, "services", "s1")
	row.Data["serviceName"] = "mutated"

	stored, _ := m.Row("services", "s1")
	if stored.Data["serviceName"] != "A" {
		t.Errorf("store shares data with callers")
	}
}

func TestMemoryRowStore_Permissions(t *testing.T) {
	m := NewMemoryRowStore()
	m.Seed("services", rowstore.Row{ID: "s1", Data: map[string]any{}}, rowstore.OwnerPermissions("u1"))

	other := rowstore.WithActor(context.Background(), "u2")
	rows, err := m.ListRows(other, "services", rowstore.NewQuery())
	if err != nil || len(rows) != 0 {
		t.Errorf("expected no readable rows, got %d (%v)", len(rows), err)
	}
	if _, err := m.UpdateRow(other, "services", "s1", nil); !errors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := m.ListRows(context.Background(), "services", rowstore.NewQuery()); !errors.IsCategory(err, errors.CategoryAuth) {
		t.Errorf("expected auth error without actor, got %v", err)
	}
}

func TestMemoryRowStore_FaultsAndHooks(t *testing.T) {
	m := NewMemoryRowStore()
	ctx := rowstore.WithActor(context.Background(), "u1")

	var hooked atomic.Int32
	m.OnCall(OpList, func(context.Context, string, string) { hooked.Add(1) })
	m.FailNext(OpList, ErrTransport)

	if _, err := m.ListRows(ctx, "services", rowstore.NewQuery()); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if _, err := m.ListRows(ctx, "services", rowstore.NewQuery()); err != nil {
		t.Fatalf("failure should be consumed, got %v", err)
	}
	if got := m.Calls(OpList); got != 2 {
		t.Errorf("Calls = %d, want 2", got)
	}
	if hooked.Load() != 2 {
		t.Errorf("hook ran %d times, want 2", hooked.Load())
	}

	m.FailListWhen(func(q rowstore.Query) error {
		if len(q.Filters) > 0 {
			return ErrTransport
		}
		return nil
	})
	if _, err := m.ListRows(ctx, "services", rowstore.NewQuery(rowstore.Equal("a", 1))); !errors.Is(err, ErrTransport) {
		t.Errorf("expected query failure, got %v", err)
	}
}

func TestOwner(t *testing.T) {
	o := NewOwner("u1")
	ctx := context.Background()

	u, err := o.Resolver().CurrentUser(ctx)
	if err != nil || u == nil || u.ID != "u1" {
		t.Fatalf("unexpected user %+v (%v)", u, err)
	}

	o.Set("")
	u, err = o.Resolver().CurrentUser(ctx)
	if err != nil || u != nil {
		t.Errorf("expected signed out, got %+v (%v)", u, err)
	}
}
