package testsupport

import (
	"context"
	"sync"
	"time"

	"github.com/fanyicharllson/whichemail/rowstore"
	"github.com/goliatone/go-errors"
)

// Row store operations, as counted by MemoryRowStore.Calls.
const (
	OpList   = "ListRows"
	OpGet    = "GetRow"
	OpCreate = "CreateRow"
	OpUpdate = "UpdateRow"
	OpDelete = "DeleteRow"
)

// ErrTransport simulates a backend that cannot be reached.
var ErrTransport = errors.New("network request failed", errors.CategoryExternal).
	WithTextCode("NETWORK_FAILURE")

// Hook runs before an operation reaches the rows. It may block.
type Hook func(ctx context.Context, table, rowID string)

type memRow struct {
	row   rowstore.Row
	perms []rowstore.Permission
}

// MemoryRowStore is an in-memory rowstore.Store with permission checks,
// call counting and fault injection.
type MemoryRowStore struct {
	mu       sync.Mutex
	tables   map[string]map[string]*memRow
	now      func() time.Time
	calls    map[string]int
	failures map[string][]error
	hooks    map[string]Hook
	listFail func(q rowstore.Query) error
	validate func(table string, data map[string]any) error
}

// NewMemoryRowStore returns an empty store whose clock starts at
// 2025-01-01T00:00:00Z and advances one second per write.
func NewMemoryRowStore() *MemoryRowStore {
	next := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	return &MemoryRowStore{
		tables: make(map[string]map[string]*memRow),
		now: func() time.Time {
			clockMu.Lock()
			defer clockMu.Unlock()
			t := next
			next = next.Add(time.Second)
			return t
		},
		calls:    make(map[string]int),
		failures: make(map[string][]error),
		hooks:    make(map[string]Hook),
	}
}

// SetClock replaces the store clock.
func (m *MemoryRowStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// SetValidator installs data rules applied on create and update.
func (m *MemoryRowStore) SetValidator(fn func(table string, data map[string]any) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validate = fn
}

// FailNext makes the next call of op return err. Calls queue in order.
func (m *MemoryRowStore) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = append(m.failures[op], err)
}

// FailListWhen makes ListRows return the error fn yields for a query. A nil
// result lets the call through.
func (m *MemoryRowStore) FailListWhen(fn func(q rowstore.Query) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listFail = fn
}

// OnCall installs a hook run before op.
func (m *MemoryRowStore) OnCall(op string, hook Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hook == nil {
		delete(m.hooks, op)
		return
	}
	m.hooks[op] = hook
}

// Calls returns how many times op was called.
func (m *MemoryRowStore) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// ResetCalls clears the call counters.
func (m *MemoryRowStore) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = make(map[string]int)
}

// Seed stores a row directly, bypassing hooks, faults and permissions. Zero
// timestamps take the store clock.
func (m *MemoryRowStore) Seed(table string, row rowstore.Row, perms []rowstore.Permission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = m.now()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	row.TableID = table
	row.Data = rowstore.CloneData(row.Data)
	m.put(table, &memRow{row: row, perms: append([]rowstore.Permission(nil), perms...)})
}

// Row returns the stored row regardless of permissions.
func (m *MemoryRowStore) Row(table, rowID string) (rowstore.Row, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.tables[table][rowID]
	if !ok {
		return rowstore.Row{}, false
	}
	return copyRow(r.row), true
}

// Len returns the number of rows in table.
func (m *MemoryRowStore) Len(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[table])
}

func (m *MemoryRowStore) put(table string, r *memRow) {
	t, ok := m.tables[table]
	if !ok {
		t = make(map[string]*memRow)
		m.tables[table] = t
	}
	t[r.row.ID] = r
}

// enter counts the call, runs its hook and pops an injected failure.
func (m *MemoryRowStore) enter(ctx context.Context, op, table, rowID string) error {
	m.mu.Lock()
	m.calls[op]++
	hook := m.hooks[op]
	m.mu.Unlock()

	if hook != nil {
		hook(ctx, table, rowID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if q := m.failures[op]; len(q) > 0 {
		err := q[0]
		m.failures[op] = q[1:]
		return err
	}
	if rowstore.ActorFrom(ctx) == "" {
		return rowstore.Unauthorized()
	}
	return nil
}

func (m *MemoryRowStore) ListRows(ctx context.Context, table string, q rowstore.Query) ([]rowstore.Row, error) {
	if err := m.enter(ctx, OpList, table, ""); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listFail != nil {
		if err := m.listFail(q); err != nil {
			return nil, err
		}
	}

	actor := rowstore.ActorFrom(ctx)
	rows := make([]rowstore.Row, 0, len(m.tables[table]))
	for _, r := range m.tables[table] {
		if rowstore.Allows(r.perms, rowstore.ActionRead, actor) {
			rows = append(rows, copyRow(r.row))
		}
	}
	return q.Apply(rows), nil
}

func (m *MemoryRowStore) GetRow(ctx context.Context, table, rowID string) (rowstore.Row, error) {
	if err := m.enter(ctx, OpGet, table, rowID); err != nil {
		return rowstore.Row{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.tables[table][rowID]
	if !ok || !rowstore.Allows(r.perms, rowstore.ActionRead, rowstore.ActorFrom(ctx)) {
		return rowstore.Row{}, rowstore.NotFound(table, rowID)
	}
	return copyRow(r.row), nil
}

func (m *MemoryRowStore) CreateRow(ctx context.Context, table, rowID string, data map[string]any, perms []rowstore.Permission) (rowstore.Row, error) {
	if err := m.enter(ctx, OpCreate, table, rowID); err != nil {
		return rowstore.Row{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if rowID == "" {
		return rowstore.Row{}, rowstore.InvalidID(rowID)
	}
	if _, exists := m.tables[table][rowID]; exists {
		return rowstore.Row{}, rowstore.Conflict(table, rowID)
	}
	data = rowstore.CloneData(data)
	if m.validate != nil {
		if err := m.validate(table, data); err != nil {
			return rowstore.Row{}, rowstore.Invalid(table, err)
		}
	}
	if len(perms) == 0 {
		perms = rowstore.OwnerPermissions(rowstore.ActorFrom(ctx))
	}

	now := m.now()
	r := &memRow{
		row:   rowstore.Row{ID: rowID, TableID: table, CreatedAt: now, UpdatedAt: now, Data: data},
		perms: append([]rowstore.Permission(nil), perms...),
	}
	m.put(table, r)
	return copyRow(r.row), nil
}

func (m *MemoryRowStore) UpdateRow(ctx context.Context, table, rowID string, data map[string]any) (rowstore.Row, error) {
	if err := m.enter(ctx, OpUpdate, table, rowID); err != nil {
		return rowstore.Row{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	actor := rowstore.ActorFrom(ctx)
	r, ok := m.tables[table][rowID]
	if !ok || !rowstore.Allows(r.perms, rowstore.ActionRead, actor) {
		return rowstore.Row{}, rowstore.NotFound(table, rowID)
	}
	if !rowstore.Allows(r.perms, rowstore.ActionUpdate, actor) {
		return rowstore.Row{}, rowstore.Forbidden(rowstore.ActionUpdate, table, rowID)
	}

	merged := rowstore.CloneData(r.row.Data)
	for k, v := range data {
		merged[k] = v
	}
	if m.validate != nil {
		if err := m.validate(table, merged); err != nil {
			return rowstore.Row{}, rowstore.Invalid(table, err)
		}
	}

	r.row.Data = merged
	r.row.UpdatedAt = m.now()
	return copyRow(r.row), nil
}

func (m *MemoryRowStore) DeleteRow(ctx context.Context, table, rowID string) error {
	if err := m.enter(ctx, OpDelete, table, rowID); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	actor := rowstore.ActorFrom(ctx)
	r, ok := m.tables[table][rowID]
	if !ok || !rowstore.Allows(r.perms, rowstore.ActionRead, actor) {
		return rowstore.NotFound(table, rowID)
	}
	if !rowstore.Allows(r.perms, rowstore.ActionDelete, actor) {
		return rowstore.Forbidden(rowstore.ActionDelete, table, rowID)
	}
	delete(m.tables[table], rowID)
	return nil
}

func copyRow(r rowstore.Row) rowstore.Row {
	r.Data = rowstore.CloneData(r.Data)
	return r
}

var _ rowstore.Store = (*MemoryRowStore)(nil)
