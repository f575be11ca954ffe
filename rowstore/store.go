package rowstore

import (
	"context"
	"time"
)

// Row is one record of a backend table. ID and the timestamps are assigned by
// the store; Data holds the client-written fields.
type Row struct {
	ID        string
	TableID   string
	CreatedAt time.Time
	UpdatedAt time.Time
	Data      map[string]any
}

// Store is the row-oriented backend the services layer talks to.
type Store interface {
	ListRows(ctx context.Context, table string, q Query) ([]Row, error)
	GetRow(ctx context.Context, table, rowID string) (Row, error)
	CreateRow(ctx context.Context, table, rowID string, data map[string]any, perms []Permission) (Row, error)
	UpdateRow(ctx context.Context, table, rowID string, data map[string]any) (Row, error)
	DeleteRow(ctx context.Context, table, rowID string) error
}

// Field names with a leading "$" refer to system fields of the row.
const (
	FieldID        = "$id"
	FieldCreatedAt = "$createdAt"
	FieldUpdatedAt = "$updatedAt"
)

// CloneData returns a shallow copy of data.
func CloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
