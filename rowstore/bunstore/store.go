package bunstore

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/fanyicharllson/whichemail/rowstore"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

type rowRecord struct {
	bun.BaseModel `bun:"table:rows,alias:r"`

	ID          uuid.UUID             `bun:"id,pk,type:uuid"`
	TableID     string                `bun:"table_id,notnull"`
	Data        map[string]any        `bun:"data"`
	Permissions []rowstore.Permission `bun:"permissions"`
	CreatedAt   time.Time             `bun:"created_at,notnull"`
	UpdatedAt   time.Time             `bun:"updated_at,notnull"`
}

func (r *rowRecord) row() rowstore.Row {
	return rowstore.Row{
		ID:        r.ID.String(),
		TableID:   r.TableID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Data:      rowstore.CloneData(r.Data),
	}
}

// Validator checks the full data of a row before it is written.
type Validator func(data map[string]any) error

// Store is a rowstore.Store persisted in a single bun table. Row data is kept
// as JSON and filtered with the database's JSON functions.
type Store struct {
	db         *bun.DB
	repo       repository.Repository[*rowRecord]
	validators map[string]Validator
	now        func() time.Time
	logger     *slog.Logger
}

var _ rowstore.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithValidator registers the data rules of table.
func WithValidator(table string, v Validator) Option {
	return func(s *Store) {
		if v != nil {
			s.validators[table] = v
		}
	}
}

// WithClock overrides the source of row timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New returns a Store over db. Call CreateSchema before first use.
func New(db *bun.DB, opts ...Option) *Store {
	s := &Store{
		db:         db,
		validators: make(map[string]Validator),
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.repo = repository.NewRepository[*rowRecord](db, repository.ModelHandlers[*rowRecord]{
		NewRecord: func() *rowRecord { return &rowRecord{} },
		GetID: func(r *rowRecord) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *rowRecord, id uuid.UUID) {
			r.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
	})
	return s
}

// CreateSchema creates the rows table and its index when missing.
func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*rowRecord)(nil)).IfNotExists().Exec(ctx); err != nil {
		return rowstore.Backend(err, "create rows table")
	}
	if _, err := s.db.NewCreateIndex().Model((*rowRecord)(nil)).
		Index("rows_table_idx").IfNotExists().Column("table_id").Exec(ctx); err != nil {
		return rowstore.Backend(err, "create rows index")
	}
	return nil
}

// ListRows returns the rows of table matching q that the actor may read.
func (s *Store) ListRows(ctx context.Context, table string, q rowstore.Query) ([]rowstore.Row, error) {
	actor := rowstore.ActorFrom(ctx)
	if actor == "" {
		return nil, rowstore.Unauthorized()
	}

	criteria, err := s.selectCriteria(table, q)
	if err != nil {
		return nil, err
	}

	recs, _, err := s.repo.List(ctx, criteria)
	if err != nil {
		return nil, rowstore.Backend(err, "list rows")
	}

	out := make([]rowstore.Row, 0, len(recs))
	for _, rec := range recs {
		if !rowstore.Allows(rec.Permissions, rowstore.ActionRead, actor) {
			continue
		}
		out = append(out, rec.row())
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}

	s.logger.Debug("rows listed", "table", table, "query", q.String(), "count", len(out))
	return out, nil
}

// GetRow returns one row. Rows the actor may not read are reported missing.
func (s *Store) GetRow(ctx context.Context, table, rowID string) (rowstore.Row, error) {
	actor := rowstore.ActorFrom(ctx)
	if actor == "" {
		return rowstore.Row{}, rowstore.Unauthorized()
	}

	rec, err := s.load(ctx, table, rowID)
	if err != nil {
		return rowstore.Row{}, err
	}
	if !rowstore.Allows(rec.Permissions, rowstore.ActionRead, actor) {
		return rowstore.Row{}, rowstore.NotFound(table, rowID)
	}
	return rec.row(), nil
}

// CreateRow inserts a row with rowID. perms defaults to the actor's owner
// grants when empty.
func (s *Store) CreateRow(ctx context.Context, table, rowID string, data map[string]any, perms []rowstore.Permission) (rowstore.Row, error) {
	actor := rowstore.ActorFrom(ctx)
	if actor == "" {
		return rowstore.Row{}, rowstore.Unauthorized()
	}

	id, err := uuid.Parse(rowID)
	if err != nil || id == uuid.Nil {
		return rowstore.Row{}, rowstore.InvalidID(rowID)
	}

	data = rowstore.CloneData(data)
	if err := s.validate(table, data); err != nil {
		return rowstore.Row{}, err
	}

	n, err := s.repo.Count(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.id = ?", id)
	})
	if err != nil {
		return rowstore.Row{}, rowstore.Backend(err, "check row id")
	}
	if n > 0 {
		return rowstore.Row{}, rowstore.Conflict(table, rowID)
	}

	if len(perms) == 0 {
		perms = rowstore.OwnerPermissions(actor)
	}

	now := s.now().UTC()
	rec := &rowRecord{
		ID:          id,
		TableID:     table,
		Data:        data,
		Permissions: append([]rowstore.Permission(nil), perms...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.repo.Create(ctx, rec); err != nil {
		return rowstore.Row{}, rowstore.Backend(err, "create row")
	}

	s.logger.Debug("row created", "table", table, "row_id", rowID)
	return rec.row(), nil
}

// UpdateRow merges data into the row and returns the stored result.
func (s *Store) UpdateRow(ctx context.Context, table, rowID string, data map[string]any) (rowstore.Row, error) {
	actor := rowstore.ActorFrom(ctx)
	if actor == "" {
		return rowstore.Row{}, rowstore.Unauthorized()
	}

	rec, err := s.load(ctx, table, rowID)
	if err != nil {
		return rowstore.Row{}, err
	}
	if !rowstore.Allows(rec.Permissions, rowstore.ActionRead, actor) {
		return rowstore.Row{}, rowstore.NotFound(table, rowID)
	}
	if !rowstore.Allows(rec.Permissions, rowstore.ActionUpdate, actor) {
		return rowstore.Row{}, rowstore.Forbidden(rowstore.ActionUpdate, table, rowID)
	}

	merged := rowstore.CloneData(rec.Data)
	for k, v := range data {
		merged[k] = v
	}
	if err := s.validate(table, merged); err != nil {
		return rowstore.Row{}, err
	}

	rec.Data = merged
	rec.UpdatedAt = s.now().UTC()
	if _, err := s.repo.Update(ctx, rec); err != nil {
		return rowstore.Row{}, rowstore.Backend(err, "update row")
	}

	s.logger.Debug("row updated", "table", table, "row_id", rowID)
	return rec.row(), nil
}

// DeleteRow removes a row.
func (s *Store) DeleteRow(ctx context.Context, table, rowID string) error {
	actor := rowstore.ActorFrom(ctx)
	if actor == "" {
		return rowstore.Unauthorized()
	}

	rec, err := s.load(ctx, table, rowID)
	if err != nil {
		return err
	}
	if !rowstore.Allows(rec.Permissions, rowstore.ActionRead, actor) {
		return rowstore.NotFound(table, rowID)
	}
	if !rowstore.Allows(rec.Permissions, rowstore.ActionDelete, actor) {
		return rowstore.Forbidden(rowstore.ActionDelete, table, rowID)
	}

	if err := s.repo.Delete(ctx, rec); err != nil {
		return rowstore.Backend(err, "delete row")
	}
	s.logger.Debug("row deleted", "table", table, "row_id", rowID)
	return nil
}

func (s *Store) load(ctx context.Context, table, rowID string) (*rowRecord, error) {
	id, err := uuid.Parse(rowID)
	if err != nil {
		return nil, rowstore.NotFound(table, rowID)
	}

	recs, _, err := s.repo.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.table_id = ?", table).
			Where("?TableAlias.id = ?", id).
			Limit(1)
	})
	if err != nil {
		return nil, rowstore.Backend(err, "get row")
	}
	if len(recs) == 0 {
		return nil, rowstore.NotFound(table, rowID)
	}
	return recs[0], nil
}

func (s *Store) validate(table string, data map[string]any) error {
	v, ok := s.validators[table]
	if !ok {
		return nil
	}
	if err := v(data); err != nil {
		return rowstore.Invalid(table, err)
	}
	return nil
}

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (s *Store) selectCriteria(table string, q rowstore.Query) (repository.SelectCriteria, error) {
	type clause struct {
		query string
		args  []any
	}

	wheres := make([]clause, 0, len(q.Filters))
	for _, f := range q.Filters {
		sql, args, err := s.filterSQL(f)
		if err != nil {
			return nil, err
		}
		wheres = append(wheres, clause{sql, args})
	}

	orders := make([]clause, 0, len(q.Orders))
	for _, o := range q.Orders {
		expr, args, err := s.fieldSQL(o.Field)
		if err != nil {
			return nil, err
		}
		dir := " ASC"
		if o.Desc {
			dir = " DESC"
		}
		orders = append(orders, clause{expr + dir, args})
	}

	return func(sq *bun.SelectQuery) *bun.SelectQuery {
		sq = sq.Where("?TableAlias.table_id = ?", table)
		for _, w := range wheres {
			sq = sq.Where(w.query, w.args...)
		}
		for _, o := range orders {
			sq = sq.OrderExpr(o.query, o.args...)
		}
		return sq
	}, nil
}

func (s *Store) filterSQL(f rowstore.Filter) (string, []any, error) {
	switch f.Op {
	case rowstore.OpEqual:
		expr, args, err := s.fieldSQL(f.Field)
		if err != nil {
			return "", nil, err
		}
		return expr + " = ?", append(args, s.compareValue(f.Field, f.Value)), nil

	case rowstore.OpSearch:
		expr, args, err := s.fieldSQL(f.Field)
		if err != nil {
			return "", nil, err
		}
		text, _ := f.Value.(string)
		pattern := "%" + escapeLike(strings.ToLower(text)) + "%"
		if s.isPG() {
			return expr + ` ILIKE ?`, append(args, pattern), nil
		}
		return "LOWER(" + expr + `) LIKE ? ESCAPE '\'`, append(args, pattern), nil

	case rowstore.OpOr:
		if len(f.Any) == 0 {
			return "1 = 0", nil, nil
		}
		parts := make([]string, 0, len(f.Any))
		var args []any
		for _, alt := range f.Any {
			sql, altArgs, err := s.filterSQL(alt)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, "("+sql+")")
			args = append(args, altArgs...)
		}
		return "(" + strings.Join(parts, " OR ") + ")", args, nil

	default:
		return "", nil, rowstore.InvalidQuery(fmt.Sprintf("unsupported filter %q", f.Op))
	}
}

// fieldSQL returns the expression selecting field.
func (s *Store) fieldSQL(field string) (string, []any, error) {
	switch field {
	case rowstore.FieldID:
		return "?TableAlias.id", nil, nil
	case rowstore.FieldCreatedAt:
		return "?TableAlias.created_at", nil, nil
	case rowstore.FieldUpdatedAt:
		return "?TableAlias.updated_at", nil, nil
	}
	if !fieldName.MatchString(field) {
		return "", nil, rowstore.InvalidQuery(fmt.Sprintf("invalid field %q", field))
	}
	if s.isPG() {
		return "?TableAlias.data->>?", []any{field}, nil
	}
	return "json_extract(?TableAlias.data, ?)", []any{"$." + field}, nil
}

// compareValue adapts value to what fieldSQL yields for field. Postgres
// extracts JSON members as text.
func (s *Store) compareValue(field string, value any) any {
	if strings.HasPrefix(field, "$") || !s.isPG() {
		return value
	}
	return fmt.Sprint(value)
}

func (s *Store) isPG() bool {
	return s.db.Dialect().Name() == dialect.PG
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
