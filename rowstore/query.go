package rowstore

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FilterOp identifies the comparison a Filter performs.
type FilterOp string

const (
	OpEqual  FilterOp = "equal"
	OpSearch FilterOp = "search"
	OpOr     FilterOp = "or"
)

// Filter is one condition of a Query. Or filters hold their alternatives in
// Any.
type Filter struct {
	Op    FilterOp
	Field string
	Value any
	Any   []Filter
}

// Equal matches rows whose field equals value.
func Equal(field string, value any) Filter {
	return Filter{Op: OpEqual, Field: field, Value: value}
}

// Search matches rows whose field contains text, ignoring case.
func Search(field, text string) Filter {
	return Filter{Op: OpSearch, Field: field, Value: text}
}

// Or matches rows satisfying at least one of filters.
func Or(filters ...Filter) Filter {
	return Filter{Op: OpOr, Any: filters}
}

// Order sorts query results by one field.
type Order struct {
	Field string
	Desc  bool
}

// Query is the filter and ordering part of a list request. All filters must
// hold for a row to match.
type Query struct {
	Filters []Filter
	Orders  []Order
	Limit   int
}

// NewQuery builds a Query from filters.
func NewQuery(filters ...Filter) Query {
	return Query{Filters: filters}
}

// OrderDesc appends a descending order on field.
func (q Query) OrderDesc(field string) Query {
	q.Orders = append(append([]Order(nil), q.Orders...), Order{Field: field, Desc: true})
	return q
}

// OrderAsc appends an ascending order on field.
func (q Query) OrderAsc(field string) Query {
	q.Orders = append(append([]Order(nil), q.Orders...), Order{Field: field})
	return q
}

// WithLimit caps the number of rows returned. Zero means no limit.
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// String renders the query for logs.
func (q Query) String() string {
	parts := make([]string, 0, len(q.Filters)+len(q.Orders))
	for _, f := range q.Filters {
		parts = append(parts, f.String())
	}
	for _, o := range q.Orders {
		dir := "asc"
		if o.Desc {
			dir = "desc"
		}
		parts = append(parts, "order("+o.Field+" "+dir+")")
	}
	return strings.Join(parts, " ")
}

func (f Filter) String() string {
	if f.Op == OpOr {
		alts := make([]string, len(f.Any))
		for i, a := range f.Any {
			alts[i] = a.String()
		}
		return "or(" + strings.Join(alts, ", ") + ")"
	}
	return fmt.Sprintf("%s(%s, %v)", f.Op, f.Field, f.Value)
}

// Match reports whether row satisfies every filter of q.
func (q Query) Match(row Row) bool {
	for _, f := range q.Filters {
		if !f.Match(row) {
			return false
		}
	}
	return true
}

// Match reports whether row satisfies f.
func (f Filter) Match(row Row) bool {
	switch f.Op {
	case OpEqual:
		return fmt.Sprint(FieldValue(row, f.Field)) == fmt.Sprint(f.Value)
	case OpSearch:
		text, _ := f.Value.(string)
		value, ok := FieldValue(row, f.Field).(string)
		if !ok {
			return false
		}
		return strings.Contains(strings.ToLower(value), strings.ToLower(text))
	case OpOr:
		for _, alt := range f.Any {
			if alt.Match(row) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// FieldValue resolves a data or system field of row.
func FieldValue(row Row, field string) any {
	switch field {
	case FieldID:
		return row.ID
	case FieldCreatedAt:
		return row.CreatedAt
	case FieldUpdatedAt:
		return row.UpdatedAt
	default:
		return row.Data[field]
	}
}

// Apply filters, orders and limits rows in memory. Stores without a native
// query language use it to honour a Query.
func (q Query) Apply(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if q.Match(r) {
			out = append(out, r)
		}
	}

	if len(q.Orders) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.Orders {
				c := compare(FieldValue(out[i], o.Field), FieldValue(out[j], o.Field))
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func compare(a, b any) int {
	switch av := a.(type) {
	case time.Time:
		bv, _ := b.(time.Time)
		return av.Compare(bv)
	case string:
		bv, _ := b.(string)
		return strings.Compare(av, bv)
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}
