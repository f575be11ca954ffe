package services

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/fanyicharllson/whichemail/model"
	"github.com/fanyicharllson/whichemail/rowstore"
)

// TimestampLayout formats row timestamps: RFC 3339, UTC, millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// serviceRowSchema is the expected shape of a services row. Every field is
// optional on the wire.
type serviceRowSchema struct {
	ServiceName *string `json:"serviceName"`
	Email       *string `json:"email"`
	CategoryID  *string `json:"categoryId"`
	Notes       *string `json:"notes"`
	Website     *string `json:"website"`
	HasPassword truthy  `json:"hasPassword"`
	IsFavorite  truthy  `json:"isFavorite"`
}

// truthy decodes any JSON value into a boolean: false, null, 0, "" and the
// strings "false" and "0" are false, everything else is true.
type truthy bool

func (t *truthy) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		*t = false
		return nil
	}
	*t = truthy(isTruthy(raw))
	return nil
}

func isTruthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case string:
		s := strings.TrimSpace(strings.ToLower(x))
		if s == "" || s == "false" || s == "0" {
			return false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f != 0
		}
		return true
	default:
		return true
	}
}

// MapRow converts a backend row into a Service. It never fails: missing or
// mistyped fields take their defaults and unknown fields are ignored.
func MapRow(row rowstore.Row) model.Service {
	schema := decodeSchema(row.Data)

	return model.Service{
		ID:          row.ID,
		ServiceName: deref(schema.ServiceName),
		Email:       deref(schema.Email),
		CategoryID:  deref(schema.CategoryID),
		Notes:       schema.Notes,
		Website:     schema.Website,
		HasPassword: bool(schema.HasPassword),
		IsFavorite:  bool(schema.IsFavorite),
		CreatedAt:   FormatTimestamp(row.CreatedAt),
		UpdatedAt:   FormatTimestamp(row.UpdatedAt),
	}
}

// MapRows maps every row, keeping order.
func MapRows(rows []rowstore.Row) []model.Service {
	out := make([]model.Service, len(rows))
	for i, r := range rows {
		out[i] = MapRow(r)
	}
	return out
}

// FormatTimestamp renders t with TimestampLayout, or "" for the zero time.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}

func decodeSchema(data map[string]any) serviceRowSchema {
	var schema serviceRowSchema
	raw, err := json.Marshal(data)
	if err != nil {
		return schema
	}
	// A mistyped field keeps its default; the remaining fields still decode.
	_ = json.Unmarshal(raw, &schema)
	return schema
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
