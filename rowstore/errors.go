package rowstore

import (
	"fmt"

	"github.com/goliatone/go-errors"
)

// Text codes attached to store errors.
const (
	CodeRowNotFound    = "ROW_NOT_FOUND"
	CodeForbidden      = "ROW_FORBIDDEN"
	CodeUnauthorized   = "ROW_UNAUTHORIZED"
	CodeInvalidData    = "ROW_INVALID_DATA"
	CodeInvalidID      = "ROW_INVALID_ID"
	CodeInvalidQuery   = "ROW_INVALID_QUERY"
	CodeDuplicateRow   = "ROW_DUPLICATE"
	CodeBackendFailure = "BACKEND_FAILURE"
)

// NotFound reports a missing row.
func NotFound(table, rowID string) *errors.Error {
	return errors.New("Document with the requested ID could not be found.", errors.CategoryNotFound).
		WithTextCode(CodeRowNotFound).
		WithMetadata(map[string]any{"table": table, "row_id": rowID})
}

// Unauthorized reports a request without an acting user.
func Unauthorized() *errors.Error {
	return errors.New("The current user is not authorized to perform the requested action.", errors.CategoryAuth).
		WithTextCode(CodeUnauthorized)
}

// Forbidden reports an actor lacking the grant for action.
func Forbidden(action Action, table, rowID string) *errors.Error {
	return errors.New(fmt.Sprintf("The current user is not authorized to %s this document.", action), errors.CategoryAuthz).
		WithTextCode(CodeForbidden).
		WithMetadata(map[string]any{"table": table, "row_id": rowID})
}

// Conflict reports a row id that already exists.
func Conflict(table, rowID string) *errors.Error {
	return errors.New("Document with the requested ID already exists.", errors.CategoryConflict).
		WithTextCode(CodeDuplicateRow).
		WithMetadata(map[string]any{"table": table, "row_id": rowID})
}

// Backend wraps a failure reaching or running the backend.
func Backend(err error, op string) *errors.Error {
	return errors.Wrap(err, errors.CategoryExternal, op).WithTextCode(CodeBackendFailure)
}

// IsRejection reports whether err is a categorized refusal by the store, as
// opposed to a failure to reach it.
func IsRejection(err error) bool {
	return errors.IsCategory(err, errors.CategoryNotFound) ||
		errors.IsCategory(err, errors.CategoryValidation) ||
		errors.IsCategory(err, errors.CategoryBadInput) ||
		errors.IsCategory(err, errors.CategoryAuth) ||
		errors.IsCategory(err, errors.CategoryAuthz) ||
		errors.IsCategory(err, errors.CategoryConflict)
}

// Invalid reports row data rejected by the table's rules.
func Invalid(table string, err error) *errors.Error {
	return errors.New("Invalid document structure: "+err.Error(), errors.CategoryValidation).
		WithTextCode(CodeInvalidData).
		WithMetadata(map[string]any{"table": table})
}

// InvalidID reports a row id the store cannot use.
func InvalidID(rowID string) *errors.Error {
	return errors.New("Invalid document ID.", errors.CategoryBadInput).
		WithTextCode(CodeInvalidID).
		WithMetadata(map[string]any{"row_id": rowID})
}

// InvalidQuery reports a query the store cannot run.
func InvalidQuery(reason string) *errors.Error {
	return errors.New("Invalid query: "+reason, errors.CategoryBadInput).
		WithTextCode(CodeInvalidQuery)
}
