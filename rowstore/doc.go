// Package rowstore defines the row-oriented backend contract: rows with
// system ids and timestamps, filter and ordering queries, per-row permission
// grants, and the error categories a store reports.
//
// Requests carry the acting user in the context:
//
//	ctx = rowstore.WithActor(ctx, userID)
//	rows, err := store.ListRows(ctx, "services",
//		rowstore.NewQuery(rowstore.Equal("ownerId", userID)).OrderDesc(rowstore.FieldCreatedAt))
//
// Stores return go-errors values. Not found, validation, authentication,
// authorization and conflict errors are rejections; everything else counts
// as a transport failure (see IsRejection).
package rowstore
