// Package bunstore implements rowstore.Store on a bun database, sqlite or
// postgres, keeping every table's rows in one "rows" table.
package bunstore
