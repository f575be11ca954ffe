// Package export renders a list of services as a JSON backup, a CSV sheet
// or a plain-text summary. Passwords are never part of any format; only the
// hasPassword flag is.
package export
