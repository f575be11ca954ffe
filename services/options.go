package services

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ServicesTable is the backend table holding service rows.
const ServicesTable = "services"

type options struct {
	logger *slog.Logger
	table  string
	now    func() time.Time
	newID  func() string
}

func defaultOptions() options {
	return options{
		logger: slog.Default(),
		table:  ServicesTable,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// Option configures Queries and Client.
type Option func(*options)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTable overrides the backend table name.
func WithTable(table string) Option {
	return func(o *options) {
		if table != "" {
			o.table = table
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator overrides how new service ids are generated.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) {
		if newID != nil {
			o.newID = newID
		}
	}
}
