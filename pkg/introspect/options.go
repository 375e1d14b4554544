package introspect

import (
	"log/slog"
	"time"
)

// Option configures introspection behavior.
type Option func(*options)

type options struct {
	schemas       []string
	excludeTables []string
	typeMapper    TypeMapper
	queryTimeout  time.Duration
	logger        *slog.Logger
}

func defaultOptions() *options {
	return &options{
		schemas:    []string{"public"},
		typeMapper: NewPostgreSQLTypeMapper(nil),
		logger:     slog.Default(),
	}
}

// WithSchemas specifies which database schemas to introspect.
// If not specified, defaults to ["public"].
func WithSchemas(schemas ...string) Option {
	return func(o *options) {
		if len(schemas) > 0 {
			o.schemas = schemas
		}
	}
}

// WithExcludeTables specifies tables to leave out of the snapshot. Names may
// be bare ("migrations") or schema-qualified ("audit.events").
func WithExcludeTables(tables ...string) Option {
	return func(o *options) {
		o.excludeTables = tables
	}
}

// WithTypeMapper sets a custom type mapper for classifying column types.
// If not specified, uses the default PostgreSQL type mapper.
func WithTypeMapper(mapper TypeMapper) Option {
	return func(o *options) {
		if mapper != nil {
			o.typeMapper = mapper
		}
	}
}

// WithQueryTimeout bounds each catalog query. Zero means no limit beyond
// the caller's context.
func WithQueryTimeout(d time.Duration) Option {
	return func(o *options) {
		o.queryTimeout = d
	}
}

// WithLogger sets the logger used for progress and skipped foreign keys.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
