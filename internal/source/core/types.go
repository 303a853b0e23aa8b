// Package core defines the row-source abstraction the indexes are built from:
// a read-only provider that streams the rows of a fixed catalogue of queries.
package core

import (
	"context"
	"errors"
)

// Query names one extraction the index build runs against the data source.
type Query string

const (
	// QuerySecondaryRegistry yields (secondary_id, registry_number) for live secondary dictionary entries.
	QuerySecondaryRegistry Query = "secondary_registry"
	// QueryAccessionRegistry yields (accession_id, registry_number).
	QueryAccessionRegistry Query = "accession_registry"
	// QueryRegistryPhase yields (registry_number, max_phase).
	QueryRegistryPhase Query = "registry_phase"
	// QuerySecondaryPhase yields (secondary_id, highest_phase).
	QuerySecondaryPhase Query = "secondary_phase"
	// QuerySourceNames yields (source_id, source_name).
	QuerySourceNames Query = "source_names"
	// QuerySecondarySources yields (secondary_id, source_id) for active mappings only.
	QuerySecondarySources Query = "secondary_sources"
	// QueryRegistryHierarchy yields (child_registry, parent_registry).
	QueryRegistryHierarchy Query = "registry_hierarchy"
	// QuerySecondaryHierarchy yields (child_secondary, parent_secondary, active_secondary).
	QuerySecondaryHierarchy Query = "secondary_hierarchy"
)

// Queries lists the catalogue in build order.
func Queries() []Query {
	return []Query{
		QuerySecondaryRegistry,
		QueryAccessionRegistry,
		QueryRegistryPhase,
		QuerySecondaryPhase,
		QuerySourceNames,
		QuerySecondarySources,
		QueryRegistryHierarchy,
		QuerySecondaryHierarchy,
	}
}

// Columns returns the number of values each row of q carries, or 0 for an
// unknown query.
func (q Query) Columns() int {
	switch q {
	case QuerySecondaryHierarchy:
		return 3
	case QuerySecondaryRegistry, QueryAccessionRegistry, QueryRegistryPhase, QuerySecondaryPhase,
		QuerySourceNames, QuerySecondarySources, QueryRegistryHierarchy:
		return 2
	}
	return 0
}

// Row is one result tuple. Values are whatever the driver produced: integers,
// floats, strings, byte slices or nil for SQL NULL.
type Row []any

// Driver identifies a row source implementation.
type Driver string

const (
	// DriverSQLite reads from a SQLite database.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres reads from a Postgres database through pgx.
	DriverPostgres Driver = "postgres"
	// DriverMemory serves fixture rows held in memory.
	DriverMemory Driver = "memory"
)

// RowSource streams the rows of a catalogue query to fn, one at a time. An
// error returned by fn stops the iteration and is returned unchanged.
type RowSource interface {
	Query(ctx context.Context, q Query, fn func(Row) error) error
	Close() error
}

var (
	// ErrUnknownQuery is returned (wrapped) for a query outside the catalogue.
	ErrUnknownQuery = errors.New("source: unknown query")
	// ErrArity is returned (wrapped) when a row has the wrong number of columns.
	ErrArity = errors.New("source: unexpected column count")
)
