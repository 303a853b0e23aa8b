// Package source re-exports the row-source abstractions and wraps the
// infra-backed implementations so the index depends on RowSource only.
package source

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"chemident/internal/infra/source/memory"
	"chemident/internal/infra/source/sqldb"
	"chemident/internal/source/core"
)

type (
	// Query names a catalogue extraction.
	Query = core.Query
	// Row is one result tuple.
	Row = core.Row
	// RowSource streams query rows.
	RowSource = core.RowSource
	// Driver identifies a row source implementation.
	Driver = core.Driver
	// Tables names the relational tables read by the SQL source.
	Tables = sqldb.Tables
	// Memory is the fixture source used by tests and examples.
	Memory = memory.Source
)

const (
	QuerySecondaryRegistry  = core.QuerySecondaryRegistry
	QueryAccessionRegistry  = core.QueryAccessionRegistry
	QueryRegistryPhase      = core.QueryRegistryPhase
	QuerySecondaryPhase     = core.QuerySecondaryPhase
	QuerySourceNames        = core.QuerySourceNames
	QuerySecondarySources   = core.QuerySecondarySources
	QueryRegistryHierarchy  = core.QueryRegistryHierarchy
	QuerySecondaryHierarchy = core.QuerySecondaryHierarchy

	DriverSQLite   = core.DriverSQLite
	DriverPostgres = core.DriverPostgres
	DriverMemory   = core.DriverMemory
)

var (
	// ErrUnknownQuery is returned for a query outside the catalogue.
	ErrUnknownQuery = core.ErrUnknownQuery
	// ErrArity is returned when a row has the wrong number of values.
	ErrArity = core.ErrArity
)

// Queries lists the catalogue in build order.
func Queries() []Query { return core.Queries() }

// Config selects and configures a row source.
type Config struct {
	Driver Driver `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Tables Tables `yaml:"tables"`
}

// ConfigFromEnv reads the source configuration from environment variables.
//
//	CHEMIDENT_SOURCE_DRIVER: sqlite|postgres (default sqlite)
//	CHEMIDENT_SOURCE_DSN: connection string (default chembl.db)
func ConfigFromEnv() Config {
	return Config{
		Driver: Driver(os.Getenv("CHEMIDENT_SOURCE_DRIVER")),
		DSN:    os.Getenv("CHEMIDENT_SOURCE_DSN"),
	}
}

// Open selects a RowSource using environment variables.
func Open(ctx context.Context) (RowSource, error) {
	return OpenConfig(ctx, ConfigFromEnv())
}

// OpenConfig constructs the source named by cfg.Driver.
func OpenConfig(ctx context.Context, cfg Config) (RowSource, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	switch driver {
	case DriverSQLite, DriverPostgres:
		return sqldb.Open(ctx, sqldb.Config{Driver: driver, DSN: cfg.DSN, Tables: cfg.Tables})
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown source driver %s", driver)
	}
}

// NewSQL wraps an already open database handle. The caller keeps ownership.
func NewSQL(db *sql.DB, driver Driver, tables Tables) RowSource {
	return sqldb.New(db, driver, tables)
}

// DefaultTables returns the default table names for driver.
func DefaultTables(driver Driver) Tables { return sqldb.DefaultTables(driver) }

// NewMemory returns an empty fixture source.
func NewMemory() *Memory { return memory.New() }
