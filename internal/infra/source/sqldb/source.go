// Package sqldb implements the row source on a relational database reached
// through database/sql. Statements are generated with go-sqlbuilder in the
// flavor of the configured driver.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/huandu/go-sqlbuilder"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	"chemident/internal/source/core"
)

// Tables names the tables the catalogue queries read from.
type Tables struct {
	SecondaryDictionary string `yaml:"secondary_dictionary"`
	AccessionDictionary string `yaml:"accession_dictionary"`
	SourceNames         string `yaml:"source_names"`
	SourceMapping       string `yaml:"source_mapping"`
	RegistryHierarchy   string `yaml:"registry_hierarchy"`
	SecondaryHierarchy  string `yaml:"secondary_hierarchy"`
}

// DefaultTables returns the table layout for driver. Postgres keeps the two
// catalogs in their own schemas; SQLite has no schemas so the catalog becomes
// a name prefix.
func DefaultTables(driver core.Driver) Tables {
	sep := "."
	if driver == core.DriverSQLite {
		sep = "_"
	}
	return Tables{
		SecondaryDictionary: "drugbase" + sep + "molecule_dictionary",
		AccessionDictionary: "chembl" + sep + "molecule_dictionary",
		SourceNames:         "drugbase" + sep + "molecule_source",
		SourceMapping:       "drugbase" + sep + "molecule_source_mapping",
		RegistryHierarchy:   "chembl" + sep + "molecule_hierarchy",
		SecondaryHierarchy:  "drugbase" + sep + "molecule_hierarchy",
	}
}

// withDefaults fills unset table names from the driver defaults.
func (t Tables) withDefaults(driver core.Driver) Tables {
	d := DefaultTables(driver)
	if t.SecondaryDictionary == "" {
		t.SecondaryDictionary = d.SecondaryDictionary
	}
	if t.AccessionDictionary == "" {
		t.AccessionDictionary = d.AccessionDictionary
	}
	if t.SourceNames == "" {
		t.SourceNames = d.SourceNames
	}
	if t.SourceMapping == "" {
		t.SourceMapping = d.SourceMapping
	}
	if t.RegistryHierarchy == "" {
		t.RegistryHierarchy = d.RegistryHierarchy
	}
	if t.SecondaryHierarchy == "" {
		t.SecondaryHierarchy = d.SecondaryHierarchy
	}
	return t
}

// Config describes how to reach the data source.
type Config struct {
	Driver core.Driver `yaml:"driver"`
	DSN    string      `yaml:"dsn"`
	Tables Tables      `yaml:"tables"`
}

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Source runs catalogue queries against a database/sql handle.
type Source struct {
	db     *sql.DB
	driver core.Driver
	flavor sqlbuilder.Flavor
	tables Tables
	owned  bool
}

// Open connects to the database named by cfg.
func Open(ctx context.Context, cfg Config) (*Source, error) {
	driverName, err := sqlDriverName(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn := cfg.DSN
	if dsn == "" {
		if cfg.Driver == core.DriverPostgres {
			dsn = "postgres://localhost/chembl?sslmode=disable"
		} else {
			dsn = "chembl.db"
		}
	}
	openMu.Lock()
	db, err := sqlOpen(driverName, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open %s source: %w", cfg.Driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s source: %w", cfg.Driver, err)
	}
	s := New(db, cfg.Driver, cfg.Tables)
	s.owned = true
	return s, nil
}

// New wraps an open handle. Empty table names fall back to DefaultTables.
func New(db *sql.DB, driver core.Driver, tables Tables) *Source {
	flavor := sqlbuilder.PostgreSQL
	if driver == core.DriverSQLite {
		flavor = sqlbuilder.SQLite
	}
	return &Source{db: db, driver: driver, flavor: flavor, tables: tables.withDefaults(driver)}
}

func sqlDriverName(driver core.Driver) (string, error) {
	switch driver {
	case core.DriverPostgres:
		return "pgx", nil
	case core.DriverSQLite, "":
		return "sqlite", nil
	}
	return "", fmt.Errorf("unsupported sql source driver %q", driver)
}

// Tables returns the effective table names.
func (s *Source) Tables() Tables { return s.tables }

// Close closes the handle when Open created it.
func (s *Source) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// Statement renders the SQL for q with its arguments.
func (s *Source) Statement(q core.Query) (string, []any, error) {
	sb := s.flavor.NewSelectBuilder()
	switch q {
	case core.QuerySecondaryRegistry:
		sb.Select("id", "molregno").From(s.tables.SecondaryDictionary).Where(sb.Equal("deleted", 0))
	case core.QueryAccessionRegistry:
		sb.Select("chembl_id", "molregno").From(s.tables.AccessionDictionary)
	case core.QueryRegistryPhase:
		sb.Select("molregno", "max_phase").From(s.tables.AccessionDictionary)
	case core.QuerySecondaryPhase:
		sb.Select("id", "highest_phase").From(s.tables.SecondaryDictionary)
	case core.QuerySourceNames:
		sb.Select("id", "source").From(s.tables.SourceNames)
	case core.QuerySecondarySources:
		sb.Select("molecule_dictionary_id", "molecule_source_id").From(s.tables.SourceMapping).Where(sb.Equal("removed", 0))
	case core.QueryRegistryHierarchy:
		sb.Select("molregno", "parent_molregno").From(s.tables.RegistryHierarchy)
	case core.QuerySecondaryHierarchy:
		sb.Select("molecule_dictionary_id", "parent_molecule_dictionary_id", "active_molecule_dictionary_id").From(s.tables.SecondaryHierarchy)
	default:
		return "", nil, fmt.Errorf("%w: %s", core.ErrUnknownQuery, q)
	}
	query, args := sb.Build()
	return query, args, nil
}

// Query streams the rows of q to fn.
func (s *Source) Query(ctx context.Context, q core.Query, fn func(core.Row) error) error {
	stmt, args, err := s.Statement(q)
	if err != nil {
		return err
	}
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("query %s: %w", q, err)
	}
	defer func() { _ = rows.Close() }()
	n := q.Columns()
	for rows.Next() {
		vals := make([]any, n)
		dest := make([]any, n)
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("scan %s: %w", q, err)
		}
		if err := fn(core.Row(vals)); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", q, err)
	}
	return nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
