// Package sqltable implements the blob Store as rows of a single SQL table,
// usable with SQLite (modernc.org/sqlite) or Postgres (pgx).
package sqltable

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/huandu/go-sqlbuilder"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	"chemident/internal/blob/core"
)

// DefaultTable is the table blobs are stored in unless overridden.
const DefaultTable = "index_blobs"

// Dialect captures the per-database differences of the table store.
type Dialect struct {
	Driver      core.Driver
	SQLDriver   string
	Flavor      sqlbuilder.Flavor
	PayloadType string
	DefaultDSN  string
}

var (
	// SQLite stores blobs in an embedded SQLite file.
	SQLite = Dialect{Driver: core.DriverSQLite, SQLDriver: "sqlite", Flavor: sqlbuilder.SQLite, PayloadType: "BLOB", DefaultDSN: "chemident.db"}
	// Postgres stores blobs in a Postgres table.
	Postgres = Dialect{Driver: core.DriverPostgres, SQLDriver: "pgx", Flavor: sqlbuilder.PostgreSQL, PayloadType: "BYTEA", DefaultDSN: "postgres://localhost/chemident?sslmode=disable"}
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists blobs as table rows.
type Store struct {
	db      *sql.DB
	dialect Dialect
	table   string
	owned   bool
}

// Open connects with the dialect's driver and prepares the blob table.
func Open(ctx context.Context, d Dialect, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = d.DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(d.SQLDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Driver, err)
	}
	if d.Driver == core.DriverSQLite {
		// a single connection keeps ":memory:" databases coherent
		db.SetMaxOpenConns(1)
	}
	s, err := New(ctx, db, d, DefaultTable)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New wraps an existing database handle, creating the blob table if needed.
func New(ctx context.Context, db *sql.DB, d Dialect, table string) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping %s: %w", d.Driver, err)
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		blob_key TEXT PRIMARY KEY,
		content_type TEXT NOT NULL,
		metadata TEXT NOT NULL,
		etag TEXT NOT NULL,
		size BIGINT NOT NULL,
		payload %s NOT NULL,
		created_at TEXT NOT NULL
	)`, table, d.PayloadType)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("create blob table: %w", err)
	}
	return &Store{db: db, dialect: d, table: table}, nil
}

// Close closes the database when the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Driver() core.Driver { return s.dialect.Driver }

var infoColumns = []string{"blob_key", "content_type", "metadata", "etag", "size", "created_at"}

func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (info core.Info, retErr error) {
	if strings.TrimSpace(key) == "" {
		return core.Info{}, fmt.Errorf("empty key")
	}
	payload, err := io.ReadAll(r)
	if err != nil {
		return core.Info{}, err
	}
	md := opts.Metadata
	if md == nil {
		md = map[string]string{}
	}
	mdJSON, err := json.Marshal(md)
	if err != nil {
		return core.Info{}, err
	}
	sum := sha256.Sum256(payload)
	now := time.Now().UTC()
	info = core.Info{Key: key, Size: int64(len(payload)), ContentType: opts.ContentType, ETag: hex.EncodeToString(sum[:]), Metadata: core.CloneMetadata(opts.Metadata), LastModified: now}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Info{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	sb := s.dialect.Flavor.NewSelectBuilder()
	sb.Select("blob_key").From(s.table).Where(sb.Equal("blob_key", key))
	q, args := sb.Build()
	var existing string
	switch err := tx.QueryRowContext(ctx, q, args...).Scan(&existing); {
	case err == nil:
		return core.Info{}, fmt.Errorf("blob %s: %w", key, core.ErrExists)
	case !errors.Is(err, sql.ErrNoRows):
		return core.Info{}, fmt.Errorf("check %s: %w", key, err)
	}
	ib := s.dialect.Flavor.NewInsertBuilder()
	ib.InsertInto(s.table).
		Cols(append(append([]string(nil), infoColumns...), "payload")...).
		Values(key, opts.ContentType, string(mdJSON), info.ETag, info.Size, now.Format(time.RFC3339Nano), payload)
	q, args = ib.Build()
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return core.Info{}, fmt.Errorf("insert %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return core.Info{}, fmt.Errorf("commit: %w", err)
	}
	return info, nil
}

func (s *Store) Get(ctx context.Context, key string) (core.Info, io.ReadCloser, error) {
	sb := s.dialect.Flavor.NewSelectBuilder()
	sb.Select(append(append([]string(nil), infoColumns...), "payload")...).From(s.table).Where(sb.Equal("blob_key", key))
	q, args := sb.Build()
	var payload []byte
	info, err := scanInfo(s.db.QueryRowContext(ctx, q, args...), &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Info{}, nil, fmt.Errorf("blob %s: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return core.Info{}, nil, err
	}
	return info, io.NopCloser(bytes.NewReader(payload)), nil
}

func (s *Store) Head(ctx context.Context, key string) (core.Info, error) {
	sb := s.dialect.Flavor.NewSelectBuilder()
	sb.Select(infoColumns...).From(s.table).Where(sb.Equal("blob_key", key))
	q, args := sb.Build()
	info, err := scanInfo(s.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Info{}, fmt.Errorf("blob %s: %w", key, core.ErrNotFound)
	}
	return info, err
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	db := s.dialect.Flavor.NewDeleteBuilder()
	db.DeleteFrom(s.table).Where(db.Equal("blob_key", key))
	q, args := db.Build()
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]core.Info, error) {
	sb := s.dialect.Flavor.NewSelectBuilder()
	sb.Select(infoColumns...).From(s.table).Where(sb.GreaterEqualThan("blob_key", prefix)).OrderBy("blob_key").Asc()
	q, args := sb.Build()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var infos []core.Info
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, err
		}
		// collation order need not be bytewise, so misses can interleave
		if !strings.HasPrefix(info.Key, prefix) {
			continue
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blobs: %w", err)
	}
	return infos, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInfo(row scanner, extra ...any) (core.Info, error) {
	var (
		info      core.Info
		mdJSON    string
		createdAt string
	)
	dest := append([]any{&info.Key, &info.ContentType, &mdJSON, &info.ETag, &info.Size, &createdAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return core.Info{}, err
	}
	if err := json.Unmarshal([]byte(mdJSON), &info.Metadata); err != nil {
		return core.Info{}, fmt.Errorf("decode metadata %s: %w", info.Key, err)
	}
	if len(info.Metadata) == 0 {
		info.Metadata = nil
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return core.Info{}, fmt.Errorf("decode created_at %s: %w", info.Key, err)
	}
	info.LastModified = ts
	return info, nil
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
