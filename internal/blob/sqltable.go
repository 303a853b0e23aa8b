package blob

import (
	"context"

	"chemident/internal/infra/blob/sqltable"
)

// NewSQLite stores blobs in a SQLite table. An empty dsn uses chemident.db.
func NewSQLite(ctx context.Context, dsn string) (Store, error) {
	return sqltable.Open(ctx, sqltable.SQLite, dsn)
}

// NewPostgres stores blobs in a Postgres table reached through pgx.
func NewPostgres(ctx context.Context, dsn string) (Store, error) {
	return sqltable.Open(ctx, sqltable.Postgres, dsn)
}
