// Package blob re-exports core blob abstractions and wraps the infra-backed
// implementations so callers depend on the Store interface only.
package blob

import (
	"chemident/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
	// DriverBadger is the embedded BadgerDB driver.
	DriverBadger = core.DriverBadger
	// DriverSQLite is the SQLite table driver.
	DriverSQLite = core.DriverSQLite
	// DriverPostgres is the Postgres table driver.
	DriverPostgres = core.DriverPostgres
)

var (
	// ErrNotFound indicates a missing key.
	ErrNotFound = core.ErrNotFound
	// ErrExists indicates a create-only write hit an existing key.
	ErrExists = core.ErrExists
)
