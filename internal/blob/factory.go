package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrUnsupported is returned for an unknown driver name.
var ErrUnsupported = errors.New("blob: unsupported driver")

// Config selects and configures a blob driver.
type Config struct {
	Driver     Driver   `yaml:"driver"`
	FSRoot     string   `yaml:"fs_root"`
	S3         S3Config `yaml:"s3"`
	BadgerPath string   `yaml:"badger_path"`
	SQLDSN     string   `yaml:"sql_dsn"`
}

// ConfigFromEnv reads the blob configuration from environment variables.
//
//	CHEMIDENT_BLOB_DRIVER: fs|s3|memory|badger|sqlite|postgres (default fs)
//	CHEMIDENT_BLOB_FS_ROOT: directory root when driver=fs (default ./indexdata)
//	CHEMIDENT_BLOB_BADGER_PATH: database directory when driver=badger
//	CHEMIDENT_BLOB_SQL_DSN: connection string when driver=sqlite|postgres
//	(S3 specific variables documented in the infra s3 package)
func ConfigFromEnv() Config {
	return Config{
		Driver:     Driver(os.Getenv("CHEMIDENT_BLOB_DRIVER")),
		FSRoot:     os.Getenv("CHEMIDENT_BLOB_FS_ROOT"),
		S3:         S3ConfigFromEnv(),
		BadgerPath: os.Getenv("CHEMIDENT_BLOB_BADGER_PATH"),
		SQLDSN:     os.Getenv("CHEMIDENT_BLOB_SQL_DSN"),
	}
}

// Open selects a blob.Store implementation using environment variables.
func Open(ctx context.Context) (Store, error) {
	return OpenConfig(ctx, ConfigFromEnv())
}

// OpenConfig constructs the store named by cfg.Driver.
func OpenConfig(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	case DriverBadger:
		return NewBadger(cfg.BadgerPath)
	case DriverSQLite:
		return NewSQLite(ctx, cfg.SQLDSN)
	case DriverPostgres:
		return NewPostgres(ctx, cfg.SQLDSN)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, driver)
	}
}

// Close releases resources held by stores that own a database handle.
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
