package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("CHEMIDENT_BLOB_DRIVER", "badger")
	t.Setenv("CHEMIDENT_BLOB_FS_ROOT", "/data/fs")
	t.Setenv("CHEMIDENT_BLOB_BADGER_PATH", "/data/badger")
	t.Setenv("CHEMIDENT_BLOB_SQL_DSN", "postgres://db/chemident")
	t.Setenv("CHEMIDENT_BLOB_S3_BUCKET", "indexes")
	cfg := ConfigFromEnv()
	if cfg.Driver != DriverBadger || cfg.FSRoot != "/data/fs" || cfg.BadgerPath != "/data/badger" || cfg.SQLDSN != "postgres://db/chemident" || cfg.S3.Bucket != "indexes" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestOpenConfig_Drivers(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cases := []struct {
		name string
		cfg  Config
		want Driver
	}{
		{"default", Config{FSRoot: filepath.Join(dir, "fs-default")}, DriverFilesystem},
		{"fs", Config{Driver: DriverFilesystem, FSRoot: filepath.Join(dir, "fs")}, DriverFilesystem},
		{"memory", Config{Driver: DriverMemory}, DriverMemory},
		{"badger", Config{Driver: DriverBadger, BadgerPath: filepath.Join(dir, "badger")}, DriverBadger},
		{"sqlite", Config{Driver: DriverSQLite, SQLDSN: filepath.Join(dir, "blobs.db")}, DriverSQLite},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := OpenConfig(ctx, tc.cfg)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer func() {
				if err := Close(store); err != nil {
					t.Fatalf("close: %v", err)
				}
			}()
			if store.Driver() != tc.want {
				t.Fatalf("driver %s, want %s", store.Driver(), tc.want)
			}
			if _, err := store.Put(ctx, "indexes/probe.json", bytes.NewReader([]byte("{}")), PutOptions{ContentType: "application/json"}); err != nil {
				t.Fatalf("put: %v", err)
			}
			_, rc, err := store.Get(ctx, "indexes/probe.json")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			b, _ := io.ReadAll(rc)
			_ = rc.Close()
			if string(b) != "{}" {
				t.Fatalf("unexpected body %q", b)
			}
		})
	}
}

func TestOpenConfig_Unsupported(t *testing.T) {
	if _, err := OpenConfig(context.Background(), Config{Driver: "gcs"}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestOpen_FromEnv(t *testing.T) {
	t.Setenv("CHEMIDENT_BLOB_DRIVER", "memory")
	store, err := Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
}

func TestCorrupt_OnlyMemory(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	if _, err := mem.Put(ctx, "k", bytes.NewReader([]byte("v")), PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !Corrupt(mem, "k", []byte("{")) {
		t.Fatalf("expected memory store to be corrupted")
	}
	if Corrupt(NewMockS3ForTests(), "k", nil) {
		t.Fatalf("non-memory store must not report corruption")
	}
}

func TestBadgerInMemory(t *testing.T) {
	store, err := NewBadgerInMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := Close(store); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := Close(NewMemory()); err != nil {
		t.Fatalf("close memory: %v", err)
	}
}
