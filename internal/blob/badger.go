package blob

import (
	"log/slog"

	"chemident/internal/infra/blob/badger"
)

const defaultBadgerPath = "./indexdata/badger"

// NewBadger opens a BadgerDB-backed store at path. Close it with blob.Close.
func NewBadger(path string) (Store, error) {
	if path == "" {
		path = defaultBadgerPath
	}
	return badger.New(badger.Config{Path: path, SyncWrites: true, Logger: slog.Default().With("component", "badger")})
}

// NewBadgerInMemory opens a BadgerDB store that never touches disk.
func NewBadgerInMemory() (Store, error) { return badger.NewInMemory() }
