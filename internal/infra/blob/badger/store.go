// Package badger implements the blob Store on an embedded BadgerDB instance.
//
// Blob payloads are split into fixed size chunks stored under
// "d/<key>\x00<seq>" and written with a WriteBatch, so a table larger than a
// single Badger transaction can hold is still accepted. The metadata record
// "m/<key>" is written last and marks the blob as complete.
package badger

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"chemident/internal/blob/core"
)

const (
	metaPrefix = "m/"
	dataPrefix = "d/"
	// chunkSize bounds each stored value.
	chunkSize = 1 << 20
)

// Config holds configuration for the Badger-backed store.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string `yaml:"path"`
	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool `yaml:"in_memory"`
	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool `yaml:"sync_writes"`
	// Logger receives BadgerDB's internal logs; nil disables them.
	Logger *slog.Logger `yaml:"-"`
}

// Store implements core.Store on BadgerDB.
type Store struct {
	db   *badger.DB
	path string
}

type metaRecord struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ETag        string            `json:"etag"`
	Size        int64             `json:"size"`
	Chunks      int               `json:"chunks"`
	CreatedAt   time.Time         `json:"created_at"`
}

func (m metaRecord) info(key string) core.Info {
	return core.Info{Key: key, Size: m.Size, ContentType: m.ContentType, ETag: m.ETag, Metadata: core.CloneMetadata(m.Metadata), LastModified: m.CreatedAt}
}

// New opens (or creates) a Badger database according to cfg.
func New(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger path is required for persistent database")
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db, path: cfg.Path}, nil
}

// NewInMemory opens an in-memory store.
func NewInMemory() (*Store, error) { return New(Config{InMemory: true}) }

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the database directory; empty for in-memory stores.
func (s *Store) Path() string { return s.path }

func (s *Store) Driver() core.Driver { return core.DriverBadger }

func metaKey(key string) []byte { return []byte(metaPrefix + key) }

// chunkPrefix ends in NUL so the chunks of "a" never match those of "a/b".
func chunkPrefix(key string) []byte { return []byte(dataPrefix + key + "\x00") }

func chunkKey(key string, seq int) []byte { return []byte(fmt.Sprintf("%s%s\x00%08d", dataPrefix, key, seq)) }

func (s *Store) readMeta(txn *badger.Txn, key string) (metaRecord, error) {
	item, err := txn.Get(metaKey(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return metaRecord{}, fmt.Errorf("blob %s: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return metaRecord{}, err
	}
	var m metaRecord
	err = item.Value(func(v []byte) error { return json.Unmarshal(v, &m) })
	if err != nil {
		return metaRecord{}, fmt.Errorf("decode meta %s: %w", key, err)
	}
	return m, nil
}

func (s *Store) Put(_ context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	if strings.TrimSpace(key) == "" {
		return core.Info{}, fmt.Errorf("empty key")
	}
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(metaKey(key))
		return err
	})
	if err == nil {
		return core.Info{}, fmt.Errorf("blob %s: %w", key, core.ErrExists)
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return core.Info{}, err
	}

	wb := s.db.NewWriteBatch()
	m, err := writeChunks(wb, key, r, opts)
	if err != nil {
		wb.Cancel()
		return core.Info{}, err
	}
	if err := wb.Flush(); err != nil {
		return core.Info{}, fmt.Errorf("write blob %s: %w", key, err)
	}
	return m.info(key), nil
}

// writeChunks stages the payload chunks and the meta record on wb.
func writeChunks(wb *badger.WriteBatch, key string, r io.Reader, opts core.PutOptions) (metaRecord, error) {
	h := sha256.New()
	buf := make([]byte, chunkSize)
	var size int64
	chunks := 0
	for {
		n, rerr := io.ReadFull(r, buf)
		if n > 0 {
			h.Write(buf[:n])
			if err := wb.Set(chunkKey(key, chunks), append([]byte(nil), buf[:n]...)); err != nil {
				return metaRecord{}, err
			}
			size += int64(n)
			chunks++
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return metaRecord{}, rerr
		}
	}
	m := metaRecord{ContentType: opts.ContentType, Metadata: core.CloneMetadata(opts.Metadata), ETag: hex.EncodeToString(h.Sum(nil)), Size: size, Chunks: chunks, CreatedAt: time.Now().UTC()}
	b, err := json.Marshal(m)
	if err != nil {
		return metaRecord{}, err
	}
	return m, wb.Set(metaKey(key), b)
}

func (s *Store) Get(_ context.Context, key string) (core.Info, io.ReadCloser, error) {
	var (
		m   metaRecord
		buf bytes.Buffer
	)
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		m, err = s.readMeta(txn, key)
		if err != nil {
			return err
		}
		buf.Grow(int(m.Size))
		for seq := 0; seq < m.Chunks; seq++ {
			item, err := txn.Get(chunkKey(key, seq))
			if err != nil {
				return fmt.Errorf("read chunk %d of %s: %w", seq, key, err)
			}
			if err := item.Value(func(v []byte) error {
				_, werr := buf.Write(v)
				return werr
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return core.Info{}, nil, err
	}
	return m.info(key), io.NopCloser(&buf), nil
}

func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	var m metaRecord
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		m, err = s.readMeta(txn, key)
		return err
	})
	if err != nil {
		return core.Info{}, err
	}
	return m.info(key), nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(metaKey(key)); err != nil {
			return err
		}
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = chunkPrefix(key)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	wb := s.db.NewWriteBatch()
	// meta first so a partially deleted blob is no longer visible
	for _, k := range append([][]byte{metaKey(key)}, keys...) {
		if err := wb.Delete(k); err != nil {
			wb.Cancel()
			return false, err
		}
	}
	if err := wb.Flush(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	var infos []core.Info
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(metaPrefix + prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := strings.TrimPrefix(string(item.Key()), metaPrefix)
			var m metaRecord
			if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &m) }); err != nil {
				return fmt.Errorf("decode meta %s: %w", key, err)
			}
			infos = append(infos, m.info(key))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
