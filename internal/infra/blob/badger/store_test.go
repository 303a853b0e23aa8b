package badger

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"chemident/internal/blob/core"
)

func newInMemory(t *testing.T) *Store {
	t.Helper()
	store, err := NewInMemory()
	if err != nil {
		t.Fatalf("NewInMemory: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_PutGetHeadListDelete(t *testing.T) { //nolint:cyclop
	ctx := context.Background()
	store := newInMemory(t)
	if store.Driver() != core.DriverBadger || store.Path() != "" {
		t.Fatalf("unexpected store %s %q", store.Driver(), store.Path())
	}
	info, err := store.Put(ctx, "indexes/source_names.json", strings.NewReader(`{"7":"DrugBank"}`), core.PutOptions{ContentType: "application/json", Metadata: map[string]string{"entries": "1"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 16 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "indexes/source_names.json", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	h, err := store.Head(ctx, "indexes/source_names.json")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if h.Metadata["entries"] != "1" || h.ETag != info.ETag {
		t.Fatalf("unexpected head %+v", h)
	}
	_, rc, err := store.Get(ctx, "indexes/source_names.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(b) != `{"7":"DrugBank"}` {
		t.Fatalf("unexpected body %q", b)
	}
	list, err := store.List(ctx, "indexes/")
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %+v", err, list)
	}
	ok, err := store.Delete(ctx, "indexes/source_names.json")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	ok, err = store.Delete(ctx, "indexes/source_names.json")
	if err != nil || ok {
		t.Fatalf("second delete should report false: %v %v", ok, err)
	}
	if _, _, err := store.Get(ctx, "indexes/source_names.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ChunkedPayload(t *testing.T) {
	ctx := context.Background()
	store := newInMemory(t)
	payload := bytes.Repeat([]byte("0123456789abcdef"), chunkSize/16*2+3)
	info, err := store.Put(ctx, "big", bytes.NewReader(payload), core.PutOptions{})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len(payload)) {
		t.Fatalf("unexpected size %d", info.Size)
	}
	_, rc, err := store.Get(ctx, "big")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: %d vs %d bytes", len(got), len(payload))
	}
}

func TestStore_NestedKeysDoNotShareChunks(t *testing.T) {
	ctx := context.Background()
	store := newInMemory(t)
	if _, err := store.Put(ctx, "a", strings.NewReader("parent"), core.PutOptions{}); err != nil {
		t.Fatalf("put a: %v", err)
	}
	if _, err := store.Put(ctx, "a/b", strings.NewReader("child"), core.PutOptions{}); err != nil {
		t.Fatalf("put a/b: %v", err)
	}
	if ok, err := store.Delete(ctx, "a"); err != nil || !ok {
		t.Fatalf("delete a: %v %v", ok, err)
	}
	_, rc, err := store.Get(ctx, "a/b")
	if err != nil {
		t.Fatalf("get a/b: %v", err)
	}
	b, _ := io.ReadAll(rc)
	if string(b) != "child" {
		t.Fatalf("unexpected body %q", b)
	}
}

func TestStore_EmptyPayloadAndKey(t *testing.T) {
	ctx := context.Background()
	store := newInMemory(t)
	if _, err := store.Put(ctx, " ", strings.NewReader("x"), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key error")
	}
	if _, err := store.Put(ctx, "empty", strings.NewReader(""), core.PutOptions{}); err != nil {
		t.Fatalf("put empty: %v", err)
	}
	info, rc, err := store.Get(ctx, "empty")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	if len(b) != 0 || info.Size != 0 {
		t.Fatalf("expected empty blob, got %q", b)
	}
}

func TestNew_RequiresPath(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected path error")
	}
	store, err := New(Config{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
