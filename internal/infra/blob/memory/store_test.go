package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"chemident/internal/blob/core"
)

func TestStore_PutGetHeadListDelete(t *testing.T) {
	ctx := context.Background()
	store := New()
	if store.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
	md := map[string]string{"table": "registry_phase"}
	info, err := store.Put(ctx, "indexes/registry_phase.json", bytes.NewReader([]byte(`{}`)), core.PutOptions{ContentType: "application/json", Metadata: md})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	md["table"] = "mutated"
	if info.Size != 2 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "indexes/registry_phase.json", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	h, err := store.Head(ctx, "indexes/registry_phase.json")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if h.Metadata["table"] != "registry_phase" {
		t.Fatalf("metadata not copied on put: %+v", h.Metadata)
	}
	_, rc, err := store.Get(ctx, "indexes/registry_phase.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(b) != "{}" {
		t.Fatalf("unexpected body %q", b)
	}
	list, _ := store.List(ctx, "indexes/")
	if len(list) != 1 {
		t.Fatalf("unexpected list %+v", list)
	}
	if ok, _ := store.Delete(ctx, "indexes/registry_phase.json"); !ok {
		t.Fatalf("expected delete")
	}
	if ok, _ := store.Delete(ctx, "indexes/registry_phase.json"); ok {
		t.Fatalf("second delete should be false")
	}
	if _, _, err := store.Get(ctx, "indexes/registry_phase.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Head(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from head, got %v", err)
	}
}

func TestStore_EmptyKeyAndReadError(t *testing.T) {
	store := New()
	if _, err := store.Put(context.Background(), "", bytes.NewReader(nil), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key error")
	}
	if _, err := store.Put(context.Background(), "k", iotestErrReader{}, core.PutOptions{}); err == nil {
		t.Fatalf("expected read error")
	}
}

type iotestErrReader struct{}

func (iotestErrReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestStore_Corrupt(t *testing.T) {
	ctx := context.Background()
	store := New()
	if store.Corrupt("absent", []byte("x")) {
		t.Fatalf("corrupt of absent key should report false")
	}
	if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("good")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !store.Corrupt("k", []byte("bad!!")) {
		t.Fatalf("expected corrupt to succeed")
	}
	info, rc, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	if string(b) != "bad!!" || info.Size != 5 {
		t.Fatalf("unexpected corrupted blob %q %+v", b, info)
	}
}
