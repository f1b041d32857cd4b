package blobstore

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func testStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	// Missing blob.
	if _, err := store.Open(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Open missing: err = %v, want ErrNotFound", err)
	}

	// Put and read back.
	data := []byte("frozen model bytes")
	if err := store.Put(ctx, "model.wpf", data); err != nil {
		t.Fatalf("Put: %v", err)
	}

	b, err := store.Open(ctx, "model.wpf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if b.Size() != int64(len(data)) {
		t.Errorf("size = %d, want %d", b.Size(), len(data))
	}
	got, err := ReadAll(b)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("read %q, want %q", got, data)
	}

	// Partial ReadAt.
	p := make([]byte, 6)
	if _, err := b.ReadAt(p, 7); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(p) != "model " {
		t.Errorf("ReadAt = %q, want %q", p, "model ")
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Overwrite replaces content.
	if err := store.Put(ctx, "model.wpf", []byte("v2")); err != nil {
		t.Fatal(err)
	}
	b, err = store.Open(ctx, "model.wpf")
	if err != nil {
		t.Fatal(err)
	}
	got, err = ReadAll(b)
	b.Close()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v2" {
		t.Errorf("after overwrite read %q, want %q", got, "v2")
	}

	// List with prefix.
	if err := store.Put(ctx, "RUN-000001.json", []byte("{}")); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, "RUN-000002.json", []byte("{}")); err != nil {
		t.Fatal(err)
	}
	names, err := store.List(ctx, "RUN-")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 2 || names[0] != "RUN-000001.json" || names[1] != "RUN-000002.json" {
		t.Errorf("List = %v", names)
	}

	// Delete, including a missing blob.
	if err := store.Delete(ctx, "RUN-000001.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "RUN-000001.json"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
	if _, err := store.Open(ctx, "RUN-000001.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Open deleted: err = %v, want ErrNotFound", err)
	}
}

func TestLocalStore(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	testStore(t, store)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	data := []byte("original")
	if err := store.Put(ctx, "blob", data); err != nil {
		t.Fatal(err)
	}
	data[0] = 'X'

	b, err := store.Open(ctx, "blob")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	got, err := ReadAll(b)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "original" {
		t.Errorf("stored blob mutated through caller slice: %q", got)
	}
}

func TestLocalStoreEmptyBlob(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Put(ctx, "empty", nil); err != nil {
		t.Fatal(err)
	}
	b, err := store.Open(ctx, "empty")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if b.Size() != 0 {
		t.Errorf("size = %d, want 0", b.Size())
	}
}
