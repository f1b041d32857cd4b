package mmap

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenReadClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	want := []byte("weightpress mapped payload")
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if !bytes.Equal(m.Bytes(), want) {
		t.Errorf("Bytes = %q, want %q", m.Bytes(), want)
	}

	p := make([]byte, 6)
	n, err := m.ReadAt(p, 12)
	if err != nil || n != 6 {
		t.Fatalf("ReadAt: n=%d err=%v", n, err)
	}
	if string(p) != "mapped" {
		t.Errorf("ReadAt = %q", p)
	}

	if err := m.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	// Double close is safe.
	if err := m.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestOpenEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	if len(m.Bytes()) != 0 {
		t.Errorf("expected empty mapping, got %d bytes", len(m.Bytes()))
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
