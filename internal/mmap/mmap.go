// Package mmap provides read-only memory mapping of model files.
package mmap

import (
	"errors"
	"io"
	"os"
)

// Mapping is a read-only memory-mapped file.
type Mapping struct {
	data []byte
	f    *os.File
}

// Open maps the file at path into memory read-only.
// An empty file yields a Mapping with no bytes.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	size := fi.Size()
	if size < 0 {
		f.Close()
		return nil, errors.New("mmap: negative file size")
	}
	if size == 0 {
		return &Mapping{f: f}, nil
	}

	data, err := mapFile(f, int(size))
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Mapping{data: data, f: f}, nil
}

// Bytes returns the mapped contents. Valid until Close.
func (m *Mapping) Bytes() []byte { return m.data }

// ReadAt implements io.ReaderAt over the mapping.
func (m *Mapping) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close unmaps the memory and closes the underlying file.
func (m *Mapping) Close() error {
	if m == nil {
		return nil
	}

	var err error
	if m.data != nil {
		err = unmapFile(m.data)
		m.data = nil
	}
	if m.f != nil {
		if cerr := m.f.Close(); cerr != nil && err == nil {
			err = cerr
		}
		m.f = nil
	}

	return err
}
