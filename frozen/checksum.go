package frozen

import (
	"fmt"
	"hash"
	"hash/crc32"
	"io"
)

// CRC32 (IEEE polynomial) detects accidental storage corruption. It is not
// cryptographically secure and is no defense against tampering.

var crc32Table = crc32.MakeTable(crc32.IEEE)

type checksumWriter struct {
	w    io.Writer
	hash hash.Hash32
}

func newChecksumWriter(w io.Writer) *checksumWriter {
	return &checksumWriter{
		w:    w,
		hash: crc32.New(crc32Table),
	}
}

func (cw *checksumWriter) Write(p []byte) (int, error) {
	if _, err := cw.hash.Write(p); err != nil {
		return 0, err
	}
	return cw.w.Write(p)
}

func (cw *checksumWriter) Sum() uint32 {
	return cw.hash.Sum32()
}

// ChecksumMismatchError is returned when payload verification fails on load.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("frozen: checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}

// IsChecksumMismatch returns true if err is a checksum mismatch error.
func IsChecksumMismatch(err error) bool {
	_, ok := err.(*ChecksumMismatchError)
	return ok
}
