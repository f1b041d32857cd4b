package measure

import (
	"bytes"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Sizes holds one artifact's byte size raw and under each compressor.
//
// Clustered weights repeat a small set of byte patterns, so the interesting
// signal is how much smaller the compressed sizes get relative to the
// uncompressed baseline.
type Sizes struct {
	Raw  int64
	Gzip int64
	Zstd int64
	LZ4  int64
}

// GzipRatio returns Raw/Gzip, the conventional headline number.
func (s Sizes) GzipRatio() float64 {
	if s.Gzip == 0 {
		return 0
	}
	return float64(s.Raw) / float64(s.Gzip)
}

// Compressed measures data under every supported compressor at its highest
// compression level.
func Compressed(data []byte) (Sizes, error) {
	s := Sizes{Raw: int64(len(data))}

	var err error
	if s.Gzip, err = gzipSize(data); err != nil {
		return Sizes{}, err
	}
	if s.Zstd, err = zstdSize(data); err != nil {
		return Sizes{}, err
	}
	if s.LZ4, err = lz4Size(data); err != nil {
		return Sizes{}, err
	}
	return s, nil
}

// File measures the file at path.
func File(path string) (Sizes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Sizes{}, err
	}
	return Compressed(data)
}

func gzipSize(data []byte) (int64, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return 0, err
	}
	if _, err := w.Write(data); err != nil {
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return int64(buf.Len()), nil
}

func zstdSize(data []byte) (int64, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return 0, err
	}
	out := enc.EncodeAll(data, nil)
	if err := enc.Close(); err != nil {
		return 0, err
	}
	return int64(len(out)), nil
}

func lz4Size(data []byte) (int64, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		// Incompressible; would be stored raw.
		return int64(len(data)), nil
	}
	return int64(n), nil
}
