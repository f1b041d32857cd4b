package frozen

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"unsafe"

	"github.com/weightpress/weightpress/internal/mmap"
	"github.com/weightpress/weightpress/nn"
	"github.com/weightpress/weightpress/quantize"
)

// Model is a frozen model loaded into memory.
type Model struct {
	header FileHeader
	net    *nn.Sequential
}

// Network returns the executable network.
func (m *Model) Network() *nn.Sequential { return m.net }

// Quantized reports whether the file stored 8-bit weights.
func (m *Model) Quantized() bool { return m.header.Quantized() }

// LayerCount returns the number of layers.
func (m *Model) LayerCount() int { return int(m.header.LayerCount) }

// Open loads a frozen model file.
func Open(filename string) (*Model, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return decode(b)
}

// OpenMmap loads a frozen model through a read-only memory mapping, avoiding
// a second in-memory copy of the file during decode. The mapping is released
// before returning; the model owns its weights.
func OpenMmap(filename string) (*Model, error) {
	m, err := mmap.Open(filename)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	return decode(m.Bytes())
}

func decode(b []byte) (*Model, error) {
	if len(b) < headerSize {
		return nil, ErrTruncated
	}

	var header FileHeader
	if err := binary.Read(bytes.NewReader(b[:headerSize]), binary.LittleEndian, &header); err != nil {
		return nil, err
	}
	if header.Magic != MagicNumber {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, header.Magic)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, header.Version)
	}

	payload := b[headerSize:]
	if actual := crc32.ChecksumIEEE(payload); actual != header.Checksum {
		return nil, &ChecksumMismatchError{Expected: header.Checksum, Actual: actual}
	}

	r := &sliceReader{b: payload}
	layers := make([]nn.Layer, 0, header.LayerCount)
	for i := 0; i < int(header.LayerCount); i++ {
		l, err := readLayer(r, header.Quantized())
		if err != nil {
			return nil, fmt.Errorf("frozen: layer %d: %w", i, err)
		}
		layers = append(layers, l)
	}

	return &Model{header: header, net: nn.NewSequential(layers...)}, nil
}

func readLayer(r *sliceReader, quantized bool) (nn.Layer, error) {
	kind, err := r.readUint8()
	if err != nil {
		return nil, err
	}

	switch kind {
	case LayerDense:
		out, err := r.readUint32()
		if err != nil {
			return nil, err
		}
		in, err := r.readUint32()
		if err != nil {
			return nil, err
		}
		l := nn.NewDense(int(in), int(out))
		if err := readWeights(r, l.W.Data(), quantized); err != nil {
			return nil, err
		}
		if err := r.readFloat32Into(l.B.Data()); err != nil {
			return nil, err
		}
		return l, nil

	case LayerConv2D:
		var dims [4]uint32
		for i := range dims {
			if dims[i], err = r.readUint32(); err != nil {
				return nil, err
			}
		}
		filters, channels, kh, kw := int(dims[0]), int(dims[1]), int(dims[2]), int(dims[3])
		l := nn.NewConv2D(channels, filters, kh, kw)
		if err := readWeights(r, l.W.Data(), quantized); err != nil {
			return nil, err
		}
		if err := r.readFloat32Into(l.B.Data()); err != nil {
			return nil, err
		}
		return l, nil

	case LayerReLU:
		return nn.NewReLU(), nil

	case LayerMaxPool:
		size, err := r.readUint32()
		if err != nil {
			return nil, err
		}
		return nn.NewMaxPool2D(int(size)), nil

	case LayerFlatten:
		return nn.NewFlatten(), nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidLayer, kind)
	}
}

func readWeights(r *sliceReader, dst []float32, quantized bool) error {
	if !quantized {
		return r.readFloat32Into(dst)
	}

	state, err := r.readBytes(8)
	if err != nil {
		return err
	}
	var q quantize.Scalar
	if err := q.UnmarshalBinary(state); err != nil {
		return err
	}

	codes, err := r.readBytes(len(dst))
	if err != nil {
		return err
	}
	q.DecodeInto(codes, dst)
	return nil
}

// sliceReader provides bounds-checked reads from a byte slice, so a decode
// over a mmapped region needs no intermediate allocations.
type sliceReader struct {
	b   []byte
	off int
}

func (r *sliceReader) readBytes(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.b) {
		return nil, fmt.Errorf("%w: %d bytes at %d, len=%d", ErrTruncated, n, r.off, len(r.b))
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *sliceReader) readUint8() (uint8, error) {
	b, err := r.readBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *sliceReader) readUint32() (uint32, error) {
	b, err := r.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// readFloat32Into copies raw float32 bytes into dst. The source may be
// unaligned (records are byte-packed); the copy realigns it.
func (r *sliceReader) readFloat32Into(dst []float32) error {
	if len(dst) == 0 {
		return nil
	}
	bb, err := r.readBytes(len(dst) * 4)
	if err != nil {
		return err
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&dst[0])), len(dst)*4), bb)
	return nil
}
