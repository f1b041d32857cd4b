package frozen

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/weightpress/weightpress/nn"
	"github.com/weightpress/weightpress/quantize"
	"github.com/weightpress/weightpress/tensor"
)

// Option configures Save.
type Option func(*saveOptions)

type saveOptions struct {
	quantized bool
}

// WithQuantization stores weight tensors as 8-bit codes with a per-tensor
// affine range instead of raw float32, cutting weight storage by 4x.
// Biases stay float32.
func WithQuantization() Option {
	return func(o *saveOptions) { o.quantized = true }
}

// Save writes the network to filename in frozen format. Clustered networks
// must be stripped first; Save rejects layer types it does not know.
//
// The write is atomic: data goes to a temp file in the same directory which
// is renamed over the target once synced.
func Save(filename string, net *nn.Sequential, opts ...Option) error {
	var o saveOptions
	for _, opt := range opts {
		opt(&o)
	}

	var flags uint32
	if o.quantized {
		flags |= FlagQuantized
	}

	dir := filepath.Dir(filename)
	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	_ = tmp.Chmod(0644)

	buf := bufio.NewWriterSize(tmp, 256*1024)

	header := FileHeader{
		Magic:      MagicNumber,
		Version:    Version,
		Flags:      flags,
		LayerCount: uint32(len(net.Layers)),
	}
	if err := binary.Write(buf, binary.LittleEndian, &header); err != nil {
		return err
	}

	cw := newChecksumWriter(buf)
	for i, l := range net.Layers {
		if err := writeLayer(cw, l, o.quantized); err != nil {
			return fmt.Errorf("frozen: layer %d: %w", i, err)
		}
	}

	if err := buf.Flush(); err != nil {
		return err
	}

	// Patch the checksum now that the payload has streamed through.
	var sum [4]byte
	binary.LittleEndian.PutUint32(sum[:], cw.Sum())
	if _, err := tmp.WriteAt(sum[:], checksumOffset); err != nil {
		return err
	}

	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	tmpName = ""
	return nil
}

func writeLayer(w io.Writer, l nn.Layer, quantized bool) error {
	switch l := l.(type) {
	case *nn.Dense:
		if err := writeUint8(w, LayerDense); err != nil {
			return err
		}
		if err := writeUint32s(w, uint32(l.OutSize()), uint32(l.InSize())); err != nil {
			return err
		}
		if err := writeWeights(w, l.W, quantized); err != nil {
			return err
		}
		return writeFloat32Slice(w, l.B.Data())

	case *nn.Conv2D:
		s := l.W.Shape()
		if err := writeUint8(w, LayerConv2D); err != nil {
			return err
		}
		if err := writeUint32s(w, uint32(s[0]), uint32(s[1]), uint32(s[2]), uint32(s[3])); err != nil {
			return err
		}
		if err := writeWeights(w, l.W, quantized); err != nil {
			return err
		}
		return writeFloat32Slice(w, l.B.Data())

	case *nn.ReLU:
		return writeUint8(w, LayerReLU)

	case *nn.MaxPool2D:
		if err := writeUint8(w, LayerMaxPool); err != nil {
			return err
		}
		return writeUint32s(w, uint32(l.Size))

	case *nn.Flatten:
		return writeUint8(w, LayerFlatten)

	default:
		return fmt.Errorf("%w: %T", ErrInvalidLayer, l)
	}
}

func writeWeights(w io.Writer, t *tensor.Tensor, quantized bool) error {
	if !quantized {
		return writeFloat32Slice(w, t.Data())
	}

	q := quantize.NewScalar()
	if err := q.Fit(t.Data()); err != nil {
		return err
	}
	state, err := q.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := w.Write(state); err != nil {
		return err
	}
	_, err = w.Write(q.Encode(t.Data()))
	return err
}

func writeUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func writeUint32s(w io.Writer, vals ...uint32) error {
	var b [4]byte
	for _, v := range vals {
		binary.LittleEndian.PutUint32(b[:], v)
		if _, err := w.Write(b[:]); err != nil {
			return err
		}
	}
	return nil
}

// writeFloat32Slice writes a float32 slice as raw bytes (native byte order,
// little-endian on x86/ARM).
func writeFloat32Slice(w io.Writer, vals []float32) error {
	if len(vals) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&vals[0])), len(vals)*4)
	_, err := w.Write(b)
	return err
}
