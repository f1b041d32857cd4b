package frozen

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/weightpress/weightpress/nn"
	"github.com/weightpress/weightpress/tensor"
	"github.com/weightpress/weightpress/testutil"
)

func testNetwork(t *testing.T, seed int64) *nn.Sequential {
	t.Helper()

	rng := testutil.NewRNG(seed)
	conv := nn.NewConv2D(1, 2, 3, 3)
	rng.FillGaussian(conv.W.Data(), 0.3)
	rng.FillGaussian(conv.B.Data(), 0.1)

	dense := nn.NewDense(2*3*3, 4)
	rng.FillGaussian(dense.W.Data(), 0.3)
	rng.FillGaussian(dense.B.Data(), 0.1)

	return nn.NewSequential(
		conv,
		nn.NewReLU(),
		nn.NewMaxPool2D(2),
		nn.NewFlatten(),
		dense,
	)
}

func forward(t *testing.T, net *nn.Sequential, in []float32, shape []int) []float32 {
	t.Helper()

	x, err := tensor.FromSlice(in, shape...)
	if err != nil {
		t.Fatal(err)
	}
	out, err := net.Forward(x)
	if err != nil {
		t.Fatal(err)
	}
	return out.Data()
}

func TestSaveOpenRoundtrip(t *testing.T) {
	net := testNetwork(t, 1)
	path := filepath.Join(t.TempDir(), "model.wpf")

	if err := Save(path, net); err != nil {
		t.Fatalf("Save: %v", err)
	}

	m, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if m.Quantized() {
		t.Error("model should not be quantized")
	}
	if m.LayerCount() != 5 {
		t.Errorf("layer count = %d, want 5", m.LayerCount())
	}

	in := make([]float32, 8*8)
	testutil.NewRNG(2).FillUniform(in)
	shape := []int{1, 8, 8}

	want := forward(t, net, in, shape)
	got := forward(t, m.Network(), in, shape)

	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("output %d: %f != %f", i, got[i], want[i])
		}
	}
}

func TestSaveOpenQuantized(t *testing.T) {
	net := testNetwork(t, 3)
	dir := t.TempDir()
	raw := filepath.Join(dir, "raw.wpf")
	quant := filepath.Join(dir, "quant.wpf")

	if err := Save(raw, net); err != nil {
		t.Fatal(err)
	}
	if err := Save(quant, net, WithQuantization()); err != nil {
		t.Fatal(err)
	}

	rawInfo, err := os.Stat(raw)
	if err != nil {
		t.Fatal(err)
	}
	quantInfo, err := os.Stat(quant)
	if err != nil {
		t.Fatal(err)
	}
	if quantInfo.Size() >= rawInfo.Size() {
		t.Errorf("quantized file %d bytes, raw %d bytes", quantInfo.Size(), rawInfo.Size())
	}

	m, err := Open(quant)
	if err != nil {
		t.Fatal(err)
	}
	if !m.Quantized() {
		t.Error("model should be quantized")
	}

	in := make([]float32, 8*8)
	testutil.NewRNG(4).FillUniform(in)
	shape := []int{1, 8, 8}

	want := forward(t, net, in, shape)
	got := forward(t, m.Network(), in, shape)

	// 8-bit weights shift the outputs, but not by much on a small net.
	for i := range want {
		if math.Abs(float64(want[i]-got[i])) > 0.1 {
			t.Errorf("output %d drifted: %f vs %f", i, got[i], want[i])
		}
	}
}

func TestOpenMmapMatchesOpen(t *testing.T) {
	net := testNetwork(t, 5)
	path := filepath.Join(t.TempDir(), "model.wpf")
	if err := Save(path, net); err != nil {
		t.Fatal(err)
	}

	a, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	b, err := OpenMmap(path)
	if err != nil {
		t.Fatal(err)
	}

	in := make([]float32, 8*8)
	testutil.NewRNG(6).FillUniform(in)
	shape := []int{1, 8, 8}

	wantOut := forward(t, a.Network(), in, shape)
	gotOut := forward(t, b.Network(), in, shape)
	for i := range wantOut {
		if wantOut[i] != gotOut[i] {
			t.Fatalf("output %d: %f != %f", i, gotOut[i], wantOut[i])
		}
	}
}

func TestOpenCorruptPayload(t *testing.T) {
	net := testNetwork(t, 7)
	path := filepath.Join(t.TempDir(), "model.wpf")
	if err := Save(path, net); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	b[headerSize+10] ^= 0xff
	if err := os.WriteFile(path, b, 0644); err != nil {
		t.Fatal(err)
	}

	_, err = Open(path)
	if !IsChecksumMismatch(err) {
		t.Fatalf("err = %v, want checksum mismatch", err)
	}
}

func TestOpenTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.wpf")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Open(path)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestOpenBadMagic(t *testing.T) {
	net := testNetwork(t, 8)
	path := filepath.Join(t.TempDir(), "model.wpf")
	if err := Save(path, net); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	b[0] ^= 0xff
	if err := os.WriteFile(path, b, 0644); err != nil {
		t.Fatal(err)
	}

	_, err = Open(path)
	if !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("err = %v, want ErrInvalidMagic", err)
	}
}

type unknownLayer struct{}

func (unknownLayer) Forward(in *tensor.Tensor) (*tensor.Tensor, error)    { return in, nil }
func (unknownLayer) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) { return grad, nil }
func (unknownLayer) Clone() nn.Layer                                      { return unknownLayer{} }

func TestSaveRejectsUnknownLayer(t *testing.T) {
	net := nn.NewSequential(unknownLayer{})
	path := filepath.Join(t.TempDir(), "model.wpf")

	err := Save(path, net)
	if !errors.Is(err, ErrInvalidLayer) {
		t.Fatalf("err = %v, want ErrInvalidLayer", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("failed Save left a file behind")
	}
}

func TestInterpreterPredict(t *testing.T) {
	net := testNetwork(t, 9)
	path := filepath.Join(t.TempDir(), "model.wpf")
	if err := Save(path, net); err != nil {
		t.Fatal(err)
	}

	m, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	it := NewInterpreter(m, []int{1, 8, 8})

	rng := testutil.NewRNG(10)
	for i := 0; i < 20; i++ {
		in := make([]float32, 8*8)
		rng.FillUniform(in)

		x, err := tensor.FromSlice(in, 1, 8, 8)
		if err != nil {
			t.Fatal(err)
		}
		want, err := net.Predict(x)
		if err != nil {
			t.Fatal(err)
		}

		got, err := it.Predict(in)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("sample %d: predicted %d, want %d", i, got, want)
		}
	}
}
