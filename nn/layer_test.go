package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/weightpress/weightpress/tensor"
)

// lossFor runs one forward pass and returns the scalar loss for a label.
func lossFor(t *testing.T, net *Sequential, in *tensor.Tensor, label int) float32 {
	t.Helper()

	out, err := net.Forward(in)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	loss, _, err := SoftmaxCrossEntropy{}.Loss(out, label)
	if err != nil {
		t.Fatalf("Loss: %v", err)
	}
	return loss
}

// checkGradients compares analytic parameter gradients against central
// finite differences.
func checkGradients(t *testing.T, net *Sequential, in *tensor.Tensor, label int) {
	t.Helper()

	out, err := net.Forward(in)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	_, probs, err := SoftmaxCrossEntropy{}.Loss(out, label)
	if err != nil {
		t.Fatalf("Loss: %v", err)
	}
	net.ZeroGrads()
	if err := net.Backward(SoftmaxCrossEntropy{}.Grad(probs, label)); err != nil {
		t.Fatalf("Backward: %v", err)
	}

	const eps = 1e-3
	params := net.Params()
	grads := net.Grads()

	for pi, p := range params {
		pd := p.Data()
		for j := 0; j < len(pd); j += 7 { // sample every 7th weight
			orig := pd[j]

			pd[j] = orig + eps
			plus := lossFor(t, net, in, label)
			pd[j] = orig - eps
			minus := lossFor(t, net, in, label)
			pd[j] = orig

			numeric := (plus - minus) / (2 * eps)
			analytic := grads[pi].Data()[j]

			if math.Abs(float64(numeric-analytic)) > 2e-2 {
				t.Fatalf("param %d[%d]: analytic %f vs numeric %f", pi, j, analytic, numeric)
			}
		}
	}
}

func TestDenseGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	dense := NewDense(6, 3)
	GlorotInit(rng, dense.W.Data(), 6, 3)
	net := NewSequential(dense)

	in := tensor.New(6)
	for i := range in.Data() {
		in.Data()[i] = rng.Float32()
	}

	checkGradients(t, net, in, 2)
}

func TestConvGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	conv := NewConv2D(1, 2, 3, 3)
	HeInit(rng, conv.W.Data(), 9)
	net := NewSequential(conv, NewReLU(), NewFlatten(), NewDense(2*4*4, 3))
	dense := net.Layers[3].(*Dense)
	GlorotInit(rng, dense.W.Data(), dense.InSize(), 3)

	in := tensor.New(1, 6, 6)
	for i := range in.Data() {
		in.Data()[i] = rng.Float32()
	}

	checkGradients(t, net, in, 1)
}

func TestDenseForwardKnownValues(t *testing.T) {
	dense := NewDense(2, 1)
	copy(dense.W.Data(), []float32{2, 3})
	dense.B.Data()[0] = 1

	in, _ := tensor.FromSlice([]float32{4, 5}, 2)
	out, err := dense.Forward(in)
	if err != nil {
		t.Fatal(err)
	}
	// 2*4 + 3*5 + 1 = 24
	if out.Data()[0] != 24 {
		t.Errorf("out = %f, want 24", out.Data()[0])
	}
}

func TestDenseShapeMismatch(t *testing.T) {
	dense := NewDense(4, 2)
	if _, err := dense.Forward(tensor.New(5)); err == nil {
		t.Fatal("expected error for wrong input length")
	}
}

func TestConvOutputShape(t *testing.T) {
	conv := NewConv2D(1, 12, 3, 3)
	out, err := conv.Forward(tensor.New(1, 28, 28))
	if err != nil {
		t.Fatal(err)
	}
	want := []int{12, 26, 26}
	for i, d := range want {
		if out.Shape()[i] != d {
			t.Fatalf("shape = %v, want %v", out.Shape(), want)
		}
	}
}

func TestConvRejectsSmallInput(t *testing.T) {
	conv := NewConv2D(1, 1, 5, 5)
	if _, err := conv.Forward(tensor.New(1, 3, 3)); err == nil {
		t.Fatal("expected error for input smaller than kernel")
	}
}

func TestMaxPool(t *testing.T) {
	pool := NewMaxPool2D(2)

	in, _ := tensor.FromSlice([]float32{
		1, 2, 5, 0,
		3, 4, 1, 1,
		9, 0, 2, 2,
		0, 0, 2, 8,
	}, 1, 4, 4)

	out, err := pool.Forward(in)
	if err != nil {
		t.Fatal(err)
	}

	want := []float32{4, 5, 9, 8}
	for i, v := range want {
		if out.Data()[i] != v {
			t.Fatalf("out = %v, want %v", out.Data(), want)
		}
	}

	// Gradient flows only to the winners.
	grad, _ := tensor.FromSlice([]float32{1, 1, 1, 1}, 1, 2, 2)
	dx, err := pool.Backward(grad)
	if err != nil {
		t.Fatal(err)
	}

	var nonzero int
	for _, v := range dx.Data() {
		if v != 0 {
			nonzero++
		}
	}
	if nonzero != 4 {
		t.Errorf("gradient routed to %d cells, want 4", nonzero)
	}
}

func TestReLU(t *testing.T) {
	r := NewReLU()

	in, _ := tensor.FromSlice([]float32{-1, 0, 2}, 3)
	out, err := r.Forward(in)
	if err != nil {
		t.Fatal(err)
	}
	want := []float32{0, 0, 2}
	for i, v := range want {
		if out.Data()[i] != v {
			t.Fatalf("out = %v, want %v", out.Data(), want)
		}
	}

	grad, _ := tensor.FromSlice([]float32{5, 5, 5}, 3)
	dx, err := r.Backward(grad)
	if err != nil {
		t.Fatal(err)
	}
	wantDx := []float32{0, 0, 5}
	for i, v := range wantDx {
		if dx.Data()[i] != v {
			t.Fatalf("dx = %v, want %v", dx.Data(), wantDx)
		}
	}
}

func TestBackwardBeforeForward(t *testing.T) {
	for _, l := range []Layer{NewDense(2, 2), NewConv2D(1, 1, 3, 3), NewMaxPool2D(2), NewReLU(), NewFlatten()} {
		if _, err := l.Backward(tensor.New(2)); err == nil {
			t.Errorf("%T: expected error for Backward before Forward", l)
		}
	}
}

func TestCloneIndependence(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	net := NewMNISTClassifier(rng)

	clone := net.Clone()
	clone.Params()[0].Data()[0] += 100

	if net.Params()[0].Data()[0] == clone.Params()[0].Data()[0] {
		t.Fatal("clone shares parameter storage with original")
	}
}
