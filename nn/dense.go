package nn

import (
	"fmt"

	"github.com/weightpress/weightpress/internal/math32"
	"github.com/weightpress/weightpress/tensor"
)

// Dense is a fully connected layer: y = Wx + b.
//
// W has shape [out, in] (row-major, one row per output unit).
type Dense struct {
	W *tensor.Tensor
	B *tensor.Tensor

	gradW *tensor.Tensor
	gradB *tensor.Tensor

	in *tensor.Tensor // cached input
}

// NewDense creates a dense layer with zero-initialized parameters.
// Use an Initializer to fill W before training.
func NewDense(inSize, outSize int) *Dense {
	return &Dense{
		W:     tensor.New(outSize, inSize),
		B:     tensor.New(outSize),
		gradW: tensor.New(outSize, inSize),
		gradB: tensor.New(outSize),
	}
}

// InSize returns the input width.
func (d *Dense) InSize() int { return d.W.Shape()[1] }

// OutSize returns the output width.
func (d *Dense) OutSize() int { return d.W.Shape()[0] }

// Forward computes Wx + b.
func (d *Dense) Forward(in *tensor.Tensor) (*tensor.Tensor, error) {
	inSize, outSize := d.InSize(), d.OutSize()
	if in.Len() != inSize {
		return nil, fmt.Errorf("dense: input length %d, want %d", in.Len(), inSize)
	}

	d.in = in

	out := tensor.New(outSize)
	w := d.W.Data()
	x := in.Data()
	y := out.Data()
	for o := 0; o < outSize; o++ {
		y[o] = math32.Dot(w[o*inSize:(o+1)*inSize], x) + d.B.Data()[o]
	}

	return out, nil
}

// Backward accumulates dW and db and returns dx.
func (d *Dense) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	inSize, outSize := d.InSize(), d.OutSize()
	if grad.Len() != outSize {
		return nil, fmt.Errorf("dense: gradient length %d, want %d", grad.Len(), outSize)
	}
	if d.in == nil {
		return nil, fmt.Errorf("dense: Backward before Forward")
	}

	g := grad.Data()
	x := d.in.Data()
	w := d.W.Data()
	gw := d.gradW.Data()
	gb := d.gradB.Data()

	dx := tensor.New(inSize)
	dxd := dx.Data()

	for o := 0; o < outSize; o++ {
		row := o * inSize
		math32.Axpy(g[o], x, gw[row:row+inSize])
		gb[o] += g[o]
		math32.Axpy(g[o], w[row:row+inSize], dxd)
	}

	return dx, nil
}

// Params returns [W, B].
func (d *Dense) Params() []*tensor.Tensor { return []*tensor.Tensor{d.W, d.B} }

// Grads returns the accumulators aligned with Params.
func (d *Dense) Grads() []*tensor.Tensor { return []*tensor.Tensor{d.gradW, d.gradB} }

// Clone returns a deep copy without cached activations.
func (d *Dense) Clone() Layer {
	return &Dense{
		W:     d.W.Clone(),
		B:     d.B.Clone(),
		gradW: d.gradW.Clone(),
		gradB: d.gradB.Clone(),
	}
}
