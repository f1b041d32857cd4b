package nn

import (
	"fmt"

	"github.com/weightpress/weightpress/tensor"
)

// ReLU applies max(0, x) element-wise.
type ReLU struct {
	mask []bool
}

// NewReLU creates a ReLU activation layer.
func NewReLU() *ReLU { return &ReLU{} }

// Forward zeroes negative inputs.
func (r *ReLU) Forward(in *tensor.Tensor) (*tensor.Tensor, error) {
	out := in.Clone()
	r.mask = make([]bool, in.Len())

	y := out.Data()
	for i, v := range y {
		if v > 0 {
			r.mask[i] = true
		} else {
			y[i] = 0
		}
	}

	return out, nil
}

// Backward passes gradients only where the input was positive.
func (r *ReLU) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	if r.mask == nil {
		return nil, fmt.Errorf("relu: Backward before Forward")
	}
	if grad.Len() != len(r.mask) {
		return nil, fmt.Errorf("relu: gradient length %d, want %d", grad.Len(), len(r.mask))
	}

	dx := grad.Clone()
	dxd := dx.Data()
	for i, keep := range r.mask {
		if !keep {
			dxd[i] = 0
		}
	}

	return dx, nil
}

// Clone returns a copy without cached state.
func (r *ReLU) Clone() Layer { return &ReLU{} }

// Flatten reshapes any input to a vector.
type Flatten struct {
	inShape []int
}

// NewFlatten creates a flatten layer.
func NewFlatten() *Flatten { return &Flatten{} }

// Forward flattens the input to one dimension.
func (f *Flatten) Forward(in *tensor.Tensor) (*tensor.Tensor, error) {
	f.inShape = in.Shape()
	return in.Reshape(in.Len())
}

// Backward restores the original shape.
func (f *Flatten) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	if f.inShape == nil {
		return nil, fmt.Errorf("flatten: Backward before Forward")
	}
	return grad.Reshape(f.inShape...)
}

// Clone returns a copy without cached state.
func (f *Flatten) Clone() Layer { return &Flatten{} }
