// Package tensor provides the dense float32 tensor used as the weight and
// activation container throughout weightpress.
package tensor

import "fmt"

// Tensor is a dense, row-major float32 tensor.
//
// Data is always a single contiguous backing slice; views created by Reshape
// share it. The zero value is not usable, construct with New or FromSlice.
type Tensor struct {
	shape []int
	data  []float32
}

// New creates a zero-filled tensor with the given shape.
// Panics if any dimension is non-positive (programming error, not input error).
func New(shape ...int) *Tensor {
	n := 1
	for _, d := range shape {
		if d <= 0 {
			panic(fmt.Sprintf("tensor: invalid dimension %d", d))
		}
		n *= d
	}

	return &Tensor{
		shape: append([]int(nil), shape...),
		data:  make([]float32, n),
	}
}

// FromSlice wraps an existing slice without copying.
// Returns an error if the shape product does not match len(data).
func FromSlice(data []float32, shape ...int) (*Tensor, error) {
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return nil, fmt.Errorf("tensor: invalid dimension %d", d)
		}
		n *= d
	}
	if n != len(data) {
		return nil, fmt.Errorf("tensor: shape %v requires %d elements, got %d", shape, n, len(data))
	}

	return &Tensor{
		shape: append([]int(nil), shape...),
		data:  data,
	}, nil
}

// Shape returns the tensor's dimensions. Callers must not mutate it.
func (t *Tensor) Shape() []int { return t.shape }

// Data returns the backing slice. Mutations are visible to all views.
func (t *Tensor) Data() []float32 { return t.data }

// Len returns the total number of elements.
func (t *Tensor) Len() int { return len(t.data) }

// Dims returns the number of dimensions.
func (t *Tensor) Dims() int { return len(t.shape) }

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]float32, len(t.data))
	copy(data, t.data)

	return &Tensor{
		shape: append([]int(nil), t.shape...),
		data:  data,
	}
}

// Reshape returns a view with a new shape sharing the backing slice.
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	return FromSlice(t.data, shape...)
}

// Zero resets all elements to zero.
func (t *Tensor) Zero() {
	for i := range t.data {
		t.data[i] = 0
	}
}

// SameShape reports whether two tensors have identical shapes.
func SameShape(a, b *Tensor) bool {
	if a.Dims() != b.Dims() {
		return false
	}
	for i, d := range a.shape {
		if b.shape[i] != d {
			return false
		}
	}
	return true
}
