package nn

import "github.com/weightpress/weightpress/tensor"

// Layer is a single-sample network stage.
//
// Forward caches whatever Backward needs, so a Layer instance must not be
// shared between concurrent samples; the trainer clones the network per
// gradient worker instead.
type Layer interface {
	// Forward computes the layer output for one input sample.
	Forward(in *tensor.Tensor) (*tensor.Tensor, error)

	// Backward consumes the gradient w.r.t. the layer output, accumulates
	// parameter gradients, and returns the gradient w.r.t. the input.
	Backward(grad *tensor.Tensor) (*tensor.Tensor, error)

	// Clone returns an independent deep copy, including parameters and
	// gradient accumulators but not cached activations.
	Clone() Layer
}

// ParamLayer is a Layer with trainable parameters.
//
// Params and Grads return aligned slices: Grads()[i] accumulates the
// gradient for Params()[i]. Both orderings must be stable across calls and
// across Clone.
type ParamLayer interface {
	Layer

	Params() []*tensor.Tensor
	Grads() []*tensor.Tensor
}

// zeroGrads resets the gradient accumulators of every parameterized layer.
func zeroGrads(layers []Layer) {
	for _, l := range layers {
		if pl, ok := l.(ParamLayer); ok {
			for _, g := range pl.Grads() {
				g.Zero()
			}
		}
	}
}
