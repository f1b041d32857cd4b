package nn

import (
	"fmt"
	"math/rand"

	"github.com/weightpress/weightpress/internal/math32"
	"github.com/weightpress/weightpress/tensor"
)

// Sequential chains layers in order. The Layers slice is exported so
// compression passes can replace individual layers in place.
type Sequential struct {
	Layers []Layer
}

// NewSequential creates a network from the given layers.
func NewSequential(layers ...Layer) *Sequential {
	return &Sequential{Layers: layers}
}

// Forward runs one sample through every layer.
func (s *Sequential) Forward(in *tensor.Tensor) (*tensor.Tensor, error) {
	out := in
	for i, l := range s.Layers {
		var err error
		out, err = l.Forward(out)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
	}
	return out, nil
}

// Backward propagates the output gradient through every layer in reverse.
func (s *Sequential) Backward(grad *tensor.Tensor) error {
	for i := len(s.Layers) - 1; i >= 0; i-- {
		var err error
		grad, err = s.Layers[i].Backward(grad)
		if err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
	}
	return nil
}

// Params collects the trainable parameters of every layer, in layer order.
func (s *Sequential) Params() []*tensor.Tensor {
	var params []*tensor.Tensor
	for _, l := range s.Layers {
		if pl, ok := l.(ParamLayer); ok {
			params = append(params, pl.Params()...)
		}
	}
	return params
}

// Grads collects the gradient accumulators aligned with Params.
func (s *Sequential) Grads() []*tensor.Tensor {
	var grads []*tensor.Tensor
	for _, l := range s.Layers {
		if pl, ok := l.(ParamLayer); ok {
			grads = append(grads, pl.Grads()...)
		}
	}
	return grads
}

// ZeroGrads resets all gradient accumulators.
func (s *Sequential) ZeroGrads() { zeroGrads(s.Layers) }

// Clone returns an independent deep copy of the network.
func (s *Sequential) Clone() *Sequential {
	layers := make([]Layer, len(s.Layers))
	for i, l := range s.Layers {
		layers[i] = l.Clone()
	}
	return &Sequential{Layers: layers}
}

// Predict returns the argmax class for one input.
func (s *Sequential) Predict(in *tensor.Tensor) (int, error) {
	out, err := s.Forward(in)
	if err != nil {
		return 0, err
	}
	return math32.Argmax(out.Data()), nil
}

// NewMNISTClassifier builds the reference digit classifier:
// Conv2D(12 filters, 3×3) + ReLU → MaxPool(2) → Flatten → Dense(10).
func NewMNISTClassifier(rng *rand.Rand) *Sequential {
	conv := NewConv2D(1, 12, 3, 3)
	HeInit(rng, conv.W.Data(), 3*3)

	// 28×28 input → 26×26×12 after conv → 13×13×12 after pooling.
	dense := NewDense(12*13*13, 10)
	GlorotInit(rng, dense.W.Data(), dense.InSize(), dense.OutSize())

	return NewSequential(
		conv,
		NewReLU(),
		NewMaxPool2D(2),
		NewFlatten(),
		dense,
	)
}
