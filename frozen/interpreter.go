package frozen

import (
	"github.com/weightpress/weightpress/tensor"
)

// Interpreter runs inference over a loaded model.
//
// An Interpreter is not safe for concurrent use; layers cache activations
// between Forward and Backward. Create one per goroutine.
type Interpreter struct {
	model      *Model
	inputShape []int
}

// NewInterpreter creates an interpreter. inputShape is the per-sample tensor
// shape, e.g. [1, 28, 28]; nil treats each input as a flat vector.
func NewInterpreter(m *Model, inputShape []int) *Interpreter {
	return &Interpreter{model: m, inputShape: inputShape}
}

// Logits runs the forward pass and returns the raw output scores.
func (it *Interpreter) Logits(input []float32) ([]float32, error) {
	in, err := it.inputTensor(input)
	if err != nil {
		return nil, err
	}
	out, err := it.model.net.Forward(in)
	if err != nil {
		return nil, err
	}
	return out.Data(), nil
}

// Predict returns the class with the highest score.
func (it *Interpreter) Predict(input []float32) (int, error) {
	in, err := it.inputTensor(input)
	if err != nil {
		return 0, err
	}
	return it.model.net.Predict(in)
}

func (it *Interpreter) inputTensor(input []float32) (*tensor.Tensor, error) {
	shape := it.inputShape
	if shape == nil {
		shape = []int{len(input)}
	}
	return tensor.FromSlice(input, shape...)
}
