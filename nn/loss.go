package nn

import (
	"fmt"
	"math"

	"github.com/weightpress/weightpress/internal/math32"
	"github.com/weightpress/weightpress/tensor"
)

// SoftmaxCrossEntropy combines softmax and cross-entropy loss, which gives
// the numerically stable gradient probs - onehot(label).
type SoftmaxCrossEntropy struct{}

// Loss returns the cross-entropy loss and class probabilities for one sample.
func (SoftmaxCrossEntropy) Loss(logits *tensor.Tensor, label int) (float32, *tensor.Tensor, error) {
	if label < 0 || label >= logits.Len() {
		return 0, nil, fmt.Errorf("loss: label %d out of range [0,%d)", label, logits.Len())
	}

	probs := tensor.New(logits.Len())
	math32.Softmax(probs.Data(), logits.Data())

	p := probs.Data()[label]
	if p < 1e-12 {
		p = 1e-12
	}

	return -float32(math.Log(float64(p))), probs, nil
}

// Grad returns the gradient of the loss w.r.t. the logits.
func (SoftmaxCrossEntropy) Grad(probs *tensor.Tensor, label int) *tensor.Tensor {
	grad := probs.Clone()
	grad.Data()[label] -= 1
	return grad
}
