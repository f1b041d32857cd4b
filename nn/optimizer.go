package nn

import (
	"math"

	"github.com/weightpress/weightpress/tensor"
)

// Optimizer updates parameters from accumulated gradients.
//
// Implementations with per-parameter state (Adam) key it positionally, so an
// optimizer instance must always be fed the same parameter list in the same
// order. Create a fresh optimizer after structural changes such as Strip.
type Optimizer interface {
	Step(params, grads []*tensor.Tensor)
}

// SGD is stochastic gradient descent with optional momentum.
type SGD struct {
	LearningRate float32
	Momentum     float32

	velocity map[int][]float32
}

// NewSGD creates an SGD optimizer.
func NewSGD(lr, momentum float32) *SGD {
	return &SGD{
		LearningRate: lr,
		Momentum:     momentum,
		velocity:     make(map[int][]float32),
	}
}

// Step applies one update. Gradients are not reset.
func (s *SGD) Step(params, grads []*tensor.Tensor) {
	for i, p := range params {
		pd := p.Data()
		gd := grads[i].Data()

		if s.Momentum == 0 {
			for j := range pd {
				pd[j] -= s.LearningRate * gd[j]
			}
			continue
		}

		v, ok := s.velocity[i]
		if !ok {
			v = make([]float32, len(pd))
			s.velocity[i] = v
		}
		for j := range pd {
			v[j] = s.Momentum*v[j] - s.LearningRate*gd[j]
			pd[j] += v[j]
		}
	}
}

// Adam implements the Adam optimizer with bias correction.
type Adam struct {
	LearningRate float32
	Beta1        float32
	Beta2        float32
	Epsilon      float32

	t int
	m map[int][]float32
	v map[int][]float32
}

// NewAdam creates an Adam optimizer with the standard beta defaults.
func NewAdam(lr float32) *Adam {
	return &Adam{
		LearningRate: lr,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		m:            make(map[int][]float32),
		v:            make(map[int][]float32),
	}
}

// Step applies one update. Gradients are not reset.
func (a *Adam) Step(params, grads []*tensor.Tensor) {
	a.t++
	c1 := 1 - float32(math.Pow(float64(a.Beta1), float64(a.t)))
	c2 := 1 - float32(math.Pow(float64(a.Beta2), float64(a.t)))

	for i, p := range params {
		pd := p.Data()
		gd := grads[i].Data()

		m, ok := a.m[i]
		if !ok {
			m = make([]float32, len(pd))
			a.m[i] = m
		}
		v, ok := a.v[i]
		if !ok {
			v = make([]float32, len(pd))
			a.v[i] = v
		}

		for j := range pd {
			g := gd[j]
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*g
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*g*g

			mHat := m[j] / c1
			vHat := v[j] / c2
			pd[j] -= a.LearningRate * mHat / (float32(math.Sqrt(float64(vHat))) + a.Epsilon)
		}
	}
}
