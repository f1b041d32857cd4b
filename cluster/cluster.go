package cluster

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/weightpress/weightpress/nn"
	"github.com/weightpress/weightpress/tensor"
)

// MaxCentroids is the upper bound on centroids per layer; indices are stored
// as single bytes.
const MaxCentroids = 256

var (
	// ErrInvalidCentroids is returned for a centroid count outside [2, 256].
	ErrInvalidCentroids = errors.New("cluster: centroids must be in [2, 256]")
	// ErrNothingToCluster is returned when a network has no clusterable layers.
	ErrNothingToCluster = errors.New("cluster: network has no dense or conv layers")
)

// Config controls clustering.
type Config struct {
	// Centroids is the number of shared weight values per layer (K).
	Centroids int
	// Init selects the centroid initialization strategy.
	Init CentroidInit
	// Iterations bounds the k-means refinement. Defaults to 20.
	Iterations int
}

func (c *Config) validate() error {
	if c.Centroids < 2 || c.Centroids > MaxCentroids {
		return fmt.Errorf("%w: got %d", ErrInvalidCentroids, c.Centroids)
	}
	if c.Init == "" {
		c.Init = LinearInit
	}
	if _, err := ParseCentroidInit(string(c.Init)); err != nil {
		return err
	}
	if c.Iterations <= 0 {
		c.Iterations = 20
	}
	return nil
}

// Wrapped decorates a dense or conv layer with clustering state.
//
// The wrapped layer's weight tensor is materialized from the centroid table
// before every forward pass, and per-weight gradients fold into centroid
// gradients on the backward pass, so an ordinary training loop fine-tunes
// the centroids. The weight→centroid assignment is fixed at Apply time.
//
// Wrapped relies on the convention that Params()[0] of the inner layer is
// its weight tensor and Params()[1] its bias.
type Wrapped struct {
	inner nn.ParamLayer

	indices       []uint8
	centroids     *tensor.Tensor
	gradCentroids *tensor.Tensor
}

func wrap(inner nn.ParamLayer, cfg Config, rng *rand.Rand) (*Wrapped, error) {
	weights := inner.Params()[0].Data()

	centroids, err := initialCentroids(weights, cfg.Centroids, cfg.Init, rng)
	if err != nil {
		return nil, err
	}
	indices := kmeans(weights, centroids, cfg.Iterations)

	ct, err := tensor.FromSlice(centroids, len(centroids))
	if err != nil {
		return nil, err
	}

	return &Wrapped{
		inner:         inner,
		indices:       indices,
		centroids:     ct,
		gradCentroids: tensor.New(len(centroids)),
	}, nil
}

// Forward materializes clustered weights and delegates to the inner layer.
func (w *Wrapped) Forward(in *tensor.Tensor) (*tensor.Tensor, error) {
	w.materialize()
	return w.inner.Forward(in)
}

// Backward delegates to the inner layer, then folds the per-weight gradient
// into the centroid gradient table.
func (w *Wrapped) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	// The inner weight-gradient accumulator is reused as scratch: it is
	// zeroed here so after the delegate call it holds exactly this sample's
	// contribution.
	innerGradW := w.inner.Grads()[0]
	innerGradW.Zero()

	dx, err := w.inner.Backward(grad)
	if err != nil {
		return nil, err
	}

	gc := w.gradCentroids.Data()
	for i, idx := range w.indices {
		gc[idx] += innerGradW.Data()[i]
	}

	return dx, nil
}

// Params returns [centroids, bias]: fine-tuning trains the centroid table.
func (w *Wrapped) Params() []*tensor.Tensor {
	return []*tensor.Tensor{w.centroids, w.inner.Params()[1]}
}

// Grads returns the accumulators aligned with Params.
func (w *Wrapped) Grads() []*tensor.Tensor {
	return []*tensor.Tensor{w.gradCentroids, w.inner.Grads()[1]}
}

// Clone returns an independent deep copy.
func (w *Wrapped) Clone() nn.Layer {
	indices := make([]uint8, len(w.indices))
	copy(indices, w.indices)

	return &Wrapped{
		inner:         w.inner.Clone().(nn.ParamLayer),
		indices:       indices,
		centroids:     w.centroids.Clone(),
		gradCentroids: w.gradCentroids.Clone(),
	}
}

// Centroids returns the current centroid values.
func (w *Wrapped) Centroids() []float32 { return w.centroids.Data() }

// materialize writes centroid lookups into the inner weight tensor.
func (w *Wrapped) materialize() {
	weights := w.inner.Params()[0].Data()
	c := w.centroids.Data()
	for i, idx := range w.indices {
		weights[i] = c[idx]
	}
}

// strip materializes final weights and returns the bare inner layer.
func (w *Wrapped) strip() nn.ParamLayer {
	w.materialize()
	return w.inner
}

// Apply wraps every dense and conv layer of the network in place.
func Apply(net *nn.Sequential, cfg Config, rng *rand.Rand) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	wrapped := 0
	for i, l := range net.Layers {
		switch l.(type) {
		case *nn.Dense, *nn.Conv2D:
			wl, err := wrap(l.(nn.ParamLayer), cfg, rng)
			if err != nil {
				return fmt.Errorf("layer %d: %w", i, err)
			}
			net.Layers[i] = wl
			wrapped++
		}
	}

	if wrapped == 0 {
		return ErrNothingToCluster
	}
	return nil
}

// Strip removes clustering state from the network in place, leaving plain
// layers whose weight tensors hold the final centroid lookups. Layers that
// were never wrapped pass through untouched.
func Strip(net *nn.Sequential) {
	for i, l := range net.Layers {
		if wl, ok := l.(*Wrapped); ok {
			net.Layers[i] = wl.strip()
		}
	}
}

// UniqueWeights counts distinct values in a tensor. After Strip, every
// clustered weight tensor has at most Config.Centroids unique values.
func UniqueWeights(t *tensor.Tensor) int {
	seen := make(map[float32]struct{}, MaxCentroids)
	for _, v := range t.Data() {
		seen[v] = struct{}{}
	}
	return len(seen)
}
