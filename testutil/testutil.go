package testutil

import (
	"math/rand"
	"sync"
)

// RNG encapsulates a seeded random number generator.
// It is safe for concurrent use.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 { return r.seed }

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// FillUniform fills dst with random values in [0, 1).
// Locks only once per call (preferred over calling Float32 in a loop).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// FillGaussian fills dst with values drawn from N(0, stddev).
func (r *RNG) FillGaussian(dst []float32, stddev float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = float32(r.rand.NormFloat64()) * stddev
	}
}

// Images generates num flattened synthetic images of the given side length
// with pixel values in [0, 1).
func (r *RNG) Images(num, side int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*side*side)
	images := make([][]float32, num)

	for i := range num {
		img := data[i*side*side : (i+1)*side*side]
		for j := range img {
			img[j] = r.rand.Float32()
		}
		images[i] = img
	}

	return images
}

// Labels generates num random class labels in [0, classes).
func (r *RNG) Labels(num, classes int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	labels := make([]int, num)
	for i := range labels {
		labels[i] = r.rand.Intn(classes)
	}

	return labels
}

// ClusteredValues generates n values clustered around the given centers with
// Gaussian noise. Useful for exercising centroid initialization strategies on
// data with a known cluster structure.
func (r *RNG) ClusteredValues(n int, centers []float32, spread float32) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	values := make([]float32, n)
	for i := range values {
		c := centers[i%len(centers)]
		values[i] = c + float32(r.rand.NormFloat64())*spread
	}

	return values
}
