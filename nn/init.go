package nn

import (
	"math"
	"math/rand"
)

// HeInit fills weights with N(0, sqrt(2/fanIn)), the usual choice before
// ReLU activations.
func HeInit(rng *rand.Rand, weights []float32, fanIn int) {
	stddev := math.Sqrt(2 / float64(fanIn))
	for i := range weights {
		weights[i] = float32(rng.NormFloat64() * stddev)
	}
}

// GlorotInit fills weights uniformly in ±sqrt(6/(fanIn+fanOut)).
func GlorotInit(rng *rand.Rand, weights []float32, fanIn, fanOut int) {
	limit := float32(math.Sqrt(6 / float64(fanIn+fanOut)))
	for i := range weights {
		weights[i] = (rng.Float32()*2 - 1) * limit
	}
}
