package cluster

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/weightpress/weightpress/internal/math32"
)

// CentroidInit selects the strategy for choosing initial centroid values
// before k-means refinement and fine-tuning.
type CentroidInit string

const (
	// LinearInit spaces centroids evenly between the smallest and largest
	// weight value.
	LinearInit CentroidInit = "linear"
	// RandomInit samples centroids uniformly from the weight values.
	RandomInit CentroidInit = "random"
	// DensityInit places centroids at evenly spaced quantiles of the weight
	// distribution, so dense value regions receive more centroids.
	DensityInit CentroidInit = "density"
	// KMeansPlusPlusInit uses D² sampling: each new centroid is drawn with
	// probability proportional to its squared distance from the nearest
	// already-chosen centroid.
	KMeansPlusPlusInit CentroidInit = "kmeans++"
)

// ParseCentroidInit converts a string to a CentroidInit.
func ParseCentroidInit(s string) (CentroidInit, error) {
	switch CentroidInit(s) {
	case LinearInit, RandomInit, DensityInit, KMeansPlusPlusInit:
		return CentroidInit(s), nil
	default:
		return "", fmt.Errorf("cluster: unknown centroid init %q", s)
	}
}

// initialCentroids computes k starting centroids for the given weight values.
func initialCentroids(values []float32, k int, init CentroidInit, rng *rand.Rand) ([]float32, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("cluster: no values to cluster")
	}

	switch init {
	case LinearInit:
		return linearCentroids(values, k), nil
	case RandomInit:
		return randomCentroids(values, k, rng), nil
	case DensityInit:
		return densityCentroids(values, k), nil
	case KMeansPlusPlusInit:
		return kmeansPlusPlusCentroids(values, k, rng), nil
	default:
		return nil, fmt.Errorf("cluster: unknown centroid init %q", init)
	}
}

func linearCentroids(values []float32, k int) []float32 {
	minVal, maxVal := math32.MinMax(values)

	centroids := make([]float32, k)
	if minVal == maxVal {
		for i := range centroids {
			centroids[i] = minVal
		}
		return centroids
	}

	step := (maxVal - minVal) / float32(k-1)
	for i := range centroids {
		centroids[i] = minVal + float32(i)*step
	}
	return centroids
}

func randomCentroids(values []float32, k int, rng *rand.Rand) []float32 {
	centroids := make([]float32, k)
	if len(values) >= k {
		for i, idx := range rng.Perm(len(values))[:k] {
			centroids[i] = values[idx]
		}
		return centroids
	}

	for i := range centroids {
		centroids[i] = values[rng.Intn(len(values))]
	}
	return centroids
}

func densityCentroids(values []float32, k int) []float32 {
	sorted := make([]float32, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	centroids := make([]float32, k)
	for i := range centroids {
		// Midpoint of the i-th of k equal-mass buckets.
		idx := (2*i + 1) * len(sorted) / (2 * k)
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		centroids[i] = sorted[idx]
	}
	return centroids
}

func kmeansPlusPlusCentroids(values []float32, k int, rng *rand.Rand) []float32 {
	centroids := make([]float32, 0, k)
	centroids = append(centroids, values[rng.Intn(len(values))])

	// minDistSq tracks each value's squared distance to its nearest chosen
	// centroid, updated incrementally (O(n) per centroid).
	minDistSq := make([]float32, len(values))
	var sum float32
	for i, v := range values {
		d := (v - centroids[0]) * (v - centroids[0])
		minDistSq[i] = d
		sum += d
	}

	for len(centroids) < k {
		if sum == 0 {
			centroids = append(centroids, values[rng.Intn(len(values))])
			continue
		}

		target := rng.Float32() * sum
		var cumsum float32
		chosen := 0
		for i, d := range minDistSq {
			cumsum += d
			if cumsum >= target {
				chosen = i
				break
			}
		}
		c := values[chosen]
		centroids = append(centroids, c)

		sum = 0
		for i, v := range values {
			d := (v - c) * (v - c)
			if d < minDistSq[i] {
				minDistSq[i] = d
			}
			sum += minDistSq[i]
		}
	}

	return centroids
}
