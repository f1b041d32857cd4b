package cluster

// kmeans refines centroids over scalar weight values with Lloyd iterations.
// Stops early once assignments stabilize. Empty clusters keep their previous
// centroid.
func kmeans(values, centroids []float32, maxIters int) []uint8 {
	assignments := make([]uint8, len(values))
	for i, v := range values {
		assignments[i] = nearestCentroid(v, centroids)
	}

	sums := make([]float32, len(centroids))
	counts := make([]int, len(centroids))

	for iter := 0; iter < maxIters; iter++ {
		// Update step.
		for i := range sums {
			sums[i] = 0
			counts[i] = 0
		}
		for i, v := range values {
			c := assignments[i]
			sums[c] += v
			counts[c]++
		}
		for i := range centroids {
			if counts[i] > 0 {
				centroids[i] = sums[i] / float32(counts[i])
			}
		}

		// Assignment step.
		changed := false
		for i, v := range values {
			c := nearestCentroid(v, centroids)
			if assignments[i] != c {
				assignments[i] = c
				changed = true
			}
		}

		if !changed {
			break
		}
	}

	return assignments
}

// nearestCentroid returns the index of the centroid closest to v.
// Ties resolve to the lowest index.
func nearestCentroid(v float32, centroids []float32) uint8 {
	best := 0
	bestDist := (v - centroids[0]) * (v - centroids[0])

	for i := 1; i < len(centroids); i++ {
		d := (v - centroids[i]) * (v - centroids[i])
		if d < bestDist {
			bestDist = d
			best = i
		}
	}

	return uint8(best)
}
