package vectorindex

// Dot returns the inner product of two equal-length vectors, accumulated
// in float64 so ordering stays stable for near-ties.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Distance is the prenormalized angular distance 1 − dot(a, b). Producers
// supply unit vectors; the index never renormalizes, so un-normalized
// input only loses the bounded range, not correctness of the traversal.
func Distance(a, b []float32) float64 {
	return 1 - Dot(a, b)
}

// Closeness converts a distance back to the similarity reported to
// rankers: closeness = 1 − distance = dot(query, vector).
func Closeness(dist float64) float64 {
	return 1 - dist
}
