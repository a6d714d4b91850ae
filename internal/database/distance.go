package database

// maxDescriptorDistance is returned for invalid input. It maps to score 0,
// so malformed descriptors can never qualify as a match.
const maxDescriptorDistance = 2.0

// SquaredEuclidean computes the squared Euclidean distance between two
// descriptors. Returns the maximum distance for mismatched or empty input
// so that malformed enrollment data ranks as non-matching instead of
// aborting recognition.
func SquaredEuclidean(a, b Descriptor) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return maxDescriptorDistance
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// Score converts a distance to a similarity score in [0, 1], higher is better.
// The linear mapping score = 1 - distance/2 is fixed: externally supplied
// thresholds are tuned against it and must stay comparable across releases.
func Score(distance float64) float64 {
	score := 1 - distance/2
	if score < 0 {
		return 0
	}
	return score
}
