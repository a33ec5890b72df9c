package numeric

import "math"

// estimateMultiValueSelectionCardinality returns the expected number of
// distinct points touched when expectedValues values are drawn uniformly at
// random out of totalValues values spread over points points. Standard
// occupancy-problem approximation: a point with the average value multiplicity
// survives a single draw with probability 1 - 1/points, so after n draws the
// expected number of touched points is points * (1 - (1 - 1/points)^n).
func estimateMultiValueSelectionCardinality(points, totalValues int, expectedValues float64) float64 {
	if points == 0 || totalValues == 0 || expectedValues <= 0 {
		return 0
	}

	p := float64(points)
	return p * (1 - math.Pow(1-1/p, expectedValues))
}
