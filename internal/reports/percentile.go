package reports

import "sort"

// percentile computes the p-th percentile (0..1) of sample using continuous
// linear interpolation between order statistics: rank = p*(n-1), interpolated
// between the floor and ceil ranks. This is deliberately computed in-process
// rather than with a database aggregate so the result is portable and
// independently testable. The sample is sorted in place.
func percentile(sample []float64, p float64) float64 {
	sort.Float64s(sample)

	n := len(sample)
	if n == 1 {
		return sample[0]
	}

	rank := p * float64(n-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= n {
		return sample[n-1]
	}

	frac := rank - float64(lo)
	return sample[lo] + frac*(sample[hi]-sample[lo])
}

// mean computes the arithmetic mean of a non-empty sample.
func mean(sample []float64) float64 {
	var sum float64
	for _, v := range sample {
		sum += v
	}
	return sum / float64(len(sample))
}
