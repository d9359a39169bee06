package probe

import "sort"

// TrimmedMean returns the arithmetic mean of values after discarding one
// minimum and one maximum, when there are more than two values. With one or
// two values it returns their plain mean, and zero for no values. values is
// not modified.
func TrimmedMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	v := append([]float64(nil), values...)
	if len(v) > 2 {
		sort.Float64s(v)
		v = v[1 : len(v)-1]
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}
