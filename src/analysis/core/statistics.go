package core

import "math"

// -----------------------------------------------------------------------------

// RollingMean computes the mean over a trailing window ending at each index.
// NaN inputs count as missing. A value is produced once the window holds at least
// minPeriods non-missing inputs; otherwise the entry is nil.
// Every window is summed from scratch so the result carries no accumulated rounding.
func RollingMean(data []float64, window, minPeriods int) []*float64 {
	result := make([]*float64, len(data))
	if window <= 0 {
		return result
	}

	for i := range data {
		start := i - window + 1
		if start < 0 {
			start = 0
		}

		sum := 0.0
		count := 0
		for _, v := range data[start : i+1] {
			if math.IsNaN(v) {
				continue
			}
			sum += v
			count++
		}

		if count > 0 && count >= minPeriods {
			mean := sum / float64(count)
			result[i] = &mean
		}
	}
	return result
}
