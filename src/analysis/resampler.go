package analysis

import (
	"market-pipeline/src/analysis/core"
	"market-pipeline/src/models"
)

// TimeSeriesResampler turns irregular trades into fixed-width bars.
type TimeSeriesResampler struct{}

// -----------------------------------------------------------------------------

// ResampleTicks groups ticks into buckets of widthMs milliseconds and returns one
// bar per non-empty bucket, oldest first. Empty buckets are omitted.
// Ticks must be sorted by timestamp; unsorted input is not corrected.
func (r *TimeSeriesResampler) ResampleTicks(ticks []models.MTradeTick, widthMs int64) []models.MBar {
	if len(ticks) == 0 || widthMs <= 0 {
		return []models.MBar{}
	}

	var bars []models.MBar
	groupStart := 0
	bucket, _ := CalculateWindowBoundaries(ticks[0].Timestamp, widthMs)

	for i := 1; i <= len(ticks); i++ {
		if i < len(ticks) {
			start, _ := CalculateWindowBoundaries(ticks[i].Timestamp, widthMs)
			if start == bucket {
				continue
			}
			bars = append(bars, core.ComputeOHLCV(bucket, ticks[groupStart:i]))
			groupStart = i
			bucket = start
			continue
		}
		bars = append(bars, core.ComputeOHLCV(bucket, ticks[groupStart:]))
	}

	return bars
}

// -----------------------------------------------------------------------------

// CalculateWindowBoundaries returns the [start, end) window containing ts.
// Negative timestamps floor toward the earlier window.
func CalculateWindowBoundaries(ts int64, window int64) (int64, int64) {
	start := ts - (ts % window)
	if ts%window < 0 {
		start -= window
	}
	return start, start + window
}
