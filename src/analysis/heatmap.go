package analysis

import (
	"fmt"
	"time"

	"market-pipeline/src/models"
)

const dayLayout = "2006-01-02"

// HeatmapAggregator buckets bars into a UTC day x time-of-day volume matrix.
type HeatmapAggregator struct {
	Timeframe string
	slot      time.Duration
	labels    []string
}

// -----------------------------------------------------------------------------

// NewHeatmapAggregator builds an aggregator for bars of the given timeframe.
// The timeframe must divide a day evenly (e.g. "30m", "1h").
func NewHeatmapAggregator(timeframe string) (*HeatmapAggregator, error) {
	slot, err := models.TimeframeDuration(timeframe)
	if err != nil {
		return nil, err
	}
	if slot < time.Minute || (24*time.Hour)%slot != 0 {
		return nil, fmt.Errorf("timeframe %s does not split a day into whole-minute slots", timeframe)
	}

	return &HeatmapAggregator{
		Timeframe: timeframe,
		slot:      slot,
		labels:    TimeOfDayLabels(slot),
	}, nil
}

// -----------------------------------------------------------------------------

// TimeOfDayLabels lists the "HH:MM" slot labels of one day in chronological order.
func TimeOfDayLabels(slot time.Duration) []string {
	n := int((24 * time.Hour) / slot)
	labels := make([]string, n)
	for i := 0; i < n; i++ {
		offset := time.Duration(i) * slot
		labels[i] = fmt.Sprintf("%02d:%02d", int(offset.Hours()), int(offset.Minutes())%60)
	}
	return labels
}

// -----------------------------------------------------------------------------

// Labels returns the column labels used by Aggregate.
func (h *HeatmapAggregator) Labels() []string {
	out := make([]string, len(h.labels))
	copy(out, h.labels)
	return out
}

// -----------------------------------------------------------------------------

// Aggregate sums bar volume per (day, slot). Rows cover every day from the first to
// the last bar, ascending; columns are every slot of the day. Empty cells are zero.
// Bars need not be sorted.
func (h *HeatmapAggregator) Aggregate(bars []models.MBar) models.MHeatmapMatrix {
	matrix := models.MHeatmapMatrix{
		Timeframe:  h.Timeframe,
		Days:       []string{},
		TimeLabels: h.Labels(),
		Volumes:    [][]float64{},
	}
	if len(bars) == 0 {
		return matrix
	}

	first, last := bars[0].Timestamp, bars[0].Timestamp
	for _, b := range bars {
		first = min(first, b.Timestamp)
		last = max(last, b.Timestamp)
	}

	firstDay := truncateDay(time.UnixMilli(first).UTC())
	lastDay := truncateDay(time.UnixMilli(last).UTC())
	for d := firstDay; !d.After(lastDay); d = d.AddDate(0, 0, 1) {
		matrix.Days = append(matrix.Days, d.Format(dayLayout))
		matrix.Volumes = append(matrix.Volumes, make([]float64, len(h.labels)))
	}

	for _, b := range bars {
		t := time.UnixMilli(b.Timestamp).UTC()
		day := truncateDay(t)
		row := int(day.Sub(firstDay) / (24 * time.Hour))
		col := int(t.Sub(day) / h.slot)
		matrix.Volumes[row][col] += b.Volume
	}
	return matrix
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
