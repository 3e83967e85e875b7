package analysis

import (
	"testing"

	"market-pipeline/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ResampleTicks(t *testing.T) {
	r := &TimeSeriesResampler{}

	tests := []struct {
		name  string
		ticks []models.MTradeTick
		width int64
		want  []models.MBar
	}{
		{
			name: "two buckets",
			ticks: []models.MTradeTick{
				{Timestamp: 0, Price: 100, Amount: 1},
				{Timestamp: 500, Price: 102, Amount: 2},
				{Timestamp: 1500, Price: 101, Amount: 1},
			},
			width: 1000,
			want: []models.MBar{
				{Timestamp: 0, Open: 100, High: 102, Low: 100, Close: 102, Volume: 3},
				{Timestamp: 1000, Open: 101, High: 101, Low: 101, Close: 101, Volume: 1},
			},
		},
		{
			name: "empty buckets are omitted",
			ticks: []models.MTradeTick{
				{Timestamp: 1200, Price: 10, Amount: 1},
				{Timestamp: 5300, Price: 11, Amount: 4},
			},
			width: 1000,
			want: []models.MBar{
				{Timestamp: 1000, Open: 10, High: 10, Low: 10, Close: 10, Volume: 1},
				{Timestamp: 5000, Open: 11, High: 11, Low: 11, Close: 11, Volume: 4},
			},
		},
		{
			name: "low inside the bucket",
			ticks: []models.MTradeTick{
				{Timestamp: 2000, Price: 50, Amount: 1},
				{Timestamp: 2100, Price: 45, Amount: 1},
				{Timestamp: 2999, Price: 48, Amount: 0.5},
			},
			width: 1000,
			want: []models.MBar{
				{Timestamp: 2000, Open: 50, High: 50, Low: 45, Close: 48, Volume: 2.5},
			},
		},
		{
			name:  "no ticks",
			ticks: nil,
			width: 1000,
			want:  []models.MBar{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.ResampleTicks(tt.ticks, tt.width))
		})
	}
}

func Test_ResampleTicks_Invariants(t *testing.T) {
	r := &TimeSeriesResampler{}
	var ticks []models.MTradeTick
	for i := int64(0); i < 500; i++ {
		ticks = append(ticks, models.MTradeTick{Timestamp: i * 37, Price: float64(100 + i%7), Amount: 1})
	}

	bars := r.ResampleTicks(ticks, 1000)
	require.NotEmpty(t, bars)

	total := 0.0
	for i, b := range bars {
		assert.LessOrEqual(t, b.Low, b.Open)
		assert.LessOrEqual(t, b.Low, b.Close)
		assert.GreaterOrEqual(t, b.High, b.Open)
		assert.GreaterOrEqual(t, b.High, b.Close)
		assert.Zero(t, b.Timestamp%1000)
		if i > 0 {
			assert.Greater(t, b.Timestamp, bars[i-1].Timestamp)
		}
		total += b.Volume
	}
	assert.Equal(t, float64(len(ticks)), total)
}

func Test_CalculateWindowBoundaries(t *testing.T) {
	start, end := CalculateWindowBoundaries(1500, 1000)
	assert.Equal(t, int64(1000), start)
	assert.Equal(t, int64(2000), end)

	start, end = CalculateWindowBoundaries(-1, 1000)
	assert.Equal(t, int64(-1000), start)
	assert.Equal(t, int64(0), end)
}
