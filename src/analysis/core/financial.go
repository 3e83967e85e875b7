package core

import (
	"math"

	"market-pipeline/src/models"
)

// -----------------------------------------------------------------------------

// ComputeOHLCV folds a non-empty, time-ordered group of trades into one bar.
func ComputeOHLCV(bucketStart int64, ticks []models.MTradeTick) models.MBar {
	bar := models.MBar{
		Timestamp: bucketStart,
		Open:      ticks[0].Price,
		High:      ticks[0].Price,
		Low:       ticks[0].Price,
		Close:     ticks[len(ticks)-1].Price,
	}

	for _, t := range ticks {
		bar.High = math.Max(bar.High, t.Price)
		bar.Low = math.Min(bar.Low, t.Price)
		bar.Volume += t.Amount
	}
	return bar
}

// -----------------------------------------------------------------------------

// GainsLosses splits consecutive price changes into gains and losses (both >= 0).
// Index 0 has no previous price and is NaN in both outputs.
func GainsLosses(closes []float64) (gains, losses []float64) {
	gains = make([]float64, len(closes))
	losses = make([]float64, len(closes))
	if len(closes) == 0 {
		return gains, losses
	}

	gains[0], losses[0] = math.NaN(), math.NaN()
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}
	return gains, losses
}
