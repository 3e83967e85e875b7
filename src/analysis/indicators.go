package analysis

import (
	"market-pipeline/src/analysis/core"
	"market-pipeline/src/models"
)

// -----------------------------------------------------------------------------

// MovingAverage is the simple mean of the last window closes. Entry i is nil
// until window closes are available (i < window-1).
func MovingAverage(closes []float64, window int) []*float64 {
	return core.RollingMean(closes, window, window)
}

// -----------------------------------------------------------------------------

// RSI computes the relative strength index from simple rolling means of gains and
// losses over the last period price changes. Partial windows are used while history
// is short, so every entry after the first is defined. Entry 0 is nil (no change yet).
//
// This is not Wilder's smoothed RSI: averages are plain rolling means.
// When the average loss is zero the index is 100.
func RSI(closes []float64, period int) []*float64 {
	gains, losses := core.GainsLosses(closes)
	avgGain := core.RollingMean(gains, period, 1)
	avgLoss := core.RollingMean(losses, period, 1)

	result := make([]*float64, len(closes))
	for i := range closes {
		if avgGain[i] == nil || avgLoss[i] == nil {
			continue
		}

		value := 100.0
		if *avgLoss[i] != 0 {
			rs := *avgGain[i] / *avgLoss[i]
			value = 100 - 100/(1+rs)
		}
		result[i] = &value
	}
	return result
}

// -----------------------------------------------------------------------------

// macdState is the fold accumulator: the three running averages.
type macdState struct {
	emaFast float64
	emaSlow float64
	signal  float64
}

// MACD computes the MACD line (fast EWMA - slow EWMA), its signal EWMA and the
// histogram. All EWMAs are recursive and seeded with the first value, so every
// index is defined.
func MACD(closes []float64, fast, slow, signal int) models.MMACDSeries {
	out := models.MMACDSeries{
		MACD:      make([]float64, len(closes)),
		Signal:    make([]float64, len(closes)),
		Histogram: make([]float64, len(closes)),
	}
	if len(closes) == 0 {
		return out
	}

	aFast := alpha(fast)
	aSlow := alpha(slow)
	aSignal := alpha(signal)

	var st macdState
	for i, x := range closes {
		if i == 0 {
			st = macdState{emaFast: x, emaSlow: x}
		} else {
			st.emaFast = aFast*x + (1-aFast)*st.emaFast
			st.emaSlow = aSlow*x + (1-aSlow)*st.emaSlow
		}

		line := st.emaFast - st.emaSlow
		if i == 0 {
			st.signal = line
		} else {
			st.signal = aSignal*line + (1-aSignal)*st.signal
		}

		out.MACD[i] = line
		out.Signal[i] = st.signal
		out.Histogram[i] = line - st.signal
	}
	return out
}

func alpha(span int) float64 {
	return 2.0 / (float64(span) + 1.0)
}
