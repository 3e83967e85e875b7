package analysis

import (
	"fmt"
	"slices"

	"market-pipeline/src/logger"
	"market-pipeline/src/models"
)

// AnalysisFacade bundles the series transforms with their configured parameters.
type AnalysisFacade struct {
	Config    *models.MConfig
	Logger    *logger.Logger
	Resampler *TimeSeriesResampler
	Depth     *DepthNormalizer
	Heatmap   *HeatmapAggregator
}

// -----------------------------------------------------------------------------

func NewAnalysisFacade(cfg *models.MConfig, log *logger.Logger) (*AnalysisFacade, error) {
	depth, err := NewDepthNormalizer(cfg.Pipeline.DepthMode)
	if err != nil {
		return nil, err
	}

	heatmap, err := NewHeatmapAggregator(cfg.Heatmap.Timeframe)
	if err != nil {
		return nil, err
	}

	return &AnalysisFacade{
		Config:    cfg,
		Logger:    log,
		Resampler: &TimeSeriesResampler{},
		Depth:     depth,
		Heatmap:   heatmap,
	}, nil
}

// -----------------------------------------------------------------------------

// BuildDailySeries attaches the configured moving averages, RSI and MACD to the bars.
// Every indicator slice has the same length as bars.
func (a *AnalysisFacade) BuildDailySeries(bars []models.MBar) models.MDailySeries {
	closes := models.Closes(bars)
	p := a.Config.Pipeline

	series := models.MDailySeries{
		Bars:           bars,
		MovingAverages: make(map[string][]*float64, len(p.MAWindows)),
		RSI:            RSI(closes, p.RSIPeriod),
		MACD:           MACD(closes, p.MACD.Fast, p.MACD.Slow, p.MACD.Signal),
	}
	for _, w := range p.MAWindows {
		series.MovingAverages[MovingAverageKey(w)] = MovingAverage(closes, w)
	}

	if len(bars) > 0 && len(p.MAWindows) > 0 {
		longest := slices.Max(p.MAWindows)
		if len(bars) < longest {
			a.Logger.Debug("Only %d bars, %s undefined for the whole series", len(bars), MovingAverageKey(longest))
		}
	}
	return series
}

// MovingAverageKey names a moving average window in the daily series ("ma50").
func MovingAverageKey(window int) string {
	return fmt.Sprintf("ma%d", window)
}

// -----------------------------------------------------------------------------

// BuildSecondBars resamples trades at the configured bucket width.
func (a *AnalysisFacade) BuildSecondBars(ticks []models.MTradeTick) []models.MBar {
	return a.Resampler.ResampleTicks(ticks, a.Config.Pipeline.ResampleWidthMillis)
}

// -----------------------------------------------------------------------------

// BuildDepth splits the book into bid and ask curves.
func (a *AnalysisFacade) BuildDepth(book models.MOrderBook) (models.MDepthCurve, models.MDepthCurve) {
	return a.Depth.Normalize(book)
}

// -----------------------------------------------------------------------------

// BuildHeatmap aggregates a historical range into the volume matrix.
func (a *AnalysisFacade) BuildHeatmap(symbol string, period models.MPeriod, bars []models.MBar) models.MHeatmapMatrix {
	matrix := a.Heatmap.Aggregate(bars)
	matrix.Symbol = symbol
	matrix.Period = period
	return matrix
}
