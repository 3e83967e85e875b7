package models

// MMACDSeries holds the three MACD lines, index-aligned with the source bars.
type MMACDSeries struct {
	MACD      []float64 `json:"macd"`
	Signal    []float64 `json:"signal"`
	Histogram []float64 `json:"histogram"`
}

// MDailySeries is the daily chart payload: bars plus indicators.
// A nil entry in MovingAverages or RSI means the value is not defined yet for that bar.
type MDailySeries struct {
	Bars           []MBar                `json:"bars"`
	MovingAverages map[string][]*float64 `json:"moving_averages"` // keyed "ma50", "ma200"
	RSI            []*float64            `json:"rsi"`
	MACD           MMACDSeries           `json:"macd"`
}
