package models

// MBar is one OHLCV record for a fixed interval. Timestamp is the bucket start in unix milliseconds.
type MBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// MTradeTick is a single executed trade as reported by the exchange.
type MTradeTick struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
	Amount    float64 `json:"amount"`
}

// Closes extracts the close prices of a bar series.
func Closes(bars []MBar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
