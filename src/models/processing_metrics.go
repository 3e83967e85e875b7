package models

// MProcessingMetrics represents the performance metrics for the last refresh cycle.
type MProcessingMetrics struct {
	RefreshTimeSeconds float64     `json:"refresh_time_seconds"`
	Symbols            int         `json:"symbols"`
	FailedSeries       int         `json:"failed_series"`
	StaleSeries        int         `json:"stale_series"`
	Cache              MCacheStats `json:"cache"`
}
