package models

// MHeatmapMatrix is a dense day x time-of-day volume matrix.
// Volumes[i][j] is the volume summed for Days[i] at TimeLabels[j].
type MHeatmapMatrix struct {
	Symbol     string      `json:"symbol"`
	Period     MPeriod     `json:"period"`
	Timeframe  string      `json:"timeframe"`
	Days       []string    `json:"days"`
	TimeLabels []string    `json:"time_labels"`
	Volumes    [][]float64 `json:"volumes"`
}
