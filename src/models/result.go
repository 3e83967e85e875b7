package models

// MSeriesStatus tells the renderer how much to trust a series.
type MSeriesStatus string

const (
	StatusFresh  MSeriesStatus = "fresh"
	StatusStale  MSeriesStatus = "stale"
	StatusFailed MSeriesStatus = "failed"
)

// MSeriesResult wraps one series of a refresh.
// Stale results carry the last good data and the error that prevented an update.
type MSeriesResult[T any] struct {
	Status    MSeriesStatus `json:"status"`
	Data      T             `json:"data"`
	Error     string        `json:"error,omitempty"`
	UpdatedAt int64         `json:"updated_at"`
}

// Fresh builds a successful result.
func Fresh[T any](data T, updatedAt int64) MSeriesResult[T] {
	return MSeriesResult[T]{Status: StatusFresh, Data: data, UpdatedAt: updatedAt}
}

// Stale builds a result from previously good data.
func Stale[T any](data T, updatedAt int64, err error) MSeriesResult[T] {
	return MSeriesResult[T]{Status: StatusStale, Data: data, UpdatedAt: updatedAt, Error: errorText(err)}
}

// Failed builds a result with no data.
func Failed[T any](err error) MSeriesResult[T] {
	return MSeriesResult[T]{Status: StatusFailed, Error: errorText(err)}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// -----------------------------------------------------------------------------
// Refresh bundle pushed to the rendering layer
// -----------------------------------------------------------------------------

type MRefreshBundle struct {
	Symbol     string                      `json:"symbol"`
	Timestamp  int64                       `json:"timestamp"`
	DailyBars  MSeriesResult[MDailySeries] `json:"daily_bars"`
	SecondBars MSeriesResult[[]MBar]       `json:"second_bars"`
	BidDepth   MSeriesResult[MDepthCurve]  `json:"bid_depth"`
	AskDepth   MSeriesResult[MDepthCurve]  `json:"ask_depth"`
}

// Counts returns how many series in the bundle are stale and failed.
func (b MRefreshBundle) Counts() (stale int, failed int) {
	for _, s := range []MSeriesStatus{b.DailyBars.Status, b.SecondBars.Status, b.BidDepth.Status, b.AskDepth.Status} {
		switch s {
		case StatusStale:
			stale++
		case StatusFailed:
			failed++
		}
	}
	return stale, failed
}

// -----------------------------------------------------------------------------
// Websocket messages
// -----------------------------------------------------------------------------

// MStreamMessage is what the hub writes to websocket clients.
type MStreamMessage struct {
	Type    string                         `json:"type"` // "BUNDLE", "HEATMAP" or "ERROR"
	Bundle  *MRefreshBundle                `json:"bundle,omitempty"`
	Heatmap *MSeriesResult[MHeatmapMatrix] `json:"heatmap,omitempty"`
	Error   string                         `json:"error,omitempty"`
}

// MSubscribeCommand for client messages
type MSubscribeCommand struct {
	Command string `json:"command"`
	Symbol  string `json:"symbol"`
	Period  string `json:"period"`
}
