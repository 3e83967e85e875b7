package models

// MDepthLevel is one price level of an order book side.
type MDepthLevel struct {
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
}

// MOrderBook is the raw book returned by the gateway.
// Bids are sorted by descending price, asks by ascending price.
type MOrderBook struct {
	Symbol    string        `json:"symbol"`
	Bids      []MDepthLevel `json:"bids"`
	Asks      []MDepthLevel `json:"asks"`
	Timestamp int64         `json:"timestamp"`
}

// MDepthCurve is one side of the book prepared for plotting.
type MDepthCurve struct {
	Side       string        `json:"side"` // "bid" or "ask"
	Cumulative bool          `json:"cumulative"`
	Levels     []MDepthLevel `json:"levels"`
}
