package models

// MMarket describes one tradable pair. Symbol is the unified form ("BTC/USDT"),
// ID the exchange form ("BTCUSDT").
type MMarket struct {
	Symbol string `json:"symbol"`
	ID     string `json:"id"`
	Base   string `json:"base"`
	Quote  string `json:"quote"`
	Active bool   `json:"active"`
}
