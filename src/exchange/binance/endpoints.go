package binance

import (
	"os"
	"strings"
)

const (
	defaultRestURL   = "https://api.binance.com"
	defaultStreamURL = "wss://stream.binance.com:9443"

	klinesPath       = "/api/v3/klines"
	aggTradesPath    = "/api/v3/aggTrades"
	depthPath        = "/api/v3/depth"
	exchangeInfoPath = "/api/v3/exchangeInfo"

	maxTradesPerRequest = 1000
)

// restBaseURL prefers BINANCE_REST_URL, then the configured URL, then the public endpoint.
func restBaseURL(configured string) string {
	return pickURL(os.Getenv("BINANCE_REST_URL"), configured, defaultRestURL)
}

// streamBaseURL prefers BINANCE_STREAM_URL, then the configured URL, then the public endpoint.
func streamBaseURL(configured string) string {
	return pickURL(os.Getenv("BINANCE_STREAM_URL"), configured, defaultStreamURL)
}

func pickURL(candidates ...string) string {
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return strings.TrimRight(c, "/")
		}
	}
	return ""
}
