package main

import (
	"context"
	"errors"
	"maps"
	"time"

	"market-pipeline/src/exchange/binance"
	"market-pipeline/src/logger"
	"market-pipeline/src/pipeline"
)

// streamResyncInterval is how often the trade stream checks for symbol changes.
const streamResyncInterval = 5 * time.Second

// -----------------------------------------------------------------------------

// runTradeStream keeps the trade stream subscribed to the pipeline's current
// symbols, reconnecting whenever the set changes. It returns when ctx is done.
func runTradeStream(ctx context.Context, stream *binance.TradeStream, gateway *binance.Gateway, svc *pipeline.Service, appLogger *logger.Logger) {
	ticker := time.NewTicker(streamResyncInterval)
	defer ticker.Stop()

	var (
		current map[string]string
		cancel  context.CancelFunc = func() {}
	)
	defer func() { cancel() }()

	for {
		ids := make(map[string]string)
		for _, symbol := range svc.Symbols() {
			ids[gateway.MarketID(symbol)] = symbol
		}

		if !maps.Equal(ids, current) {
			cancel()
			current = ids

			var runCtx context.Context
			runCtx, cancel = context.WithCancel(ctx)
			go func(ids map[string]string) {
				if err := stream.Run(runCtx, ids); err != nil && !errors.Is(err, context.Canceled) {
					appLogger.Warning("Trade stream stopped: %v", err)
				}
			}(ids)
			appLogger.Info("Trade stream subscribed to %d symbols", len(ids))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
