package main

import (
	"context"
	"time"

	"market-pipeline/src/analysis"
	"market-pipeline/src/cache"
	"market-pipeline/src/exchange/binance"
	"market-pipeline/src/interfaces"
	"market-pipeline/src/loader"
	"market-pipeline/src/logger"
	"market-pipeline/src/models"
	"market-pipeline/src/network"
	"market-pipeline/src/pipeline"
	"market-pipeline/src/storage"
)

// components holds everything main wires together.
type components struct {
	store    interfaces.ISnapshotStore
	gateway  *binance.Gateway
	stream   *binance.TradeStream
	cache    *cache.TTLCache
	pipeline *pipeline.Service
}

// -----------------------------------------------------------------------------

// setupDatabase initializes the snapshot archive based on config
func setupDatabase(config *models.MConfig, appLogger *logger.Logger) (interfaces.ISnapshotStore, error) {
	store, err := storage.NewSnapshotStore(config, appLogger)
	if err != nil {
		appLogger.Error("Failed to init store: %v", err)
		return nil, err
	}
	if err := store.Initialize(); err != nil {
		appLogger.Error("Failed to migrate store: %v", err)
		return nil, err
	}
	return store, nil
}

// -----------------------------------------------------------------------------

// setupComponents builds the gateway, analysis, loader, cache and pipeline.
func setupComponents(config *models.MConfig, store interfaces.ISnapshotStore, appLogger *logger.Logger) (*components, error) {
	networkManager := network.NewAsyncNetworkManager(config, appLogger.Named("NetworkManager"))
	gateway := binance.NewGateway(config, networkManager, appLogger.Named("Binance"))

	var (
		stream *binance.TradeStream
		feed   interfaces.ITradeFeed
	)
	if config.Exchange.StreamEnabled {
		stream = binance.NewTradeStream(config, gateway.UnifiedSymbol, appLogger.Named("TradeStream"))
		feed = stream
	}

	analyzer, err := analysis.NewAnalysisFacade(config, appLogger.Named("Analysis"))
	if err != nil {
		appLogger.Error("Failed to init analysis: %v", err)
		return nil, err
	}

	historyLoader := loader.NewPaginatedLoader(config, gateway, appLogger.Named("Loader"))
	ttlCache := cache.NewTTLCache(historyLoader, appLogger.Named("Cache"))

	registry := pipeline.NewMarketRegistry(gateway, store, appLogger.Named("Markets"))
	refresher := pipeline.NewRefresher(config, gateway, feed, analyzer, appLogger.Named("Refresher"))
	heatmaps := pipeline.NewHeatmapService(ttlCache, analyzer, store, appLogger.Named("Heatmap"))
	svc := pipeline.NewService(config, refresher, heatmaps, registry, ttlCache, store, appLogger.Named("Pipeline"))

	return &components{
		store:    store,
		gateway:  gateway,
		stream:   stream,
		cache:    ttlCache,
		pipeline: svc,
	}, nil
}

// -----------------------------------------------------------------------------

// bootstrapMarkets loads the market list and drops configured symbols the
// exchange does not list.
func bootstrapMarkets(ctx context.Context, c *components, appLogger *logger.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	markets, err := c.pipeline.Registry.Load(ctx)
	if err != nil {
		return err
	}
	appLogger.Info("Loaded %d markets", len(markets))

	var listed []string
	for _, symbol := range c.pipeline.Symbols() {
		if _, ok := c.pipeline.Registry.Lookup(symbol); ok {
			listed = append(listed, symbol)
		} else {
			appLogger.Warning("Symbol %s is not listed, skipping", symbol)
		}
	}
	return c.pipeline.SetSymbols(ctx, listed)
}
