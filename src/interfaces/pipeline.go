package interfaces

import (
	"context"

	"market-pipeline/src/models"
)

// -----------------------------------------------------------------------------
// IPipeline is what the outer surfaces (REST, websocket, gRPC) need from the core.
// -----------------------------------------------------------------------------

type IPipeline interface {

	// -----------------------------------------------------------------------------

	// Latest returns the last refresh bundle built for symbol.
	Latest(symbol string) (*models.MRefreshBundle, bool)

	// -----------------------------------------------------------------------------

	// Refresh builds a new bundle for symbol right away.
	Refresh(ctx context.Context, symbol string) (*models.MRefreshBundle, error)

	// -----------------------------------------------------------------------------

	// Heatmap returns the volume matrix for (symbol, period).
	Heatmap(ctx context.Context, symbol, period string) (models.MSeriesResult[models.MHeatmapMatrix], error)

	// -----------------------------------------------------------------------------

	// Markets lists the known unified symbols.
	Markets(ctx context.Context) ([]models.MMarket, error)

	// -----------------------------------------------------------------------------

	// Symbols returns the symbols refreshed on every tick.
	Symbols() []string

	// -----------------------------------------------------------------------------

	// SetSymbols replaces the refreshed symbols after validating them against the markets.
	SetSymbols(ctx context.Context, symbols []string) error

	// -----------------------------------------------------------------------------

	// InvalidateHeatmap drops the cached history for (symbol, period).
	InvalidateHeatmap(symbol, period string) error

	// -----------------------------------------------------------------------------

	// Metrics returns the last refresh metrics.
	Metrics() models.MProcessingMetrics
}

// -----------------------------------------------------------------------------
// IDataExchanger pushes refresh results to external listeners.
// -----------------------------------------------------------------------------

type IDataExchanger interface {

	// -----------------------------------------------------------------------------
	// Broadcast queues a bundle for every subscribed client.
	Broadcast(bundle *models.MRefreshBundle)

	// -----------------------------------------------------------------------------
	// Start the server
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop() error
}
