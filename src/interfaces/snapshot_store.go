package interfaces

import "market-pipeline/src/models"

// -----------------------------------------------------------------------------
// ISnapshotStore archives computed series for export. It is never read back
// to restore in-memory state.
// -----------------------------------------------------------------------------

type ISnapshotStore interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveBars upserts a bar series for a symbol and timeframe.
	SaveBars(symbol, timeframe string, bars []models.MBar) error

	// -----------------------------------------------------------------------------

	// SaveHeatmap replaces the stored matrix for (symbol, period).
	SaveHeatmap(matrix models.MHeatmapMatrix) error

	// -----------------------------------------------------------------------------

	// SaveMarkets upserts the market list.
	SaveMarkets(markets []models.MMarket) error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
