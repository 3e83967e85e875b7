package pipeline

import (
	"context"
	"sync"
	"time"

	"market-pipeline/src/analysis"
	"market-pipeline/src/cache"
	"market-pipeline/src/interfaces"
	"market-pipeline/src/logger"
	"market-pipeline/src/models"
)

// HeatmapService serves volume heatmaps from the TTL cache.
type HeatmapService struct {
	Cache    *cache.TTLCache
	Analysis *analysis.AnalysisFacade
	Store    interfaces.ISnapshotStore
	Logger   *logger.Logger

	mu       sync.Mutex
	archived map[models.MCacheKey]time.Time
}

// -----------------------------------------------------------------------------

func NewHeatmapService(c *cache.TTLCache, a *analysis.AnalysisFacade, store interfaces.ISnapshotStore, log *logger.Logger) *HeatmapService {
	return &HeatmapService{
		Cache:    c,
		Analysis: a,
		Store:    store,
		Logger:   log,
		archived: make(map[models.MCacheKey]time.Time),
	}
}

// -----------------------------------------------------------------------------

// Heatmap returns the day x time-of-day matrix for (symbol, period).
// An unknown period is returned as an error. A failed history load yields a
// stale result when an older range is cached, a failed result otherwise.
func (h *HeatmapService) Heatmap(ctx context.Context, symbol, label string) (models.MSeriesResult[models.MHeatmapMatrix], error) {
	period, err := models.ParsePeriod(label)
	if err != nil {
		return models.MSeriesResult[models.MHeatmapMatrix]{}, err
	}

	entry, err := h.Cache.Get(ctx, symbol, period)
	if err != nil {
		if old, ok := h.Cache.Peek(symbol, period); ok {
			h.Logger.Warning("Serving stale heatmap for %s/%s: %v", symbol, period, err)
			return models.Stale(h.Analysis.BuildHeatmap(symbol, period, old.Payload), old.FetchedAt.UnixMilli(), err), nil
		}
		h.Logger.Error("Heatmap for %s/%s failed: %v", symbol, period, err)
		return models.Failed[models.MHeatmapMatrix](err), nil
	}

	matrix := h.Analysis.BuildHeatmap(symbol, period, entry.Payload)
	h.archive(entry, matrix)
	return models.Fresh(matrix, entry.FetchedAt.UnixMilli()), nil
}

// -----------------------------------------------------------------------------

// archive writes each newly loaded range once.
func (h *HeatmapService) archive(entry models.MCacheEntry, matrix models.MHeatmapMatrix) {
	if h.Store == nil {
		return
	}

	h.mu.Lock()
	if h.archived[entry.Key].Equal(entry.FetchedAt) {
		h.mu.Unlock()
		return
	}
	h.archived[entry.Key] = entry.FetchedAt
	h.mu.Unlock()

	if err := h.Store.SaveHeatmap(matrix); err != nil {
		h.Logger.Warning("Archiving heatmap %s/%s failed: %v", entry.Key.Symbol, entry.Key.Period, err)
	}
	if err := h.Store.SaveBars(entry.Key.Symbol, matrix.Timeframe, entry.Payload); err != nil {
		h.Logger.Warning("Archiving %s bars for %s failed: %v", matrix.Timeframe, entry.Key.Symbol, err)
	}
}
