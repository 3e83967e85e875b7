// Package pipeline ties the gateway, analysis, loader and cache into the
// refresh cycle served to the outer surfaces.
package pipeline

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"market-pipeline/src/cache"
	"market-pipeline/src/helpers"
	"market-pipeline/src/interfaces"
	"market-pipeline/src/logger"
	"market-pipeline/src/models"
)

// seriesPerBundle is the number of series a refresh bundle carries.
const seriesPerBundle = 4

// Service implements interfaces.IPipeline.
type Service struct {
	Config    *models.MConfig
	Logger    *logger.Logger
	Refresher *Refresher
	Heatmaps  *HeatmapService
	Registry  *MarketRegistry
	Cache     *cache.TTLCache
	Store     interfaces.ISnapshotStore

	// Publish receives every bundle built by RefreshAll.
	Publish func(bundle *models.MRefreshBundle)

	mu           sync.RWMutex
	symbols      []string
	latest       map[string]*models.MRefreshBundle
	metrics      models.MProcessingMetrics
	archivedBars map[string]int64
	outages      *helpers.ErrorHandler
}

var _ interfaces.IPipeline = (*Service)(nil)

// -----------------------------------------------------------------------------

func NewService(cfg *models.MConfig, refresher *Refresher, heatmaps *HeatmapService, registry *MarketRegistry, c *cache.TTLCache, store interfaces.ISnapshotStore, log *logger.Logger) *Service {
	return &Service{
		Config:       cfg,
		Logger:       log,
		Refresher:    refresher,
		Heatmaps:     heatmaps,
		Registry:     registry,
		Cache:        c,
		Store:        store,
		symbols:      slices.Clone(cfg.Exchange.Symbols),
		latest:       make(map[string]*models.MRefreshBundle),
		archivedBars: make(map[string]int64),
		outages:      helpers.NewErrorHandler(log),
	}
}

// -----------------------------------------------------------------------------

// RefreshAll rebuilds the bundle of every configured symbol concurrently and
// records the cycle metrics.
func (s *Service) RefreshAll(ctx context.Context) {
	start := time.Now()
	symbols := s.Symbols()

	bundles := make([]*models.MRefreshBundle, len(symbols))
	var wg sync.WaitGroup
	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			bundles[i] = s.Refresher.Refresh(ctx, symbol)
		}(i, symbol)
	}
	wg.Wait()

	var stale, failed int
	for _, b := range bundles {
		st, fl := b.Counts()
		stale += st
		failed += fl
		s.store(b)
	}

	// Only a cycle where nothing at all could be fetched counts as an outage
	var outage error
	if len(symbols) > 0 && failed+stale == seriesPerBundle*len(symbols) {
		outage = fmt.Errorf("no series refreshed for %d symbols", len(symbols))
	}
	s.outages.Handle(outage, "refresh cycle")

	elapsed := time.Since(start).Seconds()
	s.mu.Lock()
	s.metrics = models.MProcessingMetrics{
		RefreshTimeSeconds: elapsed,
		Symbols:            len(symbols),
		FailedSeries:       failed,
		StaleSeries:        stale,
	}
	s.mu.Unlock()

	if failed > 0 || stale > 0 {
		s.Logger.Warning("Refresh of %d symbols took %.3fs (%d stale, %d failed series)", len(symbols), elapsed, stale, failed)
	} else {
		s.Logger.Debug("Refresh of %d symbols took %.3fs", len(symbols), elapsed)
	}
}

// -----------------------------------------------------------------------------

// Refresh builds a bundle for one symbol outside the scheduled cycle.
func (s *Service) Refresh(ctx context.Context, symbol string) (*models.MRefreshBundle, error) {
	if err := s.Registry.Validate(ctx, symbol); err != nil {
		return nil, err
	}
	bundle := s.Refresher.Refresh(ctx, symbol)
	s.store(bundle)
	return bundle, nil
}

// -----------------------------------------------------------------------------

func (s *Service) store(bundle *models.MRefreshBundle) {
	s.mu.Lock()
	s.latest[bundle.Symbol] = bundle
	s.mu.Unlock()

	s.archiveDaily(bundle)
	if s.Publish != nil {
		s.Publish(bundle)
	}
}

// -----------------------------------------------------------------------------

// archiveDaily writes the daily bars whenever a new last bar appears.
func (s *Service) archiveDaily(bundle *models.MRefreshBundle) {
	if s.Store == nil || bundle.DailyBars.Status != models.StatusFresh {
		return
	}
	bars := bundle.DailyBars.Data.Bars
	if len(bars) == 0 {
		return
	}
	last := bars[len(bars)-1].Timestamp

	s.mu.Lock()
	if s.archivedBars[bundle.Symbol] == last {
		s.mu.Unlock()
		return
	}
	s.archivedBars[bundle.Symbol] = last
	s.mu.Unlock()

	if err := s.Store.SaveBars(bundle.Symbol, s.Config.Pipeline.DailyTimeframe, bars); err != nil {
		s.Logger.Warning("Archiving daily bars for %s failed: %v", bundle.Symbol, err)
	}
}

// -----------------------------------------------------------------------------

func (s *Service) Latest(symbol string) (*models.MRefreshBundle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.latest[symbol]
	return b, ok
}

// -----------------------------------------------------------------------------

func (s *Service) Heatmap(ctx context.Context, symbol, period string) (models.MSeriesResult[models.MHeatmapMatrix], error) {
	if err := s.Registry.Validate(ctx, symbol); err != nil {
		return models.MSeriesResult[models.MHeatmapMatrix]{}, err
	}
	return s.Heatmaps.Heatmap(ctx, symbol, period)
}

// -----------------------------------------------------------------------------

// Prewarm loads every configured heatmap period for every symbol into the cache.
func (s *Service) Prewarm(ctx context.Context) {
	for _, symbol := range s.Symbols() {
		for _, period := range s.Config.Heatmap.Periods {
			res, err := s.Heatmaps.Heatmap(ctx, symbol, period)
			if err != nil {
				s.Logger.Error("Prewarm %s/%s: %v", symbol, period, err)
				continue
			}
			if res.Status == models.StatusFailed {
				s.Logger.Warning("Prewarm %s/%s failed: %s", symbol, period, res.Error)
			}
		}
	}
}

// -----------------------------------------------------------------------------

func (s *Service) Markets(ctx context.Context) ([]models.MMarket, error) {
	return s.Registry.Markets(ctx)
}

// -----------------------------------------------------------------------------

func (s *Service) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.symbols)
}

// -----------------------------------------------------------------------------

// SetSymbols replaces the refreshed set. Nothing changes unless every symbol is listed.
func (s *Service) SetSymbols(ctx context.Context, symbols []string) error {
	if len(symbols) == 0 {
		return &helpers.ValidationError{PipelineError: helpers.PipelineError{Message: "at least one symbol is required"}}
	}
	for _, symbol := range symbols {
		if err := s.Registry.Validate(ctx, symbol); err != nil {
			return err
		}
	}

	next := slices.Clone(symbols)
	slices.Sort(next)
	next = slices.Compact(next)

	s.mu.Lock()
	s.symbols = next
	for symbol := range s.latest {
		if !slices.Contains(next, symbol) {
			delete(s.latest, symbol)
		}
	}
	s.mu.Unlock()

	s.Logger.Info("Refreshing symbols %v", next)
	return nil
}

// -----------------------------------------------------------------------------

func (s *Service) InvalidateHeatmap(symbol, period string) error {
	p, err := models.ParsePeriod(period)
	if err != nil {
		return err
	}
	if s.Cache.Invalidate(symbol, p) {
		s.Logger.Info("Invalidated cached history for %s/%s", symbol, p)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *Service) Metrics() models.MProcessingMetrics {
	s.mu.RLock()
	m := s.metrics
	s.mu.RUnlock()

	m.Cache = s.Cache.Stats()
	return m
}
