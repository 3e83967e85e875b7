package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"market-pipeline/src/helpers"
	"market-pipeline/src/interfaces"
	"market-pipeline/src/logger"
	"market-pipeline/src/models"
)

// marketsMaxAge is how long a loaded market list is trusted before an unknown
// symbol triggers a reload.
const marketsMaxAge = time.Hour

// MarketRegistry caches the exchange market list and validates symbols against it.
type MarketRegistry struct {
	Gateway interfaces.IExchangeGateway
	Store   interfaces.ISnapshotStore
	Logger  *logger.Logger

	mu       sync.RWMutex
	markets  []models.MMarket
	bySymbol map[string]models.MMarket
	loadedAt time.Time
	now      func() time.Time
}

// -----------------------------------------------------------------------------

func NewMarketRegistry(gw interfaces.IExchangeGateway, store interfaces.ISnapshotStore, log *logger.Logger) *MarketRegistry {
	return &MarketRegistry{
		Gateway:  gw,
		Store:    store,
		Logger:   log,
		bySymbol: make(map[string]models.MMarket),
		now:      time.Now,
	}
}

// -----------------------------------------------------------------------------

// Load fetches the market list from the exchange and replaces the registry.
func (m *MarketRegistry) Load(ctx context.Context) ([]models.MMarket, error) {
	markets, err := m.Gateway.FetchMarkets(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(markets, func(i, j int) bool { return markets[i].Symbol < markets[j].Symbol })
	bySymbol := make(map[string]models.MMarket, len(markets))
	for _, mk := range markets {
		bySymbol[mk.Symbol] = mk
	}

	m.mu.Lock()
	m.markets = markets
	m.bySymbol = bySymbol
	m.loadedAt = m.now()
	m.mu.Unlock()

	if m.Store != nil {
		if err := m.Store.SaveMarkets(markets); err != nil {
			m.Logger.Warning("Archiving markets failed: %v", err)
		}
	}
	return markets, nil
}

// -----------------------------------------------------------------------------

// Markets returns the cached list, loading it on first use.
func (m *MarketRegistry) Markets(ctx context.Context) ([]models.MMarket, error) {
	m.mu.RLock()
	markets := m.markets
	m.mu.RUnlock()

	if len(markets) > 0 {
		return markets, nil
	}
	return m.Load(ctx)
}

// -----------------------------------------------------------------------------

// Validate checks that symbol is a listed market. An unknown symbol reloads the
// list once if it is older than marketsMaxAge.
func (m *MarketRegistry) Validate(ctx context.Context, symbol string) error {
	m.mu.RLock()
	_, ok := m.bySymbol[symbol]
	stale := m.now().Sub(m.loadedAt) > marketsMaxAge
	m.mu.RUnlock()

	if ok {
		return nil
	}
	if stale {
		if _, err := m.Load(ctx); err != nil {
			return err
		}
		m.mu.RLock()
		_, ok = m.bySymbol[symbol]
		m.mu.RUnlock()
		if ok {
			return nil
		}
	}

	return &helpers.ValidationError{PipelineError: helpers.PipelineError{
		Message: fmt.Sprintf("unknown symbol %q", symbol),
	}}
}

// -----------------------------------------------------------------------------

// Lookup returns the market for a unified symbol.
func (m *MarketRegistry) Lookup(symbol string) (models.MMarket, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mk, ok := m.bySymbol[symbol]
	return mk, ok
}
