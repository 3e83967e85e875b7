// Package cache memoizes historical candle ranges per (symbol, period).
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"market-pipeline/src/helpers"
	"market-pipeline/src/logger"
	"market-pipeline/src/models"

	"golang.org/x/sync/singleflight"
)

// HistoryLoader produces the payload for a cache miss.
type HistoryLoader interface {
	LoadPeriod(ctx context.Context, symbol string, period models.MPeriod) ([]models.MBar, error)
}

// TTLCache holds one entry per (symbol, period). Entries expire lazily after
// period.Expiry(); concurrent misses for the same key share a single load.
type TTLCache struct {
	Loader HistoryLoader
	Logger *logger.Logger
	Now    func() time.Time // expiry clock

	mu      sync.RWMutex
	entries map[models.MCacheKey]*models.MCacheEntry
	flights singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
	loads  atomic.Int64
	errors atomic.Int64
}

// -----------------------------------------------------------------------------

func NewTTLCache(loader HistoryLoader, log *logger.Logger) *TTLCache {
	return &TTLCache{
		Loader:  loader,
		Logger:  log,
		Now:     time.Now,
		entries: make(map[models.MCacheKey]*models.MCacheEntry),
	}
}

// -----------------------------------------------------------------------------

// Get returns the cached range for (symbol, period) while it is fresh, otherwise
// loads, stores and returns a new one. A failed load leaves any previous entry in
// place and returns the error. The returned payload is shared and read-only.
// The shared load is detached from the starting caller's cancellation; each
// waiter stops early only on its own ctx.
func (c *TTLCache) Get(ctx context.Context, symbol string, period models.MPeriod) (models.MCacheEntry, error) {
	if !period.Valid() {
		return models.MCacheEntry{}, &helpers.InvalidPeriodError{Period: string(period)}
	}
	key := models.MCacheKey{Symbol: symbol, Period: period}

	if entry, ok := c.fresh(key); ok {
		c.hits.Add(1)
		return entry, nil
	}
	c.misses.Add(1)

	loadCtx := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(flightKey(key), func() (interface{}, error) {
		// Another flight may have filled the entry between our check and now
		if entry, ok := c.fresh(key); ok {
			return entry, nil
		}

		c.loads.Add(1)
		bars, err := c.Loader.LoadPeriod(loadCtx, symbol, period)
		if err != nil {
			c.errors.Add(1)
			return nil, err
		}

		entry := &models.MCacheEntry{Key: key, Payload: bars, FetchedAt: c.Now()}
		c.mu.Lock()
		c.entries[key] = entry
		c.mu.Unlock()

		c.Logger.Info("Cached %d bars for %s/%s", len(bars), symbol, period)
		return *entry, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return models.MCacheEntry{}, res.Err
		}
		return res.Val.(models.MCacheEntry), nil
	case <-ctx.Done():
		return models.MCacheEntry{}, ctx.Err()
	}
}

// -----------------------------------------------------------------------------

// Peek returns the stored entry regardless of age, without loading.
func (c *TTLCache) Peek(symbol string, period models.MPeriod) (models.MCacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[models.MCacheKey{Symbol: symbol, Period: period}]
	if !ok {
		return models.MCacheEntry{}, false
	}
	return *entry, true
}

// -----------------------------------------------------------------------------

// Invalidate drops the entry for (symbol, period). Returns whether one existed.
func (c *TTLCache) Invalidate(symbol string, period models.MPeriod) bool {
	key := models.MCacheKey{Symbol: symbol, Period: period}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// -----------------------------------------------------------------------------

// Stats reports cache counters.
func (c *TTLCache) Stats() models.MCacheStats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()

	return models.MCacheStats{
		Entries: n,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Loads:   c.loads.Load(),
		Errors:  c.errors.Load(),
	}
}

// -----------------------------------------------------------------------------

func (c *TTLCache) fresh(key models.MCacheKey) (models.MCacheEntry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.Now().Sub(entry.FetchedAt) >= key.Period.Expiry() {
		return models.MCacheEntry{}, false
	}
	return *entry, true
}

func flightKey(key models.MCacheKey) string {
	return key.Symbol + "|" + string(key.Period)
}
