// Package loader assembles historical candle ranges that span several exchange pages.
package loader

import (
	"context"
	"fmt"
	"time"

	"market-pipeline/src/helpers"
	"market-pipeline/src/interfaces"
	"market-pipeline/src/logger"
	"market-pipeline/src/models"
)

// LoadRequest describes one historical range.
type LoadRequest struct {
	Symbol    string
	Timeframe string
	Since     int64 // unix ms, inclusive
	PageLimit int
	Period    models.MPeriod // informational, for logs
}

// PaginatedLoader pulls OHLCV pages until the exchange runs out of history.
type PaginatedLoader struct {
	Gateway     interfaces.IExchangeGateway
	Logger      *logger.Logger
	Timeframe   string
	PageLimit   int
	PageTimeout time.Duration
	MaxPages    int // 0 = unbounded

	now func() time.Time
}

// -----------------------------------------------------------------------------

func NewPaginatedLoader(cfg *models.MConfig, gw interfaces.IExchangeGateway, log *logger.Logger) *PaginatedLoader {
	return &PaginatedLoader{
		Gateway:     gw,
		Logger:      log,
		Timeframe:   cfg.Heatmap.Timeframe,
		PageLimit:   cfg.Heatmap.PageLimit,
		PageTimeout: time.Duration(cfg.Heatmap.PageTimeoutSeconds) * time.Second,
		MaxPages:    cfg.Heatmap.MaxPages,
		now:         time.Now,
	}
}

// -----------------------------------------------------------------------------

// LoadPeriod loads the heatmap history for period, i.e. from now - lookback on.
func (l *PaginatedLoader) LoadPeriod(ctx context.Context, symbol string, period models.MPeriod) ([]models.MBar, error) {
	if !period.Valid() {
		return nil, &helpers.InvalidPeriodError{Period: string(period)}
	}

	return l.Load(ctx, LoadRequest{
		Symbol:    symbol,
		Timeframe: l.Timeframe,
		Since:     l.now().Add(-period.Lookback()).UnixMilli(),
		PageLimit: l.PageLimit,
		Period:    period,
	})
}

// -----------------------------------------------------------------------------

// Load requests pages starting at req.Since, moving the cursor to the last
// returned timestamp + 1 after each page. It stops after an empty page or a page
// shorter than req.PageLimit. Any page error aborts the whole load and no bars
// are returned.
func (l *PaginatedLoader) Load(ctx context.Context, req LoadRequest) ([]models.MBar, error) {
	if req.PageLimit <= 0 {
		return nil, fmt.Errorf("page limit must be positive, got %d", req.PageLimit)
	}

	var all []models.MBar
	cursor := req.Since
	started := time.Now()

	for page := 0; ; page++ {
		if l.MaxPages > 0 && page >= l.MaxPages {
			l.Logger.Warning("History load for %s stopped at max pages (%d)", req.Symbol, l.MaxPages)
			break
		}

		bars, err := l.fetchPage(ctx, req, cursor)
		if err != nil {
			return nil, helpers.NewLoaderError(req.Symbol, page, err)
		}
		if len(bars) == 0 {
			break
		}

		next := bars[len(bars)-1].Timestamp + 1
		if next <= cursor {
			return nil, helpers.NewLoaderError(req.Symbol, page,
				fmt.Errorf("cursor did not advance (at %d, last bar %d)", cursor, next-1))
		}

		all = append(all, bars...)
		cursor = next

		if len(bars) < req.PageLimit {
			break
		}
	}

	l.Logger.Debug("Loaded %d %s bars for %s (%s) in %v", len(all), req.Timeframe, req.Symbol, req.Period, time.Since(started))
	return all, nil
}

// -----------------------------------------------------------------------------

// fetchPage bounds a single gateway call so a stalled exchange cannot hold the loop.
func (l *PaginatedLoader) fetchPage(ctx context.Context, req LoadRequest, cursor int64) ([]models.MBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pageCtx := ctx
	if l.PageTimeout > 0 {
		var cancel context.CancelFunc
		pageCtx, cancel = context.WithTimeout(ctx, l.PageTimeout)
		defer cancel()
	}

	return l.Gateway.FetchOHLCV(pageCtx, req.Symbol, req.Timeframe, cursor, req.PageLimit)
}
