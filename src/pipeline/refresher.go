package pipeline

import (
	"context"
	"sync"
	"time"

	"market-pipeline/src/analysis"
	"market-pipeline/src/interfaces"
	"market-pipeline/src/logger"
	"market-pipeline/src/models"
)

// memo is the last good value of one series.
type memo[T any] struct {
	data T
	at   int64
	ok   bool
}

// resolve turns a fetch outcome into a series result, falling back to the memo.
func resolve[T any](m *memo[T], data T, err error, now int64) models.MSeriesResult[T] {
	if err == nil {
		*m = memo[T]{data: data, at: now, ok: true}
		return models.Fresh(data, now)
	}
	if m.ok {
		return models.Stale(m.data, m.at, err)
	}
	return models.Failed[T](err)
}

// symbolMemory keeps the last good series of one symbol.
type symbolMemory struct {
	daily   memo[models.MDailySeries]
	seconds memo[[]models.MBar]
	bid     memo[models.MDepthCurve]
	ask     memo[models.MDepthCurve]
}

// -----------------------------------------------------------------------------

// Refresher builds the fast-refreshing series bundle. Series are fetched
// concurrently and fail independently.
type Refresher struct {
	Config   *models.MConfig
	Gateway  interfaces.IExchangeGateway
	Feed     interfaces.ITradeFeed // optional live trades
	Analysis *analysis.AnalysisFacade
	Logger   *logger.Logger

	now    func() time.Time
	mu     sync.Mutex
	memory map[string]*symbolMemory
}

// -----------------------------------------------------------------------------

func NewRefresher(cfg *models.MConfig, gw interfaces.IExchangeGateway, feed interfaces.ITradeFeed, a *analysis.AnalysisFacade, log *logger.Logger) *Refresher {
	return &Refresher{
		Config:   cfg,
		Gateway:  gw,
		Feed:     feed,
		Analysis: a,
		Logger:   log,
		now:      time.Now,
		memory:   make(map[string]*symbolMemory),
	}
}

// -----------------------------------------------------------------------------

// Refresh builds one bundle for symbol. It never fails as a whole: each series
// reports fresh, stale (last good data plus the error) or failed.
func (r *Refresher) Refresh(ctx context.Context, symbol string) *models.MRefreshBundle {
	now := r.now()
	nowMs := now.UnixMilli()

	var (
		wg      sync.WaitGroup
		daily   models.MDailySeries
		dErr    error
		seconds []models.MBar
		sErr    error
		book    models.MOrderBook
		bErr    error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		daily, dErr = r.fetchDaily(ctx, symbol)
	}()
	go func() {
		defer wg.Done()
		seconds, sErr = r.fetchSeconds(ctx, symbol, now)
	}()
	go func() {
		defer wg.Done()
		book, bErr = r.Gateway.FetchOrderBook(ctx, symbol)
	}()
	wg.Wait()

	var bid, ask models.MDepthCurve
	if bErr == nil {
		bid, ask = r.Analysis.BuildDepth(book)
	}

	r.mu.Lock()
	mem, ok := r.memory[symbol]
	if !ok {
		mem = &symbolMemory{}
		r.memory[symbol] = mem
	}
	bundle := &models.MRefreshBundle{
		Symbol:     symbol,
		Timestamp:  nowMs,
		DailyBars:  resolve(&mem.daily, daily, dErr, nowMs),
		SecondBars: resolve(&mem.seconds, seconds, sErr, nowMs),
		BidDepth:   resolve(&mem.bid, bid, bErr, nowMs),
		AskDepth:   resolve(&mem.ask, ask, bErr, nowMs),
	}
	r.mu.Unlock()

	for name, err := range map[string]error{"daily bars": dErr, "second bars": sErr, "order book": bErr} {
		if err != nil {
			r.Logger.Warning("%s for %s unavailable: %v", name, symbol, err)
		}
	}
	return bundle
}

// -----------------------------------------------------------------------------

func (r *Refresher) fetchDaily(ctx context.Context, symbol string) (models.MDailySeries, error) {
	p := r.Config.Pipeline
	bars, err := r.Gateway.FetchOHLCV(ctx, symbol, p.DailyTimeframe, 0, p.DailyLimit)
	if err != nil {
		return models.MDailySeries{}, err
	}
	return r.Analysis.BuildDailySeries(bars), nil
}

// -----------------------------------------------------------------------------

// fetchSeconds prefers the live trade window and falls back to REST when the
// window does not cover the whole look-back.
func (r *Refresher) fetchSeconds(ctx context.Context, symbol string, now time.Time) ([]models.MBar, error) {
	since := now.Add(-time.Duration(r.Config.Pipeline.TradesLookbackSeconds) * time.Second).UnixMilli()

	if r.Feed != nil {
		if ticks, complete := r.Feed.RecentTrades(symbol, since); complete {
			return r.Analysis.BuildSecondBars(ticks), nil
		}
	}

	ticks, err := r.Gateway.FetchTrades(ctx, symbol, since)
	if err != nil {
		return nil, err
	}
	return r.Analysis.BuildSecondBars(ticks), nil
}
