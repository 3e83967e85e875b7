package pipeline

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"market-pipeline/src/analysis"
	"market-pipeline/src/cache"
	"market-pipeline/src/config"
	"market-pipeline/src/helpers"
	"market-pipeline/src/loader"
	"market-pipeline/src/logger"
	"market-pipeline/src/models"

	"github.com/stretchr/testify/require"
)

var errExchangeDown = helpers.NewGatewayError("exchange error (status 503)", 503, true, nil)

// fakeGateway serves canned data; each endpoint can be switched to fail.
type fakeGateway struct {
	mu          sync.Mutex
	failDaily   bool
	failTrades  bool
	failBook    bool
	failHistory bool
	failMarkets bool
	markets     []models.MMarket

	tradeCalls   int
	historyCalls int
	marketCalls  int
}

func newFakeGateway(symbols ...string) *fakeGateway {
	g := &fakeGateway{}
	for _, s := range symbols {
		g.markets = append(g.markets, models.MMarket{Symbol: s, ID: s, Active: true})
	}
	return g
}

func (g *fakeGateway) set(fn func(g *fakeGateway)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g)
}

func (g *fakeGateway) FetchOHLCV(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]models.MBar, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	step := int64(24 * time.Hour / time.Millisecond)
	if timeframe != "1d" {
		g.historyCalls++
		if g.failHistory {
			return nil, errExchangeDown
		}
		step = int64(30 * time.Minute / time.Millisecond)
	} else if g.failDaily {
		return nil, errExchangeDown
	}

	start := since
	if start == 0 {
		start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	}
	bars := make([]models.MBar, 3)
	for i := range bars {
		bars[i] = models.MBar{Timestamp: start + int64(i)*step, Open: 1, High: 2, Low: 0.5, Close: float64(i + 1), Volume: 10}
	}
	return bars, nil
}

func (g *fakeGateway) FetchTrades(ctx context.Context, symbol string, since int64) ([]models.MTradeTick, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tradeCalls++
	if g.failTrades {
		return nil, errExchangeDown
	}
	return []models.MTradeTick{
		{Timestamp: since + 100, Price: 10, Amount: 1},
		{Timestamp: since + 1500, Price: 11, Amount: 2},
	}, nil
}

func (g *fakeGateway) FetchOrderBook(ctx context.Context, symbol string) (models.MOrderBook, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failBook {
		return models.MOrderBook{}, errExchangeDown
	}
	return models.MOrderBook{
		Symbol: symbol,
		Bids:   []models.MDepthLevel{{Price: 99, Amount: 1}, {Price: 98, Amount: 2}},
		Asks:   []models.MDepthLevel{{Price: 101, Amount: 1}},
	}, nil
}

func (g *fakeGateway) FetchMarkets(ctx context.Context) ([]models.MMarket, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.marketCalls++
	if g.failMarkets {
		return nil, errExchangeDown
	}
	return append([]models.MMarket(nil), g.markets...), nil
}

// -----------------------------------------------------------------------------

// fakeStore records what gets archived.
type fakeStore struct {
	mu       sync.Mutex
	bars     map[string]int // "symbol|timeframe" -> saves
	heatmaps int
	markets  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{bars: make(map[string]int)}
}

func (s *fakeStore) Initialize() error { return nil }
func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) SaveBars(symbol, timeframe string, bars []models.MBar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars[symbol+"|"+timeframe]++
	return nil
}

func (s *fakeStore) SaveHeatmap(matrix models.MHeatmapMatrix) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heatmaps++
	return nil
}

func (s *fakeStore) SaveMarkets(markets []models.MMarket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markets++
	return errors.New("disk full")
}

func (s *fakeStore) barSaves(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bars[key]
}

// -----------------------------------------------------------------------------

// fakeFeed is a live trade window that is either complete or not.
type fakeFeed struct {
	complete bool
	ticks    []models.MTradeTick
}

func (f *fakeFeed) RecentTrades(symbol string, since int64) ([]models.MTradeTick, bool) {
	return f.ticks, f.complete
}

// -----------------------------------------------------------------------------

type fixture struct {
	cfg     *models.MConfig
	gw      *fakeGateway
	store   *fakeStore
	svc     *Service
	clock   time.Time
	clockMu sync.Mutex
}

func (f *fixture) now() time.Time {
	f.clockMu.Lock()
	defer f.clockMu.Unlock()
	return f.clock
}

func (f *fixture) advance(d time.Duration) {
	f.clockMu.Lock()
	f.clock = f.clock.Add(d)
	f.clockMu.Unlock()
}

func testLogger() *logger.Logger {
	return logger.NewLoggerWithWriter(nil, "test", &bytes.Buffer{})
}

// newFixture wires a Service over fakes, the way cmd/main does over the real gateway.
func newFixture(t *testing.T, listed ...string) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.Exchange.Symbols = []string{"BTC/USDT"}
	cfg.Pipeline.MAWindows = []int{2}
	cfg.Pipeline.RSIPeriod = 2
	cfg.Pipeline.MACD = models.MMACDConfig{Fast: 1, Slow: 3, Signal: 3}

	f := &fixture{
		cfg:   cfg,
		gw:    newFakeGateway(listed...),
		store: newFakeStore(),
		clock: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	log := testLogger()

	a, err := analysis.NewAnalysisFacade(cfg, log)
	require.NoError(t, err)

	c := cache.NewTTLCache(loader.NewPaginatedLoader(cfg, f.gw, log), log)
	c.Now = f.now

	registry := NewMarketRegistry(f.gw, f.store, log)
	registry.now = f.now

	refresher := NewRefresher(cfg, f.gw, nil, a, log)
	refresher.now = f.now

	heatmaps := NewHeatmapService(c, a, f.store, log)
	f.svc = NewService(cfg, refresher, heatmaps, registry, c, f.store, log)
	return f
}
