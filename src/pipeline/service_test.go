package pipeline

import (
	"context"
	"sync"
	"testing"

	"market-pipeline/src/helpers"
	"market-pipeline/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Service_RefreshAll(t *testing.T) {
	f := newFixture(t, "BTC/USDT", "ETH/USDT")
	f.cfg.Exchange.Symbols = []string{"BTC/USDT", "ETH/USDT"}
	f.svc.symbols = f.cfg.Exchange.Symbols

	var mu sync.Mutex
	var published []string
	f.svc.Publish = func(b *models.MRefreshBundle) {
		mu.Lock()
		published = append(published, b.Symbol)
		mu.Unlock()
	}

	f.svc.RefreshAll(context.Background())

	assert.ElementsMatch(t, []string{"BTC/USDT", "ETH/USDT"}, published)
	b, ok := f.svc.Latest("ETH/USDT")
	require.True(t, ok)
	assert.Equal(t, "ETH/USDT", b.Symbol)

	m := f.svc.Metrics()
	assert.Equal(t, 2, m.Symbols)
	assert.Zero(t, m.FailedSeries)
	assert.Zero(t, m.StaleSeries)
	assert.GreaterOrEqual(t, m.RefreshTimeSeconds, 0.0)

	// Daily bars are archived only when a new last bar appears
	assert.Equal(t, 1, f.store.barSaves("BTC/USDT|1d"))
	f.svc.RefreshAll(context.Background())
	assert.Equal(t, 1, f.store.barSaves("BTC/USDT|1d"))
}

func Test_Service_RefreshAllOutage(t *testing.T) {
	f := newFixture(t, "BTC/USDT")
	f.gw.set(func(g *fakeGateway) {
		g.failDaily = true
		g.failTrades = true
		g.failBook = true
	})

	f.svc.RefreshAll(context.Background())

	m := f.svc.Metrics()
	assert.Equal(t, seriesPerBundle, m.FailedSeries)
	assert.Equal(t, 1, f.svc.outages.ErrorCount)
	assert.Zero(t, f.store.barSaves("BTC/USDT|1d"))

	f.gw.set(func(g *fakeGateway) { g.failDaily = false })
	f.svc.RefreshAll(context.Background())
	assert.Zero(t, f.svc.outages.ErrorCount, "a partial refresh is not an outage")
}

func Test_Service_RefreshValidatesSymbol(t *testing.T) {
	f := newFixture(t, "BTC/USDT")

	_, err := f.svc.Refresh(context.Background(), "NOPE/USDT")
	var ve *helpers.ValidationError
	assert.ErrorAs(t, err, &ve)

	b, err := f.svc.Refresh(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	latest, ok := f.svc.Latest("BTC/USDT")
	require.True(t, ok)
	assert.Same(t, b, latest)
}

func Test_Service_SetSymbols(t *testing.T) {
	f := newFixture(t, "BTC/USDT", "ETH/USDT", "SOL/USDT")
	ctx := context.Background()

	f.svc.RefreshAll(ctx)
	_, ok := f.svc.Latest("BTC/USDT")
	require.True(t, ok)

	var ve *helpers.ValidationError
	assert.ErrorAs(t, f.svc.SetSymbols(ctx, nil), &ve)
	assert.ErrorAs(t, f.svc.SetSymbols(ctx, []string{"ETH/USDT", "NOPE/USDT"}), &ve)
	assert.Equal(t, []string{"BTC/USDT"}, f.svc.Symbols(), "rejected updates change nothing")

	require.NoError(t, f.svc.SetSymbols(ctx, []string{"SOL/USDT", "ETH/USDT", "SOL/USDT"}))
	assert.Equal(t, []string{"ETH/USDT", "SOL/USDT"}, f.svc.Symbols())

	_, ok = f.svc.Latest("BTC/USDT")
	assert.False(t, ok, "dropped symbols lose their bundle")
}

func Test_Service_Heatmap(t *testing.T) {
	f := newFixture(t, "BTC/USDT")
	ctx := context.Background()

	_, err := f.svc.Heatmap(ctx, "NOPE/USDT", "1week")
	var ve *helpers.ValidationError
	assert.ErrorAs(t, err, &ve)

	res, err := f.svc.Heatmap(ctx, "BTC/USDT", "1month")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFresh, res.Status)
}

func Test_Service_InvalidateHeatmap(t *testing.T) {
	f := newFixture(t, "BTC/USDT")
	ctx := context.Background()

	assert.True(t, helpers.IsInvalidPeriod(f.svc.InvalidateHeatmap("BTC/USDT", "1year")))

	_, err := f.svc.Heatmap(ctx, "BTC/USDT", "1week")
	require.NoError(t, err)
	assert.Equal(t, 1, f.svc.Metrics().Cache.Entries)

	require.NoError(t, f.svc.InvalidateHeatmap("BTC/USDT", "1week"))
	assert.Zero(t, f.svc.Metrics().Cache.Entries)

	_, err = f.svc.Heatmap(ctx, "BTC/USDT", "1week")
	require.NoError(t, err)
	assert.Equal(t, 2, f.gw.historyCalls)
}

func Test_Service_Prewarm(t *testing.T) {
	f := newFixture(t, "BTC/USDT")

	f.svc.Prewarm(context.Background())

	stats := f.svc.Metrics().Cache
	assert.Equal(t, len(models.AllPeriods()), stats.Entries)
	assert.Equal(t, int64(len(models.AllPeriods())), stats.Loads)
}
