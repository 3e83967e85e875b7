package grpc_control

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"market-pipeline/src/config"
	"market-pipeline/src/helpers"
	"market-pipeline/src/logger"
	"market-pipeline/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type fakePipeline struct {
	symbols     []string
	invalidated []string
}

var listed = []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"}

func (p *fakePipeline) Latest(symbol string) (*models.MRefreshBundle, bool) { return nil, false }

func (p *fakePipeline) Refresh(ctx context.Context, symbol string) (*models.MRefreshBundle, error) {
	return nil, nil
}

func (p *fakePipeline) Heatmap(ctx context.Context, symbol, period string) (models.MSeriesResult[models.MHeatmapMatrix], error) {
	return models.MSeriesResult[models.MHeatmapMatrix]{}, nil
}

func (p *fakePipeline) Markets(ctx context.Context) ([]models.MMarket, error) {
	return []models.MMarket{
		{Symbol: "BTC/USDT", Active: true},
		{Symbol: "ETH/USDT", Active: true},
		{Symbol: "LUNA/USDT", Active: false},
		{Symbol: "SOL/USDT", Active: true},
	}, nil
}

func (p *fakePipeline) Symbols() []string { return slices.Clone(p.symbols) }

func (p *fakePipeline) SetSymbols(ctx context.Context, symbols []string) error {
	for _, s := range symbols {
		if !slices.Contains(listed, s) {
			return &helpers.ValidationError{PipelineError: helpers.PipelineError{Message: "unknown symbol " + s}}
		}
	}
	next := slices.Clone(symbols)
	slices.Sort(next)
	p.symbols = slices.Compact(next)
	return nil
}

func (p *fakePipeline) InvalidateHeatmap(symbol, period string) error {
	if _, err := models.ParsePeriod(period); err != nil {
		return err
	}
	p.invalidated = append(p.invalidated, symbol+"/"+period)
	return nil
}

func (p *fakePipeline) Metrics() models.MProcessingMetrics {
	return models.MProcessingMetrics{
		Symbols:      1,
		StaleSeries:  2,
		FailedSeries: 1,
		Cache:        models.MCacheStats{Entries: 3, Hits: 10},
	}
}

// -----------------------------------------------------------------------------

func newTestClient(t *testing.T) (*ControlClient, *fakePipeline, *config.Config, string) {
	t.Helper()

	cfg := &config.Config{MConfig: config.Default()}
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, cfg.Save(path))

	p := &fakePipeline{symbols: []string{"BTC/USDT"}}
	svc := NewControlService(cfg, p, path, logger.NewLoggerWithWriter(nil, "test", &bytes.Buffer{}))

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterControlServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewControlClient(conn), p, cfg, path
}

func symbolsStruct(t *testing.T, symbols ...interface{}) *structpb.Struct {
	t.Helper()
	st, err := structpb.NewStruct(map[string]interface{}{"symbols": symbols})
	require.NoError(t, err)
	return st
}

// -----------------------------------------------------------------------------

func Test_GetStatus(t *testing.T) {
	client, _, _, _ := newTestClient(t)

	res, err := client.GetStatus(context.Background())
	require.NoError(t, err)

	m := res.AsMap()
	assert.Equal(t, []interface{}{"BTC/USDT"}, m["symbols"])
	assert.EqualValues(t, 2, m["stale_series"])
	assert.EqualValues(t, 1, m["failed_series"])
	assert.EqualValues(t, 3, m["cache"].(map[string]interface{})["entries"])
	assert.GreaterOrEqual(t, m["uptime_seconds"], 0.0)
}

func Test_ListMarkets(t *testing.T) {
	client, _, _, _ := newTestClient(t)

	res, err := client.ListMarkets(context.Background())
	require.NoError(t, err)
	m := res.AsMap()
	assert.EqualValues(t, 3, m["count"])
	assert.Equal(t, []interface{}{"BTC/USDT", "ETH/USDT", "SOL/USDT"}, m["symbols"])
}

func Test_SetSymbols(t *testing.T) {
	client, p, cfg, path := newTestClient(t)

	res, err := client.SetSymbols(context.Background(), symbolsStruct(t, " sol/usdt", "ETH/USDT"))
	require.NoError(t, err)

	m := res.AsMap()
	assert.Equal(t, true, m["success"])
	assert.Equal(t, true, m["saved"])
	assert.Equal(t, []string{"ETH/USDT", "SOL/USDT"}, p.symbols)

	// The default symbol moves to a refreshed one and both are persisted
	assert.Equal(t, "ETH/USDT", cfg.Exchange.DefaultSymbol)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "SOL/USDT")

	reloaded, err := config.NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ETH/USDT", "SOL/USDT"}, reloaded.Exchange.Symbols)
}

func Test_SetSymbols_Rejected(t *testing.T) {
	client, p, _, _ := newTestClient(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   *structpb.Struct
	}{
		{"missing list", &structpb.Struct{}},
		{"empty list", symbolsStruct(t)},
		{"blank symbol", symbolsStruct(t, "BTC/USDT", "  ")},
		{"unlisted symbol", symbolsStruct(t, "DOGE/USDT")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.SetSymbols(ctx, tt.in)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
	assert.Equal(t, []string{"BTC/USDT"}, p.symbols)
}

func Test_InvalidateHeatmap(t *testing.T) {
	client, p, _, _ := newTestClient(t)
	ctx := context.Background()

	in, err := structpb.NewStruct(map[string]interface{}{"symbol": "btc/usdt", "period": "1week"})
	require.NoError(t, err)
	res, err := client.InvalidateHeatmap(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, true, res.AsMap()["success"])
	assert.Equal(t, []string{"BTC/USDT/1week"}, p.invalidated)

	in, _ = structpb.NewStruct(map[string]interface{}{"symbol": "BTC/USDT", "period": "2weeks"})
	_, err = client.InvalidateHeatmap(ctx, in)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	in, _ = structpb.NewStruct(map[string]interface{}{"symbol": "BTC/USDT"})
	_, err = client.InvalidateHeatmap(ctx, in)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func Test_toStatus(t *testing.T) {
	assert.Equal(t, codes.Unavailable, status.Code(toStatus(helpers.NewGatewayError("down", 503, true, nil))))
	assert.Equal(t, codes.DeadlineExceeded, status.Code(toStatus(context.DeadlineExceeded)))
	assert.Equal(t, codes.Canceled, status.Code(toStatus(context.Canceled)))
	assert.Equal(t, codes.Internal, status.Code(toStatus(os.ErrPermission)))
}
