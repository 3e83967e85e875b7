package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"market-pipeline/src/helpers"
	"market-pipeline/src/logger"
	"market-pipeline/src/models"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePipeline serves fixed bundles for a small set of listed symbols.
type fakePipeline struct {
	mu        sync.Mutex
	listed    map[string]bool
	latest    map[string]*models.MRefreshBundle
	heatmapOK bool
	refreshes int
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{
		listed:    map[string]bool{"BTC/USDT": true, "ETH/USDT": true},
		latest:    map[string]*models.MRefreshBundle{"BTC/USDT": bundle("BTC/USDT", 1)},
		heatmapOK: true,
	}
}

func bundle(symbol string, ts int64) *models.MRefreshBundle {
	return &models.MRefreshBundle{
		Symbol:    symbol,
		Timestamp: ts,
		BidDepth:  models.Fresh(models.MDepthCurve{Side: "bid"}, ts),
	}
}

func (p *fakePipeline) validate(symbol string) error {
	if !p.listed[symbol] {
		return &helpers.ValidationError{PipelineError: helpers.PipelineError{Message: fmt.Sprintf("unknown symbol %q", symbol)}}
	}
	return nil
}

func (p *fakePipeline) Latest(symbol string) (*models.MRefreshBundle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.latest[symbol]
	return b, ok
}

func (p *fakePipeline) Refresh(ctx context.Context, symbol string) (*models.MRefreshBundle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.validate(symbol); err != nil {
		return nil, err
	}
	p.refreshes++
	return bundle(symbol, 2), nil
}

func (p *fakePipeline) Heatmap(ctx context.Context, symbol, period string) (models.MSeriesResult[models.MHeatmapMatrix], error) {
	if err := p.validate(symbol); err != nil {
		return models.MSeriesResult[models.MHeatmapMatrix]{}, err
	}
	pd, err := models.ParsePeriod(period)
	if err != nil {
		return models.MSeriesResult[models.MHeatmapMatrix]{}, err
	}
	if !p.heatmapOK {
		return models.Failed[models.MHeatmapMatrix](helpers.NewGatewayError("exchange error (status 503)", 503, true, nil)), nil
	}
	return models.Fresh(models.MHeatmapMatrix{Symbol: symbol, Period: pd, Timeframe: "30m"}, 5), nil
}

func (p *fakePipeline) Markets(ctx context.Context) ([]models.MMarket, error) {
	return []models.MMarket{{Symbol: "BTC/USDT", ID: "BTCUSDT", Active: true}}, nil
}

func (p *fakePipeline) Symbols() []string { return []string{"BTC/USDT"} }

func (p *fakePipeline) SetSymbols(ctx context.Context, symbols []string) error { return nil }

func (p *fakePipeline) InvalidateHeatmap(symbol, period string) error { return nil }

func (p *fakePipeline) Metrics() models.MProcessingMetrics {
	return models.MProcessingMetrics{Symbols: 1, RefreshTimeSeconds: 0.25}
}

// -----------------------------------------------------------------------------

func newTestServer(t *testing.T) (*FastAPIServer, *fakePipeline) {
	t.Helper()
	cfg := &models.MConfig{
		LogLevel: "INFO",
		Exchange: models.MExchangeConfig{DefaultSymbol: "BTC/USDT"},
		Heatmap:  models.MHeatmapConfig{Timeframe: "30m"},
		Pipeline: models.MPipelineConfig{DailyTimeframe: "1d", MAWindows: []int{50, 200}},
	}
	p := newFakePipeline()
	s := NewFastAPIServer(cfg, p, logger.NewLoggerWithWriter(nil, "test", &bytes.Buffer{}))
	t.Cleanup(func() { _ = s.Stop() })
	return s, p
}

func get(t *testing.T, s *FastAPIServer, target string) (int, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var body map[string]interface{}
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec.Code, body
}

// -----------------------------------------------------------------------------

func Test_statusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&helpers.InvalidPeriodError{Period: "2weeks"}, http.StatusBadRequest},
		{&helpers.ValidationError{PipelineError: helpers.PipelineError{Message: "unknown symbol"}}, http.StatusNotFound},
		{helpers.NewGatewayError("down", 503, true, nil), http.StatusBadGateway},
		{helpers.NewLoaderError("BTC/USDT", 1, errors.New("eof")), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(fmt.Errorf("wrapped: %w", tt.err)), tt.err.Error())
	}
}

func Test_normalizeSymbol(t *testing.T) {
	assert.Equal(t, "BTC/USDT", normalizeSymbol(" btc-usdt "))
	assert.Equal(t, "ETH/USDT", normalizeSymbol("eth/usdt"))
	assert.Equal(t, "", normalizeSymbol(""))
}

func Test_Routes(t *testing.T) {
	s, p := newTestServer(t)

	code, body := get(t, s, "/api/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["latest_update"])

	code, body = get(t, s, "/api/config")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "BTC/USDT", body["default_symbol"])
	assert.Len(t, body["periods"], 4)

	code, body = get(t, s, "/api/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0.25, body["refresh_time_seconds"])

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "BTCUSDT")

	// Latest bundle, then an on-demand one for an unscheduled symbol
	code, body = get(t, s, "/api/bundle")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "BTC/USDT", body["symbol"])
	assert.Zero(t, p.refreshes)

	code, body = get(t, s, "/api/bundle?symbol=eth-usdt")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ETH/USDT", body["symbol"])
	assert.Equal(t, 1, p.refreshes)

	code, body = get(t, s, "/api/bundle?symbol=nope-usdt")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body["error"], "NOPE/USDT")
}

func Test_HeatmapRoute(t *testing.T) {
	s, p := newTestServer(t)

	code, body := get(t, s, "/api/heatmap?symbol=BTC-USDT")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "fresh", body["status"])
	assert.Equal(t, "1month", body["data"].(map[string]interface{})["period"])

	code, _ = get(t, s, "/api/heatmap?period=2weeks")
	assert.Equal(t, http.StatusBadRequest, code)

	p.heatmapOK = false
	code, body = get(t, s, "/api/heatmap?period=1week")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "failed", body["status"])
}

func Test_CORS(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

// -----------------------------------------------------------------------------

func dial(t *testing.T, s *FastAPIServer) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) models.MStreamMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg models.MStreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func Test_WebSocket_Subscribe(t *testing.T) {
	s, _ := newTestServer(t)
	conn := dial(t, s)

	require.NoError(t, conn.WriteJSON(models.MSubscribeCommand{Command: "subscribe", Symbol: "btc/usdt"}))

	msg := readMessage(t, conn)
	require.Equal(t, "BUNDLE", msg.Type)
	assert.Equal(t, int64(1), msg.Bundle.Timestamp, "latest bundle on subscribe")

	// Only bundles for the subscribed symbol are forwarded
	s.Broadcast(bundle("ETH/USDT", 7))
	s.Broadcast(bundle("BTC/USDT", 8))

	msg = readMessage(t, conn)
	require.Equal(t, "BUNDLE", msg.Type)
	assert.Equal(t, "BTC/USDT", msg.Bundle.Symbol)
	assert.Equal(t, int64(8), msg.Bundle.Timestamp)

	assert.Eventually(t, func() bool {
		_, body := get(t, s, "/api/health")
		return body["connections"] == float64(1)
	}, time.Second, 10*time.Millisecond)
}

func Test_WebSocket_Heatmap(t *testing.T) {
	s, _ := newTestServer(t)
	conn := dial(t, s)

	require.NoError(t, conn.WriteJSON(models.MSubscribeCommand{Command: "subscribe", Symbol: "ETH/USDT", Period: "1week"}))

	msg := readMessage(t, conn)
	require.Equal(t, "HEATMAP", msg.Type)
	assert.Equal(t, "ETH/USDT", msg.Heatmap.Data.Symbol)
	assert.Equal(t, models.Period1Week, msg.Heatmap.Data.Period)

	require.NoError(t, conn.WriteJSON(models.MSubscribeCommand{Command: "subscribe", Symbol: "ETH/USDT", Period: "1decade"}))
	msg = readMessage(t, conn)
	assert.Equal(t, "ERROR", msg.Type)
	assert.Contains(t, msg.Error, "1decade")
}

func Test_WebSocket_UnknownCommand(t *testing.T) {
	s, _ := newTestServer(t)
	conn := dial(t, s)

	require.NoError(t, conn.WriteJSON(map[string]string{"command": "unsubscribe"}))
	msg := readMessage(t, conn)
	assert.Equal(t, "ERROR", msg.Type)
	assert.Contains(t, msg.Error, "unsubscribe")
}

func Test_Stop_ClosesClients(t *testing.T) {
	s, _ := newTestServer(t)
	conn := dial(t, s)

	require.NoError(t, conn.WriteJSON(models.MSubscribeCommand{Command: "subscribe"}))
	readMessage(t, conn)

	require.NoError(t, s.Stop())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure), "got %v", err)
}
