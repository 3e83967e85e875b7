package binance

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"market-pipeline/src/logger"
	"market-pipeline/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

func newTestStream(t *testing.T, streamURL string) *TradeStream {
	t.Helper()
	t.Setenv("BINANCE_STREAM_URL", streamURL)
	cfg := &models.MConfig{Pipeline: models.MPipelineConfig{TickWindowSize: 100}}
	return NewTradeStream(cfg, nil, logger.NewLoggerWithWriter(nil, "test", &bytes.Buffer{}))
}

func tradeMessage(id string, ts int64, price string) []byte {
	return []byte(fmt.Sprintf(
		`{"stream": "%s@aggTrade", "data": {"e": "aggTrade", "E": %d, "s": "%s", "a": 1, "p": "%s", "q": "1.0", "T": %d, "m": false}}`,
		strings.ToLower(id), ts, id, price, ts))
}

// -----------------------------------------------------------------------------

func Test_TradeStream_StreamURL(t *testing.T) {
	s := newTestStream(t, "wss://example.test:9443/")
	assert.Equal(t, "wss://example.test:9443/stream?streams=btcusdt@aggTrade", s.streamURL(map[string]string{"BTCUSDT": "BTC/USDT"}))
}

func Test_TradeStream_RunWithoutSymbols(t *testing.T) {
	s := newTestStream(t, "ws://unused")
	assert.Error(t, s.Run(context.Background(), nil))
}

func Test_TradeStream_UnknownSymbol(t *testing.T) {
	s := newTestStream(t, "ws://unused")
	ticks, complete := s.RecentTrades("BTC/USDT", 0)
	assert.Nil(t, ticks)
	assert.False(t, complete)
}

func Test_TradeStream_Run(t *testing.T) {
	// Trades in the future so they fall inside any window the test asks for
	future := time.Now().Add(time.Hour).UnixMilli()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "btcusdt@aggTrade", r.URL.Query().Get("streams"))

		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "")

		msgs := [][]byte{
			tradeMessage("BTCUSDT", future, "100.0"),
			[]byte(`{"result": null, "id": 1}`),
			tradeMessage("ETHUSDT", future, "5.0"),
			tradeMessage("BTCUSDT", future+1, "101.0"),
		}
		for _, m := range msgs {
			if err := c.Write(r.Context(), websocket.MessageText, m); err != nil {
				return
			}
		}
		// Hold the connection until the client goes away
		_, _, _ = c.Read(r.Context())
	}))
	defer srv.Close()

	s := newTestStream(t, "ws"+strings.TrimPrefix(srv.URL, "http"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, map[string]string{"BTCUSDT": "BTC/USDT"}) }()

	require.Eventually(t, func() bool {
		ticks, complete := s.RecentTrades("BTC/USDT", time.Now().UnixMilli())
		return complete && len(ticks) == 2
	}, 3*time.Second, 20*time.Millisecond)

	ticks, _ := s.RecentTrades("BTC/USDT", time.Now().UnixMilli())
	assert.Equal(t, 100.0, ticks[0].Price)
	assert.Equal(t, 101.0, ticks[1].Price)

	_, complete := s.RecentTrades("ETH/USDT", 0)
	assert.False(t, complete, "unsubscribed symbols have no window")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not stop")
	}
}

func Test_TradeStream_DropMarksWindowsIncomplete(t *testing.T) {
	future := time.Now().Add(time.Hour).UnixMilli()

	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only the first connection is accepted; reconnects keep failing
		if conns.Add(1) > 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		_ = c.Write(r.Context(), websocket.MessageText, tradeMessage("BTCUSDT", future, "100.0"))

		// Wait for the client to see the trade, then drop it
		time.Sleep(300 * time.Millisecond)
		c.Close(websocket.StatusInternalError, "gone")
	}))
	defer srv.Close()

	s := newTestStream(t, "ws"+strings.TrimPrefix(srv.URL, "http"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx, map[string]string{"BTCUSDT": "BTC/USDT"}) }()

	since := time.Now().UnixMilli()
	require.Eventually(t, func() bool {
		ticks, complete := s.RecentTrades("BTC/USDT", since)
		return complete && len(ticks) == 1
	}, 3*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		_, complete := s.RecentTrades("BTC/USDT", since)
		return !complete
	}, 3*time.Second, 10*time.Millisecond)

	ticks, complete := s.RecentTrades("BTC/USDT", since)
	assert.False(t, complete)
	assert.Len(t, ticks, 1, "buffered trades stay readable")
}
