package binance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"market-pipeline/src/logger"
	"market-pipeline/src/models"
	"market-pipeline/src/utils"

	"github.com/go-playground/validator/v10"
	"nhooyr.io/websocket"
)

const (
	streamReadLimit  = 1 << 20 // 1MB
	streamMaxBackoff = 30 * time.Second
)

// TradeStream keeps a rolling window of live aggregated trades per symbol.
// It implements interfaces.ITradeFeed.
type TradeStream struct {
	Logger *logger.Logger

	baseURL    string
	windowSize int
	resolve    func(id string) (string, bool)
	validate   *validator.Validate

	mu      sync.RWMutex
	windows map[string]*utils.TickWindow
}

// -----------------------------------------------------------------------------

// NewTradeStream creates a stream client. resolve maps exchange ids back to unified
// symbols; Gateway.UnifiedSymbol fits.
func NewTradeStream(cfg *models.MConfig, resolve func(id string) (string, bool), log *logger.Logger) *TradeStream {
	return &TradeStream{
		Logger:     log,
		baseURL:    streamBaseURL(cfg.Exchange.StreamURL),
		windowSize: cfg.Pipeline.TickWindowSize,
		resolve:    resolve,
		validate:   validator.New(),
		windows:    make(map[string]*utils.TickWindow),
	}
}

// -----------------------------------------------------------------------------

// RecentTrades returns buffered trades since the given time and whether the
// buffer covers that whole range.
func (s *TradeStream) RecentTrades(symbol string, since int64) ([]models.MTradeTick, bool) {
	s.mu.RLock()
	w, ok := s.windows[symbol]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return w.Since(since)
}

// -----------------------------------------------------------------------------

// Run connects to the combined aggTrade stream for the given (exchange id -> unified symbol)
// pairs and reconnects with backoff until ctx is done.
func (s *TradeStream) Run(ctx context.Context, ids map[string]string) error {
	if len(ids) == 0 {
		return errors.New("trade stream: no symbols")
	}

	s.mu.Lock()
	for _, symbol := range ids {
		if _, ok := s.windows[symbol]; !ok {
			s.windows[symbol] = utils.NewTickWindow(s.windowSize)
		}
	}
	s.mu.Unlock()

	streamURL := s.streamURL(ids)
	backoff := time.Second

	for {
		started := time.Now()
		err := s.consume(ctx, streamURL, ids)
		s.invalidate(ids)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// A connection that stayed up for a while resets the backoff
		if time.Since(started) > streamMaxBackoff {
			backoff = time.Second
		}
		s.Logger.Warning("Trade stream dropped: %v. Reconnecting in %v", err, backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, streamMaxBackoff)
	}
}

// -----------------------------------------------------------------------------

func (s *TradeStream) consume(ctx context.Context, streamURL string, ids map[string]string) error {
	ws, _, err := websocket.Dial(ctx, streamURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", streamURL, err)
	}
	defer ws.Close(websocket.StatusNormalClosure, "shutdown")
	ws.SetReadLimit(streamReadLimit)

	// Everything before the connection is unknown to the windows
	connectedAt := time.Now().UnixMilli()
	s.mu.RLock()
	for _, symbol := range ids {
		s.windows[symbol].Reset(connectedAt)
	}
	s.mu.RUnlock()
	s.Logger.Info("Trade stream connected (%d symbols)", len(ids))

	for {
		msgType, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return errors.New("closed by server")
			}
			return err
		}
		if msgType != websocket.MessageText {
			continue
		}
		s.handleMessage(data, ids)
	}
}

// -----------------------------------------------------------------------------

// invalidate marks the windows incomplete until the next connection resets them.
func (s *TradeStream) invalidate(ids map[string]string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, symbol := range ids {
		s.windows[symbol].Invalidate()
	}
}

// -----------------------------------------------------------------------------

func (s *TradeStream) handleMessage(data []byte, ids map[string]string) {
	id, tick, err := parseStreamTrade(data, s.validate)
	if err != nil {
		s.Logger.Debug("Skipping stream message: %v", err)
		return
	}

	symbol, ok := ids[id]
	if !ok && s.resolve != nil {
		symbol, ok = s.resolve(id)
	}
	if !ok {
		return
	}

	s.mu.RLock()
	w, ok := s.windows[symbol]
	s.mu.RUnlock()
	if ok {
		w.Append(tick)
	}
}

// -----------------------------------------------------------------------------

func (s *TradeStream) streamURL(ids map[string]string) string {
	streams := make([]string, 0, len(ids))
	for id := range ids {
		streams = append(streams, strings.ToLower(id)+"@aggTrade")
	}
	return s.baseURL + "/stream?streams=" + strings.Join(streams, "/")
}
