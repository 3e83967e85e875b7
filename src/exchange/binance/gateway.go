// Package binance implements the exchange gateway on top of the Binance spot API:
// REST for candles, trades, order books and markets, and a websocket trade stream.
package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"market-pipeline/src/helpers"
	"market-pipeline/src/interfaces"
	"market-pipeline/src/logger"
	"market-pipeline/src/models"

	"github.com/go-playground/validator/v10"
)

// Gateway implements interfaces.IExchangeGateway for Binance spot.
type Gateway struct {
	Config  *models.MConfig
	Network interfaces.INetworkManager
	Logger  *logger.Logger

	baseURL  string
	validate *validator.Validate

	mu          sync.RWMutex
	idsBySymbol map[string]string
	symbolsByID map[string]string
}

// -----------------------------------------------------------------------------

func NewGateway(cfg *models.MConfig, netMgr interfaces.INetworkManager, log *logger.Logger) *Gateway {
	return &Gateway{
		Config:      cfg,
		Network:     netMgr,
		Logger:      log,
		baseURL:     restBaseURL(cfg.Exchange.RestURL),
		validate:    validator.New(),
		idsBySymbol: make(map[string]string),
		symbolsByID: make(map[string]string),
	}
}

// -----------------------------------------------------------------------------

// FetchOHLCV retrieves one page of klines starting at since.
func (g *Gateway) FetchOHLCV(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]models.MBar, error) {
	if _, err := models.TimeframeDuration(timeframe); err != nil {
		return nil, &helpers.ValidationError{PipelineError: helpers.PipelineError{Message: "fetchOHLCV", Cause: err}}
	}

	params := map[string]string{
		"symbol":   g.MarketID(symbol),
		"interval": timeframe,
		"limit":    strconv.Itoa(limit),
	}
	if since > 0 {
		params["startTime"] = strconv.FormatInt(since, 10)
	}

	body, err := g.Network.Get(ctx, g.baseURL+klinesPath, params)
	if err != nil {
		return nil, err
	}

	bars, err := parseKlines(body)
	if err != nil {
		return nil, malformed("klines", err)
	}
	return bars, nil
}

// -----------------------------------------------------------------------------

// FetchTrades retrieves aggregated trades since the given time (one page of up to 1000).
func (g *Gateway) FetchTrades(ctx context.Context, symbol string, since int64) ([]models.MTradeTick, error) {
	params := map[string]string{
		"symbol": g.MarketID(symbol),
		"limit":  strconv.Itoa(maxTradesPerRequest),
	}
	if since > 0 {
		params["startTime"] = strconv.FormatInt(since, 10)
	}

	body, err := g.Network.Get(ctx, g.baseURL+aggTradesPath, params)
	if err != nil {
		return nil, err
	}

	ticks, err := parseAggTrades(body, g.validate)
	if err != nil {
		return nil, malformed("aggTrades", err)
	}
	if len(ticks) == maxTradesPerRequest {
		g.Logger.Debug("Trade page for %s is full, older part of the window only", symbol)
	}
	return ticks, nil
}

// -----------------------------------------------------------------------------

// FetchOrderBook retrieves the current depth snapshot.
func (g *Gateway) FetchOrderBook(ctx context.Context, symbol string) (models.MOrderBook, error) {
	params := map[string]string{
		"symbol": g.MarketID(symbol),
		"limit":  strconv.Itoa(g.Config.Pipeline.OrderBookLimit),
	}

	body, err := g.Network.Get(ctx, g.baseURL+depthPath, params)
	if err != nil {
		return models.MOrderBook{}, err
	}

	book, err := parseDepth(body)
	if err != nil {
		return models.MOrderBook{}, malformed("depth", err)
	}
	book.Symbol = symbol
	return book, nil
}

// -----------------------------------------------------------------------------

// FetchMarkets lists all spot pairs and refreshes the symbol <-> id mapping.
func (g *Gateway) FetchMarkets(ctx context.Context) ([]models.MMarket, error) {
	body, err := g.Network.Get(ctx, g.baseURL+exchangeInfoPath, nil)
	if err != nil {
		return nil, err
	}

	markets, err := parseExchangeInfo(body, g.validate)
	if err != nil {
		return nil, malformed("exchangeInfo", err)
	}

	ids := make(map[string]string, len(markets))
	symbols := make(map[string]string, len(markets))
	for _, m := range markets {
		ids[m.Symbol] = m.ID
		symbols[m.ID] = m.Symbol
	}

	g.mu.Lock()
	g.idsBySymbol = ids
	g.symbolsByID = symbols
	g.mu.Unlock()

	g.Logger.Info("Loaded %d markets", len(markets))
	return markets, nil
}

// -----------------------------------------------------------------------------

// MarketID converts a unified symbol ("BTC/USDT") to the exchange id ("BTCUSDT").
// Falls back to stripping the separator before markets are loaded.
func (g *Gateway) MarketID(symbol string) string {
	g.mu.RLock()
	id, ok := g.idsBySymbol[symbol]
	g.mu.RUnlock()
	if ok {
		return id
	}
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}

// UnifiedSymbol converts an exchange id back to the unified form, if known.
func (g *Gateway) UnifiedSymbol(id string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.symbolsByID[strings.ToUpper(id)]
	return s, ok
}

// -----------------------------------------------------------------------------

func malformed(endpoint string, err error) error {
	return helpers.NewGatewayError(fmt.Sprintf("malformed %s response", endpoint), 0, false, err)
}
