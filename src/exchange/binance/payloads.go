package binance

import (
	"fmt"

	"market-pipeline/src/models"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// klineRow is one element of /api/v3/klines:
//
//	[openTime, "open", "high", "low", "close", "volume", closeTime, ...]
type klineRow []json.RawMessage

// aggTrade is one element of /api/v3/aggTrades.
type aggTrade struct {
	ID       int64  `json:"a"`
	Price    string `json:"p" validate:"required,numeric"`
	Quantity string `json:"q" validate:"required,numeric"`
	Time     int64  `json:"T" validate:"required,gt=0"`
}

// depthResponse is the /api/v3/depth snapshot. Levels are ["price", "qty"].
type depthResponse struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

type exchangeInfo struct {
	Symbols []symbolInfo `json:"symbols" validate:"dive"`
}

type symbolInfo struct {
	Symbol     string `json:"symbol" validate:"required"`
	Status     string `json:"status"`
	BaseAsset  string `json:"baseAsset" validate:"required"`
	QuoteAsset string `json:"quoteAsset" validate:"required"`
}

// streamMsg wraps combined stream payloads:
//
//	{"stream": "btcusdt@aggTrade", "data": {"e": "aggTrade", "s": "BTCUSDT", "p": "...", "q": "...", "T": 1}}
type streamMsg struct {
	Stream string          `json:"stream" validate:"required"`
	Data   json.RawMessage `json:"data" validate:"required"`
}

// EventTime is declared so "E" is not folded onto "e" by the decoder.
type streamTrade struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s" validate:"required"`
	Price     string `json:"p" validate:"required,numeric"`
	Quantity  string `json:"q" validate:"required,numeric"`
	Time      int64  `json:"T" validate:"required,gt=0"`
}

// -----------------------------------------------------------------------------
// Parsing
// -----------------------------------------------------------------------------

func parseKlines(body []byte) ([]models.MBar, error) {
	var rows []klineRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}

	bars := make([]models.MBar, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("kline %d: expected at least 6 fields, got %d", i, len(row))
		}

		var bar models.MBar
		if err := json.Unmarshal(row[0], &bar.Timestamp); err != nil {
			return nil, fmt.Errorf("kline %d open time: %w", i, err)
		}

		fields := []*float64{&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume}
		for j, dst := range fields {
			var raw string
			if err := json.Unmarshal(row[j+1], &raw); err != nil {
				return nil, fmt.Errorf("kline %d field %d: %w", i, j+1, err)
			}
			v, err := parseDecimal(raw)
			if err != nil {
				return nil, fmt.Errorf("kline %d field %d: %w", i, j+1, err)
			}
			*dst = v
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// -----------------------------------------------------------------------------

func parseAggTrades(body []byte, validate *validator.Validate) ([]models.MTradeTick, error) {
	var raw []aggTrade
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode aggTrades: %w", err)
	}

	ticks := make([]models.MTradeTick, 0, len(raw))
	for i := range raw {
		if err := validate.Struct(&raw[i]); err != nil {
			return nil, fmt.Errorf("aggTrade %d: %w", raw[i].ID, err)
		}
		tick, err := toTick(raw[i].Time, raw[i].Price, raw[i].Quantity)
		if err != nil {
			return nil, fmt.Errorf("aggTrade %d: %w", raw[i].ID, err)
		}
		ticks = append(ticks, tick)
	}
	return ticks, nil
}

// -----------------------------------------------------------------------------

func parseDepth(body []byte) (models.MOrderBook, error) {
	var raw depthResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.MOrderBook{}, fmt.Errorf("decode depth: %w", err)
	}

	bids, err := parseLevels(raw.Bids)
	if err != nil {
		return models.MOrderBook{}, fmt.Errorf("bids: %w", err)
	}
	asks, err := parseLevels(raw.Asks)
	if err != nil {
		return models.MOrderBook{}, fmt.Errorf("asks: %w", err)
	}
	return models.MOrderBook{Bids: bids, Asks: asks}, nil
}

func parseLevels(raw [][2]string) ([]models.MDepthLevel, error) {
	levels := make([]models.MDepthLevel, 0, len(raw))
	for i, lvl := range raw {
		price, err := parseDecimal(lvl[0])
		if err != nil {
			return nil, fmt.Errorf("level %d price: %w", i, err)
		}
		amount, err := parseDecimal(lvl[1])
		if err != nil {
			return nil, fmt.Errorf("level %d amount: %w", i, err)
		}
		levels = append(levels, models.MDepthLevel{Price: price, Amount: amount})
	}
	return levels, nil
}

// -----------------------------------------------------------------------------

func parseExchangeInfo(body []byte, validate *validator.Validate) ([]models.MMarket, error) {
	var raw exchangeInfo
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode exchangeInfo: %w", err)
	}
	if err := validate.Struct(&raw); err != nil {
		return nil, fmt.Errorf("invalid exchangeInfo: %w", err)
	}

	markets := make([]models.MMarket, 0, len(raw.Symbols))
	for _, s := range raw.Symbols {
		markets = append(markets, models.MMarket{
			Symbol: s.BaseAsset + "/" + s.QuoteAsset,
			ID:     s.Symbol,
			Base:   s.BaseAsset,
			Quote:  s.QuoteAsset,
			Active: s.Status == "TRADING",
		})
	}
	return markets, nil
}

// -----------------------------------------------------------------------------

// parseStreamTrade decodes one combined-stream message into the exchange id and tick.
func parseStreamTrade(message []byte, validate *validator.Validate) (string, models.MTradeTick, error) {
	var m streamMsg
	if err := json.Unmarshal(message, &m); err != nil {
		return "", models.MTradeTick{}, fmt.Errorf("decode stream message: %w", err)
	}
	if err := validate.Struct(&m); err != nil {
		return "", models.MTradeTick{}, fmt.Errorf("invalid stream message: %w", err)
	}

	var t streamTrade
	if err := json.Unmarshal(m.Data, &t); err != nil {
		return "", models.MTradeTick{}, fmt.Errorf("decode trade: %w", err)
	}
	if err := validate.Struct(&t); err != nil {
		return "", models.MTradeTick{}, fmt.Errorf("invalid trade: %w", err)
	}

	tick, err := toTick(t.Time, t.Price, t.Quantity)
	return t.Symbol, tick, err
}

// -----------------------------------------------------------------------------

func toTick(ts int64, price, qty string) (models.MTradeTick, error) {
	p, err := parseDecimal(price)
	if err != nil {
		return models.MTradeTick{}, fmt.Errorf("price: %w", err)
	}
	q, err := parseDecimal(qty)
	if err != nil {
		return models.MTradeTick{}, fmt.Errorf("quantity: %w", err)
	}
	return models.MTradeTick{Timestamp: ts, Price: p, Amount: q}, nil
}

func parseDecimal(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}
