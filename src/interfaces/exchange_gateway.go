package interfaces

import (
	"context"

	"market-pipeline/src/models"
)

// -----------------------------------------------------------------------------
// IExchangeGateway is the typed capability set of an exchange.
// Symbols are unified ("BTC/USDT"); timestamps are unix milliseconds.
// -----------------------------------------------------------------------------

type IExchangeGateway interface {

	// -----------------------------------------------------------------------------

	// FetchOHLCV returns at most limit bars starting at since, oldest first.
	FetchOHLCV(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]models.MBar, error)

	// -----------------------------------------------------------------------------

	// FetchTrades returns trades executed at or after since, oldest first.
	FetchTrades(ctx context.Context, symbol string, since int64) ([]models.MTradeTick, error)

	// -----------------------------------------------------------------------------

	// FetchOrderBook returns the current book, bids descending and asks ascending.
	FetchOrderBook(ctx context.Context, symbol string) (models.MOrderBook, error)

	// -----------------------------------------------------------------------------

	// FetchMarkets lists the tradable pairs.
	FetchMarkets(ctx context.Context) ([]models.MMarket, error)
}

// -----------------------------------------------------------------------------
// ITradeFeed supplies recent trades kept from a live stream.
// -----------------------------------------------------------------------------

type ITradeFeed interface {

	// RecentTrades returns the trades since the given time and whether the feed
	// covers that whole range.
	RecentTrades(symbol string, since int64) ([]models.MTradeTick, bool)
}
