package shared

import (
	"context"
	"time"
)

// CandleFetcher defines the requirements for fetching candle data.
type CandleFetcher interface {
	// FetchCandles fetches up to limit candles for the provided symbol and
	// timeframe, ordered oldest first.
	FetchCandles(ctx context.Context, symbol string, timeframe Timeframe, limit int) ([]Candlestick, error)
}

// QuoteFetcher defines the requirements for fetching live quotes.
type QuoteFetcher interface {
	// FetchQuotes fetches live quotes for the provided symbols, keyed by
	// uppercased symbol.
	FetchQuotes(ctx context.Context, symbols []string) (map[string]Quote, error)
}

// PositionFetcher defines the requirements for fetching brokerage positions.
type PositionFetcher interface {
	// FetchPositions fetches all open positions for the provided account.
	FetchPositions(ctx context.Context, accountID string) ([]RawPosition, error)
}

// OptionChainFetcher defines the requirements for looking up listed option
// expiries and strikes.
type OptionChainFetcher interface {
	// FetchOptionExpirations fetches the listed expiry dates for the provided
	// underlying symbol, ordered soonest first.
	FetchOptionExpirations(ctx context.Context, symbol string) ([]time.Time, error)
	// FetchOptionStrikes fetches the listed strikes for the provided
	// underlying symbol and expiry, ordered ascending.
	FetchOptionStrikes(ctx context.Context, symbol string, expiry time.Time) ([]float64, error)
}
