package shared

import (
	"time"
)

// Candlestick represents a unit OHLCV bar for an instrument. Candle sequences
// are ordered oldest first with strictly increasing dates.
type Candlestick struct {
	Open   float64
	Low    float64
	High   float64
	Close  float64
	Volume float64
	Date   time.Time

	// Metadata fields.
	Symbol    string
	Timeframe Timeframe
}
