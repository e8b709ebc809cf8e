package shared

// Timeframe represents the market data time period.
type Timeframe int

const (
	FiveMinute Timeframe = iota
	FifteenMinute
	OneHour
	OneDay
)

// String stringifies the provided timeframe.
func (t Timeframe) String() string {
	switch t {
	case FiveMinute:
		return "5m"
	case FifteenMinute:
		return "15m"
	case OneHour:
		return "1h"
	case OneDay:
		return "1d"
	default:
		return "unknown"
	}
}

// UseCase returns the trading use case snapshots on the provided timeframe serve.
func (t Timeframe) UseCase() string {
	switch t {
	case FiveMinute:
		return "scalp"
	case FifteenMinute, OneHour:
		return "day"
	case OneDay:
		return "swing"
	default:
		return "generic"
	}
}
