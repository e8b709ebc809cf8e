package trade

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Trade statuses and condition codes.
const (
	// StatusWaiting marks a freshly imported trade awaiting its entry.
	StatusWaiting = "nt-waiting"
	// CondNow enters immediately at the current price.
	CondNow = "now"
	// CondCloseAbove triggers when price closes above the level.
	CondCloseAbove = "ca"
	// CondCloseBelow triggers when price closes below the level.
	CondCloseBelow = "cb"
)

// Asset types for trade requests.
const (
	Equity = "equity"
	Option = "option"
)

// defaultTradeType is assumed when a request carries no trade type.
const defaultTradeType = "swing"

// strikeIncrement is the fallback strike rounding increment when the listed
// chain cannot be consulted.
const strikeIncrement = 5.0

// Side represents the option side of a trade.
type Side string

const (
	Call Side = "C"
	Put  Side = "P"
)

// Request represents a pending trade request awaiting import.
type Request struct {
	ID         string
	Symbol     string
	AssetType  string
	TradeType  string
	CallPut    string
	Quantity   *int
	EntryType  string
	EntryCond  string
	EntryLevel *float64
	EntryTF    string
	SLType     string
	SLCond     string
	SLLevel    *float64
	SLTF       string
	TPType     string
	TPLevel    *float64
	Strike     *float64
	Expiry     string
	OCC        string
	Manage     string
	Note       string
}

// Defaults represents the configured trade defaults for an asset and trade
// type pairing.
type Defaults struct {
	Quantity        int
	SLPct           float64
	TPPct           float64
	StrikeOffsetPct float64
	ExpiryWeeks     int
}

// ActiveTrade represents a fully resolved trade ready for management.
type ActiveTrade struct {
	ID         string
	Symbol     string
	AssetType  string
	Status     string
	Quantity   int
	CallPut    string
	Strike     *float64
	Expiry     string
	OCC        string
	EntryType  string
	EntryCond  string
	EntryLevel *float64
	EntryTF    string
	SLType     string
	SLCond     string
	SLLevel    *float64
	SLTF       string
	TPType     string
	TPLevel    *float64
	Manage     string
	Note       string
	TradeType  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ParseSide normalizes a call/put field into its stored value and direction
// flag. Recognizes plain and verbose spellings; anything else is rejected.
func ParseSide(raw string) (string, Side, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "call", "c", "buy_call", "long_call":
		return "call", Call, true
	case "put", "p", "buy_put", "long_put":
		return "put", Put, true
	default:
		return "", "", false
	}
}

// ParseTradeType normalizes a trade type field, defaulting to swing.
func ParseTradeType(raw string) string {
	tradeType := strings.ToLower(strings.TrimSpace(raw))
	if tradeType == "" {
		return defaultTradeType
	}

	return tradeType
}

// DecideOrderTypes resolves the entry, stop loss and take profit order types.
// The entry defaults to the traded asset type; both exits default to the
// underlying equity, which is where stops and targets are watched even for
// option trades.
func DecideOrderTypes(assetType string, entryType string, slType string,
	tpType string) (string, string, string) {
	if entryType == "" {
		entryType = assetType
	}
	if slType == "" {
		slType = Equity
	}
	if tpType == "" {
		tpType = Equity
	}

	return entryType, slType, tpType
}

// DecideStopTimeframe resolves the stop loss timeframe, falling back to the
// entry timeframe when the stop has none of its own.
func DecideStopTimeframe(slTF string, entryTF string) string {
	if slTF == "" {
		return entryTF
	}

	return slTF
}

// DecideQuantity resolves the trade quantity from the request, falling back
// to the configured default.
func DecideQuantity(req *Request, defaults *Defaults) int {
	if req.Quantity != nil {
		return *req.Quantity
	}

	return defaults.Quantity
}

// DecideConditions resolves the entry and stop conditions for a request.
// A request with no entry parameters at all enters now. For options with a
// level but no condition the side picks the direction: calls enter on a close
// above and stop on a close below, puts mirror.
func DecideConditions(assetType string, side Side, entryCond string, entryLevel *float64,
	entryTF string, slCond string, slLevel *float64) (string, string) {
	if entryCond == "" && entryLevel == nil && entryTF == "" {
		entryCond = CondNow
	}

	if assetType == Option && (side == Call || side == Put) {
		if entryCond == "" && entryLevel != nil {
			entryCond = CondCloseAbove
			if side == Put {
				entryCond = CondCloseBelow
			}
		}

		if slCond == "" && slLevel != nil {
			slCond = CondCloseBelow
			if side == Put {
				slCond = CondCloseAbove
			}
		}
	}

	return entryCond, slCond
}

// ComputeStopTakeLevels derives stop loss and take profit levels from
// percentage offsets applied to the underlying spot, with the sign flipped
// for puts. Levels already provided on the request are kept. Both levels are
// always based on the underlying, even for options.
func ComputeStopTakeLevels(assetType string, side Side, spot float64, defaults *Defaults,
	slLevel *float64, tpLevel *float64) (*float64, *float64) {
	if slLevel != nil && tpLevel != nil {
		return slLevel, tpLevel
	}

	bearish := assetType == Option && side == Put

	if slLevel == nil && defaults.SLPct > 0 {
		level := spot * (1 - defaults.SLPct)
		if bearish {
			level = spot * (1 + defaults.SLPct)
		}
		slLevel = &level
	}

	if tpLevel == nil && defaults.TPPct > 0 {
		level := spot * (1 + defaults.TPPct)
		if bearish {
			level = spot * (1 - defaults.TPPct)
		}
		tpLevel = &level
	}

	return slLevel, tpLevel
}

// BuildOCC builds an OCC style option symbol from its components: a six
// character root, two digit year, month, day, side letter and the strike in
// thousandths zero padded to eight digits.
func BuildOCC(symbol string, expiry time.Time, side Side, strike float64) string {
	root := fmt.Sprintf("%-6s", strings.ToUpper(symbol))[:6]

	sideLetter := string(side)
	if sideLetter != "C" && sideLetter != "P" {
		sideLetter = "C"
	}

	return fmt.Sprintf("%s%02d%02d%02d%s%08d", root, expiry.Year()%100, int(expiry.Month()),
		expiry.Day(), sideLetter, int(math.Round(strike*1000)))
}

// NearestStrike snaps the provided target price to the nearest strike in the
// listed chain. Ties snap to the lower strike.
func NearestStrike(target float64, strikes []float64) (float64, bool) {
	if len(strikes) == 0 {
		return 0, false
	}

	nearest := strikes[0]
	for _, strike := range strikes[1:] {
		if math.Abs(strike-target) < math.Abs(nearest-target) {
			nearest = strike
		}
	}

	return nearest, true
}

// NearestExpiry snaps the provided target date to the nearest listed expiry.
func NearestExpiry(target time.Time, expirations []time.Time) (time.Time, bool) {
	if len(expirations) == 0 {
		return time.Time{}, false
	}

	nearest := expirations[0]
	for _, expiry := range expirations[1:] {
		if absDuration(expiry.Sub(target)) < absDuration(nearest.Sub(target)) {
			nearest = expiry
		}
	}

	return nearest, true
}

// RoundToIncrement rounds the provided price to the nearest increment.
func RoundToIncrement(price float64, increment float64) float64 {
	return math.Round(price/increment) * increment
}

// absDuration returns the absolute value of the provided duration.
func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}

	return d
}
