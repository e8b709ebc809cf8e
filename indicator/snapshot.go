package indicator

import (
	"github.com/mfriis/spotwatch/shared"
)

// SwingsPayload represents the swing context retained in a snapshot: the two
// most recent swing highs and lows. Older swings are discardable context.
type SwingsPayload struct {
	LastHigh *SwingPoint `json:"last_high"`
	PrevHigh *SwingPoint `json:"prev_high"`
	LastLow  *SwingPoint `json:"last_low"`
	PrevLow  *SwingPoint `json:"prev_low"`
}

// Snapshot represents the full technical snapshot derived for a symbol and
// timeframe: market structure, fair value gaps, liquidity, volume profile and
// trend. Snapshots are recomputed from scratch every cycle and replace the
// previous snapshot for the same (symbol, timeframe, use case) key.
type Snapshot struct {
	Timeframe      string         `json:"timeframe"`
	UseCase        string         `json:"use_case"`
	StructureState StructureState `json:"structure_state"`
	Swings         SwingsPayload  `json:"swings"`
	Gaps           []Gap          `json:"fvgs"`
	Liquidity      Liquidity      `json:"liquidity"`
	VolumeProfile  *VolumeProfile `json:"volume_profile"`
	Trend          *Trend         `json:"trend"`
	Extras         map[string]any `json:"extras"`
}

// ComputeSnapshot assembles the technical snapshot for the provided candles.
// Every derived structure is a pure function of the candle sequence and the
// fractal parameter; insufficient data degrades to unknown or empty parts
// rather than erroring, so the snapshot is always well formed.
func ComputeSnapshot(candles []shared.Candlestick, timeframe shared.Timeframe, useCase string, fractal int) *Snapshot {
	swings := FindSwings(candles, fractal)
	lastHigh, prevHigh := LastTwo(swings.Highs)
	lastLow, prevLow := LastTwo(swings.Lows)

	return &Snapshot{
		Timeframe:      timeframe.String(),
		UseCase:        useCase,
		StructureState: ClassifyStructure(lastHigh, prevHigh, lastLow, prevLow),
		Swings: SwingsPayload{
			LastHigh: lastHigh,
			PrevHigh: prevHigh,
			LastLow:  lastLow,
			PrevLow:  prevLow,
		},
		Gaps:          FindGaps(candles),
		Liquidity:     FindLiquidity(candles, DefaultEqualLevelTolerance),
		VolumeProfile: BuildVolumeProfile(candles, DefaultProfileBins),
		Trend:         ComputeTrend(candles),
		// Extras is reserved for forward compatible additions.
		Extras: map[string]any{},
	}
}
