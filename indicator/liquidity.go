package indicator

import (
	"math"
	"sort"
	"time"

	"github.com/mfriis/spotwatch/shared"
)

// DefaultEqualLevelTolerance is the default relative tolerance for treating
// two consecutive highs or lows as equal (0.0005 ≈ 0.05%).
const DefaultEqualLevelTolerance = 0.0005

// SweepKind represents the side of a liquidity sweep.
type SweepKind string

const (
	HighSweep SweepKind = "high"
	LowSweep  SweepKind = "low"
)

// Sweep represents a liquidity sweep event, price running through a pool of
// resting equal highs or lows.
type Sweep struct {
	Kind  SweepKind `json:"type"`
	Price float64   `json:"price"`
	Date  time.Time `json:"ts"`
}

// Liquidity represents the resting liquidity detected for a candle sequence.
type Liquidity struct {
	EqualHighs []float64 `json:"equal_highs"`
	EqualLows  []float64 `json:"equal_lows"`
	Sweeps     []Sweep   `json:"sweeps"`
}

// FindLiquidity detects approximately equal consecutive highs/lows within the
// provided relative tolerance and simple sweep events through them. Equal
// levels are midpoints of the matching pair, deduplicated by exact equality
// and sorted ascending; near duplicates that differ in the last bits are kept
// as distinct levels. Sweep membership likewise tests the raw high/low against
// the midpoint set with exact float equality, so a sweep only fires when the
// swept bar's extreme coincides bit for bit with a recorded midpoint. That
// membership rule is intentionally preserved as-is.
func FindLiquidity(candles []shared.Candlestick, tol float64) Liquidity {
	liquidity := Liquidity{
		EqualHighs: []float64{},
		EqualLows:  []float64{},
		Sweeps:     []Sweep{},
	}

	n := len(candles)
	if n < 3 {
		return liquidity
	}

	var equalHighs, equalLows []float64
	for i := 1; i < n; i++ {
		h0, h1 := candles[i-1].High, candles[i].High
		l0, l1 := candles[i-1].Low, candles[i].Low

		if math.Abs(h1-h0)/math.Max(h0, 1e-6) <= tol {
			equalHighs = append(equalHighs, (h0+h1)/2)
		}
		if math.Abs(l1-l0)/math.Max(l0, 1e-6) <= tol {
			equalLows = append(equalLows, (l0+l1)/2)
		}
	}

	highSet := make(map[float64]struct{}, len(equalHighs))
	for _, level := range equalHighs {
		highSet[level] = struct{}{}
	}
	lowSet := make(map[float64]struct{}, len(equalLows))
	for _, level := range equalLows {
		lowSet[level] = struct{}{}
	}

	for i := 2; i < n; i++ {
		if _, ok := highSet[candles[i-2].High]; ok &&
			candles[i].High > candles[i-1].High && candles[i-1].High > candles[i-2].High {
			liquidity.Sweeps = append(liquidity.Sweeps, Sweep{
				Kind:  HighSweep,
				Price: candles[i].High,
				Date:  candles[i].Date,
			})
		}
		if _, ok := lowSet[candles[i-2].Low]; ok &&
			candles[i].Low < candles[i-1].Low && candles[i-1].Low < candles[i-2].Low {
			liquidity.Sweeps = append(liquidity.Sweeps, Sweep{
				Kind:  LowSweep,
				Price: candles[i].Low,
				Date:  candles[i].Date,
			})
		}
	}

	liquidity.EqualHighs = dedupeLevels(equalHighs)
	liquidity.EqualLows = dedupeLevels(equalLows)

	return liquidity
}

// dedupeLevels deduplicates the provided levels by exact equality and sorts
// them ascending.
func dedupeLevels(levels []float64) []float64 {
	set := make(map[float64]struct{}, len(levels))
	for _, level := range levels {
		set[level] = struct{}{}
	}

	deduped := make([]float64, 0, len(set))
	for level := range set {
		deduped = append(deduped, level)
	}
	sort.Float64s(deduped)

	return deduped
}
