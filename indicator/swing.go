package indicator

import (
	"time"

	"github.com/mfriis/spotwatch/shared"
)

// DefaultFractal is the default fractal window for swing detection.
const DefaultFractal = 2

// StructureState classifies the relationship between the two most recent
// swing highs and the two most recent swing lows of a market.
type StructureState string

const (
	HigherHigh       StructureState = "HH"
	HigherLow        StructureState = "HL"
	LowerHigh        StructureState = "LH"
	LowerLow         StructureState = "LL"
	RangingStructure StructureState = "range"
	UnknownStructure StructureState = "unknown"
)

// SwingPoint represents a confirmed local price extremum.
type SwingPoint struct {
	Price float64   `json:"price"`
	Date  time.Time `json:"ts"`
}

// Swings represents the detected swing highs and lows of a candle sequence,
// in sequence order.
type Swings struct {
	Highs []SwingPoint
	Lows  []SwingPoint
}

// FindSwings detects fractal swing highs and lows. A swing high at index i
// requires high[i] to strictly exceed the highs of the surrounding fractal
// window on both sides; swing lows are symmetric on lows. Sequences shorter
// than 2*fractal+1 candles yield no swings.
func FindSwings(candles []shared.Candlestick, fractal int) Swings {
	var swings Swings

	n := len(candles)
	if n < 2*fractal+1 {
		return swings
	}

	for i := fractal; i < n-fractal; i++ {
		hi := candles[i].High
		lo := candles[i].Low

		isHigh := true
		isLow := true
		for k := 1; k <= fractal; k++ {
			if hi <= candles[i-k].High || hi <= candles[i+k].High {
				isHigh = false
			}
			if lo >= candles[i-k].Low || lo >= candles[i+k].Low {
				isLow = false
			}
		}

		if isHigh {
			swings.Highs = append(swings.Highs, SwingPoint{Price: hi, Date: candles[i].Date})
		}
		if isLow {
			swings.Lows = append(swings.Lows, SwingPoint{Price: lo, Date: candles[i].Date})
		}
	}

	return swings
}

// LastTwo returns the most recent and second most recent swing points from
// the provided set. Missing points are nil.
func LastTwo(points []SwingPoint) (*SwingPoint, *SwingPoint) {
	switch len(points) {
	case 0:
		return nil, nil
	case 1:
		return &points[0], nil
	default:
		return &points[len(points)-1], &points[len(points)-2]
	}
}

// ClassifyStructure classifies market structure from the two most recent
// swing highs and lows. The boundary conditions for highs and lows are
// deliberately asymmetric: equal highs with rising lows read as HL while
// falling highs with equal lows read as LH.
func ClassifyStructure(lastHigh, prevHigh, lastLow, prevLow *SwingPoint) StructureState {
	if lastHigh == nil || prevHigh == nil || lastLow == nil || prevLow == nil {
		return UnknownStructure
	}

	lh := lastHigh.Price
	ph := prevHigh.Price
	ll := lastLow.Price
	pl := prevLow.Price

	upHigh := lh > ph
	upLow := ll > pl
	downHigh := lh < ph
	downLow := ll < pl

	switch {
	case upHigh && upLow:
		return HigherHigh
	case !upHigh && upLow:
		return HigherLow
	case downHigh && !downLow:
		return LowerHigh
	case downHigh && downLow:
		return LowerLow
	default:
		return RangingStructure
	}
}
