package indicator

import (
	"github.com/mfriis/spotwatch/shared"
)

// GapKind represents the direction of a fair value gap.
type GapKind string

const (
	BullGap GapKind = "bull"
	BearGap GapKind = "bear"
)

// Gap represents a fair value gap, a three candle price discontinuity
// interpreted as an imbalance zone.
type Gap struct {
	Kind    GapKind `json:"type"`
	Top     float64 `json:"top"`
	Bottom  float64 `json:"bottom"`
	Age     int     `json:"age"`
	Quality float64 `json:"quality"`
}

// FindGaps detects fair value gaps using the three candle pattern: a bullish
// gap exists at index i when the high of candle i-1 sits below the low of
// candle i+1, a bearish gap when the low of candle i-1 sits above the high of
// candle i+1. Both can fire at the same index. Age counts bars from the
// creating candle to the end of the sequence. Quality is a fixed placeholder
// score; all gaps are equally weighted.
func FindGaps(candles []shared.Candlestick) []Gap {
	gaps := []Gap{}

	n := len(candles)
	if n < 3 {
		return gaps
	}

	for i := 1; i < n-1; i++ {
		prev := &candles[i-1]
		next := &candles[i+1]

		if prev.High < next.Low {
			gaps = append(gaps, Gap{
				Kind:    BullGap,
				Top:     next.Low,
				Bottom:  prev.High,
				Age:     n - i,
				Quality: 1.0,
			})
		}

		if prev.Low > next.High {
			gaps = append(gaps, Gap{
				Kind:    BearGap,
				Top:     prev.Low,
				Bottom:  next.High,
				Age:     n - i,
				Quality: 1.0,
			})
		}
	}

	return gaps
}
