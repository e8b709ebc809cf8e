package indicator

import (
	"math"

	"github.com/mfriis/spotwatch/shared"
)

const (
	// fastEMAPeriod is the period of the fast exponential moving average.
	fastEMAPeriod = 9
	// slowEMAPeriod is the period of the slow exponential moving average.
	slowEMAPeriod = 21
	// minTrendCandles is the minimum number of candles needed for a trend read.
	minTrendCandles = 20
	// slopeLookback is the offset from the sequence end used for the slope delta.
	slopeLookback = 6
)

// Slope represents the direction of the fast EMA slope.
type Slope string

const (
	SlopeUp   Slope = "up"
	SlopeDown Slope = "down"
	SlopeFlat Slope = "flat"
)

// Trend summarizes the exponential moving average trend and momentum of a
// candle sequence.
type Trend struct {
	EMAFast  float64 `json:"ema_fast"`
	EMASlow  float64 `json:"ema_slow"`
	Slope    Slope   `json:"slope"`
	Momentum float64 `json:"momentum"`
}

// ema computes an exponential moving average series with smoothing
// 2/(period+1), seeded with the first value rather than a simple average
// warm-up.
func ema(values []float64, period int) []float64 {
	if len(values) == 0 || period <= 1 {
		return append([]float64(nil), values...)
	}

	alpha := 2 / float64(period+1)
	series := make([]float64, len(values))
	prev := values[0]
	for idx, value := range values {
		prev = alpha*value + (1-alpha)*prev
		series[idx] = prev
	}

	return series
}

// ComputeTrend derives fast/slow EMA values, slope and momentum for the
// provided candles. Returns nil when fewer than 20 candles are available.
// The slope compares the latest fast EMA against its value near the start of
// the final stretch of bars; too short a series reads as flat.
func ComputeTrend(candles []shared.Candlestick) *Trend {
	if len(candles) < minTrendCandles {
		return nil
	}

	closes := make([]float64, len(candles))
	for idx := range candles {
		closes[idx] = candles[idx].Close
	}

	fast := ema(closes, fastEMAPeriod)
	slow := ema(closes, slowEMAPeriod)

	emaFast := fast[len(fast)-1]
	emaSlow := slow[len(slow)-1]

	var slopeDelta float64
	if len(fast) > slopeLookback {
		slopeDelta = emaFast - fast[len(fast)-slopeLookback]
	}

	slope := SlopeFlat
	switch {
	case slopeDelta > 0:
		slope = SlopeUp
	case slopeDelta < 0:
		slope = SlopeDown
	}

	return &Trend{
		EMAFast:  emaFast,
		EMASlow:  emaSlow,
		Slope:    slope,
		Momentum: (emaFast - emaSlow) / math.Max(emaSlow, 1e-6),
	}
}
