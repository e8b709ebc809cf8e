package indicator

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mfriis/spotwatch/shared"
	"github.com/peterldowns/testy/assert"
)

// rangeCandles builds a candle sequence from explicit low/high ranges.
func rangeCandles(ranges [][2]float64) []shared.Candlestick {
	candles := make([]shared.Candlestick, len(ranges))
	base := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	for idx := range ranges {
		candles[idx] = shared.Candlestick{
			Open:   ranges[idx][0],
			Low:    ranges[idx][0],
			High:   ranges[idx][1],
			Close:  ranges[idx][1],
			Volume: 1,
			Date:   base.Add(time.Duration(idx) * time.Minute * 5),
		}
	}
	return candles
}

func TestFindGaps(t *testing.T) {
	// Ensure sequences shorter than three candles yield no gaps.
	gaps := FindGaps(rangeCandles([][2]float64{{1, 2}, {3, 4}}))
	assert.Equal(t, len(gaps), 0)

	// Ensure overlapping candles yield no gaps.
	gaps = FindGaps(rangeCandles([][2]float64{{1, 3}, {2, 4}, {3, 5}, {4, 6}}))
	assert.Equal(t, len(gaps), 0)

	// Ensure strictly increasing, well separated candles yield a bullish gap
	// at every eligible interior index.
	gaps = FindGaps(rangeCandles([][2]float64{{1, 2}, {5, 6}, {10, 11}, {15, 16}, {20, 21}}))
	want := []Gap{
		{Kind: BullGap, Top: 10, Bottom: 2, Age: 4, Quality: 1.0},
		{Kind: BullGap, Top: 15, Bottom: 6, Age: 3, Quality: 1.0},
		{Kind: BullGap, Top: 20, Bottom: 11, Age: 2, Quality: 1.0},
	}
	if !cmp.Equal(want, gaps) {
		t.Errorf("mismatching bullish gaps: %v", cmp.Diff(want, gaps))
	}

	// Ensure well separated falling candles yield bearish gaps with the gap
	// range spanning the prior low down to the next high.
	gaps = FindGaps(rangeCandles([][2]float64{{20, 21}, {15, 16}, {10, 11}}))
	want = []Gap{
		{Kind: BearGap, Top: 20, Bottom: 11, Age: 2, Quality: 1.0},
	}
	if !cmp.Equal(want, gaps) {
		t.Errorf("mismatching bearish gaps: %v", cmp.Diff(want, gaps))
	}
}
