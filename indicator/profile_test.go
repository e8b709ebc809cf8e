package indicator

import (
	"testing"
	"time"

	"github.com/mfriis/spotwatch/shared"
	"github.com/peterldowns/testy/assert"
)

// closeCandles builds a candle sequence from paired closes and volumes.
func closeCandles(closes []float64, volumes []float64) []shared.Candlestick {
	candles := make([]shared.Candlestick, len(closes))
	base := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	for idx := range closes {
		candles[idx] = shared.Candlestick{
			Open:   closes[idx],
			Low:    closes[idx],
			High:   closes[idx],
			Close:  closes[idx],
			Volume: volumes[idx],
			Date:   base.Add(time.Duration(idx) * time.Minute * 5),
		}
	}
	return candles
}

func TestBuildVolumeProfile(t *testing.T) {
	// Ensure no candles yields no profile.
	profile := BuildVolumeProfile(nil, DefaultProfileBins)
	assert.Equal(t, profile, nil)

	// Ensure a non-positive bin count yields no profile instead of panicking.
	profile = BuildVolumeProfile(closeCandles([]float64{10, 11, 12}, []float64{1, 1, 1}), 0)
	assert.Equal(t, profile, nil)
	profile = BuildVolumeProfile(closeCandles([]float64{10, 11, 12}, []float64{1, 1, 1}), -1)
	assert.Equal(t, profile, nil)

	// Ensure a zero price range yields no profile.
	profile = BuildVolumeProfile(closeCandles([]float64{10, 10, 10}, []float64{1, 1, 1}), DefaultProfileBins)
	assert.Equal(t, profile, nil)

	// Ensure all zero volume yields no profile.
	profile = BuildVolumeProfile(closeCandles([]float64{10, 11, 12}, []float64{0, 0, 0}), DefaultProfileBins)
	assert.Equal(t, profile, nil)

	// Ensure the point of control tracks the dominant volume bin and always
	// lies within the close range.
	closes := []float64{10, 11, 12, 13, 14, 15, 16, 17, 18, 20}
	volumes := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 50}
	profile = BuildVolumeProfile(closeCandles(closes, volumes), DefaultProfileBins)
	assert.NotEqual(t, profile, nil)
	assert.GreaterThanOrEqual(t, profile.POC, float64(10))
	assert.LessThanOrEqual(t, profile.POC, float64(20))
	// The max close lands in the clamped last bin, which dominates by volume.
	assert.GreaterThan(t, profile.POC, float64(19))

	// Ensure HVN bins are ordered by descending volume and LVN bins by
	// ascending volume among nonzero bins.
	closes = []float64{0, 10, 20, 30, 40}
	volumes = []float64{5, 50, 1, 30, 10}
	profile = BuildVolumeProfile(closeCandles(closes, volumes), 4)
	assert.NotEqual(t, profile, nil)
	assert.Equal(t, len(profile.HVN), 3)
	assert.Equal(t, len(profile.LVN), 3)
	// Bin width is 10: bin0={0}, bin1={10}, bin2={20}, bin3={30,40 clamped}.
	assert.Equal(t, profile.HVN[0], PriceBin{Low: 10, High: 20})
	assert.Equal(t, profile.HVN[1], PriceBin{Low: 30, High: 40})
	assert.Equal(t, profile.HVN[2], PriceBin{Low: 0, High: 10})
	assert.Equal(t, profile.LVN[0], PriceBin{Low: 20, High: 30})
	assert.Equal(t, profile.LVN[1], PriceBin{Low: 0, High: 10})
	assert.Equal(t, profile.POC, float64(15))

	// Ensure fewer nonzero bins than the node count degrades gracefully.
	profile = BuildVolumeProfile(closeCandles([]float64{10, 20}, []float64{3, 7}), 2)
	assert.NotEqual(t, profile, nil)
	assert.Equal(t, len(profile.HVN), 2)
	assert.Equal(t, len(profile.LVN), 2)
}
