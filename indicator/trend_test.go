package indicator

import (
	"testing"

	"github.com/peterldowns/testy/assert"
)

func TestComputeTrend(t *testing.T) {
	rising := make([]float64, 25)
	volumes := make([]float64, 25)
	for idx := range rising {
		rising[idx] = 100 + float64(idx)
		volumes[idx] = 1
	}

	// Ensure fewer than twenty candles yields no trend.
	trend := ComputeTrend(closeCandles(rising[:19], volumes[:19]))
	assert.Equal(t, trend, nil)

	// Ensure monotonically increasing closes read as an up slope with the
	// fast EMA above the slow EMA.
	trend = ComputeTrend(closeCandles(rising, volumes))
	assert.NotEqual(t, trend, nil)
	assert.Equal(t, trend.Slope, SlopeUp)
	assert.GreaterThan(t, trend.EMAFast, trend.EMASlow)
	assert.GreaterThan(t, trend.Momentum, float64(0))

	// Ensure monotonically decreasing closes read as a down slope with
	// negative momentum.
	falling := make([]float64, 25)
	for idx := range falling {
		falling[idx] = 200 - float64(idx)
	}
	trend = ComputeTrend(closeCandles(falling, volumes))
	assert.NotEqual(t, trend, nil)
	assert.Equal(t, trend.Slope, SlopeDown)
	assert.LessThan(t, trend.Momentum, float64(0))

	// Ensure constant closes read as flat with zero momentum.
	flat := make([]float64, 25)
	for idx := range flat {
		flat[idx] = 150
	}
	trend = ComputeTrend(closeCandles(flat, volumes))
	assert.NotEqual(t, trend, nil)
	assert.Equal(t, trend.Slope, SlopeFlat)
	assert.Equal(t, trend.EMAFast, float64(150))
	assert.Equal(t, trend.EMASlow, float64(150))
	assert.Equal(t, trend.Momentum, float64(0))
}

func TestEMASeeding(t *testing.T) {
	// Ensure the EMA series is seeded with the first value: the first output
	// already blends the seed with itself and stays at the input level for a
	// constant series.
	series := ema([]float64{10, 10, 10}, 9)
	assert.Equal(t, series, []float64{10, 10, 10})

	// Ensure a period of one or less returns the input unchanged.
	series = ema([]float64{1, 2, 3}, 1)
	assert.Equal(t, series, []float64{1, 2, 3})

	// Ensure the EMA lags a step change instead of jumping to it.
	series = ema([]float64{10, 20}, 9)
	assert.Equal(t, len(series), 2)
	assert.GreaterThan(t, series[1], float64(10))
	assert.LessThan(t, series[1], float64(20))
}
