package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/mfriis/spotwatch/shared"
	"github.com/peterldowns/testy/assert"
)

func TestVendorInterval(t *testing.T) {
	// Ensure every supported timeframe maps to a vendor interval.
	tests := []struct {
		timeframe     shared.Timeframe
		wantInterval  string
		wantLookbacks string
	}{
		{shared.FiveMinute, "5m", intradayRange},
		{shared.FifteenMinute, "15m", intradayRange},
		{shared.OneHour, "60m", intradayRange},
		{shared.OneDay, "1d", dailyRange},
	}

	for _, test := range tests {
		interval, lookbackRange, err := vendorInterval(test.timeframe)
		assert.NoError(t, err)
		if interval != test.wantInterval || lookbackRange != test.wantLookbacks {
			t.Errorf("%s: expected (%s, %s), got (%s, %s)", test.timeframe.String(),
				test.wantInterval, test.wantLookbacks, interval, lookbackRange)
		}
	}

	// Ensure unrecognized timeframes fail with the unsupported interval error.
	_, _, err := vendorInterval(shared.Timeframe(99))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrUnsupportedInterval))
}

func TestParseChartCandlesticks(t *testing.T) {
	client, err := NewCandleClient(&CandleConfig{BaseURL: "http://chart"})
	assert.NoError(t, err)

	// Ensure chart payloads parse oldest first with metadata set, bars with
	// missing price components skipped and missing volume read as zero.
	body := `{"chart":{"result":[{
		"timestamp":[1714570200,1714570500,1714570800],
		"indicators":{"quote":[{
			"open":[100,null,102],
			"high":[101,103,104],
			"low":[99,100,101],
			"close":[100.5,102.5,103.5],
			"volume":[1000,2000,null]
		}]}
	}]}}`
	candles := client.ParseCandlesticks([]byte(body), "SPY", shared.FiveMinute)
	assert.Equal(t, len(candles), 2)
	assert.Equal(t, candles[0].Open, float64(100))
	assert.Equal(t, candles[0].Close, 100.5)
	assert.Equal(t, candles[0].Volume, float64(1000))
	assert.Equal(t, candles[0].Symbol, "SPY")
	assert.Equal(t, candles[0].Timeframe, shared.FiveMinute)
	assert.Equal(t, candles[1].Close, 103.5)
	assert.Equal(t, candles[1].Volume, float64(0))
	assert.True(t, candles[0].Date.Before(candles[1].Date))

	// Ensure an empty chart payload parses as no candles.
	candles = client.ParseCandlesticks([]byte(`{"chart":{"result":null}}`), "SPY", shared.FiveMinute)
	assert.Equal(t, len(candles), 0)

	// Ensure fetching candles with an unsupported timeframe fails before any
	// request is made.
	_, err = client.FetchCandles(context.Background(), "SPY", shared.Timeframe(99), 500)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrUnsupportedInterval))
}
