package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mfriis/spotwatch/shared"
	"github.com/tidwall/gjson"
)

// ChartBaseURL is the default market data vendor endpoint.
const ChartBaseURL = "https://query1.finance.yahoo.com"

const (
	// intradayRange is the vendor range parameter for intraday timeframes.
	intradayRange = "60d"
	// dailyRange is the vendor range parameter for daily timeframes.
	dailyRange = "2y"
)

// CandleConfig represents the configuration for the candle client.
type CandleConfig struct {
	// BaseURL is the market data vendor endpoint.
	BaseURL string
}

// Validate asserts the config has sane inputs.
func (cfg *CandleConfig) Validate() error {
	var errs error

	if cfg.BaseURL == "" {
		errs = errors.Join(errs, fmt.Errorf("base url cannot be an empty string"))
	}

	return errs
}

// CandleClient represents the market data vendor client supplying OHLCV
// candles.
type CandleClient struct {
	cfg   *CandleConfig
	httpc http.Client
}

// Ensure the candle client implements the CandleFetcher interface.
var _ shared.CandleFetcher = (*CandleClient)(nil)

// NewCandleClient instantiates a new candle client.
func NewCandleClient(cfg *CandleConfig) (*CandleClient, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating candle config: %w", err)
	}

	return &CandleClient{
		cfg:   cfg,
		httpc: http.Client{Timeout: requestTimeout},
	}, nil
}

// vendorInterval maps the provided timeframe to the vendor's interval and
// range parameters.
func vendorInterval(timeframe shared.Timeframe) (string, string, error) {
	switch timeframe {
	case shared.FiveMinute:
		return "5m", intradayRange, nil
	case shared.FifteenMinute:
		return "15m", intradayRange, nil
	case shared.OneHour:
		return "60m", intradayRange, nil
	case shared.OneDay:
		return "1d", dailyRange, nil
	default:
		return "", "", fmt.Errorf("%w: %s", shared.ErrUnsupportedInterval, timeframe.String())
	}
}

// ParseCandlesticks parses candles from the provided vendor chart payload.
// Bars with missing price components are skipped, missing volume reads as
// zero. Candles are returned oldest first.
func (c *CandleClient) ParseCandlesticks(body []byte, symbol string, timeframe shared.Timeframe) []shared.Candlestick {
	result := gjson.GetBytes(body, "chart.result.0")
	if !result.Exists() {
		return nil
	}

	timestamps := result.Get("timestamp").Array()
	quote := result.Get("indicators.quote.0")
	opens := quote.Get("open").Array()
	highs := quote.Get("high").Array()
	lows := quote.Get("low").Array()
	closes := quote.Get("close").Array()
	volumes := quote.Get("volume").Array()

	candles := make([]shared.Candlestick, 0, len(timestamps))
	for idx := range timestamps {
		if idx >= len(opens) || idx >= len(highs) || idx >= len(lows) || idx >= len(closes) {
			break
		}

		if opens[idx].Type == gjson.Null || highs[idx].Type == gjson.Null ||
			lows[idx].Type == gjson.Null || closes[idx].Type == gjson.Null {
			continue
		}

		var volume float64
		if idx < len(volumes) && volumes[idx].Type != gjson.Null {
			volume = volumes[idx].Float()
		}

		candles = append(candles, shared.Candlestick{
			Open:      opens[idx].Float(),
			High:      highs[idx].Float(),
			Low:       lows[idx].Float(),
			Close:     closes[idx].Float(),
			Volume:    volume,
			Date:      time.Unix(timestamps[idx].Int(), 0).UTC(),
			Symbol:    symbol,
			Timeframe: timeframe,
		})
	}

	return candles
}

// FetchCandles fetches up to limit candles for the provided symbol and
// timeframe, ordered oldest first. Unrecognized timeframes fail with
// ErrUnsupportedInterval and rate limit responses with ErrRateLimited.
func (c *CandleClient) FetchCandles(ctx context.Context, symbol string, timeframe shared.Timeframe, limit int) ([]shared.Candlestick, error) {
	interval, lookbackRange, err := vendorInterval(timeframe)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Add("interval", interval)
	params.Add("range", lookbackRange)
	params.Add("includePrePost", "false")
	params.Add("events", "history")
	fullURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.cfg.BaseURL, url.PathEscape(symbol), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching candles (%s) for %s: %w", timeframe.String(), symbol, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, shared.NewStatusError(resp.StatusCode, fullURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	candles := c.ParseCandlesticks(body, symbol, timeframe)
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}

	return candles, nil
}
