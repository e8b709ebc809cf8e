package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mfriis/spotwatch/shared"
	"github.com/tidwall/gjson"
)

const (
	// LiveBaseURL is the default live brokerage api endpoint.
	LiveBaseURL = "https://api.tradier.com/v1"
	// SandboxBaseURL is the default sandbox brokerage api endpoint.
	SandboxBaseURL = "https://sandbox.tradier.com/v1"

	// quoteBatchSize is the vendor imposed maximum symbols per quote request.
	quoteBatchSize = 70
	// requestTimeout is the flat per call timeout for brokerage requests.
	requestTimeout = time.Second * 15

	// expiryLayout is the date layout for option expiries.
	expiryLayout = "2006-01-02"
)

// TradierConfig represents the configuration for the tradier client.
type TradierConfig struct {
	// LiveToken is the live api token, used for quotes and option chains.
	LiveToken string
	// SandboxToken is the sandbox api token, used for positions.
	SandboxToken string
	// LiveBaseURL is the live api endpoint.
	LiveBaseURL string
	// SandboxBaseURL is the sandbox api endpoint.
	SandboxBaseURL string
}

// Validate asserts the config has sane inputs.
func (cfg *TradierConfig) Validate() error {
	var errs error

	if cfg.LiveToken == "" {
		errs = errors.Join(errs, fmt.Errorf("live token cannot be an empty string"))
	}
	if cfg.SandboxToken == "" {
		errs = errors.Join(errs, fmt.Errorf("sandbox token cannot be an empty string"))
	}
	if cfg.LiveBaseURL == "" {
		errs = errors.Join(errs, fmt.Errorf("live base url cannot be an empty string"))
	}
	if cfg.SandboxBaseURL == "" {
		errs = errors.Join(errs, fmt.Errorf("sandbox base url cannot be an empty string"))
	}

	return errs
}

// TradierClient represents the tradier brokerage api client.
type TradierClient struct {
	cfg   *TradierConfig
	httpc http.Client
}

// Ensure the tradier client implements the fetcher interfaces used by the
// polling loops.
var _ shared.QuoteFetcher = (*TradierClient)(nil)
var _ shared.PositionFetcher = (*TradierClient)(nil)
var _ shared.OptionChainFetcher = (*TradierClient)(nil)

// NewTradierClient instantiates a new tradier client.
func NewTradierClient(cfg *TradierConfig) (*TradierClient, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating tradier config: %w", err)
	}

	return &TradierClient{
		cfg:   cfg,
		httpc: http.Client{Timeout: requestTimeout},
	}, nil
}

// get executes an authenticated request against the provided url and returns
// the response body.
func (c *TradierClient) get(ctx context.Context, token string, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, shared.NewStatusError(resp.StatusCode, fullURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return body, nil
}

// floatField extracts an optional finite float field from the provided json
// result. Missing, null and non-finite values are nil.
func floatField(result gjson.Result, key string) *float64 {
	field := result.Get(key)
	if !field.Exists() || field.Type == gjson.Null {
		return nil
	}

	f := field.Float()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}

	return &f
}

// objectOrArray normalizes the brokerage api's habit of collapsing single
// element arrays into bare objects.
func objectOrArray(result gjson.Result) []gjson.Result {
	if !result.Exists() || result.Type == gjson.Null {
		return nil
	}
	if result.IsArray() {
		return result.Array()
	}

	return []gjson.Result{result}
}

// ParsePositions parses raw positions from the provided json payload.
func (c *TradierClient) ParsePositions(body []byte, accountID string) []shared.RawPosition {
	data := objectOrArray(gjson.GetBytes(body, "positions.position"))
	positions := make([]shared.RawPosition, 0, len(data))

	for idx := range data {
		underlying := data[idx].Get("instrument.underlying").String()
		if underlying == "" {
			underlying = data[idx].Get("instrument.symbol").String()
		}

		positions = append(positions, shared.RawPosition{
			AccountID:  accountID,
			Symbol:     strings.ToUpper(data[idx].Get("symbol").String()),
			Quantity:   int(data[idx].Get("quantity").Int()),
			CostBasis:  data[idx].Get("cost_basis").Float(),
			AssetType:  strings.ToLower(data[idx].Get("instrument.asset_type").String()),
			Underlying: strings.ToUpper(strings.TrimSpace(underlying)),
		})
	}

	return positions
}

// FetchPositions fetches all open positions for the provided sandbox account.
func (c *TradierClient) FetchPositions(ctx context.Context, accountID string) ([]shared.RawPosition, error) {
	fullURL := fmt.Sprintf("%s/accounts/%s/positions", c.cfg.SandboxBaseURL, accountID)
	body, err := c.get(ctx, c.cfg.SandboxToken, fullURL)
	if err != nil {
		return nil, fmt.Errorf("fetching positions for account %s: %w", accountID, err)
	}

	return c.ParsePositions(body, accountID), nil
}

// ParseQuotes parses quotes from the provided json payload into the provided
// quote set, keyed by uppercased symbol.
func (c *TradierClient) ParseQuotes(body []byte, quotes map[string]shared.Quote) {
	data := objectOrArray(gjson.GetBytes(body, "quotes.quote"))

	for idx := range data {
		symbol := strings.ToUpper(data[idx].Get("symbol").String())
		if symbol == "" {
			continue
		}

		quotes[symbol] = shared.Quote{
			Symbol:    symbol,
			Last:      floatField(data[idx], "last"),
			Close:     floatField(data[idx], "close"),
			PrevClose: floatField(data[idx], "prevclose"),
			Bid:       floatField(data[idx], "bid"),
			Ask:       floatField(data[idx], "ask"),
		}
	}
}

// batchSymbols uppercases, deduplicates and sorts the provided symbols.
func batchSymbols(symbols []string) []string {
	set := make(map[string]struct{}, len(symbols))
	for _, symbol := range symbols {
		if symbol == "" {
			continue
		}
		set[strings.ToUpper(symbol)] = struct{}{}
	}

	unique := make([]string, 0, len(set))
	for symbol := range set {
		unique = append(unique, symbol)
	}
	sort.Strings(unique)

	return unique
}

// FetchQuotes fetches live quotes for the provided symbols, batching requests
// to the vendor imposed batch size. The returned set is keyed by uppercased
// symbol.
func (c *TradierClient) FetchQuotes(ctx context.Context, symbols []string) (map[string]shared.Quote, error) {
	quotes := make(map[string]shared.Quote)
	unique := batchSymbols(symbols)
	if len(unique) == 0 {
		return quotes, nil
	}

	for start := 0; start < len(unique); start += quoteBatchSize {
		end := start + quoteBatchSize
		if end > len(unique) {
			end = len(unique)
		}

		params := url.Values{}
		params.Add("symbols", strings.Join(unique[start:end], ","))
		fullURL := fmt.Sprintf("%s/markets/quotes?%s", c.cfg.LiveBaseURL, params.Encode())

		body, err := c.get(ctx, c.cfg.LiveToken, fullURL)
		if err != nil {
			return nil, fmt.Errorf("fetching quotes: %w", err)
		}

		c.ParseQuotes(body, quotes)
	}

	return quotes, nil
}

// FetchOptionExpirations fetches the listed option expiry dates for the
// provided underlying symbol, ordered soonest first.
func (c *TradierClient) FetchOptionExpirations(ctx context.Context, symbol string) ([]time.Time, error) {
	params := url.Values{}
	params.Add("symbol", strings.ToUpper(symbol))
	fullURL := fmt.Sprintf("%s/markets/options/expirations?%s", c.cfg.LiveBaseURL, params.Encode())

	body, err := c.get(ctx, c.cfg.LiveToken, fullURL)
	if err != nil {
		return nil, fmt.Errorf("fetching option expirations for %s: %w", symbol, err)
	}

	return parseExpirations(body)
}

// parseExpirations parses option expiry dates from the provided json payload,
// ordered soonest first.
func parseExpirations(body []byte) ([]time.Time, error) {
	data := objectOrArray(gjson.GetBytes(body, "expirations.date"))
	expirations := make([]time.Time, 0, len(data))
	for idx := range data {
		expiry, err := time.Parse(expiryLayout, data[idx].String())
		if err != nil {
			return nil, fmt.Errorf("parsing option expiry %q: %w", data[idx].String(), err)
		}
		expirations = append(expirations, expiry)
	}

	sort.Slice(expirations, func(i, j int) bool {
		return expirations[i].Before(expirations[j])
	})

	return expirations, nil
}

// FetchOptionStrikes fetches the listed strikes for the provided underlying
// symbol and expiry, ordered ascending.
func (c *TradierClient) FetchOptionStrikes(ctx context.Context, symbol string, expiry time.Time) ([]float64, error) {
	params := url.Values{}
	params.Add("symbol", strings.ToUpper(symbol))
	params.Add("expiration", expiry.Format(expiryLayout))
	fullURL := fmt.Sprintf("%s/markets/options/strikes?%s", c.cfg.LiveBaseURL, params.Encode())

	body, err := c.get(ctx, c.cfg.LiveToken, fullURL)
	if err != nil {
		return nil, fmt.Errorf("fetching option strikes for %s: %w", symbol, err)
	}

	return parseStrikes(body), nil
}

// parseStrikes parses listed strikes from the provided json payload, ordered
// ascending.
func parseStrikes(body []byte) []float64 {
	data := objectOrArray(gjson.GetBytes(body, "strikes.strike"))
	strikes := make([]float64, 0, len(data))
	for idx := range data {
		strikes = append(strikes, data[idx].Float())
	}
	sort.Float64s(strikes)

	return strikes
}
