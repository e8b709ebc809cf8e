package market

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mfriis/spotwatch/indicator"
	"github.com/mfriis/spotwatch/shared"
)

const (
	// optionPrefix marks stored symbols that quote through their underlier.
	optionPrefix = "O:"

	// candleLimit is the maximum number of candles fetched per symbol and
	// timeframe.
	candleLimit = 500

	// minCandles is the minimum history required to compute indicators.
	minCandles = 30

	// maxSymbolsPerCycle caps the symbols processed in one indicator cycle.
	maxSymbolsPerCycle = 3

	// requestDelay paces consecutive candle fetches within a cycle.
	requestDelay = time.Second
)

// cycleTimeframes is the timeframe rotation for indicator cycles, advanced by
// one entry per cycle.
var cycleTimeframes = []shared.Timeframe{
	shared.FiveMinute,
	shared.FifteenMinute,
	shared.OneHour,
	shared.OneDay,
}

// Store defines the persistence requirements of the market manager.
type Store interface {
	// SpotSymbols returns all tracked spot symbols.
	SpotSymbols(ctx context.Context) ([]string, error)
	// UpdateSpotPrice persists the latest price for a tracked symbol.
	UpdateSpotPrice(ctx context.Context, symbol string, price float64, at time.Time) error
	// UpsertSnapshot persists an indicator snapshot for a symbol.
	UpsertSnapshot(ctx context.Context, symbol string, snapshot *indicator.Snapshot, at time.Time) error
}

// ManagerConfig represents the market manager configuration.
type ManagerConfig struct {
	// Quotes is the quote source for spot price updates.
	Quotes shared.QuoteFetcher
	// Candles is the candle source for indicator computation.
	Candles shared.CandleFetcher
	// Store is the market store.
	Store Store
	// Logger is the parent logger for the manager.
	Logger *zerolog.Logger
	// Now returns the current time.
	Now func() time.Time
	// RequestDelay paces consecutive candle fetches within a cycle.
	RequestDelay time.Duration
}

// Validate asserts the config sane values are set as expected.
func (cfg *ManagerConfig) Validate() error {
	var errs error

	if cfg.Quotes == nil {
		errs = errors.Join(errs, fmt.Errorf("quote fetcher cannot be nil"))
	}
	if cfg.Candles == nil {
		errs = errors.Join(errs, fmt.Errorf("candle fetcher cannot be nil"))
	}
	if cfg.Store == nil {
		errs = errors.Join(errs, fmt.Errorf("store cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Manager keeps tracked spot prices and their indicator snapshots current.
type Manager struct {
	cfg    *ManagerConfig
	logger zerolog.Logger

	timeframeCursor int
	symbolCursor    int
}

// NewManager initializes a new market manager.
func NewManager(cfg *ManagerConfig) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RequestDelay == 0 {
		cfg.RequestDelay = requestDelay
	}

	logger := cfg.Logger.With().Str("component", "market").Logger()

	return &Manager{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// quoteSymbol maps a stored symbol to the symbol quoted for it, stripping the
// option prefix so option rows quote through their underlier.
func quoteSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimPrefix(symbol, optionPrefix))
}

// UpdateSpotPrices refreshes the stored price for every tracked symbol from a
// single batched quote fetch. Stored symbols sharing a quote symbol are
// deduplicated first wins.
func (m *Manager) UpdateSpotPrices(ctx context.Context) error {
	symbols, err := m.cfg.Store.SpotSymbols(ctx)
	if err != nil {
		return fmt.Errorf("fetching spot symbols: %w", err)
	}

	if len(symbols) == 0 {
		return nil
	}

	// Map quote symbols back to the stored rows they price.
	stored := make(map[string]string, len(symbols))
	fetch := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		qs := quoteSymbol(symbol)
		if qs == "" {
			continue
		}
		if _, ok := stored[qs]; ok {
			continue
		}
		stored[qs] = symbol
		fetch = append(fetch, qs)
	}

	quotes, err := m.cfg.Quotes.FetchQuotes(ctx, fetch)
	if err != nil {
		return fmt.Errorf("fetching spot quotes: %w", err)
	}

	now := m.cfg.Now().UTC()
	updated := 0
	for qs, symbol := range stored {
		quote, ok := quotes[qs]
		if !ok {
			m.logger.Warn().Str("symbol", symbol).Msg("no quote for spot symbol")
			continue
		}

		price := quote.LastOrMid()
		if price == nil {
			m.logger.Warn().Str("symbol", symbol).Msg("quote has no usable price")
			continue
		}

		if err := m.cfg.Store.UpdateSpotPrice(ctx, symbol, *price, now); err != nil {
			m.logger.Error().Err(err).Str("symbol", symbol).
				Msg("updating spot price")
			continue
		}
		updated++
	}

	m.logger.Debug().Msgf("updated %d/%d spot price(s)", updated, len(stored))

	return nil
}

// ComputeIndicators computes and stores indicator snapshots for the next
// batch of tracked symbols. Each cycle covers one timeframe from the rotation
// and a bounded number of symbols, advancing both cursors so successive
// cycles sweep the full set. A rate limited vendor aborts the remainder of
// the cycle.
func (m *Manager) ComputeIndicators(ctx context.Context) error {
	symbols, err := m.cfg.Store.SpotSymbols(ctx)
	if err != nil {
		return fmt.Errorf("fetching spot symbols: %w", err)
	}

	// Indicators describe the underlier, so option rows collapse into their
	// quote symbol.
	seen := make(map[string]struct{})
	unique := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		qs := quoteSymbol(symbol)
		if qs == "" {
			continue
		}
		if _, ok := seen[qs]; ok {
			continue
		}
		seen[qs] = struct{}{}
		unique = append(unique, qs)
	}
	sort.Strings(unique)

	if len(unique) == 0 {
		return nil
	}

	timeframe := cycleTimeframes[m.timeframeCursor%len(cycleTimeframes)]
	m.timeframeCursor++

	batch := maxSymbolsPerCycle
	if batch > len(unique) {
		batch = len(unique)
	}

	for i := 0; i < batch; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.cfg.RequestDelay):
			}
		}

		symbol := unique[m.symbolCursor%len(unique)]
		m.symbolCursor++

		candles, err := m.cfg.Candles.FetchCandles(ctx, symbol, timeframe, candleLimit)
		if err != nil {
			if errors.Is(err, shared.ErrRateLimited) {
				m.logger.Warn().Str("timeframe", timeframe.String()).
					Msg("vendor rate limited, aborting indicator cycle")
				return nil
			}

			m.logger.Error().Err(err).Str("symbol", symbol).
				Str("timeframe", timeframe.String()).Msg("fetching candles")
			continue
		}

		if len(candles) < minCandles {
			m.logger.Debug().Str("symbol", symbol).
				Str("timeframe", timeframe.String()).
				Msgf("only %d candle(s), skipping", len(candles))
			continue
		}

		snapshot := indicator.ComputeSnapshot(candles, timeframe,
			timeframe.UseCase(), indicator.DefaultFractal)

		now := m.cfg.Now().UTC()
		if err := m.cfg.Store.UpsertSnapshot(ctx, symbol, snapshot, now); err != nil {
			m.logger.Error().Err(err).Str("symbol", symbol).
				Str("timeframe", timeframe.String()).Msg("storing snapshot")
			continue
		}
	}

	return nil
}
