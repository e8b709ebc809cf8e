package trade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mfriis/spotwatch/shared"
)

const (
	// expiryLayout is the date format used for stored expiries.
	expiryLayout = "2006-01-02"

	// spotQuoteAttempts is the number of quote fetches tried when the
	// stored spot price is unavailable.
	spotQuoteAttempts = 3

	// spotQuoteDelay pauses between quote attempts.
	spotQuoteDelay = time.Second * 2
)

// Store defines the persistence requirements of the trade importer.
type Store interface {
	// PendingTrades returns all trade requests awaiting import.
	PendingTrades(ctx context.Context) ([]Request, error)
	// TradeDefaults returns the configured defaults for the provided asset
	// and trade type, or nil when none are configured.
	TradeDefaults(ctx context.Context, assetType string, tradeType string) (*Defaults, error)
	// SpotPrice returns the stored spot price for the provided symbol, or
	// nil when the symbol is not tracked.
	SpotPrice(ctx context.Context, symbol string) (*float64, error)
	// InsertActiveTrade persists a resolved trade.
	InsertActiveTrade(ctx context.Context, row *ActiveTrade) error
	// DeleteTrade removes an imported trade request.
	DeleteTrade(ctx context.Context, id string) error
}

// ManagerConfig represents the configuration for the trade import manager.
type ManagerConfig struct {
	// Quotes is the quote source used when no stored spot price exists.
	Quotes shared.QuoteFetcher
	// Chain is the option chain source used to snap strikes and expiries.
	Chain shared.OptionChainFetcher
	// Store is the trade store.
	Store Store
	// Logger is the parent logger for the manager.
	Logger *zerolog.Logger
	// Now returns the current time.
	Now func() time.Time
}

// Validate asserts the config sane values are set as expected.
func (cfg *ManagerConfig) Validate() error {
	var errs error

	if cfg.Quotes == nil {
		errs = errors.Join(errs, fmt.Errorf("quote fetcher cannot be nil"))
	}
	if cfg.Chain == nil {
		errs = errors.Join(errs, fmt.Errorf("option chain fetcher cannot be nil"))
	}
	if cfg.Store == nil {
		errs = errors.Join(errs, fmt.Errorf("store cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Manager imports pending trade requests into active trades.
type Manager struct {
	cfg    *ManagerConfig
	logger zerolog.Logger
}

// NewManager initializes a new trade import manager.
func NewManager(cfg *ManagerConfig) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	logger := cfg.Logger.With().Str("component", "trade").Logger()

	return &Manager{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Import resolves all pending trade requests into active trades. A request
// that cannot be resolved is left in place and retried on the next cycle.
func (m *Manager) Import(ctx context.Context) error {
	requests, err := m.cfg.Store.PendingTrades(ctx)
	if err != nil {
		return fmt.Errorf("fetching pending trades: %w", err)
	}

	if len(requests) == 0 {
		return nil
	}

	m.logger.Info().Msgf("importing %d pending trade(s)", len(requests))

	for idx := range requests {
		req := &requests[idx]

		if err := m.importTrade(ctx, req); err != nil {
			m.logger.Error().Err(err).Str("symbol", req.Symbol).
				Msg("skipping trade request")
			continue
		}

		if err := m.cfg.Store.DeleteTrade(ctx, req.ID); err != nil {
			m.logger.Error().Err(err).Str("symbol", req.Symbol).
				Msg("removing imported trade request")
		}
	}

	return nil
}

// importTrade resolves a single trade request and persists it.
func (m *Manager) importTrade(ctx context.Context, req *Request) error {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return fmt.Errorf("trade request has no symbol")
	}

	assetType := strings.ToLower(strings.TrimSpace(req.AssetType))
	if assetType != Equity && assetType != Option {
		return fmt.Errorf("unsupported asset type %q for %s", req.AssetType, symbol)
	}

	tradeType := ParseTradeType(req.TradeType)

	defaults, err := m.cfg.Store.TradeDefaults(ctx, assetType, tradeType)
	if err != nil {
		return fmt.Errorf("fetching trade defaults: %w", err)
	}
	if defaults == nil {
		return fmt.Errorf("no trade defaults configured for %s/%s", assetType, tradeType)
	}

	spot, err := m.resolveSpot(ctx, symbol)
	if err != nil {
		return err
	}

	callPut, side, sideOK := ParseSide(req.CallPut)
	if assetType == Option && !sideOK {
		return fmt.Errorf("option trade for %s has no call/put side", symbol)
	}

	quantity := DecideQuantity(req, defaults)
	if quantity <= 0 {
		return fmt.Errorf("resolved quantity %d for %s is not positive", quantity, symbol)
	}

	entryCond, slCond := DecideConditions(assetType, side, req.EntryCond,
		req.EntryLevel, req.EntryTF, req.SLCond, req.SLLevel)

	entryLevel := req.EntryLevel
	if entryCond == CondNow && entryLevel == nil {
		entryLevel = &spot
	}

	slLevel, tpLevel := ComputeStopTakeLevels(assetType, side, spot, defaults,
		req.SLLevel, req.TPLevel)

	entryType, slType, tpType := DecideOrderTypes(assetType, req.EntryType,
		req.SLType, req.TPType)
	slTF := DecideStopTimeframe(req.SLTF, req.EntryTF)

	now := m.cfg.Now().UTC()

	row := &ActiveTrade{
		ID:         uuid.New().String(),
		Symbol:     symbol,
		AssetType:  assetType,
		Status:     StatusWaiting,
		Quantity:   quantity,
		CallPut:    callPut,
		EntryType:  entryType,
		EntryCond:  entryCond,
		EntryLevel: entryLevel,
		EntryTF:    req.EntryTF,
		SLType:     slType,
		SLCond:     slCond,
		SLLevel:    slLevel,
		SLTF:       slTF,
		TPType:     tpType,
		TPLevel:    tpLevel,
		Manage:     "Y",
		Note:       req.Note,
		TradeType:  tradeType,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if assetType == Option {
		expiry, err := m.resolveExpiry(ctx, symbol, req.Expiry, defaults, now)
		if err != nil {
			return err
		}

		strike := m.resolveStrike(ctx, symbol, expiry, side, spot, req.Strike, defaults)

		occ := req.OCC
		if occ == "" {
			occ = BuildOCC(symbol, expiry, side, strike)
		}

		row.Strike = &strike
		row.Expiry = expiry.Format(expiryLayout)
		row.OCC = occ
	}

	if err := m.cfg.Store.InsertActiveTrade(ctx, row); err != nil {
		return fmt.Errorf("inserting active trade for %s: %w", symbol, err)
	}

	m.logger.Info().Str("symbol", symbol).Str("id", row.ID).
		Msg("imported trade request")

	return nil
}

// resolveSpot fetches the current underlying price, preferring the stored
// spot price and falling back to live quotes with retries.
func (m *Manager) resolveSpot(ctx context.Context, symbol string) (float64, error) {
	stored, err := m.cfg.Store.SpotPrice(ctx, symbol)
	if err != nil {
		m.logger.Warn().Err(err).Str("symbol", symbol).
			Msg("fetching stored spot price")
	}
	if stored != nil {
		return *stored, nil
	}

	for attempt := 0; attempt < spotQuoteAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(spotQuoteDelay):
			}
		}

		quotes, err := m.cfg.Quotes.FetchQuotes(ctx, []string{symbol})
		if err != nil {
			m.logger.Warn().Err(err).Str("symbol", symbol).
				Msg("fetching quote for spot price")
			continue
		}

		if quote, ok := quotes[symbol]; ok {
			if price := quote.LastOrMid(); price != nil {
				return *price, nil
			}
		}
	}

	return 0, fmt.Errorf("no spot price available for %s", symbol)
}

// resolveExpiry resolves the option expiry for a request. An explicit expiry
// on the request is used as provided. Otherwise the target date is the
// configured number of weeks out, snapped to the nearest listed expiration
// when the chain is available.
func (m *Manager) resolveExpiry(ctx context.Context, symbol string, raw string,
	defaults *Defaults, now time.Time) (time.Time, error) {
	if raw != "" {
		expiry, err := time.Parse(expiryLayout, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing expiry %q for %s: %w", raw, symbol, err)
		}

		return expiry, nil
	}

	target := now.AddDate(0, 0, defaults.ExpiryWeeks*7)

	expirations, err := m.cfg.Chain.FetchOptionExpirations(ctx, symbol)
	if err != nil {
		m.logger.Warn().Err(err).Str("symbol", symbol).
			Msg("fetching option expirations, using target date")
		return target, nil
	}

	if expiry, ok := NearestExpiry(target, expirations); ok {
		return expiry, nil
	}

	return target, nil
}

// resolveStrike resolves the option strike for a request. An explicit strike
// on the request is used as provided. Otherwise the target is offset from the
// spot price away from the money, snapped to the nearest listed strike when
// the chain is available and rounded to the nearest five dollars otherwise.
func (m *Manager) resolveStrike(ctx context.Context, symbol string, expiry time.Time,
	side Side, spot float64, raw *float64, defaults *Defaults) float64 {
	if raw != nil {
		return *raw
	}

	target := spot * (1 + defaults.StrikeOffsetPct)
	if side == Put {
		target = spot * (1 - defaults.StrikeOffsetPct)
	}

	strikes, err := m.cfg.Chain.FetchOptionStrikes(ctx, symbol, expiry)
	if err != nil {
		m.logger.Warn().Err(err).Str("symbol", symbol).
			Msg("fetching option strikes, rounding target")
		return RoundToIncrement(target, strikeIncrement)
	}

	if strike, ok := NearestStrike(target, strikes); ok {
		return strike
	}

	return RoundToIncrement(target, strikeIncrement)
}
