package position

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/mfriis/spotwatch/shared"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// Store defines the row store requirements of the position manager.
type Store interface {
	// UpsertPosition stores the provided position row, replacing any previous
	// row with the same identity.
	UpsertPosition(ctx context.Context, row *Row) error
	// DeleteMissingPositions deletes rows carrying the provided identity
	// prefix that are absent from the current identity set.
	DeleteMissingPositions(ctx context.Context, prefix string, currentIDs []string) error
	// ActivePositions fetches all non-flat rows carrying the provider's
	// identity prefix.
	ActivePositions(ctx context.Context) ([]Row, error)
	// UpdateQuoteFields updates the quote derived fields of the row with the
	// provided identity.
	UpdateQuoteFields(ctx context.Context, id string, mark *float64, prevClose *float64, underlierSpot *float64) error
}

// ManagerConfig represents the position manager configuration.
type ManagerConfig struct {
	// AccountIDs represents the sandbox brokerage accounts to sync.
	AccountIDs []string
	// Positions fetches raw brokerage positions.
	Positions shared.PositionFetcher
	// Quotes fetches live quotes.
	Quotes shared.QuoteFetcher
	// Store is the position row store.
	Store Store
	// Logger represents the position manager logger.
	Logger *zerolog.Logger
}

// Validate asserts the config has sane inputs.
func (cfg *ManagerConfig) Validate() error {
	var errs error

	if len(cfg.AccountIDs) == 0 {
		errs = errors.Join(errs, fmt.Errorf("no accounts provided for position manager"))
	}
	if cfg.Positions == nil {
		errs = errors.Join(errs, fmt.Errorf("position fetcher cannot be nil"))
	}
	if cfg.Quotes == nil {
		errs = errors.Join(errs, fmt.Errorf("quote fetcher cannot be nil"))
	}
	if cfg.Store == nil {
		errs = errors.Join(errs, fmt.Errorf("store cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Manager syncs brokerage positions into the row store and keeps their quote
// fields fresh.
type Manager struct {
	cfg          *ManagerConfig
	syncFailures atomic.Int64
}

// NewManager initializes a new position manager.
func NewManager(cfg *ManagerConfig) (*Manager, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating position manager config: %w", err)
	}

	return &Manager{cfg: cfg}, nil
}

// SyncPositions runs one positions sync cycle: fetch raw positions for all
// accounts, normalize and enrich them with live quotes, then apply the fully
// computed write set and reconcile stale rows. All writes are idempotent and
// keyed by stable identity, so a partially failed cycle is retry safe.
func (m *Manager) SyncPositions(ctx context.Context) error {
	raw := []shared.RawPosition{}
	for _, accountID := range m.cfg.AccountIDs {
		positions, err := m.cfg.Positions.FetchPositions(ctx, accountID)
		if err != nil {
			m.syncFailures.Inc()
			return fmt.Errorf("fetching positions for account %s: %w", accountID, err)
		}

		m.cfg.Logger.Info().Str("account", accountID).Int("count", len(positions)).
			Msg("fetched brokerage positions")
		raw = append(raw, positions...)
	}

	if len(raw) == 0 {
		m.syncFailures.Store(0)
		return nil
	}

	rows := make([]*Row, 0, len(raw))
	symbols := make([]string, 0, len(raw))
	for idx := range raw {
		row, ok := Normalize(&raw[idx])
		if !ok {
			m.cfg.Logger.Error().Msgf("skipping position with no symbol: %s", spew.Sdump(raw[idx]))
			continue
		}

		rows = append(rows, row)
		symbols = append(symbols, row.QuoteSymbols()...)
	}

	quotes, err := m.cfg.Quotes.FetchQuotes(ctx, symbols)
	if err != nil {
		m.syncFailures.Inc()
		return fmt.Errorf("fetching quotes for positions: %w", err)
	}

	// The write set is fully computed in memory before any store mutation.
	now := time.Now().UTC()
	currentIDs := make([]string, 0, len(rows))
	for idx := range rows {
		rows[idx].ApplyQuotes(quotes)
		rows[idx].LastUpdated = now
		currentIDs = append(currentIDs, rows[idx].ID)
	}

	for idx := range rows {
		err = m.cfg.Store.UpsertPosition(ctx, rows[idx])
		if err != nil {
			m.syncFailures.Inc()
			return fmt.Errorf("upserting position %s: %w", rows[idx].ID, err)
		}
	}

	err = m.cfg.Store.DeleteMissingPositions(ctx, IDPrefix, currentIDs)
	if err != nil {
		m.syncFailures.Inc()
		return fmt.Errorf("reconciling stale positions: %w", err)
	}

	m.syncFailures.Store(0)
	m.cfg.Logger.Info().Int("count", len(rows)).Msg("synced positions")

	return nil
}

// RefreshQuotes runs one quote refresh cycle: update the mark, previous close
// and underlier spot of every active stored position from live quotes.
func (m *Manager) RefreshQuotes(ctx context.Context) error {
	active, err := m.cfg.Store.ActivePositions(ctx)
	if err != nil {
		return fmt.Errorf("fetching active positions: %w", err)
	}

	if len(active) == 0 {
		return nil
	}

	symbols := make([]string, 0, len(active))
	for idx := range active {
		symbols = append(symbols, active[idx].QuoteSymbols()...)
	}

	quotes, err := m.cfg.Quotes.FetchQuotes(ctx, symbols)
	if err != nil {
		return fmt.Errorf("fetching quotes for refresh: %w", err)
	}

	for idx := range active {
		active[idx].ApplyQuotes(quotes)
		err = m.cfg.Store.UpdateQuoteFields(ctx, active[idx].ID, active[idx].Mark,
			active[idx].PrevClose, active[idx].UnderlierSpot)
		if err != nil {
			return fmt.Errorf("updating quote fields for %s: %w", active[idx].ID, err)
		}
	}

	m.cfg.Logger.Info().Int("count", len(active)).Msg("refreshed position quotes")

	return nil
}

// ConsecutiveSyncFailures reports how many sync cycles have failed in a row.
func (m *Manager) ConsecutiveSyncFailures() int64 {
	return m.syncFailures.Load()
}
