package database

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	rqlitehttp "github.com/rqlite/rqlite-go-http"
	"github.com/rs/zerolog"

	"github.com/mfriis/spotwatch/indicator"
	"github.com/mfriis/spotwatch/market"
	"github.com/mfriis/spotwatch/position"
	"github.com/mfriis/spotwatch/trade"
)

const (
	// SQL statements.
	createPositionsTableSQL = "CREATE TABLE IF NOT EXISTS positions (id TEXT PRIMARY KEY, symbol TEXT, asset_type TEXT, occ TEXT, quantity INTEGER, avg_cost REAL, mark REAL, prev_close REAL, contract_multiplier INTEGER, underlier_spot REAL, underlier TEXT, last_updated TEXT)"
	createSpotTableSQL      = "CREATE TABLE IF NOT EXISTS spot (symbol TEXT PRIMARY KEY, last_price REAL, updated_at TEXT)"
	createSpotTFTableSQL    = "CREATE TABLE IF NOT EXISTS spot_tf (symbol TEXT, timeframe TEXT, use_case TEXT, structure TEXT, swings TEXT, fvgs TEXT, liquidity TEXT, volume_profile TEXT, trend TEXT, updated_at TEXT, PRIMARY KEY (symbol, timeframe, use_case))"
	createNewTradesSQL      = "CREATE TABLE IF NOT EXISTS new_trades (id TEXT PRIMARY KEY, symbol TEXT, asset_type TEXT, trade_type TEXT, call_put TEXT, quantity INTEGER, entry_type TEXT, entry_cond TEXT, entry_level REAL, entry_tf TEXT, sl_type TEXT, sl_cond TEXT, sl_level REAL, sl_tf TEXT, tp_type TEXT, tp_level REAL, strike REAL, expiry TEXT, occ TEXT, manage TEXT, note TEXT, created_at TEXT)"
	createActiveTradesSQL   = "CREATE TABLE IF NOT EXISTS active_trades (id TEXT PRIMARY KEY, symbol TEXT, asset_type TEXT, status TEXT, quantity INTEGER, call_put TEXT, strike REAL, expiry TEXT, occ TEXT, entry_type TEXT, entry_cond TEXT, entry_level REAL, entry_tf TEXT, sl_type TEXT, sl_cond TEXT, sl_level REAL, sl_tf TEXT, tp_type TEXT, tp_level REAL, manage TEXT, note TEXT, trade_type TEXT, created_at TEXT, updated_at TEXT)"
	createTradeDefaultsSQL  = "CREATE TABLE IF NOT EXISTS trade_defaults (asset_type TEXT, trade_type TEXT, quantity INTEGER, sl_pct REAL, tp_pct REAL, strike_offset_pct REAL, expiry_weeks INTEGER, PRIMARY KEY (asset_type, trade_type))"

	upsertPositionSQL     = "INSERT INTO positions (id, symbol, asset_type, occ, quantity, avg_cost, mark, prev_close, contract_multiplier, underlier_spot, underlier, last_updated) VALUES (?,?,?,?,?,?,?,?,?,?,?,?) ON CONFLICT (id) DO UPDATE SET symbol = excluded.symbol, asset_type = excluded.asset_type, occ = excluded.occ, quantity = excluded.quantity, avg_cost = excluded.avg_cost, mark = excluded.mark, prev_close = excluded.prev_close, contract_multiplier = excluded.contract_multiplier, underlier_spot = excluded.underlier_spot, underlier = excluded.underlier, last_updated = excluded.last_updated"
	activePositionsSQL    = "SELECT id, symbol, asset_type, occ, quantity, avg_cost, mark, prev_close, contract_multiplier, underlier_spot, underlier FROM positions WHERE quantity != 0 AND id LIKE ?"
	updateQuoteFieldsSQL  = "UPDATE positions SET mark = ?, prev_close = ?, underlier_spot = ?, last_updated = ? WHERE id = ?"
	deleteAllPositionsSQL = "DELETE FROM positions WHERE id LIKE ?"

	spotSymbolsSQL     = "SELECT symbol FROM spot"
	updateSpotPriceSQL = "UPDATE spot SET last_price = ?, updated_at = ? WHERE symbol = ?"
	spotPriceSQL       = "SELECT last_price FROM spot WHERE symbol = ?"

	upsertSnapshotSQL = "INSERT INTO spot_tf (symbol, timeframe, use_case, structure, swings, fvgs, liquidity, volume_profile, trend, updated_at) VALUES (?,?,?,?,?,?,?,?,?,?) ON CONFLICT (symbol, timeframe, use_case) DO UPDATE SET structure = excluded.structure, swings = excluded.swings, fvgs = excluded.fvgs, liquidity = excluded.liquidity, volume_profile = excluded.volume_profile, trend = excluded.trend, updated_at = excluded.updated_at"

	pendingTradesSQL     = "SELECT id, symbol, asset_type, trade_type, call_put, quantity, entry_type, entry_cond, entry_level, entry_tf, sl_type, sl_cond, sl_level, sl_tf, tp_type, tp_level, strike, expiry, occ, manage, note FROM new_trades ORDER BY created_at"
	tradeDefaultsSQL     = "SELECT quantity, sl_pct, tp_pct, strike_offset_pct, expiry_weeks FROM trade_defaults WHERE asset_type = ? AND trade_type = ?"
	insertActiveTradeSQL = "INSERT INTO active_trades (id, symbol, asset_type, status, quantity, call_put, strike, expiry, occ, entry_type, entry_cond, entry_level, entry_tf, sl_type, sl_cond, sl_level, sl_tf, tp_type, tp_level, manage, note, trade_type, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)"
	deleteNewTradeSQL    = "DELETE FROM new_trades WHERE id = ?"
)

// requestTimeout bounds individual database requests.
const requestTimeout = time.Second * 5

// DatabaseConfig is the configuration for the database.
type DatabaseConfig struct {
	// Endpoint represents the database connection endpoint.
	Endpoint string
	// User is the database user.
	User string
	// Pass is the database user pass.
	Pass string
	// Logger is the database logger.
	Logger *zerolog.Logger
}

// Database represents the database connection.
type Database struct {
	cfg    *DatabaseConfig
	client *rqlitehttp.Client
}

// Ensure the database implements the manager store interfaces.
var _ position.Store = (*Database)(nil)
var _ market.Store = (*Database)(nil)
var _ trade.Store = (*Database)(nil)

// NewDatabase initializes a new database connection.
func NewDatabase(ctx context.Context, cfg *DatabaseConfig) (*Database, error) {
	httpc := &http.Client{Timeout: requestTimeout}
	client, err := rqlitehttp.NewClient(cfg.Endpoint, httpc)
	if err != nil {
		return nil, fmt.Errorf("creating database client: %w", err)
	}

	client.SetBasicAuth(cfg.User, cfg.Pass)

	db := &Database{
		cfg:    cfg,
		client: client,
	}

	err = db.bootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrapping database: %w", err)
	}

	return db, nil
}

// bootstrap initializes the database schema.
func (db *Database) bootstrap(ctx context.Context) error {
	_, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{SQL: createPositionsTableSQL},
		{SQL: createSpotTableSQL},
		{SQL: createSpotTFTableSQL},
		{SQL: createNewTradesSQL},
		{SQL: createActiveTradesSQL},
		{SQL: createTradeDefaultsSQL},
	}, &rqlitehttp.ExecuteOptions{
		Transaction: true,
		Timings:     true,
	})
	if err != nil {
		return err
	}

	return nil
}

// sanitizeParam normalizes a statement parameter at the storage boundary:
// non-finite floats become nulls and times become RFC 3339 strings.
func sanitizeParam(param any) any {
	switch v := param.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return v
	case *float64:
		if v == nil {
			return nil
		}
		return sanitizeParam(*v)
	case *int:
		if v == nil {
			return nil
		}
		return *v
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return param
	}
}

// exec runs a single write statement with sanitized parameters.
func (db *Database) exec(ctx context.Context, sql string, params ...any) error {
	sanitized := make([]any, len(params))
	for idx := range params {
		sanitized[idx] = sanitizeParam(params[idx])
	}

	resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{
			SQL:              sql,
			PositionalParams: sanitized,
		},
	}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
	if err != nil {
		return err
	}

	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("executing statement: %d -> %s", idx, errStr)
	}

	return nil
}

// queryRows runs a single read statement and returns its associated rows.
func (db *Database) queryRows(ctx context.Context, sql string, params ...any) ([]map[string]any, error) {
	sanitized := make([]any, len(params))
	for idx := range params {
		sanitized[idx] = sanitizeParam(params[idx])
	}

	resp, err := db.client.QuerySingle(ctx, sql, sanitized...)
	if err != nil {
		return nil, err
	}

	rows := []map[string]any{}
	for _, result := range resp.GetQueryResultsAssoc() {
		rows = append(rows, result.Rows...)
	}

	return rows, nil
}

// asString decodes a row value as a string.
func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asInt decodes a row value as an int, defaulting to zero.
func asInt(v any) int {
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case int64:
		return int(val)
	default:
		return 0
	}
}

// asIntPtr decodes a row value as an optional int.
func asIntPtr(v any) *int {
	if v == nil {
		return nil
	}

	val := asInt(v)
	return &val
}

// asFloatPtr decodes a row value as an optional float.
func asFloatPtr(v any) *float64 {
	switch val := v.(type) {
	case float64:
		return &val
	case int:
		f := float64(val)
		return &f
	case int64:
		f := float64(val)
		return &f
	default:
		return nil
	}
}

// UpsertPosition stores the provided position row, replacing any previous row
// with the same identity.
func (db *Database) UpsertPosition(ctx context.Context, row *position.Row) error {
	return db.exec(ctx, upsertPositionSQL, row.ID, row.Symbol, row.AssetType, row.OCC,
		row.Quantity, row.AvgCost, row.Mark, row.PrevClose, row.ContractMultiplier,
		row.UnderlierSpot, row.Underlier, row.LastUpdated)
}

// DeleteMissingPositions deletes rows carrying the provided identity prefix
// that are absent from the current identity set.
func (db *Database) DeleteMissingPositions(ctx context.Context, prefix string, currentIDs []string) error {
	if len(currentIDs) == 0 {
		return db.exec(ctx, deleteAllPositionsSQL, prefix+"%")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(currentIDs)), ",")
	sql := fmt.Sprintf("DELETE FROM positions WHERE id LIKE ? AND id NOT IN (%s)", placeholders)

	params := make([]any, 0, len(currentIDs)+1)
	params = append(params, prefix+"%")
	for _, id := range currentIDs {
		params = append(params, id)
	}

	return db.exec(ctx, sql, params...)
}

// providerPattern is the LIKE pattern matching rows owned by this provider's
// identity prefix.
var providerPattern = position.IDPrefix + "%"

// ActivePositions fetches all non-flat position rows owned by this provider.
func (db *Database) ActivePositions(ctx context.Context) ([]position.Row, error) {
	rows, err := db.queryRows(ctx, activePositionsSQL, providerPattern)
	if err != nil {
		return nil, err
	}

	positions := make([]position.Row, 0, len(rows))
	for _, row := range rows {
		positions = append(positions, position.Row{
			ID:                 asString(row["id"]),
			Symbol:             asString(row["symbol"]),
			AssetType:          asString(row["asset_type"]),
			OCC:                asString(row["occ"]),
			Quantity:           asInt(row["quantity"]),
			AvgCost:            asFloatPtr(row["avg_cost"]),
			Mark:               asFloatPtr(row["mark"]),
			PrevClose:          asFloatPtr(row["prev_close"]),
			ContractMultiplier: asInt(row["contract_multiplier"]),
			UnderlierSpot:      asFloatPtr(row["underlier_spot"]),
			Underlier:          asString(row["underlier"]),
		})
	}

	return positions, nil
}

// UpdateQuoteFields updates the quote derived fields of the row with the
// provided identity.
func (db *Database) UpdateQuoteFields(ctx context.Context, id string, mark *float64, prevClose *float64, underlierSpot *float64) error {
	return db.exec(ctx, updateQuoteFieldsSQL, mark, prevClose, underlierSpot,
		time.Now().UTC(), id)
}

// SpotSymbols returns all tracked spot symbols.
func (db *Database) SpotSymbols(ctx context.Context) ([]string, error) {
	rows, err := db.queryRows(ctx, spotSymbolsSQL)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(rows))
	for _, row := range rows {
		symbol := asString(row["symbol"])
		if symbol == "" {
			continue
		}
		symbols = append(symbols, symbol)
	}

	return symbols, nil
}

// UpdateSpotPrice persists the latest price for a tracked symbol.
func (db *Database) UpdateSpotPrice(ctx context.Context, symbol string, price float64, at time.Time) error {
	return db.exec(ctx, updateSpotPriceSQL, price, at, symbol)
}

// SpotPrice returns the stored spot price for the provided symbol, or nil
// when the symbol is not tracked or has no price yet.
func (db *Database) SpotPrice(ctx context.Context, symbol string) (*float64, error) {
	rows, err := db.queryRows(ctx, spotPriceSQL, symbol)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, nil
	}

	return asFloatPtr(rows[0]["last_price"]), nil
}

// UpsertSnapshot persists an indicator snapshot for a symbol, one JSON column
// per indicator section. Sections the computation could not produce store as
// empty objects.
func (db *Database) UpsertSnapshot(ctx context.Context, symbol string, snapshot *indicator.Snapshot, at time.Time) error {
	swings, err := encodeSection(snapshot.Swings)
	if err != nil {
		return fmt.Errorf("encoding swings for %s: %w", symbol, err)
	}
	fvgs, err := encodeSection(snapshot.Gaps)
	if err != nil {
		return fmt.Errorf("encoding gaps for %s: %w", symbol, err)
	}
	liquidity, err := encodeSection(snapshot.Liquidity)
	if err != nil {
		return fmt.Errorf("encoding liquidity for %s: %w", symbol, err)
	}
	profile, err := encodeSection(snapshot.VolumeProfile)
	if err != nil {
		return fmt.Errorf("encoding volume profile for %s: %w", symbol, err)
	}
	trend, err := encodeSection(snapshot.Trend)
	if err != nil {
		return fmt.Errorf("encoding trend for %s: %w", symbol, err)
	}

	return db.exec(ctx, upsertSnapshotSQL, symbol, snapshot.Timeframe, snapshot.UseCase,
		string(snapshot.StructureState), swings, fvgs, liquidity, profile, trend, at)
}

// encodeSection marshals an indicator section to its stored JSON text. Nil
// sections encode as an empty object rather than a JSON null so readers can
// treat every section as an object.
func encodeSection(section any) (string, error) {
	if isNilSection(section) {
		return "{}", nil
	}

	encoded, err := json.Marshal(section)
	if err != nil {
		return "", err
	}

	return string(encoded), nil
}

// isNilSection reports whether an indicator section is absent, covering the
// typed nil pointers and slices an interface can carry.
func isNilSection(section any) bool {
	switch v := section.(type) {
	case nil:
		return true
	case *indicator.VolumeProfile:
		return v == nil
	case *indicator.Trend:
		return v == nil
	default:
		return false
	}
}

// PendingTrades returns all trade requests awaiting import.
func (db *Database) PendingTrades(ctx context.Context) ([]trade.Request, error) {
	rows, err := db.queryRows(ctx, pendingTradesSQL)
	if err != nil {
		return nil, err
	}

	requests := make([]trade.Request, 0, len(rows))
	for _, row := range rows {
		requests = append(requests, trade.Request{
			ID:         asString(row["id"]),
			Symbol:     asString(row["symbol"]),
			AssetType:  asString(row["asset_type"]),
			TradeType:  asString(row["trade_type"]),
			CallPut:    asString(row["call_put"]),
			Quantity:   asIntPtr(row["quantity"]),
			EntryType:  asString(row["entry_type"]),
			EntryCond:  asString(row["entry_cond"]),
			EntryLevel: asFloatPtr(row["entry_level"]),
			EntryTF:    asString(row["entry_tf"]),
			SLType:     asString(row["sl_type"]),
			SLCond:     asString(row["sl_cond"]),
			SLLevel:    asFloatPtr(row["sl_level"]),
			SLTF:       asString(row["sl_tf"]),
			TPType:     asString(row["tp_type"]),
			TPLevel:    asFloatPtr(row["tp_level"]),
			Strike:     asFloatPtr(row["strike"]),
			Expiry:     asString(row["expiry"]),
			OCC:        asString(row["occ"]),
			Manage:     asString(row["manage"]),
			Note:       asString(row["note"]),
		})
	}

	return requests, nil
}

// TradeDefaults returns the configured defaults for the provided asset and
// trade type, or nil when none are configured.
func (db *Database) TradeDefaults(ctx context.Context, assetType string, tradeType string) (*trade.Defaults, error) {
	rows, err := db.queryRows(ctx, tradeDefaultsSQL, assetType, tradeType)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	defaults := &trade.Defaults{
		Quantity:    asInt(row["quantity"]),
		ExpiryWeeks: asInt(row["expiry_weeks"]),
	}
	if pct := asFloatPtr(row["sl_pct"]); pct != nil {
		defaults.SLPct = *pct
	}
	if pct := asFloatPtr(row["tp_pct"]); pct != nil {
		defaults.TPPct = *pct
	}
	if pct := asFloatPtr(row["strike_offset_pct"]); pct != nil {
		defaults.StrikeOffsetPct = *pct
	}

	return defaults, nil
}

// InsertActiveTrade persists a resolved trade.
func (db *Database) InsertActiveTrade(ctx context.Context, row *trade.ActiveTrade) error {
	return db.exec(ctx, insertActiveTradeSQL, row.ID, row.Symbol, row.AssetType,
		row.Status, row.Quantity, row.CallPut, row.Strike, row.Expiry, row.OCC,
		row.EntryType, row.EntryCond, row.EntryLevel, row.EntryTF, row.SLType,
		row.SLCond, row.SLLevel, row.SLTF, row.TPType, row.TPLevel, row.Manage,
		row.Note, row.TradeType, row.CreatedAt, row.UpdatedAt)
}

// DeleteTrade removes an imported trade request.
func (db *Database) DeleteTrade(ctx context.Context, id string) error {
	return db.exec(ctx, deleteNewTradeSQL, id)
}
