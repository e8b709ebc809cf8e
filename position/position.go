package position

import (
	"strings"
	"time"

	"github.com/mfriis/spotwatch/shared"
)

const (
	// IDPrefix scopes brokerage position identities so reconciliation never
	// touches rows owned by other providers.
	IDPrefix = "tradier:"

	// optionSymbolLengthHint is the symbol length beyond which a position is
	// assumed to be an option when the broker omits an asset type. OCC
	// symbols encode root, expiry, side and strike and comfortably exceed it.
	optionSymbolLengthHint = 15

	// optionContractMultiplier is the share multiplier for option contracts.
	optionContractMultiplier = 100
)

// Asset types for normalized positions.
const (
	Equity = "equity"
	Option = "option"
)

// Row represents a normalized position row keyed by its stable identity.
type Row struct {
	ID                 string
	Symbol             string
	AssetType          string
	OCC                string
	Quantity           int
	AvgCost            *float64
	Mark               *float64
	PrevClose          *float64
	ContractMultiplier int
	UnderlierSpot      *float64
	Underlier          string
	LastUpdated        time.Time
}

// BuildID derives the stable identity key for a brokerage position from its
// account and symbol.
func BuildID(accountID string, symbol string) string {
	return IDPrefix + accountID + ":" + strings.ToUpper(symbol)
}

// Normalize classifies the provided raw position and derives its normalized
// row. Returns false when the position has no symbol.
func Normalize(raw *shared.RawPosition) (*Row, bool) {
	symbol := strings.ToUpper(strings.TrimSpace(raw.Symbol))
	if symbol == "" {
		return nil, false
	}

	isOption := raw.AssetType == Option || len(symbol) > optionSymbolLengthHint

	row := &Row{
		ID:                 BuildID(raw.AccountID, symbol),
		Symbol:             symbol,
		AssetType:          Equity,
		Quantity:           raw.Quantity,
		ContractMultiplier: 1,
	}

	if isOption {
		row.AssetType = Option
		row.OCC = symbol
		row.ContractMultiplier = optionContractMultiplier
		row.Underlier = strings.ToUpper(strings.TrimSpace(raw.Underlying))
	}

	// Average cost is undefined for a flat position, never derived by a zero
	// division.
	if raw.Quantity != 0 {
		avgCost := raw.CostBasis / float64(raw.Quantity)
		row.AvgCost = &avgCost
	}

	return row, true
}

// QuoteSymbols returns the symbols whose quotes the provided row needs: its
// own symbol, plus the underlier for options.
func (r *Row) QuoteSymbols() []string {
	symbols := []string{r.Symbol}
	if r.AssetType == Option && r.Underlier != "" {
		symbols = append(symbols, r.Underlier)
	}

	return symbols
}

// ApplyQuotes fills the row's mark, previous close and underlier spot from
// the provided quote set. Equities mark the underlier spot at their own mark.
func (r *Row) ApplyQuotes(quotes map[string]shared.Quote) {
	if quote, ok := quotes[r.Symbol]; ok {
		r.Mark = quote.Mark()
		r.PrevClose = quote.PrevClose
	}

	switch r.AssetType {
	case Option:
		if r.Underlier != "" {
			if quote, ok := quotes[r.Underlier]; ok {
				r.UnderlierSpot = quote.Mark()
			}
		}
	default:
		r.UnderlierSpot = r.Mark
	}
}
