package fetch

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mfriis/spotwatch/shared"
	"github.com/peterldowns/testy/assert"
)

func newTestTradierClient(t *testing.T) *TradierClient {
	t.Helper()

	client, err := NewTradierClient(&TradierConfig{
		LiveToken:      "live-token",
		SandboxToken:   "sandbox-token",
		LiveBaseURL:    "http://live",
		SandboxBaseURL: "http://sandbox",
	})
	assert.NoError(t, err)

	return client
}

func TestTradierConfigValidate(t *testing.T) {
	// Ensure an incomplete config fails validation.
	_, err := NewTradierClient(&TradierConfig{LiveToken: "live-token"})
	assert.Error(t, err)
}

func TestParsePositions(t *testing.T) {
	client := newTestTradierClient(t)

	// Ensure a collapsed single element payload parses as one position.
	body := `{"positions":{"position":{"symbol":"spy","quantity":4,"cost_basis":1200.5,
		"instrument":{"asset_type":"Equity","symbol":"SPY"}}}}`
	positions := client.ParsePositions([]byte(body), "acct-1")
	assert.Equal(t, len(positions), 1)
	assert.Equal(t, positions[0].AccountID, "acct-1")
	assert.Equal(t, positions[0].Symbol, "SPY")
	assert.Equal(t, positions[0].Quantity, 4)
	assert.Equal(t, positions[0].CostBasis, 1200.5)
	assert.Equal(t, positions[0].AssetType, "equity")
	assert.Equal(t, positions[0].Underlying, "SPY")

	// Ensure array payloads parse all entries and the underlying falls back
	// to the instrument symbol when no underlying field is present.
	body = `{"positions":{"position":[
		{"symbol":"AMD250919C00160000","quantity":2,"cost_basis":640,
			"instrument":{"asset_type":"option","underlying":"amd"}},
		{"symbol":"TSLA","quantity":-1,"cost_basis":-250}
	]}}`
	positions = client.ParsePositions([]byte(body), "acct-2")
	assert.Equal(t, len(positions), 2)
	assert.Equal(t, positions[0].Symbol, "AMD250919C00160000")
	assert.Equal(t, positions[0].AssetType, "option")
	assert.Equal(t, positions[0].Underlying, "AMD")
	assert.Equal(t, positions[1].Quantity, -1)
	assert.Equal(t, positions[1].AssetType, "")

	// Ensure a null position set parses as empty.
	positions = client.ParsePositions([]byte(`{"positions":"null"}`), "acct-3")
	assert.Equal(t, len(positions), 0)
}

func TestParseQuotes(t *testing.T) {
	client := newTestTradierClient(t)

	// Ensure quote payloads parse with null fields mapped to nil.
	body := `{"quotes":{"quote":[
		{"symbol":"SPY","last":512.5,"close":510,"prevclose":508.25,"bid":512.4,"ask":512.6},
		{"symbol":"AMD","last":null,"close":164,"prevclose":null,"bid":163.9,"ask":164.1}
	]}}`
	quotes := make(map[string]shared.Quote)
	client.ParseQuotes([]byte(body), quotes)
	assert.Equal(t, len(quotes), 2)

	spy := quotes["SPY"]
	assert.Equal(t, *spy.Last, 512.5)
	assert.Equal(t, *spy.PrevClose, 508.25)
	assert.Equal(t, *spy.Mark(), 512.5)

	amd := quotes["AMD"]
	assert.Equal(t, amd.Last, nil)
	assert.Equal(t, amd.PrevClose, nil)
	// The mark falls back to close when no last traded price is available.
	assert.Equal(t, *amd.Mark(), float64(164))

	// Ensure a quote without prices still resolves a mid price fallback.
	body = `{"quotes":{"quote":{"symbol":"XYZ","last":null,"close":null,"bid":10,"ask":11}}}`
	client.ParseQuotes([]byte(body), quotes)
	xyz := quotes["XYZ"]
	assert.Equal(t, xyz.Mark(), nil)
	assert.Equal(t, *xyz.LastOrMid(), 10.5)
}

func TestBatchSymbols(t *testing.T) {
	// Ensure symbols are uppercased, deduplicated and sorted.
	batched := batchSymbols([]string{"spy", "SPY", "amd", "", "TSLA", "amd"})
	want := []string{"AMD", "SPY", "TSLA"}
	if !cmp.Equal(want, batched) {
		t.Errorf("mismatching symbols: %v", cmp.Diff(want, batched))
	}
}

func TestParseExpirations(t *testing.T) {
	// Ensure expiry payload dates parse and sort soonest first.
	body := `{"expirations":{"date":["2025-10-17","2025-09-19","2025-09-26"]}}`
	expirations, err := parseExpirations([]byte(body))
	assert.NoError(t, err)
	assert.Equal(t, len(expirations), 3)
	assert.Equal(t, expirations[0], time.Date(2025, 9, 19, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, expirations[2], time.Date(2025, 10, 17, 0, 0, 0, 0, time.UTC))

	// Ensure malformed dates fail to parse.
	_, err = parseExpirations([]byte(`{"expirations":{"date":["19-09-2025"]}}`))
	assert.Error(t, err)
}

func TestParseStrikes(t *testing.T) {
	// Ensure strikes parse and sort ascending.
	body := `{"strikes":{"strike":[165,155,160]}}`
	strikes := parseStrikes([]byte(body))
	want := []float64{155, 160, 165}
	if !cmp.Equal(want, strikes) {
		t.Errorf("mismatching strikes: %v", cmp.Diff(want, strikes))
	}
}
