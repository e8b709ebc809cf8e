package market

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mfriis/spotwatch/indicator"
	"github.com/mfriis/spotwatch/shared"
)

func floatPtr(v float64) *float64 {
	return &v
}

type stubQuoter struct {
	quotes  map[string]shared.Quote
	fetched [][]string
	err     error
}

func (s *stubQuoter) FetchQuotes(_ context.Context, symbols []string) (map[string]shared.Quote, error) {
	s.fetched = append(s.fetched, symbols)
	if s.err != nil {
		return nil, s.err
	}
	return s.quotes, nil
}

type stubCandles struct {
	candles map[string][]shared.Candlestick
	err     error
	fetched []string
}

func (s *stubCandles) FetchCandles(_ context.Context, symbol string, _ shared.Timeframe,
	_ int) ([]shared.Candlestick, error) {
	s.fetched = append(s.fetched, symbol)
	if s.err != nil {
		return nil, s.err
	}
	return s.candles[symbol], nil
}

type storedPrice struct {
	symbol string
	price  float64
}

type storedSnapshot struct {
	symbol    string
	timeframe string
	useCase   string
}

type stubMarketStore struct {
	symbols   []string
	prices    []storedPrice
	snapshots []storedSnapshot
}

func (s *stubMarketStore) SpotSymbols(_ context.Context) ([]string, error) {
	return s.symbols, nil
}

func (s *stubMarketStore) UpdateSpotPrice(_ context.Context, symbol string, price float64,
	_ time.Time) error {
	s.prices = append(s.prices, storedPrice{symbol: symbol, price: price})
	return nil
}

func (s *stubMarketStore) UpsertSnapshot(_ context.Context, symbol string,
	snapshot *indicator.Snapshot, _ time.Time) error {
	s.snapshots = append(s.snapshots, storedSnapshot{
		symbol:    symbol,
		timeframe: snapshot.Timeframe,
		useCase:   snapshot.UseCase,
	})
	return nil
}

// trendCandles generates a plausible candle history long enough for
// indicator computation.
func trendCandles(n int) []shared.Candlestick {
	rng := rand.New(rand.NewSource(42))
	candles := make([]shared.Candlestick, n)
	price := 100.0
	start := time.Date(2025, 9, 1, 9, 30, 0, 0, time.UTC)
	for i := range candles {
		move := rng.Float64()*2 - 0.9
		open := price
		price += move
		low := open - rng.Float64()
		high := price + rng.Float64()
		if price < open {
			low = price - rng.Float64()
			high = open + rng.Float64()
		}
		candles[i] = shared.Candlestick{
			Open:   open,
			Low:    low,
			High:   high,
			Close:  price,
			Volume: 1000 + rng.Float64()*500,
			Date:   start.Add(time.Duration(i) * time.Minute * 5),
		}
	}
	return candles
}

func newTestMarketManager(t *testing.T, store *stubMarketStore, quoter *stubQuoter,
	candles *stubCandles) *Manager {
	t.Helper()

	logger := zerolog.Nop()

	mgr, err := NewManager(&ManagerConfig{
		Quotes:  quoter,
		Candles: candles,
		Store:   store,
		Logger:  &logger,
		Now: func() time.Time {
			return time.Date(2025, 9, 1, 14, 30, 0, 0, time.UTC)
		},
		RequestDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected manager error: %v", err)
	}

	return mgr
}

func TestMarketManagerConfigValidate(t *testing.T) {
	logger := zerolog.Nop()

	// Ensure an empty config is rejected.
	cfg := &ManagerConfig{}
	if err := cfg.Validate(); err == nil {
		t.Error("expected a config validation error")
	}

	// Ensure a complete config passes.
	cfg = &ManagerConfig{
		Quotes:  &stubQuoter{},
		Candles: &stubCandles{},
		Store:   &stubMarketStore{},
		Logger:  &logger,
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected config validation error: %v", err)
	}
}

func TestUpdateSpotPrices(t *testing.T) {
	store := &stubMarketStore{
		// Two rows quote through SPY, first wins.
		symbols: []string{"SPY", "O:SPY", "AMD"},
	}
	quoter := &stubQuoter{
		quotes: map[string]shared.Quote{
			"SPY": {Symbol: "SPY", Last: floatPtr(512.5)},
			"AMD": {Symbol: "AMD", Bid: floatPtr(163), Ask: floatPtr(164)},
		},
	}
	mgr := newTestMarketManager(t, store, quoter, &stubCandles{})

	if err := mgr.UpdateSpotPrices(context.Background()); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}

	// Ensure the duplicate row collapsed into a single quote fetch.
	if len(quoter.fetched) != 1 || len(quoter.fetched[0]) != 2 {
		t.Fatalf("expected one fetch of 2 symbols, got %v", quoter.fetched)
	}

	if len(store.prices) != 2 {
		t.Fatalf("expected 2 price updates, got %d", len(store.prices))
	}

	got := make(map[string]float64)
	for _, update := range store.prices {
		got[update.symbol] = update.price
	}

	// Ensure the last trade wins for SPY and the mid prices AMD.
	if got["SPY"] != 512.5 {
		t.Errorf("expected SPY price 512.5, got %v", got["SPY"])
	}
	if got["AMD"] != 163.5 {
		t.Errorf("expected AMD price 163.5, got %v", got["AMD"])
	}
}

func TestUpdateSpotPricesSkipsUnquoted(t *testing.T) {
	store := &stubMarketStore{symbols: []string{"SPY", "XYZ"}}
	quoter := &stubQuoter{
		quotes: map[string]shared.Quote{
			"SPY": {Symbol: "SPY", Last: floatPtr(512.5)},
			// XYZ returned without any usable price.
		},
	}
	mgr := newTestMarketManager(t, store, quoter, &stubCandles{})

	if err := mgr.UpdateSpotPrices(context.Background()); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}

	// Ensure only the quoted symbol was written.
	if len(store.prices) != 1 || store.prices[0].symbol != "SPY" {
		t.Errorf("expected only SPY updated, got %v", store.prices)
	}
}

func TestComputeIndicatorsRotation(t *testing.T) {
	store := &stubMarketStore{symbols: []string{"SPY"}}
	candles := &stubCandles{
		candles: map[string][]shared.Candlestick{"SPY": trendCandles(120)},
	}
	mgr := newTestMarketManager(t, store, &stubQuoter{}, candles)

	// Ensure four cycles sweep the full timeframe rotation.
	wantTimeframes := []string{"5m", "15m", "1h", "1d"}
	wantUseCases := []string{"scalp", "day", "day", "swing"}
	for i := 0; i < len(wantTimeframes); i++ {
		if err := mgr.ComputeIndicators(context.Background()); err != nil {
			t.Fatalf("unexpected indicator error: %v", err)
		}
	}

	if len(store.snapshots) != 4 {
		t.Fatalf("expected 4 snapshots, got %d", len(store.snapshots))
	}
	for i, snap := range store.snapshots {
		if snap.timeframe != wantTimeframes[i] {
			t.Errorf("cycle %d: expected timeframe %q, got %q", i, wantTimeframes[i],
				snap.timeframe)
		}
		if snap.useCase != wantUseCases[i] {
			t.Errorf("cycle %d: expected use case %q, got %q", i, wantUseCases[i],
				snap.useCase)
		}
		if snap.symbol != "SPY" {
			t.Errorf("cycle %d: expected symbol SPY, got %q", i, snap.symbol)
		}
	}
}

func TestComputeIndicatorsSymbolBatching(t *testing.T) {
	store := &stubMarketStore{
		symbols: []string{"AMD", "MSFT", "NVDA", "SPY", "TSLA"},
	}
	history := map[string][]shared.Candlestick{}
	for _, symbol := range store.symbols {
		history[symbol] = trendCandles(60)
	}
	candles := &stubCandles{candles: history}
	mgr := newTestMarketManager(t, store, &stubQuoter{}, candles)

	// Ensure one cycle covers only the bounded batch.
	if err := mgr.ComputeIndicators(context.Background()); err != nil {
		t.Fatalf("unexpected indicator error: %v", err)
	}
	if len(store.snapshots) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(store.snapshots))
	}

	// Ensure the next cycle continues where the last stopped.
	if err := mgr.ComputeIndicators(context.Background()); err != nil {
		t.Fatalf("unexpected indicator error: %v", err)
	}
	if len(store.snapshots) != 6 {
		t.Fatalf("expected 6 snapshots, got %d", len(store.snapshots))
	}

	wantOrder := []string{"AMD", "MSFT", "NVDA", "SPY", "TSLA", "AMD"}
	for i, snap := range store.snapshots {
		if snap.symbol != wantOrder[i] {
			t.Errorf("snapshot %d: expected symbol %q, got %q", i, wantOrder[i],
				snap.symbol)
		}
	}
}

func TestComputeIndicatorsSkipsThinHistory(t *testing.T) {
	store := &stubMarketStore{symbols: []string{"SPY"}}
	candles := &stubCandles{
		candles: map[string][]shared.Candlestick{"SPY": trendCandles(10)},
	}
	mgr := newTestMarketManager(t, store, &stubQuoter{}, candles)

	if err := mgr.ComputeIndicators(context.Background()); err != nil {
		t.Fatalf("unexpected indicator error: %v", err)
	}

	// Ensure a thin history produces no snapshot.
	if len(store.snapshots) != 0 {
		t.Errorf("expected no snapshots, got %d", len(store.snapshots))
	}
}

func TestComputeIndicatorsRateLimitAborts(t *testing.T) {
	store := &stubMarketStore{symbols: []string{"AMD", "MSFT", "SPY"}}
	candles := &stubCandles{
		err: shared.NewStatusError(429, "https://vendor.example/chart"),
	}
	mgr := newTestMarketManager(t, store, &stubQuoter{}, candles)

	// Ensure a rate limited vendor aborts the cycle without surfacing an
	// error, leaving the remaining symbols untouched.
	if err := mgr.ComputeIndicators(context.Background()); err != nil {
		t.Fatalf("unexpected indicator error: %v", err)
	}
	if len(candles.fetched) != 1 {
		t.Errorf("expected 1 fetch before aborting, got %d", len(candles.fetched))
	}
	if len(store.snapshots) != 0 {
		t.Errorf("expected no snapshots, got %d", len(store.snapshots))
	}
}
