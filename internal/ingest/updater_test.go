package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"NgxQuant/internal/domain/models"
	"NgxQuant/pkg/logger"
)

type fakeSource struct {
	tickers []models.Ticker
	bars    map[string][]models.DailyBar
	fail    map[string]bool
}

func (s *fakeSource) FetchTickers(context.Context) ([]models.Ticker, error) {
	return s.tickers, nil
}

func (s *fakeSource) FetchRecentBars(_ context.Context, symbol string) ([]models.DailyBar, error) {
	if s.fail[symbol] {
		return nil, fmt.Errorf("upstream 503 for %s", symbol)
	}
	return s.bars[symbol], nil
}

type recordingStore struct {
	tickers []models.Ticker
	bars    map[string]int
	fx      map[string]int
}

func newRecordingStore() *recordingStore {
	return &recordingStore{bars: map[string]int{}, fx: map[string]int{}}
}

func (s *recordingStore) Init(context.Context) error { return nil }

func (s *recordingStore) UpsertTickers(_ context.Context, t []models.Ticker) (int, error) {
	s.tickers = append(s.tickers, t...)
	return len(t), nil
}

func (s *recordingStore) UpsertBars(_ context.Context, bars []models.DailyBar) (int, error) {
	for _, b := range bars {
		s.bars[b.Symbol]++
	}
	return len(bars), nil
}

func (s *recordingStore) UpsertFxRates(_ context.Context, rates []models.DailyBar) (int, error) {
	for _, r := range rates {
		s.fx[r.Symbol]++
	}
	return len(rates), nil
}

func (s *recordingStore) GetBars(context.Context, string, time.Time, time.Time) ([]models.DailyBar, error) {
	return nil, nil
}

func (s *recordingStore) GetFxRates(context.Context, string, time.Time, time.Time) ([]models.DailyBar, error) {
	return nil, nil
}

func (s *recordingStore) ListSymbols(context.Context) ([]string, error) { return nil, nil }
func (s *recordingStore) Stats(context.Context) (*models.StoreStats, error) {
	return &models.StoreStats{}, nil
}
func (s *recordingStore) Health(context.Context) error { return nil }
func (s *recordingStore) Close() error                 { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordBarsUpserted(string, int) {}
func (nopMetrics) RecordError(string)             {}
func (nopMetrics) RecordFitDuration(float64)      {}
func (nopMetrics) RecordIllConditioned(string)    {}
func (nopMetrics) RecordBacktestDuration(float64) {}
func (nopMetrics) RecordLatency(string, float64)  {}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func bar(symbol string, day int) models.DailyBar {
	return models.DailyBar{
		Symbol: symbol,
		Date:   models.Day(2024, time.June, day),
		Close:  100,
	}
}

func TestUpdaterSweep(t *testing.T) {
	source := &fakeSource{
		tickers: []models.Ticker{
			{Symbol: "GTCO", Name: "Guaranty Trust"},
			{Symbol: "MTNN", Name: "MTN Nigeria"},
		},
		bars: map[string][]models.DailyBar{
			"GTCO":   {bar("GTCO", 10), bar("GTCO", 11)},
			"MTNN":   {bar("MTNN", 10)},
			"NGXASI": {bar("NGXASI", 10)},
			"USDNGN": {bar("USDNGN", 10)},
		},
	}
	store := newRecordingStore()
	updater := NewUpdater(source, store, store, nopMetrics{}, testLogger(t), "NGXASI", "USDNGN")

	stats, err := updater.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Tickers != 2 {
		t.Fatalf("tickers = %d, want 2", stats.Tickers)
	}
	if stats.Bars != 5 {
		t.Fatalf("bars = %d, want 5", stats.Bars)
	}
	if store.bars["NGXASI"] != 1 {
		t.Fatalf("market index not refreshed: %v", store.bars)
	}
	if store.fx["USDNGN"] != 1 {
		t.Fatalf("fx pair went to the wrong table: bars=%v fx=%v", store.bars, store.fx)
	}
}

func TestUpdaterIsolatesSymbolFailures(t *testing.T) {
	source := &fakeSource{
		tickers: []models.Ticker{{Symbol: "GTCO"}, {Symbol: "DEAD"}},
		bars: map[string][]models.DailyBar{
			"GTCO":   {bar("GTCO", 10)},
			"NGXASI": {bar("NGXASI", 10)},
			"USDNGN": {bar("USDNGN", 10)},
		},
		fail: map[string]bool{"DEAD": true},
	}
	store := newRecordingStore()
	updater := NewUpdater(source, store, store, nopMetrics{}, testLogger(t), "NGXASI", "USDNGN")

	stats, err := updater.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Failures != 1 {
		t.Fatalf("failures = %d, want 1", stats.Failures)
	}
	if store.bars["GTCO"] != 1 {
		t.Fatalf("healthy symbol skipped: %v", store.bars)
	}
}
