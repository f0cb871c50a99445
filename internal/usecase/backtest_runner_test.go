package usecase

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"NgxQuant/internal/analytics/returns"
	"NgxQuant/internal/domain/models"
	"NgxQuant/pkg/logger"
)

type fakeStore struct {
	bars map[string][]models.DailyBar
	fx   map[string][]models.DailyBar
}

func (s *fakeStore) Init(context.Context) error { return nil }

func (s *fakeStore) UpsertTickers(_ context.Context, t []models.Ticker) (int, error) {
	return len(t), nil
}

func (s *fakeStore) UpsertBars(_ context.Context, bars []models.DailyBar) (int, error) {
	for _, b := range bars {
		s.bars[b.Symbol] = append(s.bars[b.Symbol], b)
	}
	return len(bars), nil
}

func (s *fakeStore) UpsertFxRates(_ context.Context, rates []models.DailyBar) (int, error) {
	for _, r := range rates {
		s.fx[r.Symbol] = append(s.fx[r.Symbol], r)
	}
	return len(rates), nil
}

func inRange(bars []models.DailyBar, from, to time.Time) []models.DailyBar {
	var out []models.DailyBar
	for _, b := range bars {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out
}

func (s *fakeStore) GetBars(_ context.Context, symbol string, from, to time.Time) ([]models.DailyBar, error) {
	return inRange(s.bars[symbol], from, to), nil
}

func (s *fakeStore) GetFxRates(_ context.Context, pair string, from, to time.Time) ([]models.DailyBar, error) {
	return inRange(s.fx[pair], from, to), nil
}

func (s *fakeStore) ListSymbols(context.Context) ([]string, error) { return nil, nil }
func (s *fakeStore) Stats(context.Context) (*models.StoreStats, error) {
	return &models.StoreStats{}, nil
}
func (s *fakeStore) Health(context.Context) error { return nil }
func (s *fakeStore) Close() error                 { return nil }

type fakeMetrics struct {
	errors map[string]int
}

func (m *fakeMetrics) RecordBarsUpserted(string, int)      {}
func (m *fakeMetrics) RecordError(kind string)             { m.errors[kind]++ }
func (m *fakeMetrics) RecordFitDuration(float64)           {}
func (m *fakeMetrics) RecordIllConditioned(string)         {}
func (m *fakeMetrics) RecordBacktestDuration(float64)      {}
func (m *fakeMetrics) RecordLatency(string, float64)       {}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

// priceSeries compounds log returns onto a 100.0 base.
func priceSeries(start time.Time, rets []float64) []models.DailyBar {
	bars := make([]models.DailyBar, len(rets))
	price := 100.0
	for i, r := range rets {
		price *= math.Exp(r)
		bars[i] = models.DailyBar{
			Symbol:    "",
			Date:      models.Midnight(start.AddDate(0, 0, i)),
			Close:     price,
			ScrapedAt: start,
		}
	}
	return bars
}

func tagged(symbol string, bars []models.DailyBar) []models.DailyBar {
	out := make([]models.DailyBar, len(bars))
	for i, b := range bars {
		b.Symbol = symbol
		out[i] = b
	}
	return out
}

func seedStore(n int) *fakeStore {
	start := models.Day(2024, time.January, 2)
	rng := rand.New(rand.NewSource(7))
	rm := make([]float64, n)
	rfx := make([]float64, n)
	a := make([]float64, n)
	b := make([]float64, n)
	for i := 0; i < n; i++ {
		rm[i] = rng.NormFloat64() * 0.01
		rfx[i] = rng.NormFloat64() * 0.02
		a[i] = 0.3*rm[i] + 1.4*rfx[i] + rng.NormFloat64()*0.002
		b[i] = 0.3*rm[i] + 0.4*rfx[i] + rng.NormFloat64()*0.002
	}
	return &fakeStore{
		bars: map[string][]models.DailyBar{
			"GTCO":    tagged("GTCO", priceSeries(start, a)),
			"DANGCEM": tagged("DANGCEM", priceSeries(start, b)),
			"NGXASI":  tagged("NGXASI", priceSeries(start, rm)),
		},
		fx: map[string][]models.DailyBar{
			"USDNGN": tagged("USDNGN", priceSeries(start, rfx)),
		},
	}
}

func baseRequest() models.BacktestRequest {
	return models.BacktestRequest{
		Tickers:        []string{"GTCO", "DANGCEM"},
		From:           "2024-01-02",
		To:             "2024-08-30",
		Window:         40,
		MinObs:         30,
		TopN:           1,
		FillPolicy:     "none",
		PeriodsPerYear: 252,
	}
}

func newRunner(store *fakeStore, metrics *fakeMetrics, t *testing.T) *BacktestRunner {
	return NewBacktestRunner(store, metrics, testLogger(t), "NGXASI", "USDNGN", 2)
}

func TestRunEndToEnd(t *testing.T) {
	store := seedStore(220)
	metrics := &fakeMetrics{errors: map[string]int{}}
	runner := newRunner(store, metrics, t)

	out, err := runner.Run(context.Background(), baseRequest(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(out.Dropped) != 0 {
		t.Fatalf("dropped = %v", out.Dropped)
	}
	if len(out.Result.Snapshots) == 0 {
		t.Fatalf("no rebalances happened")
	}
	if out.Result.Report.Periods == 0 {
		t.Fatalf("no holding periods accrued")
	}
	// The high-FX-beta ticker dominates selection.
	gtco := 0
	for _, snap := range out.Result.Snapshots {
		if snap.Holds("GTCO") {
			gtco++
		}
	}
	if gtco == 0 {
		t.Fatalf("high fx-beta ticker never selected: %+v", out.Result.Snapshots)
	}
}

func TestRunDropsCorruptTicker(t *testing.T) {
	store := seedStore(220)
	// One negative close in an otherwise fine series.
	bad := tagged("BAD", priceSeries(models.Day(2024, time.January, 2), make([]float64, 220)))
	bad[50].Close = -1
	store.bars["BAD"] = bad

	metrics := &fakeMetrics{errors: map[string]int{}}
	runner := newRunner(store, metrics, t)

	req := baseRequest()
	req.Tickers = []string{"GTCO", "BAD", "DANGCEM"}
	out, err := runner.Run(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(out.Dropped) != 1 || out.Dropped[0] != "BAD" {
		t.Fatalf("dropped = %v, want [BAD]", out.Dropped)
	}
	if metrics.errors["invalid_price"] != 1 {
		t.Fatalf("invalid_price errors = %d", metrics.errors["invalid_price"])
	}
}

func TestRunFailsOnCorruptMarketIndex(t *testing.T) {
	store := seedStore(220)
	store.bars["NGXASI"][10].Close = 0

	metrics := &fakeMetrics{errors: map[string]int{}}
	runner := newRunner(store, metrics, t)

	_, err := runner.Run(context.Background(), baseRequest(), nil)
	var ipe *returns.InvalidPriceError
	if !errors.As(err, &ipe) {
		t.Fatalf("expected invalid price error, got %v", err)
	}
	if ipe.Symbol != "NGXASI" {
		t.Fatalf("error symbol = %q", ipe.Symbol)
	}
}

func TestRunRejectsBadDates(t *testing.T) {
	store := seedStore(50)
	runner := newRunner(store, &fakeMetrics{errors: map[string]int{}}, t)

	req := baseRequest()
	req.From = "02-01-2024"
	if _, err := runner.Run(context.Background(), req, nil); err == nil || !strings.Contains(err.Error(), "bad from date") {
		t.Fatalf("expected date parse error, got %v", err)
	}
}

func TestRegressionHistory(t *testing.T) {
	store := seedStore(220)
	runner := newRunner(store, &fakeMetrics{errors: map[string]int{}}, t)

	ests, err := runner.RegressionHistory(context.Background(), models.RegressionHistoryRequest{
		Ticker: "GTCO",
		From:   "2024-01-02",
		To:     "2024-08-30",
		Window: 40,
		MinObs: 30,
	})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(ests) == 0 {
		t.Fatalf("no estimates produced")
	}
	last := ests[len(ests)-1]
	if math.Abs(last.BetaFX-1.4) > 0.2 {
		t.Fatalf("fx beta = %v, want near 1.4", last.BetaFX)
	}
}
