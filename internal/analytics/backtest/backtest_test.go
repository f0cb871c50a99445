package backtest

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"NgxQuant/internal/analytics/regress"
	"NgxQuant/internal/analytics/returns"
	"NgxQuant/internal/analytics/rotate"
	"NgxQuant/internal/domain/models"
)

func day(offset int) time.Time {
	return models.Day(2024, time.January, 1).AddDate(0, 0, offset)
}

func dates(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = day(i)
	}
	return out
}

func baseConfig() Config {
	return Config{TopN: 1, PeriodsPerYear: 252}
}

// Two tickers with 400 days of synthetic returns. A's FX beta jumps to 2.0
// for the final 90 days while B stays at 0.5; with window 90 and minObs 60
// the selector at the final rebalance must choose A.
func TestFinalRebalanceSelectsHighFxBeta(t *testing.T) {
	n := 400
	rng := rand.New(rand.NewSource(21))
	rm := make([]float64, n)
	rfx := make([]float64, n)
	a := make([]float64, n)
	b := make([]float64, n)
	for i := 0; i < n; i++ {
		rm[i] = rng.NormFloat64() * 0.01
		rfx[i] = rng.NormFloat64() * 0.02
		betaA := 0.2
		if i >= n-90 {
			betaA = 2.0
		}
		a[i] = 0.3*rm[i] + betaA*rfx[i] + rng.NormFloat64()*0.001
		b[i] = 0.3*rm[i] + 0.5*rfx[i] + rng.NormFloat64()*0.001
	}
	rs, err := returns.New(dates(n), map[string][]float64{
		"A": a, "B": b, "NGXASI": rm, "USDNGN": rfx,
	}, nil)
	if err != nil {
		t.Fatalf("series: %v", err)
	}

	cfg := regress.Config{MarketSymbol: "NGXASI", FxSymbol: "USDNGN", Window: 90, MinObs: 60}
	estimates, skips, err := regress.FitAll(context.Background(), []string{"A", "B"}, rs, cfg, 2)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if len(skips) != 0 {
		t.Fatalf("unexpected skips: %v", skips)
	}

	res, err := Run(context.Background(), Input{
		Returns:        rs,
		Tickers:        []string{"A", "B"},
		Estimates:      estimates,
		RebalanceDates: []time.Time{day(n - 1)},
	}, baseConfig())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Snapshots) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(res.Snapshots))
	}
	final := res.Snapshots[0]
	if len(final.Symbols) != 1 || final.Symbols[0] != "A" {
		t.Fatalf("final selection = %v, want [A]", final.Symbols)
	}
}

func TestHoldingAccruesHeldTickerReturns(t *testing.T) {
	n := 6
	held := []float64{0, 0.01, -0.02, 0.03, 0.01, 0.02}
	rs, err := returns.New(dates(n), map[string][]float64{"A": held}, nil)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	estimates := map[string][]models.RegressionEstimate{
		"A": {{Ticker: "A", Date: day(1), BetaFX: 1, N: 60}},
	}
	res, err := Run(context.Background(), Input{
		Returns:        rs,
		Tickers:        []string{"A"},
		Estimates:      estimates,
		RebalanceDates: []time.Time{day(1)},
	}, baseConfig())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// Held from the date after the rebalance through the end.
	if len(res.Strategy) != 4 {
		t.Fatalf("strategy periods = %d, want 4", len(res.Strategy))
	}
	for i, pr := range res.Strategy {
		want := math.Expm1(held[i+2])
		if math.Abs(pr.Return-want) > 1e-12 {
			t.Fatalf("period %d return = %v, want %v", i, pr.Return, want)
		}
	}
}

func TestZeroVolatilityLeavesSharpeUndefined(t *testing.T) {
	n := 40
	zeros := make([]float64, n)
	rs, err := returns.New(dates(n), map[string][]float64{"A": zeros}, nil)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	estimates := map[string][]models.RegressionEstimate{
		"A": {{Ticker: "A", Date: day(0), BetaFX: 1, N: 60}},
	}
	res, err := Run(context.Background(), Input{
		Returns:        rs,
		Tickers:        []string{"A"},
		Estimates:      estimates,
		RebalanceDates: []time.Time{day(0)},
	}, baseConfig())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Report.Sharpe != nil {
		t.Fatalf("sharpe = %v, want undefined", *res.Report.Sharpe)
	}
	if res.Report.Volatility != 0 {
		t.Fatalf("volatility = %v, want 0", res.Report.Volatility)
	}
	if res.Report.MaxDrawdown != 0 {
		t.Fatalf("drawdown = %v, want 0", res.Report.MaxDrawdown)
	}
}

func TestRegimeReports(t *testing.T) {
	n := 30
	rng := rand.New(rand.NewSource(2))
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = rng.NormFloat64() * 0.01
	}
	rs, err := returns.New(dates(n), map[string][]float64{"A": vals}, nil)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	regimes := make(map[time.Time]string, n)
	for i := 0; i < n; i++ {
		if i < 15 {
			regimes[day(i)] = "stable"
		} else {
			regimes[day(i)] = "depreciation"
		}
	}
	estimates := map[string][]models.RegressionEstimate{
		"A": {{Ticker: "A", Date: day(0), BetaFX: 1, N: 60}},
	}
	res, err := Run(context.Background(), Input{
		Returns:        rs,
		Tickers:        []string{"A"},
		Estimates:      estimates,
		RebalanceDates: []time.Time{day(0)},
		Regimes:        regimes,
	}, baseConfig())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.RegimeReports) != 2 {
		t.Fatalf("regime reports = %d, want 2", len(res.RegimeReports))
	}
	stable, ok := res.RegimeReports["stable"]
	if !ok {
		t.Fatalf("missing stable regime report")
	}
	dep := res.RegimeReports["depreciation"]
	// Holding starts the date after the day-0 rebalance.
	if stable.Periods != 14 || dep.Periods != 15 {
		t.Fatalf("regime periods = %d/%d, want 14/15", stable.Periods, dep.Periods)
	}
	if got := stable.Periods + dep.Periods; got != res.Report.Periods {
		t.Fatalf("regime slices cover %d periods, full report has %d", got, res.Report.Periods)
	}
}

func TestMaxDrawdownProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	for trial := 0; trial < 100; trial++ {
		rets := make([]float64, rng.Intn(200))
		for i := range rets {
			rets[i] = rng.NormFloat64() * 0.03
		}
		if dd := MaxDrawdown(rets); dd < 0 {
			t.Fatalf("trial %d: drawdown %v below zero", trial, dd)
		}
	}
	// A single known decline.
	dd := MaxDrawdown([]float64{0.10, -0.50, 0.20})
	if math.Abs(dd-0.5) > 1e-12 {
		t.Fatalf("drawdown = %v, want 0.5", dd)
	}
}

func TestSharpeRatio(t *testing.T) {
	if _, err := SharpeRatio(0.1, 0, 0.02); err != ErrZeroVolatility {
		t.Fatalf("expected ErrZeroVolatility, got %v", err)
	}
	got, err := SharpeRatio(0.12, 0.2, 0.02)
	if err != nil {
		t.Fatalf("sharpe: %v", err)
	}
	if math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("sharpe = %v, want 0.5", got)
	}
}

func TestMonthEnds(t *testing.T) {
	axis := []time.Time{
		models.Day(2024, time.January, 29),
		models.Day(2024, time.January, 31),
		models.Day(2024, time.February, 1),
		models.Day(2024, time.February, 27),
		models.Day(2024, time.March, 4),
	}
	got := MonthEnds(axis)
	want := []time.Time{
		models.Day(2024, time.January, 31),
		models.Day(2024, time.February, 27),
		models.Day(2024, time.March, 4),
	}
	if len(got) != len(want) {
		t.Fatalf("month ends = %v, want %v", got, want)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("month end %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestVariablePortfolioSizeTolerated(t *testing.T) {
	n := 10
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = 0.01
	}
	rs, err := returns.New(dates(n), map[string][]float64{"A": vals}, nil)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	// No estimates at all: every snapshot is empty, the run stays flat.
	res, err := Run(context.Background(), Input{
		Returns:        rs,
		Tickers:        []string{"A"},
		Estimates:      map[string][]models.RegressionEstimate{},
		RebalanceDates: []time.Time{day(0), day(5)},
	}, Config{TopN: 3, PeriodsPerYear: 252, Eligibility: rotate.Eligibility{MaxResidualStdErr: 0.5}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Snapshots) != 2 {
		t.Fatalf("snapshots = %d, want 2", len(res.Snapshots))
	}
	for _, pr := range res.Strategy {
		if pr.Return != 0 {
			t.Fatalf("flat run accrued %v", pr.Return)
		}
	}
}
