package regress

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"NgxQuant/internal/analytics/returns"
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

// factorSeries builds market and fx factor returns plus a ticker return that
// is an exact linear combination, so the fit must recover the coefficients.
func factorSeries(t *testing.T, n int, alpha, betaM, betaFX float64) *returns.ReturnSeries {
	t.Helper()
	rng := rand.New(rand.NewSource(3))
	rm := make([]float64, n)
	rfx := make([]float64, n)
	ri := make([]float64, n)
	for i := 0; i < n; i++ {
		rm[i] = rng.NormFloat64() * 0.01
		rfx[i] = rng.NormFloat64() * 0.02
		ri[i] = alpha + betaM*rm[i] + betaFX*rfx[i]
	}
	rs, err := returns.New(dates(n), map[string][]float64{"TICKER": ri, "NGXASI": rm, "USDNGN": rfx}, nil)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	return rs
}

func baseConfig() Config {
	return Config{MarketSymbol: "NGXASI", FxSymbol: "USDNGN", Window: 30, MinObs: 20}
}

func TestRecoversCoefficients(t *testing.T) {
	rs := factorSeries(t, 120, 0.0004, 0.8, 1.5)
	ests, skips, err := FitRolling(context.Background(), "TICKER", rs, baseConfig())
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if len(skips) != 0 {
		t.Fatalf("unexpected skips: %v", skips)
	}
	if len(ests) == 0 {
		t.Fatalf("no estimates produced")
	}
	for _, e := range ests {
		if math.Abs(e.Alpha-0.0004) > 1e-9 || math.Abs(e.BetaMarket-0.8) > 1e-9 || math.Abs(e.BetaFX-1.5) > 1e-9 {
			t.Fatalf("estimate at %s off: %+v", e.Date.Format("2006-01-02"), e)
		}
		if e.ResidualStdErr > 1e-9 {
			t.Fatalf("noise-free fit has residual %v", e.ResidualStdErr)
		}
		if e.N < baseConfig().MinObs {
			t.Fatalf("estimate emitted with %d < min observations", e.N)
		}
	}
}

func TestMinObservationsSkipsSilently(t *testing.T) {
	rs := factorSeries(t, 120, 0, 1, 1)
	cfg := baseConfig()
	ests, skips, err := FitRolling(context.Background(), "TICKER", rs, cfg)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if len(skips) != 0 {
		t.Fatalf("below-min windows must not be recorded as skips: %v", skips)
	}
	// Every value is defined, so position i has i+1 usable rows.
	wantFirst := day(cfg.MinObs - 1)
	if !ests[0].Date.Equal(wantFirst) {
		t.Fatalf("first estimate at %s, want %s", ests[0].Date.Format("2006-01-02"), wantFirst.Format("2006-01-02"))
	}
}

// Estimates dated t must not change when any return dated after t changes.
func TestCausality(t *testing.T) {
	n := 150
	rng := rand.New(rand.NewSource(5))
	rm := make([]float64, n)
	rfx := make([]float64, n)
	ri := make([]float64, n)
	for i := range rm {
		rm[i] = rng.NormFloat64() * 0.01
		rfx[i] = rng.NormFloat64() * 0.02
		ri[i] = 0.5*rm[i] + 0.9*rfx[i] + rng.NormFloat64()*0.005
	}
	build := func(mutateAfter int) *returns.ReturnSeries {
		m := append([]float64(nil), rm...)
		f := append([]float64(nil), rfx...)
		y := append([]float64(nil), ri...)
		if mutateAfter >= 0 {
			for i := mutateAfter + 1; i < n; i++ {
				m[i] = 9
				f[i] = -9
				y[i] = 99
			}
		}
		rs, err := returns.New(dates(n), map[string][]float64{"TICKER": y, "NGXASI": m, "USDNGN": f}, nil)
		if err != nil {
			t.Fatalf("series: %v", err)
		}
		return rs
	}

	cutoff := 100
	base, _, err := FitRolling(context.Background(), "TICKER", build(-1), baseConfig())
	if err != nil {
		t.Fatalf("fit base: %v", err)
	}
	mutated, _, err := FitRolling(context.Background(), "TICKER", build(cutoff), baseConfig())
	if err != nil {
		t.Fatalf("fit mutated: %v", err)
	}

	byDate := make(map[time.Time]models.RegressionEstimate)
	for _, e := range mutated {
		byDate[e.Date] = e
	}
	for _, e := range base {
		if e.Date.After(day(cutoff)) {
			continue
		}
		got, ok := byDate[e.Date]
		if !ok {
			t.Fatalf("estimate at %s disappeared after future mutation", e.Date.Format("2006-01-02"))
		}
		if got != e {
			t.Fatalf("estimate at %s changed after future mutation:\n  %+v\n  %+v", e.Date.Format("2006-01-02"), e, got)
		}
	}
}

// Identical market and fx returns inside a window make the normal equations
// singular: that date is skipped with an ill-conditioned error while
// neighbouring windows still fit.
func TestCollinearWindowSkipped(t *testing.T) {
	n := 20
	rng := rand.New(rand.NewSource(9))
	rm := make([]float64, n)
	rfx := make([]float64, n)
	ri := make([]float64, n)
	for i := range rm {
		rm[i] = rng.NormFloat64() * 0.01
		rfx[i] = rng.NormFloat64() * 0.02
		ri[i] = 0.4*rm[i] + 1.1*rfx[i]
	}
	// Window [10, 13] becomes perfectly collinear.
	for i := 10; i <= 13; i++ {
		rfx[i] = rm[i]
		ri[i] = 1.5 * rm[i]
	}
	rs, err := returns.New(dates(n), map[string][]float64{"TICKER": ri, "NGXASI": rm, "USDNGN": rfx}, nil)
	if err != nil {
		t.Fatalf("series: %v", err)
	}

	cfg := Config{MarketSymbol: "NGXASI", FxSymbol: "USDNGN", Window: 4, MinObs: 4}
	ests, skips, err := FitRolling(context.Background(), "TICKER", rs, cfg)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if len(skips) != 1 || !skips[0].Date.Equal(day(13)) {
		t.Fatalf("want exactly one skip at day 13, got %v", skips)
	}
	var ice *IllConditionedError
	if !errors.As(skips[0].Err, &ice) {
		t.Fatalf("skip reason is not IllConditionedError: %v", skips[0].Err)
	}
	for _, e := range ests {
		if e.Date.Equal(day(13)) {
			t.Fatalf("estimate emitted for collinear window")
		}
	}
	// Neighbouring dates still produce estimates.
	seen := make(map[time.Time]bool)
	for _, e := range ests {
		seen[e.Date] = true
	}
	for _, d := range []int{12, 14} {
		if !seen[day(d)] {
			t.Fatalf("adjacent date %d missing an estimate", d)
		}
	}
}

func TestFitAllMatchesFitRolling(t *testing.T) {
	rs := factorSeries(t, 100, 0.0002, 0.6, 1.2)
	cfg := baseConfig()

	single, _, err := FitRolling(context.Background(), "TICKER", rs, cfg)
	if err != nil {
		t.Fatalf("fit rolling: %v", err)
	}
	all, skips, err := FitAll(context.Background(), []string{"TICKER"}, rs, cfg, 4)
	if err != nil {
		t.Fatalf("fit all: %v", err)
	}
	if len(skips) != 0 {
		t.Fatalf("unexpected skips: %v", skips)
	}
	pooled := all["TICKER"]
	if len(pooled) != len(single) {
		t.Fatalf("pooled %d estimates, sequential %d", len(pooled), len(single))
	}
	for i := range single {
		if pooled[i] != single[i] {
			t.Fatalf("pooled estimate %d differs", i)
		}
	}
}

func TestFitAllHonorsCancellation(t *testing.T) {
	rs := factorSeries(t, 5000, 0, 1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := FitAll(ctx, []string{"TICKER"}, rs, baseConfig(), 2); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAsOf(t *testing.T) {
	ests := []models.RegressionEstimate{
		{Ticker: "A", Date: day(10)},
		{Ticker: "A", Date: day(20)},
	}
	if _, ok := AsOf(ests, day(5)); ok {
		t.Fatalf("as-of before first estimate must miss")
	}
	got, ok := AsOf(ests, day(15))
	if !ok || !got.Date.Equal(day(10)) {
		t.Fatalf("as-of day 15 = %+v, %v", got, ok)
	}
	got, ok = AsOf(ests, day(20))
	if !ok || !got.Date.Equal(day(20)) {
		t.Fatalf("as-of day 20 = %+v, %v", got, ok)
	}
}
