package returns

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"NgxQuant/internal/analytics/align"
	"NgxQuant/internal/domain/models"
)

func day(offset int) time.Time {
	return models.Day(2024, time.January, 1).AddDate(0, 0, offset)
}

func alignPrices(t *testing.T, prices map[string][]float64) *align.AlignedSeries {
	t.Helper()
	series := make(map[string][]models.PricePoint)
	n := 0
	for symbol, ps := range prices {
		for i, p := range ps {
			if math.IsNaN(p) {
				continue // NaN marks a non-trading day in the fixture
			}
			series[symbol] = append(series[symbol], models.PricePoint{Symbol: symbol, Date: day(i), Close: p})
		}
		if len(ps) > n {
			n = len(ps)
		}
	}
	aligned, err := align.Align(series, day(0), day(n), align.Options{})
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	return aligned
}

func TestLogReturnBasics(t *testing.T) {
	aligned := alignPrices(t, map[string][]float64{
		"A": {100, 110, 121},
	})
	rs, err := LogReturns(aligned)
	if err != nil {
		t.Fatalf("log returns: %v", err)
	}
	if _, ok := rs.Return("A", 0); ok {
		t.Fatalf("first date must have no return")
	}
	want := math.Log(1.1)
	for i := 1; i <= 2; i++ {
		got, ok := rs.Return("A", i)
		if !ok {
			t.Fatalf("return undefined at %d", i)
		}
		if math.Abs(got-want) > 1e-12 {
			t.Fatalf("return at %d = %v, want %v", i, got, want)
		}
	}
}

func TestGapPropagatesNotZero(t *testing.T) {
	nan := math.NaN()
	aligned := alignPrices(t, map[string][]float64{
		"A": {100, nan, 120},
		"B": {50, 51, 52},
	})
	rs, err := LogReturns(aligned)
	if err != nil {
		t.Fatalf("log returns: %v", err)
	}
	if _, ok := rs.Return("A", 1); ok {
		t.Fatalf("gap date must stay undefined")
	}
	// The return after the gap bridges to the last known price.
	got, ok := rs.Return("A", 2)
	if !ok {
		t.Fatalf("post-gap return undefined")
	}
	if want := math.Log(1.2); math.Abs(got-want) > 1e-12 {
		t.Fatalf("post-gap return = %v, want %v", got, want)
	}
}

func TestNonPositivePriceFails(t *testing.T) {
	for _, bad := range []float64{0, -5} {
		aligned := alignPrices(t, map[string][]float64{"A": {100, bad, 120}})
		_, err := LogReturns(aligned)
		var ipe *InvalidPriceError
		if !errors.As(err, &ipe) {
			t.Fatalf("price %v: expected InvalidPriceError, got %v", bad, err)
		}
		if ipe.Symbol != "A" || !ipe.Date.Equal(day(1)) {
			t.Fatalf("price %v: wrong context %+v", bad, ipe)
		}
	}
}

// Converting returns back to prices via cumulative product must reproduce
// the original series within floating-point tolerance.
func TestPriceRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	prices := make([]float64, 300)
	prices[0] = 100
	for i := 1; i < len(prices); i++ {
		prices[i] = prices[i-1] * math.Exp(rng.NormFloat64()*0.02)
	}
	aligned := alignPrices(t, map[string][]float64{"A": prices})
	rs, err := LogReturns(aligned)
	if err != nil {
		t.Fatalf("log returns: %v", err)
	}

	rebuilt := prices[0]
	for i := 1; i < len(prices); i++ {
		r, ok := rs.Return("A", i)
		if !ok {
			t.Fatalf("return undefined at %d", i)
		}
		rebuilt *= math.Exp(r)
		if math.Abs(rebuilt-prices[i]) > 1e-9*prices[i] {
			t.Fatalf("round trip diverged at %d: %v vs %v", i, rebuilt, prices[i])
		}
	}
}

func TestNewValidatesShape(t *testing.T) {
	dates := []time.Time{day(0), day(1)}
	if _, err := New(dates, map[string][]float64{"A": {1}}, nil); err == nil {
		t.Fatalf("expected length mismatch error")
	}
	if _, err := New([]time.Time{day(1), day(0)}, map[string][]float64{"A": {1, 2}}, nil); err == nil {
		t.Fatalf("expected non-increasing axis error")
	}
}
