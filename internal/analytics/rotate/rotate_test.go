package rotate

import (
	"reflect"
	"testing"
	"time"

	"NgxQuant/internal/domain/models"
)

var asOf = models.Day(2024, time.June, 28)

func est(ticker string, betaFX, stderr float64) models.RegressionEstimate {
	return models.RegressionEstimate{
		Ticker: ticker, Date: asOf, Window: 90,
		BetaFX: betaFX, ResidualStdErr: stderr, N: 80,
	}
}

func TestRanksByFxBetaDescending(t *testing.T) {
	ests := map[string]models.RegressionEstimate{
		"DANGCEM": est("DANGCEM", 0.4, 0.01),
		"GTCO":    est("GTCO", 1.9, 0.01),
		"MTNN":    est("MTNN", 1.2, 0.01),
	}
	snap := SelectTopN(asOf, ests, 2, Eligibility{}, nil)
	want := []string{"GTCO", "MTNN"}
	if !reflect.DeepEqual(snap.Symbols, want) {
		t.Fatalf("selection = %v, want %v", snap.Symbols, want)
	}
	if snap.Scores["GTCO"] != 1.9 {
		t.Fatalf("score not carried: %v", snap.Scores)
	}
}

func TestTiesBreakBySymbolAscending(t *testing.T) {
	ests := map[string]models.RegressionEstimate{
		"ZENITH": est("ZENITH", 1.0, 0.01),
		"ACCESS": est("ACCESS", 1.0, 0.01),
		"UBA":    est("UBA", 1.0, 0.01),
	}
	first := SelectTopN(asOf, ests, 2, Eligibility{}, nil)
	want := []string{"ACCESS", "UBA"}
	if !reflect.DeepEqual(first.Symbols, want) {
		t.Fatalf("tie-break selection = %v, want %v", first.Symbols, want)
	}
	// Identical inputs twice give identical output.
	for trial := 0; trial < 20; trial++ {
		again := SelectTopN(asOf, ests, 2, Eligibility{}, nil)
		if !reflect.DeepEqual(again.Symbols, first.Symbols) {
			t.Fatalf("trial %d: nondeterministic selection %v", trial, again.Symbols)
		}
	}
}

func TestResidualCeilingExcludes(t *testing.T) {
	ests := map[string]models.RegressionEstimate{
		"NOISY": est("NOISY", 5.0, 0.5),
		"CLEAN": est("CLEAN", 0.3, 0.01),
	}
	snap := SelectTopN(asOf, ests, 2, Eligibility{MaxResidualStdErr: 0.1}, nil)
	if !reflect.DeepEqual(snap.Symbols, []string{"CLEAN"}) {
		t.Fatalf("unreliable beta was ranked: %v", snap.Symbols)
	}
}

func TestFewerThanNIsNotAnError(t *testing.T) {
	ests := map[string]models.RegressionEstimate{
		"ONLY": est("ONLY", 0.7, 0.01),
	}
	snap := SelectTopN(asOf, ests, 5, Eligibility{}, nil)
	if len(snap.Symbols) != 1 {
		t.Fatalf("snapshot size = %d, want 1", len(snap.Symbols))
	}
	empty := SelectTopN(asOf, map[string]models.RegressionEstimate{}, 5, Eligibility{}, nil)
	if len(empty.Symbols) != 0 {
		t.Fatalf("empty estimate map must yield empty snapshot")
	}
}

type betaMarketScorer struct{}

func (betaMarketScorer) Score(e models.RegressionEstimate) float64 { return e.BetaMarket }

func TestPluggableScorer(t *testing.T) {
	a := est("A", 2.0, 0.01)
	a.BetaMarket = 0.1
	b := est("B", 0.1, 0.01)
	b.BetaMarket = 2.0
	snap := SelectTopN(asOf, map[string]models.RegressionEstimate{"A": a, "B": b}, 1, Eligibility{}, betaMarketScorer{})
	if !reflect.DeepEqual(snap.Symbols, []string{"B"}) {
		t.Fatalf("custom scorer ignored: %v", snap.Symbols)
	}
}
