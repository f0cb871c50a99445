// Package rotate turns per-ticker regression estimates into a portfolio
// snapshot at a rebalance date. Selection is deterministic: identical inputs
// always produce identical snapshots, with ties broken by symbol.
package rotate

import (
	"math"
	"sort"
	"time"

	"NgxQuant/internal/domain/models"
	"NgxQuant/internal/domain/service"
)

// FxBeta is the default scorer of the FX-conditional rotation: rank by
// estimated sensitivity to USD/NGN returns, descending.
type FxBeta struct{}

func (FxBeta) Score(est models.RegressionEstimate) float64 { return est.BetaFX }

// Eligibility filters numerically unreliable estimates out of the ranking
// instead of silently ranking them.
type Eligibility struct {
	// MaxResidualStdErr excludes estimates whose residual standard error
	// exceeds the ceiling. Zero or negative disables the ceiling.
	MaxResidualStdErr float64
}

func (e Eligibility) allow(est models.RegressionEstimate) bool {
	if est.ResidualStdErr < 0 || math.IsNaN(est.ResidualStdErr) {
		return false
	}
	if e.MaxResidualStdErr > 0 && est.ResidualStdErr > e.MaxResidualStdErr {
		return false
	}
	return true
}

// SelectTopN ranks the current estimates and holds the top n eligible
// tickers. Tickers without a current estimate simply do not appear in the
// map and are therefore never ranked. Fewer than n eligible tickers is not
// an error; the snapshot holds however many qualify. Rebalance cadence is
// the caller's concern.
func SelectTopN(date time.Time, estimates map[string]models.RegressionEstimate, n int, elig Eligibility, scorer service.TickerScorer) models.PortfolioSnapshot {
	if scorer == nil {
		scorer = FxBeta{}
	}

	type candidate struct {
		symbol string
		score  float64
	}
	candidates := make([]candidate, 0, len(estimates))
	for symbol, est := range estimates {
		if !elig.allow(est) {
			continue
		}
		score := scorer.Score(est)
		if math.IsNaN(score) || math.IsInf(score, 0) {
			continue
		}
		candidates = append(candidates, candidate{symbol: symbol, score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].symbol < candidates[j].symbol
	})
	if n < len(candidates) {
		candidates = candidates[:n]
	}

	snapshot := models.PortfolioSnapshot{
		Date:    models.Midnight(date),
		Symbols: make([]string, 0, len(candidates)),
		Scores:  make(map[string]float64, len(candidates)),
	}
	for _, c := range candidates {
		snapshot.Symbols = append(snapshot.Symbols, c.symbol)
		snapshot.Scores[c.symbol] = c.score
	}
	return snapshot
}
