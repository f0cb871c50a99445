// Package backtest drives estimation and selection across time with strict
// temporal separation between fit data and evaluation data, then scores the
// realized return stream. One run is a single-threaded pass: every rebalance
// depends on the holding period before it. Independent runs (different
// configs, different regimes) may execute concurrently.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"NgxQuant/internal/analytics/regress"
	"NgxQuant/internal/analytics/returns"
	"NgxQuant/internal/analytics/rotate"
	"NgxQuant/internal/domain/models"
	"NgxQuant/internal/domain/service"
)

// ErrZeroVolatility marks a Sharpe ratio that is undefined because the
// periodic return variance is exactly zero. Reports carry it as an absent
// value, never as infinity.
var ErrZeroVolatility = errors.New("zero volatility: sharpe ratio undefined")

// Config holds the evaluation parameters of one run.
type Config struct {
	TopN           int
	Eligibility    rotate.Eligibility
	Scorer         service.TickerScorer // nil means rotate.FxBeta
	RiskFreeRate   float64              // annualized
	PeriodsPerYear float64
}

// Input is everything a run consumes. All series are pre-computed and
// read-only; the run does no I/O.
type Input struct {
	Returns        *returns.ReturnSeries
	Tickers        []string
	Estimates      map[string][]models.RegressionEstimate // per ticker, date-ordered
	RebalanceDates []time.Time
	Regimes        map[time.Time]string // optional date -> regime label
}

// PeriodReturn is one realized strategy return.
type PeriodReturn struct {
	Date   time.Time
	Return float64
}

// Result owns the full-period report, one report per regime label, and the
// snapshot history for attribution.
type Result struct {
	Report        models.PerformanceReport
	RegimeReports map[string]models.PerformanceReport
	Snapshots     []models.PortfolioSnapshot
	Strategy      []PeriodReturn
}

// Run walks the evaluation timeline: warm-up until the first rebalance that
// yields a snapshot, then hold between rebalances accumulating realized
// equal-weighted returns of the held tickers.
func Run(ctx context.Context, in Input, cfg Config) (*Result, error) {
	if in.Returns == nil || in.Returns.Len() == 0 {
		return nil, fmt.Errorf("backtest: empty return series")
	}
	if cfg.TopN < 1 {
		return nil, fmt.Errorf("backtest: top-n %d below 1", cfg.TopN)
	}
	if cfg.PeriodsPerYear <= 0 {
		return nil, fmt.Errorf("backtest: periods per year must be positive")
	}
	if len(in.RebalanceDates) == 0 {
		return nil, fmt.Errorf("backtest: no rebalance dates")
	}

	rebalance := make(map[time.Time]bool, len(in.RebalanceDates))
	for _, d := range in.RebalanceDates {
		rebalance[models.Midnight(d)] = true
	}

	res := &Result{RegimeReports: make(map[string]models.PerformanceReport)}
	var held *models.PortfolioSnapshot

	for i := 0; i < in.Returns.Len(); i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		date := in.Returns.Date(i)

		// Holding: accrue the realized return of the frozen composition
		// before any rebalance decision dated today takes effect.
		if held != nil {
			res.Strategy = append(res.Strategy, PeriodReturn{Date: date, Return: holdingReturn(in.Returns, i, held)})
		}

		if rebalance[date] {
			asOf := make(map[string]models.RegressionEstimate, len(in.Tickers))
			for _, ticker := range in.Tickers {
				if est, ok := regress.AsOf(in.Estimates[ticker], date); ok {
					asOf[ticker] = est
				}
			}
			snapshot := rotate.SelectTopN(date, asOf, cfg.TopN, cfg.Eligibility, cfg.Scorer)
			res.Snapshots = append(res.Snapshots, snapshot)
			held = &snapshot
		}
	}

	full, err := report("full", res.Strategy, cfg)
	if err != nil {
		return nil, err
	}
	res.Report = full

	for _, label := range regimeLabels(in.Regimes) {
		slice := make([]PeriodReturn, 0)
		for _, pr := range res.Strategy {
			if in.Regimes[pr.Date] == label {
				slice = append(slice, pr)
			}
		}
		rep, err := report(label, slice, cfg)
		if err != nil {
			return nil, err
		}
		res.RegimeReports[label] = rep
	}
	return res, nil
}

// holdingReturn is the equal-weighted simple return of the held tickers at
// axis position i. A held ticker with no observable price move that date
// contributes zero: the position is marked flat, not dropped.
func holdingReturn(rs *returns.ReturnSeries, i int, snapshot *models.PortfolioSnapshot) float64 {
	if len(snapshot.Symbols) == 0 {
		return 0
	}
	total := 0.0
	for _, symbol := range snapshot.Symbols {
		if lr, ok := rs.Return(symbol, i); ok {
			total += simpleReturn(lr)
		}
	}
	return total / float64(len(snapshot.Symbols))
}

func simpleReturn(logReturn float64) float64 {
	return math.Expm1(logReturn)
}

func regimeLabels(regimes map[time.Time]string) []string {
	seen := make(map[string]bool)
	var labels []string
	for _, label := range regimes {
		if label != "" && !seen[label] {
			seen[label] = true
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)
	return labels
}
