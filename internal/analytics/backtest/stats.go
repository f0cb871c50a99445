package backtest

import (
	"math"
	"time"

	"NgxQuant/internal/domain/models"
)

// report computes the aggregate statistics of one return stream. A zero
// periodic variance leaves Sharpe nil (ErrZeroVolatility is the reason, not
// a run failure).
func report(label string, stream []PeriodReturn, cfg Config) (models.PerformanceReport, error) {
	rep := models.PerformanceReport{Label: label, Periods: len(stream)}
	if len(stream) == 0 {
		return rep, nil
	}

	rets := make([]float64, len(stream))
	for i, pr := range stream {
		rets[i] = pr.Return
	}

	rep.TotalReturn = compound(rets)
	rep.AnnualizedReturn = annualize(rep.TotalReturn, len(rets), cfg.PeriodsPerYear)
	rep.Volatility = stddev(rets) * math.Sqrt(cfg.PeriodsPerYear)
	rep.MaxDrawdown = MaxDrawdown(rets)

	sharpe, err := SharpeRatio(rep.AnnualizedReturn, rep.Volatility, cfg.RiskFreeRate)
	if err == nil {
		rep.Sharpe = &sharpe
	}
	return rep, nil
}

// SharpeRatio is the annualized excess return over the risk-free rate per
// unit of annualized volatility. Zero volatility returns ErrZeroVolatility.
func SharpeRatio(annualizedReturn, annualizedVol, riskFree float64) (float64, error) {
	if annualizedVol == 0 {
		return 0, ErrZeroVolatility
	}
	return (annualizedReturn - riskFree) / annualizedVol, nil
}

// MaxDrawdown is the greatest peak-to-trough decline of the cumulative
// return curve, as a non-negative fraction of the peak.
func MaxDrawdown(rets []float64) float64 {
	cum, peak, maxDD := 1.0, 1.0, 0.0
	for _, r := range rets {
		cum *= 1 + r
		if cum > peak {
			peak = cum
		}
		if dd := (peak - cum) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

func compound(rets []float64) float64 {
	cum := 1.0
	for _, r := range rets {
		cum *= 1 + r
	}
	return cum - 1
}

func annualize(totalReturn float64, periods int, periodsPerYear float64) float64 {
	if periods == 0 {
		return 0
	}
	return math.Pow(1+totalReturn, periodsPerYear/float64(periods)) - 1
}

// stddev is the sample standard deviation; fewer than two observations have
// no dispersion estimate and yield zero.
func stddev(rets []float64) float64 {
	if len(rets) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))

	ss := 0.0
	for _, r := range rets {
		d := r - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(rets)-1))
}

// MonthEnds derives a monthly rebalance schedule from an ordered date axis:
// the last axis date of every calendar month present.
func MonthEnds(dates []time.Time) []time.Time {
	var out []time.Time
	for i, d := range dates {
		if i+1 == len(dates) || dates[i+1].Month() != d.Month() || dates[i+1].Year() != d.Year() {
			out = append(out, d)
		}
	}
	return out
}
