package models

import "time"

// RegressionEstimate is one rolling OLS fit of
//
//	r_i = alpha + beta_m*r_m + beta_fx*r_fx + eps
//
// as of Date, over a trailing window of Window axis positions. N is the
// number of gap-free observations actually used. Estimates are immutable;
// advancing the window produces a new record.
type RegressionEstimate struct {
	Ticker         string
	Date           time.Time
	Window         int
	Alpha          float64
	BetaMarket     float64
	BetaFX         float64
	ResidualStdErr float64
	N              int
}

// PortfolioSnapshot is the selection made at one rebalance date. Symbols are
// in rank order. Snapshots are retained after being superseded so a backtest
// run can be attributed rebalance by rebalance.
type PortfolioSnapshot struct {
	Date    time.Time
	Symbols []string
	Scores  map[string]float64
}

// Holds reports whether symbol is part of the snapshot.
func (s PortfolioSnapshot) Holds(symbol string) bool {
	for _, held := range s.Symbols {
		if held == symbol {
			return true
		}
	}
	return false
}

// PerformanceReport aggregates the realized statistics of one evaluation run
// (or one regime slice of it). Sharpe is nil when periodic-return volatility
// is exactly zero: undefined, never infinity or NaN.
type PerformanceReport struct {
	Label            string   `json:"label"`
	Periods          int      `json:"periods"`
	TotalReturn      float64  `json:"total_return"`
	AnnualizedReturn float64  `json:"annualized_return"`
	Volatility       float64  `json:"volatility"`
	Sharpe           *float64 `json:"sharpe"`
	MaxDrawdown      float64  `json:"max_drawdown"`
}
