// Package regress fits the rolling two-factor OLS
//
//	r_i = alpha + beta_m*r_m + beta_fx*r_fx + eps
//
// per ticker per date over a trailing window. Fits are strictly causal: the
// estimate dated t sees only returns dated t or earlier. The whole
// computation is a pure function of the return series, so results are
// replayable and never cached statefully.
package regress

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"NgxQuant/internal/analytics/returns"
	"NgxQuant/internal/domain/models"
)

// Config parameterizes one rolling fit. All fields are explicit; there are
// no hidden defaults that could silently change estimates.
type Config struct {
	MarketSymbol string
	FxSymbol     string
	Window       int // trailing window length in axis dates
	MinObs       int // minimum gap-free observations per window
}

func (c Config) validate() error {
	if c.MarketSymbol == "" || c.FxSymbol == "" {
		return fmt.Errorf("regress: market and fx symbols are required")
	}
	if c.Window < 2 {
		return fmt.Errorf("regress: window %d too short", c.Window)
	}
	if c.MinObs < 4 {
		// Three coefficients plus at least one residual degree of freedom.
		return fmt.Errorf("regress: min observations %d below 4", c.MinObs)
	}
	return nil
}

// IllConditionedError marks a single window whose normal equations are too
// close to singular (e.g. market and FX returns collinear within the
// window). The affected date is skipped; the run continues.
type IllConditionedError struct {
	Ticker string
	Date   time.Time
}

func (e *IllConditionedError) Error() string {
	return fmt.Sprintf("ill-conditioned window for %s at %s", e.Ticker, e.Date.Format("2006-01-02"))
}

// Skip records a window that produced no estimate for a reason worth
// surfacing (currently only ill-conditioning; windows below MinObs are a
// normal sampling condition and are not recorded).
type Skip struct {
	Ticker string
	Date   time.Time
	Err    error
}

// FitRolling produces the estimate sequence for one ticker, in increasing
// date order. Dates whose usable sample is below MinObs are skipped
// silently; ill-conditioned windows are skipped and reported.
func FitRolling(ctx context.Context, ticker string, rs *returns.ReturnSeries, cfg Config) ([]models.RegressionEstimate, []Skip, error) {
	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}
	for _, symbol := range []string{ticker, cfg.MarketSymbol, cfg.FxSymbol} {
		if !rs.Has(symbol) {
			return nil, nil, fmt.Errorf("regress: return series has no column for %s", symbol)
		}
	}

	var (
		estimates []models.RegressionEstimate
		skips     []Skip
	)
	n := rs.Len()
	ri := make([]float64, 0, cfg.Window)
	rm := make([]float64, 0, cfg.Window)
	rfx := make([]float64, 0, cfg.Window)

	for t := 0; t < n; t++ {
		if t%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}

		lo := t - cfg.Window + 1
		if lo < 0 {
			lo = 0
		}
		ri, rm, rfx = ri[:0], rm[:0], rfx[:0]
		for i := lo; i <= t; i++ {
			y, ok1 := rs.Return(ticker, i)
			x1, ok2 := rs.Return(cfg.MarketSymbol, i)
			x2, ok3 := rs.Return(cfg.FxSymbol, i)
			if !ok1 || !ok2 || !ok3 {
				// A gap in any of the three series drops the date from the
				// sample; it is never imputed.
				continue
			}
			ri = append(ri, y)
			rm = append(rm, x1)
			rfx = append(rfx, x2)
		}
		if len(ri) < cfg.MinObs {
			continue
		}

		est, err := fitWindow(ticker, rs.Date(t), cfg.Window, ri, rm, rfx)
		if err != nil {
			skips = append(skips, Skip{Ticker: ticker, Date: rs.Date(t), Err: err})
			continue
		}
		estimates = append(estimates, est)
	}
	return estimates, skips, nil
}

// fitWindow solves the OLS normal equations for one window.
func fitWindow(ticker string, date time.Time, window int, y, x1, x2 []float64) (models.RegressionEstimate, error) {
	n := float64(len(y))

	// Accumulate X'X and X'y for the design [1, x1, x2].
	var s1, s2, s11, s22, s12, sy, s1y, s2y float64
	for i := range y {
		s1 += x1[i]
		s2 += x2[i]
		s11 += x1[i] * x1[i]
		s22 += x2[i] * x2[i]
		s12 += x1[i] * x2[i]
		sy += y[i]
		s1y += x1[i] * y[i]
		s2y += x2[i] * y[i]
	}

	a := [3][3]float64{
		{n, s1, s2},
		{s1, s11, s12},
		{s2, s12, s22},
	}
	b := [3]float64{sy, s1y, s2y}

	coef, ok := solve3(a, b)
	if !ok {
		return models.RegressionEstimate{}, &IllConditionedError{Ticker: ticker, Date: date}
	}

	var sse float64
	for i := range y {
		r := y[i] - coef[0] - coef[1]*x1[i] - coef[2]*x2[i]
		sse += r * r
	}
	if sse < 0 {
		sse = 0
	}
	stderr := math.Sqrt(sse / (n - 3))
	if math.IsNaN(stderr) || math.IsInf(stderr, 0) {
		return models.RegressionEstimate{}, &IllConditionedError{Ticker: ticker, Date: date}
	}

	return models.RegressionEstimate{
		Ticker:         ticker,
		Date:           date,
		Window:         window,
		Alpha:          coef[0],
		BetaMarket:     coef[1],
		BetaFX:         coef[2],
		ResidualStdErr: stderr,
		N:              len(y),
	}, nil
}

// solve3 solves a 3x3 system by Gaussian elimination with partial pivoting.
// It reports failure when a pivot collapses relative to the matrix scale,
// which catches exact and near collinearity of the factor columns.
func solve3(a [3][3]float64, b [3]float64) ([3]float64, bool) {
	const relTol = 1e-10

	scale := 0.0
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if v := math.Abs(a[i][j]); v > scale {
				scale = v
			}
		}
	}
	if scale == 0 {
		return [3]float64{}, false
	}

	for col := 0; col < 3; col++ {
		pivot := col
		for row := col + 1; row < 3; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) <= relTol*scale {
			return [3]float64{}, false
		}
		if pivot != col {
			a[pivot], a[col] = a[col], a[pivot]
			b[pivot], b[col] = b[col], b[pivot]
		}
		for row := col + 1; row < 3; row++ {
			f := a[row][col] / a[col][col]
			for k := col; k < 3; k++ {
				a[row][k] -= f * a[col][k]
			}
			b[row] -= f * b[col]
		}
	}

	var x [3]float64
	for i := 2; i >= 0; i-- {
		v := b[i]
		for j := i + 1; j < 3; j++ {
			v -= a[i][j] * x[j]
		}
		x[i] = v / a[i][i]
	}
	for i := range x {
		if math.IsNaN(x[i]) || math.IsInf(x[i], 0) {
			return [3]float64{}, false
		}
	}
	return x, true
}

// AsOf returns the latest estimate dated at or before date, assuming the
// slice is in increasing date order as produced by FitRolling.
func AsOf(estimates []models.RegressionEstimate, date time.Time) (models.RegressionEstimate, bool) {
	d := models.Midnight(date)
	i := sort.Search(len(estimates), func(i int) bool { return estimates[i].Date.After(d) })
	if i == 0 {
		return models.RegressionEstimate{}, false
	}
	return estimates[i-1], true
}
