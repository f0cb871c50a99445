package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"NgxQuant/internal/analytics/align"
	"NgxQuant/internal/analytics/backtest"
	"NgxQuant/internal/analytics/regress"
	"NgxQuant/internal/analytics/returns"
	"NgxQuant/internal/analytics/rotate"
	"NgxQuant/internal/domain/models"
	drepo "NgxQuant/internal/domain/repository"
	"NgxQuant/pkg/logger"
)

// BacktestRunner wires storage to the analytics pipeline: load bars, align
// calendars, compute log returns, fit rolling regressions, then walk the
// rotation strategy forward. It is stateless; concurrent runs are safe.
type BacktestRunner struct {
	store        drepo.BarStore
	metrics      drepo.Metrics
	log          *logger.Logger
	marketSymbol string
	fxPair       string
	workers      int
}

func NewBacktestRunner(
	store drepo.BarStore,
	metrics drepo.Metrics,
	log *logger.Logger,
	marketSymbol, fxPair string,
	workers int,
) *BacktestRunner {
	return &BacktestRunner{
		store:        store,
		metrics:      metrics,
		log:          log,
		marketSymbol: marketSymbol,
		fxPair:       fxPair,
		workers:      workers,
	}
}

// RunResult pairs the backtest output with the estimation skips so callers
// can surface ill-conditioned windows without failing the run.
type RunResult struct {
	Result  *backtest.Result
	Skips   []regress.Skip
	Dropped []string // tickers excluded for data-integrity reasons
}

// Run executes one walk-forward backtest over the requested date range.
// Rebalances happen on month-end trading dates of the aligned axis. Tickers
// whose stored history contains a non-positive or non-finite close are
// dropped and reported, never silently repaired; a corrupt market index or
// FX series fails the whole run.
func (r *BacktestRunner) Run(ctx context.Context, req models.BacktestRequest, regimes map[time.Time]string) (*RunResult, error) {
	from, to, err := parseRange(req.From, req.To)
	if err != nil {
		return nil, err
	}
	if len(req.Tickers) == 0 {
		return nil, fmt.Errorf("backtest: no tickers requested")
	}

	series := make(map[string][]models.PricePoint, len(req.Tickers)+2)
	var kept, dropped []string
	for _, ticker := range req.Tickers {
		bars, err := r.store.GetBars(ctx, ticker, from, to)
		if err != nil {
			return nil, fmt.Errorf("backtest: load %s: %w", ticker, err)
		}
		if bad, ok := firstInvalidClose(bars); ok {
			r.metrics.RecordError("invalid_price")
			r.log.Warn("dropping ticker with corrupt close",
				logger.String("ticker", ticker),
				logger.String("date", bad.Date.Format("2006-01-02")),
				logger.Any("close", bad.Close))
			dropped = append(dropped, ticker)
			continue
		}
		series[ticker] = toPoints(bars)
		kept = append(kept, ticker)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("backtest: every requested ticker was dropped for data integrity")
	}

	market, err := r.store.GetBars(ctx, r.marketSymbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("backtest: load market index %s: %w", r.marketSymbol, err)
	}
	if bad, ok := firstInvalidClose(market); ok {
		return nil, &returns.InvalidPriceError{Symbol: r.marketSymbol, Date: bad.Date, Price: bad.Close}
	}
	fx, err := r.store.GetFxRates(ctx, r.fxPair, from, to)
	if err != nil {
		return nil, fmt.Errorf("backtest: load fx pair %s: %w", r.fxPair, err)
	}
	if bad, ok := firstInvalidClose(fx); ok {
		return nil, &returns.InvalidPriceError{Symbol: r.fxPair, Date: bad.Date, Price: bad.Close}
	}
	series[r.marketSymbol] = toPoints(market)
	series[r.fxPair] = toPoints(fx)

	aligned, err := align.Align(series, from, to, alignOptions(req))
	if err != nil {
		return nil, err
	}
	rs, err := returns.LogReturns(aligned)
	if err != nil {
		return nil, err
	}

	fitCfg := regress.Config{
		MarketSymbol: r.marketSymbol,
		FxSymbol:     r.fxPair,
		Window:       req.Window,
		MinObs:       req.MinObs,
	}
	fitStart := time.Now()
	estimates, skips, err := regress.FitAll(ctx, kept, rs, fitCfg, r.workers)
	r.metrics.RecordFitDuration(time.Since(fitStart).Seconds())
	if err != nil {
		return nil, err
	}
	for _, s := range skips {
		r.metrics.RecordIllConditioned(s.Ticker)
		r.log.Warn("ill-conditioned regression window",
			logger.String("ticker", s.Ticker),
			logger.String("date", s.Date.Format("2006-01-02")))
	}

	btStart := time.Now()
	result, err := backtest.Run(ctx, backtest.Input{
		Returns:        rs,
		Tickers:        kept,
		Estimates:      estimates,
		RebalanceDates: backtest.MonthEnds(rs.Dates()),
		Regimes:        regimes,
	}, backtest.Config{
		TopN:           req.TopN,
		Eligibility:    rotate.Eligibility{MaxResidualStdErr: req.ResidualCeil},
		RiskFreeRate:   req.RiskFreeRate,
		PeriodsPerYear: req.PeriodsPerYear,
	})
	r.metrics.RecordBacktestDuration(time.Since(btStart).Seconds())
	if err != nil {
		return nil, err
	}

	r.log.Info("backtest complete",
		logger.Int("tickers", len(kept)),
		logger.Int("dropped", len(dropped)),
		logger.Int("rebalances", len(result.Snapshots)),
		logger.Int("periods", result.Report.Periods))
	return &RunResult{Result: result, Skips: skips, Dropped: dropped}, nil
}

// RegressionHistory returns the rolling estimates for a single ticker over
// the requested range, for inspection and audit.
func (r *BacktestRunner) RegressionHistory(ctx context.Context, req models.RegressionHistoryRequest) ([]models.RegressionEstimate, error) {
	from, to, err := parseRange(req.From, req.To)
	if err != nil {
		return nil, err
	}
	ticker := req.Ticker

	bars, err := r.store.GetBars(ctx, ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("history: load %s: %w", ticker, err)
	}
	if bad, ok := firstInvalidClose(bars); ok {
		return nil, &returns.InvalidPriceError{Symbol: ticker, Date: bad.Date, Price: bad.Close}
	}
	market, err := r.store.GetBars(ctx, r.marketSymbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("history: load market index %s: %w", r.marketSymbol, err)
	}
	fx, err := r.store.GetFxRates(ctx, r.fxPair, from, to)
	if err != nil {
		return nil, fmt.Errorf("history: load fx pair %s: %w", r.fxPair, err)
	}

	aligned, err := align.Align(map[string][]models.PricePoint{
		ticker:         toPoints(bars),
		r.marketSymbol: toPoints(market),
		r.fxPair:       toPoints(fx),
	}, from, to, align.Options{Axis: align.AxisUnion, Fill: align.NoFill})
	if err != nil {
		return nil, err
	}
	rs, err := returns.LogReturns(aligned)
	if err != nil {
		return nil, err
	}

	estimates, skips, err := regress.FitRolling(ctx, ticker, rs, regress.Config{
		MarketSymbol: r.marketSymbol,
		FxSymbol:     r.fxPair,
		Window:       req.Window,
		MinObs:       req.MinObs,
	})
	if err != nil {
		return nil, err
	}
	for _, s := range skips {
		r.metrics.RecordIllConditioned(s.Ticker)
	}
	return estimates, nil
}

func parseRange(from, to string) (time.Time, time.Time, error) {
	f, err := time.Parse("2006-01-02", from)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad from date %q: %w", from, err)
	}
	t, err := time.Parse("2006-01-02", to)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad to date %q: %w", to, err)
	}
	return models.Midnight(f), models.Midnight(t), nil
}

func alignOptions(req models.BacktestRequest) align.Options {
	opts := align.Options{Axis: align.AxisUnion}
	switch req.FillPolicy {
	case "forward":
		opts.Fill = align.ForwardFill
		opts.MaxGap = req.MaxGap
	case "fail":
		opts.Fill = align.FailOnGap
		opts.Tolerance = req.MaxGap
	default:
		opts.Fill = align.NoFill
	}
	return opts
}

func toPoints(bars []models.DailyBar) []models.PricePoint {
	points := make([]models.PricePoint, len(bars))
	for i, b := range bars {
		points[i] = b.Point()
	}
	return points
}

func firstInvalidClose(bars []models.DailyBar) (models.DailyBar, bool) {
	for _, b := range bars {
		if !(b.Close > 0) || math.IsInf(b.Close, 0) || math.IsNaN(b.Close) {
			return b, true
		}
	}
	return models.DailyBar{}, false
}
