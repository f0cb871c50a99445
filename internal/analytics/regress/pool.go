package regress

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"NgxQuant/internal/analytics/returns"
	"NgxQuant/internal/domain/models"
)

// FitAll fans the per-ticker fits out over a bounded worker pool. Tickers
// are independent given an aligned return series, so the only coordination
// is the deterministic merge at the end: estimates keyed by ticker, skips
// ordered by (ticker, date). Cancelling ctx stops the pool cooperatively.
func FitAll(ctx context.Context, tickers []string, rs *returns.ReturnSeries, cfg Config, workers int) (map[string][]models.RegressionEstimate, []Skip, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	estimates := make(map[string][]models.RegressionEstimate, len(tickers))
	var skips []Skip

	for _, ticker := range tickers {
		g.Go(func() error {
			ests, sk, err := FitRolling(ctx, ticker, rs, cfg)
			if err != nil {
				return err
			}
			mu.Lock()
			estimates[ticker] = ests
			skips = append(skips, sk...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sort.Slice(skips, func(i, j int) bool {
		if skips[i].Ticker != skips[j].Ticker {
			return skips[i].Ticker < skips[j].Ticker
		}
		return skips[i].Date.Before(skips[j].Date)
	})
	return estimates, skips, nil
}
