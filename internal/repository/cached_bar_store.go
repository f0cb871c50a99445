package repository

import (
	"context"
	"fmt"
	"time"

	"NgxQuant/internal/domain/models"
	domrepo "NgxQuant/internal/domain/repository"
	pkgcache "NgxQuant/pkg/cache"
)

// CachedBarStore is a read-through decorator: bar-range queries hit the
// cache first and fall back to the inner store. Writes pass through and
// invalidate the affected symbol's entries, so researchers re-running a
// backtest after a daily update never see stale ranges.
type CachedBarStore struct {
	inner domrepo.BarStore
	cache pkgcache.Service
	ttl   time.Duration
}

func NewCachedBarStore(inner domrepo.BarStore, cache pkgcache.Service, ttl time.Duration) domrepo.BarStore {
	return &CachedBarStore{inner: inner, cache: cache, ttl: ttl}
}

func barsKey(symbol string, from, to time.Time) string {
	return pkgcache.GenerateKeyWithParams("bars", symbol, from.Format("2006-01-02"), to.Format("2006-01-02"))
}

func fxKey(pair string, from, to time.Time) string {
	return pkgcache.GenerateKeyWithParams("fx", pair, from.Format("2006-01-02"), to.Format("2006-01-02"))
}

func (s *CachedBarStore) GetBars(ctx context.Context, symbol string, from, to time.Time) ([]models.DailyBar, error) {
	key := barsKey(symbol, from, to)
	var cached []models.DailyBar
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}
	bars, err := s.inner.GetBars(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, bars, s.ttl) // cache failures never fail reads
	return bars, nil
}

func (s *CachedBarStore) GetFxRates(ctx context.Context, pair string, from, to time.Time) ([]models.DailyBar, error) {
	key := fxKey(pair, from, to)
	var cached []models.DailyBar
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}
	rates, err := s.inner.GetFxRates(ctx, pair, from, to)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, rates, s.ttl)
	return rates, nil
}

func (s *CachedBarStore) UpsertBars(ctx context.Context, bars []models.DailyBar) (int, error) {
	n, err := s.inner.UpsertBars(ctx, bars)
	if err != nil {
		return n, err
	}
	seen := make(map[string]bool)
	for _, b := range bars {
		if !seen[b.Symbol] {
			seen[b.Symbol] = true
			_ = s.cache.DeleteByPattern(ctx, pkgcache.BuildPattern(fmt.Sprintf("bars:%s:", b.Symbol)))
		}
	}
	return n, nil
}

func (s *CachedBarStore) UpsertFxRates(ctx context.Context, rates []models.DailyBar) (int, error) {
	n, err := s.inner.UpsertFxRates(ctx, rates)
	if err != nil {
		return n, err
	}
	seen := make(map[string]bool)
	for _, r := range rates {
		if !seen[r.Symbol] {
			seen[r.Symbol] = true
			_ = s.cache.DeleteByPattern(ctx, pkgcache.BuildPattern(fmt.Sprintf("fx:%s:", r.Symbol)))
		}
	}
	return n, nil
}

func (s *CachedBarStore) Init(ctx context.Context) error { return s.inner.Init(ctx) }

func (s *CachedBarStore) UpsertTickers(ctx context.Context, tickers []models.Ticker) (int, error) {
	return s.inner.UpsertTickers(ctx, tickers)
}

func (s *CachedBarStore) ListSymbols(ctx context.Context) ([]string, error) {
	return s.inner.ListSymbols(ctx)
}

func (s *CachedBarStore) Stats(ctx context.Context) (*models.StoreStats, error) {
	return s.inner.Stats(ctx)
}

func (s *CachedBarStore) Health(ctx context.Context) error { return s.inner.Health(ctx) }

func (s *CachedBarStore) Close() error { return s.inner.Close() }
