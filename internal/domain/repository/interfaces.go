package repository

import (
	"context"
	"time"

	"NgxQuant/internal/domain/models"
)

// BarSink accepts daily bar writes. Ingest middleware implements it so the
// consumer side never depends on the full store surface.
type BarSink interface {
	UpsertBars(ctx context.Context, bars []models.DailyBar) (int, error)
	UpsertFxRates(ctx context.Context, rates []models.DailyBar) (int, error)
}

// BarStore is the analytical store collaborator. Upserts are idempotent:
// re-loading the same vendor export must not duplicate rows, and updates that
// carry only closes must not erase previously known OHLC fields.
type BarStore interface {
	BarSink

	Init(ctx context.Context) error // ensure tables exist, idempotent

	UpsertTickers(ctx context.Context, tickers []models.Ticker) (int, error)

	GetBars(ctx context.Context, symbol string, from, to time.Time) ([]models.DailyBar, error)
	GetFxRates(ctx context.Context, pair string, from, to time.Time) ([]models.DailyBar, error)
	ListSymbols(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (*models.StoreStats, error)

	Health(ctx context.Context) error
	Close() error
}

// Metrics abstracts the Prometheus recorder so analytics and ingest code
// never import the metrics backend directly.
type Metrics interface {
	RecordBarsUpserted(table string, n int)
	RecordError(kind string)
	RecordFitDuration(seconds float64)
	RecordIllConditioned(ticker string)
	RecordBacktestDuration(seconds float64)
	RecordLatency(op string, seconds float64)
}
