package usecase

import (
	"context"
	"fmt"
	"time"

	drepo "NgxQuant/internal/domain/repository"
	"NgxQuant/internal/loader"
	"NgxQuant/pkg/logger"
)

// CSVImporter bulk-loads vendor CSV exports into the analytical store, one
// file per instrument.
type CSVImporter struct {
	loader  *loader.Loader
	store   drepo.BarStore
	metrics drepo.Metrics
	log     *logger.Logger
}

func NewCSVImporter(l *loader.Loader, store drepo.BarStore, metrics drepo.Metrics, log *logger.Logger) *CSVImporter {
	return &CSVImporter{loader: l, store: store, metrics: metrics, log: log}
}

// ImportSummary reports one bulk load.
type ImportSummary struct {
	Files   int
	Bars    int
	Skipped []string // files that failed to load
}

// ImportDir loads every .csv under dir as an equity/index series. A file
// that fails to parse is skipped and reported; the import carries on.
func (i *CSVImporter) ImportDir(ctx context.Context, dir string) (*ImportSummary, error) {
	files, err := loader.DiscoverFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("import: no csv files under %s", dir)
	}

	summary := &ImportSummary{}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		symbol, bars, err := i.loader.LoadBars(path)
		if err != nil {
			i.metrics.RecordError("csv_load")
			i.log.Warn("skipping csv file", logger.String("file", path), logger.Error(err))
			summary.Skipped = append(summary.Skipped, path)
			continue
		}
		start := time.Now()
		n, err := i.store.UpsertBars(ctx, bars)
		if err != nil {
			return nil, fmt.Errorf("import: store %s: %w", symbol, err)
		}
		i.metrics.RecordBarsUpserted("daily_bars", n)
		i.metrics.RecordLatency("bulk_upsert_seconds", time.Since(start).Seconds())
		summary.Files++
		summary.Bars += n
	}
	i.log.Info("csv import complete",
		logger.Int("files", summary.Files),
		logger.Int("bars", summary.Bars),
		logger.Int("skipped", len(summary.Skipped)))
	return summary, nil
}

// ImportFx loads one FX CSV for the given pair, tagging rows with source.
func (i *CSVImporter) ImportFx(ctx context.Context, path, pair, source string) (int, error) {
	rates, err := i.loader.LoadFxRates(path, pair, source)
	if err != nil {
		return 0, err
	}
	n, err := i.store.UpsertFxRates(ctx, rates)
	if err != nil {
		return 0, fmt.Errorf("import: store fx %s: %w", pair, err)
	}
	i.metrics.RecordBarsUpserted("fx_rates", n)
	i.log.Info("fx import complete", logger.String("pair", pair), logger.Int("rows", n))
	return n, nil
}
