package ingest

import (
	"context"
	"time"

	drepo "NgxQuant/internal/domain/repository"
	"NgxQuant/pkg/logger"
)

// Updater runs one incremental update: refresh the ticker list, then pull
// recent bars for every listed symbol plus the market index and FX pair.
// Failures are per-symbol; one dead ticker page never aborts the sweep.
type Updater struct {
	source  MarketDataSource
	store   drepo.BarStore
	sink    drepo.BarSink
	metrics drepo.Metrics
	log     *logger.Logger

	marketSymbol string
	fxPair       string
}

func NewUpdater(
	source MarketDataSource,
	store drepo.BarStore,
	sink drepo.BarSink,
	metrics drepo.Metrics,
	log *logger.Logger,
	marketSymbol, fxPair string,
) *Updater {
	return &Updater{
		source:       source,
		store:        store,
		sink:         sink,
		metrics:      metrics,
		log:          log,
		marketSymbol: marketSymbol,
		fxPair:       fxPair,
	}
}

// UpdateStats summarizes one sweep.
type UpdateStats struct {
	Tickers  int
	Symbols  int
	Bars     int
	Failures int
	Elapsed  time.Duration
}

func (u *Updater) Run(ctx context.Context) (*UpdateStats, error) {
	start := time.Now()
	stats := &UpdateStats{}

	tickers, err := u.source.FetchTickers(ctx)
	if err != nil {
		// Ticker metadata is nice-to-have; bars still refresh from the
		// stored symbol list.
		u.metrics.RecordError("update_tickers")
		u.log.Warn("ticker list refresh failed", logger.Error(err))
	} else if len(tickers) > 0 {
		n, err := u.store.UpsertTickers(ctx, tickers)
		if err != nil {
			return nil, err
		}
		stats.Tickers = n
	}

	symbols := make([]string, 0, len(tickers)+2)
	if len(tickers) > 0 {
		for _, t := range tickers {
			symbols = append(symbols, t.Symbol)
		}
	} else {
		stored, err := u.store.ListSymbols(ctx)
		if err != nil {
			return nil, err
		}
		symbols = stored
	}
	symbols = append(symbols, u.marketSymbol)

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bars, err := u.source.FetchRecentBars(ctx, symbol)
		if err != nil {
			stats.Failures++
			u.metrics.RecordError("update_bars")
			u.log.Warn("symbol update failed", logger.String("symbol", symbol), logger.Error(err))
			continue
		}
		if len(bars) == 0 {
			continue
		}
		n, err := u.sink.UpsertBars(ctx, bars)
		if err != nil {
			stats.Failures++
			u.log.Warn("symbol upsert failed", logger.String("symbol", symbol), logger.Error(err))
			continue
		}
		u.metrics.RecordBarsUpserted("daily_bars", n)
		stats.Symbols++
		stats.Bars += n
	}

	// FX rates live in their own table.
	if u.fxPair != "" {
		rates, err := u.source.FetchRecentBars(ctx, u.fxPair)
		if err != nil {
			stats.Failures++
			u.metrics.RecordError("update_fx")
			u.log.Warn("fx update failed", logger.String("pair", u.fxPair), logger.Error(err))
		} else if len(rates) > 0 {
			n, err := u.sink.UpsertFxRates(ctx, rates)
			if err != nil {
				return nil, err
			}
			u.metrics.RecordBarsUpserted("fx_rates", n)
			stats.Bars += n
		}
	}

	stats.Elapsed = time.Since(start)
	u.log.Info("update sweep complete",
		logger.Int("tickers", stats.Tickers),
		logger.Int("symbols", stats.Symbols),
		logger.Int("bars", stats.Bars),
		logger.Int("failures", stats.Failures),
		logger.Duration("elapsed", stats.Elapsed))
	return stats, nil
}
