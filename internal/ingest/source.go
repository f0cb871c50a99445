// Package ingest pulls daily EOD updates from an upstream vendor API and
// pushes them through the ingest pipeline into the analytical store.
package ingest

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"NgxQuant/internal/domain/models"
	"NgxQuant/internal/loader"
	xhttp "NgxQuant/pkg/http"
	"NgxQuant/pkg/logger"
)

// MarketDataSource is the swappable daily update source.
type MarketDataSource interface {
	FetchTickers(ctx context.Context) ([]models.Ticker, error)
	FetchRecentBars(ctx context.Context, symbol string) ([]models.DailyBar, error)
}

// APISourceConfig configures the vendor JSON API source.
type APISourceConfig struct {
	BaseURL        string
	Token          string
	RequestDelay   time.Duration // polite delay before each request
	Jitter         time.Duration
	MaxRetries     int
	RequestTimeout time.Duration
}

// APISource fetches EOD data from a JSON vendor API:
// GET {base}/tickers and GET {base}/eod/{symbol}.
type APISource struct {
	client *xhttp.Client
	cfg    APISourceConfig
	log    *logger.Logger
	rng    *rand.Rand
}

func NewAPISource(cfg APISourceConfig, log *logger.Logger) *APISource {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &APISource{
		client: xhttp.NewClient(xhttp.WithTimeout(timeout)),
		cfg:    cfg,
		log:    log,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

type tickerRow struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Sector string `json:"sector"`
	Board  string `json:"board"`
	ISIN   string `json:"isin"`
}

type barRow struct {
	Date      string   `json:"date"`
	Open      *string  `json:"open"`
	High      *string  `json:"high"`
	Low       *string  `json:"low"`
	Close     string   `json:"close"`
	ChangePct *string  `json:"change_pct"`
	Volume    *string  `json:"volume"`
	Deals     *int64   `json:"deals"`
}

func (s *APISource) FetchTickers(ctx context.Context) ([]models.Ticker, error) {
	var rows []tickerRow
	if err := s.get(ctx, s.cfg.BaseURL+"/tickers", &rows); err != nil {
		return nil, fmt.Errorf("ingest: fetch tickers: %w", err)
	}
	now := time.Now().UTC()
	tickers := make([]models.Ticker, 0, len(rows))
	for _, r := range rows {
		symbol := loader.NormalizeSymbol(r.Symbol)
		if symbol == "" {
			continue
		}
		tickers = append(tickers, models.Ticker{
			Symbol:    symbol,
			Name:      r.Name,
			Sector:    r.Sector,
			Board:     r.Board,
			ISIN:      r.ISIN,
			ScrapedAt: now,
		})
	}
	return tickers, nil
}

func (s *APISource) FetchRecentBars(ctx context.Context, symbol string) ([]models.DailyBar, error) {
	var rows []barRow
	url := fmt.Sprintf("%s/eod/%s", s.cfg.BaseURL, symbol)
	if err := s.get(ctx, url, &rows); err != nil {
		return nil, fmt.Errorf("ingest: fetch bars for %s: %w", symbol, err)
	}

	now := time.Now().UTC()
	bars := make([]models.DailyBar, 0, len(rows))
	for _, r := range rows {
		date, ok := loader.ParseDate(r.Date)
		if !ok {
			s.log.Warn("skipping bar with bad date",
				logger.String("symbol", symbol), logger.String("date", r.Date))
			continue
		}
		closePx, ok := loader.ParsePrice(r.Close)
		if !ok || closePx <= 0 {
			s.log.Warn("skipping bar with bad close",
				logger.String("symbol", symbol), logger.String("date", r.Date))
			continue
		}
		bar := models.DailyBar{
			Symbol:    symbol,
			Date:      date,
			Close:     closePx,
			Deals:     r.Deals,
			ScrapedAt: now,
		}
		if r.Open != nil {
			if v, ok := loader.ParsePrice(*r.Open); ok {
				bar.Open = &v
			}
		}
		if r.High != nil {
			if v, ok := loader.ParsePrice(*r.High); ok {
				bar.High = &v
			}
		}
		if r.Low != nil {
			if v, ok := loader.ParsePrice(*r.Low); ok {
				bar.Low = &v
			}
		}
		if r.Volume != nil {
			if v, ok := loader.ParseVolume(*r.Volume); ok {
				bar.Volume = &v
			}
		}
		if r.ChangePct != nil {
			if v, ok := loader.ParsePct(*r.ChangePct); ok {
				bar.ChangePct = &v
			}
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// get fetches with a polite delay and retries transient failures.
func (s *APISource) get(ctx context.Context, url string, dest interface{}) error {
	retries := s.cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := s.politeDelay(ctx, attempt); err != nil {
			return err
		}
		opts := &xhttp.RequestOptions{Method: xhttp.MethodGet, URL: url}
		if s.cfg.Token != "" {
			opts.Headers = map[string]string{"Authorization": "Bearer " + s.cfg.Token}
		}
		if err := s.client.SendAndParse(ctx, opts, dest); err != nil {
			lastErr = err
			s.log.Warn("vendor request failed",
				logger.String("url", url), logger.Int("attempt", attempt+1), logger.Error(err))
			continue
		}
		return nil
	}
	return fmt.Errorf("all retries exhausted for %s: %w", url, lastErr)
}

func (s *APISource) politeDelay(ctx context.Context, attempt int) error {
	delay := s.cfg.RequestDelay
	if s.cfg.Jitter > 0 {
		delay += time.Duration(s.rng.Int63n(int64(s.cfg.Jitter)))
	}
	// back off harder on retries
	delay += time.Duration(attempt) * s.cfg.RequestDelay
	if delay == 0 {
		return nil
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ MarketDataSource = (*APISource)(nil)
