package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"NgxQuant/internal/domain/models"
	domrepo "NgxQuant/internal/domain/repository"
	pkgch "NgxQuant/pkg/clickhouse"
	applogger "NgxQuant/pkg/logger"
)

// ClickHouseBarStore implements BarStore on ReplacingMergeTree tables: an
// upsert is an insert, and the engine keeps the row with the latest
// scraped_at per (symbol, date). Reads always use FINAL so unmerged
// duplicates never surface.
type ClickHouseBarStore struct {
	db *sql.DB
	l  *applogger.Logger

	barsTable    string
	fxTable      string
	tickersTable string
}

// Schema returns the idempotent DDL for the analytical store.
func Schema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.tickers (
            symbol LowCardinality(String),
            name String,
            sector String,
            board String,
            isin String,
            scraped_at DateTime
        ) ENGINE = ReplacingMergeTree(scraped_at) ORDER BY symbol`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.daily_bars (
            symbol LowCardinality(String),
            date Date,
            open Nullable(Float64),
            high Nullable(Float64),
            low Nullable(Float64),
            close Float64,
            change Nullable(Float64),
            change_pct Nullable(Float64),
            volume Nullable(Int64),
            deals Nullable(Int64),
            scraped_at DateTime
        ) ENGINE = ReplacingMergeTree(scraped_at) ORDER BY (symbol, date)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.fx_rates (
            pair LowCardinality(String),
            date Date,
            open Nullable(Float64),
            high Nullable(Float64),
            low Nullable(Float64),
            close Float64,
            change_pct Nullable(Float64),
            source String,
            scraped_at DateTime
        ) ENGINE = ReplacingMergeTree(scraped_at) ORDER BY (pair, date)`, database),
	}
}

// NewClickHouseBarStore creates the ClickHouse-backed store.
func NewClickHouseBarStore(ch *pkgch.Client, database string, l *applogger.Logger) domrepo.BarStore {
	return &ClickHouseBarStore{
		db:           ch.DB(),
		l:            l,
		barsTable:    database + ".daily_bars",
		fxTable:      database + ".fx_rates",
		tickersTable: database + ".tickers",
	}
}

func (s *ClickHouseBarStore) Init(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseBarStore) UpsertTickers(ctx context.Context, tickers []models.Ticker) (int, error) {
	if len(tickers) == 0 {
		return 0, nil
	}
	values := make([]string, 0, len(tickers))
	args := make([]interface{}, 0, len(tickers)*6)
	for _, t := range tickers {
		if t.Symbol == "" {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?)")
		args = append(args, t.Symbol, t.Name, t.Sector, t.Board, t.ISIN, t.ScrapedAt)
	}
	if len(values) == 0 {
		return 0, nil
	}
	q := fmt.Sprintf("INSERT INTO %s (symbol, name, sector, board, isin, scraped_at) VALUES %s",
		s.tickersTable, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return 0, fmt.Errorf("upsert tickers: %w", err)
	}
	return len(values), nil
}

// UpsertBars writes equity bars, preserving previously known OHLC fields when
// the incoming row carries only a close (the daily update feed does). This
// mirrors the COALESCE merge the bulk loader relies on: re-running the same
// export is idempotent.
func (s *ClickHouseBarStore) UpsertBars(ctx context.Context, bars []models.DailyBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	merged, err := s.mergeExistingBars(ctx, bars)
	if err != nil {
		return 0, err
	}

	const chunkSize = 2000
	total := 0
	for start := 0; start < len(merged); start += chunkSize {
		end := start + chunkSize
		if end > len(merged) {
			end = len(merged)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*11)
		for _, b := range merged[start:end] {
			if b.Symbol == "" || b.Date.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				b.Symbol, b.Date, b.Open, b.High, b.Low, b.Close,
				b.Change, b.ChangePct, b.Volume, b.Deals, b.ScrapedAt)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf(
			"INSERT INTO %s (symbol, date, open, high, low, close, change, change_pct, volume, deals, scraped_at) VALUES %s",
			s.barsTable, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return total, fmt.Errorf("insert bars: %w", err)
		}
		total += len(values)
	}
	return total, nil
}

// mergeExistingBars fills nil optional fields from the stored row so a
// close-only update does not erase vendor OHLC history.
func (s *ClickHouseBarStore) mergeExistingBars(ctx context.Context, bars []models.DailyBar) ([]models.DailyBar, error) {
	symbols := make(map[string]bool)
	minDate, maxDate := bars[0].Date, bars[0].Date
	needsMerge := false
	for _, b := range bars {
		symbols[b.Symbol] = true
		if b.Date.Before(minDate) {
			minDate = b.Date
		}
		if b.Date.After(maxDate) {
			maxDate = b.Date
		}
		if b.Open == nil || b.High == nil || b.Low == nil || b.Volume == nil {
			needsMerge = true
		}
	}
	if !needsMerge {
		return bars, nil
	}

	list := make([]string, 0, len(symbols))
	args := make([]interface{}, 0, len(symbols)+2)
	for sym := range symbols {
		list = append(list, "?")
		args = append(args, sym)
	}
	args = append(args, minDate, maxDate)

	q := fmt.Sprintf(`SELECT symbol, date, open, high, low, change, change_pct, volume, deals
        FROM %s FINAL WHERE symbol IN (%s) AND date >= ? AND date <= ?`,
		s.barsTable, strings.Join(list, ","))
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("merge lookup: %w", err)
	}
	defer rows.Close()

	type key struct {
		symbol string
		date   time.Time
	}
	existing := make(map[key]models.DailyBar)
	for rows.Next() {
		var b models.DailyBar
		var d time.Time
		if err := rows.Scan(&b.Symbol, &d, &b.Open, &b.High, &b.Low, &b.Change, &b.ChangePct, &b.Volume, &b.Deals); err != nil {
			return nil, fmt.Errorf("merge scan: %w", err)
		}
		b.Date = models.Midnight(d)
		existing[key{b.Symbol, b.Date}] = b
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("merge rows: %w", err)
	}

	out := make([]models.DailyBar, len(bars))
	copy(out, bars)
	for i := range out {
		prev, ok := existing[key{out[i].Symbol, models.Midnight(out[i].Date)}]
		if !ok {
			continue
		}
		if out[i].Open == nil {
			out[i].Open = prev.Open
		}
		if out[i].High == nil {
			out[i].High = prev.High
		}
		if out[i].Low == nil {
			out[i].Low = prev.Low
		}
		if out[i].Change == nil {
			out[i].Change = prev.Change
		}
		if out[i].ChangePct == nil {
			out[i].ChangePct = prev.ChangePct
		}
		if out[i].Volume == nil {
			out[i].Volume = prev.Volume
		}
		if out[i].Deals == nil {
			out[i].Deals = prev.Deals
		}
	}
	return out, nil
}

func (s *ClickHouseBarStore) UpsertFxRates(ctx context.Context, rates []models.DailyBar) (int, error) {
	if len(rates) == 0 {
		return 0, nil
	}
	values := make([]string, 0, len(rates))
	args := make([]interface{}, 0, len(rates)*9)
	for _, r := range rates {
		if r.Symbol == "" || r.Date.IsZero() {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			r.Symbol, r.Date, r.Open, r.High, r.Low, r.Close, r.ChangePct, r.Source, r.ScrapedAt)
	}
	if len(values) == 0 {
		return 0, nil
	}
	q := fmt.Sprintf(
		"INSERT INTO %s (pair, date, open, high, low, close, change_pct, source, scraped_at) VALUES %s",
		s.fxTable, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return 0, fmt.Errorf("insert fx rates: %w", err)
	}
	return len(values), nil
}

func (s *ClickHouseBarStore) GetBars(ctx context.Context, symbol string, from, to time.Time) ([]models.DailyBar, error) {
	q := fmt.Sprintf(`SELECT symbol, date, open, high, low, close, change, change_pct, volume, deals, scraped_at
        FROM %s FINAL WHERE symbol = ? AND date >= ? AND date <= ? ORDER BY date ASC`, s.barsTable)
	rows, err := s.db.QueryContext(ctx, q, symbol, from, to)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse get_bars query error",
				applogger.String("symbol", symbol), applogger.Error(err))
		}
		return nil, fmt.Errorf("get bars %s: %w", symbol, err)
	}
	defer rows.Close()

	out := make([]models.DailyBar, 0, 512)
	for rows.Next() {
		var b models.DailyBar
		var d time.Time
		if err := rows.Scan(&b.Symbol, &d, &b.Open, &b.High, &b.Low, &b.Close,
			&b.Change, &b.ChangePct, &b.Volume, &b.Deals, &b.ScrapedAt); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Date = models.Midnight(d)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *ClickHouseBarStore) GetFxRates(ctx context.Context, pair string, from, to time.Time) ([]models.DailyBar, error) {
	q := fmt.Sprintf(`SELECT pair, date, open, high, low, close, change_pct, source, scraped_at
        FROM %s FINAL WHERE pair = ? AND date >= ? AND date <= ? ORDER BY date ASC`, s.fxTable)
	rows, err := s.db.QueryContext(ctx, q, pair, from, to)
	if err != nil {
		return nil, fmt.Errorf("get fx rates %s: %w", pair, err)
	}
	defer rows.Close()

	out := make([]models.DailyBar, 0, 512)
	for rows.Next() {
		var b models.DailyBar
		var d time.Time
		if err := rows.Scan(&b.Symbol, &d, &b.Open, &b.High, &b.Low, &b.Close,
			&b.ChangePct, &b.Source, &b.ScrapedAt); err != nil {
			return nil, fmt.Errorf("scan fx rate: %w", err)
		}
		b.Date = models.Midnight(d)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *ClickHouseBarStore) ListSymbols(ctx context.Context) ([]string, error) {
	q := fmt.Sprintf("SELECT DISTINCT symbol FROM %s ORDER BY symbol", s.barsTable)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

func (s *ClickHouseBarStore) Stats(ctx context.Context) (*models.StoreStats, error) {
	stats := &models.StoreStats{}

	q := fmt.Sprintf(`SELECT count(), uniqExact(symbol), min(date), max(date) FROM %s FINAL`, s.barsTable)
	var minD, maxD sql.NullTime
	if err := s.db.QueryRowContext(ctx, q).Scan(&stats.Bars, &stats.Tickers, &minD, &maxD); err != nil {
		return nil, fmt.Errorf("bar stats: %w", err)
	}
	if stats.Bars > 0 {
		from, to := models.Midnight(minD.Time), models.Midnight(maxD.Time)
		stats.From, stats.To = &from, &to
	}

	q = fmt.Sprintf(`SELECT count(), min(date), max(date) FROM %s FINAL`, s.fxTable)
	if err := s.db.QueryRowContext(ctx, q).Scan(&stats.FxRows, &minD, &maxD); err != nil {
		return nil, fmt.Errorf("fx stats: %w", err)
	}
	if stats.FxRows > 0 {
		from, to := models.Midnight(minD.Time), models.Midnight(maxD.Time)
		stats.FxFrom, stats.FxTo = &from, &to
	}
	return stats, nil
}

func (s *ClickHouseBarStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseBarStore) Close() error {
	return nil // connection pool is owned by pkg/clickhouse
}
