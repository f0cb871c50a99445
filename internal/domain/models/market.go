package models

import "time"

// InstrumentKind classifies a price series.
type InstrumentKind string

const (
	KindEquity InstrumentKind = "equity"
	KindIndex  InstrumentKind = "index"
	KindFxPair InstrumentKind = "fx"
)

// Instrument identifies a single price series. Immutable once created.
type Instrument struct {
	Symbol string
	Kind   InstrumentKind
}

func Equity(symbol string) Instrument { return Instrument{Symbol: symbol, Kind: KindEquity} }
func Index(symbol string) Instrument  { return Instrument{Symbol: symbol, Kind: KindIndex} }
func FxPair(pair string) Instrument   { return Instrument{Symbol: pair, Kind: KindFxPair} }

// Ticker is an exchange listing record.
type Ticker struct {
	Symbol    string
	Name      string
	Sector    string
	Board     string
	ISIN      string
	ScrapedAt time.Time
}

// DailyBar is one end-of-day record for an equity, the index, or an FX pair.
// At most one bar exists per (symbol, date). Only the close is guaranteed;
// OHLC/volume/deals depend on the upstream vendor.
type DailyBar struct {
	Symbol    string
	Date      time.Time // UTC midnight, date-only semantics
	Open      *float64
	High      *float64
	Low       *float64
	Close     float64
	Change    *float64
	ChangePct *float64
	Volume    *int64
	Deals     *int64
	Source    string // vendor tag, used for FX rows
	ScrapedAt time.Time
}

// PricePoint is the minimal (symbol, date, close) view the alignment layer
// consumes. Volume is carried through for eligibility filters but never
// participates in return math.
type PricePoint struct {
	Symbol string
	Date   time.Time
	Close  float64
	Volume *int64
}

// Point converts a stored bar into an alignment input.
func (b DailyBar) Point() PricePoint {
	return PricePoint{Symbol: b.Symbol, Date: b.Date, Close: b.Close, Volume: b.Volume}
}

// Day builds a UTC-midnight trading date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Midnight truncates a timestamp to its UTC trading date.
func Midnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// StoreStats summarizes analytical store coverage.
type StoreStats struct {
	Tickers int64
	Bars    int64
	FxRows  int64
	From    *time.Time
	To      *time.Time
	FxFrom  *time.Time
	FxTo    *time.Time
}
