// Package align merges per-instrument daily price series onto a shared
// trading-date axis. NGX equities, the ASI index and the USD/NGN fix trade on
// different calendars, so the axis is configurable between the union and the
// intersection of the native dates, and the missing-data policy is always
// explicit. Zero-filling is never done: a zero price would corrupt every
// downstream log return.
package align

import (
	"fmt"
	"math"
	"sort"
	"time"

	"NgxQuant/internal/domain/models"
)

// Axis selects how the shared date axis is built.
type Axis int

const (
	// AxisUnion uses every date on which at least one instrument traded.
	AxisUnion Axis = iota
	// AxisIntersection uses only dates on which every instrument traded.
	AxisIntersection
)

// Fill selects the missing-data policy for dates an instrument did not trade.
type Fill int

const (
	// NoFill leaves absent prices absent; downstream treats them as gaps.
	NoFill Fill = iota
	// ForwardFill carries the last known price across a gap of at most
	// Options.MaxGap consecutive axis dates. Longer gaps fail alignment.
	ForwardFill
	// FailOnGap aborts alignment when an instrument is missing on more than
	// Options.Tolerance axis dates.
	FailOnGap
)

// Options configures one alignment call. The zero value is union axis with
// no filling.
type Options struct {
	Axis      Axis
	Fill      Fill
	MaxGap    int // ForwardFill only
	Tolerance int // FailOnGap only
}

// AlignedSeries maps a strictly increasing sequence of trading dates to an
// optional price per instrument. Absent means the instrument did not trade
// (or data is missing) on that date.
type AlignedSeries struct {
	dates   []time.Time
	symbols []string
	cols    map[string]*column
}

type column struct {
	vals  []float64
	known []bool
}

// Len returns the number of dates on the shared axis.
func (s *AlignedSeries) Len() int { return len(s.dates) }

// Date returns the i-th axis date.
func (s *AlignedSeries) Date(i int) time.Time { return s.dates[i] }

// Dates returns a copy of the shared axis.
func (s *AlignedSeries) Dates() []time.Time {
	out := make([]time.Time, len(s.dates))
	copy(out, s.dates)
	return out
}

// Symbols returns the instrument symbols in ascending order.
func (s *AlignedSeries) Symbols() []string {
	out := make([]string, len(s.symbols))
	copy(out, s.symbols)
	return out
}

// Has reports whether the series contains a column for symbol.
func (s *AlignedSeries) Has(symbol string) bool {
	_, ok := s.cols[symbol]
	return ok
}

// Price returns the price of symbol at axis position i and whether it is known.
func (s *AlignedSeries) Price(symbol string, i int) (float64, bool) {
	c, ok := s.cols[symbol]
	if !ok || i < 0 || i >= len(c.vals) {
		return 0, false
	}
	if !c.known[i] {
		return 0, false
	}
	return c.vals[i], true
}

// InsufficientDataError reports that alignment could not satisfy the
// requested range for one instrument.
type InsufficientDataError struct {
	Symbol string
	From   time.Time
	To     time.Time
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s in [%s, %s]: %s",
		e.Symbol, e.From.Format("2006-01-02"), e.To.Format("2006-01-02"), e.Reason)
}

// Align builds the shared-axis view of the given per-symbol price points,
// restricted to [from, to]. Every symbol must contribute at least one point
// inside the range; duplicated (symbol, date) pairs are a data-integrity
// error from the ingestion side and fail the call.
func Align(series map[string][]models.PricePoint, from, to time.Time, opts Options) (*AlignedSeries, error) {
	if from.After(to) {
		return nil, fmt.Errorf("align: from %s after to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("align: no instruments requested")
	}

	from = models.Midnight(from)
	to = models.Midnight(to)

	symbols := make([]string, 0, len(series))
	bySymbol := make(map[string]map[time.Time]float64, len(series))
	for symbol, points := range series {
		prices := make(map[time.Time]float64)
		for _, p := range points {
			d := models.Midnight(p.Date)
			if d.Before(from) || d.After(to) {
				continue
			}
			if _, dup := prices[d]; dup {
				return nil, fmt.Errorf("align: duplicate point for %s on %s", symbol, d.Format("2006-01-02"))
			}
			prices[d] = p.Close
		}
		if len(prices) == 0 {
			return nil, &InsufficientDataError{Symbol: symbol, From: from, To: to, Reason: "no observations in range"}
		}
		symbols = append(symbols, symbol)
		bySymbol[symbol] = prices
	}
	sort.Strings(symbols)

	dates := buildAxis(symbols, bySymbol, opts.Axis)
	if len(dates) == 0 {
		return nil, &InsufficientDataError{From: from, To: to, Reason: "empty shared axis"}
	}

	out := &AlignedSeries{dates: dates, symbols: symbols, cols: make(map[string]*column, len(symbols))}
	for _, symbol := range symbols {
		c := &column{vals: make([]float64, len(dates)), known: make([]bool, len(dates))}
		for i, d := range dates {
			if v, ok := bySymbol[symbol][d]; ok {
				c.vals[i] = v
				c.known[i] = true
			}
		}
		out.cols[symbol] = c
	}

	if err := applyFill(out, from, to, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func buildAxis(symbols []string, bySymbol map[string]map[time.Time]float64, axis Axis) []time.Time {
	seen := make(map[time.Time]int)
	for _, symbol := range symbols {
		for d := range bySymbol[symbol] {
			seen[d]++
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for d, n := range seen {
		if axis == AxisIntersection && n != len(symbols) {
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

func applyFill(s *AlignedSeries, from, to time.Time, opts Options) error {
	switch opts.Fill {
	case NoFill:
		return nil

	case ForwardFill:
		for _, symbol := range s.symbols {
			c := s.cols[symbol]
			last := math.NaN()
			run := 0
			for i := range s.dates {
				if c.known[i] {
					last = c.vals[i]
					run = 0
					continue
				}
				if math.IsNaN(last) {
					// Nothing to carry before the first observation.
					continue
				}
				run++
				if run > opts.MaxGap {
					return &InsufficientDataError{
						Symbol: symbol, From: from, To: to,
						Reason: fmt.Sprintf("gap exceeds forward-fill limit of %d dates", opts.MaxGap),
					}
				}
				c.vals[i] = last
				c.known[i] = true
			}
		}
		return nil

	case FailOnGap:
		for _, symbol := range s.symbols {
			c := s.cols[symbol]
			missing := 0
			for i := range s.dates {
				if !c.known[i] {
					missing++
				}
			}
			if missing > opts.Tolerance {
				return &InsufficientDataError{
					Symbol: symbol, From: from, To: to,
					Reason: fmt.Sprintf("%d missing dates exceed tolerance of %d", missing, opts.Tolerance),
				}
			}
		}
		return nil

	default:
		return fmt.Errorf("align: unknown fill policy %d", opts.Fill)
	}
}
