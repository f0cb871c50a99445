// Package returns converts aligned price levels into log returns. A return
// is defined at date t only when the instrument has a known price at t and at
// some earlier axis date; everything else stays a gap so callers can tell
// "no signal" apart from "zero return".
package returns

import (
	"fmt"
	"math"
	"sort"
	"time"

	"NgxQuant/internal/analytics/align"
	"NgxQuant/internal/domain/models"
)

// InvalidPriceError reports a non-positive or non-finite price, which means
// the upstream feed is corrupt. It is never skipped silently.
type InvalidPriceError struct {
	Symbol string
	Date   time.Time
	Price  float64
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("invalid price %v for %s on %s", e.Price, e.Symbol, e.Date.Format("2006-01-02"))
}

// ReturnSeries holds one optional log return per instrument per axis date.
type ReturnSeries struct {
	dates   []time.Time
	symbols []string
	cols    map[string]*column
}

type column struct {
	vals    []float64
	defined []bool
}

// Len returns the number of dates on the axis.
func (r *ReturnSeries) Len() int { return len(r.dates) }

// Date returns the i-th axis date.
func (r *ReturnSeries) Date(i int) time.Time { return r.dates[i] }

// Dates returns a copy of the axis.
func (r *ReturnSeries) Dates() []time.Time {
	out := make([]time.Time, len(r.dates))
	copy(out, r.dates)
	return out
}

// Symbols returns the instrument symbols in ascending order.
func (r *ReturnSeries) Symbols() []string {
	out := make([]string, len(r.symbols))
	copy(out, r.symbols)
	return out
}

// Has reports whether the series has a column for symbol.
func (r *ReturnSeries) Has(symbol string) bool {
	_, ok := r.cols[symbol]
	return ok
}

// Return returns the log return of symbol at axis position i and whether it
// is defined.
func (r *ReturnSeries) Return(symbol string, i int) (float64, bool) {
	c, ok := r.cols[symbol]
	if !ok || i < 0 || i >= len(c.vals) {
		return 0, false
	}
	if !c.defined[i] {
		return 0, false
	}
	return c.vals[i], true
}

// IndexOf returns the axis position of date, or -1.
func (r *ReturnSeries) IndexOf(date time.Time) int {
	d := models.Midnight(date)
	i := sort.Search(len(r.dates), func(i int) bool { return !r.dates[i].Before(d) })
	if i < len(r.dates) && r.dates[i].Equal(d) {
		return i
	}
	return -1
}

// LogReturns derives the return series of an aligned price series. For
// instrument i at date t the return is ln(p_t / p_prev) where p_prev is the
// price at the nearest earlier axis date with a known price for i.
func LogReturns(s *align.AlignedSeries) (*ReturnSeries, error) {
	out := &ReturnSeries{
		dates:   s.Dates(),
		symbols: s.Symbols(),
		cols:    make(map[string]*column, len(s.Symbols())),
	}
	for _, symbol := range out.symbols {
		c := &column{vals: make([]float64, s.Len()), defined: make([]bool, s.Len())}
		prev := math.NaN()
		for i := 0; i < s.Len(); i++ {
			p, known := s.Price(symbol, i)
			if !known {
				continue
			}
			if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
				return nil, &InvalidPriceError{Symbol: symbol, Date: s.Date(i), Price: p}
			}
			if !math.IsNaN(prev) {
				c.vals[i] = math.Log(p / prev)
				c.defined[i] = true
			}
			prev = p
		}
		out.cols[symbol] = c
	}
	return out, nil
}

// New builds a return series directly from per-symbol values. A nil defined
// mask marks every value as defined. Used by synthetic-data callers; the
// production path goes through LogReturns.
func New(dates []time.Time, values map[string][]float64, defined map[string][]bool) (*ReturnSeries, error) {
	for i := 1; i < len(dates); i++ {
		if !dates[i-1].Before(dates[i]) {
			return nil, fmt.Errorf("returns: date axis not strictly increasing at %d", i)
		}
	}
	out := &ReturnSeries{
		dates: append([]time.Time(nil), dates...),
		cols:  make(map[string]*column, len(values)),
	}
	for symbol, vals := range values {
		if len(vals) != len(dates) {
			return nil, fmt.Errorf("returns: %s has %d values for %d dates", symbol, len(vals), len(dates))
		}
		c := &column{vals: append([]float64(nil), vals...), defined: make([]bool, len(dates))}
		if mask, ok := defined[symbol]; ok {
			if len(mask) != len(dates) {
				return nil, fmt.Errorf("returns: %s has %d mask entries for %d dates", symbol, len(mask), len(dates))
			}
			copy(c.defined, mask)
		} else {
			for i := range c.defined {
				c.defined[i] = true
			}
		}
		out.symbols = append(out.symbols, symbol)
		out.cols[symbol] = c
	}
	sort.Strings(out.symbols)
	return out, nil
}
