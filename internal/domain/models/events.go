package models

import (
	"fmt"
	"time"
)

// BarEvent is the wire schema of one end-of-day update on the bars topic.
// Kind selects the table: "fx" rows go to fx_rates, everything else to
// daily_bars.
type BarEvent struct {
	Symbol    string   `json:"symbol"`
	Date      string   `json:"date"` // 2006-01-02
	Close     float64  `json:"close"`
	Open      *float64 `json:"open,omitempty"`
	High      *float64 `json:"high,omitempty"`
	Low       *float64 `json:"low,omitempty"`
	Volume    *int64   `json:"volume,omitempty"`
	ChangePct *float64 `json:"change_pct,omitempty"`
	Kind      string   `json:"kind,omitempty"`
	Source    string   `json:"source,omitempty"`
}

// NewBarEvent converts a stored bar into its wire form.
func NewBarEvent(b DailyBar, kind string) BarEvent {
	return BarEvent{
		Symbol:    b.Symbol,
		Date:      b.Date.Format("2006-01-02"),
		Close:     b.Close,
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Volume:    b.Volume,
		ChangePct: b.ChangePct,
		Kind:      kind,
		Source:    b.Source,
	}
}

// Bar validates the event and converts it back into a storable bar.
func (e BarEvent) Bar() (DailyBar, error) {
	date, err := time.Parse("2006-01-02", e.Date)
	if err != nil {
		return DailyBar{}, fmt.Errorf("bar event date %q: %w", e.Date, err)
	}
	if e.Symbol == "" || e.Close <= 0 {
		return DailyBar{}, fmt.Errorf("bar event for %q on %s: invalid close %v", e.Symbol, e.Date, e.Close)
	}
	return DailyBar{
		Symbol:    e.Symbol,
		Date:      Midnight(date),
		Open:      e.Open,
		High:      e.High,
		Low:       e.Low,
		Close:     e.Close,
		ChangePct: e.ChangePct,
		Volume:    e.Volume,
		Source:    e.Source,
		ScrapedAt: time.Now().UTC(),
	}, nil
}
