package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"NgxQuant/internal/domain/models"
)

type captureSink struct {
	bars []models.DailyBar
	fx   []models.DailyBar
}

func (s *captureSink) UpsertBars(_ context.Context, bars []models.DailyBar) (int, error) {
	s.bars = append(s.bars, bars...)
	return len(bars), nil
}

func (s *captureSink) UpsertFxRates(_ context.Context, rates []models.DailyBar) (int, error) {
	s.fx = append(s.fx, rates...)
	return len(rates), nil
}

func TestKafkaBarsHandlerRoutesByKind(t *testing.T) {
	sink := &captureSink{}
	h := NewKafkaBarsHandler("bars.daily", sink, &fakeMetrics{errors: map[string]int{}})

	equity, _ := json.Marshal(models.BarEvent{Symbol: "GTCO", Date: "2024-06-10", Close: 45.2})
	if err := h.Handle(context.Background(), equity); err != nil {
		t.Fatalf("equity event: %v", err)
	}
	fx, _ := json.Marshal(models.BarEvent{Symbol: "USDNGN", Date: "2024-06-10", Close: 1480.5, Kind: "fx", Source: "cbn"})
	if err := h.Handle(context.Background(), fx); err != nil {
		t.Fatalf("fx event: %v", err)
	}

	if len(sink.bars) != 1 || sink.bars[0].Symbol != "GTCO" {
		t.Fatalf("daily_bars got %+v", sink.bars)
	}
	if len(sink.fx) != 1 || sink.fx[0].Source != "cbn" {
		t.Fatalf("fx_rates got %+v", sink.fx)
	}
	want := models.Day(2024, time.June, 10)
	if !sink.bars[0].Date.Equal(want) {
		t.Fatalf("date = %v, want %v", sink.bars[0].Date, want)
	}
}

func TestKafkaBarsHandlerRejectsBadEvents(t *testing.T) {
	sink := &captureSink{}
	m := &fakeMetrics{errors: map[string]int{}}
	h := NewKafkaBarsHandler("bars.daily", sink, m)

	cases := [][]byte{
		[]byte(`{not json`),
		[]byte(`{"symbol":"GTCO","date":"10/06/2024","close":45.2}`),
		[]byte(`{"symbol":"GTCO","date":"2024-06-10","close":0}`),
		[]byte(`{"symbol":"","date":"2024-06-10","close":45.2}`),
	}
	for i, b := range cases {
		if err := h.Handle(context.Background(), b); err == nil {
			t.Fatalf("case %d accepted", i)
		}
	}
	if len(sink.bars)+len(sink.fx) != 0 {
		t.Fatalf("bad events reached the sink")
	}
}
