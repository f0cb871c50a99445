package middleware

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"NgxQuant/internal/domain/models"
)

type flakySink struct {
	mu      sync.Mutex
	failing bool
	bars    []models.DailyBar
	fx      []models.DailyBar
}

func (s *flakySink) UpsertBars(_ context.Context, bars []models.DailyBar) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return 0, fmt.Errorf("store down")
	}
	s.bars = append(s.bars, bars...)
	return len(bars), nil
}

func (s *flakySink) UpsertFxRates(_ context.Context, rates []models.DailyBar) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return 0, fmt.Errorf("store down")
	}
	s.fx = append(s.fx, rates...)
	return len(rates), nil
}

func (s *flakySink) setFailing(v bool) {
	s.mu.Lock()
	s.failing = v
	s.mu.Unlock()
}

func (s *flakySink) barCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bars)
}

type countingMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{errors: map[string]int{}}
}

func (m *countingMetrics) RecordBarsUpserted(string, int) {}
func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}
func (m *countingMetrics) RecordFitDuration(float64)      {}
func (m *countingMetrics) RecordIllConditioned(string)    {}
func (m *countingMetrics) RecordBacktestDuration(float64) {}
func (m *countingMetrics) RecordLatency(string, float64)  {}

func (m *countingMetrics) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func validTestBar(symbol string, day int) models.DailyBar {
	return models.DailyBar{
		Symbol: symbol,
		Date:   models.Day(2024, time.March, day),
		Close:  45.5,
	}
}

func TestPipelineRejectsInvalidBars(t *testing.T) {
	sink := &flakySink{}
	m := newCountingMetrics()
	p := NewIngestPipeline(sink, m)

	bad := validTestBar("GTCO", 4)
	bad.Close = 0
	if _, err := p.UpsertBars(context.Background(), []models.DailyBar{bad}); err == nil {
		t.Fatal("zero close accepted")
	}
	if m.count("pipeline_validate") != 1 {
		t.Fatalf("validate errors = %d, want 1", m.count("pipeline_validate"))
	}
	if sink.barCount() != 0 {
		t.Fatalf("invalid bar reached the sink")
	}
}

func TestPipelinePassesThroughWhenHealthy(t *testing.T) {
	sink := &flakySink{}
	p := NewIngestPipeline(sink, newCountingMetrics())

	n, err := p.UpsertBars(context.Background(), []models.DailyBar{
		validTestBar("GTCO", 4), validTestBar("GTCO", 5),
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if n != 2 || sink.barCount() != 2 {
		t.Fatalf("n = %d, sink = %d, want 2/2", n, sink.barCount())
	}
}

func TestPipelineBuffersAndFlushesAfterOutage(t *testing.T) {
	sink := &flakySink{}
	sink.setFailing(true)
	p := NewIngestPipeline(sink, newCountingMetrics(), WithBufferSize(10))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	if _, err := p.UpsertBars(ctx, []models.DailyBar{validTestBar("MTNN", 6)}); err == nil {
		t.Fatal("expected error while sink is down")
	}

	sink.setFailing(false)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if sink.barCount() == 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("buffered bar never flushed, sink has %d", sink.barCount())
}
