package logger

import (
	"context"
	"sync"
	"testing"
	"time"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	if batch, ok := payload.([]AggregatedLogEntry); ok {
		p.batches = append(p.batches, batch)
	}
	return nil
}

func (p *capturePublisher) waitForBatch(t *testing.T) []AggregatedLogEntry {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		if len(p.batches) > 0 {
			batch := p.batches[0]
			p.mu.Unlock()
			return batch
		}
		p.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no batch published before deadline")
	return nil
}

func TestCollectorDedupsRepeatedWarnings(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour, // only the threshold flush should fire
		CountThreshold: 2,
		Topic:          "logs.aggregated",
		Publisher:      pub,
	})
	defer c.Close()

	for i := 0; i < 5; i++ {
		c.AddLog("warn", "row skipped", map[string]interface{}{"file": "gtco.csv"}, "loader.go:10")
	}
	c.AddLog("warn", "row skipped", map[string]interface{}{"file": "mtnn.csv"}, "loader.go:10")

	batch := pub.waitForBatch(t)
	if len(batch) != 2 {
		t.Fatalf("batch size = %d, want 2 deduplicated entries", len(batch))
	}
	total := 0
	for _, e := range batch {
		total += e.Count
	}
	if total != 6 {
		t.Fatalf("total count = %d, want 6", total)
	}
	if pub.topic != "logs.aggregated" {
		t.Fatalf("published to topic %q", pub.topic)
	}
}

func TestCollectorFlushesOnClose(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 100,
		Topic:          "logs.aggregated",
		Publisher:      pub,
	})

	c.AddLog("error", "store unreachable", nil, "app.go:42")
	c.Close()

	batch := pub.waitForBatch(t)
	if len(batch) != 1 || batch[0].Message != "store unreachable" {
		t.Fatalf("unexpected batch: %+v", batch)
	}
}
