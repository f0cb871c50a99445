package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"NgxQuant/internal/domain/models"
	domrepo "NgxQuant/internal/domain/repository"
)

// IngestPipeline sits between the Kafka consumer and the analytical store.
// It validates incoming bars and buffers them when the store is unavailable,
// flushing in the background with backoff, so a ClickHouse restart never
// loses a day's updates.
type IngestPipeline struct {
	sink    domrepo.BarSink
	metrics domrepo.Metrics
	bufSize int
	bufCh   chan buffered
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
}

type buffered struct {
	bar models.DailyBar
	fx  bool
}

type PipelineOption func(*IngestPipeline)

// WithBufferSize sets the retry buffer capacity.
func WithBufferSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func NewIngestPipeline(sink domrepo.BarSink, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		sink:    sink,
		metrics: metrics,
		bufSize: 1000,
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan buffered, p.bufSize)
	return p
}

// Start launches background flushing of buffered bars.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case b := <-p.bufCh:
				if err := p.forward(ctx, b); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					select {
					case p.bufCh <- b:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

func (p *IngestPipeline) UpsertBars(ctx context.Context, bars []models.DailyBar) (int, error) {
	return p.process(ctx, bars, false)
}

func (p *IngestPipeline) UpsertFxRates(ctx context.Context, rates []models.DailyBar) (int, error) {
	return p.process(ctx, rates, true)
}

func (p *IngestPipeline) process(ctx context.Context, bars []models.DailyBar, fx bool) (int, error) {
	valid := make([]models.DailyBar, 0, len(bars))
	for _, b := range bars {
		if err := validateBar(b); err != nil {
			p.metrics.RecordError("pipeline_validate")
			return 0, err
		}
		valid = append(valid, b)
	}
	if len(valid) == 0 {
		return 0, nil
	}

	n, err := p.upsert(ctx, valid, fx)
	if err != nil {
		p.metrics.RecordError("pipeline_process")
		// Buffer non-blocking; the consumer keeps draining the topic.
		for _, b := range valid {
			select {
			case p.bufCh <- buffered{bar: b, fx: fx}:
			default:
				p.metrics.RecordError("pipeline_buffer_full")
			}
		}
		return 0, fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
	return n, nil
}

func (p *IngestPipeline) forward(ctx context.Context, b buffered) error {
	_, err := p.upsert(ctx, []models.DailyBar{b.bar}, b.fx)
	return err
}

func (p *IngestPipeline) upsert(ctx context.Context, bars []models.DailyBar, fx bool) (int, error) {
	if fx {
		return p.sink.UpsertFxRates(ctx, bars)
	}
	return p.sink.UpsertBars(ctx, bars)
}

func validateBar(b models.DailyBar) error {
	if b.Symbol == "" {
		return fmt.Errorf("bar symbol empty")
	}
	if b.Date.IsZero() {
		return fmt.Errorf("bar date missing for %s", b.Symbol)
	}
	if b.Close <= 0 {
		return fmt.Errorf("bar close %v invalid for %s on %s", b.Close, b.Symbol, b.Date.Format("2006-01-02"))
	}
	if b.Volume != nil && *b.Volume < 0 {
		return fmt.Errorf("bar volume negative for %s on %s", b.Symbol, b.Date.Format("2006-01-02"))
	}
	return nil
}

var _ domrepo.BarSink = (*IngestPipeline)(nil)
