package kafka

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler consumes raw payloads from one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// ConsumerOption configures Consumer.
type ConsumerOption func(*ConsumerConfig)

// ConsumerConfig holds reader, worker pool, and retry settings.
type ConsumerConfig struct {
	Brokers         []string
	GroupID         string
	AutoOffsetReset string
	WorkerCount     int
	BufferSize      int
	RetryMax        int
	BackoffMin      time.Duration
	BackoffMax      time.Duration
	DLQTopic        string
	MinBytes        int
	MaxBytes        int
}

// WithConsumerBrokers sets the broker list.
func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *ConsumerConfig) { c.Brokers = brokers }
}

// WithConsumerGroupID sets the consumer group.
func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *ConsumerConfig) { c.GroupID = groupID }
}

// WithConsumerAutoOffsetReset sets where a new group starts reading.
func WithConsumerAutoOffsetReset(reset string) ConsumerOption {
	return func(c *ConsumerConfig) { c.AutoOffsetReset = reset }
}

// WithConsumerWorkers sets the worker pool size.
func WithConsumerWorkers(count int) ConsumerOption {
	return func(c *ConsumerConfig) { c.WorkerCount = count }
}

// WithConsumerRetry bounds handler retries and the backoff range between them.
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryMax = max
		c.BackoffMin = backoffMin
		c.BackoffMax = backoffMax
	}
}

// WithConsumerDLQ routes exhausted messages to a dead letter topic.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *ConsumerConfig) { c.DLQTopic = topic }
}

// WithConsumerFetch sets the fetch size window in bytes.
func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.MinBytes = minBytes
		c.MaxBytes = maxBytes
	}
}

// WithConsumerBufferSize sets the inbox channel capacity.
func WithConsumerBufferSize(n int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if n > 0 {
			c.BufferSize = n
		}
	}
}

// Consumer fans messages from per-topic readers into a shared worker pool.
// Ordering is preserved per partition via a lock keyed on (topic, partition).
type Consumer struct {
	cfg      *ConsumerConfig
	readers  map[string]*kafka.Reader
	handlers map[string]MessageHandler
	inbox    chan *inbound
	quit     chan struct{}
	readerWg sync.WaitGroup
	workerWg sync.WaitGroup
	stopOnce sync.Once
	dlq      *kafka.Writer
	hook     ConsumerHook

	lockMu sync.Mutex
	locks  map[string]map[int]*sync.Mutex
}

type inbound struct {
	topic string
	data  []byte
	raw   kafka.Message
}

// NewConsumer builds a consumer. Handlers are attached with RegisterHandler
// before Start.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:         "default",
		AutoOffsetReset: "earliest",
		WorkerCount:     1,
		BufferSize:      10,
		RetryMax:        3,
		BackoffMin:      50 * time.Millisecond,
		BackoffMax:      2 * time.Second,
		MinBytes:        10e3,
		MaxBytes:        10e6,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	c := &Consumer{
		cfg:      cfg,
		readers:  make(map[string]*kafka.Reader),
		handlers: make(map[string]MessageHandler),
		inbox:    make(chan *inbound, cfg.BufferSize),
		quit:     make(chan struct{}),
		locks:    make(map[string]map[int]*sync.Mutex),
		hook:     NoopHook{},
	}

	registerConsumerMetrics()

	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}
	return c, nil
}

// RegisterHandler attaches a handler for its topic. The first registration
// for a topic wins.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, dup := c.handlers[topic]; dup {
		log.Printf("warn: handler already registered for topic %s", topic)
		return
	}
	c.handlers[topic] = handler
}

// WithConsumerHook installs a lifecycle hook. Nil hooks are ignored.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start spins up one reader per registered topic plus the worker pool.
func (c *Consumer) Start() error {
	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			Topic:    topic,
			GroupID:  c.cfg.GroupID,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
		log.Printf("kafka consumer: subscribed topic=%s", topic)
	}

	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.workerWg.Add(1)
		go c.worker()
	}

	for topic, reader := range c.readers {
		c.readerWg.Add(1)
		go c.readLoop(topic, reader)
	}

	log.Printf("kafka consumer: running topics=%d workers=%d", len(c.readers), c.cfg.WorkerCount)
	return nil
}

// Stop drains the pool and closes readers. Safe to call more than once.
// Readers are stopped before the inbox closes so no read loop can send on a
// closed channel.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		log.Println("kafka consumer: stopping")
		close(c.quit)
		if stopErr = waitGroup(ctx, &c.readerWg); stopErr == nil {
			close(c.inbox)
			stopErr = waitGroup(ctx, &c.workerWg)
		}

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				log.Printf("close reader topic=%s: %v", topic, err)
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				log.Printf("close dlq writer: %v", err)
			}
		}
		if stopErr == nil {
			log.Println("kafka consumer: stopped")
		}
	})
	return stopErr
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("consumer shutdown: %w", ctx.Err())
	}
}

func (c *Consumer) readLoop(topic string, reader *kafka.Reader) {
	defer c.readerWg.Done()

	for {
		select {
		case <-c.quit:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		msg, err := reader.ReadMessage(ctx)
		cancel()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				log.Printf("read topic=%s: %v", topic, err)
			}
			continue
		}
		if !c.enqueue(topic, msg) {
			return
		}
	}
}

// enqueue hands a message to the pool, spinning with backpressure instead of
// dropping when the inbox is full. Returns false when the consumer is
// shutting down.
func (c *Consumer) enqueue(topic string, msg kafka.Message) bool {
	for {
		select {
		case c.inbox <- &inbound{topic: topic, data: msg.Value, raw: msg}:
			observeQueue(topic, len(c.inbox), cap(c.inbox))
			return true
		case <-c.quit:
			return false
		default:
			full := float64(len(c.inbox)) / float64(cap(c.inbox))
			if queueFullness != nil {
				queueFullness.WithLabelValues(topic).Set(full)
			}
			if full > 0.8 {
				time.Sleep(10 * time.Millisecond)
			} else {
				runtime.Gosched()
			}
		}
	}
}

func (c *Consumer) worker() {
	defer c.workerWg.Done()
	for msg := range c.inbox {
		handler, ok := c.handlers[msg.topic]
		if !ok {
			continue
		}
		c.process(handler, msg)
	}
}

// process runs a single message through the handler with retries, then
// commits or dead-letters it. Panics in handlers are contained here so a bad
// payload cannot take a worker down.
func (c *Consumer) process(handler MessageHandler, msg *inbound) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("panic handling topic=%s: %v", msg.topic, r)
		}
		if handleLatency != nil {
			handleLatency.WithLabelValues(msg.topic).Observe(time.Since(start).Seconds())
		}
	}()

	// One in-flight message per (topic, partition) keeps commit order sane.
	pl := c.partitionLock(msg.topic, msg.raw.Partition)
	pl.Lock()
	defer pl.Unlock()

	var err error
	attempts := 0
	for {
		attempts++
		hctx, hmsg, hdata, berr := c.hook.BeforeHandle(context.Background(), msg.topic, msg.raw, msg.data)
		if berr != nil {
			err = berr
			break
		}
		err = handler.Handle(hctx, hdata)
		c.hook.AfterHandle(hctx, msg.topic, hmsg, hdata, err)
		if err == nil || attempts > c.cfg.RetryMax {
			break
		}
		c.hook.OnError(hctx, msg.topic, hmsg, hdata, err)
		select {
		case <-time.After(jitterBackoff(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)):
		case <-c.quit:
			return
		}
	}

	if err != nil {
		c.hook.OnError(context.Background(), msg.topic, msg.raw, msg.data, err)
		log.Printf("handle topic=%s failed after %d attempts: %v", msg.topic, attempts-1, err)
		c.deadLetter(msg)
	}

	// Commit on success, or after dead-lettering so a poison message does
	// not loop forever.
	if err == nil || (c.dlq != nil && c.cfg.DLQTopic != "") {
		if reader := c.readers[msg.topic]; reader != nil {
			_ = c.commit(reader, msg.raw, 3)
		}
	}
}

func (c *Consumer) deadLetter(msg *inbound) {
	if c.dlq == nil || c.cfg.DLQTopic == "" {
		return
	}
	err := c.dlq.WriteMessages(context.Background(), kafka.Message{
		Topic:   c.cfg.DLQTopic,
		Value:   msg.data,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: "source_topic", Value: []byte(msg.topic)}},
	})
	if err != nil {
		log.Printf("dlq write topic=%s: %v", c.cfg.DLQTopic, err)
	}
}

func (c *Consumer) commit(reader *kafka.Reader, km kafka.Message, max int) error {
	if max <= 0 {
		max = 1
	}
	var err error
	for attempt := 1; attempt <= max; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = reader.CommitMessages(ctx, km)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(jitterBackoff(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	log.Printf("commit failed after %d attempts: %v", max, err)
	return err
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	byPart, ok := c.locks[topic]
	if !ok {
		byPart = make(map[int]*sync.Mutex)
		c.locks[topic] = byPart
	}
	l, ok := byPart[partition]
	if !ok {
		l = &sync.Mutex{}
		byPart[partition] = l
	}
	return l
}

func jitterBackoff(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	d := min * time.Duration(1<<uint(attempt-1))
	if d > max {
		d = max
	}
	// Shave up to half the delay so retrying workers spread out.
	return d - time.Duration(rand.Int63n(int64(d)/2))
}

var (
	queueDepth    *prometheus.GaugeVec
	queueFullness *prometheus.GaugeVec
	handleLatency *prometheus.HistogramVec

	metricsOnce       sync.Once
	metricsRegisterer prometheus.Registerer
)

// SetConsumerMetricsRegisterer overrides the default registry, mainly for
// tests that need isolation.
func SetConsumerMetricsRegisterer(reg prometheus.Registerer) { metricsRegisterer = reg }

func registerConsumerMetrics() {
	metricsOnce.Do(func() {
		depthOpts := prometheus.GaugeOpts{Name: "ngxquant_kafka_consumer_queue_depth", Help: "Number of messages waiting in consumer queue"}
		fullOpts := prometheus.GaugeOpts{Name: "ngxquant_kafka_consumer_queue_fullness", Help: "Queue utilization ratio (len/cap)"}
		latOpts := prometheus.HistogramOpts{Name: "ngxquant_kafka_consumer_handle_seconds", Help: "Handling time per message"}
		labels := []string{"topic"}

		if metricsRegisterer != nil {
			queueDepth = prometheus.NewGaugeVec(depthOpts, labels)
			queueFullness = prometheus.NewGaugeVec(fullOpts, labels)
			handleLatency = prometheus.NewHistogramVec(latOpts, labels)
			metricsRegisterer.MustRegister(queueDepth, queueFullness, handleLatency)
			return
		}
		queueDepth = promauto.NewGaugeVec(depthOpts, labels)
		queueFullness = promauto.NewGaugeVec(fullOpts, labels)
		handleLatency = promauto.NewHistogramVec(latOpts, labels)
	})
}

func observeQueue(topic string, depth, capacity int) {
	if queueDepth != nil {
		queueDepth.WithLabelValues(topic).Set(float64(depth))
	}
	if queueFullness != nil && capacity > 0 {
		queueFullness.WithLabelValues(topic).Set(float64(depth) / float64(capacity))
	}
}
