package di

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"NgxQuant/internal/domain/repository"
	"NgxQuant/internal/handler/api"
	"NgxQuant/internal/middleware"
	internalrepo "NgxQuant/internal/repository"
	svccache "NgxQuant/internal/service/cache"
	svcmetrics "NgxQuant/internal/service/metrics"
	"NgxQuant/internal/usecase"
	pkgcache "NgxQuant/pkg/cache"
	pkgch "NgxQuant/pkg/clickhouse"
	"NgxQuant/pkg/config"
	pkgkafka "NgxQuant/pkg/kafka"
	applogger "NgxQuant/pkg/logger"
	"NgxQuant/pkg/metrics"
	"NgxQuant/pkg/queue"
	"NgxQuant/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	svcmetrics.Register()
	return metrics.New()
}

// ProvideRedisCache creates the Redis cache when enabled; nil otherwise.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Cache.Redis.Enabled {
		return nil, nil
	}
	host, port := splitAddr(cfg.Cache.Redis.Addr)
	return pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
		pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
	)
}

func splitAddr(addr string) (string, int) {
	host, portStr, ok := strings.Cut(addr, ":")
	if !ok {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}

// ProvideBarStore creates the ClickHouse store, wrapped in the read-through
// cache when Redis is available.
func ProvideBarStore(
	ch *pkgch.Client,
	cfg *config.Config,
	log *applogger.Logger,
	redisCache *pkgcache.RedisCache,
) repository.BarStore {
	store := internalrepo.NewClickHouseBarStore(ch, cfg.ClickHouse.Database, log)
	if redisCache != nil {
		// Hot bar ranges are served from memory, everything else from Redis.
		layered := pkgcache.NewLayeredCache(redisCache)
		return internalrepo.NewCachedBarStore(store, layered, cfg.Cache.BarTTL)
	}
	return store
}

// ProvideBacktestRunner creates the analytics pipeline entry point.
func ProvideBacktestRunner(
	store repository.BarStore,
	m repository.Metrics,
	log *applogger.Logger,
	cfg *config.Config,
) *usecase.BacktestRunner {
	return usecase.NewBacktestRunner(
		store, m, log,
		cfg.Market.IndexSymbol, cfg.Market.FxPair,
		cfg.Backtest.Workers,
	)
}

// ProvideKafkaConsumer creates a Kafka consumer; nil when no brokers are
// configured, so the API can run without an ingest feed.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NoopHook{})
	return consumer, nil
}

// ProvideIngestPipeline buffers bar writes between the consumer and the store.
func ProvideIngestPipeline(store repository.BarStore, m repository.Metrics) *middleware.IngestPipeline {
	return middleware.NewIngestPipeline(store, m, middleware.WithBufferSize(2000))
}

// ProvideKafkaBarsHandler registers the handler for the bar events topic.
func ProvideKafkaBarsHandler(
	pipeline *middleware.IngestPipeline,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.KafkaBarsHandler {
	return usecase.NewKafkaBarsHandler(cfg.Kafka.Topic, pipeline, m)
}

// ProvideJobQueue creates the Redis-backed async worker; nil without Redis.
func ProvideJobQueue(
	cfg *config.Config,
	log *applogger.Logger,
	runner *usecase.BacktestRunner,
	redisCache *pkgcache.RedisCache,
) *queue.RedisQueue {
	if redisCache == nil {
		return nil
	}
	job := usecase.NewBacktestJob(runner, redisCache, log)
	return queue.NewRedisConsumer(log, &queue.QueueConfig{
		Workers:    2,
		QueueSize:  64,
		RetryLimit: 3,
		RetryDelay: 30 * time.Second,
	}, redisCache.Client(), []queue.Job{job})
}

// ProvideAnalyticsHandler creates the HTTP surface.
func ProvideAnalyticsHandler(
	log *applogger.Logger,
	runner *usecase.BacktestRunner,
	store repository.BarStore,
	cfg *config.Config,
	jobQueue *queue.RedisQueue,
	redisCache *pkgcache.RedisCache,
) *api.AnalyticsHandler {
	h := api.NewAnalyticsHandler(log, runner, store, svccache.NewTTLCache(), cfg.Cache.HistoryTTL)
	if jobQueue != nil && redisCache != nil {
		h.EnableAsyncBacktests(jobQueue, redisCache)
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	store repository.BarStore,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaBarsHandler,
	pipeline *middleware.IngestPipeline,
	jobQueue *queue.RedisQueue,
	handler *api.AnalyticsHandler,
) *server.App {
	var mh pkgkafka.MessageHandler
	if consumer != nil {
		mh = kh
	}
	return server.New(cfg, log, store, consumer, mh, pipeline, jobQueue, handler)
}
