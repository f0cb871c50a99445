package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "NgxQuant/internal/domain/repository"
	"NgxQuant/internal/middleware"
	"NgxQuant/pkg/config"
	xhttp "NgxQuant/pkg/http"
	pkgkafka "NgxQuant/pkg/kafka"
	applogger "NgxQuant/pkg/logger"
	"NgxQuant/pkg/queue"
)

// App encapsulates the serve-mode lifecycle: HTTP API, Kafka bar consumer,
// ingest pipeline, and the optional async job worker.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	store      domrepo.BarStore
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	pipeline   *middleware.IngestPipeline
	jobQueue   *queue.RedisQueue
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	store domrepo.BarStore,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	pipeline *middleware.IngestPipeline,
	jobQueue *queue.RedisQueue,
	httpHandler xhttp.Handler,
) *App {
	httpServer := xhttp.NewServer(httpHandler,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithRequestMetrics(log, time.Second),
	)
	return &App{
		cfg:        cfg,
		log:        log,
		store:      store,
		consumer:   consumer,
		kh:         kh,
		pipeline:   pipeline,
		jobQueue:   jobQueue,
		httpServer: httpServer,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.store.Init(ctx); err != nil {
		return err
	}

	if a.pipeline != nil {
		a.pipeline.Start(ctx)
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Start(); err != nil {
			a.log.Error("job queue start error", applogger.Error(err))
		} else {
			a.log.Info("async job worker started")
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Stop(shutdownCtx); err != nil {
			a.log.Warn("job queue stop error", applogger.Error(err))
		}
	}

	if a.pipeline != nil {
		a.pipeline.Stop()
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn("store close error", applogger.Error(err))
	}

	a.log.Info("shutdown complete")
	return nil
}
