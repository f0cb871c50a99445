package api

import (
	"fmt"
	"net/http"
	"time"

	"NgxQuant/internal/domain/models"
	domrepo "NgxQuant/internal/domain/repository"
	svccache "NgxQuant/internal/service/cache"
	svcmetrics "NgxQuant/internal/service/metrics"
	"NgxQuant/internal/service/ratelimit"
	"NgxQuant/internal/usecase"
	pkgcache "NgxQuant/pkg/cache"
	xhttp "NgxQuant/pkg/http"
	xlogger "NgxQuant/pkg/logger"
	"NgxQuant/pkg/queue"

	"github.com/labstack/echo/v4"
)

// AnalyticsHandler exposes the research surface: run a backtest, inspect
// rolling regression estimates, list stored symbols, report store coverage.
type AnalyticsHandler struct {
	logger     *xlogger.Logger
	runner     *usecase.BacktestRunner
	store      domrepo.BarStore
	respCache  *svccache.TTLCache
	limiter    *ratelimit.Limiter
	historyTTL time.Duration

	// optional async path, present when Redis is configured
	jobs       queue.QueueService
	jobResults pkgcache.Service
}

// EnableAsyncBacktests wires the queue-backed run path.
func (h *AnalyticsHandler) EnableAsyncBacktests(jobs queue.QueueService, results pkgcache.Service) {
	h.jobs = jobs
	h.jobResults = results
}

func NewAnalyticsHandler(
	logger *xlogger.Logger,
	runner *usecase.BacktestRunner,
	store domrepo.BarStore,
	respCache *svccache.TTLCache,
	historyTTL time.Duration,
) *AnalyticsHandler {
	return &AnalyticsHandler{
		logger:     logger,
		runner:     runner,
		store:      store,
		respCache:  respCache,
		limiter:    ratelimit.New(),
		historyTTL: historyTTL,
	}
}

func (h *AnalyticsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/backtest", h.Backtest)
	g.POST("/backtest/async", h.BacktestAsync)
	g.GET("/backtest/jobs/:id", h.BacktestJobStatus)
	g.GET("/regressions", h.Regressions)
	g.GET("/symbols", h.Symbols)
	g.GET("/stats", h.Stats)
	e.GET("/healthz", h.Health)
}

// BacktestResponse carries the run output plus its exclusions so callers can
// audit what the selector actually saw.
type BacktestResponse struct {
	Report         models.PerformanceReport            `json:"report"`
	RegimeReports  map[string]models.PerformanceReport `json:"regime_reports,omitempty"`
	Snapshots      []models.PortfolioSnapshot          `json:"snapshots"`
	DroppedTickers []string                            `json:"dropped_tickers,omitempty"`
	SkippedWindows int                                 `json:"skipped_windows"`
}

func (h *AnalyticsHandler) Backtest(c echo.Context) error {
	// Backtests are CPU-heavy; throttle per client.
	if !h.limiter.Allow("backtest:"+c.RealIP(), 3, 0.5) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, map[string]string{
			"error": "too many backtest requests, retry shortly",
		})
	}

	start := time.Now()
	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	out, err := h.runner.Run(c.Request().Context(), *req, nil)
	if err != nil {
		svcmetrics.AnalyticsErrors.WithLabelValues("backtest").Inc()
		h.logger.Error("backtest usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("backtest failed: %v", err))
	}
	svcmetrics.AnalyticsLatency.WithLabelValues("backtest").Observe(time.Since(start).Seconds())

	return xhttp.SuccessResponse(c, BacktestResponse{
		Report:         out.Result.Report,
		RegimeReports:  out.Result.RegimeReports,
		Snapshots:      out.Result.Snapshots,
		DroppedTickers: out.Dropped,
		SkippedWindows: len(out.Skips),
	})
}

// BacktestAsync enqueues a run and returns a job id immediately.
func (h *AnalyticsHandler) BacktestAsync(c echo.Context) error {
	if h.jobs == nil || h.jobResults == nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("async backtests are not enabled"))
	}
	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	jobID := fmt.Sprintf("bt-%d", time.Now().UnixNano())
	ctx := c.Request().Context()
	if err := h.jobResults.Set(ctx, usecase.JobResultKey(jobID), usecase.JobResult{JobID: jobID, Status: "queued"}, time.Hour); err != nil {
		h.logger.Error("job status write error", xlogger.Error(err))
	}
	if err := h.jobs.PublishMessage(ctx, usecase.BacktestJobType, usecase.AsyncBacktestPayload{JobID: jobID, Request: *req}); err != nil {
		svcmetrics.AnalyticsErrors.WithLabelValues("backtest_async").Inc()
		h.logger.Error("backtest enqueue error", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.DataResponse(c, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// BacktestJobStatus serves the stored result of an async run.
func (h *AnalyticsHandler) BacktestJobStatus(c echo.Context) error {
	if h.jobResults == nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("async backtests are not enabled"))
	}
	jobID := c.Param("id")
	var res usecase.JobResult
	if err := h.jobResults.Get(c.Request().Context(), usecase.JobResultKey(jobID), &res); err != nil {
		return xhttp.NotFoundResponse(c, map[string]string{"job_id": jobID})
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalyticsHandler) Regressions(c echo.Context) error {
	start := time.Now()
	req := &models.RegressionHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	key := historyKey(req)
	if cached, ok := h.respCache.Get(key); ok {
		c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
		return xhttp.SuccessResponse(c, cached)
	}

	ests, err := h.runner.RegressionHistory(c.Request().Context(), *req)
	if err != nil {
		svcmetrics.AnalyticsErrors.WithLabelValues("regressions").Inc()
		h.logger.Error("regression history error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("regression history failed: %v", err))
	}
	svcmetrics.AnalyticsLatency.WithLabelValues("regressions").Observe(time.Since(start).Seconds())

	h.respCache.Set(key, ests, h.historyTTL)
	return xhttp.SuccessResponse(c, ests)
}

func (h *AnalyticsHandler) Symbols(c echo.Context) error {
	symbols, err := h.store.ListSymbols(c.Request().Context())
	if err != nil {
		svcmetrics.AnalyticsErrors.WithLabelValues("symbols").Inc()
		h.logger.Error("list symbols error", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	total := int64(len(symbols))
	if limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 0); limit > 0 && limit < len(symbols) {
		symbols = symbols[:limit]
	}
	return xhttp.ListResponse(c, symbols, total)
}

func (h *AnalyticsHandler) Stats(c echo.Context) error {
	stats, err := h.store.Stats(c.Request().Context())
	if err != nil {
		svcmetrics.AnalyticsErrors.WithLabelValues("stats").Inc()
		h.logger.Error("store stats error", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, stats)
}

func (h *AnalyticsHandler) Health(c echo.Context) error {
	if err := h.store.Health(c.Request().Context()); err != nil {
		h.logger.Error("health check failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("store unreachable"))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func historyKey(req *models.RegressionHistoryRequest) string {
	return fmt.Sprintf("regressions:%s:%s:%s:%d:%d", req.Ticker, req.From, req.To, req.Window, req.MinObs)
}
