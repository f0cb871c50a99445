package usecase

import (
	"context"
	"fmt"
	"time"

	"NgxQuant/internal/domain/models"
	pkgcache "NgxQuant/pkg/cache"
	"NgxQuant/pkg/logger"
	"NgxQuant/pkg/queue"
)

const (
	BacktestJobType = "backtest.run"
	jobResultTTL    = 24 * time.Hour
)

// AsyncBacktestPayload is the queue message for a deferred backtest run.
type AsyncBacktestPayload struct {
	JobID   string                 `json:"job_id"`
	Request models.BacktestRequest `json:"request"`
}

// JobResult is what the API serves back for an async run.
type JobResult struct {
	JobID      string                              `json:"job_id"`
	Status     string                              `json:"status"` // running, done, failed
	Error      string                              `json:"error,omitempty"`
	Report     *models.PerformanceReport           `json:"report,omitempty"`
	Regimes    map[string]models.PerformanceReport `json:"regime_reports,omitempty"`
	Snapshots  []models.PortfolioSnapshot          `json:"snapshots,omitempty"`
	Dropped    []string                            `json:"dropped_tickers,omitempty"`
	FinishedAt *time.Time                          `json:"finished_at,omitempty"`
}

func JobResultKey(jobID string) string {
	return pkgcache.GenerateKey("job", jobID)
}

// BacktestJob consumes queued backtest requests. Long runs happen off the
// request path; results land in the cache under the job id.
type BacktestJob struct {
	runner  *BacktestRunner
	results pkgcache.Service
	log     *logger.Logger
}

func NewBacktestJob(runner *BacktestRunner, results pkgcache.Service, log *logger.Logger) *BacktestJob {
	return &BacktestJob{runner: runner, results: results, log: log}
}

func (j *BacktestJob) Name() string { return "backtest" }
func (j *BacktestJob) Type() string { return BacktestJobType }

func (j *BacktestJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[AsyncBacktestPayload](payload)
	if err != nil {
		return fmt.Errorf("backtest job payload: %w", err)
	}
	if p.JobID == "" {
		return fmt.Errorf("backtest job without id")
	}

	_ = j.results.Set(ctx, JobResultKey(p.JobID), JobResult{JobID: p.JobID, Status: "running"}, jobResultTTL)

	out, err := j.runner.Run(ctx, p.Request, nil)
	now := time.Now().UTC()
	if err != nil {
		j.log.Error("async backtest failed",
			logger.String("job_id", p.JobID), logger.Error(err))
		_ = j.results.Set(ctx, JobResultKey(p.JobID), JobResult{
			JobID: p.JobID, Status: "failed", Error: err.Error(), FinishedAt: &now,
		}, jobResultTTL)
		// The run itself failed; retrying with the same inputs gives the
		// same answer, so report success to the queue.
		return nil
	}

	res := JobResult{
		JobID:      p.JobID,
		Status:     "done",
		Report:     &out.Result.Report,
		Regimes:    out.Result.RegimeReports,
		Snapshots:  out.Result.Snapshots,
		Dropped:    out.Dropped,
		FinishedAt: &now,
	}
	if err := j.results.Set(ctx, JobResultKey(p.JobID), res, jobResultTTL); err != nil {
		return fmt.Errorf("backtest job %s: store result: %w", p.JobID, err)
	}
	j.log.Info("async backtest complete", logger.String("job_id", p.JobID))
	return nil
}

var _ queue.Job = (*BacktestJob)(nil)
