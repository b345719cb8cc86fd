package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spendhub/spendhub/internal/domain/job"
	"github.com/spendhub/spendhub/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

// Executor runs a single claimed job to completion.
type Executor interface {
	Execute(ctx context.Context, j job.Job) error
}

type Config struct {
	PollInterval  time.Duration
	WorkerID      string
	LockTTL       time.Duration // processing locks older than this get requeued
	SweepInterval time.Duration // how often to look for stale locks
}

type Worker struct {
	cfg     Config
	repo    JobsRepository
	exec    Executor
	metrics *observability.JobMetrics
	prom    *observability.Prom
	logger  *slog.Logger

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, repo JobsRepository, exec Executor, metrics *observability.JobMetrics, prom *observability.Prom, logger *slog.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.WorkerID == "" {
		host, _ := os.Hostname()
		cfg.WorkerID = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 60 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	if metrics == nil {
		metrics = observability.NewJobMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		cfg:     cfg,
		repo:    repo,
		exec:    exec,
		metrics: metrics,
		prom:    prom,
		logger:  logger,
	}
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

// Run polls the queue until ctx is cancelled. Each tick drains all
// ready jobs before sleeping again, so a backlog clears at execution
// speed rather than one job per poll.
func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	defer w.setReady(false)

	poll := time.NewTicker(w.cfg.PollInterval)
	defer poll.Stop()

	sweep := time.NewTicker(w.cfg.SweepInterval)
	defer sweep.Stop()

	w.logger.Info("worker started", "worker_id", w.cfg.WorkerID, "poll_interval", w.cfg.PollInterval.String())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker received shutdown signal")
			return nil

		case <-sweep.C:
			n, err := w.repo.RequeueStaleProcessing(ctx, w.cfg.LockTTL)
			if err != nil {
				w.logger.Error("stale sweep failed", "error", err)
				continue
			}
			if n > 0 {
				w.logger.Warn("requeued stale jobs", "count", n)
			}

		case <-poll.C:
			for {
				processed, err := w.ProcessOne(ctx)
				if err != nil {
					w.logger.Error("process step failed", "error", err)
					break
				}
				if !processed {
					break
				}
			}
		}
	}
}
