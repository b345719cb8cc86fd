package worker

import (
	"context"
	"errors"
	"time"

	"github.com/spendhub/spendhub/internal/domain/job"
)

// ProcessOne claims and runs a single job. The bool reports whether a
// job was available; a false result means the queue is drained.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}
		return false, err
	}

	w.metrics.IncClaimed()
	start := time.Now()

	execErr := w.exec.Execute(ctx, j)

	elapsed := time.Since(start)
	w.metrics.ObserveDuration(elapsed)

	if execErr != nil {
		w.handleFailure(ctx, j, execErr)
		return true, nil
	}

	if err := w.repo.MarkDone(ctx, j.ID); err != nil {
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		return true, err
	}

	w.metrics.IncDone()
	if w.prom != nil {
		w.prom.ObserveJob(j.Type, "done", elapsed)
	}

	w.logger.Info("job done", "job_id", j.ID, "type", j.Type, "duration", elapsed.String())
	return true, nil
}

// handleFailure either reschedules with backoff or dead-letters the job
// once the attempt budget is spent. The claimed row already counted the
// current attempt, so attempts+1 is the number of tries consumed.
func (w *Worker) handleFailure(ctx context.Context, j job.Job, execErr error) {
	w.metrics.IncFailed()

	if j.Attempts+1 >= j.MaxAttempts {
		w.metrics.IncDeadLettered()
		if w.prom != nil {
			w.prom.ObserveJob(j.Type, "dead_lettered", 0)
		}

		if err := w.repo.MarkFailed(ctx, j.ID, execErr.Error()); err != nil {
			w.logger.Error("mark failed errored", "job_id", j.ID, "error", err)
		}

		w.logger.Error("job dead-lettered",
			"job_id", j.ID,
			"type", j.Type,
			"attempts", j.Attempts+1,
			"error", execErr,
		)
		return
	}

	w.metrics.IncRetried()
	if w.prom != nil {
		w.prom.ObserveJob(j.Type, "retried", 0)
	}

	runAt := time.Now().UTC().Add(ExponentialBackoff(j.Attempts))

	if err := w.repo.Reschedule(ctx, j.ID, runAt, execErr.Error()); err != nil {
		w.logger.Error("reschedule errored", "job_id", j.ID, "error", err)
		return
	}

	w.logger.Warn("job rescheduled",
		"job_id", j.ID,
		"type", j.Type,
		"attempt", j.Attempts+1,
		"run_at", runAt,
		"error", execErr,
	)
}
