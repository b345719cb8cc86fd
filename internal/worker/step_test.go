package worker

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/spendhub/spendhub/internal/domain/job"
	"github.com/spendhub/spendhub/internal/observability"
)

type fakeRepo struct {
	claim       func(ctx context.Context, workerID string) (job.Job, error)
	done        []string
	failed      map[string]string
	rescheduled map[string]time.Time
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		failed:      map[string]string{},
		rescheduled: map[string]time.Time{},
	}
}

func (f *fakeRepo) ClaimNext(ctx context.Context, workerID string) (job.Job, error) {
	return f.claim(ctx, workerID)
}

func (f *fakeRepo) MarkDone(_ context.Context, id string) error {
	f.done = append(f.done, id)
	return nil
}

func (f *fakeRepo) MarkFailed(_ context.Context, id, errMsg string) error {
	f.failed[id] = errMsg
	return nil
}

func (f *fakeRepo) Reschedule(_ context.Context, id string, runAt time.Time, _ string) error {
	f.rescheduled[id] = runAt
	return nil
}

func (f *fakeRepo) RequeueStaleProcessing(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

type fakeExecutor struct {
	err error
}

func (f *fakeExecutor) Execute(context.Context, job.Job) error { return f.err }

func newTestWorker(repo JobsRepository, exec Executor) *Worker {
	return New(Config{WorkerID: "test-worker"}, repo, exec,
		observability.NewJobMetrics(), nil, slog.New(slog.DiscardHandler))
}

func TestProcessOne_QueueDrained(t *testing.T) {
	repo := newFakeRepo()
	repo.claim = func(context.Context, string) (job.Job, error) {
		return job.Job{}, job.ErrJobNotFound
	}

	w := newTestWorker(repo, &fakeExecutor{})

	processed, err := w.ProcessOne(context.Background())
	if err != nil {
		t.Fatalf("ProcessOne error: %v", err)
	}
	if processed {
		t.Fatal("expected no job to be processed")
	}
}

func TestProcessOne_Success(t *testing.T) {
	repo := newFakeRepo()
	repo.claim = func(context.Context, string) (job.Job, error) {
		return job.Job{ID: "j1", Type: "budget.alert_check", MaxAttempts: 5}, nil
	}

	w := newTestWorker(repo, &fakeExecutor{})

	processed, err := w.ProcessOne(context.Background())
	if err != nil || !processed {
		t.Fatalf("ProcessOne = (%v, %v)", processed, err)
	}
	if len(repo.done) != 1 || repo.done[0] != "j1" {
		t.Fatalf("done = %v, want [j1]", repo.done)
	}

	s := w.metrics.Snapshot()
	if s.Claimed != 1 || s.Done != 1 || s.Failed != 0 {
		t.Fatalf("snapshot = %+v", s)
	}
}

func TestProcessOne_FailureReschedules(t *testing.T) {
	repo := newFakeRepo()
	repo.claim = func(context.Context, string) (job.Job, error) {
		return job.Job{ID: "j1", Type: "budget.alert_check", Attempts: 1, MaxAttempts: 5}, nil
	}

	w := newTestWorker(repo, &fakeExecutor{err: errors.New("boom")})

	processed, err := w.ProcessOne(context.Background())
	if err != nil || !processed {
		t.Fatalf("ProcessOne = (%v, %v)", processed, err)
	}

	runAt, ok := repo.rescheduled["j1"]
	if !ok {
		t.Fatal("job was not rescheduled")
	}
	if !runAt.After(time.Now().UTC()) {
		t.Fatalf("run_at %v is not in the future", runAt)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("job dead-lettered early: %v", repo.failed)
	}

	if s := w.metrics.Snapshot(); s.Retried != 1 {
		t.Fatalf("retried = %d, want 1", s.Retried)
	}
}

func TestProcessOne_ExhaustedDeadLetters(t *testing.T) {
	repo := newFakeRepo()
	repo.claim = func(context.Context, string) (job.Job, error) {
		return job.Job{ID: "j1", Type: "budget.alert_check", Attempts: 4, MaxAttempts: 5}, nil
	}

	w := newTestWorker(repo, &fakeExecutor{err: errors.New("boom")})

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne error: %v", err)
	}

	if msg, ok := repo.failed["j1"]; !ok || msg != "boom" {
		t.Fatalf("failed = %v, want j1 -> boom", repo.failed)
	}
	if len(repo.rescheduled) != 0 {
		t.Fatalf("exhausted job was rescheduled: %v", repo.rescheduled)
	}

	if s := w.metrics.Snapshot(); s.DeadLettered != 1 {
		t.Fatalf("dead_lettered = %d, want 1", s.DeadLettered)
	}
}

func TestExponentialBackoff_GrowsAndCaps(t *testing.T) {
	if d := ExponentialBackoff(0); d < 2*time.Second || d > 3*time.Second {
		t.Fatalf("attempt 0: %v", d)
	}
	if d := ExponentialBackoff(3); d < 16*time.Second || d > 17*time.Second {
		t.Fatalf("attempt 3: %v", d)
	}
	if d := ExponentialBackoff(20); d > 5*time.Minute+time.Second {
		t.Fatalf("attempt 20 exceeds cap: %v", d)
	}
}
