package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/spendhub/spendhub/internal/budgeting"
	"github.com/spendhub/spendhub/internal/domain/job"
	"github.com/spendhub/spendhub/internal/domain/user"
	"github.com/spendhub/spendhub/internal/jobs"
	"github.com/spendhub/spendhub/internal/repo/postgres"
)

type DigestUserLister interface {
	List(ctx context.Context) ([]user.User, error)
}

type DigestQueue interface {
	Create(ctx context.Context, req job.CreateRequest) (job.Job, error)
}

// DigestScheduler enqueues one monthly digest job per enabled user
// shortly after each UTC month closes. The jobs carry an idempotency
// key per (user, month), so overlapping schedulers or restarts around
// the rollover cannot double-enqueue.
type DigestScheduler struct {
	users  DigestUserLister
	queue  DigestQueue
	logger *slog.Logger

	now       func() time.Time
	fireDelay time.Duration // offset past month start, lets late writes land first
}

func NewDigestScheduler(users DigestUserLister, queue DigestQueue, logger *slog.Logger) *DigestScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DigestScheduler{
		users:     users,
		queue:     queue,
		logger:    logger,
		now:       time.Now,
		fireDelay: 5 * time.Minute,
	}
}

// Run blocks until ctx is done. It enqueues once on startup, covering
// a worker that was down across a rollover, then once per month close.
func (s *DigestScheduler) Run(ctx context.Context) {
	s.EnqueueClosedMonth(ctx)

	for {
		now := s.now().UTC()
		timer := time.NewTimer(s.nextFire(now).Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.EnqueueClosedMonth(ctx)
		}
	}
}

// nextFire is the first instant strictly after now at which a month
// close should be handled: the start of a month plus fireDelay.
func (s *DigestScheduler) nextFire(now time.Time) time.Time {
	now = now.UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	fire := monthStart.Add(s.fireDelay)
	if !now.Before(fire) {
		fire = monthStart.AddDate(0, 1, 0).Add(s.fireDelay)
	}

	return fire
}

// EnqueueClosedMonth enqueues a digest for the most recently closed
// month for every enabled user. Already-enqueued (user, month) pairs
// are skipped via the idempotency key.
func (s *DigestScheduler) EnqueueClosedMonth(ctx context.Context) {
	now := s.now().UTC()
	prevStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	ym := budgeting.YearMonth{Year: prevStart.Year(), Month: prevStart.Month()}

	users, err := s.users.List(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "digest user list failed", "error", err)
		return
	}

	enqueued := 0

	for _, u := range users {
		if !u.Enabled {
			continue
		}

		payload, err := jobs.EncodePayload(jobs.JobMonthlyDigest, jobs.MonthlyDigestPayload{
			UserID: u.ID,
			Month:  ym.String(),
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "digest payload encode failed", "error", err, "user_id", u.ID)
			continue
		}

		key := "digest:" + u.ID + ":" + ym.String()
		userID := u.ID

		_, err = s.queue.Create(ctx, job.CreateRequest{
			Type:           string(jobs.JobMonthlyDigest),
			Payload:        payload,
			IdempotencyKey: &key,
			UserID:         &userID,
		})
		if err != nil {
			if postgres.IsUniqueViolation(err) {
				continue
			}
			s.logger.ErrorContext(ctx, "digest enqueue failed", "error", err, "user_id", u.ID)
			continue
		}

		enqueued++
	}

	s.logger.InfoContext(ctx, "monthly digests enqueued", "month", ym.String(), "count", enqueued)
}
