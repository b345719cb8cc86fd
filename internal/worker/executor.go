package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spendhub/spendhub/internal/actorctx"
	"github.com/spendhub/spendhub/internal/budgeting"
	"github.com/spendhub/spendhub/internal/cache"
	"github.com/spendhub/spendhub/internal/domain/job"
	"github.com/spendhub/spendhub/internal/domain/user"
	"github.com/spendhub/spendhub/internal/jobs"
	"github.com/spendhub/spendhub/internal/notifications"
)

type UserGetter interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

// AlertExecutor handles queued budget jobs: over-budget checks fired by
// expense writes, and monthly digests. Alert sends are deduplicated
// through a short-lived cache so a burst of expense writes in the same
// month produces one notification, not one per write.
type AlertExecutor struct {
	svc      *budgeting.Service
	users    UserGetter
	budgets  budgeting.BudgetFinder
	notifier notifications.Notifier
	dedup    *cache.Cache
	logger   *slog.Logger
}

func NewAlertExecutor(svc *budgeting.Service, users UserGetter, budgets budgeting.BudgetFinder, notifier notifications.Notifier, dedup *cache.Cache, logger *slog.Logger) *AlertExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertExecutor{
		svc:      svc,
		users:    users,
		budgets:  budgets,
		notifier: notifier,
		dedup:    dedup,
		logger:   logger,
	}
}

func (e *AlertExecutor) Execute(ctx context.Context, j job.Job) error {
	if j.UserID != nil {
		ctx = actorctx.WithUserID(ctx, *j.UserID)
	}

	switch jobs.JobType(j.Type) {
	case jobs.JobBudgetAlertCheck:
		return e.runAlertCheck(ctx, j)
	case jobs.JobMonthlyDigest:
		return e.runMonthlyDigest(ctx, j)
	default:
		return fmt.Errorf("%w: %q", jobs.ErrInvalidJobType, j.Type)
	}
}

func (e *AlertExecutor) runAlertCheck(ctx context.Context, j job.Job) error {
	decoded, err := jobs.DecodePayload(jobs.JobBudgetAlertCheck, j.Payload)
	if err != nil {
		return err
	}
	p := decoded.(jobs.BudgetAlertCheckPayload)

	ym, err := budgeting.ParseYearMonth(p.Month)
	if err != nil {
		return fmt.Errorf("%w: %v", jobs.ErrInvalidJobPayload, err)
	}

	dedupKey := "alert:" + p.UserID + ":" + p.Month
	if e.dedup != nil {
		if _, hit := e.dedup.Get(dedupKey); hit {
			e.logger.Info("alert suppressed, already sent", "user_id", p.UserID, "month", p.Month)
			return nil
		}
	}

	over, err := e.svc.IsOverBudget(ctx, p.UserID, ym)
	if err != nil {
		return err
	}
	if !over {
		return nil
	}

	u, err := e.users.GetByID(ctx, p.UserID)
	if err != nil {
		return err
	}

	b, err := e.budgets.FindForOwner(ctx, p.UserID)
	if err != nil {
		// budget deleted between enqueue and execution
		if errors.Is(err, budgeting.ErrBudgetNotFound) {
			return nil
		}
		return err
	}

	total, err := e.svc.MonthlyTotal(ctx, p.UserID, ym)
	if err != nil {
		return err
	}

	err = e.notifier.SendBudgetAlert(ctx, notifications.BudgetAlertInput{
		Email:      u.Email,
		Username:   u.Username,
		Month:      p.Month,
		BudgetName: b.Name,
		Limit:      b.Amount.String(),
		Spent:      total.String(),
	})
	if err != nil {
		return err
	}

	if e.dedup != nil {
		e.dedup.Set(dedupKey, true)
	}

	return nil
}

func (e *AlertExecutor) runMonthlyDigest(ctx context.Context, j job.Job) error {
	decoded, err := jobs.DecodePayload(jobs.JobMonthlyDigest, j.Payload)
	if err != nil {
		return err
	}
	p := decoded.(jobs.MonthlyDigestPayload)

	ym, err := budgeting.ParseYearMonth(p.Month)
	if err != nil {
		return fmt.Errorf("%w: %v", jobs.ErrInvalidJobPayload, err)
	}

	total, err := e.svc.MonthlyTotal(ctx, p.UserID, ym)
	if err != nil {
		return err
	}

	u, err := e.users.GetByID(ctx, p.UserID)
	if err != nil {
		return err
	}

	return e.notifier.SendMonthlyDigest(ctx, notifications.MonthlyDigestInput{
		Email:    u.Email,
		Username: u.Username,
		Month:    p.Month,
		Total:    total.String(),
	})
}
