package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// LogNotifier writes alerts to the structured log. It stands in for a
// real mail or push provider and reacts to two env knobs useful in
// local testing: NOTIFIER_SLEEP_MS and NOTIFIER_FAIL.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) simulate(ctx context.Context) error {
	if msStr := os.Getenv("NOTIFIER_SLEEP_MS"); msStr != "" {
		ms, _ := strconv.Atoi(msStr)
		if ms > 0 {
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if os.Getenv("NOTIFIER_FAIL") == "1" {
		return fmt.Errorf("provider down (simulated)")
	}

	return nil
}

func (n *LogNotifier) SendBudgetAlert(ctx context.Context, in BudgetAlertInput) error {
	if err := n.simulate(ctx); err != nil {
		return err
	}

	n.logger.InfoContext(ctx, "notification.budget_alert",
		"email", in.Email,
		"username", in.Username,
		"month", in.Month,
		"budget", in.BudgetName,
		"limit", in.Limit,
		"spent", in.Spent,
	)
	return nil
}

func (n *LogNotifier) SendMonthlyDigest(ctx context.Context, in MonthlyDigestInput) error {
	if err := n.simulate(ctx); err != nil {
		return err
	}

	n.logger.InfoContext(ctx, "notification.monthly_digest",
		"email", in.Email,
		"username", in.Username,
		"month", in.Month,
		"total", in.Total,
	)
	return nil
}
