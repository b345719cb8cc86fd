package notifications

import "context"

type BudgetAlertInput struct {
	Email      string
	Username   string
	Month      string
	BudgetName string
	Limit      string
	Spent      string
}

type MonthlyDigestInput struct {
	Email    string
	Username string
	Month    string
	Total    string
}

type Notifier interface {
	SendBudgetAlert(ctx context.Context, input BudgetAlertInput) error
	SendMonthlyDigest(ctx context.Context, input MonthlyDigestInput) error
}
