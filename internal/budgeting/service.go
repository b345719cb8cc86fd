package budgeting

import (
	"context"
	"errors"
	"time"

	"github.com/spendhub/spendhub/internal/domain/budget"
	"github.com/spendhub/spendhub/internal/domain/expense"
	"github.com/spendhub/spendhub/internal/money"
)

// ErrBudgetNotFound is returned by budget stores when the owner has no
// budget. The service folds it into a "not over budget" result.
var ErrBudgetNotFound = errors.New("budget not found")

// Small read-side interfaces so tests can fake the stores easily.

type ExpenseWindowLister interface {
	ListForOwnerInWindow(ctx context.Context, ownerID string, from, to time.Time) ([]expense.Expense, error)
}

type BudgetFinder interface {
	// FindForOwner returns the owner's budget; the MVP model holds at
	// most one per user. ErrBudgetNotFound when there is none.
	FindForOwner(ctx context.Context, ownerID string) (budget.Budget, error)
}

// TotalsCache is an optional cache-aside layer over MonthlyTotal.
// Implemented by the redis-backed cache; nil disables caching.
type TotalsCache interface {
	GetTotal(ctx context.Context, ownerID string, ym string) (money.Amount, bool)
	SetTotal(ctx context.Context, ownerID string, ym string, total money.Amount)
	InvalidateOwner(ctx context.Context, ownerID string)
}

// Service computes monthly spend totals and over-budget status. The
// summation itself is pure; the service only glues it to the stores.
type Service struct {
	expenses ExpenseWindowLister
	budgets  BudgetFinder
	totals   TotalsCache
}

func NewService(expenses ExpenseWindowLister, budgets BudgetFinder, totals TotalsCache) *Service {
	return &Service{
		expenses: expenses,
		budgets:  budgets,
		totals:   totals,
	}
}

// MonthlyTotal sums the owner's expenses whose timestamps fall in the
// given UTC calendar month. Zero when nothing matches.
func (s *Service) MonthlyTotal(ctx context.Context, ownerID string, ym YearMonth) (money.Amount, error) {
	if s.totals != nil {
		if total, ok := s.totals.GetTotal(ctx, ownerID, ym.String()); ok {
			return total, nil
		}
	}

	from, to := ym.Window()

	rows, err := s.expenses.ListForOwnerInWindow(ctx, ownerID, from, to)

	if err != nil {
		return 0, err
	}

	total := SumForMonth(rows, ym)

	if s.totals != nil {
		s.totals.SetTotal(ctx, ownerID, ym.String(), total)
	}

	return total, nil
}

// IsOverBudget reports whether the month's total strictly exceeds the
// owner's budget amount. No budget means no overage is possible.
func (s *Service) IsOverBudget(ctx context.Context, ownerID string, ym YearMonth) (bool, error) {
	b, err := s.budgets.FindForOwner(ctx, ownerID)

	if err != nil {
		if errors.Is(err, ErrBudgetNotFound) {
			return false, nil
		}

		return false, err
	}

	total, err := s.MonthlyTotal(ctx, ownerID, ym)

	if err != nil {
		return false, err
	}

	return total > b.Amount, nil
}

// InvalidateTotals drops any cached totals for the owner. Called after
// expense writes so stale sums never reach a status query.
func (s *Service) InvalidateTotals(ctx context.Context, ownerID string) {
	if s.totals != nil {
		s.totals.InvalidateOwner(ctx, ownerID)
	}
}
