package budgeting

import (
	"github.com/spendhub/spendhub/internal/domain/expense"
	"github.com/spendhub/spendhub/internal/money"
)

// SumForMonth adds up the expenses that fall inside the month. Rows
// without an amount contribute zero; rows outside the window are
// skipped. Integer-cent addition keeps the result exact regardless of
// ordering.
func SumForMonth(expenses []expense.Expense, ym YearMonth) money.Amount {
	var total money.Amount

	for _, e := range expenses {
		if e.Amount == nil {
			continue
		}

		if !ym.Contains(e.Timestamp) {
			continue
		}

		total = total.Add(*e.Amount)
	}

	return total
}

// Sum adds the amounts of all given expenses, skipping absent amounts.
func Sum(expenses []expense.Expense) money.Amount {
	var total money.Amount

	for _, e := range expenses {
		if e.Amount == nil {
			continue
		}

		total = total.Add(*e.Amount)
	}

	return total
}
