package expense

import (
	"time"

	"github.com/spendhub/spendhub/internal/money"
)

// Expense is a single spend record owned by exactly one user.
// Amount is a pointer because legacy imports may carry no amount; such
// rows count as zero in aggregations.
type Expense struct {
	ID          string        `json:"id"`
	OwnerID     string        `json:"ownerId"`
	BudgetID    *string       `json:"budgetId,omitempty"`
	Amount      *money.Amount `json:"-"`
	Description string        `json:"description,omitempty"`
	Place       string        `json:"place,omitempty"`
	Category    string        `json:"category,omitempty"`
	Source      string        `json:"source,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

type ListFilter struct {
	Category string
	From     time.Time
	To       time.Time
}
