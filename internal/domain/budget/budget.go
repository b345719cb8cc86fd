package budget

import (
	"time"

	"github.com/spendhub/spendhub/internal/money"
)

// Budget is a spending cap owned by exactly one user. The MVP data model
// allows at most one budget per user.
type Budget struct {
	ID          string       `json:"id"`
	OwnerID     string       `json:"ownerId"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Amount      money.Amount `json:"-"`
	TimePeriod  string       `json:"timePeriod"`
	StartDate   time.Time    `json:"startDate"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}
