package jobs

type JobType string

const (
	// JobBudgetAlertCheck recomputes a user's monthly total and fires a
	// notification when it exceeds their budget.
	JobBudgetAlertCheck JobType = "budget.alert_check"

	// JobMonthlyDigest sends a spending summary for a closed month.
	JobMonthlyDigest JobType = "budget.monthly_digest"
)

func (t JobType) IsValid() bool {
	switch t {
	case JobBudgetAlertCheck, JobMonthlyDigest:
		return true
	default:
		return false
	}
}
