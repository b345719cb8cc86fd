package jobs

// BudgetAlertCheckPayload identifies which user and month to recheck.
// Payloads stay ID-based; the worker loads current data from the store
// so a stale snapshot never drives an alert.
type BudgetAlertCheckPayload struct {
	UserID    string `json:"userId"`
	Month     string `json:"month"` // YYYY-MM
	RequestID string `json:"requestId,omitempty"`
}

type MonthlyDigestPayload struct {
	UserID string `json:"userId"`
	Month  string `json:"month"`
}
