package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spendhub/spendhub/internal/authz"
	"github.com/spendhub/spendhub/internal/budgeting"
	"github.com/spendhub/spendhub/internal/config"
	"github.com/spendhub/spendhub/internal/domain/expense"
	"github.com/spendhub/spendhub/internal/domain/job"
	"github.com/spendhub/spendhub/internal/http/middlewares"
	"github.com/spendhub/spendhub/internal/jobs"
	"github.com/spendhub/spendhub/internal/money"
	"github.com/spendhub/spendhub/internal/repo/postgres"
)

type ExpenseStore interface {
	Create(ctx context.Context, p postgres.CreateExpenseParams) (expense.Expense, error)
	GetByID(ctx context.Context, id string) (expense.Expense, error)
	ListForOwner(ctx context.Context, ownerID string, filter expense.ListFilter) ([]expense.Expense, error)
	Update(ctx context.Context, id string, fields postgres.UpdateExpenseFields) (expense.Expense, error)
	Delete(ctx context.Context, id string) error
}

type AlertEnqueuer interface {
	Create(ctx context.Context, req job.CreateRequest) (job.Job, error)
}

type ExpensesHandler struct {
	store   ExpenseStore
	budgets BudgetStore
	svc     *budgeting.Service
	queue   AlertEnqueuer
	logger  *slog.Logger
}

func NewExpensesHandler(store ExpenseStore, budgets BudgetStore, svc *budgeting.Service, queue AlertEnqueuer, logger *slog.Logger) *ExpensesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpensesHandler{
		store:   store,
		budgets: budgets,
		svc:     svc,
		queue:   queue,
		logger:  logger,
	}
}

type expenseView struct {
	expense.Expense
	Amount *string `json:"amount,omitempty"`
}

func newExpenseView(e expense.Expense) expenseView {
	v := expenseView{Expense: e}
	if e.Amount != nil {
		s := e.Amount.String()
		v.Amount = &s
	}
	return v
}

// afterWrite runs the bookkeeping shared by every expense mutation:
// cached totals are dropped and an over-budget check is queued for the
// affected month. Queue failures are logged, never surfaced; the
// expense write already committed.
func (h *ExpensesHandler) afterWrite(ctx *gin.Context, ownerID string, ts time.Time) {
	rctx := ctx.Request.Context()

	h.svc.InvalidateTotals(rctx, ownerID)

	if h.queue == nil {
		return
	}

	month := budgeting.YearMonth{Year: ts.UTC().Year(), Month: ts.UTC().Month()}

	payload, err := jobs.EncodePayload(jobs.JobBudgetAlertCheck, jobs.BudgetAlertCheckPayload{
		UserID:    ownerID,
		Month:     month.String(),
		RequestID: requestIDFrom(ctx),
	})
	if err != nil {
		h.logger.ErrorContext(rctx, "alert payload encode failed", "error", err)
		return
	}

	j, err := h.queue.Create(rctx, job.CreateRequest{
		Type:    string(jobs.JobBudgetAlertCheck),
		Payload: payload,
		UserID:  &ownerID,
	})
	if err != nil {
		h.logger.ErrorContext(rctx, "alert enqueue failed", "error", err, "user_id", ownerID)
		return
	}

	ctx.Set(middlewares.CtxJobID, j.ID)
}

type CreateExpenseRequest struct {
	Amount      *string `json:"amount"`
	Description string  `json:"description" binding:"omitempty,max=500"`
	Place       string  `json:"place" binding:"omitempty,max=120"`
	Category    string  `json:"category" binding:"omitempty,max=64"`
	Source      string  `json:"source" binding:"omitempty,max=64"`
	Timestamp   *string `json:"timestamp"`
	BudgetID    *string `json:"budgetId"`
}

func (h *ExpensesHandler) Create(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	if !authz.Authorize(actor, authz.ActionCreateOwned, "").Allowed() {
		RespondForbidden(ctx, "Cannot create expense")
		return
	}

	var req CreateExpenseRequest
	if !BindJSON(ctx, &req) {
		return
	}

	var amount *money.Amount
	if req.Amount != nil {
		a, err := money.Parse(*req.Amount)
		if err != nil {
			RespondBadRequest(ctx, "Invalid amount", gin.H{"fields": []FieldError{
				{Field: "amount", Rule: "money", Message: err.Error()},
			}})
			return
		}
		if a <= 0 {
			RespondBadRequest(ctx, "Invalid amount", gin.H{"fields": []FieldError{
				{Field: "amount", Rule: "gt", Param: "0", Message: "must be greater than 0"},
			}})
			return
		}
		amount = &a
	}

	ts := time.Now().UTC()
	if req.Timestamp != nil {
		parsed, err := time.Parse(time.RFC3339, *req.Timestamp)
		if err != nil {
			RespondBadRequest(ctx, "Invalid timestamp, want RFC3339", nil)
			return
		}
		ts = parsed.UTC()
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	// A linked budget must exist and belong to the caller.
	if req.BudgetID != nil {
		b, err := h.budgets.GetByID(cctx, *req.BudgetID)
		if err != nil || b.OwnerID != actor.ID {
			RespondBadRequest(ctx, "Unknown budgetId", nil)
			return
		}
	}

	e, err := h.store.Create(cctx, postgres.CreateExpenseParams{
		OwnerID:     authz.ForcedOwner(actor),
		BudgetID:    req.BudgetID,
		Amount:      amount,
		Description: req.Description,
		Place:       req.Place,
		Category:    req.Category,
		Source:      req.Source,
		Timestamp:   ts,
	})
	if err != nil {
		RespondInternal(ctx, "Could not create expense")
		return
	}

	h.afterWrite(ctx, actor.ID, e.Timestamp)

	ctx.JSON(http.StatusCreated, newExpenseView(e))
}

func (h *ExpensesHandler) List(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var filter expense.ListFilter
	filter.Category = ctx.Query("category")

	if fromStr := ctx.Query("from"); fromStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			RespondBadRequest(ctx, "Invalid from, want RFC3339", nil)
			return
		}
		filter.From = from
	}

	if toStr := ctx.Query("to"); toStr != "" {
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			RespondBadRequest(ctx, "Invalid to, want RFC3339", nil)
			return
		}
		filter.To = to
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	rows, err := h.store.ListForOwner(cctx, actor.ID, filter)
	if err != nil {
		RespondInternal(ctx, "Could not list expenses")
		return
	}

	items := make([]expenseView, 0, len(rows))
	for _, e := range rows {
		items = append(items, newExpenseView(e))
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

// ListForUser serves /users/:id/expenses. Expenses are owned resources,
// so only the user themselves may list them; admins are refused too.
func (h *ExpensesHandler) ListForUser(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	id := ctx.Param("id")

	if !authz.Authorize(actor, authz.ActionReadOwned, id).Allowed() {
		RespondForbidden(ctx, "Cannot view another user's expenses")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	rows, err := h.store.ListForOwner(cctx, id, expense.ListFilter{})
	if err != nil {
		RespondInternal(ctx, "Could not list expenses")
		return
	}

	items := make([]expenseView, 0, len(rows))
	for _, e := range rows {
		items = append(items, newExpenseView(e))
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

func (h *ExpensesHandler) loadOwned(ctx *gin.Context, actor authz.Actor, action authz.Action) (expense.Expense, bool) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	e, err := h.store.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, postgres.ErrExpenseNotFound) {
			RespondNotFound(ctx, "Expense not found")
			return expense.Expense{}, false
		}
		RespondInternal(ctx, "Could not fetch expense")
		return expense.Expense{}, false
	}

	if !authz.Authorize(actor, action, e.OwnerID).Allowed() {
		if action == authz.ActionReadOwned {
			RespondNotFound(ctx, "Expense not found")
		} else {
			RespondForbidden(ctx, "Cannot modify this expense")
		}
		return expense.Expense{}, false
	}

	return e, true
}

func (h *ExpensesHandler) Get(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	e, ok := h.loadOwned(ctx, actor, authz.ActionReadOwned)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, newExpenseView(e))
}

type UpdateExpenseRequest struct {
	Amount      *string `json:"amount"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	Place       *string `json:"place" binding:"omitempty,max=120"`
	Category    *string `json:"category" binding:"omitempty,max=64"`
	Source      *string `json:"source" binding:"omitempty,max=64"`
	Timestamp   *string `json:"timestamp"`
	BudgetID    *string `json:"budgetId"`
	ClearBudget bool    `json:"clearBudget"`
}

func (h *ExpensesHandler) Update(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	e, ok := h.loadOwned(ctx, actor, authz.ActionUpdateOwned)
	if !ok {
		return
	}

	var req UpdateExpenseRequest
	if !BindJSON(ctx, &req) {
		return
	}

	fields := postgres.UpdateExpenseFields{
		Description: req.Description,
		Place:       req.Place,
		Category:    req.Category,
		Source:      req.Source,
	}

	if req.Amount != nil {
		a, err := money.Parse(*req.Amount)
		if err != nil || a <= 0 {
			RespondBadRequest(ctx, "Invalid amount", nil)
			return
		}
		fields.Amount = &a
	}

	if req.Timestamp != nil {
		parsed, err := time.Parse(time.RFC3339, *req.Timestamp)
		if err != nil {
			RespondBadRequest(ctx, "Invalid timestamp, want RFC3339", nil)
			return
		}
		utc := parsed.UTC()
		fields.Timestamp = &utc
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	switch {
	case req.ClearBudget:
		fields.SetBudgetID = true
		fields.BudgetID = nil
	case req.BudgetID != nil:
		b, err := h.budgets.GetByID(cctx, *req.BudgetID)
		if err != nil || b.OwnerID != actor.ID {
			RespondBadRequest(ctx, "Unknown budgetId", nil)
			return
		}
		fields.SetBudgetID = true
		fields.BudgetID = req.BudgetID
	}

	updated, err := h.store.Update(cctx, e.ID, fields)
	if err != nil {
		if errors.Is(err, postgres.ErrExpenseNotFound) {
			RespondNotFound(ctx, "Expense not found")
			return
		}
		RespondInternal(ctx, "Could not update expense")
		return
	}

	// A moved timestamp affects both the old and the new month; the
	// alert check targets the month the expense now sits in.
	h.afterWrite(ctx, actor.ID, updated.Timestamp)

	ctx.JSON(http.StatusOK, newExpenseView(updated))
}

func (h *ExpensesHandler) Delete(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	e, ok := h.loadOwned(ctx, actor, authz.ActionDeleteOwned)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.store.Delete(cctx, e.ID); err != nil {
		if errors.Is(err, postgres.ErrExpenseNotFound) {
			RespondNotFound(ctx, "Expense not found")
			return
		}
		RespondInternal(ctx, "Could not delete expense")
		return
	}

	h.svc.InvalidateTotals(ctx.Request.Context(), actor.ID)

	ctx.Status(http.StatusNoContent)
}
