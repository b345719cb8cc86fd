package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spendhub/spendhub/internal/authz"
	"github.com/spendhub/spendhub/internal/budgeting"
	"github.com/spendhub/spendhub/internal/config"
	"github.com/spendhub/spendhub/internal/domain/budget"
	"github.com/spendhub/spendhub/internal/domain/expense"
	"github.com/spendhub/spendhub/internal/money"
	"github.com/spendhub/spendhub/internal/repo/postgres"
)

type BudgetStore interface {
	Create(ctx context.Context, p postgres.CreateBudgetParams) (budget.Budget, error)
	GetByID(ctx context.Context, id string) (budget.Budget, error)
	FindForOwner(ctx context.Context, ownerID string) (budget.Budget, error)
	ListForOwner(ctx context.Context, ownerID string) ([]budget.Budget, error)
	Update(ctx context.Context, id string, fields postgres.UpdateBudgetFields) (budget.Budget, error)
	Delete(ctx context.Context, id string) error
}

type BudgetExpenseLister interface {
	ListForBudget(ctx context.Context, budgetID string) ([]expense.Expense, error)
}

type BudgetsHandler struct {
	store    BudgetStore
	expenses BudgetExpenseLister
	svc      *budgeting.Service
}

func NewBudgetsHandler(store BudgetStore, expenses BudgetExpenseLister, svc *budgeting.Service) *BudgetsHandler {
	return &BudgetsHandler{store: store, expenses: expenses, svc: svc}
}

// budgetView renders the amount as a decimal string; the raw cents
// never leave the server.
type budgetView struct {
	budget.Budget
	Amount string `json:"amount"`
}

func newBudgetView(b budget.Budget) budgetView {
	return budgetView{Budget: b, Amount: b.Amount.String()}
}

type CreateBudgetRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=120"`
	Description string `json:"description" binding:"omitempty,max=500"`
	Amount      string `json:"amount" binding:"required"`
	TimePeriod  string `json:"timePeriod" binding:"omitempty,oneof=MONTHLY"`
	StartDate   string `json:"startDate" binding:"omitempty"`
}

func (h *BudgetsHandler) Create(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	if !authz.Authorize(actor, authz.ActionCreateOwned, "").Allowed() {
		RespondForbidden(ctx, "Cannot create budget")
		return
	}

	var req CreateBudgetRequest
	if !BindJSON(ctx, &req) {
		return
	}

	amount, err := money.Parse(req.Amount)
	if err != nil {
		RespondBadRequest(ctx, "Invalid amount", gin.H{"fields": []FieldError{
			{Field: "amount", Rule: "money", Message: err.Error()},
		}})
		return
	}
	if amount <= 0 {
		RespondBadRequest(ctx, "Invalid amount", gin.H{"fields": []FieldError{
			{Field: "amount", Rule: "gt", Param: "0", Message: "must be greater than 0"},
		}})
		return
	}

	timePeriod := req.TimePeriod
	if timePeriod == "" {
		timePeriod = "MONTHLY"
	}

	startDate := time.Now().UTC()
	if req.StartDate != "" {
		startDate, err = time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			RespondBadRequest(ctx, "Invalid startDate, want YYYY-MM-DD", nil)
			return
		}
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	// Owner always comes from the verified identity, never the body.
	b, err := h.store.Create(cctx, postgres.CreateBudgetParams{
		OwnerID:     authz.ForcedOwner(actor),
		Name:        req.Name,
		Description: req.Description,
		Amount:      amount,
		TimePeriod:  timePeriod,
		StartDate:   startDate,
	})
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			RespondConflict(ctx, "budget_exists", "A budget already exists for this user.")
			return
		}
		RespondInternal(ctx, "Could not create budget")
		return
	}

	ctx.JSON(http.StatusCreated, newBudgetView(b))
}

func (h *BudgetsHandler) List(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	rows, err := h.store.ListForOwner(cctx, actor.ID)
	if err != nil {
		RespondInternal(ctx, "Could not list budgets")
		return
	}

	items := make([]budgetView, 0, len(rows))
	for _, b := range rows {
		items = append(items, newBudgetView(b))
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

// loadOwned fetches the budget and runs the ownership check. Budgets
// that exist but belong to someone else read as absent, so the response
// never reveals whether the id is in use.
func (h *BudgetsHandler) loadOwned(ctx *gin.Context, actor authz.Actor, action authz.Action) (budget.Budget, bool) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	b, err := h.store.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, postgres.ErrBudgetNotFound) {
			RespondNotFound(ctx, "Budget not found")
			return budget.Budget{}, false
		}
		RespondInternal(ctx, "Could not fetch budget")
		return budget.Budget{}, false
	}

	if !authz.Authorize(actor, action, b.OwnerID).Allowed() {
		if action == authz.ActionReadOwned {
			RespondNotFound(ctx, "Budget not found")
		} else {
			RespondForbidden(ctx, "Cannot modify this budget")
		}
		return budget.Budget{}, false
	}

	return b, true
}

func (h *BudgetsHandler) Get(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	b, ok := h.loadOwned(ctx, actor, authz.ActionReadOwned)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, newBudgetView(b))
}

type UpdateBudgetRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=120"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	Amount      *string `json:"amount"`
	TimePeriod  *string `json:"timePeriod" binding:"omitempty,oneof=MONTHLY"`
	StartDate   *string `json:"startDate"`
}

func (h *BudgetsHandler) Update(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	b, ok := h.loadOwned(ctx, actor, authz.ActionUpdateOwned)
	if !ok {
		return
	}

	var req UpdateBudgetRequest
	if !BindJSON(ctx, &req) {
		return
	}

	fields := postgres.UpdateBudgetFields{
		Name:        req.Name,
		Description: req.Description,
		TimePeriod:  req.TimePeriod,
	}

	if req.Amount != nil {
		amount, err := money.Parse(*req.Amount)
		if err != nil || amount <= 0 {
			RespondBadRequest(ctx, "Invalid amount", nil)
			return
		}
		fields.Amount = &amount
	}

	if req.StartDate != nil {
		sd, err := time.Parse("2006-01-02", *req.StartDate)
		if err != nil {
			RespondBadRequest(ctx, "Invalid startDate, want YYYY-MM-DD", nil)
			return
		}
		fields.StartDate = &sd
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	updated, err := h.store.Update(cctx, b.ID, fields)
	if err != nil {
		if errors.Is(err, postgres.ErrBudgetNotFound) {
			RespondNotFound(ctx, "Budget not found")
			return
		}
		RespondInternal(ctx, "Could not update budget")
		return
	}

	h.svc.InvalidateTotals(ctx.Request.Context(), actor.ID)

	ctx.JSON(http.StatusOK, newBudgetView(updated))
}

func (h *BudgetsHandler) Delete(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	b, ok := h.loadOwned(ctx, actor, authz.ActionDeleteOwned)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.store.Delete(cctx, b.ID); err != nil {
		if errors.Is(err, postgres.ErrBudgetNotFound) {
			RespondNotFound(ctx, "Budget not found")
			return
		}
		RespondInternal(ctx, "Could not delete budget")
		return
	}

	ctx.Status(http.StatusNoContent)
}

// Status reports the caller's spend against their budget for a month.
// Defaults to the current UTC month when ?month= is absent.
func (h *BudgetsHandler) Status(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	monthStr := ctx.Query("month")
	var ym budgeting.YearMonth
	var err error

	if monthStr == "" {
		now := time.Now().UTC()
		ym = budgeting.YearMonth{Year: now.Year(), Month: now.Month()}
	} else {
		ym, err = budgeting.ParseYearMonth(monthStr)
		if err != nil {
			RespondBadRequest(ctx, "Invalid month, want YYYY-MM", nil)
			return
		}
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	total, err := h.svc.MonthlyTotal(cctx, actor.ID, ym)
	if err != nil {
		RespondInternal(ctx, "Could not compute monthly total")
		return
	}

	resp := gin.H{
		"month":        ym.String(),
		"total":        total.String(),
		"isOverBudget": false,
	}

	b, err := h.store.FindForOwner(cctx, actor.ID)
	if err != nil {
		if !errors.Is(err, budgeting.ErrBudgetNotFound) {
			RespondInternal(ctx, "Could not fetch budget")
			return
		}
		// No budget: total still reported, overage impossible.
		ctx.JSON(http.StatusOK, resp)
		return
	}

	resp["budget"] = newBudgetView(b)
	resp["isOverBudget"] = total > b.Amount

	ctx.JSON(http.StatusOK, resp)
}

// ExpensesTotal sums every expense linked to one budget, regardless of
// month.
func (h *BudgetsHandler) ExpensesTotal(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	b, ok := h.loadOwned(ctx, actor, authz.ActionReadOwned)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	rows, err := h.expenses.ListForBudget(cctx, b.ID)
	if err != nil {
		RespondInternal(ctx, "Could not sum expenses")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"budgetId": b.ID,
		"total":    budgeting.Sum(rows).String(),
		"count":    len(rows),
	})
}
