package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spendhub/spendhub/internal/budgeting"
	"github.com/spendhub/spendhub/internal/domain/budget"
	"github.com/spendhub/spendhub/internal/money"
	"github.com/spendhub/spendhub/internal/observability"
)

var ErrBudgetNotFound = errors.New("budget not found")

type BudgetsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewBudgetsRepo(pool *pgxpool.Pool, prom *observability.Prom) *BudgetsRepo {
	return &BudgetsRepo{pool: pool, prom: prom}
}

func (r *BudgetsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const budgetColumns = `id, user_id, name, description, amount_cents, time_period, start_date, created_at, updated_at`

func scanBudget(row pgx.Row) (budget.Budget, error) {
	var b budget.Budget
	var cents int64

	err := row.Scan(
		&b.ID,
		&b.OwnerID,
		&b.Name,
		&b.Description,
		&cents,
		&b.TimePeriod,
		&b.StartDate,
		&b.CreatedAt,
		&b.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return budget.Budget{}, ErrBudgetNotFound
		}

		return budget.Budget{}, err
	}

	b.Amount = money.Amount(cents)

	return b, nil
}

type CreateBudgetParams struct {
	OwnerID     string
	Name        string
	Description string
	Amount      money.Amount
	TimePeriod  string
	StartDate   time.Time
}

func (r *BudgetsRepo) Create(ctx context.Context, p CreateBudgetParams) (budget.Budget, error) {
	now := time.Now().UTC()

	b := budget.Budget{
		ID:          uuid.NewString(),
		OwnerID:     p.OwnerID,
		Name:        p.Name,
		Description: p.Description,
		Amount:      p.Amount,
		TimePeriod:  p.TimePeriod,
		StartDate:   p.StartDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := r.observe("budgets.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO budgets (id, user_id, name, description, amount_cents, time_period, start_date, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			b.ID, b.OwnerID, b.Name, b.Description, int64(b.Amount), b.TimePeriod, b.StartDate, b.CreatedAt, b.UpdatedAt,
		)
		return err
	})

	if err != nil {
		return budget.Budget{}, err
	}

	return b, nil
}

func (r *BudgetsRepo) GetByID(ctx context.Context, id string) (budget.Budget, error) {
	var b budget.Budget
	var err error

	err = r.observe("budgets.get_by_id", func() error {
		b, err = scanBudget(r.pool.QueryRow(ctx,
			`SELECT `+budgetColumns+` FROM budgets WHERE id = $1`, id,
		))
		return err
	})

	return b, err
}

// FindForOwner returns the owner's single budget (MVP: at most one).
// Satisfies budgeting.BudgetFinder.
func (r *BudgetsRepo) FindForOwner(ctx context.Context, ownerID string) (budget.Budget, error) {
	var b budget.Budget
	var err error

	err = r.observe("budgets.find_for_owner", func() error {
		b, err = scanBudget(r.pool.QueryRow(ctx,
			`SELECT `+budgetColumns+` FROM budgets WHERE user_id = $1 ORDER BY created_at ASC LIMIT 1`,
			ownerID,
		))
		return err
	})

	if errors.Is(err, ErrBudgetNotFound) {
		return budget.Budget{}, budgeting.ErrBudgetNotFound
	}

	return b, err
}

func (r *BudgetsRepo) ListForOwner(ctx context.Context, ownerID string) ([]budget.Budget, error) {
	var out []budget.Budget

	err := r.observe("budgets.list_for_owner", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+budgetColumns+` FROM budgets WHERE user_id = $1 ORDER BY created_at ASC`,
			ownerID,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			b, err := scanBudget(rows)

			if err != nil {
				return err
			}

			out = append(out, b)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

// UpdateBudgetFields: nil pointers leave the column untouched.
type UpdateBudgetFields struct {
	Name        *string
	Description *string
	Amount      *money.Amount
	TimePeriod  *string
	StartDate   *time.Time
}

func (r *BudgetsRepo) Update(ctx context.Context, id string, fields UpdateBudgetFields) (budget.Budget, error) {
	var amountCents *int64

	if fields.Amount != nil {
		cents := int64(*fields.Amount)
		amountCents = &cents
	}

	var b budget.Budget
	var err error

	err = r.observe("budgets.update", func() error {
		b, err = scanBudget(r.pool.QueryRow(ctx,
			`UPDATE budgets
			 SET name = COALESCE($2, name),
			     description = COALESCE($3, description),
			     amount_cents = COALESCE($4, amount_cents),
			     time_period = COALESCE($5, time_period),
			     start_date = COALESCE($6, start_date),
			     updated_at = NOW()
			 WHERE id = $1
			 RETURNING `+budgetColumns,
			id, fields.Name, fields.Description, amountCents, fields.TimePeriod, fields.StartDate,
		))
		return err
	})

	return b, err
}

func (r *BudgetsRepo) Delete(ctx context.Context, id string) error {
	var tag pgconn.CommandTag
	var err error

	err = r.observe("budgets.delete", func() error {
		tag, err = r.pool.Exec(ctx, `DELETE FROM budgets WHERE id = $1`, id)
		return err
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrBudgetNotFound
	}

	return nil
}
