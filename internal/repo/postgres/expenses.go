package postgres

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spendhub/spendhub/internal/domain/expense"
	"github.com/spendhub/spendhub/internal/money"
	"github.com/spendhub/spendhub/internal/observability"
)

var ErrExpenseNotFound = errors.New("expense not found")

type ExpensesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewExpensesRepo(pool *pgxpool.Pool, prom *observability.Prom) *ExpensesRepo {
	return &ExpensesRepo{pool: pool, prom: prom}
}

func (r *ExpensesRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const expenseColumns = `id, user_id, budget_id, amount_cents, description, place, category, source, ts, created_at, updated_at`

func scanExpense(row pgx.Row) (expense.Expense, error) {
	var e expense.Expense
	var cents *int64

	err := row.Scan(
		&e.ID,
		&e.OwnerID,
		&e.BudgetID,
		&cents,
		&e.Description,
		&e.Place,
		&e.Category,
		&e.Source,
		&e.Timestamp,
		&e.CreatedAt,
		&e.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return expense.Expense{}, ErrExpenseNotFound
		}

		return expense.Expense{}, err
	}

	if cents != nil {
		a := money.Amount(*cents)
		e.Amount = &a
	}

	return e, nil
}

type CreateExpenseParams struct {
	OwnerID     string
	BudgetID    *string
	Amount      *money.Amount
	Description string
	Place       string
	Category    string
	Source      string
	Timestamp   time.Time
}

func (r *ExpensesRepo) Create(ctx context.Context, p CreateExpenseParams) (expense.Expense, error) {
	now := time.Now().UTC()

	e := expense.Expense{
		ID:          uuid.NewString(),
		OwnerID:     p.OwnerID,
		BudgetID:    p.BudgetID,
		Amount:      p.Amount,
		Description: p.Description,
		Place:       p.Place,
		Category:    p.Category,
		Source:      p.Source,
		Timestamp:   p.Timestamp.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var cents *int64

	if e.Amount != nil {
		c := int64(*e.Amount)
		cents = &c
	}

	err := r.observe("expenses.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO expenses (id, user_id, budget_id, amount_cents, description, place, category, source, ts, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			e.ID, e.OwnerID, e.BudgetID, cents, e.Description, e.Place, e.Category, e.Source, e.Timestamp, e.CreatedAt, e.UpdatedAt,
		)
		return err
	})

	if err != nil {
		return expense.Expense{}, err
	}

	return e, nil
}

func (r *ExpensesRepo) GetByID(ctx context.Context, id string) (expense.Expense, error) {
	var e expense.Expense
	var err error

	err = r.observe("expenses.get_by_id", func() error {
		e, err = scanExpense(r.pool.QueryRow(ctx,
			`SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id,
		))
		return err
	})

	return e, err
}

func (r *ExpensesRepo) ListForOwner(ctx context.Context, ownerID string, filter expense.ListFilter) ([]expense.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE user_id = $1`
	args := []any{ownerID}

	if filter.Category != "" {
		args = append(args, filter.Category)
		query += ` AND category = $2`
	}

	if !filter.From.IsZero() {
		args = append(args, filter.From.UTC())
		query += ` AND ts >= $` + strconv.Itoa(len(args))
	}

	if !filter.To.IsZero() {
		args = append(args, filter.To.UTC())
		query += ` AND ts <= $` + strconv.Itoa(len(args))
	}

	query += ` ORDER BY ts DESC, id DESC`

	return r.list(ctx, "expenses.list_for_owner", query, args)
}

// ListForOwnerInWindow satisfies budgeting.ExpenseWindowLister. The
// window is [from, to).
func (r *ExpensesRepo) ListForOwnerInWindow(ctx context.Context, ownerID string, from, to time.Time) ([]expense.Expense, error) {
	return r.list(ctx, "expenses.list_for_owner_in_window",
		`SELECT `+expenseColumns+` FROM expenses
		 WHERE user_id = $1 AND ts >= $2 AND ts < $3
		 ORDER BY ts ASC, id ASC`,
		[]any{ownerID, from.UTC(), to.UTC()},
	)
}

func (r *ExpensesRepo) ListForBudget(ctx context.Context, budgetID string) ([]expense.Expense, error) {
	return r.list(ctx, "expenses.list_for_budget",
		`SELECT `+expenseColumns+` FROM expenses WHERE budget_id = $1 ORDER BY ts DESC, id DESC`,
		[]any{budgetID},
	)
}

func (r *ExpensesRepo) list(ctx context.Context, op, query string, args []any) ([]expense.Expense, error) {
	var out []expense.Expense

	err := r.observe(op, func() error {
		rows, err := r.pool.Query(ctx, query, args...)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			e, err := scanExpense(rows)

			if err != nil {
				return err
			}

			out = append(out, e)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

// UpdateExpenseFields: nil pointers leave the column untouched. BudgetID
// uses a separate set flag so the link can be cleared explicitly.
type UpdateExpenseFields struct {
	Amount      *money.Amount
	Description *string
	Place       *string
	Category    *string
	Source      *string
	Timestamp   *time.Time
	BudgetID    *string
	SetBudgetID bool
}

func (r *ExpensesRepo) Update(ctx context.Context, id string, fields UpdateExpenseFields) (expense.Expense, error) {
	var cents *int64

	if fields.Amount != nil {
		c := int64(*fields.Amount)
		cents = &c
	}

	var ts *time.Time

	if fields.Timestamp != nil {
		t := fields.Timestamp.UTC()
		ts = &t
	}

	var e expense.Expense
	var err error

	err = r.observe("expenses.update", func() error {
		e, err = scanExpense(r.pool.QueryRow(ctx,
			`UPDATE expenses
			 SET amount_cents = COALESCE($2, amount_cents),
			     description = COALESCE($3, description),
			     place = COALESCE($4, place),
			     category = COALESCE($5, category),
			     source = COALESCE($6, source),
			     ts = COALESCE($7, ts),
			     budget_id = CASE WHEN $8 THEN $9 ELSE budget_id END,
			     updated_at = NOW()
			 WHERE id = $1
			 RETURNING `+expenseColumns,
			id, cents, fields.Description, fields.Place, fields.Category, fields.Source, ts, fields.SetBudgetID, fields.BudgetID,
		))
		return err
	})

	return e, err
}

func (r *ExpensesRepo) Delete(ctx context.Context, id string) error {
	var tag pgconn.CommandTag
	var err error

	err = r.observe("expenses.delete", func() error {
		tag, err = r.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
		return err
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrExpenseNotFound
	}

	return nil
}
