package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spendhub/spendhub/internal/auth"
	"github.com/spendhub/spendhub/internal/budgeting"
	"github.com/spendhub/spendhub/internal/config"
	"github.com/spendhub/spendhub/internal/domain/budget"
	"github.com/spendhub/spendhub/internal/domain/expense"
	"github.com/spendhub/spendhub/internal/domain/job"
	"github.com/spendhub/spendhub/internal/domain/user"
	httpx "github.com/spendhub/spendhub/internal/http"
	"github.com/spendhub/spendhub/internal/http/handlers"
	"github.com/spendhub/spendhub/internal/http/middlewares"
	"github.com/spendhub/spendhub/internal/money"
	"github.com/spendhub/spendhub/internal/repo/postgres"
	"github.com/spendhub/spendhub/internal/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testJWTSecret = "0123456789abcdef0123456789abcdef"

// In-memory stores backing the handler tests. They mirror the sentinel
// errors of the postgres repos so handlers exercise the same branches.

type fakeUsers struct {
	byID map[string]user.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[string]user.User{}}
}

func (f *fakeUsers) add(u user.User) user.User {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Enabled = true
	f.byID[u.ID] = u
	return u
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (user.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return user.User{}, postgres.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) ExistsByEmail(_ context.Context, email string) (bool, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) ExistsByUsername(_ context.Context, username string) (bool, error) {
	for _, u := range f.byID {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (user.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, postgres.ErrUserNotFound
}

func (f *fakeUsers) Create(_ context.Context, username, email, passwordHash, role string) (user.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return user.User{}, postgres.ErrEmailAlreadyUsed
		}
		if u.Username == username {
			return user.User{}, postgres.ErrUsernameTaken
		}
	}

	u := user.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		Enabled:      true,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUsers) Update(_ context.Context, id string, fields postgres.UpdateFields) (user.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return user.User{}, postgres.ErrUserNotFound
	}

	if fields.Username != nil {
		u.Username = *fields.Username
	}
	if fields.Email != nil {
		u.Email = *fields.Email
	}
	if fields.PasswordHash != nil {
		u.PasswordHash = *fields.PasswordHash
	}
	if fields.Role != nil {
		u.Role = *fields.Role
	}
	if fields.Enabled != nil {
		u.Enabled = *fields.Enabled
	}

	f.byID[id] = u
	return u, nil
}

func (f *fakeUsers) Delete(_ context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return postgres.ErrUserNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeUsers) List(_ context.Context) ([]user.User, error) {
	out := make([]user.User, 0, len(f.byID))
	for _, u := range f.byID {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeBudgets struct {
	byID map[string]budget.Budget
}

func newFakeBudgets() *fakeBudgets {
	return &fakeBudgets{byID: map[string]budget.Budget{}}
}

func (f *fakeBudgets) add(b budget.Budget) budget.Budget {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	f.byID[b.ID] = b
	return b
}

func (f *fakeBudgets) Create(_ context.Context, p postgres.CreateBudgetParams) (budget.Budget, error) {
	for _, existing := range f.byID {
		if existing.OwnerID == p.OwnerID {
			return budget.Budget{}, &pgconn.PgError{Code: "23505", ConstraintName: "budgets_user_id_key"}
		}
	}
	b := budget.Budget{
		ID:          uuid.NewString(),
		OwnerID:     p.OwnerID,
		Name:        p.Name,
		Description: p.Description,
		Amount:      p.Amount,
		TimePeriod:  p.TimePeriod,
		StartDate:   p.StartDate,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	f.byID[b.ID] = b
	return b, nil
}

func (f *fakeBudgets) GetByID(_ context.Context, id string) (budget.Budget, error) {
	b, ok := f.byID[id]
	if !ok {
		return budget.Budget{}, postgres.ErrBudgetNotFound
	}
	return b, nil
}

func (f *fakeBudgets) FindForOwner(_ context.Context, ownerID string) (budget.Budget, error) {
	for _, b := range f.byID {
		if b.OwnerID == ownerID {
			return b, nil
		}
	}
	return budget.Budget{}, budgeting.ErrBudgetNotFound
}

func (f *fakeBudgets) ListForOwner(_ context.Context, ownerID string) ([]budget.Budget, error) {
	var out []budget.Budget
	for _, b := range f.byID {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBudgets) Update(_ context.Context, id string, fields postgres.UpdateBudgetFields) (budget.Budget, error) {
	b, ok := f.byID[id]
	if !ok {
		return budget.Budget{}, postgres.ErrBudgetNotFound
	}

	if fields.Name != nil {
		b.Name = *fields.Name
	}
	if fields.Description != nil {
		b.Description = *fields.Description
	}
	if fields.Amount != nil {
		b.Amount = *fields.Amount
	}
	if fields.TimePeriod != nil {
		b.TimePeriod = *fields.TimePeriod
	}
	if fields.StartDate != nil {
		b.StartDate = *fields.StartDate
	}

	f.byID[id] = b
	return b, nil
}

func (f *fakeBudgets) Delete(_ context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return postgres.ErrBudgetNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeExpenses struct {
	byID map[string]expense.Expense
}

func newFakeExpenses() *fakeExpenses {
	return &fakeExpenses{byID: map[string]expense.Expense{}}
}

func (f *fakeExpenses) add(e expense.Expense) expense.Expense {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	f.byID[e.ID] = e
	return e
}

func (f *fakeExpenses) Create(_ context.Context, p postgres.CreateExpenseParams) (expense.Expense, error) {
	e := expense.Expense{
		ID:          uuid.NewString(),
		OwnerID:     p.OwnerID,
		BudgetID:    p.BudgetID,
		Amount:      p.Amount,
		Description: p.Description,
		Place:       p.Place,
		Category:    p.Category,
		Source:      p.Source,
		Timestamp:   p.Timestamp,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	f.byID[e.ID] = e
	return e, nil
}

func (f *fakeExpenses) GetByID(_ context.Context, id string) (expense.Expense, error) {
	e, ok := f.byID[id]
	if !ok {
		return expense.Expense{}, postgres.ErrExpenseNotFound
	}
	return e, nil
}

func (f *fakeExpenses) ListForOwner(_ context.Context, ownerID string, filter expense.ListFilter) ([]expense.Expense, error) {
	var out []expense.Expense
	for _, e := range f.byID {
		if e.OwnerID != ownerID {
			continue
		}
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		if !filter.From.IsZero() && e.Timestamp.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.Timestamp.After(filter.To) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeExpenses) ListForOwnerInWindow(_ context.Context, ownerID string, from, to time.Time) ([]expense.Expense, error) {
	var out []expense.Expense
	for _, e := range f.byID {
		if e.OwnerID != ownerID {
			continue
		}
		ts := e.Timestamp.UTC()
		if ts.Before(from) || !ts.Before(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeExpenses) ListForBudget(_ context.Context, budgetID string) ([]expense.Expense, error) {
	var out []expense.Expense
	for _, e := range f.byID {
		if e.BudgetID != nil && *e.BudgetID == budgetID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeExpenses) Update(_ context.Context, id string, fields postgres.UpdateExpenseFields) (expense.Expense, error) {
	e, ok := f.byID[id]
	if !ok {
		return expense.Expense{}, postgres.ErrExpenseNotFound
	}

	if fields.Amount != nil {
		e.Amount = fields.Amount
	}
	if fields.Description != nil {
		e.Description = *fields.Description
	}
	if fields.Place != nil {
		e.Place = *fields.Place
	}
	if fields.Category != nil {
		e.Category = *fields.Category
	}
	if fields.Source != nil {
		e.Source = *fields.Source
	}
	if fields.Timestamp != nil {
		e.Timestamp = *fields.Timestamp
	}
	if fields.SetBudgetID {
		e.BudgetID = fields.BudgetID
	}

	f.byID[id] = e
	return e, nil
}

func (f *fakeExpenses) Delete(_ context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return postgres.ErrExpenseNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeQueue struct {
	created []job.CreateRequest
}

func (f *fakeQueue) Create(_ context.Context, req job.CreateRequest) (job.Job, error) {
	f.created = append(f.created, req)
	return job.New(req), nil
}

// testEnv wires the real router and middleware over the fakes.
type testEnv struct {
	router   *gin.Engine
	jwt      *auth.Manager
	users    *fakeUsers
	budgets  *fakeBudgets
	expenses *fakeExpenses
	queue    *fakeQueue
	jobStore *fakeJobStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newFakeUsers()
	budgets := newFakeBudgets()
	expenses := newFakeExpenses()
	queue := &fakeQueue{}
	jobStore := &fakeJobStore{jobs: map[string]job.Job{}}

	jwtManager := auth.NewManager(testJWTSecret, time.Hour)
	svc := budgeting.NewService(expenses, budgets, nil)

	router := httpx.NewRouter(httpx.RouterDeps{
		Cfg:      config.Config{Env: "test"},
		Auth:     handlers.NewAuthHandler(users, users, jwtManager, config.Config{}),
		Users:    handlers.NewUsersHandler(users),
		Budgets:  handlers.NewBudgetsHandler(budgets, expenses, svc),
		Expenses: handlers.NewExpensesHandler(expenses, budgets, svc, queue, nil),
		Jobs:     handlers.NewAdminJobsHandler(jobStore),
		Health:   handlers.NewHealthHandler(nil, nil),
		AuthMW:   middlewares.NewAuthMiddleware(jwtManager, users),
	})

	return &testEnv{
		router:   router,
		jwt:      jwtManager,
		users:    users,
		budgets:  budgets,
		expenses: expenses,
		queue:    queue,
		jobStore: jobStore,
	}
}

type fakeJobStore struct {
	jobs map[string]job.Job
}

func (f *fakeJobStore) List(_ context.Context, status string, _ int) ([]job.Job, error) {
	var out []job.Job
	for _, j := range f.jobs {
		if status == "" || string(j.Status) == status {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeJobStore) GetByID(_ context.Context, id string) (job.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return job.Job{}, job.ErrJobNotFound
	}
	return j, nil
}

func (f *fakeJobStore) Retry(_ context.Context, id string) error {
	j, ok := f.jobs[id]
	if !ok {
		return job.ErrJobNotFound
	}
	if j.Status != job.StatusFailed {
		return postgres.ErrJobNotFailed
	}
	j.Status = job.StatusPending
	f.jobs[id] = j
	return nil
}

func (e *testEnv) addUser(t *testing.T, username, email, password, role string) user.User {
	t.Helper()

	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatal(err)
	}

	return e.users.add(user.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
}

func (e *testEnv) token(t *testing.T, u user.User) string {
	t.Helper()

	tok, err := e.jwt.Issue(u)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return out
}

func mustAmount(t *testing.T, s string) money.Amount {
	t.Helper()

	a, err := money.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return a
}
