package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/spendhub/spendhub/internal/config"
	"github.com/spendhub/spendhub/internal/domain/user"
	"github.com/spendhub/spendhub/internal/http/handlers"
	"github.com/spendhub/spendhub/internal/http/middlewares"
	"github.com/spendhub/spendhub/internal/observability"
)

// RouterDeps carries everything the HTTP surface needs. main wires the
// concrete repos and services; tests substitute fakes.
type RouterDeps struct {
	Cfg      config.Config
	Auth     *handlers.AuthHandler
	Users    *handlers.UsersHandler
	Budgets  *handlers.BudgetsHandler
	Expenses *handlers.ExpensesHandler
	Jobs     *handlers.AdminJobsHandler
	Health   *handlers.HealthHandler
	AuthMW   *middlewares.AuthMiddleware
	Prom     *observability.Prom
	PromReg  *prometheus.Registry
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(deps.Cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(1 << 20)) // 1 MiB

	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}

	r.Use(otelgin.Middleware("spendhub-api"))

	// probes and metrics stay outside auth
	r.GET("/healthz", deps.Health.Healthz)
	r.GET("/readyz", deps.Health.Readyz)

	if deps.PromReg != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.PromReg, promhttp.HandlerOpts{})))
	}

	// tighter bucket for credential guessing, wider one for normal use
	loginLimiter := middlewares.NewRateLimiter(10, time.Minute)
	apiLimiter := middlewares.NewRateLimiter(120, time.Minute)

	authGroup := r.Group("/auth")
	authGroup.Use(middlewares.RequireJSON())
	authGroup.Use(loginLimiter.RateLimiterMiddleware(middlewares.KeyByIP))
	{
		authGroup.POST("/register", deps.Auth.Register)
		authGroup.POST("/login", deps.Auth.Login)
	}

	api := r.Group("/")
	api.Use(deps.AuthMW.RequireAuth())
	api.Use(apiLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP))
	{
		api.GET("/users/me", deps.Users.Me)
		api.GET("/users", deps.Users.List)
		api.POST("/users", middlewares.RequireJSON(), deps.Users.Create)
		api.GET("/users/:id", deps.Users.Get)
		api.PATCH("/users/:id", middlewares.RequireJSON(), deps.Users.Update)
		api.DELETE("/users/:id", deps.Users.Delete)
		api.GET("/users/:id/expenses", deps.Expenses.ListForUser)

		api.POST("/budgets", middlewares.RequireJSON(), deps.Budgets.Create)
		api.GET("/budgets", deps.Budgets.List)
		api.GET("/budgets/status", deps.Budgets.Status)
		api.GET("/budgets/:id", deps.Budgets.Get)
		api.PATCH("/budgets/:id", middlewares.RequireJSON(), deps.Budgets.Update)
		api.DELETE("/budgets/:id", deps.Budgets.Delete)
		api.GET("/budgets/:id/expenses/total", deps.Budgets.ExpensesTotal)

		api.POST("/expenses", middlewares.RequireJSON(), deps.Expenses.Create)
		api.GET("/expenses", deps.Expenses.List)
		api.GET("/expenses/:id", deps.Expenses.Get)
		api.PATCH("/expenses/:id", middlewares.RequireJSON(), deps.Expenses.Update)
		api.DELETE("/expenses/:id", deps.Expenses.Delete)
	}

	admin := r.Group("/admin")
	admin.Use(deps.AuthMW.RequireAuth())
	admin.Use(deps.AuthMW.RequireRole(user.RoleAdmin))
	{
		admin.GET("/jobs", deps.Jobs.List)
		admin.GET("/jobs/:id", deps.Jobs.Get)
		admin.POST("/jobs/:id/retry", deps.Jobs.Retry)
	}

	return r
}
