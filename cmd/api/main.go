package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/spendhub/spendhub/internal/auth"
	"github.com/spendhub/spendhub/internal/cache"
	"github.com/spendhub/spendhub/internal/config"
	"github.com/spendhub/spendhub/internal/db"
	httpx "github.com/spendhub/spendhub/internal/http"
	"github.com/spendhub/spendhub/internal/http/handlers"
	"github.com/spendhub/spendhub/internal/http/middlewares"

	"github.com/spendhub/spendhub/internal/budgeting"
	"github.com/spendhub/spendhub/internal/observability"
	"github.com/spendhub/spendhub/internal/repo/postgres"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTELEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(ctx, "spendhub-api", cfg.OTELEndpoint)
		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}
		defer func() {
			sctx, scancel := config.WithTimeout(5 * time.Second)
			defer scancel()
			_ = shutdownTracer(sctx)
		}()
	}

	if err := db.RunMigrations(cfg.DBURL); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(cfg.DBURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.EnsureAdminUser(ctx, pool, cfg); err != nil {
		log.Error("admin seed failed", "err", err)
		os.Exit(1)
	}

	promReg := prometheus.NewRegistry()
	prom := observability.NewProm(promReg)

	totals := cache.NewRedisTotals(cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, 5*time.Minute, log)
	defer totals.Close()

	usersRepo := postgres.NewUsersRepo(pool, prom)
	budgetsRepo := postgres.NewBudgetsRepo(pool, prom)
	expensesRepo := postgres.NewExpensesRepo(pool, prom)
	jobsRepo := postgres.NewJobsRepo(pool, prom)

	budgetSvc := budgeting.NewService(expensesRepo, budgetsRepo, totals)

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL())
	authMW := middlewares.NewAuthMiddleware(jwtManager, usersRepo)

	dbPing := func() error {
		pctx, pcancel := config.WithTimeout(time.Second)
		defer pcancel()
		return pool.Ping(pctx)
	}
	redisPing := func() error {
		pctx, pcancel := config.WithTimeout(time.Second)
		defer pcancel()
		return totals.Ping(pctx)
	}

	router := httpx.NewRouter(httpx.RouterDeps{
		Cfg:      cfg,
		Auth:     handlers.NewAuthHandler(usersRepo, usersRepo, jwtManager, cfg),
		Users:    handlers.NewUsersHandler(usersRepo),
		Budgets:  handlers.NewBudgetsHandler(budgetsRepo, expensesRepo, budgetSvc),
		Expenses: handlers.NewExpensesHandler(expensesRepo, budgetsRepo, budgetSvc, jobsRepo, log),
		Jobs:     handlers.NewAdminJobsHandler(jobsRepo),
		Health:   handlers.NewHealthHandler(dbPing, redisPing),
		AuthMW:   authMW,
		Prom:     prom,
		PromReg:  promReg,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		sctx, scancel := config.WithTimeout(10 * time.Second)
		defer scancel()

		if err := srv.Shutdown(sctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")
	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
