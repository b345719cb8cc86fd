package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/spendhub/spendhub/internal/budgeting"
	"github.com/spendhub/spendhub/internal/cache"
	"github.com/spendhub/spendhub/internal/config"
	"github.com/spendhub/spendhub/internal/db"
	"github.com/spendhub/spendhub/internal/notifications"
	"github.com/spendhub/spendhub/internal/observability"
	"github.com/spendhub/spendhub/internal/repo/postgres"
	"github.com/spendhub/spendhub/internal/worker"
)

func main() {
	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	pool, err := db.NewPool(cfg.DBURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	totals := cache.NewRedisTotals(cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, 5*time.Minute, log)
	defer totals.Close()

	prom := observability.NewProm(prometheus.NewRegistry())

	usersRepo := postgres.NewUsersRepo(pool, prom)
	budgetsRepo := postgres.NewBudgetsRepo(pool, prom)
	expensesRepo := postgres.NewExpensesRepo(pool, prom)
	jobsRepo := postgres.NewJobsRepo(pool, prom)

	budgetSvc := budgeting.NewService(expensesRepo, budgetsRepo, totals)

	notifier := notifications.NewProtectedNotifier(
		notifications.NewLogNotifier(log),
		notifications.ProtectedNotifierConfig{},
	)

	// one alert per user and month within the dedup window
	dedup := cache.New(6 * time.Hour)

	exec := worker.NewAlertExecutor(budgetSvc, usersRepo, budgetsRepo, notifier, dedup, log)

	host, _ := os.Hostname()
	workerID := host + "-" + strconv.Itoa(os.Getpid())

	metrics := observability.NewJobMetrics()

	w := worker.New(worker.Config{
		PollInterval: 500 * time.Millisecond,
		WorkerID:     workerID,
	}, jobsRepo, exec, metrics, prom, log)

	digests := worker.NewDigestScheduler(usersRepo, jobsRepo, log)
	go digests.Run(ctx)

	healthSrv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.WorkerPort),
		Handler:           w.HealthHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("health server failed", "err", err)
		}
	}()

	log.Info("worker starting", "worker_id", workerID)

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	sctx, scancel := config.WithTimeout(5 * time.Second)
	defer scancel()
	_ = healthSrv.Shutdown(sctx)

	log.Info("worker shutdown complete")
}
