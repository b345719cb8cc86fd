package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spendhub/spendhub/internal/config"
	"github.com/spendhub/spendhub/internal/domain/job"
	"github.com/spendhub/spendhub/internal/http/middlewares"
	"github.com/spendhub/spendhub/internal/repo/postgres"
)

type JobAdminStore interface {
	List(ctx context.Context, status string, limit int) ([]job.Job, error)
	GetByID(ctx context.Context, id string) (job.Job, error)
	Retry(ctx context.Context, id string) error
}

// AdminJobsHandler exposes the alert queue to operators. All routes sit
// behind the admin role gate.
type AdminJobsHandler struct {
	store JobAdminStore
}

func NewAdminJobsHandler(store JobAdminStore) *AdminJobsHandler {
	return &AdminJobsHandler{store: store}
}

func (h *AdminJobsHandler) List(ctx *gin.Context) {
	status := ctx.Query("status")

	switch status {
	case "", "pending", "processing", "done", "failed":
	default:
		RespondBadRequest(ctx, "Invalid status filter", nil)
		return
	}

	limit := 50
	if limitStr := ctx.Query("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			RespondBadRequest(ctx, "Invalid limit", nil)
			return
		}
		limit = n
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	items, err := h.store.List(cctx, status, limit)
	if err != nil {
		RespondInternal(ctx, "Could not list jobs")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

func (h *AdminJobsHandler) Get(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	j, err := h.store.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			RespondNotFound(ctx, "Job not found")
			return
		}
		RespondInternal(ctx, "Could not fetch job")
		return
	}

	ctx.Set(middlewares.CtxJobID, j.ID)
	ctx.JSON(http.StatusOK, j)
}

func (h *AdminJobsHandler) Retry(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err := h.store.Retry(cctx, id)
	if err != nil {
		switch {
		case errors.Is(err, job.ErrJobNotFound):
			RespondNotFound(ctx, "Job not found")
		case errors.Is(err, postgres.ErrJobNotFailed):
			RespondConflict(ctx, "job_not_failed", "Only failed jobs can be retried.")
		default:
			RespondInternal(ctx, "Could not retry job")
		}
		return
	}

	ctx.Set(middlewares.CtxJobID, id)
	ctx.JSON(http.StatusAccepted, gin.H{"status": "requeued"})
}
