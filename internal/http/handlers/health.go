package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	dbPing    func() error
	redisPing func() error
}

func NewHealthHandler(dbPing, redisPing func() error) *HealthHandler {
	return &HealthHandler{dbPing: dbPing, redisPing: redisPing}
}

func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz checks the hard dependency (postgres) and reports the cache as
// informational; a dead redis degrades performance, not correctness.
func (h *HealthHandler) Readyz(ctx *gin.Context) {
	if h.dbPing != nil {
		if err := h.dbPing(); err != nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not_ready",
				"db":     "down",
			})
			return
		}
	}

	cacheState := "ok"
	if h.redisPing != nil {
		if err := h.redisPing(); err != nil {
			cacheState = "down"
		}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"cache":  cacheState,
	})
}
