package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CheckpointReader exposes the watcher checkpoint. *services.EventWatcher
// satisfies it.
type CheckpointReader interface {
	Checkpoint(ctx context.Context) (uint64, bool, error)
}

// HealthHandler GET /health
type HealthHandler struct {
	ping        func(ctx context.Context) error
	checkpoints CheckpointReader
}

// NewHealthHandler ping checks the database. checkpoints may be nil.
func NewHealthHandler(ping func(ctx context.Context) error, checkpoints CheckpointReader) *HealthHandler {
	return &HealthHandler{ping: ping, checkpoints: checkpoints}
}

// HealthCheckHandler reports database reachability and the last scanned block
func (h *HealthHandler) HealthCheckHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	resp := gin.H{
		"status":   "ok",
		"service":  "fishit-minter",
		"database": "ok",
	}
	code := http.StatusOK

	if err := h.ping(ctx); err != nil {
		resp["status"] = "degraded"
		resp["database"] = err.Error()
		code = http.StatusServiceUnavailable
	}

	if h.checkpoints != nil {
		block, found, err := h.checkpoints.Checkpoint(ctx)
		switch {
		case err != nil:
			resp["checkpoint_error"] = err.Error()
		case found:
			resp["checkpoint"] = block
		default:
			resp["checkpoint"] = nil
		}
	}

	c.JSON(code, resp)
}
