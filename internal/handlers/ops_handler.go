package handlers

import (
	"context"
	"net/http"

	"github.com/FishIT-Mantle/fishit-sub000/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Sweeper runs one retry sweep. *services.RetryScheduler satisfies it.
type Sweeper interface {
	Sweep(ctx context.Context) (services.SweepResult, error)
}

// Poller runs one watcher poll. *services.EventWatcher satisfies it.
type Poller interface {
	Poll(ctx context.Context) (services.PollResult, error)
}

// OpsHandler manual triggers for the periodic tasks
type OpsHandler struct {
	sweeper Sweeper
	poller  Poller
	log     *logrus.Logger
}

// NewOpsHandler creates the handler
func NewOpsHandler(sweeper Sweeper, poller Poller, log *logrus.Logger) *OpsHandler {
	return &OpsHandler{sweeper: sweeper, poller: poller, log: log}
}

// TriggerSweepHandler POST /api/admin/sweep
func (h *OpsHandler) TriggerSweepHandler(c *gin.Context) {
	h.log.WithField("admin", c.GetString("admin_username")).Info("🔧 Manual retry sweep triggered")

	result, err := h.sweeper.Sweep(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
			"data":    result,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

// TriggerPollHandler POST /api/admin/poll
func (h *OpsHandler) TriggerPollHandler(c *gin.Context) {
	h.log.WithField("admin", c.GetString("admin_username")).Info("🔧 Manual watcher poll triggered")

	result, err := h.poller.Poll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   err.Error(),
			"data":    result,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}
