package router

import (
	"net/http"
	"time"

	"github.com/FishIT-Mantle/fishit-sub000/internal/handlers"
	"github.com/FishIT-Mantle/fishit-sub000/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Handlers everything the router mounts
type Handlers struct {
	Health    *handlers.HealthHandler
	Mints     *handlers.MintHandler
	Ops       *handlers.OpsHandler
	AdminAuth *handlers.AdminAuthHandler
	WebSocket *handlers.WebSocketHandler

	AdminAllowedIPs []string
}

// requestLogger access log through logrus
func requestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"path":        c.Request.URL.Path,
			"method":      c.Request.Method,
			"status":      c.Writer.Status(),
			"latency_ms":  time.Since(start).Milliseconds(),
			"remote_addr": c.ClientIP(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("🌐 Request failed")
			return
		}
		entry.Debug("🌐 Request served")
	}
}

// SetupRouter builds the ops API
func SetupRouter(h Handlers, log *logrus.Logger) *gin.Engine {
	r := gin.New()
	// client IP comes from the socket, forwarded headers are ignored
	_ = r.SetTrustedProxies(nil)
	r.Use(gin.Recovery(), requestLogger(log))

	// ============ Health Check ============
	r.GET("/health", h.Health.HealthCheckHandler)

	// ============ Prometheus Metrics ============
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ============ Status feed ============
	r.GET("/ws/mints", h.WebSocket.HandleWebSocket)

	// ============ Mint records (read only) ============
	api := r.Group("/api")
	{
		api.GET("/mints", h.Mints.ListMintsHandler)
		api.GET("/mints/stats", h.Mints.MintStatsHandler)
		api.GET("/mints/:itemId", h.Mints.GetMintHandler)
	}

	// ============ Admin ============
	localhostOnly := middleware.NewLocalhostOnly(log, h.AdminAllowedIPs)
	adminAuth := middleware.NewAdminAuthMiddleware(log, h.AdminAuth)

	admin := api.Group("/admin", localhostOnly.Restrict())
	{
		admin.POST("/login", h.AdminAuth.AdminLoginHandler)

		protected := admin.Group("", adminAuth.RequireAdminAuth())
		protected.POST("/mints/:itemId/process", h.Mints.ProcessMintHandler)
		protected.POST("/sweep", h.Ops.TriggerSweepHandler)
		protected.POST("/poll", h.Ops.TriggerPollHandler)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Endpoint not found",
			"path":    c.Request.URL.Path,
		})
	})

	return r
}
