package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	pool      *pgxpool.Pool
	startedAt time.Time
	version   string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(pool *pgxpool.Pool, version string) *HealthHandler {
	return &HealthHandler{
		pool:      pool,
		startedAt: time.Now(),
		version:   version,
	}
}

// Live reports process liveness.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports whether the database is reachable.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.pool.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  "database unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Info reports version and uptime.
func (h *HealthHandler) Info(c *gin.Context) {
	stat := h.pool.Stat()
	c.JSON(http.StatusOK, gin.H{
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"db_pool": gin.H{
			"total":    stat.TotalConns(),
			"acquired": stat.AcquiredConns(),
			"idle":     stat.IdleConns(),
		},
	})
}
