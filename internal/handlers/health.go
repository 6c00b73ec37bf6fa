package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// HealthChecker is a component that can report whether it is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	database HealthChecker
	cache    HealthChecker
}

func NewHealthHandler(database, cache HealthChecker) *HealthHandler {
	return &HealthHandler{database: database, cache: cache}
}

// Check pings both stores. A down cache only degrades the service; a down database fails it.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	var dbErr, cacheErr error
	var g errgroup.Group
	g.Go(func() error { dbErr = h.database.Ping(ctx); return nil })
	g.Go(func() error { cacheErr = h.cache.Ping(ctx); return nil })
	_ = g.Wait()

	body := gin.H{"status": "healthy", "database": "connected", "cache": "connected"}
	code := http.StatusOK

	if cacheErr != nil {
		slog.Warn("Health check: cache unreachable", "error", cacheErr)
		body["status"] = "degraded"
		body["cache"] = "unreachable"
	}
	if dbErr != nil {
		slog.Error("Health check failed: database unreachable", "error", dbErr)
		body["status"] = "unhealthy"
		body["database"] = "unreachable"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, body)
}
