package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
)

const healthCheckTimeout = 3 * time.Second

// Pinger is anything that can report its own connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

type JobStatusReporter interface {
	GetJobStatus() map[string]interface{}
}

type StorageChecker interface {
	Check(ctx context.Context) error
}

// HealthHandlers handles health check and monitoring endpoints
type HealthHandlers struct {
	db        Pinger
	redisSvc  Pinger
	storage   StorageChecker
	jobs      JobStatusReporter
	version   string
	startedAt time.Time
}

func NewHealthHandlers(db Pinger, redisSvc Pinger, storage StorageChecker, jobs JobStatusReporter, version string) *HealthHandlers {
	return &HealthHandlers{
		db:        db,
		redisSvc:  redisSvc,
		storage:   storage,
		jobs:      jobs,
		version:   version,
		startedAt: time.Now(),
	}
}

type componentCheck struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

func runCheck(ctx context.Context, check func(context.Context) error) componentCheck {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	start := time.Now()
	err := check(ctx)
	result := componentCheck{Status: "healthy", LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		result.Status = "unhealthy"
		result.Message = err.Error()
	}
	return result
}

// LivenessCheck handles GET /health
func (h *HealthHandlers) LivenessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadinessCheck handles GET /health/ready. Only the database and redis gate readiness.
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	ctx := c.Request().Context()

	db := runCheck(ctx, h.db.Ping)
	redis := runCheck(ctx, h.redisSvc.Ping)
	if db.Status != "healthy" || redis.Status != "healthy" {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"status":   "not_ready",
			"database": db,
			"redis":    redis,
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ready",
		"message": "All systems operational",
	})
}

// DetailedHealthCheck handles GET /health/detailed
func (h *HealthHandlers) DetailedHealthCheck(c echo.Context) error {
	ctx := c.Request().Context()

	checks := map[string]componentCheck{
		"database": runCheck(ctx, h.db.Ping),
		"redis":    runCheck(ctx, h.redisSvc.Ping),
	}
	if h.storage != nil {
		checks["storage"] = runCheck(ctx, h.storage.Check)
	}

	overall := "healthy"
	for _, check := range checks {
		if check.Status != "healthy" {
			overall = "degraded"
		}
	}

	body := map[string]interface{}{
		"overall_status": overall,
		"checks":         checks,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime":         time.Since(h.startedAt).Round(time.Second).String(),
		"version":        h.version,
		"goroutines":     runtime.NumGoroutine(),
	}
	if h.jobs != nil {
		body["jobs"] = h.jobs.GetJobStatus()
	}

	statusCode := http.StatusOK
	if overall == "degraded" {
		statusCode = http.StatusPartialContent
	}
	return c.JSON(statusCode, body)
}
