package handlers

import (
	"net/http"
	"time"

	"finsync/internal/common"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// JobRunner exposes the scheduled maintenance jobs for manual runs.
type JobRunner interface {
	JobStatusReporter
	RunPendingSweep() error
	RunExpiry() error
}

// Names match the scheduler's registered jobs.
const (
	JobPendingSweep       = "pending-payment-sweep"
	JobSubscriptionExpiry = "subscription-expiry"
)

type JobHandlers struct {
	runner JobRunner
	logger *zap.Logger
}

func NewJobHandlers(runner JobRunner, logger *zap.Logger) *JobHandlers {
	return &JobHandlers{runner: runner, logger: logger}
}

// GetJobStatus handles GET /v1/admin/jobs
// @Summary Scheduled jobs and active confirmation watches
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /v1/admin/jobs [get]
func (h *JobHandlers) GetJobStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.runner.GetJobStatus())
}

// RunJob handles POST /v1/admin/jobs/:name/run
// @Summary Run a maintenance job now
// @Tags admin
// @Produce json
// @Param name path string true "job name" Enums(pending-payment-sweep, subscription-expiry)
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} common.ErrorResponse
// @Router /v1/admin/jobs/{name}/run [post]
func (h *JobHandlers) RunJob(c echo.Context) error {
	name := c.Param("name")

	var run func() error
	switch name {
	case JobPendingSweep:
		run = h.runner.RunPendingSweep
	case JobSubscriptionExpiry:
		run = h.runner.RunExpiry
	default:
		return common.SendNotFoundError(c, "Job")
	}

	userID, _ := currentUser(c)
	start := time.Now()
	if err := run(); err != nil {
		h.logger.Error("manual job run failed", zap.String("job", name), zap.String("user_id", userID.String()), zap.Error(err))
		return common.SendError(c, err, "Job")
	}

	h.logger.Info("manual job run completed", zap.String("job", name), zap.String("user_id", userID.String()))
	return c.JSON(http.StatusOK, map[string]interface{}{
		"job":         name,
		"status":      "completed",
		"duration_ms": time.Since(start).Milliseconds(),
	})
}
