package handlers

import (
	"context"
	"net/http"

	"finsync/internal/common"
	"finsync/internal/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ConfirmationWatcher runs server-side confirmation polls.
type ConfirmationWatcher interface {
	StartConfirmation(ctx context.Context, userID uuid.UUID, externalSubscriptionID, externalPaymentID string) (*models.ConfirmationSnapshot, error)
	GetConfirmation(ctx context.Context, userID, id uuid.UUID) (*models.ConfirmationSnapshot, error)
	StopConfirmation(ctx context.Context, userID, id uuid.UUID) error
}

type ConfirmationHandlers struct {
	watcher ConfirmationWatcher
	limiter *SyncLimiter
}

func NewConfirmationHandlers(watcher ConfirmationWatcher, limiter *SyncLimiter) *ConfirmationHandlers {
	return &ConfirmationHandlers{watcher: watcher, limiter: limiter}
}

type StartConfirmationRequest struct {
	SubscriptionID string `json:"subscription_id" validate:"required"`
	PaymentID      string `json:"payment_id"`
}

// StartConfirmation handles POST /v1/confirmations
// @Summary Start waiting for a checkout to be confirmed
// @Tags confirmations
// @Accept json
// @Produce json
// @Param request body StartConfirmationRequest true "ids returned by checkout"
// @Success 202 {object} models.ConfirmationSnapshot
// @Failure 429 {object} common.ErrorResponse
// @Router /v1/confirmations [post]
func (h *ConfirmationHandlers) StartConfirmation(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req StartConfirmationRequest
	if ok, err := common.BindAndValidate(c, &req); !ok {
		return err
	}
	if err := h.limiter.Allow(c.Request().Context(), userID); err != nil {
		return common.SendError(c, err, "Confirmation")
	}

	snapshot, err := h.watcher.StartConfirmation(c.Request().Context(), userID, req.SubscriptionID, req.PaymentID)
	if err != nil {
		return common.SendError(c, err, "Confirmation")
	}
	return c.JSON(http.StatusAccepted, snapshot)
}

// GetConfirmation handles GET /v1/confirmations/:id
// @Summary Read a confirmation watch
// @Tags confirmations
// @Produce json
// @Param id path string true "watch id"
// @Success 200 {object} models.ConfirmationSnapshot
// @Failure 404 {object} common.ErrorResponse
// @Router /v1/confirmations/{id} [get]
func (h *ConfirmationHandlers) GetConfirmation(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	snapshot, err := h.watcher.GetConfirmation(c.Request().Context(), userID, id)
	if err != nil {
		return common.SendError(c, err, "Confirmation")
	}
	return c.JSON(http.StatusOK, snapshot)
}

// StopConfirmation handles DELETE /v1/confirmations/:id
// @Summary Stop a confirmation watch
// @Tags confirmations
// @Param id path string true "watch id"
// @Success 204
// @Failure 404 {object} common.ErrorResponse
// @Router /v1/confirmations/{id} [delete]
func (h *ConfirmationHandlers) StopConfirmation(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	if err := h.watcher.StopConfirmation(c.Request().Context(), userID, id); err != nil {
		return common.SendError(c, err, "Confirmation")
	}
	return c.NoContent(http.StatusNoContent)
}
