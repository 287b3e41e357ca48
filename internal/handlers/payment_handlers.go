package handlers

import (
	"net/http"
	"time"

	"finsync/internal/common"
	"finsync/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	defaultSweepAge = 2 * time.Minute
	maxSweepAge     = 30 * 24 * time.Hour
)

// currentUser reads the authenticated user set by the JWT middleware.
func currentUser(c echo.Context) (uuid.UUID, bool) {
	return common.GetUserIDFromContext(c.Request().Context())
}

// PaymentHandlers serves the direct verification paths used by the confirmation flow.
type PaymentHandlers struct {
	reconciler services.ReconciliationService
	limiter    *SyncLimiter
	logger     *zap.Logger
}

func NewPaymentHandlers(reconciler services.ReconciliationService, limiter *SyncLimiter, logger *zap.Logger) *PaymentHandlers {
	return &PaymentHandlers{reconciler: reconciler, limiter: limiter, logger: logger}
}

type VerifyPaymentRequest struct {
	PaymentID      string `json:"payment_id" validate:"required_without=SubscriptionID"`
	SubscriptionID string `json:"subscription_id" validate:"required_without=PaymentID"`
}

type SweepRequest struct {
	OlderThanSeconds int `json:"older_than_seconds" validate:"gte=0"`
}

// VerifyPayment handles POST /v1/payments/verify
// @Summary Verify a payment against the processor
// @Tags payments
// @Accept json
// @Produce json
// @Param request body VerifyPaymentRequest true "payment or subscription id"
// @Success 200 {object} services.VerifyResult
// @Failure 404 {object} common.ErrorResponse
// @Failure 429 {object} common.ErrorResponse
// @Router /v1/payments/verify [post]
func (h *PaymentHandlers) VerifyPayment(c echo.Context) error {
	ctx := c.Request().Context()
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req VerifyPaymentRequest
	if ok, err := common.BindAndValidate(c, &req); !ok {
		return err
	}
	if err := h.limiter.Allow(ctx, userID); err != nil {
		return common.SendError(c, err, "payment")
	}

	result, err := h.reconciler.VerifyPayment(ctx, userID, services.VerifyRequest{
		PaymentID:      req.PaymentID,
		SubscriptionID: req.SubscriptionID,
	})
	if err != nil {
		h.logger.Warn("payment verification failed",
			zap.String("user_id", userID.String()),
			zap.String("payment_id", req.PaymentID),
			zap.String("subscription_id", req.SubscriptionID),
			zap.Error(err))
		return common.SendError(c, err, "payment")
	}
	return c.JSON(http.StatusOK, result)
}

// SweepPayments handles POST /v1/payments/sweep
// @Summary Reconcile the caller's pending payments
// @Tags payments
// @Accept json
// @Produce json
// @Param request body SweepRequest false "age threshold"
// @Success 200 {object} services.SweepResult
// @Failure 429 {object} common.ErrorResponse
// @Router /v1/payments/sweep [post]
func (h *PaymentHandlers) SweepPayments(c echo.Context) error {
	ctx := c.Request().Context()
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req SweepRequest
	if c.Request().ContentLength != 0 {
		if ok, err := common.BindAndValidate(c, &req); !ok {
			return err
		}
	}
	olderThan := defaultSweepAge
	if req.OlderThanSeconds > 0 {
		olderThan = min(time.Duration(req.OlderThanSeconds)*time.Second, maxSweepAge)
	}

	if err := h.limiter.Allow(ctx, userID); err != nil {
		return common.SendError(c, err, "payment")
	}

	result, err := h.reconciler.SweepPendingPayments(ctx, userID, olderThan)
	if err != nil {
		h.logger.Error("payment sweep failed", zap.String("user_id", userID.String()), zap.Error(err))
		return common.SendError(c, err, "payment")
	}
	return c.JSON(http.StatusOK, result)
}
