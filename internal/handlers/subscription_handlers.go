package handlers

import (
	"net/http"

	"finsync/internal/common"
	"finsync/internal/models"
	"finsync/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SubscriptionHandlers handles HTTP requests for the caller's subscription
type SubscriptionHandlers struct {
	subscriptionService services.SubscriptionService
	reconciler          services.ReconciliationService
	limiter             *SyncLimiter
	logger              *zap.Logger
}

func NewSubscriptionHandlers(
	subscriptionService services.SubscriptionService,
	reconciler services.ReconciliationService,
	limiter *SyncLimiter,
	logger *zap.Logger,
) *SubscriptionHandlers {
	return &SubscriptionHandlers{
		subscriptionService: subscriptionService,
		reconciler:          reconciler,
		limiter:             limiter,
		logger:              logger,
	}
}

type PlanChangeBody struct {
	PlanType models.PlanType `json:"plan_type" validate:"required,oneof=monthly annual"`
}

type ResyncBody struct {
	SubscriptionID string `json:"subscription_id"`
}

// GetCurrent handles GET /v1/subscriptions/current
// @Summary Current subscription
// @Tags subscriptions
// @Produce json
// @Success 200 {object} models.Subscription
// @Failure 404 {object} common.ErrorResponse
// @Router /v1/subscriptions/current [get]
func (h *SubscriptionHandlers) GetCurrent(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	sub, err := h.subscriptionService.GetCurrent(c.Request().Context(), userID)
	if err != nil {
		return common.SendError(c, err, "Subscription")
	}
	return c.JSON(http.StatusOK, sub)
}

// Checkout handles POST /v1/subscriptions/checkout
// @Summary Start a checkout at the processor
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param request body services.CheckoutRequest true "checkout"
// @Success 201 {object} services.CheckoutResult
// @Failure 409 {object} common.ErrorResponse
// @Router /v1/subscriptions/checkout [post]
func (h *SubscriptionHandlers) Checkout(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req services.CheckoutRequest
	if ok, err := common.BindAndValidate(c, &req); !ok {
		return err
	}

	result, err := h.subscriptionService.StartCheckout(c.Request().Context(), userID, req)
	if err != nil {
		h.logger.Error("checkout failed", zap.String("user_id", userID.String()), zap.Error(err))
		return common.SendError(c, err, "Subscription")
	}
	return c.JSON(http.StatusCreated, result)
}

// Resync handles POST /v1/subscriptions/resync
// @Summary Fetch the subscription from the processor and reconcile it
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param request body ResyncBody false "external subscription id, defaults to the current one"
// @Success 200 {object} services.ResyncResult
// @Failure 429 {object} common.ErrorResponse
// @Router /v1/subscriptions/resync [post]
func (h *SubscriptionHandlers) Resync(c echo.Context) error {
	ctx := c.Request().Context()
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var body ResyncBody
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&body); err != nil {
			return common.SendClientError(c, "Invalid request format")
		}
	}

	externalID := body.SubscriptionID
	if externalID == "" {
		current, err := h.subscriptionService.GetCurrent(ctx, userID)
		if err != nil {
			return common.SendError(c, err, "Subscription")
		}
		externalID = common.SafeString(current.ExternalSubscriptionID)
		if externalID == "" {
			return common.SendNotFoundError(c, "Subscription")
		}
	}

	if err := h.limiter.Allow(ctx, userID); err != nil {
		return common.SendError(c, err, "Subscription")
	}

	result, err := h.reconciler.ResyncSubscription(ctx, userID, externalID)
	if err != nil {
		h.logger.Warn("manual resync failed",
			zap.String("user_id", userID.String()),
			zap.String("external_subscription_id", externalID),
			zap.Error(err))
		return common.SendError(c, err, "Subscription")
	}
	return c.JSON(http.StatusOK, result)
}

// GetPlanChange handles GET /v1/subscriptions/plan-change
// @Summary Latest plan change request
// @Tags subscriptions
// @Produce json
// @Success 200 {object} models.PlanChangeRequest
// @Failure 404 {object} common.ErrorResponse
// @Router /v1/subscriptions/plan-change [get]
func (h *SubscriptionHandlers) GetPlanChange(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	request, err := h.subscriptionService.GetActivePlanChange(c.Request().Context(), userID)
	if err != nil {
		return common.SendError(c, err, "Plan change")
	}
	return c.JSON(http.StatusOK, request)
}

// RequestPlanChange handles POST /v1/subscriptions/plan-change
// @Summary Request a plan change
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param request body PlanChangeBody true "target plan"
// @Success 201 {object} models.PlanChangeRequest
// @Failure 409 {object} common.ErrorResponse
// @Router /v1/subscriptions/plan-change [post]
func (h *SubscriptionHandlers) RequestPlanChange(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var body PlanChangeBody
	if ok, err := common.BindAndValidate(c, &body); !ok {
		return err
	}

	request, err := h.subscriptionService.RequestPlanChange(c.Request().Context(), userID, body.PlanType)
	if err != nil {
		h.logger.Warn("plan change rejected", zap.String("user_id", userID.String()), zap.Error(err))
		return common.SendError(c, err, "Subscription")
	}
	return c.JSON(http.StatusCreated, request)
}

// CancelPlanChange handles DELETE /v1/subscriptions/plan-change
// @Summary Cancel the pending plan change
// @Tags subscriptions
// @Produce json
// @Success 200 {object} models.PlanChangeRequest
// @Failure 404 {object} common.ErrorResponse
// @Router /v1/subscriptions/plan-change [delete]
func (h *SubscriptionHandlers) CancelPlanChange(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	request, err := h.subscriptionService.CancelPlanChange(c.Request().Context(), userID)
	if err != nil {
		return common.SendError(c, err, "Plan change")
	}
	return c.JSON(http.StatusOK, request)
}

// CancelSubscription handles POST /v1/subscriptions/cancel
// @Summary Cancel at the end of the current period
// @Tags subscriptions
// @Produce json
// @Success 200 {object} models.Subscription
// @Failure 404 {object} common.ErrorResponse
// @Router /v1/subscriptions/cancel [post]
func (h *SubscriptionHandlers) CancelSubscription(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	sub, err := h.subscriptionService.CancelSubscription(c.Request().Context(), userID)
	if err != nil {
		h.logger.Error("subscription cancellation failed", zap.String("user_id", userID.String()), zap.Error(err))
		return common.SendError(c, err, "Subscription")
	}
	return c.JSON(http.StatusOK, sub)
}

// VoidOverduePayments handles POST /v1/subscriptions/payment-method/void-overdue
// @Summary Void overdue charges before replacing the payment method
// @Tags subscriptions
// @Produce json
// @Success 200 {object} map[string]int
// @Router /v1/subscriptions/payment-method/void-overdue [post]
func (h *SubscriptionHandlers) VoidOverduePayments(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	voided, err := h.subscriptionService.VoidOverduePayments(c.Request().Context(), userID)
	if err != nil {
		h.logger.Error("voiding overdue payments failed",
			zap.String("user_id", userID.String()), zap.Int("voided", voided), zap.Error(err))
		return common.SendError(c, err, "Subscription")
	}
	return c.JSON(http.StatusOK, map[string]int{"voided": voided})
}
