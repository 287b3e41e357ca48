package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"finsync/internal/common"
	"finsync/internal/models"
	"finsync/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// WebhookTokenHeader carries the shared secret configured at the processor.
const WebhookTokenHeader = "asaas-access-token"

const maxWebhookBody = 1 << 20

// WebhookHandlers handles processor push notifications
type WebhookHandlers struct {
	reconciler  services.ReconciliationService
	credentials services.CredentialsProvider
	archive     services.ArchiveService
	logger      *zap.Logger
}

// NewWebhookHandlers creates a new webhook handlers instance. archive may be nil.
func NewWebhookHandlers(
	reconciler services.ReconciliationService,
	credentials services.CredentialsProvider,
	archive services.ArchiveService,
	logger *zap.Logger,
) *WebhookHandlers {
	return &WebhookHandlers{
		reconciler:  reconciler,
		credentials: credentials,
		archive:     archive,
		logger:      logger,
	}
}

func (h *WebhookHandlers) verifyToken(c echo.Context) (bool, error) {
	creds, err := h.credentials.ProcessorCredentials(c.Request().Context())
	if err != nil {
		return false, err
	}
	if creds.WebhookToken == "" {
		return false, common.ErrConfig
	}
	got := c.Request().Header.Get(WebhookTokenHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(creds.WebhookToken)) == 1, nil
}

// ProcessorWebhook handles POST /webhooks/processor
//
// A 5xx is returned only when a local write failed, so the processor retries
// the delivery. Everything else is acknowledged with 200.
func (h *WebhookHandlers) ProcessorWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	ok, err := h.verifyToken(c)
	if err != nil {
		h.logger.Error("webhook token unavailable", zap.Error(err))
		return common.SendError(c, err, "webhook")
	}
	if !ok {
		h.logger.Warn("webhook rejected: invalid token", zap.String("remote_ip", c.RealIP()))
		return common.SendUnauthorizedError(c)
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return common.SendClientError(c, "Failed to read request body")
	}

	var event models.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return common.SendClientError(c, "Invalid webhook payload")
	}

	if h.archive != nil {
		if key, err := h.archive.ArchiveWebhook(ctx, event.Event, event.ID, body); err != nil {
			h.logger.Warn("webhook archive failed", zap.String("event", event.Event), zap.Error(err))
		} else {
			h.logger.Debug("webhook archived", zap.String("object", key))
		}
	}

	outcome, err := h.dispatch(c, &event)
	if err != nil {
		if common.IsWriteError(err) {
			h.logger.Error("webhook reconciliation failed, requesting retry",
				zap.String("event", event.Event), zap.String("event_id", event.ID), zap.Error(err))
			return common.SendServerError(c, "Reconciliation failed")
		}
		h.logger.Warn("webhook processed with errors",
			zap.String("event", event.Event), zap.String("event_id", event.ID), zap.Error(err))
		outcome = "error"
	}

	return c.JSON(http.StatusOK, map[string]string{
		"received": "true",
		"event":    event.Event,
		"outcome":  outcome,
	})
}

func (h *WebhookHandlers) dispatch(c echo.Context, event *models.WebhookEvent) (string, error) {
	ctx := c.Request().Context()

	switch {
	case strings.HasPrefix(event.Event, "PAYMENT_") && event.Payment != nil:
		result, err := h.reconciler.ReconcilePayment(ctx, event.Payment, nil)
		if err != nil {
			return "", err
		}
		return string(result.Outcome), nil
	case strings.HasPrefix(event.Event, "SUBSCRIPTION_") && event.Subscription != nil:
		result, err := h.reconciler.ReconcileSubscription(ctx, event.Subscription, nil)
		if err != nil {
			return "", err
		}
		return string(result.Outcome), nil
	}

	h.logger.Info("webhook event ignored", zap.String("event", event.Event))
	return "ignored", nil
}
