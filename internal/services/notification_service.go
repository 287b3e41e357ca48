package services

import (
	"context"
	"fmt"
	"time"

	"finsync/internal/caching"
	"finsync/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier is the side channel used by reconciliation. Delivery is best effort.
type Notifier interface {
	NotifyPaymentFailed(ctx context.Context, userID uuid.UUID, payment *models.Payment) error
	NotifyPaymentConfirmed(ctx context.Context, userID uuid.UUID, payment *models.Payment, plan models.PlanType) error
}

type notificationService struct {
	cache  caching.CacheService
	logger *zap.Logger
	now    func() time.Time
}

// NewNotificationService queues push messages on the redis outbox list.
func NewNotificationService(cache caching.CacheService, logger *zap.Logger) Notifier {
	return &notificationService{cache: cache, logger: logger, now: time.Now}
}

func (s *notificationService) NotifyPaymentFailed(ctx context.Context, userID uuid.UUID, payment *models.Payment) error {
	msg := s.message(userID, models.NotificationPaymentFailed, payment)
	msg.Title = "Payment not approved"
	msg.Body = fmt.Sprintf("Your payment of R$ %s was not approved and your subscription has been cancelled.", payment.Amount.StringFixed(2))
	return s.enqueue(ctx, msg)
}

func (s *notificationService) NotifyPaymentConfirmed(ctx context.Context, userID uuid.UUID, payment *models.Payment, plan models.PlanType) error {
	msg := s.message(userID, models.NotificationPaymentConfirmed, payment)
	msg.Title = "Payment confirmed"
	msg.Body = fmt.Sprintf("Your %s plan is active.", plan)
	msg.Data["plan_type"] = string(plan)
	return s.enqueue(ctx, msg)
}

func (s *notificationService) message(userID uuid.UUID, kind models.NotificationType, payment *models.Payment) *models.PushMessage {
	return &models.PushMessage{
		ID:     uuid.New(),
		UserID: userID,
		Type:   kind,
		Data: map[string]string{
			"external_payment_id": payment.ExternalPaymentID,
			"status":              payment.Status,
		},
		CreatedAt: s.now().UTC(),
	}
}

func (s *notificationService) enqueue(ctx context.Context, msg *models.PushMessage) error {
	if err := s.cache.Enqueue(ctx, caching.NotificationOutbox, msg); err != nil {
		return fmt.Errorf("failed to queue %s notification: %w", msg.Type, err)
	}
	s.logger.Info("notification queued",
		zap.String("type", string(msg.Type)),
		zap.String("user_id", msg.UserID.String()))
	return nil
}
