package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationPaymentFailed    NotificationType = "payment_failed"
	NotificationPaymentConfirmed NotificationType = "payment_confirmed"
)

// PushMessage is queued for the push delivery worker.
type PushMessage struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"user_id"`
	Type      NotificationType  `json:"type"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
