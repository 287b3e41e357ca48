package models

import (
	"time"

	"github.com/google/uuid"
)

type ConfirmationState string

const (
	ConfirmationChecking  ConfirmationState = "checking"
	ConfirmationConfirmed ConfirmationState = "confirmed"
	ConfirmationError     ConfirmationState = "error"
	ConfirmationTimeout   ConfirmationState = "timeout"
)

// Terminal reports whether no further ticks will run.
func (s ConfirmationState) Terminal() bool {
	return s != ConfirmationChecking
}

// ConfirmationSnapshot is the observable state of a confirmation watch.
type ConfirmationSnapshot struct {
	ID                     uuid.UUID         `json:"id"`
	UserID                 uuid.UUID         `json:"user_id"`
	ExternalSubscriptionID string            `json:"external_subscription_id"`
	ExternalPaymentID      string            `json:"external_payment_id,omitempty"`
	State                  ConfirmationState `json:"state"`
	Tick                   int               `json:"tick"`
	Message                string            `json:"message,omitempty"`
	StartedAt              time.Time         `json:"started_at"`
	UpdatedAt              time.Time         `json:"updated_at"`
}
