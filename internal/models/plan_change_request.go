package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PlanChangeStatus string

const (
	PlanChangePending   PlanChangeStatus = "pending"
	PlanChangePaid      PlanChangeStatus = "paid"
	PlanChangeCancelled PlanChangeStatus = "cancelled"
	PlanChangeExpired   PlanChangeStatus = "expired"
)

type PlanChangeRequest struct {
	ID                uuid.UUID        `json:"id" db:"id"`
	SubscriptionID    uuid.UUID        `json:"subscription_id" db:"subscription_id"`
	CurrentPlanType   PlanType         `json:"current_plan_type" db:"current_plan_type"`
	NewPlanType       PlanType         `json:"new_plan_type" db:"new_plan_type"`
	NewPlanValue      decimal.Decimal  `json:"new_plan_value" db:"new_plan_value"`
	ExternalPaymentID *string          `json:"external_payment_id" db:"external_payment_id"`
	Status            PlanChangeStatus `json:"status" db:"status"`
	ExpiresAt         time.Time        `json:"expires_at" db:"expires_at"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at" db:"updated_at"`
}

// EffectiveStatus applies the expiry comparison to a stored status.
func (r *PlanChangeRequest) EffectiveStatus(now time.Time) PlanChangeStatus {
	if r.Status == PlanChangePending && !now.Before(r.ExpiresAt) {
		return PlanChangeExpired
	}
	return r.Status
}
