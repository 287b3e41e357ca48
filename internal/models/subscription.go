package models

import (
	"time"

	"github.com/google/uuid"
)

type PlanType string

const (
	PlanMonthly    PlanType = "monthly"
	PlanQuarterly  PlanType = "quarterly"
	PlanSemiannual PlanType = "semiannual"
	PlanAnnual     PlanType = "annual"
)

// PeriodDays returns the length of one billing period in days.
func (p PlanType) PeriodDays() int {
	switch p {
	case PlanQuarterly:
		return 90
	case PlanSemiannual:
		return 180
	case PlanAnnual:
		return 365
	default:
		return 30
	}
}

// Cycle maps the plan to the processor's billing cycle name.
func (p PlanType) Cycle() string {
	switch p {
	case PlanQuarterly:
		return CycleQuarterly
	case PlanSemiannual:
		return CycleSemiannually
	case PlanAnnual:
		return CycleYearly
	default:
		return CycleMonthly
	}
}

func (p PlanType) Valid() bool {
	switch p {
	case PlanMonthly, PlanQuarterly, PlanSemiannual, PlanAnnual:
		return true
	}
	return false
}

type SubscriptionStatus string

const (
	SubscriptionPending   SubscriptionStatus = "pending"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPastDue   SubscriptionStatus = "past_due"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Live statuses occupy the user's single current-subscription slot.
func (s SubscriptionStatus) Live() bool {
	switch s {
	case SubscriptionPending, SubscriptionActive, SubscriptionPastDue:
		return true
	}
	return false
}

const ProcessorAsaas = "asaas"

type Subscription struct {
	ID                     uuid.UUID          `json:"id" db:"id"`
	UserID                 uuid.UUID          `json:"user_id" db:"user_id"`
	ExternalSubscriptionID *string            `json:"external_subscription_id" db:"external_subscription_id"`
	ExternalCustomerID     *string            `json:"external_customer_id" db:"external_customer_id"`
	PlanType               PlanType           `json:"plan_type" db:"plan_type"`
	Status                 SubscriptionStatus `json:"status" db:"status"`
	CurrentPeriodStart     *time.Time         `json:"current_period_start" db:"current_period_start"`
	CurrentPeriodEnd       *time.Time         `json:"current_period_end" db:"current_period_end"`
	CancelAtPeriodEnd      bool               `json:"cancel_at_period_end" db:"cancel_at_period_end"`
	Processor              string             `json:"payment_processor" db:"payment_processor"`
	CreatedAt              time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at" db:"updated_at"`
}
