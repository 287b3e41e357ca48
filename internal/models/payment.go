package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Raw processor payment statuses.
const (
	PaymentPending              = "PENDING"
	PaymentConfirmed            = "CONFIRMED"
	PaymentReceived             = "RECEIVED"
	PaymentReceivedInCash       = "RECEIVED_IN_CASH"
	PaymentOverdue              = "OVERDUE"
	PaymentDenied               = "DENIED"
	PaymentCancelled            = "CANCELLED"
	PaymentRefunded             = "REFUNDED"
	PaymentAwaitingRiskAnalysis = "AWAITING_RISK_ANALYSIS"
)

// IsSuccessStatus reports whether the processor considers the charge settled.
func IsSuccessStatus(status string) bool {
	switch status {
	case PaymentConfirmed, PaymentReceived, PaymentReceivedInCash:
		return true
	}
	return false
}

// IsFailureStatus reports whether the charge was denied, voided or returned.
func IsFailureStatus(status string) bool {
	switch status {
	case PaymentDenied, PaymentCancelled, PaymentRefunded:
		return true
	}
	return false
}

// IsOpenStatus reports whether the charge may still settle.
func IsOpenStatus(status string) bool {
	switch status {
	case PaymentPending, PaymentOverdue, PaymentAwaitingRiskAnalysis:
		return true
	}
	return false
}

type Payment struct {
	ID                     uuid.UUID       `json:"id" db:"id"`
	UserID                 *uuid.UUID      `json:"user_id" db:"user_id"`
	ExternalPaymentID      string          `json:"external_payment_id" db:"external_payment_id"`
	ExternalCustomerID     *string         `json:"external_customer_id" db:"external_customer_id"`
	ExternalSubscriptionID *string         `json:"external_subscription_id" db:"external_subscription_id"`
	Amount                 decimal.Decimal `json:"amount" db:"amount"`
	Status                 string          `json:"status" db:"status"`
	BillingType            *string         `json:"billing_type" db:"billing_type"`
	DueDate                *time.Time      `json:"due_date" db:"due_date"`
	PaymentDate            *time.Time      `json:"payment_date" db:"payment_date"`
	ConfirmedDate          *time.Time      `json:"confirmed_date" db:"confirmed_date"`
	ExternalReference      *string         `json:"external_reference" db:"external_reference"`
	InvoiceURL             *string         `json:"invoice_url" db:"invoice_url"`
	Description            *string         `json:"description" db:"description"`
	AppliedAt              *time.Time      `json:"applied_at" db:"applied_at"`
	CreatedAt              time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at" db:"updated_at"`
}
