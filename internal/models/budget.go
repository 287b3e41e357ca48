package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PeriodType string

const (
	PeriodMonthly   PeriodType = "monthly"
	PeriodQuarterly PeriodType = "quarterly"
	PeriodSemestral PeriodType = "semestral"
	PeriodYearly    PeriodType = "yearly"
)

type BudgetStatus string

const (
	BudgetOnTrack  BudgetStatus = "on_track"
	BudgetWarning  BudgetStatus = "warning"
	BudgetExceeded BudgetStatus = "exceeded"
)

type Budget struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	UserID         uuid.UUID       `json:"user_id" db:"user_id"`
	CategoryID     *uuid.UUID      `json:"category_id" db:"category_id"`
	Name           string          `json:"name" db:"name"`
	PlannedAmount  decimal.Decimal `json:"planned_amount" db:"planned_amount"`
	SpentAmount    decimal.Decimal `json:"spent_amount" db:"spent_amount"`
	PeriodType     PeriodType      `json:"period_type" db:"period_type"`
	StartDate      time.Time       `json:"start_date" db:"start_date"`
	EndDate        time.Time       `json:"end_date" db:"end_date"`
	IsActive       bool            `json:"is_active" db:"is_active"`
	AlertThreshold int             `json:"alert_threshold" db:"alert_threshold"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}
