package models

import "time"

// Setting categories and keys read by the service.
const (
	SettingsCategoryProcessor = "payment-processor"
	SettingsCategoryPlans     = "plans"

	SettingAPIKey       = "api_key"
	SettingEnvironment  = "environment"
	SettingWebhookToken = "webhook_token"
	SettingMonthlyPrice = "monthly_price"
	SettingAnnualPrice  = "annual_price"
)

type Setting struct {
	Category  string    `json:"category" db:"category"`
	Key       string    `json:"key" db:"key"`
	Value     string    `json:"value" db:"value"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
