package services

import (
	"fmt"
	"strings"

	"finsync/internal/config"
	"finsync/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Reference is the business context recovered from an external reference.
type Reference struct {
	UserID   *uuid.UUID
	PlanType models.PlanType
}

// BuildReference encodes the checkout context attached to processor objects.
func BuildReference(userID uuid.UUID, plan models.PlanType) string {
	return fmt.Sprintf("user=%s;plan=%s", userID, plan)
}

// ParseReference reads "user=<uuid>;plan=<plan>". Unknown or malformed parts are ignored.
func ParseReference(ref string) Reference {
	var out Reference
	for _, part := range strings.Split(ref, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.ToLower(key) {
		case "user":
			if id, err := uuid.Parse(value); err == nil {
				out.UserID = &id
			}
		case "plan":
			if plan := models.PlanType(strings.ToLower(value)); plan.Valid() {
				out.PlanType = plan
			}
		}
	}
	return out
}

// planTokens is ordered so that "semiannual" wins over its "annual" suffix.
var planTokens = []struct {
	token string
	plan  models.PlanType
}{
	{"semiannual", models.PlanSemiannual},
	{"annual", models.PlanAnnual},
	{"yearly", models.PlanAnnual},
	{"quarterly", models.PlanQuarterly},
	{"monthly", models.PlanMonthly},
}

// PlanFromReference finds a plan marker anywhere in the reference.
func PlanFromReference(ref string) (models.PlanType, bool) {
	if ref == "" {
		return "", false
	}
	if parsed := ParseReference(ref); parsed.PlanType != "" {
		return parsed.PlanType, true
	}
	lower := strings.ToLower(ref)
	for _, t := range planTokens {
		if strings.Contains(lower, t.token) {
			return t.plan, true
		}
	}
	return "", false
}

// PlanFromAmount picks whichever list price is closest to amount. Ties go to monthly.
func PlanFromAmount(amount decimal.Decimal, prices config.PlanPrices) models.PlanType {
	toMonthly := amount.Sub(prices.Monthly).Abs()
	toAnnual := amount.Sub(prices.Annual).Abs()
	if toAnnual.LessThan(toMonthly) {
		return models.PlanAnnual
	}
	return models.PlanMonthly
}

// PlanFromCycle prefers a reference marker and falls back to the billing cycle.
func PlanFromCycle(cycle, ref string) models.PlanType {
	if plan, ok := PlanFromReference(ref); ok {
		return plan
	}
	switch strings.ToUpper(cycle) {
	case models.CycleYearly:
		return models.PlanAnnual
	case models.CycleSemiannually:
		return models.PlanSemiannual
	case models.CycleQuarterly:
		return models.PlanQuarterly
	default:
		return models.PlanMonthly
	}
}

// SubscriptionStatusFromProcessor lower-cases the processor status. Deleted subscriptions are cancelled.
func SubscriptionStatusFromProcessor(sub *models.ProcessorSubscription) models.SubscriptionStatus {
	if sub.Deleted {
		return models.SubscriptionCancelled
	}
	status := strings.ToLower(strings.TrimSpace(sub.Status))
	if status == "" {
		return models.SubscriptionPending
	}
	return models.SubscriptionStatus(status)
}
