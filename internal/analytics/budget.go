package analytics

import (
	"time"

	"finsync/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// periodMonths is the number of months a window spans, minus one.
var periodMonths = map[models.PeriodType]int{
	models.PeriodMonthly:   0,
	models.PeriodQuarterly: 2,
	models.PeriodSemestral: 5,
	models.PeriodYearly:    11,
}

// PeriodWindow is an inclusive date range.
type PeriodWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// RecalculatePeriodWindow anchors the window to the first day of startDate's
// month and ends it on the last day of the period's final month. Unknown
// period types are treated as monthly.
func RecalculatePeriodWindow(startDate time.Time, periodType models.PeriodType) PeriodWindow {
	start := time.Date(startDate.Year(), startDate.Month(), 1, 0, 0, 0, 0, startDate.Location())
	// day 0 of the following month normalizes to the last day of the final month
	end := time.Date(start.Year(), start.Month()+time.Month(periodMonths[periodType])+1, 0, 0, 0, 0, 0, start.Location())
	return PeriodWindow{Start: start, End: end}
}

// Progress is spent as a percentage of planned, capped at 100.
func Progress(planned, spent decimal.Decimal) decimal.Decimal {
	if planned.IsZero() {
		return decimal.Zero
	}
	pct := spent.Div(planned).Mul(hundred)
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

func Status(progress decimal.Decimal, alertThreshold int) models.BudgetStatus {
	switch {
	case progress.GreaterThanOrEqual(hundred):
		return models.BudgetExceeded
	case progress.GreaterThanOrEqual(decimal.NewFromInt(int64(alertThreshold))):
		return models.BudgetWarning
	default:
		return models.BudgetOnTrack
	}
}
