package analytics

import (
	"context"

	"finsync/internal/models"
	"finsync/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BudgetProgress is a budget with its window recomputed and progress derived.
type BudgetProgress struct {
	BudgetID       uuid.UUID           `json:"budget_id"`
	Name           string              `json:"name"`
	CategoryID     *uuid.UUID          `json:"category_id,omitempty"`
	PeriodType     models.PeriodType   `json:"period_type"`
	Window         PeriodWindow        `json:"window"`
	PlannedAmount  decimal.Decimal     `json:"planned_amount"`
	SpentAmount    decimal.Decimal     `json:"spent_amount"`
	Remaining      decimal.Decimal     `json:"remaining"`
	Progress       decimal.Decimal     `json:"progress"`
	AlertThreshold int                 `json:"alert_threshold"`
	Status         models.BudgetStatus `json:"status"`
}

type BudgetService struct {
	budgetRepo repositories.BudgetRepository
	logger     *zap.Logger
}

func NewBudgetService(budgetRepo repositories.BudgetRepository, logger *zap.Logger) *BudgetService {
	return &BudgetService{budgetRepo: budgetRepo, logger: logger}
}

// Evaluate derives progress for a single budget. The stored window is ignored.
func Evaluate(b *models.Budget) BudgetProgress {
	progress := Progress(b.PlannedAmount, b.SpentAmount)
	window := RecalculatePeriodWindow(b.StartDate, b.PeriodType)
	return BudgetProgress{
		BudgetID:       b.ID,
		Name:           b.Name,
		CategoryID:     b.CategoryID,
		PeriodType:     b.PeriodType,
		Window:         window,
		PlannedAmount:  b.PlannedAmount,
		SpentAmount:    b.SpentAmount,
		Remaining:      decimal.Max(b.PlannedAmount.Sub(b.SpentAmount), decimal.Zero),
		Progress:       progress.Round(2),
		AlertThreshold: b.AlertThreshold,
		Status:         Status(progress, b.AlertThreshold),
	}
}

func (s *BudgetService) ListProgress(ctx context.Context, userID uuid.UUID) ([]BudgetProgress, error) {
	budgets, err := s.budgetRepo.ListActiveByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list budgets", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, err
	}

	out := make([]BudgetProgress, 0, len(budgets))
	for _, b := range budgets {
		p := Evaluate(b)
		if !p.Window.Start.Equal(b.StartDate) || !p.Window.End.Equal(b.EndDate) {
			s.logger.Debug("stored budget window drifted",
				zap.String("budget_id", b.ID.String()),
				zap.Time("stored_start", b.StartDate),
				zap.Time("stored_end", b.EndDate))
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *BudgetService) GetProgress(ctx context.Context, userID, budgetID uuid.UUID) (*BudgetProgress, error) {
	b, err := s.budgetRepo.GetByID(ctx, userID, budgetID)
	if err != nil {
		return nil, err
	}
	p := Evaluate(b)
	return &p, nil
}
