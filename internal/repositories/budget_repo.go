package repositories

import (
	"context"

	"finsync/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BudgetRepository is read-only; spent_amount is maintained outside this service.
type BudgetRepository interface {
	GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Budget, error)
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*models.Budget, error)
}

type budgetRepo struct {
	db DBTX
}

func NewBudgetRepository(db DBTX) BudgetRepository {
	return &budgetRepo{db: db}
}

const budgetColumns = `id, user_id, category_id, name, planned_amount, spent_amount, period_type, start_date, end_date,
		is_active, alert_threshold, created_at, updated_at`

func scanBudget(row pgx.Row) (*models.Budget, error) {
	b := &models.Budget{}
	err := row.Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Name, &b.PlannedAmount, &b.SpentAmount, &b.PeriodType,
		&b.StartDate, &b.EndDate, &b.IsActive, &b.AlertThreshold, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *budgetRepo) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE user_id = $1 AND id = $2`
	budget, err := scanBudget(r.db.QueryRow(ctx, query, userID, id))
	if err != nil {
		return nil, notFound(err)
	}
	return budget, nil
}

func (r *budgetRepo) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*models.Budget, error) {
	query := `SELECT ` + budgetColumns + `
		FROM budgets
		WHERE user_id = $1 AND is_active
		ORDER BY start_date DESC, name
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var budgets []*models.Budget
	for rows.Next() {
		budget, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, budget)
	}
	return budgets, rows.Err()
}
