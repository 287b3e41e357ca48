package handlers

import (
	"context"
	"net/http"

	"finsync/internal/analytics"
	"finsync/internal/common"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type BudgetProgressService interface {
	ListProgress(ctx context.Context, userID uuid.UUID) ([]analytics.BudgetProgress, error)
	GetProgress(ctx context.Context, userID, budgetID uuid.UUID) (*analytics.BudgetProgress, error)
}

type BudgetHandlers struct {
	budgets BudgetProgressService
}

func NewBudgetHandlers(budgets BudgetProgressService) *BudgetHandlers {
	return &BudgetHandlers{budgets: budgets}
}

// ListProgress handles GET /v1/budgets/progress
// @Summary Progress of every active budget
// @Tags budgets
// @Produce json
// @Success 200 {array} analytics.BudgetProgress
// @Router /v1/budgets/progress [get]
func (h *BudgetHandlers) ListProgress(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	progress, err := h.budgets.ListProgress(c.Request().Context(), userID)
	if err != nil {
		return common.SendError(c, err, "Budget")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"budgets": progress,
		"count":   len(progress),
	})
}

// GetProgress handles GET /v1/budgets/:id/progress
// @Summary Progress of one budget
// @Tags budgets
// @Produce json
// @Param id path string true "budget id"
// @Success 200 {object} analytics.BudgetProgress
// @Failure 404 {object} common.ErrorResponse
// @Router /v1/budgets/{id}/progress [get]
func (h *BudgetHandlers) GetProgress(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	budgetID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	progress, err := h.budgets.GetProgress(c.Request().Context(), userID, budgetID)
	if err != nil {
		return common.SendError(c, err, "Budget")
	}
	return c.JSON(http.StatusOK, progress)
}
