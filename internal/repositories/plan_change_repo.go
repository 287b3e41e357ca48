package repositories

import (
	"context"

	"finsync/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PlanChangeRequestRepository interface {
	Create(ctx context.Context, request *models.PlanChangeRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PlanChangeRequest, error)
	// GetPendingByPaymentID ignores expiry: a charge the processor confirmed is honored.
	GetPendingByPaymentID(ctx context.Context, externalPaymentID string) (*models.PlanChangeRequest, error)
	GetLatestPending(ctx context.Context, subscriptionID uuid.UUID) (*models.PlanChangeRequest, error)
	// Transition moves a request from one status to another and reports whether it did.
	Transition(ctx context.Context, id uuid.UUID, from, to models.PlanChangeStatus) (bool, error)
}

type planChangeRequestRepo struct {
	db DBTX
}

func NewPlanChangeRequestRepository(db DBTX) PlanChangeRequestRepository {
	return &planChangeRequestRepo{db: db}
}

const planChangeColumns = `id, subscription_id, current_plan_type, new_plan_type, new_plan_value, external_payment_id,
		status, expires_at, created_at, updated_at`

func scanPlanChange(row pgx.Row) (*models.PlanChangeRequest, error) {
	r := &models.PlanChangeRequest{}
	err := row.Scan(&r.ID, &r.SubscriptionID, &r.CurrentPlanType, &r.NewPlanType, &r.NewPlanValue,
		&r.ExternalPaymentID, &r.Status, &r.ExpiresAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *planChangeRequestRepo) Create(ctx context.Context, request *models.PlanChangeRequest) error {
	query := `
		INSERT INTO plan_change_requests (id, subscription_id, current_plan_type, new_plan_type, new_plan_value,
			external_payment_id, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, request.ID, request.SubscriptionID, request.CurrentPlanType, request.NewPlanType,
		request.NewPlanValue, request.ExternalPaymentID, request.Status, request.ExpiresAt)
	return err
}

func (r *planChangeRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.PlanChangeRequest, error) {
	query := `SELECT ` + planChangeColumns + ` FROM plan_change_requests WHERE id = $1`
	request, err := scanPlanChange(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return request, nil
}

func (r *planChangeRequestRepo) GetPendingByPaymentID(ctx context.Context, externalPaymentID string) (*models.PlanChangeRequest, error) {
	query := `SELECT ` + planChangeColumns + `
		FROM plan_change_requests
		WHERE external_payment_id = $1 AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 1
	`
	request, err := scanPlanChange(r.db.QueryRow(ctx, query, externalPaymentID))
	if err != nil {
		return nil, notFound(err)
	}
	return request, nil
}

func (r *planChangeRequestRepo) GetLatestPending(ctx context.Context, subscriptionID uuid.UUID) (*models.PlanChangeRequest, error) {
	query := `SELECT ` + planChangeColumns + `
		FROM plan_change_requests
		WHERE subscription_id = $1 AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 1
	`
	request, err := scanPlanChange(r.db.QueryRow(ctx, query, subscriptionID))
	if err != nil {
		return nil, notFound(err)
	}
	return request, nil
}

func (r *planChangeRequestRepo) Transition(ctx context.Context, id uuid.UUID, from, to models.PlanChangeStatus) (bool, error) {
	query := `
		UPDATE plan_change_requests
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`
	tag, err := r.db.Exec(ctx, query, to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
