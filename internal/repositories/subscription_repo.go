package repositories

import (
	"context"
	"time"

	"finsync/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Activation is the state written when a payment confirms a new period.
type Activation struct {
	PlanType               models.PlanType
	PeriodStart            time.Time
	PeriodEnd              time.Time
	ExternalSubscriptionID *string
	ExternalCustomerID     *string
}

type SubscriptionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.Subscription, error)
	// GetCurrentByUserID prefers the live subscription and falls back to the most recent one.
	GetCurrentByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	// CreatePending upserts the user's live subscription as pending at checkout.
	CreatePending(ctx context.Context, subscription *models.Subscription) error
	Activate(ctx context.Context, id uuid.UUID, activation Activation) error
	// UpsertActiveForUser inserts an active subscription or updates the user's live one in place.
	UpsertActiveForUser(ctx context.Context, userID uuid.UUID, activation Activation) (*models.Subscription, error)
	UpsertByExternalID(ctx context.Context, subscription *models.Subscription) error
	// ApplyProcessorState overwrites an existing row with processor state, attaching the external ids.
	ApplyProcessorState(ctx context.Context, id uuid.UUID, subscription *models.Subscription) error
	UpdatePlanType(ctx context.Context, id uuid.UUID, planType models.PlanType) error
	// CancelIfActive flips an active subscription to cancelled and reports whether it did.
	CancelIfActive(ctx context.Context, id uuid.UUID) (bool, error)
	SetCancelAtPeriodEnd(ctx context.Context, id uuid.UUID, cancel bool) error
	ExpireEnded(ctx context.Context, now time.Time) (int64, error)
}

type subscriptionRepo struct {
	db DBTX
}

func NewSubscriptionRepository(db DBTX) SubscriptionRepository {
	return &subscriptionRepo{db: db}
}

const subscriptionColumns = `id, user_id, external_subscription_id, external_customer_id, plan_type, status,
		current_period_start, current_period_end, cancel_at_period_end, payment_processor, created_at, updated_at`

func scanSubscription(row pgx.Row) (*models.Subscription, error) {
	s := &models.Subscription{}
	err := row.Scan(&s.ID, &s.UserID, &s.ExternalSubscriptionID, &s.ExternalCustomerID, &s.PlanType, &s.Status,
		&s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.CancelAtPeriodEnd, &s.Processor, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *subscriptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	subscription, err := scanSubscription(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return subscription, nil
}

func (r *subscriptionRepo) GetByExternalID(ctx context.Context, externalID string) (*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE external_subscription_id = $1`
	subscription, err := scanSubscription(r.db.QueryRow(ctx, query, externalID))
	if err != nil {
		return nil, notFound(err)
	}
	return subscription, nil
}

func (r *subscriptionRepo) GetCurrentByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY (status IN ('pending', 'active', 'past_due')) DESC, updated_at DESC
		LIMIT 1
	`
	subscription, err := scanSubscription(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return subscription, nil
}

func (r *subscriptionRepo) CreatePending(ctx context.Context, subscription *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (user_id, external_subscription_id, external_customer_id, plan_type, status,
			cancel_at_period_end, payment_processor, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'pending', FALSE, $5, NOW(), NOW())
		ON CONFLICT (user_id) WHERE status IN ('pending', 'active', 'past_due') DO UPDATE SET
			external_subscription_id = EXCLUDED.external_subscription_id,
			external_customer_id = EXCLUDED.external_customer_id,
			plan_type = EXCLUDED.plan_type,
			updated_at = NOW()
		RETURNING id, status, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		subscription.UserID, subscription.ExternalSubscriptionID, subscription.ExternalCustomerID,
		subscription.PlanType, subscription.Processor,
	).Scan(&subscription.ID, &subscription.Status, &subscription.CreatedAt, &subscription.UpdatedAt)
}

func (r *subscriptionRepo) Activate(ctx context.Context, id uuid.UUID, a Activation) error {
	query := `
		UPDATE subscriptions
		SET plan_type = $1, status = 'active', current_period_start = $2, current_period_end = $3,
			external_subscription_id = COALESCE($4, external_subscription_id),
			external_customer_id = COALESCE($5, external_customer_id),
			updated_at = NOW()
		WHERE id = $6
	`
	_, err := r.db.Exec(ctx, query, a.PlanType, a.PeriodStart, a.PeriodEnd, a.ExternalSubscriptionID, a.ExternalCustomerID, id)
	return err
}

func (r *subscriptionRepo) UpsertActiveForUser(ctx context.Context, userID uuid.UUID, a Activation) (*models.Subscription, error) {
	query := `
		INSERT INTO subscriptions (user_id, external_subscription_id, external_customer_id, plan_type, status,
			current_period_start, current_period_end, cancel_at_period_end, payment_processor, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'active', $5, $6, FALSE, $7, NOW(), NOW())
		ON CONFLICT (user_id) WHERE status IN ('pending', 'active', 'past_due') DO UPDATE SET
			plan_type = EXCLUDED.plan_type,
			status = 'active',
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			external_subscription_id = COALESCE(EXCLUDED.external_subscription_id, subscriptions.external_subscription_id),
			external_customer_id = COALESCE(EXCLUDED.external_customer_id, subscriptions.external_customer_id),
			updated_at = NOW()
		RETURNING ` + subscriptionColumns
	subscription, err := scanSubscription(r.db.QueryRow(ctx, query,
		userID, a.ExternalSubscriptionID, a.ExternalCustomerID, a.PlanType, a.PeriodStart, a.PeriodEnd, models.ProcessorAsaas))
	if err != nil {
		return nil, err
	}
	return subscription, nil
}

func (r *subscriptionRepo) UpsertByExternalID(ctx context.Context, subscription *models.Subscription) error {
	// a processor "active" never promotes a local pending row; activation is
	// reserved for a confirmed payment
	query := `
		INSERT INTO subscriptions (user_id, external_subscription_id, external_customer_id, plan_type, status,
			current_period_end, cancel_at_period_end, payment_processor, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7, NOW(), NOW())
		ON CONFLICT (external_subscription_id) DO UPDATE SET
			status = CASE
				WHEN subscriptions.status = 'pending' AND EXCLUDED.status = 'active' THEN subscriptions.status
				ELSE EXCLUDED.status
			END,
			plan_type = EXCLUDED.plan_type,
			current_period_end = COALESCE(EXCLUDED.current_period_end, subscriptions.current_period_end),
			external_customer_id = COALESCE(EXCLUDED.external_customer_id, subscriptions.external_customer_id),
			updated_at = NOW()
		RETURNING ` + subscriptionColumns
	stored, err := scanSubscription(r.db.QueryRow(ctx, query,
		subscription.UserID, subscription.ExternalSubscriptionID, subscription.ExternalCustomerID,
		subscription.PlanType, subscription.Status, subscription.CurrentPeriodEnd, subscription.Processor))
	if err != nil {
		return err
	}
	*subscription = *stored
	return nil
}

func (r *subscriptionRepo) ApplyProcessorState(ctx context.Context, id uuid.UUID, subscription *models.Subscription) error {
	query := `
		UPDATE subscriptions SET
			status = CASE
				WHEN status = 'pending' AND $1::text = 'active' THEN status
				ELSE $1::text
			END,
			plan_type = $2,
			current_period_end = COALESCE($3, current_period_end),
			external_subscription_id = COALESCE($4, external_subscription_id),
			external_customer_id = COALESCE($5, external_customer_id),
			updated_at = NOW()
		WHERE id = $6
		RETURNING ` + subscriptionColumns
	stored, err := scanSubscription(r.db.QueryRow(ctx, query,
		subscription.Status, subscription.PlanType, subscription.CurrentPeriodEnd,
		subscription.ExternalSubscriptionID, subscription.ExternalCustomerID, id))
	if err != nil {
		return notFound(err)
	}
	*subscription = *stored
	return nil
}

func (r *subscriptionRepo) UpdatePlanType(ctx context.Context, id uuid.UUID, planType models.PlanType) error {
	query := `UPDATE subscriptions SET plan_type = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.Exec(ctx, query, planType, id)
	return err
}

func (r *subscriptionRepo) CancelIfActive(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE subscriptions
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *subscriptionRepo) SetCancelAtPeriodEnd(ctx context.Context, id uuid.UUID, cancel bool) error {
	query := `UPDATE subscriptions SET cancel_at_period_end = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.Exec(ctx, query, cancel, id)
	return err
}

func (r *subscriptionRepo) ExpireEnded(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE subscriptions
		SET status = 'cancelled', updated_at = NOW()
		WHERE cancel_at_period_end AND status IN ('active', 'past_due') AND current_period_end <= $1
	`
	tag, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
