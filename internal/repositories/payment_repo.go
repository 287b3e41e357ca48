package repositories

import (
	"context"
	"time"

	"finsync/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PaymentRepository interface {
	// Upsert writes the processor view of a payment keyed by external id and
	// fills in the stored id, owner and applied marker.
	Upsert(ctx context.Context, payment *models.Payment) error
	GetByExternalID(ctx context.Context, externalID string) (*models.Payment, error)
	// MarkApplied claims the payment for subscription side effects. It returns
	// false when an earlier reconciliation already claimed it.
	MarkApplied(ctx context.Context, externalID string) (bool, error)
	ListOpenByUser(ctx context.Context, userID uuid.UUID, createdBefore time.Time, limit int) ([]*models.Payment, error)
	ListOpen(ctx context.Context, createdBefore time.Time, limit int) ([]*models.Payment, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Payment, error)
	// ListBySubscription returns settled payments first, then the most recent ones.
	ListBySubscription(ctx context.Context, externalSubscriptionID string, limit int) ([]*models.Payment, error)
}

type paymentRepo struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) PaymentRepository {
	return &paymentRepo{db: db}
}

const paymentColumns = `id, user_id, external_payment_id, external_customer_id, external_subscription_id, amount, status,
		billing_type, due_date, payment_date, confirmed_date, external_reference, invoice_url, description,
		applied_at, created_at, updated_at`

func scanPayment(row pgx.Row) (*models.Payment, error) {
	p := &models.Payment{}
	err := row.Scan(&p.ID, &p.UserID, &p.ExternalPaymentID, &p.ExternalCustomerID, &p.ExternalSubscriptionID,
		&p.Amount, &p.Status, &p.BillingType, &p.DueDate, &p.PaymentDate, &p.ConfirmedDate,
		&p.ExternalReference, &p.InvoiceURL, &p.Description, &p.AppliedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *paymentRepo) Upsert(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (user_id, external_payment_id, external_customer_id, external_subscription_id, amount, status,
			billing_type, due_date, payment_date, confirmed_date, external_reference, invoice_url, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		ON CONFLICT (external_payment_id) DO UPDATE SET
			user_id = COALESCE(payments.user_id, EXCLUDED.user_id),
			external_customer_id = COALESCE(EXCLUDED.external_customer_id, payments.external_customer_id),
			external_subscription_id = COALESCE(EXCLUDED.external_subscription_id, payments.external_subscription_id),
			amount = EXCLUDED.amount,
			status = EXCLUDED.status,
			billing_type = COALESCE(EXCLUDED.billing_type, payments.billing_type),
			due_date = COALESCE(EXCLUDED.due_date, payments.due_date),
			payment_date = EXCLUDED.payment_date,
			confirmed_date = EXCLUDED.confirmed_date,
			external_reference = COALESCE(EXCLUDED.external_reference, payments.external_reference),
			invoice_url = EXCLUDED.invoice_url,
			description = COALESCE(EXCLUDED.description, payments.description),
			updated_at = NOW()
		RETURNING id, user_id, applied_at, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		payment.UserID, payment.ExternalPaymentID, payment.ExternalCustomerID, payment.ExternalSubscriptionID,
		payment.Amount, payment.Status, payment.BillingType, payment.DueDate, payment.PaymentDate,
		payment.ConfirmedDate, payment.ExternalReference, payment.InvoiceURL, payment.Description,
	).Scan(&payment.ID, &payment.UserID, &payment.AppliedAt, &payment.CreatedAt, &payment.UpdatedAt)
}

func (r *paymentRepo) GetByExternalID(ctx context.Context, externalID string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE external_payment_id = $1`
	payment, err := scanPayment(r.db.QueryRow(ctx, query, externalID))
	if err != nil {
		return nil, notFound(err)
	}
	return payment, nil
}

func (r *paymentRepo) MarkApplied(ctx context.Context, externalID string) (bool, error) {
	query := `
		UPDATE payments
		SET applied_at = NOW(), updated_at = NOW()
		WHERE external_payment_id = $1 AND applied_at IS NULL
	`
	tag, err := r.db.Exec(ctx, query, externalID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *paymentRepo) ListOpenByUser(ctx context.Context, userID uuid.UUID, createdBefore time.Time, limit int) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE user_id = $1 AND status IN ('PENDING', 'OVERDUE', 'AWAITING_RISK_ANALYSIS') AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3
	`
	return r.list(ctx, query, userID, createdBefore, limit)
}

func (r *paymentRepo) ListOpen(ctx context.Context, createdBefore time.Time, limit int) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE status IN ('PENDING', 'OVERDUE', 'AWAITING_RISK_ANALYSIS') AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	return r.list(ctx, query, createdBefore, limit)
}

func (r *paymentRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, userID, limit, offset)
}

func (r *paymentRepo) ListBySubscription(ctx context.Context, externalSubscriptionID string, limit int) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE external_subscription_id = $1
		ORDER BY (status IN ('CONFIRMED', 'RECEIVED', 'RECEIVED_IN_CASH')) DESC, created_at DESC
		LIMIT $2
	`
	return r.list(ctx, query, externalSubscriptionID, limit)
}

func (r *paymentRepo) list(ctx context.Context, query string, args ...interface{}) ([]*models.Payment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}
