package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"finsync/internal/models"
	"finsync/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// TestDB holds the database connection for testing
type TestDB struct {
	Pool    *pgxpool.Pool
	Cleanup func()
}

// SetupTestDB connects to TEST_DATABASE_URL and applies migrations. Tests are
// skipped when the variable is not set.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	if err := database.Migrate(connString, zap.NewNop()); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := database.NewPool(ctx, connString, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	db := &TestDB{Pool: pool}
	db.Cleanup = func() {
		TruncateAll(t, db)
		pool.Close()
	}
	TruncateAll(t, db)
	return db
}

// TruncateAll empties every billing table.
func TruncateAll(t *testing.T, db *TestDB) {
	t.Helper()

	_, err := db.Pool.Exec(context.Background(),
		`TRUNCATE plan_change_requests, payments, subscriptions, settings, budgets RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("Failed to truncate tables: %v", err)
	}
}

// SetupTestSubscription inserts a pending subscription for a fresh user.
func SetupTestSubscription(t *testing.T, db *TestDB, externalID string, plan models.PlanType) *models.Subscription {
	t.Helper()

	sub := &models.Subscription{
		ID:                     uuid.New(),
		UserID:                 uuid.New(),
		ExternalSubscriptionID: &externalID,
		PlanType:               plan,
		Status:                 models.SubscriptionPending,
		Processor:              "asaas",
	}
	query := `
		INSERT INTO subscriptions (id, user_id, external_subscription_id, plan_type, status, payment_processor)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := db.Pool.QueryRow(context.Background(), query,
		sub.ID, sub.UserID, externalID, sub.PlanType, sub.Status, sub.Processor,
	).Scan(&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		t.Fatalf("Failed to create test subscription: %v", err)
	}
	return sub
}

// SetupTestBudget inserts an active monthly budget starting on start.
func SetupTestBudget(t *testing.T, db *TestDB, userID uuid.UUID, planned, spent string, start time.Time) uuid.UUID {
	t.Helper()

	budgetID := uuid.New()
	query := `
		INSERT INTO budgets (id, user_id, name, planned_amount, spent_amount, period_type, start_date, end_date, alert_threshold)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, 'monthly', $6, $7, 80)
	`
	_, err := db.Pool.Exec(context.Background(), query,
		budgetID, userID, "Test Budget", planned, spent, start, start.AddDate(0, 1, -1))
	if err != nil {
		t.Fatalf("Failed to create test budget: %v", err)
	}
	return budgetID
}
