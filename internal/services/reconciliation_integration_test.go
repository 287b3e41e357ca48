package services

import (
	"context"
	"sync"
	"testing"

	"finsync/internal/common"
	"finsync/internal/models"
	"finsync/internal/repositories"
	"finsync/testhelpers"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcilePayment_ConcurrentDeliveriesActivateOnce(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	defer db.Cleanup()

	sub := testhelpers.SetupTestSubscription(t, db, "sub_concurrent", models.PlanMonthly)
	store := repositories.NewStore(db.Pool)
	service := newTestReconciler(store, newFakeProcessor(), defaultPrices(), nil)

	dto := &models.ProcessorPayment{
		ID:                "pay_concurrent",
		Customer:          "cus_concurrent",
		Subscription:      "sub_concurrent",
		Value:             decimal.RequireFromString("199.90"),
		Status:            "CONFIRMED",
		BillingType:       "PIX",
		ExternalReference: "plan:annual",
	}

	const deliveries = 8
	outcomes := make([]ReconcileOutcome, deliveries)
	errs := make([]error, deliveries)

	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			copied := *dto
			result, err := service.ReconcilePayment(context.Background(), &copied, &sub.UserID)
			errs[i] = err
			if result != nil {
				outcomes[i] = result.Outcome
			}
		}(i)
	}
	wg.Wait()

	activated := 0
	for i := range outcomes {
		require.NoError(t, errs[i])
		switch outcomes[i] {
		case OutcomeActivated:
			activated++
		default:
			assert.Equal(t, OutcomeAlreadyApplied, outcomes[i])
		}
	}
	assert.Equal(t, 1, activated)

	stored, err := store.Subscriptions().GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, stored.Status)
	assert.Equal(t, models.PlanAnnual, stored.PlanType)
	require.NotNil(t, stored.CurrentPeriodEnd)

	payment, err := store.Payments().GetByExternalID(context.Background(), "pay_concurrent")
	require.NoError(t, err)
	assert.NotNil(t, payment.AppliedAt)
	assert.Equal(t, sub.UserID, *payment.UserID)
}

func TestReconcilePayment_CancelledSubscriptionChargeCreditsNewCheckout(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	defer db.Cleanup()
	ctx := context.Background()

	old := testhelpers.SetupTestSubscription(t, db, "sub_denied", models.PlanMonthly)
	_, err := db.Pool.Exec(ctx, `UPDATE subscriptions SET status = 'cancelled' WHERE id = $1`, old.ID)
	require.NoError(t, err)

	store := repositories.NewStore(db.Pool)
	checkout := &models.Subscription{
		UserID:                 old.UserID,
		ExternalSubscriptionID: common.StringPtr("sub_retry"),
		PlanType:               models.PlanMonthly,
		Processor:              models.ProcessorAsaas,
	}
	require.NoError(t, store.Subscriptions().CreatePending(ctx, checkout))
	require.NotEqual(t, old.ID, checkout.ID)

	service := newTestReconciler(store, newFakeProcessor(), defaultPrices(), nil)
	result, err := service.ReconcilePayment(ctx, &models.ProcessorPayment{
		ID:                "pay_late",
		Customer:          "cus_late",
		Subscription:      "sub_denied",
		Value:             decimal.RequireFromString("19.90"),
		Status:            "CONFIRMED",
		BillingType:       "PIX",
		ExternalReference: "plan:monthly",
	}, &old.UserID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeActivated, result.Outcome)

	live, err := store.Subscriptions().GetByID(ctx, checkout.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, live.Status)
	assert.Equal(t, "sub_retry", *live.ExternalSubscriptionID)

	cancelled, err := store.Subscriptions().GetByID(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionCancelled, cancelled.Status)

	payment, err := store.Payments().GetByExternalID(ctx, "pay_late")
	require.NoError(t, err)
	assert.NotNil(t, payment.AppliedAt)
}
