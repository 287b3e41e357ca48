package handlers

import (
	"context"
	"time"

	"finsync/internal/analytics"
	"finsync/internal/models"
	"finsync/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockReconciliationService struct {
	mock.Mock
}

func (m *MockReconciliationService) ReconcilePayment(ctx context.Context, payment *models.ProcessorPayment, userID *uuid.UUID) (*services.ReconcileResult, error) {
	args := m.Called(ctx, payment, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ReconcileResult), args.Error(1)
}

func (m *MockReconciliationService) ReconcileSubscription(ctx context.Context, subscription *models.ProcessorSubscription, userID *uuid.UUID) (*services.SubscriptionSyncResult, error) {
	args := m.Called(ctx, subscription, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SubscriptionSyncResult), args.Error(1)
}

func (m *MockReconciliationService) ResyncSubscription(ctx context.Context, userID uuid.UUID, externalSubscriptionID string) (*services.ResyncResult, error) {
	args := m.Called(ctx, userID, externalSubscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ResyncResult), args.Error(1)
}

func (m *MockReconciliationService) VerifyPayment(ctx context.Context, userID uuid.UUID, req services.VerifyRequest) (*services.VerifyResult, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.VerifyResult), args.Error(1)
}

func (m *MockReconciliationService) SweepPendingPayments(ctx context.Context, userID uuid.UUID, olderThan time.Duration) (*services.SweepResult, error) {
	args := m.Called(ctx, userID, olderThan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SweepResult), args.Error(1)
}

func (m *MockReconciliationService) SweepAllPending(ctx context.Context, olderThan time.Duration) (*services.SweepResult, error) {
	args := m.Called(ctx, olderThan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SweepResult), args.Error(1)
}

func (m *MockReconciliationService) LocalSubscriptionStatus(ctx context.Context, userID uuid.UUID, externalSubscriptionID string) (models.SubscriptionStatus, error) {
	args := m.Called(ctx, userID, externalSubscriptionID)
	return args.Get(0).(models.SubscriptionStatus), args.Error(1)
}

type MockSubscriptionService struct {
	mock.Mock
}

func (m *MockSubscriptionService) GetCurrent(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionService) StartCheckout(ctx context.Context, userID uuid.UUID, req services.CheckoutRequest) (*services.CheckoutResult, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CheckoutResult), args.Error(1)
}

func (m *MockSubscriptionService) RequestPlanChange(ctx context.Context, userID uuid.UUID, plan models.PlanType) (*models.PlanChangeRequest, error) {
	args := m.Called(ctx, userID, plan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PlanChangeRequest), args.Error(1)
}

func (m *MockSubscriptionService) GetActivePlanChange(ctx context.Context, userID uuid.UUID) (*models.PlanChangeRequest, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PlanChangeRequest), args.Error(1)
}

func (m *MockSubscriptionService) CancelPlanChange(ctx context.Context, userID uuid.UUID) (*models.PlanChangeRequest, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PlanChangeRequest), args.Error(1)
}

func (m *MockSubscriptionService) CancelSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionService) VoidOverduePayments(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type MockCredentials struct {
	mock.Mock
}

func (m *MockCredentials) ProcessorCredentials(ctx context.Context) (services.ProcessorCredentials, error) {
	args := m.Called(ctx)
	return args.Get(0).(services.ProcessorCredentials), args.Error(1)
}

type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) ArchiveWebhook(ctx context.Context, eventName, eventID string, body []byte) (string, error) {
	args := m.Called(ctx, eventName, eventID, body)
	return args.String(0), args.Error(1)
}

func (m *MockArchive) EnsureBucketExists(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockArchive) Check(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

type MockWatcher struct {
	mock.Mock
}

func (m *MockWatcher) StartConfirmation(ctx context.Context, userID uuid.UUID, externalSubscriptionID, externalPaymentID string) (*models.ConfirmationSnapshot, error) {
	args := m.Called(ctx, userID, externalSubscriptionID, externalPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConfirmationSnapshot), args.Error(1)
}

func (m *MockWatcher) GetConfirmation(ctx context.Context, userID, id uuid.UUID) (*models.ConfirmationSnapshot, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConfirmationSnapshot), args.Error(1)
}

func (m *MockWatcher) StopConfirmation(ctx context.Context, userID, id uuid.UUID) error {
	return m.Called(ctx, userID, id).Error(0)
}

type MockBudgets struct {
	mock.Mock
}

func (m *MockBudgets) ListProgress(ctx context.Context, userID uuid.UUID) ([]analytics.BudgetProgress, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]analytics.BudgetProgress), args.Error(1)
}

func (m *MockBudgets) GetProgress(ctx context.Context, userID, budgetID uuid.UUID) (*analytics.BudgetProgress, error) {
	args := m.Called(ctx, userID, budgetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analytics.BudgetProgress), args.Error(1)
}

type mockPinger struct {
	err error
}

func (p mockPinger) Ping(ctx context.Context) error { return p.err }
