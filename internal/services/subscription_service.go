package services

import (
	"context"
	"fmt"
	"time"

	"finsync/internal/common"
	"finsync/internal/models"
	"finsync/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CheckoutRequest struct {
	PlanType    models.PlanType `json:"plan_type" validate:"required,oneof=monthly annual"`
	BillingType string          `json:"billing_type" validate:"required,oneof=PIX BOLETO CREDIT_CARD UNDEFINED"`
	Name        string          `json:"name" validate:"required,max=120"`
	Email       string          `json:"email" validate:"required,email"`
	CpfCnpj     string          `json:"cpf_cnpj" validate:"required,numeric,min=11,max=14"`
}

type CheckoutResult struct {
	SubscriptionID string                    `json:"subscription_id"`
	PaymentID      string                    `json:"payment_id,omitempty"`
	InvoiceURL     string                    `json:"invoice_url,omitempty"`
	Status         models.SubscriptionStatus `json:"status"`
}

// SubscriptionService drives user initiated subscription changes at the processor.
type SubscriptionService interface {
	GetCurrent(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	StartCheckout(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*CheckoutResult, error)
	RequestPlanChange(ctx context.Context, userID uuid.UUID, plan models.PlanType) (*models.PlanChangeRequest, error)
	// GetActivePlanChange reports the latest pending request, persisting it as expired once its deadline passed.
	GetActivePlanChange(ctx context.Context, userID uuid.UUID) (*models.PlanChangeRequest, error)
	CancelPlanChange(ctx context.Context, userID uuid.UUID) (*models.PlanChangeRequest, error)
	CancelSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	// VoidOverduePayments cancels overdue charges before the payment method is replaced.
	VoidOverduePayments(ctx context.Context, userID uuid.UUID) (int, error)
}

type subscriptionService struct {
	store         repositories.Store
	processor     PaymentProcessor
	prices        PriceProvider
	reconciler    ReconciliationService
	planChangeTTL time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

func NewSubscriptionService(
	store repositories.Store,
	processor PaymentProcessor,
	prices PriceProvider,
	reconciler ReconciliationService,
	planChangeTTL time.Duration,
	logger *zap.Logger,
) SubscriptionService {
	return &subscriptionService{
		store:         store,
		processor:     processor,
		prices:        prices,
		reconciler:    reconciler,
		planChangeTTL: planChangeTTL,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *subscriptionService) priceFor(ctx context.Context, plan models.PlanType) (decimal.Decimal, error) {
	prices, err := s.prices.PlanPrices(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	switch plan {
	case models.PlanMonthly:
		return prices.Monthly, nil
	case models.PlanAnnual:
		return prices.Annual, nil
	}
	return decimal.Zero, fmt.Errorf("%w: no list price for plan %q", common.ErrConfig, plan)
}

func (s *subscriptionService) GetCurrent(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	return s.store.Subscriptions().GetCurrentByUserID(ctx, userID)
}

// liveSubscription returns the user's subscription when it is linked to the processor.
func (s *subscriptionService) liveSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.store.Subscriptions().GetCurrentByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !isLive(sub.Status) || sub.ExternalSubscriptionID == nil {
		return nil, common.ErrNotFound
	}
	return sub, nil
}

func (s *subscriptionService) StartCheckout(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*CheckoutResult, error) {
	price, err := s.priceFor(ctx, req.PlanType)
	if err != nil {
		return nil, err
	}

	current, err := s.store.Subscriptions().GetCurrentByUserID(ctx, userID)
	if err != nil && !common.IsNotFound(err) {
		return nil, err
	}
	if current != nil && current.Status == models.SubscriptionActive {
		return nil, fmt.Errorf("%w: user already has an active subscription", common.ErrConflict)
	}

	customerID := ""
	if current != nil && current.ExternalCustomerID != nil {
		customerID = *current.ExternalCustomerID
	} else {
		customer, err := s.processor.CreateCustomer(ctx, models.ProcessorCustomer{
			Name:              req.Name,
			Email:             req.Email,
			CpfCnpj:           req.CpfCnpj,
			ExternalReference: userID.String(),
		})
		if err != nil {
			return nil, err
		}
		customerID = customer.ID
	}

	created, err := s.processor.CreateSubscription(ctx, models.NewSubscription{
		Customer:          customerID,
		BillingType:       req.BillingType,
		Value:             price.InexactFloat64(),
		NextDueDate:       models.NewProcessorDate(s.now()),
		Cycle:             req.PlanType.Cycle(),
		Description:       fmt.Sprintf("finsync %s plan", req.PlanType),
		ExternalReference: BuildReference(userID, req.PlanType),
	})
	if err != nil {
		return nil, err
	}

	subscription := &models.Subscription{
		UserID:                 userID,
		ExternalSubscriptionID: common.StringPtr(created.ID),
		ExternalCustomerID:     common.StringPtr(customerID),
		PlanType:               req.PlanType,
		Processor:              models.ProcessorAsaas,
	}
	if err := s.store.Subscriptions().CreatePending(ctx, subscription); err != nil {
		return nil, common.NewWriteError("create pending subscription", err)
	}

	result := &CheckoutResult{SubscriptionID: created.ID, Status: subscription.Status}

	payments, err := s.processor.ListSubscriptionPayments(ctx, created.ID)
	if err != nil {
		// the first charge will still arrive through the webhook or a sweep
		s.logger.Warn("could not list first charge after checkout",
			zap.String("external_subscription_id", created.ID), zap.Error(err))
		return result, nil
	}
	if len(payments) == 0 {
		return result, nil
	}

	first := payments[0]
	reconciled, err := s.reconciler.ReconcilePayment(ctx, &first, &userID)
	if err != nil {
		return nil, err
	}
	result.PaymentID = first.ID
	result.InvoiceURL = first.InvoiceURL
	if reconciled.Subscription != nil {
		result.Status = reconciled.Subscription.Status
	}

	s.logger.Info("checkout started",
		zap.String("user_id", userID.String()),
		zap.String("external_subscription_id", created.ID),
		zap.String("plan_type", string(req.PlanType)))
	return result, nil
}

func (s *subscriptionService) RequestPlanChange(ctx context.Context, userID uuid.UUID, plan models.PlanType) (*models.PlanChangeRequest, error) {
	sub, err := s.liveSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub.Status != models.SubscriptionActive {
		return nil, fmt.Errorf("%w: subscription is %s", common.ErrConflict, sub.Status)
	}
	if sub.PlanType == plan {
		return nil, fmt.Errorf("%w: already on the %s plan", common.ErrConflict, plan)
	}

	active, err := s.activePlanChange(ctx, sub.ID)
	if err != nil && !common.IsNotFound(err) {
		return nil, err
	}
	if active != nil && active.Status == models.PlanChangePending {
		return nil, fmt.Errorf("%w: a plan change is already awaiting payment", common.ErrConflict)
	}

	price, err := s.priceFor(ctx, plan)
	if err != nil {
		return nil, err
	}

	now := s.now()
	externalID := *sub.ExternalSubscriptionID
	if _, err := s.processor.UpdateSubscription(ctx, externalID, models.SubscriptionUpdate{
		Value:                 price.InexactFloat64(),
		Cycle:                 plan.Cycle(),
		NextDueDate:           models.NewProcessorDate(now),
		UpdatePendingPayments: true,
	}); err != nil {
		return nil, err
	}

	request := &models.PlanChangeRequest{
		ID:              uuid.New(),
		SubscriptionID:  sub.ID,
		CurrentPlanType: sub.PlanType,
		NewPlanType:     plan,
		NewPlanValue:    price,
		Status:          models.PlanChangePending,
		ExpiresAt:       now.Add(s.planChangeTTL),
	}

	charge, err := s.pendingCharge(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if charge != nil {
		request.ExternalPaymentID = common.StringPtr(charge.ID)
	} else {
		s.logger.Warn("no pending charge found for plan change", zap.String("external_subscription_id", externalID))
	}

	if err := s.store.PlanChanges().Create(ctx, request); err != nil {
		return nil, common.NewWriteError("create plan change", err)
	}
	if charge != nil {
		if _, err := s.reconciler.ReconcilePayment(ctx, charge, &userID); err != nil {
			return nil, err
		}
	}

	s.logger.Info("plan change requested",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("from", string(sub.PlanType)),
		zap.String("to", string(plan)))
	return request, nil
}

// pendingCharge picks the open charge with the latest due date.
func (s *subscriptionService) pendingCharge(ctx context.Context, externalSubscriptionID string) (*models.ProcessorPayment, error) {
	payments, err := s.processor.ListSubscriptionPayments(ctx, externalSubscriptionID)
	if err != nil {
		return nil, err
	}
	var charge *models.ProcessorPayment
	for i := range payments {
		p := &payments[i]
		if !models.IsOpenStatus(p.Status) {
			continue
		}
		if charge == nil || p.DueDate.After(charge.DueDate.Time) {
			charge = p
		}
	}
	return charge, nil
}

func (s *subscriptionService) activePlanChange(ctx context.Context, subscriptionID uuid.UUID) (*models.PlanChangeRequest, error) {
	request, err := s.store.PlanChanges().GetLatestPending(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if request.EffectiveStatus(s.now()) == models.PlanChangeExpired {
		if _, err := s.store.PlanChanges().Transition(ctx, request.ID, models.PlanChangePending, models.PlanChangeExpired); err != nil {
			return nil, err
		}
		request.Status = models.PlanChangeExpired
	}
	return request, nil
}

func (s *subscriptionService) GetActivePlanChange(ctx context.Context, userID uuid.UUID) (*models.PlanChangeRequest, error) {
	sub, err := s.store.Subscriptions().GetCurrentByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.activePlanChange(ctx, sub.ID)
}

func (s *subscriptionService) CancelPlanChange(ctx context.Context, userID uuid.UUID) (*models.PlanChangeRequest, error) {
	request, err := s.GetActivePlanChange(ctx, userID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.PlanChangePending {
		return nil, common.ErrNotFound
	}

	if request.ExternalPaymentID != nil {
		if err := s.processor.CancelPayment(ctx, *request.ExternalPaymentID); err != nil && !common.IsNotFound(err) {
			return nil, err
		}
	}

	ok, err := s.store.PlanChanges().Transition(ctx, request.ID, models.PlanChangePending, models.PlanChangeCancelled)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: plan change was resolved concurrently", common.ErrConflict)
	}
	request.Status = models.PlanChangeCancelled
	return request, nil
}

func (s *subscriptionService) CancelSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.liveSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.processor.CancelSubscription(ctx, *sub.ExternalSubscriptionID); err != nil && !common.IsNotFound(err) {
		return nil, err
	}
	if err := s.store.Subscriptions().SetCancelAtPeriodEnd(ctx, sub.ID, true); err != nil {
		return nil, err
	}
	sub.CancelAtPeriodEnd = true

	s.logger.Info("subscription set to cancel at period end", zap.String("subscription_id", sub.ID.String()))
	return sub, nil
}

func (s *subscriptionService) VoidOverduePayments(ctx context.Context, userID uuid.UUID) (int, error) {
	sub, err := s.liveSubscription(ctx, userID)
	if err != nil {
		return 0, err
	}

	payments, err := s.processor.ListSubscriptionPayments(ctx, *sub.ExternalSubscriptionID)
	if err != nil {
		return 0, err
	}

	voided := 0
	for i := range payments {
		if payments[i].Status != models.PaymentOverdue {
			continue
		}
		if err := s.processor.CancelPayment(ctx, payments[i].ID); err != nil {
			return voided, err
		}

		// recorded as cancelled first so the processor's echo is not read as a denial
		payment := paymentFromProcessor(&payments[i])
		payment.Status = models.PaymentCancelled
		payment.UserID = &userID
		if err := s.store.Payments().Upsert(ctx, payment); err != nil {
			return voided, common.NewWriteError("record voided payment", err)
		}
		voided++
	}

	if voided > 0 {
		s.logger.Info("overdue payments voided", zap.String("user_id", userID.String()), zap.Int("count", voided))
	}
	return voided, nil
}
