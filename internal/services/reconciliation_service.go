package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"finsync/internal/common"
	"finsync/internal/models"
	"finsync/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	sweepBatchSize       = 50
	globalSweepBatchSize = 200
	notifyTimeout        = 5 * time.Second
)

type ReconcileOutcome string

const (
	// OutcomeRecorded means only the payment row changed.
	OutcomeRecorded            ReconcileOutcome = "recorded"
	OutcomeActivated           ReconcileOutcome = "activated"
	OutcomePlanChanged         ReconcileOutcome = "plan_changed"
	OutcomeAlreadyApplied      ReconcileOutcome = "already_applied"
	OutcomeCancelled           ReconcileOutcome = "cancelled"
	OutcomePlanChangeCancelled ReconcileOutcome = "plan_change_cancelled"
	OutcomeNoop                ReconcileOutcome = "noop"
	OutcomeUnowned             ReconcileOutcome = "unowned"
	OutcomeSynced              ReconcileOutcome = "synced"
)

// StatusNotFound is reported instead of an error when the processor has no record yet.
const StatusNotFound = "NOT_FOUND"

type ReconcileResult struct {
	Outcome      ReconcileOutcome     `json:"outcome"`
	Payment      *models.Payment      `json:"payment,omitempty"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
	PlanType     models.PlanType      `json:"plan_type,omitempty"`
	// Degraded is set when the plan was inferred from the amount.
	Degraded bool `json:"degraded,omitempty"`
}

type SubscriptionSyncResult struct {
	Outcome      ReconcileOutcome     `json:"outcome"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
}

type ResyncResult struct {
	Status             models.SubscriptionStatus `json:"status"`
	PaymentsReconciled int                       `json:"payments_reconciled"`
	Confirmed          bool                      `json:"confirmed"`
}

type VerifyRequest struct {
	PaymentID      string `json:"payment_id"`
	SubscriptionID string `json:"subscription_id"`
}

type VerifyResult struct {
	Status             string                    `json:"status"`
	PaymentID          string                    `json:"payment_id,omitempty"`
	SubscriptionStatus models.SubscriptionStatus `json:"subscription_status,omitempty"`
	Confirmed          bool                      `json:"confirmed"`
}

type SweepResult struct {
	Checked   int `json:"checked"`
	Updated   int `json:"updated"`
	Confirmed int `json:"confirmed"`
	Missing   int `json:"missing"`
	Failed    int `json:"failed"`
}

// ReconciliationService applies processor state to local records. Every
// operation is idempotent and safe to run concurrently for the same entity.
type ReconciliationService interface {
	ReconcilePayment(ctx context.Context, payment *models.ProcessorPayment, userID *uuid.UUID) (*ReconcileResult, error)
	ReconcileSubscription(ctx context.Context, subscription *models.ProcessorSubscription, userID *uuid.UUID) (*SubscriptionSyncResult, error)
	ResyncSubscription(ctx context.Context, userID uuid.UUID, externalSubscriptionID string) (*ResyncResult, error)
	VerifyPayment(ctx context.Context, userID uuid.UUID, req VerifyRequest) (*VerifyResult, error)
	SweepPendingPayments(ctx context.Context, userID uuid.UUID, olderThan time.Duration) (*SweepResult, error)
	SweepAllPending(ctx context.Context, olderThan time.Duration) (*SweepResult, error)
	LocalSubscriptionStatus(ctx context.Context, userID uuid.UUID, externalSubscriptionID string) (models.SubscriptionStatus, error)
}

type reconciliationService struct {
	store     repositories.Store
	processor PaymentProcessor
	prices    PriceProvider
	notifier  Notifier
	logger    *zap.Logger
	now       func() time.Time
	async     func(func())
}

func NewReconciliationService(store repositories.Store, processor PaymentProcessor, prices PriceProvider,
	notifier Notifier, logger *zap.Logger) ReconciliationService {
	return &reconciliationService{
		store:     store,
		processor: processor,
		prices:    prices,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
		async:     func(fn func()) { go fn() },
	}
}

func (s *reconciliationService) ReconcilePayment(ctx context.Context, dto *models.ProcessorPayment, userID *uuid.UUID) (*ReconcileResult, error) {
	if dto == nil || dto.ID == "" {
		return nil, fmt.Errorf("payment id is required")
	}

	payment := paymentFromProcessor(dto)
	previous, err := s.store.Payments().GetByExternalID(ctx, dto.ID)
	if err != nil && !common.IsNotFound(err) {
		return nil, common.NewWriteError("lookup payment", err)
	}
	owner, err := s.resolvePaymentOwner(ctx, dto, userID, previous)
	if err != nil {
		return nil, err
	}
	payment.UserID = owner

	// an owner already stored is never replaced
	if err := s.store.Payments().Upsert(ctx, payment); err != nil {
		return nil, common.NewWriteError("upsert payment", err)
	}

	log := s.logger.With(zap.String("external_payment_id", payment.ExternalPaymentID), zap.String("status", payment.Status))
	result := &ReconcileResult{Outcome: OutcomeRecorded, Payment: payment}

	if payment.UserID == nil {
		if models.IsSuccessStatus(payment.Status) || models.IsFailureStatus(payment.Status) {
			log.Warn("payment has no resolvable owner, subscription left untouched")
		}
		result.Outcome = OutcomeUnowned
		return result, nil
	}

	switch {
	case models.IsSuccessStatus(payment.Status):
		err = s.applySuccess(ctx, payment, result)
	case models.IsFailureStatus(payment.Status):
		// only a transition into failure touches the subscription
		if previous != nil && models.IsFailureStatus(previous.Status) {
			result.Outcome = OutcomeNoop
			break
		}
		err = s.applyFailure(ctx, payment, result)
	}
	if err != nil {
		return nil, err
	}

	log.Info("payment reconciled", zap.String("outcome", string(result.Outcome)))
	return result, nil
}

func (s *reconciliationService) applySuccess(ctx context.Context, payment *models.Payment, result *ReconcileResult) error {
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		claimed, err := tx.Payments().MarkApplied(ctx, payment.ExternalPaymentID)
		if err != nil {
			return common.NewWriteError("claim payment", err)
		}
		if !claimed {
			result.Outcome = OutcomeAlreadyApplied
			return nil
		}

		change, err := tx.PlanChanges().GetPendingByPaymentID(ctx, payment.ExternalPaymentID)
		if err != nil && !common.IsNotFound(err) {
			return common.NewWriteError("lookup plan change", err)
		}
		if change != nil {
			if err := tx.Subscriptions().UpdatePlanType(ctx, change.SubscriptionID, change.NewPlanType); err != nil {
				return common.NewWriteError("apply plan change", err)
			}
			if _, err := tx.PlanChanges().Transition(ctx, change.ID, models.PlanChangePending, models.PlanChangePaid); err != nil {
				return common.NewWriteError("resolve plan change", err)
			}
			result.Outcome = OutcomePlanChanged
			result.PlanType = change.NewPlanType
			return nil
		}

		plan, degraded, err := s.inferPlan(ctx, payment)
		if err != nil {
			return err
		}
		subscription, err := s.activate(ctx, tx, *payment.UserID, payment, plan)
		if err != nil {
			return err
		}
		result.Outcome = OutcomeActivated
		result.Subscription = subscription
		result.PlanType = plan
		result.Degraded = degraded
		return nil
	})
	if err != nil {
		if common.IsWriteError(err) || common.IsConfigError(err) {
			return err
		}
		return common.NewWriteError("transaction", err)
	}

	if result.Outcome == OutcomeActivated {
		userID, plan := *payment.UserID, result.PlanType
		s.notify(func(ctx context.Context) error {
			return s.notifier.NotifyPaymentConfirmed(ctx, userID, payment, plan)
		})
	}
	return nil
}

func (s *reconciliationService) activate(ctx context.Context, tx repositories.Store, userID uuid.UUID,
	payment *models.Payment, plan models.PlanType) (*models.Subscription, error) {
	start := s.now().UTC()
	activation := repositories.Activation{
		PlanType:               plan,
		PeriodStart:            start,
		PeriodEnd:              start.AddDate(0, 0, plan.PeriodDays()),
		ExternalSubscriptionID: payment.ExternalSubscriptionID,
		ExternalCustomerID:     payment.ExternalCustomerID,
	}

	if payment.ExternalSubscriptionID != nil {
		existing, err := tx.Subscriptions().GetByExternalID(ctx, *payment.ExternalSubscriptionID)
		if err != nil && !common.IsNotFound(err) {
			return nil, common.NewWriteError("lookup subscription", err)
		}
		if existing != nil && !existing.Status.Live() {
			current, err := tx.Subscriptions().GetCurrentByUserID(ctx, userID)
			if err != nil && !common.IsNotFound(err) {
				return nil, common.NewWriteError("lookup subscription", err)
			}
			if current != nil && current.ID != existing.ID && current.Status.Live() {
				// the user checked out again after this one was cancelled; credit the
				// live row and keep its processor link
				s.logger.Warn("payment for cancelled subscription applied to live subscription",
					zap.String("user_id", userID.String()),
					zap.String("cancelled_subscription_id", existing.ID.String()),
					zap.String("live_subscription_id", current.ID.String()))
				activation.ExternalSubscriptionID = nil
				existing = nil
			}
		}
		if existing != nil {
			if err := tx.Subscriptions().Activate(ctx, existing.ID, activation); err != nil {
				return nil, common.NewWriteError("activate subscription", err)
			}
			existing.PlanType = plan
			existing.Status = models.SubscriptionActive
			existing.CurrentPeriodStart = &activation.PeriodStart
			existing.CurrentPeriodEnd = &activation.PeriodEnd
			return existing, nil
		}
	}

	subscription, err := tx.Subscriptions().UpsertActiveForUser(ctx, userID, activation)
	if err != nil {
		return nil, common.NewWriteError("upsert subscription", err)
	}
	return subscription, nil
}

func (s *reconciliationService) applyFailure(ctx context.Context, payment *models.Payment, result *ReconcileResult) error {
	// a failed plan change charge leaves the current plan in place
	change, err := s.store.PlanChanges().GetPendingByPaymentID(ctx, payment.ExternalPaymentID)
	if err != nil && !common.IsNotFound(err) {
		return common.NewWriteError("lookup plan change", err)
	}
	if change != nil {
		if _, err := s.store.PlanChanges().Transition(ctx, change.ID, models.PlanChangePending, models.PlanChangeCancelled); err != nil {
			return common.NewWriteError("cancel plan change", err)
		}
		result.Outcome = OutcomePlanChangeCancelled
		return nil
	}

	subscription, err := s.owningSubscription(ctx, *payment.UserID, payment.ExternalSubscriptionID)
	if err != nil {
		return err
	}
	result.Subscription = subscription
	result.Outcome = OutcomeNoop
	if subscription == nil || subscription.Status != models.SubscriptionActive {
		return nil
	}

	flipped, err := s.store.Subscriptions().CancelIfActive(ctx, subscription.ID)
	if err != nil {
		return common.NewWriteError("cancel subscription", err)
	}
	if !flipped {
		return nil
	}

	subscription.Status = models.SubscriptionCancelled
	result.Outcome = OutcomeCancelled
	userID := *payment.UserID
	s.notify(func(ctx context.Context) error {
		return s.notifier.NotifyPaymentFailed(ctx, userID, payment)
	})
	return nil
}

func (s *reconciliationService) owningSubscription(ctx context.Context, userID uuid.UUID, externalSubscriptionID *string) (*models.Subscription, error) {
	var (
		subscription *models.Subscription
		err          error
	)
	if externalSubscriptionID != nil {
		subscription, err = s.store.Subscriptions().GetByExternalID(ctx, *externalSubscriptionID)
	} else {
		subscription, err = s.store.Subscriptions().GetCurrentByUserID(ctx, userID)
	}
	if err != nil {
		if common.IsNotFound(err) {
			return nil, nil
		}
		return nil, common.NewWriteError("lookup subscription", err)
	}
	return subscription, nil
}

// notify runs fn detached from the request; failures are logged only.
func (s *reconciliationService) notify(fn func(ctx context.Context) error) {
	if s.notifier == nil {
		return
	}
	s.async(func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.logger.Warn("notification failed", zap.Error(err))
		}
	})
}

func (s *reconciliationService) resolvePaymentOwner(ctx context.Context, dto *models.ProcessorPayment, userID *uuid.UUID,
	existing *models.Payment) (*uuid.UUID, error) {
	if userID != nil {
		return userID, nil
	}
	if ref := ParseReference(dto.ExternalReference); ref.UserID != nil {
		return ref.UserID, nil
	}

	if existing != nil && existing.UserID != nil {
		return existing.UserID, nil
	}

	if dto.Subscription != "" {
		subscription, err := s.store.Subscriptions().GetByExternalID(ctx, dto.Subscription)
		if err != nil && !common.IsNotFound(err) {
			return nil, common.NewWriteError("lookup subscription", err)
		}
		if subscription != nil {
			return &subscription.UserID, nil
		}
	}
	return nil, nil
}

func (s *reconciliationService) inferPlan(ctx context.Context, payment *models.Payment) (models.PlanType, bool, error) {
	if plan, ok := PlanFromReference(common.SafeString(payment.ExternalReference)); ok {
		return plan, false, nil
	}

	prices, err := s.prices.PlanPrices(ctx)
	if err != nil {
		return "", false, err
	}
	plan := PlanFromAmount(payment.Amount, prices)
	s.logger.Warn("plan inferred from payment amount",
		zap.Bool("degraded", true),
		zap.String("external_payment_id", payment.ExternalPaymentID),
		zap.String("amount", payment.Amount.String()),
		zap.String("plan_type", string(plan)))
	return plan, true, nil
}

func (s *reconciliationService) ReconcileSubscription(ctx context.Context, dto *models.ProcessorSubscription, userID *uuid.UUID) (*SubscriptionSyncResult, error) {
	if dto == nil || dto.ID == "" {
		return nil, fmt.Errorf("subscription id is required")
	}

	existing, err := s.store.Subscriptions().GetByExternalID(ctx, dto.ID)
	if err != nil && !common.IsNotFound(err) {
		return nil, common.NewWriteError("lookup subscription", err)
	}

	owner := userID
	if owner == nil {
		owner = ParseReference(dto.ExternalReference).UserID
	}
	if owner == nil && existing != nil {
		owner = &existing.UserID
	}
	if owner == nil {
		s.logger.Warn("subscription has no resolvable owner", zap.String("external_subscription_id", dto.ID))
		return &SubscriptionSyncResult{Outcome: OutcomeUnowned}, nil
	}

	subscription := &models.Subscription{
		UserID:                 *owner,
		ExternalSubscriptionID: common.StringPtr(dto.ID),
		ExternalCustomerID:     common.StringPtr(dto.Customer),
		PlanType:               PlanFromCycle(dto.Cycle, dto.ExternalReference),
		Status:                 SubscriptionStatusFromProcessor(dto),
		CurrentPeriodEnd:       dto.NextDueDate.Ptr(),
		Processor:              models.ProcessorAsaas,
	}

	target := existing
	if target == nil {
		current, err := s.store.Subscriptions().GetCurrentByUserID(ctx, *owner)
		if err != nil && !common.IsNotFound(err) {
			return nil, common.NewWriteError("lookup subscription", err)
		}
		if current != nil && isLive(current.Status) && current.ExternalSubscriptionID == nil {
			target = current
		}
	}

	if target != nil {
		err = s.store.Subscriptions().ApplyProcessorState(ctx, target.ID, subscription)
	} else {
		err = s.store.Subscriptions().UpsertByExternalID(ctx, subscription)
	}
	if err != nil {
		return nil, common.NewWriteError("sync subscription", err)
	}

	s.logger.Info("subscription reconciled",
		zap.String("external_subscription_id", dto.ID),
		zap.String("status", string(subscription.Status)))
	return &SubscriptionSyncResult{Outcome: OutcomeSynced, Subscription: subscription}, nil
}

func (s *reconciliationService) ResyncSubscription(ctx context.Context, userID uuid.UUID, externalSubscriptionID string) (*ResyncResult, error) {
	if err := s.checkSubscriptionOwner(ctx, userID, externalSubscriptionID); err != nil {
		return nil, err
	}

	dto, err := s.processor.GetSubscription(ctx, externalSubscriptionID)
	if err != nil {
		return nil, err
	}
	if ref := ParseReference(dto.ExternalReference); ref.UserID != nil && *ref.UserID != userID {
		return nil, common.ErrNotFound
	}

	synced, err := s.ReconcileSubscription(ctx, dto, &userID)
	if err != nil {
		return nil, err
	}

	payments, err := s.processor.ListSubscriptionPayments(ctx, externalSubscriptionID)
	if err != nil {
		return nil, err
	}

	result := &ResyncResult{}
	for i := range payments {
		if _, err := s.ReconcilePayment(ctx, &payments[i], &userID); err != nil {
			return nil, err
		}
		result.PaymentsReconciled++
	}

	status, err := s.LocalSubscriptionStatus(ctx, userID, externalSubscriptionID)
	if err != nil {
		return nil, err
	}
	if status == "" && synced.Subscription != nil {
		status = synced.Subscription.Status
	}
	result.Status = status
	result.Confirmed = status == models.SubscriptionActive
	return result, nil
}

func (s *reconciliationService) VerifyPayment(ctx context.Context, userID uuid.UUID, req VerifyRequest) (*VerifyResult, error) {
	switch {
	case req.PaymentID != "":
		return s.verifyByPayment(ctx, userID, req.PaymentID)
	case req.SubscriptionID != "":
		return s.verifyBySubscription(ctx, userID, req.SubscriptionID)
	}
	return nil, fmt.Errorf("payment_id or subscription_id is required")
}

func (s *reconciliationService) verifyByPayment(ctx context.Context, userID uuid.UUID, paymentID string) (*VerifyResult, error) {
	local, err := s.store.Payments().GetByExternalID(ctx, paymentID)
	if err != nil && !common.IsNotFound(err) {
		return nil, err
	}
	if local != nil && local.UserID != nil && *local.UserID != userID {
		return nil, common.ErrNotFound
	}

	dto, err := s.processor.GetPayment(ctx, paymentID)
	if err != nil {
		if common.IsNotFound(err) {
			return &VerifyResult{Status: StatusNotFound, PaymentID: paymentID}, nil
		}
		return nil, err
	}
	if ref := ParseReference(dto.ExternalReference); ref.UserID != nil && *ref.UserID != userID {
		return nil, common.ErrNotFound
	}

	reconciled, err := s.ReconcilePayment(ctx, dto, &userID)
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{Status: dto.Status, PaymentID: dto.ID, Confirmed: models.IsSuccessStatus(dto.Status)}
	if reconciled.Subscription != nil {
		result.SubscriptionStatus = reconciled.Subscription.Status
	} else if dto.Subscription != "" {
		result.SubscriptionStatus, err = s.LocalSubscriptionStatus(ctx, userID, dto.Subscription)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *reconciliationService) verifyBySubscription(ctx context.Context, userID uuid.UUID, subscriptionID string) (*VerifyResult, error) {
	resync, err := s.ResyncSubscription(ctx, userID, subscriptionID)
	if err != nil {
		var processorErr *common.ProcessorError
		if errors.As(err, &processorErr) && common.IsNotFound(err) {
			return &VerifyResult{Status: StatusNotFound}, nil
		}
		return nil, err
	}

	payments, err := s.store.Payments().ListBySubscription(ctx, subscriptionID, 1)
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{
		Status:             StatusNotFound,
		SubscriptionStatus: resync.Status,
		Confirmed:          resync.Confirmed,
	}
	if len(payments) > 0 {
		result.Status = payments[0].Status
		result.PaymentID = payments[0].ExternalPaymentID
		result.Confirmed = result.Confirmed || models.IsSuccessStatus(payments[0].Status)
	}
	return result, nil
}

func (s *reconciliationService) SweepPendingPayments(ctx context.Context, userID uuid.UUID, olderThan time.Duration) (*SweepResult, error) {
	payments, err := s.store.Payments().ListOpenByUser(ctx, userID, s.now().Add(-olderThan), sweepBatchSize)
	if err != nil {
		return nil, err
	}
	return s.sweep(ctx, payments)
}

func (s *reconciliationService) SweepAllPending(ctx context.Context, olderThan time.Duration) (*SweepResult, error) {
	payments, err := s.store.Payments().ListOpen(ctx, s.now().Add(-olderThan), globalSweepBatchSize)
	if err != nil {
		return nil, err
	}
	return s.sweep(ctx, payments)
}

func (s *reconciliationService) sweep(ctx context.Context, payments []*models.Payment) (*SweepResult, error) {
	result := &SweepResult{}
	for _, local := range payments {
		result.Checked++

		dto, err := s.processor.GetPayment(ctx, local.ExternalPaymentID)
		if err != nil {
			switch {
			case common.IsConfigError(err):
				return result, err
			case common.IsNotFound(err):
				result.Missing++
			default:
				result.Failed++
				s.logger.Warn("sweep could not fetch payment",
					zap.String("external_payment_id", local.ExternalPaymentID), zap.Error(err))
			}
			continue
		}

		if _, err := s.ReconcilePayment(ctx, dto, local.UserID); err != nil {
			return result, err
		}
		if dto.Status != local.Status {
			result.Updated++
		}
		if models.IsSuccessStatus(dto.Status) {
			result.Confirmed++
		}
	}

	if result.Checked > 0 {
		s.logger.Info("pending payments swept",
			zap.Int("checked", result.Checked),
			zap.Int("updated", result.Updated),
			zap.Int("confirmed", result.Confirmed),
			zap.Int("failed", result.Failed))
	}
	return result, nil
}

func (s *reconciliationService) LocalSubscriptionStatus(ctx context.Context, userID uuid.UUID, externalSubscriptionID string) (models.SubscriptionStatus, error) {
	subscription, err := s.store.Subscriptions().GetByExternalID(ctx, externalSubscriptionID)
	if err != nil {
		if common.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	if subscription.UserID != userID {
		return "", common.ErrNotFound
	}
	return subscription.Status, nil
}

func (s *reconciliationService) checkSubscriptionOwner(ctx context.Context, userID uuid.UUID, externalSubscriptionID string) error {
	_, err := s.LocalSubscriptionStatus(ctx, userID, externalSubscriptionID)
	return err
}

func paymentFromProcessor(dto *models.ProcessorPayment) *models.Payment {
	return &models.Payment{
		ExternalPaymentID:      dto.ID,
		ExternalCustomerID:     common.StringPtr(dto.Customer),
		ExternalSubscriptionID: common.StringPtr(dto.Subscription),
		Amount:                 dto.Value,
		Status:                 strings.ToUpper(dto.Status),
		BillingType:            common.StringPtr(dto.BillingType),
		DueDate:                dto.DueDate.Ptr(),
		PaymentDate:            dto.PaymentDate.Ptr(),
		ConfirmedDate:          dto.ConfirmedDate.Ptr(),
		ExternalReference:      common.StringPtr(dto.ExternalReference),
		InvoiceURL:             common.StringPtr(dto.InvoiceURL),
		Description:            common.StringPtr(dto.Description),
	}
}

func isLive(status models.SubscriptionStatus) bool {
	switch status {
	case models.SubscriptionPending, models.SubscriptionActive, models.SubscriptionPastDue:
		return true
	}
	return false
}
