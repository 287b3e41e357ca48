package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"finsync/internal/common"
	"finsync/internal/models"
	"finsync/internal/services"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	PollInterval = 5 * time.Second
	MaxTicks     = 120

	resyncTick = 2
	verifyTick = 6
	sweepTick  = 60

	resyncSettleDelay = 2 * time.Second
	sweepAge          = 2 * time.Minute
)

const timeoutMessage = "payment was not confirmed within 10 minutes; check your subscription status or contact support"

// Escalation is the remote verification strategy run on a given tick.
type Escalation int

const (
	EscalateNone Escalation = iota
	EscalateResync
	EscalateVerify
	EscalateSweep
	EscalateTimeout
)

func (e Escalation) String() string {
	switch e {
	case EscalateResync:
		return "resync"
	case EscalateVerify:
		return "verify"
	case EscalateSweep:
		return "sweep"
	case EscalateTimeout:
		return "timeout"
	}
	return "none"
}

// EscalationForTick maps a 1-based tick number to the strategy it triggers.
func EscalationForTick(tick int) Escalation {
	switch {
	case tick >= MaxTicks:
		return EscalateTimeout
	case tick == resyncTick:
		return EscalateResync
	case tick == verifyTick:
		return EscalateVerify
	case tick == sweepTick:
		return EscalateSweep
	}
	return EscalateNone
}

// ConfirmationBackend is the subset of the reconciliation service the poller drives.
type ConfirmationBackend interface {
	LocalSubscriptionStatus(ctx context.Context, userID uuid.UUID, externalSubscriptionID string) (models.SubscriptionStatus, error)
	ResyncSubscription(ctx context.Context, userID uuid.UUID, externalSubscriptionID string) (*services.ResyncResult, error)
	VerifyPayment(ctx context.Context, userID uuid.UUID, req services.VerifyRequest) (*services.VerifyResult, error)
	SweepPendingPayments(ctx context.Context, userID uuid.UUID, olderThan time.Duration) (*services.SweepResult, error)
}

// ConfirmationPoller waits for a checkout to become an active subscription.
// Tick must not be called concurrently; Stop and Snapshot may be.
type ConfirmationPoller struct {
	backend ConfirmationBackend
	logger  *zap.Logger
	now     func() time.Time
	wait    func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	snapshot models.ConfirmationSnapshot
	stopped  bool
}

func NewConfirmationPoller(userID uuid.UUID, externalSubscriptionID, externalPaymentID string,
	backend ConfirmationBackend, logger *zap.Logger) *ConfirmationPoller {
	now := time.Now().UTC()
	return &ConfirmationPoller{
		backend: backend,
		logger:  logger,
		now:     time.Now,
		wait:    sleepContext,
		snapshot: models.ConfirmationSnapshot{
			ID:                     uuid.New(),
			UserID:                 userID,
			ExternalSubscriptionID: externalSubscriptionID,
			ExternalPaymentID:      externalPaymentID,
			State:                  models.ConfirmationChecking,
			StartedAt:              now,
			UpdatedAt:              now,
		},
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *ConfirmationPoller) Snapshot() models.ConfirmationSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

// Stop ends the watch. Results of calls still in flight are discarded.
func (p *ConfirmationPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
}

func (p *ConfirmationPoller) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// Tick runs one polling step and returns the resulting snapshot.
func (p *ConfirmationPoller) Tick(ctx context.Context) models.ConfirmationSnapshot {
	p.mu.Lock()
	if p.stopped || p.snapshot.State.Terminal() {
		snap := p.snapshot
		p.mu.Unlock()
		return snap
	}
	p.snapshot.Tick++
	p.snapshot.UpdatedAt = p.now().UTC()
	tick := p.snapshot.Tick
	userID, subID, paymentID := p.snapshot.UserID, p.snapshot.ExternalSubscriptionID, p.snapshot.ExternalPaymentID
	p.mu.Unlock()

	if confirmed, err := p.checkLocal(ctx, userID, subID); err != nil || confirmed {
		return p.resolve(tick, confirmed, err)
	}

	escalation := EscalationForTick(tick)
	var (
		confirmed bool
		err       error
	)
	switch escalation {
	case EscalateResync:
		confirmed, err = p.resync(ctx, userID, subID)
	case EscalateVerify:
		confirmed, err = p.verify(ctx, userID, subID, paymentID)
	case EscalateSweep:
		confirmed, err = p.sweep(ctx, userID, subID)
	case EscalateTimeout:
		return p.finish(models.ConfirmationTimeout, timeoutMessage)
	}
	if escalation != EscalateNone {
		p.logger.Debug("confirmation escalation",
			zap.String("watch_id", p.snapshot.ID.String()),
			zap.Int("tick", tick),
			zap.Stringer("escalation", escalation),
			zap.Bool("confirmed", confirmed),
			zap.Error(err))
	}
	return p.resolve(tick, confirmed, err)
}

func (p *ConfirmationPoller) resolve(tick int, confirmed bool, err error) models.ConfirmationSnapshot {
	switch {
	case err != nil && (common.IsProcessorUnavailable(err) || common.IsRateLimited(err)):
		// the next tick's local check retries implicitly
		p.logger.Warn("confirmation check deferred", zap.Int("tick", tick), zap.Error(err))
		return p.note("processor temporarily unavailable")
	case err != nil:
		p.logger.Error("confirmation check failed", zap.Int("tick", tick), zap.Error(err))
		return p.finish(models.ConfirmationError, err.Error())
	case confirmed:
		return p.finish(models.ConfirmationConfirmed, "")
	}
	return p.Snapshot()
}

func (p *ConfirmationPoller) finish(state models.ConfirmationState, message string) models.ConfirmationSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopped {
		p.snapshot.State = state
		p.snapshot.Message = message
		p.snapshot.UpdatedAt = p.now().UTC()
	}
	return p.snapshot
}

func (p *ConfirmationPoller) note(message string) models.ConfirmationSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopped {
		p.snapshot.Message = message
	}
	return p.snapshot
}

func (p *ConfirmationPoller) checkLocal(ctx context.Context, userID uuid.UUID, subID string) (bool, error) {
	status, err := p.backend.LocalSubscriptionStatus(ctx, userID, subID)
	if err != nil {
		return false, err
	}
	return status == models.SubscriptionActive, nil
}

func (p *ConfirmationPoller) resync(ctx context.Context, userID uuid.UUID, subID string) (bool, error) {
	result, err := p.backend.ResyncSubscription(ctx, userID, subID)
	if err != nil {
		// the processor may not know a fresh checkout yet
		var processorErr *common.ProcessorError
		if errors.As(err, &processorErr) && common.IsNotFound(err) {
			p.logger.Debug("subscription not found at processor yet", zap.String("subscription_id", subID))
			return false, nil
		}
		return false, err
	}
	if result.Confirmed {
		return true, nil
	}
	if err := p.wait(ctx, resyncSettleDelay); err != nil {
		return false, err
	}
	return p.checkLocal(ctx, userID, subID)
}

func (p *ConfirmationPoller) verify(ctx context.Context, userID uuid.UUID, subID, paymentID string) (bool, error) {
	req := services.VerifyRequest{SubscriptionID: subID}
	if paymentID != "" {
		req = services.VerifyRequest{PaymentID: paymentID}
	}
	result, err := p.backend.VerifyPayment(ctx, userID, req)
	if err != nil {
		return false, err
	}
	return result.Confirmed || result.SubscriptionStatus == models.SubscriptionActive, nil
}

func (p *ConfirmationPoller) sweep(ctx context.Context, userID uuid.UUID, subID string) (bool, error) {
	if _, err := p.backend.SweepPendingPayments(ctx, userID, sweepAge); err != nil {
		return false, err
	}
	return p.checkLocal(ctx, userID, subID)
}
