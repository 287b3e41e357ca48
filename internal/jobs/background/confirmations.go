package background

import (
	"context"
	"time"

	"finsync/internal/caching"
	"finsync/internal/common"
	"finsync/internal/jobs"
	"finsync/internal/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	confirmationSnapshotTTL = 30 * time.Minute
	confirmationTickTimeout = 30 * time.Second
)

type watch struct {
	poller *jobs.ConfirmationPoller
	job    gocron.Job
}

// StartConfirmation begins polling for the given checkout every poll interval.
// A user gets at most one live watch per subscription; repeated starts return it.
func (js *JobScheduler) StartConfirmation(ctx context.Context, userID uuid.UUID, externalSubscriptionID, externalPaymentID string) (*models.ConfirmationSnapshot, error) {
	js.mu.Lock()
	if existing := js.liveWatchLocked(userID, externalSubscriptionID); existing != nil {
		js.mu.Unlock()
		snapshot := existing.poller.Snapshot()
		js.logger.Debug("confirmation watch reused",
			zap.String("watch_id", snapshot.ID.String()),
			zap.String("user_id", userID.String()))
		return &snapshot, nil
	}

	poller := jobs.NewConfirmationPoller(userID, externalSubscriptionID, externalPaymentID, js.reconciler, js.logger)
	snapshot := poller.Snapshot()
	job, err := js.scheduler.NewJob(
		gocron.DurationJob(jobs.PollInterval),
		gocron.NewTask(js.tickConfirmation, snapshot.ID),
		gocron.WithName("confirmation-"+snapshot.ID.String()),
		gocron.WithTags("confirmation"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		js.mu.Unlock()
		return nil, err
	}
	js.watches[snapshot.ID] = &watch{poller: poller, job: job}
	js.mu.Unlock()

	js.saveSnapshot(ctx, &snapshot)
	js.logger.Info("confirmation watch started",
		zap.String("watch_id", snapshot.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("external_subscription_id", externalSubscriptionID))
	return &snapshot, nil
}

func (js *JobScheduler) liveWatchLocked(userID uuid.UUID, externalSubscriptionID string) *watch {
	for _, w := range js.watches {
		if w.poller.Stopped() {
			continue
		}
		snapshot := w.poller.Snapshot()
		if snapshot.UserID == userID && snapshot.ExternalSubscriptionID == externalSubscriptionID && !snapshot.State.Terminal() {
			return w
		}
	}
	return nil
}

// GetConfirmation reads a watch owned by userID, falling back to the redis
// snapshot when the watch runs on another instance or has finished.
func (js *JobScheduler) GetConfirmation(ctx context.Context, userID, id uuid.UUID) (*models.ConfirmationSnapshot, error) {
	if w := js.watch(id); w != nil {
		snapshot := w.poller.Snapshot()
		if snapshot.UserID != userID {
			return nil, common.ErrNotFound
		}
		return &snapshot, nil
	}

	snapshot, err := js.cacheSvc.GetConfirmation(ctx, id)
	if err != nil {
		return nil, err
	}
	if snapshot == nil || snapshot.UserID != userID {
		return nil, common.ErrNotFound
	}
	return snapshot, nil
}

func (js *JobScheduler) StopConfirmation(ctx context.Context, userID, id uuid.UUID) error {
	w := js.watch(id)
	if w == nil {
		snapshot, err := js.GetConfirmation(ctx, userID, id)
		if err != nil {
			return err
		}
		return js.cacheSvc.Delete(ctx, caching.ConfirmationKey(snapshot.ID))
	}
	if w.poller.Snapshot().UserID != userID {
		return common.ErrNotFound
	}

	w.poller.Stop()
	js.dropWatch(id)
	return js.cacheSvc.Delete(ctx, caching.ConfirmationKey(id))
}

func (js *JobScheduler) tickConfirmation(id uuid.UUID) {
	w := js.watch(id)
	if w == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), confirmationTickTimeout)
	defer cancel()

	snapshot := w.poller.Tick(ctx)
	if w.poller.Stopped() {
		return
	}
	js.saveSnapshot(ctx, &snapshot)

	if snapshot.State.Terminal() {
		js.logger.Info("confirmation watch finished",
			zap.String("watch_id", id.String()),
			zap.String("state", string(snapshot.State)),
			zap.Int("tick", snapshot.Tick))
		js.dropWatch(id)
	}
}

func (js *JobScheduler) saveSnapshot(ctx context.Context, snapshot *models.ConfirmationSnapshot) {
	if err := js.cacheSvc.SetConfirmation(ctx, snapshot, confirmationSnapshotTTL); err != nil {
		js.logger.Warn("failed to store confirmation snapshot", zap.String("watch_id", snapshot.ID.String()), zap.Error(err))
	}
}

func (js *JobScheduler) watch(id uuid.UUID) *watch {
	js.mu.RLock()
	defer js.mu.RUnlock()
	return js.watches[id]
}

func (js *JobScheduler) dropWatch(id uuid.UUID) {
	js.mu.Lock()
	defer js.mu.Unlock()
	w, ok := js.watches[id]
	if !ok {
		return
	}
	delete(js.watches, id)
	if err := js.scheduler.RemoveJob(w.job.ID()); err != nil {
		js.logger.Debug("confirmation job already removed", zap.String("watch_id", id.String()), zap.Error(err))
	}
}
