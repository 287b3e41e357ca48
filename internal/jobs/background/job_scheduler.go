package background

import (
	"context"
	"fmt"
	"sync"
	"time"

	"finsync/internal/config"
	"finsync/internal/jobs"
	"finsync/internal/models"
	"finsync/internal/services"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const jobRunTimeout = 5 * time.Minute

// Reconciler is the part of the reconciliation service the jobs drive.
type Reconciler interface {
	jobs.ConfirmationBackend
	SweepAllPending(ctx context.Context, olderThan time.Duration) (*services.SweepResult, error)
}

type SubscriptionExpirer interface {
	ExpireEnded(ctx context.Context, now time.Time) (int64, error)
}

// SnapshotStore mirrors confirmation snapshots so any instance can serve them.
type SnapshotStore interface {
	GetConfirmation(ctx context.Context, id uuid.UUID) (*models.ConfirmationSnapshot, error)
	SetConfirmation(ctx context.Context, snapshot *models.ConfirmationSnapshot, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// JobScheduler runs the periodic reconciliation jobs and the per-session confirmation watches.
type JobScheduler struct {
	scheduler     gocron.Scheduler
	reconciler    Reconciler
	subscriptions SubscriptionExpirer
	cacheSvc      SnapshotStore
	cfg           config.JobsConfig
	logger        *zap.Logger
	now           func() time.Time

	mu      sync.RWMutex
	jobs    map[string]gocron.Job
	watches map[uuid.UUID]*watch
}

func NewJobScheduler(reconciler Reconciler, subscriptions SubscriptionExpirer,
	cacheSvc SnapshotStore, cfg config.JobsConfig, logger *zap.Logger) (*JobScheduler, error) {

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	js := &JobScheduler{
		scheduler:     scheduler,
		reconciler:    reconciler,
		subscriptions: subscriptions,
		cacheSvc:      cacheSvc,
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
		jobs:          make(map[string]gocron.Job),
		watches:       make(map[uuid.UUID]*watch),
	}

	if err := js.registerJobs(); err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	return js, nil
}

func (js *JobScheduler) Start() {
	js.logger.Info("starting background job scheduler", zap.Int("jobs", len(js.jobs)))
	js.scheduler.Start()
}

// Stop halts every job, including confirmation watches still running.
func (js *JobScheduler) Stop() error {
	js.logger.Info("stopping background job scheduler")
	js.mu.Lock()
	for _, w := range js.watches {
		w.poller.Stop()
	}
	js.mu.Unlock()
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs() error {
	if err := js.AddJob("pending-payment-sweep", js.cfg.PendingSweepInterval, js.RunPendingSweep); err != nil {
		return fmt.Errorf("register pending sweep: %w", err)
	}
	if err := js.AddJob("subscription-expiry", js.cfg.ExpiryInterval, js.RunExpiry); err != nil {
		return fmt.Errorf("register subscription expiry: %w", err)
	}
	return nil
}

// RunPendingSweep reconciles every open payment older than the configured age.
func (js *JobScheduler) RunPendingSweep() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobRunTimeout)
	defer cancel()

	result, err := js.reconciler.SweepAllPending(ctx, js.cfg.PendingSweepAge)
	if err != nil {
		js.logger.Error("pending payment sweep failed", zap.Error(err))
		return err
	}
	js.logger.Info("pending payment sweep finished",
		zap.Int("checked", result.Checked),
		zap.Int("updated", result.Updated),
		zap.Int("confirmed", result.Confirmed),
		zap.Int("failed", result.Failed))
	return nil
}

// RunExpiry cancels subscriptions flagged to end whose period has passed.
func (js *JobScheduler) RunExpiry() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobRunTimeout)
	defer cancel()

	n, err := js.subscriptions.ExpireEnded(ctx, js.now().UTC())
	if err != nil {
		js.logger.Error("subscription expiry failed", zap.Error(err))
		return err
	}
	if n > 0 {
		js.logger.Info("subscriptions expired at period end", zap.Int64("count", n))
	}
	return nil
}

func (js *JobScheduler) AddJob(name string, interval time.Duration, taskFn any, params ...any) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	job, err := js.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(taskFn, params...),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}

	js.jobs[name] = job
	js.logger.Debug("registered job", zap.String("name", name), zap.Duration("interval", interval))
	return nil
}

func (js *JobScheduler) RemoveJob(name string) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	if job, exists := js.jobs[name]; exists {
		err := js.scheduler.RemoveJob(job.ID())
		delete(js.jobs, name)
		return err
	}
	return nil
}

// GetJobStatus summarizes the registered jobs for the health endpoint.
func (js *JobScheduler) GetJobStatus() map[string]interface{} {
	js.mu.RLock()
	defer js.mu.RUnlock()

	names := make([]string, 0, len(js.jobs))
	for name := range js.jobs {
		names = append(names, name)
	}

	return map[string]interface{}{
		"total_jobs":           len(js.jobs),
		"jobs":                 names,
		"active_confirmations": len(js.watches),
	}
}
