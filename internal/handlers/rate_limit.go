package handlers

import (
	"context"
	"time"

	"finsync/internal/common"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type RateLimiter interface {
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SyncLimiter bounds how often a user can force processor round-trips.
type SyncLimiter struct {
	limiter RateLimiter
	limit   int
	window  time.Duration
	logger  *zap.Logger
}

func NewSyncLimiter(limiter RateLimiter, limit int, window time.Duration, logger *zap.Logger) *SyncLimiter {
	return &SyncLimiter{limiter: limiter, limit: limit, window: window, logger: logger}
}

// Allow fails open when redis is unreachable.
func (l *SyncLimiter) Allow(ctx context.Context, userID uuid.UUID) error {
	limited, err := l.limiter.IsRateLimited(ctx, "sync:"+userID.String(), l.limit, l.window)
	if err != nil {
		l.logger.Warn("rate limiter unavailable", zap.String("user_id", userID.String()), zap.Error(err))
		return nil
	}
	if limited {
		return common.ErrRateLimited
	}
	return nil
}
