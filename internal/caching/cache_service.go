package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"finsync/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "finsync:"

// NotificationOutbox is the list consumed by the push delivery worker.
const NotificationOutbox = keyPrefix + "notifications:outbox"

type CacheService interface {
	// Settings
	GetSetting(ctx context.Context, category, key string) (string, bool, error)
	SetSetting(ctx context.Context, category, key, value string, ttl time.Duration) error

	// Confirmation watches
	GetConfirmation(ctx context.Context, id uuid.UUID) (*models.ConfirmationSnapshot, error)
	SetConfirmation(ctx context.Context, snapshot *models.ConfirmationSnapshot, ttl time.Duration) error

	// Rate limiting
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// Enqueue appends a JSON encoded payload to a list.
	Enqueue(ctx context.Context, list string, payload interface{}) error

	SetString(ctx context.Context, key string, value string, ttl time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error

	Ping(ctx context.Context) error
	Close() error
}

type redisCacheService struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisCacheService(addr, password string, db int, logger *zap.Logger) CacheService {
	client := redis.NewClient(&redis.Options{
		Addr:     ParseAddr(addr),
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis ping failed on initialization", zap.String("addr", ParseAddr(addr)), zap.Error(err))
	} else {
		logger.Debug("redis connection established", zap.String("addr", ParseAddr(addr)))
	}

	return &redisCacheService{client: client, logger: logger}
}

// ParseAddr strips a redis:// or rediss:// scheme from addr.
func ParseAddr(addr string) string {
	for _, scheme := range []string{"redis://", "rediss://"} {
		if strings.HasPrefix(addr, scheme) {
			return strings.TrimPrefix(addr, scheme)
		}
	}
	return addr
}

func SettingKey(category, key string) string {
	return fmt.Sprintf("%ssetting:%s:%s", keyPrefix, category, key)
}

func ConfirmationKey(id uuid.UUID) string {
	return fmt.Sprintf("%sconfirmation:%s", keyPrefix, id.String())
}

func RateLimitKey(key string) string {
	return fmt.Sprintf("%sratelimit:%s", keyPrefix, key)
}

func (r *redisCacheService) GetSetting(ctx context.Context, category, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, SettingKey(category, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

func (r *redisCacheService) SetSetting(ctx context.Context, category, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, SettingKey(category, key), value, ttl).Err()
}

func (r *redisCacheService) GetConfirmation(ctx context.Context, id uuid.UUID) (*models.ConfirmationSnapshot, error) {
	data, err := r.client.Get(ctx, ConfirmationKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var snapshot models.ConfirmationSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (r *redisCacheService) SetConfirmation(ctx context.Context, snapshot *models.ConfirmationSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, ConfirmationKey(snapshot.ID), data, ttl).Err()
}

func (r *redisCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	cacheKey := RateLimitKey(key)
	count, err := r.client.Incr(ctx, cacheKey).Result()
	if err != nil {
		return true, err
	}

	// first hit opens the window
	if count == 1 {
		if err := r.client.Expire(ctx, cacheKey, window).Err(); err != nil {
			r.logger.Warn("failed to set rate limit window", zap.String("key", cacheKey), zap.Error(err))
		}
	}

	return count > int64(limit), nil
}

func (r *redisCacheService) Enqueue(ctx context.Context, list string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return r.client.RPush(ctx, list, data).Err()
}

func (r *redisCacheService) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisCacheService) GetString(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil // cache miss
		}
		return "", err
	}
	return val, nil
}

func (r *redisCacheService) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisCacheService) Close() error {
	return r.client.Close()
}
