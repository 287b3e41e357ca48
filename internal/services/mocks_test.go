package services

import (
	"context"
	"time"

	"finsync/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetSetting(ctx context.Context, category, key string) (string, bool, error) {
	args := m.Called(ctx, category, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockCacheService) SetSetting(ctx context.Context, category, key, value string, ttl time.Duration) error {
	args := m.Called(ctx, category, key, value, ttl)
	return args.Error(0)
}

func (m *MockCacheService) GetConfirmation(ctx context.Context, id uuid.UUID) (*models.ConfirmationSnapshot, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConfirmationSnapshot), args.Error(1)
}

func (m *MockCacheService) SetConfirmation(ctx context.Context, snapshot *models.ConfirmationSnapshot, ttl time.Duration) error {
	args := m.Called(ctx, snapshot, ttl)
	return args.Error(0)
}

func (m *MockCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheService) Enqueue(ctx context.Context, list string, payload interface{}) error {
	args := m.Called(ctx, list, payload)
	return args.Error(0)
}

func (m *MockCacheService) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCacheService) GetString(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCacheService) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCacheService) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) Get(ctx context.Context, category, key string) (string, error) {
	args := m.Called(ctx, category, key)
	return args.String(0), args.Error(1)
}

func (m *MockSettingsRepository) ListByCategory(ctx context.Context, category string) ([]*models.Setting, error) {
	args := m.Called(ctx, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Setting), args.Error(1)
}
