package services

import (
	"context"
	"fmt"
	"time"

	"finsync/internal/caching"
	"finsync/internal/common"
	"finsync/internal/config"
	"finsync/internal/models"
	"finsync/internal/repositories"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const settingsCacheTTL = 5 * time.Minute

// ProcessorCredentials are resolved per call so key rotation needs no restart.
type ProcessorCredentials struct {
	APIKey       string
	Environment  string
	WebhookToken string
}

type CredentialsProvider interface {
	ProcessorCredentials(ctx context.Context) (ProcessorCredentials, error)
}

type PriceProvider interface {
	PlanPrices(ctx context.Context) (config.PlanPrices, error)
}

// SettingsService reads the settings store with env values as fallbacks.
type SettingsService interface {
	CredentialsProvider
	PriceProvider
}

type settingsService struct {
	repo      repositories.SettingsRepository
	cache     caching.CacheService
	processor config.ProcessorConfig
	plans     config.PlanPrices
	logger    *zap.Logger
}

func NewSettingsService(repo repositories.SettingsRepository, cache caching.CacheService, processor config.ProcessorConfig,
	plans config.PlanPrices, logger *zap.Logger) SettingsService {
	return &settingsService{
		repo:      repo,
		cache:     cache,
		processor: processor,
		plans:     plans,
		logger:    logger,
	}
}

func (s *settingsService) ProcessorCredentials(ctx context.Context) (ProcessorCredentials, error) {
	creds := ProcessorCredentials{
		APIKey:       s.processor.APIKey,
		Environment:  s.processor.Environment,
		WebhookToken: s.processor.WebhookToken,
	}

	for key, dst := range map[string]*string{
		models.SettingAPIKey:       &creds.APIKey,
		models.SettingEnvironment:  &creds.Environment,
		models.SettingWebhookToken: &creds.WebhookToken,
	} {
		value, err := s.lookup(ctx, models.SettingsCategoryProcessor, key)
		if err != nil {
			return ProcessorCredentials{}, err
		}
		if value != "" {
			*dst = value
		}
	}

	if creds.Environment != "sandbox" && creds.Environment != "production" {
		return ProcessorCredentials{}, fmt.Errorf("%w: unknown processor environment %q", common.ErrConfig, creds.Environment)
	}
	return creds, nil
}

func (s *settingsService) PlanPrices(ctx context.Context) (config.PlanPrices, error) {
	prices := s.plans

	for key, dst := range map[string]*decimal.Decimal{
		models.SettingMonthlyPrice: &prices.Monthly,
		models.SettingAnnualPrice:  &prices.Annual,
	} {
		value, err := s.lookup(ctx, models.SettingsCategoryPlans, key)
		if err != nil {
			return config.PlanPrices{}, err
		}
		if value == "" {
			continue
		}
		price, err := decimal.NewFromString(value)
		if err != nil {
			s.logger.Warn("ignoring malformed plan price setting", zap.String("key", key), zap.String("value", value))
			continue
		}
		*dst = price
	}
	return prices, nil
}

// lookup returns "" when the setting is absent.
func (s *settingsService) lookup(ctx context.Context, category, key string) (string, error) {
	if s.cache != nil {
		value, ok, err := s.cache.GetSetting(ctx, category, key)
		if err != nil {
			s.logger.Debug("settings cache read failed", zap.String("category", category), zap.String("key", key), zap.Error(err))
		} else if ok {
			return value, nil
		}
	}

	value, err := s.repo.Get(ctx, category, key)
	if err != nil {
		if common.IsNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read setting %s/%s: %w", category, key, err)
	}

	if s.cache != nil {
		if err := s.cache.SetSetting(ctx, category, key, value, settingsCacheTTL); err != nil {
			s.logger.Debug("settings cache write failed", zap.String("category", category), zap.String("key", key), zap.Error(err))
		}
	}
	return value, nil
}
