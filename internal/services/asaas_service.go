package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"finsync/internal/common"
	"finsync/internal/models"

	"go.uber.org/zap"
)

const (
	asaasSandboxURL    = "https://sandbox.asaas.com/api/v3"
	asaasProductionURL = "https://api.asaas.com/v3"

	asaasPageSize = 100
)

// PaymentProcessor talks to the external billing API. It never touches local storage.
type PaymentProcessor interface {
	GetPayment(ctx context.Context, paymentID string) (*models.ProcessorPayment, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*models.ProcessorSubscription, error)
	ListSubscriptionPayments(ctx context.Context, subscriptionID string) ([]models.ProcessorPayment, error)
	UpdateSubscription(ctx context.Context, subscriptionID string, update models.SubscriptionUpdate) (*models.ProcessorSubscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	CancelPayment(ctx context.Context, paymentID string) error
	CreateCustomer(ctx context.Context, customer models.ProcessorCustomer) (*models.ProcessorCustomer, error)
	CreateSubscription(ctx context.Context, subscription models.NewSubscription) (*models.ProcessorSubscription, error)
}

type asaasService struct {
	credentials CredentialsProvider
	http        *http.Client
	baseURL     string // overrides environment selection when set
	logger      *zap.Logger
}

type AsaasOption func(*asaasService)

// WithBaseURL pins every request to baseURL regardless of the configured environment.
func WithBaseURL(baseURL string) AsaasOption {
	return func(s *asaasService) {
		s.baseURL = baseURL
	}
}

func NewAsaasService(credentials CredentialsProvider, timeout time.Duration, logger *zap.Logger, opts ...AsaasOption) PaymentProcessor {
	s := &asaasService{
		credentials: credentials,
		http:        &http.Client{Timeout: timeout},
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type asaasList[T any] struct {
	HasMore    bool `json:"hasMore"`
	TotalCount int  `json:"totalCount"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	Data       []T  `json:"data"`
}

type asaasErrorBody struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}

func (s *asaasService) GetPayment(ctx context.Context, paymentID string) (*models.ProcessorPayment, error) {
	var payment models.ProcessorPayment
	if err := s.do(ctx, "fetch payment", http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (s *asaasService) GetSubscription(ctx context.Context, subscriptionID string) (*models.ProcessorSubscription, error) {
	var subscription models.ProcessorSubscription
	if err := s.do(ctx, "fetch subscription", http.MethodGet, "/subscriptions/"+url.PathEscape(subscriptionID), nil, &subscription); err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (s *asaasService) ListSubscriptionPayments(ctx context.Context, subscriptionID string) ([]models.ProcessorPayment, error) {
	var payments []models.ProcessorPayment
	offset := 0
	for {
		path := fmt.Sprintf("/subscriptions/%s/payments?offset=%d&limit=%d",
			url.PathEscape(subscriptionID), offset, asaasPageSize)

		var page asaasList[models.ProcessorPayment]
		if err := s.do(ctx, "list subscription payments", http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		payments = append(payments, page.Data...)

		if !page.HasMore || len(page.Data) == 0 {
			return payments, nil
		}
		offset += len(page.Data)
	}
}

func (s *asaasService) UpdateSubscription(ctx context.Context, subscriptionID string, update models.SubscriptionUpdate) (*models.ProcessorSubscription, error) {
	var subscription models.ProcessorSubscription
	if err := s.do(ctx, "update subscription", http.MethodPost, "/subscriptions/"+url.PathEscape(subscriptionID), update, &subscription); err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (s *asaasService) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return s.do(ctx, "cancel subscription", http.MethodDelete, "/subscriptions/"+url.PathEscape(subscriptionID), nil, nil)
}

func (s *asaasService) CancelPayment(ctx context.Context, paymentID string) error {
	return s.do(ctx, "cancel payment", http.MethodDelete, "/payments/"+url.PathEscape(paymentID), nil, nil)
}

func (s *asaasService) CreateCustomer(ctx context.Context, customer models.ProcessorCustomer) (*models.ProcessorCustomer, error) {
	var created models.ProcessorCustomer
	if err := s.do(ctx, "create customer", http.MethodPost, "/customers", customer, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *asaasService) CreateSubscription(ctx context.Context, subscription models.NewSubscription) (*models.ProcessorSubscription, error) {
	var created models.ProcessorSubscription
	if err := s.do(ctx, "create subscription", http.MethodPost, "/subscriptions", subscription, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *asaasService) resolveBaseURL(environment string) string {
	if s.baseURL != "" {
		return s.baseURL
	}
	if environment == "production" {
		return asaasProductionURL
	}
	return asaasSandboxURL
}

func (s *asaasService) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	creds, err := s.credentials.ProcessorCredentials(ctx)
	if err != nil {
		return err
	}
	if creds.APIKey == "" {
		return fmt.Errorf("%w: payment processor api key is not configured", common.ErrConfig)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.resolveBaseURL(creds.Environment)+path, reader)
	if err != nil {
		return &common.ProcessorError{Op: op, Err: err}
	}
	req.Header.Set("access_token", creds.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.http.Do(req)
	if err != nil {
		s.logger.Warn("processor request failed", zap.String("op", op), zap.Error(err))
		return &common.ProcessorError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &common.ProcessorError{Op: op, Err: err}
	}

	s.logger.Debug("processor request",
		zap.String("op", op),
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &common.ProcessorError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data),
			Lookup:     method == http.MethodGet,
		}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &common.ProcessorError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func errorMessage(data []byte) string {
	var body asaasErrorBody
	if err := json.Unmarshal(data, &body); err == nil && len(body.Errors) > 0 {
		return body.Errors[0].Description
	}
	if len(data) > 200 {
		data = data[:200]
	}
	return string(data)
}
