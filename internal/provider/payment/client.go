// Package payment is the client of the card payment processor.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/config"
	domain "github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/payment"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/provider"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/metrics"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const name = "payments"

type Client struct {
	http    *resty.Client
	cfg     config.PaymentsConfig
	breaker *gobreaker.CircuitBreaker[*resty.Response]
	retry   provider.RetryPolicy
	metrics *metrics.Collector
	log     *zap.Logger
}

func NewClient(cfg config.PaymentsConfig, m *metrics.Collector, log *zap.Logger) *Client {
	log = log.Named(name)
	return &Client{
		http: provider.NewClient(cfg.BaseURL, cfg.Timeout).
			SetAuthToken(cfg.APIKey),
		cfg:     cfg,
		breaker: provider.NewBreaker[*resty.Response](name, log),
		retry:   provider.DefaultRetryPolicy,
		metrics: m,
		log:     log,
	}
}

type intentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

type refundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreateIntent opens a payment intent. The appointment id doubles as the
// idempotency key so a retried booking never charges twice.
func (c *Client) CreateIntent(ctx context.Context, appointmentID uuid.UUID, amount int64, currency string) (*domain.Intent, error) {
	if !c.cfg.Configured() {
		return nil, domain.ErrProcessorDisabled
	}

	var out intentResponse
	err := c.post(ctx, "create_intent", "/v1/payment_intents", "intent-"+appointmentID.String(), map[string]string{
		"amount":                             provider.Itoa64(amount),
		"currency":                           currency,
		"metadata[appointment_id]":           appointmentID.String(),
		"automatic_payment_methods[enabled]": "true",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &domain.Intent{ID: out.ID, ClientSecret: out.ClientSecret, Status: out.Status}, nil
}

// Refund refunds a payment intent in full and returns the refund id.
func (c *Client) Refund(ctx context.Context, paymentIntentID string) (string, error) {
	if !c.cfg.Configured() {
		return "", domain.ErrProcessorDisabled
	}

	var out refundResponse
	err := c.post(ctx, "refund", "/v1/refunds", "refund-"+paymentIntentID, map[string]string{
		"payment_intent": paymentIntentID,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) post(ctx context.Context, op, path, idempotencyKey string, form map[string]string, result any) (err error) {
	ctx, span := provider.StartSpan(ctx, name, op)
	start := time.Now()
	defer func() { provider.Finish(span, c.metrics, name, op, start, err) }()

	err = provider.Retry(ctx, c.retry, c.log, func() error {
		_, err := c.breaker.Execute(func() (*resty.Response, error) {
			resp, err := c.http.R().
				SetContext(ctx).
				SetHeader("Idempotency-Key", idempotencyKey).
				SetFormData(form).
				SetResult(result).
				Post(path)
			if err != nil {
				return nil, err
			}
			return resp, provider.CheckResponse(name, resp)
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrProcessorFailure, err)
	}
	return nil
}
