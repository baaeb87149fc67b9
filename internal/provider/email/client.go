// Package email sends transactional mail through an HTTP mail API.
package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/config"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/provider"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/logger"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/metrics"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const name = "email"

var (
	ErrDisabled    = errors.New("email delivery is disabled")
	ErrNoRecipient = errors.New("email recipient is empty")
	ErrSendFailure = errors.New("email delivery failed")
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type address struct {
	Email string `json:"email"`
}

type personalization struct {
	To []address `json:"to"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
}

type Client struct {
	http    *resty.Client
	cfg     config.EmailConfig
	retry   provider.RetryPolicy
	metrics *metrics.Collector
	log     *zap.Logger
}

func NewClient(cfg config.EmailConfig, m *metrics.Collector, log *zap.Logger) *Client {
	return &Client{
		http:    provider.NewClient("", cfg.Timeout).SetAuthToken(cfg.APIKey),
		cfg:     cfg,
		retry:   provider.DefaultRetryPolicy,
		metrics: m,
		log:     log.Named(name),
	}
}

func (c *Client) Enabled() bool {
	return c.cfg.Enabled && c.cfg.APIKey != ""
}

func (c *Client) Send(ctx context.Context, msg Message) (err error) {
	if !c.Enabled() {
		return ErrDisabled
	}
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return ErrNoRecipient
	}

	ctx, span := provider.StartSpan(ctx, name, "send")
	start := time.Now()
	defer func() { provider.Finish(span, c.metrics, name, "send", start, err) }()

	body := sendRequest{
		Personalizations: []personalization{{To: []address{{Email: to}}}},
		From:             address{Email: c.cfg.From},
		Subject:          msg.Subject,
		Content:          []content{{Type: "text/plain", Value: msg.Body}},
	}

	err = provider.Retry(ctx, c.retry, c.log, func() error {
		resp, err := c.http.R().SetContext(ctx).SetBody(body).Post(c.cfg.APIURL)
		if err != nil {
			return err
		}
		return provider.CheckResponse(name, resp)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailure, err)
	}
	c.log.Debug("email sent", logger.Email("to", to))
	return nil
}
