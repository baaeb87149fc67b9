// Package sms sends text messages through an HTTP SMS API.
package sms

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
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

const name = "sms"

var (
	ErrDisabled    = errors.New("sms delivery is disabled")
	ErrNoRecipient = errors.New("sms recipient is empty")
	ErrSendFailure = errors.New("sms delivery failed")
)

// maxBodyLength keeps messages within a few concatenated segments.
const maxBodyLength = 480

type Client struct {
	http    *resty.Client
	cfg     config.SMSConfig
	limiter ratelimit.Limiter
	retry   provider.RetryPolicy
	metrics *metrics.Collector
	log     *zap.Logger
}

func NewClient(cfg config.SMSConfig, m *metrics.Collector, log *zap.Logger) *Client {
	perSecond := cfg.PerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	return &Client{
		http: provider.NewClient(cfg.APIURL, cfg.Timeout).
			SetBasicAuth(cfg.AccountSID, cfg.AuthToken),
		cfg:     cfg,
		limiter: ratelimit.New(perSecond),
		retry:   provider.DefaultRetryPolicy,
		metrics: m,
		log:     log.Named(name),
	}
}

func (c *Client) Enabled() bool {
	return c.cfg.Enabled && c.cfg.AccountSID != "" && c.cfg.AuthToken != ""
}

// Send delivers body to the phone number to. Calls block on the outbound
// rate limit shared by every caller of this client.
func (c *Client) Send(ctx context.Context, to, body string) (err error) {
	if !c.Enabled() {
		return ErrDisabled
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return ErrNoRecipient
	}
	if r := []rune(body); len(r) > maxBodyLength {
		body = string(r[:maxBodyLength-1]) + "…"
	}

	ctx, span := provider.StartSpan(ctx, name, "send")
	start := time.Now()
	defer func() { provider.Finish(span, c.metrics, name, "send", start, err) }()

	err = provider.Retry(ctx, c.retry, c.log, func() error {
		c.limiter.Take()
		resp, err := c.http.R().
			SetContext(ctx).
			SetPathParam("sid", c.cfg.AccountSID).
			SetFormData(map[string]string{"To": to, "From": c.cfg.From, "Body": body}).
			Post("/2010-04-01/Accounts/{sid}/Messages.json")
		if err != nil {
			return err
		}
		return provider.CheckResponse(name, resp)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailure, err)
	}
	c.log.Debug("sms sent", logger.Phone("to", to))
	return nil
}
