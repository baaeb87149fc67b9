package meetings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/config"
	domain "github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/meeting"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/provider"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/metrics"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

type Client struct {
	http    *resty.Client
	cfg     config.MeetingsConfig
	tokens  *TokenSource
	retry   provider.RetryPolicy
	metrics *metrics.Collector
	log     *zap.Logger
}

func NewClient(cfg config.MeetingsConfig, tokens *TokenSource, m *metrics.Collector, log *zap.Logger) *Client {
	return &Client{
		http:    provider.NewClient(cfg.APIBaseURL, cfg.Timeout),
		cfg:     cfg,
		tokens:  tokens,
		retry:   provider.DefaultRetryPolicy,
		metrics: m,
		log:     log.Named(name),
	}
}

type meetingSettings struct {
	JoinBeforeHost bool `json:"join_before_host"`
	WaitingRoom    bool `json:"waiting_room"`
}

type createMeetingRequest struct {
	Topic     string          `json:"topic"`
	Type      int             `json:"type"`
	StartTime string          `json:"start_time"`
	Duration  int             `json:"duration"`
	Timezone  string          `json:"timezone"`
	Settings  meetingSettings `json:"settings"`
}

type meetingResponse struct {
	ID       json.Number `json:"id"`
	JoinURL  string      `json:"join_url"`
	StartURL string      `json:"start_url"`
	Password string      `json:"password"`
}

// CreateMeeting schedules a meeting on the provider account.
func (c *Client) CreateMeeting(ctx context.Context, req domain.CreateRequest) (*domain.Meeting, error) {
	if !c.cfg.Enabled {
		return nil, domain.ErrProviderDisabled
	}

	body := createMeetingRequest{
		Topic:     req.Topic,
		Type:      2, // scheduled
		StartTime: req.StartTime.UTC().Format(time.RFC3339),
		Duration:  req.DurationMins,
		Timezone:  "UTC",
		Settings:  meetingSettings{WaitingRoom: true},
	}

	var out meetingResponse
	err := c.call(ctx, "create_meeting", func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(body).SetResult(&out).Post("/users/me/meetings")
	})
	if err != nil {
		return nil, err
	}
	return &domain.Meeting{
		ID:       out.ID.String(),
		JoinURL:  out.JoinURL,
		HostURL:  out.StartURL,
		Passcode: out.Password,
	}, nil
}

// DeleteMeeting removes a meeting. A meeting the provider no longer knows is
// treated as deleted.
func (c *Client) DeleteMeeting(ctx context.Context, meetingID string) error {
	if !c.cfg.Enabled {
		return domain.ErrProviderDisabled
	}

	err := c.call(ctx, "delete_meeting", func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("id", meetingID).Delete("/meetings/{id}")
	})
	var se *provider.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

// call sends one authorised request, retrying transient failures. A 401
// refreshes the token and repeats the request once.
func (c *Client) call(ctx context.Context, op string, send func(*resty.Request) (*resty.Response, error)) (err error) {
	ctx, span := provider.StartSpan(ctx, name, op)
	start := time.Now()
	defer func() { provider.Finish(span, c.metrics, name, op, start, err) }()

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	attempt := func() error {
		return provider.Retry(ctx, c.retry, c.log, func() error {
			resp, err := send(c.http.R().SetContext(ctx).SetAuthToken(token))
			if err != nil {
				return err
			}
			return provider.CheckResponse(name, resp)
		})
	}

	err = attempt()
	if isUnauthorized(err) {
		c.log.Info("access token rejected, refreshing", zap.String("operation", op))
		token, err = c.tokens.Refresh(ctx, token)
		if err != nil {
			return err
		}
		err = attempt()
		if isUnauthorized(err) {
			return fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
		}
	}
	if err != nil {
		var se *provider.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrProviderFailure, err)
	}
	return nil
}
