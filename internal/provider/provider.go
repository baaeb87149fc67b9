// Package provider holds the plumbing shared by the outbound integration
// clients: resty construction, retry policy and instrumentation.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/avast/retry-go"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/metrics"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const userAgent = "telecare/1.0"

var tracer = otel.Tracer("telecare/provider")

// StatusError is a non-2xx response from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// CheckResponse turns a resty response into a *StatusError when it is not 2xx.
func CheckResponse(provider string, resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	body := resp.String()
	if len(body) > 512 {
		body = body[:512]
	}
	return &StatusError{Provider: provider, StatusCode: resp.StatusCode(), Body: body}
}

// IsRetryable reports whether a failed call may succeed when repeated:
// transport errors, 429 and 5xx.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return true
}

// NewClient builds a resty client for one provider.
func NewClient(baseURL string, timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent)
}

// RetryPolicy configures Retry.
type RetryPolicy struct {
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration
}

var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Delay: 200 * time.Millisecond, MaxDelay: 2 * time.Second}

// Retry runs fn with exponential backoff while IsRetryable holds.
func Retry(ctx context.Context, p RetryPolicy, log *zap.Logger, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(p.Attempts),
		retry.Delay(p.Delay),
		retry.MaxDelay(p.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsRetryable),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("retrying provider call", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
}

// NewBreaker builds a circuit breaker that opens after five consecutive
// failures. Client errors (4xx) do not count as failures.
func NewBreaker[T any](name string, log *zap.Logger) *gobreaker.CircuitBreaker[T] {
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsRetryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// StartSpan opens a client span for an outbound call.
func StartSpan(ctx context.Context, provider, operation string) (context.Context, trace.Span) {
	return tracer.Start(ctx, provider+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("provider", provider)),
	)
}

// Finish ends span and records the call in m, which may be nil.
func Finish(span trace.Span, m *metrics.Collector, provider, operation string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	if m != nil {
		m.OutboundDuration.WithLabelValues(provider, operation, result).Observe(time.Since(start).Seconds())
	}
}

// Itoa64 formats minor-unit amounts for form bodies.
func Itoa64(v int64) string {
	return strconv.FormatInt(v, 10)
}
