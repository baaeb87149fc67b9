package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(&StatusError{StatusCode: 400}))
	assert.False(t, IsRetryable(&StatusError{StatusCode: 404}))
	assert.False(t, IsRetryable(gobreaker.ErrOpenState))
	assert.True(t, IsRetryable(&StatusError{StatusCode: 429}))
	assert.True(t, IsRetryable(&StatusError{StatusCode: 503}))
	assert.True(t, IsRetryable(errors.New("connection reset")))
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Delay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestRetry_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	err := Retry(context.Background(), fastPolicy(), zap.NewNop(), func() error {
		resp, err := client.R().Get("/")
		if err != nil {
			return err
		}
		return CheckResponse("test", resp)
	})

	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetry_StopsOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad input", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	err := Retry(context.Background(), fastPolicy(), zap.NewNop(), func() error {
		resp, err := client.R().Get("/")
		if err != nil {
			return err
		}
		return CheckResponse("test", resp)
	})

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnprocessableEntity, se.StatusCode)
	assert.Contains(t, se.Body, "bad input")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewBreaker[int]("test", zap.NewNop())
	fail := func() (int, error) { return 0, &StatusError{StatusCode: 500} }

	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(fail)
	}
	_, err := cb.Execute(func() (int, error) { return 1, nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestBreaker_IgnoresClientErrors(t *testing.T) {
	cb := NewBreaker[int]("test", zap.NewNop())
	for i := 0; i < 10; i++ {
		_, _ = cb.Execute(func() (int, error) { return 0, &StatusError{StatusCode: 400} })
	}
	v, err := cb.Execute(func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
