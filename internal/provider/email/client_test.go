package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/config"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var body sendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pat@example.com", body.Personalizations[0].To[0].Email)
		assert.Equal(t, "noreply@telecare.test", body.From.Email)
		assert.Equal(t, "Appointment confirmed", body.Subject)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(config.EmailConfig{
		Enabled: true, APIURL: srv.URL, APIKey: "key", From: "noreply@telecare.test", Timeout: time.Second,
	}, nil, zap.NewNop())

	err := c.Send(context.Background(), Message{To: " pat@example.com ", Subject: "Appointment confirmed", Body: "See you"})
	assert.NoError(t, err)
}

func TestSend_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(config.EmailConfig{Enabled: true, APIURL: srv.URL, APIKey: "key", Timeout: time.Second}, nil, zap.NewNop())
	c.retry = provider.RetryPolicy{Attempts: 1, Delay: time.Millisecond, MaxDelay: time.Millisecond}

	err := c.Send(context.Background(), Message{To: "a@b.c"})
	assert.ErrorIs(t, err, ErrSendFailure)
}

func TestSend_DisabledAndEmptyRecipient(t *testing.T) {
	assert.ErrorIs(t, NewClient(config.EmailConfig{}, nil, zap.NewNop()).Send(context.Background(), Message{To: "a@b.c"}), ErrDisabled)

	c := NewClient(config.EmailConfig{Enabled: true, APIKey: "key"}, nil, zap.NewNop())
	assert.ErrorIs(t, c.Send(context.Background(), Message{To: " "}), ErrNoRecipient)
}
