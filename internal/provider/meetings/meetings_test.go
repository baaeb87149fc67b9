package meetings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/config"
	domain "github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/meeting"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memCredentials struct {
	mu   sync.Mutex
	cred *domain.Credential
}

func (m *memCredentials) Get(_ context.Context, _ string) (*domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return nil, domain.ErrCredentialNotFound
	}
	c := *m.cred
	return &c, nil
}

func (m *memCredentials) Upsert(_ context.Context, c *domain.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.cred = &cp
	return nil
}

type fakeProvider struct {
	grants     int32
	lastGrant  atomic.Value
	validToken atomic.Value
	server     *httptest.Server
}

func newFakeProvider(t *testing.T) *fakeProvider {
	f := &fakeProvider{}
	f.validToken.Store("")
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client", user)
		assert.Equal(t, "secret", pass)

		n := atomic.AddInt32(&f.grants, 1)
		f.lastGrant.Store(r.PostForm.Get("grant_type"))
		token := "access-" + strconv.Itoa(int(n))
		f.validToken.Store(token)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  token,
			"refresh_token": "refresh-" + strconv.Itoa(int(n)),
			"expires_in":    3600,
		})
	})
	mux.HandleFunc("/v2/users/me/meetings", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+f.validToken.Load().(string) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body createMeetingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 2, body.Type)
		assert.Equal(t, 30, body.Duration)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":85746065432,"join_url":"https://meet/j/1","start_url":"https://meet/s/1","password":"abc"}`))
	})
	mux.HandleFunc("/v2/meetings/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		if r.URL.Path == "/v2/meetings/gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeProvider) config() config.MeetingsConfig {
	return config.MeetingsConfig{
		Enabled:       true,
		APIBaseURL:    f.server.URL + "/v2",
		TokenURL:      f.server.URL + "/oauth/token",
		AccountID:     "acct",
		ClientID:      "client",
		ClientSecret:  "secret",
		WebhookSecret: "hook",
		Timeout:       time.Second,
	}
}

func newTestClient(f *fakeProvider, repo domain.CredentialRepository) *Client {
	cfg := f.config()
	c := NewClient(cfg, NewTokenSource(cfg, repo, zap.NewNop()), nil, zap.NewNop())
	c.retry = provider.RetryPolicy{Attempts: 1, Delay: time.Millisecond, MaxDelay: time.Millisecond}
	return c
}

func TestToken_AccountCredentialsWhenNothingStored(t *testing.T) {
	f := newFakeProvider(t)
	repo := &memCredentials{}
	ts := NewTokenSource(f.config(), repo, zap.NewNop())

	tok, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok)
	assert.Equal(t, "account_credentials", f.lastGrant.Load())
	assert.Equal(t, "refresh-1", repo.cred.RefreshToken)

	// Cached until it nears expiry.
	tok, err = ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.grants))
}

func TestToken_RefreshesWithinMargin(t *testing.T) {
	f := newFakeProvider(t)
	repo := &memCredentials{cred: &domain.Credential{
		Provider:     name,
		AccessToken:  "old",
		RefreshToken: "stored-refresh",
		ExpiresAt:    time.Now().Add(30 * time.Second),
	}}
	ts := NewTokenSource(f.config(), repo, zap.NewNop())

	tok, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok)
	assert.Equal(t, "refresh_token", f.lastGrant.Load())
	assert.Equal(t, "access-1", repo.cred.AccessToken)
}

func TestToken_ConcurrentCallersShareOneRefresh(t *testing.T) {
	f := newFakeProvider(t)
	ts := NewTokenSource(f.config(), &memCredentials{}, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := ts.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "access-1", tok)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.grants))
}

func TestRefresh_SkipsWhenAlreadyReplaced(t *testing.T) {
	f := newFakeProvider(t)
	ts := NewTokenSource(f.config(), &memCredentials{}, zap.NewNop())

	first, err := ts.Token(context.Background())
	require.NoError(t, err)
	second, err := ts.Refresh(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, "access-2", second)

	again, err := ts.Refresh(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, "access-2", again)
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.grants))
}

func TestCreateMeeting_RetriesOnceAfterUnauthorized(t *testing.T) {
	f := newFakeProvider(t)
	repo := &memCredentials{cred: &domain.Credential{
		Provider:    name,
		AccessToken: "revoked",
		ExpiresAt:   time.Now().Add(time.Hour),
	}}
	c := newTestClient(f, repo)

	m, err := c.CreateMeeting(context.Background(), domain.CreateRequest{
		Topic:        "Consultation",
		StartTime:    time.Now().Add(time.Hour),
		DurationMins: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, "85746065432", m.ID)
	assert.Equal(t, "https://meet/j/1", m.JoinURL)
	assert.Equal(t, "https://meet/s/1", m.HostURL)
	assert.Equal(t, "abc", m.Passcode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.grants))
}

func TestDeleteMeeting(t *testing.T) {
	f := newFakeProvider(t)
	c := newTestClient(f, &memCredentials{})

	assert.NoError(t, c.DeleteMeeting(context.Background(), "123"))
	assert.NoError(t, c.DeleteMeeting(context.Background(), "gone"))
}

func TestCreateMeeting_Disabled(t *testing.T) {
	c := NewClient(config.MeetingsConfig{}, nil, nil, zap.NewNop())
	_, err := c.CreateMeeting(context.Background(), domain.CreateRequest{})
	assert.ErrorIs(t, err, domain.ErrProviderDisabled)
}

func TestParseWebhook(t *testing.T) {
	c := NewClient(config.MeetingsConfig{WebhookSecret: "hook"}, nil, nil, zap.NewNop())
	now := time.Now()
	ts := strconv.FormatInt(now.Unix(), 10)

	t.Run("url validation", func(t *testing.T) {
		body := []byte(`{"event":"endpoint.url_validation","payload":{"plainToken":"plain"}}`)
		wh, err := c.ParseWebhook(body, "", "", now)
		require.NoError(t, err)
		require.NotNil(t, wh.Challenge)
		assert.Equal(t, "plain", wh.Challenge.PlainToken)
		assert.Equal(t, hmacHex("hook", "plain"), wh.Challenge.EncryptedToken)
	})

	t.Run("signed event", func(t *testing.T) {
		body := []byte(`{"event":"meeting.ended","payload":{"object":{"id":"98765"}}}`)
		wh, err := c.ParseWebhook(body, Sign(body, ts, "hook"), ts, now)
		require.NoError(t, err)
		require.NotNil(t, wh.Event)
		assert.Equal(t, domain.EventMeetingEnded, wh.Event.Type)
		assert.Equal(t, "98765", wh.Event.MeetingID)
	})

	t.Run("numeric meeting id", func(t *testing.T) {
		body := []byte(`{"event":"meeting.started","payload":{"object":{"id":12345}}}`)
		wh, err := c.ParseWebhook(body, Sign(body, ts, "hook"), ts, now)
		require.NoError(t, err)
		assert.Equal(t, "12345", wh.Event.MeetingID)
	})

	t.Run("bad signature", func(t *testing.T) {
		body := []byte(`{"event":"meeting.ended","payload":{"object":{"id":"1"}}}`)
		_, err := c.ParseWebhook(body, Sign(body, ts, "other"), ts, now)
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		old := strconv.FormatInt(now.Add(-10*time.Minute).Unix(), 10)
		body := []byte(`{"event":"meeting.ended","payload":{"object":{"id":"1"}}}`)
		_, err := c.ParseWebhook(body, Sign(body, old, "hook"), old, now)
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	})
}
