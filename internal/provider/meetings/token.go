// Package meetings is the client of the video consultation provider.
package meetings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/config"
	domain "github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/meeting"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/provider"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	name = "meetings"

	// refreshMargin is how long before expiry a token is treated as stale.
	refreshMargin = time.Minute
)

// TokenSource hands out the provider access token, refreshing it when it is
// about to expire. The credential is shared through the database so every
// instance sees the latest refresh token.
type TokenSource struct {
	http *resty.Client
	cfg  config.MeetingsConfig
	repo domain.CredentialRepository
	log  *zap.Logger
	now  func() time.Time

	mu   sync.Mutex
	cred *domain.Credential
}

func NewTokenSource(cfg config.MeetingsConfig, repo domain.CredentialRepository, log *zap.Logger) *TokenSource {
	return &TokenSource{
		http: provider.NewClient("", cfg.Timeout).
			SetBasicAuth(cfg.ClientID, cfg.ClientSecret),
		cfg:  cfg,
		repo: repo,
		log:  log.Named(name),
		now:  time.Now,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// Token returns a usable access token.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.cred == nil {
		cred, err := ts.repo.Get(ctx, name)
		if err != nil && !errors.Is(err, domain.ErrCredentialNotFound) {
			return "", err
		}
		ts.cred = cred
	}
	if ts.cred != nil && !ts.cred.ExpiresWithin(refreshMargin, ts.now()) {
		return ts.cred.AccessToken, nil
	}
	return ts.refreshLocked(ctx)
}

// Refresh forces a new token after the API rejected stale. When another
// caller already replaced stale the current token is returned instead.
func (ts *TokenSource) Refresh(ctx context.Context, stale string) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.cred != nil && ts.cred.AccessToken != stale && !ts.cred.ExpiresWithin(refreshMargin, ts.now()) {
		return ts.cred.AccessToken, nil
	}
	return ts.refreshLocked(ctx)
}

func (ts *TokenSource) refreshLocked(ctx context.Context) (string, error) {
	var (
		tok *tokenResponse
		err error
	)
	if ts.cred != nil && ts.cred.RefreshToken != "" {
		tok, err = ts.grant(ctx, map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": ts.cred.RefreshToken,
		})
		if err != nil {
			ts.log.Warn("refresh token grant failed, falling back to account credentials", zap.Error(err))
		}
	}
	if tok == nil {
		tok, err = ts.grant(ctx, map[string]string{
			"grant_type": "account_credentials",
			"account_id": ts.cfg.AccountID,
		})
		if err != nil {
			return "", err
		}
	}

	cred := &domain.Credential{
		Provider:     name,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    ts.now().Add(time.Duration(tok.ExpiresIn) * time.Second),
	}
	if cred.RefreshToken == "" && ts.cred != nil {
		cred.RefreshToken = ts.cred.RefreshToken
	}
	if err := ts.repo.Upsert(ctx, cred); err != nil {
		// The token is still good for this process.
		ts.log.Error("persisting meeting credential", zap.Error(err))
	}
	ts.cred = cred
	return cred.AccessToken, nil
}

func (ts *TokenSource) grant(ctx context.Context, form map[string]string) (*tokenResponse, error) {
	var out tokenResponse
	resp, err := ts.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&out).
		Post(ts.cfg.TokenURL)
	if err != nil {
		return nil, fmt.Errorf("%w: token request: %w", domain.ErrProviderFailure, err)
	}
	if err := provider.CheckResponse(name, resp); err != nil {
		return nil, fmt.Errorf("%w: token request: %w", domain.ErrProviderFailure, err)
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response without access_token", domain.ErrProviderFailure)
	}
	if out.ExpiresIn <= 0 {
		out.ExpiresIn = int(time.Hour / time.Second)
	}
	return &out, nil
}

func isUnauthorized(err error) bool {
	var se *provider.StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}
