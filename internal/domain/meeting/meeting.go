package meeting

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrCredentialNotFound = errors.New("meeting provider credential not found")
	ErrProviderDisabled   = errors.New("meeting provider is not configured")
	ErrProviderFailure    = errors.New("meeting provider request failed")
	ErrUnauthorized       = errors.New("meeting provider rejected the access token")
	ErrInvalidSignature   = errors.New("invalid meeting webhook signature")
)

// Credential is the provider OAuth token set shared by every API call.
type Credential struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	Provider     string    `gorm:"column:provider;type:varchar(50);not null;uniqueIndex"`
	AccessToken  string    `gorm:"column:access_token;type:text;not null"`
	RefreshToken string    `gorm:"column:refresh_token;type:text"`
	ExpiresAt    time.Time `gorm:"column:expires_at;not null"`
}

func (Credential) TableName() string {
	return "integrations.oauth_credentials"
}

// ExpiresWithin reports whether the access token is unusable for at least d.
func (c *Credential) ExpiresWithin(d time.Duration, now time.Time) bool {
	return c.AccessToken == "" || !now.Add(d).Before(c.ExpiresAt)
}

type CredentialRepository interface {
	Get(ctx context.Context, provider string) (*Credential, error)

	// Upsert stores the credential keyed by provider.
	Upsert(ctx context.Context, c *Credential) error
}

// Meeting is what the provider returns for a scheduled meeting.
type Meeting struct {
	ID       string
	JoinURL  string
	HostURL  string
	Passcode string
}

type CreateRequest struct {
	Topic        string
	StartTime    time.Time
	DurationMins int
}

// Event is a decoded provider webhook.
type Event struct {
	Type      string
	MeetingID string
}

const (
	EventURLValidation  = "endpoint.url_validation"
	EventMeetingStarted = "meeting.started"
	EventMeetingEnded   = "meeting.ended"
)

const (
	SignatureHeader = "x-zm-signature"
	TimestampHeader = "x-zm-request-timestamp"
)
