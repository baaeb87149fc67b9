package notification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotificationNotFound = errors.New("notification not found")

type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

type Notification struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"-"`

	UserID  uuid.UUID `gorm:"column:user_id;type:uuid;not null;index" json:"-"`
	Channel Channel   `gorm:"column:channel;type:varchar(10);not null" json:"channel"`
	Kind    string    `gorm:"column:kind;type:varchar(50);not null" json:"kind"`
	Title   string    `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Body    string    `gorm:"column:body;type:text" json:"body"`

	// ResourceID points at the appointment, document or review concerned.
	ResourceID *uuid.UUID `gorm:"column:resource_id;type:uuid" json:"resource_id,omitempty"`

	Status Status     `gorm:"column:status;type:varchar(10);not null;default:'pending'" json:"status"`
	Error  string     `gorm:"column:error;type:text" json:"-"`
	SentAt *time.Time `gorm:"column:sent_at" json:"sent_at,omitempty"`
	ReadAt *time.Time `gorm:"column:read_at;index" json:"read_at,omitempty"`
}

func (Notification) TableName() string {
	return "messaging.notifications"
}

func (n *Notification) MarkSent(at time.Time) {
	n.Status = StatusSent
	n.SentAt = &at
	n.Error = ""
}

func (n *Notification) MarkFailed(err error) {
	n.Status = StatusFailed
	n.Error = err.Error()
}

type ListQuery struct {
	UserID     uuid.UUID
	UnreadOnly bool
	Page       int
	PageSize   int
}

type PagedNotifications struct {
	Notifications []*Notification
	TotalCount    int64
	Unread        int64
	Page          int
	PageSize      int
	TotalPages    int
}

type Repository interface {
	Create(ctx context.Context, n *Notification) error
	Save(ctx context.Context, n *Notification) error

	// List returns in-app notifications of a user, newest first.
	List(ctx context.Context, q *ListQuery) (*PagedNotifications, error)

	// MarkRead sets read_at on one of the user's notifications.
	MarkRead(ctx context.Context, userID, id uuid.UUID, at time.Time) error
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
}
