package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/notification"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) Save(ctx context.Context, n *notification.Notification) error {
	if err := r.db.WithContext(ctx).Save(n).Error; err != nil {
		return fmt.Errorf("saving notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) List(ctx context.Context, q *notification.ListQuery) (*notification.PagedNotifications, error) {
	page, size := normalizePage(q.Page, q.PageSize)

	base := r.db.WithContext(ctx).
		Model(&notification.Notification{}).
		Where("user_id = ? AND channel = ?", q.UserID, notification.ChannelInApp)

	var unread int64
	if err := base.Session(&gorm.Session{}).Where("read_at IS NULL").Count(&unread).Error; err != nil {
		return nil, fmt.Errorf("counting unread notifications: %w", err)
	}

	db := base
	if q.UnreadOnly {
		db = db.Where("read_at IS NULL")
	}

	var total int64
	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting notifications: %w", err)
	}

	var items []*notification.Notification
	if err := db.Order("created_at DESC").Offset(offset(page, size)).Limit(size).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}

	return &notification.PagedNotifications{
		Notifications: items,
		TotalCount:    total,
		Unread:        unread,
		Page:          page,
		PageSize:      size,
		TotalPages:    totalPages(total, size),
	}, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&notification.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read_at", gorm.Expr("COALESCE(read_at, ?)", at))
	if res.Error != nil {
		return fmt.Errorf("marking notification read: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notification.ErrNotificationNotFound
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&notification.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", at)
	if res.Error != nil {
		return 0, fmt.Errorf("marking notifications read: %w", res.Error)
	}
	return res.RowsAffected, nil
}
