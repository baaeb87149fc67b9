package repository

import (
	"context"
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/payment"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("creating payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) Save(ctx context.Context, p *payment.Payment) error {
	if err := r.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("saving payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetByProviderID(ctx context.Context, providerPaymentID string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.WithContext(ctx).
		Where("provider_payment_id = ?", providerPaymentID).
		First(&p).Error
	if notFound(err) {
		return nil, payment.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting payment: %w", err)
	}
	return &p, nil
}

func (r *PaymentRepository) LatestForAppointment(ctx context.Context, appointmentID uuid.UUID) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.WithContext(ctx).
		Where("appointment_id = ?", appointmentID).
		Order("created_at DESC").
		First(&p).Error
	if notFound(err) {
		return nil, payment.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting appointment payment: %w", err)
	}
	return &p, nil
}

func (r *PaymentRepository) RecordEvent(ctx context.Context, e *payment.WebhookEvent) error {
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		if _, ok := uniqueViolation(err); ok {
			return payment.ErrDuplicateEvent
		}
		return fmt.Errorf("recording webhook event: %w", err)
	}
	return nil
}

func (r *PaymentRepository) ForgetEvent(ctx context.Context, eventID string) error {
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Delete(&payment.WebhookEvent{}).Error
	if err != nil {
		return fmt.Errorf("forgetting webhook event: %w", err)
	}
	return nil
}

func (r *PaymentRepository) Revenue(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Currency string
		Total    int64
	}
	err := r.db.WithContext(ctx).
		Model(&payment.Payment{}).
		Select("currency, COALESCE(SUM(amount), 0) AS total").
		Where("status = ?", payment.StatusSucceeded).
		Group("currency").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("summing revenue: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Currency] = row.Total
	}
	return out, nil
}
