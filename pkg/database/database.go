package database

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/config"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/document"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/meeting"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/payment"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/review"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	connectAttempts = 6
	connectDelay    = 500 * time.Millisecond
)

// Connect opens the pool and waits for postgres to answer, backing off
// between attempts so the service can start alongside its database.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:      NewGormLogger(log, cfg.SlowQueryThreshold),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pool, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrapping sql.DB: %w", err)
	}
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	pool.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	err = retry.Do(
		func() error { return pool.PingContext(ctx) },
		retry.Context(ctx),
		retry.Attempts(connectAttempts),
		retry.Delay(connectDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("database not ready", zap.Uint("attempt", n+1), zap.String("host", cfg.Host), zap.Error(err))
		}),
	)
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("pinging database %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return db, nil
}

// Ping checks the connection for readiness probes.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Schemas are the logical namespaces the models live in.
var Schemas = []string{"auth", "clinical", "billing", "records", "messaging", "integrations", "audit"}

// Models lists every table managed by Migrate.
func Models() []any {
	return []any{
		&domain.User{},
		&domain.AuditLog{},
		&patient.Patient{},
		&doctor.Doctor{},
		&appointment.Appointment{},
		&payment.Payment{},
		&payment.WebhookEvent{},
		&document.Document{},
		&review.Review{},
		&notification.Notification{},
		&meeting.Credential{},
	}
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")
	start := time.Now()

	for _, schema := range Schemas {
		if err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)).Error; err != nil {
			return fmt.Errorf("creating schema %s: %w", schema, err)
		}
	}

	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}

	createIndexes(db, log)

	log.Info("migrations completed", zap.Duration("duration", time.Since(start)))
	return nil
}

// createIndexes adds the partial and expression indexes AutoMigrate cannot
// express. Failures are logged, not fatal: pg_trgm may be unavailable.
func createIndexes(db *gorm.DB, log *zap.Logger) {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS pg_trgm").Error; err != nil {
		log.Warn("pg_trgm extension unavailable", zap.Error(err))
	}

	indexes := []struct {
		name  string
		query string
	}{
		{
			name:  "idx_appointments_doctor_schedule",
			query: `CREATE INDEX IF NOT EXISTS idx_appointments_doctor_schedule ON clinical.appointments (doctor_id, scheduled_at, duration_mins) WHERE deleted_at IS NULL AND status IN ('awaiting_acceptance', 'payment_pending', 'confirmed')`,
		},
		{
			name:  "idx_appointments_patient_schedule",
			query: `CREATE INDEX IF NOT EXISTS idx_appointments_patient_schedule ON clinical.appointments (patient_id, scheduled_at, duration_mins) WHERE deleted_at IS NULL AND status IN ('awaiting_acceptance', 'payment_pending', 'confirmed')`,
		},
		{
			name:  "idx_appointments_reminders",
			query: `CREATE INDEX IF NOT EXISTS idx_appointments_reminders ON clinical.appointments (scheduled_at) WHERE deleted_at IS NULL AND status = 'confirmed' AND reminder_sent_at IS NULL`,
		},
		{
			name:  "idx_doctors_name_trgm",
			query: `CREATE INDEX IF NOT EXISTS idx_doctors_name_trgm ON clinical.doctors USING gin ((first_name || ' ' || last_name) gin_trgm_ops) WHERE deleted_at IS NULL`,
		},
		{
			name:  "idx_doctors_search",
			query: `CREATE INDEX IF NOT EXISTS idx_doctors_search ON clinical.doctors (specialization, city, rating_average DESC) WHERE deleted_at IS NULL AND is_verified`,
		},
		{
			name:  "idx_notifications_unread",
			query: `CREATE INDEX IF NOT EXISTS idx_notifications_unread ON messaging.notifications (user_id, created_at DESC) WHERE read_at IS NULL AND channel = 'in_app'`,
		},
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.query).Error; err != nil {
			log.Warn("creating index failed", zap.String("index", idx.name), zap.Error(err))
		}
	}
}
