package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/config"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/events"
	v1 "github.com/dmehra2102/prod-golang-projects/telecare/internal/handler/v1"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/provider/email"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/provider/maps"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/provider/meetings"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/provider/payment"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/provider/sms"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/repository"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/server"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/service"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/storage"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/logger"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/metrics"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/tracer"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app holds every long-lived dependency. serve and worker build the same
// graph and use different parts of it.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Collector
	db      *gorm.DB
	blobs   storage.BlobStore
	jwt     *auth.JWTManager
	publish events.Publisher

	meetings *meetings.Client
	audit    *service.AuditService

	authSvc         *service.AuthService
	doctorSvc       *service.DoctorService
	patientSvc      *service.PatientService
	appointmentSvc  *service.AppointmentService
	paymentSvc      *service.PaymentService
	documentSvc     *service.DocumentService
	reviewSvc       *service.ReviewService
	notificationSvc *service.NotificationService
	adminSvc        *service.AdminService

	closers []func(context.Context) error
}

func newApp(ctx context.Context) (_ *app, err error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	log = log.With(zap.String("service", cfg.App.Name), zap.String("version", cfg.App.Version))

	a := &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	shutdownTracing, err := tracer.Init(cfg.Tracing, cfg.App)
	if err != nil {
		return nil, fmt.Errorf("initializing tracer: %w", err)
	}
	a.closers = append(a.closers, shutdownTracing)

	a.metrics = metrics.NewCollector(cfg.App.Name, prometheus.DefaultRegisterer)

	a.db, err = database.Connect(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error {
		sqlDB, err := a.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	a.blobs, err = storage.New(ctx, cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	users := repository.NewUserRepository(a.db)
	patients := repository.NewPatientRepository(a.db)
	doctors := repository.NewDoctorRepository(a.db)
	appointments := repository.NewAppointmentRepository(a.db)
	payments := repository.NewPaymentRepository(a.db)
	documents := repository.NewDocumentRepository(a.db)
	reviews := repository.NewReviewRepository(a.db)
	notifications := repository.NewNotificationRepository(a.db)
	audits := repository.NewAuditRepository(a.db)
	credentials := repository.NewCredentialRepository(a.db)

	processor := payment.NewClient(cfg.Payments, a.metrics, log)
	geocoder := maps.NewGeocoder(cfg.Maps, a.metrics, log)
	a.meetings = meetings.NewClient(cfg.Meetings, meetings.NewTokenSource(cfg.Meetings, credentials, log), a.metrics, log)
	mail := email.NewClient(cfg.Email, a.metrics, log)
	texts := sms.NewClient(cfg.SMS, a.metrics, log)

	// Notifications do not publish, so they can be built before the
	// publisher that feeds them in single-process mode.
	a.notificationSvc = service.NewNotificationService(notifications, users, mail, texts, a.metrics, log)

	if cfg.Kafka.Enabled {
		k, err := events.NewKafka(cfg.Kafka, a.metrics, log)
		if err != nil {
			return nil, fmt.Errorf("connecting to kafka: %w", err)
		}
		a.publish = k
	} else {
		log.Info("kafka disabled, delivering events in process")
		a.publish = events.NewInProcess(a.notificationSvc, a.metrics, log)
	}
	a.closers = append(a.closers, func(context.Context) error { return a.publish.Close() })

	a.jwt = auth.NewJWTManager(cfg.JWT)
	a.audit = service.NewAuditService(audits, a.metrics, log)
	a.closers = append(a.closers, func(context.Context) error {
		a.audit.Shutdown()
		return nil
	})

	a.authSvc = service.NewAuthService(users, a.jwt, auth.NewTOTP(cfg.JWT.Issuer), a.audit, a.metrics, log)
	a.doctorSvc = service.NewDoctorService(doctors, appointments, geocoder, a.audit, log)
	a.patientSvc = service.NewPatientService(patients, appointments, a.audit, log)
	a.appointmentSvc = service.NewAppointmentService(appointments, doctors, payments, processor, a.meetings, a.publish, a.audit, a.metrics, log)
	a.paymentSvc = service.NewPaymentService(payments, appointments, a.appointmentSvc, processor, a.publish, a.audit, a.metrics, log)
	a.documentSvc = service.NewDocumentService(documents, appointments, a.blobs, a.publish, a.audit, a.metrics, log, cfg.Storage.MaxUploadBytes)
	a.reviewSvc = service.NewReviewService(reviews, appointments, doctors, a.publish, a.audit, a.metrics, log)
	a.adminSvc = service.NewAdminService(users, doctors, appointments, payments, a.audit, log)

	return a, nil
}

func (a *app) handlers() *v1.Handlers {
	return &v1.Handlers{
		Auth:          v1.NewAuthHandler(a.authSvc),
		Doctors:       v1.NewDoctorHandler(a.doctorSvc),
		Patients:      v1.NewPatientHandler(a.patientSvc),
		Appointments:  v1.NewAppointmentHandler(a.appointmentSvc),
		Payments:      v1.NewPaymentHandler(a.paymentSvc, a.log),
		Meetings:      v1.NewMeetingHandler(a.meetings, a.appointmentSvc, a.log),
		Reviews:       v1.NewReviewHandler(a.reviewSvc),
		Documents:     v1.NewDocumentHandler(a.documentSvc, a.cfg.Storage.MaxUploadBytes, a.log),
		Notifications: v1.NewNotificationHandler(a.notificationSvc),
		Admin:         v1.NewAdminHandler(a.adminSvc),
	}
}

func (a *app) server() *server.Server {
	return server.New(server.Options{
		Config:   a.cfg,
		Log:      a.log,
		Metrics:  a.metrics,
		Gatherer: prometheus.DefaultGatherer,
		Tokens:   a.jwt,
		Handlers: a.handlers(),
		Checks: []server.Check{
			{Name: "database", Fn: func(ctx context.Context) error { return database.Ping(ctx, a.db) }},
			{Name: "storage", Fn: a.blobs.Ping},
		},
	})
}

// runReminders sends appointment reminders every interval until ctx is done.
func (a *app) runReminders(ctx context.Context) error {
	interval, lead := a.cfg.Reminders.Interval, a.cfg.Reminders.LeadTime
	a.log.Info("reminder loop started", zap.Duration("interval", interval), zap.Duration("lead", lead))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := a.appointmentSvc.SendReminders(ctx, lead)
			if err != nil && !errors.Is(err, context.Canceled) {
				a.log.Error("sending reminders", zap.Error(err))
				continue
			}
			if n > 0 {
				a.log.Info("reminders sent", zap.Int("count", n))
			}
		}
	}
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.log.Warn("shutdown step failed", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}
