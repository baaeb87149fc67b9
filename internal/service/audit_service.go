package service

import (
	"context"
	"sync"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuditRepository interface {
	CreateBatch(ctx context.Context, entries []*domain.AuditLog) error
}

// AuditEntry is what services record. Request metadata comes from the actor.
type AuditEntry struct {
	UserID       uuid.UUID
	UserRole     domain.Role
	Action       domain.AuditAction
	ResourceType string
	ResourceID   string
	IPAddress    string
	RequestID    string
	StatusCode   int
	Changes      string
}

func auditFor(actor domain.Actor, action domain.AuditAction, resourceType, resourceID string) AuditEntry {
	return AuditEntry{
		UserID:       actor.UserID,
		UserRole:     actor.Role,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    actor.IP,
		RequestID:    actor.RequestID,
	}
}

const (
	auditQueueSize     = 10_000
	auditBatchSize     = 200
	auditFlushInterval = time.Second
	auditWriteTimeout  = 5 * time.Second
	auditDrainTimeout  = 10 * time.Second
)

// AuditService writes audit trail rows off the request path. Entries are
// queued, then written in batches of up to auditBatchSize or once per
// auditFlushInterval, whichever comes first.
type AuditService struct {
	repo    AuditRepository
	metrics *metrics.Collector
	log     *zap.Logger
	now     func() time.Time

	// mu guards closed against sends racing Shutdown's close of queue.
	mu      sync.RWMutex
	closed  bool
	queue   chan *domain.AuditLog
	stopped chan struct{}
}

func NewAuditService(repo AuditRepository, m *metrics.Collector, log *zap.Logger) *AuditService {
	return newAuditService(repo, m, log, auditQueueSize)
}

func newAuditService(repo AuditRepository, m *metrics.Collector, log *zap.Logger, queueSize int) *AuditService {
	s := &AuditService{
		repo:    repo,
		metrics: m,
		log:     log.Named("audit"),
		now:     time.Now,
		queue:   make(chan *domain.AuditLog, queueSize),
		stopped: make(chan struct{}),
	}
	go s.run()
	return s
}

// LogAsync queues e without blocking. A full queue drops the entry and
// increments the audit buffer_dropped_total counter, as does a call made
// after Shutdown.
func (s *AuditService) LogAsync(_ context.Context, e AuditEntry) {
	row := &domain.AuditLog{
		OccurredAt:   s.now().UTC(),
		UserID:       e.UserID,
		UserRole:     e.UserRole,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		IPAddress:    e.IPAddress,
		RequestID:    e.RequestID,
		StatusCode:   e.StatusCode,
		Changes:      e.Changes,
	}
	if row.Changes == "" {
		row.Changes = "{}"
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.metrics.AuditBufferDropped.Inc()
		s.log.Warn("audit service stopped, entry dropped",
			zap.String("action", string(e.Action)),
			zap.String("resource_type", e.ResourceType),
			zap.String("resource_id", e.ResourceID),
		)
		return
	}

	select {
	case s.queue <- row:
	default:
		s.metrics.AuditBufferDropped.Inc()
		s.log.Warn("audit queue full, entry dropped",
			zap.String("action", string(e.Action)),
			zap.String("resource_type", e.ResourceType),
			zap.String("resource_id", e.ResourceID),
		)
	}
}

// Shutdown stops accepting entries and waits for queued ones to be written.
// It may be called more than once.
func (s *AuditService) Shutdown() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	timer := time.NewTimer(auditDrainTimeout)
	defer timer.Stop()
	select {
	case <-s.stopped:
	case <-timer.C:
		s.log.Warn("audit drain timed out", zap.Int("pending", len(s.queue)))
	}
}

func (s *AuditService) run() {
	defer close(s.stopped)

	ticker := time.NewTicker(auditFlushInterval)
	defer ticker.Stop()

	batch := make([]*domain.AuditLog, 0, auditBatchSize)
	for {
		select {
		case row, ok := <-s.queue:
			if !ok {
				s.flush(batch)
				return
			}
			batch = append(batch, row)
			if len(batch) >= auditBatchSize {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			s.flush(batch)
			batch = batch[:0]
		}
	}
}

func (s *AuditService) flush(batch []*domain.AuditLog) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()

	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		s.log.Error("writing audit batch", zap.Int("size", len(batch)), zap.Error(err))
		return
	}
	s.metrics.AuditEntriesTotal.Add(float64(len(batch)))
}
