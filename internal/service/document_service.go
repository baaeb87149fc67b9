package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/document"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/events"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/storage"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/metrics"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const blobWriteTimeout = 2 * time.Minute

type DocumentService struct {
	repo         document.Repository
	appointments appointment.Repository
	blobs        storage.BlobStore
	publisher    events.Publisher
	auditSvc     *AuditService
	metrics      *metrics.Collector
	log          *zap.Logger
	maxBytes     int64
}

func NewDocumentService(
	repo document.Repository,
	appointments appointment.Repository,
	blobs storage.BlobStore,
	publisher events.Publisher,
	auditSvc *AuditService,
	m *metrics.Collector,
	log *zap.Logger,
	maxBytes int64,
) *DocumentService {
	return &DocumentService{
		repo:         repo,
		appointments: appointments,
		blobs:        blobs,
		publisher:    publisher,
		auditSvc:     auditSvc,
		metrics:      m,
		log:          log,
		maxBytes:     maxBytes,
	}
}

// Upload stores a document for cmd.PatientID. The content type is sniffed
// from the bytes, never taken from the client.
func (s *DocumentService) Upload(ctx context.Context, actor domain.Actor, cmd *document.UploadCommand, r io.Reader) (*document.Document, error) {
	if actor.IsPatient() && cmd.PatientID == uuid.Nil {
		cmd.PatientID = *actor.PatientID
	}
	cmd.Title = strings.TrimSpace(cmd.Title)

	// -------- Input Validation -----------
	if !cmd.Type.IsValid() {
		return nil, document.ErrInvalidDocumentType
	}
	if cmd.Title == "" {
		return nil, document.ErrTitleRequired
	}
	if cmd.PatientID == uuid.Nil {
		return nil, &ValidationError{Fields: []string{"patient_id is required"}}
	}
	if cmd.Size > s.maxBytes {
		return nil, document.ErrFileTooLarge
	}

	ok, err := document.CanUpload(ctx, actor, cmd.PatientID, cmd.Type, s.appointments)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}

	if cmd.AppointmentID != nil {
		a, err := s.appointments.GetByID(ctx, *cmd.AppointmentID)
		if err != nil {
			return nil, err
		}
		if a.PatientID != cmd.PatientID {
			return nil, &ValidationError{Fields: []string{"appointment_id belongs to another patient"}}
		}
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, document.ErrFileTooLarge
	}
	if len(data) == 0 {
		return nil, document.ErrEmptyFile
	}

	contentType := sniff(data)
	if !document.IsAllowedContentType(contentType) {
		return nil, fmt.Errorf("%w: %s", document.ErrUnsupportedMediaType, contentType)
	}

	sum := sha256.Sum256(data)
	d := &document.Document{
		ID:            uuid.New(),
		PatientID:     cmd.PatientID,
		UploadedBy:    actor.UserID,
		AppointmentID: cmd.AppointmentID,
		Type:          cmd.Type,
		Title:         cmd.Title,
		Description:   strings.TrimSpace(cmd.Description),
		FileName:      safeFileName(cmd.FileName),
		ContentType:   contentType,
		SizeBytes:     int64(len(data)),
		SHA256:        hex.EncodeToString(sum[:]),
	}
	d.StorageKey = fmt.Sprintf("patients/%s/%s", d.PatientID, d.ID)

	putCtx, cancel := context.WithTimeout(ctx, blobWriteTimeout)
	err = s.blobs.Put(putCtx, d.StorageKey, bytes.NewReader(data), d.SizeBytes, contentType)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("storing document: %w", err)
	}
	if err := s.repo.Create(ctx, d); err != nil {
		if delErr := s.blobs.Delete(ctx, d.StorageKey); delErr != nil {
			s.log.Error("removing orphaned blob", zap.String("key", d.StorageKey), zap.Error(delErr))
		}
		return nil, fmt.Errorf("creating document: %w", err)
	}

	s.metrics.DocumentsUploaded.WithLabelValues(string(d.Type)).Inc()
	entry := auditFor(actor, domain.ActionCreate, "document", d.ID.String())
	entry.Changes = fmt.Sprintf(`{"patient_id":%q,"type":%q,"size":%d}`, d.PatientID, d.Type, d.SizeBytes)
	s.auditSvc.LogAsync(ctx, entry)

	s.log.Info("document uploaded",
		zap.String("document_id", d.ID.String()),
		zap.String("type", string(d.Type)),
		zap.String("content_type", contentType),
	)

	if actor.IsDoctor() {
		s.shared(ctx, d)
	}
	return d, nil
}

// sniff returns the bare MIME type of data, without parameters.
func sniff(data []byte) string {
	mt := mimetype.Detect(data)
	ct, _, _ := strings.Cut(mt.String(), ";")
	return ct
}

func safeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "document"
	}
	return name
}

func (s *DocumentService) authorized(ctx context.Context, actor domain.Actor, id uuid.UUID) (*document.Document, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := document.CanAccess(ctx, actor, d.PatientID, s.appointments)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	return d, nil
}

func (s *DocumentService) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*document.Document, error) {
	d, err := s.authorized(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	s.auditSvc.LogAsync(ctx, auditFor(actor, domain.ActionRead, "document", d.ID.String()))
	return d, nil
}

// Download opens the document contents. The caller closes the reader.
func (s *DocumentService) Download(ctx context.Context, actor domain.Actor, id uuid.UUID) (*document.Document, io.ReadCloser, error) {
	d, err := s.authorized(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Get(ctx, d.StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		s.log.Error("document blob missing", zap.String("document_id", d.ID.String()), zap.String("key", d.StorageKey))
		return nil, nil, document.ErrBlobNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	entry := auditFor(actor, domain.ActionRead, "document_content", d.ID.String())
	s.auditSvc.LogAsync(ctx, entry)
	return d, rc, nil
}

func (s *DocumentService) List(ctx context.Context, actor domain.Actor, q *document.ListDocumentsQuery) (*document.PagedDocuments, error) {
	if q.Type != nil && !q.Type.IsValid() {
		return nil, document.ErrInvalidDocumentType
	}
	if q.PatientID == nil {
		if !actor.IsPatient() {
			return nil, &ValidationError{Fields: []string{"patient_id is required"}}
		}
		q.PatientID = actor.PatientID
	}

	ok, err := document.CanAccess(ctx, actor, *q.PatientID, s.appointments)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}

	q.Page, q.PageSize = normalizePage(q.Page, q.PageSize)
	out, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	s.auditSvc.LogAsync(ctx, auditFor(actor, domain.ActionRead, "documents", q.PatientID.String()))
	return out, nil
}

// Delete soft-deletes the metadata and removes the stored file. A blob that
// cannot be removed is logged; the document is gone for every reader.
func (s *DocumentService) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !document.CanDelete(actor, d) {
		return ErrForbidden
	}
	if err := s.repo.Delete(ctx, d.ID); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, d.StorageKey); err != nil {
		s.log.Error("removing document blob", zap.String("key", d.StorageKey), zap.Error(err))
	}
	s.auditSvc.LogAsync(ctx, auditFor(actor, domain.ActionDelete, "document", d.ID.String()))
	return nil
}

func (s *DocumentService) shared(ctx context.Context, d *document.Document) {
	err := s.publisher.Publish(ctx, events.Event{
		Type:    events.TypeDocumentShared,
		Subject: d.ID.String(),
		Data: events.DocumentData{
			DocumentID: d.ID,
			PatientID:  d.PatientID,
			UploadedBy: d.UploadedBy,
			Type:       string(d.Type),
			Title:      d.Title,
		},
	})
	if err != nil {
		s.log.Error("publishing document event", zap.Error(err))
	}
}
