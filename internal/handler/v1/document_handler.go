package v1

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/document"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// multipartOverhead is the allowance for form fields and boundaries on top of
// the file itself.
const multipartOverhead = 1 << 20

type DocumentService interface {
	Upload(ctx context.Context, actor domain.Actor, cmd *document.UploadCommand, r io.Reader) (*document.Document, error)
	Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*document.Document, error)
	Download(ctx context.Context, actor domain.Actor, id uuid.UUID) (*document.Document, io.ReadCloser, error)
	List(ctx context.Context, actor domain.Actor, q *document.ListDocumentsQuery) (*document.PagedDocuments, error)
	Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error
}

type DocumentHandler struct {
	svc      DocumentService
	maxBytes int64
	log      *zap.Logger
}

func NewDocumentHandler(svc DocumentService, maxBytes int64, log *zap.Logger) *DocumentHandler {
	return &DocumentHandler{svc: svc, maxBytes: maxBytes, log: log}
}

// POST /documents (multipart/form-data)
//
// Fields: file, type, title, description, patient_id, appointment_id.
func (h *DocumentHandler) Upload(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondServiceError(c, document.ErrFileTooLarge)
			return
		}
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "a file field is required")
		return
	}

	cmd := &document.UploadCommand{
		Type:        document.Type(c.PostForm("type")),
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		FileName:    fh.Filename,
		Size:        fh.Size,
	}
	if raw := c.PostForm("patient_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid patient_id: must be a valid UUID")
			return
		}
		cmd.PatientID = id
	}
	if raw := c.PostForm("appointment_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid appointment_id: must be a valid UUID")
			return
		}
		cmd.AppointmentID = &id
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "unreadable file")
		return
	}
	defer f.Close()

	doc, err := h.svc.Upload(c.Request.Context(), a, cmd, f)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, doc)
}

// GET /documents
func (h *DocumentHandler) List(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	page, size := pageParams(c)
	q := &document.ListDocumentsQuery{Page: page, PageSize: size}
	if q.PatientID, ok = parseOptionalUUID(c, "patient_id"); !ok {
		return
	}
	if raw := c.Query("type"); raw != "" {
		t := document.Type(raw)
		q.Type = &t
	}

	res, err := h.svc.List(c.Request.Context(), a, q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondList(c, res.Documents, res.TotalCount, res.Page, res.PageSize, res.TotalPages)
}

// GET /documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	doc, err := h.svc.Get(c.Request.Context(), a, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, doc)
}

// GET /documents/:id/download
func (h *DocumentHandler) Download(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	doc, body, err := h.svc.Download(c.Request.Context(), a, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	defer body.Close()

	c.DataFromReader(http.StatusOK, doc.SizeBytes, doc.ContentType, body, map[string]string{
		"Content-Disposition": contentDisposition(doc.FileName),
	})
}

// DELETE /documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), a, id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func contentDisposition(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "document"
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}
