package v1

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/document"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/meeting"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/payment"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/review"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/middleware"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/provider/maps"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

type APIResponse[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

type ListResponse[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

type ValidationErrorResponse struct {
	Error  string   `json:"error"`
	Code   string   `json:"code"`
	Fields []string `json:"fields"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse[any]{Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, APIResponse[any]{Data: data})
}

func respondList[T any](c *gin.Context, items []T, total int64, page, pageSize, totalPages int) {
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, ListResponse[T]{
		Data:       items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message, Code: code})
}

type errorMapping struct {
	status int
	code   string
	errs   []error
}

// errorTable maps service and domain errors to responses. Errors are matched
// with errors.Is in order; the first matching row wins.
var errorTable = []errorMapping{
	{http.StatusNotFound, "NOT_FOUND", []error{
		domain.ErrUserNotFound,
		patient.ErrPatientNotFound,
		doctor.ErrDoctorNotFound,
		appointment.ErrAppointmentNotFound,
		payment.ErrPaymentNotFound,
		document.ErrDocumentNotFound,
		document.ErrBlobNotFound,
		review.ErrReviewNotFound,
		notification.ErrNotificationNotFound,
	}},
	{http.StatusConflict, "CONFLICT", []error{
		domain.ErrEmailTaken,
		doctor.ErrLicenseTaken,
		appointment.ErrAppointmentConflict,
		appointment.ErrInvalidStatusTransition,
		payment.ErrAlreadyPaid,
		payment.ErrNotPayable,
		review.ErrAlreadyReviewed,
		review.ErrNotReviewable,
		service.ErrMFAAlreadyEnabled,
	}},
	{http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", []error{
		document.ErrFileTooLarge,
	}},
	{http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", []error{
		document.ErrUnsupportedMediaType,
	}},
	{http.StatusUnauthorized, "MFA_REQUIRED", []error{
		service.ErrMFARequired,
	}},
	{http.StatusUnauthorized, "INVALID_CREDENTIALS", []error{
		service.ErrInvalidCredentials,
		service.ErrInvalidMFACode,
	}},
	{http.StatusUnauthorized, "INVALID_SIGNATURE", []error{
		payment.ErrInvalidSignature,
		payment.ErrStaleWebhook,
		meeting.ErrInvalidSignature,
	}},
	{http.StatusForbidden, "ACCOUNT_INACTIVE", []error{
		service.ErrAccountInactive,
		patient.ErrPatientInactive,
	}},
	{http.StatusForbidden, "FORBIDDEN", []error{
		service.ErrForbidden,
	}},
	{http.StatusTooManyRequests, "ACCOUNT_LOCKED", []error{
		service.ErrAccountLocked,
	}},
	{http.StatusServiceUnavailable, "PROVIDER_DISABLED", []error{
		payment.ErrProcessorDisabled,
		meeting.ErrProviderDisabled,
		maps.ErrGeocodingDisabled,
	}},
	{http.StatusBadGateway, "PROVIDER_FAILURE", []error{
		appointment.ErrMeetingUnavailable,
		payment.ErrProcessorFailure,
		meeting.ErrProviderFailure,
		meeting.ErrUnauthorized,
	}},
	{http.StatusBadRequest, "INVALID_REQUEST", []error{
		appointment.ErrScheduledInPast,
		appointment.ErrInvalidDuration,
		appointment.ErrInvalidMode,
		appointment.ErrNotOnline,
		appointment.ErrReasonRequired,
		doctor.ErrDoctorNotVerified,
		doctor.ErrModeNotOffered,
		doctor.ErrOutsideAvailability,
		doctor.ErrInvalidAvailability,
		doctor.ErrOverlappingWindows,
		doctor.ErrInvalidFee,
		doctor.ErrInvalidSlotLength,
		doctor.ErrSpecializationNeeded,
		patient.ErrInvalidGender,
		patient.ErrInvalidBloodType,
		patient.ErrInvalidDateOfBirth,
		document.ErrInvalidDocumentType,
		document.ErrTitleRequired,
		document.ErrEmptyFile,
		review.ErrInvalidRating,
		review.ErrCommentTooLong,
		service.ErrMFANotEnrolled,
		service.ErrWeakPassword,
		maps.ErrAddressNotFound,
	}},
}

func respondServiceError(c *gin.Context, err error) {
	var validErr *service.ValidationError
	if errors.As(err, &validErr) {
		c.AbortWithStatusJSON(http.StatusBadRequest, ValidationErrorResponse{
			Error:  "validation failed",
			Code:   "VALIDATION_FAILED",
			Fields: validErr.Fields,
		})
		return
	}

	for _, row := range errorTable {
		for _, target := range row.errs {
			if errors.Is(err, target) {
				msg := target.Error()
				if row.status == http.StatusForbidden && row.code == "FORBIDDEN" {
					msg = "access denied"
				}
				respondError(c, row.status, row.code, msg)
				return
			}
		}
	}

	_ = c.Error(err)
	respondError(c, http.StatusInternalServerError, "INTERNAL", "internal server error")
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request: "+err.Error())
		return false
	}
	return true
}

func parseUUID(c *gin.Context, param string) (uuid.UUID, bool) {
	raw := c.Param(param)
	id, err := uuid.Parse(raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid "+param+": must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// parseOptionalUUID reads a query parameter; an absent value yields nil.
func parseOptionalUUID(c *gin.Context, key string) (*uuid.UUID, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid "+key+": must be a valid UUID")
		return nil, false
	}
	return &id, true
}

func parseQueryInt(c *gin.Context, key string, defaultVal int) int {
	if raw := c.Query(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return defaultVal
}

func parseOptionalFloat(c *gin.Context, key string) (*float64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid "+key+": must be a number")
		return nil, false
	}
	return &v, true
}

func parseOptionalInt64(c *gin.Context, key string) (*int64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid "+key+": must be an integer")
		return nil, false
	}
	return &v, true
}

// parseOptionalDate accepts either a date or an RFC 3339 timestamp.
func parseOptionalDate(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, true
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid "+key+": use YYYY-MM-DD or RFC 3339")
		return nil, false
	}
	return &t, true
}

func pageParams(c *gin.Context) (int, int) {
	return parseQueryInt(c, "page", 1), parseQueryInt(c, "page_size", 20)
}

// actor returns the authenticated caller. Routes using it sit behind
// middleware.Authenticate, so a missing actor is a wiring bug.
func actor(c *gin.Context) (domain.Actor, bool) {
	a, ok := middleware.GetActor(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	}
	return a, ok
}
