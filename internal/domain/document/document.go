package document

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeLabReport    Type = "lab_report"
	TypePrescription Type = "prescription"
	TypeScan         Type = "scan"
	TypeOther        Type = "other"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeLabReport, TypePrescription, TypeScan, TypeOther:
		return true
	}
	return false
}

// AllowedContentTypes are the sniffed MIME types accepted on upload.
var AllowedContentTypes = []string{
	"application/pdf",
	"image/png",
	"image/jpeg",
	"application/dicom",
	"text/plain",
}

func IsAllowedContentType(ct string) bool {
	for _, v := range AllowedContentTypes {
		if v == ct {
			return true
		}
	}
	return false
}

type Document struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"-"`

	PatientID     uuid.UUID  `gorm:"column:patient_id;type:uuid;not null;index" json:"patient_id"`
	UploadedBy    uuid.UUID  `gorm:"column:uploaded_by;type:uuid;not null" json:"uploaded_by"`
	AppointmentID *uuid.UUID `gorm:"column:appointment_id;type:uuid;index" json:"appointment_id,omitempty"`

	Type        Type   `gorm:"column:type;type:varchar(30);not null;index" json:"type"`
	Title       string `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Description string `gorm:"column:description;type:text" json:"description,omitempty"`

	FileName    string `gorm:"column:file_name;type:varchar(255);not null" json:"file_name"`
	ContentType string `gorm:"column:content_type;type:varchar(100);not null" json:"content_type"`
	SizeBytes   int64  `gorm:"column:size_bytes;not null" json:"size_bytes"`
	StorageKey  string `gorm:"column:storage_key;type:varchar(512);not null;uniqueIndex" json:"-"`
	SHA256      string `gorm:"column:sha256;type:char(64);not null" json:"sha256"`
}

func (Document) TableName() string {
	return "records.documents"
}

type UploadCommand struct {
	PatientID     uuid.UUID
	AppointmentID *uuid.UUID
	Type          Type
	Title         string
	Description   string
	FileName      string
	Size          int64
}

type ListDocumentsQuery struct {
	PatientID *uuid.UUID
	Type      *Type
	Page      int
	PageSize  int
}

type PagedDocuments struct {
	Documents  []*Document
	TotalCount int64
	Page       int
	PageSize   int
	TotalPages int
}
