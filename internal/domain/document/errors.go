package document

import "errors"

var (
	ErrDocumentNotFound     = errors.New("document not found")
	ErrInvalidDocumentType  = errors.New("invalid document type")
	ErrTitleRequired        = errors.New("document title is required")
	ErrFileTooLarge         = errors.New("file exceeds the maximum upload size")
	ErrEmptyFile            = errors.New("file is empty")
	ErrUnsupportedMediaType = errors.New("unsupported file type")
	ErrBlobNotFound         = errors.New("stored file not found")
)
