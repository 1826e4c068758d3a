package model

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"time"
)

type AttachmentType string

const (
	AttachmentTypeImage    AttachmentType = "image"
	AttachmentTypeDocument AttachmentType = "document"
	AttachmentTypeVideo    AttachmentType = "video"
	AttachmentTypeAudio    AttachmentType = "audio"
	AttachmentTypeArchive  AttachmentType = "archive"
	AttachmentTypeText     AttachmentType = "text"
	AttachmentTypeOther    AttachmentType = "other"
)

// MaxAttachmentSize is the hard cap on attachment payloads (50 MiB).
const MaxAttachmentSize = 50 << 20

var contentTypePattern = regexp.MustCompile(`^[-\w.+]+/[-\w.+]+$`)

var (
	ErrAttachmentSourceRequired  = errors.New("ATTACHMENT_SOURCE_REQUIRED")
	ErrAttachmentSourceConflict  = errors.New("ATTACHMENT_SOURCE_CONFLICT")
	ErrAttachmentTooLarge        = errors.New("ATTACHMENT_TOO_LARGE")
	ErrAttachmentSizeMismatch    = errors.New("ATTACHMENT_SIZE_MISMATCH")
	ErrInvalidContentType        = errors.New("INVALID_CONTENT_TYPE")
	ErrUnknownAttachmentCategory = errors.New("UNKNOWN_ATTACHMENT_TYPE")
)

var attachmentTypes = map[AttachmentType]bool{
	AttachmentTypeImage:    true,
	AttachmentTypeDocument: true,
	AttachmentTypeVideo:    true,
	AttachmentTypeAudio:    true,
	AttachmentTypeArchive:  true,
	AttachmentTypeText:     true,
	AttachmentTypeOther:    true,
}

// Attachment is owned by an mms or email message. It carries exactly one of
// URL (external reference) or Blob (inline content). Size and Checksum are
// derived from Blob whenever it is set; they never drift from the content.
//
// Deletion is independent of the owning message; no cascade is enforced.
type Attachment struct {
	ID             string         `gorm:"primaryKey;type:varchar(36);<-:create"`
	MessageID      *string        `gorm:"type:varchar(36);index"`
	URL            *string        `gorm:"type:varchar(2048);null"`
	Blob           []byte         `gorm:"type:longblob;null"`
	AttachmentType AttachmentType `gorm:"type:enum('image','document','video','audio','archive','text','other');not null"`
	ContentType    string         `gorm:"type:varchar(255);not null"`
	Filename       string         `gorm:"type:varchar(512)"`
	Size           int64          `gorm:"not null"`
	Checksum       string         `gorm:"type:varchar(64)"`
	CreatedAt      time.Time      `gorm:"type:timestamp;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time      `gorm:"type:timestamp;default:CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP"`
}

// SetBlob replaces the inline content and recomputes the derived fields.
func (a *Attachment) SetBlob(data []byte) {
	a.Blob = data
	a.Size = int64(len(data))

	sum := sha256.Sum256(data)
	a.Checksum = hex.EncodeToString(sum[:])
}

func (a *Attachment) Validate() error {
	var errs []error

	hasURL := a.URL != nil && *a.URL != ""
	hasBlob := len(a.Blob) > 0

	switch {
	case hasURL && hasBlob:
		errs = append(errs, ErrAttachmentSourceConflict)
	case !hasURL && !hasBlob:
		errs = append(errs, ErrAttachmentSourceRequired)
	}

	if hasBlob && a.Size > MaxAttachmentSize {
		errs = append(errs, ErrAttachmentTooLarge)
	}

	// Size is derived by SetBlob; a mismatch means the row was built or
	// mutated without it
	if hasBlob && a.Size != int64(len(a.Blob)) {
		errs = append(errs, ErrAttachmentSizeMismatch)
	}

	if !contentTypePattern.MatchString(a.ContentType) {
		errs = append(errs, ErrInvalidContentType)
	}

	if !attachmentTypes[a.AttachmentType] {
		errs = append(errs, ErrUnknownAttachmentCategory)
	}

	return errors.Join(errs...)
}
