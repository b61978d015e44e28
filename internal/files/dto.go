package files

import (
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
)

// UploadInput describes a multipart upload.
type UploadInput struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// AttachInput links an uploaded file to an entity.
type AttachInput struct {
	FileID  uuid.UUID             `json:"file_id" validate:"required"`
	Scope   enums.AttachmentScope `json:"scope" validate:"required"`
	ScopeID uuid.UUID             `json:"scope_id" validate:"required"`
}

type FileDTO struct {
	ID          uuid.UUID        `json:"id"`
	OwnerID     uuid.UUID        `json:"owner_id"`
	FileName    string           `json:"file_name"`
	ContentType string           `json:"content_type"`
	SizeBytes   int64            `json:"size_bytes"`
	URL         string           `json:"url"`
	Status      enums.FileStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
}

type AttachmentDTO struct {
	ID         uuid.UUID             `json:"id"`
	Scope      enums.AttachmentScope `json:"scope"`
	ScopeID    uuid.UUID             `json:"scope_id"`
	AttachedBy uuid.UUID             `json:"attached_by"`
	File       *FileDTO              `json:"file,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
}

func toFileDTO(file models.File) FileDTO {
	return FileDTO{
		ID:          file.ID,
		OwnerID:     file.OwnerID,
		FileName:    file.FileName,
		ContentType: file.ContentType,
		SizeBytes:   file.SizeBytes,
		URL:         file.PublicURL,
		Status:      file.Status,
		CreatedAt:   file.CreatedAt,
	}
}

// ToAttachmentDTO maps an attachment and its preloaded file.
func ToAttachmentDTO(attachment models.FileAttachment) AttachmentDTO {
	dto := AttachmentDTO{
		ID:         attachment.ID,
		Scope:      attachment.Scope,
		ScopeID:    attachment.ScopeID,
		AttachedBy: attachment.AttachedBy,
		CreatedAt:  attachment.CreatedAt,
	}
	if attachment.File != nil {
		file := toFileDTO(*attachment.File)
		dto.File = &file
	}
	return dto
}
