package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/northcraft/cabinetry-backend/pkg/enums"
)

// File is an uploaded object stored in GCS.
type File struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID     uuid.UUID        `gorm:"column:owner_id;type:uuid;not null"`
	FileName    string           `gorm:"column:file_name;not null"`
	ContentType string           `gorm:"column:content_type;not null"`
	SizeBytes   int64            `gorm:"column:size_bytes;not null"`
	ObjectKey   string           `gorm:"column:object_key;not null;uniqueIndex"`
	PublicURL   string           `gorm:"column:public_url;not null"`
	Status      enums.FileStatus `gorm:"column:status;not null;default:'pending'"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// FileAttachment links a file to a scoped entity.
type FileAttachment struct {
	ID         uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FileID     uuid.UUID             `gorm:"column:file_id;type:uuid;not null"`
	Scope      enums.AttachmentScope `gorm:"column:scope;not null"`
	ScopeID    uuid.UUID             `gorm:"column:scope_id;type:uuid;not null"`
	AttachedBy uuid.UUID             `gorm:"column:attached_by;type:uuid;not null"`
	File       *File                 `gorm:"foreignKey:FileID"`
	CreatedAt  time.Time             `gorm:"column:created_at;autoCreateTime"`
}
