package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/northcraft/cabinetry-backend/pkg/enums"
)

// Message is a post in a quote or order thread.
type Message struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Scope      enums.MessageScope `gorm:"column:scope;not null"`
	ScopeID    uuid.UUID          `gorm:"column:scope_id;type:uuid;not null"`
	SenderID   uuid.UUID          `gorm:"column:sender_id;type:uuid;not null"`
	SenderRole enums.UserRole     `gorm:"column:sender_role;not null"`
	Body       string             `gorm:"column:body;not null"`
	ReadAt     *time.Time         `gorm:"column:read_at"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
}
