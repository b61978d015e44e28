package messages

import (
	"time"

	"github.com/google/uuid"

	"github.com/northcraft/cabinetry-backend/internal/files"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
)

type PostInput struct {
	Body    string      `json:"body" validate:"required,max=5000"`
	FileIDs []uuid.UUID `json:"file_ids,omitempty" validate:"omitempty,max=10"`
}

type ListParams struct {
	Limit  int
	Cursor string
}

type MessageDTO struct {
	ID          uuid.UUID             `json:"id"`
	Scope       enums.MessageScope    `json:"scope"`
	ScopeID     uuid.UUID             `json:"scope_id"`
	SenderID    uuid.UUID             `json:"sender_id"`
	SenderRole  enums.UserRole        `json:"sender_role"`
	Body        string                `json:"body"`
	ReadAt      *time.Time            `json:"read_at,omitempty"`
	Attachments []files.AttachmentDTO `json:"attachments"`
	CreatedAt   time.Time             `json:"created_at"`
}

type MessageList struct {
	Items      []MessageDTO `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func toDTO(msg models.Message) MessageDTO {
	return MessageDTO{
		ID:          msg.ID,
		Scope:       msg.Scope,
		ScopeID:     msg.ScopeID,
		SenderID:    msg.SenderID,
		SenderRole:  msg.SenderRole,
		Body:        msg.Body,
		ReadAt:      msg.ReadAt,
		Attachments: []files.AttachmentDTO{},
		CreatedAt:   msg.CreatedAt,
	}
}
