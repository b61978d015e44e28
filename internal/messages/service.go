package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/internal/files"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
	"github.com/northcraft/cabinetry-backend/pkg/outbox"
	"github.com/northcraft/cabinetry-backend/pkg/outbox/payloads"
	"github.com/northcraft/cabinetry-backend/pkg/pagination"
	"github.com/northcraft/cabinetry-backend/pkg/types"
)

const previewLength = 140

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type attacher interface {
	AttachTx(ctx context.Context, tx *gorm.DB, actor types.Actor, fileIDs []uuid.UUID, scope enums.AttachmentScope, scopeID uuid.UUID) ([]files.AttachmentDTO, error)
}

type attachmentReader interface {
	ListAttachmentsFor(ctx context.Context, scope enums.AttachmentScope, scopeIDs []uuid.UUID) ([]models.FileAttachment, error)
}

// Service runs the quote and order conversation threads.
type Service interface {
	List(ctx context.Context, actor types.Actor, scope enums.MessageScope, scopeID uuid.UUID, params ListParams) (*MessageList, error)
	Post(ctx context.Context, actor types.Actor, scope enums.MessageScope, scopeID uuid.UUID, input PostInput) (*MessageDTO, error)
	MarkRead(ctx context.Context, actor types.Actor, id uuid.UUID) (*MessageDTO, error)
	Unread(ctx context.Context, params ListParams) (*MessageList, error)
}

type ServiceParams struct {
	Repo        *Repository
	TxRunner    txRunner
	Files       attacher
	Attachments attachmentReader
	Emitter     outbox.Emitter
	Logger      *logger.Logger
	Now         func() time.Time
}

type service struct {
	repo        *Repository
	tx          txRunner
	files       attacher
	attachments attachmentReader
	emitter     outbox.Emitter
	logg        *logger.Logger
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("messages repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Files == nil || params.Attachments == nil {
		return nil, fmt.Errorf("files dependencies required")
	}
	if params.Emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:        params.Repo,
		tx:          params.TxRunner,
		files:       params.Files,
		attachments: params.Attachments,
		emitter:     params.Emitter,
		logg:        params.Logger,
		now:         now,
	}, nil
}

func (s *service) List(ctx context.Context, actor types.Actor, scope enums.MessageScope, scopeID uuid.UUID, params ListParams) (*MessageList, error) {
	if _, err := s.thread(ctx, actor, scope, scopeID); err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, scope, scopeID, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list messages")
	}
	return s.page(ctx, rows, params.Limit)
}

// Post adds a message to a thread, links any uploaded files and notifies
// the other side.
func (s *service) Post(ctx context.Context, actor types.Actor, scope enums.MessageScope, scopeID uuid.UUID, input PostInput) (*MessageDTO, error) {
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message body is required").
			WithDetails(map[string]string{"body": "required"})
	}
	thread, err := s.thread(ctx, actor, scope, scopeID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:         uuid.New(),
		Scope:      scope,
		ScopeID:    scopeID,
		SenderID:   actor.UserID,
		SenderRole: actor.Role,
		Body:       body,
		CreatedAt:  s.now(),
	}
	var attached []files.AttachmentDTO
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, msg); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create message")
		}
		if len(input.FileIDs) > 0 {
			linked, err := s.files.AttachTx(ctx, tx, actor, input.FileIDs, enums.AttachmentScopeMessage, msg.ID)
			if err != nil {
				return err
			}
			attached = linked
		}
		err := s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMessagePosted,
			AggregateType: enums.AggregateMessage,
			AggregateID:   msg.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)},
			Data: payloads.MessagePostedEvent{
				MessageID:  msg.ID,
				Scope:      scope,
				ScopeID:    scopeID,
				Reference:  thread.Reference,
				CustomerID: thread.CustomerID,
				SenderID:   actor.UserID,
				SenderRole: actor.Role,
				Preview:    preview(body),
			},
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit message posted")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"message_id":  msg.ID.String(),
			"scope":       string(scope),
			"reference":   thread.Reference,
			"attachments": len(attached),
		})
		s.logg.Info(logCtx, "message posted")
	}
	dto := toDTO(*msg)
	if attached != nil {
		dto.Attachments = attached
	}
	return &dto, nil
}

// MarkRead records that the counterpart read a message. Marking one's own
// message is a no-op.
func (s *service) MarkRead(ctx context.Context, actor types.Actor, id uuid.UUID) (*MessageDTO, error) {
	msg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "message")
	}
	if _, err := s.thread(ctx, actor, msg.Scope, msg.ScopeID); err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "message not found")
		}
		return nil, err
	}
	if msg.SenderRole != actor.Role && msg.ReadAt == nil {
		at := s.now()
		if err := s.repo.MarkRead(ctx, msg.ID, at); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark message read")
		}
		msg.ReadAt = &at
	}
	list, err := s.page(ctx, []models.Message{*msg}, 1)
	if err != nil {
		return nil, err
	}
	return &list.Items[0], nil
}

func (s *service) Unread(ctx context.Context, params ListParams) (*MessageList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.Unread(ctx, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list unread messages")
	}
	return s.page(ctx, rows, params.Limit)
}

// thread confirms the scoped entity exists and that customers only reach
// their own threads.
func (s *service) thread(ctx context.Context, actor types.Actor, scope enums.MessageScope, scopeID uuid.UUID) (*Thread, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !scope.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid message scope").
			WithDetails(map[string]any{"scope": scope})
	}
	thread, err := s.repo.FindThread(ctx, scope, scopeID)
	if err != nil {
		return nil, notFoundOr(err, string(scope))
	}
	if !actor.IsAdmin() && thread.CustomerID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, string(scope)+" not found")
	}
	return thread, nil
}

func (s *service) page(ctx context.Context, rows []models.Message, limit int) (*MessageList, error) {
	rows, next := pagination.Trim(rows, limit, func(m models.Message) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	linked, err := s.attachments.ListAttachmentsFor(ctx, enums.AttachmentScopeMessage, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load message attachments")
	}
	byMessage := make(map[uuid.UUID][]files.AttachmentDTO, len(linked))
	for _, attachment := range linked {
		byMessage[attachment.ScopeID] = append(byMessage[attachment.ScopeID], files.ToAttachmentDTO(attachment))
	}
	items := make([]MessageDTO, 0, len(rows))
	for _, row := range rows {
		dto := toDTO(row)
		if attached, ok := byMessage[row.ID]; ok {
			dto.Attachments = attached
		}
		items = append(items, dto)
	}
	return &MessageList{Items: items, NextCursor: next}, nil
}

func preview(body string) string {
	if utf8.RuneCountInString(body) <= previewLength {
		return body
	}
	runes := []rune(body)
	return string(runes[:previewLength]) + "..."
}

func notFoundOr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, what+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load "+what)
}
