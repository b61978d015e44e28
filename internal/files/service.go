package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/pkg/config"
	"github.com/northcraft/cabinetry-backend/pkg/db"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
	"github.com/northcraft/cabinetry-backend/pkg/types"
)

const cleanupBatchSize = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type objectStore interface {
	Upload(ctx context.Context, object, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, object string) error
}

// Service manages uploads and the attachments that link them to quotes,
// orders, invoices, messages and cart lines.
type Service interface {
	Upload(ctx context.Context, actor types.Actor, input UploadInput) (*FileDTO, error)
	Attach(ctx context.Context, actor types.Actor, input AttachInput) (*AttachmentDTO, error)
	AttachTx(ctx context.Context, tx *gorm.DB, actor types.Actor, fileIDs []uuid.UUID, scope enums.AttachmentScope, scopeID uuid.UUID) ([]AttachmentDTO, error)
	ListAttachments(ctx context.Context, actor types.Actor, scope enums.AttachmentScope, scopeID uuid.UUID) ([]AttachmentDTO, error)
	Detach(ctx context.Context, actor types.Actor, attachmentID uuid.UUID) error
	Delete(ctx context.Context, actor types.Actor, fileID uuid.UUID) error
	CleanupPending(ctx context.Context) (int, error)
}

type ServiceParams struct {
	Repo     *Repository
	TxRunner txRunner
	Store    objectStore
	Files    config.FilesConfig
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo      *Repository
	tx        txRunner
	store     objectStore
	maxBytes  int64
	types     []string
	retention time.Duration
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("files repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("object store required")
	}
	allowedTypes := params.Files.AllowedContentTypes()
	if len(allowedTypes) == 0 {
		return nil, fmt.Errorf("at least one upload content type must be allowed")
	}
	retention := params.Files.PendingRetention
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:      params.Repo,
		tx:        params.TxRunner,
		store:     params.Store,
		maxBytes:  params.Files.MaxUploadBytes(),
		types:     allowedTypes,
		retention: retention,
		logg:      params.Logger,
		now:       now,
	}, nil
}

func (s *service) Upload(ctx context.Context, actor types.Actor, input UploadInput) (*FileDTO, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Body == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file body required")
	}
	fileName := sanitizeFileName(input.FileName)
	if fileName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file_name is required")
	}
	if input.Size > s.maxBytes {
		return nil, s.tooLarge()
	}
	contentType, err := parseContentType(input.ContentType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid content type")
	}
	if !allowed(s.types, contentType) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content type not allowed; upload "+describe(s.types)).
			WithDetails(map[string]any{"content_type": contentType})
	}
	detected, body, err := sniff(input.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
	}
	if !matchesDeclared(detected, contentType) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file content does not match its content type").
			WithDetails(map[string]any{"content_type": contentType, "detected": detected.String()})
	}

	id := uuid.New()
	object := fmt.Sprintf("uploads/%s/%s/%s", actor.UserID, id, fileName)
	counter := &countingReader{r: io.LimitReader(body, s.maxBytes+1)}
	url, err := s.store.Upload(ctx, object, contentType, counter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store upload")
	}
	if counter.n > s.maxBytes || counter.n == 0 {
		s.removeObject(ctx, object)
		if counter.n == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is empty")
		}
		return nil, s.tooLarge()
	}

	file := &models.File{
		ID:          id,
		OwnerID:     actor.UserID,
		FileName:    fileName,
		ContentType: contentType,
		SizeBytes:   counter.n,
		ObjectKey:   object,
		PublicURL:   url,
		Status:      enums.FileStatusPending,
		CreatedAt:   s.now(),
	}
	if err := s.repo.CreateFile(ctx, file); err != nil {
		s.removeObject(ctx, object)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist file")
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"file_id":      id.String(),
			"content_type": contentType,
			"size_bytes":   counter.n,
		})
		s.logg.Info(logCtx, "file uploaded")
	}
	dto := toFileDTO(*file)
	return &dto, nil
}

func (s *service) Attach(ctx context.Context, actor types.Actor, input AttachInput) (*AttachmentDTO, error) {
	var attached []AttachmentDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		attached, err = s.AttachTx(ctx, tx, actor, []uuid.UUID{input.FileID}, input.Scope, input.ScopeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &attached[0], nil
}

// AttachTx links files to an entity inside the caller's transaction.
// Customers may only attach their own uploads to entities they own.
func (s *service) AttachTx(ctx context.Context, tx *gorm.DB, actor types.Actor, fileIDs []uuid.UUID, scope enums.AttachmentScope, scopeID uuid.UUID) ([]AttachmentDTO, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !scope.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid attachment scope").
			WithDetails(map[string]any{"scope": scope})
	}
	if len(fileIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file_id is required")
	}
	repo := s.repo.WithTx(tx)
	if err := s.authorizeScope(ctx, repo, actor, scope, scopeID); err != nil {
		return nil, err
	}
	files, err := repo.FindFiles(ctx, fileIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load files")
	}
	byID := make(map[uuid.UUID]models.File, len(files))
	for _, file := range files {
		byID[file.ID] = file
	}

	result := make([]AttachmentDTO, 0, len(fileIDs))
	for _, id := range fileIDs {
		file, ok := byID[id]
		if !ok || (!actor.IsAdmin() && file.OwnerID != actor.UserID) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "file not found").
				WithDetails(map[string]any{"file_id": id})
		}
		attachment := &models.FileAttachment{
			ID:         uuid.New(),
			FileID:     file.ID,
			Scope:      scope,
			ScopeID:    scopeID,
			AttachedBy: actor.UserID,
			CreatedAt:  s.now(),
		}
		if err := repo.CreateAttachment(ctx, attachment); err != nil {
			if db.IsUniqueViolation(err, "") {
				return nil, pkgerrors.New(pkgerrors.CodeConflict, "file already attached")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create attachment")
		}
		if err := repo.MarkAttached(ctx, file.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark file attached")
		}
		file.Status = enums.FileStatusAttached
		attachment.File = &file
		result = append(result, ToAttachmentDTO(*attachment))
	}
	return result, nil
}

func (s *service) ListAttachments(ctx context.Context, actor types.Actor, scope enums.AttachmentScope, scopeID uuid.UUID) ([]AttachmentDTO, error) {
	if !scope.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid attachment scope")
	}
	if err := s.authorizeScope(ctx, s.repo, actor, scope, scopeID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListAttachments(ctx, scope, scopeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list attachments")
	}
	out := make([]AttachmentDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToAttachmentDTO(row))
	}
	return out, nil
}

func (s *service) Detach(ctx context.Context, actor types.Actor, attachmentID uuid.UUID) error {
	attachment, err := s.repo.FindAttachment(ctx, attachmentID)
	if err != nil {
		return notFoundOr(err, "attachment")
	}
	if err := s.authorizeScope(ctx, s.repo, actor, attachment.Scope, attachment.ScopeID); err != nil {
		return err
	}
	if err := s.repo.DeleteAttachment(ctx, attachment.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete attachment")
	}
	return nil
}

// Delete removes the file row, its attachments and the stored object.
func (s *service) Delete(ctx context.Context, actor types.Actor, fileID uuid.UUID) error {
	if !actor.Valid() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	file, err := s.repo.FindFile(ctx, fileID)
	if err != nil {
		return notFoundOr(err, "file")
	}
	if !actor.IsAdmin() && file.OwnerID != actor.UserID {
		return pkgerrors.New(pkgerrors.CodeNotFound, "file not found")
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).DeleteFile(ctx, file.ID)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete file")
	}
	if err := s.store.Delete(ctx, file.ObjectKey); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete stored object")
	}
	return nil
}

// CleanupPending deletes uploads that were never attached within the
// retention window and returns how many were removed.
func (s *service) CleanupPending(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.retention)
	rows, err := s.repo.ListPendingBefore(ctx, cutoff, cleanupBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending files: %w", err)
	}
	var (
		removed int
		errs    error
	)
	for _, file := range rows {
		if err := s.store.Delete(ctx, file.ObjectKey); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete object %s: %w", file.ObjectKey, err))
			continue
		}
		if err := s.repo.DeleteFile(ctx, file.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete file %s: %w", file.ID, err))
			continue
		}
		removed++
	}
	return removed, errs
}

// authorizeScope confirms the entity exists and, for customers, that they
// own it. Foreign entities are reported as missing.
func (s *service) authorizeScope(ctx context.Context, repo *Repository, actor types.Actor, scope enums.AttachmentScope, scopeID uuid.UUID) error {
	if !actor.Valid() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	owner, err := repo.ScopeOwner(ctx, scope, scopeID)
	if err != nil {
		return notFoundOr(err, string(scope))
	}
	if !actor.IsAdmin() && owner != actor.UserID {
		return pkgerrors.New(pkgerrors.CodeNotFound, string(scope)+" not found")
	}
	return nil
}

func (s *service) removeObject(ctx context.Context, object string) {
	if err := s.store.Delete(ctx, object); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithField(ctx, "object", object), "failed to remove rejected upload", err)
	}
}

func (s *service) tooLarge() error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("file exceeds the %d MB upload limit", s.maxBytes>>20))
}

func notFoundOr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, what+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load "+what)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func sanitizeFileName(name string) string {
	clean := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if clean == "." || clean == "/" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(clean))
	for _, r := range clean {
		switch {
		case unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
