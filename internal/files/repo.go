package files

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
)

// Repository persists file metadata and attachment links.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to a GORM handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository running on the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) CreateFile(ctx context.Context, file *models.File) error {
	return r.db.WithContext(ctx).Create(file).Error
}

func (r *Repository) FindFile(ctx context.Context, id uuid.UUID) (*models.File, error) {
	var file models.File
	if err := r.db.WithContext(ctx).First(&file, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *Repository) FindFiles(ctx context.Context, ids []uuid.UUID) ([]models.File, error) {
	var rows []models.File
	if len(ids) == 0 {
		return rows, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkAttached(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.File{}).
		Where("id = ? AND status = ?", id, enums.FileStatusPending).
		Update("status", enums.FileStatusAttached).Error
}

func (r *Repository) DeleteFile(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("file_id = ?", id).Delete(&models.FileAttachment{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.File{}).Error
}

// ListPendingBefore returns never-attached uploads created before cutoff.
func (r *Repository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.File, error) {
	var rows []models.File
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.FileStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) CreateAttachment(ctx context.Context, attachment *models.FileAttachment) error {
	return r.db.WithContext(ctx).Omit("File").Create(attachment).Error
}

func (r *Repository) FindAttachment(ctx context.Context, id uuid.UUID) (*models.FileAttachment, error) {
	var attachment models.FileAttachment
	if err := r.db.WithContext(ctx).Preload("File").First(&attachment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &attachment, nil
}

func (r *Repository) ListAttachments(ctx context.Context, scope enums.AttachmentScope, scopeID uuid.UUID) ([]models.FileAttachment, error) {
	var rows []models.FileAttachment
	err := r.db.WithContext(ctx).
		Preload("File").
		Where("scope = ? AND scope_id = ?", scope, scopeID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// ListAttachmentsFor loads the attachments of several entities of one scope.
func (r *Repository) ListAttachmentsFor(ctx context.Context, scope enums.AttachmentScope, scopeIDs []uuid.UUID) ([]models.FileAttachment, error) {
	var rows []models.FileAttachment
	if len(scopeIDs) == 0 {
		return rows, nil
	}
	err := r.db.WithContext(ctx).
		Preload("File").
		Where("scope = ? AND scope_id IN ?", scope, scopeIDs).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) DeleteAttachment(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.FileAttachment{}).Error
}

type ownerRow struct {
	CustomerID uuid.UUID
}

type messageRow struct {
	Scope   enums.MessageScope
	ScopeID uuid.UUID
}

// ScopeOwner resolves the customer who owns the entity an attachment
// points at. Messages resolve through their thread.
func (r *Repository) ScopeOwner(ctx context.Context, scope enums.AttachmentScope, scopeID uuid.UUID) (uuid.UUID, error) {
	db := r.db.WithContext(ctx)
	var query *gorm.DB
	switch scope {
	case enums.AttachmentScopeQuote:
		query = db.Table("quotes").Select("customer_id").Where("id = ?", scopeID)
	case enums.AttachmentScopeQuoteItem:
		query = db.Table("quote_items").
			Select("quotes.customer_id").
			Joins("JOIN quotes ON quotes.id = quote_items.quote_id").
			Where("quote_items.id = ?", scopeID)
	case enums.AttachmentScopeOrder:
		query = db.Table("orders").Select("customer_id").Where("id = ?", scopeID)
	case enums.AttachmentScopeInvoice:
		query = db.Table("invoices").
			Select("orders.customer_id").
			Joins("JOIN orders ON orders.id = invoices.order_id").
			Where("invoices.id = ?", scopeID)
	case enums.AttachmentScopeCartItem:
		query = db.Table("cart_items").
			Select("carts.customer_id").
			Joins("JOIN carts ON carts.id = cart_items.cart_id").
			Where("cart_items.id = ?", scopeID)
	case enums.AttachmentScopeMessage:
		var msg messageRow
		res := db.Table("messages").Select("scope, scope_id").Where("id = ?", scopeID).Scan(&msg)
		if res.Error != nil {
			return uuid.Nil, res.Error
		}
		if res.RowsAffected == 0 {
			return uuid.Nil, gorm.ErrRecordNotFound
		}
		return r.ScopeOwner(ctx, enums.AttachmentScope(msg.Scope), msg.ScopeID)
	default:
		return uuid.Nil, fmt.Errorf("unsupported attachment scope %q", scope)
	}
	var row ownerRow
	res := query.Scan(&row)
	if res.Error != nil {
		return uuid.Nil, res.Error
	}
	if res.RowsAffected == 0 {
		return uuid.Nil, gorm.ErrRecordNotFound
	}
	return row.CustomerID, nil
}
