package messages

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	"github.com/northcraft/cabinetry-backend/pkg/pagination"
)

// Thread identifies the entity a conversation hangs off.
type Thread struct {
	CustomerID uuid.UUID
	Reference  string
}

// Repository persists thread messages.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *Repository) List(ctx context.Context, scope enums.MessageScope, scopeID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Message, error) {
	query := r.db.WithContext(ctx).Model(&models.Message{}).Where("scope = ? AND scope_id = ?", scope, scopeID)
	var rows []models.Message
	err := pagination.Apply(query, "", cursor, limit).Find(&rows).Error
	return rows, err
}

// Unread returns customer messages no admin has read yet.
func (r *Repository) Unread(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.Message, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("sender_role = ? AND read_at IS NULL", enums.UserRoleCustomer)
	var rows []models.Message
	err := pagination.Apply(query, "", cursor, limit).Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", at).Error
}

type threadRow struct {
	CustomerID uuid.UUID
	Reference  string
}

// FindThread resolves the owner and display reference of a quote or order.
func (r *Repository) FindThread(ctx context.Context, scope enums.MessageScope, scopeID uuid.UUID) (*Thread, error) {
	db := r.db.WithContext(ctx)
	var query *gorm.DB
	switch scope {
	case enums.MessageScopeQuote:
		query = db.Table("quotes").Select("customer_id, quote_number AS reference").Where("id = ?", scopeID)
	case enums.MessageScopeOrder:
		query = db.Table("orders").Select("customer_id, order_number AS reference").Where("id = ?", scopeID)
	default:
		return nil, gorm.ErrRecordNotFound
	}
	var row threadRow
	res := query.Scan(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &Thread{CustomerID: row.CustomerID, Reference: row.Reference}, nil
}
