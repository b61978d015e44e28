package quotes

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	"github.com/northcraft/cabinetry-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a quotes repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC").Order("created_at ASC")
}

func (r *repository) Create(ctx context.Context, quote *models.Quote) error {
	return r.db.WithContext(ctx).Create(quote).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.Quote, error) {
	q := r.db.WithContext(ctx)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var quote models.Quote
	if err := q.Preload("Items", orderedItems).Where("id = ?", id).First(&quote).Error; err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor) ([]models.Quote, error) {
	query := r.db.WithContext(ctx).Model(&models.Quote{})
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("quote_number LIKE ?", "%"+strings.ToUpper(search)+"%")
	}
	var rows []models.Quote
	err := pagination.Apply(query, "", cursor, filter.Limit).Find(&rows).Error
	return rows, err
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Quote{}).Where("id = ?", id).Updates(updates).Error
}

// UpdateStatus moves the quote only when it is still in one of the expected
// states.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from []enums.QuoteStatus, to enums.QuoteStatus, updates map[string]any) (int64, error) {
	values := map[string]any{"status": to}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Quote{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(values)
	return res.RowsAffected, res.Error
}

func (r *repository) FindItem(ctx context.Context, quoteID, itemID uuid.UUID) (*models.QuoteItem, error) {
	var item models.QuoteItem
	if err := r.db.WithContext(ctx).Where("id = ? AND quote_id = ?", itemID, quoteID).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) CreateItem(ctx context.Context, item *models.QuoteItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) SaveItem(ctx context.Context, item *models.QuoteItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *repository) DeleteItem(ctx context.Context, quoteID, itemID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND quote_id = ?", itemID, quoteID).Delete(&models.QuoteItem{})
	return res.RowsAffected, res.Error
}

func (r *repository) NextSortOrder(ctx context.Context, quoteID uuid.UUID) (int, error) {
	var maxOrder *int
	err := r.db.WithContext(ctx).
		Model(&models.QuoteItem{}).
		Where("quote_id = ?", quoteID).
		Select("MAX(sort_order)").
		Scan(&maxOrder).Error
	if err != nil {
		return 0, err
	}
	if maxOrder == nil {
		return 0, nil
	}
	return *maxOrder + 1, nil
}

func (r *repository) CreateVersion(ctx context.Context, version *models.QuoteVersion) error {
	return r.db.WithContext(ctx).Create(version).Error
}

func (r *repository) ListVersions(ctx context.Context, quoteID uuid.UUID) ([]models.QuoteVersion, error) {
	var rows []models.QuoteVersion
	err := r.db.WithContext(ctx).
		Where("quote_id = ?", quoteID).
		Order("version DESC").
		Find(&rows).Error
	return rows, err
}

// DueForExpiry returns open quotes whose validity ended before now.
func (r *repository) DueForExpiry(ctx context.Context, now time.Time, limit int) ([]models.Quote, error) {
	var rows []models.Quote
	err := r.db.WithContext(ctx).
		Where("status IN ? AND valid_until IS NOT NULL AND valid_until < ?", openStatuses, now).
		Order("valid_until ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindCustomer(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
