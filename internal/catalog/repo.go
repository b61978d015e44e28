package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/pkg/db/models"
)

// Repository persists catalog entities. All five tables share the same
// is_active/sort_order shape so the typed methods delegate to generic helpers.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListCabinetTypes(ctx context.Context, includeInactive bool) ([]models.CabinetType, error) {
	return listRows[models.CabinetType](ctx, r.db, includeInactive, "sort_order ASC, name ASC")
}

func (r *Repository) ListDoorStyles(ctx context.Context, includeInactive bool) ([]models.DoorStyle, error) {
	return listRows[models.DoorStyle](ctx, r.db, includeInactive, "sort_order ASC, name ASC")
}

func (r *Repository) ListColors(ctx context.Context, includeInactive bool) ([]models.Color, error) {
	return listRows[models.Color](ctx, r.db, includeInactive, "sort_order ASC, name ASC")
}

func (r *Repository) ListFinishes(ctx context.Context, includeInactive bool) ([]models.Finish, error) {
	return listRows[models.Finish](ctx, r.db, includeInactive, "sort_order ASC, name ASC")
}

func (r *Repository) ListProductionOptions(ctx context.Context, includeInactive bool) ([]models.ProductionOption, error) {
	return listRows[models.ProductionOption](ctx, r.db, includeInactive, "name ASC")
}

func (r *Repository) FindCabinetType(ctx context.Context, id uuid.UUID) (*models.CabinetType, error) {
	return findRow[models.CabinetType](ctx, r.db, id)
}

func (r *Repository) FindDoorStyle(ctx context.Context, id uuid.UUID) (*models.DoorStyle, error) {
	return findRow[models.DoorStyle](ctx, r.db, id)
}

func (r *Repository) FindColor(ctx context.Context, id uuid.UUID) (*models.Color, error) {
	return findRow[models.Color](ctx, r.db, id)
}

func (r *Repository) FindFinish(ctx context.Context, id uuid.UUID) (*models.Finish, error) {
	return findRow[models.Finish](ctx, r.db, id)
}

func (r *Repository) FindProductionOption(ctx context.Context, id uuid.UUID) (*models.ProductionOption, error) {
	return findRow[models.ProductionOption](ctx, r.db, id)
}

// Create inserts any catalog model.
func (r *Repository) Create(ctx context.Context, row any) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// Save replaces every column of an existing catalog model.
func (r *Repository) Save(ctx context.Context, row any) error {
	return r.db.WithContext(ctx).Save(row).Error
}

// Deactivate hides a row from the storefront; historical cart, quote and
// order lines keep referencing it.
func (r *Repository) Deactivate(ctx context.Context, model any, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Update("is_active", false)
	return res.RowsAffected, res.Error
}

func listRows[T any](ctx context.Context, db *gorm.DB, includeInactive bool, order string) ([]T, error) {
	var rows []T
	query := db.WithContext(ctx).Model(new(T))
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Order(order).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func findRow[T any](ctx context.Context, db *gorm.DB, id uuid.UUID) (*T, error) {
	var row T
	if err := db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
