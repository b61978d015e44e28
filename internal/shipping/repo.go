package shipping

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	"github.com/northcraft/cabinetry-backend/pkg/pagination"
)

// Repository persists postcode zones, assembly zones and rate cards.
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

func (r *Repository) ListZones(ctx context.Context, filter ZoneFilter, cursor *pagination.Cursor) ([]models.PostcodeZone, error) {
	query := r.db.WithContext(ctx).Model(&models.PostcodeZone{})
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("postcode LIKE ? OR lower(suburb) LIKE ?", like, like)
	}
	if state := strings.TrimSpace(filter.State); state != "" {
		query = query.Where("state = ?", strings.ToUpper(state))
	}
	if filter.Metro != nil {
		query = query.Where("is_metro = ?", *filter.Metro)
	}
	if filter.Remote != nil {
		query = query.Where("is_remote = ?", *filter.Remote)
	}
	var rows []models.PostcodeZone
	err := pagination.Apply(query, "", cursor, filter.Limit).Find(&rows).Error
	return rows, err
}

func (r *Repository) AllZones(ctx context.Context) ([]models.PostcodeZone, error) {
	var rows []models.PostcodeZone
	err := r.db.WithContext(ctx).Order("postcode ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) ZonesWithCoordinates(ctx context.Context) ([]models.PostcodeZone, error) {
	var rows []models.PostcodeZone
	err := r.db.WithContext(ctx).
		Where("lat IS NOT NULL AND lng IS NOT NULL").
		Order("postcode ASC").
		Find(&rows).Error
	return rows, err
}

// RadiusAssignedWithoutCoordinates lists postcodes holding a radius
// assignment to the zone that can no longer be placed on the map.
func (r *Repository) RadiusAssignedWithoutCoordinates(ctx context.Context, zoneID uuid.UUID) ([]models.PostcodeZone, error) {
	var rows []models.PostcodeZone
	err := r.db.WithContext(ctx).
		Where("assembly_zone_id = ? AND assembly_zone_source = ?", zoneID, enums.AssemblyZoneSourceRadius.String()).
		Where("lat IS NULL OR lng IS NULL").
		Order("postcode ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ZonesMissingCoordinates(ctx context.Context, limit int) ([]models.PostcodeZone, error) {
	var rows []models.PostcodeZone
	err := r.db.WithContext(ctx).
		Where("lat IS NULL OR lng IS NULL").
		Order("postcode ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) FindZone(ctx context.Context, id uuid.UUID) (*models.PostcodeZone, error) {
	var row models.PostcodeZone
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) FindZoneByPostcode(ctx context.Context, postcode string) (*models.PostcodeZone, error) {
	var row models.PostcodeZone
	if err := r.db.WithContext(ctx).Where("postcode = ?", postcode).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) CreateZone(ctx context.Context, row *models.PostcodeZone) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *Repository) UpdateZone(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.PostcodeZone{}).Where("id = ?", id).Updates(updates).Error
}

func (r *Repository) DeleteZone(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.PostcodeZone{})
	return res.RowsAffected, res.Error
}

func (r *Repository) ListAssemblyZones(ctx context.Context) ([]models.AssemblySurchargeZone, error) {
	var rows []models.AssemblySurchargeZone
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) FindAssemblyZone(ctx context.Context, id uuid.UUID) (*models.AssemblySurchargeZone, error) {
	var row models.AssemblySurchargeZone
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) SaveAssemblyZone(ctx context.Context, row *models.AssemblySurchargeZone) error {
	return r.db.WithContext(ctx).Save(row).Error
}

func (r *Repository) DeleteAssemblyZone(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.AssemblySurchargeZone{}).Error
}

// DetachAssemblyZone clears every postcode pointing at the zone.
func (r *Repository) DetachAssemblyZone(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.PostcodeZone{}).
		Where("assembly_zone_id = ?", id).
		Updates(map[string]any{"assembly_zone_id": nil, "assembly_zone_source": nil}).Error
}

func (r *Repository) ListRateCards(ctx context.Context) ([]models.RateCard, error) {
	var rows []models.RateCard
	err := r.db.WithContext(ctx).Order("is_default DESC").Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) FindRateCard(ctx context.Context, id uuid.UUID) (*models.RateCard, error) {
	var row models.RateCard
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) DefaultRateCard(ctx context.Context) (*models.RateCard, error) {
	var row models.RateCard
	err := r.db.WithContext(ctx).Where("is_default = ? AND is_active = ?", true, true).First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) SaveRateCard(ctx context.Context, row *models.RateCard) error {
	return r.db.WithContext(ctx).Save(row).Error
}

func (r *Repository) ClearDefaultRateCards(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Model(&models.RateCard{}).
		Where("is_default = ?", true).
		Update("is_default", false).Error
}

func (r *Repository) DeleteRateCard(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Model(&models.PostcodeZone{}).
		Where("rate_card_id = ?", id).
		Update("rate_card_id", nil).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.RateCard{}).Error
}
