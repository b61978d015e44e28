package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/pkg/db"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
)

// Service exposes the public catalog and its admin maintenance operations.
type Service interface {
	ListCabinetTypes(ctx context.Context, includeInactive bool) ([]CabinetTypeDTO, error)
	GetCabinetType(ctx context.Context, id uuid.UUID) (*CabinetTypeDTO, error)
	CreateCabinetType(ctx context.Context, input CabinetTypeInput) (*CabinetTypeDTO, error)
	UpdateCabinetType(ctx context.Context, id uuid.UUID, input CabinetTypeInput) (*CabinetTypeDTO, error)
	DeleteCabinetType(ctx context.Context, id uuid.UUID) error

	ListDoorStyles(ctx context.Context, includeInactive bool) ([]RateDTO, error)
	CreateDoorStyle(ctx context.Context, input RateInput) (*RateDTO, error)
	UpdateDoorStyle(ctx context.Context, id uuid.UUID, input RateInput) (*RateDTO, error)
	DeleteDoorStyle(ctx context.Context, id uuid.UUID) error

	ListColors(ctx context.Context, includeInactive bool) ([]RateDTO, error)
	CreateColor(ctx context.Context, input RateInput) (*RateDTO, error)
	UpdateColor(ctx context.Context, id uuid.UUID, input RateInput) (*RateDTO, error)
	DeleteColor(ctx context.Context, id uuid.UUID) error

	ListFinishes(ctx context.Context, includeInactive bool) ([]RateDTO, error)
	CreateFinish(ctx context.Context, input RateInput) (*RateDTO, error)
	UpdateFinish(ctx context.Context, id uuid.UUID, input RateInput) (*RateDTO, error)
	DeleteFinish(ctx context.Context, id uuid.UUID) error

	ListProductionOptions(ctx context.Context, includeInactive bool) ([]ProductionOptionDTO, error)
	CreateProductionOption(ctx context.Context, input ProductionOptionInput) (*ProductionOptionDTO, error)
	UpdateProductionOption(ctx context.Context, id uuid.UUID, input ProductionOptionInput) (*ProductionOptionDTO, error)
	DeleteProductionOption(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo   *Repository
	reader *Reader
}

// NewService builds the catalog service. The reader's cache is invalidated on
// every write.
func NewService(repo *Repository, reader *Reader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if reader == nil {
		reader = NewReader(repo, nil, 0, nil)
	}
	return &service{repo: repo, reader: reader}, nil
}

func (s *service) ListCabinetTypes(ctx context.Context, includeInactive bool) ([]CabinetTypeDTO, error) {
	rows, err := s.repo.ListCabinetTypes(ctx, includeInactive)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list cabinet types")
	}
	return mapAll(rows, cabinetTypeDTO), nil
}

func (s *service) GetCabinetType(ctx context.Context, id uuid.UUID) (*CabinetTypeDTO, error) {
	row, err := s.repo.FindCabinetType(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "cabinet type")
	}
	dto := cabinetTypeDTO(*row)
	return &dto, nil
}

func (s *service) CreateCabinetType(ctx context.Context, input CabinetTypeInput) (*CabinetTypeDTO, error) {
	if err := validateCabinetType(input); err != nil {
		return nil, err
	}
	row := &models.CabinetType{ID: uuid.New()}
	applyCabinetType(row, input)
	if err := s.write(ctx, "cabinet type", func() error { return s.repo.Create(ctx, row) }); err != nil {
		return nil, err
	}
	dto := cabinetTypeDTO(*row)
	return &dto, nil
}

func (s *service) UpdateCabinetType(ctx context.Context, id uuid.UUID, input CabinetTypeInput) (*CabinetTypeDTO, error) {
	if err := validateCabinetType(input); err != nil {
		return nil, err
	}
	row, err := s.repo.FindCabinetType(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "cabinet type")
	}
	applyCabinetType(row, input)
	if err := s.write(ctx, "cabinet type", func() error { return s.repo.Save(ctx, row) }); err != nil {
		return nil, err
	}
	dto := cabinetTypeDTO(*row)
	return &dto, nil
}

func (s *service) DeleteCabinetType(ctx context.Context, id uuid.UUID) error {
	return s.deactivate(ctx, &models.CabinetType{}, id, "cabinet type")
}

func (s *service) ListDoorStyles(ctx context.Context, includeInactive bool) ([]RateDTO, error) {
	rows, err := s.repo.ListDoorStyles(ctx, includeInactive)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list door styles")
	}
	return mapAll(rows, doorStyleDTO), nil
}

func (s *service) CreateDoorStyle(ctx context.Context, input RateInput) (*RateDTO, error) {
	if err := validateRate(input); err != nil {
		return nil, err
	}
	row := &models.DoorStyle{ID: uuid.New()}
	row.Name, row.Rate, row.ImageURL, row.IsActive, row.SortOrder = strings.TrimSpace(input.Name), input.Rate, input.ImageURL, active(input.IsActive), input.SortOrder
	if err := s.write(ctx, "door style", func() error { return s.repo.Create(ctx, row) }); err != nil {
		return nil, err
	}
	dto := doorStyleDTO(*row)
	return &dto, nil
}

func (s *service) UpdateDoorStyle(ctx context.Context, id uuid.UUID, input RateInput) (*RateDTO, error) {
	if err := validateRate(input); err != nil {
		return nil, err
	}
	row, err := s.repo.FindDoorStyle(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "door style")
	}
	row.Name, row.Rate, row.ImageURL, row.IsActive, row.SortOrder = strings.TrimSpace(input.Name), input.Rate, input.ImageURL, active(input.IsActive), input.SortOrder
	if err := s.write(ctx, "door style", func() error { return s.repo.Save(ctx, row) }); err != nil {
		return nil, err
	}
	dto := doorStyleDTO(*row)
	return &dto, nil
}

func (s *service) DeleteDoorStyle(ctx context.Context, id uuid.UUID) error {
	return s.deactivate(ctx, &models.DoorStyle{}, id, "door style")
}

func (s *service) ListColors(ctx context.Context, includeInactive bool) ([]RateDTO, error) {
	rows, err := s.repo.ListColors(ctx, includeInactive)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list colors")
	}
	return mapAll(rows, colorDTO), nil
}

func (s *service) CreateColor(ctx context.Context, input RateInput) (*RateDTO, error) {
	if err := validateRate(input); err != nil {
		return nil, err
	}
	row := &models.Color{ID: uuid.New()}
	row.Name, row.Rate, row.HexCode, row.IsActive, row.SortOrder = strings.TrimSpace(input.Name), input.Rate, input.HexCode, active(input.IsActive), input.SortOrder
	if err := s.write(ctx, "color", func() error { return s.repo.Create(ctx, row) }); err != nil {
		return nil, err
	}
	dto := colorDTO(*row)
	return &dto, nil
}

func (s *service) UpdateColor(ctx context.Context, id uuid.UUID, input RateInput) (*RateDTO, error) {
	if err := validateRate(input); err != nil {
		return nil, err
	}
	row, err := s.repo.FindColor(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "color")
	}
	row.Name, row.Rate, row.HexCode, row.IsActive, row.SortOrder = strings.TrimSpace(input.Name), input.Rate, input.HexCode, active(input.IsActive), input.SortOrder
	if err := s.write(ctx, "color", func() error { return s.repo.Save(ctx, row) }); err != nil {
		return nil, err
	}
	dto := colorDTO(*row)
	return &dto, nil
}

func (s *service) DeleteColor(ctx context.Context, id uuid.UUID) error {
	return s.deactivate(ctx, &models.Color{}, id, "color")
}

func (s *service) ListFinishes(ctx context.Context, includeInactive bool) ([]RateDTO, error) {
	rows, err := s.repo.ListFinishes(ctx, includeInactive)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list finishes")
	}
	return mapAll(rows, finishDTO), nil
}

func (s *service) CreateFinish(ctx context.Context, input RateInput) (*RateDTO, error) {
	if err := validateRate(input); err != nil {
		return nil, err
	}
	row := &models.Finish{ID: uuid.New()}
	row.Name, row.Rate, row.IsActive, row.SortOrder = strings.TrimSpace(input.Name), input.Rate, active(input.IsActive), input.SortOrder
	if err := s.write(ctx, "finish", func() error { return s.repo.Create(ctx, row) }); err != nil {
		return nil, err
	}
	dto := finishDTO(*row)
	return &dto, nil
}

func (s *service) UpdateFinish(ctx context.Context, id uuid.UUID, input RateInput) (*RateDTO, error) {
	if err := validateRate(input); err != nil {
		return nil, err
	}
	row, err := s.repo.FindFinish(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "finish")
	}
	row.Name, row.Rate, row.IsActive, row.SortOrder = strings.TrimSpace(input.Name), input.Rate, active(input.IsActive), input.SortOrder
	if err := s.write(ctx, "finish", func() error { return s.repo.Save(ctx, row) }); err != nil {
		return nil, err
	}
	dto := finishDTO(*row)
	return &dto, nil
}

func (s *service) DeleteFinish(ctx context.Context, id uuid.UUID) error {
	return s.deactivate(ctx, &models.Finish{}, id, "finish")
}

func (s *service) ListProductionOptions(ctx context.Context, includeInactive bool) ([]ProductionOptionDTO, error) {
	rows, err := s.repo.ListProductionOptions(ctx, includeInactive)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list production options")
	}
	return mapAll(rows, productionOptionDTO), nil
}

func (s *service) CreateProductionOption(ctx context.Context, input ProductionOptionInput) (*ProductionOptionDTO, error) {
	if err := validateOption(input); err != nil {
		return nil, err
	}
	row := &models.ProductionOption{ID: uuid.New()}
	applyOption(row, input)
	if err := s.write(ctx, "production option", func() error { return s.repo.Create(ctx, row) }); err != nil {
		return nil, err
	}
	dto := productionOptionDTO(*row)
	return &dto, nil
}

func (s *service) UpdateProductionOption(ctx context.Context, id uuid.UUID, input ProductionOptionInput) (*ProductionOptionDTO, error) {
	if err := validateOption(input); err != nil {
		return nil, err
	}
	row, err := s.repo.FindProductionOption(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "production option")
	}
	applyOption(row, input)
	if err := s.write(ctx, "production option", func() error { return s.repo.Save(ctx, row) }); err != nil {
		return nil, err
	}
	dto := productionOptionDTO(*row)
	return &dto, nil
}

func (s *service) DeleteProductionOption(ctx context.Context, id uuid.UUID) error {
	return s.deactivate(ctx, &models.ProductionOption{}, id, "production option")
}

func (s *service) write(ctx context.Context, entity string, fn func() error) error {
	if err := fn(); err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.New(pkgerrors.CodeConflict, entity+" name already exists")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save "+entity)
	}
	s.reader.Invalidate(ctx)
	return nil
}

func (s *service) deactivate(ctx context.Context, model any, id uuid.UUID, entity string) error {
	affected, err := s.repo.Deactivate(ctx, model, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivate "+entity)
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	}
	s.reader.Invalidate(ctx)
	return nil
}

func validateCabinetType(input CabinetTypeInput) error {
	details := map[string]string{}
	if strings.TrimSpace(input.Name) == "" {
		details["name"] = "required"
	}
	if strings.TrimSpace(input.Category) == "" {
		details["category"] = "required"
	}
	if input.BasePrice.IsNegative() {
		details["base_price"] = "must be >= 0"
	}
	if input.MaterialRate.IsNegative() {
		details["material_rate"] = "must be >= 0"
	}
	if input.DoorCount < 0 {
		details["door_count"] = "must be >= 0"
	}
	checkRange := func(field string, minV, def, maxV int) {
		if minV <= 0 || def <= 0 || maxV <= 0 {
			details[field] = "dimensions must be positive"
			return
		}
		if minV > def || def > maxV {
			details[field] = "expected min <= default <= max"
		}
	}
	checkRange("width_mm", input.MinWidthMM, input.DefaultWidthMM, input.MaxWidthMM)
	checkRange("height_mm", input.MinHeightMM, input.DefaultHeightMM, input.MaxHeightMM)
	checkRange("depth_mm", input.MinDepthMM, input.DefaultDepthMM, input.MaxDepthMM)
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid cabinet type").WithDetails(details)
	}
	return nil
}

func validateRate(input RateInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.Rate.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "rate must be >= 0")
	}
	return nil
}

func validateOption(input ProductionOptionInput) error {
	if strings.TrimSpace(input.Code) == "" || strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "code and name are required")
	}
	if input.Price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be >= 0")
	}
	return nil
}

func applyCabinetType(row *models.CabinetType, input CabinetTypeInput) {
	row.Name = strings.TrimSpace(input.Name)
	row.Category = strings.TrimSpace(input.Category)
	row.Description = input.Description
	row.BasePrice = input.BasePrice.Round(2)
	row.MaterialRate = input.MaterialRate.Round(2)
	row.DoorCount = input.DoorCount
	row.DefaultWidthMM, row.MinWidthMM, row.MaxWidthMM = input.DefaultWidthMM, input.MinWidthMM, input.MaxWidthMM
	row.DefaultHeightMM, row.MinHeightMM, row.MaxHeightMM = input.DefaultHeightMM, input.MinHeightMM, input.MaxHeightMM
	row.DefaultDepthMM, row.MinDepthMM, row.MaxDepthMM = input.DefaultDepthMM, input.MinDepthMM, input.MaxDepthMM
	row.ImageURL = input.ImageURL
	row.IsActive = active(input.IsActive)
	row.SortOrder = input.SortOrder
}

func applyOption(row *models.ProductionOption, input ProductionOptionInput) {
	row.Code = strings.ToUpper(strings.TrimSpace(input.Code))
	row.Name = strings.TrimSpace(input.Name)
	row.Description = input.Description
	row.Price = input.Price.Round(2)
	row.IsActive = active(input.IsActive)
}

func active(flag *bool) bool {
	return flag == nil || *flag
}

func notFoundOr(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load "+entity)
}
