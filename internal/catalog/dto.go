package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/northcraft/cabinetry-backend/pkg/db/models"
)

// CabinetTypeInput is the full create/replace payload for a cabinet type.
type CabinetTypeInput struct {
	Name            string          `json:"name" validate:"required,max=120"`
	Category        string          `json:"category" validate:"required,max=60"`
	Description     *string         `json:"description,omitempty" validate:"omitempty,max=2000"`
	BasePrice       decimal.Decimal `json:"base_price"`
	MaterialRate    decimal.Decimal `json:"material_rate"`
	DoorCount       int             `json:"door_count" validate:"gte=0,lte=12"`
	DefaultWidthMM  int             `json:"default_width_mm" validate:"required,gt=0"`
	MinWidthMM      int             `json:"min_width_mm" validate:"required,gt=0"`
	MaxWidthMM      int             `json:"max_width_mm" validate:"required,gt=0"`
	DefaultHeightMM int             `json:"default_height_mm" validate:"required,gt=0"`
	MinHeightMM     int             `json:"min_height_mm" validate:"required,gt=0"`
	MaxHeightMM     int             `json:"max_height_mm" validate:"required,gt=0"`
	DefaultDepthMM  int             `json:"default_depth_mm" validate:"required,gt=0"`
	MinDepthMM      int             `json:"min_depth_mm" validate:"required,gt=0"`
	MaxDepthMM      int             `json:"max_depth_mm" validate:"required,gt=0"`
	ImageURL        *string         `json:"image_url,omitempty" validate:"omitempty,url"`
	IsActive        *bool           `json:"is_active,omitempty"`
	SortOrder       int             `json:"sort_order"`
}

// RateInput is shared by door styles, colors and finishes.
type RateInput struct {
	Name      string          `json:"name" validate:"required,max=120"`
	Rate      decimal.Decimal `json:"rate"`
	HexCode   *string         `json:"hex_code,omitempty" validate:"omitempty,hexcolor"`
	ImageURL  *string         `json:"image_url,omitempty" validate:"omitempty,url"`
	IsActive  *bool           `json:"is_active,omitempty"`
	SortOrder int             `json:"sort_order"`
}

// ProductionOptionInput creates or replaces a production option.
type ProductionOptionInput struct {
	Code        string          `json:"code" validate:"required,max=40"`
	Name        string          `json:"name" validate:"required,max=120"`
	Description *string         `json:"description,omitempty" validate:"omitempty,max=2000"`
	Price       decimal.Decimal `json:"price"`
	IsActive    *bool           `json:"is_active,omitempty"`
}

type CabinetTypeDTO struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Category        string          `json:"category"`
	Description     *string         `json:"description,omitempty"`
	BasePrice       decimal.Decimal `json:"base_price"`
	MaterialRate    decimal.Decimal `json:"material_rate"`
	DoorCount       int             `json:"door_count"`
	DefaultWidthMM  int             `json:"default_width_mm"`
	MinWidthMM      int             `json:"min_width_mm"`
	MaxWidthMM      int             `json:"max_width_mm"`
	DefaultHeightMM int             `json:"default_height_mm"`
	MinHeightMM     int             `json:"min_height_mm"`
	MaxHeightMM     int             `json:"max_height_mm"`
	DefaultDepthMM  int             `json:"default_depth_mm"`
	MinDepthMM      int             `json:"min_depth_mm"`
	MaxDepthMM      int             `json:"max_depth_mm"`
	ImageURL        *string         `json:"image_url,omitempty"`
	IsActive        bool            `json:"is_active"`
	SortOrder       int             `json:"sort_order"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// RateDTO is the API shape of a door style, color or finish.
type RateDTO struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Rate      decimal.Decimal `json:"rate"`
	HexCode   *string         `json:"hex_code,omitempty"`
	ImageURL  *string         `json:"image_url,omitempty"`
	IsActive  bool            `json:"is_active"`
	SortOrder int             `json:"sort_order"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type ProductionOptionDTO struct {
	ID          uuid.UUID       `json:"id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	IsActive    bool            `json:"is_active"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func cabinetTypeDTO(m models.CabinetType) CabinetTypeDTO {
	return CabinetTypeDTO{
		ID:              m.ID,
		Name:            m.Name,
		Category:        m.Category,
		Description:     m.Description,
		BasePrice:       m.BasePrice,
		MaterialRate:    m.MaterialRate,
		DoorCount:       m.DoorCount,
		DefaultWidthMM:  m.DefaultWidthMM,
		MinWidthMM:      m.MinWidthMM,
		MaxWidthMM:      m.MaxWidthMM,
		DefaultHeightMM: m.DefaultHeightMM,
		MinHeightMM:     m.MinHeightMM,
		MaxHeightMM:     m.MaxHeightMM,
		DefaultDepthMM:  m.DefaultDepthMM,
		MinDepthMM:      m.MinDepthMM,
		MaxDepthMM:      m.MaxDepthMM,
		ImageURL:        m.ImageURL,
		IsActive:        m.IsActive,
		SortOrder:       m.SortOrder,
		UpdatedAt:       m.UpdatedAt,
	}
}

func doorStyleDTO(m models.DoorStyle) RateDTO {
	return RateDTO{ID: m.ID, Name: m.Name, Rate: m.Rate, ImageURL: m.ImageURL, IsActive: m.IsActive, SortOrder: m.SortOrder, UpdatedAt: m.UpdatedAt}
}

func colorDTO(m models.Color) RateDTO {
	return RateDTO{ID: m.ID, Name: m.Name, Rate: m.Rate, HexCode: m.HexCode, IsActive: m.IsActive, SortOrder: m.SortOrder, UpdatedAt: m.UpdatedAt}
}

func finishDTO(m models.Finish) RateDTO {
	return RateDTO{ID: m.ID, Name: m.Name, Rate: m.Rate, IsActive: m.IsActive, SortOrder: m.SortOrder, UpdatedAt: m.UpdatedAt}
}

func productionOptionDTO(m models.ProductionOption) ProductionOptionDTO {
	return ProductionOptionDTO{ID: m.ID, Code: m.Code, Name: m.Name, Description: m.Description, Price: m.Price, IsActive: m.IsActive, UpdatedAt: m.UpdatedAt}
}

func mapAll[M any, D any](rows []M, fn func(M) D) []D {
	out := make([]D, 0, len(rows))
	for _, row := range rows {
		out = append(out, fn(row))
	}
	return out
}
