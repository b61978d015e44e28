package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CabinetType is a configurable cabinet carcass with its pricing inputs and
// permitted dimensions in millimetres.
type CabinetType struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name            string          `gorm:"column:name;not null;uniqueIndex"`
	Category        string          `gorm:"column:category;not null"`
	Description     *string         `gorm:"column:description"`
	BasePrice       decimal.Decimal `gorm:"column:base_price;type:numeric(12,2);not null"`
	MaterialRate    decimal.Decimal `gorm:"column:material_rate;type:numeric(12,2);not null"`
	DoorCount       int             `gorm:"column:door_count;not null;default:0"`
	DefaultWidthMM  int             `gorm:"column:default_width_mm;not null"`
	MinWidthMM      int             `gorm:"column:min_width_mm;not null"`
	MaxWidthMM      int             `gorm:"column:max_width_mm;not null"`
	DefaultHeightMM int             `gorm:"column:default_height_mm;not null"`
	MinHeightMM     int             `gorm:"column:min_height_mm;not null"`
	MaxHeightMM     int             `gorm:"column:max_height_mm;not null"`
	DefaultDepthMM  int             `gorm:"column:default_depth_mm;not null"`
	MinDepthMM      int             `gorm:"column:min_depth_mm;not null"`
	MaxDepthMM      int             `gorm:"column:max_depth_mm;not null"`
	ImageURL        *string         `gorm:"column:image_url"`
	IsActive        bool            `gorm:"column:is_active;not null"`
	SortOrder       int             `gorm:"column:sort_order;not null;default:0"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// DoorStyle contributes a per-square-metre rate to door cost.
type DoorStyle struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string          `gorm:"column:name;not null;uniqueIndex"`
	Rate      decimal.Decimal `gorm:"column:rate;type:numeric(12,2);not null"`
	ImageURL  *string         `gorm:"column:image_url"`
	IsActive  bool            `gorm:"column:is_active;not null"`
	SortOrder int             `gorm:"column:sort_order;not null;default:0"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// Color contributes a per-square-metre rate to door cost.
type Color struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string          `gorm:"column:name;not null;uniqueIndex"`
	HexCode   *string         `gorm:"column:hex_code"`
	Rate      decimal.Decimal `gorm:"column:rate;type:numeric(12,2);not null"`
	IsActive  bool            `gorm:"column:is_active;not null"`
	SortOrder int             `gorm:"column:sort_order;not null;default:0"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// Finish contributes a per-square-metre rate to door cost.
type Finish struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string          `gorm:"column:name;not null;uniqueIndex"`
	Rate      decimal.Decimal `gorm:"column:rate;type:numeric(12,2);not null"`
	IsActive  bool            `gorm:"column:is_active;not null"`
	SortOrder int             `gorm:"column:sort_order;not null;default:0"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductionOption is a flat per-unit surcharge such as edge banding.
type ProductionOption struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code        string          `gorm:"column:code;not null;uniqueIndex"`
	Name        string          `gorm:"column:name;not null"`
	Description *string         `gorm:"column:description"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	IsActive    bool            `gorm:"column:is_active;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
