package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/northcraft/cabinetry-backend/pkg/enums"
	"github.com/northcraft/cabinetry-backend/pkg/types"
)

// Cart is a customer's working set of configured cabinets.
type Cart struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID     uuid.UUID        `gorm:"column:customer_id;type:uuid;not null"`
	Status         enums.CartStatus `gorm:"column:status;not null;default:'active'"`
	Postcode       *string          `gorm:"column:postcode"`
	Notes          *string          `gorm:"column:notes"`
	QuoteID        *uuid.UUID       `gorm:"column:quote_id;type:uuid"`
	OrderID        *uuid.UUID       `gorm:"column:order_id;type:uuid"`
	LastActivityAt time.Time        `gorm:"column:last_activity_at;not null"`
	Items          []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// CartItem is a single priced cabinet configuration.
type CartItem struct {
	ID                  uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID              uuid.UUID               `gorm:"column:cart_id;type:uuid;not null"`
	CabinetTypeID       uuid.UUID               `gorm:"column:cabinet_type_id;type:uuid;not null"`
	DoorStyleID         *uuid.UUID              `gorm:"column:door_style_id;type:uuid"`
	ColorID             *uuid.UUID              `gorm:"column:color_id;type:uuid"`
	FinishID            *uuid.UUID              `gorm:"column:finish_id;type:uuid"`
	WidthMM             int                     `gorm:"column:width_mm;not null"`
	HeightMM            int                     `gorm:"column:height_mm;not null"`
	DepthMM             int                     `gorm:"column:depth_mm;not null"`
	Quantity            int                     `gorm:"column:quantity;not null"`
	ProductionOptionIDs pq.StringArray          `gorm:"column:production_option_ids;type:text[]"`
	Configuration       types.ItemConfiguration `gorm:"column:configuration;type:jsonb;serializer:json"`
	Breakdown           types.PriceBreakdown    `gorm:"column:price_breakdown;type:jsonb;serializer:json"`
	UnitPrice           decimal.Decimal         `gorm:"column:unit_price;type:numeric(12,2);not null"`
	TotalPrice          decimal.Decimal         `gorm:"column:total_price;type:numeric(12,2);not null"`
	SortOrder           int                     `gorm:"column:sort_order;not null;default:0"`
	CreatedAt           time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
