package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/northcraft/cabinetry-backend/pkg/enums"
	"github.com/northcraft/cabinetry-backend/pkg/types"
)

// Quote is a versioned, priced proposal for a customer.
type Quote struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	QuoteNumber       string            `gorm:"column:quote_number;not null;uniqueIndex"`
	CustomerID        uuid.UUID         `gorm:"column:customer_id;type:uuid;not null"`
	CartID            *uuid.UUID        `gorm:"column:cart_id;type:uuid"`
	OrderID           *uuid.UUID        `gorm:"column:order_id;type:uuid"`
	Status            enums.QuoteStatus `gorm:"column:status;not null;default:'draft'"`
	Version           int               `gorm:"column:version;not null;default:1"`
	Subtotal          decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2);not null"`
	AssemblySurcharge decimal.Decimal   `gorm:"column:assembly_surcharge;type:numeric(12,2);not null"`
	DeliveryFee       decimal.Decimal   `gorm:"column:delivery_fee;type:numeric(12,2);not null"`
	Discount          decimal.Decimal   `gorm:"column:discount;type:numeric(12,2);not null"`
	GST               decimal.Decimal   `gorm:"column:gst;type:numeric(12,2);not null"`
	Total             decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	Postcode          *string           `gorm:"column:postcode"`
	IncludeAssembly   bool              `gorm:"column:include_assembly;not null;default:false"`
	ValidUntil        *time.Time        `gorm:"column:valid_until"`
	SentAt            *time.Time        `gorm:"column:sent_at"`
	ViewedAt          *time.Time        `gorm:"column:viewed_at"`
	AcceptedAt        *time.Time        `gorm:"column:accepted_at"`
	RejectedAt        *time.Time        `gorm:"column:rejected_at"`
	RejectionReason   *string           `gorm:"column:rejection_reason"`
	ExpiredAt         *time.Time        `gorm:"column:expired_at"`
	Notes             *string           `gorm:"column:notes"`
	CreatedBy         *uuid.UUID        `gorm:"column:created_by;type:uuid"`
	Items             []QuoteItem       `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// QuoteItem is a priced cabinet line on a quote.
type QuoteItem struct {
	ID                  uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	QuoteID             uuid.UUID               `gorm:"column:quote_id;type:uuid;not null"`
	CabinetTypeID       uuid.UUID               `gorm:"column:cabinet_type_id;type:uuid;not null"`
	Description         string                  `gorm:"column:description;not null"`
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

// QuoteVersion freezes a quote's items and totals before it is revised.
type QuoteVersion struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	QuoteID   uuid.UUID       `gorm:"column:quote_id;type:uuid;not null"`
	Version   int             `gorm:"column:version;not null"`
	Status    string          `gorm:"column:status;not null"`
	Snapshot  json.RawMessage `gorm:"column:snapshot;type:jsonb;not null"`
	CreatedBy *uuid.UUID      `gorm:"column:created_by;type:uuid"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
