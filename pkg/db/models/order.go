package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/northcraft/cabinetry-backend/pkg/enums"
	"github.com/northcraft/cabinetry-backend/pkg/types"
)

// Order is the fulfillment record created from an accepted quote or a cart
// checkout.
type Order struct {
	ID                    uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber           string                 `gorm:"column:order_number;not null;uniqueIndex"`
	CustomerID            uuid.UUID              `gorm:"column:customer_id;type:uuid;not null"`
	QuoteID               *uuid.UUID             `gorm:"column:quote_id;type:uuid"`
	CartID                *uuid.UUID             `gorm:"column:cart_id;type:uuid"`
	Status                enums.OrderStatus      `gorm:"column:status;not null;default:'awaiting_deposit'"`
	Subtotal              decimal.Decimal        `gorm:"column:subtotal;type:numeric(12,2);not null"`
	AssemblySurcharge     decimal.Decimal        `gorm:"column:assembly_surcharge;type:numeric(12,2);not null"`
	DeliveryFee           decimal.Decimal        `gorm:"column:delivery_fee;type:numeric(12,2);not null"`
	Discount              decimal.Decimal        `gorm:"column:discount;type:numeric(12,2);not null"`
	GST                   decimal.Decimal        `gorm:"column:gst;type:numeric(12,2);not null"`
	Total                 decimal.Decimal        `gorm:"column:total;type:numeric(12,2);not null"`
	AmountPaid            decimal.Decimal        `gorm:"column:amount_paid;type:numeric(12,2);not null"`
	BalanceDue            decimal.Decimal        `gorm:"column:balance_due;type:numeric(12,2);not null"`
	ShippingAddress       *types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	Postcode              *string                `gorm:"column:postcode"`
	IncludeAssembly       bool                   `gorm:"column:include_assembly;not null;default:false"`
	LeadTimeDays          int                    `gorm:"column:lead_time_days;not null;default:0"`
	EstimatedDeliveryDate *time.Time             `gorm:"column:estimated_delivery_date"`
	Notes                 *string                `gorm:"column:notes"`
	DepositPaidAt         *time.Time             `gorm:"column:deposit_paid_at"`
	ProductionStartedAt   *time.Time             `gorm:"column:production_started_at"`
	ReadyAt               *time.Time             `gorm:"column:ready_at"`
	DispatchedAt          *time.Time             `gorm:"column:dispatched_at"`
	DeliveredAt           *time.Time             `gorm:"column:delivered_at"`
	CompletedAt           *time.Time             `gorm:"column:completed_at"`
	CancelledAt           *time.Time             `gorm:"column:cancelled_at"`
	CancellationReason    *string                `gorm:"column:cancellation_reason"`
	Items                 []OrderItem            `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt             time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is a copy of the quote or cart line the order was built from.
type OrderItem struct {
	ID                  uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID             uuid.UUID               `gorm:"column:order_id;type:uuid;not null"`
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
	UnitPrice           decimal.Decimal         `gorm:"column:unit_price;type:numeric(12,2);not null"`
	TotalPrice          decimal.Decimal         `gorm:"column:total_price;type:numeric(12,2);not null"`
	SortOrder           int                     `gorm:"column:sort_order;not null;default:0"`
	CreatedAt           time.Time               `gorm:"column:created_at;autoCreateTime"`
}
