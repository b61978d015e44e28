package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	"github.com/northcraft/cabinetry-backend/pkg/types"
)

// ListFilter narrows the order list. CustomerID is forced for customers.
type ListFilter struct {
	CustomerID *uuid.UUID
	Status     *enums.OrderStatus
	Search     string
	Limit      int
	Cursor     string
}

// StatusUpdateInput moves an order along its fulfilment path.
type StatusUpdateInput struct {
	Status enums.OrderStatus `json:"status" validate:"required"`
	Reason string            `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// CancelInput cancels an order before dispatch.
type CancelInput struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// CartOrderInput carries the checkout decisions applied to a re-priced cart.
type CartOrderInput struct {
	Address         types.ShippingAddress
	IncludeAssembly bool
	Notes           *string
	Totals          types.Totals
	LeadTimeDays    int
	Actor           *uuid.UUID
}

// ItemDTO is an order line.
type ItemDTO struct {
	ID                  uuid.UUID               `json:"id"`
	CabinetTypeID       uuid.UUID               `json:"cabinet_type_id"`
	Description         string                  `json:"description"`
	DoorStyleID         *uuid.UUID              `json:"door_style_id,omitempty"`
	ColorID             *uuid.UUID              `json:"color_id,omitempty"`
	FinishID            *uuid.UUID              `json:"finish_id,omitempty"`
	WidthMM             int                     `json:"width_mm"`
	HeightMM            int                     `json:"height_mm"`
	DepthMM             int                     `json:"depth_mm"`
	Quantity            int                     `json:"quantity"`
	ProductionOptionIDs []string                `json:"production_option_ids,omitempty"`
	Configuration       types.ItemConfiguration `json:"configuration"`
	UnitPrice           decimal.Decimal         `json:"unit_price"`
	TotalPrice          decimal.Decimal         `json:"total_price"`
}

// OrderDTO is the API view of an order. Items are omitted from list pages.
type OrderDTO struct {
	ID                    uuid.UUID              `json:"id"`
	OrderNumber           string                 `json:"order_number"`
	CustomerID            uuid.UUID              `json:"customer_id"`
	QuoteID               *uuid.UUID             `json:"quote_id,omitempty"`
	CartID                *uuid.UUID             `json:"cart_id,omitempty"`
	Status                enums.OrderStatus      `json:"status"`
	Subtotal              decimal.Decimal        `json:"subtotal"`
	AssemblySurcharge     decimal.Decimal        `json:"assembly_surcharge"`
	DeliveryFee           decimal.Decimal        `json:"delivery_fee"`
	Discount              decimal.Decimal        `json:"discount"`
	GST                   decimal.Decimal        `json:"gst"`
	Total                 decimal.Decimal        `json:"total"`
	AmountPaid            decimal.Decimal        `json:"amount_paid"`
	BalanceDue            decimal.Decimal        `json:"balance_due"`
	ShippingAddress       *types.ShippingAddress `json:"shipping_address,omitempty"`
	Postcode              *string                `json:"postcode,omitempty"`
	IncludeAssembly       bool                   `json:"include_assembly"`
	LeadTimeDays          int                    `json:"lead_time_days"`
	EstimatedDeliveryDate *time.Time             `json:"estimated_delivery_date,omitempty"`
	Notes                 *string                `json:"notes,omitempty"`
	DepositPaidAt         *time.Time             `json:"deposit_paid_at,omitempty"`
	ProductionStartedAt   *time.Time             `json:"production_started_at,omitempty"`
	ReadyAt               *time.Time             `json:"ready_at,omitempty"`
	DispatchedAt          *time.Time             `json:"dispatched_at,omitempty"`
	DeliveredAt           *time.Time             `json:"delivered_at,omitempty"`
	CompletedAt           *time.Time             `json:"completed_at,omitempty"`
	CancelledAt           *time.Time             `json:"cancelled_at,omitempty"`
	CancellationReason    *string                `json:"cancellation_reason,omitempty"`
	Items                 []ItemDTO              `json:"items,omitempty"`
	CreatedAt             time.Time              `json:"created_at"`
	UpdatedAt             time.Time              `json:"updated_at"`
}

// OrderList is a page of orders.
type OrderList struct {
	Items      []OrderDTO `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// ToDTO maps an order and any loaded items.
func ToDTO(order models.Order) OrderDTO {
	dto := OrderDTO{
		ID:                    order.ID,
		OrderNumber:           order.OrderNumber,
		CustomerID:            order.CustomerID,
		QuoteID:               order.QuoteID,
		CartID:                order.CartID,
		Status:                order.Status,
		Subtotal:              order.Subtotal,
		AssemblySurcharge:     order.AssemblySurcharge,
		DeliveryFee:           order.DeliveryFee,
		Discount:              order.Discount,
		GST:                   order.GST,
		Total:                 order.Total,
		AmountPaid:            order.AmountPaid,
		BalanceDue:            order.BalanceDue,
		ShippingAddress:       order.ShippingAddress,
		Postcode:              order.Postcode,
		IncludeAssembly:       order.IncludeAssembly,
		LeadTimeDays:          order.LeadTimeDays,
		EstimatedDeliveryDate: order.EstimatedDeliveryDate,
		Notes:                 order.Notes,
		DepositPaidAt:         order.DepositPaidAt,
		ProductionStartedAt:   order.ProductionStartedAt,
		ReadyAt:               order.ReadyAt,
		DispatchedAt:          order.DispatchedAt,
		DeliveredAt:           order.DeliveredAt,
		CompletedAt:           order.CompletedAt,
		CancelledAt:           order.CancelledAt,
		CancellationReason:    order.CancellationReason,
		CreatedAt:             order.CreatedAt,
		UpdatedAt:             order.UpdatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, ItemDTO{
			ID:                  item.ID,
			CabinetTypeID:       item.CabinetTypeID,
			Description:         item.Description,
			DoorStyleID:         item.DoorStyleID,
			ColorID:             item.ColorID,
			FinishID:            item.FinishID,
			WidthMM:             item.WidthMM,
			HeightMM:            item.HeightMM,
			DepthMM:             item.DepthMM,
			Quantity:            item.Quantity,
			ProductionOptionIDs: item.ProductionOptionIDs,
			Configuration:       item.Configuration,
			UnitPrice:           item.UnitPrice,
			TotalPrice:          item.TotalPrice,
		})
	}
	return dto
}
