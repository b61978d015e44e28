package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/northcraft/cabinetry-backend/internal/pricing"
	"github.com/northcraft/cabinetry-backend/internal/shipping"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	"github.com/northcraft/cabinetry-backend/pkg/types"
)

// ItemInput is a cabinet selection plus its non-priced options.
type ItemInput struct {
	pricing.Configuration
	Options types.ItemConfiguration `json:"configuration"`
}

type SetPostcodeRequest struct {
	Postcode string `json:"postcode" validate:"required"`
}

// RequestQuoteInput turns the active cart into a draft quote.
type RequestQuoteInput struct {
	Notes           *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
	IncludeAssembly bool    `json:"include_assembly"`
}

// QuoteRef identifies the quote drafted from a cart.
type QuoteRef struct {
	QuoteID     uuid.UUID `json:"quote_id"`
	QuoteNumber string    `json:"quote_number"`
}

type ItemDTO struct {
	ID                  uuid.UUID               `json:"id"`
	CabinetTypeID       uuid.UUID               `json:"cabinet_type_id"`
	DoorStyleID         *uuid.UUID              `json:"door_style_id,omitempty"`
	ColorID             *uuid.UUID              `json:"color_id,omitempty"`
	FinishID            *uuid.UUID              `json:"finish_id,omitempty"`
	WidthMM             int                     `json:"width_mm"`
	HeightMM            int                     `json:"height_mm"`
	DepthMM             int                     `json:"depth_mm"`
	Quantity            int                     `json:"quantity"`
	ProductionOptionIDs []uuid.UUID             `json:"production_option_ids"`
	Configuration       types.ItemConfiguration `json:"configuration"`
	Breakdown           types.PriceBreakdown    `json:"price_breakdown"`
	UnitPrice           decimal.Decimal         `json:"unit_price"`
	TotalPrice          decimal.Decimal         `json:"total_price"`
	SortOrder           int                     `json:"sort_order"`
}

type CartDTO struct {
	ID             uuid.UUID        `json:"id"`
	CustomerID     uuid.UUID        `json:"customer_id"`
	Status         enums.CartStatus `json:"status"`
	Postcode       *string          `json:"postcode,omitempty"`
	Notes          *string          `json:"notes,omitempty"`
	Items          []ItemDTO        `json:"items"`
	ItemCount      int              `json:"item_count"`
	Subtotal       decimal.Decimal  `json:"subtotal"`
	LastActivityAt time.Time        `json:"last_activity_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Summary is the priced view of the cart shown before quoting or checkout.
type Summary struct {
	CartID    uuid.UUID          `json:"cart_id"`
	ItemCount int                `json:"item_count"`
	Postcode  *string            `json:"postcode,omitempty"`
	Delivery  *shipping.Estimate `json:"delivery,omitempty"`
	Totals    types.Totals       `json:"totals"`
	Warnings  []string           `json:"warnings,omitempty"`
}

// ItemConfig rebuilds the pricing input stored on a cart line.
func ItemConfig(item models.CartItem) pricing.Configuration {
	return pricing.Configuration{
		CabinetTypeID:       item.CabinetTypeID,
		DoorStyleID:         item.DoorStyleID,
		ColorID:             item.ColorID,
		FinishID:            item.FinishID,
		WidthMM:             item.WidthMM,
		HeightMM:            item.HeightMM,
		DepthMM:             item.DepthMM,
		Quantity:            item.Quantity,
		ProductionOptionIDs: pricing.ParseOptionIDs(item.ProductionOptionIDs),
	}
}

// Subtotal sums the line totals of the cart.
func Subtotal(items []models.CartItem) (decimal.Decimal, int) {
	subtotal := decimal.Zero
	count := 0
	for _, item := range items {
		subtotal = subtotal.Add(item.TotalPrice)
		count += item.Quantity
	}
	return subtotal.Round(2), count
}

func toItemDTO(item models.CartItem) ItemDTO {
	return ItemDTO{
		ID:                  item.ID,
		CabinetTypeID:       item.CabinetTypeID,
		DoorStyleID:         item.DoorStyleID,
		ColorID:             item.ColorID,
		FinishID:            item.FinishID,
		WidthMM:             item.WidthMM,
		HeightMM:            item.HeightMM,
		DepthMM:             item.DepthMM,
		Quantity:            item.Quantity,
		ProductionOptionIDs: pricing.ParseOptionIDs(item.ProductionOptionIDs),
		Configuration:       item.Configuration,
		Breakdown:           item.Breakdown,
		UnitPrice:           item.UnitPrice,
		TotalPrice:          item.TotalPrice,
		SortOrder:           item.SortOrder,
	}
}

func toCartDTO(cart *models.Cart) *CartDTO {
	items := make([]ItemDTO, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, toItemDTO(item))
	}
	subtotal, count := Subtotal(cart.Items)
	return &CartDTO{
		ID:             cart.ID,
		CustomerID:     cart.CustomerID,
		Status:         cart.Status,
		Postcode:       cart.Postcode,
		Notes:          cart.Notes,
		Items:          items,
		ItemCount:      count,
		Subtotal:       subtotal,
		LastActivityAt: cart.LastActivityAt,
		UpdatedAt:      cart.UpdatedAt,
	}
}
