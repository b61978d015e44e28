package quotes

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/northcraft/cabinetry-backend/internal/pricing"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	"github.com/northcraft/cabinetry-backend/pkg/types"
)

// ListFilter narrows the quote list. CustomerID is forced for customers.
type ListFilter struct {
	CustomerID *uuid.UUID
	Status     *enums.QuoteStatus
	Search     string
	Limit      int
	Cursor     string
}

// CreateDraftInput opens a quote for a customer, optionally seeded from one
// of their carts.
type CreateDraftInput struct {
	CustomerID      uuid.UUID        `json:"customer_id" validate:"required"`
	CartID          *uuid.UUID       `json:"cart_id,omitempty"`
	Postcode        *string          `json:"postcode,omitempty"`
	IncludeAssembly bool             `json:"include_assembly"`
	Discount        *decimal.Decimal `json:"discount,omitempty"`
	ValidUntil      *time.Time       `json:"valid_until,omitempty"`
	Notes           *string          `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// UpdateInput edits a draft. Nil fields are left unchanged.
type UpdateInput struct {
	Postcode        *string          `json:"postcode,omitempty"`
	IncludeAssembly *bool            `json:"include_assembly,omitempty"`
	Discount        *decimal.Decimal `json:"discount,omitempty"`
	ValidUntil      *time.Time       `json:"valid_until,omitempty"`
	Notes           *string          `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// ItemInput is a cabinet line on a draft quote.
type ItemInput struct {
	pricing.Configuration
	Description string                  `json:"description,omitempty" validate:"omitempty,max=200"`
	Options     types.ItemConfiguration `json:"configuration"`
}

type AcceptInput struct {
	AddressID *uuid.UUID `json:"address_id,omitempty"`
}

type RejectInput struct {
	Reason string `json:"reason" validate:"omitempty,max=1000"`
}

// AcceptResult links an accepted quote to the order it produced.
type AcceptResult struct {
	Quote       QuoteDTO  `json:"quote"`
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
}

// CartRef identifies the cart a quote was copied into.
type CartRef struct {
	CartID    uuid.UUID `json:"cart_id"`
	ItemCount int       `json:"item_count"`
}

// Document is a rendered file ready to stream.
type Document struct {
	FileName    string
	ContentType string
	Content     []byte
}

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
	ProductionOptionIDs []uuid.UUID             `json:"production_option_ids"`
	Configuration       types.ItemConfiguration `json:"configuration"`
	Breakdown           types.PriceBreakdown    `json:"price_breakdown"`
	UnitPrice           decimal.Decimal         `json:"unit_price"`
	TotalPrice          decimal.Decimal         `json:"total_price"`
	SortOrder           int                     `json:"sort_order"`
}

type QuoteDTO struct {
	ID                uuid.UUID         `json:"id"`
	QuoteNumber       string            `json:"quote_number"`
	CustomerID        uuid.UUID         `json:"customer_id"`
	CartID            *uuid.UUID        `json:"cart_id,omitempty"`
	OrderID           *uuid.UUID        `json:"order_id,omitempty"`
	Status            enums.QuoteStatus `json:"status"`
	Version           int               `json:"version"`
	Subtotal          decimal.Decimal   `json:"subtotal"`
	AssemblySurcharge decimal.Decimal   `json:"assembly_surcharge"`
	DeliveryFee       decimal.Decimal   `json:"delivery_fee"`
	Discount          decimal.Decimal   `json:"discount"`
	GST               decimal.Decimal   `json:"gst"`
	Total             decimal.Decimal   `json:"total"`
	Postcode          *string           `json:"postcode,omitempty"`
	IncludeAssembly   bool              `json:"include_assembly"`
	ValidUntil        *time.Time        `json:"valid_until,omitempty"`
	SentAt            *time.Time        `json:"sent_at,omitempty"`
	ViewedAt          *time.Time        `json:"viewed_at,omitempty"`
	AcceptedAt        *time.Time        `json:"accepted_at,omitempty"`
	RejectedAt        *time.Time        `json:"rejected_at,omitempty"`
	RejectionReason   *string           `json:"rejection_reason,omitempty"`
	ExpiredAt         *time.Time        `json:"expired_at,omitempty"`
	Notes             *string           `json:"notes,omitempty"`
	Items             []ItemDTO         `json:"items,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

type QuoteList struct {
	Items      []QuoteDTO `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

type VersionDTO struct {
	Version   int             `json:"version"`
	Status    string          `json:"status"`
	Snapshot  json.RawMessage `json:"snapshot"`
	CreatedBy *uuid.UUID      `json:"created_by,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// snapshot is the frozen content of a superseded quote version.
type snapshot struct {
	Items           []ItemDTO    `json:"items"`
	Totals          types.Totals `json:"totals"`
	Postcode        *string      `json:"postcode,omitempty"`
	IncludeAssembly bool         `json:"include_assembly"`
	ValidUntil      *time.Time   `json:"valid_until,omitempty"`
	SentAt          *time.Time   `json:"sent_at,omitempty"`
	Notes           *string      `json:"notes,omitempty"`
}

func toItemDTO(item models.QuoteItem) ItemDTO {
	return ItemDTO{
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
		ProductionOptionIDs: pricing.ParseOptionIDs(item.ProductionOptionIDs),
		Configuration:       item.Configuration,
		Breakdown:           item.Breakdown,
		UnitPrice:           item.UnitPrice,
		TotalPrice:          item.TotalPrice,
		SortOrder:           item.SortOrder,
	}
}

// ToDTO maps a quote and any loaded items.
func ToDTO(quote models.Quote) QuoteDTO {
	dto := QuoteDTO{
		ID:                quote.ID,
		QuoteNumber:       quote.QuoteNumber,
		CustomerID:        quote.CustomerID,
		CartID:            quote.CartID,
		OrderID:           quote.OrderID,
		Status:            quote.Status,
		Version:           quote.Version,
		Subtotal:          quote.Subtotal,
		AssemblySurcharge: quote.AssemblySurcharge,
		DeliveryFee:       quote.DeliveryFee,
		Discount:          quote.Discount,
		GST:               quote.GST,
		Total:             quote.Total,
		Postcode:          quote.Postcode,
		IncludeAssembly:   quote.IncludeAssembly,
		ValidUntil:        quote.ValidUntil,
		SentAt:            quote.SentAt,
		ViewedAt:          quote.ViewedAt,
		AcceptedAt:        quote.AcceptedAt,
		RejectedAt:        quote.RejectedAt,
		RejectionReason:   quote.RejectionReason,
		ExpiredAt:         quote.ExpiredAt,
		Notes:             quote.Notes,
		CreatedAt:         quote.CreatedAt,
		UpdatedAt:         quote.UpdatedAt,
	}
	for _, item := range quote.Items {
		dto.Items = append(dto.Items, toItemDTO(item))
	}
	return dto
}

func toVersionDTO(version models.QuoteVersion) VersionDTO {
	return VersionDTO{
		Version:   version.Version,
		Status:    version.Status,
		Snapshot:  version.Snapshot,
		CreatedBy: version.CreatedBy,
		CreatedAt: version.CreatedAt,
	}
}

func totalsOf(quote *models.Quote) types.Totals {
	return types.Totals{
		Subtotal:          quote.Subtotal,
		DeliveryFee:       quote.DeliveryFee,
		AssemblySurcharge: quote.AssemblySurcharge,
		Discount:          quote.Discount,
		GST:               quote.GST,
		Total:             quote.Total,
	}
}
