package shipping

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
)

// PostcodeZoneInput creates or replaces a postcode zone.
type PostcodeZoneInput struct {
	Postcode          string     `json:"postcode" validate:"required,max=10"`
	Suburb            string     `json:"suburb" validate:"required,max=100"`
	State             string     `json:"state" validate:"required,max=32"`
	Lat               *float64   `json:"lat,omitempty" validate:"omitempty,latitude"`
	Lng               *float64   `json:"lng,omitempty" validate:"omitempty,longitude"`
	IsMetro           bool       `json:"is_metro"`
	IsRemote          bool       `json:"is_remote"`
	DeliveryAvailable *bool      `json:"delivery_available,omitempty"`
	AssemblyAvailable bool       `json:"assembly_available"`
	LeadTimeDays      *int       `json:"lead_time_days,omitempty" validate:"omitempty,gte=0,lte=365"`
	RateCardID        *uuid.UUID `json:"rate_card_id,omitempty"`
	Notes             *string    `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// ZoneFilter narrows the admin postcode list.
type ZoneFilter struct {
	Search string
	State  string
	Metro  *bool
	Remote *bool
	Limit  int
	Cursor string
}

type PostcodeZoneDTO struct {
	ID                 uuid.UUID                 `json:"id"`
	Postcode           string                    `json:"postcode"`
	Suburb             string                    `json:"suburb"`
	State              string                    `json:"state"`
	Lat                *float64                  `json:"lat,omitempty"`
	Lng                *float64                  `json:"lng,omitempty"`
	IsMetro            bool                      `json:"is_metro"`
	IsRemote           bool                      `json:"is_remote"`
	DeliveryAvailable  bool                      `json:"delivery_available"`
	AssemblyAvailable  bool                      `json:"assembly_available"`
	LeadTimeDays       int                       `json:"lead_time_days"`
	RateCardID         *uuid.UUID                `json:"rate_card_id,omitempty"`
	AssemblyZoneID     *uuid.UUID                `json:"assembly_zone_id,omitempty"`
	AssemblyZoneSource *enums.AssemblyZoneSource `json:"assembly_zone_source,omitempty"`
	Notes              *string                   `json:"notes,omitempty"`
	UpdatedAt          time.Time                 `json:"updated_at"`
}

type ZoneList struct {
	Items      []PostcodeZoneDTO `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// AssemblyZoneInput creates or replaces an assembly surcharge zone.
type AssemblyZoneInput struct {
	Name                     string          `json:"name" validate:"required,max=120"`
	CenterLat                float64         `json:"center_lat" validate:"latitude"`
	CenterLng                float64         `json:"center_lng" validate:"longitude"`
	RadiusKM                 float64         `json:"radius_km" validate:"gt=0,lte=2000"`
	AssemblySurchargePercent decimal.Decimal `json:"assembly_surcharge_percent"`
	DeliverySurchargePercent decimal.Decimal `json:"delivery_surcharge_percent"`
	IsActive                 *bool           `json:"is_active,omitempty"`
}

type AssemblyZoneDTO struct {
	ID                       uuid.UUID       `json:"id"`
	Name                     string          `json:"name"`
	CenterLat                float64         `json:"center_lat"`
	CenterLng                float64         `json:"center_lng"`
	RadiusKM                 float64         `json:"radius_km"`
	AssemblySurchargePercent decimal.Decimal `json:"assembly_surcharge_percent"`
	DeliverySurchargePercent decimal.Decimal `json:"delivery_surcharge_percent"`
	IsActive                 bool            `json:"is_active"`
	LastAppliedAt            *time.Time      `json:"last_applied_at,omitempty"`
	UpdatedAt                time.Time       `json:"updated_at"`
}

// RateCardInput creates or replaces a rate card.
type RateCardInput struct {
	Name                string          `json:"name" validate:"required,max=120"`
	BaseDeliveryFee     decimal.Decimal `json:"base_delivery_fee"`
	PerItemFee          decimal.Decimal `json:"per_item_fee"`
	MetroMultiplier     decimal.Decimal `json:"metro_multiplier"`
	RemoteMultiplier    decimal.Decimal `json:"remote_multiplier"`
	AssemblyRatePercent decimal.Decimal `json:"assembly_rate_percent"`
	MinOrderValue       decimal.Decimal `json:"min_order_value"`
	IsDefault           bool            `json:"is_default"`
	IsActive            *bool           `json:"is_active,omitempty"`
}

type RateCardDTO struct {
	ID                  uuid.UUID       `json:"id"`
	Name                string          `json:"name"`
	BaseDeliveryFee     decimal.Decimal `json:"base_delivery_fee"`
	PerItemFee          decimal.Decimal `json:"per_item_fee"`
	MetroMultiplier     decimal.Decimal `json:"metro_multiplier"`
	RemoteMultiplier    decimal.Decimal `json:"remote_multiplier"`
	AssemblyRatePercent decimal.Decimal `json:"assembly_rate_percent"`
	MinOrderValue       decimal.Decimal `json:"min_order_value"`
	IsDefault           bool            `json:"is_default"`
	IsActive            bool            `json:"is_active"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// Eligibility is the public answer to "do you deliver to my postcode".
type Eligibility struct {
	Postcode                 string          `json:"postcode"`
	Suburb                   string          `json:"suburb"`
	State                    string          `json:"state"`
	DeliveryAvailable        bool            `json:"delivery_available"`
	AssemblyAvailable        bool            `json:"assembly_available"`
	LeadTimeDays             int             `json:"lead_time_days"`
	IsMetro                  bool            `json:"is_metro"`
	IsRemote                 bool            `json:"is_remote"`
	RateCard                 *RateCardDTO    `json:"rate_card,omitempty"`
	AssemblyZone             *string         `json:"assembly_zone,omitempty"`
	AssemblySurchargePercent decimal.Decimal `json:"assembly_surcharge_percent"`
	DeliverySurchargePercent decimal.Decimal `json:"delivery_surcharge_percent"`
}

// EstimateRequest describes the basket being delivered.
type EstimateRequest struct {
	Postcode        string          `json:"postcode" validate:"required"`
	ItemCount       int             `json:"item_count" validate:"gte=0"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	IncludeAssembly bool            `json:"include_assembly"`
}

// Estimate is the delivery and assembly cost for a basket.
type Estimate struct {
	Postcode              string          `json:"postcode"`
	DeliveryAvailable     bool            `json:"delivery_available"`
	AssemblyAvailable     bool            `json:"assembly_available"`
	DeliveryFee           decimal.Decimal `json:"delivery_fee"`
	DeliveryWaived        bool            `json:"delivery_waived"`
	AssemblySurcharge     decimal.Decimal `json:"assembly_surcharge"`
	LeadTimeDays          int             `json:"lead_time_days"`
	EstimatedDeliveryDate time.Time       `json:"estimated_delivery_date"`
}

// RadiusCandidate is one postcode inside a zone's radius.
type RadiusCandidate struct {
	PostcodeZoneID uuid.UUID                 `json:"postcode_zone_id"`
	Postcode       string                    `json:"postcode"`
	Suburb         string                    `json:"suburb"`
	DistanceKM     float64                   `json:"distance_km"`
	CurrentZoneID  *uuid.UUID                `json:"current_zone_id,omitempty"`
	CurrentSource  *enums.AssemblyZoneSource `json:"current_source,omitempty"`
	WouldChange    bool                      `json:"would_change"`
	ManualLocked   bool                      `json:"manual_locked"`
}

type RadiusPreview struct {
	ZoneID     uuid.UUID         `json:"zone_id"`
	RadiusKM   float64           `json:"radius_km"`
	Candidates []RadiusCandidate `json:"candidates"`
	Outside    []uuid.UUID       `json:"would_clear"`
}

// ApplyResult counts the rows touched by a radius application.
type ApplyResult struct {
	Assigned      int `json:"assigned"`
	Cleared       int `json:"cleared"`
	SkippedManual int `json:"skipped_manual"`
}

// GeocodeResult summarises a bulk geocoding run.
type GeocodeResult struct {
	Updated int      `json:"updated"`
	Failed  []string `json:"failed,omitempty"`
}

// RowError reports a rejected spreadsheet row (1-based, header is row 1).
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

type ImportResult struct {
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Skipped int        `json:"skipped"`
	Errors  []RowError `json:"errors,omitempty"`
}

func zoneDTO(m models.PostcodeZone) PostcodeZoneDTO {
	return PostcodeZoneDTO{
		ID:                 m.ID,
		Postcode:           m.Postcode,
		Suburb:             m.Suburb,
		State:              m.State,
		Lat:                m.Lat,
		Lng:                m.Lng,
		IsMetro:            m.IsMetro,
		IsRemote:           m.IsRemote,
		DeliveryAvailable:  m.DeliveryAvailable,
		AssemblyAvailable:  m.AssemblyAvailable,
		LeadTimeDays:       m.LeadTimeDays,
		RateCardID:         m.RateCardID,
		AssemblyZoneID:     m.AssemblyZoneID,
		AssemblyZoneSource: m.AssemblyZoneSource,
		Notes:              m.Notes,
		UpdatedAt:          m.UpdatedAt,
	}
}

func assemblyZoneDTO(m models.AssemblySurchargeZone) AssemblyZoneDTO {
	return AssemblyZoneDTO{
		ID:                       m.ID,
		Name:                     m.Name,
		CenterLat:                m.CenterLat,
		CenterLng:                m.CenterLng,
		RadiusKM:                 m.RadiusKM,
		AssemblySurchargePercent: m.AssemblySurchargePercent,
		DeliverySurchargePercent: m.DeliverySurchargePercent,
		IsActive:                 m.IsActive,
		LastAppliedAt:            m.LastAppliedAt,
		UpdatedAt:                m.UpdatedAt,
	}
}

func rateCardDTO(m models.RateCard) RateCardDTO {
	return RateCardDTO{
		ID:                  m.ID,
		Name:                m.Name,
		BaseDeliveryFee:     m.BaseDeliveryFee,
		PerItemFee:          m.PerItemFee,
		MetroMultiplier:     m.MetroMultiplier,
		RemoteMultiplier:    m.RemoteMultiplier,
		AssemblyRatePercent: m.AssemblyRatePercent,
		MinOrderValue:       m.MinOrderValue,
		IsDefault:           m.IsDefault,
		IsActive:            m.IsActive,
		UpdatedAt:           m.UpdatedAt,
	}
}
