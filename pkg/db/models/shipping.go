package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/northcraft/cabinetry-backend/pkg/enums"
)

// PostcodeZone controls delivery eligibility, lead time and assembly for one
// postcode.
type PostcodeZone struct {
	ID                 uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Postcode           string                    `gorm:"column:postcode;not null;uniqueIndex"`
	Suburb             string                    `gorm:"column:suburb;not null"`
	State              string                    `gorm:"column:state;not null"`
	Lat                *float64                  `gorm:"column:lat"`
	Lng                *float64                  `gorm:"column:lng"`
	IsMetro            bool                      `gorm:"column:is_metro;not null;default:false"`
	IsRemote           bool                      `gorm:"column:is_remote;not null;default:false"`
	DeliveryAvailable  bool                      `gorm:"column:delivery_available;not null"`
	AssemblyAvailable  bool                      `gorm:"column:assembly_available;not null;default:false"`
	LeadTimeDays       int                       `gorm:"column:lead_time_days;not null"`
	RateCardID         *uuid.UUID                `gorm:"column:rate_card_id;type:uuid"`
	AssemblyZoneID     *uuid.UUID                `gorm:"column:assembly_zone_id;type:uuid"`
	AssemblyZoneSource *enums.AssemblyZoneSource `gorm:"column:assembly_zone_source"`
	Notes              *string                   `gorm:"column:notes"`
	CreatedAt          time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

// AssemblySurchargeZone is a circular region whose surcharges apply to the
// postcodes inside it.
type AssemblySurchargeZone struct {
	ID                       uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name                     string          `gorm:"column:name;not null;uniqueIndex"`
	CenterLat                float64         `gorm:"column:center_lat;not null"`
	CenterLng                float64         `gorm:"column:center_lng;not null"`
	RadiusKM                 float64         `gorm:"column:radius_km;not null"`
	AssemblySurchargePercent decimal.Decimal `gorm:"column:assembly_surcharge_percent;type:numeric(5,2);not null"`
	DeliverySurchargePercent decimal.Decimal `gorm:"column:delivery_surcharge_percent;type:numeric(5,2);not null"`
	IsActive                 bool            `gorm:"column:is_active;not null"`
	LastAppliedAt            *time.Time      `gorm:"column:last_applied_at"`
	CreatedAt                time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// RateCard holds the delivery and assembly pricing applied to postcodes.
type RateCard struct {
	ID                  uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name                string          `gorm:"column:name;not null;uniqueIndex"`
	BaseDeliveryFee     decimal.Decimal `gorm:"column:base_delivery_fee;type:numeric(12,2);not null"`
	PerItemFee          decimal.Decimal `gorm:"column:per_item_fee;type:numeric(12,2);not null"`
	MetroMultiplier     decimal.Decimal `gorm:"column:metro_multiplier;type:numeric(6,3);not null"`
	RemoteMultiplier    decimal.Decimal `gorm:"column:remote_multiplier;type:numeric(6,3);not null"`
	AssemblyRatePercent decimal.Decimal `gorm:"column:assembly_rate_percent;type:numeric(5,2);not null"`
	MinOrderValue       decimal.Decimal `gorm:"column:min_order_value;type:numeric(12,2);not null"`
	IsDefault           bool            `gorm:"column:is_default;not null;default:false"`
	IsActive            bool            `gorm:"column:is_active;not null"`
	CreatedAt           time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
