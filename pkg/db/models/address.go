package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/northcraft/cabinetry-backend/pkg/types"
)

// Address is an entry in a customer's address book.
type Address struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	Label     string    `gorm:"column:label;not null"`
	Recipient string    `gorm:"column:recipient;not null"`
	Phone     *string   `gorm:"column:phone"`
	Line1     string    `gorm:"column:line1;not null"`
	Line2     *string   `gorm:"column:line2"`
	Suburb    string    `gorm:"column:suburb;not null"`
	State     string    `gorm:"column:state;not null"`
	Postcode  string    `gorm:"column:postcode;not null"`
	Country   string    `gorm:"column:country;not null;default:'AU'"`
	Lat       *float64  `gorm:"column:lat"`
	Lng       *float64  `gorm:"column:lng"`
	IsDefault bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Snapshot copies the address into the form stored on orders.
func (a Address) Snapshot() types.ShippingAddress {
	out := types.ShippingAddress{
		Recipient: a.Recipient,
		Line1:     a.Line1,
		Suburb:    a.Suburb,
		State:     a.State,
		Postcode:  a.Postcode,
		Country:   a.Country,
		Lat:       a.Lat,
		Lng:       a.Lng,
	}
	if a.Phone != nil {
		out.Phone = *a.Phone
	}
	if a.Line2 != nil {
		out.Line2 = *a.Line2
	}
	return out
}
