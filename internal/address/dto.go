package address

import (
	"time"

	"github.com/google/uuid"

	"github.com/northcraft/cabinetry-backend/pkg/db/models"
)

// CreateAddressRequest is the payload for adding an address book entry.
type CreateAddressRequest struct {
	Label     string   `json:"label" validate:"required,max=60"`
	Recipient string   `json:"recipient" validate:"required,max=120"`
	Phone     *string  `json:"phone,omitempty" validate:"omitempty,max=32"`
	Line1     string   `json:"line1" validate:"required,max=200"`
	Line2     *string  `json:"line2,omitempty" validate:"omitempty,max=200"`
	Suburb    string   `json:"suburb" validate:"required,max=100"`
	State     string   `json:"state" validate:"required,max=32"`
	Postcode  string   `json:"postcode" validate:"required,max=10"`
	Country   string   `json:"country,omitempty" validate:"omitempty,len=2"`
	Lat       *float64 `json:"lat,omitempty" validate:"omitempty,latitude"`
	Lng       *float64 `json:"lng,omitempty" validate:"omitempty,longitude"`
	IsDefault bool     `json:"is_default"`
}

// UpdateAddressRequest patches an existing entry; nil fields are left alone.
type UpdateAddressRequest struct {
	Label     *string  `json:"label,omitempty" validate:"omitempty,min=1,max=60"`
	Recipient *string  `json:"recipient,omitempty" validate:"omitempty,min=1,max=120"`
	Phone     *string  `json:"phone,omitempty" validate:"omitempty,max=32"`
	Line1     *string  `json:"line1,omitempty" validate:"omitempty,min=1,max=200"`
	Line2     *string  `json:"line2,omitempty" validate:"omitempty,max=200"`
	Suburb    *string  `json:"suburb,omitempty" validate:"omitempty,min=1,max=100"`
	State     *string  `json:"state,omitempty" validate:"omitempty,min=1,max=32"`
	Postcode  *string  `json:"postcode,omitempty" validate:"omitempty,max=10"`
	Lat       *float64 `json:"lat,omitempty" validate:"omitempty,latitude"`
	Lng       *float64 `json:"lng,omitempty" validate:"omitempty,longitude"`
}

// SuggestRequest is the autocomplete query.
type SuggestRequest struct {
	Query string `json:"query" validate:"required,min=3,max=200"`
}

// Suggestion is a single autocomplete prediction.
type Suggestion struct {
	PlaceID     string `json:"place_id"`
	Description string `json:"description"`
}

// ResolveRequest asks for a prediction to be expanded into address fields.
type ResolveRequest struct {
	PlaceID string `json:"place_id" validate:"required"`
}

// ResolvedAddress prefills the create form from a Places lookup.
type ResolvedAddress struct {
	Line1    string   `json:"line1"`
	Suburb   string   `json:"suburb"`
	State    string   `json:"state"`
	Postcode string   `json:"postcode"`
	Country  string   `json:"country"`
	Lat      *float64 `json:"lat,omitempty"`
	Lng      *float64 `json:"lng,omitempty"`
}

// AddressDTO is the API shape of an address book entry.
type AddressDTO struct {
	ID        uuid.UUID `json:"id"`
	Label     string    `json:"label"`
	Recipient string    `json:"recipient"`
	Phone     *string   `json:"phone,omitempty"`
	Line1     string    `json:"line1"`
	Line2     *string   `json:"line2,omitempty"`
	Suburb    string    `json:"suburb"`
	State     string    `json:"state"`
	Postcode  string    `json:"postcode"`
	Country   string    `json:"country"`
	Lat       *float64  `json:"lat,omitempty"`
	Lng       *float64  `json:"lng,omitempty"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func FromModel(a models.Address) AddressDTO {
	return AddressDTO{
		ID:        a.ID,
		Label:     a.Label,
		Recipient: a.Recipient,
		Phone:     a.Phone,
		Line1:     a.Line1,
		Line2:     a.Line2,
		Suburb:    a.Suburb,
		State:     a.State,
		Postcode:  a.Postcode,
		Country:   a.Country,
		Lat:       a.Lat,
		Lng:       a.Lng,
		IsDefault: a.IsDefault,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}
