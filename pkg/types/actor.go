package types

import (
	"github.com/google/uuid"

	"github.com/northcraft/cabinetry-backend/pkg/enums"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// IsAdmin reports whether the actor may act on any customer's records.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.UserRoleAdmin
}

// Valid reports whether the actor carries an identity and a known role.
func (a Actor) Valid() bool {
	return a.UserID != uuid.Nil && a.Role.IsValid()
}
