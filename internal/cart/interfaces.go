package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
)

// Repository defines the persistence surface required by the cart service and
// by the quote and checkout flows that consume carts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActive(ctx context.Context, customerID uuid.UUID) (*models.Cart, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) error
	Touch(ctx context.Context, cartID uuid.UUID, updates map[string]any) error
	UpdateStatus(ctx context.Context, cartID uuid.UUID, from, to enums.CartStatus, updates map[string]any) (int64, error)
	FindItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error)
	CreateItem(ctx context.Context, item *models.CartItem) error
	SaveItem(ctx context.Context, item *models.CartItem) error
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) (int64, error)
	ClearItems(ctx context.Context, cartID uuid.UUID) error
	NextSortOrder(ctx context.Context, cartID uuid.UUID) (int, error)
	IdleActive(ctx context.Context, before time.Time, limit int) ([]models.Cart, error)
}
