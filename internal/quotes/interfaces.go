package quotes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	"github.com/northcraft/cabinetry-backend/pkg/pagination"
	"github.com/northcraft/cabinetry-backend/pkg/types"
)

// Repository defines persistence for quotes, their items and versions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, quote *models.Quote) error
	FindByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.Quote, error)
	List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor) ([]models.Quote, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from []enums.QuoteStatus, to enums.QuoteStatus, updates map[string]any) (int64, error)
	FindItem(ctx context.Context, quoteID, itemID uuid.UUID) (*models.QuoteItem, error)
	CreateItem(ctx context.Context, item *models.QuoteItem) error
	SaveItem(ctx context.Context, item *models.QuoteItem) error
	DeleteItem(ctx context.Context, quoteID, itemID uuid.UUID) (int64, error)
	NextSortOrder(ctx context.Context, quoteID uuid.UUID) (int, error)
	CreateVersion(ctx context.Context, version *models.QuoteVersion) error
	ListVersions(ctx context.Context, quoteID uuid.UUID) ([]models.QuoteVersion, error)
	DueForExpiry(ctx context.Context, now time.Time, limit int) ([]models.Quote, error)
	FindCustomer(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// OrderCreator turns an accepted quote into an order inside the caller's
// transaction.
type OrderCreator interface {
	CreateFromQuote(ctx context.Context, tx *gorm.DB, quote *models.Quote, address *types.ShippingAddress) (*models.Order, error)
}

// AddressBook resolves the delivery address chosen at acceptance.
type AddressBook interface {
	FindForUser(ctx context.Context, userID, id uuid.UUID) (*models.Address, error)
	FindDefault(ctx context.Context, userID uuid.UUID) (*models.Address, error)
}
