package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	"github.com/northcraft/cabinetry-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.Order, error)
	List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (int64, error)
}

// PaymentPlanner keeps an order's payment schedule in step with the order.
type PaymentPlanner interface {
	Create(ctx context.Context, tx *gorm.DB, order *models.Order) ([]models.PaymentSchedule, error)
	OnOrderStatus(ctx context.Context, tx *gorm.DB, order *models.Order, to enums.OrderStatus) error
	CancelOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}
