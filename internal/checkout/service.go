package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/internal/cart"
	"github.com/northcraft/cabinetry-backend/internal/orders"
	"github.com/northcraft/cabinetry-backend/internal/shipping"
	"github.com/northcraft/cabinetry-backend/pkg/config"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
	"github.com/northcraft/cabinetry-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderCreator interface {
	CreateFromCart(ctx context.Context, tx *gorm.DB, cart *models.Cart, input orders.CartOrderInput) (*models.Order, error)
}

type addressBook interface {
	FindForUser(ctx context.Context, userID, id uuid.UUID) (*models.Address, error)
}

// Service executes checkout orchestration.
type Service interface {
	Execute(ctx context.Context, customerID uuid.UUID, input Input) (*orders.OrderDTO, error)
}

// Input captures the delivery decisions made at checkout.
type Input struct {
	AddressID       uuid.UUID `json:"address_id" validate:"required"`
	IncludeAssembly bool      `json:"include_assembly"`
	Notes           *string   `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// ServiceParams wires the checkout service.
type ServiceParams struct {
	TxRunner  txRunner
	Carts     cart.Repository
	Pricer    cart.LinePricer
	Estimator shipping.Estimator
	Orders    orderCreator
	Addresses addressBook
	Pricing   config.PricingConfig
	Logger    *logger.Logger
	Now       func() time.Time
}

type service struct {
	tx        txRunner
	carts     cart.Repository
	pricer    cart.LinePricer
	estimator shipping.Estimator
	orders    orderCreator
	addresses addressBook
	gst       decimal.Decimal
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Pricer == nil {
		return nil, fmt.Errorf("pricer required")
	}
	if params.Estimator == nil {
		return nil, fmt.Errorf("shipping estimator required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order creator required")
	}
	if params.Addresses == nil {
		return nil, fmt.Errorf("address book required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		tx:        params.TxRunner,
		carts:     params.Carts,
		pricer:    params.Pricer,
		estimator: params.Estimator,
		orders:    params.Orders,
		addresses: params.Addresses,
		gst:       params.Pricing.GST(),
		logg:      params.Logger,
		now:       now,
	}, nil
}

// Execute re-prices the customer's active cart and turns it into an order
// with its payment schedule. The cart is marked checked_out in the same
// transaction.
func (s *service) Execute(ctx context.Context, customerID uuid.UUID, input Input) (*orders.OrderDTO, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer required")
	}
	if input.AddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id required").
			WithDetails(map[string]string{"address_id": "required"})
	}
	address, err := s.addresses.FindForUser(ctx, customerID, input.AddressID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load address")
	}
	record, err := s.carts.FindActive(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if len(record.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}

	eligibility, err := s.deliverable(ctx, address.Postcode, input.IncludeAssembly)
	if err != nil {
		return nil, err
	}
	if err := s.reprice(ctx, record.Items); err != nil {
		return nil, err
	}
	subtotal, count := cart.Subtotal(record.Items)
	estimate, err := s.estimator.EstimateDelivery(ctx, shipping.EstimateRequest{
		Postcode:        address.Postcode,
		ItemCount:       count,
		Subtotal:        subtotal,
		IncludeAssembly: input.IncludeAssembly,
	})
	if err != nil {
		return nil, err
	}
	totals := types.ComputeTotals(subtotal, estimate.DeliveryFee, estimate.AssemblySurcharge, decimal.Zero, s.gst)
	lead := estimate.LeadTimeDays
	if lead <= 0 {
		lead = eligibility.LeadTimeDays
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.carts.WithTx(tx)
		current, err := repo.FindByID(ctx, record.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload cart")
		}
		if current.Status != enums.CartStatusActive {
			return pkgerrors.New(pkgerrors.CodeConflict, "cart already processed")
		}
		if !sameLines(current.Items, record.Items) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart changed during checkout")
		}
		for i := range record.Items {
			if err := repo.SaveItem(ctx, &record.Items[i]); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store repriced item")
			}
		}
		order, err = s.orders.CreateFromCart(ctx, tx, record, orders.CartOrderInput{
			Address:         address.Snapshot(),
			IncludeAssembly: input.IncludeAssembly,
			Notes:           trimmed(input.Notes),
			Totals:          totals,
			LeadTimeDays:    lead,
			Actor:           &customerID,
		})
		if err != nil {
			return err
		}
		affected, err := repo.UpdateStatus(ctx, record.ID, enums.CartStatusActive, enums.CartStatusCheckedOut, map[string]any{
			"order_id":         order.ID,
			"last_activity_at": s.now(),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "close cart")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "cart already processed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"cart_id":      record.ID.String(),
			"order_number": order.OrderNumber,
			"total":        order.Total.StringFixed(2),
		})
		s.logg.Info(logCtx, "checkout completed")
	}
	dto := orders.ToDTO(*order)
	return &dto, nil
}

// deliverable rejects postcodes outside the delivery network and assembly
// requests where assembly is not offered.
func (s *service) deliverable(ctx context.Context, postcode string, includeAssembly bool) (*shipping.Eligibility, error) {
	eligibility, err := s.estimator.Lookup(ctx, postcode)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "we do not deliver to this postcode").
				WithDetails(map[string]string{"postcode": postcode})
		}
		return nil, err
	}
	if !eligibility.DeliveryAvailable {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "we do not deliver to this postcode").
			WithDetails(map[string]string{"postcode": postcode})
	}
	if includeAssembly && !eligibility.AssemblyAvailable {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assembly is not available for this postcode").
			WithDetails(map[string]string{"postcode": postcode})
	}
	return eligibility, nil
}

// reprice refreshes every line at current catalog rates.
func (s *service) reprice(ctx context.Context, items []models.CartItem) error {
	for i := range items {
		breakdown, err := s.pricer.PriceLine(ctx, cart.ItemConfig(items[i]))
		if err != nil {
			return err
		}
		items[i].Breakdown = breakdown
		items[i].UnitPrice = breakdown.UnitPrice
		items[i].TotalPrice = breakdown.Total
	}
	return nil
}

func sameLines(current, priced []models.CartItem) bool {
	if len(current) != len(priced) {
		return false
	}
	quantities := make(map[uuid.UUID]int, len(current))
	for _, item := range current {
		quantities[item.ID] = item.Quantity
	}
	for _, item := range priced {
		if qty, ok := quantities[item.ID]; !ok || qty != item.Quantity {
			return false
		}
	}
	return true
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
