package cart

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/internal/pricing"
	"github.com/northcraft/cabinetry-backend/internal/shipping"
	"github.com/northcraft/cabinetry-backend/pkg/config"
	"github.com/northcraft/cabinetry-backend/pkg/db"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
	"github.com/northcraft/cabinetry-backend/pkg/outbox"
	"github.com/northcraft/cabinetry-backend/pkg/outbox/payloads"
	"github.com/northcraft/cabinetry-backend/pkg/types"
)

const abandonBatchSize = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// LinePricer prices a configuration destined for a stored line item.
type LinePricer interface {
	PriceLine(ctx context.Context, cfg pricing.Configuration) (types.PriceBreakdown, error)
}

// QuoteDrafter creates a draft quote from a cart inside the caller's
// transaction.
type QuoteDrafter interface {
	DraftFromCart(ctx context.Context, tx *gorm.DB, cart *models.Cart, input RequestQuoteInput) (*QuoteRef, error)
}

// Service exposes the customer cart.
type Service interface {
	Get(ctx context.Context, customerID uuid.UUID) (*CartDTO, error)
	AddItem(ctx context.Context, customerID uuid.UUID, input ItemInput) (*CartDTO, error)
	UpdateItem(ctx context.Context, customerID, itemID uuid.UUID, input ItemInput) (*CartDTO, error)
	RemoveItem(ctx context.Context, customerID, itemID uuid.UUID) (*CartDTO, error)
	Clear(ctx context.Context, customerID uuid.UUID) (*CartDTO, error)
	SetPostcode(ctx context.Context, customerID uuid.UUID, postcode string) (*Summary, error)
	Summary(ctx context.Context, customerID uuid.UUID, includeAssembly bool) (*Summary, error)
	RequestQuote(ctx context.Context, customerID uuid.UUID, input RequestQuoteInput) (*QuoteRef, error)
	AbandonIdle(ctx context.Context, idleFor time.Duration) (int, error)
}

// ServiceParams wires the cart service.
type ServiceParams struct {
	Repo      Repository
	TxRunner  txRunner
	Pricer    LinePricer
	Estimator shipping.Estimator
	Quotes    QuoteDrafter
	Emitter   outbox.Emitter
	Pricing   config.PricingConfig
	Shipping  config.ShippingConfig
	Logger    *logger.Logger
	Now       func() time.Time
}

type service struct {
	repo      Repository
	tx        txRunner
	pricer    LinePricer
	estimator shipping.Estimator
	quotes    QuoteDrafter
	emitter   outbox.Emitter
	gst       decimal.Decimal
	postcode  *regexp.Regexp
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Pricer == nil {
		return nil, fmt.Errorf("pricer required")
	}
	if params.Estimator == nil {
		return nil, fmt.Errorf("shipping estimator required")
	}
	if params.Quotes == nil {
		return nil, fmt.Errorf("quote drafter required")
	}
	if params.Emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:      params.Repo,
		tx:        params.TxRunner,
		pricer:    params.Pricer,
		estimator: params.Estimator,
		quotes:    params.Quotes,
		emitter:   params.Emitter,
		gst:       params.Pricing.GST(),
		postcode:  params.Shipping.PostcodeRegexp(),
		logg:      params.Logger,
		now:       now,
	}, nil
}

func (s *service) Get(ctx context.Context, customerID uuid.UUID) (*CartDTO, error) {
	cart, err := s.active(ctx, s.repo, customerID)
	if err != nil {
		return nil, err
	}
	return toCartDTO(cart), nil
}

func (s *service) AddItem(ctx context.Context, customerID uuid.UUID, input ItemInput) (*CartDTO, error) {
	breakdown, err := s.pricer.PriceLine(ctx, input.Configuration)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, customerID, func(repo Repository, cart *models.Cart) error {
		order, err := repo.NextSortOrder(ctx, cart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "next sort order")
		}
		item := &models.CartItem{ID: uuid.New(), CartID: cart.ID, SortOrder: order}
		applyItem(item, input, breakdown)
		if err := repo.CreateItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add cart item")
		}
		return nil
	})
}

func (s *service) UpdateItem(ctx context.Context, customerID, itemID uuid.UUID, input ItemInput) (*CartDTO, error) {
	breakdown, err := s.pricer.PriceLine(ctx, input.Configuration)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, customerID, func(repo Repository, cart *models.Cart) error {
		item, err := repo.FindItem(ctx, cart.ID, itemID)
		if err != nil {
			return notFoundOr(err, "cart item")
		}
		applyItem(item, input, breakdown)
		if err := repo.SaveItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
		}
		return nil
	})
}

func (s *service) RemoveItem(ctx context.Context, customerID, itemID uuid.UUID) (*CartDTO, error) {
	return s.mutate(ctx, customerID, func(repo Repository, cart *models.Cart) error {
		affected, err := repo.DeleteItem(ctx, cart.ID, itemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart item")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil
	})
}

func (s *service) Clear(ctx context.Context, customerID uuid.UUID) (*CartDTO, error) {
	return s.mutate(ctx, customerID, func(repo Repository, cart *models.Cart) error {
		if err := repo.ClearItems(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
		}
		return nil
	})
}

func (s *service) SetPostcode(ctx context.Context, customerID uuid.UUID, postcode string) (*Summary, error) {
	code := strings.TrimSpace(postcode)
	if !s.postcode.MatchString(code) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid postcode").
			WithDetails(map[string]string{"postcode": "invalid format"})
	}
	_, err := s.mutate(ctx, customerID, func(repo Repository, cart *models.Cart) error {
		if err := repo.Touch(ctx, cart.ID, map[string]any{"postcode": code}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "set cart postcode")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Summary(ctx, customerID, false)
}

// Summary prices the cart with delivery and GST. An unserviced postcode is
// reported as a warning rather than an error.
func (s *service) Summary(ctx context.Context, customerID uuid.UUID, includeAssembly bool) (*Summary, error) {
	cart, err := s.active(ctx, s.repo, customerID)
	if err != nil {
		return nil, err
	}
	subtotal, count := Subtotal(cart.Items)
	out := &Summary{CartID: cart.ID, ItemCount: count, Postcode: cart.Postcode}

	delivery, assembly := decimal.Zero, decimal.Zero
	if cart.Postcode != nil {
		estimate, err := s.estimator.EstimateDelivery(ctx, shipping.EstimateRequest{
			Postcode:        *cart.Postcode,
			ItemCount:       count,
			Subtotal:        subtotal,
			IncludeAssembly: includeAssembly,
		})
		switch {
		case err == nil:
			out.Delivery = estimate
			delivery = estimate.DeliveryFee
			assembly = estimate.AssemblySurcharge
			if !estimate.DeliveryAvailable {
				out.Warnings = append(out.Warnings, "delivery is not available to this postcode")
			}
			if includeAssembly && !estimate.AssemblyAvailable {
				out.Warnings = append(out.Warnings, "assembly is not available to this postcode")
			}
		case pkgerrors.Is(err, pkgerrors.CodeNotFound):
			out.Warnings = append(out.Warnings, "postcode not serviced")
		default:
			return nil, err
		}
	} else {
		out.Warnings = append(out.Warnings, "set a postcode to estimate delivery")
	}
	for _, item := range cart.Items {
		out.Warnings = append(out.Warnings, item.Breakdown.Warnings...)
	}
	out.Totals = types.ComputeTotals(subtotal, delivery, assembly, decimal.Zero, s.gst)
	return out, nil
}

func (s *service) RequestQuote(ctx context.Context, customerID uuid.UUID, input RequestQuoteInput) (*QuoteRef, error) {
	var ref *QuoteRef
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.FindActive(ctx, customerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}
		if len(cart.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}
		ref, err = s.quotes.DraftFromCart(ctx, tx, cart, input)
		if err != nil {
			return err
		}
		affected, err := repo.UpdateStatus(ctx, cart.ID, enums.CartStatusActive, enums.CartStatusConverted, map[string]any{
			"quote_id":         ref.QuoteID,
			"last_activity_at": s.now(),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "convert cart")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart changed while quoting")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ref, nil
}

// AbandonIdle closes active carts untouched for idleFor and emits
// cart.abandoned for those that still held items.
func (s *service) AbandonIdle(ctx context.Context, idleFor time.Duration) (int, error) {
	if idleFor <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "idle duration must be positive")
	}
	carts, err := s.repo.IdleActive(ctx, s.now().Add(-idleFor), abandonBatchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load idle carts")
	}
	abandoned := 0
	for i := range carts {
		cart := carts[i]
		changed := false
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			affected, err := s.repo.WithTx(tx).UpdateStatus(ctx, cart.ID, enums.CartStatusActive, enums.CartStatusAbandoned, nil)
			if err != nil || affected == 0 {
				return err
			}
			changed = true
			if len(cart.Items) == 0 {
				return nil
			}
			subtotal, count := Subtotal(cart.Items)
			return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCartAbandoned,
				AggregateType: enums.AggregateCart,
				AggregateID:   cart.ID,
				Data: payloads.CartAbandonedEvent{
					CartID:         cart.ID,
					CustomerID:     cart.CustomerID,
					ItemCount:      count,
					Subtotal:       subtotal,
					LastActivityAt: cart.LastActivityAt,
				},
			})
		})
		if err != nil {
			return abandoned, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "abandon cart")
		}
		if changed {
			abandoned++
		}
	}
	return abandoned, nil
}

// mutate applies fn to the customer's active cart in a transaction, bumps
// the activity timestamp and returns the reloaded cart.
func (s *service) mutate(ctx context.Context, customerID uuid.UUID, fn func(repo Repository, cart *models.Cart) error) (*CartDTO, error) {
	var cartID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.active(ctx, repo, customerID)
		if err != nil {
			return err
		}
		cartID = cart.ID
		if err := fn(repo, cart); err != nil {
			return err
		}
		if err := repo.Touch(ctx, cart.ID, map[string]any{"last_activity_at": s.now()}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "touch cart")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	cart, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		return nil, notFoundOr(err, "cart")
	}
	return toCartDTO(cart), nil
}

// active loads the customer's active cart, creating one on first use.
func (s *service) active(ctx context.Context, repo Repository, customerID uuid.UUID) (*models.Cart, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer required")
	}
	cart, err := repo.FindActive(ctx, customerID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	cart = &models.Cart{
		ID:             uuid.New(),
		CustomerID:     customerID,
		Status:         enums.CartStatusActive,
		LastActivityAt: s.now(),
	}
	if err := repo.Create(ctx, cart); err != nil {
		if db.IsUniqueViolation(err, "") {
			found, findErr := repo.FindActive(ctx, customerID)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, findErr, "load cart")
			}
			return found, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart")
	}
	return cart, nil
}

func applyItem(item *models.CartItem, input ItemInput, breakdown types.PriceBreakdown) {
	item.CabinetTypeID = input.CabinetTypeID
	item.DoorStyleID = input.DoorStyleID
	item.ColorID = input.ColorID
	item.FinishID = input.FinishID
	item.WidthMM = input.WidthMM
	item.HeightMM = input.HeightMM
	item.DepthMM = input.DepthMM
	item.Quantity = input.Quantity
	item.ProductionOptionIDs = pricing.OptionIDs(input.ProductionOptionIDs)
	item.Configuration = input.Options
	item.Breakdown = breakdown
	item.UnitPrice = breakdown.UnitPrice
	item.TotalPrice = breakdown.Total
}

func notFoundOr(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load "+entity)
}
