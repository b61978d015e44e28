package quotes

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
	"github.com/northcraft/cabinetry-backend/internal/pricing"
	"github.com/northcraft/cabinetry-backend/internal/shipping"
	"github.com/northcraft/cabinetry-backend/pkg/config"
	"github.com/northcraft/cabinetry-backend/pkg/db"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/documents"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
	"github.com/northcraft/cabinetry-backend/pkg/outbox"
	"github.com/northcraft/cabinetry-backend/pkg/pagination"
	"github.com/northcraft/cabinetry-backend/pkg/types"
)

const (
	expiryBatchSize    = 200
	defaultDescription = "Cabinet"
)

var (
	openStatuses      = []enums.QuoteStatus{enums.QuoteStatusSent, enums.QuoteStatusViewed}
	revisableStatuses = []enums.QuoteStatus{
		enums.QuoteStatusSent,
		enums.QuoteStatusViewed,
		enums.QuoteStatusRejected,
		enums.QuoteStatusExpired,
	}
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages quotes from draft to acceptance.
type Service interface {
	CreateDraft(ctx context.Context, actorID uuid.UUID, input CreateDraftInput) (*QuoteDTO, error)
	Get(ctx context.Context, customerID *uuid.UUID, id uuid.UUID) (*QuoteDTO, error)
	List(ctx context.Context, filter ListFilter) (*QuoteList, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*QuoteDTO, error)
	AddItem(ctx context.Context, id uuid.UUID, input ItemInput) (*QuoteDTO, error)
	UpdateItem(ctx context.Context, id, itemID uuid.UUID, input ItemInput) (*QuoteDTO, error)
	RemoveItem(ctx context.Context, id, itemID uuid.UUID) (*QuoteDTO, error)
	Recalculate(ctx context.Context, id uuid.UUID) (*QuoteDTO, error)
	Send(ctx context.Context, actorID, id uuid.UUID) (*QuoteDTO, error)
	MarkViewed(ctx context.Context, customerID, id uuid.UUID) (*QuoteDTO, error)
	Accept(ctx context.Context, customerID, id uuid.UUID, input AcceptInput) (*AcceptResult, error)
	Reject(ctx context.Context, customerID, id uuid.UUID, input RejectInput) (*QuoteDTO, error)
	Revise(ctx context.Context, actorID, id uuid.UUID) (*QuoteDTO, error)
	ExpireDue(ctx context.Context) (int, error)
	ConvertToCart(ctx context.Context, customerID, id uuid.UUID) (*CartRef, error)
	Versions(ctx context.Context, customerID *uuid.UUID, id uuid.UUID) ([]VersionDTO, error)
	PDF(ctx context.Context, customerID *uuid.UUID, id uuid.UUID) (*Document, error)
	DraftFromCart(ctx context.Context, tx *gorm.DB, c *models.Cart, input cart.RequestQuoteInput) (*cart.QuoteRef, error)
}

// ServiceParams wires the quotes service.
type ServiceParams struct {
	Repo      Repository
	Carts     cart.Repository
	TxRunner  txRunner
	Pricer    cart.LinePricer
	Estimator shipping.Estimator
	Orders    OrderCreator
	Addresses AddressBook
	Emitter   outbox.Emitter
	Pricing   config.PricingConfig
	Business  config.BusinessConfig
	Logger    *logger.Logger
	Now       func() time.Time
}

type service struct {
	repo      Repository
	carts     cart.Repository
	tx        txRunner
	pricer    cart.LinePricer
	estimator shipping.Estimator
	orders    OrderCreator
	addresses AddressBook
	emitter   outbox.Emitter
	gst       decimal.Decimal
	validity  int
	currency  string
	business  documents.Business
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds a quotes service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("quotes repository required")
	}
	if params.Carts == nil {
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
	if params.Orders == nil {
		return nil, fmt.Errorf("order creator required")
	}
	if params.Addresses == nil {
		return nil, fmt.Errorf("address book required")
	}
	if params.Emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	validity := params.Pricing.QuoteValidityDays
	if validity <= 0 {
		validity = 30
	}
	return &service{
		repo:      params.Repo,
		carts:     params.Carts,
		tx:        params.TxRunner,
		pricer:    params.Pricer,
		estimator: params.Estimator,
		orders:    params.Orders,
		addresses: params.Addresses,
		emitter:   params.Emitter,
		gst:       params.Pricing.GST(),
		validity:  validity,
		currency:  params.Pricing.Currency,
		business:  documents.NewBusiness(params.Business),
		logg:      params.Logger,
		now:       now,
	}, nil
}

func (s *service) CreateDraft(ctx context.Context, actorID uuid.UUID, input CreateDraftInput) (*QuoteDTO, error) {
	if err := validateDiscount(input.Discount); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindCustomer(ctx, input.CustomerID); err != nil {
		return nil, notFoundOr(err, "customer")
	}
	var items []models.QuoteItem
	var source *models.Cart
	if input.CartID != nil {
		c, err := s.carts.FindByID(ctx, *input.CartID)
		if err != nil || c.CustomerID != input.CustomerID {
			if err == nil || errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}
		source = c
		items = itemsFromCart(c.Items)
	}

	var id uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		quote, err := s.newQuote(tx, input.CustomerID, &actorID)
		if err != nil {
			return err
		}
		quote.Postcode = trimmed(input.Postcode)
		if quote.Postcode == nil && source != nil {
			quote.Postcode = source.Postcode
		}
		quote.IncludeAssembly = input.IncludeAssembly
		quote.ValidUntil = input.ValidUntil
		quote.Notes = trimmed(input.Notes)
		if input.Discount != nil {
			quote.Discount = input.Discount.Round(2)
		}
		if source != nil {
			quote.CartID = &source.ID
		}
		quote.Items = attachItems(quote.ID, items)
		if err := s.applyTotals(ctx, quote); err != nil {
			return err
		}
		if err := s.repo.WithTx(tx).Create(ctx, quote); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create quote")
		}
		id = quote.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, nil, id)
}

// DraftFromCart copies a cart into a new draft quote inside the caller's
// transaction.
func (s *service) DraftFromCart(ctx context.Context, tx *gorm.DB, c *models.Cart, input cart.RequestQuoteInput) (*cart.QuoteRef, error) {
	if c == nil || len(c.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	customerID := c.CustomerID
	quote, err := s.newQuote(tx, customerID, &customerID)
	if err != nil {
		return nil, err
	}
	cartID := c.ID
	quote.CartID = &cartID
	quote.Postcode = c.Postcode
	quote.IncludeAssembly = input.IncludeAssembly
	quote.Notes = trimmed(input.Notes)
	if quote.Notes == nil {
		quote.Notes = c.Notes
	}
	quote.Items = attachItems(quote.ID, itemsFromCart(c.Items))
	if err := s.applyTotals(ctx, quote); err != nil {
		return nil, err
	}
	if err := s.repo.WithTx(tx).Create(ctx, quote); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create quote")
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"quote_number": quote.QuoteNumber,
			"cart_id":      cartID.String(),
		})
		s.logg.Info(logCtx, "quote requested from cart")
	}
	return &cart.QuoteRef{QuoteID: quote.ID, QuoteNumber: quote.QuoteNumber}, nil
}

func (s *service) Get(ctx context.Context, customerID *uuid.UUID, id uuid.UUID) (*QuoteDTO, error) {
	quote, err := s.load(ctx, s.repo, customerID, id, false)
	if err != nil {
		return nil, err
	}
	dto := ToDTO(*quote)
	return &dto, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) (*QuoteList, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid quote status")
	}
	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, filter, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list quotes")
	}
	rows, next := pagination.Trim(rows, filter.Limit, func(q models.Quote) pagination.Cursor {
		return pagination.Cursor{CreatedAt: q.CreatedAt, ID: q.ID}
	})
	out := &QuoteList{Items: make([]QuoteDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		out.Items = append(out.Items, ToDTO(row))
	}
	return out, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*QuoteDTO, error) {
	if err := validateDiscount(input.Discount); err != nil {
		return nil, err
	}
	return s.editDraft(ctx, id, func(repo Repository, quote *models.Quote) error {
		updates := map[string]any{}
		if input.Postcode != nil {
			updates["postcode"] = trimmed(input.Postcode)
		}
		if input.IncludeAssembly != nil {
			updates["include_assembly"] = *input.IncludeAssembly
		}
		if input.Discount != nil {
			updates["discount"] = input.Discount.Round(2)
		}
		if input.ValidUntil != nil {
			updates["valid_until"] = input.ValidUntil.UTC()
		}
		if input.Notes != nil {
			updates["notes"] = trimmed(input.Notes)
		}
		if len(updates) == 0 {
			return nil
		}
		if err := repo.Update(ctx, quote.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update quote")
		}
		return nil
	})
}

func (s *service) AddItem(ctx context.Context, id uuid.UUID, input ItemInput) (*QuoteDTO, error) {
	breakdown, err := s.pricer.PriceLine(ctx, input.Configuration)
	if err != nil {
		return nil, err
	}
	return s.editDraft(ctx, id, func(repo Repository, quote *models.Quote) error {
		sortOrder, err := repo.NextSortOrder(ctx, quote.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "next sort order")
		}
		item := &models.QuoteItem{ID: uuid.New(), QuoteID: quote.ID, SortOrder: sortOrder}
		applyItem(item, input, breakdown)
		if err := repo.CreateItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add quote item")
		}
		return nil
	})
}

func (s *service) UpdateItem(ctx context.Context, id, itemID uuid.UUID, input ItemInput) (*QuoteDTO, error) {
	breakdown, err := s.pricer.PriceLine(ctx, input.Configuration)
	if err != nil {
		return nil, err
	}
	return s.editDraft(ctx, id, func(repo Repository, quote *models.Quote) error {
		item, err := repo.FindItem(ctx, quote.ID, itemID)
		if err != nil {
			return notFoundOr(err, "quote item")
		}
		applyItem(item, input, breakdown)
		if err := repo.SaveItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update quote item")
		}
		return nil
	})
}

func (s *service) RemoveItem(ctx context.Context, id, itemID uuid.UUID) (*QuoteDTO, error) {
	return s.editDraft(ctx, id, func(repo Repository, quote *models.Quote) error {
		affected, err := repo.DeleteItem(ctx, quote.ID, itemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove quote item")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "quote item not found")
		}
		return nil
	})
}

func (s *service) Recalculate(ctx context.Context, id uuid.UUID) (*QuoteDTO, error) {
	return s.editDraft(ctx, id, func(Repository, *models.Quote) error { return nil })
}

func (s *service) Versions(ctx context.Context, customerID *uuid.UUID, id uuid.UUID) ([]VersionDTO, error) {
	if _, err := s.load(ctx, s.repo, customerID, id, false); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListVersions(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list quote versions")
	}
	out := make([]VersionDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toVersionDTO(row))
	}
	return out, nil
}

// editDraft runs fn against a locked draft and re-prices the quote's totals
// before the transaction commits.
func (s *service) editDraft(ctx context.Context, id uuid.UUID, fn func(repo Repository, quote *models.Quote) error) (*QuoteDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		quote, err := s.load(ctx, repo, nil, id, true)
		if err != nil {
			return err
		}
		if quote.Status != enums.QuoteStatusDraft {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only draft quotes can be edited")
		}
		if err := fn(repo, quote); err != nil {
			return err
		}
		fresh, err := repo.FindByID(ctx, id, false)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload quote")
		}
		if err := s.applyTotals(ctx, fresh); err != nil {
			return err
		}
		return repo.Update(ctx, id, totalsUpdates(totalsOf(fresh)))
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, nil, id)
}

// applyTotals re-prices delivery and GST from the quote's current items.
// A postcode outside the delivery network prices without delivery.
func (s *service) applyTotals(ctx context.Context, quote *models.Quote) error {
	subtotal := decimal.Zero
	count := 0
	for _, item := range quote.Items {
		subtotal = subtotal.Add(item.TotalPrice)
		count += item.Quantity
	}
	delivery, assembly := decimal.Zero, decimal.Zero
	if quote.Postcode != nil && count > 0 {
		estimate, err := s.estimator.EstimateDelivery(ctx, shipping.EstimateRequest{
			Postcode:        *quote.Postcode,
			ItemCount:       count,
			Subtotal:        subtotal,
			IncludeAssembly: quote.IncludeAssembly,
		})
		switch {
		case err == nil:
			delivery = estimate.DeliveryFee
			assembly = estimate.AssemblySurcharge
		case pkgerrors.Is(err, pkgerrors.CodeNotFound):
		default:
			return err
		}
	}
	totals := types.ComputeTotals(subtotal, delivery, assembly, quote.Discount, s.gst)
	quote.Subtotal = totals.Subtotal
	quote.DeliveryFee = totals.DeliveryFee
	quote.AssemblySurcharge = totals.AssemblySurcharge
	quote.Discount = totals.Discount
	quote.GST = totals.GST
	quote.Total = totals.Total
	return nil
}

func (s *service) newQuote(tx *gorm.DB, customerID uuid.UUID, createdBy *uuid.UUID) (*models.Quote, error) {
	number, err := db.NextDocumentNumber(tx, db.SequenceQuote)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "allocate quote number")
	}
	return &models.Quote{
		ID:          uuid.New(),
		QuoteNumber: number,
		CustomerID:  customerID,
		Status:      enums.QuoteStatusDraft,
		Version:     1,
		Discount:    decimal.Zero,
		CreatedBy:   createdBy,
	}, nil
}

// load fetches a quote, hiding quotes that belong to another customer.
func (s *service) load(ctx context.Context, repo Repository, customerID *uuid.UUID, id uuid.UUID, forUpdate bool) (*models.Quote, error) {
	quote, err := repo.FindByID(ctx, id, forUpdate)
	if err != nil {
		return nil, notFoundOr(err, "quote")
	}
	if customerID != nil && quote.CustomerID != *customerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "quote not found")
	}
	return quote, nil
}

func totalsUpdates(t types.Totals) map[string]any {
	return map[string]any{
		"subtotal":           t.Subtotal,
		"delivery_fee":       t.DeliveryFee,
		"assembly_surcharge": t.AssemblySurcharge,
		"discount":           t.Discount,
		"gst":                t.GST,
		"total":              t.Total,
	}
}

func itemsFromCart(items []models.CartItem) []models.QuoteItem {
	out := make([]models.QuoteItem, 0, len(items))
	for _, item := range items {
		out = append(out, models.QuoteItem{
			CabinetTypeID:       item.CabinetTypeID,
			Description:         describe("", item.Breakdown),
			DoorStyleID:         item.DoorStyleID,
			ColorID:             item.ColorID,
			FinishID:            item.FinishID,
			WidthMM:             item.WidthMM,
			HeightMM:            item.HeightMM,
			DepthMM:             item.DepthMM,
			Quantity:            item.Quantity,
			ProductionOptionIDs: item.ProductionOptionIDs,
			Configuration:       item.Configuration,
			Breakdown:           item.Breakdown,
			UnitPrice:           item.UnitPrice,
			TotalPrice:          item.TotalPrice,
			SortOrder:           item.SortOrder,
		})
	}
	return out
}

func attachItems(quoteID uuid.UUID, items []models.QuoteItem) []models.QuoteItem {
	for i := range items {
		items[i].ID = uuid.New()
		items[i].QuoteID = quoteID
	}
	return items
}

func applyItem(item *models.QuoteItem, input ItemInput, breakdown types.PriceBreakdown) {
	item.CabinetTypeID = input.CabinetTypeID
	item.Description = describe(input.Description, breakdown)
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

func describe(explicit string, breakdown types.PriceBreakdown) string {
	if value := strings.TrimSpace(explicit); value != "" {
		return value
	}
	if breakdown.Description != "" {
		return breakdown.Description
	}
	return defaultDescription
}

func validateDiscount(discount *decimal.Decimal) error {
	if discount != nil && discount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount cannot be negative").
			WithDetails(map[string]string{"discount": "must be zero or more"})
	}
	return nil
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

func notFoundOr(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load "+entity)
}
