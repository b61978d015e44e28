package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/internal/shipping"
	"github.com/northcraft/cabinetry-backend/pkg/config"
	"github.com/northcraft/cabinetry-backend/pkg/db"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
	"github.com/northcraft/cabinetry-backend/pkg/outbox"
	"github.com/northcraft/cabinetry-backend/pkg/outbox/payloads"
	"github.com/northcraft/cabinetry-backend/pkg/pagination"
	"github.com/northcraft/cabinetry-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusAwaitingDeposit:  {enums.OrderStatusInProduction, enums.OrderStatusCancelled},
	enums.OrderStatusInProduction:     {enums.OrderStatusReadyForDispatch, enums.OrderStatusCancelled},
	enums.OrderStatusReadyForDispatch: {enums.OrderStatusDispatched},
	enums.OrderStatusDispatched:       {enums.OrderStatusDelivered},
	enums.OrderStatusDelivered:        {enums.OrderStatusCompleted},
}

var statusTimestamps = map[enums.OrderStatus]string{
	enums.OrderStatusInProduction:     "production_started_at",
	enums.OrderStatusReadyForDispatch: "ready_at",
	enums.OrderStatusDispatched:       "dispatched_at",
	enums.OrderStatusDelivered:        "delivered_at",
	enums.OrderStatusCompleted:        "completed_at",
	enums.OrderStatusCancelled:        "cancelled_at",
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Service manages orders from creation through delivery. Creation methods
// run inside the caller's transaction.
type Service interface {
	CreateFromQuote(ctx context.Context, tx *gorm.DB, quote *models.Quote, address *types.ShippingAddress) (*models.Order, error)
	CreateFromCart(ctx context.Context, tx *gorm.DB, cart *models.Cart, input CartOrderInput) (*models.Order, error)
	Get(ctx context.Context, customerID *uuid.UUID, orderID uuid.UUID) (*OrderDTO, error)
	List(ctx context.Context, filter ListFilter) (*OrderList, error)
	UpdateStatus(ctx context.Context, actorID, orderID uuid.UUID, input StatusUpdateInput) (*OrderDTO, error)
	Cancel(ctx context.Context, actorID, orderID uuid.UUID, input CancelInput) (*OrderDTO, error)
	DepositReceived(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

// ServiceParams wires the orders service.
type ServiceParams struct {
	Repo      Repository
	TxRunner  txRunner
	Payments  PaymentPlanner
	Estimator shipping.Estimator
	Emitter   outbox.Emitter
	Shipping  config.ShippingConfig
	Logger    *logger.Logger
	Now       func() time.Time
}

type service struct {
	repo        Repository
	tx          txRunner
	payments    PaymentPlanner
	estimator   shipping.Estimator
	emitter     outbox.Emitter
	defaultLead int
	logg        *logger.Logger
	now         func() time.Time
}

// NewService builds an orders service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment planner required")
	}
	if params.Estimator == nil {
		return nil, fmt.Errorf("shipping estimator required")
	}
	if params.Emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	lead := params.Shipping.DefaultLeadTimeDays
	if lead <= 0 {
		lead = 28
	}
	return &service{
		repo:        params.Repo,
		tx:          params.TxRunner,
		payments:    params.Payments,
		estimator:   params.Estimator,
		emitter:     params.Emitter,
		defaultLead: lead,
		logg:        params.Logger,
		now:         now,
	}, nil
}

type draft struct {
	customerID      uuid.UUID
	quoteID         *uuid.UUID
	cartID          *uuid.UUID
	items           []models.OrderItem
	totals          types.Totals
	address         *types.ShippingAddress
	postcode        *string
	includeAssembly bool
	leadTimeDays    int
	notes           *string
	actor           *outbox.ActorRef
}

func (s *service) CreateFromQuote(ctx context.Context, tx *gorm.DB, quote *models.Quote, address *types.ShippingAddress) (*models.Order, error) {
	if quote == nil || len(quote.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quote has no items")
	}
	items := make([]models.OrderItem, 0, len(quote.Items))
	for _, item := range quote.Items {
		items = append(items, models.OrderItem{
			CabinetTypeID:       item.CabinetTypeID,
			Description:         item.Description,
			DoorStyleID:         item.DoorStyleID,
			ColorID:             item.ColorID,
			FinishID:            item.FinishID,
			WidthMM:             item.WidthMM,
			HeightMM:            item.HeightMM,
			DepthMM:             item.DepthMM,
			Quantity:            item.Quantity,
			ProductionOptionIDs: item.ProductionOptionIDs,
			Configuration:       item.Configuration,
			UnitPrice:           item.UnitPrice,
			TotalPrice:          item.TotalPrice,
			SortOrder:           item.SortOrder,
		})
	}
	postcode := quote.Postcode
	if address != nil && strings.TrimSpace(address.Postcode) != "" {
		code := strings.TrimSpace(address.Postcode)
		postcode = &code
	}
	quoteID := quote.ID
	return s.create(ctx, tx, draft{
		customerID: quote.CustomerID,
		quoteID:    &quoteID,
		cartID:     quote.CartID,
		items:      items,
		totals: types.Totals{
			Subtotal:          quote.Subtotal,
			DeliveryFee:       quote.DeliveryFee,
			AssemblySurcharge: quote.AssemblySurcharge,
			Discount:          quote.Discount,
			GST:               quote.GST,
			Total:             quote.Total,
		},
		address:         address,
		postcode:        postcode,
		includeAssembly: quote.IncludeAssembly,
		leadTimeDays:    s.leadTime(ctx, postcode),
		notes:           quote.Notes,
		actor:           &outbox.ActorRef{UserID: quote.CustomerID, Role: string(enums.UserRoleCustomer)},
	})
}

func (s *service) CreateFromCart(ctx context.Context, tx *gorm.DB, cart *models.Cart, input CartOrderInput) (*models.Order, error) {
	if cart == nil || len(cart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	items := make([]models.OrderItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		description := item.Breakdown.Description
		if description == "" {
			description = "Cabinet"
		}
		items = append(items, models.OrderItem{
			CabinetTypeID:       item.CabinetTypeID,
			Description:         description,
			DoorStyleID:         item.DoorStyleID,
			ColorID:             item.ColorID,
			FinishID:            item.FinishID,
			WidthMM:             item.WidthMM,
			HeightMM:            item.HeightMM,
			DepthMM:             item.DepthMM,
			Quantity:            item.Quantity,
			ProductionOptionIDs: item.ProductionOptionIDs,
			Configuration:       item.Configuration,
			UnitPrice:           item.UnitPrice,
			TotalPrice:          item.TotalPrice,
			SortOrder:           item.SortOrder,
		})
	}
	address := input.Address
	postcode := strings.TrimSpace(address.Postcode)
	lead := input.LeadTimeDays
	if lead <= 0 {
		lead = s.defaultLead
	}
	cartID := cart.ID
	actorID := cart.CustomerID
	if input.Actor != nil {
		actorID = *input.Actor
	}
	return s.create(ctx, tx, draft{
		customerID:      cart.CustomerID,
		cartID:          &cartID,
		items:           items,
		totals:          input.Totals,
		address:         &address,
		postcode:        &postcode,
		includeAssembly: input.IncludeAssembly,
		leadTimeDays:    lead,
		notes:           input.Notes,
		actor:           &outbox.ActorRef{UserID: actorID, Role: string(enums.UserRoleCustomer)},
	})
}

// create persists the order with its items and payment schedule and emits
// order.created.
func (s *service) create(ctx context.Context, tx *gorm.DB, d draft) (*models.Order, error) {
	number, err := db.NextDocumentNumber(tx, db.SequenceOrder)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "allocate order number")
	}
	now := s.now()
	estimated := now.AddDate(0, 0, d.leadTimeDays)
	order := &models.Order{
		ID:                    uuid.New(),
		OrderNumber:           number,
		CustomerID:            d.customerID,
		QuoteID:               d.quoteID,
		CartID:                d.cartID,
		Status:                enums.OrderStatusAwaitingDeposit,
		Subtotal:              d.totals.Subtotal,
		AssemblySurcharge:     d.totals.AssemblySurcharge,
		DeliveryFee:           d.totals.DeliveryFee,
		Discount:              d.totals.Discount,
		GST:                   d.totals.GST,
		Total:                 d.totals.Total,
		AmountPaid:            decimal.Zero,
		BalanceDue:            d.totals.Total,
		ShippingAddress:       d.address,
		Postcode:              d.postcode,
		IncludeAssembly:       d.includeAssembly,
		LeadTimeDays:          d.leadTimeDays,
		EstimatedDeliveryDate: &estimated,
		Notes:                 d.notes,
	}
	for i := range d.items {
		d.items[i].ID = uuid.New()
		d.items[i].OrderID = order.ID
	}
	order.Items = d.items

	repo := s.repo.WithTx(tx)
	if err := repo.Create(ctx, order); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "an order already exists for this quote")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}
	schedules, err := s.payments.Create(ctx, tx, order)
	if err != nil {
		return nil, err
	}
	event := payloads.OrderCreatedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		QuoteID:     order.QuoteID,
		CartID:      order.CartID,
		Total:       order.Total,
	}
	if len(schedules) > 0 {
		event.DepositAmount = schedules[0].Amount
		event.DepositDue = schedules[0].DueDate
	}
	err = s.emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         d.actor,
		Data:          event,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order created")
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_number": order.OrderNumber,
			"customer_id":  order.CustomerID.String(),
			"total":        order.Total.StringFixed(2),
		})
		s.logg.Info(logCtx, "order created")
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, customerID *uuid.UUID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, orderID, false)
	if err != nil {
		return nil, notFoundOr(err)
	}
	if customerID != nil && order.CustomerID != *customerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	dto := ToDTO(*order)
	return &dto, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) (*OrderList, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, filter, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	rows, next := pagination.Trim(rows, filter.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	out := &OrderList{Items: make([]OrderDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		out.Items = append(out.Items, ToDTO(row))
	}
	return out, nil
}

func (s *service) UpdateStatus(ctx context.Context, actorID, orderID uuid.UUID, input StatusUpdateInput) (*OrderDTO, error) {
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	actor := &outbox.ActorRef{UserID: actorID, Role: string(enums.UserRoleAdmin)}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.WithTx(tx).FindByID(ctx, orderID, true)
		if err != nil {
			return notFoundOr(err)
		}
		return s.transition(ctx, tx, order, input.Status, strings.TrimSpace(input.Reason), actor)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, nil, orderID)
}

func (s *service) Cancel(ctx context.Context, actorID, orderID uuid.UUID, input CancelInput) (*OrderDTO, error) {
	return s.UpdateStatus(ctx, actorID, orderID, StatusUpdateInput{
		Status: enums.OrderStatusCancelled,
		Reason: input.Reason,
	})
}

// DepositReceived starts production once the deposit clears. Orders that
// already left awaiting_deposit are left alone.
func (s *service) DepositReceived(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	order, err := s.repo.WithTx(tx).FindByID(ctx, orderID, true)
	if err != nil {
		return notFoundOr(err)
	}
	if order.Status != enums.OrderStatusAwaitingDeposit {
		return nil
	}
	return s.transition(ctx, tx, order, enums.OrderStatusInProduction, "deposit received", nil)
}

func (s *service) transition(ctx context.Context, tx *gorm.DB, order *models.Order, to enums.OrderStatus, reason string, actor *outbox.ActorRef) error {
	from := order.Status
	if !CanTransition(from, to) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move order from %s to %s", from, to)).
			WithDetails(map[string]any{"from": from, "to": to, "allowed": transitions[from]})
	}
	if to == enums.OrderStatusInProduction && order.DepositPaidAt == nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "deposit has not been paid")
	}

	now := s.now()
	updates := map[string]any{statusTimestamps[to]: now}
	switch to {
	case enums.OrderStatusInProduction:
		estimated := now.AddDate(0, 0, order.LeadTimeDays)
		updates["estimated_delivery_date"] = estimated
	case enums.OrderStatusCancelled:
		if reason != "" {
			updates["cancellation_reason"] = reason
		}
	}
	affected, err := s.repo.WithTx(tx).UpdateStatus(ctx, order.ID, from, to, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently")
	}
	order.Status = to

	if to == enums.OrderStatusCancelled {
		if err := s.payments.CancelOrder(ctx, tx, order.ID); err != nil {
			return err
		}
	} else if err := s.payments.OnOrderStatus(ctx, tx, order, to); err != nil {
		return err
	}

	err = s.emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			CustomerID:  order.CustomerID,
			From:        from,
			To:          to,
			Reason:      reason,
			ChangedAt:   now,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order status changed")
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_number": order.OrderNumber,
			"from":         string(from),
			"to":           string(to),
		})
		s.logg.Info(logCtx, "order status changed")
	}
	return nil
}

// leadTime resolves the lead time for a postcode, falling back to the
// configured default when the postcode is unknown.
func (s *service) leadTime(ctx context.Context, postcode *string) int {
	if postcode == nil || strings.TrimSpace(*postcode) == "" {
		return s.defaultLead
	}
	eligibility, err := s.estimator.Lookup(ctx, *postcode)
	if err != nil || eligibility.LeadTimeDays <= 0 {
		return s.defaultLead
	}
	return eligibility.LeadTimeDays
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
}
