package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/northcraft/cabinetry-backend/pkg/enums"
)

// Customer is implemented by payloads that belong to a single customer.
type Customer interface {
	Customer() uuid.UUID
}

// Monetary is implemented by payloads that carry a headline amount.
type Monetary interface {
	MonetaryAmount() decimal.Decimal
}

// QuoteEvent covers quote.sent, quote.accepted, quote.rejected and quote.expired.
type QuoteEvent struct {
	QuoteID     uuid.UUID         `json:"quote_id"`
	QuoteNumber string            `json:"quote_number"`
	CustomerID  uuid.UUID         `json:"customer_id"`
	Status      enums.QuoteStatus `json:"status"`
	Version     int               `json:"version"`
	Total       decimal.Decimal   `json:"total"`
	ValidUntil  *time.Time        `json:"valid_until,omitempty"`
	OrderID     *uuid.UUID        `json:"order_id,omitempty"`
	Reason      string            `json:"reason,omitempty"`
}

func (e QuoteEvent) Customer() uuid.UUID             { return e.CustomerID }
func (e QuoteEvent) MonetaryAmount() decimal.Decimal { return e.Total }

// OrderCreatedEvent is emitted once the order, items and schedule are persisted.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID       `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	QuoteID       *uuid.UUID      `json:"quote_id,omitempty"`
	CartID        *uuid.UUID      `json:"cart_id,omitempty"`
	Total         decimal.Decimal `json:"total"`
	DepositAmount decimal.Decimal `json:"deposit_amount"`
	DepositDue    *time.Time      `json:"deposit_due,omitempty"`
}

func (e OrderCreatedEvent) Customer() uuid.UUID             { return e.CustomerID }
func (e OrderCreatedEvent) MonetaryAmount() decimal.Decimal { return e.Total }

// OrderStatusChangedEvent records a fulfilment transition.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	CustomerID  uuid.UUID         `json:"customer_id"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to"`
	Reason      string            `json:"reason,omitempty"`
	ChangedAt   time.Time         `json:"changed_at"`
}

func (e OrderStatusChangedEvent) Customer() uuid.UUID { return e.CustomerID }

// InvoiceIssuedEvent is emitted when a milestone unlocks and its invoice is raised.
type InvoiceIssuedEvent struct {
	InvoiceID     uuid.UUID              `json:"invoice_id"`
	InvoiceNumber string                 `json:"invoice_number"`
	OrderID       uuid.UUID              `json:"order_id"`
	OrderNumber   string                 `json:"order_number"`
	CustomerID    uuid.UUID              `json:"customer_id"`
	ScheduleID    uuid.UUID              `json:"schedule_id"`
	Milestone     enums.PaymentMilestone `json:"milestone"`
	Amount        decimal.Decimal        `json:"amount"`
	DueDate       *time.Time             `json:"due_date,omitempty"`
}

func (e InvoiceIssuedEvent) Customer() uuid.UUID             { return e.CustomerID }
func (e InvoiceIssuedEvent) MonetaryAmount() decimal.Decimal { return e.Amount }

// PaymentEvent covers payment.recorded and payment.failed.
type PaymentEvent struct {
	PaymentID     uuid.UUID              `json:"payment_id"`
	OrderID       uuid.UUID              `json:"order_id"`
	OrderNumber   string                 `json:"order_number"`
	CustomerID    uuid.UUID              `json:"customer_id"`
	ScheduleID    uuid.UUID              `json:"schedule_id"`
	Milestone     enums.PaymentMilestone `json:"milestone"`
	Amount        decimal.Decimal        `json:"amount"`
	Currency      string                 `json:"currency"`
	Method        enums.PaymentMethod    `json:"method"`
	Provider      enums.PaymentProvider  `json:"provider"`
	Status        enums.PaymentStatus    `json:"status"`
	MilestonePaid bool                   `json:"milestone_paid"`
	BalanceDue    decimal.Decimal        `json:"balance_due"`
	FailureReason string                 `json:"failure_reason,omitempty"`
}

func (e PaymentEvent) Customer() uuid.UUID             { return e.CustomerID }
func (e PaymentEvent) MonetaryAmount() decimal.Decimal { return e.Amount }
func (e PaymentEvent) CurrencyCode() string            { return e.Currency }

// PaymentOverdueEvent is emitted by the overdue sweep.
type PaymentOverdueEvent struct {
	ScheduleID  uuid.UUID              `json:"schedule_id"`
	OrderID     uuid.UUID              `json:"order_id"`
	OrderNumber string                 `json:"order_number"`
	CustomerID  uuid.UUID              `json:"customer_id"`
	Milestone   enums.PaymentMilestone `json:"milestone"`
	AmountDue   decimal.Decimal        `json:"amount_due"`
	DueDate     time.Time              `json:"due_date"`
}

func (e PaymentOverdueEvent) Customer() uuid.UUID             { return e.CustomerID }
func (e PaymentOverdueEvent) MonetaryAmount() decimal.Decimal { return e.AmountDue }

// MessagePostedEvent notifies the other side of a thread.
type MessagePostedEvent struct {
	MessageID  uuid.UUID          `json:"message_id"`
	Scope      enums.MessageScope `json:"scope"`
	ScopeID    uuid.UUID          `json:"scope_id"`
	Reference  string             `json:"reference"`
	CustomerID uuid.UUID          `json:"customer_id"`
	SenderID   uuid.UUID          `json:"sender_id"`
	SenderRole enums.UserRole     `json:"sender_role"`
	Preview    string             `json:"preview"`
}

func (e MessagePostedEvent) Customer() uuid.UUID { return e.CustomerID }

// CartAbandonedEvent is emitted when an idle cart is closed by the sweep.
type CartAbandonedEvent struct {
	CartID         uuid.UUID       `json:"cart_id"`
	CustomerID     uuid.UUID       `json:"customer_id"`
	ItemCount      int             `json:"item_count"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	LastActivityAt time.Time       `json:"last_activity_at"`
}

func (e CartAbandonedEvent) Customer() uuid.UUID             { return e.CustomerID }
func (e CartAbandonedEvent) MonetaryAmount() decimal.Decimal { return e.Subtotal }
