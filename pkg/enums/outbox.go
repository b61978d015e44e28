package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateQuote           OutboxAggregateType = "quote"
	AggregateOrder           OutboxAggregateType = "order"
	AggregatePaymentSchedule OutboxAggregateType = "payment_schedule"
	AggregateInvoice         OutboxAggregateType = "invoice"
	AggregateMessage         OutboxAggregateType = "message"
	AggregateCart            OutboxAggregateType = "cart"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateQuote,
	AggregateOrder,
	AggregatePaymentSchedule,
	AggregateInvoice,
	AggregateMessage,
	AggregateCart,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventQuoteSent          OutboxEventType = "quote.sent"
	EventQuoteAccepted      OutboxEventType = "quote.accepted"
	EventQuoteRejected      OutboxEventType = "quote.rejected"
	EventQuoteExpired       OutboxEventType = "quote.expired"
	EventOrderCreated       OutboxEventType = "order.created"
	EventOrderStatusChanged OutboxEventType = "order.status_changed"
	EventInvoiceIssued      OutboxEventType = "invoice.issued"
	EventPaymentRecorded    OutboxEventType = "payment.recorded"
	EventPaymentFailed      OutboxEventType = "payment.failed"
	EventPaymentOverdue     OutboxEventType = "payment.overdue"
	EventMessagePosted      OutboxEventType = "message.posted"
	EventCartAbandoned      OutboxEventType = "cart.abandoned"
)

var validOutboxEventTypes = []OutboxEventType{
	EventQuoteSent,
	EventQuoteAccepted,
	EventQuoteRejected,
	EventQuoteExpired,
	EventOrderCreated,
	EventOrderStatusChanged,
	EventInvoiceIssued,
	EventPaymentRecorded,
	EventPaymentFailed,
	EventPaymentOverdue,
	EventMessagePosted,
	EventCartAbandoned,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
