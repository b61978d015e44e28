package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/northcraft/cabinetry-backend/internal/analytics/types"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
	"github.com/northcraft/cabinetry-backend/pkg/outbox/payloads"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers BigQuery rows produced by analytics handlers.
type Writer interface {
	InsertCommerceEvent(ctx context.Context, row types.CommerceEventRow) error
}

// Handler receives an envelope plus a decoded event payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

type handlerEntry struct {
	factory func() any
	handler Handler
}

// Router dispatches analytics envelopes to the configured handler per event type.
type Router struct {
	handlers map[enums.OutboxEventType]handlerEntry
	logg     *logger.Logger
}

// NewRouter wires the default handlers and allows overrides for specific events.
func NewRouter(writer Writer, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	commerce := newCommerceEventHandler(writer, logg)
	factories := map[enums.OutboxEventType]func() any{
		enums.EventQuoteSent:          func() any { return &payloads.QuoteEvent{} },
		enums.EventQuoteAccepted:      func() any { return &payloads.QuoteEvent{} },
		enums.EventQuoteRejected:      func() any { return &payloads.QuoteEvent{} },
		enums.EventQuoteExpired:       func() any { return &payloads.QuoteEvent{} },
		enums.EventOrderCreated:       func() any { return &payloads.OrderCreatedEvent{} },
		enums.EventOrderStatusChanged: func() any { return &payloads.OrderStatusChangedEvent{} },
		enums.EventInvoiceIssued:      func() any { return &payloads.InvoiceIssuedEvent{} },
		enums.EventPaymentRecorded:    func() any { return &payloads.PaymentEvent{} },
		enums.EventPaymentFailed:      func() any { return &payloads.PaymentEvent{} },
		enums.EventPaymentOverdue:     func() any { return &payloads.PaymentOverdueEvent{} },
		enums.EventMessagePosted:      func() any { return &payloads.MessagePostedEvent{} },
		enums.EventCartAbandoned:      func() any { return &payloads.CartAbandonedEvent{} },
	}
	entries := make(map[enums.OutboxEventType]handlerEntry, len(factories))
	for event, factory := range factories {
		entries[event] = handlerEntry{factory: factory, handler: commerce}
	}

	for event, custom := range overrides {
		entry, ok := entries[event]
		if !ok || custom == nil {
			continue
		}
		entry.handler = custom
		entries[event] = entry
	}

	return &Router{
		handlers: entries,
		logg:     logg,
	}, nil
}

// Handle dispatches the incoming envelope to the configured handler.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	entry, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	payload := entry.factory()
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("empty payload for %s", envelope.EventType)
	}
	if err := json.Unmarshal(envelope.Payload, payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
	}

	return entry.handler.Handle(ctx, envelope, payload)
}
