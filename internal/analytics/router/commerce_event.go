package router

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/northcraft/cabinetry-backend/internal/analytics/types"
	"github.com/northcraft/cabinetry-backend/internal/analytics/writer"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
	"github.com/northcraft/cabinetry-backend/pkg/outbox/payloads"
)

const defaultCurrency = "AUD"

type currencied interface {
	CurrencyCode() string
}

type commerceEventHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newCommerceEventHandler(w Writer, logg *logger.Logger) Handler {
	return &commerceEventHandler{writer: w, logg: logg}
}

// Handle flattens any domain payload into a commerce_events row. Customer and
// amount columns are filled when the payload exposes them.
func (h *commerceEventHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	row, err := BuildCommerceRow(envelope, payload)
	if err != nil {
		return err
	}
	return h.writer.InsertCommerceEvent(ctx, row)
}

// BuildCommerceRow maps an envelope and its decoded payload to a BigQuery row.
func BuildCommerceRow(envelope types.Envelope, payload any) (types.CommerceEventRow, error) {
	raw, err := writer.EncodeJSON(envelope.Payload)
	if err != nil {
		return types.CommerceEventRow{}, err
	}
	row := types.CommerceEventRow{
		EventID:       envelope.EventID,
		EventType:     string(envelope.EventType),
		AggregateType: string(envelope.AggregateType),
		AggregateID:   envelope.AggregateID,
		OccurredAt:    envelope.OccurredAt.UTC(),
		Payload:       raw,
	}
	if c, ok := payload.(payloads.Customer); ok {
		if id := c.Customer(); id != uuid.Nil {
			value := id.String()
			row.CustomerID = &value
		}
	}
	if m, ok := payload.(payloads.Monetary); ok {
		cents := m.MonetaryAmount().Shift(2).Round(0).IntPart()
		currency := defaultCurrency
		if withCurrency, ok := payload.(currencied); ok {
			if code := strings.ToUpper(strings.TrimSpace(withCurrency.CurrencyCode())); code != "" {
				currency = code
			}
		}
		row.AmountCents = &cents
		row.Currency = &currency
	}
	return row, nil
}
