package documents

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMoney(t *testing.T) {
	require.Equal(t, "$1,234.50", Money(decimal.RequireFromString("1234.5"), "AUD"))
	require.Equal(t, "$0.00", Money(decimal.Zero, ""))
	require.Equal(t, "-$12.00", Money(decimal.NewFromInt(-12), "AUD"))
	require.Equal(t, "NZD 1,000,000.00", Money(decimal.NewFromInt(1000000), "nzd"))
}

func TestRenderQuote(t *testing.T) {
	valid := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	out, err := RenderQuote(QuoteDocument{
		Business:   Business{Name: "Northcraft Cabinetry", ABN: "12 345 678 901"},
		Number:     "Q-000042",
		Version:    2,
		IssuedAt:   time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		ValidUntil: &valid,
		Customer:   Party{Name: "Casey Jones", Email: "casey@example.com"},
		Items: []LineItem{{
			Description: "Base cabinet 600 × 720 × 560",
			Summary:     "Shaker door, White, Matte",
			Quantity:    2,
			UnitPrice:   decimal.RequireFromString("420.00"),
			Total:       decimal.RequireFromString("840.00"),
		}},
		Subtotal: decimal.RequireFromString("840.00"),
		GST:      decimal.RequireFromString("84.00"),
		Total:    decimal.RequireFromString("924.00"),
		Notes:    "Handles supplied by customer.",
	})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestRenderQuoteValidation(t *testing.T) {
	_, err := RenderQuote(QuoteDocument{Items: []LineItem{{Description: "x"}}})
	require.ErrorIs(t, err, errNumberRequired)

	_, err = RenderQuote(QuoteDocument{Number: "Q-1"})
	require.ErrorIs(t, err, errNoItems)
}

func TestRenderInvoice(t *testing.T) {
	due := time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)
	out, err := RenderInvoice(InvoiceDocument{
		Business:    Business{Name: "Northcraft Cabinetry"},
		Number:      "INV-000007",
		OrderNumber: "ORD-000003",
		Milestone:   "deposit",
		Percentage:  decimal.NewFromInt(50),
		IssuedAt:    time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		DueDate:     &due,
		Amount:      decimal.RequireFromString("462.00"),
		GST:         decimal.RequireFromString("42.00"),
		OrderTotal:  decimal.RequireFromString("924.00"),
	})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF-")))

	_, err = RenderInvoice(InvoiceDocument{})
	require.ErrorIs(t, err, errNumberRequired)
}
