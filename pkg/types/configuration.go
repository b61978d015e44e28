package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ItemConfiguration holds the free-form selections attached to a cabinet line
// that do not influence the computed price.
type ItemConfiguration struct {
	Label          string   `json:"label,omitempty"`
	Hardware       []string `json:"hardware,omitempty"`
	AssemblyOption string   `json:"assembly_option,omitempty"`
	HingeSide      string   `json:"hinge_side,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

// Summary renders a compact single-line description for documents and emails.
func (c ItemConfiguration) Summary() string {
	parts := []string{}
	if c.Label != "" {
		parts = append(parts, c.Label)
	}
	if len(c.Hardware) > 0 {
		parts = append(parts, "hardware: "+strings.Join(c.Hardware, ", "))
	}
	if c.AssemblyOption != "" {
		parts = append(parts, "assembly: "+c.AssemblyOption)
	}
	if c.HingeSide != "" {
		parts = append(parts, "hinge: "+c.HingeSide)
	}
	if c.Notes != "" {
		parts = append(parts, c.Notes)
	}
	return strings.Join(parts, "; ")
}

// PriceBreakdown captures each component of a priced cabinet line.
type PriceBreakdown struct {
	Description string          `json:"description"`
	AreaM2      decimal.Decimal `json:"area_m2"`
	Material    decimal.Decimal `json:"material"`
	Door        decimal.Decimal `json:"door"`
	Options     decimal.Decimal `json:"options"`
	BasePrice   decimal.Decimal `json:"base_price"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	Total       decimal.Decimal `json:"total"`
	Warnings    []string        `json:"warnings,omitempty"`
}

// Totals is the shared money rollup for quotes, carts and orders.
type Totals struct {
	Subtotal          decimal.Decimal `json:"subtotal"`
	DeliveryFee       decimal.Decimal `json:"delivery_fee"`
	AssemblySurcharge decimal.Decimal `json:"assembly_surcharge"`
	Discount          decimal.Decimal `json:"discount"`
	GST               decimal.Decimal `json:"gst"`
	Total             decimal.Decimal `json:"total"`
}

// ComputeTotals applies GST to the taxable amount (subtotal plus delivery and
// assembly, less discount, floored at zero) and rounds every figure to cents.
func ComputeTotals(subtotal, delivery, assembly, discount, gstPercent decimal.Decimal) Totals {
	taxable := subtotal.Add(delivery).Add(assembly).Sub(discount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	gst := taxable.Mul(gstPercent).Div(decimal.NewFromInt(100)).Round(2)
	return Totals{
		Subtotal:          subtotal.Round(2),
		DeliveryFee:       delivery.Round(2),
		AssemblySurcharge: assembly.Round(2),
		Discount:          discount.Round(2),
		GST:               gst,
		Total:             taxable.Round(2).Add(gst),
	}
}
