// Package documents renders customer-facing PDFs for quotes and invoices.
package documents

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"github.com/northcraft/cabinetry-backend/pkg/config"
)

const dateLayout = "2 Jan 2006"

var (
	errNumberRequired = errors.New("document number is required")
	errNoItems        = errors.New("quote document requires at least one item")
)

// Business identifies the issuer printed in document headers.
type Business struct {
	Name    string
	ABN     string
	Email   string
	Phone   string
	Address string
}

// NewBusiness maps the configured issuer details.
func NewBusiness(cfg config.BusinessConfig) Business {
	return Business{
		Name:    cfg.Name,
		ABN:     cfg.ABN,
		Email:   cfg.Email,
		Phone:   cfg.Phone,
		Address: cfg.Address,
	}
}

// Party is the customer a document is addressed to.
type Party struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

// LineItem is one priced row of a quote.
type LineItem struct {
	Description string
	Summary     string
	Quantity    int
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
}

// QuoteDocument carries everything printed on a quote PDF.
type QuoteDocument struct {
	Business          Business
	Number            string
	Version           int
	Status            string
	IssuedAt          time.Time
	ValidUntil        *time.Time
	Customer          Party
	Postcode          string
	IncludeAssembly   bool
	Items             []LineItem
	Subtotal          decimal.Decimal
	AssemblySurcharge decimal.Decimal
	DeliveryFee       decimal.Decimal
	Discount          decimal.Decimal
	GST               decimal.Decimal
	Total             decimal.Decimal
	Currency          string
	Notes             string
}

// InvoiceDocument carries everything printed on a milestone invoice PDF.
type InvoiceDocument struct {
	Business    Business
	Number      string
	OrderNumber string
	Milestone   string
	Percentage  decimal.Decimal
	IssuedAt    time.Time
	DueDate     *time.Time
	Customer    Party
	Amount      decimal.Decimal
	GST         decimal.Decimal
	OrderTotal  decimal.Decimal
	Currency    string
	PaymentNote string
}

type renderer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newRenderer(title string) *renderer {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()
	return &renderer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (r *renderer) header(b Business, title, number string) {
	p := r.pdf
	p.SetFont("Helvetica", "B", 16)
	p.CellFormat(110, 8, r.tr(b.Name), "", 0, "L", false, 0, "")
	p.SetFont("Helvetica", "B", 14)
	p.CellFormat(70, 8, r.tr(title), "", 1, "R", false, 0, "")

	p.SetFont("Helvetica", "", 9)
	lines := []string{}
	if b.ABN != "" {
		lines = append(lines, "ABN "+b.ABN)
	}
	for _, v := range []string{b.Address, b.Email, b.Phone} {
		if v != "" {
			lines = append(lines, v)
		}
	}
	for i, line := range lines {
		right := ""
		if i == 0 {
			right = number
		}
		p.CellFormat(110, 5, r.tr(line), "", 0, "L", false, 0, "")
		p.CellFormat(70, 5, r.tr(right), "", 1, "R", false, 0, "")
	}
	if len(lines) == 0 {
		p.CellFormat(180, 5, r.tr(number), "", 1, "R", false, 0, "")
	}
	p.Ln(6)
}

func (r *renderer) party(label string, party Party) {
	p := r.pdf
	p.SetFont("Helvetica", "B", 10)
	p.CellFormat(180, 6, r.tr(label), "", 1, "L", false, 0, "")
	p.SetFont("Helvetica", "", 10)
	for _, v := range []string{party.Name, party.Address, party.Email, party.Phone} {
		if strings.TrimSpace(v) != "" {
			p.CellFormat(180, 5, r.tr(v), "", 1, "L", false, 0, "")
		}
	}
	p.Ln(4)
}

func (r *renderer) keyValue(key, value string) {
	p := r.pdf
	p.SetFont("Helvetica", "B", 10)
	p.CellFormat(45, 6, r.tr(key), "", 0, "L", false, 0, "")
	p.SetFont("Helvetica", "", 10)
	p.CellFormat(135, 6, r.tr(value), "", 1, "L", false, 0, "")
}

func (r *renderer) totalRow(label string, amount decimal.Decimal, currency string, bold bool) {
	p := r.pdf
	style := ""
	if bold {
		style = "B"
	}
	p.SetFont("Helvetica", style, 10)
	p.CellFormat(140, 6, r.tr(label), "", 0, "R", false, 0, "")
	p.CellFormat(40, 6, Money(amount, currency), "", 1, "R", false, 0, "")
}

func (r *renderer) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderQuote produces the quote PDF.
func RenderQuote(doc QuoteDocument) ([]byte, error) {
	if strings.TrimSpace(doc.Number) == "" {
		return nil, errNumberRequired
	}
	if len(doc.Items) == 0 {
		return nil, errNoItems
	}

	r := newRenderer("Quote " + doc.Number)
	r.header(doc.Business, "QUOTE", fmt.Sprintf("%s (v%d)", doc.Number, doc.Version))
	r.party("Prepared for", doc.Customer)

	r.keyValue("Issued", doc.IssuedAt.Format(dateLayout))
	if doc.ValidUntil != nil {
		r.keyValue("Valid until", doc.ValidUntil.Format(dateLayout))
	}
	if doc.Postcode != "" {
		r.keyValue("Delivery postcode", doc.Postcode)
	}
	assembly := "Not included"
	if doc.IncludeAssembly {
		assembly = "Included"
	}
	r.keyValue("Assembly", assembly)
	r.pdf.Ln(4)

	p := r.pdf
	p.SetFillColor(235, 235, 235)
	p.SetFont("Helvetica", "B", 9)
	p.CellFormat(95, 7, "Item", "1", 0, "L", true, 0, "")
	p.CellFormat(15, 7, "Qty", "1", 0, "C", true, 0, "")
	p.CellFormat(35, 7, "Unit", "1", 0, "R", true, 0, "")
	p.CellFormat(35, 7, "Total", "1", 1, "R", true, 0, "")

	for _, item := range doc.Items {
		p.SetFont("Helvetica", "", 9)
		x, y := p.GetX(), p.GetY()
		text := item.Description
		if item.Summary != "" {
			text += "\n" + item.Summary
		}
		p.MultiCell(95, 5, r.tr(text), "1", "L", false)
		height := p.GetY() - y
		p.SetXY(x+95, y)
		p.CellFormat(15, height, fmt.Sprintf("%d", item.Quantity), "1", 0, "C", false, 0, "")
		p.CellFormat(35, height, Money(item.UnitPrice, doc.Currency), "1", 0, "R", false, 0, "")
		p.CellFormat(35, height, Money(item.Total, doc.Currency), "1", 1, "R", false, 0, "")
	}
	p.Ln(3)

	r.totalRow("Subtotal", doc.Subtotal, doc.Currency, false)
	if !doc.AssemblySurcharge.IsZero() {
		r.totalRow("Assembly", doc.AssemblySurcharge, doc.Currency, false)
	}
	r.totalRow("Delivery", doc.DeliveryFee, doc.Currency, false)
	if doc.Discount.IsPositive() {
		r.totalRow("Discount", doc.Discount.Neg(), doc.Currency, false)
	}
	r.totalRow("GST", doc.GST, doc.Currency, false)
	r.totalRow("Total", doc.Total, doc.Currency, true)

	if strings.TrimSpace(doc.Notes) != "" {
		p.Ln(6)
		p.SetFont("Helvetica", "B", 10)
		p.CellFormat(180, 6, "Notes", "", 1, "L", false, 0, "")
		p.SetFont("Helvetica", "", 9)
		p.MultiCell(180, 5, r.tr(doc.Notes), "", "L", false)
	}
	return r.bytes()
}

// RenderInvoice produces a milestone invoice PDF.
func RenderInvoice(doc InvoiceDocument) ([]byte, error) {
	if strings.TrimSpace(doc.Number) == "" {
		return nil, errNumberRequired
	}

	r := newRenderer("Tax Invoice " + doc.Number)
	r.header(doc.Business, "TAX INVOICE", doc.Number)
	r.party("Bill to", doc.Customer)

	r.keyValue("Order", doc.OrderNumber)
	milestone := capitalize(strings.ReplaceAll(doc.Milestone, "_", " "))
	if doc.Percentage.IsPositive() {
		milestone = fmt.Sprintf("%s (%s%% of order)", milestone, doc.Percentage.StringFixed(0))
	}
	r.keyValue("Milestone", milestone)
	r.keyValue("Issued", doc.IssuedAt.Format(dateLayout))
	if doc.DueDate != nil {
		r.keyValue("Due", doc.DueDate.Format(dateLayout))
	}
	r.pdf.Ln(6)

	if doc.OrderTotal.IsPositive() {
		r.totalRow("Order total", doc.OrderTotal, doc.Currency, false)
	}
	r.totalRow("GST included", doc.GST, doc.Currency, false)
	r.totalRow("Amount due", doc.Amount, doc.Currency, true)

	if note := strings.TrimSpace(doc.PaymentNote); note != "" {
		r.pdf.Ln(6)
		r.pdf.SetFont("Helvetica", "", 9)
		r.pdf.MultiCell(180, 5, r.tr(note), "", "L", false)
	}
	return r.bytes()
}

// Money formats an amount with a currency prefix and thousands separators.
func Money(amount decimal.Decimal, currency string) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Abs()
	}
	fixed := amount.StringFixed(2)
	whole, cents, _ := strings.Cut(fixed, ".")
	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}
	prefix := "$"
	if currency != "" && !strings.EqualFold(currency, "AUD") {
		prefix = strings.ToUpper(currency) + " "
	}
	return fmt.Sprintf("%s%s%s.%s", sign, prefix, grouped.String(), cents)
}

func capitalize(value string) string {
	if value == "" {
		return value
	}
	return strings.ToUpper(value[:1]) + value[1:]
}
