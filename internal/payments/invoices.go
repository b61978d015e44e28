package payments

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/documents"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
)

const pdfContentType = "application/pdf"

// InvoicePDF returns the invoice with a stored PDF, rendering it on first
// request.
func (s *service) InvoicePDF(ctx context.Context, customerID *uuid.UUID, invoiceID uuid.UUID) (*InvoiceDTO, error) {
	invoice, order, err := s.invoiceFor(ctx, customerID, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.PDFURL != nil && *invoice.PDFURL != "" {
		dto := toInvoiceDTO(*invoice)
		return &dto, nil
	}
	return s.storePDF(ctx, invoice, order)
}

func (s *service) RegenerateInvoicePDF(ctx context.Context, invoiceID uuid.UUID) (*InvoiceDTO, error) {
	invoice, order, err := s.invoiceFor(ctx, nil, invoiceID)
	if err != nil {
		return nil, err
	}
	return s.storePDF(ctx, invoice, order)
}

func (s *service) storePDF(ctx context.Context, invoice *models.Invoice, order *models.Order) (*InvoiceDTO, error) {
	if s.storage == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "document storage is unavailable")
	}
	doc, err := s.invoiceDocument(ctx, invoice, order)
	if err != nil {
		return nil, err
	}
	pdf, err := documents.RenderInvoice(doc)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render invoice")
	}
	object := InvoiceObjectKey(order.OrderNumber, invoice.InvoiceNumber)
	if _, err := s.storage.Upload(ctx, object, pdfContentType, bytes.NewReader(pdf)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload invoice pdf")
	}
	url := s.storage.PublicURL(object)
	if err := s.repo.UpdateInvoice(ctx, invoice.ID, map[string]any{
		"pdf_object": object,
		"pdf_url":    url,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store invoice pdf")
	}
	invoice.PDFObject = &object
	invoice.PDFURL = &url
	dto := toInvoiceDTO(*invoice)
	return &dto, nil
}

func (s *service) invoiceDocument(ctx context.Context, invoice *models.Invoice, order *models.Order) (documents.InvoiceDocument, error) {
	schedule, err := s.repo.FindSchedule(ctx, invoice.PaymentScheduleID, false)
	if err != nil {
		return documents.InvoiceDocument{}, notFoundOr(err, "payment milestone")
	}
	customer, err := s.repo.FindCustomer(ctx, order.CustomerID)
	if err != nil {
		return documents.InvoiceDocument{}, notFoundOr(err, "customer")
	}
	party := documents.Party{Name: customer.FullName(), Email: customer.Email}
	if customer.Phone != nil {
		party.Phone = *customer.Phone
	}
	if order.ShippingAddress != nil {
		party.Address = strings.Join(order.ShippingAddress.Lines(), ", ")
	}
	return documents.InvoiceDocument{
		Business:    s.business,
		Number:      invoice.InvoiceNumber,
		OrderNumber: order.OrderNumber,
		Milestone:   string(schedule.Milestone),
		Percentage:  schedule.Percentage,
		IssuedAt:    invoice.IssuedAt,
		DueDate:     invoice.DueDate,
		Customer:    party,
		Amount:      invoice.Amount,
		GST:         invoice.GST,
		OrderTotal:  order.Total,
		Currency:    s.currency,
		PaymentNote: fmt.Sprintf("Pay online from your order page, or by bank transfer quoting %s.", invoice.InvoiceNumber),
	}, nil
}

// InvoiceObjectKey is the storage path of an invoice PDF.
func InvoiceObjectKey(orderNumber, invoiceNumber string) string {
	return fmt.Sprintf("invoices/%s/%s.pdf", orderNumber, invoiceNumber)
}
