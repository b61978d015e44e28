package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
)

// ScheduleDTO is the API view of a payment milestone.
type ScheduleDTO struct {
	ID         uuid.UUID              `json:"id"`
	OrderID    uuid.UUID              `json:"order_id"`
	Milestone  enums.PaymentMilestone `json:"milestone"`
	Sequence   int                    `json:"sequence"`
	Percentage decimal.Decimal        `json:"percentage"`
	Amount     decimal.Decimal        `json:"amount"`
	AmountPaid decimal.Decimal        `json:"amount_paid"`
	Remaining  decimal.Decimal        `json:"remaining"`
	Status     enums.ScheduleStatus   `json:"status"`
	Locked     bool                   `json:"locked"`
	UnlockedAt *time.Time             `json:"unlocked_at,omitempty"`
	DueDate    *time.Time             `json:"due_date,omitempty"`
	PaidAt     *time.Time             `json:"paid_at,omitempty"`
}

// InvoiceDTO is the API view of an invoice.
type InvoiceDTO struct {
	ID                uuid.UUID           `json:"id"`
	InvoiceNumber     string              `json:"invoice_number"`
	OrderID           uuid.UUID           `json:"order_id"`
	PaymentScheduleID uuid.UUID           `json:"payment_schedule_id"`
	Amount            decimal.Decimal     `json:"amount"`
	GST               decimal.Decimal     `json:"gst"`
	Status            enums.InvoiceStatus `json:"status"`
	IssuedAt          time.Time           `json:"issued_at"`
	DueDate           *time.Time          `json:"due_date,omitempty"`
	PaidAt            *time.Time          `json:"paid_at,omitempty"`
	VoidedAt          *time.Time          `json:"voided_at,omitempty"`
	PDFURL            *string             `json:"pdf_url,omitempty"`
}

// PaymentDTO is the API view of a payment attempt.
type PaymentDTO struct {
	ID                uuid.UUID             `json:"id"`
	OrderID           uuid.UUID             `json:"order_id"`
	PaymentScheduleID uuid.UUID             `json:"payment_schedule_id"`
	InvoiceID         *uuid.UUID            `json:"invoice_id,omitempty"`
	Amount            decimal.Decimal       `json:"amount"`
	Currency          string                `json:"currency"`
	Method            enums.PaymentMethod   `json:"method"`
	Provider          enums.PaymentProvider `json:"provider"`
	ProviderPaymentID *string               `json:"provider_payment_id,omitempty"`
	Status            enums.PaymentStatus   `json:"status"`
	Reference         *string               `json:"reference,omitempty"`
	PaidAt            *time.Time            `json:"paid_at,omitempty"`
	FailureReason     *string               `json:"failure_reason,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
}

// PayMilestoneInput carries the tokenized card from the web payment form.
type PayMilestoneInput struct {
	SourceID string `json:"source_id" validate:"required,max=255"`
}

// ManualPaymentInput records money received outside the card gateway.
type ManualPaymentInput struct {
	Amount    decimal.Decimal     `json:"amount"`
	Method    enums.PaymentMethod `json:"method" validate:"required"`
	Reference *string             `json:"reference,omitempty" validate:"omitempty,max=255"`
	PaidAt    *time.Time          `json:"paid_at,omitempty"`
}

// DueDateInput moves a milestone's due date.
type DueDateInput struct {
	DueDate time.Time `json:"due_date" validate:"required"`
}

// VoidInvoiceInput voids an unpaid invoice.
type VoidInvoiceInput struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

func toScheduleDTO(s models.PaymentSchedule) ScheduleDTO {
	return ScheduleDTO{
		ID:         s.ID,
		OrderID:    s.OrderID,
		Milestone:  s.Milestone,
		Sequence:   s.Sequence,
		Percentage: s.Percentage,
		Amount:     s.Amount,
		AmountPaid: s.AmountPaid,
		Remaining:  s.Remaining(),
		Status:     s.Status,
		Locked:     s.Locked,
		UnlockedAt: s.UnlockedAt,
		DueDate:    s.DueDate,
		PaidAt:     s.PaidAt,
	}
}

func toInvoiceDTO(i models.Invoice) InvoiceDTO {
	return InvoiceDTO{
		ID:                i.ID,
		InvoiceNumber:     i.InvoiceNumber,
		OrderID:           i.OrderID,
		PaymentScheduleID: i.PaymentScheduleID,
		Amount:            i.Amount,
		GST:               i.GST,
		Status:            i.Status,
		IssuedAt:          i.IssuedAt,
		DueDate:           i.DueDate,
		PaidAt:            i.PaidAt,
		VoidedAt:          i.VoidedAt,
		PDFURL:            i.PDFURL,
	}
}

func toPaymentDTO(p models.Payment) PaymentDTO {
	return PaymentDTO{
		ID:                p.ID,
		OrderID:           p.OrderID,
		PaymentScheduleID: p.PaymentScheduleID,
		InvoiceID:         p.InvoiceID,
		Amount:            p.Amount,
		Currency:          p.Currency,
		Method:            p.Method,
		Provider:          p.Provider,
		ProviderPaymentID: p.ProviderPaymentID,
		Status:            p.Status,
		Reference:         p.Reference,
		PaidAt:            p.PaidAt,
		FailureReason:     p.FailureReason,
		CreatedAt:         p.CreatedAt,
	}
}
