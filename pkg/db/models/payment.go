package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/northcraft/cabinetry-backend/pkg/enums"
)

// PaymentSchedule is one installment of an order's payment plan.
type PaymentSchedule struct {
	ID         uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID              `gorm:"column:order_id;type:uuid;not null"`
	Milestone  enums.PaymentMilestone `gorm:"column:milestone;not null"`
	Sequence   int                    `gorm:"column:sequence;not null"`
	Percentage decimal.Decimal        `gorm:"column:percentage;type:numeric(5,2);not null"`
	Amount     decimal.Decimal        `gorm:"column:amount;type:numeric(12,2);not null"`
	AmountPaid decimal.Decimal        `gorm:"column:amount_paid;type:numeric(12,2);not null"`
	Status     enums.ScheduleStatus   `gorm:"column:status;not null;default:'pending'"`
	Locked     bool                   `gorm:"column:locked;not null"`
	UnlockedAt *time.Time             `gorm:"column:unlocked_at"`
	DueDate    *time.Time             `gorm:"column:due_date"`
	PaidAt     *time.Time             `gorm:"column:paid_at"`
	CreatedAt  time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// Remaining returns the unpaid portion of the milestone.
func (s PaymentSchedule) Remaining() decimal.Decimal {
	remaining := s.Amount.Sub(s.AmountPaid)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// Invoice is issued when a milestone is unlocked for payment.
type Invoice struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceNumber     string              `gorm:"column:invoice_number;not null;uniqueIndex"`
	OrderID           uuid.UUID           `gorm:"column:order_id;type:uuid;not null"`
	PaymentScheduleID uuid.UUID           `gorm:"column:payment_schedule_id;type:uuid;not null"`
	Amount            decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	GST               decimal.Decimal     `gorm:"column:gst;type:numeric(12,2);not null"`
	Status            enums.InvoiceStatus `gorm:"column:status;not null;default:'issued'"`
	IssuedAt          time.Time           `gorm:"column:issued_at;not null"`
	DueDate           *time.Time          `gorm:"column:due_date"`
	PaidAt            *time.Time          `gorm:"column:paid_at"`
	VoidedAt          *time.Time          `gorm:"column:voided_at"`
	PDFObject         *string             `gorm:"column:pdf_object"`
	PDFURL            *string             `gorm:"column:pdf_url"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// Payment records a single capture attempt against a milestone.
type Payment struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID             `gorm:"column:order_id;type:uuid;not null"`
	PaymentScheduleID uuid.UUID             `gorm:"column:payment_schedule_id;type:uuid;not null"`
	InvoiceID         *uuid.UUID            `gorm:"column:invoice_id;type:uuid"`
	Amount            decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency          string                `gorm:"column:currency;not null;default:'AUD'"`
	Method            enums.PaymentMethod   `gorm:"column:method;not null"`
	Provider          enums.PaymentProvider `gorm:"column:provider;not null"`
	ProviderPaymentID *string               `gorm:"column:provider_payment_id"`
	Status            enums.PaymentStatus   `gorm:"column:status;not null"`
	Reference         *string               `gorm:"column:reference"`
	RecordedBy        *uuid.UUID            `gorm:"column:recorded_by;type:uuid"`
	PaidAt            *time.Time            `gorm:"column:paid_at"`
	FailureReason     *string               `gorm:"column:failure_reason"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime"`
}
