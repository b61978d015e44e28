package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/pkg/db/models"
)

// Repository persists payment schedules, invoices and payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateSchedules(ctx context.Context, schedules []models.PaymentSchedule) error
	ListSchedules(ctx context.Context, orderID uuid.UUID) ([]models.PaymentSchedule, error)
	FindSchedule(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.PaymentSchedule, error)
	UpdateSchedule(ctx context.Context, id uuid.UUID, updates map[string]any) error
	CancelOpenSchedules(ctx context.Context, orderID uuid.UUID) (int64, error)
	OverdueCandidates(ctx context.Context, now time.Time, limit int) ([]models.PaymentSchedule, error)
	MarkOverdue(ctx context.Context, id uuid.UUID) (int64, error)

	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
	FindInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	FindOpenInvoice(ctx context.Context, scheduleID uuid.UUID) (*models.Invoice, error)
	ListInvoices(ctx context.Context, orderID uuid.UUID) ([]models.Invoice, error)
	UpdateInvoice(ctx context.Context, id uuid.UUID, updates map[string]any) error
	VoidOpenInvoices(ctx context.Context, orderID uuid.UUID, at time.Time) (int64, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error
	ListPayments(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)

	FindOrder(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
	FindCustomer(ctx context.Context, id uuid.UUID) (*models.User, error)
}
