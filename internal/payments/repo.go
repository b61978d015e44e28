package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payments repository bound to the provided DB handle.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) locking(ctx context.Context, forUpdate bool) *gorm.DB {
	q := r.db.WithContext(ctx)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func (r *repository) CreateSchedules(ctx context.Context, schedules []models.PaymentSchedule) error {
	if len(schedules) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&schedules).Error
}

func (r *repository) ListSchedules(ctx context.Context, orderID uuid.UUID) ([]models.PaymentSchedule, error) {
	var schedules []models.PaymentSchedule
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("sequence ASC").
		Find(&schedules).Error
	return schedules, err
}

func (r *repository) FindSchedule(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.PaymentSchedule, error) {
	var schedule models.PaymentSchedule
	if err := r.locking(ctx, forUpdate).Where("id = ?", id).First(&schedule).Error; err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *repository) UpdateSchedule(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.PaymentSchedule{}).Where("id = ?", id).Updates(updates).Error
}

func (r *repository) CancelOpenSchedules(ctx context.Context, orderID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentSchedule{}).
		Where("order_id = ? AND status IN ?", orderID, []enums.ScheduleStatus{enums.ScheduleStatusPending, enums.ScheduleStatusOverdue}).
		Updates(map[string]any{"status": enums.ScheduleStatusCancelled, "locked": true})
	return res.RowsAffected, res.Error
}

// OverdueCandidates returns unlocked pending milestones whose due date has passed.
func (r *repository) OverdueCandidates(ctx context.Context, now time.Time, limit int) ([]models.PaymentSchedule, error) {
	var schedules []models.PaymentSchedule
	err := r.db.WithContext(ctx).
		Where("status = ? AND locked = ? AND due_date IS NOT NULL AND due_date < ?", enums.ScheduleStatusPending, false, now).
		Order("due_date ASC").
		Limit(limit).
		Find(&schedules).Error
	return schedules, err
}

func (r *repository) MarkOverdue(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentSchedule{}).
		Where("id = ? AND status = ?", id, enums.ScheduleStatusPending).
		Update("status", enums.ScheduleStatusOverdue)
	return res.RowsAffected, res.Error
}

func (r *repository) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) FindInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) FindOpenInvoice(ctx context.Context, scheduleID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Where("payment_schedule_id = ? AND status = ?", scheduleID, enums.InvoiceStatusIssued).
		Order("issued_at DESC").
		First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) ListInvoices(ctx context.Context, orderID uuid.UUID) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("issued_at ASC").
		Find(&invoices).Error
	return invoices, err
}

func (r *repository) UpdateInvoice(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Invoice{}).Where("id = ?", id).Updates(updates).Error
}

func (r *repository) VoidOpenInvoices(ctx context.Context, orderID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("order_id = ? AND status = ?", orderID, enums.InvoiceStatusIssued).
		Updates(map[string]any{"status": enums.InvoiceStatusVoid, "voided_at": at})
	return res.RowsAffected, res.Error
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) ListPayments(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&payments).Error
	return payments, err
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.Order, error) {
	var order models.Order
	if err := r.locking(ctx, forUpdate).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
}

func (r *repository) FindCustomer(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
