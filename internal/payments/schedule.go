package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/pkg/config"
	"github.com/northcraft/cabinetry-backend/pkg/db"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
	"github.com/northcraft/cabinetry-backend/pkg/outbox"
	"github.com/northcraft/cabinetry-backend/pkg/outbox/payloads"
)

var hundred = decimal.NewFromInt(100)

// Milestone is a planned installment before it is persisted.
type Milestone struct {
	Milestone  enums.PaymentMilestone
	Percentage decimal.Decimal
	Amount     decimal.Decimal
}

// BuildSchedule splits an order total into deposit, progress and balance
// installments. The balance absorbs rounding so the amounts always sum to
// the total. A zero progress percentage skips that milestone and a zero
// balance is omitted.
func BuildSchedule(total, depositPercent, progressPercent decimal.Decimal) []Milestone {
	total = total.Round(2)
	deposit := total.Mul(depositPercent).Div(hundred).Round(2)
	progress := decimal.Zero
	if progressPercent.IsPositive() {
		progress = total.Mul(progressPercent).Div(hundred).Round(2)
	}
	balance := total.Sub(deposit).Sub(progress)

	plan := []Milestone{{
		Milestone:  enums.PaymentMilestoneDeposit,
		Percentage: depositPercent,
		Amount:     deposit,
	}}
	if progress.IsPositive() {
		plan = append(plan, Milestone{
			Milestone:  enums.PaymentMilestoneProgress,
			Percentage: progressPercent,
			Amount:     progress,
		})
	}
	if balance.IsPositive() {
		plan = append(plan, Milestone{
			Milestone:  enums.PaymentMilestoneBalance,
			Percentage: hundred.Sub(depositPercent).Sub(progressPercent),
			Amount:     balance,
		})
	}
	return plan
}

// GSTComponent returns the GST contained in a GST-inclusive amount.
func GSTComponent(gross, gstPercent decimal.Decimal) decimal.Decimal {
	if !gstPercent.IsPositive() {
		return decimal.Zero
	}
	return gross.Mul(gstPercent).Div(hundred.Add(gstPercent)).Round(2)
}

// SchedulerParams wires a Scheduler.
type SchedulerParams struct {
	Repo    Repository
	Emitter outbox.Emitter
	Pricing config.PricingConfig
	Logger  *logger.Logger
	Now     func() time.Time
}

// Scheduler owns the payment plan of an order. Every method runs inside the
// caller's transaction so plan changes commit with the order change that
// caused them.
type Scheduler struct {
	repo     Repository
	emitter  outbox.Emitter
	deposit  decimal.Decimal
	progress decimal.Decimal
	gst      decimal.Decimal
	terms    int
	logg     *logger.Logger
	now      func() time.Time
}

// NewScheduler builds a Scheduler from config percentages and payment terms.
func NewScheduler(params SchedulerParams) (*Scheduler, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	terms := params.Pricing.PaymentTermsDays
	if terms <= 0 {
		terms = 7
	}
	return &Scheduler{
		repo:     params.Repo,
		emitter:  params.Emitter,
		deposit:  params.Pricing.Deposit(),
		progress: params.Pricing.Progress(),
		gst:      params.Pricing.GST(),
		terms:    terms,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// Create persists the plan for a new order. The deposit is unlocked with an
// invoice straight away; later milestones stay locked until fulfilment
// reaches them. A zero deposit has nothing to collect, so it is recorded as
// paid and the order's deposit gate is cleared in the same transaction.
func (s *Scheduler) Create(ctx context.Context, tx *gorm.DB, order *models.Order) ([]models.PaymentSchedule, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order required for payment schedule")
	}
	repo := s.repo.WithTx(tx)
	now := s.now()
	due := s.dueFrom(now)

	plan := BuildSchedule(order.Total, s.deposit, s.progress)
	schedules := make([]models.PaymentSchedule, 0, len(plan))
	for i, step := range plan {
		row := models.PaymentSchedule{
			ID:         uuid.New(),
			OrderID:    order.ID,
			Milestone:  step.Milestone,
			Sequence:   i + 1,
			Percentage: step.Percentage,
			Amount:     step.Amount,
			AmountPaid: decimal.Zero,
			Status:     enums.ScheduleStatusPending,
			Locked:     true,
		}
		if step.Milestone == enums.PaymentMilestoneDeposit {
			row.Locked = false
			row.UnlockedAt = &now
			row.DueDate = &due
			if !step.Amount.IsPositive() {
				row.Status = enums.ScheduleStatusPaid
				row.PaidAt = &now
			}
		}
		schedules = append(schedules, row)
	}
	if err := repo.CreateSchedules(ctx, schedules); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create payment schedule")
	}
	if schedules[0].Status == enums.ScheduleStatusPaid {
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"deposit_paid_at": now}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settle zero deposit")
		}
		order.DepositPaidAt = &now
		return schedules, nil
	}
	if _, err := s.issueInvoice(ctx, tx, order, &schedules[0]); err != nil {
		return nil, err
	}
	return schedules, nil
}

// OnOrderStatus unlocks the milestone tied to an order transition:
// in_production opens the progress payment and ready_for_dispatch opens the
// balance.
func (s *Scheduler) OnOrderStatus(ctx context.Context, tx *gorm.DB, order *models.Order, to enums.OrderStatus) error {
	var milestone enums.PaymentMilestone
	switch to {
	case enums.OrderStatusInProduction:
		milestone = enums.PaymentMilestoneProgress
	case enums.OrderStatusReadyForDispatch:
		milestone = enums.PaymentMilestoneBalance
	default:
		return nil
	}
	schedules, err := s.repo.WithTx(tx).ListSchedules(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment schedule")
	}
	for i := range schedules {
		schedule := &schedules[i]
		if schedule.Milestone != milestone || !schedule.Locked || schedule.Status != enums.ScheduleStatusPending {
			continue
		}
		if err := s.Unlock(ctx, tx, order, schedule); err != nil {
			return err
		}
	}
	return nil
}

// Unlock opens a milestone for payment, defaulting its due date from the
// payment terms, and issues an invoice when none is outstanding.
func (s *Scheduler) Unlock(ctx context.Context, tx *gorm.DB, order *models.Order, schedule *models.PaymentSchedule) error {
	repo := s.repo.WithTx(tx)
	now := s.now()
	if schedule.Locked {
		updates := map[string]any{"locked": false, "unlocked_at": now}
		if schedule.DueDate == nil {
			due := s.dueFrom(now)
			schedule.DueDate = &due
			updates["due_date"] = due
		}
		if err := repo.UpdateSchedule(ctx, schedule.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unlock milestone")
		}
		schedule.Locked = false
		schedule.UnlockedAt = &now
	}

	_, err := repo.FindOpenInvoice(ctx, schedule.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load invoice")
	}
	_, err = s.issueInvoice(ctx, tx, order, schedule)
	return err
}

// CancelOrder stops collection on a cancelled order: open milestones are
// cancelled and unpaid invoices voided.
func (s *Scheduler) CancelOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	if _, err := repo.CancelOpenSchedules(ctx, orderID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel payment schedule")
	}
	if _, err := repo.VoidOpenInvoices(ctx, orderID, s.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "void invoices")
	}
	return nil
}

// DepositAmount returns the deposit a new order of the given total carries.
func (s *Scheduler) DepositAmount(total decimal.Decimal) decimal.Decimal {
	return BuildSchedule(total, s.deposit, s.progress)[0].Amount
}

func (s *Scheduler) issueInvoice(ctx context.Context, tx *gorm.DB, order *models.Order, schedule *models.PaymentSchedule) (*models.Invoice, error) {
	number, err := db.NextDocumentNumber(tx, db.SequenceInvoice)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "allocate invoice number")
	}
	amount := schedule.Remaining()
	invoice := &models.Invoice{
		ID:                uuid.New(),
		InvoiceNumber:     number,
		OrderID:           order.ID,
		PaymentScheduleID: schedule.ID,
		Amount:            amount,
		GST:               GSTComponent(amount, s.gst),
		Status:            enums.InvoiceStatusIssued,
		IssuedAt:          s.now(),
		DueDate:           schedule.DueDate,
	}
	if err := s.repo.WithTx(tx).CreateInvoice(ctx, invoice); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create invoice")
	}
	err = s.emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventInvoiceIssued,
		AggregateType: enums.AggregateInvoice,
		AggregateID:   invoice.ID,
		Data: payloads.InvoiceIssuedEvent{
			InvoiceID:     invoice.ID,
			InvoiceNumber: invoice.InvoiceNumber,
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			CustomerID:    order.CustomerID,
			ScheduleID:    schedule.ID,
			Milestone:     schedule.Milestone,
			Amount:        invoice.Amount,
			DueDate:       invoice.DueDate,
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit invoice issued")
	}
	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"invoice_number": invoice.InvoiceNumber,
			"order_id":       order.ID.String(),
			"milestone":      string(schedule.Milestone),
		})
		s.logg.Info(ctx, "invoice issued")
	}
	return invoice, nil
}

func (s *Scheduler) dueFrom(now time.Time) time.Time {
	return now.AddDate(0, 0, s.terms)
}
