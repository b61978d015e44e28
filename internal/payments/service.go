package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/pkg/config"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/documents"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
	"github.com/northcraft/cabinetry-backend/pkg/outbox"
	"github.com/northcraft/cabinetry-backend/pkg/outbox/payloads"
	"github.com/northcraft/cabinetry-backend/pkg/square"
	"github.com/northcraft/cabinetry-backend/pkg/storage/gcs"
)

const (
	overdueBatchSize      = 200
	squareStatusCompleted = "COMPLETED"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Gateway charges a tokenized card against the customer's Square record.
type Gateway interface {
	EnsureCustomer(ctx context.Context, params square.CustomerCreateParams) (*sq.Customer, error)
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
}

// OrderProgressor advances an order once its deposit clears.
type OrderProgressor interface {
	DepositReceived(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

// Service manages milestones, invoices and payments. Methods taking a
// customerID restrict results to that customer's orders; nil means an
// administrator.
type Service interface {
	ListSchedules(ctx context.Context, customerID *uuid.UUID, orderID uuid.UUID) ([]ScheduleDTO, error)
	Lock(ctx context.Context, scheduleID uuid.UUID) (*ScheduleDTO, error)
	Unlock(ctx context.Context, scheduleID uuid.UUID) (*ScheduleDTO, error)
	UpdateDueDate(ctx context.Context, scheduleID uuid.UUID, input DueDateInput) (*ScheduleDTO, error)

	ListInvoices(ctx context.Context, customerID *uuid.UUID, orderID uuid.UUID) ([]InvoiceDTO, error)
	GetInvoice(ctx context.Context, customerID *uuid.UUID, invoiceID uuid.UUID) (*InvoiceDTO, error)
	VoidInvoice(ctx context.Context, invoiceID uuid.UUID, input VoidInvoiceInput) (*InvoiceDTO, error)
	InvoicePDF(ctx context.Context, customerID *uuid.UUID, invoiceID uuid.UUID) (*InvoiceDTO, error)
	RegenerateInvoicePDF(ctx context.Context, invoiceID uuid.UUID) (*InvoiceDTO, error)

	PayMilestone(ctx context.Context, customerID, scheduleID uuid.UUID, input PayMilestoneInput) (*PaymentDTO, error)
	RecordManualPayment(ctx context.Context, adminID, scheduleID uuid.UUID, input ManualPaymentInput) (*PaymentDTO, error)
	ListPayments(ctx context.Context, customerID *uuid.UUID, orderID uuid.UUID) ([]PaymentDTO, error)
	MarkOverdue(ctx context.Context) (int, error)
}

// ServiceParams wires the payments service. Gateway and Storage are
// optional; the operations needing them report a dependency error when
// they are absent.
type ServiceParams struct {
	Repo      Repository
	TxRunner  txRunner
	Scheduler *Scheduler
	Orders    OrderProgressor
	Gateway   Gateway
	Storage   gcs.ObjectStore
	Emitter   outbox.Emitter
	Pricing   config.PricingConfig
	Business  config.BusinessConfig
	Logger    *logger.Logger
	Now       func() time.Time
}

type service struct {
	repo      Repository
	tx        txRunner
	scheduler *Scheduler
	orders    OrderProgressor
	gateway   Gateway
	storage   gcs.ObjectStore
	emitter   outbox.Emitter
	currency  string
	business  documents.Business
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the payments service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Scheduler == nil {
		return nil, fmt.Errorf("payment scheduler required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order progressor required")
	}
	if params.Emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	currency := strings.ToUpper(strings.TrimSpace(params.Pricing.Currency))
	if currency == "" {
		currency = "AUD"
	}
	return &service{
		repo:      params.Repo,
		tx:        params.TxRunner,
		scheduler: params.Scheduler,
		orders:    params.Orders,
		gateway:   params.Gateway,
		storage:   params.Storage,
		emitter:   params.Emitter,
		currency:  currency,
		business:  documents.NewBusiness(params.Business),
		logg:      params.Logger,
		now:       now,
	}, nil
}

func (s *service) ListSchedules(ctx context.Context, customerID *uuid.UUID, orderID uuid.UUID) ([]ScheduleDTO, error) {
	if _, err := s.orderFor(ctx, s.repo, customerID, orderID); err != nil {
		return nil, err
	}
	schedules, err := s.repo.ListSchedules(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payment schedule")
	}
	out := make([]ScheduleDTO, 0, len(schedules))
	for _, schedule := range schedules {
		out = append(out, toScheduleDTO(schedule))
	}
	return out, nil
}

func (s *service) Lock(ctx context.Context, scheduleID uuid.UUID) (*ScheduleDTO, error) {
	return s.mutateSchedule(ctx, scheduleID, func(repo Repository, tx *gorm.DB, schedule *models.PaymentSchedule) error {
		if err := ensureOpen(schedule, "lock"); err != nil {
			return err
		}
		if schedule.Locked {
			return nil
		}
		if err := repo.UpdateSchedule(ctx, schedule.ID, map[string]any{"locked": true}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock milestone")
		}
		return nil
	})
}

func (s *service) Unlock(ctx context.Context, scheduleID uuid.UUID) (*ScheduleDTO, error) {
	return s.mutateSchedule(ctx, scheduleID, func(repo Repository, tx *gorm.DB, schedule *models.PaymentSchedule) error {
		if err := ensureOpen(schedule, "unlock"); err != nil {
			return err
		}
		order, err := repo.FindOrder(ctx, schedule.OrderID, false)
		if err != nil {
			return notFoundOr(err, "order")
		}
		return s.scheduler.Unlock(ctx, tx, order, schedule)
	})
}

func (s *service) UpdateDueDate(ctx context.Context, scheduleID uuid.UUID, input DueDateInput) (*ScheduleDTO, error) {
	if input.DueDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "due date is required")
	}
	due := input.DueDate.UTC()
	return s.mutateSchedule(ctx, scheduleID, func(repo Repository, tx *gorm.DB, schedule *models.PaymentSchedule) error {
		if err := ensureOpen(schedule, "reschedule"); err != nil {
			return err
		}
		updates := map[string]any{"due_date": due}
		if schedule.Status == enums.ScheduleStatusOverdue && due.After(s.now()) {
			updates["status"] = enums.ScheduleStatusPending
		}
		if err := repo.UpdateSchedule(ctx, schedule.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update due date")
		}
		invoice, err := repo.FindOpenInvoice(ctx, schedule.ID)
		switch {
		case err == nil:
			if err := repo.UpdateInvoice(ctx, invoice.ID, map[string]any{"due_date": due}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update invoice due date")
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load invoice")
		}
		return nil
	})
}

func (s *service) ListInvoices(ctx context.Context, customerID *uuid.UUID, orderID uuid.UUID) ([]InvoiceDTO, error) {
	if _, err := s.orderFor(ctx, s.repo, customerID, orderID); err != nil {
		return nil, err
	}
	invoices, err := s.repo.ListInvoices(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list invoices")
	}
	out := make([]InvoiceDTO, 0, len(invoices))
	for _, invoice := range invoices {
		out = append(out, toInvoiceDTO(invoice))
	}
	return out, nil
}

func (s *service) GetInvoice(ctx context.Context, customerID *uuid.UUID, invoiceID uuid.UUID) (*InvoiceDTO, error) {
	invoice, _, err := s.invoiceFor(ctx, customerID, invoiceID)
	if err != nil {
		return nil, err
	}
	dto := toInvoiceDTO(*invoice)
	return &dto, nil
}

func (s *service) VoidInvoice(ctx context.Context, invoiceID uuid.UUID, input VoidInvoiceInput) (*InvoiceDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		invoice, err := repo.FindInvoice(ctx, invoiceID)
		if err != nil {
			return notFoundOr(err, "invoice")
		}
		if invoice.Status != enums.InvoiceStatusIssued {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot void a %s invoice", invoice.Status))
		}
		if err := repo.UpdateInvoice(ctx, invoice.ID, map[string]any{
			"status":    enums.InvoiceStatusVoid,
			"voided_at": s.now(),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "void invoice")
		}
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"invoice_number": invoice.InvoiceNumber,
				"reason":         strings.TrimSpace(input.Reason),
			})
			s.logg.Info(logCtx, "invoice voided")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetInvoice(ctx, nil, invoiceID)
}

func (s *service) PayMilestone(ctx context.Context, customerID, scheduleID uuid.UUID, input PayMilestoneInput) (*PaymentDTO, error) {
	sourceID := strings.TrimSpace(input.SourceID)
	if sourceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source_id is required")
	}
	if s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "card payments are unavailable")
	}
	schedule, err := s.repo.FindSchedule(ctx, scheduleID, false)
	if err != nil {
		return nil, notFoundOr(err, "payment milestone")
	}
	order, err := s.orderFor(ctx, s.repo, &customerID, schedule.OrderID)
	if err != nil {
		return nil, err
	}
	if err := ensurePayable(schedule); err != nil {
		return nil, err
	}

	squareCustomerID, err := s.squareCustomer(ctx, order.CustomerID)
	if err != nil {
		return nil, err
	}

	amount := schedule.Remaining()
	charge, err := s.gateway.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:    square.AmountCents(amount),
		Currency:       s.currency,
		CustomerID:     squareCustomerID,
		SourceID:       sourceID,
		IdempotencyKey: IdempotencyKey(schedule),
		Note:           fmt.Sprintf("%s %s payment", order.OrderNumber, schedule.Milestone),
		ReferenceID:    order.OrderNumber,
	})
	if err != nil {
		s.recordFailure(ctx, order, schedule, amount, nil, err.Error())
		return nil, err
	}
	providerID := charge.GetID()
	if status := charge.GetStatus(); status == nil || *status != squareStatusCompleted {
		reason := "card payment was not completed"
		s.recordFailure(ctx, order, schedule, amount, providerID, reason)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, reason)
	}

	paidAt := s.now()
	return s.applyInTx(ctx, application{
		scheduleID:        schedule.ID,
		amount:            amount,
		method:            enums.PaymentMethodCard,
		provider:          enums.PaymentProviderSquare,
		providerPaymentID: providerID,
		paidAt:            paidAt,
		allowOverpay:      true,
		actor:             &outbox.ActorRef{UserID: customerID, Role: string(enums.UserRoleCustomer)},
	})
}

// squareCustomer finds or creates the Square customer the charge is filed
// under, keyed on our user id.
func (s *service) squareCustomer(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.repo.FindCustomer(ctx, userID)
	if err != nil {
		return "", notFoundOr(err, "customer")
	}
	params := square.CustomerCreateParams{
		Email:       user.Email,
		GivenName:   user.FirstName,
		FamilyName:  user.LastName,
		ReferenceID: user.ID.String(),
	}
	if user.Phone != nil {
		params.PhoneNumber = *user.Phone
	}
	customer, err := s.gateway.EnsureCustomer(ctx, params)
	if err != nil {
		return "", err
	}
	if customer == nil || customer.GetID() == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "square customer unavailable")
	}
	return *customer.GetID(), nil
}

func (s *service) RecordManualPayment(ctx context.Context, adminID, scheduleID uuid.UUID, input ManualPaymentInput) (*PaymentDTO, error) {
	amount := input.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	paidAt := s.now()
	if input.PaidAt != nil && !input.PaidAt.IsZero() {
		paidAt = input.PaidAt.UTC()
	}
	var reference *string
	if input.Reference != nil {
		if trimmed := strings.TrimSpace(*input.Reference); trimmed != "" {
			reference = &trimmed
		}
	}
	return s.applyInTx(ctx, application{
		scheduleID: scheduleID,
		amount:     amount,
		method:     input.Method,
		provider:   enums.PaymentProviderManual,
		reference:  reference,
		recordedBy: &adminID,
		paidAt:     paidAt,
		actor:      &outbox.ActorRef{UserID: adminID, Role: string(enums.UserRoleAdmin)},
	})
}

func (s *service) ListPayments(ctx context.Context, customerID *uuid.UUID, orderID uuid.UUID) ([]PaymentDTO, error) {
	if _, err := s.orderFor(ctx, s.repo, customerID, orderID); err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPayments(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payments")
	}
	out := make([]PaymentDTO, 0, len(payments))
	for _, payment := range payments {
		out = append(out, toPaymentDTO(payment))
	}
	return out, nil
}

// MarkOverdue flags unlocked pending milestones past their due date and
// emits payment.overdue for each.
func (s *service) MarkOverdue(ctx context.Context) (int, error) {
	candidates, err := s.repo.OverdueCandidates(ctx, s.now(), overdueBatchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load overdue milestones")
	}
	marked := 0
	for i := range candidates {
		schedule := candidates[i]
		changed := false
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			affected, err := repo.MarkOverdue(ctx, schedule.ID)
			if err != nil || affected == 0 {
				return err
			}
			changed = true
			order, err := repo.FindOrder(ctx, schedule.OrderID, false)
			if err != nil {
				return err
			}
			return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentOverdue,
				AggregateType: enums.AggregatePaymentSchedule,
				AggregateID:   schedule.ID,
				Data: payloads.PaymentOverdueEvent{
					ScheduleID:  schedule.ID,
					OrderID:     order.ID,
					OrderNumber: order.OrderNumber,
					CustomerID:  order.CustomerID,
					Milestone:   schedule.Milestone,
					AmountDue:   schedule.Remaining(),
					DueDate:     *schedule.DueDate,
				},
			})
		})
		if err != nil {
			return marked, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark milestone overdue")
		}
		if changed {
			marked++
		}
	}
	return marked, nil
}

// IdempotencyKey derives the gateway key for the next charge against a
// milestone. Retries of the same charge reuse it; a later charge after a
// partial payment gets a new one.
func IdempotencyKey(schedule *models.PaymentSchedule) string {
	seed := schedule.ID.String() + ":" + schedule.AmountPaid.StringFixed(2)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String()
}

type application struct {
	scheduleID        uuid.UUID
	amount            decimal.Decimal
	method            enums.PaymentMethod
	provider          enums.PaymentProvider
	providerPaymentID *string
	reference         *string
	recordedBy        *uuid.UUID
	paidAt            time.Time
	allowOverpay      bool
	actor             *outbox.ActorRef
}

func (s *service) applyInTx(ctx context.Context, in application) (*PaymentDTO, error) {
	var payment *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		payment, err = s.apply(ctx, tx, in)
		return err
	})
	if err != nil {
		if in.providerPaymentID != nil && s.logg != nil {
			logCtx := s.logg.WithField(ctx, "provider_payment_id", *in.providerPaymentID)
			s.logg.Error(logCtx, "captured card payment could not be applied", err)
		}
		return nil, err
	}
	dto := toPaymentDTO(*payment)
	return &dto, nil
}

// apply records a completed payment against a milestone and rolls the
// amounts up to the invoice and order. A fully paid deposit hands the order
// to the progressor.
func (s *service) apply(ctx context.Context, tx *gorm.DB, in application) (*models.Payment, error) {
	repo := s.repo.WithTx(tx)
	schedule, err := repo.FindSchedule(ctx, in.scheduleID, true)
	if err != nil {
		return nil, notFoundOr(err, "payment milestone")
	}
	if err := ensurePayable(schedule); err != nil {
		return nil, err
	}
	if !in.allowOverpay && in.amount.GreaterThan(schedule.Remaining()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount exceeds the remaining balance").
			WithDetails(map[string]string{"remaining": schedule.Remaining().StringFixed(2)})
	}
	order, err := repo.FindOrder(ctx, schedule.OrderID, true)
	if err != nil {
		return nil, notFoundOr(err, "order")
	}
	if order.Status == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is cancelled")
	}

	var invoiceID *uuid.UUID
	invoice, err := repo.FindOpenInvoice(ctx, schedule.ID)
	switch {
	case err == nil:
		invoiceID = &invoice.ID
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load invoice")
	}

	paid := schedule.AmountPaid.Add(in.amount)
	milestonePaid := paid.GreaterThanOrEqual(schedule.Amount)
	scheduleUpdates := map[string]any{"amount_paid": paid}
	if milestonePaid {
		scheduleUpdates["status"] = enums.ScheduleStatusPaid
		scheduleUpdates["paid_at"] = in.paidAt
	}
	if err := repo.UpdateSchedule(ctx, schedule.ID, scheduleUpdates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update milestone")
	}
	if milestonePaid && invoiceID != nil {
		if err := repo.UpdateInvoice(ctx, *invoiceID, map[string]any{
			"status":  enums.InvoiceStatusPaid,
			"paid_at": in.paidAt,
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark invoice paid")
		}
	}

	orderPaid := order.AmountPaid.Add(in.amount)
	balance := order.Total.Sub(orderPaid)
	if balance.IsNegative() {
		balance = decimal.Zero
	}
	orderUpdates := map[string]any{"amount_paid": orderPaid, "balance_due": balance}
	depositCleared := milestonePaid && schedule.Milestone == enums.PaymentMilestoneDeposit && order.DepositPaidAt == nil
	if depositCleared {
		orderUpdates["deposit_paid_at"] = in.paidAt
	}
	if err := repo.UpdateOrder(ctx, order.ID, orderUpdates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order balance")
	}

	paidAt := in.paidAt
	payment := &models.Payment{
		ID:                uuid.New(),
		OrderID:           order.ID,
		PaymentScheduleID: schedule.ID,
		InvoiceID:         invoiceID,
		Amount:            in.amount,
		Currency:          s.currency,
		Method:            in.method,
		Provider:          in.provider,
		ProviderPaymentID: in.providerPaymentID,
		Status:            enums.PaymentStatusCompleted,
		Reference:         in.reference,
		RecordedBy:        in.recordedBy,
		PaidAt:            &paidAt,
	}
	if err := repo.CreatePayment(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment")
	}
	err = s.emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentRecorded,
		AggregateType: enums.AggregatePaymentSchedule,
		AggregateID:   schedule.ID,
		Actor:         in.actor,
		Data: payloads.PaymentEvent{
			PaymentID:     payment.ID,
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			CustomerID:    order.CustomerID,
			ScheduleID:    schedule.ID,
			Milestone:     schedule.Milestone,
			Amount:        payment.Amount,
			Currency:      payment.Currency,
			Method:        payment.Method,
			Provider:      payment.Provider,
			Status:        payment.Status,
			MilestonePaid: milestonePaid,
			BalanceDue:    balance,
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit payment recorded")
	}
	if depositCleared && order.Status == enums.OrderStatusAwaitingDeposit {
		if err := s.orders.DepositReceived(ctx, tx, order.ID); err != nil {
			return nil, err
		}
	}
	return payment, nil
}

// recordFailure persists a declined charge outside the caller's flow so the
// attempt survives the error returned to the customer.
func (s *service) recordFailure(ctx context.Context, order *models.Order, schedule *models.PaymentSchedule, amount decimal.Decimal, providerID *string, reason string) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		payment := &models.Payment{
			ID:                uuid.New(),
			OrderID:           order.ID,
			PaymentScheduleID: schedule.ID,
			Amount:            amount,
			Currency:          s.currency,
			Method:            enums.PaymentMethodCard,
			Provider:          enums.PaymentProviderSquare,
			ProviderPaymentID: providerID,
			Status:            enums.PaymentStatusFailed,
			FailureReason:     &reason,
		}
		if err := s.repo.WithTx(tx).CreatePayment(ctx, payment); err != nil {
			return err
		}
		return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePaymentSchedule,
			AggregateID:   schedule.ID,
			Data: payloads.PaymentEvent{
				PaymentID:     payment.ID,
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				CustomerID:    order.CustomerID,
				ScheduleID:    schedule.ID,
				Milestone:     schedule.Milestone,
				Amount:        amount,
				Currency:      s.currency,
				Method:        payment.Method,
				Provider:      payment.Provider,
				Status:        payment.Status,
				BalanceDue:    order.BalanceDue,
				FailureReason: reason,
			},
		})
	})
	if err != nil && s.logg != nil {
		logCtx := s.logg.WithField(ctx, "schedule_id", schedule.ID.String())
		s.logg.Error(logCtx, "record failed payment", err)
	}
}

func (s *service) mutateSchedule(ctx context.Context, scheduleID uuid.UUID, fn func(repo Repository, tx *gorm.DB, schedule *models.PaymentSchedule) error) (*ScheduleDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		schedule, err := repo.FindSchedule(ctx, scheduleID, true)
		if err != nil {
			return notFoundOr(err, "payment milestone")
		}
		return fn(repo, tx, schedule)
	})
	if err != nil {
		return nil, err
	}
	schedule, err := s.repo.FindSchedule(ctx, scheduleID, false)
	if err != nil {
		return nil, notFoundOr(err, "payment milestone")
	}
	dto := toScheduleDTO(*schedule)
	return &dto, nil
}

// orderFor loads an order, hiding orders owned by other customers.
func (s *service) orderFor(ctx context.Context, repo Repository, customerID *uuid.UUID, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindOrder(ctx, orderID, false)
	if err != nil {
		return nil, notFoundOr(err, "order")
	}
	if customerID != nil && order.CustomerID != *customerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) invoiceFor(ctx context.Context, customerID *uuid.UUID, invoiceID uuid.UUID) (*models.Invoice, *models.Order, error) {
	invoice, err := s.repo.FindInvoice(ctx, invoiceID)
	if err != nil {
		return nil, nil, notFoundOr(err, "invoice")
	}
	order, err := s.orderFor(ctx, s.repo, customerID, invoice.OrderID)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, nil, err
	}
	return invoice, order, nil
}

func ensureOpen(schedule *models.PaymentSchedule, action string) error {
	switch schedule.Status {
	case enums.ScheduleStatusPaid, enums.ScheduleStatusCancelled:
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot %s a %s milestone", action, schedule.Status))
	}
	return nil
}

func ensurePayable(schedule *models.PaymentSchedule) error {
	switch {
	case schedule.Status == enums.ScheduleStatusPaid:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "milestone is already paid")
	case schedule.Status == enums.ScheduleStatusCancelled:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "milestone is cancelled")
	case schedule.Locked:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "milestone is not yet open for payment")
	case !schedule.Remaining().IsPositive():
		return pkgerrors.New(pkgerrors.CodeStateConflict, "milestone has nothing left to pay")
	}
	return nil
}

func notFoundOr(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load "+entity)
}
