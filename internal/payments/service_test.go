package payments

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/internal/testdb"
	"github.com/northcraft/cabinetry-backend/pkg/config"
	"github.com/northcraft/cabinetry-backend/pkg/db"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
	"github.com/northcraft/cabinetry-backend/pkg/outbox"
	"github.com/northcraft/cabinetry-backend/pkg/square"
	"github.com/northcraft/cabinetry-backend/pkg/types"
)

type recordingEmitter struct {
	events []outbox.DomainEvent
}

func (r *recordingEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *recordingEmitter) types() []enums.OutboxEventType {
	out := make([]enums.OutboxEventType, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event.EventType)
	}
	return out
}

type stubProgressor struct {
	received []uuid.UUID
}

func (p *stubProgressor) DepositReceived(_ context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	p.received = append(p.received, orderID)
	return tx.Model(&models.Order{}).Where("id = ?", orderID).Update("status", enums.OrderStatusInProduction).Error
}

type stubGateway struct {
	err         error
	customerErr error
	status      string
	calls       []square.PaymentCreateParams
	customers   []square.CustomerCreateParams
}

func (g *stubGateway) EnsureCustomer(_ context.Context, params square.CustomerCreateParams) (*sq.Customer, error) {
	g.customers = append(g.customers, params)
	if g.customerErr != nil {
		return nil, g.customerErr
	}
	id := "sq-customer-" + params.ReferenceID
	return &sq.Customer{ID: &id}, nil
}

func (g *stubGateway) CreatePayment(_ context.Context, params square.PaymentCreateParams) (*sq.Payment, error) {
	g.calls = append(g.calls, params)
	if g.err != nil {
		return nil, g.err
	}
	id := "sq-payment-1"
	status := g.status
	if status == "" {
		status = "COMPLETED"
	}
	return &sq.Payment{ID: &id, Status: &status}, nil
}

type stubStore struct {
	uploads []string
}

func (s *stubStore) Upload(_ context.Context, object, _ string, body io.Reader) (string, error) {
	if _, err := io.ReadAll(body); err != nil {
		return "", err
	}
	s.uploads = append(s.uploads, object)
	return object, nil
}

func (s *stubStore) Delete(context.Context, string) error { return nil }

func (s *stubStore) PublicURL(object string) string {
	return "https://files.example/" + object
}

type harness struct {
	db         *gorm.DB
	tx         *db.Client
	scheduler  *Scheduler
	svc        Service
	emitter    *recordingEmitter
	progressor *stubProgressor
	gateway    *stubGateway
	store      *stubStore
	customer   uuid.UUID
	now        time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := testdb.Open(t)
	h := &harness{
		db:         conn,
		tx:         db.FromConn(conn),
		emitter:    &recordingEmitter{},
		progressor: &stubProgressor{},
		gateway:    &stubGateway{},
		store:      &stubStore{},
		customer:   uuid.New(),
		now:        time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC),
	}
	clock := func() time.Time { return h.now }
	pricing := config.PricingConfig{
		Currency:         "AUD",
		GSTPercent:       "10",
		DepositPercent:   "50",
		ProgressPercent:  "40",
		PaymentTermsDays: 7,
	}
	repo := NewRepository(conn)
	scheduler, err := NewScheduler(SchedulerParams{Repo: repo, Emitter: h.emitter, Pricing: pricing, Now: clock})
	require.NoError(t, err)
	h.scheduler = scheduler
	svc, err := NewService(ServiceParams{
		Repo:      repo,
		TxRunner:  h.tx,
		Scheduler: scheduler,
		Orders:    h.progressor,
		Gateway:   h.gateway,
		Storage:   h.store,
		Emitter:   h.emitter,
		Pricing:   pricing,
		Business:  config.BusinessConfig{Name: "Northcraft Cabinetry"},
		Now:       clock,
	})
	require.NoError(t, err)
	h.svc = svc

	phone := "+61400000000"
	require.NoError(t, conn.Create(&models.User{
		ID:           h.customer,
		Email:        "jo@example.com",
		PasswordHash: "hash",
		FirstName:    "Jo",
		LastName:     "Citizen",
		Phone:        &phone,
		Role:         enums.UserRoleCustomer,
		IsActive:     true,
	}).Error)
	return h
}

func (h *harness) order(t *testing.T, total string) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: "ORD-" + uuid.NewString()[:6],
		CustomerID:  h.customer,
		Status:      enums.OrderStatusAwaitingDeposit,
		Subtotal:    dec(total),
		Total:       dec(total),
		BalanceDue:  dec(total),
		ShippingAddress: &types.ShippingAddress{
			Recipient: "Jo Citizen",
			Line1:     "1 George St",
			Suburb:    "Sydney",
			State:     "NSW",
			Postcode:  "2000",
			Country:   "AU",
		},
	}
	require.NoError(t, h.db.Create(order).Error)
	return order
}

func (h *harness) schedule(t *testing.T, order *models.Order) []models.PaymentSchedule {
	t.Helper()
	var schedules []models.PaymentSchedule
	require.NoError(t, h.tx.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		schedules, err = h.scheduler.Create(context.Background(), tx, order)
		return err
	}))
	h.emitter.events = nil
	return schedules
}

func (h *harness) reload(t *testing.T, id uuid.UUID) models.PaymentSchedule {
	t.Helper()
	var schedule models.PaymentSchedule
	require.NoError(t, h.db.Where("id = ?", id).First(&schedule).Error)
	return schedule
}

func (h *harness) reloadOrder(t *testing.T, id uuid.UUID) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, h.db.Where("id = ?", id).First(&order).Error)
	return order
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, code), "expected %s, got %v", code, err)
}

func TestManualPaymentsSettleDeposit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.order(t, "1000")
	deposit := h.schedule(t, order)[0]
	admin := uuid.New()
	ref := " EFT-991 "

	first, err := h.svc.RecordManualPayment(ctx, admin, deposit.ID, ManualPaymentInput{
		Amount:    dec("200"),
		Method:    enums.PaymentMethodBankTransfer,
		Reference: &ref,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentProviderManual, first.Provider)
	require.NotNil(t, first.Reference)
	assert.Equal(t, "EFT-991", *first.Reference)
	assert.NotNil(t, first.InvoiceID)

	partial := h.reload(t, deposit.ID)
	assert.Equal(t, enums.ScheduleStatusPending, partial.Status)
	assert.True(t, partial.AmountPaid.Equal(dec("200")))
	assert.Empty(t, h.progressor.received)

	_, err = h.svc.RecordManualPayment(ctx, admin, deposit.ID, ManualPaymentInput{Amount: dec("300.01"), Method: enums.PaymentMethodCash})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.RecordManualPayment(ctx, admin, deposit.ID, ManualPaymentInput{Amount: dec("300"), Method: enums.PaymentMethodCash})
	require.NoError(t, err)

	settled := h.reload(t, deposit.ID)
	assert.Equal(t, enums.ScheduleStatusPaid, settled.Status)
	assert.NotNil(t, settled.PaidAt)

	updated := h.reloadOrder(t, order.ID)
	assert.True(t, updated.AmountPaid.Equal(dec("500")))
	assert.True(t, updated.BalanceDue.Equal(dec("500")))
	assert.NotNil(t, updated.DepositPaidAt)
	assert.Equal(t, []uuid.UUID{order.ID}, h.progressor.received)

	var invoice models.Invoice
	require.NoError(t, h.db.Where("payment_schedule_id = ?", deposit.ID).First(&invoice).Error)
	assert.Equal(t, enums.InvoiceStatusPaid, invoice.Status)

	assert.Equal(t, []enums.OutboxEventType{enums.EventPaymentRecorded, enums.EventPaymentRecorded}, h.emitter.types())

	_, err = h.svc.RecordManualPayment(ctx, admin, deposit.ID, ManualPaymentInput{Amount: dec("1"), Method: enums.PaymentMethodCash})
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestSchedulerSettlesZeroDeposit(t *testing.T) {
	h := newHarness(t)
	order := h.order(t, "0")
	schedules := h.schedule(t, order)

	require.Len(t, schedules, 1)
	assert.Equal(t, enums.ScheduleStatusPaid, schedules[0].Status)
	require.NotNil(t, order.DepositPaidAt)
	assert.NotNil(t, h.reloadOrder(t, order.ID).DepositPaidAt)

	_, err := h.svc.RecordManualPayment(context.Background(), uuid.New(), schedules[0].ID, ManualPaymentInput{Amount: dec("1"), Method: enums.PaymentMethodCash})
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestRecordManualPaymentRejectsLockedMilestone(t *testing.T) {
	h := newHarness(t)
	order := h.order(t, "1000")
	progress := h.schedule(t, order)[1]

	_, err := h.svc.RecordManualPayment(context.Background(), uuid.New(), progress.ID, ManualPaymentInput{Amount: dec("10"), Method: enums.PaymentMethodCash})
	requireCode(t, err, pkgerrors.CodeStateConflict)

	_, err = h.svc.RecordManualPayment(context.Background(), uuid.New(), progress.ID, ManualPaymentInput{Amount: dec("-1"), Method: enums.PaymentMethodCash})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestPayMilestoneChargesRemainingAmount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.order(t, "1000")
	deposit := h.schedule(t, order)[0]

	payment, err := h.svc.PayMilestone(ctx, h.customer, deposit.ID, PayMilestoneInput{SourceID: "cnon:card-nonce-ok"})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, enums.PaymentProviderSquare, payment.Provider)
	require.NotNil(t, payment.ProviderPaymentID)
	assert.Equal(t, "sq-payment-1", *payment.ProviderPaymentID)

	require.Len(t, h.gateway.calls, 1)
	call := h.gateway.calls[0]
	assert.EqualValues(t, 50000, call.AmountCents)
	assert.Equal(t, "AUD", call.Currency)
	assert.Equal(t, IdempotencyKey(&deposit), call.IdempotencyKey)
	assert.Equal(t, order.OrderNumber, call.ReferenceID)
	assert.Equal(t, "sq-customer-"+h.customer.String(), call.CustomerID)

	require.Len(t, h.gateway.customers, 1)
	customer := h.gateway.customers[0]
	assert.Equal(t, h.customer.String(), customer.ReferenceID)
	assert.Equal(t, "jo@example.com", customer.Email)
	assert.Equal(t, "Jo", customer.GivenName)
	assert.Equal(t, "Citizen", customer.FamilyName)
	assert.Equal(t, "+61400000000", customer.PhoneNumber)

	assert.Equal(t, enums.ScheduleStatusPaid, h.reload(t, deposit.ID).Status)
	assert.Equal(t, []uuid.UUID{order.ID}, h.progressor.received)
}

func TestPayMilestoneStopsWhenSquareCustomerFails(t *testing.T) {
	h := newHarness(t)
	order := h.order(t, "1000")
	deposit := h.schedule(t, order)[0]
	h.gateway.customerErr = pkgerrors.New(pkgerrors.CodeDependency, "square unavailable")

	_, err := h.svc.PayMilestone(context.Background(), h.customer, deposit.ID, PayMilestoneInput{SourceID: "nonce"})
	requireCode(t, err, pkgerrors.CodeDependency)
	assert.Empty(t, h.gateway.calls)
	assert.Equal(t, enums.ScheduleStatusPending, h.reload(t, deposit.ID).Status)
}

func TestPayMilestoneGuards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.order(t, "1000")
	schedules := h.schedule(t, order)

	_, err := h.svc.PayMilestone(ctx, uuid.New(), schedules[0].ID, PayMilestoneInput{SourceID: "nonce"})
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = h.svc.PayMilestone(ctx, h.customer, schedules[1].ID, PayMilestoneInput{SourceID: "nonce"})
	requireCode(t, err, pkgerrors.CodeStateConflict)

	_, err = h.svc.PayMilestone(ctx, h.customer, schedules[0].ID, PayMilestoneInput{})
	requireCode(t, err, pkgerrors.CodeValidation)
	assert.Empty(t, h.gateway.calls)
}

func TestPayMilestonePersistsDeclines(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.order(t, "1000")
	deposit := h.schedule(t, order)[0]
	h.gateway.err = pkgerrors.New(pkgerrors.CodeValidation, "card declined")

	_, err := h.svc.PayMilestone(ctx, h.customer, deposit.ID, PayMilestoneInput{SourceID: "nonce"})
	requireCode(t, err, pkgerrors.CodeValidation)

	payments, err := h.svc.ListPayments(ctx, &h.customer, order.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, enums.PaymentStatusFailed, payments[0].Status)
	require.NotNil(t, payments[0].FailureReason)
	assert.Contains(t, *payments[0].FailureReason, "card declined")
	assert.Equal(t, []enums.OutboxEventType{enums.EventPaymentFailed}, h.emitter.types())
	assert.Equal(t, enums.ScheduleStatusPending, h.reload(t, deposit.ID).Status)

	h.gateway.err = nil
	h.gateway.status = "FAILED"
	_, err = h.svc.PayMilestone(ctx, h.customer, deposit.ID, PayMilestoneInput{SourceID: "nonce"})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestLockUnlockAndDueDates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.order(t, "1000")
	schedules := h.schedule(t, order)

	unlocked, err := h.svc.Unlock(ctx, schedules[1].ID)
	require.NoError(t, err)
	assert.False(t, unlocked.Locked)
	require.NotNil(t, unlocked.DueDate)
	assert.Equal(t, []enums.OutboxEventType{enums.EventInvoiceIssued}, h.emitter.types())

	locked, err := h.svc.Lock(ctx, schedules[1].ID)
	require.NoError(t, err)
	assert.True(t, locked.Locked)

	_, err = h.svc.RecordManualPayment(ctx, uuid.New(), schedules[0].ID, ManualPaymentInput{Amount: dec("500"), Method: enums.PaymentMethodCash})
	require.NoError(t, err)
	_, err = h.svc.Lock(ctx, schedules[0].ID)
	requireCode(t, err, pkgerrors.CodeStateConflict)

	due := h.now.AddDate(0, 1, 0)
	moved, err := h.svc.UpdateDueDate(ctx, schedules[2].ID, DueDateInput{DueDate: due})
	require.NoError(t, err)
	require.NotNil(t, moved.DueDate)
	assert.True(t, moved.DueDate.Equal(due))
}

func TestMarkOverdue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.order(t, "1000")
	deposit := h.schedule(t, order)[0]

	marked, err := h.svc.MarkOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, marked)

	h.now = h.now.AddDate(0, 0, 8)
	marked, err = h.svc.MarkOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)
	assert.Equal(t, enums.ScheduleStatusOverdue, h.reload(t, deposit.ID).Status)
	assert.Equal(t, []enums.OutboxEventType{enums.EventPaymentOverdue}, h.emitter.types())

	marked, err = h.svc.MarkOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, marked)

	rescheduled, err := h.svc.UpdateDueDate(ctx, deposit.ID, DueDateInput{DueDate: h.now.AddDate(0, 0, 5)})
	require.NoError(t, err)
	assert.Equal(t, enums.ScheduleStatusPending, rescheduled.Status)

	// Overdue milestones still accept payment.
	h.now = h.now.AddDate(0, 0, 10)
	_, err = h.svc.MarkOverdue(ctx)
	require.NoError(t, err)
	_, err = h.svc.RecordManualPayment(ctx, uuid.New(), deposit.ID, ManualPaymentInput{Amount: dec("500"), Method: enums.PaymentMethodCash})
	require.NoError(t, err)
	assert.Equal(t, enums.ScheduleStatusPaid, h.reload(t, deposit.ID).Status)
}

func TestInvoicesVoidAndPDF(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.order(t, "1000")
	h.schedule(t, order)

	invoices, err := h.svc.ListInvoices(ctx, &h.customer, order.ID)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	invoiceID := invoices[0].ID

	stranger := uuid.New()
	_, err = h.svc.GetInvoice(ctx, &stranger, invoiceID)
	requireCode(t, err, pkgerrors.CodeNotFound)

	withPDF, err := h.svc.InvoicePDF(ctx, &h.customer, invoiceID)
	require.NoError(t, err)
	require.NotNil(t, withPDF.PDFURL)
	expected := InvoiceObjectKey(order.OrderNumber, invoices[0].InvoiceNumber)
	assert.Equal(t, "https://files.example/"+expected, *withPDF.PDFURL)

	_, err = h.svc.InvoicePDF(ctx, &h.customer, invoiceID)
	require.NoError(t, err)
	assert.Equal(t, []string{expected}, h.store.uploads)

	_, err = h.svc.RegenerateInvoicePDF(ctx, invoiceID)
	require.NoError(t, err)
	assert.Len(t, h.store.uploads, 2)

	voided, err := h.svc.VoidInvoice(ctx, invoiceID, VoidInvoiceInput{Reason: "reissued"})
	require.NoError(t, err)
	assert.Equal(t, enums.InvoiceStatusVoid, voided.Status)
	_, err = h.svc.VoidInvoice(ctx, invoiceID, VoidInvoiceInput{})
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestIdempotencyKeyTracksPaidAmount(t *testing.T) {
	schedule := models.PaymentSchedule{ID: uuid.New(), AmountPaid: dec("0")}
	first := IdempotencyKey(&schedule)
	assert.Equal(t, first, IdempotencyKey(&schedule))
	assert.LessOrEqual(t, len(first), 45)

	schedule.AmountPaid = dec("100")
	assert.NotEqual(t, first, IdempotencyKey(&schedule))
}
