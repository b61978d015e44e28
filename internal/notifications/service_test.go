package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/internal/quotes"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
	"github.com/northcraft/cabinetry-backend/pkg/mailer"
	"github.com/northcraft/cabinetry-backend/pkg/outbox/payloads"
)

type fakeUsers map[uuid.UUID]*models.User

func (f fakeUsers) FindUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := f[id]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type recordingMailer struct {
	sent []mailer.Email
	err  error
}

func (r *recordingMailer) Send(_ context.Context, email mailer.Email) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, email)
	return nil
}

type sentSMS struct {
	to   string
	body string
}

type recordingSMS struct {
	sent []sentSMS
	err  error
}

func (r *recordingSMS) Send(_ context.Context, to, body string) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, sentSMS{to: to, body: body})
	return nil
}

type fakeQuotes struct {
	err error
}

func (f fakeQuotes) PDF(_ context.Context, _ *uuid.UUID, _ uuid.UUID) (*quotes.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &quotes.Document{FileName: "Q-000101-v2.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.3")}, nil
}

type harness struct {
	svc      Service
	mail     *recordingMailer
	sms      *recordingSMS
	customer *models.User
	bare     *models.User
}

func newHarness(t *testing.T, docs fakeQuotes) *harness {
	t.Helper()
	phone := "0412 345 678"
	h := &harness{
		mail: &recordingMailer{},
		sms:  &recordingSMS{},
		customer: &models.User{
			ID: uuid.New(), Email: "jess@example.com", FirstName: "Jess", LastName: "Nguyen", Phone: &phone,
		},
		bare: &models.User{ID: uuid.New(), Email: "sam@example.com", FirstName: "Sam"},
	}
	svc, err := NewService(ServiceParams{
		Users:      fakeUsers{h.customer.ID: h.customer, h.bare.ID: h.bare},
		Mailer:     h.mail,
		SMS:        h.sms,
		Quotes:     docs,
		SalesInbox: "sales@northcraft.test",
		PublicURL:  "https://shop.northcraft.test/",
		Logger:     logger.New(logger.Options{ServiceName: "notifications-test", Output: io.Discard}),
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func raw(t *testing.T, payload any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return data
}

func TestQuoteSentEmailsCustomerWithPDF(t *testing.T) {
	h := newHarness(t, fakeQuotes{})
	quoteID := uuid.New()
	valid := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	err := h.svc.Handle(context.Background(), enums.EventQuoteSent, raw(t, payloads.QuoteEvent{
		QuoteID: quoteID, QuoteNumber: "Q-000101", CustomerID: h.customer.ID, Status: enums.QuoteStatusSent,
		Version: 2, Total: decimal.RequireFromString("4950.00"), ValidUntil: &valid,
	}))
	require.NoError(t, err)

	require.Len(t, h.mail.sent, 1)
	email := h.mail.sent[0]
	assert.Equal(t, "jess@example.com", email.To)
	assert.Equal(t, "Jess Nguyen", email.ToName)
	assert.Contains(t, email.Subject, "Q-000101")
	assert.Contains(t, email.Text, "https://shop.northcraft.test/account/quotes/"+quoteID.String())
	assert.Contains(t, email.Text, "1 Jul 2026")
	require.Len(t, email.Attachments, 1)
	assert.Equal(t, "Q-000101-v2.pdf", email.Attachments[0].Filename)
	assert.Empty(t, h.sms.sent)
}

func TestQuoteSentWithoutPDFStillEmails(t *testing.T) {
	h := newHarness(t, fakeQuotes{err: errors.New("render failed")})
	err := h.svc.Handle(context.Background(), enums.EventQuoteSent, raw(t, payloads.QuoteEvent{
		QuoteID: uuid.New(), QuoteNumber: "Q-000102", CustomerID: h.customer.ID, Version: 1,
	}))
	require.NoError(t, err)
	require.Len(t, h.mail.sent, 1)
	assert.Empty(t, h.mail.sent[0].Attachments)

	gone := newHarness(t, fakeQuotes{err: pkgerrors.New(pkgerrors.CodeNotFound, "quote not found")})
	require.NoError(t, gone.svc.Handle(context.Background(), enums.EventQuoteSent, raw(t, payloads.QuoteEvent{
		QuoteID: uuid.New(), CustomerID: gone.customer.ID,
	})))
	assert.Empty(t, gone.mail.sent)
}

func TestQuoteDecisionsGoToSalesInbox(t *testing.T) {
	h := newHarness(t, fakeQuotes{})
	orderID := uuid.New()

	require.NoError(t, h.svc.Handle(context.Background(), enums.EventQuoteAccepted, raw(t, payloads.QuoteEvent{
		QuoteID: uuid.New(), QuoteNumber: "Q-000103", CustomerID: h.customer.ID, Status: enums.QuoteStatusAccepted,
		Version: 1, Total: decimal.NewFromInt(1200), OrderID: &orderID,
	})))
	require.NoError(t, h.svc.Handle(context.Background(), enums.EventQuoteRejected, raw(t, payloads.QuoteEvent{
		QuoteID: uuid.New(), QuoteNumber: "Q-000104", CustomerID: h.customer.ID, Status: enums.QuoteStatusRejected,
		Version: 3, Reason: "Too expensive",
	})))

	require.Len(t, h.mail.sent, 2)
	accepted, rejected := h.mail.sent[0], h.mail.sent[1]
	assert.Equal(t, "sales@northcraft.test", accepted.To)
	assert.Equal(t, "Quote Q-000103 accepted", accepted.Subject)
	assert.Contains(t, accepted.Text, "jess@example.com")
	assert.Contains(t, accepted.Text, orderID.String())
	assert.Equal(t, "Quote Q-000104 rejected", rejected.Subject)
	assert.Contains(t, rejected.Text, "Too expensive")
}

func TestOrderStatusTextsOnlyForDispatchAndDelivery(t *testing.T) {
	h := newHarness(t, fakeQuotes{})
	ctx := context.Background()
	event := func(customer uuid.UUID, to enums.OrderStatus) json.RawMessage {
		return raw(t, payloads.OrderStatusChangedEvent{
			OrderID: uuid.New(), OrderNumber: "ORD-000301", CustomerID: customer,
			From: enums.OrderStatusReadyForDispatch, To: to,
		})
	}

	require.NoError(t, h.svc.Handle(ctx, enums.EventOrderStatusChanged, event(h.customer.ID, enums.OrderStatusInProduction)))
	require.NoError(t, h.svc.Handle(ctx, enums.EventOrderStatusChanged, event(h.customer.ID, enums.OrderStatusDispatched)))
	require.NoError(t, h.svc.Handle(ctx, enums.EventOrderStatusChanged, event(h.customer.ID, enums.OrderStatusDelivered)))
	require.NoError(t, h.svc.Handle(ctx, enums.EventOrderStatusChanged, event(h.bare.ID, enums.OrderStatusDispatched)))

	assert.Len(t, h.mail.sent, 4)
	assert.Equal(t, "Order ORD-000301 is in production", h.mail.sent[0].Subject)
	require.Len(t, h.sms.sent, 2)
	assert.Equal(t, "0412 345 678", h.sms.sent[0].to)
	assert.Contains(t, h.sms.sent[0].body, "dispatched")
	assert.Contains(t, h.sms.sent[1].body, "delivered")
}

func TestPaymentNotifications(t *testing.T) {
	h := newHarness(t, fakeQuotes{})
	ctx := context.Background()

	require.NoError(t, h.svc.Handle(ctx, enums.EventPaymentRecorded, raw(t, payloads.PaymentEvent{
		PaymentID: uuid.New(), OrderID: uuid.New(), OrderNumber: "ORD-000302", CustomerID: h.customer.ID,
		Milestone: enums.PaymentMilestoneDeposit, Amount: decimal.NewFromInt(500), BalanceDue: decimal.NewFromInt(250),
	})))
	require.NoError(t, h.svc.Handle(ctx, enums.EventPaymentOverdue, raw(t, payloads.PaymentOverdueEvent{
		ScheduleID: uuid.New(), OrderID: uuid.New(), OrderNumber: "ORD-000302", CustomerID: h.customer.ID,
		Milestone: enums.PaymentMilestoneProgress, AmountDue: decimal.NewFromInt(750),
		DueDate: time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC),
	})))

	require.Len(t, h.mail.sent, 2)
	assert.Equal(t, "Payment received for order ORD-000302", h.mail.sent[0].Subject)
	assert.Contains(t, h.mail.sent[0].Text, "remains outstanding")
	assert.Equal(t, "Payment overdue for order ORD-000302", h.mail.sent[1].Subject)
	assert.Contains(t, h.mail.sent[1].Text, "20 May 2026")
	require.Len(t, h.sms.sent, 1)
	assert.Contains(t, h.sms.sent[0].body, "overdue")
}

func TestMessagePostedNotifiesCounterpart(t *testing.T) {
	h := newHarness(t, fakeQuotes{})
	ctx := context.Background()
	orderID := uuid.New()
	event := func(role enums.UserRole) json.RawMessage {
		return raw(t, payloads.MessagePostedEvent{
			MessageID: uuid.New(), Scope: enums.MessageScopeOrder, ScopeID: orderID, Reference: "ORD-000303",
			CustomerID: h.customer.ID, SenderID: uuid.New(), SenderRole: role, Preview: "Is Friday ok?",
		})
	}

	require.NoError(t, h.svc.Handle(ctx, enums.EventMessagePosted, event(enums.UserRoleCustomer)))
	require.NoError(t, h.svc.Handle(ctx, enums.EventMessagePosted, event(enums.UserRoleAdmin)))

	require.Len(t, h.mail.sent, 2)
	assert.Equal(t, "sales@northcraft.test", h.mail.sent[0].To)
	assert.Contains(t, h.mail.sent[0].Text, "/admin/orders/"+orderID.String())
	assert.Equal(t, "jess@example.com", h.mail.sent[1].To)
	assert.Contains(t, h.mail.sent[1].Text, "/account/orders/"+orderID.String())
	assert.Contains(t, h.mail.sent[1].Text, "Is Friday ok?")
}

func TestHandleSkipsAndFailures(t *testing.T) {
	h := newHarness(t, fakeQuotes{})
	ctx := context.Background()

	require.NoError(t, h.svc.Handle(ctx, enums.EventCartAbandoned, raw(t, payloads.CartAbandonedEvent{CustomerID: h.customer.ID})))
	require.NoError(t, h.svc.Handle(ctx, enums.EventOrderCreated, raw(t, payloads.OrderCreatedEvent{
		OrderID: uuid.New(), OrderNumber: "ORD-000304", CustomerID: uuid.New(),
	})))
	assert.Empty(t, h.mail.sent)

	err := h.svc.Handle(ctx, enums.EventOrderCreated, json.RawMessage(`{"order_id":`))
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	h.mail.err = pkgerrors.New(pkgerrors.CodeDependency, "sendgrid down")
	err = h.svc.Handle(ctx, enums.EventOrderCreated, raw(t, payloads.OrderCreatedEvent{
		OrderID: uuid.New(), OrderNumber: "ORD-000305", CustomerID: h.customer.ID,
	}))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeDependency))

	h.mail.err = nil
	h.sms.err = errors.New("twilio down")
	require.NoError(t, h.svc.Handle(ctx, enums.EventPaymentOverdue, raw(t, payloads.PaymentOverdueEvent{
		OrderID: uuid.New(), OrderNumber: "ORD-000306", CustomerID: h.customer.ID,
	})))
	assert.Len(t, h.mail.sent, 1)
}
