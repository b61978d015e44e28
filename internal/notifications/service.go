package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/internal/quotes"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
	"github.com/northcraft/cabinetry-backend/pkg/mailer"
	"github.com/northcraft/cabinetry-backend/pkg/outbox/payloads"
	"github.com/northcraft/cabinetry-backend/pkg/sms"
)

type userLookup interface {
	FindUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type quoteDocuments interface {
	PDF(ctx context.Context, customerID *uuid.UUID, id uuid.UUID) (*quotes.Document, error)
}

// Service turns domain events into customer and sales emails and texts.
type Service interface {
	Handle(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage) error
}

type ServiceParams struct {
	Users      userLookup
	Mailer     mailer.Sender
	SMS        sms.Sender
	Quotes     quoteDocuments
	SalesInbox string
	PublicURL  string
	Logger     *logger.Logger
}

type service struct {
	users      userLookup
	mail       mailer.Sender
	sms        sms.Sender
	quotes     quoteDocuments
	salesInbox string
	publicURL  string
	logg       *logger.Logger
}

// NewService wires notifications dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("user lookup required")
	}
	if params.Mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if params.SMS == nil {
		return nil, fmt.Errorf("sms sender required")
	}
	if params.Quotes == nil {
		return nil, fmt.Errorf("quote documents required")
	}
	if strings.TrimSpace(params.SalesInbox) == "" {
		return nil, fmt.Errorf("sales inbox required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		users:      params.Users,
		mail:       params.Mailer,
		sms:        params.SMS,
		quotes:     params.Quotes,
		salesInbox: strings.TrimSpace(params.SalesInbox),
		publicURL:  strings.TrimRight(params.PublicURL, "/"),
		logg:       params.Logger,
	}, nil
}

// Handle dispatches a single event. Event types without a notification are
// ignored.
func (s *service) Handle(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage) error {
	switch eventType {
	case enums.EventQuoteSent:
		var e payloads.QuoteEvent
		if err := decode(data, &e); err != nil {
			return err
		}
		return s.quoteSent(ctx, e)
	case enums.EventQuoteAccepted, enums.EventQuoteRejected:
		var e payloads.QuoteEvent
		if err := decode(data, &e); err != nil {
			return err
		}
		return s.quoteDecision(ctx, e)
	case enums.EventOrderCreated:
		var e payloads.OrderCreatedEvent
		if err := decode(data, &e); err != nil {
			return err
		}
		return s.toCustomer(ctx, e.CustomerID, func(name string) content {
			return orderCreated(name, s.link("orders", e.OrderID), e)
		}, nil)
	case enums.EventOrderStatusChanged:
		var e payloads.OrderStatusChangedEvent
		if err := decode(data, &e); err != nil {
			return err
		}
		text := ""
		if e.To == enums.OrderStatusDispatched || e.To == enums.OrderStatusDelivered {
			text = orderStatusSMS(e)
		}
		return s.toCustomer(ctx, e.CustomerID, func(name string) content {
			return orderStatusChanged(name, s.link("orders", e.OrderID), e)
		}, nil, text)
	case enums.EventPaymentRecorded:
		var e payloads.PaymentEvent
		if err := decode(data, &e); err != nil {
			return err
		}
		return s.toCustomer(ctx, e.CustomerID, func(name string) content {
			return paymentReceipt(name, s.link("orders", e.OrderID), e)
		}, nil)
	case enums.EventPaymentOverdue:
		var e payloads.PaymentOverdueEvent
		if err := decode(data, &e); err != nil {
			return err
		}
		return s.toCustomer(ctx, e.CustomerID, func(name string) content {
			return paymentOverdue(name, s.link("orders", e.OrderID), e)
		}, nil, paymentOverdueSMS(e))
	case enums.EventMessagePosted:
		var e payloads.MessagePostedEvent
		if err := decode(data, &e); err != nil {
			return err
		}
		return s.messagePosted(ctx, e)
	default:
		s.logg.Debug(s.logg.WithField(ctx, "event_type", string(eventType)), "no notification for event")
		return nil
	}
}

func (s *service) quoteSent(ctx context.Context, e payloads.QuoteEvent) error {
	var attachments []mailer.Attachment
	doc, err := s.quotes.PDF(ctx, &e.CustomerID, e.QuoteID)
	switch {
	case err == nil:
		attachments = append(attachments, mailer.Attachment{
			Filename:    doc.FileName,
			ContentType: doc.ContentType,
			Data:        doc.Content,
		})
	case pkgerrors.Is(err, pkgerrors.CodeNotFound):
		return s.skip(ctx, "quote no longer exists", e.QuoteID)
	default:
		s.logg.Warn(s.logg.WithField(ctx, "quote_id", e.QuoteID.String()), "quote pdf unavailable; sending without attachment")
	}
	return s.toCustomer(ctx, e.CustomerID, func(name string) content {
		return quoteSent(name, s.link("quotes", e.QuoteID), e)
	}, attachments)
}

func (s *service) quoteDecision(ctx context.Context, e payloads.QuoteEvent) error {
	customer := "A customer"
	user, err := s.users.FindUser(ctx, e.CustomerID)
	switch {
	case err == nil:
		customer = fmt.Sprintf("%s <%s>", user.FullName(), user.Email)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	msg := quoteDecision(customer, s.adminLink("quotes", e.QuoteID), e)
	return s.mail.Send(ctx, mailer.Email{
		To:      s.salesInbox,
		Subject: msg.Subject,
		Text:    msg.Text,
	})
}

func (s *service) messagePosted(ctx context.Context, e payloads.MessagePostedEvent) error {
	if e.SenderRole == enums.UserRoleCustomer {
		msg := messagePosted("", s.adminLink(string(e.Scope)+"s", e.ScopeID), e)
		return s.mail.Send(ctx, mailer.Email{
			To:      s.salesInbox,
			Subject: msg.Subject,
			Text:    msg.Text,
		})
	}
	return s.toCustomer(ctx, e.CustomerID, func(name string) content {
		return messagePosted(name, s.link(string(e.Scope)+"s", e.ScopeID), e)
	}, nil)
}

// toCustomer emails the customer and, when smsBody is set and the customer
// has a phone number, texts them as well. SMS failures are logged only so a
// redelivery does not repeat the email.
func (s *service) toCustomer(ctx context.Context, customerID uuid.UUID, build func(name string) content, attachments []mailer.Attachment, smsBody ...string) error {
	user, err := s.users.FindUser(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.skip(ctx, "customer not found or inactive", customerID)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	msg := build(user.FirstName)
	err = s.mail.Send(ctx, mailer.Email{
		To:          user.Email,
		ToName:      user.FullName(),
		Subject:     msg.Subject,
		Text:        msg.Text,
		Attachments: attachments,
	})
	if err != nil {
		return err
	}
	if len(smsBody) == 0 || smsBody[0] == "" || user.Phone == nil || strings.TrimSpace(*user.Phone) == "" {
		return nil
	}
	if err := s.sms.Send(ctx, *user.Phone, smsBody[0]); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "user_id", user.ID.String()), "sms notification failed", err)
	}
	return nil
}

func (s *service) skip(ctx context.Context, reason string, id uuid.UUID) error {
	s.logg.Warn(s.logg.WithField(ctx, "entity_id", id.String()), "notification skipped: "+reason)
	return nil
}

func (s *service) link(section string, id uuid.UUID) string {
	return fmt.Sprintf("%s/account/%s/%s", s.publicURL, section, id)
}

func (s *service) adminLink(section string, id uuid.UUID) string {
	return fmt.Sprintf("%s/admin/%s/%s", s.publicURL, section, id)
}

func decode(data json.RawMessage, target any) error {
	if err := json.Unmarshal(data, target); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event payload")
	}
	return nil
}
