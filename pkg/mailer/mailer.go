package mailer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/northcraft/cabinetry-backend/pkg/config"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
)

var (
	errLoggerRequired    = errors.New("mailer logger is required")
	errFromRequired      = errors.New("mailer from address is required")
	errRecipientRequired = errors.New("email recipient is required")
	errSubjectRequired   = errors.New("email subject is required")
)

// Attachment is a file delivered alongside an email.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Email is a single outbound message.
type Email struct {
	To          string
	ToName      string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// Sender delivers transactional email.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

type transport interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Client sends email through SendGrid. Without an API key it logs and drops
// messages so local environments work without credentials.
type Client struct {
	transport transport
	from      *mail.Email
	logg      *logger.Logger
}

// NewClient builds a SendGrid-backed sender.
func NewClient(cfg config.SendgridConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	fromAddr := strings.TrimSpace(cfg.DefaultFrom)
	if fromAddr == "" {
		return nil, errFromRequired
	}
	c := &Client{
		from: mail.NewEmail(strings.TrimSpace(cfg.FromName), fromAddr),
		logg: logg,
	}
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		c.transport = sendgrid.NewSendClient(key)
	}
	return c, nil
}

// Enabled reports whether messages are actually delivered.
func (c *Client) Enabled() bool {
	return c != nil && c.transport != nil
}

// Send delivers email. Non-2xx responses map to dependency errors, 4xx
// other than 429 are treated as permanent.
func (c *Client) Send(ctx context.Context, email Email) error {
	if c == nil {
		return fmt.Errorf("mailer client is nil")
	}
	message, err := c.build(email)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid email")
	}

	logCtx := c.logg.WithFields(ctx, map[string]any{
		"email_to":      email.To,
		"email_subject": email.Subject,
	})
	if c.transport == nil {
		c.logg.Info(logCtx, "email delivery disabled; message dropped")
		return nil
	}

	resp, err := c.transport.SendWithContext(ctx, message)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sendgrid request failed")
	}
	if resp == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "sendgrid returned no response")
	}
	if resp.StatusCode >= 300 {
		code := pkgerrors.CodeDependency
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != 429 {
			code = pkgerrors.CodeValidation
		}
		return pkgerrors.New(code, fmt.Sprintf("sendgrid rejected message: status %d", resp.StatusCode)).
			WithDetails(map[string]any{"status": resp.StatusCode, "body": truncate(resp.Body, 512)})
	}

	c.logg.Info(logCtx, "email sent")
	return nil
}

func (c *Client) build(email Email) (*mail.SGMailV3, error) {
	to := strings.TrimSpace(email.To)
	if to == "" {
		return nil, errRecipientRequired
	}
	subject := strings.TrimSpace(email.Subject)
	if subject == "" {
		return nil, errSubjectRequired
	}
	text := email.Text
	if text == "" && email.HTML == "" {
		text = subject
	}

	message := mail.NewSingleEmail(c.from, subject, mail.NewEmail(email.ToName, to), text, email.HTML)
	for _, att := range email.Attachments {
		if len(att.Data) == 0 {
			continue
		}
		a := mail.NewAttachment()
		a.SetContent(base64.StdEncoding.EncodeToString(att.Data))
		a.SetType(att.ContentType)
		a.SetFilename(att.Filename)
		a.SetDisposition("attachment")
		message.AddAttachment(a)
	}
	return message, nil
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
