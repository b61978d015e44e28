package sms

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/northcraft/cabinetry-backend/pkg/config"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
)

const maxBodyLen = 1600

var (
	errLoggerRequired = errors.New("sms logger is required")
	e164Re            = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)
)

// Sender delivers short text messages.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Client sends SMS through Twilio. Missing credentials disable delivery.
type Client struct {
	api  messageCreator
	from string
	logg *logger.Logger
}

// NewClient builds a Twilio-backed sender.
func NewClient(cfg config.TwilioConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	c := &Client{from: strings.TrimSpace(cfg.FromNumber), logg: logg}
	sid := strings.TrimSpace(cfg.AccountSID)
	token := strings.TrimSpace(cfg.AuthToken)
	if sid != "" && token != "" && c.from != "" {
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: sid,
			Password: token,
		})
		c.api = rest.Api
	}
	return c, nil
}

// Enabled reports whether messages are actually delivered.
func (c *Client) Enabled() bool {
	return c != nil && c.api != nil
}

// Send normalizes the destination to E.164 and posts the message.
func (c *Client) Send(ctx context.Context, to, body string) error {
	if c == nil {
		return fmt.Errorf("sms client is nil")
	}
	number := NormalizeAU(to)
	if !e164Re.MatchString(number) {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid phone number").
			WithDetails(map[string]any{"to": to})
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "sms body is required")
	}
	if len(body) > maxBodyLen {
		body = body[:maxBodyLen]
	}

	logCtx := c.logg.WithField(ctx, "sms_to", number)
	if c.api == nil {
		c.logg.Info(logCtx, "sms delivery disabled; message dropped")
		return nil
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(number)
	params.SetFrom(c.from)
	params.SetBody(body)

	resp, err := c.api.CreateMessage(params)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "twilio create message failed")
	}
	if resp != nil && resp.Sid != nil {
		logCtx = c.logg.WithField(logCtx, "sms_sid", *resp.Sid)
	}
	c.logg.Info(logCtx, "sms sent")
	return nil
}

// NormalizeAU converts local Australian mobile numbers into E.164.
func NormalizeAU(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if r == '+' && b.Len() == 0 || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case digits == "", strings.HasPrefix(digits, "+"):
		return digits
	case strings.HasPrefix(digits, "61"):
		return "+" + digits
	case strings.HasPrefix(digits, "0"):
		return "+61" + digits[1:]
	default:
		return "+61" + digits
	}
}
