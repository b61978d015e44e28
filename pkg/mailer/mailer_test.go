package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/require"

	"github.com/northcraft/cabinetry-backend/pkg/config"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
)

type stubTransport struct {
	sent   []*mail.SGMailV3
	status int
	err    error
}

func (s *stubTransport) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	s.sent = append(s.sent, email)
	if s.err != nil {
		return nil, s.err
	}
	return &rest.Response{StatusCode: s.status, Body: "rejected"}, nil
}

func newTestClient(t *testing.T, tr transport) *Client {
	t.Helper()
	c, err := NewClient(config.SendgridConfig{DefaultFrom: "orders@example.com", FromName: "Orders"}, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)
	c.transport = tr
	return c
}

func TestNewClientRequiresFrom(t *testing.T) {
	_, err := NewClient(config.SendgridConfig{}, logger.New(logger.Options{ServiceName: "test"}))
	require.ErrorIs(t, err, errFromRequired)

	_, err = NewClient(config.SendgridConfig{DefaultFrom: "a@b.c"}, nil)
	require.ErrorIs(t, err, errLoggerRequired)
}

func TestSendWithoutKeyDropsMessage(t *testing.T) {
	c := newTestClient(t, nil)
	require.False(t, c.Enabled())
	require.NoError(t, c.Send(context.Background(), Email{To: "c@example.com", Subject: "Hi"}))
}

func TestSendBuildsMessageWithAttachment(t *testing.T) {
	tr := &stubTransport{status: 202}
	c := newTestClient(t, tr)

	err := c.Send(context.Background(), Email{
		To:          "c@example.com",
		ToName:      "Casey",
		Subject:     "Your quote Q-000001",
		Text:        "See attached",
		Attachments: []Attachment{{Filename: "Q-000001.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}},
	})
	require.NoError(t, err)
	require.Len(t, tr.sent, 1)

	msg := tr.sent[0]
	require.Equal(t, "Your quote Q-000001", msg.Subject)
	require.Equal(t, "orders@example.com", msg.From.Address)
	require.Len(t, msg.Personalizations, 1)
	require.Equal(t, "c@example.com", msg.Personalizations[0].To[0].Address)
	require.Len(t, msg.Attachments, 1)
	require.Equal(t, "Q-000001.pdf", msg.Attachments[0].Filename)
	require.Equal(t, "JVBERg==", msg.Attachments[0].Content)
}

func TestSendMapsFailures(t *testing.T) {
	c := newTestClient(t, &stubTransport{status: 400})
	err := c.Send(context.Background(), Email{To: "c@example.com", Subject: "x"})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	c = newTestClient(t, &stubTransport{status: 503})
	err = c.Send(context.Background(), Email{To: "c@example.com", Subject: "x"})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeDependency))

	c = newTestClient(t, &stubTransport{err: errors.New("dial")})
	err = c.Send(context.Background(), Email{To: "c@example.com", Subject: "x"})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeDependency))
}

func TestSendValidatesInput(t *testing.T) {
	c := newTestClient(t, &stubTransport{status: 202})
	err := c.Send(context.Background(), Email{Subject: "x"})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}
