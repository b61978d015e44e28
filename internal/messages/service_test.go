package messages

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/internal/files"
	"github.com/northcraft/cabinetry-backend/internal/testdb"
	"github.com/northcraft/cabinetry-backend/pkg/config"
	"github.com/northcraft/cabinetry-backend/pkg/db"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
	"github.com/northcraft/cabinetry-backend/pkg/outbox"
	"github.com/northcraft/cabinetry-backend/pkg/outbox/payloads"
	"github.com/northcraft/cabinetry-backend/pkg/types"
)

type nopStore struct{}

func (nopStore) Upload(context.Context, string, string, io.Reader) (string, error) { return "", nil }
func (nopStore) Delete(context.Context, string) error                              { return nil }

type recordingEmitter struct {
	events []outbox.DomainEvent
}

func (r *recordingEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	r.events = append(r.events, event)
	return nil
}

type harness struct {
	db       *gorm.DB
	svc      Service
	emitter  *recordingEmitter
	customer types.Actor
	admin    types.Actor
	orderID  uuid.UUID
	clock    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := testdb.Open(t)
	h := &harness{
		db:       conn,
		emitter:  &recordingEmitter{},
		customer: types.Actor{UserID: uuid.New(), Role: enums.UserRoleCustomer},
		admin:    types.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin},
		orderID:  uuid.New(),
		clock:    time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, conn.Exec(
		"INSERT INTO orders (id, order_number, customer_id, subtotal, total) VALUES (?, 'ORD-000042', ?, '100', '110')",
		h.orderID, h.customer.UserID,
	).Error)

	filesRepo := files.NewRepository(conn)
	tx := db.FromConn(conn)
	filesSvc, err := files.NewService(files.ServiceParams{
		Repo:     filesRepo,
		TxRunner: tx,
		Store:    nopStore{},
		Files:    config.FilesConfig{AllowedTypes: "image/png"},
	})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Repo:        NewRepository(conn),
		TxRunner:    tx,
		Files:       filesSvc,
		Attachments: filesRepo,
		Emitter:     h.emitter,
		Now: func() time.Time {
			h.clock = h.clock.Add(time.Minute)
			return h.clock
		},
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) file(t *testing.T, owner uuid.UUID) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, h.db.Create(&models.File{
		ID:          id,
		OwnerID:     owner,
		FileName:    "site.png",
		ContentType: "image/png",
		SizeBytes:   1024,
		ObjectKey:   "uploads/" + owner.String() + "/" + id.String() + "/site.png",
		PublicURL:   "https://cdn.test/site.png",
		Status:      enums.FileStatusPending,
	}).Error)
	return id
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, code), "expected %s, got %v", code, err)
}

func TestPostLinksFilesAndEmitsEvent(t *testing.T) {
	h := newHarness(t)
	fileID := h.file(t, h.customer.UserID)

	msg, err := h.svc.Post(context.Background(), h.customer, enums.MessageScopeOrder, h.orderID, PostInput{
		Body:    "  Can we move delivery to Friday?  ",
		FileIDs: []uuid.UUID{fileID},
	})
	require.NoError(t, err)
	assert.Equal(t, "Can we move delivery to Friday?", msg.Body)
	assert.Equal(t, enums.UserRoleCustomer, msg.SenderRole)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, fileID, msg.Attachments[0].File.ID)

	require.Len(t, h.emitter.events, 1)
	event := h.emitter.events[0]
	assert.Equal(t, enums.EventMessagePosted, event.EventType)
	data, ok := event.Data.(payloads.MessagePostedEvent)
	require.True(t, ok)
	assert.Equal(t, "ORD-000042", data.Reference)
	assert.Equal(t, h.customer.UserID, data.CustomerID)

	list, err := h.svc.List(context.Background(), h.admin, enums.MessageScopeOrder, h.orderID, ListParams{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Len(t, list.Items[0].Attachments, 1)
}

func TestPostRejectsForeignThreadsAndEmptyBodies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	stranger := types.Actor{UserID: uuid.New(), Role: enums.UserRoleCustomer}

	_, err := h.svc.Post(ctx, stranger, enums.MessageScopeOrder, h.orderID, PostInput{Body: "hello"})
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = h.svc.Post(ctx, h.customer, enums.MessageScopeOrder, h.orderID, PostInput{Body: "   "})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.Post(ctx, h.customer, enums.MessageScopeQuote, uuid.New(), PostInput{Body: "hello"})
	requireCode(t, err, pkgerrors.CodeNotFound)

	foreignFile := h.file(t, stranger.UserID)
	_, err = h.svc.Post(ctx, h.customer, enums.MessageScopeOrder, h.orderID, PostInput{Body: "see attached", FileIDs: []uuid.UUID{foreignFile}})
	requireCode(t, err, pkgerrors.CodeNotFound)

	var count int64
	require.NoError(t, h.db.Model(&models.Message{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, h.emitter.events)
}

func TestListPagesNewestFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, body := range []string{"one", "two", "three"} {
		_, err := h.svc.Post(ctx, h.customer, enums.MessageScopeOrder, h.orderID, PostInput{Body: body})
		require.NoError(t, err)
	}

	first, err := h.svc.List(ctx, h.customer, enums.MessageScopeOrder, h.orderID, ListParams{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, "three", first.Items[0].Body)
	require.NotEmpty(t, first.NextCursor)

	second, err := h.svc.List(ctx, h.customer, enums.MessageScopeOrder, h.orderID, ListParams{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "one", second.Items[0].Body)
	assert.Empty(t, second.NextCursor)

	_, err = h.svc.List(ctx, h.customer, enums.MessageScopeOrder, h.orderID, ListParams{Cursor: "%%%"})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestMarkReadAndUnreadInbox(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	question, err := h.svc.Post(ctx, h.customer, enums.MessageScopeOrder, h.orderID, PostInput{Body: "Is the colour confirmed?"})
	require.NoError(t, err)
	reply, err := h.svc.Post(ctx, h.admin, enums.MessageScopeOrder, h.orderID, PostInput{Body: "Yes, Dulux Vivid White."})
	require.NoError(t, err)

	inbox, err := h.svc.Unread(ctx, ListParams{})
	require.NoError(t, err)
	require.Len(t, inbox.Items, 1)
	assert.Equal(t, question.ID, inbox.Items[0].ID)

	own, err := h.svc.MarkRead(ctx, h.customer, question.ID)
	require.NoError(t, err)
	assert.Nil(t, own.ReadAt)

	read, err := h.svc.MarkRead(ctx, h.admin, question.ID)
	require.NoError(t, err)
	require.NotNil(t, read.ReadAt)

	inbox, err = h.svc.Unread(ctx, ListParams{})
	require.NoError(t, err)
	assert.Empty(t, inbox.Items)

	seen, err := h.svc.MarkRead(ctx, h.customer, reply.ID)
	require.NoError(t, err)
	assert.NotNil(t, seen.ReadAt)

	stranger := types.Actor{UserID: uuid.New(), Role: enums.UserRoleCustomer}
	_, err = h.svc.MarkRead(ctx, stranger, reply.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
}
