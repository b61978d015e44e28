package files

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/internal/testdb"
	"github.com/northcraft/cabinetry-backend/pkg/config"
	"github.com/northcraft/cabinetry-backend/pkg/db"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
	"github.com/northcraft/cabinetry-backend/pkg/types"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type memoryStore struct {
	objects   map[string][]byte
	deleted   []string
	uploadErr error
	deleteErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) Upload(_ context.Context, object, _ string, body io.Reader) (string, error) {
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.objects[object] = data
	return "https://cdn.test/" + object, nil
}

func (m *memoryStore) Delete(_ context.Context, object string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.objects, object)
	m.deleted = append(m.deleted, object)
	return nil
}

type harness struct {
	db    *gorm.DB
	svc   Service
	store *memoryStore
	now   time.Time
}

func newHarness(t *testing.T, maxMB int) *harness {
	t.Helper()
	conn := testdb.Open(t)
	h := &harness{
		db:    conn,
		store: newMemoryStore(),
		now:   time.Date(2026, 5, 11, 10, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		TxRunner: db.FromConn(conn),
		Store:    h.store,
		Files: config.FilesConfig{
			MaxUploadMB:      maxMB,
			AllowedTypes:     "image/png,application/pdf,application/octet-stream",
			PendingRetention: 24 * time.Hour,
		},
		Now: func() time.Time { return h.now },
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func customerActor() types.Actor {
	return types.Actor{UserID: uuid.New(), Role: enums.UserRoleCustomer}
}

func adminActor() types.Actor {
	return types.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}
}

func (h *harness) quote(t *testing.T, customerID uuid.UUID) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, h.db.Exec(
		"INSERT INTO quotes (id, quote_number, customer_id) VALUES (?, ?, ?)",
		id, "Q-"+id.String()[:6], customerID,
	).Error)
	return id
}

func (h *harness) order(t *testing.T, customerID uuid.UUID) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, h.db.Exec(
		"INSERT INTO orders (id, order_number, customer_id, subtotal, total) VALUES (?, ?, ?, '100', '110')",
		id, "ORD-"+id.String()[:6], customerID,
	).Error)
	return id
}

func (h *harness) upload(t *testing.T, actor types.Actor) *FileDTO {
	t.Helper()
	file, err := h.svc.Upload(context.Background(), actor, UploadInput{
		FileName:    "kitchen plan.png",
		ContentType: "image/png",
		Size:        int64(len(pngHeader)),
		Body:        bytes.NewReader(pngHeader),
	})
	require.NoError(t, err)
	return file
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, code), "expected %s, got %v", code, err)
}

func TestUploadStoresObjectUnderOwnerPrefix(t *testing.T) {
	h := newHarness(t, 1)
	actor := customerActor()

	file := h.upload(t, actor)

	assert.Equal(t, "kitchen-plan.png", file.FileName)
	assert.Equal(t, enums.FileStatusPending, file.Status)
	assert.Equal(t, int64(len(pngHeader)), file.SizeBytes)
	assert.True(t, strings.HasPrefix(file.URL, "https://cdn.test/uploads/"+actor.UserID.String()+"/"))

	var stored models.File
	require.NoError(t, h.db.First(&stored, "id = ?", file.ID).Error)
	assert.Equal(t, pngHeader, h.store.objects[stored.ObjectKey])
}

func TestUploadValidatesContent(t *testing.T) {
	h := newHarness(t, 1)
	actor := customerActor()
	ctx := context.Background()

	_, err := h.svc.Upload(ctx, actor, UploadInput{FileName: "notes.txt", ContentType: "text/plain", Body: strings.NewReader("hello")})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.Upload(ctx, actor, UploadInput{FileName: "fake.pdf", ContentType: "application/pdf", Body: bytes.NewReader(pngHeader)})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.Upload(ctx, actor, UploadInput{FileName: "huge.png", ContentType: "image/png", Size: 2 << 20, Body: bytes.NewReader(pngHeader)})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.Upload(ctx, types.Actor{}, UploadInput{FileName: "a.png", ContentType: "image/png", Body: bytes.NewReader(pngHeader)})
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	drawing, err := h.svc.Upload(ctx, actor, UploadInput{FileName: "layout.dxf", ContentType: "application/octet-stream", Body: strings.NewReader("0\nSECTION\n2\nHEADER\n")})
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", drawing.ContentType)
}

func TestUploadRejectsOversizedStream(t *testing.T) {
	h := newHarness(t, 1)
	body := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 1<<20)...)

	_, err := h.svc.Upload(context.Background(), customerActor(), UploadInput{FileName: "big.png", ContentType: "image/png", Body: bytes.NewReader(body)})
	requireCode(t, err, pkgerrors.CodeValidation)
	assert.Empty(t, h.store.objects)
	assert.Len(t, h.store.deleted, 1)
}

func TestAttachRequiresOwnership(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	owner := customerActor()
	other := customerActor()
	quoteID := h.quote(t, owner.UserID)
	file := h.upload(t, owner)

	_, err := h.svc.Attach(ctx, other, AttachInput{FileID: file.ID, Scope: enums.AttachmentScopeQuote, ScopeID: quoteID})
	requireCode(t, err, pkgerrors.CodeNotFound)

	foreignQuote := h.quote(t, other.UserID)
	_, err = h.svc.Attach(ctx, owner, AttachInput{FileID: file.ID, Scope: enums.AttachmentScopeQuote, ScopeID: foreignQuote})
	requireCode(t, err, pkgerrors.CodeNotFound)

	attached, err := h.svc.Attach(ctx, owner, AttachInput{FileID: file.ID, Scope: enums.AttachmentScopeQuote, ScopeID: quoteID})
	require.NoError(t, err)
	require.NotNil(t, attached.File)
	assert.Equal(t, enums.FileStatusAttached, attached.File.Status)

	_, err = h.svc.Attach(ctx, owner, AttachInput{FileID: file.ID, Scope: enums.AttachmentScopeQuote, ScopeID: quoteID})
	requireCode(t, err, pkgerrors.CodeConflict)

	list, err := h.svc.ListAttachments(ctx, owner, enums.AttachmentScopeQuote, quoteID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, file.ID, list[0].File.ID)

	_, err = h.svc.ListAttachments(ctx, other, enums.AttachmentScopeQuote, quoteID)
	requireCode(t, err, pkgerrors.CodeNotFound)

	adminList, err := h.svc.ListAttachments(ctx, adminActor(), enums.AttachmentScopeQuote, quoteID)
	require.NoError(t, err)
	assert.Len(t, adminList, 1)
}

func TestAttachToMessageResolvesThreadOwner(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	owner := customerActor()
	orderID := h.order(t, owner.UserID)
	messageID := uuid.New()
	require.NoError(t, h.db.Create(&models.Message{
		ID:         messageID,
		Scope:      enums.MessageScopeOrder,
		ScopeID:    orderID,
		SenderID:   owner.UserID,
		SenderRole: enums.UserRoleCustomer,
		Body:       "Photo of the site",
	}).Error)
	file := h.upload(t, owner)

	_, err := h.svc.Attach(ctx, owner, AttachInput{FileID: file.ID, Scope: enums.AttachmentScopeMessage, ScopeID: messageID})
	require.NoError(t, err)

	_, err = h.svc.Attach(ctx, owner, AttachInput{FileID: file.ID, Scope: enums.AttachmentScopeMessage, ScopeID: uuid.New()})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestDetachAndDelete(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	owner := customerActor()
	orderID := h.order(t, owner.UserID)
	file := h.upload(t, owner)
	attached, err := h.svc.Attach(ctx, owner, AttachInput{FileID: file.ID, Scope: enums.AttachmentScopeOrder, ScopeID: orderID})
	require.NoError(t, err)

	requireCode(t, h.svc.Detach(ctx, customerActor(), attached.ID), pkgerrors.CodeNotFound)
	require.NoError(t, h.svc.Detach(ctx, owner, attached.ID))
	list, err := h.svc.ListAttachments(ctx, owner, enums.AttachmentScopeOrder, orderID)
	require.NoError(t, err)
	assert.Empty(t, list)

	requireCode(t, h.svc.Delete(ctx, customerActor(), file.ID), pkgerrors.CodeNotFound)
	require.NoError(t, h.svc.Delete(ctx, owner, file.ID))
	assert.Empty(t, h.store.objects)
	var count int64
	require.NoError(t, h.db.Model(&models.File{}).Where("id = ?", file.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCleanupPendingRemovesStaleUploads(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	owner := customerActor()
	quoteID := h.quote(t, owner.UserID)

	stale := h.upload(t, owner)
	kept := h.upload(t, owner)
	_, err := h.svc.Attach(ctx, owner, AttachInput{FileID: kept.ID, Scope: enums.AttachmentScopeQuote, ScopeID: quoteID})
	require.NoError(t, err)
	old := h.now.Add(-48 * time.Hour)
	require.NoError(t, h.db.Model(&models.File{}).Where("id IN ?", []uuid.UUID{stale.ID, kept.ID}).Update("created_at", old).Error)
	fresh := h.upload(t, owner)

	removed, err := h.svc.CleanupPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	var remaining []models.File
	require.NoError(t, h.db.Order("created_at").Find(&remaining).Error)
	ids := []uuid.UUID{}
	for _, f := range remaining {
		ids = append(ids, f.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{kept.ID, fresh.ID}, ids)
}

func TestCleanupPendingAggregatesStoreFailures(t *testing.T) {
	h := newHarness(t, 1)
	owner := customerActor()
	first := h.upload(t, owner)
	second := h.upload(t, owner)
	old := h.now.Add(-72 * time.Hour)
	require.NoError(t, h.db.Model(&models.File{}).Where("id IN ?", []uuid.UUID{first.ID, second.ID}).Update("created_at", old).Error)
	h.store.deleteErr = errors.New("bucket offline")

	removed, err := h.svc.CleanupPending(context.Background())
	require.Error(t, err)
	assert.Zero(t, removed)
	assert.Contains(t, err.Error(), "bucket offline")
}
