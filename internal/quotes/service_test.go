package quotes

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/internal/address"
	"github.com/northcraft/cabinetry-backend/internal/cart"
	"github.com/northcraft/cabinetry-backend/internal/pricing"
	"github.com/northcraft/cabinetry-backend/internal/shipping"
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

type flatPricer struct {
	unit decimal.Decimal
}

func (p flatPricer) PriceLine(_ context.Context, cfg pricing.Configuration) (types.PriceBreakdown, error) {
	return types.PriceBreakdown{
		Description: "Base cabinet",
		UnitPrice:   p.unit,
		Quantity:    cfg.Quantity,
		Total:       p.unit.Mul(decimal.NewFromInt(int64(cfg.Quantity))),
	}, nil
}

type flatEstimator struct{}

func (flatEstimator) Lookup(_ context.Context, postcode string) (*shipping.Eligibility, error) {
	switch postcode {
	case "9999":
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "postcode not found")
	case "0872":
		return &shipping.Eligibility{Postcode: postcode, DeliveryAvailable: false}, nil
	}
	return &shipping.Eligibility{
		Postcode:          postcode,
		DeliveryAvailable: true,
		AssemblyAvailable: postcode != "2650",
		LeadTimeDays:      21,
	}, nil
}

func (flatEstimator) EstimateDelivery(_ context.Context, req shipping.EstimateRequest) (*shipping.Estimate, error) {
	if req.Postcode == "9999" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "postcode not found")
	}
	estimate := &shipping.Estimate{DeliveryAvailable: true, DeliveryFee: decimal.NewFromInt(50)}
	if req.IncludeAssembly {
		estimate.AssemblyAvailable = true
		estimate.AssemblySurcharge = decimal.NewFromInt(20)
	}
	return estimate, nil
}

type stubOrders struct {
	addresses []*types.ShippingAddress
}

func (o *stubOrders) CreateFromQuote(_ context.Context, tx *gorm.DB, quote *models.Quote, addr *types.ShippingAddress) (*models.Order, error) {
	o.addresses = append(o.addresses, addr)
	quoteID := quote.ID
	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: "ORD-000001",
		CustomerID:  quote.CustomerID,
		QuoteID:     &quoteID,
		Status:      enums.OrderStatusAwaitingDeposit,
		Subtotal:    quote.Subtotal,
		Total:       quote.Total,
		BalanceDue:  quote.Total,
	}
	return order, tx.Omit("Items").Create(order).Error
}

type harness struct {
	db       *gorm.DB
	tx       *db.Client
	svc      Service
	emitter  *recordingEmitter
	orders   *stubOrders
	customer uuid.UUID
	admin    uuid.UUID
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := testdb.Open(t)
	h := &harness{
		db:       conn,
		tx:       db.FromConn(conn),
		emitter:  &recordingEmitter{},
		orders:   &stubOrders{},
		customer: uuid.New(),
		admin:    uuid.New(),
		now:      time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(conn),
		Carts:     cart.NewRepository(conn),
		TxRunner:  h.tx,
		Pricer:    flatPricer{unit: decimal.NewFromInt(100)},
		Estimator: flatEstimator{},
		Orders:    h.orders,
		Addresses: address.NewRepository(conn),
		Emitter:   h.emitter,
		Pricing: config.PricingConfig{
			Currency:          "AUD",
			GSTPercent:        "10",
			QuoteValidityDays: 30,
		},
		Business: config.BusinessConfig{Name: "Northcraft Cabinetry"},
		Now:      func() time.Time { return h.now },
	})
	require.NoError(t, err)
	h.svc = svc
	require.NoError(t, conn.Create(&models.User{
		ID:           h.customer,
		Email:        "sam@example.com",
		PasswordHash: "hash",
		FirstName:    "Sam",
		LastName:     "Lee",
		Role:         enums.UserRoleCustomer,
		IsActive:     true,
	}).Error)
	return h
}

func item(quantity int) ItemInput {
	return ItemInput{Configuration: pricing.Configuration{
		CabinetTypeID: uuid.New(),
		WidthMM:       600,
		HeightMM:      720,
		DepthMM:       560,
		Quantity:      quantity,
	}}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, code), "expected %s, got %v", code, err)
}

// sentQuote drafts a quote with two cabinets delivered to 2000 and sends it.
func (h *harness) sentQuote(t *testing.T) *QuoteDTO {
	t.Helper()
	ctx := context.Background()
	postcode := "2000"
	draft, err := h.svc.CreateDraft(ctx, h.admin, CreateDraftInput{CustomerID: h.customer, Postcode: &postcode})
	require.NoError(t, err)
	_, err = h.svc.AddItem(ctx, draft.ID, item(2))
	require.NoError(t, err)
	sent, err := h.svc.Send(ctx, h.admin, draft.ID)
	require.NoError(t, err)
	return sent
}

func TestDraftItemsRecalculateTotals(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	postcode := "2000"

	draft, err := h.svc.CreateDraft(ctx, h.admin, CreateDraftInput{CustomerID: h.customer, Postcode: &postcode})
	require.NoError(t, err)
	assert.Equal(t, "Q-000001", draft.QuoteNumber)
	assert.Equal(t, enums.QuoteStatusDraft, draft.Status)
	assert.True(t, draft.Total.IsZero())

	withItem, err := h.svc.AddItem(ctx, draft.ID, item(2))
	require.NoError(t, err)
	require.Len(t, withItem.Items, 1)
	assert.Equal(t, "Base cabinet", withItem.Items[0].Description)
	assert.Equal(t, "200.00", withItem.Subtotal.StringFixed(2))
	assert.Equal(t, "50.00", withItem.DeliveryFee.StringFixed(2))
	assert.Equal(t, "25.00", withItem.GST.StringFixed(2))
	assert.Equal(t, "275.00", withItem.Total.StringFixed(2))

	include := true
	discount := decimal.NewFromInt(70)
	updated, err := h.svc.Update(ctx, draft.ID, UpdateInput{IncludeAssembly: &include, Discount: &discount})
	require.NoError(t, err)
	assert.Equal(t, "20.00", updated.AssemblySurcharge.StringFixed(2))
	assert.Equal(t, "20.00", updated.GST.StringFixed(2))
	assert.Equal(t, "220.00", updated.Total.StringFixed(2))

	changed := item(1)
	changed.Description = "Pantry"
	updated, err = h.svc.UpdateItem(ctx, draft.ID, withItem.Items[0].ID, changed)
	require.NoError(t, err)
	assert.Equal(t, "Pantry", updated.Items[0].Description)
	assert.Equal(t, "100.00", updated.Subtotal.StringFixed(2))

	emptied, err := h.svc.RemoveItem(ctx, draft.ID, withItem.Items[0].ID)
	require.NoError(t, err)
	assert.Empty(t, emptied.Items)
	assert.True(t, emptied.Subtotal.IsZero())

	_, err = h.svc.RemoveItem(ctx, draft.ID, withItem.Items[0].ID)
	requireCode(t, err, pkgerrors.CodeNotFound)

	negative := decimal.NewFromInt(-1)
	_, err = h.svc.Update(ctx, draft.ID, UpdateInput{Discount: &negative})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestUnservicedPostcodePricesWithoutDelivery(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	postcode := "9999"
	draft, err := h.svc.CreateDraft(ctx, h.admin, CreateDraftInput{CustomerID: h.customer, Postcode: &postcode})
	require.NoError(t, err)
	quote, err := h.svc.AddItem(ctx, draft.ID, item(1))
	require.NoError(t, err)
	assert.True(t, quote.DeliveryFee.IsZero())
	assert.Equal(t, "110.00", quote.Total.StringFixed(2))
}

func TestCreateDraftRejectsUnknownCustomer(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.CreateDraft(context.Background(), h.admin, CreateDraftInput{CustomerID: uuid.New()})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestSendRequiresItemsAndSetsValidity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	draft, err := h.svc.CreateDraft(ctx, h.admin, CreateDraftInput{CustomerID: h.customer})
	require.NoError(t, err)
	_, err = h.svc.Send(ctx, h.admin, draft.ID)
	requireCode(t, err, pkgerrors.CodeValidation)

	sent := h.sentQuote(t)
	assert.Equal(t, enums.QuoteStatusSent, sent.Status)
	require.NotNil(t, sent.ValidUntil)
	assert.True(t, sent.ValidUntil.Equal(h.now.AddDate(0, 0, 30)))
	assert.Equal(t, []enums.OutboxEventType{enums.EventQuoteSent}, h.emitter.types())

	_, err = h.svc.AddItem(ctx, sent.ID, item(1))
	requireCode(t, err, pkgerrors.CodeStateConflict)
	_, err = h.svc.Send(ctx, h.admin, sent.ID)
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestCustomerViewsAndAcceptsQuote(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sent := h.sentQuote(t)
	require.NoError(t, h.db.Create(&models.Address{
		ID:        uuid.New(),
		UserID:    h.customer,
		Label:     "Home",
		Recipient: "Sam Lee",
		Line1:     "1 King St",
		Suburb:    "Sydney",
		State:     "NSW",
		Postcode:  "2000",
		Country:   "AU",
		IsDefault: true,
	}).Error)

	viewed, err := h.svc.MarkViewed(ctx, h.customer, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusViewed, viewed.Status)
	assert.NotNil(t, viewed.ViewedAt)

	result, err := h.svc.Accept(ctx, h.customer, sent.ID, AcceptInput{})
	require.NoError(t, err)
	assert.Equal(t, "ORD-000001", result.OrderNumber)
	assert.Equal(t, enums.QuoteStatusAccepted, result.Quote.Status)
	require.NotNil(t, result.Quote.OrderID)
	assert.Equal(t, result.OrderID, *result.Quote.OrderID)

	require.Len(t, h.orders.addresses, 1)
	require.NotNil(t, h.orders.addresses[0])
	assert.Equal(t, "2000", h.orders.addresses[0].Postcode)

	accepted := h.emitter.events[len(h.emitter.events)-1]
	assert.Equal(t, enums.EventQuoteAccepted, accepted.EventType)
	payload, ok := accepted.Data.(payloads.QuoteEvent)
	require.True(t, ok)
	require.NotNil(t, payload.OrderID)
	assert.Equal(t, result.OrderID, *payload.OrderID)

	_, err = h.svc.Accept(ctx, h.customer, sent.ID, AcceptInput{})
	requireCode(t, err, pkgerrors.CodeStateConflict)
	_, err = h.svc.Revise(ctx, h.admin, sent.ID)
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestAcceptRejectsForeignAddressAndOtherCustomers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sent := h.sentQuote(t)

	missing := uuid.New()
	_, err := h.svc.Accept(ctx, h.customer, sent.ID, AcceptInput{AddressID: &missing})
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = h.svc.Accept(ctx, uuid.New(), sent.ID, AcceptInput{})
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = h.svc.Get(ctx, &missing, sent.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func (h *harness) address(t *testing.T, postcode string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, h.db.Create(&models.Address{
		ID:        id,
		UserID:    h.customer,
		Label:     "Site " + postcode,
		Recipient: "Sam Lee",
		Line1:     "8 Mill Rd",
		Suburb:    "Somewhere",
		State:     "NSW",
		Postcode:  postcode,
		Country:   "AU",
	}).Error)
	return id
}

// quoteFor drafts and sends a one-item quote priced for the postcode.
func (h *harness) quoteFor(t *testing.T, postcode string, includeAssembly bool) *QuoteDTO {
	t.Helper()
	ctx := context.Background()
	draft, err := h.svc.CreateDraft(ctx, h.admin, CreateDraftInput{CustomerID: h.customer, Postcode: &postcode})
	require.NoError(t, err)
	if includeAssembly {
		_, err = h.svc.Update(ctx, draft.ID, UpdateInput{IncludeAssembly: &includeAssembly})
		require.NoError(t, err)
	}
	_, err = h.svc.AddItem(ctx, draft.ID, item(1))
	require.NoError(t, err)
	sent, err := h.svc.Send(ctx, h.admin, draft.ID)
	require.NoError(t, err)
	return sent
}

func TestAcceptRequiresTheQuotedPostcode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sent := h.sentQuote(t)
	remote := h.address(t, "2880")

	_, err := h.svc.Accept(ctx, h.customer, sent.ID, AcceptInput{AddressID: &remote})
	requireCode(t, err, pkgerrors.CodeValidation)
	assert.Empty(t, h.orders.addresses)

	quote, err := h.svc.Get(ctx, nil, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusSent, quote.Status)

	local := h.address(t, "2000")
	result, err := h.svc.Accept(ctx, h.customer, sent.ID, AcceptInput{AddressID: &local})
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusAccepted, result.Quote.Status)
}

func TestAcceptRejectsUnservicedDelivery(t *testing.T) {
	cases := map[string]struct {
		postcode        string
		includeAssembly bool
	}{
		"unknown postcode":     {postcode: "9999"},
		"delivery unavailable": {postcode: "0872"},
		"assembly unavailable": {postcode: "2650", includeAssembly: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			sent := h.quoteFor(t, tc.postcode, tc.includeAssembly)
			addressID := h.address(t, tc.postcode)

			_, err := h.svc.Accept(context.Background(), h.customer, sent.ID, AcceptInput{AddressID: &addressID})
			requireCode(t, err, pkgerrors.CodeValidation)
			assert.Empty(t, h.orders.addresses)
		})
	}
}

func TestExpiredQuotesCannotBeAccepted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sent := h.sentQuote(t)

	h.now = h.now.AddDate(0, 0, 31)
	_, err := h.svc.Accept(ctx, h.customer, sent.ID, AcceptInput{})
	requireCode(t, err, pkgerrors.CodeStateConflict)
	assert.Empty(t, h.orders.addresses)

	expired, err := h.svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	quote, err := h.svc.Get(ctx, nil, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusExpired, quote.Status)
	assert.NotNil(t, quote.ExpiredAt)

	again, err := h.svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestRejectAndReviseSnapshotsVersion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sent := h.sentQuote(t)

	rejected, err := h.svc.Reject(ctx, h.customer, sent.ID, RejectInput{Reason: "  too expensive "})
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "too expensive", *rejected.RejectionReason)

	revised, err := h.svc.Revise(ctx, h.admin, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusDraft, revised.Status)
	assert.Equal(t, 2, revised.Version)
	assert.Nil(t, revised.SentAt)
	assert.Nil(t, revised.RejectedAt)
	assert.Nil(t, revised.RejectionReason)
	assert.Nil(t, revised.ValidUntil)
	assert.Len(t, revised.Items, 1)

	versions, err := h.svc.Versions(ctx, &h.customer, sent.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].Version)
	assert.Equal(t, string(enums.QuoteStatusRejected), versions[0].Status)

	var frozen snapshot
	require.NoError(t, json.Unmarshal(versions[0].Snapshot, &frozen))
	require.Len(t, frozen.Items, 1)
	assert.Equal(t, "275.00", frozen.Totals.Total.StringFixed(2))

	_, err = h.svc.AddItem(ctx, sent.ID, item(1))
	require.NoError(t, err)
}

func TestDraftFromCart(t *testing.T) {
	h := newHarness(t)
	postcode := "2000"
	source := &models.Cart{
		ID:         uuid.New(),
		CustomerID: h.customer,
		Postcode:   &postcode,
		Items: []models.CartItem{{
			ID:            uuid.New(),
			CabinetTypeID: uuid.New(),
			WidthMM:       600,
			HeightMM:      720,
			DepthMM:       560,
			Quantity:      3,
			Breakdown:     types.PriceBreakdown{Description: "Wall cabinet 600mm"},
			UnitPrice:     decimal.NewFromInt(80),
			TotalPrice:    decimal.NewFromInt(240),
		}},
	}
	var ref *cart.QuoteRef
	err := h.tx.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		ref, err = h.svc.DraftFromCart(context.Background(), tx, source, cart.RequestQuoteInput{IncludeAssembly: true})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "Q-000001", ref.QuoteNumber)

	quote, err := h.svc.Get(context.Background(), &h.customer, ref.QuoteID)
	require.NoError(t, err)
	require.NotNil(t, quote.CartID)
	assert.Equal(t, source.ID, *quote.CartID)
	require.Len(t, quote.Items, 1)
	assert.Equal(t, "Wall cabinet 600mm", quote.Items[0].Description)
	assert.Equal(t, "240.00", quote.Subtotal.StringFixed(2))
	assert.Equal(t, "20.00", quote.AssemblySurcharge.StringFixed(2))
	assert.Equal(t, "341.00", quote.Total.StringFixed(2))
}

func TestConvertToCartRepricesItems(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sent := h.sentQuote(t)

	ref, err := h.svc.ConvertToCart(ctx, h.customer, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, ref.ItemCount)

	active, err := cart.NewRepository(h.db).FindActive(ctx, h.customer)
	require.NoError(t, err)
	assert.Equal(t, ref.CartID, active.ID)
	require.Len(t, active.Items, 1)
	assert.Equal(t, "200.00", active.Items[0].TotalPrice.StringFixed(2))
	require.NotNil(t, active.Postcode)
	assert.Equal(t, "2000", *active.Postcode)

	_, err = h.svc.ConvertToCart(ctx, uuid.New(), sent.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestPDF(t *testing.T) {
	h := newHarness(t)
	sent := h.sentQuote(t)

	doc, err := h.svc.PDF(context.Background(), &h.customer, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, "Q-000001-v1.pdf", doc.FileName)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.True(t, bytes.HasPrefix(doc.Content, []byte("%PDF")))
}

func TestListFiltersQuotes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.sentQuote(t)
	_, err := h.svc.CreateDraft(ctx, h.admin, CreateDraftInput{CustomerID: h.customer})
	require.NoError(t, err)

	all, err := h.svc.List(ctx, ListFilter{CustomerID: &h.customer, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)

	sent := enums.QuoteStatusSent
	onlySent, err := h.svc.List(ctx, ListFilter{Status: &sent, Limit: 10})
	require.NoError(t, err)
	require.Len(t, onlySent.Items, 1)
	assert.Equal(t, "Q-000001", onlySent.Items[0].QuoteNumber)

	search, err := h.svc.List(ctx, ListFilter{Search: "q-000002", Limit: 10})
	require.NoError(t, err)
	require.Len(t, search.Items, 1)

	stranger := uuid.New()
	none, err := h.svc.List(ctx, ListFilter{CustomerID: &stranger, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, none.Items)
}
