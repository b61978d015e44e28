package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/internal/pricing"
	"github.com/northcraft/cabinetry-backend/internal/shipping"
	"github.com/northcraft/cabinetry-backend/internal/testdb"
	"github.com/northcraft/cabinetry-backend/pkg/config"
	"github.com/northcraft/cabinetry-backend/pkg/db"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
	"github.com/northcraft/cabinetry-backend/pkg/outbox"
	"github.com/northcraft/cabinetry-backend/pkg/types"
)

var retiredCabinet = uuid.New()

// stubPricer charges a tenth of the width per unit.
type stubPricer struct{}

func (stubPricer) PriceLine(_ context.Context, cfg pricing.Configuration) (types.PriceBreakdown, error) {
	if cfg.CabinetTypeID == retiredCabinet {
		return types.PriceBreakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "cabinet type not available")
	}
	unit := decimal.NewFromInt(int64(cfg.WidthMM / 10))
	return types.PriceBreakdown{
		Description: "Cabinet",
		UnitPrice:   unit,
		Quantity:    cfg.Quantity,
		Total:       unit.Mul(decimal.NewFromInt(int64(cfg.Quantity))),
	}, nil
}

type stubEstimator struct{}

func (stubEstimator) Lookup(context.Context, string) (*shipping.Eligibility, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "postcode not serviced")
}

func (stubEstimator) EstimateDelivery(_ context.Context, req shipping.EstimateRequest) (*shipping.Estimate, error) {
	if req.Postcode != "2000" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "postcode not serviced")
	}
	return &shipping.Estimate{
		Postcode:          req.Postcode,
		DeliveryAvailable: true,
		AssemblyAvailable: true,
		DeliveryFee:       decimal.NewFromInt(50),
		AssemblySurcharge: decimal.Zero,
		LeadTimeDays:      21,
	}, nil
}

type stubDrafter struct {
	drafted []uuid.UUID
}

func (d *stubDrafter) DraftFromCart(_ context.Context, _ *gorm.DB, cart *models.Cart, _ RequestQuoteInput) (*QuoteRef, error) {
	d.drafted = append(d.drafted, cart.ID)
	return &QuoteRef{QuoteID: uuid.New(), QuoteNumber: "Q-000001"}, nil
}

type recordingEmitter struct {
	events []outbox.DomainEvent
}

func (r *recordingEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	r.events = append(r.events, event)
	return nil
}

type harness struct {
	svc     Service
	drafter *stubDrafter
	emitter *recordingEmitter
	now     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := testdb.Open(t)
	h := &harness{
		drafter: &stubDrafter{},
		emitter: &recordingEmitter{},
		now:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(conn),
		TxRunner:  db.FromConn(conn),
		Pricer:    stubPricer{},
		Estimator: stubEstimator{},
		Quotes:    h.drafter,
		Emitter:   h.emitter,
		Pricing:   config.PricingConfig{GSTPercent: "10"},
		Shipping:  config.ShippingConfig{PostcodePattern: config.DefaultPostcodePattern},
		Now:       func() time.Time { return h.now },
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func item(width, qty int) ItemInput {
	return ItemInput{
		Configuration: pricing.Configuration{
			CabinetTypeID: uuid.New(),
			WidthMM:       width,
			HeightMM:      720,
			DepthMM:       560,
			Quantity:      qty,
		},
		Options: types.ItemConfiguration{Label: "Sink base", Hardware: []string{"soft-close hinges"}},
	}
}

func TestGetCreatesSingleActiveCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	customer := uuid.New()

	first, err := h.svc.Get(ctx, customer)
	require.NoError(t, err)
	second, err := h.svc.Get(ctx, customer)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, enums.CartStatusActive, first.Status)
	assert.Empty(t, first.Items)

	_, err = h.svc.Get(ctx, uuid.Nil)
	require.Error(t, err)
}

func TestItemLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	customer := uuid.New()

	cart, err := h.svc.AddItem(ctx, customer, item(600, 2))
	require.NoError(t, err)
	cart, err = h.svc.AddItem(ctx, customer, item(900, 1))
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, 0, cart.Items[0].SortOrder)
	assert.Equal(t, 1, cart.Items[1].SortOrder)
	assert.Equal(t, 3, cart.ItemCount)
	assert.True(t, cart.Subtotal.Equal(decimal.NewFromInt(210)), cart.Subtotal.String())
	assert.Equal(t, []string{"soft-close hinges"}, cart.Items[0].Configuration.Hardware)

	cart, err = h.svc.UpdateItem(ctx, customer, cart.Items[0].ID, item(1200, 1))
	require.NoError(t, err)
	assert.True(t, cart.Items[0].TotalPrice.Equal(decimal.NewFromInt(120)))
	assert.True(t, cart.Subtotal.Equal(decimal.NewFromInt(210)))

	cart, err = h.svc.RemoveItem(ctx, customer, cart.Items[1].ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)

	_, err = h.svc.RemoveItem(ctx, customer, uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	cart, err = h.svc.Clear(ctx, customer)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.Subtotal.IsZero())
}

func TestAddItemRejectsUnavailableCabinet(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	customer := uuid.New()

	input := item(600, 1)
	input.CabinetTypeID = retiredCabinet
	_, err := h.svc.AddItem(ctx, customer, input)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	cart, err := h.svc.Get(ctx, customer)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestSetPostcodeAndSummary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	customer := uuid.New()

	_, err := h.svc.AddItem(ctx, customer, item(600, 2))
	require.NoError(t, err)

	_, err = h.svc.SetPostcode(ctx, customer, "20x0")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	summary, err := h.svc.SetPostcode(ctx, customer, "2000")
	require.NoError(t, err)
	require.NotNil(t, summary.Delivery)
	assert.Equal(t, 2, summary.ItemCount)
	assert.Equal(t, "120", summary.Totals.Subtotal.String())
	assert.Equal(t, "50", summary.Totals.DeliveryFee.String())
	assert.Equal(t, "17", summary.Totals.GST.String())
	assert.Equal(t, "187", summary.Totals.Total.String())
	assert.Empty(t, summary.Warnings)

	summary, err = h.svc.SetPostcode(ctx, customer, "0872")
	require.NoError(t, err)
	assert.Nil(t, summary.Delivery)
	assert.Contains(t, summary.Warnings, "postcode not serviced")
	assert.Equal(t, "132", summary.Totals.Total.String())
}

func TestRequestQuoteConvertsCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	customer := uuid.New()

	_, err := h.svc.RequestQuote(ctx, customer, RequestQuoteInput{})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	cart, err := h.svc.AddItem(ctx, customer, item(600, 1))
	require.NoError(t, err)

	ref, err := h.svc.RequestQuote(ctx, customer, RequestQuoteInput{IncludeAssembly: true})
	require.NoError(t, err)
	assert.Equal(t, "Q-000001", ref.QuoteNumber)
	assert.Equal(t, []uuid.UUID{cart.ID}, h.drafter.drafted)

	fresh, err := h.svc.Get(ctx, customer)
	require.NoError(t, err)
	assert.NotEqual(t, cart.ID, fresh.ID)
	assert.Empty(t, fresh.Items)
}

func TestAbandonIdleCarts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	idle, empty, busy := uuid.New(), uuid.New(), uuid.New()

	_, err := h.svc.AddItem(ctx, idle, item(600, 1))
	require.NoError(t, err)
	_, err = h.svc.Get(ctx, empty)
	require.NoError(t, err)

	h.now = h.now.Add(40 * 24 * time.Hour)
	_, err = h.svc.AddItem(ctx, busy, item(600, 1))
	require.NoError(t, err)

	count, err := h.svc.AbandonIdle(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, h.emitter.events, 1)
	assert.Equal(t, enums.EventCartAbandoned, h.emitter.events[0].EventType)

	again, err := h.svc.AbandonIdle(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, again)

	busyCart, err := h.svc.Get(ctx, busy)
	require.NoError(t, err)
	assert.Len(t, busyCart.Items, 1)
}
