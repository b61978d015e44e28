package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/internal/address"
	"github.com/northcraft/cabinetry-backend/internal/cart"
	"github.com/northcraft/cabinetry-backend/internal/orders"
	"github.com/northcraft/cabinetry-backend/internal/payments"
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

type recordingEmitter struct {
	events []outbox.DomainEvent
}

func (r *recordingEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	r.events = append(r.events, event)
	return nil
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

type zoneEstimator struct {
	zones map[string]shipping.Eligibility
}

func (z zoneEstimator) Lookup(_ context.Context, postcode string) (*shipping.Eligibility, error) {
	zone, ok := z.zones[postcode]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "postcode not found")
	}
	return &zone, nil
}

func (z zoneEstimator) EstimateDelivery(ctx context.Context, req shipping.EstimateRequest) (*shipping.Estimate, error) {
	zone, err := z.Lookup(ctx, req.Postcode)
	if err != nil {
		return nil, err
	}
	estimate := &shipping.Estimate{
		DeliveryAvailable: zone.DeliveryAvailable,
		AssemblyAvailable: zone.AssemblyAvailable,
		DeliveryFee:       decimal.NewFromInt(80),
		LeadTimeDays:      zone.LeadTimeDays,
	}
	if req.IncludeAssembly && zone.AssemblyAvailable {
		estimate.AssemblySurcharge = decimal.NewFromInt(40)
	}
	return estimate, nil
}

type harness struct {
	db       *gorm.DB
	svc      Service
	emitter  *recordingEmitter
	customer uuid.UUID
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := testdb.Open(t)
	h := &harness{
		db:       conn,
		emitter:  &recordingEmitter{},
		customer: uuid.New(),
		now:      time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return h.now }
	pricingCfg := config.PricingConfig{
		Currency:         "AUD",
		GSTPercent:       "10",
		DepositPercent:   "50",
		ProgressPercent:  "40",
		PaymentTermsDays: 7,
	}
	estimator := zoneEstimator{zones: map[string]shipping.Eligibility{
		"2000": {Postcode: "2000", DeliveryAvailable: true, AssemblyAvailable: true, LeadTimeDays: 21},
		"2880": {Postcode: "2880", DeliveryAvailable: true, LeadTimeDays: 35},
		"0872": {Postcode: "0872", DeliveryAvailable: false},
	}}
	scheduler, err := payments.NewScheduler(payments.SchedulerParams{
		Repo:    payments.NewRepository(conn),
		Emitter: h.emitter,
		Pricing: pricingCfg,
		Now:     clock,
	})
	require.NoError(t, err)
	tx := db.FromConn(conn)
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:      orders.NewRepository(conn),
		TxRunner:  tx,
		Payments:  scheduler,
		Estimator: estimator,
		Emitter:   h.emitter,
		Shipping:  config.ShippingConfig{DefaultLeadTimeDays: 28},
		Now:       clock,
	})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		TxRunner:  tx,
		Carts:     cart.NewRepository(conn),
		Pricer:    flatPricer{unit: decimal.NewFromInt(150)},
		Estimator: estimator,
		Orders:    orderSvc,
		Addresses: address.NewRepository(conn),
		Pricing:   pricingCfg,
		Now:       clock,
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) address(t *testing.T, userID uuid.UUID, postcode string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, h.db.Create(&models.Address{
		ID:        id,
		UserID:    userID,
		Label:     "Site",
		Recipient: "Alex Park",
		Line1:     "10 Bridge Rd",
		Suburb:    "Glebe",
		State:     "NSW",
		Postcode:  postcode,
		Country:   "AU",
	}).Error)
	return id
}

func (h *harness) cart(t *testing.T, quantities ...int) *models.Cart {
	t.Helper()
	record := &models.Cart{
		ID:             uuid.New(),
		CustomerID:     h.customer,
		Status:         enums.CartStatusActive,
		LastActivityAt: h.now,
	}
	require.NoError(t, h.db.Omit("Items").Create(record).Error)
	for i, qty := range quantities {
		require.NoError(t, h.db.Create(&models.CartItem{
			ID:            uuid.New(),
			CartID:        record.ID,
			CabinetTypeID: uuid.New(),
			WidthMM:       600,
			HeightMM:      720,
			DepthMM:       560,
			Quantity:      qty,
			UnitPrice:     decimal.NewFromInt(100),
			TotalPrice:    decimal.NewFromInt(int64(100 * qty)),
			SortOrder:     i,
		}).Error)
	}
	return record
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, code), "expected %s, got %v", code, err)
}

func TestExecuteCreatesOrderFromRepricedCart(t *testing.T) {
	h := newHarness(t)
	addressID := h.address(t, h.customer, "2000")
	record := h.cart(t, 2, 1)
	notes := "  side gate access  "

	order, err := h.svc.Execute(context.Background(), h.customer, Input{AddressID: addressID, IncludeAssembly: true, Notes: &notes})
	require.NoError(t, err)

	// 3 x 150 + 80 delivery + 40 assembly, plus 10% GST.
	assert.Equal(t, "450.00", order.Subtotal.StringFixed(2))
	assert.Equal(t, "627.00", order.Total.StringFixed(2))
	assert.Equal(t, enums.OrderStatusAwaitingDeposit, order.Status)
	assert.Equal(t, 21, order.LeadTimeDays)
	require.NotNil(t, order.Notes)
	assert.Equal(t, "side gate access", *order.Notes)
	require.NotNil(t, order.ShippingAddress)
	assert.Equal(t, "2000", order.ShippingAddress.Postcode)
	assert.Len(t, order.Items, 2)

	var closed models.Cart
	require.NoError(t, h.db.Preload("Items").First(&closed, "id = ?", record.ID).Error)
	assert.Equal(t, enums.CartStatusCheckedOut, closed.Status)
	require.NotNil(t, closed.OrderID)
	assert.Equal(t, order.ID, *closed.OrderID)
	for _, item := range closed.Items {
		assert.Equal(t, "150.00", item.UnitPrice.StringFixed(2))
	}

	var schedules int64
	require.NoError(t, h.db.Model(&models.PaymentSchedule{}).Where("order_id = ?", order.ID).Count(&schedules).Error)
	assert.EqualValues(t, 3, schedules)

	_, err = h.svc.Execute(context.Background(), h.customer, Input{AddressID: addressID})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestExecuteRejectsEmptyCart(t *testing.T) {
	h := newHarness(t)
	addressID := h.address(t, h.customer, "2000")
	h.cart(t)

	_, err := h.svc.Execute(context.Background(), h.customer, Input{AddressID: addressID})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestExecuteChecksDeliveryCoverage(t *testing.T) {
	h := newHarness(t)
	h.cart(t, 1)

	unknown := h.address(t, h.customer, "9999")
	_, err := h.svc.Execute(context.Background(), h.customer, Input{AddressID: unknown})
	requireCode(t, err, pkgerrors.CodeValidation)

	closed := h.address(t, h.customer, "0872")
	_, err = h.svc.Execute(context.Background(), h.customer, Input{AddressID: closed})
	requireCode(t, err, pkgerrors.CodeValidation)

	regional := h.address(t, h.customer, "2880")
	_, err = h.svc.Execute(context.Background(), h.customer, Input{AddressID: regional, IncludeAssembly: true})
	requireCode(t, err, pkgerrors.CodeValidation)

	order, err := h.svc.Execute(context.Background(), h.customer, Input{AddressID: regional})
	require.NoError(t, err)
	assert.Equal(t, 35, order.LeadTimeDays)
	assert.True(t, order.AssemblySurcharge.IsZero())
}

func TestExecuteRequiresOwnAddress(t *testing.T) {
	h := newHarness(t)
	h.cart(t, 1)
	foreign := h.address(t, uuid.New(), "2000")

	_, err := h.svc.Execute(context.Background(), h.customer, Input{AddressID: foreign})
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = h.svc.Execute(context.Background(), uuid.Nil, Input{AddressID: foreign})
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}
