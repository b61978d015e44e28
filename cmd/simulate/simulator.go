package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/internal/address"
	"github.com/northcraft/cabinetry-backend/internal/app"
	"github.com/northcraft/cabinetry-backend/internal/cart"
	"github.com/northcraft/cabinetry-backend/internal/catalog"
	"github.com/northcraft/cabinetry-backend/internal/checkout"
	"github.com/northcraft/cabinetry-backend/internal/pricing"
	"github.com/northcraft/cabinetry-backend/internal/quotes"
	"github.com/northcraft/cabinetry-backend/internal/shipping"
	"github.com/northcraft/cabinetry-backend/internal/users"
	"github.com/northcraft/cabinetry-backend/pkg/config"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
	"github.com/northcraft/cabinetry-backend/pkg/security"
)

const (
	simPostcode = "2000"
	simPassword = "simulation-only-password"
)

type simulator struct {
	cfg      config.SimulationConfig
	password config.PasswordConfig
	services *app.Services
	users    *users.Repository
	db       *gorm.DB
	logg     *logger.Logger
	timings  *latencies
}

type fixture struct {
	customerID  uuid.UUID
	adminID     uuid.UUID
	addressID   uuid.UUID
	cabinetType catalog.CabinetTypeDTO
	doorStyleID *uuid.UUID
}

type outcome struct {
	Carts     int
	Items     int
	Quotes    int
	Orders    int
	Stats     []opStats
	Failures  error
	RunTag    string
	Customer  uuid.UUID
	Mismatch  int
	Completed int
}

func (s *simulator) run(ctx context.Context) (*outcome, error) {
	runTag := uuid.NewString()[:8]
	fx, err := s.seed(ctx, runTag)
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}

	out := &outcome{RunTag: runTag, Customer: fx.customerID}
	for i := 0; i < s.cfg.Carts; i++ {
		viaQuote := i%2 == 0
		if err := s.cartRound(ctx, fx, viaQuote, out); err != nil {
			out.Failures = multierr.Append(out.Failures, fmt.Errorf("cart %d: %w", i+1, err))
			continue
		}
		out.Completed++
	}

	out.Failures = multierr.Append(out.Failures, s.verifyRowCounts(ctx, fx, out))
	out.Stats = s.timings.report()
	return out, nil
}

func (s *simulator) seed(ctx context.Context, runTag string) (*fixture, error) {
	fx := &fixture{}

	customer, err := s.createUser(ctx, "customer", runTag, enums.UserRoleCustomer)
	if err != nil {
		return nil, err
	}
	fx.customerID = customer.ID
	admin, err := s.createUser(ctx, "admin", runTag, enums.UserRoleAdmin)
	if err != nil {
		return nil, err
	}
	fx.adminID = admin.ID

	if err := s.ensureDelivery(ctx); err != nil {
		return nil, err
	}

	addr, err := s.services.Addresses.Create(ctx, fx.customerID, address.CreateAddressRequest{
		Label:     "Site",
		Recipient: "Simulation Customer",
		Line1:     "1 Martin Place",
		Suburb:    "Sydney",
		State:     "NSW",
		Postcode:  simPostcode,
		IsDefault: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create address: %w", err)
	}
	fx.addressID = addr.ID

	types, err := s.services.Catalog.ListCabinetTypes(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list cabinet types: %w", err)
	}
	if len(types) == 0 {
		created, err := s.services.Catalog.CreateCabinetType(ctx, catalog.CabinetTypeInput{
			Name:            "Base Cabinet " + runTag,
			Category:        "base",
			BasePrice:       decimal.RequireFromString("180"),
			MaterialRate:    decimal.RequireFromString("0.00012"),
			DoorCount:       2,
			DefaultWidthMM:  600,
			MinWidthMM:      300,
			MaxWidthMM:      1200,
			DefaultHeightMM: 720,
			MinHeightMM:     600,
			MaxHeightMM:     900,
			DefaultDepthMM:  560,
			MinDepthMM:      300,
			MaxDepthMM:      650,
		})
		if err != nil {
			return nil, fmt.Errorf("create cabinet type: %w", err)
		}
		types = append(types, *created)
	}
	fx.cabinetType = types[0]

	styles, err := s.services.Catalog.ListDoorStyles(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list door styles: %w", err)
	}
	if len(styles) > 0 {
		fx.doorStyleID = &styles[0].ID
	}
	return fx, nil
}

func (s *simulator) createUser(ctx context.Context, kind, runTag string, role enums.UserRole) (*models.User, error) {
	hash, err := security.HashPassword(simPassword, s.password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.users.Create(ctx, users.CreateUserDTO{
		Email:        fmt.Sprintf("sim+%s-%s@example.com", kind, runTag),
		PasswordHash: hash,
		FirstName:    "Simulation",
		LastName:     kind,
		Role:         role,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", kind, err)
	}
	return user, nil
}

// ensureDelivery makes sure the simulation postcode is deliverable and a
// default rate card exists.
func (s *simulator) ensureDelivery(ctx context.Context) error {
	cards, err := s.services.Shipping.ListRateCards(ctx)
	if err != nil {
		return fmt.Errorf("list rate cards: %w", err)
	}
	hasDefault := false
	for _, card := range cards {
		if card.IsDefault {
			hasDefault = true
			break
		}
	}
	if !hasDefault {
		if _, err := s.services.Shipping.CreateRateCard(ctx, shipping.RateCardInput{
			Name:                "Standard",
			BaseDeliveryFee:     decimal.RequireFromString("150"),
			PerItemFee:          decimal.RequireFromString("10"),
			MetroMultiplier:     decimal.NewFromInt(1),
			RemoteMultiplier:    decimal.RequireFromString("1.5"),
			AssemblyRatePercent: decimal.NewFromInt(15),
			IsDefault:           true,
		}); err != nil {
			return fmt.Errorf("create rate card: %w", err)
		}
	}

	lat, lng := -33.8688, 151.2093
	_, err = s.services.Shipping.CreateZone(ctx, shipping.PostcodeZoneInput{
		Postcode:          simPostcode,
		Suburb:            "Sydney",
		State:             "NSW",
		Lat:               &lat,
		Lng:               &lng,
		IsMetro:           true,
		AssemblyAvailable: true,
	})
	if err != nil && !pkgerrors.Is(err, pkgerrors.CodeConflict) {
		return fmt.Errorf("create postcode zone: %w", err)
	}
	return nil
}

func (s *simulator) cartRound(ctx context.Context, fx *fixture, viaQuote bool, out *outcome) error {
	var latest *cart.CartDTO
	for j := 0; j < s.cfg.ItemsPerCart; j++ {
		input := cart.ItemInput{Configuration: pricing.Configuration{
			CabinetTypeID: fx.cabinetType.ID,
			DoorStyleID:   fx.doorStyleID,
			WidthMM:       fx.cabinetType.DefaultWidthMM,
			HeightMM:      fx.cabinetType.DefaultHeightMM,
			DepthMM:       fx.cabinetType.DefaultDepthMM,
			Quantity:      j%3 + 1,
		}}
		err := s.timings.track("cart.add_item", func() error {
			dto, err := s.services.Cart.AddItem(ctx, fx.customerID, input)
			latest = dto
			return err
		})
		if err != nil {
			return fmt.Errorf("add item: %w", err)
		}
		out.Items++
	}
	out.Carts++
	if latest == nil {
		return nil
	}

	var reloaded *cart.CartDTO
	if err := s.timings.track("cart.get", func() error {
		dto, err := s.services.Cart.Get(ctx, fx.customerID)
		reloaded = dto
		return err
	}); err != nil {
		return fmt.Errorf("reload cart: %w", err)
	}
	if reloaded.ItemCount != s.cfg.ItemsPerCart || !reloaded.Subtotal.Equal(latest.Subtotal) {
		out.Mismatch++
		return fmt.Errorf("cart round trip: %d items subtotal %s, expected %d items subtotal %s",
			reloaded.ItemCount, reloaded.Subtotal, s.cfg.ItemsPerCart, latest.Subtotal)
	}

	if !viaQuote {
		return s.checkoutCart(ctx, fx, latest, out)
	}
	return s.quoteCart(ctx, fx, latest, out)
}

func (s *simulator) quoteCart(ctx context.Context, fx *fixture, c *cart.CartDTO, out *outcome) error {
	if err := s.timings.track("cart.set_postcode", func() error {
		_, err := s.services.Cart.SetPostcode(ctx, fx.customerID, simPostcode)
		return err
	}); err != nil {
		return fmt.Errorf("set postcode: %w", err)
	}

	var ref *cart.QuoteRef
	if err := s.timings.track("cart.request_quote", func() error {
		r, err := s.services.Cart.RequestQuote(ctx, fx.customerID, cart.RequestQuoteInput{})
		ref = r
		return err
	}); err != nil {
		return fmt.Errorf("request quote: %w", err)
	}
	out.Quotes++

	draft, err := s.services.Quotes.Get(ctx, &fx.customerID, ref.QuoteID)
	if err != nil {
		return fmt.Errorf("reload quote: %w", err)
	}
	if !draft.Subtotal.Equal(c.Subtotal) {
		out.Mismatch++
		return fmt.Errorf("quote %s subtotal %s differs from cart subtotal %s", draft.QuoteNumber, draft.Subtotal, c.Subtotal)
	}

	if err := s.timings.track("quote.send", func() error {
		_, err := s.services.Quotes.Send(ctx, fx.adminID, ref.QuoteID)
		return err
	}); err != nil {
		return fmt.Errorf("send quote: %w", err)
	}

	var accepted *quotes.AcceptResult
	if err := s.timings.track("quote.accept", func() error {
		result, err := s.services.Quotes.Accept(ctx, fx.customerID, ref.QuoteID, quotes.AcceptInput{AddressID: &fx.addressID})
		accepted = result
		return err
	}); err != nil {
		return fmt.Errorf("accept quote: %w", err)
	}
	out.Orders++

	order, err := s.services.Orders.Get(ctx, &fx.customerID, accepted.OrderID)
	if err != nil {
		return fmt.Errorf("reload order: %w", err)
	}
	if !order.Total.Equal(accepted.Quote.Total) {
		out.Mismatch++
		return fmt.Errorf("order %s total %s differs from quote total %s", order.OrderNumber, order.Total, accepted.Quote.Total)
	}
	return nil
}

func (s *simulator) checkoutCart(ctx context.Context, fx *fixture, c *cart.CartDTO, out *outcome) error {
	if err := s.timings.track("cart.set_postcode", func() error {
		_, err := s.services.Cart.SetPostcode(ctx, fx.customerID, simPostcode)
		return err
	}); err != nil {
		return fmt.Errorf("set postcode: %w", err)
	}

	if err := s.timings.track("checkout", func() error {
		order, err := s.services.Checkout.Execute(ctx, fx.customerID, checkout.Input{AddressID: fx.addressID})
		if err != nil {
			return err
		}
		if !order.Subtotal.Equal(c.Subtotal) {
			out.Mismatch++
			return fmt.Errorf("order %s subtotal %s differs from cart subtotal %s", order.OrderNumber, order.Subtotal, c.Subtotal)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	out.Orders++
	return nil
}

func (s *simulator) verifyRowCounts(ctx context.Context, fx *fixture, out *outcome) error {
	var items int64
	if err := s.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("carts.customer_id = ?", fx.customerID).
		Count(&items).Error; err != nil {
		return fmt.Errorf("count cart items: %w", err)
	}
	var orders int64
	if err := s.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("customer_id = ?", fx.customerID).
		Count(&orders).Error; err != nil {
		return fmt.Errorf("count orders: %w", err)
	}

	var errs error
	if int(items) != out.Items {
		errs = multierr.Append(errs, fmt.Errorf("expected %d cart item rows, found %d", out.Items, items))
	}
	if int(orders) != out.Orders {
		errs = multierr.Append(errs, fmt.Errorf("expected %d orders, found %d", out.Orders, orders))
	}
	return errs
}
