package app

import (
	"fmt"
	"time"

	"github.com/northcraft/cabinetry-backend/internal/address"
	"github.com/northcraft/cabinetry-backend/internal/cart"
	"github.com/northcraft/cabinetry-backend/internal/catalog"
	"github.com/northcraft/cabinetry-backend/internal/checkout"
	"github.com/northcraft/cabinetry-backend/internal/files"
	"github.com/northcraft/cabinetry-backend/internal/messages"
	"github.com/northcraft/cabinetry-backend/internal/orders"
	"github.com/northcraft/cabinetry-backend/internal/payments"
	"github.com/northcraft/cabinetry-backend/internal/pricing"
	"github.com/northcraft/cabinetry-backend/internal/quotes"
	"github.com/northcraft/cabinetry-backend/internal/shipping"
	"github.com/northcraft/cabinetry-backend/internal/users"
	"github.com/northcraft/cabinetry-backend/pkg/config"
	"github.com/northcraft/cabinetry-backend/pkg/db"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
	"github.com/northcraft/cabinetry-backend/pkg/maps"
	"github.com/northcraft/cabinetry-backend/pkg/outbox"
	"github.com/northcraft/cabinetry-backend/pkg/redis"
	"github.com/northcraft/cabinetry-backend/pkg/square"
	"github.com/northcraft/cabinetry-backend/pkg/storage/gcs"
)

// Clients carries the infrastructure shared by every binary. Only DB is
// required; the others switch off the features that depend on them.
type Clients struct {
	DB      *db.Client
	Redis   *redis.Client
	Maps    *maps.Client
	Square  *square.Client
	Storage gcs.ObjectStore
	Now     func() time.Time
}

// Services is the fully wired domain layer. Files and Messages are nil when
// no object store is configured.
type Services struct {
	Users     users.Service
	Addresses address.Service
	Catalog   catalog.Service
	Reader    *catalog.Reader
	Pricer    *pricing.Calculator
	Shipping  shipping.Service
	Cart      cart.Service
	Quotes    quotes.Service
	Orders    orders.Service
	Checkout  checkout.Service
	Payments  payments.Service
	Files     files.Service
	Messages  messages.Service
	Outbox    *outbox.Service
}

// NewServices builds the domain services in dependency order.
func NewServices(cfg *config.Config, clients Clients, logg *logger.Logger) (*Services, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if clients.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	conn := clients.DB.DB()
	now := clients.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	out := &Services{}
	var err error

	out.Users, err = users.NewService(users.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("users service: %w", err)
	}

	catalogRepo := catalog.NewRepository(conn)
	if clients.Redis != nil && cfg.FeatureFlags.CatalogCache {
		out.Reader = catalog.NewReader(catalogRepo, clients.Redis, 0, logg)
	} else {
		out.Reader = catalog.NewReader(catalogRepo, nil, 0, logg)
	}
	out.Catalog, err = catalog.NewService(catalogRepo, out.Reader)
	if err != nil {
		return nil, fmt.Errorf("catalog service: %w", err)
	}
	out.Pricer, err = pricing.NewCalculator(out.Reader)
	if err != nil {
		return nil, fmt.Errorf("pricing calculator: %w", err)
	}

	shippingParams := shipping.ServiceParams{
		Repo:     shipping.NewRepository(conn),
		TxRunner: clients.DB,
		Config:   cfg.Shipping,
		Logger:   logg,
		Now:      now,
	}
	addressParams := address.ServiceParams{
		Repo:     address.NewRepository(conn),
		TxRunner: clients.DB,
		Shipping: cfg.Shipping,
	}
	if clients.Maps != nil {
		shippingParams.Geocoder = clients.Maps
		addressParams.Places = clients.Maps
	}
	out.Shipping, err = shipping.NewService(shippingParams)
	if err != nil {
		return nil, fmt.Errorf("shipping service: %w", err)
	}
	out.Addresses, err = address.NewService(addressParams)
	if err != nil {
		return nil, fmt.Errorf("address service: %w", err)
	}
	addressBook := address.NewRepository(conn)

	out.Outbox = outbox.NewService(outbox.NewRepository(conn), logg)

	paymentsRepo := payments.NewRepository(conn)
	scheduler, err := payments.NewScheduler(payments.SchedulerParams{
		Repo:    paymentsRepo,
		Emitter: out.Outbox,
		Pricing: cfg.Pricing,
		Logger:  logg,
		Now:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("payment scheduler: %w", err)
	}

	out.Orders, err = orders.NewService(orders.ServiceParams{
		Repo:      orders.NewRepository(conn),
		TxRunner:  clients.DB,
		Payments:  scheduler,
		Estimator: out.Shipping,
		Emitter:   out.Outbox,
		Shipping:  cfg.Shipping,
		Logger:    logg,
		Now:       now,
	})
	if err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}

	paymentParams := payments.ServiceParams{
		Repo:      paymentsRepo,
		TxRunner:  clients.DB,
		Scheduler: scheduler,
		Orders:    out.Orders,
		Emitter:   out.Outbox,
		Pricing:   cfg.Pricing,
		Business:  cfg.Business,
		Logger:    logg,
		Now:       now,
	}
	if clients.Square != nil {
		paymentParams.Gateway = clients.Square
	}
	if clients.Storage != nil {
		paymentParams.Storage = clients.Storage
	}
	out.Payments, err = payments.NewService(paymentParams)
	if err != nil {
		return nil, fmt.Errorf("payments service: %w", err)
	}

	cartRepo := cart.NewRepository(conn)
	out.Quotes, err = quotes.NewService(quotes.ServiceParams{
		Repo:      quotes.NewRepository(conn),
		Carts:     cartRepo,
		TxRunner:  clients.DB,
		Pricer:    out.Pricer,
		Estimator: out.Shipping,
		Orders:    out.Orders,
		Addresses: addressBook,
		Emitter:   out.Outbox,
		Pricing:   cfg.Pricing,
		Business:  cfg.Business,
		Logger:    logg,
		Now:       now,
	})
	if err != nil {
		return nil, fmt.Errorf("quotes service: %w", err)
	}

	out.Cart, err = cart.NewService(cart.ServiceParams{
		Repo:      cartRepo,
		TxRunner:  clients.DB,
		Pricer:    out.Pricer,
		Estimator: out.Shipping,
		Quotes:    out.Quotes,
		Emitter:   out.Outbox,
		Pricing:   cfg.Pricing,
		Shipping:  cfg.Shipping,
		Logger:    logg,
		Now:       now,
	})
	if err != nil {
		return nil, fmt.Errorf("cart service: %w", err)
	}

	out.Checkout, err = checkout.NewService(checkout.ServiceParams{
		TxRunner:  clients.DB,
		Carts:     cartRepo,
		Pricer:    out.Pricer,
		Estimator: out.Shipping,
		Orders:    out.Orders,
		Addresses: addressBook,
		Pricing:   cfg.Pricing,
		Logger:    logg,
		Now:       now,
	})
	if err != nil {
		return nil, fmt.Errorf("checkout service: %w", err)
	}

	if clients.Storage == nil {
		return out, nil
	}

	filesRepo := files.NewRepository(conn)
	out.Files, err = files.NewService(files.ServiceParams{
		Repo:     filesRepo,
		TxRunner: clients.DB,
		Store:    clients.Storage,
		Files:    cfg.Files,
		Logger:   logg,
		Now:      now,
	})
	if err != nil {
		return nil, fmt.Errorf("files service: %w", err)
	}
	out.Messages, err = messages.NewService(messages.ServiceParams{
		Repo:        messages.NewRepository(conn),
		TxRunner:    clients.DB,
		Files:       out.Files,
		Attachments: filesRepo,
		Emitter:     out.Outbox,
		Logger:      logg,
		Now:         now,
	})
	if err != nil {
		return nil, fmt.Errorf("messages service: %w", err)
	}
	return out, nil
}
