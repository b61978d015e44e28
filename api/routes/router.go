package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/northcraft/cabinetry-backend/api/controllers"
	"github.com/northcraft/cabinetry-backend/api/middleware"
	"github.com/northcraft/cabinetry-backend/internal/analytics"
	"github.com/northcraft/cabinetry-backend/internal/app"
	"github.com/northcraft/cabinetry-backend/internal/auth"
	"github.com/northcraft/cabinetry-backend/pkg/auth/session"
	"github.com/northcraft/cabinetry-backend/pkg/config"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
	"github.com/northcraft/cabinetry-backend/pkg/metrics"
	"github.com/northcraft/cabinetry-backend/pkg/pagination"
	pkgredis "github.com/northcraft/cabinetry-backend/pkg/redis"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type dlqLister interface {
	List(ctx context.Context, params pagination.Params) ([]models.OutboxDLQ, string, error)
}

// RouterParams carries everything the HTTP surface needs. Nil optional
// dependencies switch off the routes or health checks that rely on them.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          pinger
	Storage     pinger
	Warehouse   pinger
	Redis       *pkgredis.Client
	Sessions    session.AccessSessionChecker
	Auth        auth.Service
	Services    *app.Services
	Analytics   analytics.Service
	DLQ         dlqLister
	HTTPMetrics *metrics.HTTPMetrics
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger
	svc := p.Services
	if svc == nil {
		svc = &app.Services{}
	}

	var (
		idempotencyStore pkgredis.IdempotencyStore
		rateStore        *pkgredis.Client
	)
	if p.Redis != nil {
		idempotencyStore = p.Redis
		rateStore = p.Redis
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)
	if p.HTTPMetrics != nil {
		r.Use(middleware.Metrics(p.HTTPMetrics))
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)
	loginLimit := func(next http.Handler) http.Handler { return next }
	registerLimit := loginLimit
	if rateStore != nil {
		loginLimit = middleware.AuthRateLimit(loginPolicy, rateStore, logg)
		registerLimit = middleware.AuthRateLimit(registerPolicy, rateStore, logg)
	}
	apiLimit := func(next http.Handler) http.Handler { return next }
	if rateStore != nil {
		apiLimit = middleware.RateLimit(cfg.AuthRateLimit.APIWindow, cfg.AuthRateLimit.APIRequestLimit, rateStore, logg)
	}
	authenticate := middleware.Auth(cfg.JWT, p.Sessions, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessDeps(p)...))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// public catalog, pricing and delivery lookups
		r.Group(func(r chi.Router) {
			r.Use(apiLimit)
			for _, kind := range controllers.CatalogKinds {
				r.Get("/catalog/"+string(kind), controllers.CatalogList(svc.Catalog, kind, logg))
			}
			r.Get("/catalog/cabinet-types/{itemID}", controllers.CatalogCabinetType(svc.Catalog, logg))
			r.Get("/shipping/postcodes/{postcode}", controllers.ShippingLookup(svc.Shipping, logg))
			r.Post("/shipping/estimate", controllers.ShippingEstimate(svc.Shipping, logg))
			if cfg.FeatureFlags.GuestPricing {
				r.Post("/pricing/preview", controllers.PricingPreview(calculator(svc), logg))
			}
		})

		r.Route("/auth", func(r chi.Router) {
			r.With(registerLimit).Post("/register", controllers.AuthRegister(p.Auth, logg))
			r.With(loginLimit).Post("/login", controllers.AuthLogin(p.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(p.Auth, logg))
			r.Post("/logout", controllers.AuthLogout(p.Auth, cfg.JWT, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.Idempotency(idempotencyStore, logg))
			r.Use(apiLimit)

			if !cfg.FeatureFlags.GuestPricing {
				r.Post("/pricing/preview", controllers.PricingPreview(calculator(svc), logg))
			}

			r.Get("/me", controllers.Me(svc.Users, logg))
			r.Patch("/me", controllers.UpdateMe(svc.Users, logg))

			r.Route("/addresses", func(r chi.Router) {
				r.Get("/", controllers.AddressList(svc.Addresses, logg))
				r.Post("/", controllers.AddressCreate(svc.Addresses, logg))
				r.Get("/suggest", controllers.AddressSuggest(svc.Addresses, logg))
				r.Post("/resolve", controllers.AddressResolve(svc.Addresses, logg))
				r.Get("/{addressID}", controllers.AddressGet(svc.Addresses, logg))
				r.Patch("/{addressID}", controllers.AddressUpdate(svc.Addresses, logg))
				r.Delete("/{addressID}", controllers.AddressDelete(svc.Addresses, logg))
				r.Post("/{addressID}/default", controllers.AddressSetDefault(svc.Addresses, logg))
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(svc.Cart, logg))
				r.Delete("/", controllers.CartClear(svc.Cart, logg))
				r.Post("/items", controllers.CartAddItem(svc.Cart, logg))
				r.Patch("/items/{itemID}", controllers.CartUpdateItem(svc.Cart, logg))
				r.Delete("/items/{itemID}", controllers.CartRemoveItem(svc.Cart, logg))
				r.Put("/postcode", controllers.CartSetPostcode(svc.Cart, logg))
				r.Get("/summary", controllers.CartSummary(svc.Cart, logg))
				r.Post("/request-quote", controllers.CartRequestQuote(svc.Cart, logg))
			})
			r.Post("/checkout", controllers.Checkout(svc.Checkout, logg))

			r.Route("/quotes", func(r chi.Router) {
				r.Get("/", controllers.QuoteList(svc.Quotes, logg))
				r.Route("/{quoteID}", func(r chi.Router) {
					r.Get("/", controllers.QuoteGet(svc.Quotes, logg))
					r.Get("/versions", controllers.QuoteVersions(svc.Quotes, logg))
					r.Get("/pdf", controllers.QuotePDF(svc.Quotes, logg))
					r.Post("/view", controllers.QuoteMarkViewed(svc.Quotes, logg))
					r.Post("/accept", controllers.QuoteAccept(svc.Quotes, logg))
					r.Post("/reject", controllers.QuoteReject(svc.Quotes, logg))
					r.Post("/convert-to-cart", controllers.QuoteConvertToCart(svc.Quotes, logg))
					mountMessages(r, svc, enums.MessageScopeQuote, logg)
				})
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.OrderList(svc.Orders, logg))
				r.Route("/{orderID}", func(r chi.Router) {
					r.Get("/", controllers.OrderGet(svc.Orders, logg))
					r.Get("/schedules", controllers.OrderSchedules(svc.Payments, logg))
					r.Get("/invoices", controllers.OrderInvoices(svc.Payments, logg))
					r.Get("/payments", controllers.OrderPayments(svc.Payments, logg))
					mountMessages(r, svc, enums.MessageScopeOrder, logg)
				})
			})

			r.Get("/invoices/{invoiceID}", controllers.InvoiceGet(svc.Payments, logg))
			r.Get("/invoices/{invoiceID}/pdf", controllers.InvoicePDF(svc.Payments, logg))
			r.Post("/payment-schedules/{scheduleID}/pay", controllers.PayMilestone(svc.Payments, logg))

			if svc.Files != nil {
				r.Post("/files", controllers.FileUpload(svc.Files, cfg.Files.MaxUploadBytes(), logg))
				r.Delete("/files/{fileID}", controllers.FileDelete(svc.Files, logg))
				r.Get("/attachments", controllers.AttachmentList(svc.Files, logg))
				r.Post("/attachments", controllers.AttachmentCreate(svc.Files, logg))
				r.Delete("/attachments/{attachmentID}", controllers.AttachmentDelete(svc.Files, logg))
			}
			if svc.Messages != nil {
				r.Post("/messages/{messageID}/read", controllers.MessageMarkRead(svc.Messages, logg))
			}
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			if !cfg.App.IsProd() {
				r.With(registerLimit).Post("/register", controllers.AdminAuthRegister(p.Auth, cfg, logg))
			}
			r.With(loginLimit).Post("/login", controllers.AdminAuthLogin(p.Auth, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
			r.Use(middleware.Idempotency(idempotencyStore, logg))

			r.Route("/catalog", func(r chi.Router) {
				for _, kind := range controllers.CatalogKinds {
					r.Route("/"+string(kind), func(r chi.Router) {
						r.Get("/", controllers.AdminCatalogList(svc.Catalog, kind, logg))
						r.Post("/", controllers.AdminCatalogCreate(svc.Catalog, kind, logg))
						r.Patch("/{itemID}", controllers.AdminCatalogUpdate(svc.Catalog, kind, logg))
						r.Delete("/{itemID}", controllers.AdminCatalogDelete(svc.Catalog, kind, logg))
					})
				}
			})
			r.Post("/pricing/preview", controllers.PricingPreview(calculator(svc), logg))

			r.Route("/quotes", func(r chi.Router) {
				r.Get("/", controllers.QuoteList(svc.Quotes, logg))
				r.Post("/", controllers.AdminQuoteCreate(svc.Quotes, logg))
				r.Route("/{quoteID}", func(r chi.Router) {
					r.Get("/", controllers.QuoteGet(svc.Quotes, logg))
					r.Patch("/", controllers.AdminQuoteUpdate(svc.Quotes, logg))
					r.Get("/versions", controllers.QuoteVersions(svc.Quotes, logg))
					r.Get("/pdf", controllers.QuotePDF(svc.Quotes, logg))
					r.Post("/items", controllers.AdminQuoteAddItem(svc.Quotes, logg))
					r.Patch("/items/{itemID}", controllers.AdminQuoteUpdateItem(svc.Quotes, logg))
					r.Delete("/items/{itemID}", controllers.AdminQuoteRemoveItem(svc.Quotes, logg))
					r.Post("/recalculate", controllers.AdminQuoteRecalculate(svc.Quotes, logg))
					r.Post("/send", controllers.AdminQuoteSend(svc.Quotes, logg))
					r.Post("/revise", controllers.AdminQuoteRevise(svc.Quotes, logg))
					mountMessages(r, svc, enums.MessageScopeQuote, logg)
				})
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.OrderList(svc.Orders, logg))
				r.Route("/{orderID}", func(r chi.Router) {
					r.Get("/", controllers.OrderGet(svc.Orders, logg))
					r.Post("/status", controllers.AdminOrderStatus(svc.Orders, logg))
					r.Post("/cancel", controllers.AdminOrderCancel(svc.Orders, logg))
					r.Get("/schedules", controllers.OrderSchedules(svc.Payments, logg))
					r.Get("/invoices", controllers.OrderInvoices(svc.Payments, logg))
					r.Get("/payments", controllers.OrderPayments(svc.Payments, logg))
					mountMessages(r, svc, enums.MessageScopeOrder, logg)
				})
			})

			r.Route("/payment-schedules/{scheduleID}", func(r chi.Router) {
				r.Post("/lock", controllers.AdminScheduleLock(svc.Payments, logg))
				r.Post("/unlock", controllers.AdminScheduleUnlock(svc.Payments, logg))
				r.Put("/due-date", controllers.AdminScheduleDueDate(svc.Payments, logg))
				r.Post("/manual-payments", controllers.AdminManualPayment(svc.Payments, logg))
			})

			r.Route("/invoices/{invoiceID}", func(r chi.Router) {
				r.Get("/", controllers.InvoiceGet(svc.Payments, logg))
				r.Get("/pdf", controllers.InvoicePDF(svc.Payments, logg))
				r.Post("/void", controllers.AdminInvoiceVoid(svc.Payments, logg))
				r.Post("/regenerate-pdf", controllers.AdminInvoiceRegenerate(svc.Payments, logg))
			})

			r.Route("/postcode-zones", func(r chi.Router) {
				r.Get("/", controllers.AdminZoneList(svc.Shipping, logg))
				r.Post("/", controllers.AdminZoneCreate(svc.Shipping, logg))
				r.Get("/export", controllers.AdminZoneExport(svc.Shipping, logg))
				r.Post("/import", controllers.AdminZoneImport(svc.Shipping, logg))
				r.Post("/geocode-missing", controllers.AdminZoneGeocodeMissing(svc.Shipping, logg))
				r.Route("/{zoneID}", func(r chi.Router) {
					r.Get("/", controllers.AdminZoneGet(svc.Shipping, logg))
					r.Patch("/", controllers.AdminZoneUpdate(svc.Shipping, logg))
					r.Delete("/", controllers.AdminZoneDelete(svc.Shipping, logg))
					r.Post("/geocode", controllers.AdminZoneGeocode(svc.Shipping, logg))
					r.Put("/assembly-zone", controllers.AdminZoneAssign(svc.Shipping, logg))
					r.Delete("/assembly-zone", controllers.AdminZoneClearManual(svc.Shipping, logg))
				})
			})

			r.Route("/assembly-zones", func(r chi.Router) {
				r.Get("/", controllers.AdminAssemblyZoneList(svc.Shipping, logg))
				r.Post("/", controllers.AdminAssemblyZoneCreate(svc.Shipping, logg))
				r.Patch("/{assemblyZoneID}", controllers.AdminAssemblyZoneUpdate(svc.Shipping, logg))
				r.Delete("/{assemblyZoneID}", controllers.AdminAssemblyZoneDelete(svc.Shipping, logg))
				r.Get("/{assemblyZoneID}/preview", controllers.AdminAssemblyZonePreview(svc.Shipping, logg))
				r.Post("/{assemblyZoneID}/apply", controllers.AdminAssemblyZoneApply(svc.Shipping, logg))
			})

			r.Route("/rate-cards", func(r chi.Router) {
				r.Get("/", controllers.AdminRateCardList(svc.Shipping, logg))
				r.Post("/", controllers.AdminRateCardCreate(svc.Shipping, logg))
				r.Patch("/{rateCardID}", controllers.AdminRateCardUpdate(svc.Shipping, logg))
				r.Post("/{rateCardID}/default", controllers.AdminRateCardSetDefault(svc.Shipping, logg))
				r.Delete("/{rateCardID}", controllers.AdminRateCardDelete(svc.Shipping, logg))
			})

			if svc.Messages != nil {
				r.Get("/messages/unread", controllers.AdminMessageInbox(svc.Messages, logg))
				r.Post("/messages/{messageID}/read", controllers.MessageMarkRead(svc.Messages, logg))
			}
			if svc.Files != nil {
				r.Post("/files", controllers.FileUpload(svc.Files, cfg.Files.MaxUploadBytes(), logg))
				r.Get("/attachments", controllers.AttachmentList(svc.Files, logg))
				r.Post("/attachments", controllers.AttachmentCreate(svc.Files, logg))
			}
			r.Get("/analytics/summary", controllers.AdminAnalyticsSummary(p.Analytics, logg))
			if p.DLQ != nil {
				r.Get("/outbox/dlq", controllers.AdminOutboxDLQ(p.DLQ, logg))
			}
		})
	})

	return r
}

func mountMessages(r chi.Router, svc *app.Services, scope enums.MessageScope, logg *logger.Logger) {
	if svc.Messages == nil {
		return
	}
	r.Get("/messages", controllers.MessageList(svc.Messages, scope, logg))
	r.Post("/messages", controllers.MessagePost(svc.Messages, scope, logg))
}

func readinessDeps(p RouterParams) []controllers.Dependency {
	var deps []controllers.Dependency
	if p.DB != nil {
		deps = append(deps, controllers.Dependency{Name: "database", Pinger: p.DB})
	}
	if p.Redis != nil {
		deps = append(deps, controllers.Dependency{Name: "redis", Pinger: p.Redis})
	}
	if p.Storage != nil {
		deps = append(deps, controllers.Dependency{Name: "gcs", Pinger: p.Storage})
	}
	if p.Warehouse != nil {
		deps = append(deps, controllers.Dependency{Name: "bigquery", Pinger: p.Warehouse})
	}
	return deps
}

func calculator(svc *app.Services) controllers.PriceCalculator {
	if svc.Pricer == nil {
		return nil
	}
	return svc.Pricer
}
