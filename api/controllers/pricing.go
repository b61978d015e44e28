package controllers

import (
	"context"
	"net/http"

	"github.com/northcraft/cabinetry-backend/api/responses"
	"github.com/northcraft/cabinetry-backend/api/validators"
	"github.com/northcraft/cabinetry-backend/internal/pricing"
	"github.com/northcraft/cabinetry-backend/internal/shipping"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
	"github.com/northcraft/cabinetry-backend/pkg/types"
)

// PriceCalculator prices one cabinet configuration.
type PriceCalculator interface {
	Calculate(ctx context.Context, cfg pricing.Configuration) (types.PriceBreakdown, error)
}

// PricingPreview prices a single configuration without touching a cart.
func PricingPreview(calc PriceCalculator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if calc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("pricing"))
			return
		}

		var body pricing.Configuration
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		breakdown, err := calc.Calculate(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, breakdown)
	}
}

// ShippingLookup reports delivery and assembly eligibility for a postcode.
func ShippingLookup(estimator shipping.Estimator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if estimator == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("shipping service"))
			return
		}

		eligibility, err := estimator.Lookup(r.Context(), validators.SanitizeString(chiParam(r, "postcode"), 10))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, eligibility)
	}
}

func ShippingEstimate(estimator shipping.Estimator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if estimator == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("shipping service"))
			return
		}

		var body shipping.EstimateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		estimate, err := estimator.EstimateDelivery(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, estimate)
	}
}
