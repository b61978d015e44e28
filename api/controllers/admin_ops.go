package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/northcraft/cabinetry-backend/api/responses"
	"github.com/northcraft/cabinetry-backend/api/validators"
	"github.com/northcraft/cabinetry-backend/internal/analytics"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
	"github.com/northcraft/cabinetry-backend/pkg/pagination"
)

const (
	defaultSummaryWindow = 30 * 24 * time.Hour
	maxSummaryWindow     = 366 * 24 * time.Hour
)

// AdminAnalyticsSummary reports daily commerce figures for ?from=&to=
// (inclusive dates, default last 30 days).
func AdminAnalyticsSummary(svc analytics.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("analytics"))
			return
		}
		today := time.Now().UTC().Truncate(24 * time.Hour)
		to, err := validators.ParseQueryDate(r, "to", today)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		from, err := validators.ParseQueryDate(r, "from", to.Add(-defaultSummaryWindow))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if from.After(to) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "from must not be after to"))
			return
		}
		if to.Sub(from) > maxSummaryWindow {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "window must not exceed one year"))
			return
		}

		summary, err := svc.Summary(r.Context(), from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

type dlqLister interface {
	List(ctx context.Context, params pagination.Params) ([]models.OutboxDLQ, string, error)
}

type dlqPage struct {
	Items      []models.OutboxDLQ `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

// AdminOutboxDLQ lists events that exhausted their publish attempts.
func AdminOutboxDLQ(repo dlqLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("outbox"))
			return
		}
		page, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, next, err := repo.List(r.Context(), page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if items == nil {
			items = []models.OutboxDLQ{}
		}
		responses.WriteSuccess(w, dlqPage{Items: items, NextCursor: next})
	}
}
