package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/northcraft/cabinetry-backend/internal/analytics/query"
	"github.com/northcraft/cabinetry-backend/internal/analytics/types"
	"github.com/northcraft/cabinetry-backend/pkg/bigquery"
)

// Service provides admin reports based on commerce events.
type Service interface {
	// Summary returns daily quote, order and revenue figures for the window.
	Summary(ctx context.Context, from, to time.Time) (*types.Summary, error)
}

type service struct {
	summary query.SummaryService
}

// NewService builds an analytics service backed by BigQuery.
func NewService(client *bigquery.Client, location *time.Location) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}

	summary, err := query.NewSummaryService(client, client.TableRef(client.CommerceEventsTable()), location)
	if err != nil {
		return nil, err
	}

	return &service{summary: summary}, nil
}

func (s *service) Summary(ctx context.Context, from, to time.Time) (*types.Summary, error) {
	return s.summary.Summary(ctx, types.SummaryRequest{From: from, To: to})
}
