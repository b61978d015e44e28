package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	cloudbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/northcraft/cabinetry-backend/internal/analytics/types"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
)

const (
	dayLayout = "2006-01-02"
	maxWindow = 366 * 24 * time.Hour
)

const dailySummarySQL = `
SELECT
  FORMAT_DATE('%%F', DATE(occurred_at, @tz)) AS day,
  COUNTIF(event_type = 'quote.sent') AS quotes_sent,
  COUNTIF(event_type = 'quote.accepted') AS quotes_accepted,
  COUNTIF(event_type = 'order.created') AS orders_created,
  SUM(IF(event_type = 'payment.recorded', COALESCE(amount_cents, 0), 0)) AS revenue_cents
FROM %s
WHERE occurred_at >= @start
  AND occurred_at < @end
  AND event_type IN ('quote.sent', 'quote.accepted', 'order.created', 'payment.recorded')
GROUP BY day
ORDER BY day ASC
`

type queryRunner interface {
	Query(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (*cloudbigquery.RowIterator, error)
}

type rowIterator interface {
	Next(dst any) error
}

// SummaryService reads the admin dashboard series from commerce_events.
type SummaryService interface {
	Summary(ctx context.Context, req types.SummaryRequest) (*types.Summary, error)
}

type summaryService struct {
	run      func(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (rowIterator, error)
	tableRef string
	location *time.Location
}

// NewSummaryService builds a service backed by BigQuery. Days are bucketed in
// the given business time zone.
func NewSummaryService(client queryRunner, tableRef string, location *time.Location) (SummaryService, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	if tableRef == "" {
		return nil, fmt.Errorf("table reference required")
	}
	return newSummaryService(func(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (rowIterator, error) {
		return client.Query(ctx, sql, params)
	}, tableRef, location), nil
}

func newSummaryService(run func(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (rowIterator, error), tableRef string, location *time.Location) *summaryService {
	if location == nil {
		location = time.UTC
	}
	return &summaryService{run: run, tableRef: tableRef, location: location}
}

type summaryRow struct {
	Day            string `bigquery:"day"`
	QuotesSent     int64  `bigquery:"quotes_sent"`
	QuotesAccepted int64  `bigquery:"quotes_accepted"`
	OrdersCreated  int64  `bigquery:"orders_created"`
	RevenueCents   int64  `bigquery:"revenue_cents"`
}

// Summary returns one entry per day in [From, To], filling days without
// events with zeros.
func (s *summaryService) Summary(ctx context.Context, req types.SummaryRequest) (*types.Summary, error) {
	from, to, err := s.window(req)
	if err != nil {
		return nil, err
	}
	params := []cloudbigquery.QueryParameter{
		{Name: "start", Value: from},
		{Name: "end", Value: to.AddDate(0, 0, 1)},
		{Name: "tz", Value: s.location.String()},
	}
	iter, err := s.run(ctx, fmt.Sprintf(dailySummarySQL, s.tableRef), params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query analytics summary")
	}

	byDay := map[string]summaryRow{}
	for {
		var row summaryRow
		if err := iter.Next(&row); err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read analytics summary row")
		}
		byDay[row.Day] = row
	}

	summary := &types.Summary{
		From: from.Format(dayLayout),
		To:   to.Format(dayLayout),
		Days: []types.DailySummary{},
	}
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		key := day.Format(dayLayout)
		row := byDay[key]
		entry := types.DailySummary{
			Date:           key,
			QuotesSent:     row.QuotesSent,
			QuotesAccepted: row.QuotesAccepted,
			OrdersCreated:  row.OrdersCreated,
			RevenueCents:   row.RevenueCents,
		}
		summary.Days = append(summary.Days, entry)
		summary.Totals.QuotesSent += entry.QuotesSent
		summary.Totals.QuotesAccepted += entry.QuotesAccepted
		summary.Totals.OrdersCreated += entry.OrdersCreated
		summary.Totals.RevenueCents += entry.RevenueCents
	}
	return summary, nil
}

// window truncates the request to whole days in the business time zone.
func (s *summaryService) window(req types.SummaryRequest) (time.Time, time.Time, error) {
	if req.From.IsZero() || req.To.IsZero() {
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "from and to are required")
	}
	from := startOfDay(req.From.In(s.location))
	to := startOfDay(req.To.In(s.location))
	if to.Before(from) {
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "to must not be before from")
	}
	if to.Sub(from) > maxWindow {
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "summary window is limited to one year")
	}
	return from, to, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
