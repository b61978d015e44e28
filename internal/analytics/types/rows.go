package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// CommerceEventRow mirrors the commerce_events BigQuery schema.
type CommerceEventRow struct {
	EventID       string             `bigquery:"event_id"`
	EventType     string             `bigquery:"event_type"`
	AggregateType string             `bigquery:"aggregate_type"`
	AggregateID   string             `bigquery:"aggregate_id"`
	CustomerID    *string            `bigquery:"customer_id"`
	AmountCents   *int64             `bigquery:"amount_cents"`
	Currency      *string            `bigquery:"currency"`
	OccurredAt    time.Time          `bigquery:"occurred_at"`
	Payload       cbigquery.NullJSON `bigquery:"payload"`
}
