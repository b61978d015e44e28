package types

import "time"

// SummaryRequest bounds the reporting window, inclusive of both days.
type SummaryRequest struct {
	From time.Time
	To   time.Time
}

// DailySummary aggregates one calendar day of commerce events.
type DailySummary struct {
	Date           string `json:"date"`
	QuotesSent     int64  `json:"quotes_sent"`
	QuotesAccepted int64  `json:"quotes_accepted"`
	OrdersCreated  int64  `json:"orders_created"`
	RevenueCents   int64  `json:"revenue_cents"`
}

// Summary wraps the daily series and window totals for the admin dashboard.
type Summary struct {
	From   string         `json:"from"`
	To     string         `json:"to"`
	Days   []DailySummary `json:"days"`
	Totals DailySummary   `json:"totals"`
}
