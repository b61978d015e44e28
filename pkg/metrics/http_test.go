package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestHTTPMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.Observe("GET", "/api/v1/cart", 200, 20*time.Millisecond)
	m.Observe("GET", "/api/v1/cart", 200, 30*time.Millisecond)
	m.Observe("POST", "", 500, time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "cabinetry_http_requests_total", "route", "/api/v1/cart"); err != nil || got != 2 {
		t.Fatalf("expected 2 cart requests, got %f (%v)", got, err)
	}
	if _, err := fetchCounterValue(mfs, "cabinetry_http_requests_total", "route", "unknown"); err != nil {
		t.Fatalf("expected empty route to be labelled unknown: %v", err)
	}
	if sum, err := fetchHistogramSum(mfs, "cabinetry_http_request_duration_seconds", "route", "/api/v1/cart"); err != nil || sum <= 0.04 {
		t.Fatalf("unexpected duration sum %f (%v)", sum, err)
	}
}

func TestOutboxMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.IncPublished("quote.sent")
	m.IncFailed("quote.sent")
	m.IncDLQ("quote.sent", "max_attempts")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, name := range []string{"cabinetry_outbox_published_total", "cabinetry_outbox_publish_failures_total", "cabinetry_outbox_dlq_total"} {
		if got, err := fetchCounterValue(mfs, name, "event_type", "quote.sent"); err != nil || got != 1 {
			t.Fatalf("%s: expected 1, got %f (%v)", name, got, err)
		}
	}

	var nilMetrics *OutboxMetrics
	nilMetrics.IncPublished("x")
}
