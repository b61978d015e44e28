package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimitBlocksPerUser(t *testing.T) {
	store := newFakeRateStore()
	handler := RateLimit(time.Minute, 2, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
		req = req.WithContext(WithUserID(req.Context(), user))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		return resp.Code
	}

	if code := call("user-a"); code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", code)
	}
	if code := call("user-a"); code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", code)
	}
	if code := call("user-a"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", code)
	}
	if code := call("user-b"); code != http.StatusNoContent {
		t.Fatalf("expected other users unaffected, got %d", code)
	}
}

func TestRateLimitDisabledWithoutBudget(t *testing.T) {
	handler := RateLimit(0, 0, newFakeRateStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for i := 0; i < 5; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d", resp.Code)
		}
	}
}

type recordedObservation struct {
	method string
	route  string
	status int
}

type fakeObserver struct {
	seen []recordedObservation
}

func (f *fakeObserver) Observe(method, route string, status int, _ time.Duration) {
	f.seen = append(f.seen, recordedObservation{method: method, route: route, status: status})
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	observer := &fakeObserver{}
	handler := Metrics(observer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := requestWithPattern(http.MethodPost, "/api/v1/quotes/abc/accept", "/api/v1/quotes/{quoteID}/accept", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if len(observer.seen) != 1 {
		t.Fatalf("expected one observation got %d", len(observer.seen))
	}
	got := observer.seen[0]
	if got.route != "/api/v1/quotes/{quoteID}/accept" || got.status != http.StatusCreated || got.method != http.MethodPost {
		t.Fatalf("unexpected observation %+v", got)
	}
}
