package square

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"

	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
)

func TestEnsureIdempotencyKey(t *testing.T) {
	c := &Client{}
	// Provided key should be used verbatim.
	if got := c.ensureIdempotencyKey("pref", "custom-key"); got != "custom-key" {
		t.Fatalf("expected provided key, got %q", got)
	}
	// Empty key should be generated and include prefix.
	if got := c.ensureIdempotencyKey("prefix", ""); !strings.HasPrefix(got, "prefix-") {
		t.Fatalf("generated idempotency key %q missing prefix", got)
	}
}

func TestRedact(t *testing.T) {
	c := &Client{}
	out := c.redact("payment_token", "abc123")
	if out != "[REDACTED]" {
		t.Fatalf("expected redacted value, got %v", out)
	}
	// Non-sensitive keys should be preserved.
	if v := c.redact("status", "ok"); v != "ok" {
		t.Fatalf("unexpected redaction for safe key")
	}
}

func TestDomainCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		code   pkgerrors.Code
	}{
		{http.StatusPaymentRequired, pkgerrors.CodePayment},
		{http.StatusUnauthorized, pkgerrors.CodeUnauthorized},
		{http.StatusForbidden, pkgerrors.CodeForbidden},
		{http.StatusNotFound, pkgerrors.CodeNotFound},
		{http.StatusConflict, pkgerrors.CodeConflict},
		{http.StatusTooManyRequests, pkgerrors.CodeRateLimit},
		{http.StatusBadRequest, pkgerrors.CodeValidation},
		{http.StatusUnprocessableEntity, pkgerrors.CodeStateConflict},
		{http.StatusInternalServerError, pkgerrors.CodeDependency},
	}
	for _, tt := range tests {
		if got := domainCodeForStatus(tt.status); got != tt.code {
			t.Fatalf("status %d expected %s got %s", tt.status, tt.code, got)
		}
	}
}

func TestMapSquareError(t *testing.T) {
	c := &Client{}
	table := []struct {
		name     string
		status   int
		payload  string
		wantCode pkgerrors.Code
	}{
		{
			name:     "authentication error",
			status:   http.StatusUnauthorized,
			payload:  `{"errors":[{"category":"AUTHENTICATION_ERROR","code":"UNAUTHORIZED"}]}`,
			wantCode: pkgerrors.CodeUnauthorized,
		},
		{
			name:     "card declined",
			status:   http.StatusPaymentRequired,
			payload:  `{"errors":[{"category":"PAYMENT_METHOD_ERROR","code":"CARD_DECLINED"}]}`,
			wantCode: pkgerrors.CodePayment,
		},
		{
			name:     "idempotency key reused",
			status:   http.StatusConflict,
			payload:  `{"errors":[{"category":"API_ERROR","code":"IDEMPOTENCY_KEY_REUSED"}]}`,
			wantCode: pkgerrors.CodeIdempotency,
		},
	}
	for _, tt := range table {
		err := sqcore.NewAPIError(tt.status, errors.New(tt.payload))
		mapped := c.mapSquareError(err, "operation")
		if mapped == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
		typed := pkgerrors.As(mapped)
		if typed == nil {
			t.Fatalf("%s: result is not pkgerror", tt.name)
		}
		if typed.Code() != tt.wantCode {
			t.Fatalf("%s: expected code %s, got %s", tt.name, tt.wantCode, typed.Code())
		}
	}
}

func TestExtractSquareErrors(t *testing.T) {
	c := &Client{}
	payload := `{"errors":[{"category":"API_ERROR","code":"BAD_REQUEST","detail":"oops"}]}`
	apiErr := sqcore.NewAPIError(http.StatusBadRequest, errors.New(payload))
	got := c.extractSquareErrors(apiErr)
	if len(got) != 1 {
		t.Fatalf("expected 1 error, got %d", len(got))
	}
	if got[0].GetCode() != sq.ErrorCodeBadRequest {
		t.Fatalf("unexpected error code %s", got[0].GetCode())
	}
}

func TestAmountCents(t *testing.T) {
	cases := map[string]int64{
		"1234.56": 123456,
		"0.005":   1,
		"10":      1000,
	}
	for in, want := range cases {
		if got := AmountCents(decimal.RequireFromString(in)); got != want {
			t.Fatalf("AmountCents(%s) = %d, want %d", in, got, want)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"0412 345 678":   "+61412345678",
		"+61412345678":   "+61412345678",
		"61 2 9999 0000": "+61299990000",
		"412345678":      "+61412345678",
		"":               "",
	}
	for in, want := range cases {
		if got := NormalizePhone(in); got != want {
			t.Fatalf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPaymentRequestDefaults(t *testing.T) {
	req := PaymentCreateParams{AmountCents: 5000, SourceID: "cnon:card", LocationID: "L1"}.toSquareRequest("key-1")
	if req.AmountMoney == nil || *req.AmountMoney.Amount != 5000 || string(*req.AmountMoney.Currency) != "AUD" {
		t.Fatalf("unexpected amount money %+v", req.AmountMoney)
	}
	if req.CustomerID != nil {
		t.Fatalf("expected empty customer id to be omitted")
	}
	if req.Autocomplete == nil || !*req.Autocomplete {
		t.Fatalf("expected autocomplete")
	}
}

func TestCustomerFiltersPreferReferenceID(t *testing.T) {
	filters := customerFilters(CustomerLookup{ReferenceID: " user-1 ", Email: " Jo@Example.com "})
	if len(filters) != 2 {
		t.Fatalf("expected 2 filters, got %d", len(filters))
	}
	if filters[0].ReferenceID == nil || *filters[0].ReferenceID.Exact != "user-1" {
		t.Fatalf("expected reference id filter first, got %+v", filters[0])
	}
	if filters[1].EmailAddress == nil || *filters[1].EmailAddress.Exact != "jo@example.com" {
		t.Fatalf("expected normalized email filter, got %+v", filters[1])
	}
	if got := customerFilters(CustomerLookup{}); len(got) != 0 {
		t.Fatalf("expected no filters for an empty lookup, got %d", len(got))
	}
}

func TestEnsureCustomerRequiresClient(t *testing.T) {
	var c *Client
	if _, err := c.EnsureCustomer(context.Background(), CustomerCreateParams{ReferenceID: "user-1"}); !errors.Is(err, errAccessTokenRequired) {
		t.Fatalf("expected access token error, got %v", err)
	}
}
