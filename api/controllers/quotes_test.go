package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northcraft/cabinetry-backend/internal/quotes"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
)

type stubQuotes struct {
	quotes.Service
	scope     *uuid.UUID
	scopeSeen bool
	accepted  *quotes.AcceptInput
	err       error
}

func (s *stubQuotes) Get(ctx context.Context, customerID *uuid.UUID, id uuid.UUID) (*quotes.QuoteDTO, error) {
	s.scope = customerID
	s.scopeSeen = true
	if s.err != nil {
		return nil, s.err
	}
	return &quotes.QuoteDTO{ID: id, QuoteNumber: "Q-000042", Status: enums.QuoteStatusSent}, nil
}

func (s *stubQuotes) Accept(ctx context.Context, customerID, id uuid.UUID, input quotes.AcceptInput) (*quotes.AcceptResult, error) {
	s.accepted = &input
	return &quotes.AcceptResult{
		Quote:       quotes.QuoteDTO{ID: id, QuoteNumber: "Q-000042", Status: enums.QuoteStatusAccepted},
		OrderID:     uuid.New(),
		OrderNumber: "ORD-000007",
	}, nil
}

func TestQuoteGetScopesCustomerToOwnQuotes(t *testing.T) {
	svc := &stubQuotes{}
	customer := uuid.New()
	quoteID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quotes/"+quoteID.String(), nil)
	req = withURLParams(asUser(req, customer, enums.UserRoleCustomer), map[string]string{"quoteID": quoteID.String()})
	resp := httptest.NewRecorder()
	QuoteGet(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.NotNil(t, svc.scope)
	assert.Equal(t, customer, *svc.scope)
}

func TestQuoteGetAdminSeesAllQuotes(t *testing.T) {
	svc := &stubQuotes{}
	quoteID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/quotes/"+quoteID.String(), nil)
	req = withURLParams(asUser(req, uuid.New(), enums.UserRoleAdmin), map[string]string{"quoteID": quoteID.String()})
	resp := httptest.NewRecorder()
	QuoteGet(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, svc.scopeSeen)
	assert.Nil(t, svc.scope)
}

func TestQuoteGetRejectsMalformedID(t *testing.T) {
	svc := &stubQuotes{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/quotes/nope", nil)
	req = withURLParams(asUser(req, uuid.New(), enums.UserRoleCustomer), map[string]string{"quoteID": "nope"})
	resp := httptest.NewRecorder()
	QuoteGet(svc, testLogger())(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.False(t, svc.scopeSeen)
}

func TestQuoteGetMapsNotFound(t *testing.T) {
	svc := &stubQuotes{err: pkgerrors.New(pkgerrors.CodeNotFound, "quote not found")}
	quoteID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/quotes/"+quoteID.String(), nil)
	req = withURLParams(asUser(req, uuid.New(), enums.UserRoleCustomer), map[string]string{"quoteID": quoteID.String()})
	resp := httptest.NewRecorder()
	QuoteGet(svc, testLogger())(resp, req)

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestQuoteGetRequiresIdentity(t *testing.T) {
	svc := &stubQuotes{}
	quoteID := uuid.New()
	req := withURLParams(httptest.NewRequest(http.MethodGet, "/api/v1/quotes/"+quoteID.String(), nil), map[string]string{"quoteID": quoteID.String()})
	resp := httptest.NewRecorder()
	QuoteGet(svc, testLogger())(resp, req)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestQuoteAcceptAllowsEmptyBody(t *testing.T) {
	svc := &stubQuotes{}
	quoteID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes/"+quoteID.String()+"/accept", http.NoBody)
	req = withURLParams(asUser(req, uuid.New(), enums.UserRoleCustomer), map[string]string{"quoteID": quoteID.String()})
	resp := httptest.NewRecorder()
	QuoteAccept(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	require.NotNil(t, svc.accepted)
	assert.Nil(t, svc.accepted.AddressID)
	assert.Contains(t, string(decodeEnvelope(t, resp).Data), "ORD-000007")
}

func TestQuoteAcceptPassesAddress(t *testing.T) {
	svc := &stubQuotes{}
	quoteID := uuid.New()
	addressID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes/"+quoteID.String()+"/accept", strings.NewReader(`{"address_id":"`+addressID.String()+`"}`))
	req = withURLParams(asUser(req, uuid.New(), enums.UserRoleCustomer), map[string]string{"quoteID": quoteID.String()})
	resp := httptest.NewRecorder()
	QuoteAccept(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	require.NotNil(t, svc.accepted.AddressID)
	assert.Equal(t, addressID, *svc.accepted.AddressID)
}
