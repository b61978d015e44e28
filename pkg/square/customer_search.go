package square

import (
	"context"
	"strings"

	sq "github.com/square/square-go-sdk"
)

// CustomerLookup identifies the Square customer record for one of our users.
type CustomerLookup struct {
	ReferenceID string
	Email       string
}

// customerFilters lists the searches to try in order. The reference id is
// our user id and is tried first; email only matches records created before
// the reference id was stored.
func customerFilters(lookup CustomerLookup) []*sq.CustomerFilter {
	var filters []*sq.CustomerFilter
	if ref := strings.TrimSpace(lookup.ReferenceID); ref != "" {
		filters = append(filters, &sq.CustomerFilter{ReferenceID: &sq.CustomerTextFilter{Exact: ptrString(ref)}})
	}
	if email := strings.ToLower(strings.TrimSpace(lookup.Email)); email != "" {
		filters = append(filters, &sq.CustomerFilter{EmailAddress: &sq.CustomerTextFilter{Exact: ptrString(email)}})
	}
	return filters
}

// FindCustomer returns the customer matching the lookup, or nil when Square
// has no record yet.
func (c *Client) FindCustomer(ctx context.Context, lookup CustomerLookup) (*sq.Customer, error) {
	if c == nil {
		return nil, errAccessTokenRequired
	}
	for _, filter := range customerFilters(lookup) {
		c.log(ctx, "request", "search_customer", map[string]any{"reference_id": lookup.ReferenceID})
		resp, err := c.sdk.Customers.Search(ctx, &sq.SearchCustomersRequest{
			Query: &sq.CustomerQuery{Filter: filter},
			Limit: int64Ptr(1),
		})
		if err != nil {
			c.log(ctx, "error", "search_customer", map[string]any{"error": err.Error()})
			return nil, c.mapSquareError(err, "search customer")
		}
		if found := resp.GetCustomers(); len(found) > 0 {
			c.log(ctx, "response", "search_customer", map[string]any{"customer_id": stringValue(found[0].GetID())})
			return found[0], nil
		}
	}
	return nil, nil
}

// EnsureCustomer returns the Square customer for a user, creating it on first
// payment. Creation is keyed on the reference id so retries reuse the record.
func (c *Client) EnsureCustomer(ctx context.Context, params CustomerCreateParams) (*sq.Customer, error) {
	if c == nil {
		return nil, errAccessTokenRequired
	}
	existing, err := c.FindCustomer(ctx, CustomerLookup{ReferenceID: params.ReferenceID, Email: params.Email})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	if params.IdempotencyKey == "" && strings.TrimSpace(params.ReferenceID) != "" {
		params.IdempotencyKey = "customer-" + strings.TrimSpace(params.ReferenceID)
	}
	return c.CreateCustomer(ctx, params)
}
