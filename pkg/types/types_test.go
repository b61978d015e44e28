package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestComputeTotalsAppliesGSTToTaxableAmount(t *testing.T) {
	totals := ComputeTotals(
		decimal.RequireFromString("1000.00"),
		decimal.RequireFromString("120.00"),
		decimal.RequireFromString("80.00"),
		decimal.RequireFromString("200.00"),
		decimal.NewFromInt(10),
	)

	require.Equal(t, "100", totals.GST.String())
	require.Equal(t, "1100", totals.Total.String())
}

func TestComputeTotalsFloorsNegativeTaxable(t *testing.T) {
	totals := ComputeTotals(decimal.NewFromInt(10), decimal.Zero, decimal.Zero, decimal.NewFromInt(50), decimal.NewFromInt(10))
	require.True(t, totals.GST.IsZero())
	require.True(t, totals.Total.IsZero())
}

func TestItemConfigurationSummary(t *testing.T) {
	cfg := ItemConfiguration{Label: "Sink base", Hardware: []string{"soft-close", "bar handle"}, HingeSide: "left"}
	require.Equal(t, "Sink base; hardware: soft-close, bar handle; hinge: left", cfg.Summary())
	require.Empty(t, ItemConfiguration{}.Summary())
}

func TestShippingAddressLines(t *testing.T) {
	addr := ShippingAddress{Recipient: "Sam Lee", Line1: "1 King St", Suburb: "Newtown", State: "NSW", Postcode: "2042"}
	require.Equal(t, []string{"Sam Lee", "1 King St", "Newtown NSW 2042"}, addr.Lines())
}
