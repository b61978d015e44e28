package types

import "strings"

// ShippingAddress is the address snapshot copied onto an order at checkout.
type ShippingAddress struct {
	Recipient string   `json:"recipient"`
	Phone     string   `json:"phone,omitempty"`
	Line1     string   `json:"line1"`
	Line2     string   `json:"line2,omitempty"`
	Suburb    string   `json:"suburb"`
	State     string   `json:"state"`
	Postcode  string   `json:"postcode"`
	Country   string   `json:"country"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
}

// Lines renders the address as printable lines.
func (a ShippingAddress) Lines() []string {
	lines := []string{}
	for _, value := range []string{a.Recipient, a.Line1, a.Line2} {
		if strings.TrimSpace(value) != "" {
			lines = append(lines, value)
		}
	}
	locality := strings.TrimSpace(strings.Join([]string{a.Suburb, a.State, a.Postcode}, " "))
	if locality != "" {
		lines = append(lines, locality)
	}
	return lines
}
