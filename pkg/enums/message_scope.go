package enums

import "fmt"

// MessageScope names the entities that carry a message thread.
type MessageScope string

const (
	MessageScopeQuote MessageScope = "quote"
	MessageScopeOrder MessageScope = "order"
)

var validMessageScopes = []MessageScope{
	MessageScopeQuote,
	MessageScopeOrder,
}

// String implements fmt.Stringer.
func (m MessageScope) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MessageScope.
func (m MessageScope) IsValid() bool {
	for _, candidate := range validMessageScopes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMessageScope converts raw input into a MessageScope.
func ParseMessageScope(value string) (MessageScope, error) {
	for _, candidate := range validMessageScopes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid message scope %q", value)
}
