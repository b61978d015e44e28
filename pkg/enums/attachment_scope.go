package enums

import "fmt"

// AttachmentScope names the entity kinds a file can be attached to.
type AttachmentScope string

const (
	AttachmentScopeQuote     AttachmentScope = "quote"
	AttachmentScopeQuoteItem AttachmentScope = "quote_item"
	AttachmentScopeOrder     AttachmentScope = "order"
	AttachmentScopeInvoice   AttachmentScope = "invoice"
	AttachmentScopeMessage   AttachmentScope = "message"
	AttachmentScopeCartItem  AttachmentScope = "cart_item"
)

var validAttachmentScopes = []AttachmentScope{
	AttachmentScopeQuote,
	AttachmentScopeQuoteItem,
	AttachmentScopeOrder,
	AttachmentScopeInvoice,
	AttachmentScopeMessage,
	AttachmentScopeCartItem,
}

// String implements fmt.Stringer.
func (a AttachmentScope) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AttachmentScope.
func (a AttachmentScope) IsValid() bool {
	for _, candidate := range validAttachmentScopes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAttachmentScope converts raw input into a AttachmentScope.
func ParseAttachmentScope(value string) (AttachmentScope, error) {
	for _, candidate := range validAttachmentScopes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid attachment scope %q", value)
}
