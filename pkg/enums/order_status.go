package enums

import "fmt"

// OrderStatus tracks fulfillment progress for an order.
type OrderStatus string

const (
	OrderStatusAwaitingDeposit  OrderStatus = "awaiting_deposit"
	OrderStatusInProduction     OrderStatus = "in_production"
	OrderStatusReadyForDispatch OrderStatus = "ready_for_dispatch"
	OrderStatusDispatched       OrderStatus = "dispatched"
	OrderStatusDelivered        OrderStatus = "delivered"
	OrderStatusCompleted        OrderStatus = "completed"
	OrderStatusCancelled        OrderStatus = "cancelled"
)

var validOrderStatuss = []OrderStatus{
	OrderStatusAwaitingDeposit,
	OrderStatusInProduction,
	OrderStatusReadyForDispatch,
	OrderStatusDispatched,
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuss {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into a OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuss {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
