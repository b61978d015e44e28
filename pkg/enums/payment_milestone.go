package enums

import "fmt"

// PaymentMilestone identifies an installment in an order payment schedule.
type PaymentMilestone string

const (
	PaymentMilestoneDeposit  PaymentMilestone = "deposit"
	PaymentMilestoneProgress PaymentMilestone = "progress"
	PaymentMilestoneBalance  PaymentMilestone = "balance"
)

var validPaymentMilestones = []PaymentMilestone{
	PaymentMilestoneDeposit,
	PaymentMilestoneProgress,
	PaymentMilestoneBalance,
}

// String implements fmt.Stringer.
func (p PaymentMilestone) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMilestone.
func (p PaymentMilestone) IsValid() bool {
	for _, candidate := range validPaymentMilestones {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMilestone converts raw input into a PaymentMilestone.
func ParsePaymentMilestone(value string) (PaymentMilestone, error) {
	for _, candidate := range validPaymentMilestones {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment milestone %q", value)
}
