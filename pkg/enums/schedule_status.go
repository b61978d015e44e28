package enums

import "fmt"

// ScheduleStatus tracks settlement of a payment schedule milestone.
type ScheduleStatus string

const (
	ScheduleStatusPending   ScheduleStatus = "pending"
	ScheduleStatusPaid      ScheduleStatus = "paid"
	ScheduleStatusOverdue   ScheduleStatus = "overdue"
	ScheduleStatusCancelled ScheduleStatus = "cancelled"
)

var validScheduleStatuss = []ScheduleStatus{
	ScheduleStatusPending,
	ScheduleStatusPaid,
	ScheduleStatusOverdue,
	ScheduleStatusCancelled,
}

// String implements fmt.Stringer.
func (s ScheduleStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ScheduleStatus.
func (s ScheduleStatus) IsValid() bool {
	for _, candidate := range validScheduleStatuss {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseScheduleStatus converts raw input into a ScheduleStatus.
func ParseScheduleStatus(value string) (ScheduleStatus, error) {
	for _, candidate := range validScheduleStatuss {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid schedule status %q", value)
}
