package models

import "time"

// DocumentSequence is a named monotonically increasing counter used for
// human-facing document numbers.
type DocumentSequence struct {
	Name      string    `gorm:"column:name;primaryKey"`
	Value     int64     `gorm:"column:value;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
