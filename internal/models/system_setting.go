package models

import "time"

// SystemSetting is a key/value row for installation state that must outlive
// a restart, such as a generated ballot token signing secret.
type SystemSetting struct {
	Key       string    `gorm:"primaryKey;size:128" json:"key"`
	Value     string    `gorm:"not null" json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedAt time.Time `json:"created_at"`
}
