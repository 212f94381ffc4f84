package models

import "time"

// CacheEntry backs cache.DatabaseStore when Redis is not configured. Rate
// limit counters keep their decimal count in Value and reset once ExpiresAt
// passes; a zero ExpiresAt never expires.
type CacheEntry struct {
	Key       string    `gorm:"primaryKey;size:256"`
	Value     []byte    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
