package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog records a verification or ballot event.
type AuditLog struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	RegistrantID *string        `gorm:"size:36;index" json:"registrant_id"`
	Actor        string         `gorm:"size:128" json:"actor"`
	Action       string         `gorm:"not null;index" json:"action"`
	Result       string         `gorm:"not null" json:"result"`
	Reason       string         `gorm:"size:512" json:"reason"`
	IPAddress    string         `json:"ip_address"`
	UserAgent    string         `json:"user_agent"`
	Metadata     datatypes.JSON `json:"metadata"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
