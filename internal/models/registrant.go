package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Registrant is an electoral roll entry. The one-time code slot
// (OTPCodeHash, OTPExpiresAt) is either fully set or fully empty, and
// HasVoted only ever moves from false to true.
type Registrant struct {
	BaseModel

	VoterID        string     `gorm:"size:10;uniqueIndex;not null" json:"voter_id"`
	NationalID     string     `gorm:"size:12;uniqueIndex;not null" json:"-"`
	PhoneNumber    string     `gorm:"size:15;uniqueIndex;not null" json:"-"`
	FullName       string     `gorm:"size:255;not null" json:"full_name"`
	DateOfBirth    time.Time  `gorm:"not null" json:"date_of_birth"`
	Constituency   string     `gorm:"size:128;index" json:"constituency"`
	PollingStation string     `gorm:"size:255" json:"polling_station"`
	Address        string     `gorm:"size:512" json:"-"`
	HasVoted       bool       `gorm:"not null;default:false;index" json:"has_voted"`
	VotedAt        *time.Time `json:"voted_at,omitempty"`
	PhotoID        *string    `gorm:"size:36" json:"photo_id,omitempty"`

	OTPCodeHash  *string    `gorm:"column:otp_code_hash;size:64" json:"-"`
	OTPExpiresAt *time.Time `gorm:"column:otp_expires_at;index" json:"-"`
}

// BeforeSave normalises identifiers so lookups stay case-insensitive.
func (r *Registrant) BeforeSave(tx *gorm.DB) error {
	r.VoterID = strings.ToUpper(strings.TrimSpace(r.VoterID))
	r.NationalID = strings.TrimSpace(r.NationalID)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	return nil
}

// HasActiveCode reports whether a one-time code slot is populated.
func (r *Registrant) HasActiveCode() bool {
	return r != nil && r.OTPCodeHash != nil && r.OTPExpiresAt != nil
}

// MaskedPhone hides all but the last four digits of the phone number.
func (r *Registrant) MaskedPhone() string {
	if r == nil {
		return ""
	}
	phone := strings.TrimSpace(r.PhoneNumber)
	if len(phone) <= 4 {
		return phone
	}
	return "******" + phone[len(phone)-4:]
}
