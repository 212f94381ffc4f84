package models

// EnrollmentPhoto stores the reference portrait captured at enrollment.
// Only photos that passed the quality checks are persisted.
type EnrollmentPhoto struct {
	BaseModel

	RegistrantID string `gorm:"size:36;uniqueIndex;not null" json:"registrant_id"`
	ContentType  string `gorm:"size:64;not null" json:"content_type"`
	SizeBytes    int    `gorm:"not null" json:"size_bytes"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	SHA256       string `gorm:"column:sha256;size:64" json:"sha256"`
	Data         []byte `gorm:"not null" json:"-"`
}
