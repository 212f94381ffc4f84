package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/votegate/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Registrant{},
		&models.EnrollmentPhoto{},
		&models.AuditLog{},
		&models.CacheEntry{},
		&models.SystemSetting{},
	)
}

// DemoRegistrants lists the fixture roll used by local and staging setups.
func DemoRegistrants() []models.Registrant {
	return []models.Registrant{
		{
			VoterID:        "ABC1234567",
			NationalID:     "123456789012",
			PhoneNumber:    "9876543210",
			FullName:       "Asha Rao",
			DateOfBirth:    time.Date(1990, time.May, 17, 0, 0, 0, 0, time.UTC),
			Constituency:   "Bangalore South",
			PollingStation: "Government School, Jayanagar",
			Address:        "12 4th Block, Jayanagar, Bangalore",
		},
		{
			VoterID:        "XYZ9876543",
			NationalID:     "987654321098",
			PhoneNumber:    "8765432109",
			FullName:       "Vikram Iyer",
			DateOfBirth:    time.Date(1985, time.November, 3, 0, 0, 0, 0, time.UTC),
			Constituency:   "Mumbai North",
			PollingStation: "Municipal Hall, Borivali",
			Address:        "7 Link Road, Borivali West, Mumbai",
		},
		{
			VoterID:        "DEF5556667",
			NationalID:     "555566667777",
			PhoneNumber:    "7654321098",
			FullName:       "Meera Nair",
			DateOfBirth:    time.Date(1972, time.January, 29, 0, 0, 0, 0, time.UTC),
			Constituency:   "Chennai Central",
			PollingStation: "Corporation School, Egmore",
			Address:        "44 Pantheon Road, Egmore, Chennai",
		},
	}
}

// SeedDemoRegistrants inserts the demo roll, leaving existing entries untouched.
func SeedDemoRegistrants(db *gorm.DB) error {
	for _, registrant := range DemoRegistrants() {
		record := registrant
		if err := db.Where(models.Registrant{VoterID: record.VoterID}).Attrs(record).FirstOrCreate(&models.Registrant{}).Error; err != nil {
			return fmt.Errorf("seed registrant %s: %w", record.VoterID, err)
		}
	}
	return nil
}
