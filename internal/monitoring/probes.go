package monitoring

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Pinger is satisfied by the Redis cache store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseProbe pings the registry database.
func DatabaseProbe(db *gorm.DB) ProbeFunc {
	return func(ctx context.Context) error {
		if db == nil {
			return errors.New("database not configured")
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

// PingProbe adapts any Pinger.
func PingProbe(p Pinger) ProbeFunc {
	return func(ctx context.Context) error {
		if p == nil {
			return errors.New("not configured")
		}
		return p.Ping(ctx)
	}
}
