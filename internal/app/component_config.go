package app

import (
	"fmt"
	"strings"

	"github.com/charlesng35/votegate/internal/auth"
	"github.com/charlesng35/votegate/internal/biometric"
	"github.com/charlesng35/votegate/internal/cache"
	"github.com/charlesng35/votegate/internal/database"
	"github.com/charlesng35/votegate/internal/events"
	"github.com/charlesng35/votegate/internal/facedetect"
	"github.com/charlesng35/votegate/internal/quality"
	"github.com/charlesng35/votegate/pkg/sms"
)

// RedisClientConfig converts the application cache configuration into the cache package representation.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Address:   strings.TrimSpace(c.Redis.Address),
		Username:  strings.TrimSpace(c.Redis.Username),
		Password:  c.Redis.Password,
		DB:        c.Redis.DB,
		TLS:       c.Redis.TLS,
		Timeout:   c.Redis.Timeout,
		KeyPrefix: c.Redis.KeyPrefix,
	}
}

// ConnectionConfig converts the database section into database.Config.
func (c DatabaseConfig) ConnectionConfig() (database.Config, error) {
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	if driver == "" {
		driver = "sqlite"
	}

	out := database.Config{
		Driver:          driver,
		DSN:             strings.TrimSpace(c.DSN),
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}

	switch driver {
	case "sqlite":
		out.Path = c.Path
	case "postgres":
		applyAuth(&out, c.Postgres)
	case "mysql":
		applyAuth(&out, c.MySQL)
	default:
		return database.Config{}, fmt.Errorf("config: unsupported database driver %q", c.Driver)
	}
	return out, nil
}

func applyAuth(out *database.Config, auth DBAuthConfig) {
	out.Host = auth.Host
	out.Port = auth.Port
	out.Name = auth.Database
	out.User = auth.Username
	out.Password = auth.Password
}

// MemoryRegistry reports whether the in-process registrant store is selected.
func (c RegistryConfig) MemoryRegistry() bool {
	return strings.EqualFold(strings.TrimSpace(c.Driver), "memory")
}

// TokenConfig converts the ballot token settings.
func (c AuthConfig) TokenConfig() auth.BallotTokenConfig {
	return auth.BallotTokenConfig{
		Secret: c.BallotToken.Secret,
		Issuer: c.BallotToken.Issuer,
		TTL:    c.BallotToken.TTL,
	}
}

// Settings converts the SMS section into sender settings.
func (c SMSConfig) Settings() sms.Settings {
	return sms.Settings{
		Provider:    c.Provider,
		AccountSID:  strings.TrimSpace(c.AccountSID),
		AuthToken:   c.AuthToken,
		From:        strings.TrimSpace(c.From),
		CountryCode: strings.TrimSpace(c.CountryCode),
		BaseURL:     strings.TrimSpace(c.BaseURL),
		Timeout:     c.Timeout,
	}
}

// GateConfig converts the biometric section, keeping package defaults for
// tuning knobs that are not exposed.
func (c BiometricConfig) GateConfig() biometric.Config {
	out := biometric.DefaultConfig()
	out.EmbeddingWeight = c.EmbeddingWeight
	out.GeometryWeight = c.GeometryWeight
	out.AntiSpoofWeight = c.AntiSpoofWeight
	out.MinConfidence = c.MinConfidence
	out.DefaultGeometryScore = c.DefaultGeometryScore
	out.GeometryPenaltyScale = c.GeometryPenaltyScale
	if c.MaxFramePixels > 0 {
		out.MaxFramePixels = c.MaxFramePixels
	}
	if c.Oracle.Timeout > 0 {
		out.OracleTimeout = c.Oracle.Timeout
	}

	as := c.AntiSpoof
	if as.MaxWidth > 0 {
		out.AntiSpoof.MaxWidth = as.MaxWidth
	}
	if as.GlareLevel > 0 && as.GlareLevel <= 255 {
		out.AntiSpoof.GlareLevel = uint8(as.GlareLevel)
	}
	out.AntiSpoof.GlareRatio = as.GlareRatio
	out.AntiSpoof.GlarePenalty = as.GlarePenalty
	out.AntiSpoof.TextureThreshold = as.TextureThreshold
	out.AntiSpoof.TexturePenalty = as.TexturePenalty
	out.AntiSpoof.EdgeDensityThreshold = as.EdgeDensityThreshold
	out.AntiSpoof.EdgePenalty = as.EdgePenalty
	out.AntiSpoof.PassConfidence = as.PassConfidence
	return out
}

// OracleConfig converts the oracle settings. ok is false when no oracle URL
// is configured.
func (c BiometricConfig) OracleConfig() (biometric.HTTPOracleConfig, bool) {
	url := strings.TrimSpace(c.Oracle.URL)
	if url == "" {
		return biometric.HTTPOracleConfig{}, false
	}
	return biometric.HTTPOracleConfig{
		BaseURL:         url,
		Model:           c.Oracle.Model,
		DetectorBackend: c.Oracle.DetectorBackend,
		Timeout:         c.Oracle.Timeout,
	}, true
}

// QualityConfig converts the enrollment thresholds.
func (c EnrollmentConfig) QualityConfig() quality.Config {
	out := quality.DefaultConfig()
	out.MinSizeKB = c.MinSizeKB
	out.MaxSizeKB = c.MaxSizeKB
	out.WidthCM = c.WidthCM
	out.HeightCM = c.HeightCM
	out.DPI = c.DPI
	out.DimensionTolerance = c.DimensionTolerance
	out.SharpnessThreshold = c.SharpnessThreshold
	out.TiltTolerance = c.TiltTolerance
	out.MinFaceRatio = c.MinFaceRatio
	out.MaxFaceRatio = c.MaxFaceRatio
	if c.MaxPixels > 0 {
		out.MaxPixels = c.MaxPixels
	}
	return out
}

// DetectorConfig converts the face cascade scan settings.
func (c EnrollmentConfig) DetectorConfig() facedetect.Config {
	out := facedetect.DefaultConfig()
	if c.FaceMinQuality > 0 {
		out.MinQuality = float32(c.FaceMinQuality)
	}
	return out
}

// PublisherConfig converts the Kafka section.
func (c KafkaConfig) PublisherConfig() events.KafkaConfig {
	brokers := make([]string, 0, len(c.Brokers))
	for _, b := range c.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return events.KafkaConfig{
		Brokers:      brokers,
		Topic:        strings.TrimSpace(c.Topic),
		BatchTimeout: c.BatchTimeout,
		WriteTimeout: c.WriteTimeout,
		MaxAttempts:  c.MaxAttempts,
	}
}
