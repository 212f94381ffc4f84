package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the votegate service.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Registry    RegistryConfig    `mapstructure:"registry"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Credential  CredentialConfig  `mapstructure:"credential"`
	OTP         OTPConfig         `mapstructure:"otp"`
	SMS         SMSConfig         `mapstructure:"sms"`
	Biometric   BiometricConfig   `mapstructure:"biometric"`
	Enrollment  EnrollmentConfig  `mapstructure:"enrollment"`
	Events      EventsConfig      `mapstructure:"events"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int             `mapstructure:"port"`
	LogLevel        string          `mapstructure:"log_level"`
	LogEncoding     string          `mapstructure:"log_encoding"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	HealthTimeout   time.Duration   `mapstructure:"health_timeout"`
	ExposeTestOTP   bool            `mapstructure:"expose_test_otp"`
	AdminToken      string          `mapstructure:"admin_token"`
	CORSOrigins     []string        `mapstructure:"cors_origins"`
	MaxBodyBytes    int64           `mapstructure:"max_body_bytes"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig throttles the public voter endpoints per client address.
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	Postgres        DBAuthConfig  `mapstructure:"postgres"`
	MySQL           DBAuthConfig  `mapstructure:"mysql"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SeedDemo        bool          `mapstructure:"seed_demo"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// RegistryConfig selects the registrant store.
type RegistryConfig struct {
	// Driver is "database" (default) or "memory". The memory registry is
	// seeded with the demo roll and loses all state on restart.
	Driver string `mapstructure:"driver"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Address   string        `mapstructure:"address"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	TLS       bool          `mapstructure:"tls"`
	Timeout   time.Duration `mapstructure:"timeout"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// AuthConfig captures ballot token settings.
type AuthConfig struct {
	BallotToken BallotTokenSettings `mapstructure:"ballot_token"`
}

// BallotTokenSettings configures the token minted after code confirmation.
type BallotTokenSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// CredentialConfig tunes the eligibility rules.
type CredentialConfig struct {
	MinimumAge int `mapstructure:"minimum_age"`
}

// OTPConfig tunes one-time code issuance.
type OTPConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// SMSConfig selects and configures the SMS provider.
type SMSConfig struct {
	Provider    string        `mapstructure:"provider"`
	AccountSID  string        `mapstructure:"account_sid"`
	AuthToken   string        `mapstructure:"auth_token"`
	From        string        `mapstructure:"from"`
	CountryCode string        `mapstructure:"country_code"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// BiometricConfig configures the live face stage.
type BiometricConfig struct {
	Enabled              bool            `mapstructure:"enabled"`
	EmbeddingWeight      float64         `mapstructure:"embedding_weight"`
	GeometryWeight       float64         `mapstructure:"geometry_weight"`
	AntiSpoofWeight      float64         `mapstructure:"antispoof_weight"`
	MinConfidence        float64         `mapstructure:"min_confidence"`
	DefaultGeometryScore float64         `mapstructure:"default_geometry_score"`
	GeometryPenaltyScale float64         `mapstructure:"geometry_penalty_scale"`
	MaxFramePixels       int             `mapstructure:"max_frame_pixels"`
	Oracle               OracleConfig    `mapstructure:"oracle"`
	AntiSpoof            AntiSpoofConfig `mapstructure:"antispoof"`
}

// OracleConfig points at a DeepFace compatible verification service.
type OracleConfig struct {
	URL             string        `mapstructure:"url"`
	Model           string        `mapstructure:"model"`
	DetectorBackend string        `mapstructure:"detector_backend"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// AntiSpoofConfig tunes the liveness heuristics.
type AntiSpoofConfig struct {
	MaxWidth             int     `mapstructure:"max_width"`
	GlareLevel           int     `mapstructure:"glare_level"`
	GlareRatio           float64 `mapstructure:"glare_ratio"`
	GlarePenalty         float64 `mapstructure:"glare_penalty"`
	TextureThreshold     float64 `mapstructure:"texture_threshold"`
	TexturePenalty       float64 `mapstructure:"texture_penalty"`
	EdgeDensityThreshold float64 `mapstructure:"edge_density_threshold"`
	EdgePenalty          float64 `mapstructure:"edge_penalty"`
	PassConfidence       float64 `mapstructure:"pass_confidence"`
}

// EnrollmentConfig carries the reference photo quality thresholds.
type EnrollmentConfig struct {
	MinSizeKB          float64 `mapstructure:"min_size_kb"`
	MaxSizeKB          float64 `mapstructure:"max_size_kb"`
	WidthCM            float64 `mapstructure:"width_cm"`
	HeightCM           float64 `mapstructure:"height_cm"`
	DPI                float64 `mapstructure:"dpi"`
	DimensionTolerance float64 `mapstructure:"dimension_tolerance"`
	SharpnessThreshold float64 `mapstructure:"sharpness_threshold"`
	TiltTolerance      float64 `mapstructure:"tilt_tolerance"`
	MinFaceRatio       float64 `mapstructure:"min_face_ratio"`
	MaxFaceRatio       float64 `mapstructure:"max_face_ratio"`
	FaceCascade        string  `mapstructure:"face_cascade"` // empty uses the bundled facefinder cascade
	FaceMinQuality     float64 `mapstructure:"face_min_quality"`
	MaxPixels          int     `mapstructure:"max_pixels"`
}

// EventsConfig configures vote event publication.
type EventsConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// KafkaConfig holds the Kafka producer settings.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
}

// MaintenanceConfig schedules the background sweeps.
type MaintenanceConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	OTPSweepSchedule   string `mapstructure:"otp_sweep_schedule"`
	AuditSchedule      string `mapstructure:"audit_schedule"`
	CacheSchedule      string `mapstructure:"cache_schedule"`
	AuditRetentionDays int    `mapstructure:"audit_retention_days"`
}

// LoadConfig initialises application configuration using Viper with sensible
// defaults. Every key has a default so VOTEGATE_* environment variables
// override keys absent from the file.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("VOTEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Registry.Driver)) {
	case "", "database", "memory":
	default:
		return fmt.Errorf("config: unsupported registry driver %q", c.Registry.Driver)
	}

	b := c.Biometric
	if sum := b.EmbeddingWeight + b.GeometryWeight + b.AntiSpoofWeight; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("config: biometric weights must sum to 1, got %.3f", sum)
	}
	if c.Enrollment.MinSizeKB > c.Enrollment.MaxSizeKB {
		return errors.New("config: enrollment.min_size_kb exceeds max_size_kb")
	}
	if c.Events.Kafka.Enabled && len(c.Events.Kafka.Brokers) == 0 {
		return errors.New("config: events.kafka.brokers is required when kafka is enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_encoding", "json")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.health_timeout", "2s")
	v.SetDefault("server.expose_test_otp", false)
	v.SetDefault("server.admin_token", "")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.max_body_bytes", 12<<20)
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.requests", 30)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/votegate.sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.postgres.host", "127.0.0.1")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "votegate")
	v.SetDefault("database.postgres.username", "")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.mysql.host", "127.0.0.1")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.database", "votegate")
	v.SetDefault("database.mysql.username", "")
	v.SetDefault("database.mysql.password", "")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.seed_demo", false)

	v.SetDefault("registry.driver", "database")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")
	v.SetDefault("cache.redis.key_prefix", "votegate:")

	v.SetDefault("auth.ballot_token.secret", "")
	v.SetDefault("auth.ballot_token.issuer", "votegate")
	v.SetDefault("auth.ballot_token.ttl", "10m")

	v.SetDefault("credential.minimum_age", 18)
	v.SetDefault("otp.ttl", "5m")

	v.SetDefault("sms.provider", "console")
	v.SetDefault("sms.account_sid", "")
	v.SetDefault("sms.auth_token", "")
	v.SetDefault("sms.from", "")
	v.SetDefault("sms.country_code", "+91")
	v.SetDefault("sms.base_url", "")
	v.SetDefault("sms.timeout", "10s")

	v.SetDefault("biometric.enabled", false)
	v.SetDefault("biometric.embedding_weight", 0.70)
	v.SetDefault("biometric.geometry_weight", 0.10)
	v.SetDefault("biometric.antispoof_weight", 0.20)
	v.SetDefault("biometric.min_confidence", 70)
	v.SetDefault("biometric.default_geometry_score", 88)
	v.SetDefault("biometric.geometry_penalty_scale", 100)
	v.SetDefault("biometric.max_frame_pixels", 8_000_000)
	v.SetDefault("biometric.oracle.url", "")
	v.SetDefault("biometric.oracle.model", "Facenet")
	v.SetDefault("biometric.oracle.detector_backend", "opencv")
	v.SetDefault("biometric.oracle.timeout", "10s")
	v.SetDefault("biometric.antispoof.max_width", 640)
	v.SetDefault("biometric.antispoof.glare_level", 245)
	v.SetDefault("biometric.antispoof.glare_ratio", 0.08)
	v.SetDefault("biometric.antispoof.glare_penalty", 30)
	v.SetDefault("biometric.antispoof.texture_threshold", 50)
	v.SetDefault("biometric.antispoof.texture_penalty", 35)
	v.SetDefault("biometric.antispoof.edge_density_threshold", 0.05)
	v.SetDefault("biometric.antispoof.edge_penalty", 20)
	v.SetDefault("biometric.antispoof.pass_confidence", 50)

	v.SetDefault("enrollment.min_size_kb", 50)
	v.SetDefault("enrollment.max_size_kb", 100)
	v.SetDefault("enrollment.width_cm", 4.5)
	v.SetDefault("enrollment.height_cm", 3.5)
	v.SetDefault("enrollment.dpi", 300)
	v.SetDefault("enrollment.dimension_tolerance", 0.10)
	v.SetDefault("enrollment.sharpness_threshold", 100)
	v.SetDefault("enrollment.tilt_tolerance", 15)
	v.SetDefault("enrollment.min_face_ratio", 0.30)
	v.SetDefault("enrollment.max_face_ratio", 0.70)
	v.SetDefault("enrollment.face_cascade", "")
	v.SetDefault("enrollment.face_min_quality", 5)
	v.SetDefault("enrollment.max_pixels", 4_000_000)

	v.SetDefault("events.kafka.enabled", false)
	v.SetDefault("events.kafka.brokers", []string{})
	v.SetDefault("events.kafka.topic", "votegate.ballots")
	v.SetDefault("events.kafka.batch_timeout", "50ms")
	v.SetDefault("events.kafka.write_timeout", "5s")
	v.SetDefault("events.kafka.max_attempts", 3)

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.otp_sweep_schedule", "@every 5m")
	v.SetDefault("maintenance.audit_schedule", "@daily")
	v.SetDefault("maintenance.cache_schedule", "@hourly")
	v.SetDefault("maintenance.audit_retention_days", 365)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
