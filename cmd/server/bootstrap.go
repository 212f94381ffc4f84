package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/votegate/internal/api"
	"github.com/charlesng35/votegate/internal/app"
	"github.com/charlesng35/votegate/internal/app/maintenance"
	iauth "github.com/charlesng35/votegate/internal/auth"
	"github.com/charlesng35/votegate/internal/ballot"
	"github.com/charlesng35/votegate/internal/biometric"
	"github.com/charlesng35/votegate/internal/cache"
	"github.com/charlesng35/votegate/internal/credential"
	"github.com/charlesng35/votegate/internal/database"
	"github.com/charlesng35/votegate/internal/events"
	"github.com/charlesng35/votegate/internal/facedetect"
	"github.com/charlesng35/votegate/internal/middleware"
	"github.com/charlesng35/votegate/internal/models"
	"github.com/charlesng35/votegate/internal/monitoring"
	"github.com/charlesng35/votegate/internal/otp"
	"github.com/charlesng35/votegate/internal/quality"
	"github.com/charlesng35/votegate/internal/registry"
	"github.com/charlesng35/votegate/internal/services"
	"github.com/charlesng35/votegate/pkg/logger"
	"github.com/charlesng35/votegate/pkg/sms"
)

// maintenanceMaxAge bounds how long the slowest (daily) job may go without a run
// before readiness reports it.
const maintenanceMaxAge = 25 * time.Hour

// roll is the registrant store seen by the pipeline.
type roll interface {
	registry.Accessor
	registry.PhotoStore
	maintenance.OTPSweeper
}

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Redis     *cache.RedisStore
	Roll      roll
	Publisher events.Publisher
	Cleaner   *maintenance.Cleaner
	Jobs      *monitoring.JobTracker
	Health    *monitoring.HealthManager
	RateStore middleware.RateStore
	Router    *gin.Engine

	cancel context.CancelFunc
}

// bootstrapRuntime initialises databases, caches, gates, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, generated map[string]bool, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	var runCtx context.Context
	runCtx, stack.cancel = context.WithCancel(ctx)

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	if generated[app.BallotSecretKey] {
		secret, err := database.ResolveBallotTokenSecret(ctx, stack.DB, cfg.Auth.BallotToken.Secret)
		if err != nil {
			return nil, fmt.Errorf("resolve ballot token secret: %w", err)
		}
		cfg.Auth.BallotToken.Secret = secret
	}

	dbStore := cache.NewDatabaseStore(stack.DB)

	if cfg.Cache.Redis.Enabled {
		redisStore, err := cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig())
		if err != nil {
			log.Warn("redis unavailable; falling back to database-backed operations", zap.Error(err))
		} else {
			stack.Redis = redisStore
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	if cfg.Registry.MemoryRegistry() {
		var seed []models.Registrant
		if cfg.Database.SeedDemo {
			seed = database.DemoRegistrants()
		}
		stack.Roll = registry.NewMemoryStore(seed...)
		log.Warn("using in-memory registrant store; ballots are lost on restart")
	} else {
		if stack.Roll, err = registry.NewStore(stack.DB); err != nil {
			return nil, err
		}
	}

	auditSvc, err := services.NewAuditService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise audit service: %w", err)
	}

	sender, err := sms.NewSender(cfg.SMS.Settings(), logger.WithModule("sms"))
	if err != nil {
		return nil, fmt.Errorf("initialise sms sender: %w", err)
	}

	stack.Publisher = events.NopPublisher{}
	if cfg.Events.Kafka.Enabled {
		publisher, err := events.NewKafkaPublisher(cfg.Events.Kafka.PublisherConfig(), logger.WithModule("events"))
		if err != nil {
			return nil, fmt.Errorf("initialise kafka publisher: %w", err)
		}
		stack.Publisher = publisher
		log.Info("publishing ballot events to kafka", zap.Strings("brokers", cfg.Events.Kafka.Brokers))
	}

	credentials, err := credential.NewGate(stack.Roll,
		credential.WithMinimumAge(cfg.Credential.MinimumAge),
		credential.WithLogger(logger.WithModule("credential")),
	)
	if err != nil {
		return nil, err
	}

	codes, err := otp.NewManager(stack.Roll, sender,
		otp.WithTTL(cfg.OTP.TTL),
		otp.WithLogger(logger.WithModule("otp")),
	)
	if err != nil {
		return nil, err
	}

	committer, err := ballot.NewCommitter(stack.Roll,
		ballot.WithSender(sender),
		ballot.WithPublisher(stack.Publisher),
		ballot.WithLogger(logger.WithModule("ballot")),
	)
	if err != nil {
		return nil, err
	}

	tokens, err := iauth.NewBallotTokenService(cfg.Auth.TokenConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise ballot token service: %w", err)
	}

	votingOpts := []services.VotingOption{
		services.WithVotingAudit(auditSvc),
		services.WithTestOTPEcho(cfg.Server.ExposeTestOTP),
		services.WithVotingLogger(logger.WithModule("voting")),
	}
	if cfg.Server.ExposeTestOTP {
		log.Warn("test otp echo enabled; codes are returned in API responses")
	}

	gate, err := initialiseBiometricGate(cfg, log)
	if err != nil {
		return nil, err
	}
	if gate != nil {
		votingOpts = append(votingOpts, services.WithBiometricVerifier(gate, stack.Roll))
	}

	voting, err := services.NewVotingService(credentials, codes, committer, tokens, votingOpts...)
	if err != nil {
		return nil, err
	}

	validator, err := initialiseValidator(cfg, log)
	if err != nil {
		return nil, err
	}

	enrollment, err := services.NewEnrollmentService(stack.Roll, stack.Roll, validator, auditSvc, logger.WithModule("enrollment"))
	if err != nil {
		return nil, err
	}

	stack.Jobs = monitoring.NewJobTracker()
	if cfg.Maintenance.Enabled {
		stack.Cleaner = maintenance.NewCleaner(stack.Roll, auditSvc,
			maintenance.WithCacheExpirer(dbStore),
			maintenance.WithRecorder(stack.Jobs),
			maintenance.WithAuditRetentionDays(cfg.Maintenance.AuditRetentionDays),
			maintenance.WithSchedules(cfg.Maintenance.OTPSweepSchedule, cfg.Maintenance.AuditSchedule, cfg.Maintenance.CacheSchedule),
		)
		if err := stack.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("initial maintenance run failed", zap.Error(err))
		}
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	switch {
	case stack.Redis != nil:
		stack.RateStore = middleware.NewCacheRateStore(stack.Redis)
	case cfg.Registry.MemoryRegistry():
		stack.RateStore = middleware.NewMemoryRateStore(runCtx)
	default:
		stack.RateStore = middleware.NewCacheRateStore(dbStore)
	}

	stack.Health = monitoring.NewHealthManager(cfg.Server.HealthTimeout)
	stack.Health.Register("database", true, monitoring.DatabaseProbe(stack.DB))
	if stack.Redis != nil {
		stack.Health.Register("redis", false, monitoring.PingProbe(stack.Redis))
	}
	if stack.Cleaner != nil {
		stack.Health.Register("maintenance", false, stack.Jobs.Probe(maintenanceMaxAge))
	}

	stack.Router, err = api.NewRouter(cfg, api.Dependencies{
		Voting:     voting,
		Enrollment: enrollment,
		Audit:      auditSvc,
		Tokens:     tokens,
		Health:     stack.Health,
		RateStore:  stack.RateStore,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// initialiseBiometricGate returns nil when the live face stage is disabled.
// Enabled without an oracle URL, live images are refused as unavailable.
func initialiseBiometricGate(cfg *app.Config, log *zap.Logger) (*biometric.Gate, error) {
	if !cfg.Biometric.Enabled {
		return nil, nil
	}
	oracleCfg, ok := cfg.Biometric.OracleConfig()
	if !ok {
		log.Warn("biometric stage enabled without biometric.oracle.url; live images will be refused")
		return nil, nil
	}

	oracle, err := biometric.NewHTTPOracle(oracleCfg)
	if err != nil {
		return nil, fmt.Errorf("initialise face oracle: %w", err)
	}
	gate, err := biometric.NewGate(oracle, cfg.Biometric.GateConfig(), biometric.WithLogger(logger.WithModule("biometric")))
	if err != nil {
		return nil, fmt.Errorf("initialise biometric gate: %w", err)
	}
	log.Info("biometric stage enabled", zap.String("oracle", oracleCfg.BaseURL))
	return gate, nil
}

func initialiseValidator(cfg *app.Config, log *zap.Logger) (*quality.Validator, error) {
	var (
		detector *facedetect.Detector
		err      error
	)
	if path := strings.TrimSpace(cfg.Enrollment.FaceCascade); path != "" {
		detector, err = facedetect.Load(path, cfg.Enrollment.DetectorConfig())
		if err != nil {
			return nil, fmt.Errorf("load face cascade: %w", err)
		}
		log.Info("using face cascade", zap.String("path", path))
	} else {
		detector, err = facedetect.Default(cfg.Enrollment.DetectorConfig())
		if err != nil {
			return nil, fmt.Errorf("load bundled face cascade: %w", err)
		}
	}

	return quality.NewValidator(cfg.Enrollment.QualityConfig(),
		quality.WithLogger(logger.WithModule("quality")),
		quality.WithFaceDetector(detector),
	), nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
	}

	if s.cancel != nil {
		s.cancel()
	}

	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			log.Warn("event publisher shutdown", zap.Error(err))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg, err := cfg.Database.ConnectionConfig()
	if err != nil {
		return nil, err
	}

	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	log := logger.WithModule("database")

	if err := database.AutoMigrateAndSeed(db, cfg.Database.SeedDemo && !cfg.Registry.MemoryRegistry()); err != nil {
		closeDatabase(db, log)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
