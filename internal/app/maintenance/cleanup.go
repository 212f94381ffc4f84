package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/votegate/pkg/logger"
)

// Job names reported to the tracker and metrics.
const (
	JobOTPSweep       = "otp_sweep"
	JobAuditRetention = "audit_retention"
	JobCacheExpiry    = "cache_expiry"
)

const (
	defaultAuditRetentionDays = 365
	defaultOTPSweepSpec       = "@every 5m"
	defaultAuditSpec          = "@daily"
	defaultCacheSpec          = "@hourly"
)

// OTPSweeper empties expired one-time code slots.
type OTPSweeper interface {
	SweepExpiredOTP(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditPruner deletes audit records past retention.
type AuditPruner interface {
	CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

// CacheExpirer deletes expired cache rows.
type CacheExpirer interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Recorder receives the outcome of each job run.
type Recorder interface {
	Record(job string, err error, duration time.Duration)
}

// Cleaner coordinates background maintenance: clearing expired codes,
// pruning stale audit logs and removing expired cache entries.
type Cleaner struct {
	otp       OTPSweeper
	audit     AuditPruner
	cache     CacheExpirer
	recorder  Recorder
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	retention int

	otpSchedule   string
	auditSchedule string
	cacheSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cutoff comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithCacheExpirer enables the cache expiry job.
func WithCacheExpirer(c CacheExpirer) Option {
	return func(cleaner *Cleaner) {
		cleaner.cache = c
	}
}

// WithRecorder reports every run to r.
func WithRecorder(r Recorder) Option {
	return func(cleaner *Cleaner) {
		cleaner.recorder = r
	}
}

// WithSchedules overrides the cron expressions. Empty values keep the defaults.
func WithSchedules(otpSpec, auditSpec, cacheSpec string) Option {
	return func(cleaner *Cleaner) {
		if otpSpec != "" {
			cleaner.otpSchedule = otpSpec
		}
		if auditSpec != "" {
			cleaner.auditSchedule = auditSpec
		}
		if cacheSpec != "" {
			cleaner.cacheSchedule = cacheSpec
		}
	}
}

// NewCleaner constructs a Cleaner. Any nil dependency results in the
// corresponding job being skipped.
func NewCleaner(otp OTPSweeper, audit AuditPruner, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		otp:           otp,
		audit:         audit,
		now:           time.Now,
		retention:     defaultAuditRetentionDays,
		otpSchedule:   defaultOTPSweepSpec,
		auditSchedule: defaultAuditSpec,
		cacheSchedule: defaultCacheSpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner
}

type job struct {
	name     string
	schedule string
	run      func(ctx context.Context) (int64, error)
}

func (c *Cleaner) jobs() []job {
	var out []job
	if c.otp != nil {
		out = append(out, job{JobOTPSweep, c.otpSchedule, func(ctx context.Context) (int64, error) {
			return c.otp.SweepExpiredOTP(ctx, c.now())
		}})
	}
	if c.audit != nil && c.retention > 0 {
		out = append(out, job{JobAuditRetention, c.auditSchedule, func(ctx context.Context) (int64, error) {
			return c.audit.CleanupOlderThan(ctx, c.retention)
		}})
	}
	if c.cache != nil {
		out = append(out, job{JobCacheExpiry, c.cacheSchedule, func(ctx context.Context) (int64, error) {
			return c.cache.DeleteExpired(ctx, c.now())
		}})
	}
	return out
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one job is enabled.
func (c *Cleaner) Start() error {
	jobs := c.jobs()
	if len(jobs) == 0 {
		return nil
	}

	for _, j := range jobs {
		j := j
		if _, err := c.cron.AddFunc(j.schedule, func() {
			_ = c.execute(context.Background(), j)
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured job sequentially. Primarily used in tests
// and at startup.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	for _, j := range c.jobs() {
		errs = multierr.Append(errs, c.execute(ctx, j))
	}
	return errs
}

func (c *Cleaner) execute(ctx context.Context, j job) error {
	start := time.Now()
	removed, err := j.run(ctx)
	if c.recorder != nil {
		c.recorder.Record(j.name, err, time.Since(start))
	}
	if err != nil {
		c.log.Warn("maintenance job failed", zap.String("job", j.name), zap.Error(err))
		return err
	}
	if removed > 0 {
		c.log.Info("maintenance job completed", zap.String("job", j.name), zap.Int64("removed", removed))
	}
	return nil
}
