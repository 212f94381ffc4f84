// Package otp issues and consumes the single-use numeric codes that bind a
// credential check to a ballot.
//
// A registrant holds at most one code. Issuing overwrites it; a successful
// confirmation or a detected expiry clears it with a write conditioned on the
// stored hash, so the same code can never be consumed twice.
package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/votegate/internal/models"
	"github.com/charlesng35/votegate/internal/outcome"
	"github.com/charlesng35/votegate/internal/registry"
	"github.com/charlesng35/votegate/pkg/crypto"
	"github.com/charlesng35/votegate/pkg/metrics"
	"github.com/charlesng35/votegate/pkg/sms"
)

const (
	defaultTTL   = 5 * time.Minute
	defaultWidth = 6
)

// Rejection messages.
const (
	ReasonNoActiveCode = "Invalid request or session."
	ReasonExpired      = "OTP has expired. Please try again."
	ReasonMismatch     = "Invalid OTP provided."
)

// Store is the slice of the registry the manager needs.
type Store interface {
	FindByID(ctx context.Context, id string) (*models.Registrant, error)
	SetOTP(ctx context.Context, id, codeHash string, expiresAt time.Time) error
	ClearOTP(ctx context.Context, id, codeHash string) (bool, error)
}

// Issued describes a freshly issued code. Code is the plaintext and must
// only leave the process through the SMS sender or the opt-in test echo.
type Issued struct {
	Code        string
	ExpiresAt   time.Time
	MaskedPhone string
	Delivered   bool
}

// Option customises the Manager.
type Option func(*Manager)

// WithClock injects a custom time source.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithTTL overrides the code lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithCodeGenerator replaces the random code source.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(m *Manager) {
		if gen != nil {
			m.generate = gen
		}
	}
}

// WithLogger overrides the manager logger.
func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// Manager drives the code lifecycle NONE -> ISSUED -> CONSUMED | EXPIRED.
type Manager struct {
	store    Store
	sender   sms.Sender
	ttl      time.Duration
	now      func() time.Time
	generate func() (string, error)
	log      *zap.Logger
}

// NewManager constructs a Manager. sender may be nil, in which case codes are
// stored but never delivered.
func NewManager(store Store, sender sms.Sender, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("otp manager: store is required")
	}
	m := &Manager{
		store:    store,
		sender:   sender,
		ttl:      defaultTTL,
		now:      time.Now,
		generate: func() (string, error) { return crypto.RandomDigits(defaultWidth) },
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL returns the configured code lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue generates a code for registrant, overwrites any previous one and
// dispatches it by SMS. Delivery failures are logged and do not fail issuance.
func (m *Manager) Issue(ctx context.Context, registrant *models.Registrant) (*Issued, error) {
	if registrant == nil || registrant.ID == "" {
		return nil, errors.New("otp manager: registrant is required")
	}

	code, err := m.generate()
	if err != nil {
		return nil, fmt.Errorf("otp manager: generate code: %w", err)
	}

	expiresAt := m.now().UTC().Add(m.ttl)
	if err := m.store.SetOTP(ctx, registrant.ID, crypto.HashCode(code), expiresAt); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return nil, outcome.Reject(outcome.KindNotFound, "Voter not found. Please check your credentials.")
		}
		return nil, outcome.Unavailable(outcome.KindRegistryUnavailable, "Voter registry is temporarily unavailable", err)
	}
	metrics.OTPEvents.WithLabelValues("issued").Inc()

	issued := &Issued{
		Code:        code,
		ExpiresAt:   expiresAt,
		MaskedPhone: registrant.MaskedPhone(),
	}
	issued.Delivered = m.deliver(ctx, registrant, code)
	return issued, nil
}

// Confirm checks code against the registrant's slot and consumes it.
func (m *Manager) Confirm(ctx context.Context, registrantID, code string) (*models.Registrant, error) {
	record, err := m.store.FindByID(ctx, registrantID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return nil, m.reject(outcome.KindNoActiveCode, "no_active_code", ReasonNoActiveCode)
		}
		return nil, outcome.Unavailable(outcome.KindRegistryUnavailable, "Voter registry is temporarily unavailable", err)
	}
	if !record.HasActiveCode() {
		return nil, m.reject(outcome.KindNoActiveCode, "no_active_code", ReasonNoActiveCode)
	}

	storedHash := *record.OTPCodeHash
	if m.now().After(*record.OTPExpiresAt) {
		if _, err := m.store.ClearOTP(ctx, record.ID, storedHash); err != nil {
			m.log.Warn("clear expired otp failed", zap.String("registrant_id", record.ID), zap.Error(err))
		}
		return nil, m.reject(outcome.KindExpired, "expired", ReasonExpired)
	}

	if !crypto.EqualHash(crypto.HashCode(code), storedHash) {
		return nil, m.reject(outcome.KindMismatch, "mismatch", ReasonMismatch)
	}

	cleared, err := m.store.ClearOTP(ctx, record.ID, storedHash)
	if err != nil {
		return nil, outcome.Unavailable(outcome.KindRegistryUnavailable, "Voter registry is temporarily unavailable", err)
	}
	if !cleared {
		return nil, m.reject(outcome.KindNoActiveCode, "no_active_code", ReasonNoActiveCode)
	}

	metrics.OTPEvents.WithLabelValues("confirmed").Inc()
	record.OTPCodeHash = nil
	record.OTPExpiresAt = nil
	return record, nil
}

func (m *Manager) deliver(ctx context.Context, registrant *models.Registrant, code string) bool {
	if m.sender == nil {
		return false
	}

	minutes := int(m.ttl / time.Minute)
	body := fmt.Sprintf("Your Voter Authentication OTP is %s. It is valid for %d minutes.", code, minutes)

	_, err := m.sender.Send(ctx, sms.Message{To: registrant.PhoneNumber, Body: body})
	switch {
	case err == nil:
		metrics.SMSDispatch.WithLabelValues("otp", "sent").Inc()
		return true
	case errors.Is(err, sms.ErrSMSDisabled):
		metrics.SMSDispatch.WithLabelValues("otp", "disabled").Inc()
	default:
		metrics.SMSDispatch.WithLabelValues("otp", "failed").Inc()
		m.log.Warn("otp sms delivery failed",
			zap.String("registrant_id", registrant.ID),
			zap.String("phone", registrant.MaskedPhone()),
			zap.Error(err),
		)
	}
	return false
}

func (m *Manager) reject(kind outcome.Kind, event, reason string) error {
	metrics.OTPEvents.WithLabelValues(event).Inc()
	return outcome.Reject(kind, reason)
}
