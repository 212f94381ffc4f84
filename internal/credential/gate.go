// Package credential matches a voter's identity tuple against the registry
// and enforces eligibility before any one-time code is issued.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/votegate/internal/models"
	"github.com/charlesng35/votegate/internal/outcome"
	"github.com/charlesng35/votegate/internal/registry"
	"github.com/charlesng35/votegate/pkg/metrics"
	"github.com/charlesng35/votegate/pkg/validator"
)

const defaultMinimumAge = 18

// Format failure messages.
const (
	ReasonVoterIDFormat    = "Invalid Voter ID format (must be ABC1234567)."
	ReasonNationalIDFormat = "Invalid national ID number (must be 12 digits)."
	ReasonPhoneFormat      = "Invalid mobile number (must be 10 digits starting with 6-9)."
)

// Credentials is the identity tuple supplied by a voter.
type Credentials struct {
	VoterID     string `json:"voter_id" validate:"required,voterid"`
	NationalID  string `json:"national_id" validate:"required,nationalid"`
	PhoneNumber string `json:"phone_number" validate:"required,mobile"`
}

// Normalised returns a copy with whitespace trimmed and the voter id upper-cased.
func (c Credentials) Normalised() Credentials {
	return Credentials{
		VoterID:     strings.ToUpper(strings.TrimSpace(c.VoterID)),
		NationalID:  strings.TrimSpace(c.NationalID),
		PhoneNumber: strings.TrimSpace(c.PhoneNumber),
	}
}

// Masked hides the national id and phone for logs and audit rows.
func (c Credentials) Masked() map[string]string {
	return map[string]string{
		"voter_id":     c.VoterID,
		"national_id":  maskTail(c.NationalID),
		"phone_number": maskTail(c.PhoneNumber),
	}
}

// Finder is the registry lookup the gate depends on.
type Finder interface {
	FindByCredentials(ctx context.Context, voterID, nationalID, phone string) (*models.Registrant, error)
}

// Result is a passed check. AlreadyCast is terminal but not an error: the
// caller reports the existing ballot instead of issuing a code.
type Result struct {
	Registrant  *models.Registrant
	AlreadyCast bool
}

// Option customises the Gate.
type Option func(*Gate)

// WithClock injects a custom time source.
func WithClock(clock func() time.Time) Option {
	return func(g *Gate) {
		if clock != nil {
			g.now = clock
		}
	}
}

// WithMinimumAge overrides the voting age.
func WithMinimumAge(years int) Option {
	return func(g *Gate) {
		if years > 0 {
			g.minAge = years
		}
	}
}

// WithLogger overrides the gate logger.
func WithLogger(log *zap.Logger) Option {
	return func(g *Gate) {
		if log != nil {
			g.log = log
		}
	}
}

// Gate checks credentials, age and the ballot flag. It never writes.
type Gate struct {
	finder Finder
	minAge int
	now    func() time.Time
	log    *zap.Logger
}

// NewGate constructs a credential gate.
func NewGate(finder Finder, opts ...Option) (*Gate, error) {
	if finder == nil {
		return nil, errors.New("credential gate: finder is required")
	}
	g := &Gate{
		finder: finder,
		minAge: defaultMinimumAge,
		now:    time.Now,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Check runs the gate. Rejections are *outcome.Rejection values.
func (g *Gate) Check(ctx context.Context, creds Credentials) (*Result, error) {
	creds = creds.Normalised()

	if reasons := validateFormat(creds); len(reasons) > 0 {
		g.record(outcome.KindInvalidInput)
		return nil, outcome.RejectAll(outcome.KindInvalidInput, strings.Join(reasons, " "), reasons)
	}

	record, err := g.finder.FindByCredentials(ctx, creds.VoterID, creds.NationalID, creds.PhoneNumber)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			g.record(outcome.KindNotFound)
			return nil, outcome.Reject(outcome.KindNotFound, "Voter not found. Please check your credentials.")
		}
		g.log.Error("registry lookup failed", zap.String("voter_id", creds.VoterID), zap.Error(err))
		g.record(outcome.KindRegistryUnavailable)
		return nil, outcome.Unavailable(outcome.KindRegistryUnavailable, "Voter registry is temporarily unavailable", err)
	}

	if age := Age(record.DateOfBirth, g.now()); age < g.minAge {
		g.record(outcome.KindIneligible)
		return nil, outcome.Reject(outcome.KindIneligible,
			fmt.Sprintf("Voter is not eligible to vote (under %d).", g.minAge))
	}

	if record.HasVoted {
		g.record(outcome.KindAlreadyCast)
		return &Result{Registrant: record, AlreadyCast: true}, nil
	}

	g.record("")
	return &Result{Registrant: record}, nil
}

// Age returns completed years between dob and now, counting a birthday only
// once its month and day have been reached.
func Age(dob, now time.Time) int {
	if dob.IsZero() {
		return 0
	}
	dob = dob.UTC()
	now = now.UTC()
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}

func validateFormat(c Credentials) []string {
	err := validator.ValidateStruct(c)
	if err == nil {
		return nil
	}
	var failures validator.ValidationErrors
	if !errors.As(err, &failures) {
		return []string{err.Error()}
	}

	reasons := make([]string, 0, len(failures))
	seen := make(map[string]bool, len(failures))
	for _, f := range failures {
		if seen[f.Field] {
			continue
		}
		seen[f.Field] = true
		switch f.Field {
		case "voter_id":
			reasons = append(reasons, ReasonVoterIDFormat)
		case "national_id":
			reasons = append(reasons, ReasonNationalIDFormat)
		case "phone_number":
			reasons = append(reasons, ReasonPhoneFormat)
		default:
			reasons = append(reasons, f.Field+" is invalid")
		}
	}
	return reasons
}

func (g *Gate) record(kind outcome.Kind) {
	label := "passed"
	if kind != "" {
		label = string(kind)
	}
	metrics.GateOutcomes.WithLabelValues("credential", label).Inc()
}

func maskTail(value string) string {
	if len(value) <= 4 {
		return value
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}
