package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/charlesng35/votegate/internal/outcome"
)

// Pipeline stages.
const (
	StageCredential = "credential"
	StageBiometric  = "biometric"
	StageOTPIssue   = "otp_issue"
)

// StageOutcome records how one gate ended.
type StageOutcome struct {
	Stage  string       `json:"stage"`
	Passed bool         `json:"passed"`
	Kind   outcome.Kind `json:"kind,omitempty"`
	Reason string       `json:"reason,omitempty"`
}

// VerificationAttempt traces one authenticate call. It lives for the
// duration of the call; only its summary reaches the audit log.
type VerificationAttempt struct {
	ID          string            `json:"id"`
	Credentials map[string]string `json:"credentials"`
	Stages      []StageOutcome    `json:"stages"`
	Decision    string            `json:"decision"`
	StartedAt   time.Time         `json:"started_at"`
}

func newAttempt(masked map[string]string, now time.Time) *VerificationAttempt {
	return &VerificationAttempt{
		ID:          uuid.NewString(),
		Credentials: masked,
		StartedAt:   now,
	}
}

func (a *VerificationAttempt) pass(stage string) {
	a.Stages = append(a.Stages, StageOutcome{Stage: stage, Passed: true})
}

func (a *VerificationAttempt) fail(stage string, err error) {
	so := StageOutcome{Stage: stage, Reason: err.Error()}
	if rej, ok := outcome.As(err); ok {
		so.Kind = rej.Kind
		so.Reason = rej.Reason
	}
	a.Stages = append(a.Stages, so)
	a.Decision = "rejected"
}

func (a *VerificationAttempt) summary() map[string]any {
	return map[string]any{
		"attempt_id":  a.ID,
		"credentials": a.Credentials,
		"stages":      a.Stages,
		"decision":    a.Decision,
	}
}
