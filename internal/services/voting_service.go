package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/votegate/internal/auth"
	"github.com/charlesng35/votegate/internal/ballot"
	"github.com/charlesng35/votegate/internal/biometric"
	"github.com/charlesng35/votegate/internal/credential"
	"github.com/charlesng35/votegate/internal/models"
	"github.com/charlesng35/votegate/internal/otp"
	"github.com/charlesng35/votegate/internal/outcome"
	"github.com/charlesng35/votegate/internal/registry"
)

// Authenticate statuses.
const (
	StatusOTPIssued   = "otp_issued"
	StatusAlreadyCast = "already_cast"
)

// BiometricVerifier compares a stored reference photo with a live capture.
type BiometricVerifier interface {
	Verify(ctx context.Context, reference, live []byte) (*biometric.Decision, error)
}

// PhotoLoader fetches enrollment reference photos.
type PhotoLoader interface {
	LoadPhoto(ctx context.Context, registrantID string) (*models.EnrollmentPhoto, error)
}

// AuthenticateInput is one authenticate request. LiveImage enables the
// biometric stage when present.
type AuthenticateInput struct {
	Credentials credential.Credentials
	LiveImage   []byte
}

// AuthenticateResult is the outcome of a successful or terminal
// authenticate call.
type AuthenticateResult struct {
	Status      string
	AttemptID   string
	Registrant  *models.Registrant
	MaskedPhone string
	Message     string
	ExpiresAt   time.Time
	Biometric   *biometric.Decision
	TestOTP     string
}

// ConfirmResult carries the ballot token minted after code confirmation.
type ConfirmResult struct {
	Registrant     *models.Registrant
	BallotToken    string
	TokenExpiresAt time.Time
}

// VotingOption customises the VotingService.
type VotingOption func(*VotingService)

// WithBiometricVerifier enables the biometric stage.
func WithBiometricVerifier(v BiometricVerifier, photos PhotoLoader) VotingOption {
	return func(s *VotingService) {
		s.biometric = v
		s.photos = photos
	}
}

// WithVotingAudit records every pipeline call.
func WithVotingAudit(audit *AuditService) VotingOption {
	return func(s *VotingService) {
		s.audit = audit
	}
}

// WithTestOTPEcho returns the plaintext code in AuthenticateResult.TestOTP.
// Development only.
func WithTestOTPEcho(enabled bool) VotingOption {
	return func(s *VotingService) {
		s.echoOTP = enabled
	}
}

// WithVotingClock injects a custom time source.
func WithVotingClock(clock func() time.Time) VotingOption {
	return func(s *VotingService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithVotingLogger overrides the service logger.
func WithVotingLogger(log *zap.Logger) VotingOption {
	return func(s *VotingService) {
		if log != nil {
			s.log = log
		}
	}
}

// VotingService orders the gates into the voter pipeline:
// credential -> biometric (optional) -> code issue, then code confirmation
// -> ballot commit. Every stage short-circuits on its first rejection.
type VotingService struct {
	credentials *credential.Gate
	codes       *otp.Manager
	committer   *ballot.Committer
	tokens      *auth.BallotTokenService
	biometric   BiometricVerifier
	photos      PhotoLoader
	audit       *AuditService
	echoOTP     bool
	now         func() time.Time
	log         *zap.Logger
}

// NewVotingService wires the pipeline.
func NewVotingService(credentials *credential.Gate, codes *otp.Manager, committer *ballot.Committer, tokens *auth.BallotTokenService, opts ...VotingOption) (*VotingService, error) {
	switch {
	case credentials == nil:
		return nil, errors.New("voting service: credential gate is required")
	case codes == nil:
		return nil, errors.New("voting service: otp manager is required")
	case committer == nil:
		return nil, errors.New("voting service: committer is required")
	case tokens == nil:
		return nil, errors.New("voting service: ballot token service is required")
	}

	s := &VotingService{
		credentials: credentials,
		codes:       codes,
		committer:   committer,
		tokens:      tokens,
		now:         time.Now,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Authenticate runs the credential and biometric gates and issues a code.
// A registrant who already voted gets StatusAlreadyCast and no code.
func (s *VotingService) Authenticate(ctx context.Context, in AuthenticateInput) (*AuthenticateResult, error) {
	creds := in.Credentials.Normalised()
	attempt := newAttempt(creds.Masked(), s.now())

	res, err := s.credentials.Check(ctx, creds)
	if err != nil {
		attempt.fail(StageCredential, err)
		s.auditAttempt(ctx, attempt, nil, err)
		return nil, err
	}
	attempt.pass(StageCredential)
	registrant := res.Registrant

	if res.AlreadyCast {
		attempt.Decision = StatusAlreadyCast
		s.auditAttempt(ctx, attempt, registrant, nil)
		return &AuthenticateResult{
			Status:     StatusAlreadyCast,
			AttemptID:  attempt.ID,
			Registrant: registrant,
			Message:    "Vote already recorded for this voter.",
		}, nil
	}

	var decision *biometric.Decision
	if len(in.LiveImage) > 0 {
		decision, err = s.verifyFace(ctx, registrant, in.LiveImage)
		if err != nil {
			attempt.fail(StageBiometric, err)
			s.auditAttempt(ctx, attempt, registrant, err, decision)
			return nil, err
		}
		attempt.pass(StageBiometric)
	}

	issued, err := s.codes.Issue(ctx, registrant)
	if err != nil {
		attempt.fail(StageOTPIssue, err)
		s.auditAttempt(ctx, attempt, registrant, err, decision)
		return nil, err
	}
	attempt.pass(StageOTPIssue)
	attempt.Decision = StatusOTPIssued
	s.auditAttempt(ctx, attempt, registrant, nil, decision)

	out := &AuthenticateResult{
		Status:      StatusOTPIssued,
		AttemptID:   attempt.ID,
		Registrant:  registrant,
		MaskedPhone: issued.MaskedPhone,
		Message:     fmt.Sprintf("OTP sent to mobile ending in %s", issued.MaskedPhone),
		ExpiresAt:   issued.ExpiresAt,
		Biometric:   decision,
	}
	if s.echoOTP {
		out.TestOTP = issued.Code
	}
	return out, nil
}

func (s *VotingService) verifyFace(ctx context.Context, registrant *models.Registrant, live []byte) (*biometric.Decision, error) {
	if s.biometric == nil || s.photos == nil {
		return nil, outcome.Unavailable(outcome.KindOracleUnavailable, "Biometric verification is not available", nil)
	}

	photo, err := s.photos.LoadPhoto(ctx, registrant.ID)
	if err != nil {
		if errors.Is(err, registry.ErrPhotoNotFound) {
			return nil, outcome.Reject(outcome.KindFaceNotDetected, "No enrollment photo on file for this voter.")
		}
		return nil, outcome.Unavailable(outcome.KindRegistryUnavailable, "Voter registry is temporarily unavailable", err)
	}

	return s.biometric.Verify(ctx, photo.Data, live)
}

// ConfirmOTP consumes the code and mints a ballot token.
func (s *VotingService) ConfirmOTP(ctx context.Context, registrantID, code string) (*ConfirmResult, error) {
	registrant, err := s.codes.Confirm(ctx, registrantID, code)
	if err != nil {
		s.auditStep(ctx, AuditActionConfirmOTP, registrantID, err, nil)
		return nil, err
	}

	token, expiresAt, err := s.tokens.Issue(registrant.ID)
	if err != nil {
		return nil, fmt.Errorf("voting service: issue ballot token: %w", err)
	}

	s.auditStep(ctx, AuditActionConfirmOTP, registrant.ID, nil, nil)
	return &ConfirmResult{
		Registrant:     registrant,
		BallotToken:    token,
		TokenExpiresAt: expiresAt,
	}, nil
}

// CommitVote records the ballot. It is idempotent.
func (s *VotingService) CommitVote(ctx context.Context, registrantID string) (*ballot.Receipt, error) {
	receipt, err := s.committer.Commit(ctx, registrantID)
	if err != nil {
		s.auditStep(ctx, AuditActionCommitVote, registrantID, err, nil)
		return nil, err
	}
	s.auditStep(ctx, AuditActionCommitVote, registrantID, nil, map[string]any{
		"first_commit":    receipt.FirstCommit,
		"confirmation_id": receipt.ConfirmationID,
	})
	return receipt, nil
}

func (s *VotingService) auditAttempt(ctx context.Context, attempt *VerificationAttempt, registrant *models.Registrant, err error, decision ...*biometric.Decision) {
	meta := attempt.summary()
	if len(decision) > 0 && decision[0] != nil {
		meta["biometric"] = decision[0]
	}
	entry := AuditEntry{
		Action:   AuditActionAuthenticate,
		Result:   attempt.Decision,
		Metadata: meta,
	}
	if registrant != nil {
		entry.RegistrantID = stringPtr(registrant.ID)
	}
	if err != nil {
		entry.Reason = err.Error()
	}
	recordAudit(s.audit, s.log, ctx, entry)
}

func (s *VotingService) auditStep(ctx context.Context, action, registrantID string, err error, meta map[string]any) {
	entry := AuditEntry{
		RegistrantID: stringPtr(registrantID),
		Action:       action,
		Result:       "success",
		Metadata:     meta,
	}
	if err != nil {
		entry.Result = "rejected"
		entry.Reason = err.Error()
		if kind := outcome.KindOf(err); kind != "" {
			if entry.Metadata == nil {
				entry.Metadata = map[string]any{}
			}
			entry.Metadata["kind"] = kind
		}
	}
	recordAudit(s.audit, s.log, ctx, entry)
}
