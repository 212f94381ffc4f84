// Package auth issues the short-lived bearer token that authorises a ballot
// commit after the one-time code has been confirmed.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultBallotTokenTTL bounds the window between code confirmation and commit.
	DefaultBallotTokenTTL = 10 * time.Minute
	// BallotAudience is the only audience accepted by Validate.
	BallotAudience = "ballot"
)

// ErrInvalidBallotToken wraps every validation failure.
var ErrInvalidBallotToken = errors.New("ballot token: invalid")

// BallotTokenConfig bundles the configuration required to build a BallotTokenService.
type BallotTokenConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
	Clock  func() time.Time
}

// BallotClaims represents the claims embedded in issued ballot tokens.
type BallotClaims struct {
	RegistrantID string `json:"rid"`
	jwt.RegisteredClaims
}

// BallotTokenService issues and validates HS256 ballot tokens.
type BallotTokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewBallotTokenService constructs a BallotTokenService.
func NewBallotTokenService(cfg BallotTokenConfig) (*BallotTokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("ballot token: secret must be provided")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultBallotTokenTTL
	}
	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &BallotTokenService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    now,
	}, nil
}

// TTL returns the token lifetime.
func (s *BallotTokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token bound to registrantID and returns it with its expiry.
func (s *BallotTokenService) Issue(registrantID string) (string, time.Time, error) {
	if registrantID == "" {
		return "", time.Time{}, errors.New("ballot token: registrant id is required")
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := &BallotClaims{
		RegistrantID: registrantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   registrantID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{BallotAudience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("ballot token: sign: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses tokenString and returns its claims.
func (s *BallotTokenService) Validate(tokenString string) (*BallotClaims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidBallotToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithAudience(BallotAudience),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var claims BallotClaims
	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBallotToken, err)
	}
	if claims.RegistrantID == "" {
		return nil, fmt.Errorf("%w: missing registrant claim", ErrInvalidBallotToken)
	}
	return &claims, nil
}
