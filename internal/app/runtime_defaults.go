package app

import (
	"fmt"
	"strings"

	"github.com/charlesng35/votegate/pkg/crypto"
)

// BallotSecretKey names the generated ballot signing secret in the map
// returned by ApplyRuntimeDefaults.
const BallotSecretKey = "auth.ballot_token.secret"

const ballotSecretBytes = 48

// ApplyRuntimeDefaults ensures critical secrets are populated even when no configuration file is supplied.
// It returns a map describing which keys were generated so callers can log the event without exposing values.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	generated := make(map[string]bool)

	if strings.TrimSpace(cfg.Auth.BallotToken.Secret) == "" {
		secret, err := crypto.GenerateToken(ballotSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate ballot token secret: %w", err)
		}
		cfg.Auth.BallotToken.Secret = secret
		generated[BallotSecretKey] = true
	}

	if strings.TrimSpace(cfg.Auth.BallotToken.Issuer) == "" {
		cfg.Auth.BallotToken.Issuer = "votegate"
	}

	return generated, nil
}
