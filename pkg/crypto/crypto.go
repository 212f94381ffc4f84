package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

// HashCode returns the hex encoded SHA-256 digest of a one-time code.
// Codes are short lived and rate limited, so a fast digest is sufficient;
// the plaintext never reaches storage.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// EqualHash compares two hex digests in constant time.
func EqualHash(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// RandomDigits returns a uniformly random, zero padded numeric string of the
// requested width.
func RandomDigits(width int) (string, error) {
	if width <= 0 || width > 18 {
		return "", errors.New("crypto: digit width must be between 1 and 18")
	}

	limit := big.NewInt(1)
	for i := 0; i < width; i++ {
		limit.Mul(limit, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("crypto: random digits: %w", err)
	}
	return fmt.Sprintf("%0*d", width, n.Int64()), nil
}

// GenerateToken returns a random URL-safe token of the requested byte length.
func GenerateToken(length int) (string, error) {
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}
