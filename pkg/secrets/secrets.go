package secrets

import (
	"crypto/rand"
	"encoding/base64"

	dErrors "consentd/pkg/domain-errors"
)

// MinSigningKeyBytes is the shortest HS256 key accepted outside development.
const MinSigningKeyBytes = 32

// Generate creates a cryptographically secure random signing key.
// Returns a base64-encoded string suitable for CONSENTD_SCOPE_SECRET.
func Generate() (string, error) {
	buf := make([]byte, MinSigningKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate secret")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CheckSigningKey rejects keys too short to sign scope cookies.
func CheckSigningKey(key string) error {
	if key == "" {
		return dErrors.New(dErrors.CodeValidation, "signing key cannot be empty")
	}
	if len(key) < MinSigningKeyBytes {
		return dErrors.New(dErrors.CodeValidation, "signing key must be at least 32 bytes")
	}
	return nil
}
