package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
)

// VerificationTokenTTL is how long an emailed verification link stays valid
const VerificationTokenTTL = time.Hour

var ErrVerificationTokenNotFound = errors.New("verification token not found")

// VerificationToken is the stored binding of an emailed token to its user
type VerificationToken struct {
	UserID    uuid.UUID
	CreatedAt time.Time
}

// ExpiresAt is the instant after which the token is rejected
func (t *VerificationToken) ExpiresAt(ttl time.Duration) time.Time {
	return t.CreatedAt.Add(ttl)
}

// hashToken keys stored tokens by their sha256 so a store dump leaks no usable links
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// generateRandomToken creates a cryptographically secure random token
func generateRandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
