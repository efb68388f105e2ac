// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLength   = 16

	refreshTokenBytes = 64
)

// PasswordHasher derives a deterministic argon2id hash from a password and a
// process-wide pepper, so the stored hash can be matched inside a query.
type PasswordHasher struct {
	salt []byte
}

func NewPasswordHasher(pepper string) (*PasswordHasher, error) {
	if pepper == "" {
		return nil, fmt.Errorf("password pepper is required: %w", ErrConfiguration)
	}

	sum := sha256.Sum256([]byte(pepper))

	return &PasswordHasher{salt: sum[:saltLength]}, nil
}

func (h *PasswordHasher) Hash(password string) string {
	key := argon2.IDKey(
		[]byte(password),
		h.salt,
		argonTime,
		argonMemory,
		argonThreads,
		argonKeyLen,
	)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s",
		argon2.Version,
		argonMemory,
		argonTime,
		argonThreads,
		base64.RawStdEncoding.EncodeToString(key),
	)
}

func (h *PasswordHasher) Verify(password, encodedHash string) bool {
	return CompareTokens(h.Hash(password), encodedHash)
}

func GenerateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return base64.StdEncoding.EncodeToString(bytes), nil
}

func GenerateRefreshToken() (string, error) {
	return GenerateSecureToken(refreshTokenBytes)
}

// CompareTokens reports whether a and b are byte-for-byte equal in constant
// time.
func CompareTokens(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
