// Package auth provides bearer token authentication for the admin API.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	// TokenPrefix is the prefix carried by every admin token.
	TokenPrefix = "agk_"

	// tokenBytes is the number of random bytes in a generated token.
	tokenBytes = 32

	// Argon2id parameters (OWASP recommended for token hashing)
	argon2Time    = 1
	argon2Memory  = 64 * 1024 // 64MB
	argon2Threads = 4
	argon2KeyLen  = 32
)

var (
	// ErrInvalidTokenFormat indicates the token does not carry the expected prefix.
	ErrInvalidTokenFormat = errors.New("invalid admin token format")

	// ErrInvalidToken indicates the token failed validation.
	ErrInvalidToken = errors.New("invalid admin token")
)

// AdminToken holds the hashed form of the admin bearer token. The plaintext
// is never stored.
type AdminToken struct {
	Hash []byte
	Salt []byte
}

// GenerateAdminToken creates a fresh admin token. It returns the plaintext,
// to be shown once, and the hashed record to keep.
func GenerateAdminToken() (plaintext string, token *AdminToken, err error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("failed to generate random token: %w", err)
	}
	plaintext = TokenPrefix + base64.RawURLEncoding.EncodeToString(raw)

	token, err = HashAdminToken(plaintext)
	if err != nil {
		return "", nil, err
	}
	return plaintext, token, nil
}

// HashAdminToken hashes a plaintext admin token with a fresh salt.
func HashAdminToken(plaintext string) (*AdminToken, error) {
	if !strings.HasPrefix(plaintext, TokenPrefix) {
		return nil, ErrInvalidTokenFormat
	}
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return &AdminToken{Hash: hashToken(plaintext, salt), Salt: salt}, nil
}

// ValidateAdminToken checks a provided plaintext token against the stored
// hash. Comparison is constant time.
func ValidateAdminToken(provided string, stored *AdminToken) error {
	if stored == nil {
		return ErrInvalidToken
	}
	if !strings.HasPrefix(provided, TokenPrefix) {
		return ErrInvalidTokenFormat
	}
	providedHash := hashToken(provided, stored.Salt)
	if subtle.ConstantTimeCompare(providedHash, stored.Hash) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// hashToken hashes the token using Argon2id.
func hashToken(token string, salt []byte) []byte {
	return argon2.IDKey([]byte(token), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
}

// MaskToken returns a masked form of a token for logging.
// Example: "agk_abc12345..." -> "agk_abc1****"
func MaskToken(token string) string {
	if !strings.HasPrefix(token, TokenPrefix) {
		return "****"
	}
	part := strings.TrimPrefix(token, TokenPrefix)
	if len(part) < 4 {
		return TokenPrefix + "****"
	}
	return TokenPrefix + part[:4] + "****"
}
