// Package auth provides the credential primitives of the service: the TokenCodec (signed access and
// refresh tokens), API key generation, password hashing and credential extraction from requests.
// See internal/middleware/auth.go for the request-time gate that combines them.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for password hashing
	BcryptCost = 10

	// maxAPIKeyAttempts bounds the retry loop in EnsureUniqueAPIKey.
	maxAPIKeyAttempts = 5
)

// ErrAPIKeyExhausted is returned when no unused API key could be generated.
var ErrAPIKeyExhausted = errors.New("could not generate a unique api key")

// GenerateAPIKey returns a new random API key. Keys are opaque UUID strings.
func GenerateAPIKey() string {
	return uuid.NewString()
}

// KeyExists reports whether an API key is already assigned to a user.
type KeyExists func(ctx context.Context, key string) (bool, error)

// EnsureUniqueAPIKey generates keys until one is not taken according to exists.
func EnsureUniqueAPIKey(ctx context.Context, exists KeyExists) (string, error) {
	for i := 0; i < maxAPIKeyAttempts; i++ {
		key := GenerateAPIKey()
		taken, err := exists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("failed to check api key: %w", err)
		}
		if !taken {
			return key, nil
		}
	}
	return "", ErrAPIKeyExhausted
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword checks if a provided password matches the stored hash
func CheckPassword(password, storedHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password))
	return err == nil
}
