// TokenCodec: HS256 signing and verification of access and refresh tokens with a single
// symmetric key that is loaded once at startup and injected.

package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// RoleUser is the role carried by every access token unless another is given.
	RoleUser = "ROLE_USER"

	tokenIssuer = "pinco"

	// minSecretLength is the recommended minimum HS256 key length in bytes.
	minSecretLength = 32
)

// Claims is the fixed claim set of access and refresh tokens. Refresh tokens carry only ID.
type Claims struct {
	ID       int64  `json:"id"`
	Email    string `json:"email,omitempty"`
	UserName string `json:"userName,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenCodec issues and verifies signed tokens. It is safe for concurrent use.
type TokenCodec struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// CodecOption customises a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock replaces the wall clock used for issuance and verification.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		c.now = now
	}
}

// NewTokenCodec creates a codec signing with key. accessTTL and refreshTTL are the lifetimes
// used by IssueAccess and IssueRefresh.
func NewTokenCodec(key []byte, accessTTL, refreshTTL time.Duration, opts ...CodecOption) *TokenCodec {
	c := &TokenCodec{
		key:        key,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AccessTTL returns the configured access token lifetime.
func (c *TokenCodec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (c *TokenCodec) RefreshTTL() time.Duration { return c.refreshTTL }

// Issue signs a token for subjectID that expires ttl after issuance.
func (c *TokenCodec) Issue(subjectID int64, email, displayName, role string, ttl time.Duration) (string, error) {
	if ttl < jwt.TimePrecision {
		return "", fmt.Errorf("token ttl must be at least %s, got %s", jwt.TimePrecision, ttl)
	}

	// NumericDate drops sub-second precision, so exp is computed from the truncated iat and
	// stays exactly iat + ttl.
	issuedAt := c.now().Truncate(jwt.TimePrecision)
	claims := &Claims{
		ID:       subjectID,
		Email:    email,
		UserName: displayName,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatInt(subjectID, 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// IssueAccess signs an access token for p with the configured access TTL.
func (c *TokenCodec) IssueAccess(p Principal) (string, error) {
	role := p.Role
	if role == "" {
		role = RoleUser
	}
	return c.Issue(p.ID, p.Email, p.UserName, role, c.accessTTL)
}

// IssueRefresh signs a refresh token carrying only the subject id.
func (c *TokenCodec) IssueRefresh(subjectID int64) (string, error) {
	return c.Issue(subjectID, "", "", "", c.refreshTTL)
}

// Verify reports whether token is well formed, signed with this codec's key and unexpired.
func (c *TokenCodec) Verify(token string) bool {
	_, err := c.parse(token)
	return err == nil
}

// Decode returns the claims of a valid token, or nil on any verification failure.
func (c *TokenCodec) Decode(token string) *Claims {
	claims, err := c.parse(token)
	if err != nil {
		return nil
	}
	return claims
}

// RemainingValidity returns how long token stays valid, or 0 if it is invalid or expired.
func (c *TokenCodec) RemainingValidity(token string) time.Duration {
	claims, err := c.parse(token)
	if err != nil || claims.ExpiresAt == nil {
		return 0
	}
	remaining := claims.ExpiresAt.Time.Sub(c.now())
	if remaining <= 0 {
		return 0
	}
	return remaining
}

// parse never panics: every failure surfaces as an error that callers turn into false/nil/0.
func (c *TokenCodec) parse(token string) (claims *Claims, err error) {
	if token == "" {
		return nil, errors.New("empty token")
	}
	defer func() {
		if r := recover(); r != nil {
			claims, err = nil, fmt.Errorf("token parse panic: %v", r)
		}
	}()

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}

	out, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	if out.ID == 0 && out.Subject != "" {
		id, err := strconv.ParseInt(out.Subject, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid subject: %w", err)
		}
		out.ID = id
	}
	if out.Role == "" && out.Email != "" {
		out.Role = RoleUser
	}
	return out, nil
}

// LoadSigningKey validates the configured secret and returns the signing key.
// Without a secret, dev mode gets a random per-process key; otherwise it is an error.
func LoadSigningKey(secret string, devMode bool) ([]byte, error) {
	if secret == "" {
		if !devMode {
			return nil, errors.New("SECURITY ERROR: auth.jwt.secret (PINCO_AUTH_JWT_SECRET) is required in production. " +
				"Generate a secure secret with: openssl rand -hex 32")
		}
		log.Printf("WARNING: auth.jwt.secret not set. Using auto-generated secret for development.")
		log.Printf("WARNING: Tokens will not survive a restart. Set PINCO_AUTH_JWT_SECRET for persistent sessions.")
		return []byte(generateRandomSecret()), nil
	}

	if len(secret) < minSecretLength {
		log.Printf("WARNING: auth.jwt.secret is shorter than the recommended %d characters.", minSecretLength)
	}
	return []byte(secret), nil
}

func generateRandomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("dev-fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
