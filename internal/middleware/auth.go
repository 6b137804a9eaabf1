// Package middleware provides the Gin middleware of the pin API: the authentication gate, rate
// limiting, request ids, metrics and security headers.
//
// Ordering is fixed in router.go:
//
//	RequestID → Metrics → Logger → Security → RateLimit → AuthGate → Handler
//
// Rate limiting runs before the gate so brute-force attempts are stopped before any user lookup.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pinco/pinco-backend/internal/api/response"
	"github.com/pinco/pinco-backend/internal/apperr"
	"github.com/pinco/pinco-backend/internal/auth"
	"github.com/pinco/pinco-backend/internal/db/models"
	"github.com/pinco/pinco-backend/internal/policy"
	"github.com/pinco/pinco-backend/internal/services"
	"github.com/pinco/pinco-backend/internal/telemetry"
)

// Outcome is the terminal state of the gate for one request.
type Outcome string

const (
	OutcomeBypassed  Outcome = "bypassed"
	OutcomeFresh     Outcome = "fresh"
	OutcomeReissued  Outcome = "reissued"
	OutcomeRejected  Outcome = "rejected"
	OutcomeAnonymous Outcome = "anonymous"
)

// gin.Context keys set by the gate.
const (
	PrincipalKey  = "principal"
	UserIDKey     = "user_id"
	AuthMethodKey = "auth_method"
)

const (
	methodAccessToken = "access_token"
	methodAPIKey      = "api_key"
)

// PrincipalSource loads active users for the gate.
type PrincipalSource interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByAPIKey(ctx context.Context, key string) (*models.User, error)
}

// AuthGate authenticates every API request from its access token or API key, silently reissuing
// an access token when a stale one arrives together with a valid key.
type AuthGate struct {
	users         PrincipalSource
	sessions      *services.AuthService
	secureCookies bool
}

// NewAuthGate creates the gate. secureCookies forces the Secure attribute on reissued cookies;
// otherwise it follows the request scheme.
func NewAuthGate(users PrincipalSource, sessions *services.AuthService, secureCookies bool) *AuthGate {
	return &AuthGate{users: users, sessions: sessions, secureCookies: secureCookies}
}

// Handler returns the gin middleware.
func (g *AuthGate) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if bypassed(c.Request) {
			if identifiesOnBypass(c.Request) {
				g.identify(c)
			}
			g.record(c, OutcomeBypassed)
			c.Next()
			return
		}

		creds, err := auth.ResolveCredentials(c.Request)
		if err != nil {
			g.reject(c, apperr.InvalidAccessToken, err)
			return
		}
		if creds.Empty() {
			g.record(c, OutcomeAnonymous)
			c.Next()
			return
		}

		if creds.AccessToken != "" {
			user, err := g.userFromToken(ctx, creds.AccessToken)
			if err != nil {
				g.reject(c, apperr.InternalError, err)
				return
			}
			if user != nil {
				setPrincipal(c, user, methodAccessToken)
				g.record(c, OutcomeFresh)
				c.Next()
				return
			}
		}

		if creds.APIKey == "" {
			g.reject(c, apperr.InvalidAccessToken, nil)
			return
		}

		user, err := g.users.GetByAPIKey(ctx, creds.APIKey)
		if err != nil {
			g.reject(c, apperr.InternalError, err)
			return
		}
		if user == nil {
			g.reject(c, apperr.InvalidAPIKey, nil)
			return
		}
		setPrincipal(c, user, methodAPIKey)

		if creds.AccessToken == "" {
			g.record(c, OutcomeFresh)
			c.Next()
			return
		}

		token, err := g.sessions.IssueAccessToken(user)
		if err != nil {
			g.reject(c, apperr.InternalError, err)
			return
		}
		secure := g.secureCookies || auth.RequestIsSecure(c.Request)
		http.SetCookie(c.Writer, auth.NewCookie(auth.CookieAccessToken, token, g.sessions.Codec().AccessTTL(), secure))
		c.Header(auth.HeaderAccessToken, token)
		g.record(c, OutcomeReissued)
		c.Next()
	}
}

// userFromToken returns the active user an access token identifies, or nil when the token is
// invalid, revoked or names a missing user. A blacklist outage counts as an unverified token.
func (g *AuthGate) userFromToken(ctx context.Context, token string) (*models.User, error) {
	claims, err := g.sessions.VerifyAccess(ctx, token)
	if err != nil {
		slog.Warn("auth gate: blacklist lookup failed", "error", err)
		return nil, nil
	}
	if claims == nil {
		return nil, nil
	}
	return g.users.GetByID(ctx, claims.ID)
}

// identify attaches the principal of a valid access token to a bypassed request. Failures of any
// kind leave the request anonymous.
func (g *AuthGate) identify(c *gin.Context) {
	creds, err := auth.ResolveCredentials(c.Request)
	if err != nil || creds.AccessToken == "" {
		return
	}
	user, err := g.userFromToken(c.Request.Context(), creds.AccessToken)
	if err != nil || user == nil {
		return
	}
	setPrincipal(c, user, methodAccessToken)
}

func (g *AuthGate) reject(c *gin.Context, code apperr.Code, cause error) {
	g.record(c, OutcomeRejected)
	if cause != nil && code.Status >= http.StatusInternalServerError {
		slog.Error("auth gate: user lookup failed", "path", c.Request.URL.Path, "error", cause)
	}
	response.Abort(c, code)
}

func (g *AuthGate) record(c *gin.Context, outcome Outcome) {
	telemetry.AuthOutcomesTotal.WithLabelValues(string(outcome)).Inc()
	slog.Debug("auth gate",
		"outcome", outcome,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"auth_method", c.GetString(AuthMethodKey),
		"request_id", c.GetString(RequestIDKey))
}

func setPrincipal(c *gin.Context, user *models.User, method string) {
	c.Set(PrincipalKey, auth.Principal{ID: user.ID, Email: user.Email, UserName: user.UserName, Role: auth.RoleUser})
	c.Set(UserIDKey, user.ID)
	c.Set(AuthMethodKey, method)
}

// publicEndpoints never require credentials.
var publicEndpoints = map[string]bool{
	"/api/user/join":    true,
	"/api/user/login":   true,
	"/api/user/reissue": true,
}

// publicListingPrefixes are readable without credentials.
var publicListingPrefixes = []string{"/api/pins", "/api/tags"}

func bypassed(r *http.Request) bool {
	path := r.URL.Path
	if !strings.HasPrefix(path, "/api/") {
		return true
	}
	if r.Method == http.MethodOptions || publicEndpoints[path] {
		return true
	}
	return identifiesOnBypass(r)
}

// identifiesOnBypass reports whether r is a read of a public listing.
func identifiesOnBypass(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	for _, prefix := range publicListingPrefixes {
		if r.URL.Path == prefix || strings.HasPrefix(r.URL.Path, prefix+"/") {
			return true
		}
	}
	return false
}

// PrincipalFrom returns the principal the gate attached to c.
func PrincipalFrom(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok
}

// ActorFrom returns the visibility actor of the request: the principal's user or anonymous.
func ActorFrom(c *gin.Context) policy.Actor {
	if p, ok := PrincipalFrom(c); ok {
		return policy.UserActor(p.ID)
	}
	return policy.Anonymous()
}

// RequirePrincipal returns the principal of c or aborts with AUTH_REQUIRED.
func RequirePrincipal(c *gin.Context) (auth.Principal, bool) {
	p, ok := PrincipalFrom(c)
	if !ok {
		response.Abort(c, apperr.AuthRequired)
	}
	return p, ok
}
