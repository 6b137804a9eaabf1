package auth

import (
	"errors"
	"net/http"
	"strings"
)

// Credential carriers.
const (
	HeaderAuthorization = "Authorization"
	HeaderAPIKey        = "X-API-Key"
	HeaderRefreshToken  = "X-Refresh-Token"
	HeaderAccessToken   = "accessToken"

	// headerAPIKeyCompat is accepted from older clients that send the key bare.
	headerAPIKeyCompat = "apiKey"

	CookieAPIKey       = "apiKey"
	CookieAccessToken  = "accessToken"
	CookieRefreshToken = "refreshToken"

	bearerPrefix = "Bearer "
)

// ErrMalformedAuthorization is returned when an Authorization header is present but does not use
// the Bearer scheme. No other credential source is consulted in that case.
var ErrMalformedAuthorization = errors.New("authorization header must start with 'Bearer '")

// Credentials are the candidate credentials found on a request. Either may be empty.
type Credentials struct {
	APIKey      string
	AccessToken string
}

// Empty reports whether no credential was presented at all.
func (c Credentials) Empty() bool {
	return c.APIKey == "" && c.AccessToken == ""
}

// ResolveCredentials extracts the API key and access token from r. Sources in priority order:
// "Authorization: Bearer <apiKey> <accessToken>", the X-API-Key header (api key only), then the
// apiKey / accessToken cookies. Each slot is filled from the first source that has it.
func ResolveCredentials(r *http.Request) (Credentials, error) {
	var creds Credentials

	if header := r.Header.Get(HeaderAuthorization); strings.TrimSpace(header) != "" {
		if !strings.HasPrefix(header, bearerPrefix) {
			return Credentials{}, ErrMalformedAuthorization
		}
		parts := strings.SplitN(header, " ", 3)
		if len(parts) >= 2 {
			creds.APIKey = strings.TrimSpace(parts[1])
		}
		if len(parts) == 3 {
			creds.AccessToken = strings.TrimSpace(parts[2])
		}
	}

	if creds.APIKey == "" {
		creds.APIKey = strings.TrimSpace(r.Header.Get(HeaderAPIKey))
	}
	if creds.APIKey == "" {
		creds.APIKey = strings.TrimSpace(r.Header.Get(headerAPIKeyCompat))
	}
	if creds.APIKey == "" {
		creds.APIKey = cookieValue(r, CookieAPIKey)
	}

	if creds.AccessToken == "" {
		creds.AccessToken = strings.TrimSpace(r.Header.Get(HeaderAccessToken))
	}
	if creds.AccessToken == "" {
		creds.AccessToken = cookieValue(r, CookieAccessToken)
	}

	return creds, nil
}

// ResolveLogoutTokens returns the tokens a logout request should revoke. The access token is the
// last field after "Bearer " (so both "Bearer <token>" and "Bearer <apiKey> <token>" work) or the
// accessToken cookie; the refresh token comes from X-Refresh-Token or the refreshToken cookie.
func ResolveLogoutTokens(r *http.Request) (access, refresh string) {
	if header := r.Header.Get(HeaderAuthorization); strings.HasPrefix(header, bearerPrefix) {
		if fields := strings.Fields(strings.TrimPrefix(header, bearerPrefix)); len(fields) > 0 {
			access = fields[len(fields)-1]
		}
	}
	if access == "" {
		access = cookieValue(r, CookieAccessToken)
	}

	refresh = strings.TrimSpace(r.Header.Get(HeaderRefreshToken))
	if refresh == "" {
		refresh = cookieValue(r, CookieRefreshToken)
	}
	return access, refresh
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}
