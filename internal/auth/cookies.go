package auth

import (
	"net/http"
	"time"
)

// NewCookie builds a credential cookie on path "/". An empty value expires the cookie
// immediately (Max-Age=0); otherwise maxAge bounds its lifetime, 0 meaning a session cookie.
func NewCookie(name, value string, maxAge time.Duration, secure bool) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	switch {
	case value == "":
		c.MaxAge = -1
	case maxAge > 0:
		c.MaxAge = int(maxAge / time.Second)
	}
	return c
}

// RequestIsSecure reports whether r arrived over TLS, directly or via a terminating proxy.
func RequestIsSecure(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}
