// Package transport decides how issued token pairs travel to the client.
//
// Browser clients get HttpOnly SameSite=Lax cookies and never see token
// material in the response body. Native clients get the pair in the body and
// are responsible for secure local storage and attaching the access token as
// a bearer credential. The choice is a pure mapping driven by the
// X-Client-Type request header, resolved once per request.
package transport

import (
	"net/http"
	"strings"
	"time"

	"github.com/halcyonlab/sessiongate/token"
)

// ClientKind is the closed set of caller categories.
type ClientKind int

const (
	// KindBrowser is the default: credentials travel in cookies.
	KindBrowser ClientKind = iota
	// KindNative marks non-browser callers using bearer credentials.
	KindNative
)

// ClientTypeHeader carries the client-type signal.
const ClientTypeHeader = "X-Client-Type"

const (
	// AccessCookieName is the HttpOnly cookie holding the access token.
	AccessCookieName = "access_token"
	// RefreshCookieName is the HttpOnly cookie holding the refresh token.
	RefreshCookieName = "refresh_token"

	// refreshCookiePath scopes the refresh cookie to the auth routes so it
	// is not replayed on every API call.
	refreshCookiePath = "/auth"
)

// KindFromRequest resolves the client kind from the inbound signal.
// Anything other than an explicit "native" marker is treated as a browser.
func KindFromRequest(r *http.Request) ClientKind {
	if strings.EqualFold(strings.TrimSpace(r.Header.Get(ClientTypeHeader)), "native") {
		return KindNative
	}
	return KindBrowser
}

// Adapter shapes token delivery. Secure controls the cookie Secure flag and
// should be on everywhere TLS terminates in front of the gateway.
type Adapter struct {
	Secure     bool
	RefreshTTL time.Duration
	AccessTTL  time.Duration
}

// Deliver attaches a freshly issued pair to the response according to the
// client kind and reports whether the body should carry the tokens.
// It has no failure mode: it is a mapping, not a validator.
func (a Adapter) Deliver(w http.ResponseWriter, kind ClientKind, pair token.Pair) bool {
	if kind == KindNative {
		return true
	}

	http.SetCookie(w, a.accessCookie(pair.AccessToken, a.AccessTTL))
	http.SetCookie(w, a.refreshCookie(pair.RefreshToken, a.RefreshTTL))
	return false
}

// Clear expires both credential cookies. For native clients this is a no-op
// beyond the client discarding its local tokens.
func (a Adapter) Clear(w http.ResponseWriter, kind ClientKind) {
	if kind == KindNative {
		return
	}

	http.SetCookie(w, a.accessCookie("", -time.Second))
	http.SetCookie(w, a.refreshCookie("", -time.Second))
}

// AccessTokenFromRequest extracts the access token, preferring the bearer
// header (native) over the cookie (browser).
func AccessTokenFromRequest(r *http.Request) (string, bool) {
	if tok, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return tok, true
	}
	if c, err := r.Cookie(AccessCookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

// RefreshTokenFromCookie extracts the refresh token for browser clients.
func RefreshTokenFromCookie(r *http.Request) (string, bool) {
	if c, err := r.Cookie(RefreshCookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

func (a Adapter) accessCookie(value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     AccessCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   cookieMaxAge(ttl),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Secure,
	}
}

func (a Adapter) refreshCookie(value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Path:     refreshCookiePath,
		MaxAge:   cookieMaxAge(ttl),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Secure,
	}
}

func cookieMaxAge(ttl time.Duration) int {
	if ttl < 0 {
		return -1
	}
	return int(ttl.Seconds())
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	tok := value[len(bearer):]
	if tok == "" {
		return "", false
	}
	return tok, true
}
