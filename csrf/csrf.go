// Package csrf implements double-submit cookie protection for state-changing
// browser requests.
//
// The server sets a high-entropy token in a readable (non-HttpOnly) cookie.
// Scripts on the legitimate origin read it and echo it in the X-CSRF-Token
// header; a forging origin can make the browser send the cookie but cannot
// read its value to set the matching header. Native callers authenticate
// with a bearer token, carry no cookies, and bypass the check entirely.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/halcyonlab/sessiongate/transport"
)

const (
	// CookieName is the readable cookie carrying the CSRF token.
	CookieName = "csrf_token"
	// HeaderName is the request header the client must echo the token in.
	HeaderName = "X-CSRF-Token"

	tokenBytes = 32
)

// NewToken returns a hex-encoded 256-bit random token.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Cookie builds the CSRF cookie. Deliberately not HttpOnly: the browser
// client must be able to read the value to mirror it into the header.
func Cookie(token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	}
}

// Middleware enforces the double-submit check on unsafe methods for browser
// clients. The comparison is constant-time so response timing leaks nothing
// about how many leading bytes matched.
func Middleware(reject func(w http.ResponseWriter, r *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if safeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			if transport.KindFromRequest(r) == transport.KindNative {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(CookieName)
			header := r.Header.Get(HeaderName)
			if err != nil || cookie.Value == "" || header == "" || !equalConstantTime(cookie.Value, header) {
				reject(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func equalConstantTime(a, b string) bool {
	// ConstantTimeCompare short-circuits on length, but length is public
	// knowledge here (tokens are fixed-size); only content must not leak.
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
