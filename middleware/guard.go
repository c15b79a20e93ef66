// Package middleware provides the HTTP wrappers applied in front of route
// handlers: access-token guarding and per-address rate limiting. CSRF
// verification lives in the csrf package next to its token issuance.
package middleware

import (
	"context"
	"net/http"

	"github.com/halcyonlab/sessiongate"
	"github.com/halcyonlab/sessiongate/token"
	"github.com/halcyonlab/sessiongate/transport"
)

// Authenticator validates an access token. Satisfied by
// [sessiongate.Gateway].
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*token.Claims, error)
}

// Reject writes the error response for a request stopped by a middleware.
type Reject func(w http.ResponseWriter, r *http.Request, err error)

type claimsContextKey struct{}

// ClaimsFromContext returns the claims the Guard stored for this request.
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*token.Claims)
	return claims, ok
}

// Guard validates the access token (bearer header or cookie) and stores
// the claims in the request context. Requests without a usable token are
// rejected before the handler runs.
func Guard(auth Authenticator, reject Reject) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accessToken, ok := transport.AccessTokenFromRequest(r)
			if !ok {
				reject(w, r, sessiongate.ErrTokenMalformed)
				return
			}

			claims, err := auth.Authenticate(r.Context(), accessToken)
			if err != nil {
				reject(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
