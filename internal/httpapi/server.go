// Package httpapi exposes the gateway over HTTP: credential endpoints,
// CSRF issuance, health probes, and a guarded sample surface. Middleware
// order is fixed: rate limiter first, then CSRF, then the token guard,
// so abusive traffic is shed before any verification work happens.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/halcyonlab/sessiongate"
	"github.com/halcyonlab/sessiongate/csrf"
	"github.com/halcyonlab/sessiongate/middleware"
	"github.com/halcyonlab/sessiongate/ratelimit"
	"github.com/halcyonlab/sessiongate/transport"
)

// Server holds the wired gateway components behind the HTTP surface.
type Server struct {
	gateway *sessiongate.Gateway
	limiter *ratelimit.Limiter
	adapter transport.Adapter
	logger  *zap.Logger
}

// NewServer assembles the HTTP layer. A nil logger falls back to zap.NewNop.
func NewServer(gateway *sessiongate.Gateway, limiter *ratelimit.Limiter, adapter transport.Adapter, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		gateway: gateway,
		limiter: limiter,
		adapter: adapter,
		logger:  logger,
	}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	general := middleware.RateLimit(s.limiter, ratelimit.ClassGeneral, s.writeError)
	authTier := middleware.RateLimit(s.limiter, ratelimit.ClassAuth, s.writeError)
	csrfGuard := csrf.Middleware(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, sessiongate.ErrCSRFMismatch)
	})
	tokenGuard := middleware.Guard(s.gateway, s.writeError)

	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(general)
		r.Get("/csrf", s.handleCSRF)
		r.Get("/health/live", s.handleLive)
		r.Get("/health/ready", s.handleReady)

		r.Group(func(r chi.Router) {
			r.Use(csrfGuard, tokenGuard)
			r.Get("/me", s.handleMe)
			r.Post("/me/touch", s.handleTouch)
		})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Use(authTier, csrfGuard)
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/logout", s.handleLogout)
	})

	return r
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<16))
	return dec.Decode(v)
}
