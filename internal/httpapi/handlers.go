package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/halcyonlab/sessiongate"
	"github.com/halcyonlab/sessiongate/csrf"
	"github.com/halcyonlab/sessiongate/middleware"
	"github.com/halcyonlab/sessiongate/token"
	"github.com/halcyonlab/sessiongate/transport"
)

type credentialsRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type registerResponse struct {
	Subject string `json:"subject"`
}

type meResponse struct {
	Subject   string    `json:"subject"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleCSRF mints the double-submit token: one copy in the readable cookie,
// one in the body for clients that prefer to read it there.
func (s *Server) handleCSRF(w http.ResponseWriter, r *http.Request) {
	tok, err := csrf.NewToken()
	if err != nil {
		s.logger.Error("csrf token generation failed", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}

	http.SetCookie(w, csrf.Cookie(tok, s.adapter.Secure))
	s.writeJSON(w, http.StatusOK, map[string]string{"csrf_token": tok})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, sessiongate.ErrInvalidCredentials)
		return
	}

	subject, err := s.gateway.Register(r.Context(), req.Identifier, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, registerResponse{Subject: subject})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, sessiongate.ErrInvalidCredentials)
		return
	}

	pair, err := s.gateway.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.deliverPair(w, r, pair)
}

// handleRefresh accepts the refresh token from the request body (native) or
// the scoped cookie (browser). Body takes precedence when both are present.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	_ = decodeJSON(r, &req)

	refreshToken := req.RefreshToken
	if refreshToken == "" {
		if fromCookie, ok := transport.RefreshTokenFromCookie(r); ok {
			refreshToken = fromCookie
		}
	}
	if refreshToken == "" {
		s.writeError(w, r, sessiongate.ErrTokenMalformed)
		return
	}

	pair, err := s.gateway.Refresh(r.Context(), refreshToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.deliverPair(w, r, pair)
}

// handleLogout clears the session if the access token still names one, then
// clears the cookies regardless. A dead or absent token does not fail the
// call: the client ends up logged out either way.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	kind := transport.KindFromRequest(r)

	if accessToken, ok := transport.AccessTokenFromRequest(r); ok {
		if err := s.gateway.Logout(r.Context(), accessToken); err != nil {
			s.logger.Debug("logout with unusable token", zap.Error(err))
		}
	}

	s.adapter.Clear(w, kind)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		s.writeError(w, r, sessiongate.ErrTokenMalformed)
		return
	}

	s.writeJSON(w, http.StatusOK, meResponse{
		Subject:   claims.Subject,
		SessionID: claims.SessionID,
		ExpiresAt: claims.ExpiresAt.Time,
	})
}

// handleTouch is the guarded state-changing endpoint. It exists so clients
// can exercise the full CSRF plus token path without touching credentials.
func (s *Server) handleTouch(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		s.writeError(w, r, sessiongate.ErrTokenMalformed)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"subject": claims.Subject})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.gateway.CheckStorage(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// deliverPair routes the pair through the transport adapter. Browser clients
// get cookies and a body without token material; native clients get the pair
// in the body.
func (s *Server) deliverPair(w http.ResponseWriter, r *http.Request, pair token.Pair) {
	kind := transport.KindFromRequest(r)
	if s.adapter.Deliver(w, kind, pair) {
		s.writeJSON(w, http.StatusOK, pair)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"expires_in": pair.ExpiresIn})
}
