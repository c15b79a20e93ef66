package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/halcyonlab/sessiongate"
)

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			s.logger.Warn("response encode failed", zap.Error(err))
		}
	}
}

// writeError maps a gateway error to its HTTP status and a client-safe
// message. Wrapped internal detail stays in the log; the body carries only
// the sentinel's text.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)

	switch {
	case errors.Is(err, sessiongate.ErrWorkerFailure):
		s.logger.Error("worker failure", zap.String("path", r.URL.Path), zap.Error(err))
	case errors.Is(err, sessiongate.ErrStorageUnavailable):
		s.logger.Warn("storage unavailable", zap.String("path", r.URL.Path), zap.Error(err))
	case errors.Is(err, sessiongate.ErrRefreshReuse):
		s.logger.Warn("refresh token reuse detected", zap.String("path", r.URL.Path))
	}

	if status == http.StatusTooManyRequests {
		// Advisory only; the limiter refills continuously.
		w.Header().Set("Retry-After", "1")
	}
	s.writeJSON(w, status, errorBody{Error: msg})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, sessiongate.ErrCSRFMismatch):
		return http.StatusForbidden, sessiongate.ErrCSRFMismatch.Error()
	case errors.Is(err, sessiongate.ErrRateLimited):
		return http.StatusTooManyRequests, sessiongate.ErrRateLimited.Error()
	case errors.Is(err, sessiongate.ErrCredentialExists):
		return http.StatusConflict, sessiongate.ErrCredentialExists.Error()
	case errors.Is(err, sessiongate.ErrTokenExpired):
		return http.StatusUnauthorized, sessiongate.ErrTokenExpired.Error()
	case errors.Is(err, sessiongate.ErrTokenTypeMismatch):
		return http.StatusUnauthorized, sessiongate.ErrTokenTypeMismatch.Error()
	case errors.Is(err, sessiongate.ErrTokenMalformed):
		return http.StatusUnauthorized, sessiongate.ErrTokenMalformed.Error()
	case errors.Is(err, sessiongate.ErrRefreshReuse):
		return http.StatusUnauthorized, sessiongate.ErrRefreshReuse.Error()
	case errors.Is(err, sessiongate.ErrSessionNotFound):
		return http.StatusUnauthorized, sessiongate.ErrSessionNotFound.Error()
	case errors.Is(err, sessiongate.ErrInvalidCredentials):
		return http.StatusUnauthorized, sessiongate.ErrInvalidCredentials.Error()
	case errors.Is(err, sessiongate.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, sessiongate.ErrStorageUnavailable.Error()
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, sessiongate.ErrStorageUnavailable.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
