package sessiongate

import "errors"

var (
	// ErrInvalidCredentials covers both unknown identifier and wrong
	// password; the two are indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenExpired marks a structurally valid token past its expiry.
	// Recoverable client-side via refresh; not logged as an error.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed marks a token that failed to parse or verify.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenTypeMismatch marks a token presented under the wrong type.
	// Never retried: it indicates a bug or an attack.
	ErrTokenTypeMismatch = errors.New("token type mismatch")
	// ErrCSRFMismatch marks a missing or mismatched double-submit token.
	// Never retried.
	ErrCSRFMismatch = errors.New("csrf token mismatch")
	// ErrRateLimited marks an exhausted per-address budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRefreshReuse marks a superseded refresh token being replayed; the
	// session chain has been revoked.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrSessionNotFound marks a refresh against a logged-out, revoked, or
	// expired session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStorageUnavailable marks a failing storage backend. Possibly
	// transient; retry at the caller's discretion.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrWorkerFailure marks a bridge worker dying before producing a
	// result. Process-level defect; logged loudly, unlike storage errors.
	ErrWorkerFailure = errors.New("worker failure")
	// ErrSigningKeyUnavailable is fatal and startup-time only.
	ErrSigningKeyUnavailable = errors.New("signing key unavailable")

	// ErrCredentialNotFound is the CredentialStore contract sentinel for a
	// missing identifier.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrCredentialExists is the CredentialStore contract sentinel for a
	// duplicate identifier at registration.
	ErrCredentialExists = errors.New("credential already exists")
)
