// Package token issues and validates signed access/refresh token pairs.
//
// # Token model
//
// Both tokens are HS256 JWTs carrying a token_type claim ("access" or
// "refresh") and a session ID. Access tokens are short-lived (minutes),
// refresh tokens long-lived (days). A token presented under the wrong type
// is rejected with [ErrTypeMismatch]; type confusion is a distinct failure
// from expiry and is reported even when the token is also expired.
//
// # Architecture boundaries
//
// This package owns signing and verification only. Rotation bookkeeping,
// reuse detection, and transport (cookies vs body) live elsewhere. The
// Manager holds a read-only secret and performs no I/O; it is safe for
// concurrent use.
package token
