// Package rotation tracks which refresh token is currently live for each
// session, so a superseded (possibly stolen) token cannot be replayed until
// natural expiry.
//
// The store keeps only a SHA-256 fingerprint of the live refresh token,
// never the token itself. Rotation is an atomic compare-and-swap in Redis:
// exactly one of any number of concurrent rotations for a session wins, and
// presenting a stale fingerprint revokes the whole session chain.
package rotation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when the session has no live record; it was
	// either logged out, revoked, or expired.
	ErrNotFound = errors.New("rotation record not found")
	// ErrReused is returned when a superseded refresh token is presented.
	// The session chain has been revoked as a consequence.
	ErrReused = errors.New("refresh token reuse detected")
	// ErrUnavailable wraps transport-level Redis failures.
	ErrUnavailable = errors.New("rotation store unavailable")
)

const (
	casStatusNotFound int64 = 0
	casStatusReused   int64 = 1
	casStatusRotated  int64 = 2
)

// The swap must observe and replace the fingerprint in one step, or two
// concurrent rotations could both see the old value and both win.
const rotateScript = `
local cur = redis.call("GET", KEYS[1])
if not cur then
  return 0
end
if cur ~= ARGV[1] then
  redis.call("DEL", KEYS[1])
  return 1
end
redis.call("SET", KEYS[1], ARGV[2], "EX", ARGV[3])
return 2
`

var rotateLua = redis.NewScript(rotateScript)

// Fingerprint derives the stored digest of a refresh token.
func Fingerprint(refreshToken string) string {
	sum := sha256.Sum256([]byte(refreshToken))
	return hex.EncodeToString(sum[:])
}

// Store is a Redis-backed rotation record keyed by session ID.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewStore returns a Store writing records with the given key prefix and a
// TTL matching the refresh-token lifetime.
func NewStore(client redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "sg:rot:"
	}
	return &Store{redis: client, prefix: prefix, ttl: ttl}
}

// Create records the fingerprint of a freshly issued refresh token,
// replacing any previous record for the session.
func (s *Store) Create(ctx context.Context, sessionID, fingerprint string) error {
	if err := s.redis.Set(ctx, s.key(sessionID), fingerprint, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Rotate atomically swaps the live fingerprint from old to new. A stale old
// fingerprint means the presented token was already rotated away: the record
// is deleted and [ErrReused] is returned. A missing record returns
// [ErrNotFound].
func (s *Store) Rotate(ctx context.Context, sessionID, oldFingerprint, newFingerprint string) error {
	ttlSeconds := int64(s.ttl.Seconds())
	if ttlSeconds < 1 {
		ttlSeconds = 1
	}

	status, err := rotateLua.Run(ctx, s.redis, []string{s.key(sessionID)},
		oldFingerprint, newFingerprint, ttlSeconds).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch status {
	case casStatusRotated:
		return nil
	case casStatusNotFound:
		return ErrNotFound
	case casStatusReused:
		return ErrReused
	default:
		return fmt.Errorf("%w: unexpected rotate status %d", ErrUnavailable, status)
	}
}

// Delete removes the session's record. Deleting a missing record is not an
// error; logout must be idempotent.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *Store) key(sessionID string) string {
	return s.prefix + sessionID
}
