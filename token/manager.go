package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Type discriminates access tokens from refresh tokens inside claims.
type Type string

const (
	// TypeAccess marks short-lived tokens authorizing individual API calls.
	TypeAccess Type = "access"
	// TypeRefresh marks long-lived tokens used solely to obtain a new pair.
	TypeRefresh Type = "refresh"
)

var (
	// ErrExpired is returned when the token signature is valid but the
	// expiry has passed.
	ErrExpired = errors.New("token expired")
	// ErrMalformed is returned for tokens that fail to parse or verify.
	ErrMalformed = errors.New("token malformed")
	// ErrTypeMismatch is returned when a token's token_type claim does not
	// match the expected type.
	ErrTypeMismatch = errors.New("token type mismatch")
	// ErrSigningKey is returned at construction time when no usable signing
	// secret is configured. This is fatal and not retried.
	ErrSigningKey = errors.New("signing key unavailable")
)

const minSecretBytes = 32

// Config holds the signing secret and the independent token lifetimes.
type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Leeway     time.Duration
}

// Claims are embedded in every issued token. Subject, expiry, issue time,
// and jti come from the registered claim set.
type Claims struct {
	TokenType Type   `json:"token_type"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Pair is an access/refresh token pair, always produced together.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`
}

// Manager signs and verifies token pairs. It holds no mutable state.
type Manager struct {
	config Config
}

// NewManager validates the configuration and returns a Manager.
// A missing or short secret fails with [ErrSigningKey].
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < minSecretBytes {
		return nil, fmt.Errorf("%w: secret must be at least %d bytes", ErrSigningKey, minSecretBytes)
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return nil, errors.New("access TTL must be shorter than refresh TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	return &Manager{config: cfg}, nil
}

// Issue produces a fresh pair for the subject. Both tokens share the
// session ID and are minted from the same clock reading.
func (m *Manager) Issue(subject, sessionID string) (Pair, error) {
	now := time.Now()

	access, err := m.sign(subject, sessionID, TypeAccess, now, m.config.AccessTTL)
	if err != nil {
		return Pair{}, err
	}

	refresh, err := m.sign(subject, sessionID, TypeRefresh, now, m.config.RefreshTTL)
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(m.config.AccessTTL.Seconds()),
	}, nil
}

// Validate verifies signature, expiry, and token type, in that order of
// trust: nothing is read from an unverifiable token. A verified but
// wrong-typed token reports [ErrTypeMismatch] even when it is also expired.
func (m *Manager) Validate(tokenStr string, want Type) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			// Signature checked out; the claims are trustworthy even though
			// the token is stale. Type confusion outranks expiry.
			if claims, ok := expiredClaims(parsed); ok && claims.TokenType != want {
				return nil, ErrTypeMismatch
			}
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if claims.TokenType != want {
		return nil, ErrTypeMismatch
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: empty subject", ErrMalformed)
	}

	return claims, nil
}

func (m *Manager) sign(subject, sessionID string, typ Type, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		TokenType: typ,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
			Issuer:    m.config.Issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigningKey, err)
	}
	return signed, nil
}

func expiredClaims(parsed *jwt.Token) (*Claims, bool) {
	if parsed == nil {
		return nil, false
	}
	claims, ok := parsed.Claims.(*Claims)
	return claims, ok
}
