package sessiongate

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/halcyonlab/sessiongate/bridge"
	"github.com/halcyonlab/sessiongate/password"
	"github.com/halcyonlab/sessiongate/rotation"
	"github.com/halcyonlab/sessiongate/token"
)

// Gateway binds the token service, the rotation store, the password
// hasher, and the storage bridge into the five credential operations.
// All methods are safe for concurrent use.
type Gateway struct {
	config   Config
	tokens   *token.Manager
	hasher   *password.Hasher
	pool     *bridge.Pool
	rotation *rotation.Store
	store    CredentialStore
}

// New validates the configuration and wires the gateway. A missing or weak
// signing secret fails here with [ErrSigningKeyUnavailable]; that failure
// is fatal and must not be retried.
func New(cfg Config, store CredentialStore, redisClient redis.UniversalClient) (*Gateway, error) {
	if store == nil {
		return nil, errors.New("credential store is required")
	}
	if redisClient == nil {
		return nil, errors.New("redis client is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tokens, err := token.NewManager(token.Config{
		Secret:     cfg.Token.Secret,
		AccessTTL:  cfg.Token.AccessTTL,
		RefreshTTL: cfg.Token.RefreshTTL,
		Issuer:     cfg.Token.Issuer,
		Leeway:     cfg.Token.Leeway,
	})
	if err != nil {
		if errors.Is(err, token.ErrSigningKey) {
			return nil, fmt.Errorf("%w: %v", ErrSigningKeyUnavailable, err)
		}
		return nil, err
	}

	hasher, err := password.NewHasher(cfg.Password)
	if err != nil {
		return nil, err
	}

	return &Gateway{
		config:   cfg,
		tokens:   tokens,
		hasher:   hasher,
		pool:     bridge.New(cfg.Bridge.Workers, cfg.Bridge.QueueDepth),
		rotation: rotation.NewStore(redisClient, cfg.Rotation.KeyPrefix, cfg.Token.RefreshTTL),
		store:    store,
	}, nil
}

// Close stops the storage bridge. In-flight operations finish first.
func (g *Gateway) Close() {
	g.pool.Close()
}

// Register hashes the password and stores a new credential. The returned
// subject is the opaque identifier future tokens will carry.
func (g *Gateway) Register(ctx context.Context, identifier, pass string) (string, error) {
	if identifier == "" || pass == "" {
		return "", ErrInvalidCredentials
	}

	hash, err := g.hasher.Hash(pass)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	cred := Credential{
		Subject:      uuid.NewString(),
		Identifier:   identifier,
		PasswordHash: hash,
	}

	_, err = bridge.Run(ctx, g.pool, func(context.Context) (struct{}, error) {
		return struct{}{}, g.store.Create(cred)
	})
	if err != nil {
		if errors.Is(err, ErrCredentialExists) {
			return "", ErrCredentialExists
		}
		return "", g.mapBridgeErr(err)
	}

	return cred.Subject, nil
}

// Login verifies the password against the stored verifier and issues a
// fresh pair under a new session. Unknown identifier and wrong password
// produce the same error.
func (g *Gateway) Login(ctx context.Context, identifier, pass string) (token.Pair, error) {
	if identifier == "" || pass == "" {
		return token.Pair{}, ErrInvalidCredentials
	}

	cred, err := bridge.Run(ctx, g.pool, func(context.Context) (Credential, error) {
		return g.store.GetByIdentifier(identifier)
	})
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return token.Pair{}, ErrInvalidCredentials
		}
		return token.Pair{}, g.mapBridgeErr(err)
	}

	ok, err := g.hasher.Verify(pass, cred.PasswordHash)
	if err != nil || !ok {
		return token.Pair{}, ErrInvalidCredentials
	}

	sessionID := uuid.NewString()
	pair, err := g.tokens.Issue(cred.Subject, sessionID)
	if err != nil {
		return token.Pair{}, fmt.Errorf("%w: %v", ErrSigningKeyUnavailable, err)
	}

	if err := g.rotation.Create(ctx, sessionID, rotation.Fingerprint(pair.RefreshToken)); err != nil {
		return token.Pair{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	return pair, nil
}

// Refresh rotates a valid refresh token into a fresh pair for the same
// subject and session. Rotation is stateless per call apart from the
// rotation record CAS, so concurrent calls for one session are safe:
// exactly one wins, the rest see reuse or a missing session.
func (g *Gateway) Refresh(ctx context.Context, refreshToken string) (token.Pair, error) {
	claims, err := g.tokens.Validate(refreshToken, token.TypeRefresh)
	if err != nil {
		return token.Pair{}, g.mapTokenErr(err)
	}

	pair, err := g.tokens.Issue(claims.Subject, claims.SessionID)
	if err != nil {
		return token.Pair{}, fmt.Errorf("%w: %v", ErrSigningKeyUnavailable, err)
	}

	err = g.rotation.Rotate(ctx, claims.SessionID,
		rotation.Fingerprint(refreshToken), rotation.Fingerprint(pair.RefreshToken))
	if err != nil {
		switch {
		case errors.Is(err, rotation.ErrReused):
			return token.Pair{}, ErrRefreshReuse
		case errors.Is(err, rotation.ErrNotFound):
			return token.Pair{}, ErrSessionNotFound
		default:
			return token.Pair{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}

	return pair, nil
}

// Logout revokes the session named by the access token. Revoking an
// already-dead session is not an error; logout is idempotent.
func (g *Gateway) Logout(ctx context.Context, accessToken string) error {
	claims, err := g.tokens.Validate(accessToken, token.TypeAccess)
	if err != nil {
		return g.mapTokenErr(err)
	}

	if err := g.rotation.Delete(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Authenticate validates an access token and returns its claims. No side
// effects.
func (g *Gateway) Authenticate(_ context.Context, accessToken string) (*token.Claims, error) {
	claims, err := g.tokens.Validate(accessToken, token.TypeAccess)
	if err != nil {
		return nil, g.mapTokenErr(err)
	}
	return claims, nil
}

// CheckStorage runs the store liveness probe through the bridge; used by
// the readiness endpoint.
func (g *Gateway) CheckStorage(ctx context.Context) error {
	_, err := bridge.Run(ctx, g.pool, func(context.Context) (struct{}, error) {
		return struct{}{}, g.store.Ping()
	})
	if err != nil {
		return g.mapBridgeErr(err)
	}
	return nil
}

func (g *Gateway) mapTokenErr(err error) error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, token.ErrTypeMismatch):
		return ErrTokenTypeMismatch
	default:
		return ErrTokenMalformed
	}
}

// mapBridgeErr separates the two failure channels of a bridged call:
// worker death is a process defect, everything else from the storage side
// is (possibly transient) unavailability.
func (g *Gateway) mapBridgeErr(err error) error {
	switch {
	case errors.Is(err, bridge.ErrWorkerFailure), errors.Is(err, bridge.ErrClosed):
		return fmt.Errorf("%w: %v", ErrWorkerFailure, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
}
