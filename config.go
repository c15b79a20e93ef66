package sessiongate

import (
	"errors"
	"fmt"
	"time"

	"github.com/halcyonlab/sessiongate/password"
	"github.com/halcyonlab/sessiongate/ratelimit"
)

// Config assembles the gateway. Values are read once at construction and
// treated as immutable afterwards; invalid or missing required values fail
// fast so a half-configured gateway never serves traffic.
type Config struct {
	Token     TokenConfig
	Password  password.Config
	RateLimit ratelimit.Config
	Bridge    BridgeConfig
	Rotation  RotationConfig
	// CookieSecure sets the Secure flag on every credential cookie. Enable
	// wherever TLS terminates in front of the gateway.
	CookieSecure bool
}

// TokenConfig holds the signing secret and the independent pair lifetimes.
type TokenConfig struct {
	// Secret signs both token types. Required, at least 32 bytes.
	Secret []byte
	// AccessTTL is the short access-token lifetime (minutes).
	AccessTTL time.Duration
	// RefreshTTL is the long refresh-token lifetime (days).
	RefreshTTL time.Duration
	Issuer     string
	Leeway     time.Duration
}

// BridgeConfig sizes the blocking-storage worker pool.
type BridgeConfig struct {
	Workers    int
	QueueDepth int
}

// RotationConfig tunes the refresh rotation record store.
type RotationConfig struct {
	// KeyPrefix namespaces rotation records in Redis.
	KeyPrefix string
}

// DefaultConfig returns production-shaped defaults. The token secret is
// deliberately absent: there is no safe default for it.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "sessiongate",
		},
		Password: password.DefaultConfig(),
		RateLimit: ratelimit.Config{
			General:     ratelimit.Tier{Rate: 50, Burst: 100},
			Auth:        ratelimit.Tier{Rate: 1, Burst: 5},
			IdleTimeout: 10 * time.Minute,
		},
		Bridge: BridgeConfig{
			Workers:    8,
			QueueDepth: 64,
		},
		Rotation: RotationConfig{
			KeyPrefix: "sg:rot:",
		},
	}
}

// Validate performs the fail-fast checks that are not already enforced by
// the component constructors.
func (c Config) Validate() error {
	if len(c.Token.Secret) == 0 {
		return fmt.Errorf("%w: token secret is not configured", ErrSigningKeyUnavailable)
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.Token.AccessTTL >= c.Token.RefreshTTL {
		return errors.New("access TTL must be shorter than refresh TTL")
	}
	if c.RateLimit.General.Burst <= 0 || c.RateLimit.Auth.Burst <= 0 {
		return errors.New("rate limit bursts must be positive")
	}
	if c.Bridge.Workers <= 0 || c.Bridge.QueueDepth <= 0 {
		return errors.New("bridge pool size must be positive")
	}
	return nil
}
