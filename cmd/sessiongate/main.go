// Command sessiongate runs the session-security gateway as a standalone HTTP
// service. Configuration comes from the environment (optionally a .env file);
// missing or invalid required values abort startup before the listener opens.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/halcyonlab/sessiongate"
	"github.com/halcyonlab/sessiongate/internal/httpapi"
	"github.com/halcyonlab/sessiongate/internal/memstore"
	"github.com/halcyonlab/sessiongate/ratelimit"
	"github.com/halcyonlab/sessiongate/transport"
)

const shutdownGrace = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sessiongate:", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, bindAddr, redisAddr, err := configFromEnv()
	if err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	gateway, err := sessiongate.New(cfg, memstore.New(), rdb)
	if err != nil {
		return err
	}
	defer gateway.Close()

	limiter := ratelimit.New(cfg.RateLimit)
	defer limiter.Close()

	adapter := transport.Adapter{
		Secure:     cfg.CookieSecure,
		AccessTTL:  cfg.Token.AccessTTL,
		RefreshTTL: cfg.Token.RefreshTTL,
	}

	api := httpapi.NewServer(gateway, limiter, adapter, logger)
	srv := &http.Server{
		Addr:              bindAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", bindAddr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// configFromEnv builds the gateway config from environment variables.
// JWT_SECRET is the only hard requirement; everything else has a default.
func configFromEnv() (sessiongate.Config, string, string, error) {
	cfg := sessiongate.DefaultConfig()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return cfg, "", "", errors.New("JWT_SECRET is required")
	}
	cfg.Token.Secret = []byte(secret)

	bindAddr := envOr("BIND_ADDR", ":8080")
	redisAddr := envOr("REDIS_ADDR", "localhost:6379")

	var err error
	if cfg.Token.AccessTTL, err = envDuration("ACCESS_TTL", cfg.Token.AccessTTL); err != nil {
		return cfg, "", "", err
	}
	if cfg.Token.RefreshTTL, err = envDuration("REFRESH_TTL", cfg.Token.RefreshTTL); err != nil {
		return cfg, "", "", err
	}
	if cfg.RateLimit.General, err = envTier("RATE_GENERAL", cfg.RateLimit.General); err != nil {
		return cfg, "", "", err
	}
	if cfg.RateLimit.Auth, err = envTier("RATE_AUTH", cfg.RateLimit.Auth); err != nil {
		return cfg, "", "", err
	}
	cfg.CookieSecure = os.Getenv("COOKIE_SECURE") == "true"

	if err := cfg.Validate(); err != nil {
		return cfg, "", "", err
	}
	return cfg, bindAddr, redisAddr, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// envTier reads <KEY>_RATE (tokens per second, float) and <KEY>_BURST.
func envTier(key string, fallback ratelimit.Tier) (ratelimit.Tier, error) {
	tier := fallback
	if v := os.Getenv(key + "_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return tier, fmt.Errorf("%s_RATE: %w", key, err)
		}
		tier.Rate = rate.Limit(f)
	}
	if v := os.Getenv(key + "_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return tier, fmt.Errorf("%s_BURST: %w", key, err)
		}
		tier.Burst = n
	}
	return tier, nil
}
