package sessiongate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// memStore is an in-memory CredentialStore stub. panicOn simulates a
// driver defect; failErr simulates backend unavailability.
type memStore struct {
	mu      sync.Mutex
	byIdent map[string]Credential

	panicOn bool
	failErr error
}

func newMemStore() *memStore {
	return &memStore{byIdent: make(map[string]Credential)}
}

func (s *memStore) GetByIdentifier(identifier string) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicOn {
		panic("simulated driver defect")
	}
	if s.failErr != nil {
		return Credential{}, s.failErr
	}
	cred, ok := s.byIdent[identifier]
	if !ok {
		return Credential{}, ErrCredentialNotFound
	}
	return cred, nil
}

func (s *memStore) Create(cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	if _, ok := s.byIdent[cred.Identifier]; ok {
		return ErrCredentialExists
	}
	s.byIdent[cred.Identifier] = cred
	return nil
}

func (s *memStore) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failErr
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.Secret = []byte("0123456789abcdef0123456789abcdef")
	// Floor-level argon2 keeps the suite fast.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func newTestGateway(t *testing.T, cfg Config) (*Gateway, *memStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := newMemStore()
	gw, err := New(cfg, store, rdb)
	if err != nil {
		t.Fatalf("gateway init failed: %v", err)
	}
	t.Cleanup(gw.Close)

	return gw, store, mr
}

func mustRegister(t *testing.T, gw *Gateway, identifier, pass string) string {
	t.Helper()
	subject, err := gw.Register(context.Background(), identifier, pass)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	return subject
}

func TestNewRequiresSigningSecret(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := testConfig()
	cfg.Token.Secret = nil
	if _, err := New(cfg, newMemStore(), rdb); !errors.Is(err, ErrSigningKeyUnavailable) {
		t.Fatalf("expected ErrSigningKeyUnavailable, got %v", err)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	gw, _, _ := newTestGateway(t, testConfig())
	ctx := context.Background()

	subject := mustRegister(t, gw, "alice@example.com", "correct-horse-battery")

	pair, err := gw.Login(ctx, "alice@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	claims, err := gw.Authenticate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if claims.Subject != subject {
		t.Fatalf("subject mismatch: %q vs %q", claims.Subject, subject)
	}
}

func TestRegisterDuplicateIdentifier(t *testing.T) {
	gw, _, _ := newTestGateway(t, testConfig())
	ctx := context.Background()

	mustRegister(t, gw, "alice@example.com", "correct-horse-battery")
	if _, err := gw.Register(ctx, "alice@example.com", "another-password"); !errors.Is(err, ErrCredentialExists) {
		t.Fatalf("expected ErrCredentialExists, got %v", err)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	gw, _, _ := newTestGateway(t, testConfig())
	ctx := context.Background()

	mustRegister(t, gw, "alice@example.com", "correct-horse-battery")

	_, unknownErr := gw.Login(ctx, "nobody@example.com", "correct-horse-battery")
	_, wrongErr := gw.Login(ctx, "alice@example.com", "wrong-password-here")

	if !errors.Is(unknownErr, ErrInvalidCredentials) || !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Fatalf("expected uniform ErrInvalidCredentials, got %v / %v", unknownErr, wrongErr)
	}
}

func TestRefreshRotatesPair(t *testing.T) {
	gw, _, _ := newTestGateway(t, testConfig())
	ctx := context.Background()

	mustRegister(t, gw, "alice@example.com", "correct-horse-battery")
	pair, err := gw.Login(ctx, "alice@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	rotated, err := gw.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh must rotate the refresh token")
	}
	if _, err := gw.Authenticate(ctx, rotated.AccessToken); err != nil {
		t.Fatalf("rotated access token rejected: %v", err)
	}

	// The superseded refresh token is dead, and replaying it revokes the
	// whole chain.
	if _, err := gw.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrRefreshReuse) {
		t.Fatalf("expected ErrRefreshReuse, got %v", err)
	}
	if _, err := gw.Refresh(ctx, rotated.RefreshToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after revocation, got %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	gw, _, _ := newTestGateway(t, testConfig())
	ctx := context.Background()

	mustRegister(t, gw, "alice@example.com", "correct-horse-battery")
	pair, err := gw.Login(ctx, "alice@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, err := gw.Refresh(ctx, pair.AccessToken); !errors.Is(err, ErrTokenTypeMismatch) {
		t.Fatalf("expected ErrTokenTypeMismatch, got %v", err)
	}
}

func TestAuthenticateRejectsRefreshToken(t *testing.T) {
	gw, _, _ := newTestGateway(t, testConfig())
	ctx := context.Background()

	mustRegister(t, gw, "alice@example.com", "correct-horse-battery")
	pair, err := gw.Login(ctx, "alice@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, err := gw.Authenticate(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenTypeMismatch) {
		t.Fatalf("expected ErrTokenTypeMismatch, got %v", err)
	}
	if _, err := gw.Authenticate(ctx, "garbage"); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	gw, _, _ := newTestGateway(t, testConfig())
	ctx := context.Background()

	mustRegister(t, gw, "alice@example.com", "correct-horse-battery")
	pair, err := gw.Login(ctx, "alice@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := gw.Refresh(ctx, pair.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrRefreshReuse), errors.Is(err, ErrSessionNotFound):
		default:
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one refresh winner, got %d", success)
	}
}

func TestLogoutKillsSession(t *testing.T) {
	gw, _, _ := newTestGateway(t, testConfig())
	ctx := context.Background()

	mustRegister(t, gw, "alice@example.com", "correct-horse-battery")
	pair, err := gw.Login(ctx, "alice@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if err := gw.Logout(ctx, pair.AccessToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	// Idempotent.
	if err := gw.Logout(ctx, pair.AccessToken); err != nil {
		t.Fatalf("second logout failed: %v", err)
	}

	if _, err := gw.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after logout, got %v", err)
	}
}

func TestExpiredAccessTokenStillRefreshable(t *testing.T) {
	cfg := testConfig()
	cfg.Token.AccessTTL = 50 * time.Millisecond
	cfg.Token.RefreshTTL = time.Hour
	gw, _, _ := newTestGateway(t, cfg)
	ctx := context.Background()

	mustRegister(t, gw, "alice@example.com", "correct-horse-battery")
	pair, err := gw.Login(ctx, "alice@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	time.Sleep(80 * time.Millisecond)

	if _, err := gw.Authenticate(ctx, pair.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	rotated, err := gw.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh after access expiry failed: %v", err)
	}
	if _, err := gw.Authenticate(ctx, rotated.AccessToken); err != nil {
		t.Fatalf("rotated access token rejected: %v", err)
	}
}

func TestStorageAndWorkerFailuresStayDistinct(t *testing.T) {
	gw, store, _ := newTestGateway(t, testConfig())
	ctx := context.Background()

	store.failErr = errors.New("connection refused")
	_, err := gw.Login(ctx, "alice@example.com", "correct-horse-battery")
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if errors.Is(err, ErrWorkerFailure) {
		t.Fatal("storage outage must not be classified as worker failure")
	}

	store.failErr = nil
	store.panicOn = true
	_, err = gw.Login(ctx, "alice@example.com", "correct-horse-battery")
	if !errors.Is(err, ErrWorkerFailure) {
		t.Fatalf("expected ErrWorkerFailure, got %v", err)
	}
}

func TestRefreshTokenUnusableAfterNaturalExpiry(t *testing.T) {
	cfg := testConfig()
	cfg.Token.AccessTTL = 20 * time.Millisecond
	cfg.Token.RefreshTTL = 60 * time.Millisecond
	gw, _, _ := newTestGateway(t, cfg)
	ctx := context.Background()

	mustRegister(t, gw, "alice@example.com", "correct-horse-battery")
	pair, err := gw.Login(ctx, "alice@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if _, err := gw.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}
