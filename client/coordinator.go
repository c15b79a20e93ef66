// Package client wraps an HTTP client with transparent credential refresh.
//
// When a request comes back with an expired-credential status the
// coordinator performs exactly one refresh call no matter how many requests
// failed at the same moment: the first failure moves the machine from Idle
// to Refreshing and fires the call, later failures only join the waiter
// queue. On success every queued request is retried once with the new
// access token; on failure every waiter is rejected together and the
// locally held tokens are discarded, leaving re-authentication to the
// caller. The refresh call itself runs under a hard timeout so a hung
// refresh can never strand the queue.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

var (
	// ErrAuthenticationFailed is returned when the refresh attempt fails;
	// the caller must re-authenticate.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrNoRefreshToken is returned when a refresh is needed but no refresh
	// token is held.
	ErrNoRefreshToken = errors.New("no refresh token held")
)

const defaultRefreshTimeout = 10 * time.Second

// Config configures a Coordinator.
type Config struct {
	// HTTPClient is the underlying client; nil selects http.DefaultClient.
	HTTPClient *http.Client
	// BaseURL is the gateway origin, e.g. "https://api.example.com".
	BaseURL string
	// RefreshTimeout bounds the refresh call. Zero selects 10s. Without a
	// bound, a refresh that never returns would block every queued caller
	// forever.
	RefreshTimeout time.Duration
}

type coordinatorState int

const (
	stateIdle coordinatorState = iota
	stateRefreshing
)

type refreshOutcome struct {
	accessToken string
	err         error
}

// Coordinator is a native-client HTTP front end with single-flight refresh.
// It is safe for concurrent use by any number of goroutines.
type Coordinator struct {
	httpClient     *http.Client
	baseURL        string
	refreshTimeout time.Duration

	// mu guards the state machine, the waiter queue, and the token pair.
	// The transition and the enqueue must be atomic together or two
	// concurrent failures could each believe they are first.
	mu           sync.Mutex
	state        coordinatorState
	waiters      []chan refreshOutcome
	accessToken  string
	refreshToken string
}

// New returns a Coordinator in the Idle state holding no tokens.
func New(cfg Config) *Coordinator {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	timeout := cfg.RefreshTimeout
	if timeout <= 0 {
		timeout = defaultRefreshTimeout
	}
	return &Coordinator{
		httpClient:     httpClient,
		baseURL:        cfg.BaseURL,
		refreshTimeout: timeout,
	}
}

// SetTokens installs a freshly obtained pair, e.g. after login.
func (c *Coordinator) SetTokens(accessToken, refreshToken string) {
	c.mu.Lock()
	c.accessToken = accessToken
	c.refreshToken = refreshToken
	c.mu.Unlock()
}

// AccessToken returns the currently held access token, if any.
func (c *Coordinator) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// Do sends the request with the current access token attached. On an
// expired-credential response it joins the (single-flight) refresh and
// retries the request once with the new token.
func (c *Coordinator) Do(req *http.Request) (*http.Response, error) {
	c.mu.Lock()
	access := c.accessToken
	c.mu.Unlock()

	resp, err := c.send(req, access)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// Expired credentials. Release the connection before queueing.
	drain(resp)

	outcome := c.awaitRefresh(req.Context())
	if outcome.err != nil {
		return nil, outcome.err
	}

	return c.send(req, outcome.accessToken)
}

func (c *Coordinator) send(req *http.Request, accessToken string) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	clone.Header.Set("X-Client-Type", "native")
	if accessToken != "" {
		clone.Header.Set("Authorization", "Bearer "+accessToken)
	}
	return c.httpClient.Do(clone)
}

// awaitRefresh enqueues the caller and, if the machine is Idle, becomes the
// one caller that fires the refresh.
func (c *Coordinator) awaitRefresh(ctx context.Context) refreshOutcome {
	ch := make(chan refreshOutcome, 1)

	c.mu.Lock()
	c.waiters = append(c.waiters, ch)
	if c.state == stateIdle {
		c.state = stateRefreshing
		refreshToken := c.refreshToken
		go c.runRefresh(refreshToken)
	}
	c.mu.Unlock()

	select {
	case outcome := <-ch:
		return outcome
	case <-ctx.Done():
		return refreshOutcome{err: ctx.Err()}
	}
}

// runRefresh performs the single refresh call and settles every waiter
// that accumulated while it was in flight.
func (c *Coordinator) runRefresh(refreshToken string) {
	var outcome refreshOutcome

	if refreshToken == "" {
		outcome.err = ErrNoRefreshToken
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), c.refreshTimeout)
		access, refresh, err := c.callRefresh(ctx, refreshToken)
		cancel()
		if err != nil {
			outcome.err = fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
		} else {
			outcome.accessToken = access
			c.mu.Lock()
			c.accessToken = access
			c.refreshToken = refresh
			c.mu.Unlock()
		}
	}

	c.mu.Lock()
	if outcome.err != nil {
		// Held credentials are dead; keeping them would just replay the
		// same failure.
		c.accessToken = ""
		c.refreshToken = ""
	}
	waiters := c.waiters
	c.waiters = nil
	c.state = stateIdle
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- outcome
	}
}

func (c *Coordinator) callRefresh(ctx context.Context, refreshToken string) (access, refresh string, err error) {
	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/refresh", bytes.NewReader(payload))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-Type", "native")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("refresh rejected with status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", "", err
	}
	if body.AccessToken == "" || body.RefreshToken == "" {
		return "", "", errors.New("refresh response missing tokens")
	}
	return body.AccessToken, body.RefreshToken, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
