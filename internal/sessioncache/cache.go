// Package sessioncache is the boundary-facing session holder used by the
// portal client. It keeps the active token pair and derived identity in
// memory, mirrors them to a local file so a restart does not log the user
// out, and tells callers when the access token is close enough to expiry
// that a proactive refresh is due. Nothing in here is server-trusted; the
// signed tokens remain the only authority.
package sessioncache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yasminsalleh35-cyber/trusted-file-link/internal/auth"
)

// State is the session lifecycle position.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticating  State = "authenticating"
	StateActive          State = "active"
	StateRefreshing      State = "refreshing"
	StateExpired         State = "expired"
)

// DefaultRefreshWindow is the lead time before access expiry at which
// ExpiringSoon starts returning true.
const DefaultRefreshWindow = 60 * time.Second

// Manager is the server-side session orchestrator the cache drives.
// *auth.SessionService satisfies it.
type Manager interface {
	Login(ctx context.Context, email, password string) (auth.TokenPair, auth.Identity, error)
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, auth.Identity, error)
	Logout(ctx context.Context, refreshToken string) error
}

type persisted struct {
	Identity auth.Identity  `json:"identity"`
	Pair     auth.TokenPair `json:"pair"`
}

// Cache holds the current session for one client.
type Cache struct {
	mu       sync.Mutex
	state    State
	identity auth.Identity
	pair     auth.TokenPair
	now      func() time.Time
	path     string // empty disables persistence
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source (tests).
func WithClock(fn func() time.Time) Option {
	return func(c *Cache) {
		if fn != nil {
			c.now = fn
		}
	}
}

// WithFile enables the durable-but-local copy at path. The file is loaded
// eagerly; a missing or unreadable file just starts unauthenticated.
func WithFile(path string) Option {
	return func(c *Cache) { c.path = path }
}

// New constructs a Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		state: StateUnauthenticated,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.path != "" {
		c.load()
	}
	return c
}

// Current returns the identity of the active session, if any.
func (c *Cache) Current() (auth.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive && c.state != StateRefreshing {
		return auth.Identity{}, false
	}
	return c.identity, true
}

// Pair returns a copy of the stored token pair.
func (c *Cache) Pair() (auth.TokenPair, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive && c.state != StateRefreshing {
		return auth.TokenPair{}, false
	}
	return c.pair, true
}

// State returns the current lifecycle state.
func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AccessToken returns the bearer token to attach to the next request.
func (c *Cache) AccessToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive && c.state != StateRefreshing {
		return "", false
	}
	return c.pair.AccessToken, true
}

// ExpiringSoon reports whether less than window remains before the access
// token expires. A zero window uses DefaultRefreshWindow.
func (c *Cache) ExpiringSoon(now time.Time, window time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive && c.state != StateRefreshing {
		return false
	}
	if window <= 0 {
		window = DefaultRefreshWindow
	}
	return now.Add(window).After(c.pair.AccessExpiresAt)
}

// Set stores a fresh pair and identity and moves the session to Active.
func (c *Cache) Set(identity auth.Identity, pair auth.TokenPair) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = identity
	c.pair = pair
	c.state = StateActive
	c.persist()
}

// Clear forgets the session and removes the local copy.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = auth.Identity{}
	c.pair = auth.TokenPair{}
	c.state = StateUnauthenticated
	if c.path != "" {
		_ = os.Remove(c.path)
	}
}

// Login drives the manager through the Authenticating transition and
// stores the result.
func (c *Cache) Login(ctx context.Context, mgr Manager, email, password string) error {
	c.setState(StateAuthenticating)
	pair, identity, err := mgr.Login(ctx, email, password)
	if err != nil {
		c.setState(StateUnauthenticated)
		return err
	}
	c.Set(identity, pair)
	return nil
}

// Logout invalidates the refresh token server-side and clears the cache.
// Always succeeds locally.
func (c *Cache) Logout(ctx context.Context, mgr Manager) {
	if pair, ok := c.Pair(); ok {
		_ = mgr.Logout(ctx, pair.RefreshToken)
	}
	c.Clear()
}

// EnsureFresh refreshes the pair through the manager when the access token
// is inside the refresh window. A failed rotation whose token was revoked
// or expired moves the session to Expired, which requires a new login.
func (c *Cache) EnsureFresh(ctx context.Context, mgr Manager, window time.Duration) error {
	now := c.now()
	if !c.ExpiringSoon(now, window) {
		return nil
	}
	pair, ok := c.Pair()
	if !ok {
		return nil
	}
	c.setState(StateRefreshing)
	newPair, identity, err := mgr.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrUnavailable) {
			// Transient: keep the current pair and try again later.
			c.setState(StateActive)
			return err
		}
		c.mu.Lock()
		c.identity = auth.Identity{}
		c.pair = auth.TokenPair{}
		c.state = StateExpired
		if c.path != "" {
			_ = os.Remove(c.path)
		}
		c.mu.Unlock()
		return err
	}
	c.Set(identity, newPair)
	return nil
}

func (c *Cache) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// persist mirrors the session to disk. Caller holds the lock.
func (c *Cache) persist() {
	if c.path == "" {
		return
	}
	data, err := json.Marshal(persisted{Identity: c.identity, Pair: c.pair})
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return
	}
	_ = os.WriteFile(c.path, data, 0o600)
}

// load restores a previously persisted session. Tokens that are already
// past their refresh expiry are discarded.
func (c *Cache) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return
	}
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	if p.Pair.RefreshToken == "" || c.now().After(p.Pair.RefreshExpiresAt) {
		return
	}
	c.identity = p.Identity
	c.pair = p.Pair
	c.state = StateActive
}
