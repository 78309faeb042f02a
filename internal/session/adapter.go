// internal/session/adapter.go
//
// The auth session adapter presents a normalized view of authentication
// state over the external identity client. Lifecycle:
//
//	UNINITIALIZED -> INITIALIZING -> {AUTHENTICATED, ANONYMOUS}
//
// From AUTHENTICATED a background task periodically refreshes the token;
// refresh failure drops the session back to ANONYMOUS and surfaces
// ErrAuthenticationRequired to callers awaiting a token.
//
// Unlike the cart store, the adapter is shared between the TUI loop and the
// refresh goroutine, so its state is mutex-guarded.

package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sieger/storefront/internal/catalog"
)

// IdentityClient is the external identity provider surface the adapter
// wraps. The Keycloak implementation lives in keycloak.go; tests substitute
// a stub.
type IdentityClient interface {
	// Login runs the interactive redirect-based login flow and returns the
	// resulting token.
	Login(ctx context.Context) (*Token, error)
	// Refresh exchanges a refresh token for a fresh token pair.
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
	// EndSession invalidates the session at the provider.
	EndSession(ctx context.Context, refreshToken string) error
}

// AdapterOption customizes adapter construction for tests.
type AdapterOption func(*Adapter)

// WithClock overrides the adapter's time source.
func WithClock(now func() time.Time) AdapterOption {
	return func(a *Adapter) {
		if now != nil {
			a.now = now
		}
	}
}

// Adapter owns the token, the user profile and the refresh task.
type Adapter struct {
	identity IdentityClient
	tokens   TokenStore
	margin   time.Duration
	log      zerolog.Logger
	now      func() time.Time

	mu    sync.Mutex
	state State
	token *Token
	user  User
	roles []string

	refreshStop chan struct{}
	refreshWG   sync.WaitGroup
}

// NewAdapter wires the adapter over an identity client and token store.
// margin is how close to expiry a token may get before Token refreshes it.
func NewAdapter(identity IdentityClient, tokens TokenStore, margin time.Duration, log zerolog.Logger, opts ...AdapterOption) *Adapter {
	if margin <= 0 {
		margin = 30 * time.Second
	}
	a := &Adapter{
		identity: identity,
		tokens:   tokens,
		margin:   margin,
		log:      log,
		now:      time.Now,
		state:    StateUninitialized,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Initialize loads any persisted session and resolves to AUTHENTICATED or
// ANONYMOUS. A stale persisted token gets one refresh attempt; failure means
// ANONYMOUS, not an error.
func (a *Adapter) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateUninitialized {
		return fmt.Errorf("session: adapter already initialized (state %s)", a.state)
	}
	a.state = StateInitializing

	var token *Token
	if a.tokens != nil {
		loaded, err := a.tokens.Load()
		if err != nil {
			a.log.Warn().Err(err).Msg("failed to load persisted session")
		} else {
			token = loaded
		}
	}
	if token == nil {
		a.becomeAnonymousLocked("no persisted session")
		return nil
	}

	if token.ExpiresWithin(a.margin, a.now()) {
		refreshed, err := a.refreshTokenLocked(ctx, token)
		if err != nil {
			a.becomeAnonymousLocked("persisted session expired")
			return nil
		}
		token = refreshed
	}

	if err := a.adoptLocked(token); err != nil {
		a.becomeAnonymousLocked("persisted token unreadable")
		return nil
	}
	a.log.Info().Str("user", a.user.Username).Msg("session restored")
	return nil
}

// Login runs the identity client's interactive flow and adopts the result.
func (a *Adapter) Login(ctx context.Context) error {
	a.log.Info().Msg("login initiated")
	token, err := a.identity.Login(ctx)
	if err != nil {
		return fmt.Errorf("session: login: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.adoptLocked(token); err != nil {
		return err
	}
	a.log.Info().Str("user", a.user.Username).Strs("roles", a.roles).Msg("login complete")
	return nil
}

// Logout ends the provider session (best effort) and clears local state.
func (a *Adapter) Logout(ctx context.Context) {
	a.mu.Lock()
	token := a.token
	a.clearLocked()
	a.mu.Unlock()

	if token != nil && token.RefreshToken != "" {
		if err := a.identity.EndSession(ctx, token.RefreshToken); err != nil {
			a.log.Warn().Err(err).Msg("provider logout failed")
		}
	}
	a.log.Info().Msg("logged out")
}

// Token returns a currently valid access token, refreshing first when the
// held one is inside the expiry margin. Returns ErrAuthenticationRequired
// when no valid token can be produced.
func (a *Adapter) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateAuthenticated || a.token == nil {
		return "", ErrAuthenticationRequired
	}
	if !a.token.ExpiresWithin(a.margin, a.now()) {
		return a.token.AccessToken, nil
	}
	return a.refreshLocked(ctx)
}

// Refresh forces a token refresh regardless of expiry, used by the API
// client after a 401.
func (a *Adapter) Refresh(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateAuthenticated || a.token == nil {
		return "", ErrAuthenticationRequired
	}
	return a.refreshLocked(ctx)
}

// State returns the current lifecycle state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Authenticated reports whether a session is active.
func (a *Adapter) Authenticated() bool {
	return a.State() == StateAuthenticated
}

// User returns the current profile; zero value when anonymous.
func (a *Adapter) User() User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user
}

// Roles returns a copy of the current role list. Empty unless authenticated.
func (a *Adapter) Roles() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	roles := make([]string, len(a.roles))
	copy(roles, a.roles)
	return roles
}

// HasRole reports whether the session carries the role.
func (a *Adapter) HasRole(role string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return catalog.HasRole(a.roles, role)
}

// HasAnyRole reports whether the session carries at least one of the roles.
func (a *Adapter) HasAnyRole(roles ...string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return catalog.HasAnyRole(a.roles, roles...)
}

// StartAutoRefresh launches the periodic refresh task. Idempotent; the task
// is torn down by StopAutoRefresh. Overlap with foreground refreshes is safe
// because every path re-checks expiry under the lock.
func (a *Adapter) StartAutoRefresh(interval time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.refreshStop != nil {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	stop := make(chan struct{})
	a.refreshStop = stop
	a.refreshWG.Add(1)
	go func() {
		defer a.refreshWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				a.backgroundRefresh()
			}
		}
	}()
}

// StopAutoRefresh cancels the refresh task and waits for it to exit.
func (a *Adapter) StopAutoRefresh() {
	a.mu.Lock()
	stop := a.refreshStop
	a.refreshStop = nil
	a.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	a.refreshWG.Wait()
}

func (a *Adapter) backgroundRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateAuthenticated || a.token == nil {
		return
	}
	if !a.token.ExpiresWithin(a.margin, a.now()) {
		return
	}
	if _, err := a.refreshLocked(ctx); err != nil {
		a.log.Warn().Err(err).Msg("background token refresh failed")
	}
}

// refreshLocked refreshes the held token. Failure tears the session down to
// ANONYMOUS and returns ErrAuthenticationRequired.
func (a *Adapter) refreshLocked(ctx context.Context) (string, error) {
	refreshed, err := a.refreshTokenLocked(ctx, a.token)
	if err != nil {
		a.log.Warn().Err(err).Msg("token refresh failed")
		a.clearLocked()
		return "", fmt.Errorf("%w: %v", ErrAuthenticationRequired, err)
	}
	if err := a.adoptLocked(refreshed); err != nil {
		a.clearLocked()
		return "", fmt.Errorf("%w: %v", ErrAuthenticationRequired, err)
	}
	a.log.Debug().Msg("token refreshed")
	return refreshed.AccessToken, nil
}

func (a *Adapter) refreshTokenLocked(ctx context.Context, token *Token) (*Token, error) {
	if token == nil || token.RefreshToken == "" {
		return nil, fmt.Errorf("session: no refresh token held")
	}
	return a.identity.Refresh(ctx, token.RefreshToken)
}

// adoptLocked installs a token: extracts identity, flips to AUTHENTICATED
// and mirrors the token to the store. Persistence failures are logged only.
func (a *Adapter) adoptLocked(token *Token) error {
	user, roles, err := extractIdentity(token.AccessToken)
	if err != nil {
		return err
	}
	a.token = token
	a.user = user
	a.roles = roles
	a.state = StateAuthenticated
	if a.tokens != nil {
		if err := a.tokens.Save(token); err != nil {
			a.log.Error().Err(err).Msg("failed to persist session token")
		}
	}
	return nil
}

func (a *Adapter) becomeAnonymousLocked(reason string) {
	a.state = StateAnonymous
	a.token = nil
	a.user = User{}
	a.roles = nil
	a.log.Info().Str("reason", reason).Msg("session anonymous")
}

// clearLocked wipes local session state and the persisted token.
func (a *Adapter) clearLocked() {
	a.state = StateAnonymous
	a.token = nil
	a.user = User{}
	a.roles = nil
	if a.tokens != nil {
		if err := a.tokens.Clear(); err != nil {
			a.log.Warn().Err(err).Msg("failed to clear persisted session")
		}
	}
}
