package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/sieger/storefront/internal/catalog"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func signedAccessToken(t *testing.T, username string, roles []string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":                "user-1",
		"preferred_username": username,
		"email":              username + "@example.com",
		"given_name":         "Ada",
		"family_name":        "Lovelace",
		"name":               "Ada Lovelace",
		"realm_access":       map[string]any{"roles": toAny(roles)},
		"exp":                testNow.Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

type stubIdentity struct {
	loginToken   *Token
	loginErr     error
	refreshed    *Token
	refreshErr   error
	refreshCalls int
	lastRefresh  string
	endCalls     int
}

func (s *stubIdentity) Login(context.Context) (*Token, error) {
	return s.loginToken, s.loginErr
}

func (s *stubIdentity) Refresh(_ context.Context, refreshToken string) (*Token, error) {
	s.refreshCalls++
	s.lastRefresh = refreshToken
	if s.refreshErr != nil {
		return nil, s.refreshErr
	}
	return s.refreshed, nil
}

func (s *stubIdentity) EndSession(context.Context, string) error {
	s.endCalls++
	return nil
}

func newTestAdapter(t *testing.T, identity IdentityClient, store TokenStore) *Adapter {
	t.Helper()
	return NewAdapter(identity, store, 30*time.Second, zerolog.Nop(), WithClock(func() time.Time { return testNow }))
}

func freshToken(t *testing.T, roles ...string) *Token {
	t.Helper()
	return &Token{
		AccessToken:  signedAccessToken(t, "ada", roles),
		RefreshToken: "refresh-1",
		Expiry:       testNow.Add(time.Hour),
	}
}

func TestInitializeWithoutSessionIsAnonymous(t *testing.T) {
	adapter := newTestAdapter(t, &stubIdentity{}, NewFileTokenStore(filepath.Join(t.TempDir(), "session.json")))
	if err := adapter.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if got := adapter.State(); got != StateAnonymous {
		t.Fatalf("state = %s, want anonymous", got)
	}
	if roles := adapter.Roles(); len(roles) != 0 {
		t.Fatalf("anonymous session must carry no roles, got %v", roles)
	}
}

func TestInitializeRestoresPersistedSession(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "session.json"))
	if err := store.Save(freshToken(t, catalog.RoleClient)); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	identity := &stubIdentity{}
	adapter := newTestAdapter(t, identity, store)
	if err := adapter.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if got := adapter.State(); got != StateAuthenticated {
		t.Fatalf("state = %s, want authenticated", got)
	}
	if identity.refreshCalls != 0 {
		t.Fatalf("fresh token must not trigger a refresh")
	}
	user := adapter.User()
	if user.Username != "ada" || user.Email != "ada@example.com" || user.FullName != "Ada Lovelace" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if !adapter.HasRole(catalog.RoleClient) || adapter.HasRole(catalog.RoleAdmin) {
		t.Fatalf("unexpected roles: %v", adapter.Roles())
	}
}

func TestInitializeRefreshesStaleSession(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "session.json"))
	stale := freshToken(t, catalog.RoleClient)
	stale.Expiry = testNow.Add(10 * time.Second) // inside the 30s margin
	if err := store.Save(stale); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	identity := &stubIdentity{refreshed: freshToken(t, catalog.RoleClient)}
	adapter := newTestAdapter(t, identity, store)
	if err := adapter.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if adapter.State() != StateAuthenticated {
		t.Fatalf("expected authenticated after refresh")
	}
	if identity.refreshCalls != 1 {
		t.Fatalf("refresh calls = %d, want 1", identity.refreshCalls)
	}
	if identity.lastRefresh != "refresh-1" {
		t.Fatalf("refresh used %q", identity.lastRefresh)
	}
}

func TestInitializeFailedRefreshFallsBackToAnonymous(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "session.json"))
	stale := freshToken(t)
	stale.Expiry = testNow.Add(-time.Minute)
	if err := store.Save(stale); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	identity := &stubIdentity{refreshErr: fmt.Errorf("session expired upstream")}
	adapter := newTestAdapter(t, identity, store)
	if err := adapter.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize must not error on stale session: %v", err)
	}
	if adapter.State() != StateAnonymous {
		t.Fatalf("expected anonymous after failed refresh, got %s", adapter.State())
	}
}

func TestTokenRefreshesInsideMargin(t *testing.T) {
	identity := &stubIdentity{
		loginToken: freshToken(t, catalog.RoleClient),
		refreshed:  freshToken(t, catalog.RoleClient),
	}
	// Held token expires in 10 seconds, margin is 30: Token must refresh.
	identity.loginToken.Expiry = testNow.Add(10 * time.Second)
	adapter := newTestAdapter(t, identity, nil)
	if err := adapter.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}

	token, err := adapter.Token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if identity.refreshCalls != 1 {
		t.Fatalf("refresh calls = %d, want exactly 1", identity.refreshCalls)
	}
	if token != identity.refreshed.AccessToken {
		t.Fatalf("expected refreshed access token")
	}

	// Refreshed token is fresh, the next read must not refresh again.
	if _, err := adapter.Token(context.Background()); err != nil {
		t.Fatalf("second token read: %v", err)
	}
	if identity.refreshCalls != 1 {
		t.Fatalf("fresh token must be returned without refresh, calls = %d", identity.refreshCalls)
	}
}

func TestTokenRefreshFailureRequiresReauth(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "session.json"))
	identity := &stubIdentity{loginToken: freshToken(t, catalog.RoleClient)}
	identity.loginToken.Expiry = testNow.Add(5 * time.Second)
	identity.refreshErr = fmt.Errorf("refresh grant rejected")
	adapter := newTestAdapter(t, identity, store)
	if err := adapter.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}

	_, err := adapter.Token(context.Background())
	if !errors.Is(err, ErrAuthenticationRequired) {
		t.Fatalf("expected ErrAuthenticationRequired, got %v", err)
	}
	if adapter.State() != StateAnonymous {
		t.Fatalf("failed refresh must drop to anonymous, got %s", adapter.State())
	}
	if roles := adapter.Roles(); len(roles) != 0 {
		t.Fatalf("roles must be cleared, got %v", roles)
	}
	// The persisted token is destroyed too.
	if saved, err := store.Load(); err != nil || saved != nil {
		t.Fatalf("expected cleared token store, got %+v, %v", saved, err)
	}
}

func TestTokenWhenAnonymous(t *testing.T) {
	adapter := newTestAdapter(t, &stubIdentity{}, nil)
	if err := adapter.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := adapter.Token(context.Background()); !errors.Is(err, ErrAuthenticationRequired) {
		t.Fatalf("expected ErrAuthenticationRequired, got %v", err)
	}
}

func TestLoginAdoptsAndPersists(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "session.json"))
	identity := &stubIdentity{loginToken: freshToken(t, catalog.RoleAdmin, catalog.RoleClient)}
	adapter := newTestAdapter(t, identity, store)
	if err := adapter.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}
	if !adapter.HasAnyRole(catalog.RoleAdmin) {
		t.Fatalf("expected admin role after login")
	}
	saved, err := store.Load()
	if err != nil || saved == nil {
		t.Fatalf("expected persisted token, got %v, %v", saved, err)
	}
	if saved.AccessToken != identity.loginToken.AccessToken {
		t.Fatalf("persisted token diverges from held token")
	}
}

func TestLogoutClearsEverything(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "session.json"))
	identity := &stubIdentity{loginToken: freshToken(t, catalog.RoleClient)}
	adapter := newTestAdapter(t, identity, store)
	if err := adapter.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}

	adapter.Logout(context.Background())
	if adapter.State() != StateAnonymous {
		t.Fatalf("expected anonymous after logout")
	}
	if identity.endCalls != 1 {
		t.Fatalf("provider logout calls = %d, want 1", identity.endCalls)
	}
	if saved, _ := store.Load(); saved != nil {
		t.Fatalf("persisted token must be removed on logout")
	}
	if adapter.User() != (User{}) {
		t.Fatalf("user must be cleared on logout")
	}
}

func TestAutoRefreshLifecycle(t *testing.T) {
	identity := &stubIdentity{loginToken: freshToken(t, catalog.RoleClient)}
	adapter := newTestAdapter(t, identity, nil)
	if err := adapter.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}
	adapter.StartAutoRefresh(10 * time.Millisecond)
	// Starting twice is a no-op, and the fresh token never triggers a grant.
	adapter.StartAutoRefresh(10 * time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	adapter.StopAutoRefresh()
	adapter.StopAutoRefresh()
	if identity.refreshCalls != 0 {
		t.Fatalf("fresh token must not be refreshed in background, calls = %d", identity.refreshCalls)
	}
}

func TestExtractIdentityRejectsGarbage(t *testing.T) {
	if _, _, err := extractIdentity("not-a-jwt"); err == nil {
		t.Fatalf("expected parse error")
	}
}
