// internal/session/keycloak.go
//
// Keycloak implementation of IdentityClient: authorization-code flow with
// PKCE through the system browser, with a one-shot loopback listener
// catching the redirect. Refresh and logout use the realm's standard
// OpenID Connect endpoints.

package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// BrowserOpener launches the user's browser at the given URL.
type BrowserOpener func(url string) error

// KeycloakClient drives the realm's OIDC endpoints.
type KeycloakClient struct {
	oauth       oauth2.Config
	logoutURL   string
	listenAddr  string
	callbackPth string
	openBrowser BrowserOpener
	httpClient  *http.Client
	log         zerolog.Logger
}

// KeycloakOption customizes the client, mainly for tests.
type KeycloakOption func(*KeycloakClient)

// WithBrowserOpener substitutes how the login URL is opened.
func WithBrowserOpener(open BrowserOpener) KeycloakOption {
	return func(k *KeycloakClient) {
		if open != nil {
			k.openBrowser = open
		}
	}
}

// WithHTTPClient substitutes the HTTP client used for token requests.
func WithHTTPClient(client *http.Client) KeycloakOption {
	return func(k *KeycloakClient) {
		if client != nil {
			k.httpClient = client
		}
	}
}

// NewKeycloakClient builds a client for one realm. issuerURL is the realm
// issuer (e.g. http://host:8080/realms/ecommerce-realm), redirectURL the
// registered loopback redirect URI.
func NewKeycloakClient(issuerURL, clientID, redirectURL string, log zerolog.Logger, opts ...KeycloakOption) (*KeycloakClient, error) {
	issuerURL = strings.TrimRight(strings.TrimSpace(issuerURL), "/")
	if issuerURL == "" || clientID == "" {
		return nil, fmt.Errorf("session: issuer URL and client id are required")
	}
	redirect, err := url.Parse(redirectURL)
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("session: invalid redirect URL %q", redirectURL)
	}

	k := &KeycloakClient{
		oauth: oauth2.Config{
			ClientID:    clientID,
			RedirectURL: redirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  issuerURL + "/protocol/openid-connect/auth",
				TokenURL: issuerURL + "/protocol/openid-connect/token",
			},
			Scopes: []string{"openid", "profile", "email"},
		},
		logoutURL:   issuerURL + "/protocol/openid-connect/logout",
		listenAddr:  redirect.Host,
		callbackPth: redirect.Path,
		openBrowser: openSystemBrowser,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		log:         log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(k)
		}
	}
	return k, nil
}

type callbackResult struct {
	code string
	err  error
}

// Login runs the authorization-code-with-PKCE flow: bind the loopback
// listener, open the browser at the consent URL, wait for the redirect,
// then exchange the code for tokens.
func (k *KeycloakClient) Login(ctx context.Context) (*Token, error) {
	state, err := randomState()
	if err != nil {
		return nil, err
	}
	verifier := oauth2.GenerateVerifier()

	listener, err := net.Listen("tcp", k.listenAddr)
	if err != nil {
		return nil, fmt.Errorf("session: bind redirect listener %s: %w", k.listenAddr, err)
	}

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(k.callbackPth, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if errCode := query.Get("error"); errCode != "" {
			http.Error(w, "Login failed. You can close this window.", http.StatusBadRequest)
			results <- callbackResult{err: fmt.Errorf("session: provider returned %s: %s", errCode, query.Get("error_description"))}
			return
		}
		if query.Get("state") != state {
			http.Error(w, "State mismatch. You can close this window.", http.StatusBadRequest)
			results <- callbackResult{err: fmt.Errorf("session: state mismatch in redirect")}
			return
		}
		fmt.Fprint(w, "Login complete. You can close this window and return to the terminal.")
		results <- callbackResult{code: query.Get("code")}
	})
	server := &http.Server{Handler: mux}
	go func() {
		_ = server.Serve(listener)
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	authURL := k.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	k.log.Info().Str("url", authURL).Msg("opening browser for login")
	if err := k.openBrowser(authURL); err != nil {
		k.log.Warn().Err(err).Msg("could not open browser; open the login URL manually")
	}

	var code string
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("session: login: %w", ctx.Err())
	case result := <-results:
		if result.err != nil {
			return nil, result.err
		}
		code = result.code
	}
	if code == "" {
		return nil, fmt.Errorf("session: redirect carried no authorization code")
	}

	tok, err := k.oauth.Exchange(k.withHTTPClient(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("session: exchange code: %w", err)
	}
	return fromOAuthToken(tok), nil
}

// Refresh exchanges a refresh token for a fresh token pair.
func (k *KeycloakClient) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("session: refresh token is empty")
	}
	source := k.oauth.TokenSource(k.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("session: refresh token grant: %w", err)
	}
	refreshed := fromOAuthToken(tok)
	if refreshed.RefreshToken == "" {
		// Keycloak may omit the refresh token when it is unchanged.
		refreshed.RefreshToken = refreshToken
	}
	return refreshed, nil
}

// EndSession performs RP-initiated logout against the realm.
func (k *KeycloakClient) EndSession(ctx context.Context, refreshToken string) error {
	form := url.Values{
		"client_id":     {k.oauth.ClientID},
		"refresh_token": {refreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.logoutURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("session: build logout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := k.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("session: logout request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("session: logout returned status %d", resp.StatusCode)
	}
	return nil
}

// withHTTPClient makes the oauth2 exchange use our HTTP client.
func (k *KeycloakClient) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, k.httpClient)
}

func fromOAuthToken(tok *oauth2.Token) *Token {
	return &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session: generate state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// openSystemBrowser launches the platform's default browser.
func openSystemBrowser(target string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", target).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", target).Start()
	default:
		return exec.Command("xdg-open", target).Start()
	}
}
