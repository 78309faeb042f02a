// internal/config/config.go
//
// Runtime configuration for the storefront client. Every user gets a state
// directory (default ~/.storefront) holding config.yaml, the persisted cart,
// the saved session token and the log file. Settings in config.yaml can be
// overridden per-invocation through environment variables.

package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// StateDirName is the directory created under the user's home dir.
	StateDirName = ".storefront"

	// EnvStateDir overrides where the state directory lives.
	EnvStateDir = "STOREFRONT_HOME"
)

const defaultConfigYAML = `# storefront client configuration
# Environment variables override these values, see README for the full list.

log_level: info

gateway:
  base_url: http://localhost:8888
  timeout: 30s

keycloak:
  base_url: http://localhost:8080
  realm: ecommerce-realm
  client_id: ecommerce-client
  redirect_port: 9777

session:
  refresh_margin: 30s
  refresh_interval: 60s
`

// GatewayConfig points the API client at the backend gateway.
type GatewayConfig struct {
	BaseURL string        `yaml:"base_url" env:"STOREFRONT_GATEWAY_URL, overwrite"`
	Timeout time.Duration `yaml:"timeout" env:"STOREFRONT_GATEWAY_TIMEOUT, overwrite"`
}

// KeycloakConfig describes the identity provider realm the client logs into.
type KeycloakConfig struct {
	BaseURL  string `yaml:"base_url" env:"STOREFRONT_KEYCLOAK_URL, overwrite"`
	Realm    string `yaml:"realm" env:"STOREFRONT_KEYCLOAK_REALM, overwrite"`
	ClientID string `yaml:"client_id" env:"STOREFRONT_KEYCLOAK_CLIENT_ID, overwrite"`

	// RedirectPort is the loopback port the login flow listens on for the
	// authorization-code redirect.
	RedirectPort int `yaml:"redirect_port" env:"STOREFRONT_REDIRECT_PORT, overwrite"`
}

// SessionConfig tunes token refresh behaviour.
type SessionConfig struct {
	// RefreshMargin is how close to expiry a token may get before Token()
	// refreshes it instead of returning it.
	RefreshMargin time.Duration `yaml:"refresh_margin" env:"STOREFRONT_REFRESH_MARGIN, overwrite"`

	// RefreshInterval is the cadence of the background refresh task.
	RefreshInterval time.Duration `yaml:"refresh_interval" env:"STOREFRONT_REFRESH_INTERVAL, overwrite"`
}

// Config holds the resolved runtime configuration.
type Config struct {
	// StateDir is where config, cart, token and logs live. Not persisted to
	// the YAML file since the file lives inside it.
	StateDir string `yaml:"-"`

	LogLevel string `yaml:"log_level" env:"STOREFRONT_LOG_LEVEL, overwrite"`

	Gateway  GatewayConfig  `yaml:"gateway"`
	Keycloak KeycloakConfig `yaml:"keycloak"`
	Session  SessionConfig  `yaml:"session"`
}

// DefaultStateDir resolves the state directory: $STOREFRONT_HOME when set,
// otherwise ~/.storefront.
func DefaultStateDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(EnvStateDir)); dir != "" {
		return filepath.Clean(dir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home dir: %w", err)
	}
	return filepath.Join(home, StateDirName), nil
}

// InitStateDir creates the state directory structure and seeds a commented
// config.yaml on first run.
func InitStateDir(stateDir string) error {
	dirs := []string{
		stateDir,
		filepath.Join(stateDir, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: ensure state dir: %w", err)
		}
	}
	return ensureConfigFile(filepath.Join(stateDir, "config.yaml"))
}

// Load builds the configuration for the given state directory: defaults,
// then the optional config.yaml layer, then environment overrides.
func Load(ctx context.Context, stateDir string) (*Config, error) {
	if strings.TrimSpace(stateDir) == "" {
		resolved, err := DefaultStateDir()
		if err != nil {
			return nil, err
		}
		stateDir = resolved
	}

	cfg := defaults()
	cfg.StateDir = filepath.Clean(stateDir)

	if err := cfg.loadFile(); err != nil {
		return nil, err
	}
	if err := envconfig.Process(ctx, cfg); err != nil {
		return nil, fmt.Errorf("config: environment overrides: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		LogLevel: "info",
		Gateway: GatewayConfig{
			BaseURL: "http://localhost:8888",
			Timeout: 30 * time.Second,
		},
		Keycloak: KeycloakConfig{
			BaseURL:      "http://localhost:8080",
			Realm:        "ecommerce-realm",
			ClientID:     "ecommerce-client",
			RedirectPort: 9777,
		},
		Session: SessionConfig{
			RefreshMargin:   30 * time.Second,
			RefreshInterval: 60 * time.Second,
		},
	}
}

// ConfigPath returns the on-disk location of the YAML config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.StateDir, "config.yaml")
}

// CartPath returns the file backing the persisted cart.
func (c *Config) CartPath() string {
	return filepath.Join(c.StateDir, "cart.json")
}

// TokenPath returns the file holding the saved session token.
func (c *Config) TokenPath() string {
	return filepath.Join(c.StateDir, "session.json")
}

// LogPath returns the log file consumed by the TUI log panel.
func (c *Config) LogPath() string {
	return filepath.Join(c.StateDir, "logs", "storefront.log")
}

// IssuerURL returns the Keycloak realm issuer, e.g.
// http://localhost:8080/realms/ecommerce-realm.
func (c *Config) IssuerURL() string {
	return fmt.Sprintf("%s/realms/%s", c.Keycloak.BaseURL, c.Keycloak.Realm)
}

// RedirectURL returns the loopback redirect URI registered for the client.
func (c *Config) RedirectURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d/callback", c.Keycloak.RedirectPort)
}

// Save persists the current configuration back to config.yaml.
func (c *Config) Save() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.normalize()
	if err := c.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.StateDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure state dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("config: write config: %w", err)
	}
	return nil
}

func (c *Config) loadFile() error {
	path := c.ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) normalize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.Gateway.BaseURL = trimBaseURL(c.Gateway.BaseURL)
	c.Keycloak.BaseURL = trimBaseURL(c.Keycloak.BaseURL)
	c.Keycloak.Realm = strings.TrimSpace(c.Keycloak.Realm)
	c.Keycloak.ClientID = strings.TrimSpace(c.Keycloak.ClientID)
	if c.Gateway.Timeout <= 0 {
		c.Gateway.Timeout = 30 * time.Second
	}
	if c.Session.RefreshMargin <= 0 {
		c.Session.RefreshMargin = 30 * time.Second
	}
	if c.Session.RefreshInterval <= 0 {
		c.Session.RefreshInterval = 60 * time.Second
	}
}

func (c *Config) validate() error {
	if err := validBaseURL(c.Gateway.BaseURL); err != nil {
		return fmt.Errorf("gateway.base_url: %w", err)
	}
	if err := validBaseURL(c.Keycloak.BaseURL); err != nil {
		return fmt.Errorf("keycloak.base_url: %w", err)
	}
	if c.Keycloak.Realm == "" {
		return fmt.Errorf("keycloak.realm is required")
	}
	if c.Keycloak.ClientID == "" {
		return fmt.Errorf("keycloak.client_id is required")
	}
	if c.Keycloak.RedirectPort < 1 || c.Keycloak.RedirectPort > 65535 {
		return fmt.Errorf("keycloak.redirect_port must be a valid TCP port")
	}
	return nil
}

func trimBaseURL(value string) string {
	return strings.TrimRight(strings.TrimSpace(value), "/")
}

func validBaseURL(value string) error {
	if value == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must be an http(s) URL")
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

func ensureConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
