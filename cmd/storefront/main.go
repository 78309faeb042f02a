// cmd/storefront/main.go
//
// This is the entry point for the storefront terminal client.
//
// Flow:
// 1. Resolve the state directory (~/.storefront by default) and seed it
// 2. Load configuration (defaults, config.yaml, environment overrides)
// 3. Wire the session adapter, API client, services and cart
// 4. Run the TUI until the user quits

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sieger/storefront/internal/api"
	"github.com/sieger/storefront/internal/cart"
	"github.com/sieger/storefront/internal/config"
	"github.com/sieger/storefront/internal/logging"
	"github.com/sieger/storefront/internal/services"
	"github.com/sieger/storefront/internal/session"
	"github.com/sieger/storefront/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "storefront: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	defaultDir, err := config.DefaultStateDir()
	if err != nil {
		return fmt.Errorf("resolve state dir: %w", err)
	}
	stateDir := flag.String("state-dir", defaultDir, "directory for config, cart and session state")
	flag.Parse()

	if err := config.InitStateDir(*stateDir); err != nil {
		return fmt.Errorf("init state dir: %w", err)
	}

	ctx := context.Background()
	cfg, err := config.Load(ctx, *stateDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Path: cfg.LogPath()})
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer log.Close()
	log.Z().Info().Str("state_dir", cfg.StateDir).Msg("storefront starting")

	identity, err := session.NewKeycloakClient(
		cfg.IssuerURL(),
		cfg.Keycloak.ClientID,
		cfg.RedirectURL(),
		log.With("keycloak"),
	)
	if err != nil {
		return fmt.Errorf("identity client: %w", err)
	}

	tokens := session.NewFileTokenStore(cfg.TokenPath())
	adapter := session.NewAdapter(identity, tokens, cfg.Session.RefreshMargin, log.With("session"))
	if err := adapter.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize session: %w", err)
	}
	adapter.StartAutoRefresh(cfg.Session.RefreshInterval)
	defer adapter.StopAutoRefresh()

	client := api.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Timeout, adapter, log.With("api"))
	store := cart.NewStore(cart.NewFileStorage(cfg.CartPath()), log.With("cart"))

	app := tui.NewApp(
		services.NewProducts(client),
		services.NewOrders(client),
		adapter,
		store,
		log,
	)
	program := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	log.Z().Info().Msg("storefront exiting")
	return nil
}
