// ABOUTME: Hub orchestrator wiring the registry, aggregator and relay behind one HTTP server
// ABOUTME: Manages listeners (TCP or Tailscale), store lifecycle and graceful shutdown

package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tailscale.com/tsnet"

	"github.com/2389/market-hub/internal/catalog"
	"github.com/2389/market-hub/internal/config"
	"github.com/2389/market-hub/internal/registry"
	"github.com/2389/market-hub/internal/relay"
	"github.com/2389/market-hub/internal/store"
)

// Hub orchestrates the market-hub server components: the store registry,
// the catalog aggregator, and the order relay, exposed over one HTTP API.
type Hub struct {
	config      *config.Config
	store       store.Store
	registry    *registry.Registry
	catalog     *catalog.Aggregator
	relay       *relay.Relay
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger
}

// initStore creates the persistence backend selected by config.
// MARKET_HUB_DATA_PATH overrides the configured path.
func initStore(cfg *config.Config) (store.Store, error) {
	path := cfg.Database.Path
	if envPath := os.Getenv("MARKET_HUB_DATA_PATH"); envPath != "" {
		path = envPath
	}

	switch cfg.Database.Driver {
	case "sqlite":
		s, err := store.NewSQLiteStore(path)
		if err != nil {
			return nil, fmt.Errorf("initializing sqlite store: %w", err)
		}
		return s, nil
	default:
		s, err := store.NewFileStore(path)
		if err != nil {
			return nil, fmt.Errorf("initializing file store: %w", err)
		}
		return s, nil
	}
}

// New creates a new Hub instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Hub, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	reg := registry.New(s, cfg.Stores.LivenessThreshold, logger)
	agg := catalog.New(s, reg, cfg.Stores.SyncTimeout, logger)
	rel := relay.New(s, reg, cfg.Stores.SyncTimeout, logger)

	h := &Hub{
		config:   cfg,
		store:    s,
		registry: reg,
		catalog:  agg,
		relay:    rel,
		logger:   logger.With("component", "hub"),
	}

	h.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           h.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return h, nil
}

// router builds the HTTP mux for the API surface.
func (h *Hub) router() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", h.handleHealth)
	mux.HandleFunc("/api/test", h.handleTest)

	mux.HandleFunc("/api/stores", h.handleListStores)
	mux.HandleFunc("/api/stores/", h.handleStoreRoutes)
	mux.HandleFunc("/api/debug/stores", h.handleDebugStores)

	mux.HandleFunc("/api/products", h.handleProducts)
	mux.HandleFunc("/api/categories", h.handleCategories)

	mux.HandleFunc("/api/orders", h.handleOrders)
	mux.HandleFunc("/api/orders/", h.handleOrderRoutes)

	mux.HandleFunc("/api/", h.handleAPINotFound)
	mux.HandleFunc("/", h.handleNotFound)

	return mux
}

// Handler exposes the HTTP handler, mainly for tests.
func (h *Hub) Handler() http.Handler {
	return h.httpServer.Handler
}

// setupListener creates the HTTP listener (Tailscale or TCP).
func (h *Hub) setupListener(ctx context.Context) (net.Listener, error) {
	if h.config.Tailscale.Enabled {
		return h.setupTailscaleListener(ctx)
	}

	h.logger.Info("starting hub", "http_addr", h.config.Server.HTTPAddr)
	ln, err := net.Listen("tcp", h.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "market-hub", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener brings up a tsnet node and listens on :80 so store
// fleets can reach the hub over a tailnet without a public address.
func (h *Hub) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := h.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	h.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	h.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := h.tsnetServer.Up(ctx)
	if err != nil {
		_ = h.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}

	var tsAddr string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	}
	h.logger.Info("tailscale node ready", "hostname", tsCfg.Hostname, "tailscale_ip", tsAddr)

	ln, err := h.tsnetServer.Listen("tcp", ":80")
	if err != nil {
		_ = h.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
	}
	return ln, nil
}

// Run starts the hub server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (h *Hub) Run(ctx context.Context) error {
	ln, err := h.setupListener(ctx)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := h.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		h.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		h.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := h.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (h *Hub) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server, waits for in-flight order forwards, and
// releases resources.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.logger.Info("shutting down hub")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", h.httpServer.Shutdown(ctx))

	h.relay.WaitForwards()

	if h.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", h.tsnetServer.Close())
	}
	errs = appendCloseError(errs, "store close", h.store.Close())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
