// councild runs the council HTTP/SSE API server: it wires together the
// Conversation Store, the Provider(s), the Orchestrator, and the Context
// Manager, then serves pkg/api until asked to stop.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/llmcouncil/pkg/api"
	"github.com/codeready-toolchain/llmcouncil/pkg/config"
	"github.com/codeready-toolchain/llmcouncil/pkg/contextmgr"
	"github.com/codeready-toolchain/llmcouncil/pkg/conversation"
	"github.com/codeready-toolchain/llmcouncil/pkg/council"
	"github.com/codeready-toolchain/llmcouncil/pkg/database"
	"github.com/codeready-toolchain/llmcouncil/pkg/provider"
	"github.com/codeready-toolchain/llmcouncil/pkg/storage/jsonstore"
	"github.com/codeready-toolchain/llmcouncil/pkg/storage/pgstore"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: could not load %s: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	ctx := context.Background()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}

	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize conversation store: %v", err)
	}
	defer closeStore()

	prov, listLocal, listRemote := newProvider(cfg)

	orchestrator := &council.Orchestrator{
		Provider:        prov,
		ListLocalModels: listLocal,
		ModelTimeout:    cfg.ModelTimeout,
		TitleTimeout:    cfg.TitleTimeout,
	}

	locks := conversation.NewLockRegistry()

	pool := contextmgr.NewPool(cfg.BackgroundPool.Workers, cfg.BackgroundPool.Backlog)
	defer pool.Stop()

	contextMgr := &contextmgr.Manager{
		Store:        store,
		Orchestrator: orchestrator,
		Locks:        locks,
		Pool:         pool,
	}

	configStore := config.NewFileStore(cfg.DataDir, config.DefaultCouncilConfig(cfg.Providers))

	server := api.NewServer(cfg, store, orchestrator, contextMgr, locks, configStore, listLocal, listRemote)

	log.Printf("Starting councild")
	log.Printf("HTTP address: %s", cfg.HTTPAddr)
	log.Printf("Config directory: %s", *configDir)
	log.Printf("Store backend: %s", cfg.StoreBackend)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		log.Fatalf("HTTP server error: %v", err)
	case <-sigCtx.Done():
		log.Printf("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("error during server shutdown", "error", err)
	}
}

// newStore constructs the Conversation Store Port implementation named by
// cfg.StoreBackend, returning a close func that releases its resources.
func newStore(ctx context.Context, cfg *config.Config) (conversation.Store, func(), error) {
	switch cfg.StoreBackend {
	case "postgres":
		dbCfg, err := database.LoadConfigFromEnv()
		if err != nil {
			return nil, nil, err
		}
		dbClient, err := database.NewClient(ctx, dbCfg)
		if err != nil {
			return nil, nil, err
		}
		return pgstore.New(dbClient.Pool), dbClient.Close, nil
	default:
		store, err := jsonstore.New(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

// newProvider wires a provider.Hybrid over the local and remote backends
// named by cfg.Providers, along with each backend's model-listing func
// (nil when that backend isn't configured) for GET /api/available-models.
func newProvider(cfg *config.Config) (provider.Provider, func(context.Context) ([]string, error), func(context.Context) ([]string, error)) {
	httpClient := &http.Client{Timeout: cfg.ModelTimeout}

	var local *provider.Local
	if cfg.Providers.LocalBaseURL != "" {
		local = provider.NewLocal(cfg.Providers.LocalBaseURL, cfg.Providers.LocalCLIPath, httpClient)
	}

	var remote *provider.Remote
	apiKey := os.Getenv(cfg.Providers.RemoteAPIKeyEnv)
	if cfg.Providers.RemoteBaseURL != "" && apiKey != "" {
		remote = provider.NewRemote(cfg.Providers.RemoteBaseURL, apiKey, httpClient)
	}

	var localProvider, remoteProvider provider.Provider
	var listLocal, listRemote func(context.Context) ([]string, error)
	if local != nil {
		localProvider = local
		listLocal = local.ListModels
	}
	if remote != nil {
		remoteProvider = remote
		listRemote = remote.ListModels
	}

	hybrid := provider.NewHybrid(localProvider, remoteProvider, nil)
	return hybrid, listLocal, listRemote
}
