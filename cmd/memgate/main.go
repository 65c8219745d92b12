package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kinic-labs/memgate/internal/config"
	"github.com/kinic-labs/memgate/internal/embedding"
	"github.com/kinic-labs/memgate/internal/icp"
	"github.com/kinic-labs/memgate/internal/kinic"
	"github.com/kinic-labs/memgate/internal/router"
	"github.com/kinic-labs/memgate/internal/server"
	"github.com/kinic-labs/memgate/internal/storage"
	"github.com/kinic-labs/memgate/internal/storage/memory"
	"github.com/kinic-labs/memgate/internal/storage/postgres"
	"github.com/kinic-labs/memgate/internal/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (default: $MEMGATE_CONFIG)")
	flag.Parse()

	if *configPath != "" {
		os.Setenv("MEMGATE_CONFIG", *configPath)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gateway, err := buildRouter(cfg, store)
	if err != nil {
		log.Fatalf("Failed to assemble router: %v", err)
	}

	addr, _, err := server.Start(ctx, cfg, gateway)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("memgate listening at http://%s (storage engine: %s)", addr, cfg.Storage.Engine)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
}

// openStore selects the local emulation store per config. The memory
// engine is the default; sqlite and postgres opt into durability.
func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Engine {
	case "", "memory":
		return memory.NewStore(), nil
	case "sqlite":
		dsn := sqliteDSN(cfg.Storage.DataPath)
		if dsn != ":memory:" {
			if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
				return nil, fmt.Errorf("storage: failed to create data dir: %w", err)
			}
		}
		return sqlite.NewStore(dsn)
	case "postgres":
		if cfg.Storage.PostgresDSN == "" {
			return nil, fmt.Errorf("storage: postgres engine requires MEMGATE_POSTGRES_DSN")
		}
		return postgres.NewStore(cfg.Storage.PostgresDSN, embedding.Keyword)
	default:
		return nil, fmt.Errorf("storage: unknown engine %q", cfg.Storage.Engine)
	}
}

// sqliteDSN maps the configured data path to a DSN. An empty path keeps
// the store in-memory so nothing survives a restart; setting a path opts
// into a database file under it.
func sqliteDSN(dataPath string) string {
	if dataPath == "" {
		return ":memory:"
	}
	return dataPath + "/memgate.db"
}

// buildRouter wires the backend chain: direct canister queries, the SDK
// bridge, and the terminal local store.
func buildRouter(cfg *config.Config, store storage.Store) (*router.Router, error) {
	var remote router.Backend
	if cfg.ICP.CanisterID != "" {
		client, err := icp.NewClient(icp.Options{
			IdentityName: cfg.ICP.IdentityName,
			ICURL:        cfg.ICP.URL,
			QueryTimeout: cfg.ICP.QueryTimeout,
		})
		if err != nil {
			return nil, err
		}
		remote = router.NewRemoteBackend(client, cfg.ICP.CanisterID, embedding.Keyword)
	}

	var sdk router.Backend
	if cfg.Kinic.BridgeURL != "" {
		cache := kinic.NewCache(func(identity string, useIC bool) (kinic.Handle, error) {
			return kinic.NewHTTPHandle(cfg.Kinic.BridgeURL, identity, useIC)
		})
		sdk = router.NewSDKBackend(cache, cfg.Kinic.Identity, cfg.Kinic.UseIC)
	}

	return router.New(remote, sdk, router.NewLocalBackend(store)), nil
}
