package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/sonatura/ytms/internal/auth"
	"github.com/sonatura/ytms/internal/innertube"
	"github.com/sonatura/ytms/internal/session"
	"github.com/sonatura/ytms/internal/shared"
	"github.com/sonatura/ytms/internal/store"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	ctx := context.Background()

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	httpClient := http.DefaultClient

	var kv store.Store
	if s, err := store.OpenSQLiteStore(config.Storage.Path, config.Storage.MaxOpenConns, config.Storage.MaxIdleConns); err == nil {
		defer s.Close()
		kv = s
	} else {
		logger.Warnf("storage unavailable, running without persistence: %v", err)
		kv = store.NewMemoryStore()
	}

	authManager := auth.NewManager(auth.ManagerOpts{
		Config:     config.OAuth,
		Store:      kv,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	authManager.Load(ctx)

	client := innertube.NewClient(innertube.ClientOpts{
		HTTPClient: httpClient,
		Logger:     logger,
		Provider:   config.Provider,
	})

	sessions := session.NewManager(session.ManagerOpts{
		Store:      kv,
		HTTPClient: client.HTTP(),
		Logger:     logger,
	})

	runner := NewRunner(RunnerOpts{
		Config:     config,
		Store:      kv,
		Auth:       authManager,
		Client:     client,
		Sessions:   sessions,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "ytms",
		Usage:    "Search YouTube Music and resolve playable audio streams",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(ctx, os.Args); err != nil {
		err_ := errors.Unwrap(err)
		if errors.Is(err_, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}
