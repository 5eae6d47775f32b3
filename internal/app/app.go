// Package app wires the progression subsystems together and runs the HTTP
// server. main stays a thin shell around Run.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"craftgate/server/internal/guard"
	servernet "craftgate/server/internal/net"
	"craftgate/server/internal/progression"
	"craftgate/server/internal/store"
	"craftgate/server/internal/telemetry"
	"craftgate/server/logging"
	loggingSinks "craftgate/server/logging/sinks"
	"craftgate/server/progression/graph"
)

// Run starts the server and blocks until the context is cancelled or the
// listener fails.
func Run(ctx context.Context, cfg Config, logger telemetry.Logger) error {
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	logConfig := logging.DefaultConfig()
	logConfig.EnabledSinks = cfg.LogSinks
	sinks := make([]logging.NamedSink, 0, len(cfg.LogSinks))
	for _, name := range cfg.LogSinks {
		switch name {
		case "console":
			sinks = append(sinks, logging.NamedSink{
				Name: name,
				Sink: loggingSinks.NewConsoleSink(os.Stdout, logConfig.Console),
			})
		case "json":
			if err := os.MkdirAll(filepath.Dir(cfg.LogJSONPath), 0o755); err != nil {
				return fmt.Errorf("app: failed to create log directory: %w", err)
			}
			file, err := os.OpenFile(cfg.LogJSONPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("app: failed to open log file: %w", err)
			}
			sinks = append(sinks, logging.NamedSink{
				Name: name,
				Sink: loggingSinks.NewJSONSink(file, logConfig.JSON.FlushInterval),
			})
		default:
			logger.Printf("ignoring unknown log sink %q", name)
		}
	}

	router, err := logging.NewRouter(nil, logConfig, sinks)
	if err != nil {
		return fmt.Errorf("app: failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			logger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	graphStore, err := graph.Load(router, cfg.GraphPaths...)
	if err != nil {
		return fmt.Errorf("app: failed to load progression graph: %w", err)
	}
	for _, problem := range graphStore.Snapshot().Problems {
		logger.Printf("graph problem: %s %s", problem.Kind, problem.Detail)
	}

	players, err := store.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("app: failed to open player store: %w", err)
	}
	defer func() {
		if cerr := players.Close(); cerr != nil {
			logger.Printf("failed to close player store: %v", cerr)
		}
	}()

	managerCfg := progression.DefaultConfig()
	managerCfg.GlobalPermissionID = cfg.GlobalPermissionID
	managerCfg.CraftingExperienceEnabled = cfg.CraftingXPEnabled
	managerCfg.CraftingExperiencePerCraft = cfg.CraftingXPPerCraft
	managerCfg.RefundFraction = cfg.RefundFraction

	manager := progression.NewManager(managerCfg, graphStore, players, nil, router, logger)
	gatingGuard := guard.New(manager, router)

	handler := servernet.NewHTTPHandler(manager, gatingGuard, servernet.HTTPHandlerConfig{
		AdminToken: cfg.AdminToken,
	})

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: handler}
	logger.Printf("server listening on %s", srv.Addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("app: server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("app: shutdown failed: %w", err)
		}
		return nil
	}
}
