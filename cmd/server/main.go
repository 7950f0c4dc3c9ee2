// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/passkeylab/go-passkey-rp/internal/config"
	"github.com/passkeylab/go-passkey-rp/internal/server"
)

var (
	// Version information (set during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	// Show version if requested
	if *showVersion {
		fmt.Printf("go-passkey-rp server\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Git Commit: %s\n", commit)
		fmt.Printf("  Built:      %s\n", date)
		os.Exit(0)
	}

	// Check for config file override via environment
	if envConfig := os.Getenv("PASSKEY_RP_CONFIG"); envConfig != "" && *configPath == "" {
		*configPath = envConfig
	}

	// Load configuration, falling back to the built-in development
	// defaults when no config file is given.
	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slog.Error("Failed to load configuration", slog.Any("error", err))
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	logger := server.NewLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		"config", *configPath,
		"version", version,
		"storage", cfg.Storage.Backend,
		"rp_id", cfg.RelyingParty.ID)

	// Create the server, connecting and migrating storage as needed
	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	srv, err := server.New(initCtx, cfg, logger)
	cancelInit()
	if err != nil {
		logger.Error("Failed to create server", slog.Any("error", err))
		os.Exit(1)
	}

	// Setup signal handler for graceful shutdown
	shutdownCtx := setupSignalHandler(logger)

	// Start the server in a goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errChan <- err
		}
	}()

	logger.Info("Server started", "addr", srv.Addr())

	// Wait for shutdown signal or error
	select {
	case <-shutdownCtx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		logger.Error("Server error", slog.Any("error", err))
	}

	// Gracefully shutdown
	shutdownTimeout, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Stop(shutdownTimeout); err != nil {
		logger.Error("Error during shutdown", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("Server stopped successfully")
}

// setupSignalHandler sets up signal handling for graceful shutdown
func setupSignalHandler(logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-signalCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	return ctx
}
