// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

// javari-vault-service is the privileged secret store. It owns the
// SQLite database of encrypted envelopes and the append-only audit
// log, and serves the /v1/* RPC surface that vault clients and the
// CLI talk to. It is the only process that reads encrypted_value.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/javari-foundation/vault/lib/clock"
	"github.com/javari-foundation/vault/lib/config"
	"github.com/javari-foundation/vault/lib/service"
	"github.com/javari-foundation/vault/lib/vaultstore"
	"github.com/javari-foundation/vault/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "javari-vault-service: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to the vault config file (default: $"+config.EnvVar+")")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		version.Print("javari-vault-service")
		return nil
	}

	logger := service.NewLogger()

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.ValidateStore(); err != nil {
		return err
	}

	token := os.Getenv(service.ServiceTokenEnv)
	if token == "" {
		return fmt.Errorf("%s is not set", service.ServiceTokenEnv)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	realClock := clock.Real()
	store, err := vaultstore.Open(vaultstore.Config{
		Path:   cfg.Store.DatabasePath,
		Clock:  realClock,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	vaultService := &VaultService{
		store:     store,
		token:     token,
		clock:     realClock,
		logger:    logger,
		startedAt: realClock.Now(),
	}

	server := service.NewHTTPServer(service.HTTPServerConfig{
		Address:         cfg.Store.ListenAddress,
		Handler:         vaultService.Handler(),
		ShutdownTimeout: cfg.Store.ShutdownTimeout.Std(),
		Logger:          logger,
	})

	logger.Info("vault store service starting",
		"address", cfg.Store.ListenAddress,
		"database", cfg.Store.DatabasePath)
	return server.Serve(ctx)
}
