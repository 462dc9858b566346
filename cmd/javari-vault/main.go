// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

// javari-vault is the operator CLI for the secret authority: read,
// write, rotate, list, and audit secrets, warm caches, and move whole
// vaults between environments as escrow bundles.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/javari-foundation/vault/lib/config"
	"github.com/javari-foundation/vault/lib/envelope"
	"github.com/javari-foundation/vault/lib/service"
	"github.com/javari-foundation/vault/lib/storeclient"
	"github.com/javari-foundation/vault/lib/vault"
	"github.com/javari-foundation/vault/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// The CLI logs to stderr like the services, but at warn level:
	// command output on stdout is the interface, logs are diagnostics.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		printUsage()
		return fmt.Errorf("subcommand required")
	}

	subcommand := os.Args[1]
	arguments := os.Args[2:]
	switch subcommand {
	case "get":
		return runGet(arguments)
	case "set":
		return runSet(arguments)
	case "list":
		return runList(arguments)
	case "audit":
		return runAudit(arguments)
	case "deactivate":
		return runDeactivate(arguments)
	case "warm":
		return runWarm(arguments)
	case "status":
		return runStatus(arguments)
	case "export":
		return runExport(arguments)
	case "import":
		return runImport(arguments)
	case "keygen":
		return runKeygen()
	case "version":
		version.Print("javari-vault")
		return nil
	case "-h", "--help", "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown subcommand: %q", subcommand)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: javari-vault <subcommand> [flags]

Subcommands:
  get         Resolve a secret and print its value
  set         Encrypt and store a secret
  list        List secret metadata (masked values, never plaintext)
  audit       Show the audit log
  deactivate  Soft-delete a secret
  warm        Warm the store and report which secrets resolve
  status      Show store health and secret counts
  export      Export all secrets as an age-encrypted escrow bundle
  import      Import an escrow bundle
  keygen      Generate an age keypair for escrow recipients
  version     Print version information

Run 'javari-vault <subcommand> --help' for subcommand flags.
`)
}

// clients builds the store client and the vault client from the
// environment: VAULT_CONFIG for settings, VAULT_SERVICE_TOKEN for the
// store credential, and the two bootstrap variables for crypto.
func clients() (*vault.Client, *storeclient.Client, *envelope.Cipher, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cfg.ValidateClient(); err != nil {
		return nil, nil, nil, err
	}

	token := os.Getenv(service.ServiceTokenEnv)
	if token == "" {
		return nil, nil, nil, fmt.Errorf("%s is not set", service.ServiceTokenEnv)
	}

	store, err := storeclient.New(storeclient.Config{
		BaseURL: cfg.Client.StoreURL,
		Token:   token,
		Timeout: cfg.Client.RequestTimeout.Std(),
	})
	if err != nil {
		return nil, nil, nil, err
	}

	cipher, err := envelope.NewFromEnv()
	if err != nil {
		return nil, nil, nil, err
	}

	client, err := vault.New(vault.Config{
		Store:    store,
		Cipher:   cipher,
		CacheTTL: cfg.Client.CacheTTL.Std(),
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return client, store, cipher, nil
}
