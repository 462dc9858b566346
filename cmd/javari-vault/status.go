// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/javari-foundation/vault/lib/config"
	"github.com/javari-foundation/vault/lib/manifest"
)

// runWarm resolves a set of secret names against the store and reports
// where each one lives. Services warm their own in-process caches at
// startup; this command is the preflight check that the names they
// will ask for actually resolve.
func runWarm(arguments []string) error {
	flags := pflag.NewFlagSet("warm", pflag.ExitOnError)
	manifestPath := flags.String("manifest", "", "JSONC warm manifest (default: warm_manifest from config)")
	if err := flags.Parse(arguments); err != nil {
		return err
	}

	client, _, cipher, err := clients()
	if err != nil {
		return err
	}
	defer cipher.Close()

	names := flags.Args()
	var requiredNames []string
	if len(names) == 0 {
		path := *manifestPath
		if path == "" {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			path = cfg.Client.WarmManifest
		}
		if path == "" {
			return fmt.Errorf("no names given and no warm manifest configured")
		}
		parsed, err := manifest.Load(path)
		if err != nil {
			return err
		}
		names = parsed.Names()
		requiredNames = parsed.RequiredNames()
	}

	report := client.Warm(context.Background(), names)
	fmt.Printf("warmed %d of %d secrets from the vault\n", len(report.FromVault), len(names))
	for _, name := range report.FromLegacy {
		fmt.Printf("  legacy:  %s (only in the process environment, not migrated)\n", name)
	}
	for _, name := range report.Missing {
		fmt.Printf("  missing: %s\n", name)
	}
	for _, name := range report.Failed {
		fmt.Printf("  failed:  %s (envelope would not decrypt)\n", name)
	}

	required := make(map[string]bool, len(requiredNames))
	for _, name := range requiredNames {
		required[name] = true
	}
	for _, name := range append(report.Missing, report.Failed...) {
		if required[name] {
			return fmt.Errorf("required secret %q did not resolve", name)
		}
	}
	return nil
}

// runStatus checks store health and summarizes the vault's contents.
func runStatus(arguments []string) error {
	flags := pflag.NewFlagSet("status", pflag.ExitOnError)
	if err := flags.Parse(arguments); err != nil {
		return err
	}

	_, store, cipher, err := clients()
	if err != nil {
		return err
	}
	defer cipher.Close()

	ctx := context.Background()
	if err := store.Healthy(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "store: unreachable (%v)\n", err)
		return fmt.Errorf("vault store is not healthy")
	}
	fmt.Println("store: ok")

	entries, err := store.List(ctx)
	if err != nil {
		return err
	}
	active := 0
	byCategory := make(map[string]int)
	for _, entry := range entries {
		if !entry.IsActive {
			continue
		}
		active++
		byCategory[entry.Category]++
	}
	fmt.Printf("secrets: %d active, %d total\n", active, len(entries))
	for category, count := range byCategory {
		fmt.Printf("  %s: %d\n", category, count)
	}
	return nil
}
