// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/javari-foundation/vault/lib/escrow"
	"github.com/javari-foundation/vault/lib/guard"
	"github.com/javari-foundation/vault/lib/vault"
)

// runExport decrypts every active secret and seals the lot into an
// age-encrypted escrow bundle. The bundle is the disaster-recovery
// artifact: it opens with a recipient's private key in any
// environment, independent of this deployment's bootstrap material.
func runExport(arguments []string) error {
	flags := pflag.NewFlagSet("export", pflag.ExitOnError)
	recipients := flags.StringSlice("recipient", nil, "age public key to encrypt to (repeatable, required)")
	outPath := flags.String("out", "", "write the bundle to this file (default: stdout)")
	compressionName := flags.String("compression", "zstd", "bundle compression (zstd, lz4, none)")
	if err := flags.Parse(arguments); err != nil {
		return err
	}
	if len(*recipients) == 0 {
		return fmt.Errorf("at least one --recipient is required")
	}
	for _, recipient := range *recipients {
		if err := escrow.ValidateRecipient(recipient); err != nil {
			return err
		}
	}
	compression, err := escrow.ParseCompression(*compressionName)
	if err != nil {
		return err
	}

	client, store, cipher, err := clients()
	if err != nil {
		return err
	}
	defer cipher.Close()

	ctx := context.Background()
	secrets, err := store.List(ctx)
	if err != nil {
		return err
	}

	var entries []escrow.Entry
	for _, secret := range secrets {
		if !secret.IsActive {
			continue
		}
		value, err := client.Get(ctx, secret.Name)
		if err != nil {
			return fmt.Errorf("exporting %q: %w", secret.Name, err)
		}
		if value == "" {
			return fmt.Errorf("exporting %q: secret did not resolve", secret.Name)
		}
		entries = append(entries, escrow.Entry{
			Name:            secret.Name,
			Value:           value,
			Category:        secret.Category,
			RotationVersion: secret.RotationVersion,
			Notes:           secret.Notes,
		})
	}
	if len(entries) == 0 {
		return fmt.Errorf("no active secrets to export")
	}

	bundle, err := escrow.Seal(entries, time.Now(), *recipients, compression)
	if err != nil {
		return err
	}

	if *outPath == "" {
		fmt.Println(bundle)
	} else {
		if err := os.WriteFile(*outPath, []byte(bundle+"\n"), 0o600); err != nil {
			return fmt.Errorf("writing bundle: %w", err)
		}
	}
	fmt.Fprintf(os.Stderr, "exported %d secrets to %d recipient(s)\n", len(entries), len(*recipients))
	return nil
}

// runImport opens an escrow bundle and writes every entry through the
// store. Each entry gets a fresh envelope under this deployment's
// bootstrap material and a fresh audit row.
func runImport(arguments []string) error {
	flags := pflag.NewFlagSet("import", pflag.ExitOnError)
	identityFile := flags.String("identity-file", "", "file holding the age private key (required)")
	inPath := flags.String("in", "", "read the bundle from this file (default: stdin)")
	if err := flags.Parse(arguments); err != nil {
		return err
	}
	if *identityFile == "" {
		return fmt.Errorf("--identity-file is required")
	}

	identityContent, err := os.ReadFile(*identityFile)
	if err != nil {
		return fmt.Errorf("reading identity file: %w", err)
	}
	privateKey, err := guard.NewFromBytes([]byte(strings.TrimSpace(string(identityContent))))
	guard.Zero(identityContent)
	if err != nil {
		return err
	}
	defer privateKey.Close()

	var sealed []byte
	if *inPath == "" {
		sealed, err = io.ReadAll(os.Stdin)
	} else {
		sealed, err = os.ReadFile(*inPath)
	}
	if err != nil {
		return fmt.Errorf("reading bundle: %w", err)
	}

	bundle, err := escrow.Open(strings.TrimSpace(string(sealed)), privateKey)
	if err != nil {
		return err
	}

	client, _, cipher, err := clients()
	if err != nil {
		return err
	}
	defer cipher.Close()

	items := make([]vault.SetItem, 0, len(bundle.Entries))
	for _, entry := range bundle.Entries {
		items = append(items, vault.SetItem{
			Name:      entry.Name,
			Plaintext: entry.Value,
			Options: vault.SetOptions{
				Category: entry.Category,
				Notes:    entry.Notes,
			},
		})
	}

	results := client.SetBatch(context.Background(), items)
	imported := 0
	failed := 0
	for _, result := range results {
		if result.OK {
			imported++
			continue
		}
		failed++
		fmt.Fprintf(os.Stderr, "  failed: %s: %s\n", result.Name, result.Error)
	}
	fmt.Printf("imported %d of %d secrets (bundle created %s)\n",
		imported, len(results), bundle.CreatedAt.Format(time.RFC3339))
	if failed > 0 {
		return fmt.Errorf("%d secrets failed to import", failed)
	}
	return nil
}

// runKeygen generates an age keypair for escrow recipients. The public
// key goes to stdout, the private key to stderr so redirecting stdout
// into a recipients file cannot capture it.
func runKeygen() error {
	keypair, err := escrow.GenerateKeypair()
	if err != nil {
		return err
	}
	defer keypair.Close()

	fmt.Fprintf(os.Stderr, "# Private key (keep this secret, store securely):\n")
	fmt.Fprintf(os.Stderr, "%s\n", keypair.PrivateKey.String())
	fmt.Fprintf(os.Stdout, "%s\n", keypair.PublicKey)
	return nil
}
