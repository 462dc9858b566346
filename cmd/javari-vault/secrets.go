// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/javari-foundation/vault/lib/guard"
	"github.com/javari-foundation/vault/lib/vault"
	"github.com/javari-foundation/vault/lib/vaultstore"
)

// runGet resolves one secret and prints the plaintext to stdout. This
// is the one place the CLI deliberately emits a secret value; it is
// meant for shell substitution, e.g. export KEY="$(javari-vault get KEY)".
func runGet(arguments []string) error {
	flags := pflag.NewFlagSet("get", pflag.ExitOnError)
	bypassCache := flags.Bool("bypass-cache", false, "force a fresh fetch and decrypt")
	if err := flags.Parse(arguments); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("usage: javari-vault get [flags] <name>")
	}
	name := flags.Arg(0)

	client, _, cipher, err := clients()
	if err != nil {
		return err
	}
	defer cipher.Close()

	var options []vault.GetOption
	if *bypassCache {
		options = append(options, vault.BypassCache())
	}
	value, err := client.Get(context.Background(), name, options...)
	if err != nil {
		return err
	}
	if value == "" {
		return fmt.Errorf("secret %q not found", name)
	}
	fmt.Println(value)
	return nil
}

// runSet encrypts a value and writes it through the store. The value
// comes from --value-file, or an interactive prompt with terminal echo
// disabled. Secrets on the command line would land in shell history
// and process listings, so there is no --value flag.
func runSet(arguments []string) error {
	flags := pflag.NewFlagSet("set", pflag.ExitOnError)
	category := flags.String("category", "", "secret category ("+strings.Join(vaultstore.Categories, ", ")+")")
	notes := flags.String("notes", "", "free-form notes stored with the secret")
	valueFile := flags.String("value-file", "", "read the value from this file instead of prompting")
	if err := flags.Parse(arguments); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("usage: javari-vault set [flags] <name>")
	}
	name := flags.Arg(0)

	plaintext, err := readSecretValue(name, *valueFile)
	if err != nil {
		return err
	}
	defer plaintext.Close()

	client, _, cipher, err := clients()
	if err != nil {
		return err
	}
	defer cipher.Close()

	result, err := client.Set(context.Background(), name, plaintext.String(), vault.SetOptions{
		Category: *category,
		Notes:    *notes,
	})
	if err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("storing %q: %s", name, result.Error)
	}

	action := "created"
	if result.WasUpdate {
		action = "rotated"
	}
	fmt.Printf("%s %s (version %d, fingerprint %s, %s)\n",
		action, result.Name, result.RotationVersion, result.Fingerprint, result.MaskedValue)
	return nil
}

// readSecretValue reads the plaintext from a file or an interactive
// no-echo prompt, into guarded memory. A trailing newline is trimmed
// in both cases: every editor and echo appends one, and a secret with
// a meaningful trailing newline has bigger problems.
func readSecretValue(name, valueFile string) (*guard.Buffer, error) {
	if valueFile != "" {
		content, err := os.ReadFile(valueFile)
		if err != nil {
			return nil, fmt.Errorf("reading value file: %w", err)
		}
		trimmed := []byte(strings.TrimRight(string(content), "\r\n"))
		guard.Zero(content)
		return guard.NewFromBytes(trimmed)
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, fmt.Errorf("stdin is not a terminal; use --value-file")
	}
	fmt.Fprintf(os.Stderr, "Value for %s: ", name)
	line, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading value: %w", err)
	}
	return guard.NewFromBytes(line)
}

// runList prints secret metadata as a table. Masked values and
// fingerprints only.
func runList(arguments []string) error {
	flags := pflag.NewFlagSet("list", pflag.ExitOnError)
	showInactive := flags.Bool("all", false, "include deactivated secrets")
	if err := flags.Parse(arguments); err != nil {
		return err
	}

	_, store, cipher, err := clients()
	if err != nil {
		return err
	}
	defer cipher.Close()

	entries, err := store.List(context.Background())
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 2, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "NAME\tCATEGORY\tVALUE\tVERSION\tUPDATED BY\tUPDATED\tACCESS\tSTATUS")
	for _, entry := range entries {
		if !entry.IsActive && !*showInactive {
			continue
		}
		status := entry.ValidationStatus
		if !entry.IsActive {
			status = "inactive"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%d\t%s\t%s\t%d\t%s\n",
			entry.Name, entry.Category, entry.MaskedValue,
			entry.RotationVersion, entry.UpdatedBy,
			entry.UpdatedAt.Format("2006-01-02 15:04"),
			entry.AccessCount, status)
	}
	return writer.Flush()
}

// runAudit prints the audit log, newest first.
func runAudit(arguments []string) error {
	flags := pflag.NewFlagSet("audit", pflag.ExitOnError)
	name := flags.String("name", "", "only show rows for this secret")
	limit := flags.Int("limit", 50, "maximum rows to show")
	if err := flags.Parse(arguments); err != nil {
		return err
	}

	_, store, cipher, err := clients()
	if err != nil {
		return err
	}
	defer cipher.Close()

	records, err := store.Audit(context.Background(), *name, *limit)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 2, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "TIME\tSECRET\tACTION\tVERSION\tACTOR\tVALUE\tFINGERPRINT")
	for _, record := range records {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			record.Timestamp.Format("2006-01-02 15:04:05"),
			record.SecretName, record.Action, record.RotationVersion,
			record.Actor, record.MaskedValue, record.Fingerprint)
	}
	return writer.Flush()
}

// runDeactivate soft-deletes a secret.
func runDeactivate(arguments []string) error {
	flags := pflag.NewFlagSet("deactivate", pflag.ExitOnError)
	if err := flags.Parse(arguments); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("usage: javari-vault deactivate <name>")
	}
	name := flags.Arg(0)

	_, store, cipher, err := clients()
	if err != nil {
		return err
	}
	defer cipher.Close()

	if err := store.Deactivate(context.Background(), name); err != nil {
		return err
	}
	fmt.Printf("deactivated %s\n", name)
	return nil
}
