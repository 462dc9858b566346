// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for vault binaries.
//
// Configuration is loaded from a single YAML file specified by:
//   - the VAULT_CONFIG environment variable, or
//   - the --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
//
// Secrets never live in the config file. The file carries addresses,
// paths, and timeouts; the bootstrap secrets (signing secret, project
// reference, service token) come from the deployment platform's
// environment, because they are the trust anchor the vault itself is
// opened with.
package config
