// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

// Package manifest parses warm manifests: the operator-maintained list
// of secret names a deployment must have cached before it serves
// traffic. Manifests are JSONC (JSON with comments and trailing
// commas) so operators can annotate why each secret is listed.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/javari-foundation/vault/lib/vaultstore"
)

// FormatVersion is the manifest schema version this parser accepts.
const FormatVersion = 1

// Manifest is a parsed warm manifest.
type Manifest struct {
	Version int     `json:"version"`
	Secrets []Entry `json:"secrets"`
}

// Entry is one secret the deployment wants warmed.
type Entry struct {
	// Name is the secret name. Required, unique within the manifest.
	Name string `json:"name"`

	// Category is advisory metadata for status output. Optional; when
	// set it must be a known category.
	Category string `json:"category,omitempty"`

	// Required marks secrets whose absence should fail startup rather
	// than just be reported.
	Required bool `json:"required,omitempty"`
}

// Parse parses and validates JSONC manifest content.
func Parse(content []byte) (*Manifest, error) {
	var parsed Manifest
	if err := json.Unmarshal(jsonc.ToJSON(content), &parsed); err != nil {
		return nil, fmt.Errorf("manifest: parsing: %w", err)
	}
	if parsed.Version != FormatVersion {
		return nil, fmt.Errorf("manifest: unsupported version %d, support %d", parsed.Version, FormatVersion)
	}
	if len(parsed.Secrets) == 0 {
		return nil, fmt.Errorf("manifest: no secrets listed")
	}

	seen := make(map[string]bool, len(parsed.Secrets))
	for index, entry := range parsed.Secrets {
		if entry.Name == "" {
			return nil, fmt.Errorf("manifest: secrets[%d]: name is required", index)
		}
		if seen[entry.Name] {
			return nil, fmt.Errorf("manifest: duplicate secret %q", entry.Name)
		}
		seen[entry.Name] = true
		if entry.Category != "" && !vaultstore.ValidCategory(entry.Category) {
			return nil, fmt.Errorf("manifest: secret %q: unknown category %q", entry.Name, entry.Category)
		}
	}
	return &parsed, nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: reading %s: %w", path, err)
	}
	parsed, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("%w (in %s)", err, path)
	}
	return parsed, nil
}

// Names returns every secret name in manifest order.
func (m *Manifest) Names() []string {
	names := make([]string, len(m.Secrets))
	for index, entry := range m.Secrets {
		names[index] = entry.Name
	}
	return names
}

// RequiredNames returns the names marked required, in manifest order.
func (m *Manifest) RequiredNames() []string {
	var names []string
	for _, entry := range m.Secrets {
		if entry.Required {
			names = append(names, entry.Name)
		}
	}
	return names
}
