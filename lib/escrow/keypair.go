// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

package escrow

import (
	"fmt"

	"filippo.io/age"

	"github.com/javari-foundation/vault/lib/guard"
)

// Keypair holds an age x25519 keypair. The private key lives in a
// guard.Buffer; the public key is a plain string, safe to publish and
// to pass to Seal as a recipient.
type Keypair struct {
	PrivateKey *guard.Buffer
	PublicKey  string
}

// Close releases the private key memory. Idempotent.
func (k *Keypair) Close() error {
	if k.PrivateKey != nil {
		return k.PrivateKey.Close()
	}
	return nil
}

// GenerateKeypair creates a fresh age x25519 keypair for escrow
// recipients. The caller must Close the result.
func GenerateKeypair() (*Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("escrow: generating keypair: %w", err)
	}

	privateKey, err := guard.NewFromBytes([]byte(identity.String()))
	if err != nil {
		return nil, fmt.Errorf("escrow: protecting private key: %w", err)
	}
	return &Keypair{
		PrivateKey: privateKey,
		PublicKey:  identity.Recipient().String(),
	}, nil
}

// ValidateRecipient checks that publicKey parses as an age x25519
// public key before it is trusted as an escrow recipient.
func ValidateRecipient(publicKey string) error {
	if _, err := age.ParseX25519Recipient(publicKey); err != nil {
		return fmt.Errorf("escrow: invalid recipient key: %w", err)
	}
	return nil
}
