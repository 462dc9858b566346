// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"

	"github.com/javari-foundation/vault/lib/guard"
)

const (
	// FormatVersion is the envelope format this implementation
	// produces and accepts. Decryption rejects any other version.
	FormatVersion = 1

	// SigningSecretEnv and ProjectRefEnv name the two bootstrap
	// environment variables the key derivation material comes from.
	// They can never live inside the vault (they are required to
	// open it) and must stay on the env shim's bootstrap allow-list.
	SigningSecretEnv = "JAVARI_SIGNING_SECRET"
	ProjectRefEnv    = "JAVARI_PROJECT_REF"

	saltSize         = 32
	nonceSize        = 12
	tagSize          = 16
	keySize          = 32
	pbkdf2Iterations = 100000
)

// ErrUnsupportedVersion is returned by Decrypt for an envelope whose
// version field is not FormatVersion. Unknown versions are a hard
// failure — guessing at an older or newer key schedule could return
// garbage plaintext.
var ErrUnsupportedVersion = errors.New("envelope: unsupported format version")

// ErrMalformed is returned by Decrypt when the envelope does not
// parse: invalid base64, invalid JSON, or hex fields of the wrong
// length.
var ErrMalformed = errors.New("envelope: malformed envelope")

// ErrAuthentication is returned by Decrypt when the GCM authentication
// tag does not verify: the ciphertext was tampered with, corrupted, or
// encrypted under different bootstrap material.
var ErrAuthentication = errors.New("envelope: authentication failed")

// Cipher encrypts and decrypts secret envelopes. It holds the key
// derivation material in guarded memory; the per-envelope key is
// derived fresh for every call and zeroed afterwards.
//
// Cipher is safe for concurrent use. Call Close when the process no
// longer needs crypto operations.
type Cipher struct {
	material *guard.Buffer
}

// New creates a Cipher from the two bootstrap secrets. Both are
// required: an absent bootstrap value is a fatal misconfiguration,
// not a retryable condition.
func New(signingSecret, projectRef string) (*Cipher, error) {
	if signingSecret == "" {
		return nil, fmt.Errorf("envelope: signing secret is required (%s)", SigningSecretEnv)
	}
	if projectRef == "" {
		return nil, fmt.Errorf("envelope: project reference is required (%s)", ProjectRefEnv)
	}

	material, err := guard.NewFromString(signingSecret + ":" + projectRef)
	if err != nil {
		return nil, fmt.Errorf("envelope: protecting key material: %w", err)
	}
	return &Cipher{material: material}, nil
}

// NewFromEnv creates a Cipher from the bootstrap environment
// variables. This is the production entry point: the two variables are
// the literal trust anchor and must be injected by the deployment
// platform, never read through the vault.
func NewFromEnv() (*Cipher, error) {
	return New(os.Getenv(SigningSecretEnv), os.Getenv(ProjectRefEnv))
}

// Close releases the key derivation material (zeroed, unlocked,
// unmapped). Idempotent.
func (c *Cipher) Close() error {
	if c.material != nil {
		return c.material.Close()
	}
	return nil
}

// envelopeWire is the JSON layout inside the base64 wrapper. All
// binary fields are lowercase hex.
type envelopeWire struct {
	V    int    `json:"v"`
	Salt string `json:"salt"`
	IV   string `json:"iv"`
	Tag  string `json:"tag"`
	CT   string `json:"ct"`
}

// Encrypt seals plaintext into a fresh envelope: random 32-byte salt,
// random 12-byte nonce, PBKDF2-derived AES-256 key, GCM with no
// additional authenticated data. Every call produces a different
// envelope for the same plaintext — use Fingerprint for equality.
func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("envelope: generating salt: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("envelope: generating nonce: %w", err)
	}

	aead, err := c.newAEAD(salt)
	if err != nil {
		return "", err
	}

	// Seal appends the 16-byte tag to the ciphertext; the wire
	// format stores them as separate fields.
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	boundary := len(sealed) - tagSize

	wire := envelopeWire{
		V:    FormatVersion,
		Salt: hex.EncodeToString(salt),
		IV:   hex.EncodeToString(nonce),
		Tag:  hex.EncodeToString(sealed[boundary:]),
		CT:   hex.EncodeToString(sealed[:boundary]),
	}
	encoded, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("envelope: encoding: %w", err)
	}
	return base64.StdEncoding.EncodeToString(encoded), nil
}

// Decrypt opens an envelope produced by Encrypt. It fails hard on
// malformed input (ErrMalformed), an unknown format version
// (ErrUnsupportedVersion), or an authentication tag that does not
// verify (ErrAuthentication). It never returns partial plaintext.
func (c *Cipher) Decrypt(envelopeString string) ([]byte, error) {
	encoded, err := base64.StdEncoding.DecodeString(envelopeString)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrMalformed, err)
	}

	var wire envelopeWire
	if err := json.Unmarshal(encoded, &wire); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrMalformed, err)
	}
	if wire.V != FormatVersion {
		return nil, fmt.Errorf("%w: got v=%d, support v=%d", ErrUnsupportedVersion, wire.V, FormatVersion)
	}

	salt, err := decodeHexField("salt", wire.Salt, saltSize)
	if err != nil {
		return nil, err
	}
	nonce, err := decodeHexField("iv", wire.IV, nonceSize)
	if err != nil {
		return nil, err
	}
	tag, err := decodeHexField("tag", wire.Tag, tagSize)
	if err != nil {
		return nil, err
	}
	ciphertext, err := hex.DecodeString(wire.CT)
	if err != nil {
		return nil, fmt.Errorf("%w: field ct is not valid hex", ErrMalformed)
	}

	aead, err := c.newAEAD(salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return plaintext, nil
}

// newAEAD derives the per-envelope AES-256 key from the bootstrap
// material and the given salt, and wraps it in GCM. The derived key is
// zeroed before returning (the AEAD keeps its own expanded schedule).
func (c *Cipher) newAEAD(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(c.material.Bytes(), salt, pbkdf2Iterations, keySize, sha256.New)
	defer guard.Zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("envelope: creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("envelope: creating GCM: %w", err)
	}
	return aead, nil
}

// decodeHexField decodes a fixed-size hex field, mapping any mismatch
// to ErrMalformed.
func decodeHexField(name, value string, wantSize int) ([]byte, error) {
	decoded, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: field %s is not valid hex", ErrMalformed, name)
	}
	if len(decoded) != wantSize {
		return nil, fmt.Errorf("%w: field %s is %d bytes, want %d", ErrMalformed, name, len(decoded), wantSize)
	}
	return decoded, nil
}
