// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

package escrow

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"filippo.io/age"
	"github.com/fxamacker/cbor/v2"

	"github.com/javari-foundation/vault/lib/guard"
)

// FormatVersion is the bundle frame version this implementation
// produces and accepts.
const FormatVersion = 1

// frameHeaderSize is one version byte, one compression tag byte, and
// an 8-byte big-endian uncompressed payload size.
const frameHeaderSize = 10

// ErrUnsupportedVersion is returned by Open for a bundle whose frame
// version is not FormatVersion.
var ErrUnsupportedVersion = errors.New("escrow: unsupported bundle version")

// Compression identifies the payload compression inside a bundle
// frame. Stored as a single byte — protocol constants.
type Compression uint8

const (
	// CompressionNone stores the CBOR payload uncompressed. Seal
	// falls back to it when compression does not shrink the payload.
	CompressionNone Compression = 0

	// CompressionZstd is the default: secret bundles are JSON-ish
	// text that zstd handles well.
	CompressionZstd Compression = 1

	// CompressionLZ4 trades ratio for speed. Useful for very large
	// bundles on constrained export hosts.
	CompressionLZ4 Compression = 2
)

// String returns the tag's name.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a compression name as accepted on the CLI.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("escrow: unknown compression %q", name)
	}
}

// Entry is one secret in a bundle: decrypted value plus the metadata
// needed to re-import it elsewhere.
type Entry struct {
	Name            string `cbor:"name"`
	Value           string `cbor:"value"`
	Category        string `cbor:"category"`
	RotationVersion int64  `cbor:"rotation_version"`
	Notes           string `cbor:"notes,omitempty"`
}

// Bundle is the CBOR document inside the encrypted frame.
type Bundle struct {
	Version   int       `cbor:"version"`
	CreatedAt time.Time `cbor:"created_at"`
	Entries   []Entry   `cbor:"entries"`
}

// encMode produces deterministic CBOR: core deterministic field
// ordering and RFC 3339 timestamps.
var encMode = func() cbor.EncMode {
	mode, err := cbor.EncOptions{
		Sort: cbor.SortCoreDeterministic,
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic("escrow: cbor encoder initialization failed: " + err.Error())
	}
	return mode
}()

// Seal builds an escrow bundle: CBOR-encode the entries, compress,
// frame, encrypt to the recipients with age, and base64 the result.
// At least one recipient is required. If the requested compression
// does not shrink the payload, the frame records CompressionNone.
func Seal(entries []Entry, createdAt time.Time, recipientKeys []string, compression Compression) (string, error) {
	if len(entries) == 0 {
		return "", errors.New("escrow: no entries to seal")
	}
	if len(recipientKeys) == 0 {
		return "", errors.New("escrow: at least one recipient is required")
	}
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return "", fmt.Errorf("escrow: parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	payload, err := encMode.Marshal(Bundle{
		Version:   FormatVersion,
		CreatedAt: createdAt.UTC(),
		Entries:   entries,
	})
	if err != nil {
		return "", fmt.Errorf("escrow: encoding bundle: %w", err)
	}
	defer guard.Zero(payload)

	compressed, tag, err := compress(payload, compression)
	if err != nil {
		return "", err
	}

	frame := make([]byte, frameHeaderSize, frameHeaderSize+len(compressed))
	frame[0] = FormatVersion
	frame[1] = byte(tag)
	binary.BigEndian.PutUint64(frame[2:], uint64(len(payload)))
	frame = append(frame, compressed...)
	defer guard.Zero(frame)

	var sealed bytes.Buffer
	writer, err := age.Encrypt(&sealed, recipients...)
	if err != nil {
		return "", fmt.Errorf("escrow: creating encryptor: %w", err)
	}
	if _, err := writer.Write(frame); err != nil {
		return "", fmt.Errorf("escrow: encrypting bundle: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("escrow: finalizing encryption: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sealed.Bytes()), nil
}

// Open decrypts and decodes a bundle with the given age private key.
// The key is borrowed, not closed. Unknown frame versions and unknown
// compression tags are hard errors.
func Open(sealed string, privateKey *guard.Buffer) (*Bundle, error) {
	identity, err := age.ParseX25519Identity(privateKey.String())
	if err != nil {
		return nil, fmt.Errorf("escrow: parsing private key: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("escrow: decoding base64: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(raw), identity)
	if err != nil {
		return nil, fmt.Errorf("escrow: decrypting: %w", err)
	}
	frame, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("escrow: reading decrypted frame: %w", err)
	}
	defer guard.Zero(frame)

	if len(frame) < frameHeaderSize {
		return nil, fmt.Errorf("escrow: frame too short (%d bytes)", len(frame))
	}
	if frame[0] != FormatVersion {
		return nil, fmt.Errorf("%w: got v=%d, support v=%d", ErrUnsupportedVersion, frame[0], FormatVersion)
	}
	uncompressedSize := binary.BigEndian.Uint64(frame[2:frameHeaderSize])
	if uncompressedSize > 1<<30 {
		return nil, fmt.Errorf("escrow: implausible payload size %d", uncompressedSize)
	}

	payload, err := decompress(frame[frameHeaderSize:], Compression(frame[1]), int(uncompressedSize))
	if err != nil {
		return nil, err
	}
	defer guard.Zero(payload)

	var bundle Bundle
	if err := cbor.Unmarshal(payload, &bundle); err != nil {
		return nil, fmt.Errorf("escrow: decoding bundle: %w", err)
	}
	if bundle.Version != FormatVersion {
		return nil, fmt.Errorf("%w: bundle document v=%d", ErrUnsupportedVersion, bundle.Version)
	}
	return &bundle, nil
}
