// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

package escrow

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// zstdEncoder and zstdDecoder are reused across calls; both are safe
// for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("escrow: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("escrow: zstd decoder initialization failed: " + err.Error())
	}
}

// compress applies the requested algorithm, falling back to
// CompressionNone when the output would not be smaller. Returns the
// bytes and the tag actually used.
func compress(payload []byte, requested Compression) ([]byte, Compression, error) {
	switch requested {
	case CompressionNone:
		return payload, CompressionNone, nil

	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(payload, nil)
		if len(compressed) >= len(payload) {
			return payload, CompressionNone, nil
		}
		return compressed, CompressionZstd, nil

	case CompressionLZ4:
		destination := make([]byte, lz4.CompressBlockBound(len(payload)))
		written, err := lz4.CompressBlock(payload, destination, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("escrow: lz4 compress: %w", err)
		}
		if written == 0 || written >= len(payload) {
			return payload, CompressionNone, nil
		}
		return destination[:written], CompressionLZ4, nil

	default:
		return nil, 0, fmt.Errorf("escrow: unsupported compression tag %d", requested)
	}
}

// decompress reverses compress. The uncompressed size comes from the
// frame header and is verified exactly.
func decompress(compressed []byte, tag Compression, uncompressedSize int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(compressed) != uncompressedSize {
			return nil, fmt.Errorf("escrow: uncompressed payload is %d bytes, frame says %d",
				len(compressed), uncompressedSize)
		}
		result := make([]byte, uncompressedSize)
		copy(result, compressed)
		return result, nil

	case CompressionZstd:
		result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, fmt.Errorf("escrow: zstd decompress: %w", err)
		}
		if len(result) != uncompressedSize {
			return nil, fmt.Errorf("escrow: zstd produced %d bytes, frame says %d",
				len(result), uncompressedSize)
		}
		return result, nil

	case CompressionLZ4:
		result := make([]byte, uncompressedSize)
		read, err := lz4.UncompressBlock(compressed, result)
		if err != nil {
			return nil, fmt.Errorf("escrow: lz4 decompress: %w", err)
		}
		if read != uncompressedSize {
			return nil, fmt.Errorf("escrow: lz4 produced %d bytes, frame says %d",
				read, uncompressedSize)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("escrow: unsupported compression tag %d", tag)
	}
}
