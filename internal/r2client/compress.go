package r2client

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// CompressedExt marks zstd-compressed object keys.
const CompressedExt = ".zst"

// IsCompressedKey reports whether an object key names a zstd payload.
func IsCompressedKey(key string) bool {
	return strings.HasSuffix(strings.ToLower(key), CompressedExt)
}

// CompressBytes returns the zstd encoding of data.
func CompressBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	encoder, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("compress: create encoder: %w", err)
	}
	if _, err := encoder.Write(data); err != nil {
		_ = encoder.Close()
		return nil, fmt.Errorf("compress: write: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("compress: close encoder: %w", err)
	}
	return buf.Bytes(), nil
}

// DecompressAll reads a whole zstd stream into memory.
// Payloads larger than maxBytes are rejected.
func DecompressAll(r io.Reader, maxBytes int64) ([]byte, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("decompress: create decoder: %w", err)
	}
	defer decoder.Close()

	data, err := io.ReadAll(io.LimitReader(decoder, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("decompress: read: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("decompress: payload exceeds %d bytes", maxBytes)
	}
	return data, nil
}

// CompressFile compresses a file using zstd and writes to the destination path.
func CompressFile(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("compress: open source: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("compress: create dest: %w", err)
	}
	defer dst.Close()

	encoder, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("compress: create encoder: %w", err)
	}

	if _, err := io.Copy(encoder, src); err != nil {
		_ = encoder.Close()
		return fmt.Errorf("compress: copy: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return fmt.Errorf("compress: close encoder: %w", err)
	}

	return nil
}
