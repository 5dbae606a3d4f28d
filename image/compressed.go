// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/rad-android/rad/lib/atomicfile"
)

// Compression identifies a compressed image container.
type Compression string

const (
	CompressionZstd Compression = "zst"
	CompressionLZ4  Compression = "lz4"
)

// compressions is the lookup order when both forms exist.
var compressions = []Compression{CompressionZstd, CompressionLZ4}

// ExpandCompressed materializes missing images from compressed
// siblings: system.img from system.img.zst or system.img.lz4, and the
// same for vendor.img. Images that already exist are left alone. The
// decompressed file is written atomically, so an interrupted expansion
// never leaves a truncated image that would pass Validate. Returns the
// paths that were expanded.
func (p Paths) ExpandCompressed(logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var expanded []string
	for _, target := range []string{p.System, p.Vendor} {
		if _, err := os.Stat(target); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return expanded, fmt.Errorf("checking %s: %w", target, err)
		}

		source, compression, ok := findCompressed(target)
		if !ok {
			continue
		}
		logger.Info("expanding compressed image", "source", source, "target", target)
		if err := expand(source, target, compression); err != nil {
			return expanded, err
		}
		expanded = append(expanded, target)
	}
	return expanded, nil
}

func findCompressed(target string) (string, Compression, bool) {
	for _, compression := range compressions {
		candidate := target + "." + string(compression)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, compression, true
		}
	}
	return "", "", false
}

func expand(source, target string, compression Compression) error {
	input, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("opening %s: %w", source, err)
	}
	defer input.Close()

	var reader io.Reader
	switch compression {
	case CompressionZstd:
		decoder, err := zstd.NewReader(input, zstd.WithDecoderConcurrency(0))
		if err != nil {
			return fmt.Errorf("creating zstd decoder for %s: %w", source, err)
		}
		defer decoder.Close()
		reader = decoder
	case CompressionLZ4:
		reader = lz4.NewReader(input)
	default:
		return fmt.Errorf("unsupported compression %q", compression)
	}

	return atomicfile.Write(target, 0o644, func(w io.Writer) error {
		if _, err := io.Copy(w, reader); err != nil {
			return fmt.Errorf("decompressing %s: %w", source, err)
		}
		return nil
	})
}
