// Copyright 2026 The Coder Authors
// SPDX-License-Identifier: Apache-2.0

package download

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/coder-foundation/coder/lib/stream"
)

// ErrChecksumMismatch is the failure delivered downstream when the
// fully-received bytes do not hash to the expected digest.
var ErrChecksumMismatch = errors.New("download: checksum mismatch")

// VerifyStream interposes a BLAKE3 digest check between a source
// stream and its consumer. Chunks pass through unmodified; when the
// source ends, the accumulated digest is compared against expectedHex.
// On a match the returned stream ends normally; on a mismatch it fails
// with ErrChecksumMismatch, so a tampered or truncated archive rejects
// the whole downstream operation instead of extracting quietly.
//
// The returned stream is paused, like every stream handed to an
// extractor. A source error passes through unchanged.
func VerifyStream(source *stream.Stream, expectedHex string) (*stream.Stream, error) {
	expected, err := hex.DecodeString(expectedHex)
	if err != nil {
		return nil, fmt.Errorf("download: parsing expected checksum: %w", err)
	}
	if len(expected) != 32 {
		return nil, fmt.Errorf("download: expected checksum is %d bytes, want 32", len(expected))
	}

	verified := stream.New()
	hasher := blake3.New()
	source.Subscribe(stream.Handlers{
		Data: func(chunk []byte) error {
			hasher.Write(chunk)
			return verified.Push(chunk)
		},
		End: func() error {
			digest := hasher.Sum(nil)
			if subtle.ConstantTimeCompare(digest, expected) != 1 {
				verified.Fail(fmt.Errorf("%w: got %s, want %s",
					ErrChecksumMismatch, hex.EncodeToString(digest), expectedHex))
				return nil
			}
			return verified.End()
		},
		Error: func(err error) {
			verified.Fail(err)
		},
	})
	source.Resume()
	return verified, nil
}
