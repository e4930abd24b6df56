// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// ID prefixes distinguish record kinds at a glance in logs and over
// the wire.
const (
	messageIDPrefix = "msg"
	signalIDPrefix  = "sig"
)

// deriveID produces a content-derived identifier: a BLAKE3 digest of
// the domain-separated fields plus a random nonce, truncated to 12
// bytes and hex-encoded. The nonce keeps byte-identical records from
// colliding; the content contribution keeps IDs stable under
// deterministic test nonces.
func deriveID(prefix, domain string, createdAtMillis int64, fields ...string) (string, error) {
	var nonce [8]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("store: reading id nonce: %w", err)
	}
	return deriveIDWithNonce(prefix, domain, createdAtMillis, nonce, fields...), nil
}

func deriveIDWithNonce(prefix, domain string, createdAtMillis int64, nonce [8]byte, fields ...string) string {
	hasher := blake3.New()
	hasher.WriteString(domain)
	hasher.WriteString("\x00")

	var millis [8]byte
	binary.BigEndian.PutUint64(millis[:], uint64(createdAtMillis))
	hasher.Write(millis[:])

	for _, field := range fields {
		// Length-prefix each field so ("ab","c") and ("a","bc")
		// hash differently.
		var length [4]byte
		binary.BigEndian.PutUint32(length[:], uint32(len(field)))
		hasher.Write(length[:])
		hasher.WriteString(field)
	}

	hasher.Write(nonce[:])

	digest := hasher.Sum(nil)
	return prefix + "-" + hex.EncodeToString(digest[:12])
}
