// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package common

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20"
)

// SeededReader is a deterministic keystream: ChaCha20 keyed by sha256(seed), with the
// rank as nonce, so every rank of a seeded run draws an independent reproducible stream.
// It is meant for tests and benchmarks; production runs use crypto/rand.
type SeededReader struct {
	cipher *chacha20.Cipher
}

var _ io.Reader = (*SeededReader)(nil)

func NewSeededReader(seed []byte, rank int) (*SeededReader, error) {
	if rank < 0 {
		return nil, errors.Errorf("NewSeededReader: negative rank %d", rank)
	}
	key := sha256.Sum256(seed)
	nonce := make([]byte, chacha20.NonceSize)
	binary.BigEndian.PutUint64(nonce[chacha20.NonceSize-8:], uint64(rank))
	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce)
	if err != nil {
		return nil, errors.Wrap(err, "NewSeededReader")
	}
	return &SeededReader{cipher: c}, nil
}

func (r *SeededReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	r.cipher.XORKeyStream(p, p)
	return len(p), nil
}
