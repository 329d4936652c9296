// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

// Package blocks packs UTF-8 text into big-endian integer blocks below an RSA modulus and back.
//
// Plaintext blocks are EncryptionBlockSize(n) bytes wide, so every block is < n. Ciphertext
// blocks can reach n-1 and are serialized one byte wider (DecryptionBlockSize) before base64.
package blocks

import (
	"encoding/base64"
	"math/big"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

var ErrModulusTooSmall = errors.New("modulus too small to hold a one-byte block")

// EncryptionBlockSize is floor(log2(n) / 8).
func EncryptionBlockSize(n *big.Int) int {
	if n == nil || n.Sign() <= 0 {
		return 0
	}
	return (n.BitLen() - 1) / 8
}

func DecryptionBlockSize(n *big.Int) int {
	return EncryptionBlockSize(n) + 1
}

// TextToBlocks NFC-normalizes text, zero-pads its UTF-8 bytes to a whole number of blocks and
// splits them into unsigned big-endian blocks.
func TextToBlocks(text string, n *big.Int) ([]*big.Int, error) {
	size := EncryptionBlockSize(n)
	if size < 1 {
		return nil, ErrModulusTooSmall
	}
	return BytesToBlocks([]byte(norm.NFC.String(text)), size), nil
}

// BytesToBlocks splits data into blockSize-byte blocks, zero-padding the last one.
func BytesToBlocks(data []byte, blockSize int) []*big.Int {
	out := make([]*big.Int, 0, (len(data)+blockSize-1)/blockSize)
	for i := 0; i < len(data); i += blockSize {
		chunk := make([]byte, blockSize)
		copy(chunk, data[i:min(i+blockSize, len(data))])
		out = append(out, new(big.Int).SetBytes(chunk))
	}
	return out
}

// BlocksToBytes writes every block as exactly blockLen big-endian bytes: shorter blocks are
// left-padded with zeros, longer ones keep their low blockLen bytes.
func BlocksToBytes(blocks []*big.Int, blockLen int) []byte {
	out := make([]byte, 0, len(blocks)*blockLen)
	for _, b := range blocks {
		raw := b.Bytes()
		fixed := make([]byte, blockLen)
		if len(raw) > blockLen {
			copy(fixed, raw[len(raw)-blockLen:])
		} else {
			copy(fixed[blockLen-len(raw):], raw)
		}
		out = append(out, fixed...)
	}
	return out
}

// BlocksToText reassembles plaintext blocks and drops the trailing zero padding. Whitespace in
// the text itself is kept.
func BlocksToText(blocks []*big.Int, n *big.Int) string {
	data := BlocksToBytes(blocks, EncryptionBlockSize(n))
	return strings.TrimRight(string(data), "\x00")
}

// BlocksToBase64 serializes ciphertext blocks at DecryptionBlockSize(n) bytes each.
func BlocksToBase64(blocks []*big.Int, n *big.Int) string {
	return base64.StdEncoding.EncodeToString(BlocksToBytes(blocks, DecryptionBlockSize(n)))
}

func Base64ToBlocks(s string, n *big.Int) ([]*big.Int, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, errors.Wrap(err, "decoding ciphertext")
	}
	size := DecryptionBlockSize(n)
	if size < 2 {
		return nil, ErrModulusTooSmall
	}
	if len(data)%size != 0 {
		return nil, errors.Errorf("ciphertext of %d bytes is not a multiple of the %d-byte block", len(data), size)
	}
	return BytesToBlocks(data, size), nil
}
