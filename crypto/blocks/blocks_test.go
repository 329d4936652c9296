// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package blocks

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pow2(bits uint) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), bits)
}

func TestBlockSizes(t *testing.T) {
	t.Parallel()
	n2048 := new(big.Int).Sub(pow2(2048), big.NewInt(1))
	assert.Equal(t, 255, EncryptionBlockSize(n2048))
	assert.Equal(t, 256, DecryptionBlockSize(n2048))
	assert.Equal(t, 1, EncryptionBlockSize(big.NewInt(256)))
	assert.Equal(t, 0, EncryptionBlockSize(big.NewInt(255)))
	assert.Equal(t, 1, EncryptionBlockSize(big.NewInt(3233)))
}

func TestTextToBlocksPadsAndStaysBelowModulus(t *testing.T) {
	t.Parallel()
	n := new(big.Int).Add(pow2(64), big.NewInt(13)) // 65 bits: 8-byte blocks
	text := "Möge die Macht mit dir sein!"
	blocks, err := TextToBlocks(text, n)
	require.NoError(t, err)
	assert.Len(t, blocks, (len(text)+7)/8)
	for _, b := range blocks {
		assert.Equal(t, -1, b.Cmp(n))
	}
	assert.Equal(t, text, BlocksToText(blocks, n))
}

func TestBlocksToTextKeepsWhitespace(t *testing.T) {
	t.Parallel()
	n := new(big.Int).Lsh(big.NewInt(1), 64)
	for _, text := range []string{"  indented", "\tTab and trailing \n", " ", "a\x00b"} {
		blocks, err := TextToBlocks(text, n)
		require.NoError(t, err)
		assert.Equal(t, text, BlocksToText(blocks, n))
	}
}

func TestTextToBlocksRejectsTinyModulus(t *testing.T) {
	t.Parallel()
	_, err := TextToBlocks("x", big.NewInt(200))
	assert.ErrorIs(t, err, ErrModulusTooSmall)
}

func TestTextToBlocksNormalizesToNFC(t *testing.T) {
	t.Parallel()
	n := new(big.Int).Add(pow2(128), big.NewInt(1))
	decomposed := "Mo\u0308ge"
	blocks, err := TextToBlocks(decomposed, n)
	require.NoError(t, err)
	assert.Equal(t, "M\u00f6ge", BlocksToText(blocks, n))
}

func TestBlocksToBytesPadsAndTruncates(t *testing.T) {
	t.Parallel()
	got := BlocksToBytes([]*big.Int{big.NewInt(0x0102), big.NewInt(0x0A0B0C0D)}, 3)
	assert.Equal(t, []byte{0x00, 0x01, 0x02, 0x0B, 0x0C, 0x0D}, got)
}

func TestBase64RoundTrip(t *testing.T) {
	t.Parallel()
	n := new(big.Int).Add(pow2(100), big.NewInt(277))
	in := []*big.Int{big.NewInt(0), new(big.Int).Sub(n, big.NewInt(1)), big.NewInt(42)}
	s := BlocksToBase64(in, n)
	out, err := Base64ToBlocks(s, n)
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i := range in {
		assert.Equal(t, 0, in[i].Cmp(out[i]), "block %d", i)
	}

	_, err = Base64ToBlocks("AAAA", n)
	assert.Error(t, err, "3 bytes is not a whole 13-byte block")
	_, err = Base64ToBlocks("!!", n)
	assert.Error(t, err)
}
