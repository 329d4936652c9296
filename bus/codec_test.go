// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package bus

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestBigIntCodecNone(t *testing.T) {
	t.Parallel()
	b, err := BigIntCodec{}.Marshal(nil)
	require.NoError(t, err)
	assert.Empty(t, b)
	v, err := BigIntCodec{}.Unmarshal(b)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestBigIntCodecIsDecimal(t *testing.T) {
	t.Parallel()
	b, err := BigIntCodec{}.Marshal(big.NewInt(65537))
	require.NoError(t, err)
	assert.Contains(t, string(b), "65537")
}

func TestBigIntCodecRejectsGarbage(t *testing.T) {
	t.Parallel()
	b := protowire.AppendTag(nil, fieldValue, protowire.BytesType)
	b = protowire.AppendString(b, "12ab")
	_, err := BigIntCodec{}.Unmarshal(b)
	assert.Error(t, err)

	_, err = BigIntCodec{}.Unmarshal([]byte{0x0a, 0x05, '1'})
	assert.Error(t, err, "truncated field")
}

func TestBigIntsCodecRejectsNil(t *testing.T) {
	t.Parallel()
	_, err := BigIntsCodec{}.Marshal([]*big.Int{big.NewInt(1), nil})
	assert.Error(t, err)
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	t.Parallel()
	b := protowire.AppendTag(nil, 9, protowire.VarintType)
	b = protowire.AppendVarint(b, 77)
	more, err := Int64Codec{}.Marshal(-5)
	require.NoError(t, err)
	v, err := Int64Codec{}.Unmarshal(append(b, more...))
	require.NoError(t, err)
	assert.Equal(t, int64(-5), v)
}

func TestCombineUnknownOp(t *testing.T) {
	t.Parallel()
	_, err := Int64Codec{}.Combine(Op(9), 1, 2)
	assert.ErrorIs(t, err, ErrUnknownOp)
	_, err = BigIntCodec{}.Combine(Op(9), big.NewInt(1), big.NewInt(2))
	assert.ErrorIs(t, err, ErrUnknownOp)
}

func TestFramesKeepEmptyElements(t *testing.T) {
	t.Parallel()
	frames, err := unpackFrames(packFrames([][]byte{{}, []byte("x"), {}}))
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Empty(t, frames[0])
	assert.Equal(t, "x", string(frames[1]))
}
