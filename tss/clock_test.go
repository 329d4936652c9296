// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package tss

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iofinnet/mpi-rsa/internal"
)

func TestLogicalClockTick(t *testing.T) {
	t.Parallel()
	c, err := NewLogicalClock(3)
	require.NoError(t, err)

	first, err := c.Tick()
	require.NoError(t, err)
	assert.Equal(t, 3, RankOf(first))
	assert.Equal(t, uint64(1), SeqOf(first))
	assert.Equal(t, "3:1", first.String())

	prev := first
	for i := 0; i < 100; i++ {
		ts, err := c.Tick()
		require.NoError(t, err)
		assert.Greater(t, uint64(ts), uint64(prev))
		prev = ts
	}
	cur, err := c.Current()
	require.NoError(t, err)
	assert.Equal(t, prev, cur)
}

func TestLogicalClockDisjointRanks(t *testing.T) {
	t.Parallel()
	a, err := NewLogicalClock(0)
	require.NoError(t, err)
	b, err := NewLogicalClock(MaxRank)
	require.NoError(t, err)
	seen := make(map[Timestamp]bool)
	for i := 0; i < 50; i++ {
		ta, _ := a.Tick()
		tb, _ := b.Tick()
		assert.False(t, seen[ta])
		assert.False(t, seen[tb])
		seen[ta], seen[tb] = true, true
	}
	assert.Len(t, seen, 100)
}

func TestLogicalClockRankRange(t *testing.T) {
	t.Parallel()
	_, err := NewLogicalClock(-1)
	assert.Equal(t, InputError, KindOf(err))
	_, err = NewLogicalClock(MaxRank + 1)
	assert.Equal(t, InputError, KindOf(err))
}

func TestLogicalClockUninitialized(t *testing.T) {
	t.Parallel()
	var c LogicalClock
	_, err := c.Tick()
	assert.Equal(t, StateError, KindOf(err))
	var nilClock *LogicalClock
	_, err = nilClock.Current()
	assert.Equal(t, StateError, KindOf(err))
}

func TestLogicalClockOverflowPanics(t *testing.T) {
	t.Parallel()
	c, err := NewLogicalClock(1)
	require.NoError(t, err)
	c.seq.Store(seqMask - 1)
	ts, err := c.Tick()
	require.NoError(t, err)
	assert.Equal(t, seqMask, SeqOf(ts))

	err = internal.Recover(func() error {
		_, err := c.Tick()
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overflowed")
}

func TestNoTimestamp(t *testing.T) {
	t.Parallel()
	assert.False(t, NoTimestamp.IsSet())
	assert.Equal(t, "-", NoTimestamp.String())
	assert.True(t, ComposeTimestamp(0, 0).IsSet())
}
