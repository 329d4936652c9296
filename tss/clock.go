// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package tss

import (
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"
)

const (
	seqBits = 48
	seqMask = uint64(1)<<seqBits - 1
)

// Timestamp is a logical time: rank in the upper 16 bits, a per-rank sequence in the lower 48.
// Ordering timestamps numerically gives a total order, but not a causal one.
type Timestamp uint64

// NoTimestamp marks an event that never happened.
const NoTimestamp = ^Timestamp(0)

func ComposeTimestamp(rank int, seq uint64) Timestamp {
	return Timestamp(uint64(rank&MaxRank)<<seqBits | seq&seqMask)
}

func RankOf(ts Timestamp) int {
	return int(uint64(ts) >> seqBits & MaxRank)
}

func SeqOf(ts Timestamp) uint64 {
	return uint64(ts) & seqMask
}

func (ts Timestamp) IsSet() bool {
	return ts != NoTimestamp
}

// String renders "rank:seq", or "-" for NoTimestamp.
func (ts Timestamp) String() string {
	if !ts.IsSet() {
		return "-"
	}
	return fmt.Sprintf("%d:%d", RankOf(ts), SeqOf(ts))
}

// LogicalClock is a per-rank Lamport-style counter. The zero value is unusable.
type LogicalClock struct {
	rank        int
	seq         atomic.Uint64
	initialized bool
}

func NewLogicalClock(rank int) (*LogicalClock, error) {
	if rank < 0 || rank > MaxRank {
		return nil, Errorf(InputError, "clock", rank, "rank %d out of range [0, %d]", rank, MaxRank)
	}
	return &LogicalClock{rank: rank, initialized: true}, nil
}

// Tick advances the sequence and returns the new timestamp; the first tick has seq 1.
// Running past 2^48-1 ticks panics.
func (c *LogicalClock) Tick() (Timestamp, error) {
	if c == nil || !c.initialized {
		return NoTimestamp, NewError(StateError, errors.New("logical clock used before initialization"), "clock", -1)
	}
	seq := c.seq.Add(1)
	if seq > seqMask {
		panic(errors.Errorf("logical clock of rank %d overflowed 48 bits", c.rank))
	}
	return ComposeTimestamp(c.rank, seq), nil
}

// Current returns the last issued timestamp without advancing.
func (c *LogicalClock) Current() (Timestamp, error) {
	if c == nil || !c.initialized {
		return NoTimestamp, NewError(StateError, errors.New("logical clock used before initialization"), "clock", -1)
	}
	return ComposeTimestamp(c.rank, c.seq.Load()), nil
}

func (c *LogicalClock) Rank() int {
	return c.rank
}
