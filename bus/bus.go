// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

// Package bus is the message-passing substrate the engine runs on: a fixed group of ranks
// exchanging tagged point-to-point messages, with broadcast, reduce, gather, scatter and barrier
// collectives built on top.
//
// Messages between any (src, dest, tag) triple are delivered in FIFO order and buffered without
// bound, so a send never waits for the matching receive. Collectives are group-synchronizing:
// every rank must enter each collective exactly once, in the same order.
package bus

import (
	"context"

	"github.com/pkg/errors"
)

type (
	// Transport moves opaque payloads between the ranks of a group.
	Transport interface {
		Rank() int
		Size() int
		// Send queues payload for dest under tag. The payload must not be modified afterwards.
		Send(ctx context.Context, dest, tag int, payload []byte) error
		// Recv blocks until a message from src with tag is available or ctx is done.
		Recv(ctx context.Context, src, tag int) ([]byte, error)
		Close() error
	}

	// Op selects the reduction applied by Reduce and AllReduce.
	Op int
)

const (
	OpMax Op = iota
	OpSum
)

func (op Op) String() string {
	switch op {
	case OpMax:
		return "MAX"
	case OpSum:
		return "SUM"
	default:
		return "UNKNOWN"
	}
}

// Reserved tags. User tags must be >= 0.
const (
	tagBcast = -(iota + 1)
	tagGather
	tagScatter
	tagBarrier
)

var (
	ErrClosed     = errors.New("bus: transport closed")
	ErrBadRank    = errors.New("bus: rank out of range")
	ErrBadTag     = errors.New("bus: user tags must be non-negative")
	ErrBadLayout  = errors.New("bus: counts/displacements do not match the group")
	ErrUnknownOp  = errors.New("bus: unknown reduction op")
	ErrSizeMisfit = errors.New("bus: vector lengths differ")
)

func checkRank(rank, size int) error {
	if rank < 0 || rank >= size {
		return errors.Wrapf(ErrBadRank, "rank %d, size %d", rank, size)
	}
	return nil
}
