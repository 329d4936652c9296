// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package bus

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// LocalWorld is an in-process group: one mailbox per rank, shared by every LocalTransport
// it hands out. Ranks are expected to run on their own goroutines.
type LocalWorld struct {
	boxes     []*mailbox
	closeOnce sync.Once
}

// LocalTransport is the view of a LocalWorld from one rank.
type LocalTransport struct {
	world *LocalWorld
	rank  int
}

var _ Transport = (*LocalTransport)(nil)

func NewLocalWorld(size int) (*LocalWorld, error) {
	if size < 1 {
		return nil, errors.Errorf("NewLocalWorld: size %d < 1", size)
	}
	w := &LocalWorld{boxes: make([]*mailbox, size)}
	for i := range w.boxes {
		w.boxes[i] = newMailbox()
	}
	return w, nil
}

func (w *LocalWorld) Size() int {
	return len(w.boxes)
}

// Transport returns the endpoint of rank. It panics on an out-of-range rank.
func (w *LocalWorld) Transport(rank int) *LocalTransport {
	if err := checkRank(rank, len(w.boxes)); err != nil {
		panic(err)
	}
	return &LocalTransport{world: w, rank: rank}
}

// Close fails every blocked and future receive in the world.
func (w *LocalWorld) Close() {
	w.closeOnce.Do(func() {
		for _, b := range w.boxes {
			b.close(ErrClosed)
		}
	})
}

func (t *LocalTransport) Rank() int { return t.rank }

func (t *LocalTransport) Size() int { return len(t.world.boxes) }

func (t *LocalTransport) Send(ctx context.Context, dest, tag int, payload []byte) error {
	if err := checkRank(dest, len(t.world.boxes)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	return t.world.boxes[dest].push(t.rank, tag, cp)
}

func (t *LocalTransport) Recv(ctx context.Context, src, tag int) ([]byte, error) {
	if err := checkRank(src, len(t.world.boxes)); err != nil {
		return nil, err
	}
	return t.world.boxes[t.rank].pop(ctx, src, tag)
}

// Close is a no-op; the owner of the LocalWorld closes it once every rank is done.
func (t *LocalTransport) Close() error {
	return nil
}
