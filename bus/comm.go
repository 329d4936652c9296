// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package bus

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/iofinnet/mpi-rsa/common"
)

// Comm runs typed point-to-point messages and collectives over a Transport.
// A Comm must be driven by a single goroutine.
type Comm struct {
	transport Transport
	metrics   *Metrics
}

type CommOption func(*Comm)

func WithMetrics(m *Metrics) CommOption {
	return func(c *Comm) {
		c.metrics = m
	}
}

func NewComm(t Transport, opts ...CommOption) *Comm {
	c := &Comm{transport: t}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Comm) Rank() int { return c.transport.Rank() }

func (c *Comm) Size() int { return c.transport.Size() }

func (c *Comm) Close() error { return c.transport.Close() }

func (c *Comm) send(ctx context.Context, op string, dest, tag int, payload []byte) error {
	c.metrics.observeSend(op, len(payload))
	if err := c.transport.Send(ctx, dest, tag, payload); err != nil {
		return errors.Wrapf(err, "bus %s: send %d -> %d", op, c.Rank(), dest)
	}
	return nil
}

func (c *Comm) recv(ctx context.Context, op string, src, tag int) ([]byte, error) {
	payload, err := c.transport.Recv(ctx, src, tag)
	if err != nil {
		return nil, errors.Wrapf(err, "bus %s: recv %d <- %d", op, c.Rank(), src)
	}
	return payload, nil
}

func (c *Comm) bcastBytes(ctx context.Context, op string, tag int, payload []byte, root int) ([]byte, error) {
	if c.Rank() != root {
		return c.recv(ctx, op, root, tag)
	}
	for r := 0; r < c.Size(); r++ {
		if r == root {
			continue
		}
		if err := c.send(ctx, op, r, tag, payload); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// gatherBytes returns the payloads of every rank in rank order on root, nil elsewhere.
func (c *Comm) gatherBytes(ctx context.Context, op string, tag int, payload []byte, root int) ([][]byte, error) {
	if c.Rank() != root {
		return nil, c.send(ctx, op, root, tag, payload)
	}
	out := make([][]byte, c.Size())
	for r := range out {
		if r == root {
			out[r] = payload
			continue
		}
		p, err := c.recv(ctx, op, r, tag)
		if err != nil {
			return nil, err
		}
		out[r] = p
	}
	return out, nil
}

// Send delivers v to dest under a user tag (>= 0).
func Send[T any](ctx context.Context, c *Comm, v T, dest, tag int, codec Codec[T]) error {
	if tag < 0 {
		return errors.Wrapf(ErrBadTag, "tag %d", tag)
	}
	if err := checkRank(dest, c.Size()); err != nil {
		return err
	}
	payload, err := codec.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "bus send: marshal")
	}
	return c.send(ctx, "send", dest, tag, payload)
}

// Recv blocks for the next message from src under a user tag.
func Recv[T any](ctx context.Context, c *Comm, src, tag int, codec Codec[T]) (T, error) {
	var zero T
	if tag < 0 {
		return zero, errors.Wrapf(ErrBadTag, "tag %d", tag)
	}
	if err := checkRank(src, c.Size()); err != nil {
		return zero, err
	}
	payload, err := c.recv(ctx, "recv", src, tag)
	if err != nil {
		return zero, err
	}
	v, err := codec.Unmarshal(payload)
	return v, errors.Wrap(err, "bus recv: unmarshal")
}

// Bcast returns root's v on every rank. v is ignored on the other ranks.
func Bcast[T any](ctx context.Context, c *Comm, v T, root int, codec Codec[T]) (T, error) {
	defer c.metrics.observeCollective("bcast", time.Now())
	var zero T
	if err := checkRank(root, c.Size()); err != nil {
		return zero, err
	}
	var payload []byte
	if c.Rank() == root {
		var err error
		if payload, err = codec.Marshal(v); err != nil {
			return zero, errors.Wrap(err, "bus bcast: marshal")
		}
	}
	payload, err := c.bcastBytes(ctx, "bcast", tagBcast, payload, root)
	if err != nil {
		return zero, err
	}
	if c.Rank() == root {
		return v, nil
	}
	out, err := codec.Unmarshal(payload)
	return out, errors.Wrap(err, "bus bcast: unmarshal")
}

// Gather returns every rank's v, in rank order, on root; nil elsewhere.
func Gather[T any](ctx context.Context, c *Comm, v T, root int, codec Codec[T]) ([]T, error) {
	defer c.metrics.observeCollective("gather", time.Now())
	if err := checkRank(root, c.Size()); err != nil {
		return nil, err
	}
	payload, err := codec.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "bus gather: marshal")
	}
	frames, err := c.gatherBytes(ctx, "gather", tagGather, payload, root)
	if err != nil || frames == nil {
		return nil, err
	}
	return decodeFrames(frames, codec)
}

// AllGather returns every rank's v, in rank order, on every rank.
func AllGather[T any](ctx context.Context, c *Comm, v T, codec Codec[T]) ([]T, error) {
	defer c.metrics.observeCollective("allgather", time.Now())
	payload, err := codec.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "bus allgather: marshal")
	}
	frames, err := c.gatherBytes(ctx, "allgather", tagGather, payload, 0)
	if err != nil {
		return nil, err
	}
	var packed []byte
	if c.Rank() == 0 {
		packed = packFrames(frames)
	}
	if packed, err = c.bcastBytes(ctx, "allgather", tagBcast, packed, 0); err != nil {
		return nil, err
	}
	if frames, err = unpackFrames(packed); err != nil {
		return nil, errors.Wrap(err, "bus allgather: unpack")
	}
	if len(frames) != c.Size() {
		return nil, errors.Errorf("bus allgather: got %d contributions for %d ranks", len(frames), c.Size())
	}
	return decodeFrames(frames, codec)
}

// Reduce folds every rank's v with op, in rank order, and returns the result on root.
// Other ranks get the zero value.
func Reduce[T any](ctx context.Context, c *Comm, v T, op Op, root int, num Numeric[T]) (T, error) {
	defer c.metrics.observeCollective("reduce", time.Now())
	var zero T
	if err := checkRank(root, c.Size()); err != nil {
		return zero, err
	}
	return reduce(ctx, c, "reduce", v, op, root, num)
}

// AllReduce folds every rank's v with op and returns the result on every rank.
func AllReduce[T any](ctx context.Context, c *Comm, v T, op Op, num Numeric[T]) (T, error) {
	defer c.metrics.observeCollective("allreduce", time.Now())
	var zero T
	acc, err := reduce(ctx, c, "allreduce", v, op, 0, num)
	if err != nil {
		return zero, err
	}
	var payload []byte
	if c.Rank() == 0 {
		if payload, err = num.Marshal(acc); err != nil {
			return zero, errors.Wrap(err, "bus allreduce: marshal")
		}
	}
	if payload, err = c.bcastBytes(ctx, "allreduce", tagBcast, payload, 0); err != nil {
		return zero, err
	}
	if c.Rank() == 0 {
		return acc, nil
	}
	out, err := num.Unmarshal(payload)
	return out, errors.Wrap(err, "bus allreduce: unmarshal")
}

func reduce[T any](ctx context.Context, c *Comm, op string, v T, rop Op, root int, num Numeric[T]) (T, error) {
	var zero T
	payload, err := num.Marshal(v)
	if err != nil {
		return zero, errors.Wrapf(err, "bus %s: marshal", op)
	}
	frames, err := c.gatherBytes(ctx, op, tagGather, payload, root)
	if err != nil || frames == nil {
		return zero, err
	}
	values, err := decodeFrames(frames, num)
	if err != nil {
		return zero, err
	}
	acc := values[0]
	for _, x := range values[1:] {
		if acc, err = num.Combine(rop, acc, x); err != nil {
			return zero, errors.Wrapf(err, "bus %s", op)
		}
	}
	return acc, nil
}

// Barrier returns once every rank has entered it.
func (c *Comm) Barrier(ctx context.Context) error {
	defer c.metrics.observeCollective("barrier", time.Now())
	if _, err := c.gatherBytes(ctx, "barrier", tagBarrier, nil, 0); err != nil {
		return err
	}
	_, err := c.bcastBytes(ctx, "barrier", tagBarrier, nil, 0)
	return err
}

// BalancedLayout splits total elements over size ranks: counts[r] = total/size, plus one for the
// first total%size ranks, with displacements by prefix sum.
func BalancedLayout(total, size int) (counts, displs []int) {
	counts, displs = make([]int, size), make([]int, size)
	base, extra := total/size, total%size
	for r := 0; r < size; r++ {
		counts[r] = base
		if r < extra {
			counts[r]++
		}
		if r > 0 {
			displs[r] = displs[r-1] + counts[r-1]
		}
	}
	return counts, displs
}

func validateLayout(counts, displs []int, size, total int) error {
	if len(counts) != size || len(displs) != size {
		return errors.Wrapf(ErrBadLayout, "len(counts)=%d len(displs)=%d size=%d", len(counts), len(displs), size)
	}
	for r := range counts {
		if counts[r] < 0 || displs[r] < 0 || displs[r]+counts[r] > total {
			return errors.Wrapf(ErrBadLayout, "rank %d: count %d at %d exceeds %d elements", r, counts[r], displs[r], total)
		}
	}
	return nil
}

// ScatterV sends send[displs[r]:displs[r]+counts[r]] from root to every rank r and returns the
// local slice. counts, displs and send are only read on root.
func ScatterV[T any](ctx context.Context, c *Comm, send []T, counts, displs []int, root int, codec Codec[T]) ([]T, error) {
	defer c.metrics.observeCollective("scatterv", time.Now())
	if err := checkRank(root, c.Size()); err != nil {
		return nil, err
	}
	if c.Rank() != root {
		packed, err := c.recv(ctx, "scatterv", root, tagScatter)
		if err != nil {
			return nil, err
		}
		frames, err := unpackFrames(packed)
		if err != nil {
			return nil, errors.Wrap(err, "bus scatterv: unpack")
		}
		return decodeFrames(frames, codec)
	}
	if err := validateLayout(counts, displs, c.Size(), len(send)); err != nil {
		return nil, err
	}
	for r := 0; r < c.Size(); r++ {
		if r == root {
			continue
		}
		frames, err := encodeFrames(send[displs[r]:displs[r]+counts[r]], codec)
		if err != nil {
			return nil, err
		}
		if err := c.send(ctx, "scatterv", r, tagScatter, packFrames(frames)); err != nil {
			return nil, err
		}
	}
	local := make([]T, counts[root])
	copy(local, send[displs[root]:displs[root]+counts[root]])
	return local, nil
}

// GatherV collects every rank's send slice on root, placing rank r's elements at displs[r].
// counts and displs are only read on root; a contribution whose length differs from counts[r]
// is an error. Other ranks get nil.
func GatherV[T any](ctx context.Context, c *Comm, send []T, counts, displs []int, root int, codec Codec[T]) ([]T, error) {
	defer c.metrics.observeCollective("gatherv", time.Now())
	if err := checkRank(root, c.Size()); err != nil {
		return nil, err
	}
	frames, err := encodeFrames(send, codec)
	if err != nil {
		return nil, err
	}
	all, err := c.gatherBytes(ctx, "gatherv", tagGather, packFrames(frames), root)
	if err != nil || all == nil {
		return nil, err
	}
	if len(counts) != c.Size() || len(displs) != c.Size() {
		return nil, errors.Wrapf(ErrBadLayout, "len(counts)=%d len(displs)=%d size=%d", len(counts), len(displs), c.Size())
	}
	total := 0
	for r := range counts {
		total = max(total, displs[r]+counts[r])
	}
	if err := validateLayout(counts, displs, c.Size(), total); err != nil {
		return nil, err
	}
	out := make([]T, total)
	for r, packed := range all {
		frames, err := unpackFrames(packed)
		if err != nil {
			return nil, errors.Wrapf(err, "bus gatherv: unpack from rank %d", r)
		}
		if len(frames) != counts[r] {
			return nil, errors.Wrapf(ErrBadLayout, "rank %d sent %d elements, expected %d", r, len(frames), counts[r])
		}
		values, err := decodeFrames(frames, codec)
		if err != nil {
			return nil, err
		}
		copy(out[displs[r]:], values)
	}
	common.Logger.Debugf("rank %d: gatherv assembled %d elements from %d ranks", c.Rank(), total, len(all))
	return out, nil
}

func encodeFrames[T any](values []T, codec Codec[T]) ([][]byte, error) {
	frames := make([][]byte, len(values))
	for i, v := range values {
		b, err := codec.Marshal(v)
		if err != nil {
			return nil, errors.Wrapf(err, "bus: marshal element %d", i)
		}
		frames[i] = b
	}
	return frames, nil
}

func decodeFrames[T any](frames [][]byte, codec Codec[T]) ([]T, error) {
	out := make([]T, len(frames))
	for i, f := range frames {
		v, err := codec.Unmarshal(f)
		if err != nil {
			return nil, errors.Wrapf(err, "bus: unmarshal element %d", i)
		}
		out[i] = v
	}
	return out, nil
}
