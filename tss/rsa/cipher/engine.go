// Copyright © 2019 Binance
//
// This file is part of Binance. The full Binance copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

// Package cipher spreads block-wise modular exponentiation over a rank group.
package cipher

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/iofinnet/mpi-rsa/bus"
	"github.com/iofinnet/mpi-rsa/common"
	"github.com/iofinnet/mpi-rsa/crypto/bigmath"
	"github.com/iofinnet/mpi-rsa/tss"
)

// Policy selects how blocks are assigned to ranks.
type Policy int

const (
	// PolicyRoundRobin broadcasts every block; rank r handles indices i with i mod size = r and
	// sends (count, indices, values) back on a tag triple.
	PolicyRoundRobin Policy = iota
	// PolicyContiguous scatters balanced contiguous runs and gathers them back in place.
	PolicyContiguous
)

func (p Policy) String() string {
	switch p {
	case PolicyRoundRobin:
		return "round-robin"
	case PolicyContiguous:
		return "contiguous"
	default:
		return "unknown"
	}
}

// ParsePolicy accepts "r", "round-robin", "s" and "contiguous", in any case.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "r", "rr", "round-robin", "roundrobin":
		return PolicyRoundRobin, nil
	case "s", "contiguous", "scatter":
		return PolicyContiguous, nil
	}
	return 0, tss.Errorf(tss.InputError, "parse-policy", -1, "unknown scheduling policy %q", s)
}

// TagSet is the point-to-point tag triple used by PolicyRoundRobin.
type TagSet struct {
	Count, Index, Value int
}

var (
	EncryptTags = TagSet{Count: 100, Index: 101, Value: 102}
	DecryptTags = TagSet{Count: 200, Index: 201, Value: 202}
)

// Engine runs collective exponentiations. It keeps no state between calls.
type Engine struct {
	comm   *bus.Comm
	policy Policy
}

func NewEngine(comm *bus.Comm, policy Policy) *Engine {
	return &Engine{comm: comm, policy: policy}
}

func (e *Engine) Policy() Policy { return e.policy }

const taskExp = "block-exp"

// Exp is collective. On the coordinator it returns blocks[i]^x mod n for every i; the other
// ranks pass nil inputs and get nil. With zero blocks only the metadata is broadcast.
func (e *Engine) Exp(ctx context.Context, tags TagSet, blocks []*big.Int, x, n *big.Int) ([]*big.Int, error) {
	var rootErr error
	if e.comm.Rank() == 0 {
		rootErr = checkInputs(blocks, x, n)
	}
	return e.exp(ctx, tags, blocks, x, n, rootErr)
}

func checkInputs(blocks []*big.Int, x, n *big.Int) error {
	if x == nil || n == nil {
		return tss.Errorf(tss.InputError, taskExp, 0, "missing exponent or modulus")
	}
	if x.Sign() < 0 {
		return tss.Errorf(tss.InputError, taskExp, 0, "negative exponent")
	}
	if n.Sign() <= 0 {
		return tss.Errorf(tss.InputError, taskExp, 0, "modulus must be positive")
	}
	for i, b := range blocks {
		if b == nil || b.Sign() < 0 {
			return tss.Errorf(tss.InputError, taskExp, 0, "block %d is missing or negative", i)
		}
	}
	return nil
}

// exp broadcasts T first; a negative T carries the kind of rootErr so every rank fails together.
func (e *Engine) exp(ctx context.Context, tags TagSet, blocks []*big.Int, x, n *big.Int, rootErr error) ([]*big.Int, error) {
	comm, rank := e.comm, e.comm.Rank()
	busErr := func(err error) error {
		return tss.NewError(tss.BusError, err, taskExp, rank)
	}

	total := int64(len(blocks))
	if rootErr != nil {
		kind := tss.KindOf(rootErr)
		if kind == tss.UnknownError {
			kind = tss.InputError
		}
		total = -int64(kind)
	}
	total, err := bus.Bcast[int64](ctx, comm, total, 0, bus.Int64Codec{})
	if err != nil {
		return nil, busErr(err)
	}
	if total < 0 {
		if rank == 0 {
			return nil, rootErr
		}
		return nil, tss.Errorf(tss.ErrorKind(-total), taskExp, rank, "coordinator aborted the call")
	}
	meta, err := bus.Bcast[[]*big.Int](ctx, comm, []*big.Int{x, n}, 0, bus.BigIntsCodec{})
	if err != nil {
		return nil, busErr(err)
	}
	if len(meta) != 2 {
		return nil, busErr(errors.Errorf("expected exponent and modulus, got %d values", len(meta)))
	}
	x, n = meta[0], meta[1]
	if total == 0 {
		if rank == 0 {
			return []*big.Int{}, nil
		}
		return nil, nil
	}

	var out []*big.Int
	switch e.policy {
	case PolicyRoundRobin:
		out, err = e.roundRobin(ctx, tags, blocks, int(total), x, n)
	case PolicyContiguous:
		out, err = e.contiguous(ctx, blocks, int(total), x, n)
	default:
		err = tss.Errorf(tss.InputError, taskExp, rank, "unknown policy %d", e.policy)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func modPowAll(blocks []*big.Int, x, n *big.Int) []*big.Int {
	out := make([]*big.Int, len(blocks))
	for i, b := range blocks {
		out[i] = bigmath.ModPow(b, x, n)
	}
	return out
}

func (e *Engine) roundRobin(ctx context.Context, tags TagSet, blocks []*big.Int, total int, x, n *big.Int) ([]*big.Int, error) {
	comm, rank, size := e.comm, e.comm.Rank(), e.comm.Size()
	busErr := func(err error) error {
		return tss.NewError(tss.BusError, err, taskExp, rank)
	}

	blocks, err := bus.Bcast[[]*big.Int](ctx, comm, blocks, 0, bus.BigIntsCodec{})
	if err != nil {
		return nil, busErr(err)
	}
	if len(blocks) != total {
		return nil, busErr(errors.Errorf("received %d blocks, expected %d", len(blocks), total))
	}

	start := time.Now()
	var (
		idx  []int64
		vals []*big.Int
	)
	for i := rank; i < total; i += size {
		idx = append(idx, int64(i))
		vals = append(vals, bigmath.ModPow(blocks[i], x, n))
	}
	common.Logger.Debugf("rank %d: %d of %d blocks in %s", rank, len(vals), total, time.Since(start))

	if rank != 0 {
		if err := bus.Send[int64](ctx, comm, int64(len(idx)), 0, tags.Count, bus.Int64Codec{}); err != nil {
			return nil, busErr(err)
		}
		if len(idx) == 0 {
			return nil, nil
		}
		if err := bus.Send[[]int64](ctx, comm, idx, 0, tags.Index, bus.Int64sCodec{}); err != nil {
			return nil, busErr(err)
		}
		if err := bus.Send[[]*big.Int](ctx, comm, vals, 0, tags.Value, bus.BigIntsCodec{}); err != nil {
			return nil, busErr(err)
		}
		return nil, nil
	}

	out := make([]*big.Int, total)
	place := func(from int, idx []int64, vals []*big.Int) error {
		if len(idx) != len(vals) {
			return errors.Errorf("rank %d sent %d indices and %d values", from, len(idx), len(vals))
		}
		for j, i := range idx {
			if i < 0 || i >= int64(total) || out[i] != nil {
				return errors.Errorf("rank %d sent bad or duplicate index %d", from, i)
			}
			out[i] = vals[j]
		}
		return nil
	}
	if err := place(0, idx, vals); err != nil {
		return nil, busErr(err)
	}
	for r := 1; r < size; r++ {
		count, err := bus.Recv[int64](ctx, comm, r, tags.Count, bus.Int64Codec{})
		if err != nil {
			return nil, busErr(err)
		}
		if count == 0 {
			continue
		}
		ridx, err := bus.Recv[[]int64](ctx, comm, r, tags.Index, bus.Int64sCodec{})
		if err != nil {
			return nil, busErr(err)
		}
		rvals, err := bus.Recv[[]*big.Int](ctx, comm, r, tags.Value, bus.BigIntsCodec{})
		if err != nil {
			return nil, busErr(err)
		}
		if int64(len(ridx)) != count {
			return nil, busErr(errors.Errorf("rank %d announced %d results, sent %d", r, count, len(ridx)))
		}
		if err := place(r, ridx, rvals); err != nil {
			return nil, busErr(err)
		}
	}
	for i, v := range out {
		if v == nil {
			return nil, busErr(errors.Errorf("no result for block %d", i))
		}
	}
	return out, nil
}

func (e *Engine) contiguous(ctx context.Context, blocks []*big.Int, total int, x, n *big.Int) ([]*big.Int, error) {
	comm, rank := e.comm, e.comm.Rank()
	busErr := func(err error) error {
		return tss.NewError(tss.BusError, err, taskExp, rank)
	}

	counts, displs := bus.BalancedLayout(total, comm.Size())
	local, err := bus.ScatterV[*big.Int](ctx, comm, blocks, counts, displs, 0, bus.BigIntCodec{})
	if err != nil {
		return nil, busErr(err)
	}
	if len(local) != counts[rank] {
		return nil, busErr(errors.Errorf("received %d blocks, expected %d", len(local), counts[rank]))
	}

	start := time.Now()
	results := modPowAll(local, x, n)
	common.Logger.Debugf("rank %d: blocks [%d, %d) in %s", rank, displs[rank], displs[rank]+counts[rank], time.Since(start))

	out, err := bus.GatherV[*big.Int](ctx, comm, results, counts, displs, 0, bus.BigIntCodec{})
	if err != nil {
		return nil, busErr(err)
	}
	return out, nil
}
