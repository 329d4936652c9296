// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

// Package bench times RSA block exponentiation across a rank group.
package bench

import (
	"context"
	"math"
	"math/big"
	"time"

	"github.com/iofinnet/mpi-rsa/bus"
	"github.com/iofinnet/mpi-rsa/common"
	"github.com/iofinnet/mpi-rsa/crypto/bigmath"
	"github.com/iofinnet/mpi-rsa/crypto/blocks"
	"github.com/iofinnet/mpi-rsa/crypto/rsa"
	"github.com/iofinnet/mpi-rsa/tss"
	"github.com/iofinnet/mpi-rsa/tss/rsa/cipher"
	"github.com/iofinnet/mpi-rsa/tss/rsa/keygen"
)

const (
	taskBench   = "bench"
	taskScaling = "bench-engine"
)

// Stats accumulates samples as sum, sum of squares and count so partial stats can be summed.
type Stats struct {
	Sum, SumSq, N float64
}

func (s *Stats) Add(ms float64) {
	s.Sum += ms
	s.SumSq += ms * ms
	s.N++
}

func (s Stats) Mean() float64 {
	return s.Sum / math.Max(1, s.N)
}

// StdDev is the population standard deviation.
func (s Stats) StdDev() float64 {
	m := s.Mean()
	return math.Sqrt(math.Max(0, s.SumSq/math.Max(1, s.N)-m*m))
}

// Result is the coordinator's summary of a Run.
type Result struct {
	Reps        int
	Blocks      int
	Encrypt     Stats
	Decrypt     Stats
	TotalMs     float64
	ModulusBits int
}

// SplitReps is rank's share of reps: reps/size each, plus one for the first reps%size ranks.
func SplitReps(reps, size, rank int) int {
	if reps <= 0 || size <= 0 {
		return 0
	}
	n := reps / size
	if rank < reps%size {
		n++
	}
	return n
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Run is collective. The coordinator supplies key and text; every rank then times its share of
// reps full encrypt+decrypt passes over all blocks of text, and the partial stats are summed on
// the coordinator with Reduce. Other ranks return nil.
func Run(ctx context.Context, comm *bus.Comm, key *rsa.PrivateKey, text string, reps int) (*Result, error) {
	rank := comm.Rank()
	busErr := func(err error) error { return tss.NewError(tss.BusError, err, taskBench, rank) }
	if reps <= 0 {
		return nil, tss.Errorf(tss.InputError, taskBench, rank, "repetitions must be positive, got %d", reps)
	}

	var share *rsa.PrivateKey
	if rank == 0 {
		if !key.HasPrivate() || key.N == nil || key.E == nil {
			return nil, tss.NewError(tss.StateError, rsa.ErrNoPrivateExponent, taskBench, rank)
		}
		share = &rsa.PrivateKey{PublicKey: *key.Public(), D: key.D}
	}
	share, err := bus.Bcast[*rsa.PrivateKey](ctx, comm, share, 0, keygen.KeyCodec{})
	if err != nil {
		return nil, busErr(err)
	}
	raw, err := bus.Bcast[[]byte](ctx, comm, []byte(text), 0, bus.BytesCodec{})
	if err != nil {
		return nil, busErr(err)
	}
	plain, err := blocks.TextToBlocks(string(raw), share.N)
	if err != nil {
		return nil, tss.NewError(tss.InputError, err, taskBench, rank)
	}
	if err := comm.Barrier(ctx); err != nil {
		return nil, busErr(err)
	}

	start := time.Now()
	var enc, dec Stats
	local := SplitReps(reps, comm.Size(), rank)
	for i := 0; i < local; i++ {
		t0 := time.Now()
		ct := make([]*big.Int, len(plain))
		for j, b := range plain {
			ct[j] = bigmath.ModPow(b, share.E, share.N)
		}
		t1 := time.Now()
		for _, c := range ct {
			bigmath.ModPow(c, share.D, share.N)
		}
		t2 := time.Now()
		enc.Add(ms(t1.Sub(t0)))
		dec.Add(ms(t2.Sub(t1)))
	}
	common.Logger.Debugf("rank %d: %d repetitions in %s", rank, local, time.Since(start))

	sums, err := bus.Reduce[[]float64](ctx, comm,
		[]float64{enc.Sum, enc.SumSq, enc.N, dec.Sum, dec.SumSq, dec.N}, bus.OpSum, 0, bus.Float64sCodec{})
	if err != nil {
		return nil, busErr(err)
	}
	if rank != 0 {
		return nil, nil
	}
	return &Result{
		Reps:        reps,
		Blocks:      len(plain),
		Encrypt:     Stats{Sum: sums[0], SumSq: sums[1], N: sums[2]},
		Decrypt:     Stats{Sum: sums[3], SumSq: sums[4], N: sums[5]},
		TotalMs:     ms(time.Since(start)),
		ModulusBits: share.N.BitLen(),
	}, nil
}

// EngineTiming is the coordinator's average time for one collective encrypt and one decrypt.
type EngineTiming struct {
	Reps      int
	EncryptMs float64
	DecryptMs float64
}

// TotalMs is the mean time of a full round trip.
func (t EngineTiming) TotalMs() float64 { return t.EncryptMs + t.DecryptMs }

// TimeEngine is collective: it runs reps encrypt/decrypt round trips of text through engine and
// returns the coordinator's averages. Other ranks return nil and may pass a nil key.
func TimeEngine(ctx context.Context, engine *cipher.Engine, comm *bus.Comm, key *rsa.PrivateKey, text string, reps int) (*EngineTiming, error) {
	rank := comm.Rank()
	if reps <= 0 {
		return nil, tss.Errorf(tss.InputError, taskScaling, rank, "repetitions must be positive, got %d", reps)
	}
	var plain []*big.Int
	var e, d, n *big.Int
	if rank == 0 {
		if !key.HasPrivate() {
			return nil, tss.NewError(tss.StateError, rsa.ErrNoPrivateExponent, taskScaling, rank)
		}
		var err error
		if plain, err = blocks.TextToBlocks(text, key.N); err != nil {
			return nil, tss.NewError(tss.InputError, err, taskScaling, rank)
		}
		e, d, n = key.E, key.D, key.N
	}

	var encSum, decSum float64
	for i := 0; i < reps; i++ {
		t0 := time.Now()
		ct, err := engine.Exp(ctx, cipher.EncryptTags, plain, e, n)
		if err != nil {
			return nil, err
		}
		t1 := time.Now()
		if _, err := engine.Exp(ctx, cipher.DecryptTags, ct, d, n); err != nil {
			return nil, err
		}
		t2 := time.Now()
		encSum += ms(t1.Sub(t0))
		decSum += ms(t2.Sub(t1))
		if err := comm.Barrier(ctx); err != nil {
			return nil, tss.NewError(tss.BusError, err, taskScaling, rank)
		}
	}
	if rank != 0 {
		return nil, nil
	}
	return &EngineTiming{Reps: reps, EncryptMs: encSum / float64(reps), DecryptMs: decSum / float64(reps)}, nil
}
