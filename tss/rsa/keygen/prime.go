// Copyright © 2019 Binance
//
// This file is part of Binance. The full Binance copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package keygen

import (
	"context"
	"io"
	"math/big"

	"github.com/iofinnet/mpi-rsa/bus"
	"github.com/iofinnet/mpi-rsa/common"
	"github.com/iofinnet/mpi-rsa/crypto/bigmath"
	"github.com/iofinnet/mpi-rsa/tss"
	"github.com/iofinnet/mpi-rsa/tss/runstats"
)

const (
	MinSearchBits = 4

	taskFindPrime = "find-prime"
	taskRacePrime = "race-prime"
)

// SearchResult is what every rank learns from a distributed prime search.
type SearchResult struct {
	Prime  *big.Int
	Rounds int
	// Winner is the rank whose candidate was taken.
	Winner int
	// LocalWon is true on the winning rank only.
	LocalWon bool
}

func validateSearch(task string, comm *bus.Comm, totalBits int) error {
	if totalBits < MinSearchBits || totalBits%2 != 0 {
		return tss.Errorf(tss.InputError, task, comm.Rank(),
			"total bit length must be even and at least %d, got %d", MinSearchBits, totalBits)
	}
	return nil
}

// localCandidate draws one odd halfBits candidate and returns it when it passes Miller-Rabin, nil otherwise.
func localCandidate(task string, rank, halfBits, rounds int, rng io.Reader) (*big.Int, error) {
	cand, err := common.GetRandomOddCandidate(rng, halfBits)
	if err != nil {
		return nil, tss.NewError(tss.InputError, err, task, rank)
	}
	ok, err := bigmath.IsProbablePrime(cand, rounds, rng)
	if err != nil {
		return nil, tss.NewError(tss.InputError, err, task, rank)
	}
	if !ok {
		return nil, nil
	}
	return cand, nil
}

func begin(rec *runstats.Recorder) error {
	if rec == nil {
		return nil
	}
	return rec.Begin()
}

func finish(rec *runstats.Recorder, won bool, bits int) error {
	if rec == nil {
		return nil
	}
	if won {
		if err := rec.Found(bits); err != nil {
			return err
		}
	}
	return rec.End()
}

// FindProbablePrime is collective. In every round each rank tests one random odd candidate of
// totalBits/2 bits and the passing candidates are all-gathered; the lowest-ranked one wins.
// Every rank runs the same number of rounds and returns the same prime. rec may be nil.
func FindProbablePrime(ctx context.Context, comm *bus.Comm, totalBits, rounds int, rng io.Reader, rec *runstats.Recorder) (*SearchResult, error) {
	rank := comm.Rank()
	if err := validateSearch(taskFindPrime, comm, totalBits); err != nil {
		return nil, err
	}
	if err := begin(rec); err != nil {
		return nil, err
	}
	halfBits := totalBits / 2
	rng = common.Reader(rng)
	for round := 1; ; round++ {
		if err := ctx.Err(); err != nil {
			return nil, tss.NewError(tss.BusError, err, taskFindPrime, rank)
		}
		cand, err := localCandidate(taskFindPrime, rank, halfBits, rounds, rng)
		if err != nil {
			return nil, err
		}
		if cand != nil {
			common.Logger.Debugf("rank %d: probable prime of %d bits in round %d", rank, cand.BitLen(), round)
		}
		winners, err := bus.AllGather[*big.Int](ctx, comm, cand, bus.BigIntCodec{})
		if err != nil {
			return nil, tss.NewError(tss.BusError, err, taskFindPrime, rank)
		}
		if rank == 0 {
			common.Logger.Debugf("round %d candidates: %s", round, common.BigIntsToString(winners))
		}
		for r, w := range winners {
			if w == nil {
				continue
			}
			res := &SearchResult{Prime: w, Rounds: round, Winner: r, LocalWon: r == rank}
			if err := finish(rec, res.LocalWon, w.BitLen()); err != nil {
				return nil, err
			}
			if rank == 0 {
				common.Logger.Infof("prime ...%s of %d bits found by rank %d after %d rounds",
					common.FormatBigInt(w), w.BitLen(), r, round)
			}
			return res, nil
		}
	}
}

// RaceProbablePrime is collective. Ranks search independently and after every round an
// all-reduce MAX of the found flags tells everyone whether to stop; the largest passing
// candidate of the final round is then agreed on with a second all-reduce MAX, the
// highest rank holding it being the winner. rec may be nil.
func RaceProbablePrime(ctx context.Context, comm *bus.Comm, totalBits, rounds int, rng io.Reader, rec *runstats.Recorder) (*SearchResult, error) {
	rank := comm.Rank()
	if err := validateSearch(taskRacePrime, comm, totalBits); err != nil {
		return nil, err
	}
	if err := begin(rec); err != nil {
		return nil, err
	}
	halfBits := totalBits / 2
	rng = common.Reader(rng)
	for round := 1; ; round++ {
		if err := ctx.Err(); err != nil {
			return nil, tss.NewError(tss.BusError, err, taskRacePrime, rank)
		}
		cand, err := localCandidate(taskRacePrime, rank, halfBits, rounds, rng)
		if err != nil {
			return nil, err
		}
		var flag int64
		if cand != nil {
			flag = 1
		}
		anyFound, err := bus.AllReduce[int64](ctx, comm, flag, bus.OpMax, bus.Int64Codec{})
		if err != nil {
			return nil, tss.NewError(tss.BusError, err, taskRacePrime, rank)
		}
		if anyFound == 0 {
			continue
		}
		prime, err := bus.AllReduce[*big.Int](ctx, comm, cand, bus.OpMax, bus.BigIntCodec{})
		if err != nil {
			return nil, tss.NewError(tss.BusError, err, taskRacePrime, rank)
		}
		won := cand != nil && cand.Cmp(prime) == 0
		mine := int64(-1)
		if won {
			mine = int64(rank)
		}
		winner, err := bus.AllReduce[int64](ctx, comm, mine, bus.OpMax, bus.Int64Codec{})
		if err != nil {
			return nil, tss.NewError(tss.BusError, err, taskRacePrime, rank)
		}
		bits := -1
		if cand != nil {
			bits = cand.BitLen()
		}
		if err := finish(rec, cand != nil, bits); err != nil {
			return nil, err
		}
		res := &SearchResult{Prime: prime, Rounds: round, Winner: int(winner), LocalWon: won && int(winner) == rank}
		return res, nil
	}
}
