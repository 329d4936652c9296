// Copyright © 2019 Binance
//
// This file is part of Binance. The full Binance copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package keygen

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/iofinnet/mpi-rsa/bus"
	"github.com/iofinnet/mpi-rsa/common"
	"github.com/iofinnet/mpi-rsa/crypto/rsa"
	"github.com/iofinnet/mpi-rsa/tss"
	"github.com/iofinnet/mpi-rsa/tss/runstats"
)

const (
	// MaxAssembleAttempts bounds how many prime pairs the coordinator may reject.
	MaxAssembleAttempts = 8

	taskGenerate = "generate-keys"
)

var errAttemptsExhausted = errors.New("no usable prime pair found")

// GenerateKeys is collective. The group searches two primes, the coordinator assembles the key
// tuple and broadcasts it, and every rank returns its own decoded copy. A pair rejected by
// AssembleKeys is announced with an empty broadcast and the group searches again. rec may be nil.
func GenerateKeys(ctx context.Context, comm *bus.Comm, params *tss.Parameters, rng io.Reader, rec *runstats.Recorder) (*rsa.PrivateKey, error) {
	rank := comm.Rank()
	if params == nil {
		return nil, tss.Errorf(tss.InputError, taskGenerate, rank, "nil parameters")
	}
	if params.Size() != comm.Size() || params.Rank() != rank {
		return nil, tss.Errorf(tss.InputError, taskGenerate, rank,
			"parameters describe rank %d of %d, communicator is rank %d of %d",
			params.Rank(), params.Size(), rank, comm.Size())
	}
	if err := begin(rec); err != nil {
		return nil, err
	}
	rng = common.Reader(rng)
	start := time.Now()
	for attempt := 1; attempt <= MaxAssembleAttempts; attempt++ {
		wonBits := -1
		p, err := FindProbablePrime(ctx, comm, params.Bits(), params.Rounds(), rng, nil)
		if err != nil {
			return nil, err
		}
		q, err := FindProbablePrime(ctx, comm, params.Bits(), params.Rounds(), rng, nil)
		if err != nil {
			return nil, err
		}
		if p.LocalWon {
			wonBits = p.Prime.BitLen()
		}
		if q.LocalWon {
			wonBits = q.Prime.BitLen()
		}

		var key *rsa.PrivateKey
		if params.IsCoordinator() {
			key, err = rsa.AssembleKeys(p.Prime, q.Prime, params.PublicExponent())
			if err != nil {
				if tss.KindOf(err) != tss.KeyGenError {
					return nil, err
				}
				common.Logger.Warnf("attempt %d/%d: %v; searching again", attempt, MaxAssembleAttempts, err)
				key = nil
			}
		}
		key, err = bus.Bcast[*rsa.PrivateKey](ctx, comm, key, 0, KeyCodec{})
		if err != nil {
			return nil, tss.NewError(tss.BusError, err, taskGenerate, rank)
		}
		if key == nil {
			continue
		}
		if err := key.Validate(); err != nil {
			return nil, tss.NewError(tss.KeyGenError, errors.Wrap(err, "broadcast key"), taskGenerate, rank)
		}
		if err := finish(rec, wonBits > 0, wonBits); err != nil {
			return nil, err
		}
		if params.IsCoordinator() {
			common.Logger.Infof("key generated in %s: modulus of %d bits after %d attempt(s)",
				time.Since(start), key.N.BitLen(), attempt)
			common.Logger.Debugf("modulus ...%s, p ...%s, q ...%s",
				common.FormatBigInt(key.N), common.FormatBigInt(key.P), common.FormatBigInt(key.Q))
		}
		return key, nil
	}
	return nil, tss.NewError(tss.KeyGenError, errors.Wrapf(errAttemptsExhausted, "after %d attempts", MaxAssembleAttempts), taskGenerate, rank)
}
