// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package cipher

import (
	"context"
	"math/big"

	"github.com/pkg/errors"

	"github.com/iofinnet/mpi-rsa/bus"
	"github.com/iofinnet/mpi-rsa/common"
	"github.com/iofinnet/mpi-rsa/tss"
)

const (
	// ModPowTag carries the partial products of ParallelModPow to the coordinator.
	ModPowTag = 300

	taskModPow = "parallel-modpow"
)

// ParallelModPow is collective and computes one base^exp mod mod across the group. The
// coordinator squares its way through base^(2^i) for every bit of exp and broadcasts the table;
// rank r multiplies the powers of the set bits i with i mod size = r, and the coordinator folds
// the partial products. Only the coordinator supplies inputs; every rank returns the result.
func ParallelModPow(ctx context.Context, comm *bus.Comm, base, exp, mod *big.Int) (*big.Int, error) {
	rank, size := comm.Rank(), comm.Size()
	busErr := func(err error) error { return tss.NewError(tss.BusError, err, taskModPow, rank) }

	var (
		header  int64
		powers  []*big.Int
		rootErr error
	)
	if rank == 0 {
		switch {
		case base == nil || exp == nil || mod == nil:
			rootErr = tss.Errorf(tss.InputError, taskModPow, 0, "missing base, exponent or modulus")
		case base.Sign() < 0 || exp.Sign() < 0:
			rootErr = tss.Errorf(tss.InputError, taskModPow, 0, "negative base or exponent")
		case mod.Sign() <= 0:
			rootErr = tss.Errorf(tss.InputError, taskModPow, 0, "modulus must be positive")
		}
		if rootErr != nil {
			header = -int64(tss.InputError)
		} else {
			header = int64(exp.BitLen())
			powers = make([]*big.Int, exp.BitLen())
			cur := new(big.Int).Mod(base, mod)
			for i := range powers {
				powers[i] = cur
				cur = new(big.Int).Mul(cur, cur)
				cur.Mod(cur, mod)
			}
		}
	}
	header, err := bus.Bcast[int64](ctx, comm, header, 0, bus.Int64Codec{})
	if err != nil {
		return nil, busErr(err)
	}
	if header < 0 {
		if rank == 0 {
			return nil, rootErr
		}
		return nil, tss.Errorf(tss.ErrorKind(-header), taskModPow, rank, "coordinator aborted the call")
	}

	meta, err := bus.Bcast[[]*big.Int](ctx, comm, []*big.Int{exp, mod}, 0, bus.BigIntsCodec{})
	if err != nil {
		return nil, busErr(err)
	}
	if len(meta) != 2 {
		return nil, busErr(errors.Errorf("expected exponent and modulus, got %d values", len(meta)))
	}
	exp, mod = meta[0], meta[1]
	if header > 0 {
		if powers, err = bus.Bcast[[]*big.Int](ctx, comm, powers, 0, bus.BigIntsCodec{}); err != nil {
			return nil, busErr(err)
		}
		if int64(len(powers)) != header {
			return nil, busErr(errors.Errorf("received %d powers, expected %d", len(powers), header))
		}
	}

	local := new(big.Int).Mod(big.NewInt(1), mod)
	for i := rank; i < len(powers); i += size {
		if exp.Bit(i) == 1 {
			local.Mul(local, powers[i]).Mod(local, mod)
		}
	}

	var result *big.Int
	if rank == 0 {
		result = local
		for r := 1; r < size; r++ {
			part, err := bus.Recv[*big.Int](ctx, comm, r, ModPowTag, bus.BigIntCodec{})
			if err != nil {
				return nil, busErr(err)
			}
			if part == nil {
				return nil, busErr(errors.Errorf("rank %d sent no partial product", r))
			}
			result.Mul(result, part).Mod(result, mod)
		}
		common.Logger.Debugf("parallel modpow over %d bits on %d ranks: ...%s", header, size, common.FormatBigInt(result))
	} else if err := bus.Send[*big.Int](ctx, comm, local, 0, ModPowTag, bus.BigIntCodec{}); err != nil {
		return nil, busErr(err)
	}

	result, err = bus.Bcast[*big.Int](ctx, comm, result, 0, bus.BigIntCodec{})
	if err != nil {
		return nil, busErr(err)
	}
	return result, nil
}
