// Copyright © 2019 Binance
//
// This file is part of Binance. The full Binance copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package tss

import (
	"errors"
	"math/big"

	"github.com/iofinnet/mpi-rsa/common"
)

type (
	// Parameters is the rank-group descriptor of a run plus the knobs every rank must agree on.
	Parameters struct {
		rank           int
		size           int
		bits           int
		rounds         int
		publicExponent *big.Int
	}
)

const (
	// MaxRank is the largest rank a logical timestamp can carry.
	MaxRank = 0xFFFF
	// MinModulusBits keeps both halves wide enough for an odd candidate with its top bit set.
	MinModulusBits = 16

	defaultPublicExponent = 65537
)

// DefaultPublicExponent returns a fresh copy of e = 65537.
func DefaultPublicExponent() *big.Int {
	return big.NewInt(defaultPublicExponent)
}

func NewParameters(rank, size, bits, rounds int, optionalPublicExponent ...*big.Int) (*Parameters, error) {
	var e *big.Int
	if 0 < len(optionalPublicExponent) {
		if 1 < len(optionalPublicExponent) {
			return nil, NewError(InputError, errors.New("expected 0 or 1 item in `optionalPublicExponent`"), "params", rank)
		}
		e = optionalPublicExponent[0]
	} else {
		e = DefaultPublicExponent()
	}
	if rounds < 0 {
		common.Logger.Warnf("rank %d: Miller-Rabin rounds %d coerced to 1", rank, rounds)
		rounds = 1
	}
	params := &Parameters{
		rank:           rank,
		size:           size,
		bits:           bits,
		rounds:         rounds,
		publicExponent: e,
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

func (params *Parameters) Validate() error {
	fail := func(msg string) error {
		return NewError(InputError, errors.New(msg), "params", params.rank)
	}
	if params.size < 1 {
		return fail("Parameters: size < 1")
	}
	if params.rank < 0 {
		return fail("Parameters: negative rank")
	}
	if params.rank >= params.size {
		return fail("Parameters: rank >= size")
	}
	if params.rank > MaxRank {
		return fail("Parameters: rank does not fit in 16 bits")
	}
	if params.bits <= 0 {
		return fail("Parameters: non-positive bit length")
	}
	if params.bits < MinModulusBits || params.bits%2 != 0 {
		return fail("Parameters: bit length must be even and at least 16")
	}
	if params.publicExponent == nil || params.publicExponent.Cmp(big.NewInt(3)) < 0 || params.publicExponent.Bit(0) == 0 {
		return fail("Parameters: public exponent must be odd and at least 3")
	}
	return nil
}

func (params *Parameters) Rank() int {
	return params.rank
}

func (params *Parameters) Size() int {
	return params.size
}

// IsCoordinator reports whether this rank is rank 0.
func (params *Parameters) IsCoordinator() bool {
	return params.rank == 0
}

// Bits is the requested modulus width.
func (params *Parameters) Bits() int {
	return params.bits
}

// HalfBits is the width of each prime factor.
func (params *Parameters) HalfBits() int {
	return params.bits / 2
}

// Rounds is the Miller-Rabin round count; 0 means pick by bit length.
func (params *Parameters) Rounds() int {
	return params.rounds
}

func (params *Parameters) PublicExponent() *big.Int {
	return new(big.Int).Set(params.publicExponent)
}
