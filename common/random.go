// Copyright © 2019 Binance
//
// This file is part of Binance. The full Binance copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package common

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/pkg/errors"
)

const (
	mustGetRandomIntMaxBits = 16384
)

var (
	zero = big.NewInt(0)
	one  = big.NewInt(1)
)

// Reader returns rng, or crypto/rand.Reader when rng is nil.
func Reader(rng io.Reader) io.Reader {
	if rng == nil {
		return rand.Reader
	}
	return rng
}

// GetRandomBits returns a uniformly distributed integer in [0, 2^bits).
func GetRandomBits(rng io.Reader, bits int) (*big.Int, error) {
	if bits <= 0 || mustGetRandomIntMaxBits < bits {
		return nil, fmt.Errorf("GetRandomBits: bits should be positive, non-zero and less than %d", mustGetRandomIntMaxBits)
	}
	buf := make([]byte, (bits+7)/8)
	if _, err := io.ReadFull(Reader(rng), buf); err != nil {
		return nil, errors.Wrap(err, "GetRandomBits: entropy read failed")
	}
	// clear the excess high bits of the leading byte
	if excess := uint(len(buf)*8 - bits); excess > 0 {
		buf[0] &= byte(0xFF >> excess)
	}
	return new(big.Int).SetBytes(buf), nil
}

// MustGetRandomInt panics if it is unable to gather entropy from `rng` or when `bits` is <= 0
func MustGetRandomInt(rng io.Reader, bits int) *big.Int {
	n, err := GetRandomBits(rng, bits)
	if err != nil {
		panic(errors.Wrap(err, "MustGetRandomInt"))
	}
	return n
}

// GetRandomIntInRange draws a uniform value in [lo, hi] by rejection sampling bit strings of
// length bitlen(hi)+1.
func GetRandomIntInRange(rng io.Reader, lo, hi *big.Int) (*big.Int, error) {
	if lo == nil || hi == nil || lo.Sign() < 0 || lo.Cmp(hi) > 0 {
		return nil, errors.New("GetRandomIntInRange: expected 0 <= lo <= hi")
	}
	bits := hi.BitLen() + 1
	for {
		try, err := GetRandomBits(rng, bits)
		if err != nil {
			return nil, err
		}
		if try.Cmp(lo) >= 0 && try.Cmp(hi) <= 0 {
			return try, nil
		}
	}
}

// GetRandomOddCandidate returns a random odd integer of exactly `bits` bits (top bit set).
func GetRandomOddCandidate(rng io.Reader, bits int) (*big.Int, error) {
	if bits < 2 {
		return nil, fmt.Errorf("GetRandomOddCandidate: bits must be at least 2, got %d", bits)
	}
	try, err := GetRandomBits(rng, bits)
	if err != nil {
		return nil, err
	}
	try.SetBit(try, bits-1, 1)
	try.SetBit(try, 0, 1)
	return try, nil
}

func GetRandomPositiveInt(rng io.Reader, upper *big.Int) *big.Int {
	if upper == nil || zero.Cmp(upper) != -1 {
		return nil
	}
	var try *big.Int
	for {
		try = MustGetRandomInt(rng, upper.BitLen())
		if try.Cmp(upper) < 0 && try.Cmp(zero) > 0 {
			break
		}
	}
	return try
}

// IsNumberInMultiplicativeGroup reports whether v is a unit of Z/nZ.
func IsNumberInMultiplicativeGroup(n, v *big.Int) bool {
	if n == nil || v == nil || zero.Cmp(n) != -1 {
		return false
	}
	gcd := new(big.Int)
	return v.Cmp(n) < 0 && v.Cmp(one) >= 0 &&
		gcd.GCD(nil, nil, v, n).Cmp(one) == 0
}
