// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

// Package bigmath holds the arbitrary-precision arithmetic used by key generation and the
// block cipher: square-and-multiply modular exponentiation, a Miller-Rabin probable-prime test
// and the extended Euclidean algorithm. Everything here is stateless.
package bigmath

import (
	"io"
	"math/big"

	"github.com/pkg/errors"

	"github.com/iofinnet/mpi-rsa/common"
)

var (
	zero = big.NewInt(0)
	one  = big.NewInt(1)
	two  = big.NewInt(2)
)

// ModPow computes base^exp mod mod by right-to-left binary exponentiation.
// It returns 0 when mod = 1 and 1 when exp = 0. Negative exponents and non-positive moduli panic.
func ModPow(base, exp, mod *big.Int) *big.Int {
	if mod.Sign() <= 0 {
		panic(errors.New("ModPow: modulus must be positive"))
	}
	if exp.Sign() < 0 {
		panic(errors.New("ModPow: negative exponent"))
	}
	if mod.Cmp(one) == 0 {
		return new(big.Int)
	}
	result := big.NewInt(1)
	if exp.Sign() == 0 {
		return result
	}
	b := new(big.Int).Mod(base, mod)
	for i, bits := 0, exp.BitLen(); i < bits; i++ {
		if exp.Bit(i) == 1 {
			result.Mul(result, b).Mod(result, mod)
		}
		if i+1 < bits {
			b.Mul(b, b).Mod(b, mod)
		}
	}
	return result
}

// DefaultRounds picks a Miller-Rabin round count by bit length.
func DefaultRounds(bits int) int {
	switch {
	case bits <= 64:
		return 8
	case bits <= 128:
		return 6
	case bits <= 256:
		return 5
	case bits <= 512:
		return 7
	case bits <= 1024:
		return 5
	case bits <= 2048:
		return 4
	default:
		return 3
	}
}

// IsProbablePrime runs `rounds` Miller-Rabin rounds on n with bases drawn uniformly from [2, n-2].
// rounds == 0 selects DefaultRounds(n.BitLen()); negative rounds are coerced to 1.
// rng may be nil, in which case crypto/rand is used. The error is non-nil only when rng fails.
func IsProbablePrime(n *big.Int, rounds int, rng io.Reader) (bool, error) {
	if n == nil || n.Cmp(two) < 0 {
		return false, nil
	}
	if n.Cmp(two) == 0 || n.Cmp(big.NewInt(3)) == 0 {
		return true, nil
	}
	if n.Bit(0) == 0 {
		return false, nil
	}
	rem := new(big.Int)
	for _, p := range common.SmallOddPrimes() {
		if n.Cmp(p) == 0 {
			return true, nil
		}
		if rem.Mod(n, p).Sign() == 0 {
			return false, nil
		}
	}
	switch {
	case rounds == 0:
		rounds = DefaultRounds(n.BitLen())
	case rounds < 0:
		rounds = 1
	}

	nMinusOne := new(big.Int).Sub(n, one)
	nMinusTwo := new(big.Int).Sub(n, two)
	s := nMinusOne.TrailingZeroBits()
	d := new(big.Int).Rsh(nMinusOne, s)

	for i := 0; i < rounds; i++ {
		a, err := common.GetRandomIntInRange(rng, two, nMinusTwo)
		if err != nil {
			return false, errors.Wrap(err, "IsProbablePrime: base sampling")
		}
		if !millerRabinRound(a, d, s, n, nMinusOne) {
			return false, nil
		}
	}
	return true, nil
}

func millerRabinRound(a, d *big.Int, s uint, n, nMinusOne *big.Int) bool {
	x := ModPow(a, d, n)
	if x.Cmp(one) == 0 || x.Cmp(nMinusOne) == 0 {
		return true
	}
	for r := uint(1); r < s; r++ {
		x.Mul(x, x).Mod(x, n)
		if x.Cmp(nMinusOne) == 0 {
			return true
		}
	}
	return false
}

// GCD returns gcd(a, b) for non-negative a, b.
func GCD(a, b *big.Int) *big.Int {
	g, _, _ := ExtendedGCD(a, b)
	return g
}

// ExtendedGCD returns (g, x, y) with a*x + b*y = g = gcd(a, b).
func ExtendedGCD(a, b *big.Int) (g, x, y *big.Int) {
	oldR, r := new(big.Int).Set(a), new(big.Int).Set(b)
	oldS, s := big.NewInt(1), big.NewInt(0)
	oldT, t := big.NewInt(0), big.NewInt(1)
	q, tmp := new(big.Int), new(big.Int)
	for r.Sign() != 0 {
		q.Quo(oldR, r)

		tmp.Mul(q, r)
		oldR, r = r, new(big.Int).Sub(oldR, tmp)

		tmp.Mul(q, s)
		oldS, s = s, new(big.Int).Sub(oldS, tmp)

		tmp.Mul(q, t)
		oldT, t = t, new(big.Int).Sub(oldT, tmp)
	}
	if oldR.Sign() < 0 {
		oldR.Neg(oldR)
		oldS.Neg(oldS)
		oldT.Neg(oldT)
	}
	return oldR, oldS, oldT
}

// ErrNoInverse is returned by ModInverse when gcd(a, m) != 1.
var ErrNoInverse = errors.New("no modular inverse exists")

// ModInverse returns a^-1 mod m in [0, m).
func ModInverse(a, m *big.Int) (*big.Int, error) {
	if m.Sign() <= 0 {
		return nil, errors.New("ModInverse: modulus must be positive")
	}
	aa := new(big.Int).Mod(a, m)
	g, x, _ := ExtendedGCD(aa, m)
	if g.Cmp(one) != 0 {
		return nil, errors.Wrapf(ErrNoInverse, "gcd(%s, %s) = %s", aa.String(), m.String(), g.String())
	}
	return x.Mod(x, m), nil
}
