// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package bigmath

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iofinnet/mpi-rsa/common"
)

func bi(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad decimal " + s)
	}
	return n
}

func TestModPowKnownValue(t *testing.T) {
	t.Parallel()
	got := ModPow(big.NewInt(123456789), big.NewInt(987654321), big.NewInt(1000000007))
	assert.Equal(t, "652541198", got.String())
}

func TestModPowEdgeCases(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name           string
		base, exp, mod int64
		want           int64
	}{
		{"mod one", 5, 3, 1, 0},
		{"exp zero", 5, 0, 7, 1},
		{"zero base", 0, 5, 7, 0},
		{"zero base zero exp", 0, 0, 7, 1},
		{"base larger than mod", 10, 1, 7, 3},
		{"fermat", 3, 6, 7, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ModPow(big.NewInt(tt.base), big.NewInt(tt.exp), big.NewInt(tt.mod))
			assert.Equal(t, tt.want, got.Int64())
		})
	}
}

func TestModPowMatchesExp(t *testing.T) {
	t.Parallel()
	for i := 0; i < 50; i++ {
		base := common.MustGetRandomInt(nil, 300)
		exp := common.MustGetRandomInt(nil, 200)
		mod := new(big.Int).Add(common.MustGetRandomInt(nil, 256), big.NewInt(1))
		want := new(big.Int).Exp(base, exp, mod)
		assert.Equal(t, 0, want.Cmp(ModPow(base, exp, mod)), "iteration %d", i)
	}
}

func TestModPowPanicsOnNegativeExponent(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { ModPow(big.NewInt(2), big.NewInt(-1), big.NewInt(7)) })
	assert.Panics(t, func() { ModPow(big.NewInt(2), big.NewInt(1), big.NewInt(0)) })
}

func TestIsProbablePrimeSmallValues(t *testing.T) {
	t.Parallel()
	for n := int64(-3); n < 2000; n++ {
		got, err := IsProbablePrime(big.NewInt(n), 20, nil)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(n).ProbablyPrime(20), got, "n = %d", n)
	}
}

func TestIsProbablePrimeCarmichael(t *testing.T) {
	t.Parallel()
	for _, n := range []int64{561, 1105, 1729, 2465, 2821, 6601, 8911, 41041, 825265} {
		got, err := IsProbablePrime(big.NewInt(n), 20, nil)
		require.NoError(t, err)
		assert.False(t, got, "Carmichael number %d", n)
	}
}

func TestIsProbablePrimeLarge(t *testing.T) {
	t.Parallel()
	p25519 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(19))
	got, err := IsProbablePrime(p25519, 20, nil)
	require.NoError(t, err)
	assert.True(t, got, "2^255 - 19")

	// M127 prime, M127 * M61 composite
	m127 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	m61 := bi("2305843009213693951")
	got, err = IsProbablePrime(m127, 0, nil)
	require.NoError(t, err)
	assert.True(t, got)
	got, err = IsProbablePrime(new(big.Int).Mul(m127, m61), 20, nil)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestIsProbablePrimeNonPositiveRounds(t *testing.T) {
	t.Parallel()
	got, err := IsProbablePrime(big.NewInt(1000003), -5, nil)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestIsProbablePrimeDeterministicWithSeed(t *testing.T) {
	t.Parallel()
	rng, err := common.NewSeededReader([]byte("bigmath"), 0)
	require.NoError(t, err)
	got, err := IsProbablePrime(bi("170141183460469231731687303715884105727"), 20, rng)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestDefaultRounds(t *testing.T) {
	t.Parallel()
	tests := []struct{ bits, want int }{
		{1, 8}, {64, 8}, {65, 6}, {128, 6}, {129, 5}, {256, 5}, {257, 7}, {512, 7},
		{513, 5}, {1024, 5}, {1025, 4}, {2048, 4}, {2049, 3}, {4096, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultRounds(tt.bits), "bits %d", tt.bits)
	}
}

func TestExtendedGCD(t *testing.T) {
	t.Parallel()
	tests := []struct{ a, b, g int64 }{
		{240, 46, 2}, {17, 3120, 1}, {0, 5, 5}, {5, 0, 5}, {65537, 65537 * 3, 65537},
	}
	for _, tt := range tests {
		a, b := big.NewInt(tt.a), big.NewInt(tt.b)
		g, x, y := ExtendedGCD(a, b)
		assert.Equal(t, tt.g, g.Int64())
		lhs := new(big.Int).Add(new(big.Int).Mul(a, x), new(big.Int).Mul(b, y))
		assert.Equal(t, 0, lhs.Cmp(g), "bezout identity for (%d, %d)", tt.a, tt.b)
		assert.Equal(t, tt.g, GCD(a, b).Int64())
	}
}

func TestModInverse(t *testing.T) {
	t.Parallel()
	inv, err := ModInverse(big.NewInt(17), big.NewInt(3120))
	require.NoError(t, err)
	assert.Equal(t, int64(2753), inv.Int64())

	_, err = ModInverse(big.NewInt(6), big.NewInt(9))
	assert.ErrorIs(t, err, ErrNoInverse)

	_, err = ModInverse(big.NewInt(6), big.NewInt(0))
	assert.Error(t, err)
}
