package cipher

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iofinnet/mpi-rsa/bus"
	"github.com/iofinnet/mpi-rsa/common"
	"github.com/iofinnet/mpi-rsa/crypto/bigmath"
	"github.com/iofinnet/mpi-rsa/test"
	"github.com/iofinnet/mpi-rsa/tss"
)

func modPowOnWorld(t *testing.T, size int, base, exp, mod *big.Int) []*big.Int {
	t.Helper()
	return test.RunWorld(t, size, func(ctx context.Context, c *bus.Comm) (*big.Int, error) {
		if c.Rank() != 0 {
			return ParallelModPow(ctx, c, nil, nil, nil)
		}
		return ParallelModPow(ctx, c, base, exp, mod)
	})
}

func TestParallelModPowMatchesModPow(t *testing.T) {
	t.Parallel()
	mod := new(big.Int).Add(common.MustGetRandomInt(nil, 512), big.NewInt(2))
	tests := []struct {
		name      string
		base, exp *big.Int
	}{
		{"random", common.MustGetRandomInt(nil, 512), common.MustGetRandomInt(nil, 300)},
		{"f4 exponent", big.NewInt(42), big.NewInt(65537)},
		{"zero exponent", big.NewInt(7), big.NewInt(0)},
		{"zero base", big.NewInt(0), big.NewInt(9)},
		{"base above modulus", new(big.Int).Lsh(mod, 3), big.NewInt(1234567)},
	}
	for _, tt := range tests {
		for _, size := range []int{1, 2, 4} {
			tt, size := tt, size
			t.Run(fmt.Sprintf("%s/np-%d", tt.name, size), func(t *testing.T) {
				t.Parallel()
				want := bigmath.ModPow(tt.base, tt.exp, mod)
				for rank, got := range modPowOnWorld(t, size, tt.base, tt.exp, mod) {
					require.NotNil(t, got, "rank %d", rank)
					assert.Zero(t, want.Cmp(got), "rank %d", rank)
				}
			})
		}
	}
}

func TestParallelModPowUnitModulus(t *testing.T) {
	t.Parallel()
	for _, got := range modPowOnWorld(t, 3, big.NewInt(5), big.NewInt(3), big.NewInt(1)) {
		assert.Zero(t, got.Sign())
	}
}

func TestParallelModPowRejectsBadInputsOnEveryRank(t *testing.T) {
	t.Parallel()
	_, err := test.RunWorldErr(3, func(ctx context.Context, c *bus.Comm) (*big.Int, error) {
		var mod *big.Int
		if c.Rank() == 0 {
			mod = big.NewInt(0)
		}
		res, err := ParallelModPow(ctx, c, big.NewInt(2), big.NewInt(3), mod)
		if err != nil {
			assert.Equal(t, tss.InputError, tss.KindOf(err), "rank %d", c.Rank())
		}
		return res, err
	})
	require.Error(t, err)
}
