// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package bus_test

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iofinnet/mpi-rsa/bus"
	"github.com/iofinnet/mpi-rsa/test"
)

var sizes = []int{1, 2, 3, 5}

func TestBcast(t *testing.T) {
	t.Parallel()
	for _, size := range sizes {
		size := size
		t.Run(fmt.Sprintf("np=%d", size), func(t *testing.T) {
			t.Parallel()
			root := size - 1
			got := test.RunWorld(t, size, func(ctx context.Context, c *bus.Comm) (*big.Int, error) {
				var v *big.Int
				if c.Rank() == root {
					v, _ = new(big.Int).SetString("123456789012345678901234567890", 10)
				}
				return bus.Bcast[*big.Int](ctx, c, v, root, bus.BigIntCodec{})
			})
			for r, v := range got {
				assert.Equal(t, "123456789012345678901234567890", v.String(), "rank %d", r)
			}
		})
	}
}

func TestAllGatherWithNone(t *testing.T) {
	t.Parallel()
	got := test.RunWorld(t, 4, func(ctx context.Context, c *bus.Comm) ([]*big.Int, error) {
		var v *big.Int
		if c.Rank()%2 == 1 {
			v = big.NewInt(int64(100 + c.Rank()))
		}
		return bus.AllGather[*big.Int](ctx, c, v, bus.BigIntCodec{})
	})
	for r, row := range got {
		require.Len(t, row, 4, "rank %d", r)
		assert.Nil(t, row[0])
		assert.Equal(t, int64(101), row[1].Int64())
		assert.Nil(t, row[2])
		assert.Equal(t, int64(103), row[3].Int64())
	}
}

func TestGatherOnlyOnRoot(t *testing.T) {
	t.Parallel()
	got := test.RunWorld(t, 3, func(ctx context.Context, c *bus.Comm) ([]int64, error) {
		return bus.Gather[int64](ctx, c, int64(c.Rank()*10), 1, bus.Int64Codec{})
	})
	assert.Nil(t, got[0])
	assert.Equal(t, []int64{0, 10, 20}, got[1])
	assert.Nil(t, got[2])
}

func TestReduceAndAllReduce(t *testing.T) {
	t.Parallel()
	for _, size := range sizes {
		size := size
		t.Run(fmt.Sprintf("np=%d", size), func(t *testing.T) {
			t.Parallel()
			type out struct {
				max, sum int64
				vec      []float64
				bigMax   *big.Int
			}
			got := test.RunWorld(t, size, func(ctx context.Context, c *bus.Comm) (out, error) {
				var o out
				var err error
				r := int64(c.Rank())
				if o.max, err = bus.AllReduce[int64](ctx, c, r*r-3, bus.OpMax, bus.Int64Codec{}); err != nil {
					return o, err
				}
				if o.sum, err = bus.Reduce[int64](ctx, c, r+1, bus.OpSum, 0, bus.Int64Codec{}); err != nil {
					return o, err
				}
				if o.vec, err = bus.AllReduce[[]float64](ctx, c, []float64{1, float64(r), 0.5}, bus.OpSum, bus.Float64sCodec{}); err != nil {
					return o, err
				}
				var cand *big.Int
				if r > 0 {
					cand = big.NewInt(1000 - r)
				}
				o.bigMax, err = bus.AllReduce[*big.Int](ctx, c, cand, bus.OpMax, bus.BigIntCodec{})
				return o, err
			})
			n := int64(size)
			for r, o := range got {
				assert.Equal(t, (n-1)*(n-1)-3, o.max, "rank %d", r)
				assert.Equal(t, []float64{float64(n), float64(n * (n - 1) / 2), 0.5 * float64(n)}, o.vec)
				if size == 1 {
					assert.Nil(t, o.bigMax)
				} else {
					assert.Equal(t, int64(999), o.bigMax.Int64())
				}
			}
			assert.Equal(t, n*(n+1)/2, got[0].sum)
			for r := 1; r < size; r++ {
				assert.Zero(t, got[r].sum, "non-root rank %d", r)
			}
		})
	}
}

func TestReduceVectorLengthMismatch(t *testing.T) {
	t.Parallel()
	_, err := test.RunWorldErr(2, func(ctx context.Context, c *bus.Comm) ([]int64, error) {
		v := make([]int64, c.Rank()+1)
		return bus.Reduce[[]int64](ctx, c, v, bus.OpSum, 0, bus.Int64sCodec{})
	})
	assert.ErrorIs(t, err, bus.ErrSizeMisfit)
}

func TestScatterVGatherV(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct{ size, total int }{{1, 5}, {2, 5}, {3, 9}, {4, 2}, {5, 0}} {
		tc := tc
		t.Run(fmt.Sprintf("np=%d/T=%d", tc.size, tc.total), func(t *testing.T) {
			t.Parallel()
			counts, displs := bus.BalancedLayout(tc.total, tc.size)
			got := test.RunWorld(t, tc.size, func(ctx context.Context, c *bus.Comm) ([]*big.Int, error) {
				var send []*big.Int
				if c.Rank() == 0 {
					for i := 0; i < tc.total; i++ {
						send = append(send, big.NewInt(int64(i)))
					}
				}
				local, err := bus.ScatterV[*big.Int](ctx, c, send, counts, displs, 0, bus.BigIntCodec{})
				if err != nil {
					return nil, err
				}
				if len(local) != counts[c.Rank()] {
					return nil, fmt.Errorf("rank %d got %d elements, want %d", c.Rank(), len(local), counts[c.Rank()])
				}
				for i, v := range local {
					if v.Int64() != int64(displs[c.Rank()]+i) {
						return nil, fmt.Errorf("rank %d element %d is %s", c.Rank(), i, v)
					}
					local[i] = new(big.Int).Mul(v, v)
				}
				return bus.GatherV[*big.Int](ctx, c, local, counts, displs, 0, bus.BigIntCodec{})
			})
			require.Len(t, got[0], tc.total)
			for i, v := range got[0] {
				assert.Equal(t, int64(i*i), v.Int64())
			}
			for r := 1; r < tc.size; r++ {
				assert.Nil(t, got[r])
			}
		})
	}
}

func TestBalancedLayout(t *testing.T) {
	t.Parallel()
	counts, displs := bus.BalancedLayout(10, 4)
	assert.Equal(t, []int{3, 3, 2, 2}, counts)
	assert.Equal(t, []int{0, 3, 6, 8}, displs)

	counts, displs = bus.BalancedLayout(2, 4)
	assert.Equal(t, []int{1, 1, 0, 0}, counts)
	assert.Equal(t, []int{0, 1, 2, 2}, displs)
}

func TestSendRecvFIFOAndBarrier(t *testing.T) {
	t.Parallel()
	got := test.RunWorld(t, 3, func(ctx context.Context, c *bus.Comm) ([]int64, error) {
		if c.Rank() != 0 {
			for i := 0; i < 5; i++ {
				if err := bus.Send[int64](ctx, c, int64(c.Rank()*100+i), 0, 42, bus.Int64Codec{}); err != nil {
					return nil, err
				}
			}
			return nil, c.Barrier(ctx)
		}
		var out []int64
		for src := 2; src >= 1; src-- {
			for i := 0; i < 5; i++ {
				v, err := bus.Recv[int64](ctx, c, src, 42, bus.Int64Codec{})
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
		}
		return out, c.Barrier(ctx)
	})
	assert.Equal(t, []int64{200, 201, 202, 203, 204, 100, 101, 102, 103, 104}, got[0])
}

func TestUserTagsMustBeNonNegative(t *testing.T) {
	t.Parallel()
	_, err := test.RunWorldErr(1, func(ctx context.Context, c *bus.Comm) (struct{}, error) {
		return struct{}{}, bus.Send[int64](ctx, c, 1, 0, -1, bus.Int64Codec{})
	})
	assert.ErrorIs(t, err, bus.ErrBadTag)
}

func TestFailingRankUnblocksOthers(t *testing.T) {
	t.Parallel()
	_, err := test.RunWorldErr(3, func(ctx context.Context, c *bus.Comm) (struct{}, error) {
		if c.Rank() == 2 {
			return struct{}{}, fmt.Errorf("rank 2 gives up")
		}
		return struct{}{}, c.Barrier(ctx)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rank 2 gives up")
}

func TestPanickingRankIsReported(t *testing.T) {
	t.Parallel()
	_, err := test.RunWorldErr(2, func(ctx context.Context, c *bus.Comm) (struct{}, error) {
		if c.Rank() == 1 {
			panic("rank 1 exploded")
		}
		_, err := bus.Recv[int64](ctx, c, 1, 0, bus.Int64Codec{})
		return struct{}{}, err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rank 1 exploded")
	assert.ErrorIs(t, err, bus.ErrClosed)
}
