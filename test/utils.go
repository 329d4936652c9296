// Copyright © 2019 Binance
//
// This file is part of Binance. The full Binance copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/ipfs/go-log"
	"github.com/stretchr/testify/require"

	"github.com/iofinnet/mpi-rsa/bus"
	"github.com/iofinnet/mpi-rsa/common"
)

// WorldTimeout bounds every in-process test world so a mismatched collective fails instead of hanging.
const WorldTimeout = 2 * time.Minute

// SetUp sets the module log level for a test binary.
func SetUp(level string) {
	if err := log.SetLogLevel(common.LoggerName, level); err != nil {
		panic(err)
	}
}

// RunWorld runs fn on size in-process ranks and fails the test on any rank error.
func RunWorld[T any](t testing.TB, size int, fn bus.RankFunc[T], opts ...bus.CommOption) []T {
	t.Helper()
	results, err := RunWorldErr(size, fn, opts...)
	require.NoError(t, err)
	return results
}

// RunWorldErr is RunWorld returning the aggregated error instead of failing.
func RunWorldErr[T any](size int, fn bus.RankFunc[T], opts ...bus.CommOption) ([]T, error) {
	ctx, cancel := context.WithTimeout(context.Background(), WorldTimeout)
	defer cancel()
	return bus.RunLocal(ctx, size, fn, opts...)
}

// SeededReader returns the deterministic stream of rank for seed.
func SeededReader(t testing.TB, seed string, rank int) io.Reader {
	t.Helper()
	r, err := common.NewSeededReader([]byte(seed), rank)
	require.NoError(t, err)
	return r
}
