// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package bus

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/iofinnet/mpi-rsa/internal"
)

// RankFunc is the SPMD body run by every rank of a group.
type RankFunc[T any] func(ctx context.Context, comm *Comm) (T, error)

// RunLocal runs fn on size ranks of a fresh LocalWorld, one goroutine each, and returns the
// per-rank results in rank order. The first failing rank closes the world so the others do not
// block forever; every rank error is reported.
func RunLocal[T any](ctx context.Context, size int, fn RankFunc[T], opts ...CommOption) ([]T, error) {
	world, err := NewLocalWorld(size)
	if err != nil {
		return nil, err
	}
	defer world.Close()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		errs    *multierror.Error
		results = make([]T, size)
	)
	for rank := 0; rank < size; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			comm := NewComm(world.Transport(rank), opts...)
			err := internal.Recover(func() error {
				res, err := fn(ctx, comm)
				results[rank] = res
				return err
			})
			if err != nil {
				mu.Lock()
				errs = multierror.Append(errs, errors.Wrapf(err, "rank %d", rank))
				mu.Unlock()
				world.Close()
			}
		}(rank)
	}
	wg.Wait()
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return results, nil
}
