// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iofinnet/mpi-rsa/bus"
	"github.com/iofinnet/mpi-rsa/crypto/rsa"
	"github.com/iofinnet/mpi-rsa/tss"
	"github.com/iofinnet/mpi-rsa/tss/rsa/keygen"
	"github.com/iofinnet/mpi-rsa/tss/runstats"
)

type keygenOutcome struct {
	key   *rsa.PrivateKey
	stats *runstats.RunStats
}

type primeOutcome struct {
	res   *keygen.SearchResult
	stats *runstats.RunStats
}

func (a *app) newRecorder(rank int) (*runstats.Recorder, error) {
	clock, err := tss.NewLogicalClock(rank)
	if err != nil {
		return nil, err
	}
	return runstats.NewRecorder(clock, a.cfg.Bits, runstats.WithWallClock(a.now)), nil
}

func (a *app) writeReport(stats *runstats.RunStats) error {
	if stats == nil {
		return nil
	}
	path, err := runstats.WriteReport(a.cfg.LogDir, a.cfg.ReportPrefix, stats, a.now(), a.cfg.Bits)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "report: %s\n", path)
	return nil
}

func (a *app) keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a key pair with a distributed prime search and store it for alice and bob",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out, ok, err := group(ctx, a, func(ctx context.Context, c *bus.Comm) (keygenOutcome, error) {
				params, err := a.cfg.Parameters(c.Rank(), c.Size())
				if err != nil {
					return keygenOutcome{}, err
				}
				rec, err := a.newRecorder(c.Rank())
				if err != nil {
					return keygenOutcome{}, err
				}
				key, err := keygen.GenerateKeys(ctx, c, params, nil, rec)
				if err != nil {
					return keygenOutcome{}, err
				}
				stats, err := rec.Collect(ctx, c)
				return keygenOutcome{key: key, stats: stats}, err
			})
			if err != nil || !ok {
				return err
			}
			store, closeStore, err := keygen.OpenKeyStore(ctx, a.cfg.Keys)
			if err != nil {
				return err
			}
			defer closeStore()
			for _, owner := range []keygen.Owner{keygen.Alice, keygen.Bob} {
				if err := store.Save(ctx, owner, out.key); err != nil {
					return err
				}
			}
			fmt.Fprintf(a.out, "modulus: %d bits, e = %s\n", out.key.N.BitLen(), out.key.E)
			fmt.Fprintf(a.out, "alice: %v\nbob:   %v\n", keygen.Alice.Fields(), keygen.Bob.Fields())
			return a.writeReport(out.stats)
		},
	}
}

func (a *app) findPrimeCmd() *cobra.Command {
	var race bool
	cmd := &cobra.Command{
		Use:   "findprime",
		Short: "Search a probable prime of bits/2 bits across the group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, ok, err := group(cmd.Context(), a, func(ctx context.Context, c *bus.Comm) (primeOutcome, error) {
				params, err := a.cfg.Parameters(c.Rank(), c.Size())
				if err != nil {
					return primeOutcome{}, err
				}
				rec, err := a.newRecorder(c.Rank())
				if err != nil {
					return primeOutcome{}, err
				}
				search := keygen.FindProbablePrime
				if race {
					search = keygen.RaceProbablePrime
				}
				res, err := search(ctx, c, params.Bits(), params.Rounds(), nil, rec)
				if err != nil {
					return primeOutcome{}, err
				}
				stats, err := rec.Collect(ctx, c)
				return primeOutcome{res: res, stats: stats}, err
			})
			if err != nil || !ok {
				return err
			}
			fmt.Fprintf(a.out, "prime (%d bits, rank %d, %d rounds): %s\n",
				out.res.Prime.BitLen(), out.res.Winner, out.res.Rounds, out.res.Prime)
			return a.writeReport(out.stats)
		},
	}
	cmd.Flags().BoolVar(&race, "race", false, "search independently and agree by all-reduce MAX")
	return cmd
}
