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
	"github.com/iofinnet/mpi-rsa/common"
	"github.com/iofinnet/mpi-rsa/tss"
	"github.com/iofinnet/mpi-rsa/tss/rsa/bench"
	"github.com/iofinnet/mpi-rsa/tss/rsa/cipher"
)

func (a *app) benchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bench [message]",
		Short: "Time repeated encrypt/decrypt passes split across the group",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			text, _ := readInput(args, "", defaultMessage)
			key, err := a.recipientKey(ctx)
			if err != nil {
				return err
			}
			res, ok, err := group(ctx, a, func(ctx context.Context, c *bus.Comm) (*bench.Result, error) {
				return bench.Run(ctx, c, coordinatorKey(c, key), text, a.cfg.Reps)
			})
			if err != nil || !ok {
				return err
			}
			size, err := a.size()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "=== benchmark: %d ranks, %d reps ===\n", size, res.Reps)
			bench.ResultTable(a.out, res)
			return nil
		},
	}
}

func (a *app) scalingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scaling [message]",
		Short: "Time the block engine in-process for each --scaling-np and print the speedup table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if a.cfg.HostFile != "" {
				return tss.Errorf(tss.InputError, "scaling", a.cfg.Rank, "the scaling table runs in-process only; drop --hostfile")
			}
			text, _ := readInput(args, "", defaultMessage)
			key, err := a.recipientKey(ctx)
			if err != nil {
				return err
			}
			policy := a.cfg.SchedulingPolicy()
			rows := make([]bench.ScalingRow, 0, len(a.cfg.ScalingNP))
			for _, np := range a.cfg.ScalingNP {
				timings, err := bus.RunLocal(ctx, np, func(ctx context.Context, c *bus.Comm) (*bench.EngineTiming, error) {
					return bench.TimeEngine(ctx, cipher.NewEngine(c, policy), c, coordinatorKey(c, key), text, a.cfg.Reps)
				}, a.commOptions()...)
				if err != nil {
					return err
				}
				common.Logger.Infof("scaling: np=%d encrypt=%.3f ms decrypt=%.3f ms", np, timings[0].EncryptMs, timings[0].DecryptMs)
				rows = append(rows, bench.ScalingRow{NP: np, AvgMs: timings[0].TotalMs()})
			}
			fmt.Fprintf(a.out, "=== scaling (%s, %d reps) ===\n", policy, a.cfg.Reps)
			bench.ScalingTable(a.out, rows)
			return nil
		},
	}
}
