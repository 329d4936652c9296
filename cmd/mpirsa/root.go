// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package main

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/ipfs/go-log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iofinnet/mpi-rsa/bus"
	"github.com/iofinnet/mpi-rsa/common"
	"github.com/iofinnet/mpi-rsa/config"
	"github.com/iofinnet/mpi-rsa/tss"
)

// app is the state shared by all subcommands of one invocation.
type app struct {
	v          *viper.Viper
	configPath string
	cfg        *config.Config
	metrics    *bus.Metrics
	out        io.Writer
	now        func() time.Time
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{v: config.New(), out: out, now: time.Now}
	root := &cobra.Command{
		Use:           "mpirsa",
		Short:         "Distributed RSA workbench",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.SetOut(a.out)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "YAML configuration file")
	flags.Int(config.KeyNP, 4, "number of in-process ranks (ignored with --hostfile)")
	flags.Int(config.KeyRank, 0, "this process's rank in the host file")
	flags.String(config.KeyHostFile, "", "YAML host file; run as one TCP rank instead of in-process")
	flags.Int(config.KeyBits, 1024, "modulus bit length")
	flags.Int(config.KeyRounds, 20, "Miller-Rabin rounds (0 picks by bit length)")
	flags.Int(config.KeyReps, 5, "benchmark repetitions")
	flags.String(config.KeyPolicy, "round-robin", "block scheduling policy: round-robin (r) or contiguous (s)")
	flags.String(config.KeyDirection, "alice2bob", "key direction: alice2bob or bob2alice")
	flags.String(config.KeyKeys, ".", "key directory or bucket URL (file://, mem://)")
	flags.String(config.KeyLogDir, "logs", "run report directory")
	flags.String(config.KeyLogLevel, "info", "log level")
	flags.String(config.KeyReportPrefix, "mpj-run", "run report file prefix")
	flags.String(config.KeyMetricsAddr, "", "serve Prometheus metrics on this address")
	flags.IntSlice(config.KeyScalingNP, []int{1, 2, 4, 8}, "process counts for the scaling table")
	for _, name := range []string{
		config.KeyNP, config.KeyRank, config.KeyHostFile, config.KeyBits, config.KeyRounds, config.KeyReps,
		config.KeyPolicy, config.KeyDirection, config.KeyKeys, config.KeyLogDir, config.KeyLogLevel,
		config.KeyReportPrefix, config.KeyMetricsAddr, config.KeyScalingNP,
	} {
		if err := a.v.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(
		a.keygenCmd(),
		a.findPrimeCmd(),
		a.encryptCmd(),
		a.decryptCmd(),
		a.roundTripCmd(),
		a.modPowCmd(),
		a.benchCmd(),
		a.scalingCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	if err := log.SetLogLevel(common.LoggerName, cfg.LogLevel); err != nil {
		return tss.NewError(tss.InputError, errors.Wrapf(err, "log level %q", cfg.LogLevel), "config", -1)
	}
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		a.metrics = bus.NewMetrics(reg, "")
		serveMetrics(cmd.Context(), cfg.MetricsAddr, reg)
	}
	return nil
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			common.Logger.Errorf("metrics server on %s: %v", addr, err)
		}
	}()
	if ctx != nil {
		go func() {
			<-ctx.Done()
			_ = srv.Close()
		}()
	}
	common.Logger.Infof("serving metrics on %s/metrics", addr)
}

func (a *app) commOptions() []bus.CommOption {
	if a.metrics == nil {
		return nil
	}
	return []bus.CommOption{bus.WithMetrics(a.metrics)}
}

// group runs fn SPMD: on --np in-process ranks, or as rank --rank of the --hostfile mesh.
// It returns the coordinator's result, or the zero value on a non-coordinator TCP rank.
func group[T any](ctx context.Context, a *app, fn bus.RankFunc[T]) (T, bool, error) {
	var zero T
	if a.cfg.HostFile == "" {
		results, err := bus.RunLocal(ctx, a.cfg.NP, fn, a.commOptions()...)
		if err != nil {
			return zero, false, err
		}
		return results[0], true, nil
	}
	addrs, err := bus.LoadHostFile(a.cfg.HostFile)
	if err != nil {
		return zero, false, tss.NewError(tss.IOError, err, "hostfile", a.cfg.Rank)
	}
	transport, err := bus.DialMesh(ctx, a.cfg.Rank, addrs)
	if err != nil {
		return zero, false, tss.NewError(tss.BusError, err, "dial-mesh", a.cfg.Rank)
	}
	comm := bus.NewComm(transport, a.commOptions()...)
	defer comm.Close()
	res, err := fn(ctx, comm)
	if err != nil {
		return zero, false, err
	}
	// the final barrier keeps the coordinator's sockets open until every rank is done
	if err := comm.Barrier(ctx); err != nil {
		return zero, false, tss.NewError(tss.BusError, err, "finalize", a.cfg.Rank)
	}
	return res, comm.Rank() == 0, nil
}

// size is the group size the current invocation runs with.
func (a *app) size() (int, error) {
	if a.cfg.HostFile == "" {
		return a.cfg.NP, nil
	}
	addrs, err := bus.LoadHostFile(a.cfg.HostFile)
	if err != nil {
		return 0, tss.NewError(tss.IOError, err, "hostfile", a.cfg.Rank)
	}
	return len(addrs), nil
}
