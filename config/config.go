// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

// Package config resolves run settings from flags, MPIRSA_* environment variables and an
// optional YAML file, in that order of precedence, over built-in defaults.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/iofinnet/mpi-rsa/tss"
	"github.com/iofinnet/mpi-rsa/tss/rsa/cipher"
)

const (
	EnvPrefix = "MPIRSA"

	KeyNP           = "np"
	KeyRank         = "rank"
	KeyHostFile     = "hostfile"
	KeyBits         = "bits"
	KeyRounds       = "rounds"
	KeyReps         = "reps"
	KeyPolicy       = "policy"
	KeyDirection    = "direction"
	KeyKeys         = "keys"
	KeyLogDir       = "log-dir"
	KeyLogLevel     = "log-level"
	KeyReportPrefix = "report-prefix"
	KeyMetricsAddr  = "metrics-addr"
	KeyScalingNP    = "scaling-np"

	taskConfig = "config"
)

type Config struct {
	NP           int    `mapstructure:"np"`
	Rank         int    `mapstructure:"rank"`
	HostFile     string `mapstructure:"hostfile"`
	Bits         int    `mapstructure:"bits"`
	Rounds       int    `mapstructure:"rounds"`
	Reps         int    `mapstructure:"reps"`
	Policy       string `mapstructure:"policy"`
	Direction    string `mapstructure:"direction"`
	Keys         string `mapstructure:"keys"`
	LogDir       string `mapstructure:"log-dir"`
	LogLevel     string `mapstructure:"log-level"`
	ReportPrefix string `mapstructure:"report-prefix"`
	MetricsAddr  string `mapstructure:"metrics-addr"`
	ScalingNP    []int  `mapstructure:"scaling-np"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyNP, 4)
	v.SetDefault(KeyRank, 0)
	v.SetDefault(KeyHostFile, "")
	v.SetDefault(KeyBits, 1024)
	v.SetDefault(KeyRounds, 20)
	v.SetDefault(KeyReps, 5)
	v.SetDefault(KeyPolicy, cipher.PolicyRoundRobin.String())
	v.SetDefault(KeyDirection, cipher.AliceToBob.String())
	v.SetDefault(KeyKeys, ".")
	v.SetDefault(KeyLogDir, "logs")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyReportPrefix, "mpj-run")
	v.SetDefault(KeyMetricsAddr, "")
	v.SetDefault(KeyScalingNP, []int{1, 2, 4, 8})
}

// New returns a viper instance with defaults and the MPIRSA_ environment bound;
// log-dir is read from MPIRSA_LOG_DIR.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional YAML file at path into v and decodes the merged settings.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, tss.NewError(tss.IOError, errors.Wrapf(err, "read config %s", path), taskConfig, -1)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, tss.NewError(tss.InputError, errors.Wrap(err, "decode config"), taskConfig, -1)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) Validate() error {
	fail := func(format string, args ...interface{}) error {
		return tss.Errorf(tss.InputError, taskConfig, -1, format, args...)
	}
	if cfg.NP < 1 {
		return fail("np must be at least 1, got %d", cfg.NP)
	}
	if cfg.HostFile == "" && cfg.NP-1 > tss.MaxRank {
		return fail("np %d exceeds the %d ranks a timestamp can carry", cfg.NP, tss.MaxRank+1)
	}
	if cfg.Rank < 0 || cfg.Rank > tss.MaxRank {
		return fail("rank %d out of range", cfg.Rank)
	}
	if cfg.Reps < 1 {
		return fail("reps must be positive, got %d", cfg.Reps)
	}
	for _, np := range cfg.ScalingNP {
		if np < 1 {
			return fail("scaling process counts must be positive, got %d", np)
		}
	}
	if _, err := cipher.ParsePolicy(cfg.Policy); err != nil {
		return err
	}
	if _, err := cipher.ParseDirection(cfg.Direction); err != nil {
		return err
	}
	return nil
}

// Parameters validates the key-generation knobs for one rank of a size-rank group.
// Negative rounds are coerced to 1.
func (cfg *Config) Parameters(rank, size int) (*tss.Parameters, error) {
	return tss.NewParameters(rank, size, cfg.Bits, cfg.Rounds)
}

func (cfg *Config) SchedulingPolicy() cipher.Policy {
	p, _ := cipher.ParsePolicy(cfg.Policy)
	return p
}

func (cfg *Config) KeyDirection() cipher.Direction {
	d, _ := cipher.ParseDirection(cfg.Direction)
	return d
}
