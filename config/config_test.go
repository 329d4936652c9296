package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iofinnet/mpi-rsa/tss"
	"github.com/iofinnet/mpi-rsa/tss/rsa/cipher"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.NP)
	assert.Equal(t, 1024, cfg.Bits)
	assert.Equal(t, 20, cfg.Rounds)
	assert.Equal(t, "logs", cfg.LogDir)
	assert.Equal(t, "mpj-run", cfg.ReportPrefix)
	assert.Equal(t, []int{1, 2, 4, 8}, cfg.ScalingNP)
	assert.Equal(t, cipher.PolicyRoundRobin, cfg.SchedulingPolicy())
	assert.Equal(t, cipher.AliceToBob, cfg.KeyDirection())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("MPIRSA_LOG_DIR", "/tmp/run-logs")
	t.Setenv("MPIRSA_NP", "8")
	t.Setenv("MPIRSA_POLICY", "contiguous")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/run-logs", cfg.LogDir)
	assert.Equal(t, 8, cfg.NP)
	assert.Equal(t, cipher.PolicyContiguous, cfg.SchedulingPolicy())
}

func TestYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mpirsa.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bits: 512\nreps: 9\ndirection: bob2alice\nscaling-np: [1, 3]\n"), 0o600))

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Bits)
	assert.Equal(t, 9, cfg.Reps)
	assert.Equal(t, cipher.BobToAlice, cfg.KeyDirection())
	assert.Equal(t, []int{1, 3}, cfg.ScalingNP)

	_, err = Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, tss.IOError, tss.KindOf(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  interface{}
	}{
		{"zero np", KeyNP, 0},
		{"negative rank", KeyRank, -1},
		{"rank too large", KeyRank, 1 << 16},
		{"zero reps", KeyReps, 0},
		{"unknown policy", KeyPolicy, "zigzag"},
		{"unknown direction", KeyDirection, "carol2dave"},
		{"bad scaling list", KeyScalingNP, []int{1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Set(tt.key, tt.val)
			_, err := Load(v, "")
			require.Error(t, err)
			assert.Equal(t, tss.InputError, tss.KindOf(err))
		})
	}
}

func TestParameters(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)
	params, err := cfg.Parameters(1, 4)
	require.NoError(t, err)
	assert.Equal(t, 1024, params.Bits())

	cfg.Bits = 15
	_, err = cfg.Parameters(0, 1)
	assert.Equal(t, tss.InputError, tss.KindOf(err))
}
