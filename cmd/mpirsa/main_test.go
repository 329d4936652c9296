package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iofinnet/mpi-rsa/tss"
	"github.com/iofinnet/mpi-rsa/tss/rsa/keygen"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestErrorLine(t *testing.T) {
	assert.Equal(t, "error: UnknownError: boom", errorLine(errors.New("boom")))
	err := tss.Errorf(tss.InputError, "config", -1, "bits must be even")
	assert.Equal(t, "error: InputError: task config: bits must be even", errorLine(err))
}

func TestErrorLineOfFailedRanks(t *testing.T) {
	_, err := run(t, "findprime", "--np", "3", "--bits", "15", "--log-dir", t.TempDir())
	require.Error(t, err)
	line := errorLine(err)
	assert.NotContains(t, line, "\n")
	assert.True(t, strings.HasPrefix(line, "error: InputError: task "), line)
	assert.Contains(t, line, "bit length")

	wrapped := multierror.Append(nil, errors.New("first\nsecond"), errors.New("other"))
	assert.Equal(t, "error: UnknownError: first second", errorLine(wrapped))
}

func TestModPowCommand(t *testing.T) {
	out, err := run(t, "modpow", "--np", "4", "4", "13", "497")
	require.NoError(t, err)
	assert.Equal(t, "445\n", out)

	_, err = run(t, "modpow", "--np", "2", "4", "x", "497")
	assert.Equal(t, tss.InputError, tss.KindOf(err))
}

func TestKeygenThenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	keys := filepath.Join(dir, "keys")
	logs := filepath.Join(dir, "logs")
	common := []string{"--np", "2", "--bits", "128", "--keys", keys, "--log-dir", logs}

	out, err := run(t, append([]string{"keygen"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "report: ")
	for _, owner := range []keygen.Owner{keygen.Alice, keygen.Bob} {
		for _, field := range owner.Fields() {
			assert.FileExists(t, filepath.Join(keys, keygen.FileName(owner, field)))
		}
	}
	reports, err := os.ReadDir(logs)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.True(t, strings.HasPrefix(reports[0].Name(), "mpj-run"))

	for _, policy := range []string{"r", "s"} {
		out, err = run(t, append([]string{"roundtrip", "--policy", policy, "hello there"}, common...)...)
		require.NoError(t, err, policy)
		assert.Contains(t, out, "=== plaintext ===\nhello there\n")
	}

	ctFile := filepath.Join(dir, "ct.txt")
	_, err = run(t, append([]string{"encrypt", "--out", ctFile, "general kenobi"}, common...)...)
	require.NoError(t, err)
	out, err = run(t, append([]string{"decrypt", "--in", ctFile}, common...)...)
	require.NoError(t, err)
	assert.Equal(t, "general kenobi\n", out)
}

func TestFindPrimeCommand(t *testing.T) {
	dir := t.TempDir()
	for _, race := range []bool{false, true} {
		args := []string{"findprime", "--np", "3", "--bits", "64", "--log-dir", dir}
		if race {
			args = append(args, "--race")
		}
		out, err := run(t, args...)
		require.NoError(t, err)
		assert.Contains(t, out, "prime (32 bits")
	}
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, "keygen", "--bits", "127", "--log-dir", dir, "--keys", dir)
	assert.Equal(t, tss.InputError, tss.KindOf(err))

	_, err = run(t, "decrypt", "--keys", filepath.Join(dir, "missing"), "AAAA")
	assert.Equal(t, tss.IOError, tss.KindOf(err))

	_, err = run(t, "decrypt", "--keys", dir)
	assert.Equal(t, tss.InputError, tss.KindOf(err))

	_, err = run(t, "scaling", "--hostfile", filepath.Join(dir, "hosts.yaml"))
	assert.Equal(t, tss.InputError, tss.KindOf(err))
}

func TestBenchAndScalingCommands(t *testing.T) {
	dir := t.TempDir()
	common := []string{"--bits", "128", "--keys", dir, "--log-dir", dir, "--reps", "2"}
	_, err := run(t, append([]string{"keygen", "--np", "1"}, common...)...)
	require.NoError(t, err)

	out, err := run(t, append([]string{"bench", "--np", "3"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "=== benchmark: 3 ranks, 2 reps ===")

	out, err = run(t, append([]string{"scaling", "--scaling-np", "1,2"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "=== scaling (round-robin, 2 reps) ===")
}
