package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lshgo"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParamsCommand(t *testing.T) {
	out, err := run(t, "params", "--points", "1000", "--dim", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "hash_tables: 10")
	assert.Contains(t, out, "lsh_family: cross_polytope")

	out, err = run(t, "params", "--points", "1000", "--dim", "10", "--family", "hyperplane", "--hash-bits", "12", "--tables", "4", "--format", "json")
	require.NoError(t, err)
	assert.Regexp(t, `"hash_functions":\s*12`, out)
	assert.Regexp(t, `"hash_tables":\s*4`, out)
	assert.Regexp(t, `"lsh_family":\s*"hyperplane"`, out)
}

func TestParamsCommandErrors(t *testing.T) {
	_, err := run(t, "params", "--family", "simhash")
	assert.ErrorIs(t, err, lshgo.ErrConfiguration)

	_, err = run(t, "params", "--format", "toml")
	assert.Error(t, err)

	_, err = run(t, "params", "--points", "0")
	assert.ErrorIs(t, err, lshgo.ErrConfiguration)

	_, err = run(t, "params", "--params", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParamsFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")

	out, err := run(t, "params", "--points", "800", "--dim", "8", "--storage", "stl_hash_table", "--seed", "99")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(out), 0o600))

	again, err := run(t, "params", "--params", path)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestTuneCommand(t *testing.T) {
	out, err := run(t, "tune", "--points", "1000", "--dim", "8", "--queries", "30", "--target", "0.8", "--metrics")
	require.NoError(t, err)
	assert.Contains(t, out, "built index: 1000 points, dimension 8")
	assert.Contains(t, out, "probes: ")
	assert.Contains(t, out, "lshgo_tuned_probes")
}

func TestTuneCommandInvalidTarget(t *testing.T) {
	_, err := run(t, "tune", "--points", "200", "--dim", "4", "--queries", "5", "--target", "2")
	assert.ErrorIs(t, err, lshgo.ErrValidation)
}

func TestTuneCommandInvalidQueries(t *testing.T) {
	for _, n := range []string{"0", "-3"} {
		_, err := run(t, "tune", "--points", "200", "--dim", "4", "--queries="+n)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--queries must be positive")
	}
}
