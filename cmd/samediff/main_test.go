package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SAMEDIFF_LOG_LEVEL", "error")
	t.Setenv("SAMEDIFF_DEVICE", "")
	var stdout, stderr bytes.Buffer
	a := &app{stdout: &stdout, stderr: &stderr}
	argv := append([]string{"samediff", "--config", filepath.Join(t.TempDir(), "none.yaml")}, args...)
	err := a.command().Run(context.Background(), argv)
	return stdout.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "samediff "+version+"\n", out)
}

func TestOpsList(t *testing.T) {
	out, err := run(t, "ops")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "matmul")
	assert.Contains(t, out, "conv2d,conv2d/stride")
	assert.NotContains(t, out, "_bp")

	out, err = run(t, "ops", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "_bp")
}

func TestCheckTable(t *testing.T) {
	out, err := run(t, "check", "add", "tanh")
	require.NoError(t, err)
	assert.Contains(t, out, "CASE")
	assert.Contains(t, out, "tanh")
	assert.Contains(t, out, "2 of 2 case(s) passed")
}

func TestCheckJSON(t *testing.T) {
	out, err := run(t, "check", "--json", "--seed", "3", "matmul")
	require.NoError(t, err)

	var results []caseResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.Passed, r.Case)
		assert.Equal(t, "matmul", r.Kind)
		assert.Empty(t, r.Report)
	}
}

func TestCheckFailsOnTightTolerance(t *testing.T) {
	out, err := run(t, "check", "--epsilon", "0.5", "--max-rel-error", "1e-12", "--min-abs-error", "1e-12", "exp")
	assert.ErrorIs(t, err, errChecksFailed)
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "0 of 1 case(s) passed")
}

func TestCheckList(t *testing.T) {
	out, err := run(t, "check", "--list", "conv2d")
	require.NoError(t, err)
	assert.Contains(t, out, "conv2d/stride")
	assert.NotContains(t, out, "RESULT")
}

func TestCheckNoMatch(t *testing.T) {
	_, err := run(t, "check", "nothing-like-this")
	assert.ErrorContains(t, err, "no cases match")
}

func TestExportInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mm.sdg")
	out, err := run(t, "export", "--output", path, "matmul")
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)

	out, err = run(t, "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, out, "VARIABLE")
	assert.Contains(t, out, "loss")

	out, err = run(t, "inspect", "--json", path)
	require.NoError(t, err)
	var info graphInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, []string{"loss"}, info.Losses)
	for _, v := range info.Variables {
		if v.Role == "placeholder" {
			assert.False(t, v.Bound, v.Name)
		}
	}
}

func TestExportUnknownCase(t *testing.T) {
	_, err := run(t, "export", "bogus")
	assert.ErrorContains(t, err, `unknown case "bogus"`)
}
