package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/robert-malhotra/go-vlsv/internal/mesh"
	"github.com/robert-malhotra/go-vlsv/internal/vlsvtest"
)

func writeSnapshot(t *testing.T) string {
	t.Helper()
	d, err := mesh.New("SpatialGrid", mesh.DCCRG, r3.Vec{}, r3.Vec{X: 2, Y: 1, Z: 1}, [3]int{2, 1, 1}, 0)
	require.NoError(t, err)
	return vlsvtest.New().
		Parameter("time", 1.5).
		SpatialGrid(d, []uint64{2, 1}).
		Variable("vg_rho", "SpatialGrid", 1, []float64{20, 10},
			vlsvtest.Attr{Name: "unit", Value: "1/m^3"}).
		WriteFile(t)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVarsCommand(t *testing.T) {
	out, err := run(t, "vars", writeSnapshot(t))
	require.NoError(t, err)
	assert.Contains(t, out, "time")
	assert.Contains(t, out, "1.5")
	assert.Contains(t, out, "vg_rho")
	assert.Contains(t, out, "1/m^3")
}

func TestCellCommand(t *testing.T) {
	out, err := run(t, "cell", writeSnapshot(t), "1.5", "0.5", "0.5", "--var", "vg_rho")
	require.NoError(t, err)
	assert.Contains(t, out, "cell 2, level 0")
	assert.Contains(t, out, "neighbours [1]")
	assert.Contains(t, out, "vg_rho = 20")
}

func TestLineCommand(t *testing.T) {
	out, err := run(t, "line", writeSnapshot(t), "0.1", "0.5", "0.5", "1.9", "0.5", "0.5", "--var", "vg_rho")
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[1]), "10")
	assert.Contains(t, string(lines[2]), "20")
}

func TestCompareCommandEqual(t *testing.T) {
	path := writeSnapshot(t)
	out, err := run(t, "compare", path, path, "--tol", "1e-6")
	require.NoError(t, err)
	assert.Contains(t, out, "identical within tolerance")
}

func TestCommandErrors(t *testing.T) {
	_, err := run(t, "cell", writeSnapshot(t), "x", "0", "0")
	assert.Error(t, err)

	_, err = run(t, "vars", writeSnapshot(t), "--log-level", "loud")
	assert.Error(t, err)

	_, err = run(t, "cell", writeSnapshot(t), "5", "0.5", "0.5")
	assert.Error(t, err)
}
