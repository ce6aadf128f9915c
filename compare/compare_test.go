package compare

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/robert-malhotra/go-vlsv/internal/mesh"
	"github.com/robert-malhotra/go-vlsv/internal/vlsvtest"
	"github.com/robert-malhotra/go-vlsv/vlsv"
)

// snapshot describes one synthetic run output on a uniform 2x2x2 grid.
type snapshot struct {
	seed   int64
	time   float64
	rho    func(id uint64) float64
	extra  bool
	rankOf func(i int) float64
}

func baseSnapshot() snapshot {
	return snapshot{
		seed:   1,
		time:   3,
		rho:    func(id uint64) float64 { return 1e6 * float64(id) },
		rankOf: func(i int) float64 { return float64(i % 2) },
	}
}

func (s snapshot) write(t *testing.T) string {
	t.Helper()
	d, err := mesh.New("SpatialGrid", mesh.DCCRG, r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, [3]int{2, 2, 2}, 0)
	require.NoError(t, err)
	ids, err := vlsvtest.LeafIDs(d)
	require.NoError(t, err)
	ids = vlsvtest.Shuffled(ids, s.seed)

	rho := make([]float64, len(ids))
	rank := make([]float64, len(ids))
	for i, id := range ids {
		rho[i] = s.rho(id)
		rank[i] = s.rankOf(i)
	}
	b := vlsvtest.New().
		Parameter("time", s.time).
		SpatialGrid(d, ids).
		Variable("vg_rho", "SpatialGrid", 1, rho).
		Variable("vg_rank", "SpatialGrid", 1, rank)
	if s.extra {
		b.Variable("vg_extra", "SpatialGrid", 1, rho)
	}
	return b.WriteFile(t)
}

func quiet() Option {
	l, _ := logtest.NewNullLogger()
	return WithLogger(l)
}

func TestFilesEqualAcrossWriteOrder(t *testing.T) {
	a := baseSnapshot()
	b := baseSnapshot()
	b.seed = 99
	b.rankOf = func(i int) float64 { return float64(i) }

	r, err := Files(a.write(t), b.write(t), quiet())
	require.NoError(t, err)
	assert.True(t, r.Equal(), "differences: %v", r.Differences)
	assert.Equal(t, []string{"time", "vg_rho"}, r.Compared)
	assert.Equal(t, []string{"CellID", "vg_rank"}, r.Skipped)
}

func TestFilesWithinTolerance(t *testing.T) {
	a := baseSnapshot()
	b := baseSnapshot()
	b.rho = func(id uint64) float64 { return 1e6*float64(id) + 1 }

	r, err := Files(a.write(t), b.write(t), quiet())
	require.NoError(t, err)
	assert.True(t, r.Equal())
}

func TestFilesDifferences(t *testing.T) {
	a := baseSnapshot()
	b := baseSnapshot()
	b.time = 4
	b.extra = true
	b.rho = func(id uint64) float64 {
		if id == 5 {
			return 2e6 * float64(id)
		}
		return 1e6 * float64(id)
	}

	r, err := Files(a.write(t), b.write(t), quiet())
	require.NoError(t, err)
	assert.False(t, r.Equal())

	want := []Difference{
		{Name: "time", Kind: Parameter, Reason: "values differ", MaxRelDiff: 0.25, Mismatches: 1},
		{Name: "vg_extra", Kind: Variable, Reason: "missing in first file"},
		{Name: "vg_rho", Kind: Variable, Reason: "values differ", MaxRelDiff: 0.5, Mismatches: 1},
	}
	if diff := cmp.Diff(want, r.Differences); diff != "" {
		t.Errorf("differences mismatch (-want +got):\n%s", diff)
	}

	var buf bytes.Buffer
	_, err = r.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "variable vg_rho: values differ (1 values, max relative difference 0.5)")
}

func TestFilesOptions(t *testing.T) {
	a := baseSnapshot()
	b := baseSnapshot()
	b.rho = func(id uint64) float64 { return 1.01e6 * float64(id) }
	pa, pb := a.write(t), b.write(t)

	r, err := Files(pa, pb, quiet())
	require.NoError(t, err)
	assert.False(t, r.Equal())

	r, err = Files(pa, pb, quiet(), WithTolerance(0.02))
	require.NoError(t, err)
	assert.True(t, r.Equal())

	cfg := DefaultConfig()
	cfg.Skip = []string{"vg_rho"}
	cfg.SkipSuffixes = nil
	r, err = Files(pa, pb, quiet(), WithConfig(cfg))
	require.NoError(t, err)
	assert.True(t, r.Equal())
	assert.Equal(t, []string{"time", "CellID", "vg_rank"}, r.Compared)
}

func TestFilesLengthDiffers(t *testing.T) {
	a := baseSnapshot()
	pa := a.write(t)

	d, err := mesh.New("SpatialGrid", mesh.DCCRG, r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, [3]int{2, 2, 2}, 1)
	require.NoError(t, err)
	ids, err := vlsvtest.LeafIDs(d, 1)
	require.NoError(t, err)
	rho := make([]float64, len(ids))
	pb := vlsvtest.New().
		Parameter("time", 3).
		SpatialGrid(d, ids).
		Variable("vg_rho", "SpatialGrid", 1, rho).
		WriteFile(t)

	r, err := Files(pa, pb, quiet())
	require.NoError(t, err)
	require.Len(t, r.Differences, 1)
	assert.Equal(t, "vg_rho", r.Differences[0].Name)
	assert.Equal(t, "length differs (8 vs 15)", r.Differences[0].Reason)
	assert.Contains(t, r.Skipped, "vg_rank")
	assert.Contains(t, r.Skipped, "CellID")
}

func TestFilesOpenError(t *testing.T) {
	a := baseSnapshot()
	_, err := Files(a.write(t), filepath.Join(t.TempDir(), "missing.vlsv"), quiet())
	assert.ErrorIs(t, err, vlsv.ErrIO)
}

func TestMetaData(t *testing.T) {
	a := baseSnapshot()
	l, hook := logtest.NewNullLogger()
	l.SetLevel(logrus.DebugLevel)

	md, err := vlsv.Open(a.write(t), vlsv.WithLogger(l))
	require.NoError(t, err)
	defer md.Close()

	r, err := MetaData(md, md, WithLogger(l))
	require.NoError(t, err)
	assert.True(t, r.Equal())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "compared vlsv files", hook.LastEntry().Message)
	assert.Equal(t, 0, hook.LastEntry().Data["differences"])
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("VLSV_TEST_SKIP", "vg_rho")
	path := filepath.Join(t.TempDir(), "compare.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tolerance: 0.001
skip:
  - ${VLSV_TEST_SKIP}
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	want := DefaultConfig()
	want.Tolerance = 0.001
	want.Skip = []string{"vg_rho"}
	assert.Equal(t, want, cfg)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("tolerance: [1"), 0o644))
	_, err = LoadConfig(bad)
	assert.Error(t, err)

	neg := filepath.Join(dir, "neg.yaml")
	require.NoError(t, os.WriteFile(neg, []byte("tolerance: -1"), 0o644))
	_, err = LoadConfig(neg)
	assert.Error(t, err)
}
