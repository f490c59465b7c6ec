package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imrmap/internal/config"
	"imrmap/internal/domain"
	"imrmap/internal/logging"
	"imrmap/internal/solver"
	"imrmap/internal/store"
	"imrmap/internal/summarize"
)

func loadExample(t *testing.T) (*config.Config, *Inputs) {
	t.Helper()
	path, err := WriteExample(t.TempDir())
	require.NoError(t, err)
	cfg, err := config.LoadFromPath(path)
	require.NoError(t, err)
	cfg.Solver.Kind = config.SolverStub
	in, err := LoadInputs(cfg)
	require.NoError(t, err)
	return cfg, in
}

func TestLoadInputs_Example(t *testing.T) {
	_, in := loadExample(t)
	assert.Len(t, in.Data.Rows, 4)
	assert.Len(t, in.Adjacency, 5)
	assert.Equal(t, "Northwest Vale", in.Labels["A"])
	require.NotNil(t, in.Reference)
	assert.Len(t, in.Reference.Points, 8)
	require.NotNil(t, in.Boundaries)
	assert.Len(t, in.Boundaries.Shapes, 4)
}

func TestPrepare(t *testing.T) {
	cfg, in := loadExample(t)
	prep, err := Prepare(cfg, in, logging.Discard())
	require.NoError(t, err)

	assert.Equal(t, 4, prep.Graph.Size())
	assert.Equal(t, 4, prep.Graph.Edges())
	assert.Equal(t, 8, prep.Long.Len())
	assert.InDelta(t, 592.0/80300*1000, prep.Diagnostics.Overall, 1e-9)
	r, c := prep.Lincombs.Matrix.Dims()
	assert.Equal(t, []int{4, 5}, []int{r, c})
}

func TestPrepare_AsymmetricAdjacency(t *testing.T) {
	cfg, in := loadExample(t)
	in.Adjacency[1][2] = "0"
	_, err := Prepare(cfg, in, logging.Discard())
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindGraphIntegrity))
	var asym *domain.AsymmetryError
	require.True(t, errors.As(err, &asym))
	assert.Equal(t, 2, asym.Cells)
}

func TestPrepare_ZeroBirths(t *testing.T) {
	cfg, in := loadExample(t)
	col := in.Data.Column("births_2")
	require.GreaterOrEqual(t, col, 0)
	in.Data.Rows[0][col] = "0"
	_, err := Prepare(cfg, in, logging.Discard())
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindDataQuality))
}

func TestNewSolver(t *testing.T) {
	cfg := config.Default()
	for kind, want := range map[string]string{
		config.SolverLaplace: "laplace",
		config.SolverINLA:    "inla",
		config.SolverStub:    "stub",
	} {
		cfg.Solver.Kind = kind
		s, err := NewSolver(cfg, nil)
		require.NoError(t, err, kind)
		assert.Equal(t, want, s.Name())
	}
	cfg.Solver.Kind = "mcmc"
	_, err := NewSolver(cfg, nil)
	assert.Error(t, err)
}

func TestRun_Stub(t *testing.T) {
	cfg, in := loadExample(t)
	prep, err := Prepare(cfg, in, logging.Discard())
	require.NoError(t, err)
	s, err := NewSolver(cfg, prep)
	require.NoError(t, err)
	st := store.NewMemStore()

	res, err := New(cfg, s, WithStore(st), WithStudy("study.yaml")).Run(context.Background(), in)
	require.NoError(t, err)

	// 4 tables and 4 figures.
	require.Len(t, res.Files, 8)
	for _, f := range res.Files {
		info, err := os.Stat(f)
		require.NoError(t, err, f)
		assert.Positive(t, info.Size(), f)
	}
	assert.FileExists(t, filepath.Join(cfg.Report.OutDir, summarize.RatioTable+".tex"))

	// The stub fits the global rate everywhere, so every ratio is exactly 1.
	for _, row := range res.Tables.Ratios.Rows {
		assert.Equal(t, "1.000 (1.000; 1.000)", summarize.FormatInterval(row.Cells[0].Interval, cfg.Report.Digits.Ratios))
	}
	a, ok := res.Tables.Ratios.Lookup("A")
	require.True(t, ok)
	assert.Equal(t, "Northwest Vale", a.Label)

	run, err := st.GetRun(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusDone, run.Status)
	assert.Equal(t, "stub", run.Solver)
	assert.Equal(t, 4, run.Counties)
	assert.Contains(t, run.Formula, "bym")

	tables, err := st.ListTables(res.RunID)
	require.NoError(t, err)
	assert.Len(t, tables, 4)
	obs, err := st.ListObservations(res.RunID)
	require.NoError(t, err)
	assert.Len(t, obs, 8)
}

func TestRun_SkipsUnconfiguredFigures(t *testing.T) {
	cfg, in := loadExample(t)
	in.Reference, in.Boundaries = nil, nil
	res, err := New(cfg, solver.NewStub(solver.Latent{})).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, res.Files, 6)
	assert.Empty(t, res.RunID)
}

type brokenSolver struct{}

func (brokenSolver) Name() string { return "broken" }
func (brokenSolver) Fit(context.Context, *solver.Problem) (*solver.Fit, error) {
	return nil, errors.New("matrix not positive definite")
}

func TestRun_SolverFailureMarksRun(t *testing.T) {
	cfg, in := loadExample(t)
	st := store.NewMemStore()
	res, err := New(cfg, brokenSolver{}, WithStore(st)).Run(context.Background(), in)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindSolver))

	run, gerr := st.GetRun(res.RunID)
	require.NoError(t, gerr)
	assert.Equal(t, store.StatusFailed, run.Status)
	assert.Contains(t, run.Error, "positive definite")
	_, statErr := os.Stat(filepath.Join(cfg.Report.OutDir, summarize.FixedTable+".tex"))
	assert.True(t, os.IsNotExist(statErr))
}
