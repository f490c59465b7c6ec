package summarize

import (
	"context"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imrmap/internal/dataset"
	"imrmap/internal/domain"
	"imrmap/internal/graph"
	"imrmap/internal/model"
	"imrmap/internal/solver"
)

var periods = []domain.Period{
	{Code: "1990", Ordinal: 1, Label: "1990-94"},
	{Code: "2000", Ordinal: 2, Label: "2000-04"},
}

func singleCounty(t *testing.T) *dataset.Long {
	t.Helper()
	long, err := dataset.Reshape([]dataset.WideRow{{
		County: "A", Name: "Alpha",
		Values: map[int]dataset.Counts{
			1: {Births: 1000, Deaths: 5, Deprivation: 0.2},
			2: {Births: 2000, Deaths: 8, Deprivation: 0.1},
		},
	}}, periods)
	require.NoError(t, err)
	return long
}

func stubFits(t *testing.T, long *dataset.Long, latent solver.Latent) (*solver.Fit, *solver.Fit) {
	t.Helper()
	g, err := graph.FromNeighbors(long.Counties(), nil)
	require.NoError(t, err)
	spec, err := model.NewSpec(g, solver.Prior{Mean: -0.4, Precision: 1})
	require.NoError(t, err)
	lc, err := model.RatioLincombs(long.Counties())
	require.NoError(t, err)

	base, err := spec.Problem(long, nil)
	require.NoError(t, err)
	withLC, err := spec.Problem(long, lc)
	require.NoError(t, err)

	stub := solver.NewStub(latent)
	bf, err := solver.Run(context.Background(), stub, base)
	require.NoError(t, err)
	lf, err := solver.Run(context.Background(), stub, withLC)
	require.NoError(t, err)
	return bf, lf
}

func TestFormatInterval(t *testing.T) {
	iv := domain.Interval{Point: 1.23456, Lower: 0.98765, Upper: 2.6}
	tests := []struct {
		digits int
		want   string
	}{
		{3, "1.235 (0.988; 2.600)"},
		{2, "1.23 (0.99; 2.60)"},
		{0, "1 (1; 3)"},
	}
	for _, tt := range tests {
		got := FormatInterval(iv, tt.digits)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got, FormatInterval(iv, tt.digits), "formatting must be idempotent")
	}
}

func TestFormatNumber_NegativeZero(t *testing.T) {
	assert.Equal(t, "0.00", FormatNumber(-0.001, 2))
	assert.Equal(t, "-0.50", FormatNumber(-0.5, 2))
	assert.Equal(t, "+Inf", FormatNumber(math.Inf(1), 2))
}

func TestRateRatio_HalvedRate(t *testing.T) {
	long := singleCounty(t)
	bf, lf := stubFits(t, long, solver.Latent{
		Intercept: math.Log(0.005),
		Period:    []float64{0, math.Log(0.5)},
	})
	opts := DefaultOptions()

	fitted, err := FittedRates(bf, long, opts)
	require.NoError(t, err)
	row, ok := fitted.Lookup("A")
	require.True(t, ok)
	assert.InDelta(t, 5.0, row.Cells[0].Point, 1e-9)
	assert.InDelta(t, 2.5, row.Cells[1].Point, 1e-9)

	ratios, err := RateRatios(lf, long.Counties(), opts)
	require.NoError(t, err)
	row, ok = ratios.Lookup("A")
	require.True(t, ok)
	assert.InDelta(t, 0.5, row.Cells[0].Point, 1e-9)
	assert.InDelta(t, row.Cells[0].Point, fitted.Rows[0].Cells[1].Point/fitted.Rows[0].Cells[0].Point, 1e-9)
	assert.Equal(t, "Alpha", row.Label)
}

func TestFixedEffects_GlobalRateRatio(t *testing.T) {
	fit := &solver.Fit{
		Fixed: []solver.NamedSummary{
			{Name: solver.Intercept, Summary: domain.Summary{Mean: -5, Q025: -5.2, Q975: -4.8}},
			{Name: solver.Deprivation, Summary: domain.Summary{Mean: 0.3, Q025: 0.1, Q975: 0.5}},
		},
		Random: map[string][]domain.Summary{
			solver.PeriodEff: {{Mean: -0.4, Q025: -0.6, Q975: -0.2}},
		},
	}

	t.Run("negated", func(t *testing.T) {
		tbl, err := FixedEffects(fit, DefaultOptions())
		require.NoError(t, err)
		require.Len(t, tbl.Rows, 3)
		grr, ok := tbl.Lookup(GRR)
		require.True(t, ok)
		assert.InDelta(t, math.Exp(0.4), grr.Cells[0].Point, 1e-12)
		assert.InDelta(t, math.Exp(0.2), grr.Cells[0].Lower, 1e-12)
		assert.InDelta(t, math.Exp(0.6), grr.Cells[0].Upper, 1e-12)
	})

	t.Run("positive", func(t *testing.T) {
		opts := DefaultOptions()
		opts.RatioSign = 1
		tbl, err := FixedEffects(fit, opts)
		require.NoError(t, err)
		grr, _ := tbl.Lookup(GRR)
		assert.InDelta(t, math.Exp(-0.4), grr.Cells[0].Point, 1e-12)
		assert.Less(t, grr.Cells[0].Lower, grr.Cells[0].Upper)
	})

	t.Run("bad sign", func(t *testing.T) {
		opts := DefaultOptions()
		opts.RatioSign = 2
		_, err := FixedEffects(fit, opts)
		assert.True(t, domain.IsKind(err, domain.KindConfig))
	})

	t.Run("text", func(t *testing.T) {
		tbl, err := FixedEffects(fit, DefaultOptions())
		require.NoError(t, err)
		want := [][]string{
			{"(Intercept)", "-5.000 (-5.200; -4.800)"},
			{"deprivation", "0.300 (0.100; 0.500)"},
			{"grr", "1.492 (1.221; 1.822)"},
		}
		if diff := cmp.Diff(want, tbl.Text()); diff != "" {
			t.Errorf("Text() mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestFittedRates_RowCountMismatch(t *testing.T) {
	long := singleCounty(t)
	fit := &solver.Fit{Fitted: []domain.Summary{{Mean: 1}}}
	_, err := FittedRates(fit, long, DefaultOptions())
	assert.True(t, domain.IsKind(err, domain.KindAlignment))
}

func TestRateRatios_Misaligned(t *testing.T) {
	counties := []domain.County{{ID: "A", Index: 1}, {ID: "B", Index: 2}}
	fit := &solver.Fit{Lincombs: []solver.NamedSummary{{Name: "B"}, {Name: "A"}}}
	_, err := RateRatios(fit, counties, DefaultOptions())
	assert.True(t, domain.IsKind(err, domain.KindAlignment))

	fit.Lincombs = fit.Lincombs[:1]
	_, err = RateRatios(fit, counties, DefaultOptions())
	assert.True(t, domain.IsKind(err, domain.KindAlignment))
}

func TestObserved(t *testing.T) {
	long := singleCounty(t)
	opts := DefaultOptions()
	opts.Label = func(c domain.County) string { return "County " + string(c.ID) }
	tbl, err := Observed(long, opts)
	require.NoError(t, err)
	require.NoError(t, tbl.Validate())

	assert.Equal(t, []string{"County", "Births 1990-94", "Deaths 1990-94", "Rate 1990-94",
		"Births 2000-04", "Deaths 2000-04", "Rate 2000-04"}, tbl.Header())
	assert.Equal(t, [][]string{{"County A", "1000", "5", "5.00", "2000", "8", "4.00"}}, tbl.Text())
}

func TestSummarize(t *testing.T) {
	long := singleCounty(t)
	bf, lf := stubFits(t, long, solver.Latent{Intercept: -5})
	res, err := Summarize(bf, lf, long, DefaultOptions())
	require.NoError(t, err)
	names := []string{}
	for _, tbl := range res.All() {
		require.NoError(t, tbl.Validate())
		names = append(names, tbl.Name)
	}
	assert.Equal(t, []string{ObservedTable, FixedTable, FittedTable, RatioTable}, names)

	// Base fit has no lincombs.
	_, err = Summarize(bf, bf, long, DefaultOptions())
	assert.True(t, domain.IsKind(err, domain.KindAlignment))
}
