package config

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"

	"imrmap/internal/domain"
	"imrmap/internal/solver"
)

func testdataPath(name string) string {
	_, f, _, _ := runtime.Caller(0)
	dir := filepath.Dir(f)
	return filepath.Join(dir, "testdata", name)
}

func TestLoadFromPath_YAML(t *testing.T) {
	c, err := LoadFromPath(testdataPath("study.yaml"))
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	dir := filepath.Dir(testdataPath("study.yaml"))

	if got, want := c.Data.Workbook, filepath.Join(dir, "data/imr.xlsx"); got != want {
		t.Errorf("data workbook = %q, want %q", got, want)
	}
	if c.Data.Name != "counties" {
		t.Errorf("data sheet = %q", c.Data.Name)
	}
	if c.Adjacency.Index != 1 || c.Adjacency.Name != "" {
		t.Errorf("adjacency should default to the second sheet, got %+v", c.Adjacency.SheetRef)
	}
	if c.Report.OutDir != "/tmp/imr-out" {
		t.Errorf("absolute out_dir must be kept, got %q", c.Report.OutDir)
	}
	if got := c.Data.Schema.ColumnName("births", c.Data.Schema.Periods[0]); got != "nv_9498" {
		t.Errorf("births column = %q", got)
	}
	if c.Solver.Laplace.MaxIterations != 50 || c.Solver.Laplace.StructuredPrecision != 1 {
		t.Errorf("laplace settings should merge over defaults: %+v", c.Solver.Laplace)
	}
	if diff := cmp.Diff([]string{FigScatter, FigMap}, c.Report.Figures); diff != "" {
		t.Errorf("figures mismatch (-want +got):\n%s", diff)
	}
	if !c.WantFigure(FigMap) || c.WantFigure(FigTrend) {
		t.Errorf("WantFigure disagrees with %v", c.Report.Figures)
	}
	if c.Reference.Years["0408"] != 2006 {
		t.Errorf("reference years: %v", c.Reference.Years)
	}
	if c.Boundaries.IDProperty != "CODE" {
		t.Errorf("id property = %q", c.Boundaries.IDProperty)
	}
}

func TestLoadFromPath_JSON(t *testing.T) {
	c, err := LoadFromPath(testdataPath("study.json"))
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if c.Solver.Kind != SolverStub {
		t.Errorf("solver = %q", c.Solver.Kind)
	}
	if c.Adjacency.Index != 0 {
		t.Errorf("explicit sheet_index 0 should override the default, got %d", c.Adjacency.Index)
	}
	if c.Logging.Format != "json" {
		t.Errorf("logging format = %q", c.Logging.Format)
	}
	if c.Model.PeriodPrior != (solver.Prior{Mean: -0.4, Precision: 1}) {
		t.Errorf("period prior should default, got %+v", c.Model.PeriodPrior)
	}
}

func TestLoad_Detect(t *testing.T) {
	c, err := Load([]byte(`{"solver":{"kind":"inla"}}`), "")
	if err != nil {
		t.Fatalf("Load json: %v", err)
	}
	if c.Solver.Kind != SolverINLA {
		t.Errorf("got %q", c.Solver.Kind)
	}

	c, err = Load([]byte("model:\n  ratio_sign: 1\n"), "")
	if err != nil {
		t.Fatalf("Load yaml: %v", err)
	}
	if c.Model.RatioSign != 1 || c.Model.PeriodPrior.Mean != -0.4 {
		t.Errorf("got %+v", c.Model)
	}

	if _, err := Load([]byte("x"), ".toml"); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func validConfig() *Config {
	c := Default()
	c.Data.Workbook = "imr.xlsx"
	c.Adjacency.Workbook = "adj.xlsx"
	return c
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no data", func(c *Config) { c.Data.Workbook = "" }},
		{"no adjacency", func(c *Config) { c.Adjacency.Workbook = "" }},
		{"one period", func(c *Config) { c.Data.Schema.Periods = c.Data.Schema.Periods[:1] }},
		{"zero precision", func(c *Config) { c.Model.PeriodPrior.Precision = 0 }},
		{"sign", func(c *Config) { c.Model.RatioSign = 0.5 }},
		{"rate scale", func(c *Config) { c.Model.RateScale = 0 }},
		{"solver", func(c *Config) { c.Solver.Kind = "mcmc" }},
		{"no rscript", func(c *Config) { c.Solver.Kind = SolverINLA; c.Solver.Rscript = "" }},
		{"laplace iterations", func(c *Config) { c.Solver.Laplace.MaxIterations = 0 }},
		{"table format", func(c *Config) { c.Report.TableFormat = "html" }},
		{"figure format", func(c *Config) { c.Report.FigureFormat = "gif" }},
		{"dpi", func(c *Config) { c.Report.DPI = 0 }},
		{"figure", func(c *Config) { c.Report.Figures = []string{"pie"} }},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig()
			tc.mutate(c)
			if err := c.Validate(); !domain.IsKind(err, domain.KindConfig) {
				t.Errorf("want config error, got %v", err)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	c := validConfig()
	c.Archive.Path = "/abs/runs.db"
	c.Resolve("/study")
	if c.Data.Workbook != "/study/imr.xlsx" {
		t.Errorf("data workbook = %q", c.Data.Workbook)
	}
	if c.Archive.Path != "/abs/runs.db" {
		t.Errorf("archive path = %q", c.Archive.Path)
	}
	if c.Labels.Workbook != "" {
		t.Errorf("unset paths must stay empty, got %q", c.Labels.Workbook)
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	c := validConfig()
	out, err := Marshal(c)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := Load(out, ".yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(c, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
