// Package config holds the study file: where the inputs live, the model
// settings, the engine choice and the report layout.
package config

import (
	"fmt"
	"path/filepath"

	"imrmap/adapters/workbook"
	"imrmap/internal/dataset"
	"imrmap/internal/domain"
	"imrmap/internal/format"
	"imrmap/internal/logging"
	"imrmap/internal/solver"
	"imrmap/internal/summarize"
)

// Solver kinds.
const (
	SolverLaplace = "laplace"
	SolverINLA    = "inla"
	SolverStub    = "stub"
)

// Figure names.
const (
	FigScatter = "scatter"
	FigDensity = "density"
	FigTrend   = "trend"
	FigMap     = "map"
)

// AllFigures lists every figure in report order.
var AllFigures = []string{FigScatter, FigDensity, FigTrend, FigMap}

// Source is a sheet inside a workbook.
type Source struct {
	Workbook          string `yaml:"workbook" json:"workbook"`
	workbook.SheetRef `yaml:",inline"`
}

// Set reports whether the source is configured.
func (s Source) Set() bool { return s.Workbook != "" }

// Data describes the study dataset.
type Data struct {
	Source `yaml:",inline"`
	Schema dataset.Schema `yaml:"schema" json:"schema"`
}

// Labels describes the county label lookup sheet.
type Labels struct {
	Source      `yaml:",inline"`
	IDColumn    string `yaml:"id_column" json:"id_column"`
	LabelColumn string `yaml:"label_column" json:"label_column"`
}

// Reference describes the regional or national rate series drawn on the
// trend figure.
type Reference struct {
	Source     `yaml:",inline"`
	Name       string `yaml:"name" json:"name"`
	YearColumn string `yaml:"year_column" json:"year_column"`
	RateColumn string `yaml:"rate_column" json:"rate_column"`
	// Years places the study periods on the trend's time axis, keyed by
	// period code.
	Years map[string]float64 `yaml:"years,omitempty" json:"years,omitempty"`
}

// Boundaries points at the county polygons for the map.
type Boundaries struct {
	Path       string `yaml:"path" json:"path"`
	IDProperty string `yaml:"id_property" json:"id_property"`
}

// Model holds the paper-specific modelling choices.
type Model struct {
	PeriodPrior solver.Prior `yaml:"period_prior" json:"period_prior"`
	RatioSign   float64      `yaml:"ratio_sign" json:"ratio_sign"`
	RateScale   float64      `yaml:"rate_scale" json:"rate_scale"`
}

// Solver selects and configures the inference engine.
type Solver struct {
	Kind        string               `yaml:"kind" json:"kind"`
	Rscript     string               `yaml:"rscript,omitempty" json:"rscript,omitempty"`
	WorkDir     string               `yaml:"work_dir,omitempty" json:"work_dir,omitempty"`
	KeepWorkDir bool                 `yaml:"keep_work_dir,omitempty" json:"keep_work_dir,omitempty"`
	Laplace     solver.LaplaceConfig `yaml:"laplace" json:"laplace"`
}

// Report sets where and how tables and figures are written.
type Report struct {
	OutDir       string           `yaml:"out_dir" json:"out_dir"`
	TableFormat  string           `yaml:"table_format" json:"table_format"`
	FigureFormat string           `yaml:"figure_format" json:"figure_format"`
	WidthIn      float64          `yaml:"width_in" json:"width_in"`
	HeightIn     float64          `yaml:"height_in" json:"height_in"`
	DPI          int              `yaml:"dpi" json:"dpi"`
	Digits       summarize.Digits `yaml:"digits" json:"digits"`
	Figures      []string         `yaml:"figures" json:"figures"`
}

// Archive configures the run store. An empty path disables archiving.
type Archive struct {
	Path string `yaml:"path" json:"path"`
}

// Logging configures the default logger.
type Logging struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Config is the whole study file.
type Config struct {
	Data       Data       `yaml:"data" json:"data"`
	Adjacency  Source     `yaml:"adjacency" json:"adjacency"`
	Labels     Labels     `yaml:"labels" json:"labels"`
	Reference  Reference  `yaml:"reference" json:"reference"`
	Boundaries Boundaries `yaml:"boundaries" json:"boundaries"`
	Model      Model      `yaml:"model" json:"model"`
	Solver     Solver     `yaml:"solver" json:"solver"`
	Report     Report     `yaml:"report" json:"report"`
	Archive    Archive    `yaml:"archive" json:"archive"`
	Logging    Logging    `yaml:"logging" json:"logging"`
}

// Default returns the published study's settings. Input paths are left
// empty; the adjacency matrix defaults to the workbook's second sheet.
func Default() *Config {
	return &Config{
		Data: Data{Schema: dataset.Schema{
			CountyColumn: "county",
			NameColumn:   "name",
			Prefixes: map[dataset.Variable]string{
				dataset.Births:      "births",
				dataset.Deaths:      "deaths",
				dataset.Deprivation: "deprivation",
			},
			Periods: []domain.Period{
				{Code: "1", Ordinal: 1},
				{Code: "2", Ordinal: 2},
			},
		}},
		Adjacency:  Source{SheetRef: workbook.SheetRef{Index: 1}},
		Labels:     Labels{IDColumn: "id", LabelColumn: "label"},
		Reference:  Reference{Name: "Reference", YearColumn: "year", RateColumn: "rate"},
		Boundaries: Boundaries{IDProperty: "id"},
		Model: Model{
			PeriodPrior: solver.Prior{Mean: -0.4, Precision: 1},
			RatioSign:   -1,
			RateScale:   dataset.RateScale,
		},
		Solver: Solver{
			Kind:    SolverLaplace,
			Rscript: "Rscript",
			Laplace: solver.DefaultLaplaceConfig(),
		},
		Report: Report{
			OutDir:       "out",
			TableFormat:  "ascii",
			FigureFormat: "eps",
			WidthIn:      6,
			HeightIn:     4,
			DPI:          300,
			Digits:       summarize.DefaultOptions().Digits,
			Figures:      append([]string(nil), AllFigures...),
		},
		Logging: Logging{Level: "info", Format: "text"},
	}
}

// Validate rejects configurations that cannot drive a run.
func (c *Config) Validate() error {
	const op = "config.validate"
	bad := func(format string, args ...any) error {
		return domain.Errorf(op, domain.KindConfig, format, args...)
	}
	if !c.Data.Set() {
		return bad("data.workbook is required")
	}
	if !c.Adjacency.Set() {
		return bad("adjacency.workbook is required")
	}
	if err := c.Data.Schema.Validate(); err != nil {
		return err
	}
	if c.Model.PeriodPrior.Precision <= 0 {
		return bad("model.period_prior.precision must be positive, got %g", c.Model.PeriodPrior.Precision)
	}
	if c.Model.RatioSign != 1 && c.Model.RatioSign != -1 {
		return bad("model.ratio_sign must be -1 or 1, got %g", c.Model.RatioSign)
	}
	if c.Model.RateScale <= 0 {
		return bad("model.rate_scale must be positive, got %g", c.Model.RateScale)
	}
	switch c.Solver.Kind {
	case SolverLaplace:
		l := c.Solver.Laplace
		if l.MaxIterations < 1 || l.Tolerance < 0 {
			return bad("solver.laplace: max_iterations must be >= 1 and tolerance >= 0")
		}
		if l.InterceptPrecision <= 0 || l.FixedPrecision <= 0 || l.StructuredPrecision <= 0 || l.UnstructuredPrecision <= 0 {
			return bad("solver.laplace: precisions must be positive")
		}
	case SolverINLA:
		if c.Solver.Rscript == "" {
			return bad("solver.rscript is required for the inla solver")
		}
	case SolverStub:
	default:
		return bad("unknown solver kind %q (want %s, %s or %s)", c.Solver.Kind, SolverLaplace, SolverINLA, SolverStub)
	}
	if _, err := format.ParseMode(c.Report.TableFormat); err != nil {
		return bad("report.table_format: %v", err)
	}
	switch c.Report.FigureFormat {
	case "eps", "png", "svg", "pdf":
	default:
		return bad("report.figure_format must be eps, png, svg or pdf, got %q", c.Report.FigureFormat)
	}
	if c.Report.WidthIn <= 0 || c.Report.HeightIn <= 0 || c.Report.DPI <= 0 {
		return bad("report: width_in, height_in and dpi must be positive")
	}
	for _, f := range c.Report.Figures {
		if !knownFigure(f) {
			return bad("report.figures: unknown figure %q", f)
		}
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return bad("logging.level: %v", err)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return bad("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// Resolve makes every relative input and output path relative to dir,
// normally the directory of the study file.
func (c *Config) Resolve(dir string) {
	for _, p := range []*string{
		&c.Data.Workbook, &c.Adjacency.Workbook, &c.Labels.Workbook,
		&c.Reference.Workbook, &c.Boundaries.Path, &c.Report.OutDir,
		&c.Archive.Path, &c.Solver.WorkDir,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// SummarizeOptions returns the table settings.
func (c *Config) SummarizeOptions() summarize.Options {
	return summarize.Options{
		RateScale: c.Model.RateScale,
		RatioSign: c.Model.RatioSign,
		Digits:    c.Report.Digits,
	}
}

// WantFigure reports whether the named figure is enabled.
func (c *Config) WantFigure(name string) bool {
	for _, f := range c.Report.Figures {
		if f == name {
			return true
		}
	}
	return false
}

func knownFigure(name string) bool {
	for _, f := range AllFigures {
		if f == name {
			return true
		}
	}
	return false
}

func (s Source) String() string {
	return fmt.Sprintf("%s[%s]", s.Workbook, s.SheetRef)
}
