// Package pipeline runs a study end to end: prepare, fit, summarize,
// report and archive.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/plot/vg"

	"imrmap/adapters/rinla"
	"imrmap/internal/config"
	"imrmap/internal/display"
	"imrmap/internal/format"
	"imrmap/internal/logging"
	"imrmap/internal/report"
	"imrmap/internal/solver"
	"imrmap/internal/store"
	"imrmap/internal/summarize"
)

// Result is the outcome of one run.
type Result struct {
	RunID    string
	Prepared *Prepared
	Base     *solver.Fit
	Lincomb  *solver.Fit
	Tables   *summarize.Results
	// Files lists every table and figure written, in write order.
	Files []string
}

// Pipeline binds a config to an engine and an optional archive.
type Pipeline struct {
	cfg    *config.Config
	solver solver.Solver
	store  store.Store
	study  string
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStore archives every run to s.
func WithStore(s store.Store) Option { return func(p *Pipeline) { p.store = s } }

// WithStudy records the study file name on archived runs.
func WithStudy(path string) Option { return func(p *Pipeline) { p.study = path } }

// New returns a Pipeline fitting with s.
func New(cfg *config.Config, s solver.Solver, opts ...Option) *Pipeline {
	p := &Pipeline{cfg: cfg, solver: s, logger: logging.New("pipeline")}
	for _, o := range opts {
		o(p)
	}
	return p
}

// NewSolver returns the engine named by the config. The stub engine needs
// the prepared study: it fits the global rate with no spatial structure.
func NewSolver(cfg *config.Config, prep *Prepared) (solver.Solver, error) {
	switch cfg.Solver.Kind {
	case config.SolverLaplace:
		return solver.NewLaplace(cfg.Solver.Laplace), nil
	case config.SolverINLA:
		return rinla.New(rinla.Config{
			Rscript: cfg.Solver.Rscript,
			WorkDir: cfg.Solver.WorkDir,
			Keep:    cfg.Solver.KeepWorkDir,
		}), nil
	case config.SolverStub:
		var l solver.Latent
		if prep != nil && prep.Diagnostics.Overall > 0 {
			l.Intercept = math.Log(prep.Diagnostics.Overall / cfg.Model.RateScale)
		}
		return solver.NewStub(l), nil
	}
	return nil, fmt.Errorf("unknown solver kind %q", cfg.Solver.Kind)
}

// Run prepares in and executes the study on it.
func (p *Pipeline) Run(ctx context.Context, in *Inputs) (*Result, error) {
	prep, err := Prepare(p.cfg, in, p.logger)
	if err != nil {
		return nil, err
	}
	return p.RunPrepared(ctx, in, prep)
}

// RunPrepared fits, summarizes, reports and archives an already prepared
// study. A failure at any stage stops the run and, when archiving, marks
// the run failed.
func (p *Pipeline) RunPrepared(ctx context.Context, in *Inputs, prep *Prepared) (res *Result, err error) {
	start := time.Now()
	res = &Result{Prepared: prep}

	if p.store != nil {
		if res.RunID, err = p.createRun(prep); err != nil {
			return nil, err
		}
		defer func() {
			status, msg := store.StatusDone, ""
			if err != nil {
				status, msg = store.StatusFailed, err.Error()
			}
			if ferr := p.store.FinishRun(res.RunID, status, msg); ferr != nil {
				err = errors.Join(err, ferr)
			}
		}()
		if err = p.store.SaveObservations(res.RunID, prep.Long.Observations); err != nil {
			return res, err
		}
	}

	base, err := prep.Spec.Problem(prep.Long, nil)
	if err != nil {
		return res, err
	}
	withLC, err := prep.Spec.Problem(prep.Long, prep.Lincombs)
	if err != nil {
		return res, err
	}
	p.logger.Info("fitting", "solver", p.solver.Name())
	if res.Base, res.Lincomb, err = solver.FitBoth(ctx, p.solver, base, withLC); err != nil {
		return res, err
	}

	opts := p.cfg.SummarizeOptions()
	opts.Label = in.Labels.County
	opts.EffectLabel = display.Effect
	p.logger.Debug("summarizing", "rate_scale", opts.RateScale, "grr_sign", opts.RatioSign)
	if missing := in.Labels.Missing(prep.Long.Counties()); len(in.Labels) > 0 && len(missing) > 0 {
		p.logger.Warn("counties without a label", "counties", missing)
	}
	if res.Tables, err = summarize.Summarize(res.Base, res.Lincomb, prep.Long, opts); err != nil {
		return res, err
	}

	if res.Files, err = p.report(in, res); err != nil {
		return res, err
	}
	if p.store != nil {
		for _, t := range res.Tables.All() {
			if err = p.store.SaveTable(res.RunID, t); err != nil {
				return res, err
			}
		}
	}
	p.logger.Info("run complete", "run", res.RunID, "files", len(res.Files), "elapsed", format.FmtDuration(time.Since(start)))
	return res, nil
}

func (p *Pipeline) createRun(prep *Prepared) (string, error) {
	snapshot, err := config.Marshal(p.cfg)
	if err != nil {
		return "", err
	}
	return p.store.CreateRun(&store.Run{
		Study:        p.study,
		Solver:       p.solver.Name(),
		Formula:      prep.Spec.Formula(),
		Config:       string(snapshot),
		Status:       store.StatusRunning,
		Counties:     prep.Graph.Size(),
		Observations: prep.Long.Len(),
	})
}

// ReportOptions converts the report section to renderer options.
func ReportOptions(cfg *config.Config) report.Options {
	return report.Options{
		OutDir:       cfg.Report.OutDir,
		FigureFormat: cfg.Report.FigureFormat,
		Width:        vg.Length(cfg.Report.WidthIn) * vg.Inch,
		Height:       vg.Length(cfg.Report.HeightIn) * vg.Inch,
		DPI:          cfg.Report.DPI,
	}
}

func (p *Pipeline) report(in *Inputs, res *Result) ([]string, error) {
	r := report.New(ReportOptions(p.cfg))
	files, err := r.WriteTables(res.Tables.All())
	if err != nil {
		return nil, err
	}
	long := res.Prepared.Long
	for _, name := range config.AllFigures {
		if !p.cfg.WantFigure(name) {
			continue
		}
		title := display.Figure(name)
		var path string
		switch name {
		case config.FigScatter:
			path, err = r.Scatter(long, title)
		case config.FigDensity:
			path, err = r.Density(long, title)
		case config.FigTrend:
			if in.Reference == nil {
				p.logger.Info("figure skipped, no reference series configured", "figure", name)
				continue
			}
			path, err = r.Trend(in.Reference, long, p.cfg.Reference.Years, title)
		case config.FigMap:
			if in.Boundaries == nil {
				p.logger.Info("figure skipped, no boundaries configured", "figure", name)
				continue
			}
			path, err = r.Map(in.Boundaries, res.Tables.Ratios, title)
		}
		if err != nil {
			return files, fmt.Errorf("figure %s: %w", name, err)
		}
		files = append(files, path)
	}
	return files, nil
}
