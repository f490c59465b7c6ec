package pipeline

import (
	"fmt"
	"log/slog"
	"math"

	"imrmap/internal/config"
	"imrmap/internal/dataset"
	"imrmap/internal/graph"
	"imrmap/internal/model"
)

// Prepared is the validated study: long table, graph, model and lincombs.
// It is read-only once built.
type Prepared struct {
	Long        *dataset.Long
	Graph       *graph.Graph
	Spec        *model.Spec
	Lincombs    *model.Lincombs
	Diagnostics dataset.Diagnostics
}

// Prepare parses and validates the inputs and assembles the model. Every
// structural problem (schema, zero births, asymmetric adjacency, county
// misalignment) stops here, before any solver runs.
func Prepare(cfg *config.Config, in *Inputs, logger *slog.Logger) (*Prepared, error) {
	rows, err := dataset.ParseWide(in.Data, cfg.Data.Schema)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	long, err := dataset.Reshape(rows, cfg.Data.Schema.Periods)
	if err != nil {
		return nil, fmt.Errorf("reshape: %w", err)
	}
	diag, err := long.Diagnose()
	if err != nil {
		return nil, fmt.Errorf("diagnostics: %w", err)
	}
	for _, p := range long.Periods() {
		wide, err := dataset.WideGlobalRate(rows, p.Ordinal)
		if err != nil {
			return nil, fmt.Errorf("diagnostics: %w", err)
		}
		if got := diag.ByPeriod[p.Ordinal]; math.Abs(got-wide) > 1e-9*math.Max(1, wide) {
			logger.Warn("global rate differs between wide and long tables", "period", p.Code, "wide", wide, "long", got)
		}
		logger.Info("global rate", "period", p.Code, "rate", diag.ByPeriod[p.Ordinal])
	}
	logger.Info("dataset reshaped", "counties", diag.Counties, "observations", diag.Rows, "rate", diag.Overall)

	m, err := graph.ParseMatrix(in.Adjacency)
	if err != nil {
		return nil, fmt.Errorf("adjacency: %w", err)
	}
	if _, err := graph.CheckSymmetry(m); err != nil {
		return nil, fmt.Errorf("adjacency: %w", err)
	}
	g, err := graph.Build(m, long.Counties())
	if err != nil {
		return nil, fmt.Errorf("adjacency: %w", err)
	}
	if islands := g.Islands(); len(islands) > 0 {
		logger.Info("counties without neighbours", "islands", islands)
	}
	logger.Info("graph built", "nodes", g.Size(), "edges", g.Edges(), "components", len(g.Components()))

	spec, err := model.NewSpec(g, cfg.Model.PeriodPrior)
	if err != nil {
		return nil, err
	}
	lc, err := model.RatioLincombs(g.Counties())
	if err != nil {
		return nil, err
	}
	if err := lc.Validate(spec.PeriodLevels()); err != nil {
		return nil, err
	}
	logger.Info("model assembled", "model", spec.Describe())
	return &Prepared{Long: long, Graph: g, Spec: spec, Lincombs: lc, Diagnostics: diag}, nil
}
