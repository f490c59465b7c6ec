// Package rinla runs the model through R-INLA in a child Rscript process.
// The problem, graph and an embedded R script are written to a work
// directory; the script writes its posterior summaries back as JSON.
package rinla

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"imrmap/internal/domain"
	"imrmap/internal/format"
	"imrmap/internal/logging"
	"imrmap/internal/solver"
)

//go:embed fit.R
var fitScript []byte

// Work directory file names.
const (
	scriptFile  = "fit.R"
	problemFile = "problem.json"
	graphFile   = "graph.txt"
	resultFile  = "result.json"
)

// stderrTail bounds how much R output an error carries.
const stderrTail = 2000

// Config locates Rscript and the work directory.
type Config struct {
	Rscript string
	// WorkDir is the parent of each fit's directory; empty uses the
	// system temp dir.
	WorkDir string
	// Keep leaves each fit's directory in place for inspection.
	Keep bool
}

// Engine implements solver.Solver with R-INLA.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// New returns an engine. An empty Rscript means "Rscript" on PATH.
func New(cfg Config) *Engine {
	if cfg.Rscript == "" {
		cfg.Rscript = "Rscript"
	}
	return &Engine{cfg: cfg, logger: logging.New("rinla")}
}

// newCommand creates an exec.Cmd for testability
var newCommand = func(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, args...)
}

func (e *Engine) Name() string { return "inla" }

func (e *Engine) Fit(ctx context.Context, p *solver.Problem) (*solver.Fit, error) {
	const op = "rinla.fit"
	dir, err := os.MkdirTemp(e.cfg.WorkDir, "imrmap-inla-*")
	if err != nil {
		return nil, domain.Wrap(op, domain.KindSolver, fmt.Errorf("create work dir: %w", err))
	}
	if e.cfg.Keep {
		e.logger.Info("keeping work dir", "dir", dir)
	} else {
		defer os.RemoveAll(dir)
	}

	if err := writeInputs(dir, p); err != nil {
		return nil, domain.Wrap(op, domain.KindSolver, err)
	}

	var stdout, stderr bytes.Buffer
	cmd := newCommand(ctx, e.cfg.Rscript, "--vanilla",
		filepath.Join(dir, scriptFile), filepath.Join(dir, problemFile),
		filepath.Join(dir, graphFile), filepath.Join(dir, resultFile))
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	e.logger.Debug("starting Rscript", "bin", e.cfg.Rscript, "dir", dir, "observations", len(p.Response))
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, domain.Wrap(op, domain.KindSolver, ctxErr)
		}
		return nil, domain.Errorf(op, domain.KindSolver, "Rscript failed: %v: %s", err, format.Tail(stderr.String(), stderrTail))
	}
	e.logger.Debug("Rscript finished", "elapsed", format.FmtDuration(time.Since(start)), "stdout_bytes", stdout.Len())

	data, err := os.ReadFile(filepath.Join(dir, resultFile))
	if err != nil {
		return nil, domain.Errorf(op, domain.KindSolver, "Rscript wrote no result: %v: %s", err, format.Tail(stderr.String(), stderrTail))
	}
	fit, status, err := decodeResult(data, p)
	if err != nil {
		return nil, err
	}
	if status != 0 {
		e.logger.Warn("INLA mode status is nonzero; the approximation may be inaccurate", "mode_status", status)
	}
	return fit, nil
}

// wireProblem is the JSON the R script reads.
type wireProblem struct {
	Counties       int           `json:"counties"`
	Levels         int           `json:"levels"`
	Response       []float64     `json:"response"`
	Offset         []float64     `json:"offset"`
	Deprivation    []float64     `json:"deprivation"`
	County         []int         `json:"county"`
	Period         []int         `json:"period"`
	PriorMean      float64       `json:"prior_mean"`
	PriorPrecision float64       `json:"prior_precision"`
	Lincombs       *wireLincombs `json:"lincombs,omitempty"`
}

type wireLincombs struct {
	Names   []string    `json:"names"`
	Weights [][]float64 `json:"weights"`
}

func writeInputs(dir string, p *solver.Problem) error {
	wp := wireProblem{
		Counties:       p.Counties(),
		Levels:         p.PeriodLevels(),
		Response:       p.Response,
		Offset:         p.Offset,
		Deprivation:    p.Deprivation,
		County:         p.CountyLevel,
		Period:         p.PeriodLevel,
		PriorMean:      p.PeriodPrior.Mean,
		PriorPrecision: p.PeriodPrior.Precision,
	}
	if p.Lincombs != nil {
		r, c := p.Lincombs.Dims()
		lc := &wireLincombs{Names: p.LincombNames, Weights: make([][]float64, r)}
		for i := range lc.Weights {
			lc.Weights[i] = make([]float64, c)
			for j := range lc.Weights[i] {
				lc.Weights[i][j] = p.Lincombs.At(i, j)
			}
		}
		wp.Lincombs = lc
	}
	data, err := json.Marshal(wp)
	if err != nil {
		return fmt.Errorf("marshal problem: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, problemFile), data, 0o644); err != nil {
		return fmt.Errorf("write problem: %w", err)
	}

	gf, err := os.Create(filepath.Join(dir, graphFile))
	if err != nil {
		return fmt.Errorf("create graph file: %w", err)
	}
	if err := p.Graph.WriteINLA(gf); err != nil {
		gf.Close()
		return fmt.Errorf("write graph: %w", err)
	}
	if err := gf.Close(); err != nil {
		return fmt.Errorf("close graph file: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, scriptFile), fitScript, 0o644); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	return nil
}

// wireSummary is one row of an R-INLA summary data frame.
type wireSummary struct {
	Name string  `json:"name,omitempty"`
	Mean float64 `json:"mean"`
	SD   float64 `json:"sd"`
	Q025 float64 `json:"q025"`
	Q50  float64 `json:"q50"`
	Q975 float64 `json:"q975"`
}

func (w wireSummary) summary() domain.Summary {
	return domain.Summary{Mean: w.Mean, SD: w.SD, Q025: w.Q025, Q50: w.Q50, Q975: w.Q975}
}

func (w wireSummary) shifted(mu float64) domain.Summary {
	s := w.summary()
	s.Mean += mu
	s.Q025 += mu
	s.Q50 += mu
	s.Q975 += mu
	return s
}

type wireResult struct {
	Fixed      []wireSummary `json:"fixed"`
	Spatial    []wireSummary `json:"spatial"`
	Period     []wireSummary `json:"period"`
	Fitted     []wireSummary `json:"fitted"`
	Lincombs   []wireSummary `json:"lincombs"`
	ModeStatus int           `json:"mode_status"`
}

// decodeResult maps the script's output onto a solver.Fit. Period levels
// were fitted around zero with the prior mean in the offset; they are
// shifted back here. Lincombs are matched to the problem by name, so the
// order R reports them in does not matter.
func decodeResult(data []byte, p *solver.Problem) (*solver.Fit, int, error) {
	const op = "rinla.result"
	var w wireResult
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, 0, domain.Wrap(op, domain.KindSolver, fmt.Errorf("parse result: %w", err))
	}

	mu := p.PeriodPrior.Mean
	fit := &solver.Fit{
		Solver: "inla",
		Random: map[string][]domain.Summary{},
	}
	for _, f := range w.Fixed {
		fit.Fixed = append(fit.Fixed, solver.NamedSummary{Name: f.Name, Summary: f.summary()})
	}
	for _, s := range w.Spatial {
		fit.Random[solver.Spatial] = append(fit.Random[solver.Spatial], s.summary())
	}
	for _, s := range w.Period {
		fit.Random[solver.PeriodEff] = append(fit.Random[solver.PeriodEff], s.shifted(mu))
	}
	for _, s := range w.Fitted {
		fit.Fitted = append(fit.Fitted, s.summary())
	}

	if p.Lincombs != nil {
		byName := make(map[string]wireSummary, len(w.Lincombs))
		for _, l := range w.Lincombs {
			byName[l.Name] = l
		}
		_, cols := p.Lincombs.Dims()
		for i, name := range p.LincombNames {
			l, ok := byName[name]
			if !ok {
				return nil, 0, domain.Errorf(op, domain.KindAlignment, "result has no lincomb %q", name)
			}
			weight := 0.0
			for j := 0; j < cols; j++ {
				weight += p.Lincombs.At(i, j)
			}
			fit.Lincombs = append(fit.Lincombs, solver.NamedSummary{Name: name, Summary: l.shifted(mu * weight)})
		}
	}
	return fit, w.ModeStatus, nil
}
