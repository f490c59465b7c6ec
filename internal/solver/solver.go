// Package solver defines the contract between the model specification and
// an approximate Bayesian inference engine, plus two in-process engines.
package solver

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"imrmap/internal/domain"
	"imrmap/internal/graph"
	"imrmap/internal/logging"
)

// Names of the model's latent components.
const (
	Intercept   = "(Intercept)"
	Deprivation = "deprivation"
	Spatial     = "spatial"
	PeriodEff   = "period"
)

// Prior is an independent normal prior.
type Prior struct {
	Mean      float64 `yaml:"mean" json:"mean"`
	Precision float64 `yaml:"precision" json:"precision"`
}

// Problem is everything an engine needs for one fit. Observation arrays
// are parallel and in long-table order.
//
// CountyLevel is the 1-based county level of the spatial (BYM) effect.
// PeriodLevel indexes the period effect: 0 is the shared reference level,
// c in 1..n is county c's later-period level.
type Problem struct {
	Response    []float64
	Offset      []float64
	Deprivation []float64
	CountyLevel []int
	PeriodLevel []int
	Graph       *graph.Graph
	PeriodPrior Prior

	// Lincombs has one row per linear combination and one column per
	// period level (n+1). Nil when no combinations are requested.
	Lincombs     *mat.Dense
	LincombNames []string
}

// Counties returns the number of spatial levels.
func (p *Problem) Counties() int { return p.Graph.Size() }

// PeriodLevels returns the number of period-effect levels.
func (p *Problem) PeriodLevels() int { return p.Graph.Size() + 1 }

// WithLincombs returns a shallow copy of p carrying the combinations.
func (p *Problem) WithLincombs(m *mat.Dense, names []string) *Problem {
	cp := *p
	cp.Lincombs = m
	cp.LincombNames = names
	return &cp
}

// Validate checks array lengths and level ranges.
func (p *Problem) Validate() error {
	const op = "solver.problem"
	if p.Graph == nil {
		return domain.Errorf(op, domain.KindAlignment, "no graph")
	}
	n, obs := p.Counties(), len(p.Response)
	for name, l := range map[string]int{
		"offset": len(p.Offset), "deprivation": len(p.Deprivation),
		"county level": len(p.CountyLevel), "period level": len(p.PeriodLevel),
	} {
		if l != obs {
			return domain.Errorf(op, domain.KindAlignment, "%s has %d entries, response has %d", name, l, obs)
		}
	}
	for i := range p.Response {
		if c := p.CountyLevel[i]; c < 1 || c > n {
			return domain.Errorf(op, domain.KindAlignment, "observation %d: county level %d outside 1..%d", i, c, n)
		}
		if l := p.PeriodLevel[i]; l < 0 || l > n {
			return domain.Errorf(op, domain.KindAlignment, "observation %d: period level %d outside 0..%d", i, l, n)
		}
	}
	if p.PeriodPrior.Precision <= 0 {
		return domain.Errorf(op, domain.KindConfig, "period prior precision must be positive, got %g", p.PeriodPrior.Precision)
	}
	if p.Lincombs != nil {
		r, c := p.Lincombs.Dims()
		if c != p.PeriodLevels() {
			return domain.Errorf(op, domain.KindAlignment, "lincomb matrix has %d columns, period effect has %d levels", c, p.PeriodLevels())
		}
		if len(p.LincombNames) != r {
			return domain.Errorf(op, domain.KindAlignment, "lincomb matrix has %d rows but %d names", r, len(p.LincombNames))
		}
	}
	return nil
}

// NamedSummary is a posterior summary with a label.
type NamedSummary struct {
	Name string `json:"name"`
	domain.Summary
}

// Fit is an engine's result. Random effects are listed in level order;
// Fitted holds exp(linear predictor), offset included, per observation.
type Fit struct {
	Solver     string                      `json:"solver"`
	Fixed      []NamedSummary              `json:"fixed"`
	Random     map[string][]domain.Summary `json:"random"`
	Fitted     []domain.Summary            `json:"fitted"`
	Lincombs   []NamedSummary              `json:"lincombs,omitempty"`
	Iterations int                         `json:"iterations,omitempty"`
}

// FixedEffect returns the named fixed-effect summary.
func (f *Fit) FixedEffect(name string) (domain.Summary, bool) {
	for _, s := range f.Fixed {
		if s.Name == name {
			return s.Summary, true
		}
	}
	return domain.Summary{}, false
}

// Check verifies that the result has exactly the shape the problem asks
// for. A mismatch means rows can no longer be tied to counties.
func (f *Fit) Check(p *Problem) error {
	const op = "solver.check"
	if len(f.Fitted) != len(p.Response) {
		return domain.Errorf(op, domain.KindAlignment, "solver returned %d fitted values for %d observations", len(f.Fitted), len(p.Response))
	}
	if got := len(f.Random[Spatial]); got != p.Counties() {
		return domain.Errorf(op, domain.KindAlignment, "solver returned %d spatial levels, want %d", got, p.Counties())
	}
	if got := len(f.Random[PeriodEff]); got != p.PeriodLevels() {
		return domain.Errorf(op, domain.KindAlignment, "solver returned %d period levels, want %d", got, p.PeriodLevels())
	}
	want := 0
	if p.Lincombs != nil {
		want, _ = p.Lincombs.Dims()
	}
	if len(f.Lincombs) != want {
		return domain.Errorf(op, domain.KindAlignment, "solver returned %d lincombs, want %d", len(f.Lincombs), want)
	}
	for i, lc := range f.Lincombs {
		if lc.Name != p.LincombNames[i] {
			return domain.Errorf(op, domain.KindAlignment, "lincomb %d is %q, want %q", i, lc.Name, p.LincombNames[i])
		}
	}
	return nil
}

// Solver fits a Problem.
type Solver interface {
	Name() string
	Fit(ctx context.Context, p *Problem) (*Fit, error)
}

// Run validates p, fits it and checks the result shape.
func Run(ctx context.Context, s Solver, p *Problem) (*Fit, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	fit, err := s.Fit(ctx, p)
	if err != nil {
		if domain.IsKind(err, domain.KindSolver) {
			return nil, err
		}
		return nil, domain.Wrap("solver."+s.Name(), domain.KindSolver, err)
	}
	if err := fit.Check(p); err != nil {
		return nil, err
	}
	return fit, nil
}

// FitBoth runs the base model and the lincomb model concurrently. The two
// fits share only the read-only problem; the first error cancels the other.
func FitBoth(ctx context.Context, s Solver, base, withLincombs *Problem) (*Fit, *Fit, error) {
	logger := logging.New("solver")
	var baseFit, lcFit *Fit

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f, err := Run(gctx, s, base)
		if err != nil {
			return fmt.Errorf("base model: %w", err)
		}
		baseFit = f
		return nil
	})
	g.Go(func() error {
		f, err := Run(gctx, s, withLincombs)
		if err != nil {
			return fmt.Errorf("lincomb model: %w", err)
		}
		lcFit = f
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	logger.Info("fits complete", "solver", s.Name(), "observations", len(base.Response),
		"lincombs", len(lcFit.Lincombs))
	return baseFit, lcFit, nil
}
