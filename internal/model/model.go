// Package model assembles the fixed disease-mapping specification: a
// Poisson likelihood with log link and log-births offset, a deprivation
// covariate, a BYM spatial effect over the county graph and an iid period
// effect with an informative normal prior.
package model

import (
	"fmt"
	"math"
	"strings"

	"imrmap/internal/dataset"
	"imrmap/internal/domain"
	"imrmap/internal/graph"
	"imrmap/internal/solver"
)

// ReferenceLevel names period level 0, the shared baseline that every
// earlier-period observation loads on.
const ReferenceLevel = "reference"

// Spec is the model specification. It is built once and shared read-only
// by every fit.
type Spec struct {
	Graph       *graph.Graph
	PeriodPrior solver.Prior
}

// NewSpec validates the prior and returns the specification.
func NewSpec(g *graph.Graph, prior solver.Prior) (*Spec, error) {
	if g == nil || g.Size() == 0 {
		return nil, domain.Errorf("model.spec", domain.KindAlignment, "empty graph")
	}
	if prior.Precision <= 0 || math.IsNaN(prior.Mean) || math.IsInf(prior.Mean, 0) {
		return nil, domain.Errorf("model.spec", domain.KindConfig, "invalid period prior %+v", prior)
	}
	return &Spec{Graph: g, PeriodPrior: prior}, nil
}

// Formula renders the specification as an R-INLA formula.
func (s *Spec) Formula() string {
	return fmt.Sprintf("deaths ~ 1 + deprivation"+
		" + f(county, model = \"bym\", graph = g, constr = TRUE)"+
		" + f(period, model = \"iid\", mean = %g, prec = %g)"+
		" + offset(log(births)), family = \"poisson\"",
		s.PeriodPrior.Mean, s.PeriodPrior.Precision)
}

// PeriodLevels lists the period effect's level keys in solver order.
func (s *Spec) PeriodLevels() []string {
	levels := []string{ReferenceLevel}
	for _, c := range s.Graph.Counties() {
		levels = append(levels, string(c.ID))
	}
	return levels
}

// Design is the latent assignment of one observation.
type Design struct {
	Key         domain.ObservationKey
	CountyLevel int
	PeriodLevel int
}

// Design maps each observation to its spatial and period levels through
// the county key, never through row position.
func (s *Spec) Design(long *dataset.Long) ([]Design, error) {
	const op = "model.design"
	level := make(map[domain.CountyID]int, s.Graph.Size())
	for _, c := range s.Graph.Counties() {
		level[c.ID] = c.Index
	}
	if len(long.Counties()) != len(level) {
		return nil, domain.Errorf(op, domain.KindAlignment, "dataset has %d counties, graph has %d", len(long.Counties()), len(level))
	}

	out := make([]Design, 0, long.Len())
	for _, o := range long.Observations {
		lv, ok := level[o.County.ID]
		if !ok {
			return nil, domain.Errorf(op, domain.KindAlignment, "county %s is not in the graph", o.County.ID)
		}
		d := Design{Key: o.Key(), CountyLevel: lv}
		switch o.Period.Ordinal {
		case 1:
			d.PeriodLevel = 0
		case 2:
			d.PeriodLevel = lv
		default:
			return nil, domain.Errorf(op, domain.KindAlignment, "observation %s has period ordinal %d", o.Key(), o.Period.Ordinal)
		}
		out = append(out, d)
	}
	return out, nil
}

// Problem builds the solver input for long. Lincombs may be nil.
func (s *Spec) Problem(long *dataset.Long, lc *Lincombs) (*solver.Problem, error) {
	design, err := s.Design(long)
	if err != nil {
		return nil, err
	}
	p := &solver.Problem{Graph: s.Graph, PeriodPrior: s.PeriodPrior}
	for i, o := range long.Observations {
		p.Response = append(p.Response, o.Deaths)
		p.Offset = append(p.Offset, math.Log(o.Births))
		p.Deprivation = append(p.Deprivation, o.Deprivation)
		p.CountyLevel = append(p.CountyLevel, design[i].CountyLevel)
		p.PeriodLevel = append(p.PeriodLevel, design[i].PeriodLevel)
	}
	if lc != nil {
		if err := lc.Validate(s.PeriodLevels()); err != nil {
			return nil, err
		}
		names := make([]string, len(lc.Rows))
		for i, id := range lc.Rows {
			names[i] = string(id)
		}
		p = p.WithLincombs(lc.Matrix, names)
	}
	return p, nil
}

// Describe returns a one-line description for logs.
func (s *Spec) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "poisson/log, %d counties, %d edges", s.Graph.Size(), s.Graph.Edges())
	if islands := s.Graph.Islands(); len(islands) > 0 {
		fmt.Fprintf(&b, ", %d islands", len(islands))
	}
	fmt.Fprintf(&b, ", period prior N(%g, prec %g)", s.PeriodPrior.Mean, s.PeriodPrior.Precision)
	return b.String()
}
