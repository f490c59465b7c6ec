package solver

import (
	"context"
	"math"

	"imrmap/internal/domain"
)

// Latent fixes every latent value for the Stub engine. Spatial is indexed
// by county level - 1; Period by period level (0 = reference). Missing
// entries read as zero.
type Latent struct {
	Intercept   float64
	Deprivation float64
	Spatial     []float64
	Period      []float64
}

// Stub returns exact, zero-width posterior summaries computed from fixed
// latent values. It is deterministic and never fails on a valid problem.
type Stub struct {
	Latent Latent
}

// NewStub returns a Stub over the given latent values.
func NewStub(l Latent) *Stub { return &Stub{Latent: l} }

func (s *Stub) Name() string { return "stub" }

func (s *Stub) Fit(ctx context.Context, p *Problem) (*Fit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := p.Counties()
	spatial := padded(s.Latent.Spatial, n)
	period := padded(s.Latent.Period, n+1)

	fit := &Fit{
		Solver: s.Name(),
		Fixed: []NamedSummary{
			{Name: Intercept, Summary: point(s.Latent.Intercept)},
			{Name: Deprivation, Summary: point(s.Latent.Deprivation)},
		},
		Random: map[string][]domain.Summary{
			Spatial:   points(spatial),
			PeriodEff: points(period),
		},
	}

	for i := range p.Response {
		eta := s.Latent.Intercept + s.Latent.Deprivation*p.Deprivation[i] +
			spatial[p.CountyLevel[i]-1] + period[p.PeriodLevel[i]] + p.Offset[i]
		fit.Fitted = append(fit.Fitted, point(math.Exp(eta)))
	}

	if p.Lincombs != nil {
		rows, cols := p.Lincombs.Dims()
		for r := 0; r < rows; r++ {
			v := 0.0
			for c := 0; c < cols; c++ {
				v += p.Lincombs.At(r, c) * period[c]
			}
			fit.Lincombs = append(fit.Lincombs, NamedSummary{Name: p.LincombNames[r], Summary: point(v)})
		}
	}
	return fit, nil
}

func point(v float64) domain.Summary {
	return domain.Summary{Mean: v, Q025: v, Q50: v, Q975: v}
}

func points(vs []float64) []domain.Summary {
	out := make([]domain.Summary, len(vs))
	for i, v := range vs {
		out[i] = point(v)
	}
	return out
}

func padded(vs []float64, n int) []float64 {
	out := make([]float64, n)
	copy(out, vs)
	return out
}
