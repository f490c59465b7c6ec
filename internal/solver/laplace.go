package solver

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"imrmap/internal/domain"
	"imrmap/internal/logging"
)

// LaplaceConfig holds the fixed hyperparameters and iteration controls of
// the built-in engine.
type LaplaceConfig struct {
	InterceptPrecision    float64 `yaml:"intercept_precision" json:"intercept_precision"`
	FixedPrecision        float64 `yaml:"fixed_precision" json:"fixed_precision"`
	StructuredPrecision   float64 `yaml:"structured_precision" json:"structured_precision"`
	UnstructuredPrecision float64 `yaml:"unstructured_precision" json:"unstructured_precision"`
	MaxIterations         int     `yaml:"max_iterations" json:"max_iterations"`
	Tolerance             float64 `yaml:"tolerance" json:"tolerance"`
}

// DefaultLaplaceConfig mirrors R-INLA's default fixed-effect priors and
// unit precisions for both BYM components.
func DefaultLaplaceConfig() LaplaceConfig {
	return LaplaceConfig{
		InterceptPrecision:    1e-5,
		FixedPrecision:        1e-3,
		StructuredPrecision:   1,
		UnstructuredPrecision: 1,
		MaxIterations:         100,
		Tolerance:             1e-6,
	}
}

// Laplace fits the model with a Gaussian approximation to the posterior of
// the latent field at fixed hyperparameters. The mode is found by Newton
// iterations with step halving; the sum-to-zero constraint on the
// structured spatial part is imposed by conditioning each Gaussian
// approximation on it.
type Laplace struct {
	cfg    LaplaceConfig
	logger *slog.Logger
}

// NewLaplace returns a Laplace engine.
func NewLaplace(cfg LaplaceConfig) *Laplace {
	return &Laplace{cfg: cfg, logger: logging.New("laplace")}
}

func (l *Laplace) Name() string { return "laplace" }

// layout maps latent components to positions in the latent vector:
// intercept, deprivation, n structured, n unstructured, n+1 period levels.
type layout struct {
	n      int
	u, v   int
	period int
	size   int
}

func newLayout(n int) layout {
	return layout{n: n, u: 2, v: 2 + n, period: 2 + 2*n, size: 3 + 3*n}
}

// designRow holds the nonzero entries of one row of the design matrix.
type designRow struct {
	idx [5]int
	val [5]float64
}

func (r designRow) dot(x []float64) float64 {
	s := 0.0
	for k := range r.idx {
		s += r.val[k] * x[r.idx[k]]
	}
	return s
}

func (l *Laplace) Fit(ctx context.Context, p *Problem) (*Fit, error) {
	const op = "solver.laplace"
	n := p.Counties()
	lay := newLayout(n)

	rows := make([]designRow, len(p.Response))
	for i := range rows {
		c := p.CountyLevel[i] - 1
		rows[i] = designRow{
			idx: [5]int{0, 1, lay.u + c, lay.v + c, lay.period + p.PeriodLevel[i]},
			val: [5]float64{1, p.Deprivation[i], 1, 1, 1},
		}
	}

	q := l.priorPrecision(p, lay)
	m := make([]float64, lay.size)
	for k := 0; k <= n; k++ {
		m[lay.period+k] = p.PeriodPrior.Mean
	}
	constraint := make([]float64, lay.size)
	for k := 0; k < n; k++ {
		constraint[lay.u+k] = 1
	}

	x := append([]float64(nil), m...)
	x[0] = initialIntercept(p) - p.PeriodPrior.Mean

	objective := func(x []float64) float64 { return logPosterior(rows, p, q, m, x) }

	var (
		converged bool
		iter      int
	)
	for iter = 1; iter <= l.cfg.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h, b := l.newtonSystem(rows, p, q, m, x)
		var chol mat.Cholesky
		if ok := chol.Factorize(h); !ok {
			return nil, domain.Errorf(op, domain.KindSolver, "precision matrix is not positive definite at iteration %d", iter)
		}
		target, err := constrainedSolve(&chol, b, constraint)
		if err != nil {
			return nil, domain.Wrap(op, domain.KindSolver, err)
		}

		step := make([]float64, lay.size)
		for j := range step {
			step[j] = target[j] - x[j]
		}
		current := objective(x)
		t := 1.0
		next := axpy(x, t, step)
		for objective(next) < current-1e-12 && t > 1e-6 {
			t /= 2
			next = axpy(x, t, step)
		}
		x = next

		delta := 0.0
		for _, s := range step {
			delta = math.Max(delta, math.Abs(t*s))
		}
		l.logger.Debug("newton step", "iteration", iter, "delta", delta, "step", t)
		if delta < l.cfg.Tolerance {
			converged = true
			break
		}
	}
	if !converged {
		return nil, domain.Errorf(op, domain.KindSolver, "no convergence after %d iterations", l.cfg.MaxIterations)
	}

	h, _ := l.newtonSystem(rows, p, q, m, x)
	var chol mat.Cholesky
	if ok := chol.Factorize(h); !ok {
		return nil, domain.Errorf(op, domain.KindSolver, "precision matrix is not positive definite at the mode")
	}
	cov, err := constrainedCovariance(&chol, constraint)
	if err != nil {
		return nil, domain.Wrap(op, domain.KindSolver, err)
	}

	fit := &Fit{Solver: l.Name(), Iterations: iter, Random: make(map[string][]domain.Summary)}
	marginal := func(j int) domain.Summary { return normalSummary(x[j], cov.At(j, j)) }

	fit.Fixed = []NamedSummary{
		{Name: Intercept, Summary: marginal(0)},
		{Name: Deprivation, Summary: marginal(1)},
	}
	// BYM levels report the sum of the structured and unstructured parts.
	for k := 0; k < n; k++ {
		a, b := lay.u+k, lay.v+k
		variance := cov.At(a, a) + cov.At(b, b) + 2*cov.At(a, b)
		fit.Random[Spatial] = append(fit.Random[Spatial], normalSummary(x[a]+x[b], variance))
	}
	for k := 0; k <= n; k++ {
		fit.Random[PeriodEff] = append(fit.Random[PeriodEff], marginal(lay.period+k))
	}

	for i, r := range rows {
		mean := r.dot(x) + p.Offset[i]
		variance := quadForm(cov, r.idx[:], r.val[:])
		fit.Fitted = append(fit.Fitted, lognormalSummary(mean, variance))
	}

	if p.Lincombs != nil {
		nr, nc := p.Lincombs.Dims()
		for rIdx := 0; rIdx < nr; rIdx++ {
			idx := make([]int, nc)
			val := make([]float64, nc)
			mean := 0.0
			for c := 0; c < nc; c++ {
				idx[c] = lay.period + c
				val[c] = p.Lincombs.At(rIdx, c)
				mean += val[c] * x[idx[c]]
			}
			fit.Lincombs = append(fit.Lincombs, NamedSummary{
				Name:    p.LincombNames[rIdx],
				Summary: normalSummary(mean, quadForm(cov, idx, val)),
			})
		}
	}

	l.logger.Info("laplace fit", "iterations", iter, "latent", lay.size, "observations", len(rows))
	return fit, nil
}

// priorPrecision assembles the block-diagonal prior precision: vague
// normals on the fixed effects, an intrinsic CAR block over the graph,
// iid blocks for the unstructured and period effects.
func (l *Laplace) priorPrecision(p *Problem, lay layout) *mat.SymDense {
	q := mat.NewSymDense(lay.size, nil)
	q.SetSym(0, 0, l.cfg.InterceptPrecision)
	q.SetSym(1, 1, l.cfg.FixedPrecision)

	// The intrinsic CAR precision is singular along the constant vector.
	// Adding tau*11' only changes the density off the sum-to-zero plane,
	// which the conditioning step removes, and keeps H well conditioned.
	tau := l.cfg.StructuredPrecision
	for k := 1; k <= lay.n; k++ {
		i := lay.u + k - 1
		for j := k; j <= lay.n; j++ {
			q.SetSym(i, lay.u+j-1, tau)
		}
	}
	for k := 1; k <= lay.n; k++ {
		nb := p.Graph.NeighborsOf(k)
		i := lay.u + k - 1
		q.SetSym(i, i, q.At(i, i)+tau*float64(len(nb))+tau*1e-6)
		for _, j := range nb {
			if j > k {
				q.SetSym(i, lay.u+j-1, q.At(i, lay.u+j-1)-tau)
			}
		}
	}
	for k := 0; k < lay.n; k++ {
		q.SetSym(lay.v+k, lay.v+k, l.cfg.UnstructuredPrecision)
	}
	for k := 0; k <= lay.n; k++ {
		q.SetSym(lay.period+k, lay.period+k, p.PeriodPrior.Precision)
	}
	return q
}

// newtonSystem returns H = Q + A'WA and b = Qm + A'(y - w + W A x) for the
// second-order expansion of the Poisson log-likelihood around x.
func (l *Laplace) newtonSystem(rows []designRow, p *Problem, q *mat.SymDense, m, x []float64) (*mat.SymDense, *mat.VecDense) {
	size := len(x)
	h := mat.NewSymDense(size, nil)
	h.CopySym(q)

	bv := make([]float64, size)
	for i := 0; i < size; i++ {
		s := 0.0
		for j := 0; j < size; j++ {
			s += q.At(i, j) * m[j]
		}
		bv[i] = s
	}

	for i, r := range rows {
		ax := r.dot(x)
		w := math.Exp(ax + p.Offset[i])
		z := p.Response[i] - w + w*ax
		for a := range r.idx {
			bv[r.idx[a]] += r.val[a] * z
			for c := range r.idx {
				ia, ic := r.idx[a], r.idx[c]
				if ic < ia {
					continue
				}
				// Entries can repeat only if two design columns collide,
				// which the layout rules out.
				h.SetSym(ia, ic, h.At(ia, ic)+w*r.val[a]*r.val[c])
			}
		}
	}
	return h, mat.NewVecDense(size, bv)
}

// constrainedSolve returns H^-1 b conditioned on c'x = 0.
func constrainedSolve(chol *mat.Cholesky, b *mat.VecDense, c []float64) ([]float64, error) {
	size := b.Len()
	var mu, hc mat.VecDense
	if err := chol.SolveVecTo(&mu, b); err != nil {
		return nil, fmt.Errorf("solve mode: %w", err)
	}
	cv := mat.NewVecDense(size, c)
	if err := chol.SolveVecTo(&hc, cv); err != nil {
		return nil, fmt.Errorf("solve constraint: %w", err)
	}
	denom := mat.Dot(cv, &hc)
	if denom <= 0 {
		return nil, fmt.Errorf("degenerate constraint")
	}
	k := mat.Dot(cv, &mu) / denom
	out := make([]float64, size)
	for i := range out {
		out[i] = mu.AtVec(i) - hc.AtVec(i)*k
	}
	return out, nil
}

// constrainedCovariance returns H^-1 conditioned on c'x = 0.
func constrainedCovariance(chol *mat.Cholesky, c []float64) (*mat.SymDense, error) {
	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		return nil, fmt.Errorf("invert precision: %w", err)
	}
	size := len(c)
	cv := mat.NewVecDense(size, c)
	var sc mat.VecDense
	sc.MulVec(&cov, cv)
	denom := mat.Dot(cv, &sc)
	if denom <= 0 {
		return nil, fmt.Errorf("degenerate constraint")
	}
	out := mat.NewSymDense(size, nil)
	for i := 0; i < size; i++ {
		for j := i; j < size; j++ {
			out.SetSym(i, j, cov.At(i, j)-sc.AtVec(i)*sc.AtVec(j)/denom)
		}
	}
	return out, nil
}

func logPosterior(rows []designRow, p *Problem, q *mat.SymDense, m, x []float64) float64 {
	ll := 0.0
	for i, r := range rows {
		eta := r.dot(x) + p.Offset[i]
		ll += p.Response[i]*eta - math.Exp(eta)
	}
	d := make([]float64, len(x))
	for i := range d {
		d[i] = x[i] - m[i]
	}
	dv := mat.NewVecDense(len(d), d)
	return ll - 0.5*mat.Inner(dv, q, dv)
}

func quadForm(cov *mat.SymDense, idx []int, val []float64) float64 {
	s := 0.0
	for a := range idx {
		for b := range idx {
			s += val[a] * val[b] * cov.At(idx[a], idx[b])
		}
	}
	return math.Max(s, 0)
}

func initialIntercept(p *Problem) float64 {
	var y, e float64
	for i := range p.Response {
		y += p.Response[i]
		e += math.Exp(p.Offset[i])
	}
	if y <= 0 {
		y = 0.5
	}
	return math.Log(y / e)
}

func axpy(x []float64, t float64, step []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = x[i] + t*step[i]
	}
	return out
}

var z975 = distuv.UnitNormal.Quantile(0.975)

func normalSummary(mean, variance float64) domain.Summary {
	sd := math.Sqrt(math.Max(variance, 0))
	return domain.Summary{
		Mean: mean,
		SD:   sd,
		Q025: mean - z975*sd,
		Q50:  mean,
		Q975: mean + z975*sd,
	}
}

// lognormalSummary summarizes exp(eta) for eta ~ N(mean, variance).
func lognormalSummary(mean, variance float64) domain.Summary {
	v := math.Max(variance, 0)
	sd := math.Sqrt(v)
	return domain.Summary{
		Mean: math.Exp(mean + v/2),
		SD:   math.Sqrt(math.Expm1(v) * math.Exp(2*mean+v)),
		Q025: math.Exp(mean - z975*sd),
		Q50:  math.Exp(mean),
		Q975: math.Exp(mean + z975*sd),
	}
}
