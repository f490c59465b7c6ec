package summarize

import (
	"imrmap/internal/dataset"
	"imrmap/internal/domain"
	"imrmap/internal/solver"
)

// Table names, also used as output file stems.
const (
	FixedTable    = "table1"
	FittedTable   = "table2"
	RatioTable    = "table3"
	ObservedTable = "observed"
)

// GRR labels the global rate ratio row of the fixed-effects table.
const GRR = "grr"

// Digits sets the printed precision per table.
type Digits struct {
	Fixed  int `yaml:"fixed" json:"fixed"`
	Rates  int `yaml:"rates" json:"rates"`
	Ratios int `yaml:"ratios" json:"ratios"`
}

// Options controls how fits are turned into tables.
type Options struct {
	// RateScale expresses rates per this many births.
	RateScale float64
	// RatioSign is applied to the reference period level before
	// exponentiating it into the global rate ratio: -1 or +1.
	RatioSign float64
	Digits    Digits
	// Label renders a county for display. Nil uses the county name.
	Label func(domain.County) string
	// EffectLabel renders a model term. Nil keeps the raw name.
	EffectLabel func(string) string
}

// DefaultOptions returns the study's settings.
func DefaultOptions() Options {
	return Options{
		RateScale: dataset.RateScale,
		RatioSign: -1,
		Digits:    Digits{Fixed: 3, Rates: 2, Ratios: 3},
	}
}

func (o Options) effect(name string) string {
	if o.EffectLabel != nil {
		return o.EffectLabel(name)
	}
	return name
}

func (o Options) label(c domain.County) string {
	if o.Label != nil {
		if l := o.Label(c); l != "" {
			return l
		}
	}
	if c.Name != "" {
		return c.Name
	}
	return string(c.ID)
}

// FixedEffects builds the fixed-effects table: one row per fixed effect
// plus the global rate ratio derived from the period reference level as
// exp(sign * effect). A negative sign swaps the bounds before
// exponentiating, so the interval stays ordered.
func FixedEffects(fit *solver.Fit, opts Options) (*Table, error) {
	const op = "summarize.fixed"
	t := &Table{
		Name:    FixedTable,
		Caption: "Fixed effects and global rate ratio (posterior mean and 95% credibility interval)",
		Stub:    "Effect",
		Columns: []Column{{Name: "Estimate", Digits: opts.Digits.Fixed}},
	}
	for _, f := range fit.Fixed {
		t.Rows = append(t.Rows, Row{Key: f.Name, Label: opts.effect(f.Name), Cells: []Cell{Bounded(f.Summary.Interval())}})
	}

	period := fit.Random[solver.PeriodEff]
	if len(period) == 0 {
		return nil, domain.Errorf(op, domain.KindAlignment, "fit has no %s levels", solver.PeriodEff)
	}
	iv := period[0].Interval()
	switch opts.RatioSign {
	case -1:
		iv = iv.Negate()
	case 1:
	default:
		return nil, domain.Errorf(op, domain.KindConfig, "ratio sign must be -1 or 1, got %g", opts.RatioSign)
	}
	t.Rows = append(t.Rows, Row{Key: GRR, Label: opts.effect(GRR), Cells: []Cell{Bounded(iv.Exp())}})
	return t, nil
}

// FittedRates builds the per-county fitted rate table: the fitted
// intensity of each county-period rescaled to a rate per RateScale births.
// The fit must carry exactly one fitted value per observation.
func FittedRates(fit *solver.Fit, long *dataset.Long, opts Options) (*Table, error) {
	const op = "summarize.fitted"
	counties := long.Counties()
	periods := long.Periods()
	if want := len(counties) * len(periods); len(fit.Fitted) != want || long.Len() != want {
		return nil, domain.Errorf(op, domain.KindAlignment,
			"fit has %d fitted values, %d counties x %d periods need %d", len(fit.Fitted), len(counties), len(periods), want)
	}

	t := &Table{
		Name:    FittedTable,
		Caption: "Fitted infant mortality rate per 1000 births (posterior mean and 95% credibility interval)",
		Stub:    "County",
	}
	for _, p := range periods {
		t.Columns = append(t.Columns, Column{Name: p.DisplayLabel(), Digits: opts.Digits.Rates})
	}
	for _, c := range counties {
		row := Row{Key: string(c.ID), Label: opts.label(c)}
		for _, p := range periods {
			key := domain.ObservationKey{County: c.ID, Ordinal: p.Ordinal}
			pos := long.Position(key)
			obs, ok := long.Lookup(key)
			if pos < 0 || !ok {
				return nil, domain.Errorf(op, domain.KindAlignment, "no observation for %s", key)
			}
			iv := fit.Fitted[pos].Interval().Scale(opts.RateScale / obs.Births)
			row.Cells = append(row.Cells, Bounded(iv))
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// RateRatios builds the per-county rate ratio table from the lincomb fit.
// Lincomb rows must be named by county ID in county order.
func RateRatios(fit *solver.Fit, counties []domain.County, opts Options) (*Table, error) {
	const op = "summarize.ratios"
	if len(fit.Lincombs) != len(counties) {
		return nil, domain.Errorf(op, domain.KindAlignment, "fit has %d lincombs for %d counties", len(fit.Lincombs), len(counties))
	}
	t := &Table{
		Name:    RatioTable,
		Caption: "Rate ratio between periods by county (posterior mean and 95% credibility interval)",
		Stub:    "County",
		Columns: []Column{{Name: "RR", Digits: opts.Digits.Ratios}},
	}
	for i, c := range counties {
		lc := fit.Lincombs[i]
		if lc.Name != string(c.ID) {
			return nil, domain.Errorf(op, domain.KindAlignment, "lincomb %d is %q, want county %s", i, lc.Name, c.ID)
		}
		t.Rows = append(t.Rows, Row{Key: string(c.ID), Label: opts.label(c), Cells: []Cell{Bounded(lc.Summary.Interval().Exp())}})
	}
	return t, nil
}

// Observed builds the descriptive table: births, deaths and observed rate
// per county and period.
func Observed(long *dataset.Long, opts Options) (*Table, error) {
	t := &Table{
		Name:    ObservedTable,
		Caption: "Births, infant deaths and observed mortality rate per 1000 births",
		Stub:    "County",
	}
	for _, p := range long.Periods() {
		lbl := p.DisplayLabel()
		t.Columns = append(t.Columns,
			Column{Name: "Births " + lbl},
			Column{Name: "Deaths " + lbl},
			Column{Name: "Rate " + lbl, Digits: opts.Digits.Rates},
		)
	}
	for _, c := range long.Counties() {
		row := Row{Key: string(c.ID), Label: opts.label(c)}
		for _, p := range long.Periods() {
			o, ok := long.Lookup(domain.ObservationKey{County: c.ID, Ordinal: p.Ordinal})
			if !ok {
				return nil, domain.Errorf("summarize.observed", domain.KindAlignment, "no observation for %s in period %s", c.ID, p.Code)
			}
			row.Cells = append(row.Cells, Point(o.Births), Point(o.Deaths), Point(o.Rate))
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Results groups the tables of one run.
type Results struct {
	Observed *Table
	Fixed    *Table
	Fitted   *Table
	Ratios   *Table
}

// All returns the tables in report order.
func (r *Results) All() []*Table {
	return []*Table{r.Observed, r.Fixed, r.Fitted, r.Ratios}
}

// Summarize builds every table. Fixed effects and fitted rates come from
// the base fit; rate ratios from the lincomb fit.
func Summarize(base, withLincombs *solver.Fit, long *dataset.Long, opts Options) (*Results, error) {
	var (
		r   Results
		err error
	)
	if r.Observed, err = Observed(long, opts); err != nil {
		return nil, err
	}
	if r.Fixed, err = FixedEffects(base, opts); err != nil {
		return nil, err
	}
	if r.Fitted, err = FittedRates(base, long, opts); err != nil {
		return nil, err
	}
	if r.Ratios, err = RateRatios(withLincombs, long.Counties(), opts); err != nil {
		return nil, err
	}
	return &r, nil
}
