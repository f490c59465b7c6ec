// Package dataset turns the wide county table into the long county-period
// table the model consumes.
package dataset

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"imrmap/internal/domain"
)

// RateScale expresses observed rates per 1000 births.
const RateScale = 1000.0

// Long is the reshaped table: one observation per (county, period),
// ordered by period ascending, then county ID (see CountyLess).
type Long struct {
	Observations []domain.Observation
	counties     []domain.County
	periods      []domain.Period
	index        map[domain.ObservationKey]int
}

// CountyLess orders county IDs: integer codes numerically ("2" before
// "10"), everything else lexicographically.
func CountyLess(a, b domain.CountyID) bool {
	x, errA := strconv.ParseInt(string(a), 10, 64)
	y, errB := strconv.ParseInt(string(b), 10, 64)
	if errA == nil && errB == nil && x != y {
		return x < y
	}
	return a < b
}

// Reshape converts wide rows into the long table. Counties are ordered by
// ID (numerically when both IDs are integers) and receive their 1-based
// Index here. A county-period without positive, finite births is a
// data-quality error.
func Reshape(rows []WideRow, periods []domain.Period) (*Long, error) {
	const op = "dataset.reshape"

	sorted := append([]WideRow(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return CountyLess(sorted[i].County, sorted[j].County) })

	ps := append([]domain.Period(nil), periods...)
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Ordinal < ps[j].Ordinal })

	counties := make([]domain.County, len(sorted))
	for i, r := range sorted {
		name := r.Name
		if name == "" {
			name = string(r.County)
		}
		counties[i] = domain.County{ID: r.County, Name: name, Index: i + 1}
	}

	l := &Long{
		counties: counties,
		periods:  ps,
		index:    make(map[domain.ObservationKey]int, len(sorted)*len(ps)),
	}
	for _, p := range ps {
		for i, r := range sorted {
			c, ok := r.Values[p.Ordinal]
			if !ok {
				return nil, domain.Errorf(op, domain.KindDataQuality, "county %s has no values for period %s", r.County, p.Code)
			}
			if !(c.Births > 0) || math.IsInf(c.Births, 0) {
				return nil, domain.Errorf(op, domain.KindDataQuality, "county %s, period %s: births = %g, rate undefined", r.County, p.Code, c.Births)
			}
			if !(c.Deaths >= 0) || math.IsInf(c.Deaths, 0) {
				return nil, domain.Errorf(op, domain.KindDataQuality, "county %s, period %s: deaths = %g", r.County, p.Code, c.Deaths)
			}
			o := domain.Observation{
				County:      counties[i],
				Period:      p,
				Births:      c.Births,
				Deaths:      c.Deaths,
				Deprivation: c.Deprivation,
				Rate:        RateScale * c.Deaths / c.Births,
			}
			l.index[o.Key()] = len(l.Observations)
			l.Observations = append(l.Observations, o)
		}
	}

	if want := len(counties) * len(ps); len(l.Observations) != want {
		return nil, domain.Errorf(op, domain.KindDataQuality, "reshaped %d rows, want %d", len(l.Observations), want)
	}
	return l, nil
}

// Counties returns the canonical county ordering.
func (l *Long) Counties() []domain.County { return l.counties }

// Periods returns the periods in ordinal order.
func (l *Long) Periods() []domain.Period { return l.periods }

// Len returns the number of observations.
func (l *Long) Len() int { return len(l.Observations) }

// Lookup returns the observation for key.
func (l *Long) Lookup(key domain.ObservationKey) (domain.Observation, bool) {
	i, ok := l.index[key]
	if !ok {
		return domain.Observation{}, false
	}
	return l.Observations[i], true
}

// Position returns the row position of key in Observations, or -1.
func (l *Long) Position(key domain.ObservationKey) int {
	i, ok := l.index[key]
	if !ok {
		return -1
	}
	return i
}

// ByPeriod returns the observations of one period in county order.
func (l *Long) ByPeriod(ordinal int) []domain.Observation {
	var out []domain.Observation
	for _, o := range l.Observations {
		if o.Period.Ordinal == ordinal {
			out = append(out, o)
		}
	}
	return out
}

// GlobalRate returns deaths per 1000 births summed over obs.
func GlobalRate(obs []domain.Observation) (float64, error) {
	births := make([]float64, len(obs))
	deaths := make([]float64, len(obs))
	for i, o := range obs {
		births[i] = o.Births
		deaths[i] = o.Deaths
	}
	return aggregateRate(births, deaths)
}

// WideGlobalRate computes GlobalRate for one period directly from the
// wide rows, for cross-checking the reshape.
func WideGlobalRate(rows []WideRow, ordinal int) (float64, error) {
	var births, deaths []float64
	for _, r := range rows {
		c, ok := r.Values[ordinal]
		if !ok {
			continue
		}
		births = append(births, c.Births)
		deaths = append(deaths, c.Deaths)
	}
	return aggregateRate(births, deaths)
}

func aggregateRate(births, deaths []float64) (float64, error) {
	b := floats.Sum(births)
	if b <= 0 {
		return 0, domain.Errorf("dataset.rate", domain.KindDataQuality, "total births %g", b)
	}
	return RateScale * floats.Sum(deaths) / b, nil
}

// Diagnostics is the per-period sanity aggregate logged after a reshape.
type Diagnostics struct {
	Counties int
	Rows     int
	Overall  float64
	ByPeriod map[int]float64
}

// Diagnose computes the global rate per period and overall.
func (l *Long) Diagnose() (Diagnostics, error) {
	d := Diagnostics{Counties: len(l.counties), Rows: len(l.Observations), ByPeriod: make(map[int]float64)}
	for _, p := range l.periods {
		r, err := GlobalRate(l.ByPeriod(p.Ordinal))
		if err != nil {
			return d, fmt.Errorf("period %s: %w", p.Code, err)
		}
		d.ByPeriod[p.Ordinal] = r
	}
	overall, err := GlobalRate(l.Observations)
	if err != nil {
		return d, err
	}
	d.Overall = overall
	return d, nil
}
