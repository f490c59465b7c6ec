// Package domain holds the types shared by every pipeline stage: counties,
// periods, observations, posterior summaries and the error taxonomy.
package domain

import (
	"fmt"
	"math"
)

// CountyID is the county code taken from the dataset's county column.
type CountyID string

// County is one areal unit. Index is the 1-based position in the canonical
// ordering (IDs ascending) and is assigned once, at reshape time.
type County struct {
	ID    CountyID
	Name  string
	Index int
}

// Period is one of the two study periods. Ordinal 1 is the earlier period.
type Period struct {
	Code    string `yaml:"code" json:"code"`
	Ordinal int    `yaml:"ordinal" json:"ordinal"`
	Label   string `yaml:"label,omitempty" json:"label,omitempty"`
}

// DisplayLabel returns Label, falling back to Code.
func (p Period) DisplayLabel() string {
	if p.Label != "" {
		return p.Label
	}
	return p.Code
}

// ObservationKey identifies one (county, period) record.
type ObservationKey struct {
	County  CountyID
	Ordinal int
}

func (k ObservationKey) String() string {
	return fmt.Sprintf("%s/%d", k.County, k.Ordinal)
}

// Observation is one county-period row of the long table.
type Observation struct {
	County      County
	Period      Period
	Births      float64
	Deaths      float64
	Deprivation float64
	Rate        float64 // deaths per 1000 births
}

// Key returns the observation's (county, period) key.
func (o Observation) Key() ObservationKey {
	return ObservationKey{County: o.County.ID, Ordinal: o.Period.Ordinal}
}

// CompositeIndex returns the 1-based county×period index for a study of n
// counties: period 1 occupies 1..n, period 2 occupies n+1..2n.
func (o Observation) CompositeIndex(n int) int {
	return (o.Period.Ordinal-1)*n + o.County.Index
}

// Summary is one posterior marginal.
type Summary struct {
	Mean float64 `json:"mean"`
	SD   float64 `json:"sd"`
	Q025 float64 `json:"q025"`
	Q50  float64 `json:"q50"`
	Q975 float64 `json:"q975"`
}

// Interval returns the mean with its 95% credibility bounds.
func (s Summary) Interval() Interval {
	return Interval{Point: s.Mean, Lower: s.Q025, Upper: s.Q975}
}

// Interval is a point estimate with lower and upper bounds.
type Interval struct {
	Point float64 `json:"point"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Exp maps the interval through exp. Monotone, so bounds keep their order.
func (iv Interval) Exp() Interval {
	return Interval{Point: math.Exp(iv.Point), Lower: math.Exp(iv.Lower), Upper: math.Exp(iv.Upper)}
}

// Negate flips the sign of every value and swaps the bounds.
func (iv Interval) Negate() Interval {
	return Interval{Point: -iv.Point, Lower: -iv.Upper, Upper: -iv.Lower}
}

// Scale multiplies every value by k (k > 0).
func (iv Interval) Scale(k float64) Interval {
	return Interval{Point: iv.Point * k, Lower: iv.Lower * k, Upper: iv.Upper * k}
}
