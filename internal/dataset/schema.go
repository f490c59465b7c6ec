package dataset

import (
	"fmt"
	"sort"
	"strings"

	"imrmap/internal/domain"
)

// Variable names one per-period measurement in the wide table.
type Variable string

const (
	Births      Variable = "births"
	Deaths      Variable = "deaths"
	Deprivation Variable = "deprivation"
)

// Variables lists the per-period measurements in a fixed order.
var Variables = []Variable{Births, Deaths, Deprivation}

// ColumnSpec describes one expected header: a (variable, period) pair, or
// an identifying column when Variable is empty.
type ColumnSpec struct {
	Name     string   `json:"name"`
	Variable Variable `json:"variable,omitempty"`
	Ordinal  int      `json:"ordinal,omitempty"`
}

// Schema declares the wide table's headers explicitly. Per-period columns
// are named "<prefix>_<period code>", for example "births_9498".
type Schema struct {
	CountyColumn  string              `yaml:"county_column" json:"county_column"`
	NameColumn    string              `yaml:"name_column,omitempty" json:"name_column,omitempty"`
	Prefixes      map[Variable]string `yaml:"variables" json:"variables"`
	Periods       []domain.Period     `yaml:"periods" json:"periods"`
	IgnoreColumns []string            `yaml:"ignore_columns,omitempty" json:"ignore_columns,omitempty"`
}

// Prefix returns the column prefix for v, defaulting to the variable name.
func (s Schema) Prefix(v Variable) string {
	if p, ok := s.Prefixes[v]; ok && p != "" {
		return p
	}
	return string(v)
}

// ColumnName returns the header for variable v in period p.
func (s Schema) ColumnName(v Variable, p domain.Period) string {
	return s.Prefix(v) + "_" + p.Code
}

// Columns lists every declared header: identifying columns first, then one
// column per (variable, period) pair in period order.
func (s Schema) Columns() []ColumnSpec {
	cols := []ColumnSpec{{Name: s.CountyColumn}}
	if s.NameColumn != "" {
		cols = append(cols, ColumnSpec{Name: s.NameColumn})
	}
	for _, p := range s.sortedPeriods() {
		for _, v := range Variables {
			cols = append(cols, ColumnSpec{Name: s.ColumnName(v, p), Variable: v, Ordinal: p.Ordinal})
		}
	}
	return cols
}

func (s Schema) sortedPeriods() []domain.Period {
	out := append([]domain.Period(nil), s.Periods...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out
}

// HeaderCheck is the outcome of matching a header row against the schema.
type HeaderCheck struct {
	Present    []string `json:"present"`
	Missing    []string `json:"missing"`
	Unexpected []string `json:"unexpected,omitempty"`
	Duplicated []string `json:"duplicated,omitempty"`
}

// OK reports whether the header matches the schema exactly.
func (h HeaderCheck) OK() bool {
	return len(h.Missing) == 0 && len(h.Unexpected) == 0 && len(h.Duplicated) == 0
}

// CheckHeader compares a header row with the declared columns. Blank
// header cells are ignored; everything else must be declared or ignored.
func (s Schema) CheckHeader(header []string) HeaderCheck {
	var res HeaderCheck

	seen := make(map[string]int, len(header))
	for _, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		seen[h]++
	}

	declared := make(map[string]bool)
	for _, c := range s.Columns() {
		declared[c.Name] = true
		if seen[c.Name] == 0 {
			res.Missing = append(res.Missing, c.Name)
			continue
		}
		res.Present = append(res.Present, c.Name)
	}

	ignored := make(map[string]bool, len(s.IgnoreColumns))
	for _, c := range s.IgnoreColumns {
		ignored[c] = true
	}
	for _, h := range header {
		h = strings.TrimSpace(h)
		if h == "" || declared[h] || ignored[h] {
			continue
		}
		res.Unexpected = append(res.Unexpected, h)
	}
	for h, n := range seen {
		if n > 1 && declared[h] {
			res.Duplicated = append(res.Duplicated, h)
		}
	}
	sort.Strings(res.Duplicated)
	return res
}

// Validate checks the schema itself: a county column, exactly two periods
// with ordinals 1 and 2 and distinct codes.
func (s Schema) Validate() error {
	const op = "dataset.schema"
	if s.CountyColumn == "" {
		return domain.Errorf(op, domain.KindConfig, "county column is required")
	}
	if len(s.Periods) != 2 {
		return domain.Errorf(op, domain.KindConfig, "want 2 periods, got %d", len(s.Periods))
	}
	codes := make(map[string]bool)
	ordinals := make(map[int]bool)
	for _, p := range s.Periods {
		if p.Code == "" {
			return domain.Errorf(op, domain.KindConfig, "period with ordinal %d has no code", p.Ordinal)
		}
		if codes[p.Code] {
			return domain.Errorf(op, domain.KindConfig, "duplicate period code %q", p.Code)
		}
		codes[p.Code] = true
		ordinals[p.Ordinal] = true
	}
	if !ordinals[1] || !ordinals[2] {
		return domain.Errorf(op, domain.KindConfig, "period ordinals must be 1 and 2")
	}
	return nil
}

// ValidateHeader returns a data-quality error describing any mismatch.
func (s Schema) ValidateHeader(header []string) error {
	res := s.CheckHeader(header)
	if res.OK() {
		return nil
	}
	var parts []string
	if len(res.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(res.Missing, ", "))
	}
	if len(res.Unexpected) > 0 {
		parts = append(parts, "unexpected "+strings.Join(res.Unexpected, ", "))
	}
	if len(res.Duplicated) > 0 {
		parts = append(parts, "duplicated "+strings.Join(res.Duplicated, ", "))
	}
	return domain.Errorf("dataset.header", domain.KindDataQuality, "schema mismatch: %s", strings.Join(parts, "; "))
}

func (c ColumnSpec) String() string {
	if c.Variable == "" {
		return c.Name
	}
	return fmt.Sprintf("%s(%s, period %d)", c.Name, c.Variable, c.Ordinal)
}
