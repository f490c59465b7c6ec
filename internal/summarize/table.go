// Package summarize turns solver fits into the study's result tables.
// Every function here is pure: the same fit always yields the same table.
package summarize

import (
	"fmt"
	"math"
	"strings"

	"imrmap/internal/domain"
)

// Column is a table column with its display precision.
type Column struct {
	Name   string `json:"name"`
	Digits int    `json:"digits"`
}

// Cell is one table value. Bounded cells render as intervals; the rest
// render their point only.
type Cell struct {
	domain.Interval
	Bounded bool `json:"bounded"`
}

// Bounded wraps an interval as a cell.
func Bounded(iv domain.Interval) Cell { return Cell{Interval: iv, Bounded: true} }

// Point wraps a single value as a cell.
func Point(v float64) Cell { return Cell{Interval: domain.Interval{Point: v, Lower: v, Upper: v}} }

// Row is one labelled table row. Key is the stable identifier behind the
// label (a county ID or effect name).
type Row struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Cells []Cell `json:"cells"`
}

// Table is a tidy result table: a label column followed by value columns.
type Table struct {
	Name    string   `json:"name"`
	Caption string   `json:"caption"`
	Stub    string   `json:"stub"`
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Header returns the rendered header, label column first.
func (t *Table) Header() []string {
	h := []string{t.Stub}
	for _, c := range t.Columns {
		h = append(h, c.Name)
	}
	return h
}

// Text renders every row to strings at each column's precision.
func (t *Table) Text() [][]string {
	out := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		line := []string{r.Label}
		for i, c := range r.Cells {
			digits := 3
			if i < len(t.Columns) {
				digits = t.Columns[i].Digits
			}
			if c.Bounded {
				line = append(line, FormatInterval(c.Interval, digits))
			} else {
				line = append(line, FormatNumber(c.Point, digits))
			}
		}
		out = append(out, line)
	}
	return out
}

// Lookup returns the row with the given key.
func (t *Table) Lookup(key string) (Row, bool) {
	for _, r := range t.Rows {
		if r.Key == key {
			return r, true
		}
	}
	return Row{}, false
}

// Validate checks that every row has one cell per column.
func (t *Table) Validate() error {
	for _, r := range t.Rows {
		if len(r.Cells) != len(t.Columns) {
			return domain.Errorf("summarize.table", domain.KindAlignment,
				"table %s row %s has %d cells for %d columns", t.Name, r.Key, len(r.Cells), len(t.Columns))
		}
	}
	return nil
}

// FormatNumber renders v with fixed precision. Negative zero prints as
// zero so that rounding never produces "-0.00".
func FormatNumber(v float64, digits int) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return fmt.Sprint(v)
	}
	if digits < 0 {
		digits = 0
	}
	s := fmt.Sprintf("%.*f", digits, v)
	if strings.HasPrefix(s, "-") && strings.Trim(s[1:], "0.") == "" {
		s = s[1:]
	}
	return s
}

// FormatInterval renders "point (lower; upper)".
func FormatInterval(iv domain.Interval, digits int) string {
	return FormatNumber(iv.Point, digits) + " (" + FormatNumber(iv.Lower, digits) + "; " + FormatNumber(iv.Upper, digits) + ")"
}
