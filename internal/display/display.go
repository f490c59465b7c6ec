// Package display provides human-readable names for machine codes.
//
// Rule: code is for machines, words are for humans.
// Use these functions in tables, figure legends, CLI output and logs.
// Keep raw codes (county IDs, effect names) for keys and comparisons.
package display

import (
	"fmt"
	"strings"

	"imrmap/internal/dataset"
	"imrmap/internal/domain"
)

// --- Counties ---

// Labels maps county IDs to display labels.
type Labels map[domain.CountyID]string

// LoadLabels reads a lookup table with an ID column and a label column.
// Blank rows are skipped; a repeated ID is a data-quality error.
func LoadLabels(t *dataset.Table, idColumn, labelColumn string) (Labels, error) {
	const op = "display.labels"
	ic, lc := t.Column(idColumn), t.Column(labelColumn)
	if ic < 0 || lc < 0 {
		return nil, &domain.OpError{Op: op, Kind: domain.KindDataQuality, Path: t.Source,
			Err: fmt.Errorf("label sheet needs columns %q and %q", idColumn, labelColumn)}
	}
	out := make(Labels, len(t.Rows))
	for i := range t.Rows {
		id := strings.TrimSpace(t.Cell(i, ic))
		if id == "" {
			continue
		}
		if _, dup := out[domain.CountyID(id)]; dup {
			return nil, domain.Errorf(op, domain.KindDataQuality, "county %s labelled twice", id)
		}
		out[domain.CountyID(id)] = strings.TrimSpace(t.Cell(i, lc))
	}
	return out, nil
}

// County returns the label for c, falling back to its dataset name and
// then to the raw ID.
func (l Labels) County(c domain.County) string {
	if name := l[c.ID]; name != "" {
		return name
	}
	if c.Name != "" {
		return c.Name
	}
	return string(c.ID)
}

// CountyWithCode returns "Label (ID)" format, or the ID alone when the
// label adds nothing.
func (l Labels) CountyWithCode(c domain.County) string {
	name := l.County(c)
	if name == string(c.ID) {
		return name
	}
	return name + " (" + string(c.ID) + ")"
}

// Missing lists the counties with no entry in l, in county order.
func (l Labels) Missing(counties []domain.County) []domain.CountyID {
	var out []domain.CountyID
	for _, c := range counties {
		if _, ok := l[c.ID]; !ok {
			out = append(out, c.ID)
		}
	}
	return out
}

// --- Effects ---

var effects = map[string]string{
	"(Intercept)": "Intercept",
	"deprivation": "Deprivation index",
	"grr":         "Global rate ratio",
	"spatial":     "Spatial effect",
	"period":      "Period effect",
}

// Effect returns the human-readable name for a model term.
// Unknown names are returned as-is.
func Effect(name string) string {
	if s, ok := effects[name]; ok {
		return s
	}
	return name
}

// --- Figures ---

var figures = map[string]string{
	"scatter": "Deprivation index vs observed rate",
	"density": "Density of observed rates",
	"trend":   "Infant mortality trend",
	"map":     "Rate ratio by county",
}

// Figure returns the title for a figure name.
func Figure(name string) string {
	if s, ok := figures[name]; ok {
		return s
	}
	return name
}

// FigurePath converts figure names to a human-readable list.
// ["scatter", "map"] -> "Deprivation index vs observed rate, Rate ratio by county"
func FigurePath(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = Figure(n)
	}
	return strings.Join(out, ", ")
}
