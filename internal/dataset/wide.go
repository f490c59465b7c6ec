package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"imrmap/internal/domain"
)

// Table is a raw grid read from a worksheet: a header row and data rows.
// Rows may be shorter than the header when trailing cells are empty.
type Table struct {
	Source string
	Header []string
	Rows   [][]string
}

// Cell returns row r, column c, or "" when the row is short.
func (t *Table) Cell(r, c int) string {
	if r < 0 || r >= len(t.Rows) || c < 0 || c >= len(t.Rows[r]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[r][c])
}

// Column returns the index of the named header, or -1.
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	return -1
}

// Counts holds one period's measurements for a county.
type Counts struct {
	Births      float64
	Deaths      float64
	Deprivation float64
}

// WideRow is one county of the wide table.
type WideRow struct {
	County domain.CountyID
	Name   string
	Values map[int]Counts // keyed by period ordinal
}

// ParseWide validates the header against the schema and parses every data
// row. Blank rows are skipped; blank or non-numeric measurement cells and
// duplicate county IDs are data-quality errors.
func ParseWide(t *Table, s Schema) ([]WideRow, error) {
	const op = "dataset.parse"
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := s.ValidateHeader(t.Header); err != nil {
		return nil, &domain.OpError{Op: op, Kind: domain.KindDataQuality, Path: t.Source, Err: err}
	}

	countyCol := t.Column(s.CountyColumn)
	nameCol := -1
	if s.NameColumn != "" {
		nameCol = t.Column(s.NameColumn)
	}
	specs := s.Columns()
	idx := make(map[string]int, len(specs))
	for _, c := range specs {
		idx[c.Name] = t.Column(c.Name)
	}

	var rows []WideRow
	seen := make(map[domain.CountyID]int)
	for r := range t.Rows {
		if blankRow(t.Rows[r]) {
			continue
		}
		id := domain.CountyID(t.Cell(r, countyCol))
		if id == "" {
			return nil, &domain.OpError{Op: op, Kind: domain.KindDataQuality, Path: t.Source,
				Err: fmt.Errorf("row %d: empty %s", r+2, s.CountyColumn)}
		}
		if prev, dup := seen[id]; dup {
			return nil, &domain.OpError{Op: op, Kind: domain.KindDataQuality, Path: t.Source,
				Err: fmt.Errorf("row %d: county %q already defined on row %d", r+2, id, prev)}
		}
		seen[id] = r + 2

		row := WideRow{County: id, Values: make(map[int]Counts, len(s.Periods))}
		if nameCol >= 0 {
			row.Name = t.Cell(r, nameCol)
		}
		for _, c := range specs {
			if c.Variable == "" {
				continue
			}
			v, err := parseNumber(t.Cell(r, idx[c.Name]))
			if err != nil {
				return nil, &domain.OpError{Op: op, Kind: domain.KindDataQuality, Path: t.Source,
					Err: fmt.Errorf("row %d (%s), column %s: %w", r+2, id, c.Name, err)}
			}
			counts := row.Values[c.Ordinal]
			switch c.Variable {
			case Births:
				counts.Births = v
			case Deaths:
				counts.Deaths = v
			case Deprivation:
				counts.Deprivation = v
			}
			row.Values[c.Ordinal] = counts
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, &domain.OpError{Op: op, Kind: domain.KindDataQuality, Path: t.Source,
			Err: fmt.Errorf("no data rows")}
	}
	return rows, nil
}

func parseNumber(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty cell")
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %q", s)
	}
	return v, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
