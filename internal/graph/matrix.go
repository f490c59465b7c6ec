package graph

import (
	"fmt"
	"strconv"
	"strings"

	"imrmap/internal/domain"
)

// Matrix is a square adjacency grid with one label per row. Labels come
// from the sheet's leading label column, which is dropped from Cells.
type Matrix struct {
	Labels []string
	Cells  [][]float64
}

// ParseMatrix converts a raw sheet grid into a Matrix. The first column
// holds labels. A first row with a blank corner cell, or whose cells after
// the label column are not all numeric, is treated as a header and skipped. Blank rows are skipped and
// blank cells read as 0.
func ParseMatrix(rows [][]string) (*Matrix, error) {
	const op = "graph.parse"

	var body [][]string
	for _, r := range rows {
		if !blank(r) {
			body = append(body, r)
		}
	}
	if len(body) == 0 {
		return nil, domain.Errorf(op, domain.KindGraphIntegrity, "adjacency sheet is empty")
	}
	if isHeader(body[0]) {
		body = body[1:]
	}

	m := &Matrix{}
	for i, r := range body {
		label := ""
		if len(r) > 0 {
			label = strings.TrimSpace(r[0])
		}
		if label == "" {
			return nil, domain.Errorf(op, domain.KindGraphIntegrity, "row %d has no label", i+1)
		}
		cells := make([]float64, 0, len(r)-1)
		for j := 1; j < len(r); j++ {
			s := strings.TrimSpace(r[j])
			if s == "" {
				cells = append(cells, 0)
				continue
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, domain.Errorf(op, domain.KindGraphIntegrity, "row %s, column %d: not a number: %q", label, j, s)
			}
			cells = append(cells, v)
		}
		m.Labels = append(m.Labels, label)
		m.Cells = append(m.Cells, cells)
	}

	// Trailing empty cells are omitted by spreadsheet readers; pad to n.
	n := len(m.Labels)
	for i, row := range m.Cells {
		if len(row) > n {
			return nil, domain.Errorf(op, domain.KindGraphIntegrity, "row %s has %d columns, want %d", m.Labels[i], len(row), n)
		}
		for len(row) < n {
			row = append(row, 0)
		}
		m.Cells[i] = row
	}
	return m, nil
}

// Size returns the number of rows.
func (m *Matrix) Size() int { return len(m.Cells) }

// CheckSymmetry scans every (i, j) pair and returns the number of ordered
// cells where m[i][j] != m[j][i]. Each asymmetric unordered pair therefore
// counts twice. A non-square matrix or a nonzero count is a graph-integrity
// error; the count is returned either way.
func CheckSymmetry(m *Matrix) (int, error) {
	const op = "graph.symmetry"
	n := m.Size()
	for i, row := range m.Cells {
		if len(row) != n {
			return 0, domain.Errorf(op, domain.KindGraphIntegrity, "row %d has %d columns, want %d", i+1, len(row), n)
		}
	}
	count := 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if m.Cells[i][j] != m.Cells[j][i] {
				count++
			}
		}
	}
	if count > 0 {
		return count, domain.Wrap(op, domain.KindGraphIntegrity, &domain.AsymmetryError{Cells: count})
	}
	return 0, nil
}

func isHeader(r []string) bool {
	if len(r) < 2 {
		return false
	}
	if strings.TrimSpace(r[0]) == "" {
		return true
	}
	for _, c := range r[1:] {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, err := strconv.ParseFloat(c, 64); err != nil {
			return true
		}
	}
	return false
}

func blank(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func (m *Matrix) String() string {
	return fmt.Sprintf("%dx%d adjacency", m.Size(), m.Size())
}
