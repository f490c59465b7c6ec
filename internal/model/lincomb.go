package model

import (
	"gonum.org/v1/gonum/mat"

	"imrmap/internal/domain"
)

// Lincombs is a set of linear combinations over the period effect's
// levels. Columns are keyed by level (reference first), rows by county.
type Lincombs struct {
	Matrix  *mat.Dense
	Rows    []domain.CountyID
	Columns []string
}

// RatioLincombs returns one combination per county: -1 on the reference
// level and +1 on that county's level. Exponentiated, each is the county's
// later-to-earlier rate ratio. The matrix is n x (n+1): column 0 is
// constant -1 and columns 1..n form an identity block in county order.
func RatioLincombs(counties []domain.County) (*Lincombs, error) {
	n := len(counties)
	if n == 0 {
		return nil, domain.Errorf("model.lincombs", domain.KindAlignment, "no counties")
	}
	m := mat.NewDense(n, n+1, nil)
	lc := &Lincombs{Matrix: m, Columns: []string{ReferenceLevel}}
	for i, c := range counties {
		if c.Index != i+1 {
			return nil, domain.Errorf("model.lincombs", domain.KindAlignment, "county %s has index %d at position %d", c.ID, c.Index, i+1)
		}
		m.Set(i, 0, -1)
		m.Set(i, c.Index, 1)
		lc.Rows = append(lc.Rows, c.ID)
		lc.Columns = append(lc.Columns, string(c.ID))
	}
	return lc, nil
}

// Validate checks the matrix against the period effect's level keys: the
// column count and column keys must match, and each row's +1 weight must
// sit on its own county's column.
func (l *Lincombs) Validate(levels []string) error {
	const op = "model.lincombs"
	r, c := l.Matrix.Dims()
	if c != len(levels) {
		return domain.Errorf(op, domain.KindAlignment, "matrix has %d columns, period effect has %d levels", c, len(levels))
	}
	if len(l.Columns) != c || len(l.Rows) != r {
		return domain.Errorf(op, domain.KindAlignment, "matrix is %dx%d but has %d row and %d column keys", r, c, len(l.Rows), len(l.Columns))
	}
	col := make(map[string]int, c)
	for j, key := range l.Columns {
		if levels[j] != key {
			return domain.Errorf(op, domain.KindAlignment, "column %d is %q, level %d is %q", j, key, j, levels[j])
		}
		col[key] = j
	}
	for i, id := range l.Rows {
		j, ok := col[string(id)]
		if !ok {
			return domain.Errorf(op, domain.KindAlignment, "row %d (%s) has no level", i, id)
		}
		if l.Matrix.At(i, j) != 1 {
			return domain.Errorf(op, domain.KindAlignment, "row %d (%s) has weight %g on its own level", i, id, l.Matrix.At(i, j))
		}
	}
	return nil
}
