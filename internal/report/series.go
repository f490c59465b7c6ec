package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"imrmap/internal/dataset"
	"imrmap/internal/domain"
)

// SeriesPoint is one year of a reference rate series.
type SeriesPoint struct {
	Year float64
	Rate float64
}

// Series is a named reference rate series, sorted by year.
type Series struct {
	Name   string
	Points []SeriesPoint
}

// ParseSeries reads a year column and a rate column from t. Blank rows are
// skipped; non-numeric cells are data-quality errors.
func ParseSeries(t *dataset.Table, name, yearColumn, rateColumn string) (*Series, error) {
	const op = "report.series"
	yc, rc := t.Column(yearColumn), t.Column(rateColumn)
	if yc < 0 || rc < 0 {
		return nil, &domain.OpError{Op: op, Kind: domain.KindDataQuality, Path: t.Source,
			Err: fmt.Errorf("reference sheet needs columns %q and %q", yearColumn, rateColumn)}
	}
	s := &Series{Name: name}
	for i := range t.Rows {
		ys, rs := t.Cell(i, yc), t.Cell(i, rc)
		if ys == "" && rs == "" {
			continue
		}
		y, err := strconv.ParseFloat(ys, 64)
		if err != nil {
			return nil, domain.Errorf(op, domain.KindDataQuality, "row %d: year %q is not a number", i+2, ys)
		}
		r, err := strconv.ParseFloat(strings.ReplaceAll(rs, ",", "."), 64)
		if err != nil {
			return nil, domain.Errorf(op, domain.KindDataQuality, "row %d: rate %q is not a number", i+2, rs)
		}
		s.Points = append(s.Points, SeriesPoint{Year: y, Rate: r})
	}
	sort.Slice(s.Points, func(i, j int) bool { return s.Points[i].Year < s.Points[j].Year })
	return s, nil
}
