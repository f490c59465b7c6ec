package pipeline

import (
	"imrmap/adapters/workbook"
	"imrmap/internal/config"
	"imrmap/internal/dataset"
	"imrmap/internal/display"
	"imrmap/internal/report"
)

// Inputs is everything read from disk for one run. Labels, Reference and
// Boundaries are optional.
type Inputs struct {
	Data       *dataset.Table
	Adjacency  [][]string
	Labels     display.Labels
	Reference  *report.Series
	Boundaries *report.Boundaries
}

// LoadInputs reads every configured input file.
func LoadInputs(cfg *config.Config) (*Inputs, error) {
	in := &Inputs{}
	var err error
	if in.Data, err = workbook.ReadTable(cfg.Data.Workbook, cfg.Data.SheetRef); err != nil {
		return nil, err
	}
	if in.Adjacency, err = workbook.Rows(cfg.Adjacency.Workbook, cfg.Adjacency.SheetRef); err != nil {
		return nil, err
	}
	if cfg.Labels.Set() {
		t, err := workbook.ReadTable(cfg.Labels.Workbook, cfg.Labels.SheetRef)
		if err != nil {
			return nil, err
		}
		if in.Labels, err = display.LoadLabels(t, cfg.Labels.IDColumn, cfg.Labels.LabelColumn); err != nil {
			return nil, err
		}
	}
	if cfg.Reference.Set() {
		t, err := workbook.ReadTable(cfg.Reference.Workbook, cfg.Reference.SheetRef)
		if err != nil {
			return nil, err
		}
		ref := cfg.Reference
		if in.Reference, err = report.ParseSeries(t, ref.Name, ref.YearColumn, ref.RateColumn); err != nil {
			return nil, err
		}
	}
	if cfg.Boundaries.Path != "" {
		if in.Boundaries, err = report.LoadBoundaries(cfg.Boundaries.Path, cfg.Boundaries.IDProperty); err != nil {
			return nil, err
		}
	}
	return in, nil
}
