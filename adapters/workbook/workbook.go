// Package workbook reads spreadsheet sheets into raw string grids.
package workbook

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"imrmap/internal/dataset"
	"imrmap/internal/domain"
)

// SheetRef selects a worksheet by name, or by 0-based index when Name is empty.
type SheetRef struct {
	Name  string `yaml:"sheet,omitempty" json:"sheet,omitempty"`
	Index int    `yaml:"sheet_index,omitempty" json:"sheet_index,omitempty"`
}

func (r SheetRef) String() string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("#%d", r.Index)
}

// Rows returns every row of the selected sheet with raw (unformatted) cell
// values. Trailing empty cells are omitted by the reader.
func Rows(path string, ref SheetRef) ([][]string, error) {
	const op = "workbook.read"
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &domain.OpError{Op: op, Kind: domain.KindDataQuality, Path: path, Err: err}
	}
	defer f.Close()

	name, err := resolveSheet(f, ref)
	if err != nil {
		return nil, &domain.OpError{Op: op, Kind: domain.KindDataQuality, Path: path, Err: err}
	}
	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &domain.OpError{Op: op, Kind: domain.KindDataQuality, Path: path,
			Err: fmt.Errorf("sheet %s: %w", name, err)}
	}
	return rows, nil
}

// ReadTable reads a sheet whose first non-blank row is the header.
func ReadTable(path string, ref SheetRef) (*dataset.Table, error) {
	rows, err := Rows(path, ref)
	if err != nil {
		return nil, err
	}
	return ToTable(path, rows)
}

// ToTable splits a grid into header and data rows.
func ToTable(source string, rows [][]string) (*dataset.Table, error) {
	for i, r := range rows {
		if blank(r) {
			continue
		}
		header := make([]string, len(r))
		for j, h := range r {
			header[j] = strings.TrimSpace(h)
		}
		return &dataset.Table{Source: source, Header: header, Rows: rows[i+1:]}, nil
	}
	return nil, &domain.OpError{Op: "workbook.table", Kind: domain.KindDataQuality, Path: source,
		Err: fmt.Errorf("sheet is empty")}
}

func resolveSheet(f *excelize.File, ref SheetRef) (string, error) {
	sheets := f.GetSheetList()
	if ref.Name != "" {
		for _, s := range sheets {
			if s == ref.Name {
				return s, nil
			}
		}
		return "", fmt.Errorf("no sheet named %q (have %s)", ref.Name, strings.Join(sheets, ", "))
	}
	if ref.Index < 0 || ref.Index >= len(sheets) {
		return "", fmt.Errorf("sheet index %d out of range (workbook has %d sheets)", ref.Index, len(sheets))
	}
	return sheets[ref.Index], nil
}

func blank(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
