package workbook

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Sheet is a named grid used to build workbooks, mainly as test fixtures
// and for the `imrmap template` command.
type Sheet struct {
	Name string
	Rows [][]any
}

// Write creates a workbook at path with the given sheets in order.
func Write(path string, sheets ...Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.Name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return fmt.Errorf("new sheet %s: %w", s.Name, err)
		}
		for r, row := range s.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(s.Name, cell, &row); err != nil {
				return fmt.Errorf("sheet %s row %d: %w", s.Name, r+1, err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
