// Package export writes a derived frame to an Excel workbook.
package export

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/xuri/excelize/v2"

	"plndash/internal/core"
	"plndash/internal/dashboard"
)

const (
	DataSheet     = "Data"
	SectionsSheet = "Grafik"
)

// Workbook builds the .xlsx for frame. The data sheet mirrors the table
// view; when plans are given a second sheet lists each chart's status.
func Workbook(frame *core.DerivedFrame, plans []dashboard.SectionPlan) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", DataSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeData(f, frame); err != nil {
		f.Close()
		return nil, err
	}
	if len(plans) > 0 {
		if err := writeSections(f, plans); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// Write streams the workbook for frame to w.
func Write(w io.Writer, frame *core.DerivedFrame, plans []dashboard.SectionPlan) error {
	f, err := Workbook(frame, plans)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// SaveAs writes the workbook for frame to path.
func SaveAs(path string, frame *core.DerivedFrame, plans []dashboard.SectionPlan) error {
	f, err := Workbook(frame, plans)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

func writeData(f *excelize.File, frame *core.DerivedFrame) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	columns := frame.Columns()
	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(DataSheet, cell, col); err != nil {
			return fmt.Errorf("set header %s: %w", col, err)
		}
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(DataSheet, name, name, 16); err != nil {
			return fmt.Errorf("set width %s: %w", name, err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err := f.SetCellStyle(DataSheet, "A1", last, bold); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}

	for r := 0; r < frame.Len(); r++ {
		for c, col := range columns {
			v, ok := cellValue(frame, r, col)
			if !ok {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(DataSheet, cell, v); err != nil {
				return fmt.Errorf("set %s: %w", cell, err)
			}
		}
	}
	return nil
}

// cellValue returns a number where the cell is numeric, text otherwise.
// NaN and absent cells are left blank.
func cellValue(frame *core.DerivedFrame, i int, col string) (any, bool) {
	if col == core.ColYearMonth {
		s := frame.Text(i, col)
		return s, s != ""
	}
	if col == core.ColConsumption && frame.HasConsumption() {
		v := frame.Value(i, col)
		return v, !math.IsNaN(v)
	}
	s := frame.Text(i, col)
	if s == "" {
		return nil, false
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return v, true
	}
	return s, true
}

func writeSections(f *excelize.File, plans []dashboard.SectionPlan) error {
	if _, err := f.NewSheet(SectionsSheet); err != nil {
		return fmt.Errorf("new sheet: %w", err)
	}
	rows := [][]any{{"id", "judul", "jenis", "status", "keterangan"}}
	for _, p := range plans {
		note := ""
		switch {
		case p.Err != nil:
			note = p.Err.Error()
		case len(p.Missing) > 0:
			note = fmt.Sprintf("kolom tidak ada: %v", p.Missing)
		}
		rows = append(rows, []any{p.Section.ID, p.Section.Title, string(p.Section.Kind), string(p.Status), note})
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SectionsSheet, cell, &row); err != nil {
			return fmt.Errorf("set row %d: %w", i+1, err)
		}
	}
	return f.SetColWidth(SectionsSheet, "B", "B", 48)
}
