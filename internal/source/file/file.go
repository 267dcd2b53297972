// Package file reads the dataset from a local CSV or Excel workbook.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"plndash/internal/core"
	"plndash/internal/source"
)

// Reader reads a .csv or .xlsx file. For workbooks the named sheet is used,
// or the first sheet when none is given.
type Reader struct {
	path  string
	sheet string
}

var _ source.TableReader = (*Reader)(nil)

// New returns a reader for path.
func New(path, sheet string) (*Reader, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("missing data file path")
	}
	return &Reader{path: path, sheet: strings.TrimSpace(sheet)}, nil
}

// Describe returns the file path.
func (r *Reader) Describe() string {
	if r.sheet != "" {
		return r.path + "#" + r.sheet
	}
	return r.path
}

// ReadTable parses the file according to its extension.
func (r *Reader) ReadTable(ctx context.Context) (*core.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(r.path)) {
	case ".xlsx", ".xlsm":
		return r.readWorkbook()
	default:
		return r.readCSV()
	}
}

func (r *Reader) readCSV() (*core.Table, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", r.path, err)
	}
	defer f.Close()
	t, err := source.ParseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", r.path, err)
	}
	return t, nil
}

func (r *Reader) readWorkbook() (*core.Table, error) {
	wb, err := excelize.OpenFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", r.path, err)
	}
	defer wb.Close()

	sheet := r.sheet
	if sheet == "" {
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", r.path)
		}
		sheet = sheets[0]
	}
	rows, err := wb.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	t, err := source.FromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("parse sheet %q: %w", sheet, err)
	}
	return t, nil
}
