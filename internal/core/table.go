package core

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Column names of the PLN dataset.
const (
	ColYear        = "Tahun"
	ColMonth       = "Bulan"
	ColProduction  = "Produksi_kWh"
	ColSold        = "Terjual_kWh"
	ColEfficiency  = "Efficiency_"
	ColLoss        = "Kesusutan_kWh"
	ColLossPercent = "Persentase_"
	ColCustomers   = "Pelanggan"

	// Derived columns.
	ColYearMonth   = "YearMonth"
	ColConsumption = "Konsumsi_per_Pelanggan"
)

type (
	// Table is the loaded dataset: a header plus rows in source order. Cells
	// are held as text in a gota DataFrame and converted on access so a bad
	// cell only affects the step that reads it.
	Table struct {
		df      dataframe.DataFrame
		columns map[string]series.Series
		rows    []Row
	}

	// Row is one record of a Table.
	Row struct {
		pos int
		t   *Table
	}
)

// NewTable builds a Table from a header row and its records. Records shorter
// than the header leave the trailing cells absent; extra fields are ignored.
func NewTable(header []string, records [][]string) (*Table, error) {
	if len(header) == 0 {
		return nil, errors.New("empty header")
	}
	names := make([]string, len(header))
	seen := make(map[string]struct{}, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			return nil, fmt.Errorf("empty column name at position %d", i+1)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		seen[name] = struct{}{}
		names[i] = name
	}

	cells := make([][]string, len(names))
	n := 0
	for _, rec := range records {
		if isBlankRecord(rec) {
			continue
		}
		for i := range names {
			v := ""
			if i < len(rec) {
				v = strings.TrimSpace(rec[i])
			}
			cells[i] = append(cells[i], v)
		}
		n++
	}

	cols := make([]series.Series, len(names))
	for i, name := range names {
		if cells[i] == nil {
			cells[i] = []string{}
		}
		cols[i] = series.New(cells[i], series.String, name)
	}
	df := dataframe.New(cols...)
	if df.Err != nil {
		return nil, fmt.Errorf("build table: %w", df.Err)
	}

	t := &Table{
		df:      df,
		columns: make(map[string]series.Series, len(names)),
		rows:    make([]Row, n),
	}
	for _, name := range names {
		t.columns[name] = df.Col(name)
	}
	for i := range t.rows {
		t.rows[i] = Row{pos: i, t: t}
	}
	return t, nil
}

func isBlankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Columns returns the column names in header order.
func (t *Table) Columns() []string { return t.df.Names() }

// HasColumn reports whether the header contains name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Row returns the i-th row in source order.
func (t *Table) Row(i int) Row { return t.rows[i] }

// Rows returns the rows in source order. The slice is shared; rows are
// read-only values.
func (t *Table) Rows() []Row { return t.rows }

// Frame returns the underlying DataFrame. Every column is of string type.
func (t *Table) Frame() dataframe.DataFrame { return t.df }

// Position is the row's index in the source table.
func (r Row) Position() int { return r.pos }

// Raw returns the cell text for column and whether the cell is present.
// A blank cell counts as absent.
func (r Row) Raw(column string) (string, bool) {
	s, ok := r.t.columns[column]
	if !ok {
		return "", false
	}
	v := s.Elem(r.pos).String()
	if v == "" {
		return "", false
	}
	return v, true
}

// Float returns the numeric value of column, or NaN when the cell is absent
// or not a number.
func (r Row) Float(column string) float64 {
	s, ok := r.Raw(column)
	if !ok {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// Int returns the integral value of column. Integral floats such as "3.0"
// are accepted.
func (r Row) Int(column string) (int, error) {
	s, ok := r.Raw(column)
	if !ok {
		return 0, fmt.Errorf("%s: missing value", column)
	}
	return parseIntegral(s)
}

// parseIntegral accepts integers and integral floats within the int32 range;
// no year or month is larger.
func parseIntegral(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < math.MinInt32 || n > math.MaxInt32 {
			return 0, fmt.Errorf("out of range: %q", s)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int(f), nil
}

// DistinctYears returns the distinct Tahun values in order of first
// appearance. Rows with an unreadable year are ignored.
func DistinctYears(t *Table) []int {
	seen := map[int]struct{}{}
	var out []int
	for _, r := range t.rows {
		y, err := r.Int(ColYear)
		if err != nil {
			continue
		}
		if _, ok := seen[y]; ok {
			continue
		}
		seen[y] = struct{}{}
		out = append(out, y)
	}
	return out
}

// DistinctMonths returns the distinct Bulan values found within year, in
// order of first appearance. Values outside 1-12 are not selectable and are
// left out.
func DistinctMonths(t *Table, year int) []int {
	seen := map[int]struct{}{}
	var out []int
	for _, r := range t.rows {
		if y, err := r.Int(ColYear); err != nil || y != year {
			continue
		}
		m, err := r.Int(ColMonth)
		if err != nil || m < 1 || m > 12 {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
