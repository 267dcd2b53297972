package core

import (
	"fmt"
	"math"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Mode selects how rows are narrowed.
type Mode string

const (
	// ModeYear keeps every month of the selected year.
	ModeYear Mode = "year"
	// ModeYearMonth keeps the single selected month of the selected year.
	ModeYearMonth Mode = "year-month"
)

// ParseMode maps a configuration value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeYear:
		return ModeYear, nil
	case ModeYearMonth:
		return ModeYearMonth, nil
	}
	return "", fmt.Errorf("invalid mode %q: must be one of [year year-month]", s)
}

// Selection is the user's choice of year and, optionally, month.
type Selection struct {
	Year  int
	Month int // 0 when only a year is selected
}

// SelectYear selects every month of year.
func SelectYear(year int) Selection { return Selection{Year: year} }

// SelectYearMonth selects a single month.
func SelectYearMonth(year, month int) Selection { return Selection{Year: year, Month: month} }

// Mode reports the pipeline mode implied by the selection.
func (s Selection) Mode() Mode {
	if s.Month != 0 {
		return ModeYearMonth
	}
	return ModeYear
}

// Key is a stable identifier for cache keys and file names.
func (s Selection) Key() string {
	if s.Mode() == ModeYearMonth {
		return fmt.Sprintf("%d-%02d", s.Year, s.Month)
	}
	return strconv.Itoa(s.Year)
}

func (s Selection) String() string {
	if s.Mode() == ModeYearMonth {
		return fmt.Sprintf("Tahun %d, Bulan %d", s.Year, s.Month)
	}
	return fmt.Sprintf("Tahun %d", s.Year)
}

type (
	// DerivedRow is a selected row plus its synthesized columns.
	DerivedRow struct {
		Row
		// YearMonth is zero when the row's key is malformed; see DerivedFrame.DateErr.
		YearMonth   YearMonth
		Consumption float64
	}

	// DerivedFrame is the output of one pipeline run. It is never mutated
	// after Derive returns.
	DerivedFrame struct {
		Selection Selection
		Rows      []DerivedRow
		// DateErr is a *MalformedDateError when some rows have no YearMonth.
		DateErr error

		columns        []string
		present        map[string]bool
		hasConsumption bool
	}
)

// Derive runs the filter/derive pipeline: schema gate, row filter by the
// selection's mode, YearMonth synthesis, per-customer consumption and a
// stable chronological sort. A schema failure is returned as error; date
// failures are recorded on the frame so unrelated views still render.
func Derive(t *Table, sel Selection, policy SchemaPolicy) (*DerivedFrame, error) {
	if err := ValidateSchema(t, policy); err != nil {
		return nil, err
	}

	f := &DerivedFrame{
		Selection: sel,
		present:   make(map[string]bool),
	}
	for _, c := range t.Columns() {
		f.columns = append(f.columns, c)
		f.present[c] = true
	}
	f.addDerived(ColYearMonth)
	f.hasConsumption = t.HasColumn(ColCustomers) && t.HasColumn(ColSold)
	if f.hasConsumption {
		f.addDerived(ColConsumption)
	}

	positions, err := selectRows(t, sel)
	if err != nil {
		return nil, err
	}

	derived := make([]DerivedRow, len(positions))
	keys := make([]string, len(positions))
	var issues []DateIssue
	for i, pos := range positions {
		r := t.rows[pos]
		dr := DerivedRow{Row: r, Consumption: math.NaN()}
		ym, err := rowYearMonth(r)
		if err != nil {
			y, _ := r.Raw(ColYear)
			m, _ := r.Raw(ColMonth)
			issues = append(issues, DateIssue{Row: r.pos, Year: y, Month: m})
			keys[i] = "NaN"
		} else {
			dr.YearMonth = ym
			keys[i] = strconv.Itoa(ym.Year*100 + int(ym.Month))
		}
		if f.hasConsumption {
			dr.Consumption = PerCustomer(r.Float(ColSold), r.Float(ColCustomers))
		}
		derived[i] = dr
	}
	if len(issues) > 0 {
		f.DateErr = &MalformedDateError{Issues: issues}
	}

	order, err := chronological(keys)
	if err != nil {
		return nil, err
	}
	f.Rows = make([]DerivedRow, 0, len(order))
	for _, i := range order {
		f.Rows = append(f.Rows, derived[i])
	}
	return f, nil
}

// Scratch column names. The NUL prefix keeps them apart from any header
// read from CSV.
const (
	colPosition = "\x00position"
	colKey      = "\x00key"
)

// selectRows returns the source positions of the rows inside sel, in
// source order.
func selectRows(t *Table, sel Selection) ([]int, error) {
	if t.Len() == 0 {
		return nil, nil
	}
	pos := make([]int, t.Len())
	for i := range pos {
		pos[i] = i
	}
	df := t.df.Mutate(series.New(pos, series.Int, colPosition))
	df = df.Filter(dataframe.F{Colname: ColYear, Comparator: series.CompFunc, Comparando: integralEquals(sel.Year)})
	if sel.Mode() == ModeYearMonth && df.Err == nil && df.Nrow() > 0 {
		df = df.Filter(dataframe.F{Colname: ColMonth, Comparator: series.CompFunc, Comparando: integralEquals(sel.Month)})
	}
	if df.Err != nil {
		return nil, fmt.Errorf("filter rows: %w", df.Err)
	}
	if df.Nrow() == 0 {
		return nil, nil
	}
	return df.Col(colPosition).Int()
}

func integralEquals(want int) func(series.Element) bool {
	return func(e series.Element) bool {
		n, err := parseIntegral(e.String())
		return err == nil && n == want
	}
}

// chronological returns the permutation that stably sorts keys ascending.
// Keys of "NaN" go last in their original order.
func chronological(keys []string) ([]int, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	idx := make([]int, len(keys))
	for i := range idx {
		idx[i] = i
	}
	df := dataframe.New(
		series.New(idx, series.Int, colPosition),
		series.New(keys, series.Int, colKey),
	).Arrange(dataframe.Sort(colKey))
	if df.Err != nil {
		return nil, fmt.Errorf("sort rows: %w", df.Err)
	}
	return df.Col(colPosition).Int()
}

// addDerived registers a synthesized column. A source column of the same
// name is shadowed by the derived values.
func (f *DerivedFrame) addDerived(column string) {
	if !f.present[column] {
		f.columns = append(f.columns, column)
	}
	f.present[column] = true
}

func rowYearMonth(r Row) (YearMonth, error) {
	y, err := r.Int(ColYear)
	if err != nil {
		return YearMonth{}, fmt.Errorf("%w: %v", ErrMalformedDate, err)
	}
	m, err := r.Int(ColMonth)
	if err != nil {
		return YearMonth{}, fmt.Errorf("%w: %v", ErrMalformedDate, err)
	}
	return ParseYearMonth(y, m)
}

// PerCustomer divides sold energy by the customer count. A zero or missing
// customer count yields NaN instead of an infinity.
func PerCustomer(sold, customers float64) float64 {
	if math.IsNaN(sold) || math.IsNaN(customers) || customers == 0 {
		return math.NaN()
	}
	return sold / customers
}

// Len returns the number of rows.
func (f *DerivedFrame) Len() int { return len(f.Rows) }

// Columns returns the source columns followed by the derived ones.
func (f *DerivedFrame) Columns() []string {
	return append([]string(nil), f.columns...)
}

// HasColumn reports whether the frame carries column.
func (f *DerivedFrame) HasColumn(column string) bool { return f.present[column] }

// HasConsumption reports whether Konsumsi_per_Pelanggan was derived.
func (f *DerivedFrame) HasConsumption() bool { return f.hasConsumption }

// Value returns the numeric value of column for row i. YearMonth is
// reported as a Unix timestamp of the month's first day; absent values are NaN.
func (f *DerivedFrame) Value(i int, column string) float64 {
	r := f.Rows[i]
	switch {
	case column == ColConsumption && f.hasConsumption:
		return r.Consumption
	case column == ColYearMonth:
		if r.YearMonth.IsZero() {
			return math.NaN()
		}
		return float64(r.YearMonth.Time().Unix())
	}
	return r.Float(column)
}

// Column returns every value of column in frame order.
func (f *DerivedFrame) Column(column string) []float64 {
	out := make([]float64, len(f.Rows))
	for i := range f.Rows {
		out[i] = f.Value(i, column)
	}
	return out
}

// Text returns the display text of column for row i.
func (f *DerivedFrame) Text(i int, column string) string {
	r := f.Rows[i]
	switch {
	case column == ColYearMonth:
		if r.YearMonth.IsZero() {
			return ""
		}
		return r.YearMonth.String()
	case column == ColConsumption && f.hasConsumption:
		if math.IsNaN(r.Consumption) {
			return ""
		}
		return strconv.FormatFloat(r.Consumption, 'f', -1, 64)
	}
	s, _ := r.Raw(column)
	return s
}
