package core

import (
	"fmt"
	"time"
)

// yearMonthLayout is a 4-digit year immediately followed by a 2-digit month.
const yearMonthLayout = "200601"

// YearMonth is a calendar month used as the chronological key of a row.
type YearMonth struct {
	Year  int
	Month time.Month
}

// ParseYearMonth builds the key from a year and month the way the dataset
// encodes them: the decimal year followed by the zero-padded month, read
// back with the fixed "200601" layout. Out-of-range months and years that are
// not four digits fail.
func ParseYearMonth(year, month int) (YearMonth, error) {
	token := fmt.Sprintf("%d%02d", year, month)
	t, err := time.Parse(yearMonthLayout, token)
	if err != nil {
		return YearMonth{}, fmt.Errorf("%w: %q: %v", ErrMalformedDate, token, err)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

// Time returns midnight UTC on the first day of the month.
func (ym YearMonth) Time() time.Time {
	return time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Compare returns -1, 0 or +1 as ym is before, equal to or after other.
func (ym YearMonth) Compare(other YearMonth) int {
	switch {
	case ym.Year != other.Year:
		if ym.Year < other.Year {
			return -1
		}
		return 1
	case ym.Month != other.Month:
		if ym.Month < other.Month {
			return -1
		}
		return 1
	}
	return 0
}

// Before reports whether ym is strictly earlier than other.
func (ym YearMonth) Before(other YearMonth) bool { return ym.Compare(other) < 0 }

// IsZero reports whether ym is unset.
func (ym YearMonth) IsZero() bool { return ym.Year == 0 && ym.Month == 0 }

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}
