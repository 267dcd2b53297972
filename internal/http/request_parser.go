package http

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"plndash/internal/core"
)

// monthAll is the month parameter value that selects a whole year.
const monthAll = "all"

// resolveSelection reads year and month from query against the values
// present in t. An absent year picks the first year in the data. An absent
// month follows mode, while "all" always selects the whole year.
//
// Unknown values fall back to the defaults. The returned selection is always
// usable; the error wraps core.ErrUnknownSelection and says what was ignored.
func resolveSelection(query url.Values, t *core.Table, mode core.Mode) (core.Selection, error) {
	years := core.DistinctYears(t)
	if len(years) == 0 {
		return core.Selection{}, fmt.Errorf("%w: dataset has no readable year", core.ErrUnknownSelection)
	}

	var errs error
	year := years[0]
	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || !slices.Contains(years, y) {
			errs = fmt.Errorf("%w: year %q", core.ErrUnknownSelection, v)
		} else {
			year = y
		}
	}

	months := core.DistinctMonths(t, year)
	sel := core.SelectYear(year)
	if mode == core.ModeYearMonth && len(months) > 0 {
		sel.Month = months[0]
	}

	switch v := strings.ToLower(strings.TrimSpace(query.Get("month"))); v {
	case "":
	case monthAll:
		sel.Month = 0
	default:
		m, err := strconv.Atoi(v)
		if err != nil || !slices.Contains(months, m) {
			errs = errors.Join(errs, fmt.Errorf("%w: month %q for year %d", core.ErrUnknownSelection, v, year))
		} else {
			sel.Month = m
		}
	}
	return sel, errs
}

// selectionQuery encodes sel as the query string the handlers accept.
func selectionQuery(sel core.Selection) string {
	v := url.Values{}
	v.Set("year", strconv.Itoa(sel.Year))
	if sel.Month != 0 {
		v.Set("month", strconv.Itoa(sel.Month))
	} else {
		v.Set("month", monthAll)
	}
	return v.Encode()
}
