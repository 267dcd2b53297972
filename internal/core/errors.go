package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDataUnavailable means the dataset could not be fetched or parsed.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrSchemaMismatch means required columns are absent from the dataset.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrMalformedDate means a row's year/month does not form a calendar month.
	ErrMalformedDate = errors.New("malformed date")
	// ErrUnknownSelection means the selected year or month is not in the data.
	ErrUnknownSelection = errors.New("unknown selection")
)

// DataUnavailableError wraps the cause of a failed load.
type DataUnavailableError struct {
	Source string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("data unavailable from %s: %v", e.Source, e.Err)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

func (e *DataUnavailableError) Is(target error) bool { return target == ErrDataUnavailable }

// SchemaMismatchError lists the required columns missing from a Table.
type SchemaMismatchError struct {
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchemaMismatch }

// DateIssue is one row whose YearMonth key could not be derived.
type DateIssue struct {
	Row   int // position in the source table
	Year  string
	Month string
}

// MalformedDateError reports the rows whose YearMonth key could not be built.
type MalformedDateError struct {
	Issues []DateIssue
}

func (e *MalformedDateError) Error() string {
	if len(e.Issues) == 1 {
		i := e.Issues[0]
		return fmt.Sprintf("malformed date at row %d: year=%q month=%q", i.Row+1, i.Year, i.Month)
	}
	rows := make([]string, 0, len(e.Issues))
	for _, i := range e.Issues {
		rows = append(rows, fmt.Sprint(i.Row+1))
	}
	return fmt.Sprintf("malformed date in %d rows (%s)", len(e.Issues), strings.Join(rows, ", "))
}

func (e *MalformedDateError) Is(target error) bool { return target == ErrMalformedDate }
