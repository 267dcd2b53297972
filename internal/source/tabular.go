package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"plndash/internal/core"
)

// ParseCSV reads a header row followed by records in the standard CSV
// dialect. Records may be shorter or longer than the header.
func ParseCSV(r io.Reader) (*core.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty csv: no header row")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var records [][]string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
	return core.NewTable(header, records)
}

// FromRows builds a Table from a values matrix whose first row is the header,
// as returned by spreadsheet APIs.
func FromRows(rows [][]string) (*core.Table, error) {
	if len(rows) == 0 {
		return nil, errors.New("no rows: missing header")
	}
	return core.NewTable(rows[0], rows[1:])
}
