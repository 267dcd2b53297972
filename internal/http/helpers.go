package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"math"
	"net/http"
	"strconv"
	"strings"

	"plndash/internal/chart"
	"plndash/internal/core"
	applog "plndash/internal/log"
)

var monthNames = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

var templateFuncs = template.FuncMap{
	"monthName": monthName,
}

// monthName returns the Indonesian name of month, or the number itself when
// it is out of range.
func monthName(month int) string {
	if month < 1 || month > 12 {
		return strconv.Itoa(month)
	}
	return monthNames[month-1]
}

// formatNumber renders v with Indonesian digit grouping and at most
// decimals fraction digits. NaN and infinities render empty.
func formatNumber(v float64, decimals int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	s := strconv.FormatFloat(v, 'f', decimals, 64)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	frac = strings.TrimRight(frac, "0")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	if frac != "" {
		b.WriteByte(',')
		b.WriteString(frac)
	}
	return b.String()
}

// cellText formats one frame cell for the data table.
func cellText(frame *core.DerivedFrame, i int, column string) string {
	switch column {
	case core.ColYear, core.ColMonth, core.ColYearMonth:
		return frame.Text(i, column)
	case core.ColConsumption:
		if frame.HasConsumption() {
			return formatNumber(frame.Value(i, column), 2)
		}
	}
	raw := frame.Text(i, column)
	v := frame.Value(i, column)
	if math.IsNaN(v) {
		return raw
	}
	return formatNumber(v, 2)
}

// errorStatus maps pipeline errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrDataUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrSchemaMismatch), errors.Is(err, core.ErrUnknownSelection):
		return http.StatusUnprocessableEntity
	case errors.Is(err, chart.ErrNoData), errors.Is(err, errSectionNotReady):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// errorType maps pipeline errors to the log error_type field.
func errorType(err error) string {
	switch {
	case errors.Is(err, core.ErrDataUnavailable):
		return applog.ErrorTypeDataUnavailable
	case errors.Is(err, core.ErrSchemaMismatch):
		return applog.ErrorTypeSchema
	case errors.Is(err, core.ErrMalformedDate):
		return applog.ErrorTypeMalformedDate
	}
	return applog.ErrorTypeInternal
}

// writeJSON encodes v with status. Encoding happens before any header is
// sent so a failure still produces a clean 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderTemplate executes name into a buffer so template errors never leave
// a half-written page behind.
func (s *Server) renderTemplate(name string, data any) ([]byte, error) {
	if s.templates == nil {
		return nil, errors.New("templates not loaded")
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
