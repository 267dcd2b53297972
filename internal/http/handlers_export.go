package http

import (
	"bytes"
	"errors"
	"math"
	"net/http"
	"strconv"

	"plndash/internal/core"
	"plndash/internal/dashboard"
	"plndash/internal/export"
	applog "plndash/internal/log"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type selectionJSON struct {
	Year  int    `json:"year"`
	Month int    `json:"month,omitempty"`
	Mode  string `json:"mode"`
}

type sectionJSON struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Kind    string   `json:"kind"`
	Status  string   `json:"status"`
	Missing []string `json:"missing,omitempty"`
	Chart   string   `json:"chart,omitempty"`
}

type frameJSON struct {
	Selection selectionJSON    `json:"selection"`
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	DateError string           `json:"date_error,omitempty"`
	Sections  []sectionJSON    `json:"sections"`
}

type errorJSON struct {
	Error   string   `json:"error"`
	Type    string   `json:"type"`
	Missing []string `json:"missing,omitempty"`
}

// deriveRequest loads the table and runs the pipeline for the request's
// selection. Unknown selections are rejected rather than defaulted.
func (s *Server) deriveRequest(r *http.Request) (*core.DerivedFrame, []dashboard.SectionPlan, error) {
	t, err := s.loader.Load(r.Context())
	if err != nil {
		return nil, nil, err
	}
	sel, err := resolveSelection(r.URL.Query(), t, s.mode)
	if err != nil {
		return nil, nil, err
	}
	frame, err := core.Derive(t, sel, s.schema)
	if err != nil {
		return nil, nil, err
	}
	return frame, dashboard.Plan(frame, s.layout, s.planOpts), nil
}

// handleFrameJSON returns the derived frame and section plans as JSON.
// Absent and non-finite numbers are encoded as null.
func (s *Server) handleFrameJSON(w http.ResponseWriter, r *http.Request) {
	frame, plans, err := s.deriveRequest(r)
	if err != nil {
		body := errorJSON{Error: err.Error(), Type: errorType(err)}
		var mismatch *core.SchemaMismatchError
		if errors.As(err, &mismatch) {
			body.Missing = mismatch.Missing
		}
		if errors.Is(err, core.ErrUnknownSelection) {
			body.Type = "unknown_selection"
		}
		writeJSON(w, errorStatus(err), body)
		return
	}

	sel := frame.Selection
	resp := frameJSON{
		Selection: selectionJSON{Year: sel.Year, Month: sel.Month, Mode: string(sel.Mode())},
		Columns:   frame.Columns(),
		Rows:      make([]map[string]any, 0, frame.Len()),
		Sections:  make([]sectionJSON, 0, len(plans)),
	}
	if frame.DateErr != nil {
		resp.DateError = frame.DateErr.Error()
	}
	for i := range frame.Rows {
		row := make(map[string]any, len(resp.Columns))
		for _, col := range resp.Columns {
			row[col] = jsonValue(frame, i, col)
		}
		resp.Rows = append(resp.Rows, row)
	}
	query := selectionQuery(sel)
	for _, p := range plans {
		sj := sectionJSON{
			ID:      p.Section.ID,
			Title:   p.Section.Title,
			Kind:    string(p.Section.Kind),
			Status:  string(p.Status),
			Missing: p.Missing,
		}
		if p.Ready() {
			sj.Chart = "/charts/" + p.Section.ID + "?" + query
		}
		resp.Sections = append(resp.Sections, sj)
	}
	writeJSON(w, http.StatusOK, resp)
}

func jsonValue(frame *core.DerivedFrame, i int, column string) any {
	if column == core.ColYearMonth {
		if text := frame.Text(i, column); text != "" {
			return text
		}
		return nil
	}
	v := frame.Value(i, column)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// handleExport streams the derived frame and its section statuses as an
// xlsx workbook.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentExport)

	frame, plans, err := s.deriveRequest(r)
	if err != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, frame, plans); err != nil {
		logger.ErrorContext(ctx, "Workbook export failed",
			applog.FieldOperation, applog.OpExport,
			applog.FieldError, err.Error())
		http.Error(w, "failed to build workbook", http.StatusInternalServerError)
		return
	}

	filename := "pln-" + frame.Selection.Key() + ".xlsx"
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
