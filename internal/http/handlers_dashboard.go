package http

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"plndash/internal/core"
	"plndash/internal/dashboard"
	applog "plndash/internal/log"
)

const (
	msgLoaded            = "Data berhasil dimuat"
	msgLoadFailed        = "Data tidak dapat dimuat. Silakan coba lagi nanti."
	msgSchemaMismatch    = "Beberapa kolom yang dibutuhkan tidak ditemukan dalam dataset."
	msgUnknownSelection  = "Pilihan tahun atau bulan tidak tersedia, menampilkan pilihan bawaan."
	msgMalformedSection  = "Grafik tidak dapat ditampilkan karena ada tanggal yang tidak valid."
	msgDegenerateSection = "Data tidak cukup untuk menampilkan grafik ini."
	msgMalformedDates    = "Beberapa baris memiliki tahun atau bulan yang tidak valid."
)

type banner struct {
	Kind    string // success, error, warning
	Message string
	Detail  string
}

type pageData struct {
	Title        string
	Source       string
	Banner       *banner
	Alert        *banner
	Columns      []string
	Years        []int
	MonthOptions monthsData
	Selected     core.Selection
	Dashboard    *dashboardView
}

type dashboardView struct {
	Heading   string
	Query     template.URL
	Selection core.Selection
	Columns   []string
	Rows      [][]string
	Notice    *banner
	DateError *banner
	Sections  []sectionView
}

type sectionView struct {
	ID          string
	Heading     string
	Title       string
	ShowHeading bool
	Status      dashboard.Status
	ChartURL    template.URL
	Note        string
}

type monthsData struct {
	Months   []int
	Selected int
}

// buildPage assembles the full page. The status is 503 when the dataset
// cannot be loaded and 200 otherwise, including schema mismatches.
func (s *Server) buildPage(r *http.Request) (pageData, int) {
	ctx := r.Context()
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentDashboard)
	page := pageData{Title: s.layout.Title, Source: s.loader.Source()}

	t, err := s.loader.Load(ctx)
	if err != nil {
		fields := applog.NewFields().WithOperation(applog.OpLoad).WithError(err)
		fields[applog.FieldSource] = s.loader.Source()
		fields["error_type"] = errorType(err)
		logger.ErrorContext(ctx, "Dataset unavailable", fields.ToSlice()...)
		page.Banner = &banner{Kind: "error", Message: msgLoadFailed, Detail: err.Error()}
		return page, http.StatusServiceUnavailable
	}

	page.Banner = &banner{Kind: "success", Message: msgLoaded}
	page.Columns = t.Columns()

	sel, selErr := resolveSelection(r.URL.Query(), t, s.mode)
	page.Years = core.DistinctYears(t)
	page.MonthOptions = monthsData{Months: core.DistinctMonths(t, sel.Year), Selected: sel.Month}
	page.Selected = sel

	view, err := s.buildDashboard(r, t, sel)
	if err != nil {
		page.Alert = alertFor(err)
		return page, http.StatusOK
	}
	if selErr != nil {
		view.Notice = &banner{Kind: "warning", Message: msgUnknownSelection, Detail: selErr.Error()}
	}
	page.Dashboard = view
	return page, http.StatusOK
}

// buildDashboard runs the pipeline for sel and turns the frame and its
// section plans into the dashboard partial's view model.
func (s *Server) buildDashboard(r *http.Request, t *core.Table, sel core.Selection) (*dashboardView, error) {
	ctx := r.Context()
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentPipeline)

	frame, err := core.Derive(t, sel, s.schema)
	if err != nil {
		var mismatch *core.SchemaMismatchError
		if errors.As(err, &mismatch) {
			logger.WarnContext(ctx, "Dataset is missing required columns",
				applog.FieldMissing, mismatch.Missing,
				"error_type", applog.ErrorTypeSchema)
		}
		return nil, err
	}
	plans := dashboard.Plan(frame, s.layout, s.planOpts)

	fields := applog.NewFields().
		WithOperation(applog.OpDerive).
		WithSelection(sel.Year, sel.Month, string(sel.Mode()))
	fields[applog.FieldRows] = frame.Len()
	for status, n := range dashboard.Counts(plans) {
		fields["sections_"+string(status)] = n
	}
	logger.DebugContext(ctx, "Derived frame", fields.ToSlice()...)

	if frame.DateErr != nil {
		logger.WarnContext(ctx, "Rows with malformed dates",
			applog.FieldError, frame.DateErr.Error(),
			"error_type", applog.ErrorTypeMalformedDate)
	}

	return newDashboardView(frame, plans), nil
}

func newDashboardView(frame *core.DerivedFrame, plans []dashboard.SectionPlan) *dashboardView {
	sel := frame.Selection
	v := &dashboardView{
		Heading:   selectionHeading(sel),
		Query:     template.URL(selectionQuery(sel)),
		Selection: sel,
		Columns:   frame.Columns(),
	}

	for i := range frame.Rows {
		row := make([]string, len(v.Columns))
		for j, col := range v.Columns {
			row[j] = cellText(frame, i, col)
		}
		v.Rows = append(v.Rows, row)
	}
	if frame.DateErr != nil {
		v.DateError = &banner{Kind: "warning", Message: msgMalformedDates, Detail: frame.DateErr.Error()}
	}

	prevHeading := ""
	for _, p := range plans {
		sv := sectionView{
			ID:          p.Section.ID,
			Heading:     p.Section.Heading,
			Title:       p.Section.Title,
			ShowHeading: p.Section.Heading != "" && p.Section.Heading != prevHeading,
			Status:      p.Status,
		}
		prevHeading = p.Section.Heading

		switch p.Status {
		case dashboard.StatusReady:
			sv.ChartURL = template.URL("/charts/" + url.PathEscape(p.Section.ID) + "?" + selectionQuery(sel))
		case dashboard.StatusMalformed:
			sv.Note = msgMalformedSection
		case dashboard.StatusDegenerate:
			sv.Note = msgDegenerateSection
		}
		v.Sections = append(v.Sections, sv)
	}
	return v
}

// selectionHeading is the caption above the data table.
func selectionHeading(sel core.Selection) string {
	if sel.Mode() == core.ModeYearMonth {
		return fmt.Sprintf("Data untuk Tahun %d dan Bulan %s:", sel.Year, monthName(sel.Month))
	}
	return fmt.Sprintf("Data untuk Tahun %d (semua bulan):", sel.Year)
}

func alertFor(err error) *banner {
	var mismatch *core.SchemaMismatchError
	if errors.As(err, &mismatch) {
		return &banner{
			Kind:    "error",
			Message: msgSchemaMismatch,
			Detail:  "Kolom hilang: " + strings.Join(mismatch.Missing, ", "),
		}
	}
	return &banner{Kind: "error", Message: msgLoadFailed, Detail: err.Error()}
}

// handleDashboard returns the dashboard partial for the selection in the
// query, for HTMX swaps.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := s.loader.Load(ctx)
	if err != nil {
		ServiceUnavailableError(msgLoadFailed).Write(w)
		return
	}

	sel, selErr := resolveSelection(r.URL.Query(), t, s.mode)
	view, err := s.buildDashboard(r, t, sel)
	if err != nil {
		a := alertFor(err)
		UnprocessableEntityError(a.Message + " " + a.Detail).Write(w)
		return
	}
	if selErr != nil {
		view.Notice = &banner{Kind: "warning", Message: msgUnknownSelection, Detail: selErr.Error()}
	}

	body, err := s.renderTemplate("dashboard", view)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Dashboard template execution failed", applog.FieldError, err.Error())
		InternalServerError("failed to render dashboard").Write(w)
		return
	}
	NewHTMXResponse().
		BodyHTML(body).
		TriggerSelectionChanged(sel).
		Write(w)
}

// handleMonths returns the month options for the year in the query.
func (s *Server) handleMonths(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := s.loader.Load(ctx)
	if err != nil {
		ServiceUnavailableError(msgLoadFailed).Write(w)
		return
	}

	q := url.Values{"year": {r.URL.Query().Get("year")}}
	sel, _ := resolveSelection(q, t, s.mode)
	data := monthsData{
		Months:   core.DistinctMonths(t, sel.Year),
		Selected: sel.Month,
	}

	body, err := s.renderTemplate("months", data)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Months template execution failed", applog.FieldError, err.Error())
		InternalServerError("failed to render months").Write(w)
		return
	}
	NewHTMXResponse().
		BodyHTML(body).
		TriggerAfterSwap("months:updated", map[string]int{"year": sel.Year}).
		Write(w)
}
