package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/xuri/excelize/v2"

	"plndash/internal/core"
	"plndash/internal/dashboard"
	"plndash/internal/export"
	"plndash/internal/middleware/ratelimit"
)

var fullHeader = []string{
	"Tahun", "Bulan", "Produksi_kWh", "Terjual_kWh",
	"Efficiency_", "Kesusutan_kWh", "Persentase_", "Pelanggan",
}

var fullRecords = [][]string{
	{"2022", "1", "1000", "900", "90", "100", "10", "50"},
	{"2022", "2", "1100", "990", "90", "110", "10", "55"},
	{"2022", "3", "1200", "1080", "90", "120", "10", "0"},
	{"2023", "1", "1300", "1170", "90", "130", "10", "65"},
}

type fakeLoader struct {
	mu     sync.Mutex
	table  *core.Table
	err    error
	loaded bool
	calls  int
}

func (f *fakeLoader) Load(ctx context.Context) (*core.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	f.loaded = true
	return f.table, nil
}

func (f *fakeLoader) Loaded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded
}

func (f *fakeLoader) Source() string { return "memory" }

func mustTable(t *testing.T, header []string, records [][]string) *core.Table {
	t.Helper()
	tbl, err := core.NewTable(header, records)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return tbl
}

func newTestServer(t *testing.T, l TableLoader, mutate ...func(*Options)) *Server {
	t.Helper()
	opts := Options{Addr: ":0", Loader: l}
	for _, m := range mutate {
		m(&opts)
	}
	srv := NewServer(opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	if srv.templates == nil {
		t.Fatal("templates not parsed")
	}
	return srv
}

func get(srv *Server, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestIndex_RendersDashboard(t *testing.T) {
	srv := newTestServer(t, &fakeLoader{table: mustTable(t, fullHeader, fullRecords)})

	rr := get(srv, "/")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body:\n%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{
		"Visualisasi Penjualan Listrik Berdasarkan Tahun dan Bulan",
		"Data berhasil dimuat",
		"Data untuk Tahun 2022 (semua bulan):",
		"/charts/production-sales?",
		"/charts/customers?",
		"Semua bulan",
		"Maret",
		"<code>Pelanggan</code>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q", want)
		}
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("missing security headers")
	}
}

func TestIndex_DataUnavailable(t *testing.T) {
	cause := &core.DataUnavailableError{Source: "memory", Err: errors.New("connection refused")}
	srv := newTestServer(t, &fakeLoader{err: cause})

	rr := get(srv, "/")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, msgLoadFailed) {
		t.Error("missing load failure banner")
	}
	if strings.Contains(body, "/charts/") {
		t.Error("charts rendered without data")
	}
}

func TestIndex_SchemaMismatch(t *testing.T) {
	header := fullHeader[:7]
	records := make([][]string, len(fullRecords))
	for i, r := range fullRecords {
		records[i] = r[:7]
	}
	srv := newTestServer(t, &fakeLoader{table: mustTable(t, header, records)})

	rr := get(srv, "/")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, msgSchemaMismatch) {
		t.Error("missing schema alert")
	}
	if !strings.Contains(body, "Kolom hilang: Pelanggan") {
		t.Error("alert does not name the missing column")
	}
	if strings.Contains(body, "/charts/") {
		t.Error("charts rendered despite schema mismatch")
	}
}

func TestIndex_LenientSkipsSections(t *testing.T) {
	header := []string{"Tahun", "Bulan", "Produksi_kWh", "Terjual_kWh"}
	records := [][]string{{"2022", "1", "10", "9"}, {"2022", "2", "11", "10"}}
	srv := newTestServer(t, &fakeLoader{table: mustTable(t, header, records)}, func(o *Options) {
		o.Schema = core.SchemaLenient
	})

	body := get(srv, "/").Body.String()
	if !strings.Contains(body, "/charts/production-sales?") {
		t.Error("production chart missing")
	}
	for _, id := range []string{"efficiency", "losses", "consumption", "customers"} {
		if strings.Contains(body, "/charts/"+id+"?") {
			t.Errorf("section %s should be skipped", id)
		}
	}
}

func TestDashboardPartial(t *testing.T) {
	srv := newTestServer(t, &fakeLoader{table: mustTable(t, fullHeader, fullRecords)})

	rr := get(srv, "/ui/dashboard?year=2022&month=2")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger-After-Swap"), "selection:changed") {
		t.Errorf("HX-Trigger-After-Swap = %q", rr.Header().Get("HX-Trigger-After-Swap"))
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Data untuk Tahun 2022 dan Bulan Februari:") {
		t.Errorf("partial heading missing:\n%s", body)
	}
	if strings.Contains(body, "<html") {
		t.Error("partial must not contain the page shell")
	}
	if got := strings.Count(body, "<tr>"); got != 2 {
		t.Errorf("table rows = %d, want header plus one row", got)
	}

	rr = get(srv, "/ui/dashboard?year=1999")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), msgUnknownSelection) {
		t.Errorf("unknown year should fall back with a notice, status %d", rr.Code)
	}
}

func TestMonthsPartial(t *testing.T) {
	srv := newTestServer(t, &fakeLoader{table: mustTable(t, fullHeader, fullRecords)})

	rr := get(srv, "/ui/months?year=2023")
	body := rr.Body.String()
	if !strings.Contains(body, `value="all" selected`) {
		t.Errorf("whole year should be preselected:\n%s", body)
	}
	if !strings.Contains(body, `<option value="1">Januari</option>`) {
		t.Errorf("missing January option:\n%s", body)
	}
	if strings.Contains(body, `value="2"`) {
		t.Error("2023 has no February")
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger-After-Swap"), "months:updated") {
		t.Error("missing months:updated trigger")
	}
}

func TestMonthsPartial_YearMonthDefault(t *testing.T) {
	srv := newTestServer(t, &fakeLoader{table: mustTable(t, fullHeader, fullRecords)}, func(o *Options) {
		o.DefaultMode = core.ModeYearMonth
	})
	body := get(srv, "/ui/months?year=2022").Body.String()
	if !strings.Contains(body, `<option value="1" selected>Januari</option>`) {
		t.Errorf("first month should be preselected:\n%s", body)
	}
}

func TestChart(t *testing.T) {
	srv := newTestServer(t, &fakeLoader{table: mustTable(t, fullHeader, fullRecords)})

	rr := get(srv, "/charts/production-sales?year=2022")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}

	again := get(srv, "/charts/production-sales?year=2022")
	if !bytes.Equal(again.Body.Bytes(), rr.Body.Bytes()) {
		t.Error("cached chart differs")
	}
	if hits := srv.charts.Stats().Hits; hits != 1 {
		t.Errorf("cache hits = %d, want 1", hits)
	}
}

func TestChart_Errors(t *testing.T) {
	srv := newTestServer(t, &fakeLoader{table: mustTable(t, fullHeader, fullRecords)}, func(o *Options) {
		o.SinglePoint = dashboard.SinglePointSkip
	})

	tests := []struct {
		target string
		want   int
	}{
		{"/charts/nope?year=2022", http.StatusNotFound},
		{"/charts/production-sales?year=1999", http.StatusUnprocessableEntity},
		{"/charts/production-sales?year=2022&month=13", http.StatusUnprocessableEntity},
		{"/charts/production-sales?year=2023", http.StatusNotFound}, // single row under skip
		{"/charts/consumption?year=2023", http.StatusOK},            // bars are never degenerate
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			if rr := get(srv, tt.target); rr.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestChart_RateLimited(t *testing.T) {
	srv := newTestServer(t, &fakeLoader{table: mustTable(t, fullHeader, fullRecords)}, func(o *Options) {
		o.RateLimit = ratelimit.Config{RequestsPerMinute: 2}
	})

	for i := 0; i < 2; i++ {
		if rr := get(srv, "/charts/efficiency?year=2022"); rr.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rr.Code)
		}
	}
	rr := get(srv, "/charts/efficiency?year=2022")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if rr := get(srv, "/healthz"); rr.Code != http.StatusOK {
		t.Errorf("healthz should not be limited, got %d", rr.Code)
	}
}

func TestFrameJSON(t *testing.T) {
	srv := newTestServer(t, &fakeLoader{table: mustTable(t, fullHeader, fullRecords)})

	rr := get(srv, "/api/frame?year=2022")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Selection struct {
			Year int    `json:"year"`
			Mode string `json:"mode"`
		} `json:"selection"`
		Columns  []string         `json:"columns"`
		Rows     []map[string]any `json:"rows"`
		Sections []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
			Chart  string `json:"chart"`
		} `json:"sections"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Selection.Year != 2022 || resp.Selection.Mode != "year" {
		t.Errorf("selection = %+v", resp.Selection)
	}
	if len(resp.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(resp.Rows))
	}
	if got := resp.Rows[0][core.ColConsumption]; got != 18.0 {
		t.Errorf("consumption = %v, want 18", got)
	}
	if got := resp.Rows[2][core.ColConsumption]; got != nil {
		t.Errorf("consumption with zero customers = %v, want null", got)
	}
	if got := resp.Rows[1][core.ColYearMonth]; got != "2022-02" {
		t.Errorf("YearMonth = %v", got)
	}
	if len(resp.Sections) != 5 || resp.Sections[0].Chart == "" {
		t.Errorf("sections = %+v", resp.Sections)
	}
}

func TestFrameJSON_Errors(t *testing.T) {
	srv := newTestServer(t, &fakeLoader{table: mustTable(t, fullHeader, fullRecords)})
	rr := get(srv, "/api/frame?year=2022&month=9")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"unknown_selection"`) {
		t.Errorf("body = %s", rr.Body.String())
	}

	down := newTestServer(t, &fakeLoader{err: &core.DataUnavailableError{Source: "memory", Err: errors.New("boom")}})
	rr = get(down, "/api/frame")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestExport(t *testing.T) {
	srv := newTestServer(t, &fakeLoader{table: mustTable(t, fullHeader, fullRecords)})

	rr := get(srv, "/export.xlsx?year=2022&month=1")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "pln-2022-01.xlsx") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(export.DataSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("data rows = %d, want header plus one", len(rows))
	}
}

func TestHealthAndReady(t *testing.T) {
	l := &fakeLoader{table: mustTable(t, fullHeader, fullRecords)}
	srv := newTestServer(t, l)

	if rr := get(srv, "/healthz"); rr.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rr.Code)
	}
	if rr := get(srv, "/readyz"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz before load = %d, want 503", rr.Code)
	}
	if l.calls != 0 {
		t.Error("readiness probe must not trigger a load")
	}

	get(srv, "/")
	rr := get(srv, "/readyz")
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz after load = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"dataset":"ok"`) {
		t.Errorf("readyz body = %s", rr.Body.String())
	}

	metrics := get(srv, "/metrics").Body.String()
	if !strings.Contains(metrics, "dataset_loaded 1") {
		t.Errorf("metrics missing dataset gauge:\n%s", metrics)
	}
}

func TestStaticAssets(t *testing.T) {
	srv := newTestServer(t, &fakeLoader{table: mustTable(t, fullHeader, fullRecords)})
	rr := get(srv, "/static/style.css")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("Cache-Control") == "" {
		t.Error("static assets should be cacheable")
	}
}
