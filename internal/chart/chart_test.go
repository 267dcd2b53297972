package chart

import (
	"bytes"
	"errors"
	"testing"

	"plndash/internal/core"
	"plndash/internal/dashboard"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func frame(t *testing.T, sel core.Selection, records [][]string) *core.DerivedFrame {
	t.Helper()
	header := []string{
		"Tahun", "Bulan", "Produksi_kWh", "Terjual_kWh",
		"Efficiency_", "Kesusutan_kWh", "Persentase_", "Pelanggan",
	}
	tbl, err := core.NewTable(header, records)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	f, err := core.Derive(tbl, sel, core.SchemaStrict)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	return f
}

var records = [][]string{
	{"2022", "1", "100", "90", "0.9", "10", "10.0", "5"},
	{"2022", "2", "110", "100", "0.91", "10", "9.1", "10"},
	{"2022", "3", "120", "105", "0.88", "15", "12.5", "0"},
}

func TestRender_DefaultSections(t *testing.T) {
	f := frame(t, core.SelectYear(2022), records)
	r := New()
	for _, s := range dashboard.DefaultLayout().Sections {
		t.Run(s.ID, func(t *testing.T) {
			img, err := r.Render(f, s)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if !bytes.HasPrefix(img, pngMagic) {
				t.Errorf("output is not a PNG (%d bytes)", len(img))
			}
		})
	}
}

func TestRender_SinglePoint(t *testing.T) {
	f := frame(t, core.SelectYearMonth(2022, 2), records)
	s, _ := dashboard.DefaultLayout().Section("production-sales")
	img, err := New().Render(f, s)
	if err != nil {
		t.Fatalf("single-point line chart must not fail: %v", err)
	}
	if !bytes.HasPrefix(img, pngMagic) {
		t.Error("output is not a PNG")
	}
}

func TestRender_NoFiniteValues(t *testing.T) {
	// March has zero customers so its consumption is NaN.
	f := frame(t, core.SelectYearMonth(2022, 3), records)
	s, _ := dashboard.DefaultLayout().Section("consumption")
	_, err := New().Render(f, s)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}

	empty := frame(t, core.SelectYear(2030), records)
	line, _ := dashboard.DefaultLayout().Section("efficiency")
	if _, err := New().Render(empty, line); !errors.Is(err, ErrNoData) {
		t.Fatalf("empty frame err = %v, want ErrNoData", err)
	}
}

func TestRender_BarSkipsNaNRows(t *testing.T) {
	f := frame(t, core.SelectYear(2022), records)
	s, _ := dashboard.DefaultLayout().Section("consumption")
	p, err := New().build(f, s)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	// Two finite months remain, so the nominal axis spans two labels.
	if p.X.Max-p.X.Min != 1 {
		t.Errorf("x range = [%v, %v], want two bars", p.X.Min, p.X.Max)
	}
}

func TestRender_UnknownKind(t *testing.T) {
	f := frame(t, core.SelectYear(2022), records)
	s := dashboard.Section{ID: "x", Title: "x", Kind: "pie", X: core.ColYearMonth, Y: []string{core.ColSold}}
	if _, err := New().Render(f, s); err == nil {
		t.Error("expected error for unsupported kind")
	}
}
