package google

import (
	"context"
	"testing"
)

// Matrix emulating an UNFORMATTED_VALUE response for the PLN sheet.
func TestValuesToTable(t *testing.T) {
	values := [][]interface{}{
		{"Tahun", "Bulan", "Produksi_kWh", "Terjual_kWh", "Efficiency_", "Kesusutan_kWh", "Persentase_", "Pelanggan"},
		{2022.0, 1.0, 1250000.0, 1100000.0, 0.88, 150000.0, 12.0, 5000.0},
		{2022.0, 2.0, 1300000.0, 1180000.0, 0.9, 120000.0, 9.2},
		{},
	}
	tbl, err := valuesToTable(values)
	if err != nil {
		t.Fatalf("valuesToTable: %v", err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("rows = %d, want 2", tbl.Len())
	}
	if y, err := tbl.Row(0).Int("Tahun"); err != nil || y != 2022 {
		t.Errorf("Tahun = %d, %v", y, err)
	}
	if v := tbl.Row(0).Float("Produksi_kWh"); v != 1250000 {
		t.Errorf("Produksi_kWh = %v", v)
	}
	if raw, _ := tbl.Row(0).Raw("Produksi_kWh"); raw != "1250000" {
		t.Errorf("raw = %q, want plain decimal", raw)
	}
	if _, ok := tbl.Row(1).Raw("Pelanggan"); ok {
		t.Errorf("short row should leave Pelanggan absent")
	}
}

func TestValuesToTable_Empty(t *testing.T) {
	if _, err := valuesToTable(nil); err == nil {
		t.Fatal("expected error for empty range")
	}
}

func TestToStrings(t *testing.T) {
	got := toStrings([]interface{}{nil, 1.5, true, " x "})
	want := []string{"", "1.5", "true", "x"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("toStrings[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNewValidatesOptions(t *testing.T) {
	ctx := context.Background()
	if _, err := New(ctx, Options{Range: "A:H"}); err == nil {
		t.Error("expected error for missing spreadsheet id")
	}
	if _, err := New(ctx, Options{SpreadsheetID: "id"}); err == nil {
		t.Error("expected error for missing range")
	}
}

func TestReadTableWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "id", rng: "A:H"}
	if _, err := c.ReadTable(context.Background()); err == nil {
		t.Fatal("expected error without service")
	}
	if got := c.Describe(); got != "sheets:id/A:H" {
		t.Errorf("Describe = %s", got)
	}
}
