package main

import (
	"errors"
	"testing"

	"plndash/internal/core"
)

func TestSelectionFromFlags(t *testing.T) {
	tbl, err := core.NewTable(
		[]string{"Tahun", "Bulan", "Produksi_kWh", "Terjual_kWh"},
		[][]string{{"2021", "11", "1", "1"}, {"2021", "12", "1", "1"}, {"2022", "1", "1", "1"}},
	)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		year    int
		month   string
		want    core.Selection
		wantErr bool
	}{
		{"defaults", 0, "all", core.SelectYear(2021), false},
		{"explicit month", 2021, "12", core.SelectYearMonth(2021, 12), false},
		{"blank month", 2022, " ", core.SelectYear(2022), false},
		{"unknown year", 2030, "all", core.Selection{}, true},
		{"month not in year", 2022, "12", core.Selection{}, true},
		{"bad month", 2022, "dec", core.Selection{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectionFromFlags(tbl, tt.year, tt.month)
			if tt.wantErr {
				if !errors.Is(err, core.ErrUnknownSelection) {
					t.Errorf("err = %v, want ErrUnknownSelection", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("selection = %+v, want %+v", got, tt.want)
			}
		})
	}
}
