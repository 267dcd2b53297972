package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"plndash/internal/config"
)

func TestOpenSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pln.csv")
	if err := os.WriteFile(path, []byte("Tahun,Bulan\n2022,1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		cfg      config.Config
		wantDesc string
		wantErr  bool
	}{
		{"csv", config.Config{DataSource: config.SourceCSV, DataURL: "https://example.com/pln.csv"}, "https://example.com/pln.csv", false},
		{"csv bad url", config.Config{DataSource: config.SourceCSV, DataURL: "file:///etc/passwd"}, "", true},
		{"file", config.Config{DataSource: config.SourceFile, DataFile: path}, path, false},
		{"unknown", config.Config{DataSource: "kafka"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, closeFn, err := OpenSource(context.Background(), &tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("OpenSource() error = %v, wantErr %v", err, tt.wantErr)
			}
			defer closeFn()
			if err != nil {
				return
			}
			if got := src.Describe(); got != tt.wantDesc {
				t.Errorf("Describe() = %q, want %q", got, tt.wantDesc)
			}
		})
	}
}

func TestSetupLogger(t *testing.T) {
	if l := SetupLogger("debug"); l == nil {
		t.Fatal("nil logger")
	}
	// Unknown levels fall back to info rather than failing.
	if l := SetupLogger("chatty"); l == nil {
		t.Fatal("nil logger")
	}
}
