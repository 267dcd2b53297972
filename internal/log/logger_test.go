package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{" warn ", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogger_Component(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf, Level: slog.LevelDebug})

	logger.WithComponent(ComponentLoader).Info("loaded", FieldRows, 12)
	logger.Debug("fallback")

	out := buf.String()
	if !strings.Contains(out, "component=loader") || !strings.Contains(out, "rows=12") {
		t.Errorf("component or field missing:\n%s", out)
	}
	if !strings.Contains(out, "component=app") {
		t.Errorf("default component missing:\n%s", out)
	}
}

func TestFromContext(t *testing.T) {
	if got := FromContext(context.Background()).Component(); got != "unknown" {
		t.Errorf("fallback component = %q", got)
	}
	l := Discard().WithComponent(ComponentChart)
	if got := FromContext(NewContext(context.Background(), l)); got != l {
		t.Error("logger not recovered from context")
	}
}

func TestHTTPLogger_LogEndLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "level=INFO"},
		{404, "level=WARN"},
		{503, "level=ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		hl := NewHTTPLogger(New(Config{Output: &buf}))
		ctx := context.WithValue(context.Background(), ContextKey(FieldRequestID), "req_1")
		hl.LogEnd(ctx, httptest.NewRequest("GET", "/charts/x?year=2022", nil), tt.status, 3, "203.0.113.9")

		out := buf.String()
		if !strings.Contains(out, tt.level) {
			t.Errorf("status %d: want %s in %s", tt.status, tt.level, out)
		}
		if !strings.Contains(out, "request_id=req_1") || !strings.Contains(out, "client_ip=203.0.113.9") {
			t.Errorf("status %d: missing request fields: %s", tt.status, out)
		}
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().
		WithOperation(OpDerive).
		WithSelection(2022, 0, "year").
		WithError(errors.New("boom")).
		WithError(nil)

	if f[FieldOperation] != OpDerive || f[FieldYear] != 2022 || f[FieldError] != "boom" {
		t.Errorf("fields = %v", f)
	}
	if _, ok := f[FieldMonth]; ok {
		t.Error("month set for a year-only selection")
	}
	if got := len(f.ToSlice()); got != 2*len(f) {
		t.Errorf("ToSlice len = %d", got)
	}
}
