package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"plndash/internal/core"
)

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		BodyHTML([]byte("<p>ok</p>")).
		Write(w)

	if w.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "<p>ok</p>" {
		t.Errorf("Body = %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("HX-Trigger") != "" {
		t.Error("HX-Trigger set without triggers")
	}
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Trigger("refresh", struct{}{}).
		TriggerSelectionChanged(core.SelectYearMonth(2022, 3)).
		Write(w)

	if got := w.Header().Get("HX-Trigger"); got != `{"refresh":{}}` {
		t.Errorf("HX-Trigger = %q", got)
	}
	after := w.Header().Get("HX-Trigger-After-Swap")
	for _, part := range []string{`"selection:changed"`, `"year":2022`, `"month":3`, `"mode":"year-month"`} {
		if !strings.Contains(after, part) {
			t.Errorf("HX-Trigger-After-Swap missing %q: %s", part, after)
		}
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name string
		b    *HTMXResponseBuilder
		code int
	}{
		{"unprocessable", UnprocessableEntityError("<bad>"), http.StatusUnprocessableEntity},
		{"internal", InternalServerError("x"), http.StatusInternalServerError},
		{"not found", NotFoundError("x"), http.StatusNotFound},
		{"unavailable", ServiceUnavailableError("x"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.b.Write(w)
			if w.Code != tt.code {
				t.Errorf("status = %d, want %d", w.Code, tt.code)
			}
			if strings.Contains(w.Body.String(), "<bad>") {
				t.Error("message not escaped")
			}
		})
	}
}
