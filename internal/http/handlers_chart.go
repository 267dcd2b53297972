package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"plndash/internal/core"
	"plndash/internal/dashboard"
	applog "plndash/internal/log"
)

var errSectionNotReady = errors.New("section not ready")

// sectionNotReadyError carries the plan of a section that cannot be drawn.
type sectionNotReadyError struct {
	plan dashboard.SectionPlan
}

func (e *sectionNotReadyError) Error() string {
	return fmt.Sprintf("section %s is %s", e.plan.Section.ID, e.plan.Status)
}

func (e *sectionNotReadyError) Is(target error) bool { return target == errSectionNotReady }

// handleChart serves one section's chart as PNG. Renders are cached per
// section and selection, and concurrent identical requests share a render.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentChart)

	id := r.PathValue("id")
	section, ok := s.layout.Section(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	t, err := s.loader.Load(ctx)
	if err != nil {
		http.Error(w, msgLoadFailed, errorStatus(err))
		return
	}
	sel, err := resolveSelection(r.URL.Query(), t, s.mode)
	if err != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return
	}

	key := id + "/" + sel.Key()
	if img, ok := s.charts.Get(key); ok {
		writePNG(w, img)
		return
	}

	v, err, shared := s.renders.Do(key, func() (any, error) {
		frame, err := core.Derive(t, sel, s.schema)
		if err != nil {
			return nil, err
		}
		plan := dashboard.PlanSection(frame, section, s.planOpts)
		if !plan.Ready() {
			return nil, &sectionNotReadyError{plan: plan}
		}
		img, err := s.renderer.Render(frame, section)
		if err != nil {
			return nil, err
		}
		s.charts.Set(key, img)
		return img, nil
	})
	if err != nil {
		status := errorStatus(err)
		if status >= http.StatusInternalServerError {
			logger.ErrorContext(ctx, "Chart render failed",
				applog.FieldSection, id,
				applog.FieldError, err.Error(),
				"error_type", errorType(err))
		} else {
			logger.DebugContext(ctx, "Chart not drawn",
				applog.FieldSection, id,
				applog.FieldError, err.Error())
		}
		http.Error(w, err.Error(), status)
		return
	}

	logger.DebugContext(ctx, "Chart rendered",
		applog.FieldSection, id,
		applog.FieldOperation, applog.OpRender,
		"shared", shared)
	writePNG(w, v.([]byte))
}

func writePNG(w http.ResponseWriter, img []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}
