package dashboard

import (
	"fmt"
	"strings"

	"plndash/internal/core"
)

// Status is the outcome of planning one section.
type Status string

const (
	// StatusReady means the section can be drawn.
	StatusReady Status = "ready"
	// StatusSkipped means a column the section needs is absent. This is
	// normal degraded operation and is not reported as an error.
	StatusSkipped Status = "skipped"
	// StatusMalformed means the section is keyed on YearMonth and some
	// selected rows have no valid date.
	StatusMalformed Status = "malformed"
	// StatusDegenerate means there are too few points to draw the chart.
	StatusDegenerate Status = "degenerate"
)

// SinglePoint controls line and area charts over a single row.
type SinglePoint string

const (
	SinglePointRender SinglePoint = "render"
	SinglePointSkip   SinglePoint = "skip"
)

// ParseSinglePoint maps a configuration value to a SinglePoint policy.
func ParseSinglePoint(s string) (SinglePoint, error) {
	switch SinglePoint(strings.ToLower(strings.TrimSpace(s))) {
	case "", SinglePointRender:
		return SinglePointRender, nil
	case SinglePointSkip:
		return SinglePointSkip, nil
	}
	return "", fmt.Errorf("invalid single point policy %q: must be one of [render skip]", s)
}

// Options tune planning.
type Options struct {
	SinglePoint SinglePoint
}

// SectionPlan is a section paired with its status for one frame.
type SectionPlan struct {
	Section Section
	Status  Status
	// Missing lists the absent columns of a skipped section.
	Missing []string
	// Err is set for malformed sections.
	Err error
}

// Ready reports whether the section should be drawn.
func (p SectionPlan) Ready() bool { return p.Status == StatusReady }

// Plan decides the status of every section of layout for frame, in layout
// order. Sections are gated independently of each other.
func Plan(frame *core.DerivedFrame, layout *Layout, opts Options) []SectionPlan {
	plans := make([]SectionPlan, 0, len(layout.Sections))
	for _, s := range layout.Sections {
		plans = append(plans, PlanSection(frame, s, opts))
	}
	return plans
}

// PlanSection plans a single section.
func PlanSection(frame *core.DerivedFrame, s Section, opts Options) SectionPlan {
	p := SectionPlan{Section: s}

	for _, c := range s.Columns() {
		if !frame.HasColumn(c) {
			p.Missing = append(p.Missing, c)
		}
	}
	if len(p.Missing) > 0 {
		p.Status = StatusSkipped
		return p
	}

	if s.NeedsYearMonth() && frame.DateErr != nil {
		p.Status = StatusMalformed
		p.Err = frame.DateErr
		return p
	}

	switch {
	case frame.Len() == 0:
		p.Status = StatusDegenerate
	case frame.Len() < 2 && s.Kind != KindBar && opts.SinglePoint == SinglePointSkip:
		p.Status = StatusDegenerate
	default:
		p.Status = StatusReady
	}
	return p
}

// Counts tallies plans by status.
func Counts(plans []SectionPlan) map[Status]int {
	out := make(map[Status]int, 4)
	for _, p := range plans {
		out[p.Status]++
	}
	return out
}
