// Package dashboard describes the chart sections of the dashboard and decides,
// per derived frame, which of them can be drawn.
package dashboard

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"plndash/internal/core"
)

//go:embed layout.yaml
var defaultLayout []byte

// Kind is the chart type of a section.
type Kind string

const (
	KindLine Kind = "line"
	KindArea Kind = "area"
	KindBar  Kind = "bar"
)

// Layout is the on-disk dashboard description (YAML).
type Layout struct {
	Title    string    `yaml:"title"`
	Sections []Section `yaml:"sections"`
}

// Section is one chart of the dashboard.
type Section struct {
	ID      string   `yaml:"id"`
	Heading string   `yaml:"heading"`
	Title   string   `yaml:"title"`
	Kind    Kind     `yaml:"kind"`
	X       string   `yaml:"x"`
	Y       []string `yaml:"y"`
	// Requires lists extra columns that gate the section besides X and Y.
	Requires []string `yaml:"requires"`
}

var sectionIDRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// DefaultLayout returns the built-in five-section layout.
func DefaultLayout() *Layout {
	l, err := ParseLayout(defaultLayout)
	if err != nil {
		panic(fmt.Sprintf("embedded layout: %v", err))
	}
	return l
}

// LoadLayout reads a layout file; an empty path yields the default layout.
func LoadLayout(path string) (*Layout, error) {
	if path == "" {
		return DefaultLayout(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	l, err := ParseLayout(raw)
	if err != nil {
		return nil, fmt.Errorf("layout %s: %w", path, err)
	}
	return l, nil
}

// ParseLayout decodes and validates a YAML layout. X defaults to YearMonth.
func ParseLayout(raw []byte) (*Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("decode layout: %w", err)
	}
	for i := range l.Sections {
		if l.Sections[i].X == "" {
			l.Sections[i].X = core.ColYearMonth
		}
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Validate checks every section and reports all problems at once.
func (l *Layout) Validate() error {
	if l == nil {
		return errors.New("layout is nil")
	}
	if len(l.Sections) == 0 {
		return errors.New("layout has no sections")
	}
	var errs []error
	seen := make(map[string]bool, len(l.Sections))
	for i, s := range l.Sections {
		switch {
		case !sectionIDRe.MatchString(s.ID):
			errs = append(errs, fmt.Errorf("section %d: invalid id %q", i+1, s.ID))
		case seen[s.ID]:
			errs = append(errs, fmt.Errorf("section %d: duplicate id %q", i+1, s.ID))
		}
		seen[s.ID] = true
		switch s.Kind {
		case KindLine, KindArea, KindBar:
		default:
			errs = append(errs, fmt.Errorf("section %q: unknown kind %q", s.ID, s.Kind))
		}
		if len(s.Y) == 0 {
			errs = append(errs, fmt.Errorf("section %q: no y columns", s.ID))
		}
		if s.Title == "" {
			errs = append(errs, fmt.Errorf("section %q: missing title", s.ID))
		}
	}
	return errors.Join(errs...)
}

// Section returns the section with the given id.
func (l *Layout) Section(id string) (Section, bool) {
	for _, s := range l.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

// Columns returns every column the section needs, X first.
func (s Section) Columns() []string {
	cols := []string{s.X}
	add := func(c string) {
		for _, have := range cols {
			if have == c {
				return
			}
		}
		cols = append(cols, c)
	}
	for _, c := range s.Y {
		add(c)
	}
	for _, c := range s.Requires {
		add(c)
	}
	return cols
}

// NeedsYearMonth reports whether the section is keyed on the derived date.
func (s Section) NeedsYearMonth() bool {
	return s.X == core.ColYearMonth
}
