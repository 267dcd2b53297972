// Package chart draws dashboard sections as PNG images.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"plndash/internal/core"
	"plndash/internal/dashboard"
)

// ErrNoData means none of the section's values are finite.
var ErrNoData = errors.New("no plottable data")

const (
	DefaultWidth  = 8 * vg.Inch
	DefaultHeight = 4 * vg.Inch

	monthFormat = "2006-01"
)

// Renderer turns a section of a derived frame into an image. It holds no
// per-call state and is safe for concurrent use.
type Renderer struct {
	Width  vg.Length
	Height vg.Length
}

// New returns a Renderer with the default image size.
func New() *Renderer {
	return &Renderer{Width: DefaultWidth, Height: DefaultHeight}
}

// Render draws the section and returns the PNG bytes.
func (r *Renderer) Render(frame *core.DerivedFrame, s dashboard.Section) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.WriteTo(&buf, frame, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo draws the section as PNG into w.
func (r *Renderer) WriteTo(w io.Writer, frame *core.DerivedFrame, s dashboard.Section) error {
	p, err := r.build(frame, s)
	if err != nil {
		return err
	}

	writer, err := p.WriterTo(r.Width, r.Height, "png")
	if err != nil {
		return fmt.Errorf("failed to create plot writer: %w", err)
	}
	if _, err := writer.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write plot: %w", err)
	}
	return nil
}

func (r *Renderer) build(frame *core.DerivedFrame, s dashboard.Section) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = s.Title
	p.X.Label.Text = s.X
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	var err error
	switch s.Kind {
	case dashboard.KindBar:
		err = addBars(p, frame, s)
	case dashboard.KindLine, dashboard.KindArea:
		err = addLines(p, frame, s)
	default:
		err = fmt.Errorf("unsupported chart kind %q", s.Kind)
	}
	if err != nil {
		return nil, err
	}
	if len(s.Y) == 1 {
		p.Y.Label.Text = s.Y[0]
	}
	return p, nil
}

// addLines plots one line per Y column. Rows whose X or Y value is NaN are
// left out of that series; a series with nothing left is omitted.
func addLines(p *plot.Plot, frame *core.DerivedFrame, s dashboard.Section) error {
	if s.NeedsYearMonth() {
		p.X.Tick.Marker = plot.TimeTicks{Format: monthFormat}
	}

	xs := frame.Column(s.X)
	plotted := 0
	for i, col := range s.Y {
		ys := frame.Column(col)
		pts := make(plotter.XYs, 0, len(ys))
		for j := range ys {
			if isFinite(xs[j]) && isFinite(ys[j]) {
				pts = append(pts, plotter.XY{X: xs[j], Y: ys[j]})
			}
		}
		if len(pts) == 0 {
			continue
		}

		line, scatter, err := plotter.NewLinePoints(pts)
		if err != nil {
			return fmt.Errorf("failed to create line for %s: %w", col, err)
		}
		c := plotutil.Color(i)
		line.Color = c
		line.Width = vg.Points(2)
		scatter.GlyphStyle.Color = c
		scatter.GlyphStyle.Radius = vg.Points(3)
		if s.Kind == dashboard.KindArea {
			line.FillColor = plotutil.Color(i)
		}
		p.Add(line, scatter)
		p.Legend.Add(col, line)
		plotted++
	}
	if plotted == 0 {
		return fmt.Errorf("%s: %w", s.ID, ErrNoData)
	}
	return nil
}

// addBars draws grouped bars over nominal X labels. A row is shown only
// when every Y value is finite so the groups stay aligned.
func addBars(p *plot.Plot, frame *core.DerivedFrame, s dashboard.Section) error {
	var labels []string
	series := make([]plotter.Values, len(s.Y))
	for i := 0; i < frame.Len(); i++ {
		row := make([]float64, len(s.Y))
		ok := true
		for k, col := range s.Y {
			row[k] = frame.Value(i, col)
			if !isFinite(row[k]) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		label := frame.Text(i, s.X)
		if label == "" {
			label = fmt.Sprintf("#%d", frame.Rows[i].Position()+1)
		}
		labels = append(labels, label)
		for k := range s.Y {
			series[k] = append(series[k], row[k])
		}
	}
	if len(labels) == 0 {
		return fmt.Errorf("%s: %w", s.ID, ErrNoData)
	}

	width := vg.Points(40 / float64(len(s.Y)))
	for k, col := range s.Y {
		bars, err := plotter.NewBarChart(series[k], width)
		if err != nil {
			return fmt.Errorf("failed to create bar chart for %s: %w", col, err)
		}
		bars.Color = plotutil.Color(k)
		bars.LineStyle.Width = vg.Length(0)
		bars.Offset = width * vg.Length(float64(k)-float64(len(s.Y)-1)/2)
		p.Add(bars)
		p.Legend.Add(col, bars)
	}
	p.NominalX(labels...)
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
