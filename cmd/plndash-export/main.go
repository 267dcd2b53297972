// Command plndash-export renders the dashboard for one selection to disk:
// a PNG per drawable section and an xlsx workbook with the derived frame.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"plndash/internal/chart"
	"plndash/internal/cli"
	"plndash/internal/core"
	"plndash/internal/dashboard"
	"plndash/internal/export"
	"plndash/internal/loader"
	applog "plndash/internal/log"
)

func main() {
	fs := flag.NewFlagSet("plndash-export", flag.ExitOnError)
	year := fs.Int("year", 0, "Year to export (0 = first year in the data)")
	month := fs.String("month", "all", `Month to export, 1-12 or "all"`)
	outDir := fs.String("out", "out", "Output directory")
	_ = fs.Parse(os.Args[1:])

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(applog.ComponentExport)
	cfg := cli.LoadAndValidateConfig(logger)

	layout, err := dashboard.LoadLayout(cfg.DashboardLayoutFile)
	if err != nil {
		logger.Error("Failed to load dashboard layout", applog.FieldError, err.Error())
		os.Exit(1)
	}

	ctx := context.Background()
	src, closeSource := cli.MustOpenSource(ctx, logger, cfg)
	defer closeSource()

	ld := loader.New(src, loader.WithTimeout(cfg.FetchTimeout), loader.WithLogger(logger))
	t, err := ld.Load(ctx)
	if err != nil {
		logger.Error("Failed to load dataset", applog.FieldError, err.Error(),
			"error_type", applog.ErrorTypeDataUnavailable)
		os.Exit(1)
	}

	sel, err := selectionFromFlags(t, *year, *month)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	frame, err := core.Derive(t, sel, cfg.Schema())
	if err != nil {
		logger.Error("Pipeline failed", applog.FieldError, err.Error(),
			"error_type", applog.ErrorTypeSchema)
		os.Exit(1)
	}
	if frame.DateErr != nil {
		logger.Warn("Rows with malformed dates", applog.FieldError, frame.DateErr.Error())
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		logger.Error("Failed to create output directory", applog.FieldError, err.Error())
		os.Exit(1)
	}

	plans := dashboard.Plan(frame, layout, dashboard.Options{SinglePoint: cfg.SinglePoint()})
	renderer := chart.New()
	for _, p := range plans {
		if !p.Ready() {
			logger.Info("Section not drawn",
				applog.FieldSection, p.Section.ID,
				applog.FieldStatus, string(p.Status))
			continue
		}
		path := filepath.Join(*outDir, p.Section.ID+"-"+sel.Key()+".png")
		if err := writeChart(renderer, path, frame, p.Section); err != nil {
			logger.Error("Chart render failed",
				applog.FieldSection, p.Section.ID,
				applog.FieldError, err.Error())
			continue
		}
		logger.Info("Chart written", applog.FieldSection, p.Section.ID, "path", path)
	}

	book := filepath.Join(*outDir, "pln-"+sel.Key()+".xlsx")
	if err := export.SaveAs(book, frame, plans); err != nil {
		logger.Error("Workbook export failed", applog.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Workbook written", "path", book, applog.FieldRows, frame.Len())
}

func selectionFromFlags(t *core.Table, year int, month string) (core.Selection, error) {
	years := core.DistinctYears(t)
	if len(years) == 0 {
		return core.Selection{}, fmt.Errorf("%w: dataset has no readable year", core.ErrUnknownSelection)
	}
	if year == 0 {
		year = years[0]
	}
	if !slices.Contains(years, year) {
		return core.Selection{}, fmt.Errorf("%w: year %d (available: %v)", core.ErrUnknownSelection, year, years)
	}

	month = strings.ToLower(strings.TrimSpace(month))
	if month == "" || month == "all" {
		return core.SelectYear(year), nil
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return core.Selection{}, fmt.Errorf("%w: month %q", core.ErrUnknownSelection, month)
	}
	if months := core.DistinctMonths(t, year); !slices.Contains(months, m) {
		return core.Selection{}, fmt.Errorf("%w: month %d for year %d (available: %v)", core.ErrUnknownSelection, m, year, months)
	}
	return core.SelectYearMonth(year, m), nil
}

func writeChart(r *chart.Renderer, path string, frame *core.DerivedFrame, s dashboard.Section) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return r.WriteTo(f, frame, s)
}
