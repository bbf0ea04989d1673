package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/nvandessel/atnsim/internal/config"
	"github.com/nvandessel/atnsim/internal/engine"
	"github.com/nvandessel/atnsim/internal/report"
)

var formatExtensions = map[string]string{
	config.FormatCSV:          ".csv",
	config.FormatArrow:        ".arrow",
	config.FormatLineProtocol: ".lp",
}

// reportName returns the output file name of a job run, without extension.
func reportName(res *engine.Result) string {
	return fmt.Sprintf("job_%d_%s", res.JobID, res.RunID.String()[:8])
}

// writeResult writes a job report in the configured format and, when an
// InfluxDB URL is configured, pushes it there too.
func (a *app) writeResult(ctx context.Context, res *engine.Result) error {
	table, err := res.Table()
	if err != nil {
		return fmt.Errorf("assemble report: %w", err)
	}
	opts := report.PointOptions{
		RunID:    res.RunID.String(),
		JobID:    res.JobID,
		Start:    time.Now().UTC(),
		Interval: time.Second,
	}

	path, err := writeTable(a.cfg.Output, reportName(res), table, opts)
	if err != nil {
		return err
	}
	if a.influx != nil {
		if err := a.influx.Write(ctx, table, opts); err != nil {
			return err
		}
	}

	a.logger.Info("wrote report",
		"job", res.JobID,
		"path", path,
		"partial", res.Partial(),
		"elapsed", res.Elapsed.Round(time.Millisecond))
	return nil
}

// writeTable writes t to out.Dir/name plus the format extension.
func writeTable(out config.OutputConfig, name string, t *report.Table, opts report.PointOptions) (string, error) {
	if err := os.MkdirAll(out.Dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(out.Dir, name+formatExtensions[out.Format])
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}

	switch out.Format {
	case config.FormatArrow:
		err = report.WriteArrow(f, t)
	case config.FormatLineProtocol:
		err = report.WriteLineProtocol(f, t, opts)
	default:
		err = report.WriteCSV(f, t, out.Precision)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// isInteractive reports whether stdin is a terminal.
func isInteractive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// promptOutputDir asks for the output directory. Without a terminal it
// returns def unchanged.
func promptOutputDir(def string) (string, error) {
	if !isInteractive() {
		return def, nil
	}
	dir := def
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Output directory").
			Description("Reports and diagnostics are written here").
			Value(&dir).
			Validate(validateOutputDir),
	))
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("output directory prompt: %w", err)
	}
	return strings.TrimSpace(dir), nil
}

// validateOutputDir accepts a missing path or an existing directory.
func validateOutputDir(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("output directory is required")
	}
	info, err := os.Stat(s)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s)
	}
	return nil
}
