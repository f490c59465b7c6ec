// Package report writes result tables and figures to the output directory.
package report

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot/vg"

	"imrmap/internal/format"
	"imrmap/internal/logging"
	"imrmap/internal/summarize"
)

// Options sets the output directory and the figure geometry.
type Options struct {
	OutDir string
	// FigureFormat is the figure file extension: eps, png, svg or pdf.
	FigureFormat string
	Width        vg.Length
	Height       vg.Length
	// DPI applies to raster output.
	DPI int
}

// DefaultOptions returns EPS figures of 6x4 inches at 300 DPI in "out".
func DefaultOptions() Options {
	return Options{OutDir: "out", FigureFormat: "eps", Width: 6 * vg.Inch, Height: 4 * vg.Inch, DPI: 300}
}

// Reporter writes tables and figures.
type Reporter struct {
	opts   Options
	logger *slog.Logger
}

// New returns a Reporter writing under opts.OutDir.
func New(opts Options) *Reporter {
	return &Reporter{opts: opts, logger: logging.New("report")}
}

func (r *Reporter) path(name, ext string) (string, error) {
	if err := os.MkdirAll(r.opts.OutDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	return filepath.Join(r.opts.OutDir, name+"."+ext), nil
}

// Render returns t in the given mode. LaTeX output carries no row index.
func Render(t *summarize.Table, mode format.Mode) string {
	tb := format.NewTable(mode)
	tb.Caption(t.Caption)
	tb.Header(t.Header()...)
	cfgs := make([]format.ColumnConfig, 0, len(t.Columns))
	for i := range t.Columns {
		cfgs = append(cfgs, format.ColumnConfig{Number: i + 2, Align: format.AlignRight})
	}
	tb.Columns(cfgs...)
	for _, row := range t.Text() {
		vals := make([]any, len(row))
		for i, v := range row {
			vals[i] = v
		}
		tb.Row(vals...)
	}
	return tb.String()
}

// WriteTable writes t as <name>.tex and returns the path.
func (r *Reporter) WriteTable(t *summarize.Table) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	path, err := r.path(t.Name, "tex")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(Render(t, format.LaTeX)), 0o644); err != nil {
		return "", fmt.Errorf("write table %s: %w", t.Name, err)
	}
	r.logger.Info("table written", "table", t.Name, "rows", len(t.Rows), "path", path)
	return path, nil
}

// WriteTables writes every table and returns the paths in order.
func (r *Reporter) WriteTables(tables []*summarize.Table) ([]string, error) {
	var paths []string
	for _, t := range tables {
		p, err := r.WriteTable(t)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// Print renders every table for the terminal, each preceded by its caption.
func Print(tables []*summarize.Table, mode format.Mode) string {
	var b strings.Builder
	for i, t := range tables {
		if i > 0 {
			b.WriteString("\n")
		}
		if mode == format.LaTeX {
			b.WriteString(Render(t, mode))
			continue
		}
		b.WriteString(t.Caption)
		b.WriteString("\n")
		tb := *t
		tb.Caption = ""
		b.WriteString(Render(&tb, mode))
		b.WriteString("\n")
	}
	return b.String()
}
