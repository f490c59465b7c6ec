package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"imrmap/internal/dataset"
	"imrmap/internal/domain"
	"imrmap/internal/summarize"
)

// densitySamples is the number of grid points a density curve is drawn at.
const densitySamples = 200

// missingFill colours counties with no rate ratio.
var missingFill = color.Gray{Y: 200}

// save writes p as <name>.<FigureFormat>. Raster output honours DPI.
func (r *Reporter) save(p *plot.Plot, name string) (string, error) {
	path, err := r.path(name, r.opts.FigureFormat)
	if err != nil {
		return "", err
	}
	if r.opts.FigureFormat == "png" {
		img := vgimg.NewWith(vgimg.UseWH(r.opts.Width, r.opts.Height), vgimg.UseDPI(r.opts.DPI))
		p.Draw(draw.New(img))
		f, err := os.Create(path)
		if err != nil {
			return "", fmt.Errorf("create %s: %w", filepath.Base(path), err)
		}
		if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
			f.Close()
			return "", fmt.Errorf("write %s: %w", filepath.Base(path), err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close %s: %w", filepath.Base(path), err)
		}
	} else if err := p.Save(r.opts.Width, r.opts.Height, path); err != nil {
		return "", fmt.Errorf("save %s: %w", filepath.Base(path), err)
	}
	r.logger.Info("figure written", "figure", name, "path", path)
	return path, nil
}

// Scatter plots the deprivation index against the observed rate, one
// series per period.
func (r *Reporter) Scatter(long *dataset.Long, title string) (string, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Deprivation index"
	p.Y.Label.Text = "Infant mortality rate per 1000 births"
	p.Legend.Top = true

	for i, per := range long.Periods() {
		obs := long.ByPeriod(per.Ordinal)
		xys := make(plotter.XYs, len(obs))
		for j, o := range obs {
			xys[j].X, xys[j].Y = o.Deprivation, o.Rate
		}
		s, err := plotter.NewScatter(xys)
		if err != nil {
			return "", fmt.Errorf("scatter %s: %w", per.Code, err)
		}
		s.GlyphStyle.Color = plotutil.Color(i)
		s.GlyphStyle.Shape = plotutil.Shape(i)
		s.GlyphStyle.Radius = vg.Points(3)
		p.Add(s)
		p.Legend.Add(per.DisplayLabel(), s)
	}
	p.Add(plotter.NewGrid())
	return r.save(p, "scatter")
}

// Density plots a Gaussian kernel density of the observed rates per period.
func (r *Reporter) Density(long *dataset.Long, title string) (string, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Infant mortality rate per 1000 births"
	p.Y.Label.Text = "Density"
	p.Legend.Top = true

	for i, per := range long.Periods() {
		obs := long.ByPeriod(per.Ordinal)
		rates := make([]float64, len(obs))
		for j, o := range obs {
			rates[j] = o.Rate
		}
		k := NewKDE(rates)
		lo, hi := k.Range()
		grid := make([]float64, densitySamples)
		floats.Span(grid, lo, hi)
		xys := make(plotter.XYs, len(grid))
		for j, x := range grid {
			xys[j].X, xys[j].Y = x, k.At(x)
		}
		l, err := plotter.NewLine(xys)
		if err != nil {
			return "", fmt.Errorf("density %s: %w", per.Code, err)
		}
		l.LineStyle.Color = plotutil.Color(i)
		l.LineStyle.Dashes = plotutil.Dashes(i)
		l.LineStyle.Width = vg.Points(1.5)
		p.Add(l)
		p.Legend.Add(per.DisplayLabel(), l)
	}
	p.Y.Min = 0
	return r.save(p, "density")
}

// Trend plots the reference series with the study's global rate per period
// overlaid at the given years (keyed by period code). Periods without a
// year are left off.
func (r *Reporter) Trend(ref *Series, long *dataset.Long, years map[string]float64, title string) (string, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "Infant mortality rate per 1000 births"
	p.Legend.Top = true

	if ref != nil && len(ref.Points) > 0 {
		xys := make(plotter.XYs, len(ref.Points))
		for i, pt := range ref.Points {
			xys[i].X, xys[i].Y = pt.Year, pt.Rate
		}
		l, pts, err := plotter.NewLinePoints(xys)
		if err != nil {
			return "", fmt.Errorf("trend reference: %w", err)
		}
		l.LineStyle.Color = plotutil.Color(0)
		pts.GlyphStyle.Color = plotutil.Color(0)
		p.Add(l, pts)
		p.Legend.Add(ref.Name, l, pts)
	}

	var study plotter.XYs
	for _, per := range long.Periods() {
		y, ok := years[per.Code]
		if !ok {
			continue
		}
		rate, err := dataset.GlobalRate(long.ByPeriod(per.Ordinal))
		if err != nil {
			return "", err
		}
		study = append(study, plotter.XY{X: y, Y: rate})
	}
	if len(study) > 0 {
		s, err := plotter.NewScatter(study)
		if err != nil {
			return "", fmt.Errorf("trend study: %w", err)
		}
		s.GlyphStyle.Color = plotutil.Color(1)
		s.GlyphStyle.Shape = draw.BoxGlyph{}
		s.GlyphStyle.Radius = vg.Points(4)
		p.Add(s)
		p.Legend.Add("Study area", s)
	}
	p.Add(plotter.NewGrid())
	return r.save(p, "trend")
}

// swatch is a filled legend entry.
type swatch struct{ color color.Color }

func (s swatch) Thumbnail(c *draw.Canvas) {
	pts := []vg.Point{
		{X: c.Min.X, Y: c.Min.Y}, {X: c.Min.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Max.Y}, {X: c.Max.X, Y: c.Min.Y},
	}
	c.FillPolygon(s.color, pts)
}

// Map draws a choropleth of the per-county rate ratios over the county
// boundaries, with a diverging palette centred at 1. Counties with no
// ratio are drawn grey.
func (r *Reporter) Map(b *Boundaries, ratios *summarize.Table, title string) (string, error) {
	values := make(map[string]float64, len(ratios.Rows))
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range ratios.Rows {
		if len(row.Cells) == 0 {
			continue
		}
		v := row.Cells[0].Point
		values[row.Key] = v
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if len(values) == 0 {
		return "", domain.Errorf("report.map", domain.KindAlignment, "table %s has no values", ratios.Name)
	}
	// The converge point must lie strictly inside the range.
	lo = math.Min(lo, 0.99)
	hi = math.Max(hi, 1.01)

	cm := moreland.SmoothBlueRed()
	cm.SetMin(lo)
	cm.SetMax(hi)
	cm.SetConvergePoint(1)

	p := plot.New()
	p.Title.Text = title
	p.HideAxes()
	p.Legend.Top = true

	ids := make([]string, 0, len(b.Shapes))
	for id := range b.Shapes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var missing []string
	for _, id := range ids {
		polys := b.Shapes[id]
		fill := color.Color(missingFill)
		if v, ok := values[id]; ok {
			c, err := cm.At(v)
			if err != nil {
				return "", fmt.Errorf("colour for %s: %w", id, err)
			}
			fill = c
		} else {
			missing = append(missing, id)
		}
		for _, poly := range polys {
			pg, err := plotter.NewPolygon(rings(poly)...)
			if err != nil {
				return "", fmt.Errorf("polygon %s: %w", id, err)
			}
			pg.Color = fill
			pg.LineStyle.Color = color.Black
			pg.LineStyle.Width = vg.Points(0.5)
			p.Add(pg)
		}
	}
	for _, row := range ratios.Rows {
		if _, ok := b.Shapes[row.Key]; !ok {
			r.logger.Warn("county has no boundary", "county", row.Key)
		}
	}
	if len(missing) > 0 {
		r.logger.Warn("boundaries without a rate ratio", "count", len(missing))
	}

	for _, v := range []float64{lo, 1, hi} {
		c, err := cm.At(v)
		if err != nil {
			return "", fmt.Errorf("legend colour: %w", err)
		}
		p.Legend.Add(fmt.Sprintf("RR %.2f", v), swatch{color: c})
	}

	p.X.Min, p.X.Max = b.Bound.Min.X(), b.Bound.Max.X()
	p.Y.Min, p.Y.Max = b.Bound.Min.Y(), b.Bound.Max.Y()
	return r.save(p, "map")
}
