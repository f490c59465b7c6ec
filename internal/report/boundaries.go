package report

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gonum.org/v1/plot/plotter"
)

// Boundaries holds county polygons keyed by county ID.
type Boundaries struct {
	Shapes map[string][]orb.Polygon
	Bound  orb.Bound
}

// LoadBoundaries reads a GeoJSON feature collection. Each feature's
// idProperty names its county; Polygon and MultiPolygon geometries are
// kept, anything else is rejected.
func LoadBoundaries(path, idProperty string) (*Boundaries, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read boundaries: %w", err)
	}
	return ParseBoundaries(data, idProperty)
}

// ParseBoundaries is LoadBoundaries over bytes.
func ParseBoundaries(data []byte, idProperty string) (*Boundaries, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse boundaries: %w", err)
	}
	b := &Boundaries{Shapes: make(map[string][]orb.Polygon)}
	first := true
	for i, f := range fc.Features {
		id := propertyString(f.Properties, idProperty)
		if id == "" {
			return nil, fmt.Errorf("feature %d has no %q property", i, idProperty)
		}
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			b.Shapes[id] = append(b.Shapes[id], g)
		case orb.MultiPolygon:
			b.Shapes[id] = append(b.Shapes[id], g...)
		default:
			return nil, fmt.Errorf("feature %s: unsupported geometry %s", id, f.Geometry.GeoJSONType())
		}
		if first {
			b.Bound = f.Geometry.Bound()
			first = false
		} else {
			b.Bound = b.Bound.Union(f.Geometry.Bound())
		}
	}
	if len(b.Shapes) == 0 {
		return nil, fmt.Errorf("boundaries contain no features")
	}
	return b, nil
}

// propertyString reads an ID property that may be encoded as a string or
// a number.
func propertyString(p geojson.Properties, key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%g", v)
	default:
		return ""
	}
}

// rings converts an orb polygon to plotter rings: the outer ring, then holes.
func rings(p orb.Polygon) []plotter.XYer {
	out := make([]plotter.XYer, 0, len(p))
	for _, r := range p {
		xys := make(plotter.XYs, len(r))
		for i, pt := range r {
			xys[i].X, xys[i].Y = pt.X(), pt.Y()
		}
		out = append(out, xys)
	}
	return out
}
