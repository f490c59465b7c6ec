package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"imrmap/adapters/workbook"
	"imrmap/internal/config"
)

// Example file names written by WriteExample.
const (
	ExampleStudy      = "study.yaml"
	ExampleWorkbook   = "counties.xlsx"
	ExampleLabels     = "labels.xlsx"
	ExampleReference  = "reference.xlsx"
	ExampleBoundaries = "counties.geojson"
)

// exampleCounty is one county of the bundled example: a cell of a 2x2 grid.
type exampleCounty struct {
	id, name, label string
	births          [2]float64
	deaths          [2]float64
	deprivation     [2]float64
	x, y            float64
}

var exampleCounties = []exampleCounty{
	{"A", "north-west", "Northwest Vale", [2]float64{12000, 11000}, [2]float64{96, 55}, [2]float64{-0.8, -0.9}, 0, 1},
	{"B", "north-east", "Northeast Ridge", [2]float64{8000, 8500}, [2]float64{72, 51}, [2]float64{0.2, 0.1}, 1, 1},
	{"C", "south-west", "Southwest Coast", [2]float64{15000, 16000}, [2]float64{150, 104}, [2]float64{1.1, 0.9}, 0, 0},
	{"D", "south-east", "Southeast Plain", [2]float64{5000, 4800}, [2]float64{35, 29}, [2]float64{-0.4, -0.2}, 1, 0},
}

// exampleAdjacency is rook adjacency on the grid.
var exampleAdjacency = [][]int{
	{0, 1, 1, 0},
	{1, 0, 0, 1},
	{1, 0, 0, 1},
	{0, 1, 1, 0},
}

// WriteExample writes a small complete study into dir (workbooks, labels,
// reference series, boundaries and study file) and returns the study path.
func WriteExample(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create example dir: %w", err)
	}

	data := [][]any{{"county", "name", "births_1", "births_2", "deaths_1", "deaths_2", "deprivation_1", "deprivation_2"}}
	adj := [][]any{{""}}
	labels := [][]any{{"id", "label"}}
	for i, c := range exampleCounties {
		data = append(data, []any{c.id, c.name, c.births[0], c.births[1], c.deaths[0], c.deaths[1], c.deprivation[0], c.deprivation[1]})
		adj[0] = append(adj[0], c.id)
		row := []any{c.id}
		for _, v := range exampleAdjacency[i] {
			row = append(row, v)
		}
		adj = append(adj, row)
		labels = append(labels, []any{c.id, c.label})
	}
	if err := workbook.Write(filepath.Join(dir, ExampleWorkbook),
		workbook.Sheet{Name: "data", Rows: data},
		workbook.Sheet{Name: "adjacency", Rows: adj},
	); err != nil {
		return "", err
	}
	if err := workbook.Write(filepath.Join(dir, ExampleLabels), workbook.Sheet{Name: "labels", Rows: labels}); err != nil {
		return "", err
	}
	if err := workbook.Write(filepath.Join(dir, ExampleReference), workbook.Sheet{Name: "reference", Rows: [][]any{
		{"year", "rate"},
		{1994, "8,1"}, {1996, 7.4}, {1998, 6.9}, {2000, 5.8}, {2002, 5.1}, {2004, 4.6}, {2006, 4.2}, {2008, 3.9},
	}}); err != nil {
		return "", err
	}

	fc := geojson.NewFeatureCollection()
	for _, c := range exampleCounties {
		f := geojson.NewFeature(orb.Polygon{{
			{c.x, c.y}, {c.x + 1, c.y}, {c.x + 1, c.y + 1}, {c.x, c.y + 1}, {c.x, c.y},
		}})
		f.Properties["id"] = c.id
		fc.Append(f)
	}
	gj, err := fc.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal boundaries: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ExampleBoundaries), gj, 0o644); err != nil {
		return "", fmt.Errorf("write boundaries: %w", err)
	}

	cfg := config.Default()
	cfg.Data.Workbook = ExampleWorkbook
	cfg.Data.SheetRef = workbook.SheetRef{Name: "data"}
	cfg.Adjacency.Workbook = ExampleWorkbook
	cfg.Adjacency.SheetRef = workbook.SheetRef{Name: "adjacency"}
	cfg.Labels.Workbook = ExampleLabels
	cfg.Reference.Workbook = ExampleReference
	cfg.Reference.Name = "Region"
	cfg.Reference.Years = map[string]float64{"1": 1996, "2": 2006}
	cfg.Boundaries.Path = ExampleBoundaries
	cfg.Archive.Path = "runs.db"
	out, err := config.Marshal(cfg)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, ExampleStudy)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return "", fmt.Errorf("write study: %w", err)
	}
	return path, nil
}
