// Package graph validates county adjacency matrices and converts them into
// the neighbour-list form used by the solvers.
package graph

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"imrmap/internal/domain"
)

// Graph is an unweighted, undirected neighbourhood graph over counties in
// canonical order. Node i (1-based) is the county with Index i, in both
// the neighbour lists and the gonum graph.
type Graph struct {
	counties  []domain.County
	byID      map[domain.CountyID]int
	neighbors [][]int // 0-based slots, 1-based neighbour indices, ascending
	g         *simple.UndirectedGraph
}

// Build aligns the matrix rows to counties by key and returns the graph.
// Labels are matched against county IDs first, then display names
// (case-insensitive). Every county must appear exactly once. The matrix
// must already be symmetric; Build checks again and fails fast if not.
func Build(m *Matrix, counties []domain.County) (*Graph, error) {
	const op = "graph.build"
	if _, err := CheckSymmetry(m); err != nil {
		return nil, err
	}
	if m.Size() != len(counties) {
		return nil, domain.Errorf(op, domain.KindAlignment, "adjacency has %d rows, dataset has %d counties", m.Size(), len(counties))
	}

	byID := make(map[domain.CountyID]int, len(counties))
	byName := make(map[string]int, len(counties))
	for i, c := range counties {
		if c.Index != i+1 {
			return nil, domain.Errorf(op, domain.KindAlignment, "county %s has index %d at position %d", c.ID, c.Index, i+1)
		}
		byID[c.ID] = i
		byName[normalize(c.Name)] = i
	}

	// rowOf[i] is the matrix row holding county i.
	rowOf := make([]int, len(counties))
	for i := range rowOf {
		rowOf[i] = -1
	}
	for r, label := range m.Labels {
		i, ok := byID[domain.CountyID(label)]
		if !ok {
			i, ok = byName[normalize(label)]
		}
		if !ok {
			return nil, domain.Errorf(op, domain.KindAlignment, "adjacency label %q matches no county", label)
		}
		if rowOf[i] >= 0 {
			return nil, domain.Errorf(op, domain.KindAlignment, "county %s appears twice in adjacency (rows %d and %d)", counties[i].ID, rowOf[i]+1, r+1)
		}
		rowOf[i] = r
	}

	g := &Graph{
		counties:  counties,
		byID:      byID,
		neighbors: make([][]int, len(counties)),
		g:         simple.NewUndirectedGraph(),
	}
	for _, c := range counties {
		g.g.AddNode(simple.Node(c.Index))
	}
	for i := range counties {
		for j := range counties {
			if i == j {
				continue
			}
			if m.Cells[rowOf[i]][rowOf[j]] != 0 {
				g.neighbors[i] = append(g.neighbors[i], j+1)
				if j > i {
					g.g.SetEdge(simple.Edge{F: simple.Node(i + 1), T: simple.Node(j + 1)})
				}
			}
		}
	}
	return g, nil
}

// FromNeighbors builds a graph directly from neighbour lists keyed by
// county ID. Asymmetric relations are rejected.
func FromNeighbors(counties []domain.County, adj map[domain.CountyID][]domain.CountyID) (*Graph, error) {
	n := len(counties)
	m := &Matrix{Labels: make([]string, n), Cells: make([][]float64, n)}
	pos := make(map[domain.CountyID]int, n)
	for i, c := range counties {
		m.Labels[i] = string(c.ID)
		m.Cells[i] = make([]float64, n)
		pos[c.ID] = i
	}
	for from, tos := range adj {
		i, ok := pos[from]
		if !ok {
			return nil, domain.Errorf("graph.neighbors", domain.KindAlignment, "unknown county %s", from)
		}
		for _, to := range tos {
			j, ok := pos[to]
			if !ok {
				return nil, domain.Errorf("graph.neighbors", domain.KindAlignment, "unknown county %s", to)
			}
			m.Cells[i][j] = 1
		}
	}
	return Build(m, counties)
}

// Size returns the number of nodes.
func (g *Graph) Size() int { return len(g.counties) }

// Counties returns the node order.
func (g *Graph) Counties() []domain.County { return g.counties }

// Neighbors returns the 1-based indices of id's neighbours, ascending.
func (g *Graph) Neighbors(id domain.CountyID) []int {
	i, ok := g.byID[id]
	if !ok {
		return nil
	}
	return g.neighbors[i]
}

// NeighborsOf returns the neighbours of the 1-based node index.
func (g *Graph) NeighborsOf(index int) []int {
	if index < 1 || index > len(g.neighbors) {
		return nil
	}
	return g.neighbors[index-1]
}

// Degree returns the number of neighbours of id, or -1 for an unknown
// county.
func (g *Graph) Degree(id domain.CountyID) int {
	i, ok := g.byID[id]
	if !ok {
		return -1
	}
	return g.g.From(int64(i + 1)).Len()
}

// Edges returns the number of undirected edges.
func (g *Graph) Edges() int { return g.g.Edges().Len() }

// Islands returns counties without neighbours.
func (g *Graph) Islands() []domain.CountyID {
	var out []domain.CountyID
	for _, c := range g.counties {
		if g.Degree(c.ID) == 0 {
			out = append(out, c.ID)
		}
	}
	return out
}

// MeanDegree returns the average number of neighbours per county.
func (g *Graph) MeanDegree() float64 {
	if len(g.counties) == 0 {
		return 0
	}
	return 2 * float64(g.Edges()) / float64(len(g.counties))
}

// Components returns the connected components as lists of county IDs,
// each in canonical order, ordered by their first member.
func (g *Graph) Components() [][]domain.CountyID {
	var groups [][]int
	for _, comp := range topo.ConnectedComponents(g.g) {
		idx := make([]int, len(comp))
		for k, n := range comp {
			idx[k] = int(n.ID())
		}
		sort.Ints(idx)
		groups = append(groups, idx)
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a][0] < groups[b][0] })

	comps := make([][]domain.CountyID, len(groups))
	for k, idx := range groups {
		ids := make([]domain.CountyID, len(idx))
		for m, i := range idx {
			ids[m] = g.counties[i-1].ID
		}
		comps[k] = ids
	}
	return comps
}

// WriteINLA writes the graph in R-INLA's text format: the node count on the
// first line, then one line per node "i k j1 ... jk" with 1-based indices.
func (g *Graph) WriteINLA(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n", len(g.neighbors))
	for i, nb := range g.neighbors {
		parts := make([]string, 0, len(nb)+2)
		parts = append(parts, fmt.Sprint(i+1), fmt.Sprint(len(nb)))
		for _, j := range nb {
			parts = append(parts, fmt.Sprint(j))
		}
		fmt.Fprintln(bw, strings.Join(parts, " "))
	}
	return bw.Flush()
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
