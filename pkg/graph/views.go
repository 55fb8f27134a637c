package graph

import (
	"sort"

	gonumgraph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Directed returns a gonum directed graph mirroring the current edges.
// Node IDs are vertex indices.
func (g *Graph) Directed() *simple.DirectedGraph {
	d := simple.NewDirectedGraph()
	for i := range g.vertices {
		d.AddNode(simple.Node(int64(i)))
	}

	for _, e := range g.Edges() {
		// gonum's simple graphs do not support self loops
		if e.From == e.To {
			continue
		}
		d.SetEdge(d.NewEdge(d.Node(int64(e.From)), d.Node(int64(e.To))))
	}
	return d
}

// Components returns the weakly connected components, each ordered by vertex index,
// and the components ordered by their first vertex
func (g *Graph) Components() [][]*Vertex {
	components := topo.ConnectedComponents(gonumgraph.Undirect{G: g.Directed()})

	result := make([][]*Vertex, 0, len(components))
	for _, nodes := range components {
		component := make([]*Vertex, 0, len(nodes))
		for _, node := range nodes {
			component = append(component, g.vertices[node.ID()])
		}
		sort.Slice(component, func(i, j int) bool {
			return component[i].index < component[j].index
		})
		result = append(result, component)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i][0].index < result[j][0].index
	})
	return result
}
