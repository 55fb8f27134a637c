package graph

import "fmt"

// Build creates a system graph from vertex names and directed edges given by name
func Build(names []string, edges [][2]string) (*Graph, error) {
	g := New()
	if err := Populate(g, names, edges); err != nil {
		return nil, err
	}
	return g, nil
}

// Populate adds the named vertices to g, regenerates its matrix and adds the edges.
// An edge naming a vertex that was not added is a structural error.
func Populate(g *Graph, names []string, edges [][2]string) error {
	for _, name := range names {
		if _, err := g.AddVertex(name); err != nil {
			return err
		}
	}

	g.GenerateMatrix()

	for _, e := range edges {
		from, ok := g.VertexByName(e[0])
		if !ok {
			return fmt.Errorf("edge %s -> %s: unknown vertex %q: %w", e[0], e[1], e[0], ErrNotMember)
		}
		to, ok := g.VertexByName(e[1])
		if !ok {
			return fmt.Errorf("edge %s -> %s: unknown vertex %q: %w", e[0], e[1], e[1], ErrNotMember)
		}
		if err := g.AddEdge(from, to); err != nil {
			return err
		}
	}
	return nil
}
