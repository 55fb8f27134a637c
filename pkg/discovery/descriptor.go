// Package discovery provides topology sources that populate the system graph.
package discovery

import (
	"context"

	"github.com/ritzau/pattern-detector/pkg/analysis/api"
	"github.com/ritzau/pattern-detector/pkg/graph"
)

// Descriptor is the declarative form of a system topology
type Descriptor struct {
	Name  string `koanf:"name" json:"name,omitempty"`
	Nodes []Node `koanf:"nodes" json:"nodes"`
	Edges []Link `koanf:"edges" json:"edges"`
}

// Node is one workload unit
type Node struct {
	Name string `koanf:"name" json:"name"`
}

// Link is an observed communication link. Bidirectional links add both directions.
type Link struct {
	From          string `koanf:"from" json:"from"`
	To            string `koanf:"to" json:"to"`
	Bidirectional bool   `koanf:"bidirectional" json:"bidirectional,omitempty"`
}

// Apply adds the described topology to g. Nodes keep their declared order, which
// becomes the vertex order of the system graph.
func (d *Descriptor) Apply(g *graph.Graph) error {
	names := make([]string, 0, len(d.Nodes))
	for _, n := range d.Nodes {
		names = append(names, n.Name)
	}

	edges := make([][2]string, 0, len(d.Edges))
	for _, e := range d.Edges {
		edges = append(edges, [2]string{e.From, e.To})
		if e.Bidirectional {
			edges = append(edges, [2]string{e.To, e.From})
		}
	}

	return graph.Populate(g, names, edges)
}

// StaticSource serves a topology held in memory
type StaticSource struct {
	Descriptor Descriptor
}

var _ api.Source = (*StaticSource)(nil)

// NewStaticSource creates a source for an in-memory descriptor
func NewStaticSource(d Descriptor) *StaticSource {
	return &StaticSource{Descriptor: d}
}

func (s *StaticSource) Name() string {
	if s.Descriptor.Name != "" {
		return "static:" + s.Descriptor.Name
	}
	return "static"
}

func (s *StaticSource) Run(ctx context.Context, g *graph.Graph) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Descriptor.Apply(g)
}
