package api

import (
	"context"

	"github.com/ritzau/pattern-detector/pkg/graph"
)

// Source discovers the system topology.
// Implementations encapsulate how workloads and their communication links are found
// (a topology file, an in-memory description) and add them to the system graph.
type Source interface {
	// Name returns a short description of the source (e.g. "file:topology.yaml").
	Name() string

	// Run adds the discovered vertices and edges to g, which is empty on entry, and
	// leaves g with a current adjacency matrix. It should respect ctx for cancellation.
	Run(ctx context.Context, g *graph.Graph) error
}
