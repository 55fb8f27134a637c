package output

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/ritzau/pattern-detector/pkg/analysis"
	"github.com/ritzau/pattern-detector/pkg/graph"
)

// dotNode carries a vertex name and role into the DOT encoder
type dotNode struct {
	id   int64
	name string
	role string
}

func (n dotNode) ID() int64 { return n.id }
func (n dotNode) DOTID() string { return n.name }
func (n dotNode) Attributes() []encoding.Attribute {
	if n.role == "" {
		return nil
	}
	return []encoding.Attribute{
		{Key: "label", Value: fmt.Sprintf("%s\n%s", n.name, n.role)},
		{Key: "role", Value: n.role},
	}
}

// MarshalDOT renders g as a DOT digraph named name. Self loops are dropped.
func MarshalDOT(g graph.Reader, name string) ([]byte, error) {
	d := simple.NewDirectedGraph()
	for _, v := range g.Vertices() {
		n := dotNode{id: int64(v.Index()), name: v.Name()}
		if v.HasRole() {
			n.role = v.Role().String()
		}
		d.AddNode(n)
	}
	for _, e := range g.Edges() {
		if e.From == e.To {
			continue
		}
		d.SetEdge(d.NewEdge(d.Node(int64(e.From)), d.Node(int64(e.To))))
	}

	out, err := dot.Marshal(d, name, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s as DOT: %w", name, err)
	}
	return out, nil
}

// InstanceName is the DOT graph name of the i-th instance of a pattern
func InstanceName(p analysis.PatternResult, i int) string {
	return fmt.Sprintf("%s_%d", p.Kind, i)
}

// WriteDOT writes every instance of every pattern as its own digraph
func WriteDOT(w io.Writer, r *analysis.Result) error {
	for _, p := range r.Patterns {
		for i, inst := range p.Instances {
			out, err := MarshalDOT(inst, InstanceName(p, i))
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%s\n\n", out); err != nil {
				return err
			}
		}
	}
	return nil
}
