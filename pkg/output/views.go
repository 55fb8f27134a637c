package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/ritzau/pattern-detector/pkg/analysis"
	"github.com/ritzau/pattern-detector/pkg/graph"
	"github.com/ritzau/pattern-detector/pkg/model"
)

// VertexView is the serialisable form of a vertex
type VertexView struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Role  string `json:"role,omitempty"`
}

// EdgeView is a directed edge by vertex name
type EdgeView struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// GraphView is the serialisable form of a system graph or pattern instance
type GraphView struct {
	Pattern  string       `json:"pattern,omitempty"`
	Vertices []VertexView `json:"vertices"`
	Edges    []EdgeView   `json:"edges"`
}

// PatternView groups the instances found for one template
type PatternView struct {
	Pattern    string      `json:"pattern"`
	Connecting int         `json:"connectingRoles"`
	Instances  []GraphView `json:"instances"`
	Error      string      `json:"error,omitempty"`
}

// ReportView is the JSON document of a complete run
type ReportView struct {
	Source     string        `json:"source"`
	Reason     string        `json:"reason,omitempty"`
	Started    time.Time     `json:"started"`
	DurationMs int64         `json:"durationMs"`
	System     GraphView     `json:"system"`
	Components [][]string    `json:"components"`
	Patterns   []PatternView `json:"patterns"`
}

// NewGraphView converts g. Vertices keep their index order and edges are listed by
// source then target index.
func NewGraphView(g graph.Reader) GraphView {
	view := GraphView{
		Vertices: make([]VertexView, 0, g.Len()),
		Edges:    make([]EdgeView, 0),
	}
	if kind := g.Pattern(); kind != model.PatternNone {
		view.Pattern = kind.String()
	}

	vertices := g.Vertices()
	for _, v := range vertices {
		vv := VertexView{Index: v.Index(), Name: v.Name()}
		if v.HasRole() {
			vv.Role = v.Role().String()
		}
		view.Vertices = append(view.Vertices, vv)
	}
	for _, e := range g.Edges() {
		view.Edges = append(view.Edges, EdgeView{From: vertices[e.From].Name(), To: vertices[e.To].Name()})
	}
	return view
}

// NewPatternView converts the instances found for one template
func NewPatternView(p analysis.PatternResult) PatternView {
	view := PatternView{
		Pattern:    p.Kind.String(),
		Connecting: p.Connecting,
		Instances:  make([]GraphView, 0, len(p.Instances)),
	}
	for _, inst := range p.Instances {
		view.Instances = append(view.Instances, NewGraphView(inst))
	}
	if p.Err != nil {
		view.Error = p.Err.Error()
	}
	return view
}

// NewReportView converts a run result
func NewReportView(r *analysis.Result) ReportView {
	view := ReportView{
		Source:     r.Source,
		Reason:     r.Reason,
		Started:    r.Started,
		DurationMs: r.Duration.Milliseconds(),
		System:     NewGraphView(r.System),
		Components: make([][]string, 0, len(r.Components)),
		Patterns:   make([]PatternView, 0, len(r.Patterns)),
	}
	for _, component := range r.Components {
		names := make([]string, len(component))
		for i, v := range component {
			names[i] = v.Name()
		}
		view.Components = append(view.Components, names)
	}
	for _, p := range r.Patterns {
		view.Patterns = append(view.Patterns, NewPatternView(p))
	}
	return view
}

// WriteJSON writes the report as indented JSON
func WriteJSON(w io.Writer, r *analysis.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewReportView(r))
}
