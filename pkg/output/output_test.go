package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/ritzau/pattern-detector/pkg/analysis"
	"github.com/ritzau/pattern-detector/pkg/graph"
	"github.com/ritzau/pattern-detector/pkg/model"
)

type member struct {
	name string
	role model.Role
}

func instance(t *testing.T, kind model.PatternKind, members []member, edges [][2]int) *graph.Graph {
	t.Helper()
	g := graph.NewPatternGraph(kind)
	for _, m := range members {
		if _, err := g.AddRoledVertex(m.name, m.role); err != nil {
			t.Fatalf("AddRoledVertex(%s) error = %v", m.name, err)
		}
	}
	g.GenerateMatrix()
	for _, e := range edges {
		if err := g.AddEdgeByIndex(e[0], e[1]); err != nil {
			t.Fatalf("AddEdgeByIndex(%v) error = %v", e, err)
		}
	}
	return g
}

func sampleResult(t *testing.T) *analysis.Result {
	t.Helper()
	system, err := graph.Build(
		[]string{"web", "mobile", "edge", "orders", "billing", "etcd-0", "etcd-1", "etcd-2"},
		[][2]string{
			{"web", "edge"}, {"mobile", "edge"}, {"edge", "orders"}, {"edge", "billing"},
			{"etcd-0", "etcd-1"}, {"etcd-0", "etcd-2"},
		})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	gateway := instance(t, model.PatternAPIGateway, []member{
		{"edge", model.RoleAPIGateway},
		{"web", model.RoleClient},
		{"mobile", model.RoleClient},
		{"orders", model.RoleService},
		{"billing", model.RoleService},
	}, [][2]int{{1, 0}, {2, 0}, {0, 3}, {0, 4}})

	leader := instance(t, model.PatternLeaderElection, []member{
		{"etcd-0", model.RoleLeader},
		{"etcd-1", model.RoleFollower},
		{"etcd-2", model.RoleFollower},
	}, [][2]int{{0, 1}, {0, 2}})

	return &analysis.Result{
		Source:     "file:shop.yaml",
		Reason:     "initial detection",
		System:     system,
		Components: system.Components(),
		Patterns: []analysis.PatternResult{
			{Kind: model.PatternAPIGateway, Instances: []graph.Reader{gateway}},
			{Kind: model.PatternScatterGather, Connecting: -1, Err: graph.ErrStructural},
			{Kind: model.PatternLeaderElection, Instances: []graph.Reader{leader}},
		},
		Started:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration: 12 * time.Millisecond,
	}
}

func TestNewGraphView(t *testing.T) {
	result := sampleResult(t)
	view := NewGraphView(result.Patterns[0].Instances[0])

	if view.Pattern != "api-gateway" {
		t.Errorf("Expected pattern api-gateway, got %q", view.Pattern)
	}
	if len(view.Vertices) != 5 || len(view.Edges) != 4 {
		t.Fatalf("Expected 5 vertices and 4 edges, got %d and %d", len(view.Vertices), len(view.Edges))
	}
	if view.Vertices[0].Role != "apiGateway" {
		t.Errorf("Expected seed role apiGateway, got %q", view.Vertices[0].Role)
	}
	if view.Edges[0] != (EdgeView{From: "edge", To: "orders"}) {
		t.Errorf("Unexpected first edge %+v", view.Edges[0])
	}

	system := NewGraphView(result.System)
	if system.Pattern != "" || system.Vertices[0].Role != "" {
		t.Errorf("System view should carry no pattern or roles: %+v", system)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleResult(t)); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	var report ReportView
	if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if report.DurationMs != 12 || report.Source != "file:shop.yaml" {
		t.Errorf("Unexpected header %+v", report)
	}
	if len(report.Components) != 2 || report.Components[1][0] != "etcd-0" {
		t.Errorf("Unexpected components %v", report.Components)
	}
	if len(report.Patterns) != 3 {
		t.Fatalf("Expected 3 patterns, got %d", len(report.Patterns))
	}
	if report.Patterns[1].Error == "" || len(report.Patterns[1].Instances) != 0 {
		t.Errorf("Failed pattern should carry its error: %+v", report.Patterns[1])
	}
	if !strings.Contains(buf.String(), `"instances": []`) {
		t.Error("Empty instance lists should encode as [] rather than null")
	}
}

func TestMarshalDOT(t *testing.T) {
	result := sampleResult(t)
	out, err := MarshalDOT(result.Patterns[2].Instances[0], InstanceName(result.Patterns[2], 0))
	if err != nil {
		t.Fatalf("MarshalDOT() error = %v", err)
	}

	text := string(out)
	for _, want := range []string{
		`strict digraph "leader-election_0" {`,
		`"etcd-0" -> "etcd-1";`,
		`"etcd-0" -> "etcd-2";`,
		`role=leader`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("DOT output missing %q:\n%s", want, text)
		}
	}
}

func TestWriteDOTSkipsFailedPatterns(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDOT(&buf, sampleResult(t)); err != nil {
		t.Fatalf("WriteDOT() error = %v", err)
	}
	if n := strings.Count(buf.String(), "strict digraph"); n != 2 {
		t.Errorf("Expected 2 digraphs, got %d", n)
	}
}

func TestWriteReport(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	WriteReport(&buf, sampleResult(t))
	text := buf.String()

	for _, want := range []string{
		"Topology: file:shop.yaml",
		"Nodes: 8, edges: 6, components: 2",
		"API-GATEWAY (connecting roles: 0)",
		"apiGateway: edge",
		"client: web, mobile",
		"service: orders, billing",
		"Failed: structural error",
		"follower: etcd-1, etcd-2",
		"Summary: 2 instance(s) of 3 pattern(s) in 12ms",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}
}

func TestWriteReportWithoutInstances(t *testing.T) {
	color.NoColor = true

	result := sampleResult(t)
	result.Patterns = []analysis.PatternResult{{Kind: model.PatternScatterGather}}

	var buf bytes.Buffer
	WriteReport(&buf, result)
	if !strings.Contains(buf.String(), "No instances") {
		t.Errorf("Expected an empty pattern notice:\n%s", buf.String())
	}
	if errors.Is(result.Err(), graph.ErrStructural) {
		t.Error("no pattern failed in this result")
	}
}
