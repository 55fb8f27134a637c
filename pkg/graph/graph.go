package graph

import (
	"fmt"

	"github.com/ritzau/pattern-detector/pkg/model"
	"gonum.org/v1/gonum/mat"
)

// Connection codes stored in the typed adjacency matrix
const (
	ConnectionUndefined = -1 // Index outside the matrix
	NoEdge              = 0
	EdgeForward         = 1 // Directed from row to column
	EdgeBackward        = 2 // Directed from column to row
	EdgeBoth            = 3
)

// Reader is the read-only view of a graph handed to detectors and renderers
type Reader interface {
	Len() int
	Vertices() []*Vertex
	VertexByName(name string) (*Vertex, bool)
	VertexByIndex(index int) (*Vertex, bool)
	Connection(from, to int) int
	Edges() []Edge
	Pattern() model.PatternKind
	RoleAppearances() []int
	RoleAppearance(role model.Role) int
	HasMatrix() bool
	MatrixSize() int
	Adjacency() *mat.Dense
	ReplicaAdjacency() *mat.Dense
}

// Edge is a directed edge between two vertex indices
type Edge struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Graph holds an ordered vertex list and a typed adjacency matrix.
// The matrix is sized when GenerateMatrix is called; adding vertices afterwards
// leaves it stale until it is regenerated.
type Graph struct {
	vertices        []*Vertex
	byName          map[string]*Vertex
	matrix          [][]int
	pattern         model.PatternKind
	roleAppearances []int
}

var _ Reader = (*Graph)(nil)

// New creates an empty system graph without a pattern tag
func New() *Graph {
	return &Graph{
		vertices: make([]*Vertex, 0),
		byName:   make(map[string]*Vertex),
	}
}

// NewPatternGraph creates an empty graph tagged with kind
func NewPatternGraph(kind model.PatternKind) *Graph {
	g := New()
	g.SetPattern(kind)
	return g
}

// SetPattern tags the graph with kind and resets the role appearance counters
func (g *Graph) SetPattern(kind model.PatternKind) {
	g.pattern = kind
	g.roleAppearances = make([]int, kind.RoleCount())
}

// Pattern returns the pattern tag, PatternNone for a raw system graph
func (g *Graph) Pattern() model.PatternKind {
	return g.pattern
}

// AddVertex appends a vertex without a role
func (g *Graph) AddVertex(name string) (*Vertex, error) {
	return g.add(&Vertex{name: name})
}

// AddRoledVertex appends a vertex with a role of the graph's pattern
func (g *Graph) AddRoledVertex(name string, role model.Role) (*Vertex, error) {
	if g.pattern.RoleIndex(role) < 0 {
		return nil, fmt.Errorf("role %s is not part of pattern %s: %w", role, g.pattern, ErrInvalidVertex)
	}
	return g.add(&Vertex{name: name, role: role})
}

// AddVertexCopy appends an independent copy of src (usually owned by another graph)
// carrying the given role. The copy gets a fresh index; src is left untouched.
func (g *Graph) AddVertexCopy(src *Vertex, role model.Role) (*Vertex, error) {
	if src == nil {
		return nil, fmt.Errorf("nil source vertex: %w", ErrInvalidVertex)
	}
	if role != model.RoleNone && g.pattern.RoleIndex(role) < 0 {
		return nil, fmt.Errorf("role %s is not part of pattern %s: %w", role, g.pattern, ErrInvalidVertex)
	}
	v := src.clone()
	v.role = role
	return g.add(v)
}

func (g *Graph) add(v *Vertex) (*Vertex, error) {
	if v.name == "" {
		return nil, fmt.Errorf("vertex without name: %w", ErrInvalidVertex)
	}
	if _, exists := g.byName[v.name]; exists {
		return nil, fmt.Errorf("%q: %w", v.name, ErrDuplicateVertex)
	}

	v.index = len(g.vertices)
	g.vertices = append(g.vertices, v)
	g.byName[v.name] = v

	if v.role != model.RoleNone {
		g.roleAppearances[g.pattern.RoleIndex(v.role)]++
	}
	return v, nil
}

// GenerateMatrix (re)creates the adjacency matrix sized to the current vertex count.
// All previously added edges are dropped.
func (g *Graph) GenerateMatrix() {
	n := len(g.vertices)
	g.matrix = make([][]int, n)
	for i := range g.matrix {
		g.matrix[i] = make([]int, n)
	}
}

// HasMatrix reports whether a matrix exists and matches the vertex count
func (g *Graph) HasMatrix() bool {
	return g.matrix != nil && len(g.matrix) == len(g.vertices)
}

// MatrixSize returns the dimension of the matrix at generation time
func (g *Graph) MatrixSize() int {
	return len(g.matrix)
}

// AddEdge adds a directed edge between two member vertices
func (g *Graph) AddEdge(from, to *Vertex) error {
	if !g.owns(from) || !g.owns(to) {
		return fmt.Errorf("edge %v -> %v: %w", from, to, ErrNotMember)
	}
	return g.AddEdgeByIndex(from.index, to.index)
}

// AddEdgeByIndex adds a directed edge between two vertex indices
func (g *Graph) AddEdgeByIndex(from, to int) error {
	if !g.HasMatrix() {
		return fmt.Errorf("edge %d -> %d on %d vertices (matrix %d): %w",
			from, to, len(g.vertices), len(g.matrix), ErrStaleMatrix)
	}
	n := len(g.matrix)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("edge %d -> %d with dimension %d: %w", from, to, n, ErrIndexOutOfRange)
	}

	g.matrix[from][to] |= EdgeForward
	g.matrix[to][from] |= EdgeBackward
	return nil
}

func (g *Graph) owns(v *Vertex) bool {
	return v != nil && v.index >= 0 && v.index < len(g.vertices) && g.vertices[v.index] == v
}

// Connection returns the typed edge code between two indices, or ConnectionUndefined
// when either index is outside the matrix
func (g *Graph) Connection(from, to int) int {
	n := len(g.matrix)
	if from < 0 || from >= n || to < 0 || to >= n {
		return ConnectionUndefined
	}
	return g.matrix[from][to]
}

// Connected reports whether there is an edge in either direction
func (g *Graph) Connected(a, b int) bool {
	return g.Connection(a, b) > NoEdge
}

// Edges returns all directed edges ordered by source then target index
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for i, row := range g.matrix {
		for j, code := range row {
			if code&EdgeForward != 0 {
				edges = append(edges, Edge{From: i, To: j})
			}
		}
	}
	return edges
}

// Len returns the number of vertices
func (g *Graph) Len() int {
	return len(g.vertices)
}

// Vertices returns the ordered vertex list
func (g *Graph) Vertices() []*Vertex {
	vertices := make([]*Vertex, len(g.vertices))
	copy(vertices, g.vertices)
	return vertices
}

// VertexByName looks a vertex up by its unique name
func (g *Graph) VertexByName(name string) (*Vertex, bool) {
	v, ok := g.byName[name]
	return v, ok
}

// VertexByIndex looks a vertex up by its position
func (g *Graph) VertexByIndex(index int) (*Vertex, bool) {
	if index < 0 || index >= len(g.vertices) {
		return nil, false
	}
	return g.vertices[index], true
}

// RoleAppearances returns a copy of the per-role counters
func (g *Graph) RoleAppearances() []int {
	counts := make([]int, len(g.roleAppearances))
	copy(counts, g.roleAppearances)
	return counts
}

// RoleAppearance returns how many vertices hold role, or -1 if the role is not
// part of the graph's pattern
func (g *Graph) RoleAppearance(role model.Role) int {
	i := g.pattern.RoleIndex(role)
	if i < 0 {
		return -1
	}
	return g.roleAppearances[i]
}

// Adjacency returns the numeric directed adjacency (1 for row -> column), or nil
// when no current matrix exists
func (g *Graph) Adjacency() *mat.Dense {
	if !g.HasMatrix() || len(g.vertices) == 0 {
		return nil
	}
	n := len(g.matrix)
	a := mat.NewDense(n, n, nil)
	for i, row := range g.matrix {
		for j, code := range row {
			if code&EdgeForward != 0 {
				a.Set(i, j, 1)
			}
		}
	}
	return a
}

// Clear resets the graph to the empty state: no vertices, no matrix, no pattern
func (g *Graph) Clear() {
	g.vertices = make([]*Vertex, 0)
	g.byName = make(map[string]*Vertex)
	g.matrix = nil
	g.pattern = model.PatternNone
	g.roleAppearances = nil
}
