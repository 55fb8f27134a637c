package graph

import "github.com/ritzau/pattern-detector/pkg/model"

// Vertex is a named node of a Graph. Its index always equals its position in the
// owning graph's vertex list; its role stays RoleNone until a template or the
// detector assigns one. A vertex is owned by exactly one graph.
type Vertex struct {
	name  string
	index int
	role  model.Role
}

// Name returns the unique name of the vertex
func (v *Vertex) Name() string {
	return v.name
}

// Index returns the position of the vertex in its graph
func (v *Vertex) Index() int {
	return v.index
}

// Role returns the role assigned to the vertex, RoleNone if unassigned
func (v *Vertex) Role() model.Role {
	return v.role
}

// HasRole reports whether a role was assigned
func (v *Vertex) HasRole() bool {
	return v.role != model.RoleNone
}

func (v *Vertex) String() string {
	if v.HasRole() {
		return v.name + "(" + v.role.String() + ")"
	}
	return v.name
}

// clone returns an independent copy that shares nothing with v
func (v *Vertex) clone() *Vertex {
	c := *v
	return &c
}
