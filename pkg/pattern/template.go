package pattern

import (
	"fmt"

	"github.com/ritzau/pattern-detector/pkg/graph"
	"github.com/ritzau/pattern-detector/pkg/model"
)

// DefaultConnectingRoles is the inner member count every built-in template starts
// with: only the seed is core, all other roles attach to it as margin members.
const DefaultConnectingRoles = 0

// Template is the canonical graph of one pattern kind. It is built once and never
// mutated; consumers only get its read-only view.
type Template struct {
	kind            model.PatternKind
	graph           *graph.Graph
	connectingRoles int
}

// Kind returns the pattern kind the template embodies
func (t *Template) Kind() model.PatternKind {
	return t.kind
}

// Name returns the display name of the template
func (t *Template) Name() string {
	return t.kind.String()
}

// Graph returns the read-only template graph
func (t *Template) Graph() graph.Reader {
	return t.graph
}

// ConnectingRoles returns the default number of template vertices after the seed that
// are treated as inner members during extraction
func (t *Template) ConnectingRoles() int {
	return t.connectingRoles
}

// RoleOf returns the role of the template vertex at index i
func (t *Template) RoleOf(i int) (model.Role, error) {
	v, ok := t.graph.VertexByIndex(i)
	if !ok {
		return model.RoleNone, fmt.Errorf("%s template vertex %d: %w", t.kind, i, graph.ErrIndexOutOfRange)
	}
	return v.Role(), nil
}

// member is one vertex of a template under construction
type member struct {
	name string
	role model.Role
}

// build assembles a template graph: vertices first, then the matrix, then edges by name
func build(kind model.PatternKind, connecting int, members []member, edges [][2]string) (*Template, error) {
	g := graph.NewPatternGraph(kind)
	for _, m := range members {
		if _, err := g.AddRoledVertex(m.name, m.role); err != nil {
			return nil, fmt.Errorf("building %s template: %w", kind, err)
		}
	}

	g.GenerateMatrix()

	for _, e := range edges {
		from, _ := g.VertexByName(e[0])
		to, _ := g.VertexByName(e[1])
		if err := g.AddEdge(from, to); err != nil {
			return nil, fmt.Errorf("building %s template: %w", kind, err)
		}
	}

	return &Template{kind: kind, graph: g, connectingRoles: connecting}, nil
}

// APIGateway builds the gateway template: every client calls the gateway, the gateway
// calls every service
func APIGateway() (*Template, error) {
	return build(model.PatternAPIGateway, DefaultConnectingRoles,
		[]member{
			{"ApiGateway", model.RoleAPIGateway},
			{"Client1", model.RoleClient},
			{"Client2", model.RoleClient},
			{"Service1", model.RoleService},
			{"Service2", model.RoleService},
			{"Service3", model.RoleService},
		},
		[][2]string{
			{"Client1", "ApiGateway"},
			{"Client2", "ApiGateway"},
			{"ApiGateway", "Service1"},
			{"ApiGateway", "Service2"},
			{"ApiGateway", "Service3"},
		})
}

// ScatterGather builds the scatter-gather template: a client calls the root container,
// which fans out to its child containers
func ScatterGather() (*Template, error) {
	return build(model.PatternScatterGather, DefaultConnectingRoles,
		[]member{
			{"RootContainer", model.RoleRootContainer},
			{"Client", model.RoleClient},
			{"ChildContainer1", model.RoleChildContainer},
			{"ChildContainer2", model.RoleChildContainer},
			{"ChildContainer3", model.RoleChildContainer},
		},
		[][2]string{
			{"Client", "RootContainer"},
			{"RootContainer", "ChildContainer1"},
			{"RootContainer", "ChildContainer2"},
			{"RootContainer", "ChildContainer3"},
		})
}

// LeaderElection builds the leader election template: the leader reaches every follower
func LeaderElection() (*Template, error) {
	return build(model.PatternLeaderElection, DefaultConnectingRoles,
		[]member{
			{"Leader", model.RoleLeader},
			{"Follower1", model.RoleFollower},
			{"Follower2", model.RoleFollower},
		},
		[][2]string{
			{"Leader", "Follower1"},
			{"Leader", "Follower2"},
		})
}
