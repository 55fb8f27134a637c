package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnsupportedRole is returned when a role index or role does not belong to a pattern kind
var ErrUnsupportedRole = errors.New("unsupported role")

// Unbounded marks a role without an upper occurrence limit
const Unbounded = math.MaxInt

// PatternKind identifies one of the supported architectural patterns
type PatternKind int

const (
	PatternNone PatternKind = iota // Raw system graph, no pattern applied
	PatternAPIGateway
	PatternScatterGather
	PatternLeaderElection
)

// Role is the part a vertex plays inside a pattern instance
type Role int

const (
	RoleNone Role = iota
	RoleAPIGateway
	RoleClient
	RoleService
	RoleRootContainer
	RoleChildContainer
	RoleLeader
	RoleFollower
)

var roleNames = map[Role]string{
	RoleNone:           "",
	RoleAPIGateway:     "apiGateway",
	RoleClient:         "client",
	RoleService:        "service",
	RoleRootContainer:  "rootContainer",
	RoleChildContainer: "childContainer",
	RoleLeader:         "leader",
	RoleFollower:       "follower",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// RoleBound is the inclusive occurrence range of one role in a pattern instance
type RoleBound struct {
	Role Role
	Min  int
	Max  int
}

// schema is the role-to-index table of every pattern kind. Role index 0 is the seed.
var schema = map[PatternKind][]RoleBound{
	PatternAPIGateway: {
		{Role: RoleAPIGateway, Min: 1, Max: 1},
		{Role: RoleClient, Min: 2, Max: Unbounded},
		{Role: RoleService, Min: 2, Max: Unbounded},
	},
	PatternScatterGather: {
		{Role: RoleRootContainer, Min: 1, Max: 1},
		{Role: RoleClient, Min: 1, Max: 1},
		{Role: RoleChildContainer, Min: 2, Max: Unbounded},
	},
	PatternLeaderElection: {
		{Role: RoleLeader, Min: 1, Max: 1},
		{Role: RoleFollower, Min: 2, Max: Unbounded},
	},
}

var kindNames = map[PatternKind]string{
	PatternNone:           "none",
	PatternAPIGateway:     "api-gateway",
	PatternScatterGather:  "scatter-gather",
	PatternLeaderElection: "leader-election",
}

// Kinds returns every supported pattern kind in a stable order
func Kinds() []PatternKind {
	return []PatternKind{PatternAPIGateway, PatternScatterGather, PatternLeaderElection}
}

// ParsePatternKind resolves a kind from its string form (e.g. "api-gateway")
func ParsePatternKind(s string) (PatternKind, error) {
	for _, kind := range Kinds() {
		if kindNames[kind] == s {
			return kind, nil
		}
	}
	return PatternNone, fmt.Errorf("unknown pattern kind %q", s)
}

func (k PatternKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("PatternKind(%d)", int(k))
}

// Schema returns the role bounds of the kind, nil for PatternNone
func (k PatternKind) Schema() []RoleBound {
	bounds := schema[k]
	out := make([]RoleBound, len(bounds))
	copy(out, bounds)
	return out
}

// Roles returns the ordered role list of the kind
func (k PatternKind) Roles() []Role {
	bounds := schema[k]
	roles := make([]Role, len(bounds))
	for i, b := range bounds {
		roles[i] = b.Role
	}
	return roles
}

// RoleCount returns the number of roles of the kind
func (k PatternKind) RoleCount() int {
	return len(schema[k])
}

// RoleIndex returns the index of role in the kind's role list, or -1
func (k PatternKind) RoleIndex(role Role) int {
	for i, b := range schema[k] {
		if b.Role == role {
			return i
		}
	}
	return -1
}

// RoleAt returns the role at index i
func (k PatternKind) RoleAt(i int) (Role, error) {
	bounds := schema[k]
	if i < 0 || i >= len(bounds) {
		return RoleNone, fmt.Errorf("%s role index %d: %w", k, i, ErrUnsupportedRole)
	}
	return bounds[i].Role, nil
}

// Bounds returns the inclusive [min, max] occurrence range of the role at index i
func (k PatternKind) Bounds(i int) (int, int, error) {
	bounds := schema[k]
	if i < 0 || i >= len(bounds) {
		return 0, 0, fmt.Errorf("%s role index %d: %w", k, i, ErrUnsupportedRole)
	}
	return bounds[i].Min, bounds[i].Max, nil
}

// Within reports whether count occurrences of the role at index i satisfy its bounds
func (k PatternKind) Within(i, count int) bool {
	lo, hi, err := k.Bounds(i)
	if err != nil {
		return false
	}
	return count >= lo && count <= hi
}

// UsesReplicaAdjacency reports whether the kind is scored against the replica adjacency
// of the system graph. Leader election matches interchangeable followers.
func (k PatternKind) UsesReplicaAdjacency() bool {
	return k == PatternLeaderElection
}
