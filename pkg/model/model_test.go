package model

import (
	"errors"
	"testing"
)

func TestRoleIndex(t *testing.T) {
	tests := []struct {
		name string
		kind PatternKind
		role Role
		want int
	}{
		{"gateway seed", PatternAPIGateway, RoleAPIGateway, 0},
		{"gateway client", PatternAPIGateway, RoleClient, 1},
		{"gateway service", PatternAPIGateway, RoleService, 2},
		{"scatter client", PatternScatterGather, RoleClient, 1},
		{"scatter child", PatternScatterGather, RoleChildContainer, 2},
		{"leader", PatternLeaderElection, RoleLeader, 0},
		{"follower", PatternLeaderElection, RoleFollower, 1},
		{"role from another pattern", PatternLeaderElection, RoleService, -1},
		{"no pattern", PatternNone, RoleClient, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.kind.RoleIndex(tt.role); got != tt.want {
				t.Errorf("RoleIndex(%s) = %d, want %d", tt.role, got, tt.want)
			}
		})
	}
}

func TestSeedRoleIsUnique(t *testing.T) {
	for _, kind := range Kinds() {
		lo, hi, err := kind.Bounds(0)
		if err != nil {
			t.Fatalf("%s: Bounds(0) error = %v", kind, err)
		}
		if lo != 1 || hi != 1 {
			t.Errorf("%s: seed bounds = [%d,%d], want [1,1]", kind, lo, hi)
		}
	}
}

func TestRoleAtOutOfRange(t *testing.T) {
	_, err := PatternLeaderElection.RoleAt(2)
	if !errors.Is(err, ErrUnsupportedRole) {
		t.Errorf("RoleAt(2) error = %v, want ErrUnsupportedRole", err)
	}

	if _, _, err := PatternAPIGateway.Bounds(-1); !errors.Is(err, ErrUnsupportedRole) {
		t.Errorf("Bounds(-1) error = %v, want ErrUnsupportedRole", err)
	}
}

func TestWithin(t *testing.T) {
	if !PatternAPIGateway.Within(1, 2) {
		t.Error("2 clients should satisfy the gateway client bound")
	}
	if PatternAPIGateway.Within(1, 1) {
		t.Error("1 client should violate the gateway client bound")
	}
	if PatternScatterGather.Within(1, 2) {
		t.Error("2 clients should violate the scatter-gather client bound")
	}
	if !PatternLeaderElection.Within(1, 1000) {
		t.Error("followers should be unbounded")
	}
	if PatternLeaderElection.Within(5, 1) {
		t.Error("unknown role index should never be within bounds")
	}
}

func TestParsePatternKind(t *testing.T) {
	for _, kind := range Kinds() {
		got, err := ParsePatternKind(kind.String())
		if err != nil {
			t.Fatalf("ParsePatternKind(%q) error = %v", kind.String(), err)
		}
		if got != kind {
			t.Errorf("ParsePatternKind(%q) = %v, want %v", kind.String(), got, kind)
		}
	}

	if _, err := ParsePatternKind("saga"); err == nil {
		t.Error("expected error for unknown pattern kind")
	}
}

func TestUsesReplicaAdjacency(t *testing.T) {
	for _, kind := range Kinds() {
		want := kind == PatternLeaderElection
		if got := kind.UsesReplicaAdjacency(); got != want {
			t.Errorf("%s.UsesReplicaAdjacency() = %v, want %v", kind, got, want)
		}
	}
}

func TestSchemaIsCopied(t *testing.T) {
	s := PatternAPIGateway.Schema()
	s[0].Max = 42

	if _, hi, _ := PatternAPIGateway.Bounds(0); hi != 1 {
		t.Errorf("mutating Schema() result changed the registry: max = %d", hi)
	}
}
