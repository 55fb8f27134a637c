package graph

import "gonum.org/v1/gonum/mat"

// ReplicaGroups partitions the vertices into groups of interchangeable peers.
//
// Two vertices u and v are interchangeable when swapping them leaves the graph
// unchanged: they have the same successors and the same predecessors among the other
// vertices, and any edge between them runs both ways. The shared neighbourhood must
// not be empty. A one-way edge such as leader->follower keeps the pair apart. Groups are built greedily in vertex order; a vertex joins the first
// group whose every member it is interchangeable with. Singleton groups are included.
func (g *Graph) ReplicaGroups() [][]int {
	if !g.HasMatrix() {
		return nil
	}

	var groups [][]int
	for v := range g.vertices {
		placed := false
		for gi, group := range groups {
			if g.interchangeableWithAll(v, group) {
				groups[gi] = append(group, v)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []int{v})
		}
	}
	return groups
}

func (g *Graph) interchangeableWithAll(v int, group []int) bool {
	for _, u := range group {
		if !g.interchangeable(u, v) {
			return false
		}
	}
	return true
}

func (g *Graph) interchangeable(u, v int) bool {
	if g.matrix[u][v]&EdgeForward != g.matrix[v][u]&EdgeForward {
		return false
	}

	shared := false
	for w := range g.matrix {
		if w == u || w == v {
			continue
		}
		uOut, vOut := g.matrix[u][w]&EdgeForward, g.matrix[v][w]&EdgeForward
		uIn, vIn := g.matrix[w][u]&EdgeForward, g.matrix[w][v]&EdgeForward
		if uOut != vOut || uIn != vIn {
			return false
		}
		if uOut != 0 || uIn != 0 {
			shared = true
		}
	}
	return shared
}

// ReplicaAdjacency returns the numeric adjacency with every edge between two members
// of the same replica group removed. Traffic among interchangeable peers (heartbeats,
// gossip between followers) is dropped so that each peer is scored like a plain leaf
// and all peers of a group receive identical similarity scores.
func (g *Graph) ReplicaAdjacency() *mat.Dense {
	a := g.Adjacency()
	if a == nil {
		return nil
	}

	for _, group := range g.ReplicaGroups() {
		if len(group) < 2 {
			continue
		}
		for _, u := range group {
			for _, v := range group {
				if u != v {
					a.Set(u, v, 0)
				}
			}
		}
	}
	return a
}
