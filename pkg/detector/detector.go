// Package detector turns similarity scores into validated, role-labelled pattern
// instances.
package detector

import (
	"fmt"
	"sort"

	"github.com/ritzau/pattern-detector/pkg/graph"
	"github.com/ritzau/pattern-detector/pkg/logging"
	"github.com/ritzau/pattern-detector/pkg/model"
	"github.com/ritzau/pattern-detector/pkg/pattern"
	"github.com/ritzau/pattern-detector/pkg/similarity"
	"gonum.org/v1/gonum/mat"
)

// DefaultThreshold is the minimum score for a (template vertex, system vertex) pair
// to become a candidate
const DefaultThreshold = 1e-4

// Detector extracts instances of pattern templates from a system graph
type Detector struct {
	algorithm *similarity.Algorithm
	threshold float64
}

// New creates a detector; a non-positive threshold falls back to DefaultThreshold
func New(algorithm *similarity.Algorithm, threshold float64) *Detector {
	if algorithm == nil {
		algorithm = similarity.New(similarity.DefaultOptions())
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{algorithm: algorithm, threshold: threshold}
}

// Threshold returns the candidate acceptance threshold
func (d *Detector) Threshold() float64 {
	return d.threshold
}

// candidate pairs a system vertex with the template vertex it may play
type candidate struct {
	system   int
	template int
	score    float64
}

// Detect returns every validated instance of tmpl in system. Template vertices
// 1..connecting are inner members that later candidates may attach to; the rest are
// margin members. An empty result means the pattern is not present. Instances are
// returned read-only.
func (d *Detector) Detect(system graph.Reader, tmpl *pattern.Template, connecting int) ([]graph.Reader, error) {
	if connecting < 0 {
		return nil, fmt.Errorf("connecting member count %d: %w", connecting, graph.ErrStructural)
	}
	if tmpl == nil || tmpl.Graph().Len() == 0 {
		return nil, nil
	}

	scores, err := d.algorithm.Perform(system, tmpl.Graph())
	if err != nil {
		return nil, err
	}
	if scores == nil {
		return nil, nil
	}

	seeds, inner, margin := classify(scores, d.threshold, connecting)
	logging.Debug("Classified candidates",
		"pattern", tmpl.Kind(),
		"seeds", len(seeds),
		"inner", len(inner),
		"margin", len(margin))

	ordered := append(byScore(inner), byScore(margin)...)

	var instances []graph.Reader
	for _, seed := range seeds {
		instance, err := extract(system, tmpl, seed, ordered, connecting)
		if err != nil {
			return nil, err
		}
		if instance == nil {
			continue
		}
		logging.Debug("Found pattern instance",
			"pattern", tmpl.Kind(),
			"seed", instance.Vertices()[0].Name(),
			"members", instance.Len())
		instances = append(instances, instance)
	}
	return instances, nil
}

// classify splits every pair scoring at least threshold into seed, inner and margin
// candidates, in row-major discovery order. Seeds therefore come in system vertex order.
func classify(scores *mat.Dense, threshold float64, connecting int) (seeds, inner, margin []candidate) {
	rows, cols := scores.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			score := scores.At(i, j)
			if score < threshold {
				continue
			}
			c := candidate{system: j, template: i, score: score}
			switch {
			case i == 0:
				seeds = append(seeds, c)
			case i <= connecting:
				inner = append(inner, c)
			default:
				margin = append(margin, c)
			}
		}
	}
	return seeds, inner, margin
}

// byScore returns a copy sorted by descending score, keeping discovery order on ties
func byScore(cands []candidate) []candidate {
	out := make([]candidate, len(cands))
	copy(out, cands)
	sort.SliceStable(out, func(a, b int) bool { return out[a].score > out[b].score })
	return out
}

// accumulator is the state of one extraction pass. A new one is made for every seed.
type accumulator struct {
	kind       model.PatternKind
	connecting int
	members    []candidate
	used       map[int]bool
	counts     []int
}

func newAccumulator(kind model.PatternKind, connecting int) *accumulator {
	return &accumulator{
		kind:       kind,
		connecting: connecting,
		used:       make(map[int]bool),
		counts:     make([]int, kind.RoleCount()),
	}
}

func (a *accumulator) accept(c candidate, role model.Role) error {
	r := a.kind.RoleIndex(role)
	if r < 0 {
		return fmt.Errorf("%s: role %s: %w", a.kind, role, model.ErrUnsupportedRole)
	}
	a.members = append(a.members, c)
	a.used[c.system] = true
	a.counts[r]++
	return nil
}

// core reports whether a member is the seed or an inner member
func (a *accumulator) core(c candidate) bool {
	return c.template <= a.connecting
}

// attached reports whether system vertex j has an edge to an accepted core member
func (a *accumulator) attached(system graph.Reader, j int) bool {
	for _, m := range a.members {
		if a.core(m) && system.Connection(j, m.system) > graph.NoEdge {
			return true
		}
	}
	return false
}

func (a *accumulator) valid() bool {
	for r, count := range a.counts {
		if !a.kind.Within(r, count) {
			return false
		}
	}
	return true
}

// extract grows one instance around seed and returns it, or nil when it does not
// satisfy the role bounds
func extract(system graph.Reader, tmpl *pattern.Template, seed candidate, ordered []candidate, connecting int) (*graph.Graph, error) {
	acc := newAccumulator(tmpl.Kind(), connecting)

	role, err := tmpl.RoleOf(seed.template)
	if err != nil {
		return nil, err
	}
	if err := acc.accept(seed, role); err != nil {
		return nil, err
	}

	for _, c := range ordered {
		if acc.used[c.system] || !acc.attached(system, c.system) {
			continue
		}
		role, err := tmpl.RoleOf(c.template)
		if err != nil {
			return nil, err
		}
		if err := acc.accept(c, role); err != nil {
			return nil, err
		}
	}

	if !acc.valid() {
		logging.Trace("Discarded candidate instance", "pattern", tmpl.Kind(), "seed", seed.system, "counts", acc.counts)
		return nil, nil
	}
	return materialize(system, tmpl, acc)
}

// materialize copies the accepted members into a new pattern graph and mirrors the
// system edges of every pair that involves a core member
func materialize(system graph.Reader, tmpl *pattern.Template, acc *accumulator) (*graph.Graph, error) {
	instance := graph.NewPatternGraph(tmpl.Kind())
	for _, m := range acc.members {
		src, ok := system.VertexByIndex(m.system)
		if !ok {
			return nil, fmt.Errorf("system vertex %d: %w", m.system, graph.ErrIndexOutOfRange)
		}
		role, err := tmpl.RoleOf(m.template)
		if err != nil {
			return nil, err
		}
		if _, err := instance.AddVertexCopy(src, role); err != nil {
			return nil, err
		}
	}

	instance.GenerateMatrix()

	for a, ma := range acc.members {
		for b := a + 1; b < len(acc.members); b++ {
			mb := acc.members[b]
			if !acc.core(ma) && !acc.core(mb) {
				continue
			}
			code := system.Connection(ma.system, mb.system)
			if code <= graph.NoEdge {
				continue
			}
			if code&graph.EdgeForward != 0 {
				if err := instance.AddEdgeByIndex(a, b); err != nil {
					return nil, err
				}
			}
			if code&graph.EdgeBackward != 0 {
				if err := instance.AddEdgeByIndex(b, a); err != nil {
					return nil, err
				}
			}
		}
	}
	return instance, nil
}
