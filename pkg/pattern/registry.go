package pattern

import (
	"fmt"
	"sort"

	"github.com/ritzau/pattern-detector/pkg/model"
)

// Registry holds one template per pattern kind
type Registry struct {
	templates map[model.PatternKind]*Template
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{templates: make(map[model.PatternKind]*Template)}
}

// Builtin returns a registry with the API Gateway, Scatter-Gather and Leader Election
// templates
func Builtin() (*Registry, error) {
	r := NewRegistry()
	for _, builder := range []func() (*Template, error){APIGateway, ScatterGather, LeaderElection} {
		t, err := builder()
		if err != nil {
			return nil, err
		}
		r.Register(t)
	}
	return r, nil
}

// Register adds a template, replacing any previous template of the same kind
func (r *Registry) Register(t *Template) {
	if t == nil {
		return
	}
	r.templates[t.Kind()] = t
}

// Lookup returns the template of kind
func (r *Registry) Lookup(kind model.PatternKind) (*Template, bool) {
	t, ok := r.templates[kind]
	return t, ok
}

// All returns every template ordered by kind
func (r *Registry) All() []*Template {
	out := make([]*Template, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind() < out[j].Kind() })
	return out
}

// Select returns the templates named in kinds (e.g. "api-gateway"), all of them when
// kinds is empty
func (r *Registry) Select(kinds []string) ([]*Template, error) {
	if len(kinds) == 0 {
		return r.All(), nil
	}

	out := make([]*Template, 0, len(kinds))
	for _, name := range kinds {
		kind, err := model.ParsePatternKind(name)
		if err != nil {
			return nil, err
		}
		t, ok := r.templates[kind]
		if !ok {
			return nil, fmt.Errorf("no template registered for %s", kind)
		}
		out = append(out, t)
	}
	return out, nil
}
