package detector

import (
	"github.com/ritzau/pattern-detector/pkg/graph"
	"github.com/ritzau/pattern-detector/pkg/model"
	"github.com/ritzau/pattern-detector/pkg/pattern"
)

// Result is the outcome of detecting one template
type Result struct {
	Template  *pattern.Template
	Instances []graph.Reader
	Err       error
}

// ConnectingFunc chooses the inner member count for a pattern kind
type ConnectingFunc func(kind model.PatternKind) int

// TemplateDefaults uses each template's own connecting role count
func TemplateDefaults(templates []*pattern.Template) ConnectingFunc {
	byKind := make(map[model.PatternKind]int, len(templates))
	for _, t := range templates {
		byKind[t.Kind()] = t.ConnectingRoles()
	}
	return func(kind model.PatternKind) int {
		return byKind[kind]
	}
}

// DetectAll runs every template independently against system. A failing template is
// reported in its own result and does not stop the others.
func (d *Detector) DetectAll(system graph.Reader, templates []*pattern.Template, connectingFor ConnectingFunc) []Result {
	if connectingFor == nil {
		connectingFor = TemplateDefaults(templates)
	}

	results := make([]Result, 0, len(templates))
	for _, tmpl := range templates {
		instances, err := d.Detect(system, tmpl, connectingFor(tmpl.Kind()))
		results = append(results, Result{Template: tmpl, Instances: instances, Err: err})
	}
	return results
}
