package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ritzau/pattern-detector/pkg/analysis/api"
	"github.com/ritzau/pattern-detector/pkg/detector"
	"github.com/ritzau/pattern-detector/pkg/graph"
	"github.com/ritzau/pattern-detector/pkg/logging"
	"github.com/ritzau/pattern-detector/pkg/model"
	"github.com/ritzau/pattern-detector/pkg/pattern"
	"github.com/ritzau/pattern-detector/pkg/pubsub"
)

// Sink receives progress and results of detection runs
type Sink interface {
	PublishStatus(state, message string, step, total int)
	PublishInstances(found pubsub.InstancesFound)
	SetResult(result *Result)
}

// PatternResult is the outcome for one template
type PatternResult struct {
	Kind       model.PatternKind
	Connecting int
	Instances  []graph.Reader
	Err        error
}

// Result is the outcome of one run over all selected templates
type Result struct {
	Source     string
	Reason     string
	System     *graph.Graph
	Components [][]*graph.Vertex
	Patterns   []PatternResult
	Started    time.Time
	Duration   time.Duration
}

// Pattern returns the result for kind
func (r *Result) Pattern(kind model.PatternKind) (*PatternResult, bool) {
	for i := range r.Patterns {
		if r.Patterns[i].Kind == kind {
			return &r.Patterns[i], true
		}
	}
	return nil, false
}

// InstanceCount returns the number of instances over all patterns
func (r *Result) InstanceCount() int {
	n := 0
	for _, p := range r.Patterns {
		n += len(p.Instances)
	}
	return n
}

// Err joins the per-pattern errors
func (r *Result) Err() error {
	var errs []error
	for _, p := range r.Patterns {
		if p.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Kind, p.Err))
		}
	}
	return errors.Join(errs...)
}

// Runner orchestrates discovery and detection
type Runner struct {
	source     api.Source
	templates  []*pattern.Template
	detector   *detector.Detector
	connecting detector.ConnectingFunc
	sink       Sink
	log        *slog.Logger
	mu         sync.Mutex // Prevent concurrent runs
	last       *Result
}

// RunOptions configures a single run
type RunOptions struct {
	Reason string // e.g. "initial detection", "topology modified"
}

// NewRunner creates a runner. A nil connecting func uses each template's default and
// a nil sink discards progress.
func NewRunner(source api.Source, templates []*pattern.Template, d *detector.Detector, connecting detector.ConnectingFunc, sink Sink) *Runner {
	if connecting == nil {
		connecting = detector.TemplateDefaults(templates)
	}
	if sink == nil {
		sink = discard{}
	}
	return &Runner{
		source:     source,
		templates:  templates,
		detector:   d,
		connecting: connecting,
		sink:       sink,
		log:        logging.New("analysis"),
	}
}

// Last returns the most recent successful result, or nil
func (r *Runner) Last() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Run discovers the topology into a fresh system graph and detects every template.
// A failing template is recorded in its result and does not stop the others; a
// failing source or a cancelled context aborts the run.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := len(r.templates) + 1
	started := time.Now()
	r.log.Info("Starting detection", "reason", opts.Reason, "source", r.source.Name())

	r.sink.PublishStatus(pubsub.StateLoading, "Loading topology...", 1, total)
	system := graph.New()
	if err := r.source.Run(ctx, system); err != nil {
		r.sink.PublishStatus(pubsub.StateFailed, fmt.Sprintf("Loading topology failed: %v", err), 1, total)
		return nil, fmt.Errorf("loading topology from %s: %w", r.source.Name(), err)
	}

	result := &Result{
		Source:     r.source.Name(),
		Reason:     opts.Reason,
		System:     system,
		Components: system.Components(),
		Started:    started,
	}

	for i, tmpl := range r.templates {
		if err := ctx.Err(); err != nil {
			r.sink.PublishStatus(pubsub.StateFailed, "Detection cancelled", i+2, total)
			return nil, err
		}

		step := i + 2
		r.sink.PublishStatus(pubsub.StateDetecting, fmt.Sprintf("Detecting %s...", tmpl.Name()), step, total)

		connecting := r.connecting(tmpl.Kind())
		instances, err := r.detector.Detect(system, tmpl, connecting)
		pr := PatternResult{Kind: tmpl.Kind(), Connecting: connecting, Instances: instances, Err: err}
		result.Patterns = append(result.Patterns, pr)

		found := pubsub.InstancesFound{
			Pattern:   tmpl.Name(),
			Instances: len(instances),
			Complete:  i == len(r.templates)-1,
		}
		if err != nil {
			found.Error = err.Error()
			r.log.Warn("Detection failed", "pattern", tmpl.Kind(), "error", err)
		} else {
			r.log.Debug("Detection finished", "pattern", tmpl.Kind(), "instances", len(instances))
		}
		r.sink.PublishInstances(found)
	}

	result.Duration = time.Since(started)
	r.last = result
	r.sink.SetResult(result)
	r.sink.PublishStatus(pubsub.StateReady, "Detection complete", total, total)

	r.log.Info("Detection complete",
		"reason", opts.Reason,
		"nodes", system.Len(),
		"instances", result.InstanceCount(),
		"durationMs", result.Duration.Milliseconds())
	return result, nil
}

type discard struct{}

func (discard) PublishStatus(string, string, int, int) {}
func (discard) PublishInstances(pubsub.InstancesFound) {}
func (discard) SetResult(*Result) {}
