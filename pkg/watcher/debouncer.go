package watcher

import (
	"context"
	"time"

	"github.com/ritzau/pattern-detector/pkg/logging"
)

// Debouncer collapses bursts of change events into one, so a save triggers a single
// detection run
type Debouncer struct {
	input       <-chan ChangeEvent
	output      chan ChangeEvent
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a debouncer. A batch is flushed after quietPeriod without
// events, or maxWait after its first event at the latest.
func NewDebouncer(input <-chan ChangeEvent, quietPeriod, maxWait time.Duration) *Debouncer {
	return &Debouncer{
		input:       input,
		output:      make(chan ChangeEvent, 10),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Start forwards debounced events until ctx is done or the input closes
func (d *Debouncer) Start(ctx context.Context) {
	go d.run(ctx)
}

// Output returns the channel of debounced events. It is closed when the debouncer stops.
func (d *Debouncer) Output() <-chan ChangeEvent {
	return d.output
}

// batch accumulates the events of one burst
type batch struct {
	event  ChangeEvent
	paths  map[string]struct{}
	events int
}

// add merges e into the batch; the last event's type wins
func (b *batch) add(e ChangeEvent) {
	b.event.Type = e.Type
	for _, p := range e.Paths {
		if _, dup := b.paths[p]; dup {
			continue
		}
		b.paths[p] = struct{}{}
		b.event.Paths = append(b.event.Paths, p)
	}
	b.events++
}

func (d *Debouncer) run(ctx context.Context) {
	defer close(d.output)

	var (
		current  *batch
		quiet    <-chan time.Time
		deadline <-chan time.Time
	)

	emit := func() {
		quiet, deadline = nil, nil
		if current == nil {
			return
		}
		logging.Debug("Flushing topology changes", "events", current.events, "paths", len(current.event.Paths))
		current.event.Timestamp = time.Now()
		d.output <- current.event
		current = nil
	}

	for {
		select {
		case e, ok := <-d.input:
			if !ok {
				emit()
				return
			}
			if current == nil {
				current = &batch{paths: make(map[string]struct{})}
				deadline = time.After(d.maxWait)
			}
			current.add(e)
			quiet = time.After(d.quietPeriod)
		case <-quiet:
			emit()
		case <-deadline:
			emit()
		case <-ctx.Done():
			emit()
			return
		}
	}
}
