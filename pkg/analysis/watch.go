package analysis

import (
	"context"
	"strings"

	"github.com/ritzau/pattern-detector/pkg/watcher"
)

// Watch re-runs detection for every debounced topology change until ctx is done or
// events closes. A removed topology file keeps the previous result.
func (r *Runner) Watch(ctx context.Context, events <-chan watcher.ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Type == watcher.ChangeTypeRemoved {
				r.log.Warn("Topology removed, keeping previous result", "paths", strings.Join(event.Paths, ","))
				continue
			}

			if _, err := r.Run(ctx, RunOptions{Reason: "topology " + event.Type.String()}); err != nil {
				r.log.Error("Re-run failed", "error", err)
			}
		}
	}
}
