package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ritzau/pattern-detector/pkg/analysis"
	"github.com/ritzau/pattern-detector/pkg/graph"
)

// WriteReport writes a colored, human readable report of a run
func WriteReport(w io.Writer, r *analysis.Result) {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	// Header
	bold.Fprintln(w, "Pattern Detector - Report")
	bold.Fprintln(w, "=========================")
	fmt.Fprintf(w, "Topology: %s\n", r.Source)
	fmt.Fprintf(w, "Nodes: %d, edges: %d, components: %d\n", r.System.Len(), len(r.System.Edges()), len(r.Components))
	fmt.Fprintln(w)

	for _, p := range r.Patterns {
		bold.Fprintf(w, "%s", strings.ToUpper(p.Kind.String()))
		fmt.Fprintf(w, " (connecting roles: %d)\n", p.Connecting)

		switch {
		case p.Err != nil:
			red.Fprintf(w, "  Failed: %v\n", p.Err)
		case len(p.Instances) == 0:
			yellow.Fprintln(w, "  No instances")
		default:
			for i, inst := range p.Instances {
				green.Fprintf(w, "  Instance %d", i+1)
				fmt.Fprintf(w, " (%d nodes, %d edges)\n", inst.Len(), len(inst.Edges()))
				for _, line := range memberLines(inst) {
					cyan.Fprintf(w, "    %s\n", line)
				}
			}
		}
		fmt.Fprintln(w)
	}

	summary := green
	if r.Err() != nil {
		summary = red
	} else if r.InstanceCount() == 0 {
		summary = yellow
	}
	summary.Fprintf(w, "Summary: %d instance(s) of %d pattern(s) in %dms\n",
		r.InstanceCount(), len(r.Patterns), r.Duration.Milliseconds())
}

// memberLines lists the members of an instance grouped by role, in role order
func memberLines(inst graph.Reader) []string {
	kind := inst.Pattern()
	byRole := make(map[string][]string)
	for _, v := range inst.Vertices() {
		role := v.Role().String()
		byRole[role] = append(byRole[role], v.Name())
	}

	var lines []string
	for _, role := range kind.Roles() {
		names := byRole[role.String()]
		if len(names) == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, strings.Join(names, ", ")))
	}
	return lines
}
