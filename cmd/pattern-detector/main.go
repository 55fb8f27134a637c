package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/ritzau/pattern-detector/pkg/analysis"
	"github.com/ritzau/pattern-detector/pkg/config"
	"github.com/ritzau/pattern-detector/pkg/detector"
	"github.com/ritzau/pattern-detector/pkg/discovery"
	"github.com/ritzau/pattern-detector/pkg/logging"
	"github.com/ritzau/pattern-detector/pkg/output"
	"github.com/ritzau/pattern-detector/pkg/pattern"
	"github.com/ritzau/pattern-detector/pkg/pubsub"
	"github.com/ritzau/pattern-detector/pkg/similarity"
	"github.com/ritzau/pattern-detector/pkg/watcher"
	"github.com/ritzau/pattern-detector/pkg/web"
)

const (
	quietPeriod = 500 * time.Millisecond
	maxWait     = 5 * time.Second
)

func main() {
	f := pflag.NewFlagSet("pattern-detector", pflag.ExitOnError)
	f.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pattern-detector [flags] [topology-file]\n\n")
		f.PrintDefaults()
	}

	configPath := f.String("config", "", "Config file (default ./"+config.DefaultFile+" when present)")
	f.StringP("topology", "t", "", "Topology file (YAML, JSON or TOML)")
	f.Bool("web", false, "Serve results over HTTP instead of printing them")
	f.Int("port", 8080, "Port for the web server (only used with --web)")
	f.Bool("watch", false, "Re-run detection when the topology file changes")
	f.StringP("format", "f", config.FormatText, "Console output: text, json or dot")
	f.StringSlice("patterns", nil, "Patterns to detect (default all): api-gateway, scatter-gather, leader-election")
	f.String("verbosity", "", "Log level: trace, debug, info, warn, error")
	f.CountP("verbose", "v", "Increase log verbosity (repeatable)")
	f.Bool("logjson", false, "Log as JSON")
	f.Float64("tolerance", similarity.DefaultTolerance, "Similarity convergence tolerance")
	f.Int("max-iterations", similarity.DefaultMaxIterations, "Similarity iteration bound")
	f.Float64("threshold", detector.DefaultThreshold, "Minimum similarity score of a candidate")
	f.Parse(os.Args[1:])

	if err := applyPositional(f); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load(f, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration:\n%v\n", err)
		os.Exit(2)
	}

	level, err := logging.ParseLevel(cfg.Verbosity, cfg.VerboseCnt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	logging.SetLevel(level)
	logging.SetJSONOutput(cfg.LogJSON)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Error("Detection failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// applyPositional uses the first positional argument as the topology file unless
// --topology was given
func applyPositional(f *pflag.FlagSet) error {
	if f.NArg() == 0 || f.Changed("topology") {
		return nil
	}
	if err := f.Set("topology", f.Arg(0)); err != nil {
		return fmt.Errorf("topology argument %q: %w", f.Arg(0), err)
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config) error {
	registry, err := pattern.Builtin()
	if err != nil {
		return err
	}
	templates, err := registry.Select(cfg.Patterns)
	if err != nil {
		return err
	}

	algorithm := similarity.New(similarity.Options{
		Tolerance:     cfg.Similarity.Tolerance,
		MaxIterations: cfg.Similarity.Iterations,
	})
	d := detector.New(algorithm, cfg.Detector.Threshold)
	source := discovery.NewFileSource(cfg.Topology)

	if cfg.WebMode {
		return serve(ctx, cfg, source, templates, d)
	}

	sink := &consoleSink{w: os.Stdout, format: cfg.Format}
	runner := analysis.NewRunner(source, templates, d, cfg.ConnectingRoles, sink)

	result, err := runner.Run(ctx, analysis.RunOptions{Reason: "initial detection"})
	if err != nil && !cfg.Watch {
		return err
	}
	if cfg.Watch {
		if err != nil {
			logging.Warn("Initial detection failed, waiting for changes", "error", err)
		}
		return watch(ctx, cfg.Topology, runner)
	}
	return result.Err()
}

// serve runs detection in the background while the web server is up
func serve(ctx context.Context, cfg *config.Config, source *discovery.FileSource, templates []*pattern.Template, d *detector.Detector) error {
	server := web.NewServer()
	runner := analysis.NewRunner(source, templates, d, cfg.ConnectingRoles, server)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx, cfg.Port)
	}()

	go func() {
		if _, err := runner.Run(ctx, analysis.RunOptions{Reason: "initial detection"}); err != nil {
			logging.Error("Initial detection failed", "error", err)
		}
		if cfg.Watch {
			if err := watch(ctx, cfg.Topology, runner); err != nil {
				logging.Error("Watching topology failed", "error", err)
			}
		}
	}()

	return <-errCh
}

// watch re-runs detection on debounced topology changes until ctx is done
func watch(ctx context.Context, topology string, runner *analysis.Runner) error {
	fw, err := watcher.NewFileWatcher(topology)
	if err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		return err
	}

	debouncer := watcher.NewDebouncer(fw.Events(), quietPeriod, maxWait)
	debouncer.Start(ctx)

	logging.Info("Watching topology for changes", "path", topology)
	runner.Watch(ctx, debouncer.Output())
	return nil
}

// consoleSink prints every completed run to w in the configured format
type consoleSink struct {
	w      io.Writer
	format string
}

func (s *consoleSink) PublishStatus(state, message string, step, total int) {
	if state == pubsub.StateFailed {
		logging.Warn(message, "step", step, "total", total)
		return
	}
	logging.Debug(message, "state", state, "step", step, "total", total)
}

func (s *consoleSink) PublishInstances(found pubsub.InstancesFound) {}

func (s *consoleSink) SetResult(result *analysis.Result) {
	var err error
	switch s.format {
	case config.FormatJSON:
		err = output.WriteJSON(s.w, result)
	case config.FormatDOT:
		err = output.WriteDOT(s.w, result)
	default:
		output.WriteReport(s.w, result)
	}
	if err != nil {
		logging.Error("Failed to write result", "format", s.format, "error", err)
	}
}
