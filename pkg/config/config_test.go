package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/ritzau/pattern-detector/pkg/model"
)

func flags() *pflag.FlagSet {
	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.String("topology", "", "")
	f.Int("port", 8080, "")
	f.String("format", FormatText, "")
	f.StringSlice("patterns", nil, "")
	f.Float64("tolerance", 0.001, "")
	f.Int("max-iterations", 10000, "")
	f.Float64("threshold", 1e-4, "")
	return f
}

func missing(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.toml")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil, missing(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8080 || cfg.Format != FormatText || cfg.WebMode {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Similarity.Tolerance != 0.001 || cfg.Similarity.Iterations != 10000 {
		t.Errorf("unexpected similarity defaults: %+v", cfg.Similarity)
	}
	if cfg.Detector.Threshold != 1e-4 {
		t.Errorf("unexpected threshold default: %g", cfg.Detector.Threshold)
	}
	if len(cfg.Patterns) != 0 {
		t.Errorf("patterns should default to all, got %v", cfg.Patterns)
	}
}

func TestLoadPriority(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pattern-detector.toml")
	content := `
topology = "from-file.yaml"
port = 9000

[similarity]
iterations = 500

[detector.connecting]
leaderelection = 1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PATTERN_DETECTOR_PORT", "9100")
	t.Setenv("PATTERN_DETECTOR_PATTERNS", "api-gateway,leader-election")

	f := flags()
	if err := f.Parse([]string{"--topology", "from-flag.yaml", "--tolerance", "0.01"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(f, path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"flag beats file", cfg.Topology, "from-flag.yaml"},
		{"env beats file", cfg.Port, 9100},
		{"file beats default", cfg.Similarity.Iterations, 500},
		{"mapped flag", cfg.Similarity.Tolerance, 0.01},
		{"nested file key", cfg.ConnectingRoles(model.PatternLeaderElection), 1},
		{"untouched default", cfg.Detector.Threshold, 1e-4},
		{"env list", strings.Join(cfg.Patterns, "|"), "api-gateway|leader-election"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(path, []byte("port = = 1"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(nil, path); err == nil {
		t.Error("Load() should fail on a malformed file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Topology:   "topology.yaml",
			Port:       8080,
			Format:     FormatText,
			Similarity: SimilarityConfig{Tolerance: 0.001, Iterations: 10000},
			Detector:   DetectorConfig{Threshold: 1e-4},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing topology", func(c *Config) { c.Topology = "" }, "topology"},
		{"bad port in web mode", func(c *Config) { c.WebMode = true; c.Port = 0 }, "port"},
		{"bad port ignored without web", func(c *Config) { c.Port = 0 }, ""},
		{"bad format", func(c *Config) { c.Format = "xml" }, "format"},
		{"unknown pattern", func(c *Config) { c.Patterns = []string{"saga"} }, "saga"},
		{"zero tolerance", func(c *Config) { c.Similarity.Tolerance = 0 }, "tolerance"},
		{"one iteration", func(c *Config) { c.Similarity.Iterations = 1 }, "iterations"},
		{"zero threshold", func(c *Config) { c.Detector.Threshold = 0 }, "threshold"},
		{"negative connecting", func(c *Config) { c.Detector.Connecting.APIGateway = -1 }, "connecting"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
