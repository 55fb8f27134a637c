package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/ritzau/pattern-detector/pkg/model"
)

const (
	// DefaultFile is read from the working directory when present
	DefaultFile = "pattern-detector.toml"
	envPrefix   = "PATTERN_DETECTOR_"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatDOT  = "dot"
)

// Config holds all configuration for the application
type Config struct {
	Topology   string           `koanf:"topology"`
	WebMode    bool             `koanf:"web"`
	Port       int              `koanf:"port"`
	Watch      bool             `koanf:"watch"`
	Format     string           `koanf:"format"`
	Patterns   []string         `koanf:"patterns"`
	Verbosity  string           `koanf:"verbosity"`
	VerboseCnt int              `koanf:"verbose"`
	LogJSON    bool             `koanf:"logjson"`
	Similarity SimilarityConfig `koanf:"similarity"`
	Detector   DetectorConfig   `koanf:"detector"`
}

// SimilarityConfig tunes the convergence loop
type SimilarityConfig struct {
	Tolerance  float64 `koanf:"tolerance"`
	Iterations int     `koanf:"iterations"`
}

// DetectorConfig tunes candidate selection
type DetectorConfig struct {
	Threshold  float64          `koanf:"threshold"`
	Connecting ConnectingConfig `koanf:"connecting"`
}

// ConnectingConfig is the inner member count per pattern kind
type ConnectingConfig struct {
	APIGateway     int `koanf:"apigateway"`
	ScatterGather  int `koanf:"scattergather"`
	LeaderElection int `koanf:"leaderelection"`
}

// flagKeys maps CLI flag names onto nested config keys
var flagKeys = map[string]string{
	"tolerance":      "similarity.tolerance",
	"max-iterations": "similarity.iterations",
	"threshold":      "detector.threshold",
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"topology":                           "",
		"web":                                false,
		"port":                               8080,
		"watch":                              false,
		"format":                             FormatText,
		"patterns":                           []string{},
		"verbosity":                          "",
		"verbose":                            0,
		"logjson":                            false,
		"similarity.tolerance":               0.001,
		"similarity.iterations":              10000,
		"detector.threshold":                 1e-4,
		"detector.connecting.apigateway":     0,
		"detector.connecting.scattergather":  0,
		"detector.connecting.leaderelection": 0,
	}
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults. An empty path means DefaultFile;
// a missing file is skipped, a malformed one is an error.
func Load(f *pflag.FlagSet, path string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(makeMapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file (optional)
	if path == "" {
		path = DefaultFile
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	// 3. Environment variables, e.g. PATTERN_DETECTOR_SIMILARITY_TOLERANCE=0.01
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.ProviderWithFlag(f, ".", k, func(fl *pflag.Flag) (string, interface{}) {
			key := fl.Name
			if mapped, ok := flagKeys[key]; ok {
				key = mapped
			}
			return key, posflag.FlagVal(f, fl)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Patterns = splitList(cfg.Patterns)

	return &cfg, nil
}

// splitList flattens comma separated entries, as they arrive from the environment
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate rejects settings the detector cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Topology == "" {
		errs = append(errs, errors.New("topology file is required"))
	}
	if c.WebMode && (c.Port < 1 || c.Port > 65535) {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch c.Format {
	case FormatText, FormatJSON, FormatDOT:
	default:
		errs = append(errs, fmt.Errorf("unknown format %q", c.Format))
	}
	for _, name := range c.Patterns {
		if _, err := model.ParsePatternKind(name); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Similarity.Tolerance <= 0 {
		errs = append(errs, fmt.Errorf("similarity tolerance must be positive, got %g", c.Similarity.Tolerance))
	}
	if c.Similarity.Iterations < 2 {
		errs = append(errs, fmt.Errorf("similarity iterations must be at least 2, got %d", c.Similarity.Iterations))
	}
	if c.Detector.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("detector threshold must be positive, got %g", c.Detector.Threshold))
	}
	for _, kind := range model.Kinds() {
		if n := c.ConnectingRoles(kind); n < 0 {
			errs = append(errs, fmt.Errorf("%s connecting roles must not be negative, got %d", kind, n))
		}
	}

	return errors.Join(errs...)
}

// ConnectingRoles returns the configured inner member count for kind
func (c *Config) ConnectingRoles(kind model.PatternKind) int {
	switch kind {
	case model.PatternAPIGateway:
		return c.Detector.Connecting.APIGateway
	case model.PatternScatterGather:
		return c.Detector.Connecting.ScatterGather
	case model.PatternLeaderElection:
		return c.Detector.Connecting.LeaderElection
	}
	return 0
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

// Read unflattens the dotted default keys the way koanf expects them
func (p *mapProvider) Read() (map[string]interface{}, error) {
	out := make(map[string]interface{})
	for key, v := range p.m {
		parts := strings.Split(key, ".")
		node := out
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]interface{})
			if !ok {
				child = make(map[string]interface{})
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = v
	}
	return out, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
