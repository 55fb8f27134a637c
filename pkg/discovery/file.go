package discovery

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ritzau/pattern-detector/pkg/analysis/api"
	"github.com/ritzau/pattern-detector/pkg/graph"
	"github.com/ritzau/pattern-detector/pkg/logging"
)

// FileSource reads the topology from a YAML, JSON or TOML file
type FileSource struct {
	path string
}

var _ api.Source = (*FileSource)(nil)

// NewFileSource creates a source for path; the format follows the file extension
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path returns the topology file path
func (s *FileSource) Path() string {
	return s.path
}

func (s *FileSource) Name() string {
	return "file:" + s.path
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	}
	return nil, fmt.Errorf("unsupported topology format %q", filepath.Ext(path))
}

// Load parses the file into a descriptor
func (s *FileSource) Load() (*Descriptor, error) {
	parser, err := parserFor(s.path)
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(s.path), parser); err != nil {
		return nil, fmt.Errorf("failed to read topology %s: %w", s.path, err)
	}

	var d Descriptor
	if err := k.Unmarshal("", &d); err != nil {
		return nil, fmt.Errorf("failed to decode topology %s: %w", s.path, err)
	}
	return &d, nil
}

func (s *FileSource) Run(ctx context.Context, g *graph.Graph) error {
	d, err := s.Load()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := d.Apply(g); err != nil {
		return fmt.Errorf("topology %s: %w", s.path, err)
	}

	logging.Info("Loaded topology",
		"source", s.Name(),
		"nodes", g.Len(),
		"edges", len(g.Edges()))
	return nil
}
