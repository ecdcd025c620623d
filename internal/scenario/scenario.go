package scenario

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/seedgraph/internal/ir"
)

// Scenario is one seed document loaded from a file.
type Scenario struct {
	// Path is the file the scenario was read from; empty for inline documents.
	Path string

	Spec ir.GraphSpec
}

// Name returns the document name.
func (s *Scenario) Name() string {
	return s.Spec.Name
}

// Extensions lists the accepted scenario file extensions.
var Extensions = []string{".yaml", ".yml", ".json"}

// IsScenarioFile reports whether path has a scenario extension.
func IsScenarioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Load reads and decodes a scenario file. Unknown top-level keys are
// rejected so typos ("grpah:") fail loudly.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	spec, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Scenario{Path: path, Spec: spec}, nil
}

// Decode parses a seed document in the given format ("yaml" or "json") and
// checks the fields every scenario needs.
func Decode(data []byte, format string) (ir.GraphSpec, error) {
	var spec ir.GraphSpec
	switch format {
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&spec); err != nil {
			return ir.GraphSpec{}, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&spec); err != nil {
			return ir.GraphSpec{}, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return ir.GraphSpec{}, fmt.Errorf("unknown scenario format %q", format)
	}

	if err := validate(spec); err != nil {
		return ir.GraphSpec{}, fmt.Errorf("invalid scenario: %w", err)
	}
	return spec, nil
}

// validate checks document-level fields. Node structure is the parser's job.
func validate(spec ir.GraphSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(spec.Graph) == 0 {
		return fmt.Errorf("graph list is required and must be non-empty")
	}
	return nil
}
