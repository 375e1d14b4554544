package query

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// LoadGroup reads a query group document (YAML or JSON) from path.
func LoadGroup(path string) (*Group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	g, err := ParseGroup(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// ParseGroup decodes a query group document and validates it. Unknown keys
// are rejected.
func ParseGroup(data []byte) (*Group, error) {
	var g Group
	if err := yaml.UnmarshalStrict(data, &g); err != nil {
		return nil, fmt.Errorf("parsing query group: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// MarshalGroup encodes a query group as YAML.
func MarshalGroup(g *Group) ([]byte, error) {
	return yaml.Marshal(g)
}
