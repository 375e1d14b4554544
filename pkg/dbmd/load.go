package dbmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"
)

// Load reads a metadata snapshot from a YAML or JSON file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading metadata file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a metadata snapshot. JSON is accepted as a subset of YAML.
// Unknown keys are rejected so that typos do not silently drop metadata.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.UnmarshalStrict(data, &s); err != nil {
		return nil, fmt.Errorf("dbmd: parsing snapshot: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Marshal encodes a snapshot as YAML.
func Marshal(s *Schema) ([]byte, error) {
	return yaml.Marshal(s)
}

// Save writes a snapshot to path, as JSON when the file name ends in
// ".json" and as YAML otherwise.
func Save(path string, s *Schema) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(s, "", "  ")
	} else {
		data, err = Marshal(s)
	}
	if err != nil {
		return fmt.Errorf("dbmd: encoding snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}
