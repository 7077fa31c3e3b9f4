package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Loader parses and validates manifests.
type Loader struct {
	validator *validator.Validate
}

// NewLoader creates a manifest loader.
func NewLoader() *Loader {
	return &Loader{
		validator: validator.New(),
	}
}

// Load reads, parses, validates, and defaults a manifest file.
func (l *Loader) Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	manifest, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}

	return manifest, nil
}

// Parse parses and validates manifest bytes.
func (l *Loader) Parse(data []byte) (*Manifest, error) {
	var manifest Manifest

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	manifest.applyDefaults()

	if err := l.Validate(&manifest); err != nil {
		return nil, err
	}

	return &manifest, nil
}

// Validate runs struct validation plus manifest-level checks.
func (l *Loader) Validate(manifest *Manifest) error {
	if err := l.validator.Struct(manifest); err != nil {
		return fmt.Errorf("manifest validation failed: %w", err)
	}

	if err := manifest.checkUniqueIDs(); err != nil {
		return err
	}

	for _, r := range manifest.Resources {
		if nodeScoped(r.Type) && r.Node == "" {
			return fmt.Errorf("resource %s of type %s requires a node (set it on the resource or in defaults)", r.ID, r.Type)
		}
	}

	return nil
}

// nodeScoped reports whether a resource type addresses a specific node.
func nodeScoped(resourceType string) bool {
	switch resourceType {
	case "vm", "container", "network", "download":
		return true
	}
	return false
}
