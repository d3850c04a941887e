package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// ValidateServiceName checks that a service name is safe for use as a
// filename.
func ValidateServiceName(service string) error {
	if service == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	if strings.ContainsAny(service, "/\\") {
		return fmt.Errorf("service name %q must not contain path separators", service)
	}
	if strings.HasPrefix(service, ".") {
		return fmt.Errorf("service name %q must not start with '.'", service)
	}
	return nil
}

// ServicePath returns the YAML file path for a service within a context.
// For example, ServicePath("dev", "model") → ".../contexts/dev/model.yaml".
func (c *Config) ServicePath(context, service string) string {
	return filepath.Join(c.ContextDir(context), service+".yaml")
}

// LoadService loads a service configuration from the given context directory.
// The service name maps to a YAML file: "{contextDir}/{service}.yaml".
func LoadService[T any](contextDir, service string) (*T, error) {
	path := filepath.Join(contextDir, service+".yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("service config %q not found in context (expected: %s): %w", service, path, os.ErrNotExist)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var v T
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &v, nil
}

// SaveService writes a service configuration to the given context directory.
func SaveService[T any](contextDir, service string, v *T) error {
	if err := os.MkdirAll(contextDir, 0755); err != nil {
		return fmt.Errorf("create context dir: %w", err)
	}

	path := filepath.Join(contextDir, service+".yaml")

	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s config: %w", service, err)
	}

	// Service files may hold API keys.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ListServices returns the service names configured in a context directory.
// Each .yaml file corresponds to one service.
func ListServices(contextDir string) ([]string, error) {
	entries, err := os.ReadDir(contextDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list services: %w", err)
	}

	var services []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if ext == ".yaml" || ext == ".yml" {
			services = append(services, name[:len(name)-len(ext)])
		}
	}
	return services, nil
}
