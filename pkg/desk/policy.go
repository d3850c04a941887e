package desk

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed policy.md
var defaultPolicy string

// DefaultPolicy returns the built-in policy prompt.
func DefaultPolicy() string {
	return defaultPolicy
}

// LoadPolicy reads a policy prompt from path. An empty path returns the
// built-in policy.
func LoadPolicy(path string) (string, error) {
	if path == "" {
		return defaultPolicy, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("desk: load policy: %w", err)
	}
	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", fmt.Errorf("desk: policy file %s is empty", path)
	}
	return text, nil
}
