// Package config provides the configuration system for the deskmate CLI.
//
// Configuration is stored under os.UserConfigDir()/deskmate/:
//
//	~/Library/Application Support/deskmate/   (macOS)
//	~/.config/deskmate/                       (Linux)
//	%AppData%/deskmate/                       (Windows)
//
// Layout:
//
//	deskmate/
//	├── current-context          # plain text: name of current context
//	└── contexts/
//	    ├── dev/
//	    │   ├── model.yaml       # chat model provider and credentials
//	    │   ├── chat.yaml        # labels, exit word, limits, policy file
//	    │   ├── storage.yaml     # transcript and cache backends
//	    │   ├── kb.yaml          # knowledge base articles and embeddings
//	    │   ├── data/            # badger files (default storage)
//	    │   └── deskmate.log
//	    └── prod/
//	        └── ...
//
// Without a context the CLI runs from environment defaults with data kept
// directly under the root directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// appDir is the directory name under os.UserConfigDir().
	appDir = "deskmate"

	// currentContextFile stores the name of the current context.
	currentContextFile = "current-context"

	// contextsDir is the subdirectory holding all context directories.
	contextsDir = "contexts"
)

// Config holds the root configuration state.
type Config struct {
	// Dir is the root configuration directory.
	Dir string

	// CurrentContext is the name of the active context.
	CurrentContext string
}

// EnvConfigDir overrides the configuration root when set.
const EnvConfigDir = "DESKMATE_CONFIG_DIR"

// Load loads the configuration from the default location.
func Load() (*Config, error) {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return LoadFrom(dir)
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine config directory: %w", err)
	}
	return LoadFrom(filepath.Join(base, appDir))
}

// LoadFrom loads the configuration from a specific root directory.
func LoadFrom(dir string) (*Config, error) {
	cfg := &Config{Dir: dir}

	// current-context may not exist yet.
	data, err := os.ReadFile(filepath.Join(dir, currentContextFile))
	if err == nil {
		cfg.CurrentContext = strings.TrimSpace(string(data))
	}

	return cfg, nil
}

// ValidateContextName checks that a context name is usable as a directory
// name.
func ValidateContextName(name string) error {
	if name == "" {
		return fmt.Errorf("context name cannot be empty")
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("context name %q must not contain path separators", name)
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("context name %q must not start with '.'", name)
	}
	return nil
}

// ContextsDir returns the path to the contexts directory.
func (c *Config) ContextsDir() string {
	return filepath.Join(c.Dir, contextsDir)
}

// ContextDir returns the directory path for a named context.
func (c *Config) ContextDir(name string) string {
	return filepath.Join(c.Dir, contextsDir, name)
}

// ResolveContext returns the directory for the given context name, or
// the current context if name is empty. With neither set it returns the
// root directory, which holds no service files and so yields defaults.
func (c *Config) ResolveContext(name string) (string, error) {
	if name == "" {
		name = c.CurrentContext
	}
	if name == "" {
		return c.Dir, nil
	}
	if err := ValidateContextName(name); err != nil {
		return "", err
	}
	dir := c.ContextDir(name)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return "", fmt.Errorf("context %q not found", name)
	}
	return dir, nil
}

// ListContexts returns the names of all available contexts.
func (c *Config) ListContexts() ([]string, error) {
	entries, err := os.ReadDir(c.ContextsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list contexts: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// AddContext creates a new context directory.
func (c *Config) AddContext(name string) error {
	if err := ValidateContextName(name); err != nil {
		return err
	}

	dir := c.ContextDir(name)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("context %q already exists", name)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create context %q: %w", name, err)
	}
	return nil
}

// DeleteContext removes a context directory and everything in it.
func (c *Config) DeleteContext(name string) error {
	if err := ValidateContextName(name); err != nil {
		return err
	}

	dir := c.ContextDir(name)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("context %q not found", name)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete context %q: %w", name, err)
	}

	if c.CurrentContext == name {
		c.CurrentContext = ""
		return c.saveCurrentContext()
	}
	return nil
}

// UseContext switches the current context.
func (c *Config) UseContext(name string) error {
	if err := ValidateContextName(name); err != nil {
		return err
	}

	dir := c.ContextDir(name)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("context %q not found", name)
	}

	c.CurrentContext = name
	return c.saveCurrentContext()
}

// saveCurrentContext writes the current-context file.
func (c *Config) saveCurrentContext() error {
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	path := filepath.Join(c.Dir, currentContextFile)
	return os.WriteFile(path, []byte(c.CurrentContext+"\n"), 0644)
}
