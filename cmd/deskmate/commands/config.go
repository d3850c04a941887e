package commands

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/haivivi/deskmate/cmd/deskmate/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage contexts and service configurations.

A context is a named directory holding per-service YAML files:
  model.yaml    chat model provider, credentials and limits
  chat.yaml     prompt labels, exit word, turn limits, policy file
  storage.yaml  key-value backend and transcript destination
  kb.yaml       knowledge base articles and embeddings

Values starting with $ are read from the environment when used.

Examples:
  deskmate config get-contexts
  deskmate config add-context staging
  deskmate config use-context dev
  deskmate config current-context
  deskmate config set dev model provider azure
  deskmate config set dev storage s3.bucket support-transcripts
  deskmate config get dev model provider
  deskmate config view dev
  deskmate config edit dev kb`,
}

var configGetContextsCmd = &cobra.Command{
	Use:     "get-contexts",
	Aliases: []string{"list-contexts", "ls"},
	Short:   "List all contexts",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		names, err := cfg.ListContexts()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(names) == 0 {
			fmt.Fprintln(out, "No contexts configured.")
			fmt.Fprintln(out, "Create one with: deskmate config add-context <name>")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tSERVICES")
		for _, name := range names {
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			services, _ := config.ListServices(cfg.ContextDir(name))
			fmt.Fprintf(w, "%s\t%s\t%s\n", current, name, strings.Join(services, ", "))
		}
		return w.Flush()
	},
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Create a new context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		name := args[0]

		if err := cfg.AddContext(name); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Context %q created.\n", name)
		fmt.Fprintf(out, "Configure services with: deskmate config set %s <service> <key> <value>\n", name)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context with its service configs and data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		name := args[0]

		if err := cfg.DeleteContext(name); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Context %q deleted.\n", name)
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		name := args[0]

		if err := cfg.UseContext(name); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Switched to context %q.\n", name)
		return nil
	},
}

var configCurrentContextCmd = &cobra.Command{
	Use:   "current-context",
	Short: "Display the current context name",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if cfg.CurrentContext == "" {
			fmt.Fprintln(out, "No current context set.")
			return nil
		}
		fmt.Fprintln(out, cfg.CurrentContext)
		return nil
	},
}

// contextDir validates the names and returns an existing context directory.
func contextDir(cfg *config.Config, ctxName, service string) (string, error) {
	if err := config.ValidateContextName(ctxName); err != nil {
		return "", err
	}
	if service != "" {
		if err := config.ValidateServiceName(service); err != nil {
			return "", err
		}
	}
	dir := cfg.ContextDir(ctxName)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return "", fmt.Errorf("context %q not found", ctxName)
	}
	return dir, nil
}

// parseValue decodes a command-line value as a YAML scalar so numbers,
// booleans and durations keep their type.
func parseValue(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil || v == nil {
		return s
	}
	switch v.(type) {
	case map[string]any, []any:
		return s
	}
	return v
}

// setPath sets a dotted key such as "s3.bucket" in m.
func setPath(m map[string]any, key string, value any) error {
	parts := strings.Split(key, ".")
	for i, p := range parts[:len(parts)-1] {
		next, ok := m[p]
		if !ok || next == nil {
			child := map[string]any{}
			m[p] = child
			m = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("key %q is not a mapping", strings.Join(parts[:i+1], "."))
		}
		m = child
	}
	m[parts[len(parts)-1]] = value
	return nil
}

// getPath looks up a dotted key in m.
func getPath(m map[string]any, key string) (any, bool) {
	var cur any = m
	for _, p := range strings.Split(key, ".") {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = mm[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// loadServiceMap reads a service file as a generic map. A missing or empty
// file yields an empty map.
func loadServiceMap(dir, service string) (map[string]any, error) {
	existing, err := config.LoadService[map[string]any](dir, service)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	if *existing == nil {
		return map[string]any{}, nil
	}
	return *existing, nil
}

var configSetCmd = &cobra.Command{
	Use:   "set <context> <service> <key> <value>",
	Short: "Set a service config value",
	Long: `Set a key-value pair in a service's YAML config file. Nested keys use
dots, e.g. s3.bucket.

Examples:
  deskmate config set dev model provider openai
  deskmate config set dev model api_key '$OPENAI_API_KEY'
  deskmate config set dev chat max_turns 20
  deskmate config set dev chat turn_timeout 45s
  deskmate config set dev storage transcripts s3`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		ctxName, service, key, value := args[0], args[1], args[2], args[3]
		dir, err := contextDir(cfg, ctxName, service)
		if err != nil {
			return err
		}

		m, err := loadServiceMap(dir, service)
		if err != nil {
			return fmt.Errorf("cannot read existing %s config: %w", service, err)
		}
		if err := setPath(m, key, parseValue(value)); err != nil {
			return err
		}
		if err := config.SaveService(dir, service, &m); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Set %s.%s = %s (context: %s)\n", service, key, value, ctxName)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <context> <service> <key>",
	Short: "Get a service config value",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		ctxName, service, key := args[0], args[1], args[2]
		dir, err := contextDir(cfg, ctxName, service)
		if err != nil {
			return err
		}

		m, err := config.LoadService[map[string]any](dir, service)
		if err != nil {
			return err
		}
		if *m == nil {
			return fmt.Errorf("key %q not found in %s config (file is empty)", key, service)
		}
		val, ok := getPath(*m, key)
		if !ok {
			return fmt.Errorf("key %q not found in %s config", key, service)
		}

		fmt.Fprintln(cmd.OutOrStdout(), val)
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view [context]",
	Short: "Show the service configs of a context",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		ctxName := cfg.CurrentContext
		if len(args) == 1 {
			ctxName = args[0]
		}
		if ctxName == "" {
			return fmt.Errorf("no current context set; use 'deskmate config use-context <name>'")
		}
		dir, err := contextDir(cfg, ctxName, "")
		if err != nil {
			return err
		}
		services, err := config.ListServices(dir)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# context: %s\n", ctxName)
		for _, svc := range services {
			m, err := loadServiceMap(dir, svc)
			if err != nil {
				return err
			}
			redact(m)
			data, err := yaml.Marshal(map[string]any{svc: m})
			if err != nil {
				return err
			}
			out.Write(data)
		}
		return nil
	},
}

// redact masks literal secrets. Environment references are shown as is.
func redact(m map[string]any) {
	for k, v := range m {
		switch v := v.(type) {
		case map[string]any:
			redact(v)
		case string:
			if isSecretKey(k) && v != "" && !strings.HasPrefix(v, "$") {
				m[k] = "****"
			}
		}
	}
}

func isSecretKey(k string) bool {
	return strings.HasSuffix(k, "api_key") || strings.HasSuffix(k, "secret_key") || strings.HasSuffix(k, "access_key")
}

var configEditCmd = &cobra.Command{
	Use:   "edit <context> <service>",
	Short: "Open a service config in the default editor",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		ctxName, service := args[0], args[1]
		if _, err := contextDir(cfg, ctxName, service); err != nil {
			return err
		}

		path := cfg.ServicePath(ctxName, service)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte("# "+service+" configuration\n"), 0600); err != nil {
				return fmt.Errorf("create %s: %w", path, err)
			}
		}

		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vi"
		}

		c := exec.Command(editor, path)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		return c.Run()
	},
}

func init() {
	configCmd.AddCommand(configGetContextsCmd)
	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configCurrentContextCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configEditCmd)

	rootCmd.AddCommand(configCmd)
}
