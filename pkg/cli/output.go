package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-yaml"
	"github.com/itchyny/gojq"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	// FormatYAML outputs as YAML (default for terminal)
	FormatYAML OutputFormat = "yaml"
	// FormatJSON outputs as JSON
	FormatJSON OutputFormat = "json"
	// FormatTable outputs a [Table] as aligned columns
	FormatTable OutputFormat = "table"
	// FormatRaw outputs raw data
	FormatRaw OutputFormat = "raw"
)

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatYAML, FormatJSON, FormatTable, FormatRaw:
		return f, nil
	case "":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s (want yaml, json, table or raw)", s)
	}
}

// OutputOptions configures output behavior
type OutputOptions struct {
	// Format is the output format (yaml, json, table, raw)
	Format OutputFormat

	// File is the output file path (empty for stdout)
	File string

	// Indent is the indentation for JSON output
	Indent string

	// Query is an optional jq expression applied before formatting.
	Query string

	// Writer is an optional custom writer (overrides File)
	Writer io.Writer
}

// Table is tabular output for FormatTable.
type Table struct {
	Header []string
	Rows   [][]string
}

// Output writes the result to the configured destination
func Output(result any, opts OutputOptions) error {
	if opts.Query != "" {
		if opts.Format == FormatTable {
			return fmt.Errorf("--query cannot be combined with table output")
		}
		v, err := applyQuery(result, opts.Query)
		if err != nil {
			return err
		}
		result = v
	}

	var w io.Writer = os.Stdout

	if opts.Writer != nil {
		w = opts.Writer
	} else if opts.File != "" {
		f, err := os.Create(opts.File)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch opts.Format {
	case FormatJSON:
		return outputJSON(w, result, opts.Indent)
	case FormatYAML, "":
		return outputYAML(w, result)
	case FormatTable:
		return outputTable(w, result)
	case FormatRaw:
		return outputRaw(w, result)
	default:
		return fmt.Errorf("unsupported output format: %s", opts.Format)
	}
}

// applyQuery runs a jq expression over the JSON form of result. A single
// output is returned as is, several as a slice.
func applyQuery(result any, expr string) (any, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression %q: %w", expr, err)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, err
	}

	var out []any
	iter := query.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("jq error: %w", err)
		}
		out = append(out, v)
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return out, nil
}

func outputJSON(w io.Writer, result any, indent string) error {
	enc := json.NewEncoder(w)
	if indent == "" {
		indent = "  "
	}
	enc.SetIndent("", indent)
	return enc.Encode(result)
}

func outputYAML(w io.Writer, result any) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func outputTable(w io.Writer, result any) error {
	t, ok := result.(Table)
	if !ok {
		return fmt.Errorf("table output is not supported for %T", result)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(t.Header) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Header, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func outputRaw(w io.Writer, result any) error {
	switch v := result.(type) {
	case []byte:
		_, err := w.Write(v)
		return err
	case string:
		_, err := io.WriteString(w, v)
		return err
	case []any:
		// jq streams of strings print one per line.
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return outputYAML(w, result)
			}
			if _, err := fmt.Fprintln(w, s); err != nil {
				return err
			}
		}
		return nil
	default:
		return outputYAML(w, result)
	}
}

// Print helpers for terminal output

// PrintSuccess prints a success message with checkmark
func PrintSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "✓ "+format+"\n", args...)
}

// PrintInfo prints an info message
func PrintInfo(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "ℹ "+format+"\n", args...)
}

// PrintWarning prints a warning message
func PrintWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "⚠ "+format+"\n", args...)
}
