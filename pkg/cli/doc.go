// Package cli provides common utilities for the deskmate command-line tool.
//
// This package includes:
//   - Output formatting (YAML, JSON, table, raw) with optional jq filtering
//   - Terminal styles for the chat prompt
//
// Example usage:
//
//	// Print a transcript, keeping only the message contents
//	cli.Output(doc, cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    Query:  ".conversation[].content",
//	})
package cli
