// Package main is the entry point for the deskmate CLI, a conversational IT
// support assistant.
//
// Usage:
//
//	deskmate [flags] [command] [subcommand] [args]
//
// Commands:
//
//	chat         - Interactive support session (default)
//	config       - Configuration management (contexts, services)
//	kb           - Knowledge base indexing and search
//	transcripts  - Read back persisted conversations
//	staff        - Inspect or import the staff directory
//	version      - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/deskmate/cmd/deskmate/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
