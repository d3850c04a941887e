package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/haivivi/deskmate/cmd/deskmate/internal/build"
	"github.com/haivivi/deskmate/pkg/cli"
)

var versionFormat string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if versionFormat == "json" {
			return cli.Output(map[string]string{
				"version": build.Version,
				"commit":  build.Commit,
				"date":    build.Date,
				"go":      runtime.Version(),
			}, cli.OutputOptions{Format: cli.FormatJSON, Writer: out})
		}
		fmt.Fprintln(out, build.String())
		if IsVerbose() {
			fmt.Fprintf(out, "  go:     %s\n", runtime.Version())
			if cfg, err := GetConfig(); err == nil {
				fmt.Fprintf(out, "  config: %s\n", cfg.Dir)
			} else {
				fmt.Fprintf(out, "  config: (unavailable: %v)\n", err)
			}
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().StringVar(&versionFormat, "format", "text", "output format (text or json)")
	rootCmd.AddCommand(versionCmd)
}
